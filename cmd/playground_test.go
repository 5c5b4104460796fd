package cmd

import (
	"context"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/witanlabs/gridcmd/client"
	"github.com/witanlabs/gridcmd/server"
	"github.com/witanlabs/gridcmd/session"
	"github.com/witanlabs/gridcmd/sheet"
	"github.com/witanlabs/gridcmd/workbook"
)

const playgroundScript = `help
setup_demo
{"function_name":"excel_read_cell","parameters":{"row_index":2,"col_index":"B"}}
{"function_name":"excel_fly"}
inspect
save
exit
{"function_name":"excel_clear_sheet"}
`

func checkPlaygroundOutput(t *testing.T, out string) {
	t.Helper()
	for _, want := range []string{
		"excel_update_cell_by_lookup",
		"Demo data ready: a header row and 5 employees.",
		"+1  Success: Read value 'John Smith' from B2",
		"-1  Error: ValidationError: ",
		"Department",
		"6 row(s) x 5 column(s) in use.",
		"Saved.",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func checkDemoWorkbook(t *testing.T, path string) {
	t.Helper()
	store, err := workbook.Load(path, workbook.Options{})
	if err != nil {
		t.Fatalf("loading saved workbook: %v", err)
	}
	if store.RowCount() != 6 {
		t.Fatalf("saved %d rows, want 6 (commands after exit must not run)", store.RowCount())
	}
	v, _ := store.Cell(3, 5)
	if !v.Equal(sheet.Number(82000)) {
		t.Fatalf("E3 = %v, want 82000", v)
	}
}

func TestRunPlayground_Local(t *testing.T) {
	resetExecTestGlobals(t)
	path := filepath.Join(t.TempDir(), "playground.xlsx")

	b, err := newLocalPlayground(path, workbook.Options{})
	if err != nil {
		t.Fatalf("newLocalPlayground: %v", err)
	}
	var out strings.Builder
	if err := runPlayground(context.Background(), strings.NewReader(playgroundScript), &out, b); err != nil {
		t.Fatalf("runPlayground: %v", err)
	}
	checkPlaygroundOutput(t, out.String())
	checkDemoWorkbook(t, path)
}

func TestRunPlayground_Remote(t *testing.T) {
	resetExecTestGlobals(t)
	reg := session.NewRegistry(nil)
	ts := httptest.NewServer(server.New(reg))
	t.Cleanup(ts.Close)
	path := filepath.Join(t.TempDir(), "playground.xlsx")

	ctx := context.Background()
	b, err := newRemotePlayground(ctx, client.New(ts.URL, "", false), path)
	if err != nil {
		t.Fatalf("newRemotePlayground: %v", err)
	}
	var out strings.Builder
	if err := runPlayground(ctx, strings.NewReader(playgroundScript), &out, b); err != nil {
		t.Fatalf("runPlayground: %v", err)
	}
	if err := b.Close(); err != nil {
		t.Fatalf("closing playground: %v", err)
	}
	checkPlaygroundOutput(t, out.String())
	checkDemoWorkbook(t, path)
	if reg.Len() != 0 {
		t.Fatalf("%d session(s) left on the server", reg.Len())
	}
}

func TestRunPlayground_SaveFailureKeepsGoing(t *testing.T) {
	resetExecTestGlobals(t)
	dir := t.TempDir()
	b, err := newLocalPlayground(filepath.Join(dir, "missing", "book.xlsx"), workbook.Options{})
	if err != nil {
		t.Fatal(err)
	}
	var out strings.Builder
	in := "save\n{\"function_name\":\"excel_read_header_row\"}\n"
	if err := runPlayground(context.Background(), strings.NewReader(in), &out, b); err != nil {
		t.Fatalf("runPlayground: %v", err)
	}
	if !strings.Contains(out.String(), "Save failed: ") {
		t.Fatalf("missing save failure:\n%s", out.String())
	}
	if !strings.Contains(out.String(), "+1  Success: ") {
		t.Fatalf("loop stopped after failed save:\n%s", out.String())
	}
	if _, err := os.Stat(filepath.Join(dir, "missing")); !os.IsNotExist(err) {
		t.Fatalf("unexpected directory created: %v", err)
	}
}

func TestTruncate(t *testing.T) {
	if got := truncate("Engineering", 12); got != "Engineering" {
		t.Fatalf("truncate kept %q", got)
	}
	if got := truncate("Jennifer Wilson", 12); got != "Jennifer ..." {
		t.Fatalf("truncate = %q", got)
	}
}
