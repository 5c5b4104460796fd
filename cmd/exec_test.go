package cmd

import (
	"encoding/json"
	"errors"
	"io"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/spf13/cobra"

	"github.com/witanlabs/gridcmd/config"
	"github.com/witanlabs/gridcmd/server"
	"github.com/witanlabs/gridcmd/session"
	"github.com/witanlabs/gridcmd/sheet"
	"github.com/witanlabs/gridcmd/workbook"
)

func TestResolveCommandSource_Exclusivity(t *testing.T) {
	resetExecTestGlobals(t)

	t.Run("none selected returns error", func(t *testing.T) {
		cmd := newExecTestCommand()
		_, err := resolveCommandSource(cmd, strings.NewReader(""))
		if err == nil || !strings.Contains(err.Error(), "exactly one of --command, --script, or --stdin is required") {
			t.Fatalf("unexpected error: %v", err)
		}
	})

	t.Run("multiple selected returns error", func(t *testing.T) {
		cmd := newExecTestCommand()
		if err := cmd.Flags().Set("command", `{"function_name":"excel_clear_sheet"}`); err != nil {
			t.Fatalf("setting --command: %v", err)
		}
		if err := cmd.Flags().Set("stdin", "true"); err != nil {
			t.Fatalf("setting --stdin: %v", err)
		}
		_, err := resolveCommandSource(cmd, strings.NewReader(""))
		if err == nil || !strings.Contains(err.Error(), "mutually exclusive") {
			t.Fatalf("unexpected error: %v", err)
		}
	})

	t.Run("single source selected passes", func(t *testing.T) {
		cmd := newExecTestCommand()
		if err := cmd.Flags().Set("command", `{"function_name":"excel_clear_sheet"}`); err != nil {
			t.Fatalf("setting --command: %v", err)
		}
		got, err := resolveCommandSource(cmd, strings.NewReader(""))
		if err != nil {
			t.Fatalf("resolveCommandSource failed: %v", err)
		}
		if len(got) != 1 || string(got[0]) != `{"function_name":"excel_clear_sheet"}` {
			t.Fatalf("unexpected commands: %q", got)
		}
	})
}

func TestResolveCommandSource_ScriptAndStdin(t *testing.T) {
	resetExecTestGlobals(t)

	t.Run("script skips blank and comment lines", func(t *testing.T) {
		cmd := newExecTestCommand()
		path := filepath.Join(t.TempDir(), "updates.jsonl")
		script := "# setup\n{\"function_name\":\"excel_clear_sheet\"}\n\n  {\"function_name\":\"excel_read_header_row\"}  \n"
		if err := os.WriteFile(path, []byte(script), 0o644); err != nil {
			t.Fatalf("writing script: %v", err)
		}
		if err := cmd.Flags().Set("script", path); err != nil {
			t.Fatalf("setting --script: %v", err)
		}
		got, err := resolveCommandSource(cmd, strings.NewReader(""))
		if err != nil {
			t.Fatalf("resolveCommandSource failed: %v", err)
		}
		want := []string{`{"function_name":"excel_clear_sheet"}`, `{"function_name":"excel_read_header_row"}`}
		if diff := cmp.Diff(want, toStrings(got)); diff != "" {
			t.Fatalf("commands mismatch (-want +got):\n%s", diff)
		}
	})

	t.Run("empty stdin is an error", func(t *testing.T) {
		cmd := newExecTestCommand()
		if err := cmd.Flags().Set("stdin", "true"); err != nil {
			t.Fatalf("setting --stdin: %v", err)
		}
		_, err := resolveCommandSource(cmd, strings.NewReader("# nothing\n\n"))
		if err == nil || !strings.Contains(err.Error(), "contains no commands") {
			t.Fatalf("unexpected error: %v", err)
		}
	})
}

func TestRunExec_LocalSavesWorkbook(t *testing.T) {
	resetExecTestGlobals(t)
	path := writeProjectsWorkbook(t)

	cmd := newExecTestCommand()
	if err := cmd.Flags().Set("command", `{"function_name":"excel_write_cell","parameters":{"row_index":2,"col_index":"B","text":"Done"}}`); err != nil {
		t.Fatalf("setting --command: %v", err)
	}
	out, err := captureExecStdout(t, func() error { return runExec(cmd, []string{path}) })
	if err != nil {
		t.Fatalf("runExec failed: %v", err)
	}
	if !strings.Contains(out, "+1  Success: Cell B2 now contains 'Done'") {
		t.Fatalf("missing report in output:\n%s", out)
	}
	if !strings.Contains(out, "Saved "+path) {
		t.Fatalf("missing save line in output:\n%s", out)
	}
	assertCell(t, path, 2, 2, sheet.Text("Done"))
}

func TestRunExec_DefaultConfigUsesActiveSheet(t *testing.T) {
	for _, remote := range []bool{false, true} {
		name := "local"
		if remote {
			name = "remote"
		}
		t.Run(name, func(t *testing.T) {
			resetExecTestGlobals(t)
			cfg = config.Default()
			sheetName = ""
			if remote {
				t.Setenv("TMPDIR", t.TempDir())
				ts := httptest.NewServer(server.New(session.NewRegistry(nil)))
				t.Cleanup(ts.Close)
				apiURL = ts.URL
			}

			path := filepath.Join(t.TempDir(), "tasks.xlsx")
			store := sheet.FromStrings([][]string{{"Task ID", "Owner"}, {"T-1", "ana"}})
			if err := workbook.Save(path, store, workbook.Options{Sheet: "Tasks"}); err != nil {
				t.Fatalf("writing workbook: %v", err)
			}

			cmd := newExecTestCommand()
			if err := cmd.Flags().Set("command", `{"function_name":"excel_write_cell","parameters":{"row_index":2,"col_index":2,"text":"bo"}}`); err != nil {
				t.Fatalf("setting --command: %v", err)
			}
			if remote {
				_ = cmd.Flags().Set("remote", "true")
			}
			out, err := captureExecStdout(t, func() error { return runExec(cmd, []string{path}) })
			if err != nil {
				t.Fatalf("runExec failed: %v\n%s", err, out)
			}
			if !strings.Contains(out, "Success: Cell B2 now contains 'bo'") {
				t.Fatalf("missing report in output:\n%s", out)
			}

			got, err := workbook.Load(path, workbook.Options{Sheet: "Tasks"})
			if err != nil {
				t.Fatalf("sheet renamed on save: %v", err)
			}
			v, err := got.Cell(2, 2)
			if err != nil {
				t.Fatalf("reading cell: %v", err)
			}
			if !v.Equal(sheet.Text("bo")) {
				t.Fatalf("B2 = %v, want bo", v)
			}
		})
	}
}

func TestRunExec_StopsAtFirstFailure(t *testing.T) {
	script := strings.Join([]string{
		`{"function_name":"excel_write_cell","parameters":{"row_index":2,"col_index":2,"text":"Done"}}`,
		`{"function_name":"excel_update_cell_by_lookup","parameters":{"row_header":"Project Name","row_value":"Project-999","col_header":"Status","new_value":"x"}}`,
		`{"function_name":"excel_write_cell","parameters":{"row_index":3,"col_index":2,"text":"Done"}}`,
	}, "\n")

	tests := []struct {
		name        string
		keepGoing   bool
		wantReports int
		wantB3      sheet.Value
	}{
		{name: "default stops", wantReports: 2, wantB3: sheet.Text("Active")},
		{name: "keep going runs all", keepGoing: true, wantReports: 3, wantB3: sheet.Text("Done")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resetExecTestGlobals(t)
			path := writeProjectsWorkbook(t)
			scriptPath := filepath.Join(t.TempDir(), "s.jsonl")
			if err := os.WriteFile(scriptPath, []byte(script), 0o644); err != nil {
				t.Fatalf("writing script: %v", err)
			}

			cmd := newExecTestCommand()
			_ = cmd.Flags().Set("script", scriptPath)
			if tt.keepGoing {
				_ = cmd.Flags().Set("keep-going", "true")
			}
			jsonOutput = true
			out, err := captureExecStdout(t, func() error { return runExec(cmd, []string{path}) })

			var exitErr *ExitError
			if !errors.As(err, &exitErr) || exitErr.Code != 1 {
				t.Fatalf("expected exit code 1, got %v", err)
			}
			var res execResult
			if err := json.Unmarshal([]byte(out), &res); err != nil {
				t.Fatalf("decoding output: %v\n%s", err, out)
			}
			if len(res.Reports) != tt.wantReports {
				t.Fatalf("got %d reports, want %d", len(res.Reports), tt.wantReports)
			}
			if got := res.Reports[1].Feedback; !strings.HasPrefix(got, "Error: NotFoundError: ") {
				t.Fatalf("unexpected feedback: %q", got)
			}
			if !res.Saved {
				t.Fatal("successful edits before the failure are saved")
			}
			assertCell(t, path, 2, 2, sheet.Text("Done"))
			assertCell(t, path, 3, 2, tt.wantB3)
		})
	}
}

func TestRunExec_DryRunLeavesFileAlone(t *testing.T) {
	resetExecTestGlobals(t)
	path := writeProjectsWorkbook(t)
	before, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}

	cmd := newExecTestCommand()
	_ = cmd.Flags().Set("command", `{"function_name":"excel_clear_sheet"}`)
	_ = cmd.Flags().Set("dry-run", "true")
	_ = cmd.Flags().Set("diff", "true")
	out, err := captureExecStdout(t, func() error { return runExec(cmd, []string{path}) })
	if err != nil {
		t.Fatalf("runExec failed: %v", err)
	}
	if !strings.Contains(out, "Not saved (--dry-run)") {
		t.Fatalf("missing dry-run note:\n%s", out)
	}
	if !strings.Contains(out, `  A1: "Project Name" -> (empty)`) {
		t.Fatalf("missing diff line:\n%s", out)
	}
	after, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if string(before) != string(after) {
		t.Fatal("dry run modified the workbook")
	}
}

func TestRunExec_MissingFileIsCreated(t *testing.T) {
	resetExecTestGlobals(t)
	path := filepath.Join(t.TempDir(), "new.xlsx")

	cmd := newExecTestCommand()
	_ = cmd.Flags().Set("stdin", "true")
	withStdin(t, `{"function_name":"excel_add_row","parameters":{"row_index":"next_available","text":"Owner"}}`+"\n")
	if _, err := captureExecStdout(t, func() error { return runExec(cmd, []string{path}) }); err != nil {
		t.Fatalf("runExec failed: %v", err)
	}
	assertCell(t, path, 1, 1, sheet.Text("Owner"))
}

func TestRunExec_Remote(t *testing.T) {
	resetExecTestGlobals(t)
	t.Setenv("TMPDIR", t.TempDir())
	ts := httptest.NewServer(server.New(session.NewRegistry(nil)))
	t.Cleanup(ts.Close)
	apiURL = ts.URL

	path := writeProjectsWorkbook(t)
	run := func(command string) string {
		t.Helper()
		cmd := newExecTestCommand()
		_ = cmd.Flags().Set("command", command)
		_ = cmd.Flags().Set("remote", "true")
		_ = cmd.Flags().Set("diff", "true")
		out, err := captureExecStdout(t, func() error { return runExec(cmd, []string{path}) })
		if err != nil {
			t.Fatalf("runExec failed: %v\n%s", err, out)
		}
		return out
	}

	out := run(`{"function_name":"excel_update_cell_by_lookup","parameters":{"row_header":"Project Name","row_value":"Project-123","col_header":"Status","new_value":"Completed"}}`)
	if !strings.Contains(out, `    target B2 = "Completed"`) {
		t.Fatalf("missing lookup target:\n%s", out)
	}
	if !strings.Contains(out, `  B2: "Planning" -> "Completed"`) {
		t.Fatalf("missing diff line:\n%s", out)
	}
	assertCell(t, path, 2, 2, sheet.Text("Completed"))

	// The cached session continues from the saved file.
	run(`{"function_name":"excel_write_cell","parameters":{"row_index":3,"col_index":"B","text":"Completed"}}`)
	assertCell(t, path, 2, 2, sheet.Text("Completed"))
	assertCell(t, path, 3, 2, sheet.Text("Completed"))
}

func toStrings(bs [][]byte) []string {
	out := make([]string, len(bs))
	for i, b := range bs {
		out[i] = string(b)
	}
	return out
}

func writeProjectsWorkbook(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "projects.xlsx")
	store := sheet.FromStrings([][]string{
		{"Project Name", "Status"},
		{"Project-123", "Planning"},
		{"Project-124", "Active"},
	})
	if err := workbook.Save(path, store, workbook.Options{}); err != nil {
		t.Fatalf("writing workbook: %v", err)
	}
	return path
}

func assertCell(t *testing.T, path string, row, col int, want sheet.Value) {
	t.Helper()
	store, err := workbook.Load(path, workbook.Options{})
	if err != nil {
		t.Fatalf("loading %s: %v", path, err)
	}
	got, err := store.Cell(row, col)
	if err != nil {
		t.Fatalf("reading cell: %v", err)
	}
	if !got.Equal(want) {
		t.Fatalf("cell %s = %v, want %v", sheet.CellRef(row, col), got, want)
	}
}

func withStdin(t *testing.T, input string) {
	t.Helper()
	f, err := os.CreateTemp(t.TempDir(), "stdin")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := io.WriteString(f, input); err != nil {
		t.Fatal(err)
	}
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		t.Fatal(err)
	}
	orig := os.Stdin
	os.Stdin = f
	t.Cleanup(func() {
		os.Stdin = orig
		f.Close()
	})
}

func resetExecTestGlobals(t *testing.T) {
	origAPIKey := apiKey
	origAPIURL := apiURL
	origSheetName := sheetName
	origJSONOutput := jsonOutput
	origCfg := cfg
	origExecCommand := execCommand
	origExecScript := execScript
	origExecStdin := execStdin
	origExecRemote := execRemote
	origExecDiff := execDiff
	origExecDryRun := execDryRun
	origExecKeepGoing := execKeepGoing

	t.Cleanup(func() {
		apiKey = origAPIKey
		apiURL = origAPIURL
		sheetName = origSheetName
		jsonOutput = origJSONOutput
		cfg = origCfg
		execCommand = origExecCommand
		execScript = origExecScript
		execStdin = origExecStdin
		execRemote = origExecRemote
		execDiff = origExecDiff
		execDryRun = origExecDryRun
		execKeepGoing = origExecKeepGoing
	})

	apiKey = ""
	apiURL = ""
	sheetName = ""
	jsonOutput = false
	cfg = config.Default()
	execCommand = ""
	execScript = ""
	execStdin = false
	execRemote = false
	execDiff = false
	execDryRun = false
	execKeepGoing = false
}

func newExecTestCommand() *cobra.Command {
	cmd := &cobra.Command{}
	cmd.Flags().StringVarP(&execCommand, "command", "c", "", "")
	cmd.Flags().StringVar(&execScript, "script", "", "")
	cmd.Flags().BoolVar(&execStdin, "stdin", false, "")
	cmd.Flags().BoolVar(&execRemote, "remote", false, "")
	cmd.Flags().BoolVar(&execDiff, "diff", false, "")
	cmd.Flags().BoolVar(&execDryRun, "dry-run", false, "")
	cmd.Flags().BoolVar(&execKeepGoing, "keep-going", false, "")
	return cmd
}

func captureExecStdout(t *testing.T, fn func() error) (string, error) {
	t.Helper()
	orig := os.Stdout
	r, w, err := os.Pipe()
	if err != nil {
		t.Fatalf("creating stdout pipe: %v", err)
	}
	os.Stdout = w

	runErr := fn()

	if closeErr := w.Close(); closeErr != nil {
		t.Fatalf("closing write pipe: %v", closeErr)
	}
	os.Stdout = orig

	out, readErr := io.ReadAll(r)
	if readErr != nil {
		t.Fatalf("reading captured stdout: %v", readErr)
	}
	if closeErr := r.Close(); closeErr != nil {
		t.Fatalf("closing read pipe: %v", closeErr)
	}
	return string(out), runErr
}
