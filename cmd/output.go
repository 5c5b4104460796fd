package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/witanlabs/gridcmd/internal"
	"github.com/witanlabs/gridcmd/reward"
	"github.com/witanlabs/gridcmd/sheet"
)

// ExitError signals a non-zero exit code without printing an error message.
type ExitError struct{ Code int }

func (e *ExitError) Error() string { return "" }

func jsonPrint(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	return enc.Encode(v)
}

// printReport writes "reward  feedback", plus the lookup target when set.
func printReport(w io.Writer, rep reward.Report) {
	fmt.Fprintf(w, "%+d  %s\n", rep.Reward, rep.Feedback)
	if rep.TargetCell != "" && rep.ExpectedCellValue != nil {
		fmt.Fprintf(w, "    target %s = %s\n", rep.TargetCell, displayValue(*rep.ExpectedCellValue))
	}
}

func displayValue(v sheet.Value) string {
	if v.IsEmpty() {
		return "(empty)"
	}
	if v.Kind() == sheet.KindText {
		return fmt.Sprintf("%q", v.String())
	}
	return v.String()
}

// cellChange is one entry of --diff output.
type cellChange struct {
	Ref    string      `json:"ref"`
	Before sheet.Value `json:"before"`
	After  sheet.Value `json:"after"`
}

func diffStores(before, after *sheet.Store) ([]cellChange, int) {
	changes, total := internal.DiffGrids(before.Rows(), after.Rows())
	out := make([]cellChange, len(changes))
	for i, c := range changes {
		out[i] = cellChange{Ref: c.Ref, Before: c.Before, After: c.After}
	}
	return out, total
}

func printDiff(w io.Writer, changes []cellChange, total int) {
	fmt.Fprintln(w, internal.FormatDiffSummary(len(changes), total))
	for _, c := range changes {
		fmt.Fprintf(w, "  %s: %s -> %s\n", c.Ref, displayValue(c.Before), displayValue(c.After))
	}
}
