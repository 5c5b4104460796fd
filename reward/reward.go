// Package reward turns dispatch outcomes into a score and a feedback string,
// and grades model completions that are expected to contain a command.
package reward

import (
	"fmt"
	"strings"

	"github.com/witanlabs/gridcmd/command"
	"github.com/witanlabs/gridcmd/internal"
	"github.com/witanlabs/gridcmd/sheet"
)

const (
	Success = 1
	Failure = -1
)

// Report is the scored result of one dispatch.
type Report struct {
	Reward   int    `json:"reward"`
	Feedback string `json:"feedback"`

	// Set for lookup-based updates only.
	TargetCell        string       `json:"target_cell,omitempty"`
	ExpectedCellValue *sheet.Value `json:"expected_cell_value,omitempty"`
}

// OK reports whether the reward is positive.
func (r Report) OK() bool {
	return r.Reward == Success
}

// Evaluate scores an outcome. It is a pure function of o.
func Evaluate(o command.Outcome) Report {
	if o.Result == nil && o.Failure == nil {
		o.Failure = &command.Failure{Kind: sheet.KindValidation, Message: "command produced no result"}
	}
	if !o.OK() {
		return Report{
			Reward:   Failure,
			Feedback: fmt.Sprintf("Error: %s: %s", o.Failure.Kind, o.Failure.Message),
		}
	}
	rep := Report{Reward: Success, Feedback: "Success: " + Describe(o)}
	if o.Call.Name == command.UpdateCellByLookup {
		rep.TargetCell = o.Result.TargetCell
		rep.ExpectedCellValue = o.Result.ExpectedCellValue
	}
	return rep
}

// Describe renders the state a successful outcome produced.
func Describe(o command.Outcome) string {
	c, r := o.Call, o.Result
	if r == nil {
		return "no result"
	}
	switch c.Name {
	case command.ClearSheet:
		return fmt.Sprintf("Sheet cleared. Removed all data (%d rows by %d columns)", r.ClearedRows, r.ClearedColumns)
	case command.AddRow:
		return fmt.Sprintf("New row inserted at position %d. Cell %s now contains %s", r.Row, r.Ref, quote(deref(r.Value)))
	case command.WriteCell:
		return fmt.Sprintf("Cell %s now contains %s", r.Ref, quote(deref(r.Value)))
	case command.WriteRow:
		return fmt.Sprintf("Data written to row %d. Values: %s", r.Row, byColumn(r.Values))
	case command.ClearCell:
		return fmt.Sprintf("Content cleared from %s", r.Ref)
	case command.ClearRow:
		return fmt.Sprintf("Row %d deleted. Original values: %s", r.Row, joinValues(r.Values))
	case command.ClearColumn:
		return fmt.Sprintf("Column %s (index %d) deleted. Original values: %s", internal.ColToLetter(r.Col), r.Col, joinValues(r.Values))
	case command.ReadHeaderRow:
		return fmt.Sprintf("Header row read successfully. Headers found: %s", joinValues(r.Values))
	case command.ReadColumn:
		return fmt.Sprintf("Column %s read successfully. Values: %s", internal.ColToLetter(r.Col), byRow(r.Values))
	case command.ReadCell:
		return fmt.Sprintf("Read value %s from %s", quote(deref(r.Value)), r.Ref)
	case command.ReadRow:
		return fmt.Sprintf("Row %d read successfully. Values: %s", r.Row, byColumn(r.Values))
	case command.GetColumnIndexByHeader:
		return fmt.Sprintf("Column index found by header '%s'. Result: %d", c.Header, r.Index)
	case command.GetRowIndexByValue:
		return fmt.Sprintf("Row index found by value %s. Result: %d", quote(c.Lookup), r.Index)
	case command.UpdateCellByLookup:
		return fmt.Sprintf("Cell %s now contains %s (identified by '%s=%s' and '%s')",
			r.TargetCell, quote(deref(r.ExpectedCellValue)), c.RowHeader, c.Lookup, c.ColHeader)
	}
	return string(c.Name)
}

func deref(v *sheet.Value) sheet.Value {
	if v == nil {
		return sheet.Empty()
	}
	return *v
}

func quote(v sheet.Value) string {
	if v.IsEmpty() {
		return "nothing"
	}
	return "'" + v.String() + "'"
}

// joinValues lists the non-empty values.
func joinValues(vs []sheet.Value) string {
	parts := make([]string, 0, len(vs))
	for _, v := range vs {
		if !v.IsEmpty() {
			parts = append(parts, quote(v))
		}
	}
	if len(parts) == 0 {
		return "none"
	}
	return strings.Join(parts, ", ")
}

func byColumn(vs []sheet.Value) string {
	var parts []string
	for i, v := range vs {
		if !v.IsEmpty() {
			parts = append(parts, fmt.Sprintf("column %s: %s", internal.ColToLetter(i+1), quote(v)))
		}
	}
	if len(parts) == 0 {
		return "none"
	}
	return strings.Join(parts, ", ")
}

func byRow(vs []sheet.Value) string {
	var parts []string
	for i, v := range vs {
		if !v.IsEmpty() {
			parts = append(parts, fmt.Sprintf("row %d: %s", i+1, quote(v)))
		}
	}
	if len(parts) == 0 {
		return "none"
	}
	return strings.Join(parts, ", ")
}
