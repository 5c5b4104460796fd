package reward

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/witanlabs/gridcmd/command"
	"github.com/witanlabs/gridcmd/sheet"
)

func projectStore() *sheet.Store {
	return sheet.FromRows([][]sheet.Value{
		{sheet.Text("Project Name"), sheet.Text("Status"), sheet.Text("Budget")},
		{sheet.Text("Project-123"), sheet.Text("Planning"), sheet.Number(5000)},
		{sheet.Text("Project-456"), sheet.Text("Done"), sheet.Number(750)},
	})
}

func run(t *testing.T, store *sheet.Store, name string, params map[string]any) Report {
	t.Helper()
	return Evaluate(command.NewDispatcher(store).Execute(command.MustNew(name, params)))
}

func TestEvaluate_LookupUpdate(t *testing.T) {
	rep := run(t, projectStore(), "excel_update_cell_by_lookup", map[string]any{
		"row_header": "Project Name",
		"row_value":  "Project-123",
		"col_header": "Status",
		"new_value":  "In Progress",
	})
	assert.Equal(t, Success, rep.Reward)
	assert.Equal(t, "B2", rep.TargetCell)
	require.NotNil(t, rep.ExpectedCellValue)
	assert.Equal(t, sheet.Text("In Progress"), *rep.ExpectedCellValue)
	assert.Equal(t,
		"Success: Cell B2 now contains 'In Progress' (identified by 'Project Name=Project-123' and 'Status')",
		rep.Feedback)

	data, err := json.Marshal(rep)
	require.NoError(t, err)
	assert.JSONEq(t, `{
		"reward": 1,
		"feedback": "Success: Cell B2 now contains 'In Progress' (identified by 'Project Name=Project-123' and 'Status')",
		"target_cell": "B2",
		"expected_cell_value": "In Progress"
	}`, string(data))
}

func TestEvaluate_FailureNamesKindAndMessage(t *testing.T) {
	rep := run(t, projectStore(), "excel_update_cell_by_lookup", map[string]any{
		"row_header": "Project Name",
		"row_value":  "Project-999",
		"col_header": "Status",
		"new_value":  "In Progress",
	})
	assert.Equal(t, Failure, rep.Reward)
	assert.False(t, rep.OK())
	assert.Equal(t, "Error: NotFoundError: value 'Project-999' not found under header 'Project Name'", rep.Feedback)
	assert.Empty(t, rep.TargetCell)
	assert.Nil(t, rep.ExpectedCellValue)
}

func TestEvaluate_Feedback(t *testing.T) {
	tests := []struct {
		name   string
		fn     string
		params map[string]any
		want   string
	}{
		{"write cell", "excel_write_cell", map[string]any{"row_index": 2, "col_index": "B", "text": "In Progress"},
			"Success: Cell B2 now contains 'In Progress'"},
		{"add row", "excel_add_row", map[string]any{"row_index": "next_available", "text": "Project-789"},
			"Success: New row inserted at position 4. Cell A4 now contains 'Project-789'"},
		{"write row", "excel_write_row", map[string]any{"row_index": 4, "row_data": []any{"P", nil, 3}},
			"Success: Data written to row 4. Values: column A: 'P', column C: '3'"},
		{"clear cell", "excel_clear_cell", map[string]any{"row_index": 2, "col_index": 3},
			"Success: Content cleared from C2"},
		{"clear row", "excel_clear_row", map[string]any{"row_index": 3},
			"Success: Row 3 deleted. Original values: 'Project-456', 'Done', '750'"},
		{"clear column", "excel_clear_column", map[string]any{"col_index": "c"},
			"Success: Column C (index 3) deleted. Original values: 'Budget', '5000', '750'"},
		{"read header", "excel_read_header_row", nil,
			"Success: Header row read successfully. Headers found: 'Project Name', 'Status', 'Budget'"},
		{"read column", "excel_read_column", map[string]any{"col_index": 2},
			"Success: Column B read successfully. Values: row 1: 'Status', row 2: 'Planning', row 3: 'Done'"},
		{"read cell", "excel_read_cell", map[string]any{"row_index": 3, "col_index": "C"},
			"Success: Read value '750' from C3"},
		{"read empty cell", "excel_read_cell", map[string]any{"row_index": 9, "col_index": "C"},
			"Success: Read value nothing from C9"},
		{"read row", "excel_read_row", map[string]any{"row_index": 2},
			"Success: Row 2 read successfully. Values: column A: 'Project-123', column B: 'Planning', column C: '5000'"},
		{"column index", "excel_get_column_index_by_header", map[string]any{"header_name": "Budget"},
			"Success: Column index found by header 'Budget'. Result: 3"},
		{"row index", "excel_get_row_index_by_value", map[string]any{"col_index": "A", "search_value": "Project-456"},
			"Success: Row index found by value 'Project-456'. Result: 3"},
		{"clear sheet", "excel_clear_sheet", nil,
			"Success: Sheet cleared. Removed all data (3 rows by 3 columns)"},
		{"unknown function", "excel_sort", nil,
			"Error: ValidationError: unknown function 'excel_sort'"},
		{"range error", "excel_clear_row", map[string]any{"row_index": 10},
			"Error: RangeError: row 10 is out of range (sheet has 3 rows)"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rep := run(t, projectStore(), tt.fn, tt.params)
			assert.Equal(t, tt.want, rep.Feedback)
		})
	}
}

func TestEvaluate_IsDeterministic(t *testing.T) {
	out := command.NewDispatcher(projectStore()).Execute(command.MustNew("excel_read_row", map[string]any{"row_index": 2}))
	assert.Equal(t, Evaluate(out), Evaluate(out))
}

func TestEvaluate_EmptyOutcomeIsFailure(t *testing.T) {
	rep := Evaluate(command.Outcome{})
	assert.Equal(t, Failure, rep.Reward)
	assert.Equal(t, "Error: ValidationError: command produced no result", rep.Feedback)
	assert.Empty(t, rep.TargetCell)
}
