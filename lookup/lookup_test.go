package lookup

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/witanlabs/gridcmd/sheet"
)

func projects() *sheet.Store {
	return sheet.FromRows([][]sheet.Value{
		{sheet.Text("Project Name"), sheet.Text("Status"), sheet.Text("Budget")},
		{sheet.Text("Project-123"), sheet.Text("Planning"), sheet.Number(5000)},
		{sheet.Text("Project-456"), sheet.Text("Done"), sheet.Number(123)},
		{sheet.Text("Project-123"), sheet.Text("Duplicate"), sheet.Empty()},
		{sheet.Number(123), sheet.Text("Numeric key"), sheet.Empty()},
	})
}

func TestResolve(t *testing.T) {
	tests := []struct {
		name      string
		rowHeader string
		rowValue  sheet.Value
		colHeader string
		want      Target
		wantKind  sheet.ErrorKind
		wantMsg   string
	}{
		{
			name:      "basic",
			rowHeader: "Project Name", rowValue: sheet.Text("Project-123"), colHeader: "Status",
			want: Target{Row: 2, Col: 2, Ref: "B2"},
		},
		{
			name:      "first match wins",
			rowHeader: "Project Name", rowValue: sheet.Text("Project-123"), colHeader: "Budget",
			want: Target{Row: 2, Col: 3, Ref: "C2"},
		},
		{
			name:      "numeric lookup matches numeric cell only",
			rowHeader: "Project Name", rowValue: sheet.Number(123), colHeader: "Status",
			want: Target{Row: 5, Col: 2, Ref: "B5"},
		},
		{
			name:      "header row is never matched",
			rowHeader: "Project Name", rowValue: sheet.Text("Project Name"), colHeader: "Status",
			wantKind: sheet.KindNotFound, wantMsg: "Project Name",
		},
		{
			name:      "missing value",
			rowHeader: "Project Name", rowValue: sheet.Text("Project-999"), colHeader: "Status",
			wantKind: sheet.KindNotFound, wantMsg: "Project-999",
		},
		{
			name:      "missing row header",
			rowHeader: "Name", rowValue: sheet.Text("Project-123"), colHeader: "Status",
			wantKind: sheet.KindNotFound, wantMsg: "header 'Name'",
		},
		{
			name:      "missing column header",
			rowHeader: "Project Name", rowValue: sheet.Text("Project-123"), colHeader: "Owner",
			wantKind: sheet.KindNotFound, wantMsg: "header 'Owner'",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := New(projects()).Resolve(tt.rowHeader, tt.rowValue, tt.colHeader)
			if tt.wantKind != "" {
				require.Error(t, err)
				assert.Equal(t, tt.wantKind, sheet.KindOf(err))
				assert.Contains(t, err.Error(), tt.wantMsg)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestRowIndexByValue(t *testing.T) {
	r := New(projects())
	row, err := r.RowIndexByValue(2, sheet.Text("Done"))
	require.NoError(t, err)
	assert.Equal(t, 3, row)

	row, err = r.RowIndexByValue(2, sheet.Text("Status"))
	require.NoError(t, err)
	assert.Equal(t, 1, row, "header row is searched too")

	_, err = r.RowIndexByValue(2, sheet.Text("Cancelled"))
	assert.True(t, sheet.IsKind(err, sheet.KindNotFound))
	assert.Contains(t, err.Error(), "column B")

	_, err = r.RowIndexByValue(0, sheet.Text("Done"))
	assert.True(t, sheet.IsKind(err, sheet.KindValidation))
}

func TestUpdateCell_ReportsStoredValue(t *testing.T) {
	store := projects()
	u, err := New(store).UpdateCell("Project Name", sheet.Text("Project-123"), "Status", sheet.Text("In Progress"))
	require.NoError(t, err)

	assert.Equal(t, "B2", u.Ref)
	assert.Equal(t, sheet.Text("Planning"), u.Previous)
	assert.Equal(t, sheet.Text("In Progress"), u.Expected)

	v, err := store.Cell(2, 2)
	require.NoError(t, err)
	assert.Equal(t, u.Expected, v)
}

func TestUpdateCell_FailureLeavesStoreUnchanged(t *testing.T) {
	store := projects()
	before := store.Clone()

	_, err := New(store).UpdateCell("Project Name", sheet.Text("Project-999"), "Status", sheet.Text("x"))
	require.Error(t, err)
	assert.True(t, store.Equal(before))
}
