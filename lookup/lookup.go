// Package lookup turns human-style references ("the row where Project Name
// is X, column Status") into concrete cell addresses.
package lookup

import (
	"github.com/witanlabs/gridcmd/sheet"
)

// firstDataRow is the first row scanned for lookup values; row 1 holds headers.
const firstDataRow = 2

// Target is a resolved cell.
type Target struct {
	Row int    `json:"row"`
	Col int    `json:"col"`
	Ref string `json:"ref"`
}

// Update is the verified result of a lookup-based write.
type Update struct {
	Target
	Previous sheet.Value `json:"previous"`
	// Expected is re-read from the store after the write.
	Expected sheet.Value `json:"expected_cell_value"`
}

// Resolver resolves header names and lookup values against one store.
type Resolver struct {
	store *sheet.Store
}

// New returns a resolver over store.
func New(store *sheet.Store) *Resolver {
	return &Resolver{store: store}
}

// RowIndexByValue returns the first row, starting at row 1, whose cell in
// col exactly equals value. Equality is type-sensitive.
func (r *Resolver) RowIndexByValue(col int, value sheet.Value) (int, error) {
	return r.rowIndexFrom(col, 1, value)
}

func (r *Resolver) rowIndexFrom(col, start int, value sheet.Value) (int, error) {
	column, err := r.store.Column(col)
	if err != nil {
		return 0, err
	}
	for row := start; row <= len(column); row++ {
		if column[row-1].Equal(value) {
			return row, nil
		}
	}
	letter, _ := sheet.ColumnLetter(col)
	return 0, sheet.Errorf(sheet.KindNotFound, "value '%s' not found in column %s", value, letter)
}

// Resolve finds the cell at the intersection of the first data row whose
// rowHeader column equals rowValue and the column headed colHeader.
func (r *Resolver) Resolve(rowHeader string, rowValue sheet.Value, colHeader string) (Target, error) {
	keyCol, err := r.store.ColumnIndexByHeader(rowHeader)
	if err != nil {
		return Target{}, err
	}
	row, err := r.rowIndexFrom(keyCol, firstDataRow, rowValue)
	if sheet.IsKind(err, sheet.KindNotFound) {
		return Target{}, sheet.Errorf(sheet.KindNotFound, "value '%s' not found under header '%s'", rowValue, rowHeader)
	}
	if err != nil {
		return Target{}, err
	}
	col, err := r.store.ColumnIndexByHeader(colHeader)
	if err != nil {
		return Target{}, err
	}
	return Target{Row: row, Col: col, Ref: sheet.CellRef(row, col)}, nil
}

// UpdateCell resolves the target cell, writes value, and reads the cell back
// so the reported value is the stored one.
func (r *Resolver) UpdateCell(rowHeader string, rowValue sheet.Value, colHeader string, value sheet.Value) (Update, error) {
	target, err := r.Resolve(rowHeader, rowValue, colHeader)
	if err != nil {
		return Update{}, err
	}
	previous, err := r.store.Cell(target.Row, target.Col)
	if err != nil {
		return Update{}, err
	}
	if err := r.store.SetCell(target.Row, target.Col, value); err != nil {
		return Update{}, err
	}
	expected, err := r.store.Cell(target.Row, target.Col)
	if err != nil {
		return Update{}, err
	}
	return Update{Target: target, Previous: previous, Expected: expected}, nil
}
