// Package sheet holds the in-memory single-sheet grid that commands operate
// on. Rows and columns are 1-based. A Store is owned by one caller and is not
// safe for concurrent use.
package sheet

import (
	"github.com/witanlabs/gridcmd/internal"
)

// Store is an ordered sequence of rows, each an ordered sequence of values.
// Rows may be ragged internally; every read pads them with empty values up
// to the widest row.
type Store struct {
	rows [][]Value
}

// New returns an empty store.
func New() *Store {
	return &Store{}
}

// FromRows returns a store holding a copy of rows.
func FromRows(rows [][]Value) *Store {
	s := &Store{rows: make([][]Value, len(rows))}
	for i, r := range rows {
		s.rows[i] = append([]Value(nil), r...)
	}
	return s
}

// FromStrings builds a store from display strings: "" becomes empty and
// everything else text.
func FromStrings(rows [][]string) *Store {
	s := &Store{rows: make([][]Value, len(rows))}
	for i, r := range rows {
		s.rows[i] = make([]Value, len(r))
		for j, cell := range r {
			if cell != "" {
				s.rows[i][j] = Text(cell)
			}
		}
	}
	return s
}

// RowCount returns the number of rows.
func (s *Store) RowCount() int {
	return len(s.rows)
}

// ColumnCount returns the length of the widest row.
func (s *Store) ColumnCount() int {
	w := 0
	for _, r := range s.rows {
		w = max(w, len(r))
	}
	return w
}

func checkRow(row int) error {
	if row < 1 {
		return Errorf(KindValidation, "row index must be a positive integer, got %d", row)
	}
	return nil
}

func checkCol(col int) error {
	if col < 1 {
		return Errorf(KindValidation, "column index must be a positive integer, got %d", col)
	}
	return nil
}

func checkCell(row, col int) error {
	if err := checkRow(row); err != nil {
		return err
	}
	return checkCol(col)
}

// Cell returns the value at (row, col). Reads beyond the current extents
// return the empty value.
func (s *Store) Cell(row, col int) (Value, error) {
	if err := checkCell(row, col); err != nil {
		return Value{}, err
	}
	if row > len(s.rows) || col > len(s.rows[row-1]) {
		return Empty(), nil
	}
	return s.rows[row-1][col-1], nil
}

// growRows appends empty rows until the store has at least n rows.
func (s *Store) growRows(n int) {
	for len(s.rows) < n {
		s.rows = append(s.rows, nil)
	}
}

// SetCell stores v at (row, col), growing the store as needed.
func (s *Store) SetCell(row, col int, v Value) error {
	if err := checkCell(row, col); err != nil {
		return err
	}
	s.growRows(row)
	r := s.rows[row-1]
	for len(r) < col {
		r = append(r, Empty())
	}
	r[col-1] = v
	s.rows[row-1] = r
	return nil
}

// WriteRow writes values into columns 1..len(values) of row, growing the
// store as needed. Cells past len(values) keep their contents.
func (s *Store) WriteRow(row int, values []Value) error {
	if err := checkRow(row); err != nil {
		return err
	}
	s.growRows(row)
	r := s.rows[row-1]
	for len(r) < len(values) {
		r = append(r, Empty())
	}
	copy(r, values)
	s.rows[row-1] = r
	return nil
}

// InsertRow inserts a new row at index row holding v in its first cell.
// Rows at or after that index shift down by one. Inserting past the end
// pads with empty rows first.
func (s *Store) InsertRow(row int, v Value) error {
	if err := checkRow(row); err != nil {
		return err
	}
	newRow := []Value{v}
	if row > len(s.rows) {
		s.growRows(row - 1)
		s.rows = append(s.rows, newRow)
		return nil
	}
	s.rows = append(s.rows, nil)
	copy(s.rows[row:], s.rows[row-1:])
	s.rows[row-1] = newRow
	return nil
}

// AppendRow adds a row holding v after the last existing row and returns its
// index. On an empty store that is row 1.
func (s *Store) AppendRow(v Value) int {
	s.rows = append(s.rows, []Value{v})
	return len(s.rows)
}

// ClearCell empties one cell in place. Nothing shifts and the store does not
// grow.
func (s *Store) ClearCell(row, col int) error {
	if err := checkCell(row, col); err != nil {
		return err
	}
	if row <= len(s.rows) && col <= len(s.rows[row-1]) {
		s.rows[row-1][col-1] = Empty()
	}
	return nil
}

// ClearRow deletes a row; every later row moves up by one.
func (s *Store) ClearRow(row int) error {
	if err := checkRow(row); err != nil {
		return err
	}
	if row > len(s.rows) {
		return Errorf(KindRange, "row %d is out of range (sheet has %d rows)", row, len(s.rows))
	}
	s.rows = append(s.rows[:row-1], s.rows[row:]...)
	return nil
}

// ClearColumn deletes a column from every row; every later column moves
// left by one. The row count does not change.
func (s *Store) ClearColumn(col int) error {
	if err := checkCol(col); err != nil {
		return err
	}
	if w := s.ColumnCount(); col > w {
		return Errorf(KindRange, "column %s (index %d) is out of range (sheet has %d columns)",
			internal.ColToLetter(col), col, w)
	}
	for i, r := range s.rows {
		if col <= len(r) {
			s.rows[i] = append(r[:col-1], r[col:]...)
		}
	}
	return nil
}

// ClearSheet removes every row.
func (s *Store) ClearSheet() {
	s.rows = nil
}

// Row returns row padded to the store width. Rows past the end read as an
// empty slice.
func (s *Store) Row(row int) ([]Value, error) {
	if err := checkRow(row); err != nil {
		return nil, err
	}
	if row > len(s.rows) {
		return []Value{}, nil
	}
	return s.padded(row-1, s.ColumnCount()), nil
}

// Column returns the values of col for rows 1..RowCount.
func (s *Store) Column(col int) ([]Value, error) {
	if err := checkCol(col); err != nil {
		return nil, err
	}
	out := make([]Value, len(s.rows))
	for i, r := range s.rows {
		if col <= len(r) {
			out[i] = r[col-1]
		}
	}
	return out, nil
}

// HeaderRow returns row 1 verbatim, padded to the store width.
func (s *Store) HeaderRow() []Value {
	if len(s.rows) == 0 {
		return []Value{}
	}
	return s.padded(0, s.ColumnCount())
}

// ColumnIndexByHeader returns the 1-based index of the first header cell
// whose text is exactly name.
func (s *Store) ColumnIndexByHeader(name string) (int, error) {
	want := Text(name)
	if len(s.rows) > 0 {
		for i, h := range s.rows[0] {
			if h == want {
				return i + 1, nil
			}
		}
	}
	return 0, Errorf(KindNotFound, "header '%s' not found", name)
}

// Rows returns a padded copy of the whole grid.
func (s *Store) Rows() [][]Value {
	w := s.ColumnCount()
	out := make([][]Value, len(s.rows))
	for i := range s.rows {
		out[i] = s.padded(i, w)
	}
	return out
}

// Clone returns an independent copy of the store.
func (s *Store) Clone() *Store {
	return FromRows(s.rows)
}

// Equal reports whether two stores hold the same cells and row count.
// Trailing padding does not count as a difference.
func (s *Store) Equal(o *Store) bool {
	if len(s.rows) != len(o.rows) {
		return false
	}
	w := max(s.ColumnCount(), o.ColumnCount())
	for i := range s.rows {
		a, b := s.padded(i, w), o.padded(i, w)
		for j := range a {
			if a[j] != b[j] {
				return false
			}
		}
	}
	return true
}

func (s *Store) padded(i, width int) []Value {
	out := make([]Value, width)
	copy(out, s.rows[i])
	return out
}
