package sheet

import (
	"github.com/witanlabs/gridcmd/internal"
)

// Sheet limits of the .xlsx format. The store itself is unbounded; the
// command boundary rejects indices past these.
const (
	MaxRows    = 1048576
	MaxColumns = 16384
)

// ColumnLetter converts a 1-based column index to its letters (1 → "A",
// 27 → "AA").
func ColumnLetter(n int) (string, error) {
	if err := checkCol(n); err != nil {
		return "", err
	}
	return internal.ColToLetter(n), nil
}

// ColumnIndex converts column letters, case-insensitively, to a 1-based
// index ("a" → 1, "AA" → 27).
func ColumnIndex(letters string) (int, error) {
	n, err := internal.LetterToCol(letters)
	if err != nil {
		return 0, Wrap(KindValidation, err, "invalid column letters")
	}
	return n, nil
}

// CellRef formats a cell reference such as "B2".
func CellRef(row, col int) string {
	return internal.FormatRef(row, col)
}
