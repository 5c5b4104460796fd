package internal

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// cellRefRe matches a cell reference like A1, $B$2, AA100
var cellRefRe = regexp.MustCompile(`^\$?([A-Z]+)\$?(\d+)$`)

// columnLettersRe matches a bare column reference like A, zz, $AB
var columnLettersRe = regexp.MustCompile(`^\$?([A-Z]+)$`)

// ParseRange parses a range like "A1:C3" (an optional "Sheet!" prefix is
// accepted and discarded) and returns (startRow, startCol, endRow, endCol)
// in 1-indexed form.
func ParseRange(address string) (startRow, startCol, endRow, endCol int, err error) {
	if _, rangePart, hasSheet := strings.Cut(address, "!"); hasSheet {
		address = rangePart
	}

	fromRef, toRef, hasColon := strings.Cut(address, ":")
	if !hasColon {
		toRef = fromRef // single cell
	}

	startRow, startCol, err = ParseRef(fromRef)
	if err != nil {
		return 0, 0, 0, 0, fmt.Errorf("invalid start of range %q: %w", fromRef, err)
	}
	endRow, endCol, err = ParseRef(toRef)
	if err != nil {
		return 0, 0, 0, 0, fmt.Errorf("invalid end of range %q: %w", toRef, err)
	}

	// Normalize order
	if startRow > endRow {
		startRow, endRow = endRow, startRow
	}
	if startCol > endCol {
		startCol, endCol = endCol, startCol
	}

	return startRow, startCol, endRow, endCol, nil
}

// ColToLetter converts a 1-indexed column number to Excel letter(s).
// Non-positive input yields "".
func ColToLetter(col int) string {
	result := ""
	for col > 0 {
		col--
		result = string(rune('A'+col%26)) + result
		col /= 26
	}
	return result
}

// LetterToCol converts column letters (case-insensitive) to a 1-indexed
// column number.
func LetterToCol(letters string) (int, error) {
	m := columnLettersRe.FindStringSubmatch(strings.ToUpper(strings.TrimSpace(letters)))
	if m == nil {
		return 0, fmt.Errorf("invalid column letters %q", letters)
	}
	col := 0
	for _, c := range m[1] {
		col = col*26 + int(c-'A'+1)
		if col > maxColumnForParse {
			return 0, fmt.Errorf("column %q is out of range", letters)
		}
	}
	return col, nil
}

// maxColumnForParse bounds letter parsing so long inputs cannot overflow.
const maxColumnForParse = 1 << 40

// FormatRef builds a cell reference like "B2".
func FormatRef(row, col int) string {
	return ColToLetter(col) + strconv.Itoa(row)
}

// FormatRange builds a range string like "A1:Z50", collapsing single cells.
func FormatRange(startRow, startCol, endRow, endCol int) string {
	from := FormatRef(startRow, startCol)
	to := FormatRef(endRow, endCol)
	if from == to {
		return from
	}
	return from + ":" + to
}

// ParseRef parses a single cell reference like "B2" or "$b$2" and returns
// (row, col).
func ParseRef(ref string) (row, col int, err error) {
	ref = strings.ReplaceAll(strings.TrimSpace(ref), "$", "")
	m := cellRefRe.FindStringSubmatch(strings.ToUpper(ref))
	if m == nil {
		return 0, 0, fmt.Errorf("invalid cell reference %q", ref)
	}
	col, err = LetterToCol(m[1])
	if err != nil {
		return 0, 0, err
	}
	row, err = strconv.Atoi(m[2])
	if err != nil || row < 1 {
		return 0, 0, fmt.Errorf("invalid row in cell reference %q", ref)
	}
	return row, col, nil
}
