package internal

import (
	"fmt"
)

// CellChange is one cell whose value differs between two grids.
type CellChange[T any] struct {
	Row, Col int
	Ref      string
	Before   T
	After    T
}

// DiffGrids compares two grids cell-by-cell and returns the changed cells in
// row-major order. Missing cells on either side compare as zero, so a grid
// that only grew with zero values reports no changes. The second return value
// is the number of cells in the union of both extents.
func DiffGrids[T comparable](before, after [][]T) ([]CellChange[T], int) {
	rows := max(len(before), len(after))
	cols := 0
	for _, r := range before {
		cols = max(cols, len(r))
	}
	for _, r := range after {
		cols = max(cols, len(r))
	}

	var changes []CellChange[T]
	for r := 0; r < rows; r++ {
		for c := 0; c < cols; c++ {
			b := at(before, r, c)
			a := at(after, r, c)
			if a != b {
				changes = append(changes, CellChange[T]{
					Row:    r + 1,
					Col:    c + 1,
					Ref:    FormatRef(r+1, c+1),
					Before: b,
					After:  a,
				})
			}
		}
	}
	return changes, rows * cols
}

func at[T any](grid [][]T, r, c int) T {
	var zero T
	if r >= len(grid) || c >= len(grid[r]) {
		return zero
	}
	return grid[r][c]
}

// FormatDiffSummary returns a human-readable diff summary string.
func FormatDiffSummary(changed, total int) string {
	if changed == 0 {
		return "diff: no changes"
	}
	if total <= 0 {
		return fmt.Sprintf("diff: %d cells changed", changed)
	}
	pct := float64(changed) / float64(total) * 100
	if pct < 0.1 {
		return fmt.Sprintf("diff: %d cells changed (<0.1%%)", changed)
	}
	return fmt.Sprintf("diff: %d cells changed (%.1f%%)", changed, pct)
}
