// Package workbook loads and saves a sheet.Store as one worksheet of an
// .xlsx file.
package workbook

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"

	"github.com/xuri/excelize/v2"

	"github.com/witanlabs/gridcmd/sheet"
)

// DefaultSheet is the worksheet written when no name is configured.
const DefaultSheet = "Sheet1"

// ErrLegacyFormat is returned for binary OLE2 .xls workbooks.
var ErrLegacyFormat = errors.New("legacy .xls (OLE2) workbooks are not supported; re-save as .xlsx")

// Options selects the worksheet. An empty Sheet reads the active sheet and
// writes DefaultSheet.
type Options struct {
	Sheet string
}

func (o Options) writeSheet() string {
	if o.Sheet == "" {
		return DefaultSheet
	}
	return o.Sheet
}

// Load reads path into a store. A missing file yields an empty store so a
// session can start from nothing.
func Load(path string, opts Options) (*sheet.Store, error) {
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return sheet.New(), nil
	}
	format, err := DetectFormat(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", filepath.Base(path), err)
	}
	if format == FormatOLE2 {
		return nil, ErrLegacyFormat
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	store, err := Read(f, opts)
	if err != nil {
		return nil, fmt.Errorf("loading %s: %w", filepath.Base(path), err)
	}
	return store, nil
}

// Read parses an .xlsx stream.
func Read(r io.Reader, opts Options) (*sheet.Store, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("opening workbook: %w", err)
	}
	defer f.Close()

	name := opts.Sheet
	if name == "" {
		name = f.GetSheetName(f.GetActiveSheetIndex())
	} else if idx, err := f.GetSheetIndex(name); err != nil || idx < 0 {
		return nil, fmt.Errorf("sheet %q not found in workbook", name)
	}

	rows, err := f.GetRows(name, excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, fmt.Errorf("reading sheet %q: %w", name, err)
	}
	out := make([][]sheet.Value, len(rows))
	for i, row := range rows {
		vals := make([]sheet.Value, len(row))
		for j, raw := range row {
			if raw == "" {
				continue
			}
			ref, err := excelize.CoordinatesToCellName(j+1, i+1)
			if err != nil {
				return nil, err
			}
			typ, err := f.GetCellType(name, ref)
			if err != nil {
				return nil, fmt.Errorf("reading %s!%s: %w", name, ref, err)
			}
			vals[j] = cellValue(raw, typ)
		}
		out[i] = vals
	}
	return sheet.FromRows(out), nil
}

// cellValue maps a raw cell to a Value. Numbers written without an explicit
// type attribute report CellTypeUnset.
func cellValue(raw string, typ excelize.CellType) sheet.Value {
	switch typ {
	case excelize.CellTypeUnset, excelize.CellTypeNumber:
		if n, err := strconv.ParseFloat(raw, 64); err == nil {
			return sheet.Number(n)
		}
	case excelize.CellTypeBool:
		if raw == "1" {
			return sheet.Text("TRUE")
		}
		return sheet.Text("FALSE")
	}
	return sheet.Text(raw)
}

// Write encodes store as an .xlsx workbook with a single worksheet.
func Write(w io.Writer, store *sheet.Store, opts Options) error {
	f := excelize.NewFile()
	defer f.Close()

	name := opts.writeSheet()
	if name != DefaultSheet {
		if err := f.SetSheetName(DefaultSheet, name); err != nil {
			return fmt.Errorf("naming sheet %q: %w", name, err)
		}
	}
	for i, row := range store.Rows() {
		for j, v := range row {
			if v.IsEmpty() {
				continue
			}
			ref, err := excelize.CoordinatesToCellName(j+1, i+1)
			if err != nil {
				return err
			}
			var cell any = v.String()
			if n, ok := v.Float(); ok {
				cell = n
			}
			if err := f.SetCellValue(name, ref, cell); err != nil {
				return fmt.Errorf("writing %s!%s: %w", name, ref, err)
			}
		}
	}
	return f.Write(w)
}

// Save writes store to path atomically via a temp file and rename. With no
// sheet configured, an existing file keeps its active sheet's name.
func Save(path string, store *sheet.Store, opts Options) error {
	if opts.Sheet == "" {
		opts.Sheet = ActiveSheet(path)
	}
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".gridcmd-*.xlsx")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName) // no-op after successful rename

	if err := Write(tmp, store, opts); err != nil {
		tmp.Close()
		return fmt.Errorf("writing workbook: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("closing temp file: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("saving %s: %w", filepath.Base(path), err)
	}
	return nil
}

// ActiveSheet names the active worksheet of the .xlsx at path, or "" if
// there is no readable workbook there.
func ActiveSheet(path string) string {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return ""
	}
	defer f.Close()
	return f.GetSheetName(f.GetActiveSheetIndex())
}
