package workbook

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// Format is the container format detected from a file's leading bytes.
type Format int

const (
	FormatUnknown Format = iota
	FormatOLE2           // Binary .xls (magic: d0cf11e0a1b11ae1)
	FormatOOXML          // ZIP-based .xlsx (magic: 504b0304)
)

func (f Format) String() string {
	switch f {
	case FormatOLE2:
		return "OLE2"
	case FormatOOXML:
		return "OOXML"
	default:
		return "unknown"
	}
}

// DetectFormat reads the first bytes of a file and returns the detected format.
func DetectFormat(path string) (Format, error) {
	f, err := os.Open(path)
	if err != nil {
		return FormatUnknown, err
	}
	defer f.Close()

	buf := make([]byte, 8)
	n, err := io.ReadFull(f, buf)
	if err != nil && err != io.ErrUnexpectedEOF && err != io.EOF {
		return FormatUnknown, err
	}
	return detect(buf[:n]), nil
}

func detect(head []byte) Format {
	if len(head) < 4 {
		return FormatUnknown
	}
	// OLE2 Compound Document: d0 cf 11 e0
	if head[0] == 0xd0 && head[1] == 0xcf && head[2] == 0x11 && head[3] == 0xe0 {
		return FormatOLE2
	}
	// ZIP (OOXML): PK\x03\x04
	if head[0] == 0x50 && head[1] == 0x4b && head[2] == 0x03 && head[3] == 0x04 {
		return FormatOOXML
	}
	return FormatUnknown
}

// FixExtension renames a workbook whose extension disagrees with its content
// (.xls holding OOXML, or .xlsx holding OLE2) and returns the new path.
// Other files are returned unchanged with renamed false.
func FixExtension(path string) (newPath string, renamed bool, err error) {
	ext := strings.ToLower(filepath.Ext(path))
	if ext != ".xls" && ext != ".xlsx" {
		return path, false, nil
	}

	format, err := DetectFormat(path)
	if err != nil {
		return path, false, err
	}

	switch {
	case ext == ".xls" && format == FormatOOXML:
		newPath = path + "x"
	case ext == ".xlsx" && format == FormatOLE2:
		newPath = strings.TrimSuffix(path, filepath.Ext(path)) + ".xls"
	default:
		return path, false, nil
	}

	// Don't silently overwrite an existing file
	if _, err := os.Stat(newPath); err == nil {
		return "", false, fmt.Errorf("cannot rename %s to %s: target already exists", filepath.Base(path), filepath.Base(newPath))
	}
	if err := os.Rename(path, newPath); err != nil {
		return "", false, fmt.Errorf("renaming %s: %w", filepath.Base(path), err)
	}
	return newPath, true, nil
}
