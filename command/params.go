package command

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	"github.com/witanlabs/gridcmd/internal"
	"github.com/witanlabs/gridcmd/sheet"
)

// paramKind is the union of input forms one parameter accepts.
type paramKind int

const (
	rowParam       paramKind = iota // integer or digit string
	rowOrNextParam                  // rowParam or "next_available"
	colParam                        // integer, digit string or letters
	cellParam                       // string, number or null
	lookupParam                     // string or number
	listParam                       // array of cellParam
	headerParam                     // non-empty string
)

type param struct {
	name string
	kind paramKind
}

// Call is a validated command with every parameter in canonical form.
type Call struct {
	Name Name `json:"function_name"`

	// Row is 0 when NextAvailable is set.
	Row           int           `json:"row,omitempty"`
	NextAvailable bool          `json:"next_available,omitempty"`
	Col           int           `json:"col,omitempty"`
	Value         sheet.Value   `json:"value"`
	Values        []sheet.Value `json:"values,omitempty"`
	Header        string        `json:"header_name,omitempty"`
	RowHeader     string        `json:"row_header,omitempty"`
	ColHeader     string        `json:"col_header,omitempty"`
	Lookup        sheet.Value   `json:"lookup"`
}

// Validate checks cmd against the schema table and normalizes it. It never
// touches a store.
func Validate(cmd Command) (Call, error) {
	name, ok := Lookup(cmd.FunctionName)
	if !ok {
		return Call{}, sheet.Errorf(sheet.KindValidation, "unknown function '%s'", cmd.FunctionName)
	}
	call := Call{Name: name}
	for _, p := range operations[name].params {
		raw, ok := cmd.Parameters[p.name]
		if !ok {
			return Call{}, sheet.Errorf(sheet.KindValidation, "missing required parameter '%s' for %s", p.name, name)
		}
		if err := bind(&call, p, raw); err != nil {
			return Call{}, err
		}
	}
	return call, nil
}

func bind(call *Call, p param, raw json.RawMessage) error {
	switch p.kind {
	case rowParam, rowOrNextParam:
		row, next, err := parseRow(p.name, raw, p.kind == rowOrNextParam)
		if err != nil {
			return err
		}
		call.Row, call.NextAvailable = row, next
	case colParam:
		col, err := parseCol(p.name, raw)
		if err != nil {
			return err
		}
		call.Col = col
	case cellParam:
		v, err := parseCell(p.name, raw)
		if err != nil {
			return err
		}
		call.Value = v
	case lookupParam:
		v, err := parseLookup(p.name, raw)
		if err != nil {
			return err
		}
		call.Lookup = v
	case listParam:
		vs, err := parseList(p.name, raw)
		if err != nil {
			return err
		}
		call.Values = vs
	case headerParam:
		h, err := parseHeader(p.name, raw)
		if err != nil {
			return err
		}
		switch p.name {
		case "row_header":
			call.RowHeader = h
		case "col_header":
			call.ColHeader = h
		default:
			call.Header = h
		}
	}
	return nil
}

// decodeScalar decodes raw keeping numbers as json.Number.
func decodeScalar(raw json.RawMessage) (any, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, err
	}
	return v, nil
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

func parseRow(name string, raw json.RawMessage, allowNext bool) (int, bool, error) {
	invalid := func() error {
		if allowNext {
			return sheet.Errorf(sheet.KindValidation, "invalid %s: %s. Must be a positive integer or '%s'", name, raw, NextAvailable)
		}
		return sheet.Errorf(sheet.KindValidation, "invalid %s: %s. Must be a positive integer", name, raw)
	}
	v, err := decodeScalar(raw)
	if err != nil {
		return 0, false, invalid()
	}
	var n int64
	switch t := v.(type) {
	case json.Number:
		n, err = t.Int64()
		if err != nil {
			return 0, false, invalid()
		}
	case string:
		if allowNext && t == NextAvailable {
			return 0, true, nil
		}
		if !isDigits(t) {
			return 0, false, invalid()
		}
		n, err = strconv.ParseInt(t, 10, 64)
		if err != nil {
			return 0, false, invalid()
		}
	default:
		return 0, false, invalid()
	}
	if n < 1 {
		return 0, false, invalid()
	}
	if n > sheet.MaxRows {
		return 0, false, sheet.Errorf(sheet.KindValidation, "invalid %s: %d exceeds the sheet limit of %d rows", name, n, sheet.MaxRows)
	}
	return int(n), false, nil
}

func parseCol(name string, raw json.RawMessage) (int, error) {
	invalid := func() error {
		return sheet.Errorf(sheet.KindValidation, "invalid %s: %s. Must be a positive integer or column letters", name, raw)
	}
	v, err := decodeScalar(raw)
	if err != nil {
		return 0, invalid()
	}
	var n int64
	switch t := v.(type) {
	case json.Number:
		n, err = t.Int64()
		if err != nil {
			return 0, invalid()
		}
	case string:
		if isDigits(t) {
			n, err = strconv.ParseInt(t, 10, 64)
			if err != nil {
				return 0, invalid()
			}
			break
		}
		col, err := internal.LetterToCol(t)
		if err != nil {
			return 0, invalid()
		}
		n = int64(col)
	default:
		return 0, invalid()
	}
	if n < 1 {
		return 0, invalid()
	}
	if n > sheet.MaxColumns {
		return 0, sheet.Errorf(sheet.KindValidation, "invalid %s: %s exceeds the sheet limit of %d columns (XFD)", name, raw, sheet.MaxColumns)
	}
	return int(n), nil
}

func parseCell(name string, raw json.RawMessage) (sheet.Value, error) {
	v, err := sheet.ValueFromJSON(raw)
	if err != nil {
		return sheet.Value{}, qualify(err, name)
	}
	return v, nil
}

func parseLookup(name string, raw json.RawMessage) (sheet.Value, error) {
	v, err := parseCell(name, raw)
	if err != nil {
		return sheet.Value{}, err
	}
	if v.IsEmpty() {
		return sheet.Value{}, sheet.Errorf(sheet.KindValidation, "invalid %s: must be a string or a number", name)
	}
	return v, nil
}

func parseList(name string, raw json.RawMessage) ([]sheet.Value, error) {
	var items []json.RawMessage
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || trimmed[0] != '[' {
		return nil, sheet.Errorf(sheet.KindValidation, "invalid %s: must be an array of values", name)
	}
	if err := json.Unmarshal(trimmed, &items); err != nil {
		return nil, sheet.Wrap(sheet.KindValidation, err, "invalid "+name)
	}
	out := make([]sheet.Value, len(items))
	for i, item := range items {
		v, err := sheet.ValueFromJSON(item)
		if err != nil {
			return nil, qualify(err, fmt.Sprintf("%s[%d]", name, i))
		}
		out[i] = v
	}
	return out, nil
}

// qualify prefixes a value error with the parameter it came from, keeping
// its kind.
func qualify(err error, name string) error {
	var se *sheet.Error
	if !errors.As(err, &se) {
		return sheet.Wrap(sheet.KindValidation, err, "invalid "+name)
	}
	return sheet.Errorf(se.Kind, "invalid %s: %s", name, se.Message)
}

func parseHeader(name string, raw json.RawMessage) (string, error) {
	var s string
	if err := json.Unmarshal(raw, &s); err != nil || s == "" {
		return "", sheet.Errorf(sheet.KindValidation, "invalid %s: must be a non-empty string", name)
	}
	return s, nil
}
