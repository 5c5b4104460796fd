// Package command parses structured JSON commands, validates them against a
// closed schema table and dispatches them to a sheet.Store.
package command

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/witanlabs/gridcmd/sheet"
)

// Name is one of the closed set of operation names.
type Name string

const (
	ClearSheet             Name = "excel_clear_sheet"
	AddRow                 Name = "excel_add_row"
	WriteCell              Name = "excel_write_cell"
	WriteRow               Name = "excel_write_row"
	ClearCell              Name = "excel_clear_cell"
	ClearRow               Name = "excel_clear_row"
	ClearColumn            Name = "excel_clear_column"
	ReadHeaderRow          Name = "excel_read_header_row"
	ReadColumn             Name = "excel_read_column"
	ReadCell               Name = "excel_read_cell"
	ReadRow                Name = "excel_read_row"
	GetColumnIndexByHeader Name = "excel_get_column_index_by_header"
	GetRowIndexByValue     Name = "excel_get_row_index_by_value"
	UpdateCellByLookup     Name = "excel_update_cell_by_lookup"
)

// namePrefix is the prefix of every canonical name. Callers may omit it.
const namePrefix = "excel_"

// NextAvailable is the row_index sentinel accepted by excel_add_row.
const NextAvailable = "next_available"

// Command is a raw command as it arrives on the wire.
type Command struct {
	FunctionName string                     `json:"function_name"`
	Parameters   map[string]json.RawMessage `json:"parameters,omitempty"`
}

// Parse decodes a JSON command. Malformed input and a missing function_name
// are ValidationErrors.
func Parse(data []byte) (Command, error) {
	var cmd Command
	dec := json.NewDecoder(bytes.NewReader(data))
	if err := dec.Decode(&cmd); err != nil {
		return Command{}, sheet.Wrap(sheet.KindValidation, err, "invalid JSON command")
	}
	if cmd.FunctionName == "" {
		return Command{}, sheet.Errorf(sheet.KindValidation, "command is missing 'function_name'")
	}
	return cmd, nil
}

// New builds a command from Go values, marshaling each parameter.
func New(name string, params map[string]any) (Command, error) {
	cmd := Command{FunctionName: name}
	if len(params) > 0 {
		cmd.Parameters = make(map[string]json.RawMessage, len(params))
	}
	for k, v := range params {
		raw, err := json.Marshal(v)
		if err != nil {
			return Command{}, fmt.Errorf("marshaling parameter %q: %w", k, err)
		}
		cmd.Parameters[k] = raw
	}
	return cmd, nil
}

// MustNew is New for literal parameters known to marshal.
func MustNew(name string, params map[string]any) Command {
	cmd, err := New(name, params)
	if err != nil {
		panic(err)
	}
	return cmd
}

// JSON returns the compact wire form of the command.
func (c Command) JSON() string {
	data, err := json.Marshal(c)
	if err != nil {
		return ""
	}
	return string(data)
}

// Lookup maps a function name, with or without the "excel_" prefix, to its
// canonical Name.
func Lookup(functionName string) (Name, bool) {
	name := Name(functionName)
	if _, ok := operations[name]; ok {
		return name, true
	}
	if !strings.HasPrefix(functionName, namePrefix) {
		name = Name(namePrefix + functionName)
		if _, ok := operations[name]; ok {
			return name, true
		}
	}
	return "", false
}

// Names lists every canonical operation name, sorted.
func Names() []Name {
	out := make([]Name, 0, len(operations))
	for n := range operations {
		out = append(out, n)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Mutates reports whether the named operation changes the store.
func (n Name) Mutates() bool {
	return operations[n].mutates
}

// Params lists the parameter names the operation requires, in schema order.
func (n Name) Params() []string {
	op := operations[n]
	out := make([]string, len(op.params))
	for i, p := range op.params {
		out[i] = p.name
	}
	return out
}
