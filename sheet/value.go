package sheet

import (
	"bytes"
	"encoding/json"
	"math"
	"strconv"
	"strings"
)

// Kind is the type tag of a cell value.
type Kind uint8

const (
	KindEmpty Kind = iota
	KindText
	KindNumber
)

func (k Kind) String() string {
	switch k {
	case KindText:
		return "text"
	case KindNumber:
		return "number"
	default:
		return "empty"
	}
}

// Value is a single cell: text, a number, or empty. The zero Value is empty.
// Values are comparable; == is exact, type-sensitive equality.
type Value struct {
	kind Kind
	text string
	num  float64
}

// Empty returns the empty-marker value.
func Empty() Value { return Value{} }

// Text returns a text value. Text("") is a text value holding an empty
// string, which is distinct from Empty().
func Text(s string) Value { return Value{kind: KindText, text: s} }

// Number returns a numeric value.
func Number(f float64) Value { return Value{kind: KindNumber, num: f} }

// Kind returns the value's type tag.
func (v Value) Kind() Kind { return v.kind }

// IsEmpty reports whether v is the empty-marker.
func (v Value) IsEmpty() bool { return v.kind == KindEmpty }

// Float returns the numeric payload and whether v is a number.
func (v Value) Float() (float64, bool) { return v.num, v.kind == KindNumber }

// Equal reports exact, type-sensitive equality: Number(5) does not equal
// Text("5").
func (v Value) Equal(o Value) bool { return v == o }

// String renders the value the way a spreadsheet displays it. Empty renders
// as "".
func (v Value) String() string {
	switch v.kind {
	case KindText:
		return v.text
	case KindNumber:
		return strconv.FormatFloat(v.num, 'f', -1, 64)
	default:
		return ""
	}
}

// ParseValue infers a value from user-typed text: "" is empty, anything that
// parses as a finite number is a number, and the rest is text.
func ParseValue(s string) Value {
	if s == "" {
		return Empty()
	}
	if f, err := strconv.ParseFloat(strings.TrimSpace(s), 64); err == nil && !math.IsInf(f, 0) && !math.IsNaN(f) {
		return Number(f)
	}
	return Text(s)
}

// Strings converts values to their display strings.
func Strings(values []Value) []string {
	out := make([]string, len(values))
	for i, v := range values {
		out[i] = v.String()
	}
	return out
}

func (v Value) MarshalJSON() ([]byte, error) {
	switch v.kind {
	case KindText:
		return json.Marshal(v.text)
	case KindNumber:
		return json.Marshal(v.num)
	default:
		return []byte("null"), nil
	}
}

func (v *Value) UnmarshalJSON(data []byte) error {
	parsed, err := ValueFromJSON(data)
	if err != nil {
		return err
	}
	*v = parsed
	return nil
}

// ValueFromJSON decodes one JSON scalar into a Value: null is empty, strings
// are text, numbers are numbers. Booleans, arrays and objects are rejected
// with a TypeMismatch error.
func ValueFromJSON(raw []byte) (Value, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return Value{}, Errorf(KindValidation, "missing value")
	}
	switch raw[0] {
	case 'n':
		if string(raw) == "null" {
			return Empty(), nil
		}
	case '"':
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return Value{}, Wrap(KindValidation, err, "invalid string value")
		}
		return Text(s), nil
	case 't', 'f':
		return Value{}, Errorf(KindTypeMismatch, "boolean %s is not a supported cell value (use text or a number)", raw)
	case '[':
		return Value{}, Errorf(KindTypeMismatch, "array is not a supported cell value")
	case '{':
		return Value{}, Errorf(KindTypeMismatch, "object is not a supported cell value")
	default:
		var f float64
		if err := json.Unmarshal(raw, &f); err == nil {
			return Number(f), nil
		}
	}
	return Value{}, Errorf(KindValidation, "invalid value %s", raw)
}
