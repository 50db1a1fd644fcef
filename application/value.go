package application

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// Value is an optional scalar from the API. The backend is loose about
// types (ids and counts arrive as numbers or strings, flags as 0/1 or
// booleans), so Value keeps the textual form and remembers whether the field
// was present and non-null.
type Value struct {
	text  string
	valid bool
}

// V returns a present value
func V(s string) Value {
	return Value{text: s, valid: true}
}

// Null returns an absent value
func Null() Value {
	return Value{}
}

// UnmarshalJSON accepts strings, numbers, booleans and null
func (v *Value) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*v = Value{}
		return nil
	}

	switch data[0] {
	case '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*v = V(s)
	case 't', 'f':
		var b bool
		if err := json.Unmarshal(data, &b); err != nil {
			return err
		}
		*v = V(strconv.FormatBool(b))
	default:
		var n json.Number
		if err := json.Unmarshal(data, &n); err != nil {
			return fmt.Errorf("unsupported value %s", data)
		}
		*v = V(n.String())
	}
	return nil
}

// MarshalJSON writes the value as a string, or null when absent
func (v Value) MarshalJSON() ([]byte, error) {
	if !v.valid {
		return []byte("null"), nil
	}
	return json.Marshal(v.text)
}

// Valid reports whether the field was present and not null
func (v Value) Valid() bool {
	return v.valid
}

// Available reports whether the value carries displayable text. Empty
// strings and the literal texts "null" and "undefined" count as absent.
func (v Value) Available() bool {
	if !v.valid {
		return false
	}
	switch strings.TrimSpace(v.text) {
	case "", "null", "undefined":
		return false
	}
	return true
}

// String returns the text, or "" when absent
func (v Value) String() string {
	if !v.valid {
		return ""
	}
	return v.text
}

// Or returns the text when available, else def
func (v Value) Or(def string) string {
	if v.Available() {
		return v.text
	}
	return def
}

// Int parses the value as an integer
func (v Value) Int() (int, bool) {
	if !v.valid {
		return 0, false
	}
	s := strings.TrimSpace(v.text)
	switch s {
	case "true":
		return 1, true
	case "false":
		return 0, true
	}
	if n, err := strconv.Atoi(s); err == nil {
		return n, true
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil && f == float64(int(f)) {
		return int(f), true
	}
	return 0, false
}

// Truthy follows the backend's flag convention: absent, empty, 0 and false
// are false, anything else is true
func (v Value) Truthy() bool {
	if !v.valid {
		return false
	}
	switch strings.TrimSpace(v.text) {
	case "", "0", "false":
		return false
	}
	return true
}
