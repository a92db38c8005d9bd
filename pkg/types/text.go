package types

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Boolean literals used by the text encoding.
const (
	TextTrue  = "True"
	TextFalse = "False"
)

// FormatText renders v with the textual rule of its data type.
// Missing values render as the empty string.
func FormatText(v Value) (string, error) {
	switch v.dtype {
	case "":
		return "", nil
	case IntType:
		return strconv.FormatInt(v.i, 10), nil
	case FloatType:
		return strconv.FormatFloat(v.f, 'g', -1, 64), nil
	case StringType:
		return v.s, nil
	case BoolType:
		if v.i != 0 {
			return TextTrue, nil
		}
		return TextFalse, nil
	case DateType:
		return v.t.Format(time.RFC3339Nano), nil
	case TimeType:
		return FormatDuration(time.Duration(v.i)), nil
	default:
		b, err := json.Marshal(v.o)
		if err != nil {
			return "", fmt.Errorf("failed to encode object value: %w", err)
		}
		return string(b), nil
	}
}

// ParseText parses a cell written by FormatText back into a value of dtype.
// The empty string is missing.
func ParseText(s string, dtype DataType) (Value, error) {
	if s == "" {
		return Value{}, nil
	}
	switch dtype {
	case IntType:
		i, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			// integers may have been written by a float formatter, e.g. "1.0"
			f, ferr := strconv.ParseFloat(s, 64)
			if ferr != nil {
				return Value{}, invalidText(s, dtype, err)
			}
			return Coerce(Float(f), IntType)
		}
		return Int(i), nil
	case FloatType:
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return Value{}, invalidText(s, dtype, err)
		}
		return Float(f), nil
	case StringType:
		return String(s), nil
	case BoolType:
		switch strings.ToLower(s) {
		case "true", "1":
			return Bool(true), nil
		case "false", "0":
			return Bool(false), nil
		}
		return Value{}, invalidText(s, dtype, nil)
	case DateType:
		t, err := time.Parse(time.RFC3339Nano, s)
		if err != nil {
			return Value{}, invalidText(s, dtype, err)
		}
		return Date(t), nil
	case TimeType:
		d, err := ParseDuration(s)
		if err != nil {
			return Value{}, invalidText(s, dtype, err)
		}
		return Time(d), nil
	case ObjectType:
		dec := json.NewDecoder(strings.NewReader(s))
		dec.UseNumber()
		var o any
		if err := dec.Decode(&o); err != nil {
			// plain text written by older tools
			return Object(s), nil
		}
		return Object(normalizeJSON(o)), nil
	default:
		return Value{}, fmt.Errorf("%w: %q", ErrUnknownDataType, dtype)
	}
}

// normalizeJSON turns json.Number leaves into int64 or float64.
func normalizeJSON(o any) any {
	switch x := o.(type) {
	case json.Number:
		if i, err := x.Int64(); err == nil {
			return i
		}
		f, _ := x.Float64()
		return f
	case []any:
		for i := range x {
			x[i] = normalizeJSON(x[i])
		}
		return x
	case map[string]any:
		for k := range x {
			x[k] = normalizeJSON(x[k])
		}
		return x
	default:
		return o
	}
}

// DecodeObject decodes a JSON payload into an object value.
func DecodeObject(b []byte) (Value, error) {
	dec := json.NewDecoder(strings.NewReader(string(b)))
	dec.UseNumber()
	var o any
	if err := dec.Decode(&o); err != nil {
		return Value{}, fmt.Errorf("failed to decode object value: %w", err)
	}
	return Object(normalizeJSON(o)), nil
}

func invalidText(s string, dtype DataType, cause error) error {
	if cause != nil {
		return fmt.Errorf("%w: %q as %s: %v", ErrInvalidText, s, dtype, cause)
	}
	return fmt.Errorf("%w: %q as %s", ErrInvalidText, s, dtype)
}
