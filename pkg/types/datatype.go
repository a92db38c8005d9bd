// Package types provides the semantic type system of annotab: the closed set of
// data types a level or column can have, the tagged values stored in them and the
// rules that map storage types and native Go values onto them.
package types

import (
	"fmt"
	"reflect"
	"strings"
	"time"
)

// DataType is the semantic type of an index level or a column.
// The string value is the name persisted in database headers.
type DataType string

const (
	// BoolType holds true/false values.
	BoolType DataType = "bool"

	// DateType holds points in time (timestamps).
	DateType DataType = "date"

	// FloatType holds 64-bit floating point numbers.
	FloatType DataType = "float"

	// IntType holds 64-bit signed integers.
	IntType DataType = "int"

	// ObjectType holds arbitrary JSON-compatible values.
	ObjectType DataType = "object"

	// StringType holds text.
	StringType DataType = "str"

	// TimeType holds durations, e.g. segment offsets relative to the start of a file.
	TimeType DataType = "time"
)

// DataTypes lists all data types in their persisted order.
var DataTypes = []DataType{BoolType, DateType, FloatType, IntType, ObjectType, StringType, TimeType}

// Valid reports whether d is one of the known data types.
func (d DataType) Valid() bool {
	switch d {
	case BoolType, DateType, FloatType, IntType, ObjectType, StringType, TimeType:
		return true
	default:
		return false
	}
}

// String returns the persisted name.
func (d DataType) String() string {
	return string(d)
}

// ParseDataType parses a persisted data type name.
func ParseDataType(s string) (DataType, error) {
	d := DataType(strings.TrimSpace(s))
	if !d.Valid() {
		return "", fmt.Errorf("%w: %q", ErrUnknownDataType, s)
	}
	return d, nil
}

// InferStorageType maps the name of a storage-level type onto a data type.
// It understands pandas-like dtype names, SQLite declared types and Parquet
// physical/converted types. The mapping is total: anything unrecognized is
// ObjectType.
func InferStorageType(name string) DataType {
	n := strings.ToLower(strings.TrimSpace(name))
	switch {
	case n == "":
		return ObjectType
	case n == "bool" || n == "boolean":
		return BoolType
	case strings.HasPrefix(n, "datetime") || n == "timestamp" || strings.HasPrefix(n, "timestamp_"):
		return DateType
	case strings.HasPrefix(n, "timedelta") || n == "duration" || n == "interval":
		return TimeType
	case strings.HasPrefix(n, "float") || n == "real" || n == "double":
		return FloatType
	case strings.HasPrefix(n, "int") || strings.HasPrefix(n, "uint") || n == "integer":
		return IntType
	case n == "string" || n == "str" || n == "text" || n == "utf8":
		return StringType
	default:
		return ObjectType
	}
}

var (
	timeType     = reflect.TypeOf(time.Time{})
	durationType = reflect.TypeOf(time.Duration(0))
)

// InferNative returns the data type a native Go value maps onto.
// Pointers are dereferenced; nil maps onto ObjectType.
func InferNative(v any) DataType {
	if v == nil {
		return ObjectType
	}
	if val, ok := v.(Value); ok {
		if val.IsNull() {
			return ObjectType
		}
		return val.Type()
	}
	rt := reflect.TypeOf(v)
	for rt.Kind() == reflect.Ptr {
		rt = rt.Elem()
	}
	switch rt {
	case timeType:
		return DateType
	case durationType:
		return TimeType
	}
	switch rt.Kind() {
	case reflect.Bool:
		return BoolType
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return IntType
	case reflect.Float32, reflect.Float64:
		return FloatType
	case reflect.String:
		return StringType
	default:
		return ObjectType
	}
}

// InferValues returns the data type shared by values.
// Missing values are ignored; if nothing is left the result is ObjectType.
// Integers mixed with floats widen to FloatType, any other mix is ObjectType.
func InferValues(values []Value) DataType {
	var inferred DataType
	for _, v := range values {
		if v.IsNull() {
			continue
		}
		t := v.Type()
		switch {
		case inferred == "":
			inferred = t
		case inferred == t:
		case isNumeric(inferred) && isNumeric(t):
			inferred = FloatType
		default:
			return ObjectType
		}
	}
	if inferred == "" {
		return ObjectType
	}
	return inferred
}

func isNumeric(d DataType) bool {
	return d == IntType || d == FloatType
}
