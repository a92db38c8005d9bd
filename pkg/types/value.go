package types

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"reflect"
	"strconv"
	"time"
)

// Value is a single cell of an index level or a column.
// The zero Value is the missing-value marker.
type Value struct {
	dtype DataType
	i     int64 // IntType, BoolType (0/1), TimeType (nanoseconds)
	f     float64
	s     string
	t     time.Time
	o     any
}

// Null returns the missing-value marker.
func Null() Value {
	return Value{}
}

// Int returns an integer value.
func Int(v int64) Value {
	return Value{dtype: IntType, i: v}
}

// Float returns a float value. NaN is treated as missing.
func Float(v float64) Value {
	if math.IsNaN(v) {
		return Value{}
	}
	return Value{dtype: FloatType, f: v}
}

// String returns a string value.
func String(v string) Value {
	return Value{dtype: StringType, s: v}
}

// Bool returns a boolean value.
func Bool(v bool) Value {
	var i int64
	if v {
		i = 1
	}
	return Value{dtype: BoolType, i: i}
}

// Date returns a timestamp value.
func Date(v time.Time) Value {
	return Value{dtype: DateType, t: v}
}

// Time returns a duration value.
func Time(v time.Duration) Value {
	return Value{dtype: TimeType, i: int64(v)}
}

// Object returns a value holding an arbitrary JSON-compatible payload.
// A nil payload is missing.
func Object(v any) Value {
	if v == nil {
		return Value{}
	}
	if val, ok := v.(Value); ok {
		if val.IsNull() {
			return Value{}
		}
		return Value{dtype: ObjectType, o: val.Interface()}
	}
	return Value{dtype: ObjectType, o: v}
}

// FromNative converts a native Go value into a Value of the inferred data type.
// Pointers are dereferenced, nil pointers and nil are missing.
func FromNative(v any) Value {
	if v == nil {
		return Value{}
	}
	switch x := v.(type) {
	case Value:
		return x
	case string:
		return String(x)
	case bool:
		return Bool(x)
	case int:
		return Int(int64(x))
	case int64:
		return Int(x)
	case int32:
		return Int(int64(x))
	case float64:
		return Float(x)
	case float32:
		return Float(float64(x))
	case time.Time:
		return Date(x)
	case time.Duration:
		return Time(x)
	case json.Number:
		if i, err := x.Int64(); err == nil {
			return Int(i)
		}
		if f, err := x.Float64(); err == nil {
			return Float(f)
		}
		return String(x.String())
	}

	rv := reflect.ValueOf(v)
	for rv.Kind() == reflect.Ptr {
		if rv.IsNil() {
			return Value{}
		}
		rv = rv.Elem()
	}
	switch rv.Kind() {
	case reflect.Bool:
		return Bool(rv.Bool())
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		if rv.Type() == durationType {
			return Time(time.Duration(rv.Int()))
		}
		return Int(rv.Int())
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		u := rv.Uint()
		if u > math.MaxInt64 {
			return Float(float64(u))
		}
		return Int(int64(u))
	case reflect.Float32, reflect.Float64:
		return Float(rv.Float())
	case reflect.String:
		return String(rv.String())
	}
	if rv.Type() == timeType {
		return Date(rv.Interface().(time.Time))
	}
	return Object(rv.Interface())
}

// IsNull reports whether v is the missing-value marker.
func (v Value) IsNull() bool {
	return v.dtype == ""
}

// Type returns the data type of v. Missing values have no data type.
func (v Value) Type() DataType {
	return v.dtype
}

// AsInt returns the integer payload.
func (v Value) AsInt() int64 { return v.i }

// AsFloat returns the float payload, converting integers.
func (v Value) AsFloat() float64 {
	if v.dtype == IntType {
		return float64(v.i)
	}
	return v.f
}

// AsString returns the string payload.
func (v Value) AsString() string { return v.s }

// AsBool returns the boolean payload.
func (v Value) AsBool() bool { return v.i != 0 }

// AsDate returns the timestamp payload.
func (v Value) AsDate() time.Time { return v.t }

// AsTime returns the duration payload.
func (v Value) AsTime() time.Duration { return time.Duration(v.i) }

// AsObject returns the object payload.
func (v Value) AsObject() any { return v.o }

// Interface returns the payload as a native Go value, nil when missing.
func (v Value) Interface() any {
	switch v.dtype {
	case IntType:
		return v.i
	case FloatType:
		return v.f
	case StringType:
		return v.s
	case BoolType:
		return v.i != 0
	case DateType:
		return v.t
	case TimeType:
		return time.Duration(v.i)
	case ObjectType:
		return v.o
	default:
		return nil
	}
}

// Equal reports whether v and o hold the same payload.
// Two missing values are equal. Values of different data types are not equal,
// objects compare by their canonical JSON encoding.
func (v Value) Equal(o Value) bool {
	if v.dtype != o.dtype {
		return false
	}
	switch v.dtype {
	case "":
		return true
	case IntType, BoolType, TimeType:
		return v.i == o.i
	case FloatType:
		return v.f == o.f
	case StringType:
		return v.s == o.s
	case DateType:
		return v.t.Equal(o.t)
	default:
		return objectsEqual(v.o, o.o)
	}
}

func objectsEqual(a, b any) bool {
	ja, errA := json.Marshal(a)
	jb, errB := json.Marshal(b)
	if errA != nil || errB != nil {
		return reflect.DeepEqual(a, b)
	}
	return bytes.Equal(ja, jb)
}

// String renders v for debugging. Missing values render as <NA>.
func (v Value) String() string {
	switch v.dtype {
	case "":
		return "<NA>"
	case IntType:
		return strconv.FormatInt(v.i, 10)
	case FloatType:
		return strconv.FormatFloat(v.f, 'g', -1, 64)
	case StringType:
		return v.s
	case BoolType:
		return strconv.FormatBool(v.i != 0)
	case DateType:
		return v.t.Format(time.RFC3339Nano)
	case TimeType:
		return FormatDuration(time.Duration(v.i))
	default:
		b, err := json.Marshal(v.o)
		if err != nil {
			return fmt.Sprintf("%v", v.o)
		}
		return string(b)
	}
}

// Values converts native Go values into Values.
func Values(natives ...any) []Value {
	out := make([]Value, len(natives))
	for i, n := range natives {
		out[i] = FromNative(n)
	}
	return out
}

// Strings converts strings into string Values.
func Strings(s ...string) []Value {
	out := make([]Value, len(s))
	for i, v := range s {
		out[i] = String(v)
	}
	return out
}
