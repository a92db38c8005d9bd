package types

import (
	"fmt"
	"math"
	"time"
)

// Coerce converts v to the data type to.
//
// Missing values stay missing. Integers and floats convert into each other when
// no precision is lost, booleans and integers convert via 0/1, integers convert
// to dates (Unix nanoseconds) and times (nanoseconds). Anything converts to
// ObjectType and an object converts back when its payload maps onto to.
func Coerce(v Value, to DataType) (Value, error) {
	if v.IsNull() || v.dtype == to {
		return v, nil
	}
	if to == ObjectType {
		return Object(v.Interface()), nil
	}
	if v.dtype == ObjectType {
		native := FromNative(v.o)
		if native.IsNull() || native.dtype == ObjectType {
			return Value{}, incompatible(v, to)
		}
		return Coerce(native, to)
	}

	switch to {
	case IntType:
		switch v.dtype {
		case FloatType:
			if !integral(v.f) {
				return Value{}, incompatible(v, to)
			}
			return Int(int64(v.f)), nil
		case BoolType:
			return Int(v.i), nil
		}
	case FloatType:
		switch v.dtype {
		case IntType:
			return Float(float64(v.i)), nil
		case BoolType:
			return Float(float64(v.i)), nil
		}
	case BoolType:
		switch v.dtype {
		case IntType:
			if v.i == 0 || v.i == 1 {
				return Bool(v.i == 1), nil
			}
		case FloatType:
			if v.f == 0 || v.f == 1 {
				return Bool(v.f == 1), nil
			}
		}
	case DateType:
		if v.dtype == IntType {
			return Date(time.Unix(0, v.i).UTC()), nil
		}
	case TimeType:
		switch v.dtype {
		case IntType:
			return Time(time.Duration(v.i)), nil
		case FloatType:
			if integral(v.f) {
				return Time(time.Duration(v.f)), nil
			}
		}
	}
	return Value{}, incompatible(v, to)
}

// integral reports whether f is a whole number inside the int64 range.
// float64(math.MaxInt64) rounds up to 2^63, which is already out of range.
func integral(f float64) bool {
	return f == math.Trunc(f) && f >= math.MinInt64 && f < math.MaxInt64
}

func incompatible(v Value, to DataType) error {
	return fmt.Errorf("%w: cannot convert %s value %q to %s", ErrIncompatibleType, v.dtype, v.String(), to)
}

// CoerceAll converts every value to the data type to.
// The input is left untouched; on error no partial result is returned.
func CoerceAll(values []Value, to DataType) ([]Value, error) {
	out := make([]Value, len(values))
	for i, v := range values {
		c, err := Coerce(v, to)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i, err)
		}
		out[i] = c
	}
	return out, nil
}
