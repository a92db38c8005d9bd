package types

import "fmt"

// Vector is a typed sequence of values, the storage of one index level or one
// column. DType is authoritative even when the vector is empty or all missing.
type Vector struct {
	DType  DataType
	Values []Value
}

// NewVector creates a vector of the given data type, converting every value.
func NewVector(dtype DataType, values []Value) (Vector, error) {
	if !dtype.Valid() {
		return Vector{}, fmt.Errorf("%w: %q", ErrUnknownDataType, dtype)
	}
	converted, err := CoerceAll(values, dtype)
	if err != nil {
		return Vector{}, err
	}
	return Vector{DType: dtype, Values: converted}, nil
}

// InferVector creates a vector whose data type is inferred from values.
// An empty or all missing input yields an ObjectType vector.
func InferVector(values []Value) Vector {
	dtype := InferValues(values)
	converted, err := CoerceAll(values, dtype)
	if err != nil {
		// InferValues only widens int to float or falls back to object,
		// both of which accept every input.
		panic(fmt.Sprintf("types: inferred vector conversion failed: %v", err))
	}
	return Vector{DType: dtype, Values: converted}
}

// VectorOf infers a vector from native Go values.
func VectorOf(natives ...any) Vector {
	return InferVector(Values(natives...))
}

// NullVector returns a vector of n missing values of the given data type.
func NullVector(dtype DataType, n int) Vector {
	return Vector{DType: dtype, Values: make([]Value, n)}
}

// Len returns the number of values.
func (v Vector) Len() int {
	return len(v.Values)
}

// AllNull reports whether every value is missing. An empty vector is all null.
func (v Vector) AllNull() bool {
	for _, val := range v.Values {
		if !val.IsNull() {
			return false
		}
	}
	return true
}

// Astype converts the vector to another data type.
func (v Vector) Astype(to DataType) (Vector, error) {
	if v.DType == to {
		return v.Copy(), nil
	}
	return NewVector(to, v.Values)
}

// Copy returns an independent copy.
func (v Vector) Copy() Vector {
	values := make([]Value, len(v.Values))
	copy(values, v.Values)
	return Vector{DType: v.DType, Values: values}
}

// Take returns a new vector holding the values at the given positions.
// A negative position yields a missing value.
func (v Vector) Take(rows []int) Vector {
	values := make([]Value, len(rows))
	for i, r := range rows {
		if r >= 0 {
			values[i] = v.Values[r]
		}
	}
	return Vector{DType: v.DType, Values: values}
}

// Append returns a new vector with other's values appended.
// other must already have v's data type.
func (v Vector) Append(values ...Value) Vector {
	out := make([]Value, 0, len(v.Values)+len(values))
	out = append(out, v.Values...)
	out = append(out, values...)
	return Vector{DType: v.DType, Values: out}
}

// Equal reports whether both vectors have the same data type and values.
func (v Vector) Equal(o Vector) bool {
	if v.DType != o.DType || len(v.Values) != len(o.Values) {
		return false
	}
	for i := range v.Values {
		if !v.Values[i].Equal(o.Values[i]) {
			return false
		}
	}
	return true
}
