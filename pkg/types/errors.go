package types

import "errors"

// Type system errors
var (
	// ErrUnknownDataType is returned when a data type name is not recognized
	ErrUnknownDataType = errors.New("unknown data type")

	// ErrIncompatibleType is returned when a value cannot be converted to a data type
	ErrIncompatibleType = errors.New("incompatible type")

	// ErrInvalidText is returned when a text cell cannot be parsed as its data type
	ErrInvalidText = errors.New("invalid text value")
)
