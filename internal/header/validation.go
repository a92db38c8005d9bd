package header

import (
	"fmt"
	"strings"

	"github.com/annotab/annotab/internal/errors"
	"github.com/annotab/annotab/pkg/types"
)

// ValidationError is a value that violates a scheme.
type ValidationError struct {
	Row     int
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("row %d, column %q: %s", e.Row, e.Field, e.Message)
}

// ValidationErrors is a collection of validation errors.
type ValidationErrors []*ValidationError

func (e ValidationErrors) Error() string {
	if len(e) == 0 {
		return "no validation errors"
	}
	if len(e) == 1 {
		return e[0].Error()
	}
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("%d validation errors:\n", len(e)))
	for i, err := range e {
		if i > 0 {
			sb.WriteString("\n")
		}
		sb.WriteString("  - ")
		sb.WriteString(err.Error())
	}
	return sb.String()
}

// maxReported caps the number of violations collected per vector.
const maxReported = 10

// Check converts v to the scheme's data type and checks bounds and labels.
// Missing values always pass.
func (s *Scheme) Check(v types.Value) (types.Value, error) {
	c, err := types.Coerce(v, s.DType)
	if err != nil {
		return types.Value{}, errors.NewTypeError(fmt.Sprintf("value %s does not fit scheme dtype %s", v, s.DType), err)
	}
	if msg := s.violation(c); msg != "" {
		return types.Value{}, errors.NewConstraintError("%s", msg)
	}
	return c, nil
}

// CheckVector converts a vector to the scheme's data type and checks every
// value. Conversion failures are TypeMismatch errors, bound and label
// violations are ConstraintViolation errors listing the offending rows.
func (s *Scheme) CheckVector(field string, v types.Vector) (types.Vector, error) {
	converted, err := v.Astype(s.DType)
	if err != nil {
		return types.Vector{}, errors.NewTypeError(fmt.Sprintf("column %q does not fit scheme dtype %s", field, s.DType), err)
	}
	var violations ValidationErrors
	for r, val := range converted.Values {
		if msg := s.violation(val); msg != "" {
			violations = append(violations, &ValidationError{Row: r, Field: field, Message: msg})
			if len(violations) == maxReported {
				break
			}
		}
	}
	if len(violations) > 0 {
		return types.Vector{}, errors.Wrap(errors.ErrCategoryTable, errors.CodeConstraintViolation,
			fmt.Sprintf("column %q violates its scheme", field), violations)
	}
	return converted, nil
}

// violation describes why c breaks the scheme, or returns "".
func (s *Scheme) violation(c types.Value) string {
	if c.IsNull() {
		return ""
	}
	if s.IsNumeric() && (s.Minimum != nil || s.Maximum != nil) {
		var x float64
		if c.Type() == types.TimeType {
			x = c.AsTime().Seconds()
		} else {
			x = c.AsFloat()
		}
		if s.Minimum != nil && x < *s.Minimum {
			return fmt.Sprintf("value %s is below minimum %v", c, *s.Minimum)
		}
		if s.Maximum != nil && x > *s.Maximum {
			return fmt.Sprintf("value %s is above maximum %v", c, *s.Maximum)
		}
	}
	if s.Labels != nil && !s.Labels.Contains(c, s.DType) {
		return fmt.Sprintf("value %s is not a label of the scheme", c)
	}
	return ""
}
