package resolve

import "fmt"

type (
	// ConversionError reports a failed coercion of a raw value to a
	// parameter's declared type.
	ConversionError struct {
		// Param is the parameter being coerced.
		Param string
		// Message describes the failure.
		Message string
		// Cause is the underlying error, if any.
		Cause error
	}

	// ConstraintError reports a coerced value rejected by the parameter's
	// allowed-value set or validation pattern.
	ConstraintError struct {
		Param   string
		Message string
	}

	// PartialDataError marks a scalar supplied where a nested structure is
	// required. The pipeline turns it into a pending prompt rather than a
	// terminal error.
	PartialDataError struct {
		Param   string
		Message string
	}
)

// Error implements error.
func (e *ConversionError) Error() string {
	if e.Param == "" {
		return e.Message
	}
	return fmt.Sprintf("parameter %q: %s", e.Param, e.Message)
}

// Unwrap exposes the cause for errors.Is/As chains.
func (e *ConversionError) Unwrap() error { return e.Cause }

// Error implements error.
func (e *ConstraintError) Error() string {
	return fmt.Sprintf("parameter %q: %s", e.Param, e.Message)
}

// Error implements error.
func (e *PartialDataError) Error() string {
	return fmt.Sprintf("parameter %q: %s", e.Param, e.Message)
}

func conversionErrorf(param string, cause error, format string, args ...any) *ConversionError {
	return &ConversionError{Param: param, Message: fmt.Sprintf(format, args...), Cause: cause}
}
