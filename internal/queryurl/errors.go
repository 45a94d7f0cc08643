package queryurl

import (
	"errors"
	"fmt"
)

// EncodingError reports a constraint value that cannot be represented in
// the compiler's charset.
type EncodingError struct {
	// Constraint is the unencoded expression, e.g. "message/CONTAINS foo".
	Constraint string

	// Err is the underlying encoder failure.
	Err error
}

func (e *EncodingError) Error() string {
	return fmt.Sprintf("unable to encode field constraint %q: %v", e.Constraint, e.Err)
}

func (e *EncodingError) Unwrap() error {
	return e.Err
}

// IsEncodingError returns true if err is or wraps an *EncodingError.
func IsEncodingError(err error) bool {
	var ee *EncodingError
	return errors.As(err, &ee)
}
