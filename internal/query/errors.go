package query

import (
	"errors"
	"fmt"
)

// InvalidConstraintError reports a constraint whose operator and value do
// not agree, or whose field or operator is missing.
type InvalidConstraintError struct {
	Field    string
	Operator Operator
	Reason   string
}

func (e *InvalidConstraintError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("invalid constraint (%s): %s", e.Operator, e.Reason)
	}
	return fmt.Sprintf("invalid constraint %s/%s: %s", e.Field, e.Operator, e.Reason)
}

// InvalidAggregationError reports an aggregation whose function and field
// do not agree.
type InvalidAggregationError struct {
	Function AggregationFunction
	Field    string
	Reason   string
}

func (e *InvalidAggregationError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("invalid aggregation %s: %s", e.Function, e.Reason)
	}
	return fmt.Sprintf("invalid aggregation %s(%s): %s", e.Function, e.Field, e.Reason)
}

// IsInvalidConstraint returns true if err is or wraps an *InvalidConstraintError.
func IsInvalidConstraint(err error) bool {
	var ce *InvalidConstraintError
	return errors.As(err, &ce)
}

// IsInvalidAggregation returns true if err is or wraps an *InvalidAggregationError.
func IsInvalidAggregation(err error) bool {
	var ae *InvalidAggregationError
	return errors.As(err, &ae)
}
