package query

import (
	"errors"
	"fmt"
	"math"
)

// Validate checks a query for problems that would make its URL meaningless
// to the server:
//  1. every constraint has a field, a known operator, and a value exactly
//     when the operator needs one
//  2. an aggregation function other than COUNT/SAMPLE names a field
//  3. COUNT/SAMPLE carry no field (a struct literal can bypass the
//     clearing done by AggregateQuery.Aggregate)
//  4. group-by clauses name a field, and dynamic bins are non-empty and finite
//  5. order-by clauses name known functions and directions
//
// All problems are collected and returned joined; errors.As finds each one.
// Validate is a pure function with no side effects.
func Validate(q Query) error {
	v := &validator{}
	v.validateQuery(q)
	return errors.Join(v.errs...)
}

// validator accumulates errors during traversal.
type validator struct {
	errs []error
}

func (v *validator) add(err error) {
	v.errs = append(v.errs, err)
}

func (v *validator) validateQuery(q Query) {
	switch query := q.(type) {
	case nil:
		v.add(fmt.Errorf("nil query"))
	case EventQuery:
		v.validateConstraints(query.Constraints)
	case *EventQuery:
		if query == nil {
			v.add(fmt.Errorf("nil query"))
			return
		}
		v.validateConstraints(query.Constraints)
	case AggregateQuery:
		v.validateAggregate(query)
	case *AggregateQuery:
		if query == nil {
			v.add(fmt.Errorf("nil query"))
			return
		}
		v.validateAggregate(*query)
	default:
		v.add(fmt.Errorf("unsupported query type: %T", q))
	}
}

func (v *validator) validateConstraints(cs []Constraint) {
	for _, c := range cs {
		if err := c.Check(); err != nil {
			v.add(err)
		}
	}
}

func (v *validator) validateAggregate(q AggregateQuery) {
	v.validateConstraints(q.Constraints)
	v.validateAggregation(q.Aggregation)

	for _, g := range q.GroupBy {
		v.validateGroupBy(g)
	}
	for _, o := range q.OrderBy {
		v.validateOrderBy(o)
	}
}

func (v *validator) validateAggregation(a Aggregation) {
	switch {
	case !a.Function.Valid():
		v.add(&InvalidAggregationError{Function: a.Function, Field: a.Field, Reason: "unknown aggregation function"})
	case a.Function.TakesField() && a.Field == "":
		v.add(&InvalidAggregationError{Function: a.Function, Reason: "aggregation field is required"})
	case !a.Function.TakesField() && a.Field != "":
		v.add(&InvalidAggregationError{Function: a.Function, Field: a.Field, Reason: "function does not take a field"})
	}
}

func (v *validator) validateGroupBy(g GroupBy) {
	switch group := g.(type) {
	case FixedBinWidth:
		v.validateGroupField(group.Field)
	case *FixedBinWidth:
		if group == nil {
			v.add(fmt.Errorf("nil group-by"))
			return
		}
		v.validateGroupField(group.Field)
	case DynamicBins:
		v.validateDynamicBins(group)
	case *DynamicBins:
		if group == nil {
			v.add(fmt.Errorf("nil group-by"))
			return
		}
		v.validateDynamicBins(*group)
	default:
		v.add(fmt.Errorf("unsupported group-by type: %T", g))
	}
}

func (v *validator) validateGroupField(field string) {
	if field == "" {
		v.add(fmt.Errorf("group-by field is empty"))
	}
}

func (v *validator) validateDynamicBins(g DynamicBins) {
	v.validateGroupField(g.Field)
	if len(g.Bins) == 0 {
		v.add(fmt.Errorf("group-by %q: bins are empty", g.Field))
	}
	for _, b := range g.Bins {
		if math.IsNaN(b) || math.IsInf(b, 0) {
			v.add(fmt.Errorf("group-by %q: bin boundary %v is not finite", g.Field, b))
		}
	}
}

func (v *validator) validateOrderBy(o OrderBy) {
	if o.Function != FuncNone && !o.Function.Valid() {
		v.add(fmt.Errorf("unknown order-by function %q", o.Function))
	}
	if o.Direction != "" && o.Direction != Asc && o.Direction != Desc {
		v.add(fmt.Errorf("unknown order-by direction %q", o.Direction))
	}
}
