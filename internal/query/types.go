package query

// Compiled-in parameter defaults. The server applies the same values when a
// parameter is omitted, which is why the renderer may leave them out.
const (
	DefaultLimit    = 100
	DefaultTimeout  = 30000 // milliseconds
	DefaultBinWidth = 5000  // milliseconds
	DefaultFunction = FuncCount
)

// Query is a structured query against the REST API.
//
// This is a sealed interface - only EventQuery and AggregateQuery implement
// it (by value or pointer).
type Query interface {
	queryNode()
}

// Params holds the parameters shared by every query kind.
type Params struct {
	Limit   int // maximum number of results
	Timeout int // server-side query timeout in milliseconds

	// ContentPackFields are extra fields to include in results, rendered in
	// slice order.
	ContentPackFields []string

	// IncludeDefaults renders every parameter even when it equals its default.
	IncludeDefaults bool
}

// DefaultParams returns Params at their compiled-in defaults.
func DefaultParams() Params {
	return Params{Limit: DefaultLimit, Timeout: DefaultTimeout}
}

func (p Params) clone() Params {
	p.ContentPackFields = cloneStrings(p.ContentPackFields)
	return p
}

// EventQuery selects raw events.
type EventQuery struct {
	Params      Params
	Constraints []Constraint
}

func (EventQuery) queryNode() {}

// NewEventQuery returns an event query with default parameters and no constraints.
func NewEventQuery() EventQuery {
	return EventQuery{Params: DefaultParams()}
}

// Clone returns a copy sharing no slices with q.
func (q EventQuery) Clone() EventQuery {
	return EventQuery{
		Params:      q.Params.clone(),
		Constraints: cloneConstraints(q.Constraints),
	}
}

// WithLimit sets the result limit.
func (q EventQuery) WithLimit(limit int) EventQuery {
	out := q.Clone()
	out.Params.Limit = limit
	return out
}

// WithTimeout sets the server-side timeout in milliseconds.
func (q EventQuery) WithTimeout(timeout int) EventQuery {
	out := q.Clone()
	out.Params.Timeout = timeout
	return out
}

// WithDefaults makes the renderer emit parameters that are at their defaults.
func (q EventQuery) WithDefaults() EventQuery {
	out := q.Clone()
	out.Params.IncludeDefaults = true
	return out
}

// WithContentPackFields appends content-pack fields.
func (q EventQuery) WithContentPackFields(fields ...string) EventQuery {
	out := q.Clone()
	out.Params.ContentPackFields = append(out.Params.ContentPackFields, fields...)
	return out
}

// Where appends constraints.
func (q EventQuery) Where(cs ...Constraint) EventQuery {
	out := q.Clone()
	out.Constraints = append(out.Constraints, cs...)
	return out
}

// AggregationFunction reduces the events in a bin to a single value.
type AggregationFunction string

const (
	FuncCount    AggregationFunction = "COUNT"
	FuncUCount   AggregationFunction = "UCOUNT"
	FuncAvg      AggregationFunction = "AVG"
	FuncMin      AggregationFunction = "MIN"
	FuncMax      AggregationFunction = "MAX"
	FuncSum      AggregationFunction = "SUM"
	FuncStdev    AggregationFunction = "STDEV"
	FuncVariance AggregationFunction = "VARIANCE"
	FuncSample   AggregationFunction = "SAMPLE"

	// FuncNone is only meaningful in an OrderBy.
	FuncNone AggregationFunction = "NONE"
)

// AggregationFunctions lists the functions accepted by an Aggregation.
var AggregationFunctions = []AggregationFunction{
	FuncCount, FuncUCount, FuncAvg, FuncMin, FuncMax, FuncSum, FuncStdev, FuncVariance, FuncSample,
}

// Valid reports whether fn may be used as an aggregation function.
func (fn AggregationFunction) Valid() bool {
	for _, known := range AggregationFunctions {
		if fn == known {
			return true
		}
	}
	return false
}

// TakesField reports whether fn aggregates over a named field.
// COUNT and SAMPLE operate on whole events and never take one.
func (fn AggregationFunction) TakesField() bool {
	return fn != FuncCount && fn != FuncSample
}

// Aggregation selects the aggregation function and the time bucket width.
type Aggregation struct {
	Function AggregationFunction
	Field    string // required unless Function is COUNT or SAMPLE, where it must be empty
	BinWidth int    // milliseconds
}

// DefaultAggregation returns COUNT over DefaultBinWidth buckets.
func DefaultAggregation() Aggregation {
	return Aggregation{Function: DefaultFunction, BinWidth: DefaultBinWidth}
}

// GroupBy splits aggregated results by the values of a field.
//
// This is a sealed interface - only FixedBinWidth and DynamicBins implement it.
type GroupBy interface {
	groupByNode()
	// GroupField returns the field being grouped on.
	GroupField() string
}

// FixedBinWidth groups on Field using buckets of a constant Width.
type FixedBinWidth struct {
	Field string
	Width int
}

func (FixedBinWidth) groupByNode()         {}
func (g FixedBinWidth) GroupField() string { return g.Field }

// DynamicBins groups on Field using caller-chosen bucket boundaries.
// Bins are rendered in slice order.
type DynamicBins struct {
	Field string
	Bins  []float64
}

func (DynamicBins) groupByNode()         {}
func (g DynamicBins) GroupField() string { return g.Field }

// Direction is a sort direction for OrderBy.
type Direction string

const (
	Asc  Direction = "ASC"
	Desc Direction = "DESC"
)

// OrderBy sorts aggregated results. Field and Direction are optional; an
// empty value leaves that clause out.
type OrderBy struct {
	Function  AggregationFunction
	Field     string
	Direction Direction
}

// AggregateQuery selects events reduced to one value per bin.
type AggregateQuery struct {
	Params      Params
	Constraints []Constraint
	Aggregation Aggregation
	GroupBy     []GroupBy
	OrderBy     []OrderBy
}

func (AggregateQuery) queryNode() {}

// NewAggregateQuery returns a COUNT aggregate query with default parameters.
func NewAggregateQuery() AggregateQuery {
	return AggregateQuery{Params: DefaultParams(), Aggregation: DefaultAggregation()}
}

// Clone returns a copy sharing no slices with q.
func (q AggregateQuery) Clone() AggregateQuery {
	out := AggregateQuery{
		Params:      q.Params.clone(),
		Constraints: cloneConstraints(q.Constraints),
		Aggregation: q.Aggregation,
	}
	if q.GroupBy != nil {
		out.GroupBy = make([]GroupBy, len(q.GroupBy))
		for i, g := range q.GroupBy {
			if dyn, ok := g.(DynamicBins); ok {
				dyn.Bins = append([]float64(nil), dyn.Bins...)
				g = dyn
			}
			out.GroupBy[i] = g
		}
	}
	if q.OrderBy != nil {
		out.OrderBy = append([]OrderBy(nil), q.OrderBy...)
	}
	return out
}

// WithLimit sets the result limit.
func (q AggregateQuery) WithLimit(limit int) AggregateQuery {
	out := q.Clone()
	out.Params.Limit = limit
	return out
}

// WithTimeout sets the server-side timeout in milliseconds.
func (q AggregateQuery) WithTimeout(timeout int) AggregateQuery {
	out := q.Clone()
	out.Params.Timeout = timeout
	return out
}

// WithDefaults makes the renderer emit parameters that are at their defaults.
func (q AggregateQuery) WithDefaults() AggregateQuery {
	out := q.Clone()
	out.Params.IncludeDefaults = true
	return out
}

// WithContentPackFields appends content-pack fields.
func (q AggregateQuery) WithContentPackFields(fields ...string) AggregateQuery {
	out := q.Clone()
	out.Params.ContentPackFields = append(out.Params.ContentPackFields, fields...)
	return out
}

// Where appends constraints.
func (q AggregateQuery) Where(cs ...Constraint) AggregateQuery {
	out := q.Clone()
	out.Constraints = append(out.Constraints, cs...)
	return out
}

// WithBinWidth sets the aggregation bucket width in milliseconds.
func (q AggregateQuery) WithBinWidth(width int) AggregateQuery {
	out := q.Clone()
	out.Aggregation.BinWidth = width
	return out
}

// Aggregate selects fn over field. The field is dropped for COUNT and SAMPLE.
func (q AggregateQuery) Aggregate(fn AggregationFunction, field string) AggregateQuery {
	out := q.Clone()
	out.Aggregation.Function = fn
	out.Aggregation.Field = field
	if !fn.TakesField() {
		out.Aggregation.Field = ""
	}
	return out
}

func (q AggregateQuery) Count() AggregateQuery              { return q.Aggregate(FuncCount, "") }
func (q AggregateQuery) Sample() AggregateQuery             { return q.Aggregate(FuncSample, "") }
func (q AggregateQuery) UCount(field string) AggregateQuery { return q.Aggregate(FuncUCount, field) }
func (q AggregateQuery) Avg(field string) AggregateQuery    { return q.Aggregate(FuncAvg, field) }
func (q AggregateQuery) Min(field string) AggregateQuery    { return q.Aggregate(FuncMin, field) }
func (q AggregateQuery) Max(field string) AggregateQuery    { return q.Aggregate(FuncMax, field) }
func (q AggregateQuery) Sum(field string) AggregateQuery    { return q.Aggregate(FuncSum, field) }
func (q AggregateQuery) Stdev(field string) AggregateQuery  { return q.Aggregate(FuncStdev, field) }

func (q AggregateQuery) Variance(field string) AggregateQuery {
	return q.Aggregate(FuncVariance, field)
}

// GroupByFixedBinWidth appends a fixed-width group-by clause.
func (q AggregateQuery) GroupByFixedBinWidth(field string, width int) AggregateQuery {
	out := q.Clone()
	out.GroupBy = append(out.GroupBy, FixedBinWidth{Field: field, Width: width})
	return out
}

// GroupByDynamicBins appends a group-by clause with explicit bucket boundaries.
func (q AggregateQuery) GroupByDynamicBins(field string, bins ...float64) AggregateQuery {
	out := q.Clone()
	out.GroupBy = append(out.GroupBy, DynamicBins{Field: field, Bins: append([]float64(nil), bins...)})
	return out
}

// OrderedBy appends an order-by clause.
func (q AggregateQuery) OrderedBy(fn AggregationFunction, field string, dir Direction) AggregateQuery {
	out := q.Clone()
	out.OrderBy = append(out.OrderBy, OrderBy{Function: fn, Field: field, Direction: dir})
	return out
}

func cloneStrings(in []string) []string {
	if in == nil {
		return nil
	}
	return append([]string(nil), in...)
}

func cloneConstraints(in []Constraint) []Constraint {
	if in == nil {
		return nil
	}
	return append([]Constraint(nil), in...)
}
