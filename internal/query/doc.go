// Package query provides the structured query values understood by the
// Log Insight REST query API.
//
// A query is a plain value: a list of field constraints plus the shared
// parameters (limit, timeout, content-pack fields) and, for aggregate
// queries, an aggregation, group-by clauses and order-by clauses. Nothing in
// this package talks to the network or renders URLs; package queryurl turns
// a Query into the server's wire format.
//
// QUERY KINDS:
//
// Query is a sealed interface with exactly two implementations:
//
//	EventQuery      - raw events matching the constraints
//	AggregateQuery  - events reduced by an aggregation function per bin
//
// GroupBy is sealed the same way (FixedBinWidth, DynamicBins), so renderers
// can switch exhaustively on the concrete type.
//
// VALUE SEMANTICS:
//
// The With*/selector methods on EventQuery and AggregateQuery use value
// receivers and return a modified copy; slices are copied before they are
// appended to. A query can be shared between goroutines and extended
// independently without either side observing the other's changes.
//
//	base := query.NewAggregateQuery().WithLimit(10)
//	byMax := base.Max("latency")
//	byCount := base.Count()      // base and byMax are unchanged
//
// DEFAULTS:
//
// DefaultLimit, DefaultTimeout, DefaultBinWidth and DefaultFunction are
// compiled-in constants. NewEventQuery and NewAggregateQuery start from
// them; the URL renderer omits any parameter still at its default unless
// Params.IncludeDefaults is set.
//
// ERRORS:
//
// Malformed constraints fail when they are built (NewConstraint returns an
// *InvalidConstraintError). Aggregation problems are reported by Validate as
// *InvalidAggregationError. Both can be detected with IsInvalidConstraint and
// IsInvalidAggregation through any amount of wrapping.
package query
