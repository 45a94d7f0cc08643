// Package queryurl compiles query values into the relative URLs accepted by
// the Log Insight REST query API.
//
// WIRE FORMAT:
//
//	/api/v1/events/<path>?<params>
//	/api/v1/aggregated-events/<path>?<params>
//
// <path> is each constraint rendered as "field/OP+value" (or "field/EXISTS"),
// joined by "/" in insertion order. Values are form-encoded: space becomes
// "+", reserved characters are percent-escaped.
//
// <params> is built from fixed sections joined by "&":
//
//	events:     limit, timeout, content-pack-fields...
//	aggregate:  limit, timeout, bin-width, aggregation-function[&aggregation-field],
//	            order-by..., content-pack-fields..., group-by...
//
// limit, timeout, bin-width and aggregation-function are omitted while at
// their defaults unless the query sets IncludeDefaults. Empty sections leave
// no stray "&", and no "?" is written when there are no parameters.
//
// Example:
//
//	q := query.NewAggregateQuery().
//		WithLimit(10).
//		Max("field_2").
//		Where(query.Eq("field_1", "value1")).
//		WithContentPackFields("test")
//
//	u, err := queryurl.NewCompiler().Compile(q)
//	// u == "/api/v1/aggregated-events/field_1/EQ+value1?limit=10&aggregation-function=MAX&aggregation-field=field_2&content-pack-fields=test"
//
// Compilation is pure: the same query always yields the same bytes, and a
// Compiler can be shared by any number of goroutines.
package queryurl
