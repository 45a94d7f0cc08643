package queryurl

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"

	"github.com/roach88/loginsight/internal/query"
)

// Collection paths. The compiled URL is relative to the server's API root.
const (
	EventsPath           = "/api/v1/events/"
	AggregatedEventsPath = "/api/v1/aggregated-events/"
)

// Compiler renders query values into relative URLs.
//
// CRITICAL: Segment order and joiners are part of the server contract:
// "/" between path constraints, "&" between parameters, "+" for the space
// between an operator and its value.
//
// A Compiler holds no mutable state and is safe for concurrent use.
type Compiler struct {
	charset encoding.Encoding
}

// Option configures a Compiler.
type Option func(*Compiler)

// WithCharset sets the charset constraint values are encoded in before
// percent-escaping. The default is UTF-8.
func WithCharset(enc encoding.Encoding) Option {
	return func(c *Compiler) {
		c.charset = enc
	}
}

// NewCompiler creates a Compiler.
func NewCompiler(opts ...Option) *Compiler {
	c := &Compiler{charset: unicode.UTF8}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Compile validates q and renders it as a relative URL:
//
//	<collection path>[<constraint path>][?<query string>]
//
// Returns the query.Validate error unchanged if q is malformed, or an
// *EncodingError if a constraint value cannot be encoded.
func (c *Compiler) Compile(q query.Query) (string, error) {
	if err := query.Validate(q); err != nil {
		return "", err
	}

	switch qry := q.(type) {
	case query.EventQuery:
		return c.compileEvents(qry)
	case *query.EventQuery:
		return c.compileEvents(*qry)
	case query.AggregateQuery:
		return c.compileAggregate(qry)
	case *query.AggregateQuery:
		return c.compileAggregate(*qry)
	default:
		return "", fmt.Errorf("unsupported query type: %T", q)
	}
}

// compileEvents renders an event query. Sections: limit, timeout,
// content-pack fields.
func (c *Compiler) compileEvents(q query.EventQuery) (string, error) {
	path, err := c.PathSegment(q.Constraints)
	if err != nil {
		return "", err
	}

	params := c.paramsSection(q.Params)
	params = append(params, contentPackSection(q.Params.ContentPackFields)...)

	return assemble(EventsPath, path, params), nil
}

// compileAggregate renders an aggregate query. Sections, in order:
//  1. limit, timeout, bin-width, aggregation-function[&aggregation-field]
//  2. order-by clauses
//  3. content-pack fields
//  4. group-by clauses
func (c *Compiler) compileAggregate(q query.AggregateQuery) (string, error) {
	path, err := c.PathSegment(q.Constraints)
	if err != nil {
		return "", err
	}

	params := c.paramsSection(q.Params)
	params = append(params, aggregationSection(q.Aggregation, q.Params.IncludeDefaults)...)
	params = append(params, orderBySection(q.OrderBy)...)
	params = append(params, contentPackSection(q.Params.ContentPackFields)...)
	params = append(params, groupBySection(q.GroupBy)...)

	return assemble(AggregatedEventsPath, path, params), nil
}

// assemble joins prefix, path and parameters. Empty parts add nothing.
func assemble(prefix, path string, params []string) string {
	var sb strings.Builder
	sb.WriteString(prefix)
	sb.WriteString(path)
	if len(params) > 0 {
		sb.WriteByte('?')
		sb.WriteString(strings.Join(params, "&"))
	}
	return sb.String()
}

// PathSegment renders constraints joined by "/" in the given order.
// Duplicates are kept; the server reads repeated segments as AND.
// An empty list renders as "".
func (c *Compiler) PathSegment(cs []query.Constraint) (string, error) {
	parts := make([]string, 0, len(cs))
	for _, con := range cs {
		expr, err := c.Expression(con)
		if err != nil {
			return "", err
		}
		parts = append(parts, expr)
	}
	return strings.Join(parts, "/"), nil
}

// Expression renders one constraint:
//
//	name/EXISTS
//	name/OP+<form-encoded value>
//
// Every valued operator uses the same escaping. Returns
// *query.InvalidConstraintError for a constraint that breaks the
// construction invariants, such as the zero Constraint.
func (c *Compiler) Expression(con query.Constraint) (string, error) {
	if err := con.Check(); err != nil {
		return "", err
	}
	base := con.Name() + "/" + string(con.Operator())
	value, ok := con.Value()
	if con.Operator() == query.OpExists || !ok {
		return base, nil
	}

	encoded, err := c.encodeValue(value)
	if err != nil {
		return "", &EncodingError{Constraint: con.String(), Err: err}
	}
	return base + url.QueryEscape(" ") + encoded, nil
}

// formFixups maps url.QueryEscape output onto the server's form decoder
// alphabet: "*" stays literal and "~" is escaped. A literal "%" is already
// "%25", so "%2A" only ever comes from "*".
var formFixups = strings.NewReplacer("%2A", "*", "~", "%7E")

// encodeValue transcodes value into the configured charset and
// form-encodes the resulting bytes.
func (c *Compiler) encodeValue(value string) (string, error) {
	if _, _, err := transform.String(encoding.UTF8Validator, value); err != nil {
		return "", err
	}
	raw := value
	if c.charset != unicode.UTF8 {
		transcoded, err := c.charset.NewEncoder().String(value)
		if err != nil {
			return "", err
		}
		raw = transcoded
	}
	return formFixups.Replace(url.QueryEscape(raw)), nil
}

// paramsSection renders limit and timeout under the default-suppression policy.
func (c *Compiler) paramsSection(p query.Params) []string {
	var out []string
	if p.Limit != query.DefaultLimit || p.IncludeDefaults {
		out = append(out, "limit="+strconv.Itoa(p.Limit))
	}
	if p.Timeout != query.DefaultTimeout || p.IncludeDefaults {
		out = append(out, "timeout="+strconv.Itoa(p.Timeout))
	}
	return out
}

// aggregationSection renders bin-width and the aggregation function. The
// function and its field form one unit so later sections cannot split them.
func aggregationSection(a query.Aggregation, includeDefaults bool) []string {
	var out []string
	if a.BinWidth != query.DefaultBinWidth || includeDefaults {
		out = append(out, "bin-width="+strconv.Itoa(a.BinWidth))
	}
	if a.Function != query.DefaultFunction || includeDefaults {
		unit := "aggregation-function=" + string(a.Function)
		if a.Function.TakesField() {
			unit += "&aggregation-field=" + a.Field
		}
		out = append(out, unit)
	}
	return out
}

// contentPackSection renders one pair per field, verbatim, in order.
func contentPackSection(fields []string) []string {
	out := make([]string, 0, len(fields))
	for _, f := range fields {
		out = append(out, "content-pack-fields="+f)
	}
	return out
}

func orderBySection(orders []query.OrderBy) []string {
	out := make([]string, 0, len(orders))
	for _, o := range orders {
		clause := "order-by-function=" + string(o.Function)
		if o.Field != "" {
			clause += "&order-by-field=" + o.Field
		}
		if o.Direction != "" {
			clause += "&order-by-direction=" + string(o.Direction)
		}
		out = append(out, clause)
	}
	return out
}

func groupBySection(groups []query.GroupBy) []string {
	out := make([]string, 0, len(groups))
	for _, g := range groups {
		switch group := g.(type) {
		case query.FixedBinWidth:
			out = append(out, fixedBinWidthClause(group))
		case *query.FixedBinWidth:
			out = append(out, fixedBinWidthClause(*group))
		case query.DynamicBins:
			out = append(out, dynamicBinsClause(group))
		case *query.DynamicBins:
			out = append(out, dynamicBinsClause(*group))
		}
	}
	return out
}

func fixedBinWidthClause(g query.FixedBinWidth) string {
	return "group-by-field=" + g.Field + "&bin-width=" + strconv.Itoa(g.Width)
}

func dynamicBinsClause(g query.DynamicBins) string {
	bins := make([]string, len(g.Bins))
	for i, b := range g.Bins {
		bins[i] = strconv.FormatFloat(b, 'f', -1, 64)
	}
	return "group-by-field=" + g.Field + "&bins=" + strings.Join(bins, ",")
}
