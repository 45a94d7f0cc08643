package cli

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cueerrors "cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/token"
	"gopkg.in/yaml.v3"

	"github.com/roach88/loginsight/internal/api"
	"github.com/roach88/loginsight/internal/query"
)

// Query kinds accepted in a definition file.
const (
	KindEvents    = "events"
	KindAggregate = "aggregate"
)

// Definition is the file form of a query, shared by YAML and CUE inputs.
// Pointer fields distinguish "omitted" from zero; omitted values take the
// compiled-in defaults.
type Definition struct {
	Kind              string          `json:"kind" yaml:"kind"`
	Limit             *int            `json:"limit,omitempty" yaml:"limit"`
	Timeout           *int            `json:"timeout,omitempty" yaml:"timeout"`
	IncludeDefaults   bool            `json:"include_defaults,omitempty" yaml:"include_defaults"`
	ContentPackFields []string        `json:"content_pack_fields,omitempty" yaml:"content_pack_fields"`
	Constraints       []ConstraintDef `json:"constraints,omitempty" yaml:"constraints"`
	Aggregation       *AggregationDef `json:"aggregation,omitempty" yaml:"aggregation"`
	GroupBy           []GroupByDef    `json:"group_by,omitempty" yaml:"group_by"`
	OrderBy           []OrderByDef    `json:"order_by,omitempty" yaml:"order_by"`
}

// ConstraintDef is one entry of a definition's constraints list.
type ConstraintDef struct {
	Field string  `json:"field" yaml:"field"`
	Op    string  `json:"op" yaml:"op"`
	Value *string `json:"value,omitempty" yaml:"value"`
}

// AggregationDef selects the aggregation function of an aggregate query.
type AggregationDef struct {
	Function string `json:"function,omitempty" yaml:"function"`
	Field    string `json:"field,omitempty" yaml:"field"`
	BinWidth *int   `json:"bin_width,omitempty" yaml:"bin_width"`
}

// GroupByDef is a group-by clause. Exactly one of Width and Bins is set.
type GroupByDef struct {
	Field string    `json:"field" yaml:"field"`
	Width *int      `json:"width,omitempty" yaml:"width"`
	Bins  []float64 `json:"bins,omitempty" yaml:"bins"`
}

// OrderByDef is an order-by clause. Field and Direction may be empty.
type OrderByDef struct {
	Function  string `json:"function" yaml:"function"`
	Field     string `json:"field,omitempty" yaml:"field"`
	Direction string `json:"direction,omitempty" yaml:"direction"`
}

// definitionFields lists the top-level keys a CUE definition may use.
var definitionFields = map[string]bool{
	"kind": true, "limit": true, "timeout": true, "include_defaults": true,
	"content_pack_fields": true, "constraints": true, "aggregation": true,
	"group_by": true, "order_by": true,
}

// LoadError represents an error in a definition or messages file.
type LoadError struct {
	Code    string
	Message string
	Pos     token.Pos // CUE position if available
}

func (e *LoadError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s", e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(), e.Code, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// LoadDefinition reads a query definition, picking the decoder by extension:
// .yaml and .yml use YAML with unknown keys rejected, .cue uses CUE.
func LoadDefinition(path string) (*Definition, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read definition: %w", err)
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return ParseDefinitionYAML(data)
	case ".cue":
		return ParseDefinitionCUE(path, data)
	default:
		return nil, &LoadError{
			Code:    ErrCodeDefinition,
			Message: fmt.Sprintf("unsupported definition file %s: want .yaml, .yml or .cue", filepath.Base(path)),
		}
	}
}

// ParseDefinitionYAML decodes a YAML query definition.
func ParseDefinitionYAML(data []byte) (*Definition, error) {
	var def Definition
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&def); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, &LoadError{Code: ErrCodeDefinition, Message: "definition is empty"}
		}
		return nil, &LoadError{Code: ErrCodeDefinition, Message: fmt.Sprintf("parse definition: %v", err)}
	}
	return &def, nil
}

// ParseDefinitionCUE evaluates a CUE query definition. The query is read
// from a top-level "query" field when present, otherwise from the whole
// file, so definitions can sit beside helper values.
func ParseDefinitionCUE(filename string, data []byte) (*Definition, error) {
	ctx := cuecontext.New()
	v := ctx.CompileBytes(data, cue.Filename(filename))
	if err := v.Err(); err != nil {
		return nil, cueLoadError("compile definition", err)
	}

	if nested := v.LookupPath(cue.ParsePath("query")); nested.Exists() {
		v = nested
	}

	if err := v.Validate(cue.Concrete(true)); err != nil {
		return nil, cueLoadError("definition is not concrete", err)
	}

	iter, err := v.Fields()
	if err != nil {
		return nil, cueLoadError("definition is not a struct", err)
	}
	for iter.Next() {
		if label := iter.Selector().String(); !definitionFields[label] {
			return nil, &LoadError{
				Code:    ErrCodeDefinition,
				Message: fmt.Sprintf("unknown field %q", label),
				Pos:     iter.Value().Pos(),
			}
		}
	}

	var def Definition
	if err := v.Decode(&def); err != nil {
		return nil, cueLoadError("decode definition", err)
	}
	return &def, nil
}

// cueLoadError converts a CUE error to a LoadError carrying its first position.
func cueLoadError(step string, err error) *LoadError {
	le := &LoadError{Code: ErrCodeDefinition, Message: fmt.Sprintf("%s: %v", step, err)}
	if positions := cueerrors.Positions(err); len(positions) > 0 {
		le.Pos = positions[0]
	}
	return le
}

// Query converts the definition to a validated query.
func (d *Definition) Query() (query.Query, error) {
	params := query.DefaultParams()
	if d.Limit != nil {
		params.Limit = *d.Limit
	}
	if d.Timeout != nil {
		params.Timeout = *d.Timeout
	}
	params.IncludeDefaults = d.IncludeDefaults
	params.ContentPackFields = append([]string(nil), d.ContentPackFields...)

	constraints := make([]query.Constraint, 0, len(d.Constraints))
	for i, cd := range d.Constraints {
		c, err := query.NewConstraint(cd.Field, query.Operator(strings.ToUpper(cd.Op)), cd.Value)
		if err != nil {
			return nil, fmt.Errorf("constraints[%d]: %w", i, err)
		}
		constraints = append(constraints, c)
	}

	var q query.Query
	switch strings.ToLower(d.Kind) {
	case "", KindEvents:
		if d.Aggregation != nil || len(d.GroupBy) > 0 || len(d.OrderBy) > 0 {
			return nil, &LoadError{
				Code:    ErrCodeDefinition,
				Message: "aggregation, group_by and order_by need kind: aggregate",
			}
		}
		q = query.EventQuery{Params: params, Constraints: constraints}
	case KindAggregate:
		aq, err := d.aggregateQuery(params, constraints)
		if err != nil {
			return nil, err
		}
		q = aq
	default:
		return nil, &LoadError{
			Code:    ErrCodeDefinition,
			Message: fmt.Sprintf("unknown kind %q: want %s or %s", d.Kind, KindEvents, KindAggregate),
		}
	}

	if err := query.Validate(q); err != nil {
		return nil, err
	}
	return q, nil
}

func (d *Definition) aggregateQuery(params query.Params, constraints []query.Constraint) (query.AggregateQuery, error) {
	q := query.AggregateQuery{
		Params:      params,
		Constraints: constraints,
		Aggregation: query.DefaultAggregation(),
	}

	if a := d.Aggregation; a != nil {
		if a.Function != "" {
			q.Aggregation.Function = query.AggregationFunction(strings.ToUpper(a.Function))
		}
		// Assigned directly so Validate sees a field given to COUNT or SAMPLE.
		q.Aggregation.Field = a.Field
		if a.BinWidth != nil {
			q.Aggregation.BinWidth = *a.BinWidth
		}
	}

	for i, g := range d.GroupBy {
		switch {
		case g.Width != nil && len(g.Bins) > 0:
			return query.AggregateQuery{}, &LoadError{
				Code:    ErrCodeDefinition,
				Message: fmt.Sprintf("group_by[%d]: width and bins are mutually exclusive", i),
			}
		case g.Width != nil:
			q.GroupBy = append(q.GroupBy, query.FixedBinWidth{Field: g.Field, Width: *g.Width})
		case len(g.Bins) > 0:
			q.GroupBy = append(q.GroupBy, query.DynamicBins{Field: g.Field, Bins: append([]float64(nil), g.Bins...)})
		default:
			return query.AggregateQuery{}, &LoadError{
				Code:    ErrCodeDefinition,
				Message: fmt.Sprintf("group_by[%d]: one of width or bins is required", i),
			}
		}
	}

	for _, o := range d.OrderBy {
		q.OrderBy = append(q.OrderBy, query.OrderBy{
			Function:  query.AggregationFunction(strings.ToUpper(o.Function)),
			Field:     o.Field,
			Direction: query.Direction(strings.ToUpper(o.Direction)),
		})
	}
	return q, nil
}

// LoadQuery reads a definition file and converts it to a query.
func LoadQuery(path string) (query.Query, error) {
	def, err := LoadDefinition(path)
	if err != nil {
		return nil, err
	}
	return def.Query()
}

// messagesFile is the YAML form of an ingestion batch.
type messagesFile struct {
	Messages []api.Message `yaml:"messages"`
}

// LoadMessages reads a YAML file of messages to ingest. The file holds
// either a list of messages or a mapping with a "messages" list. Each
// message is checked the same way MessageBuilder checks it.
func LoadMessages(path string) ([]api.Message, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read messages: %w", err)
	}

	var root yaml.Node
	if err := yaml.Unmarshal(data, &root); err != nil {
		return nil, &LoadError{Code: ErrCodeDefinition, Message: fmt.Sprintf("parse messages: %v", err)}
	}
	if len(root.Content) == 0 {
		return nil, &LoadError{Code: ErrCodeDefinition, Message: "messages file is empty"}
	}

	var msgs []api.Message
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if root.Content[0].Kind == yaml.SequenceNode {
		err = dec.Decode(&msgs)
	} else {
		var file messagesFile
		err = dec.Decode(&file)
		msgs = file.Messages
	}
	if err != nil {
		return nil, &LoadError{Code: ErrCodeDefinition, Message: fmt.Sprintf("parse messages: %v", err)}
	}

	for i, m := range msgs {
		if _, err := rebuild(m); err != nil {
			return nil, fmt.Errorf("messages[%d]: %w", i, err)
		}
	}
	return msgs, nil
}

// rebuild runs m through MessageBuilder so file input gets the same checks
// as programmatic input.
func rebuild(m api.Message) (api.Message, error) {
	b := api.NewMessage(m.Text)
	if m.Timestamp != nil {
		b = b.Timestamp(*m.Timestamp)
	}
	for _, f := range m.Fields {
		if f.Positional() {
			b = b.FieldAt(f.Name, f.StartPosition, f.Length)
		} else {
			b = b.Field(f.Name, f.Content)
		}
	}
	return b.Build()
}
