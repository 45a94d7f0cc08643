package query

// Operator is the comparison applied by a Constraint.
// The string value is the token the server expects in the URL path.
type Operator string

const (
	// Numeric comparisons.
	OpEQ Operator = "EQ"
	OpNE Operator = "NE"
	OpLT Operator = "LT"
	OpLE Operator = "LE"
	OpGT Operator = "GT"
	OpGE Operator = "GE"

	// Text and pattern predicates.
	OpContains        Operator = "CONTAINS"
	OpNotContains     Operator = "NOT_CONTAINS"
	OpHas             Operator = "HAS"
	OpNotHas          Operator = "NOT_HAS"
	OpMatchesRegex    Operator = "MATCHES_REGEX"
	OpNotMatchesRegex Operator = "NOT_MATCHES_REGEX"

	// OpExists matches events where the field is present. It takes no value.
	OpExists Operator = "EXISTS"
)

// Operators lists every operator in declaration order.
var Operators = []Operator{
	OpEQ, OpNE, OpLT, OpLE, OpGT, OpGE,
	OpContains, OpNotContains, OpHas, OpNotHas, OpMatchesRegex, OpNotMatchesRegex,
	OpExists,
}

// Valid reports whether op is a known operator.
func (op Operator) Valid() bool {
	for _, known := range Operators {
		if op == known {
			return true
		}
	}
	return false
}

// Constraint is a single field predicate: name, operator and, for every
// operator except OpExists, a value.
//
// Constraint is immutable. The zero value is not a valid constraint and is
// rejected by Validate.
type Constraint struct {
	name     string
	op       Operator
	value    string
	hasValue bool
}

// NewConstraint builds a constraint, checking that value is present exactly
// when op requires one. A nil value means "no value".
//
// Returns *InvalidConstraintError if name is empty, op is unknown, value is
// nil for a valued operator, or value is non-nil for OpExists.
func NewConstraint(name string, op Operator, value *string) (Constraint, error) {
	c := Constraint{name: name, op: op}
	if value != nil {
		c.value = *value
		c.hasValue = true
	}
	if err := c.Check(); err != nil {
		return Constraint{}, err
	}
	return c, nil
}

// Check enforces the construction invariants. Constraints built with the
// helpers always pass; the zero Constraint does not.
func (c Constraint) Check() error {
	if c.name == "" {
		return &InvalidConstraintError{Operator: c.op, Reason: "field name is empty"}
	}
	if !c.op.Valid() {
		return &InvalidConstraintError{Field: c.name, Operator: c.op, Reason: "unknown operator"}
	}
	if c.op == OpExists && c.hasValue {
		return &InvalidConstraintError{Field: c.name, Operator: c.op, Reason: "EXISTS takes no value"}
	}
	if c.op != OpExists && !c.hasValue {
		return &InvalidConstraintError{Field: c.name, Operator: c.op, Reason: "value is required"}
	}
	return nil
}

func valued(name string, op Operator, value string) Constraint {
	return Constraint{name: name, op: op, value: value, hasValue: true}
}

// Eq matches events where name equals value.
func Eq(name, value string) Constraint { return valued(name, OpEQ, value) }

// Ne matches events where name does not equal value.
func Ne(name, value string) Constraint { return valued(name, OpNE, value) }

// Lt matches events where name is less than value.
func Lt(name, value string) Constraint { return valued(name, OpLT, value) }

// Le matches events where name is less than or equal to value.
func Le(name, value string) Constraint { return valued(name, OpLE, value) }

// Gt matches events where name is greater than value.
func Gt(name, value string) Constraint { return valued(name, OpGT, value) }

// Ge matches events where name is greater than or equal to value.
func Ge(name, value string) Constraint { return valued(name, OpGE, value) }

// Contains matches events where name contains value.
func Contains(name, value string) Constraint { return valued(name, OpContains, value) }

// NotContains matches events where name does not contain value.
func NotContains(name, value string) Constraint { return valued(name, OpNotContains, value) }

// Has matches events where name has value.
func Has(name, value string) Constraint { return valued(name, OpHas, value) }

// NotHas matches events where name does not have value.
func NotHas(name, value string) Constraint { return valued(name, OpNotHas, value) }

// MatchesRegex matches events where name matches the regular expression value.
func MatchesRegex(name, value string) Constraint { return valued(name, OpMatchesRegex, value) }

// NotMatchesRegex matches events where name does not match the regular expression value.
func NotMatchesRegex(name, value string) Constraint {
	return valued(name, OpNotMatchesRegex, value)
}

// Exists matches events carrying the field name.
func Exists(name string) Constraint { return Constraint{name: name, op: OpExists} }

// Name returns the constrained field.
func (c Constraint) Name() string { return c.name }

// Operator returns the comparison operator.
func (c Constraint) Operator() Operator { return c.op }

// Value returns the comparison value and whether one is set.
// ok is false only for OpExists constraints.
func (c Constraint) Value() (value string, ok bool) { return c.value, c.hasValue }

// String renders the constraint unencoded, for diagnostics.
func (c Constraint) String() string {
	if !c.hasValue {
		return c.name + "/" + string(c.op)
	}
	return c.name + "/" + string(c.op) + " " + c.value
}

// ConstraintBuilder accumulates constraints in insertion order.
//
// Every method returns a new builder; the receiver is never modified, so a
// partially built list can be reused as a common prefix.
type ConstraintBuilder struct {
	constraints []Constraint
}

// Constraints starts an empty builder.
func Constraints() ConstraintBuilder { return ConstraintBuilder{} }

// Add appends arbitrary constraints.
func (b ConstraintBuilder) Add(cs ...Constraint) ConstraintBuilder {
	next := make([]Constraint, 0, len(b.constraints)+len(cs))
	next = append(next, b.constraints...)
	next = append(next, cs...)
	return ConstraintBuilder{constraints: next}
}

func (b ConstraintBuilder) Eq(name, value string) ConstraintBuilder { return b.Add(Eq(name, value)) }
func (b ConstraintBuilder) Ne(name, value string) ConstraintBuilder { return b.Add(Ne(name, value)) }
func (b ConstraintBuilder) Lt(name, value string) ConstraintBuilder { return b.Add(Lt(name, value)) }
func (b ConstraintBuilder) Le(name, value string) ConstraintBuilder { return b.Add(Le(name, value)) }
func (b ConstraintBuilder) Gt(name, value string) ConstraintBuilder { return b.Add(Gt(name, value)) }
func (b ConstraintBuilder) Ge(name, value string) ConstraintBuilder { return b.Add(Ge(name, value)) }

func (b ConstraintBuilder) Contains(name, value string) ConstraintBuilder {
	return b.Add(Contains(name, value))
}

func (b ConstraintBuilder) NotContains(name, value string) ConstraintBuilder {
	return b.Add(NotContains(name, value))
}

func (b ConstraintBuilder) Has(name, value string) ConstraintBuilder {
	return b.Add(Has(name, value))
}

func (b ConstraintBuilder) NotHas(name, value string) ConstraintBuilder {
	return b.Add(NotHas(name, value))
}

func (b ConstraintBuilder) MatchesRegex(name, value string) ConstraintBuilder {
	return b.Add(MatchesRegex(name, value))
}

func (b ConstraintBuilder) NotMatchesRegex(name, value string) ConstraintBuilder {
	return b.Add(NotMatchesRegex(name, value))
}

func (b ConstraintBuilder) Exists(name string) ConstraintBuilder { return b.Add(Exists(name)) }

// Build returns a copy of the accumulated constraints.
func (b ConstraintBuilder) Build() []Constraint {
	out := make([]Constraint, len(b.constraints))
	copy(out, b.constraints)
	return out
}
