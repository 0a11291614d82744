package filter

// Boolean is the connective between a predicate (or group) and the sibling
// before it.
type Boolean uint8

const (
	And Boolean = iota
	Or
)

func (b Boolean) String() string {
	if b == Or {
		return "OR"
	}
	return "AND"
}

func (b Boolean) MarshalText() ([]byte, error) {
	return []byte(b.String()), nil
}

// Invert returns the opposite connective.
func (b Boolean) Invert() Boolean {
	if b == Or {
		return And
	}
	return Or
}

// Sink is the query target predicates are emitted into, in source order.
//
// value passed to AddPredicate is a string, a []string (for IN) or nil.
type Sink interface {
	AddPredicate(column, operator string, value any, boolean Boolean, negate bool)
	AddNullPredicate(column string, boolean Boolean, negate bool)

	// WithGroup opens one bracketed sub-clause joined to its preceding
	// sibling by boolean. body receives the sink for the inside of the group
	// and must have returned before WithGroup returns.
	WithGroup(boolean Boolean, body func(Sink) error) error
}

// Predicate is a single leaf about to be applied to a sink. Hooks may modify
// it in place.
type Predicate struct {
	Column   string
	Operator string
	// Value is a string, a []string or nil.
	Value   any
	Boolean Boolean
	Negate  bool
}

// IsNull reports whether p is a null check rather than a comparison.
func (p Predicate) IsNull() bool {
	return p.Operator == OpIsNull
}

// Hook observes every leaf predicate. BeforePredicate may rewrite p, or veto
// it by returning ErrSkipPredicate; any other error aborts the compile.
type Hook interface {
	BeforePredicate(p *Predicate, sink Sink) error
	AfterPredicate(p Predicate, sink Sink)
}

// HookFuncs adapts plain functions to a Hook. Nil fields are skipped.
type HookFuncs struct {
	Before func(p *Predicate, sink Sink) error
	After  func(p Predicate, sink Sink)
}

func (h HookFuncs) BeforePredicate(p *Predicate, sink Sink) error {
	if h.Before == nil {
		return nil
	}
	return h.Before(p, sink)
}

func (h HookFuncs) AfterPredicate(p Predicate, sink Sink) {
	if h.After != nil {
		h.After(p, sink)
	}
}
