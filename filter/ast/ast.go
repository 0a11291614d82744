package ast

import (
	"fmt"
	"strings"

	"github.com/thisisjab/sieve/filter"
)

// Node is the interface that all nodes in the filter tree implement.
// It uses a private marker method so only types defined in this package
// can be nodes.
type Node interface {
	node()
	String() string
}

// Group is a bracketed clause. Children keep source order.
type Group struct {
	Boolean  filter.Boolean `json:"boolean"`
	Children []Node         `json:"children"`
}

func (*Group) node() {}

// Predicate is a comparison of Column against Value.
type Predicate struct {
	Column   string         `json:"column"`
	Operator string         `json:"operator"`
	Value    any            `json:"value"`
	Boolean  filter.Boolean `json:"boolean"`
	Negate   bool           `json:"negate,omitempty"`
}

func (*Predicate) node() {}

// NullPredicate checks Column for NULL (or NOT NULL when Negate is set).
type NullPredicate struct {
	Column  string         `json:"column"`
	Boolean filter.Boolean `json:"boolean"`
	Negate  bool           `json:"negate,omitempty"`
}

func (*NullPredicate) node() {}

// String renders the group the way a SQL WHERE clause reads.
// The root group is rendered without brackets.
func (g *Group) String() string {
	return g.render(false)
}

func (g *Group) render(bracket bool) string {
	var sb strings.Builder

	if bracket {
		sb.WriteByte('(')
	}

	for i, child := range g.Children {
		if i > 0 {
			sb.WriteByte(' ')
			sb.WriteString(boolOf(child).String())
			sb.WriteByte(' ')
		}

		if sub, ok := child.(*Group); ok {
			sb.WriteString(sub.render(true))
		} else {
			sb.WriteString(child.String())
		}
	}

	if bracket {
		sb.WriteByte(')')
	}

	return sb.String()
}

func (p *Predicate) String() string {
	op := p.Operator
	if p.Negate {
		op = "NOT " + op
	}

	switch v := p.Value.(type) {
	case nil:
		return fmt.Sprintf("%s %s NULL", p.Column, op)
	case []string:
		return fmt.Sprintf("%s %s (%s)", p.Column, op, strings.Join(v, ", "))
	default:
		return fmt.Sprintf("%s %s %v", p.Column, op, v)
	}
}

func (n *NullPredicate) String() string {
	if n.Negate {
		return n.Column + " IS NOT NULL"
	}
	return n.Column + " IS NULL"
}

func boolOf(n Node) filter.Boolean {
	switch v := n.(type) {
	case *Group:
		return v.Boolean
	case *Predicate:
		return v.Boolean
	case *NullPredicate:
		return v.Boolean
	}
	return filter.And
}
