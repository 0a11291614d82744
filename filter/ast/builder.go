package ast

import "github.com/thisisjab/sieve/filter"

// Builder is a filter.Sink that materializes the emitted calls as a tree.
type Builder struct {
	root *Group
}

// NewBuilder returns a Builder with an empty root group.
func NewBuilder() *Builder {
	return &Builder{root: &Group{}}
}

// Root returns the materialized tree.
func (b *Builder) Root() *Group {
	return b.root
}

func (b *Builder) AddPredicate(column, operator string, value any, boolean filter.Boolean, negate bool) {
	if list, ok := value.([]string); ok {
		value = append([]string(nil), list...)
	}

	b.root.Children = append(b.root.Children, &Predicate{
		Column:   column,
		Operator: operator,
		Value:    value,
		Boolean:  boolean,
		Negate:   negate,
	})
}

func (b *Builder) AddNullPredicate(column string, boolean filter.Boolean, negate bool) {
	b.root.Children = append(b.root.Children, &NullPredicate{
		Column:  column,
		Boolean: boolean,
		Negate:  negate,
	})
}

// WithGroup appends the group even when body emits nothing, so the tree
// mirrors bracket placement exactly.
func (b *Builder) WithGroup(boolean filter.Boolean, body func(filter.Sink) error) error {
	inner := &Builder{root: &Group{Boolean: boolean}}

	if err := body(inner); err != nil {
		return err
	}

	b.root.Children = append(b.root.Children, inner.root)
	return nil
}

// Build applies c to a fresh Builder and returns the tree.
func Build(c *filter.Compiler) (*Group, error) {
	b, err := filter.Apply(c, NewBuilder())
	if err != nil {
		return nil, err
	}
	return b.Root(), nil
}
