package filter

import (
	"errors"
	"slices"
	"strings"

	"github.com/thisisjab/sieve/schema"
)

// Operators understood by the emitter. Anything else is passed to the sink
// untouched.
const (
	OpIn    = "in"
	OpNotIn = "!in"
	OpInAll = "in!"

	// OpSQLIn is the operator handed to the sink for expanded IN lists.
	OpSQLIn = "IN"
	// OpIsNull marks null checks in Predicate values given to hooks.
	OpIsNull = "IS NULL"

	OpOverlaps     = "&&" // array: any element shared
	OpContainsAll  = "@>" // array: every listed element present
	OpAnyKeyExists = "?|" // jsonb: any listed key present
	OpAllKeysExist = "?&" // jsonb: every listed key present
)

// operatorReplacements holds type-directed rewrites, keyed by type tag.
var operatorReplacements = map[schema.Type]map[string]string{
	schema.TypeJSONB: {
		OpIn:    OpAnyKeyExists,
		OpInAll: OpAllKeysExist,
		OpNotIn: OpAllKeysExist,
	},
	schema.TypeArray: {
		OpIn:    OpOverlaps,
		OpInAll: OpContainsAll,
	},
}

// IsContainment reports whether op is one of the array/jsonb operators.
func IsContainment(op string) bool {
	switch op {
	case OpOverlaps, OpContainsAll, OpAnyKeyExists, OpAllKeysExist:
		return true
	}
	return false
}

// flush emits t if it is complete and always resets it.
func (c *Compiler) flush(sink Sink, t *triplet, boolean Boolean) error {
	defer t.reset()

	if !t.complete() {
		return nil
	}

	column, operator, value := t.values()
	column = c.normalize(column)

	typ, ok := c.fields.Lookup(column)
	if !ok {
		if c.ignoreMissingFields {
			return nil
		}
		return &UnknownFieldError{Field: column}
	}

	if replacement, ok := operatorReplacements[typ][operator]; ok {
		operator = replacement
	}

	if column == "" || operator == "" || value == "" {
		return nil
	}

	switch {
	case operator == OpIn || operator == OpNotIn:
		return c.emitIn(sink, column, operator == OpNotIn, value, boolean)

	case IsContainment(operator):
		return c.emitLeaf(sink, Predicate{
			Column:   column,
			Operator: operator,
			Value:    arrayLiteral(value),
			Boolean:  boolean,
		})

	default:
		var v any = value
		if value == NullValue {
			v = nil
		}

		return c.emitLeaf(sink, Predicate{
			Column:   column,
			Operator: operator,
			Value:    v,
			Boolean:  boolean,
		})
	}
}

// emitIn expands `in` / `!in` into a group holding a null check and an IN
// list. Without an explicit `\null` token the null check is inverted, so a
// nullable column gives the same answer whether or not null was asked for.
func (c *Compiler) emitIn(sink Sink, column string, negate bool, value string, boolean Boolean) error {
	return sink.WithGroup(boolean, func(inner Sink) error {
		tokens := strings.Split(value, ArrayDelimiter)

		innerBoolean := Or
		if negate {
			innerBoolean = And
		}

		nullCheck := Predicate{Column: column, Operator: OpIsNull}

		if slices.Contains(tokens, NullValue) {
			tokens = slices.DeleteFunc(tokens, func(s string) bool { return s == NullValue })
			nullCheck.Boolean = innerBoolean
			nullCheck.Negate = negate
		} else {
			innerBoolean = innerBoolean.Invert()
			nullCheck.Boolean = innerBoolean
			nullCheck.Negate = !negate
		}

		if err := c.emitLeaf(inner, nullCheck); err != nil {
			return err
		}

		if len(tokens) == 0 {
			return nil
		}

		return c.emitLeaf(inner, Predicate{
			Column:   column,
			Operator: OpSQLIn,
			Value:    tokens,
			Boolean:  innerBoolean,
			Negate:   negate,
		})
	})
}

// emitLeaf applies one predicate to sink, surrounded by the hooks.
func (c *Compiler) emitLeaf(sink Sink, p Predicate) error {
	for _, h := range c.hooks {
		if err := h.BeforePredicate(&p, sink); err != nil {
			if errors.Is(err, ErrSkipPredicate) {
				return nil
			}
			return err
		}
	}

	if p.IsNull() {
		sink.AddNullPredicate(p.Column, p.Boolean, p.Negate)
	} else {
		sink.AddPredicate(p.Column, p.Operator, p.Value, p.Boolean, p.Negate)
	}

	for _, h := range c.hooks {
		h.AfterPredicate(p, sink)
	}

	return nil
}

// arrayLiteral turns "a b c" into the array literal "{a,b,c}".
func arrayLiteral(value string) string {
	return "{" + strings.ReplaceAll(value, ArrayDelimiter, ",") + "}"
}
