package filter

import (
	"fmt"
	"unicode/utf8"

	"github.com/thisisjab/sieve/schema"
)

// Grammar literals.
const (
	OpenBracket     = '('
	CloseBracket    = ')'
	ColumnDelimiter = ':'
	OrSign          = '|'
	AndSign         = ','
	EscapeChar      = '\\'
	ArrayDelimiter  = " "

	// NullValue is the sentinel for an explicit NULL, written `\null`.
	NullValue = `\null`
)

// Compiler is a balance-checked filter string bound to a field schema.
// It holds no parse state, so ApplyTo may be called repeatedly and
// concurrently (with distinct sinks).
type Compiler struct {
	input               []rune
	fields              schema.Fields
	ignoreMissingFields bool
	hooks               []Hook
	normalize           func(string) string
	maxLength           int
}

// Option configures a Compiler.
type Option func(*Compiler)

// WithIgnoreMissingFields drops terms on unknown fields instead of failing.
func WithIgnoreMissingFields(ignore bool) Option {
	return func(c *Compiler) {
		c.ignoreMissingFields = ignore
	}
}

// WithHooks registers observer hooks, fired in order around every leaf.
func WithHooks(hooks ...Hook) Option {
	return func(c *Compiler) {
		c.hooks = append(c.hooks, hooks...)
	}
}

// WithNormalizer replaces the column normalizer. Defaults to SnakeCase.
func WithNormalizer(fn func(string) string) Option {
	return func(c *Compiler) {
		if fn != nil {
			c.normalize = fn
		}
	}
}

// WithMaxLength rejects filters longer than n runes. Zero disables the limit.
func WithMaxLength(n int) Option {
	return func(c *Compiler) {
		c.maxLength = n
	}
}

// Compile validates input and binds it to fields. Parentheses are checked
// eagerly; everything else is reported by ApplyTo.
func Compile(input string, fields schema.Fields, opts ...Option) (*Compiler, error) {
	c := &Compiler{
		fields:    fields,
		normalize: SnakeCase,
	}

	for _, opt := range opts {
		opt(c)
	}

	if c.maxLength > 0 && utf8.RuneCountInString(input) > c.maxLength {
		return nil, fmt.Errorf("%w: limit is %d characters", ErrFilterTooLong, c.maxLength)
	}

	c.input = []rune(input)

	if !balanced(c.input) {
		return nil, ErrUnbalancedParentheses
	}

	return c, nil
}

// ApplyTo emits the filter into sink.
func (c *Compiler) ApplyTo(sink Sink) error {
	p := &parser{compiler: c, input: c.input}
	return p.parseGroup(sink)
}

// Apply is ApplyTo returning the same sink, for chaining.
func Apply[S Sink](c *Compiler, sink S) (S, error) {
	if err := c.ApplyTo(sink); err != nil {
		return sink, err
	}
	return sink, nil
}

// String returns the filter source.
func (c *Compiler) String() string {
	return string(c.input)
}

// balanced checks that brackets never close before they open and that every
// open bracket is closed. Escaped runes are skipped, as the scanner does.
func balanced(input []rune) bool {
	open := 0

	for i := 0; i < len(input); i++ {
		switch input[i] {
		case EscapeChar:
			i++
		case OpenBracket:
			open++
		case CloseBracket:
			open--
			if open < 0 {
				return false
			}
		}
	}

	return open == 0
}
