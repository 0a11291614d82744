package filter

import (
	"errors"
	"fmt"
)

var (
	ErrUnbalancedParentheses   = errors.New("unbalanced parentheses in filter")
	ErrTooManyColumnDelimiters = errors.New("too many column delimiters in filter")
	ErrUnknownField            = errors.New("unknown filter field")
	ErrFilterTooLong           = errors.New("filter is too long")

	// ErrSkipPredicate is returned by a Hook to drop the current predicate.
	ErrSkipPredicate = errors.New("skip predicate")
)

// DelimiterError reports a third column delimiter inside a single term.
type DelimiterError struct {
	// Position is the rune offset of the offending delimiter.
	Position int
}

func (e *DelimiterError) Error() string {
	return fmt.Sprintf("too many column delimiters in filter at position %d", e.Position)
}

func (e *DelimiterError) Unwrap() error {
	return ErrTooManyColumnDelimiters
}

// UnknownFieldError reports a column that is not part of the field schema.
type UnknownFieldError struct {
	Field string
}

func (e *UnknownFieldError) Error() string {
	return fmt.Sprintf("field `%s` from filter does not exist", e.Field)
}

func (e *UnknownFieldError) Unwrap() error {
	return ErrUnknownField
}
