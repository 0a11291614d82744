package filter

import "strings"

const (
	slotColumn = iota
	slotOperator
	slotValue
)

// triplet accumulates column, operator and value of the current term.
type triplet struct {
	slots [3]strings.Builder
	cur   int
}

// advance moves to the next slot. It fails when already at the value slot.
func (t *triplet) advance() bool {
	if t.cur == slotValue {
		return false
	}
	t.cur++
	return true
}

func (t *triplet) write(s string) {
	t.slots[t.cur].WriteString(s)
}

func (t *triplet) writeRune(r rune) {
	t.slots[t.cur].WriteRune(r)
}

// complete reports whether both delimiters of the term were consumed.
func (t *triplet) complete() bool {
	return t.cur == slotValue
}

func (t *triplet) values() (column, operator, value string) {
	return t.slots[slotColumn].String(), t.slots[slotOperator].String(), t.slots[slotValue].String()
}

func (t *triplet) reset() {
	for i := range t.slots {
		t.slots[i].Reset()
	}
	t.cur = slotColumn
}

// parser walks the input once. pos is shared by every nesting level.
type parser struct {
	compiler *Compiler
	input    []rune
	pos      int
}

func (p *parser) readChar() rune {
	ch := p.input[p.pos]
	p.pos++
	return ch
}

// parseGroup consumes terms until end of input or a close bracket, which
// ends exactly one nesting level.
func (p *parser) parseGroup(sink Sink) error {
	var t triplet
	next := And

	for p.pos < len(p.input) {
		switch ch := p.readChar(); ch {
		case OpenBracket:
			err := sink.WithGroup(next, func(inner Sink) error {
				return p.parseGroup(inner)
			})
			if err != nil {
				return err
			}

		case CloseBracket:
			return p.compiler.flush(sink, &t, next)

		case OrSign, AndSign:
			if err := p.compiler.flush(sink, &t, next); err != nil {
				return err
			}
			next = And
			if ch == OrSign {
				next = Or
			}

		case ColumnDelimiter:
			if !t.advance() {
				return &DelimiterError{Position: p.pos - 1}
			}

		case EscapeChar:
			p.readEscaped(&t)

		default:
			t.writeRune(ch)
		}
	}

	return p.compiler.flush(sink, &t, next)
}

// readEscaped appends the rune following an escape char verbatim. `\null`
// followed by a boundary is kept whole as the NULL sentinel.
func (p *parser) readEscaped(t *triplet) {
	if p.pos >= len(p.input) {
		return
	}

	if p.atNullSentinel() {
		t.write(NullValue)
		p.pos += len(NullValue) - 1
		return
	}

	t.writeRune(p.readChar())
}

func (p *parser) atNullSentinel() bool {
	word := []rune(NullValue[1:])
	end := p.pos + len(word)

	if end > len(p.input) || string(p.input[p.pos:end]) != string(word) {
		return false
	}

	return end == len(p.input) || isBoundary(p.input[end])
}

func isBoundary(r rune) bool {
	switch r {
	case ' ', OpenBracket, CloseBracket, ColumnDelimiter, OrSign, AndSign, EscapeChar:
		return true
	}
	return false
}
