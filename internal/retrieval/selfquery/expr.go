package selfquery

import (
	"fmt"
	"strconv"
	"strings"
	"unicode"
)

// NoFilter is what the constructor model answers when nothing constrains the
// metadata.
const NoFilter = "NO_FILTER"

const maxExprLen = 4 * 1024

// ParseFilter parses a logical condition statement such as
// and(gt("abv", 7), lt("ibu", 30)). An empty statement or NO_FILTER yields a
// nil filter. Attributes must exist in schema when schema is non-nil.
func ParseFilter(expr string, schema Schema) (Filter, error) {
	expr = strings.TrimSpace(expr)
	if expr == "" || strings.EqualFold(strings.Trim(expr, `"'`), NoFilter) {
		return nil, nil
	}
	if len(expr) > maxExprLen {
		return nil, fmt.Errorf("filter expression too large")
	}

	p := &exprParser{src: expr, schema: schema}
	f, err := p.statement()
	if err != nil {
		return nil, err
	}
	p.skipSpace()
	if p.pos != len(p.src) {
		return nil, p.errorf("unexpected trailing input")
	}
	return f, nil
}

type exprParser struct {
	src    string
	pos    int
	schema Schema
}

func (p *exprParser) errorf(format string, args ...any) error {
	return fmt.Errorf("filter at offset %d: %s", p.pos, fmt.Sprintf(format, args...))
}

func (p *exprParser) skipSpace() {
	for p.pos < len(p.src) && unicode.IsSpace(rune(p.src[p.pos])) {
		p.pos++
	}
}

func (p *exprParser) expect(ch byte) error {
	p.skipSpace()
	if p.pos >= len(p.src) || p.src[p.pos] != ch {
		return p.errorf("expected %q", ch)
	}
	p.pos++
	return nil
}

func (p *exprParser) peek() byte {
	p.skipSpace()
	if p.pos >= len(p.src) {
		return 0
	}
	return p.src[p.pos]
}

func (p *exprParser) ident() string {
	p.skipSpace()
	start := p.pos
	for p.pos < len(p.src) {
		c := rune(p.src[p.pos])
		if !(unicode.IsLetter(c) || unicode.IsDigit(c) || c == '_') {
			break
		}
		p.pos++
	}
	return p.src[start:p.pos]
}

func (p *exprParser) statement() (Filter, error) {
	name := strings.ToLower(p.ident())
	if name == "" {
		return nil, p.errorf("expected comparator or operator")
	}
	if err := p.expect('('); err != nil {
		return nil, err
	}

	if op := Operator(name); op.valid() {
		var args []Filter
		for {
			arg, err := p.statement()
			if err != nil {
				return nil, err
			}
			args = append(args, arg)
			if p.peek() != ',' {
				break
			}
			p.pos++
		}
		if err := p.expect(')'); err != nil {
			return nil, err
		}
		if op == Not && len(args) != 1 {
			return nil, p.errorf("not takes exactly one statement")
		}
		return &Operation{Operator: op, Arguments: args}, nil
	}

	comp := Comparator(name)
	if !comp.valid() {
		return nil, p.errorf("unknown comparator or operator %q", name)
	}
	attr, err := p.attribute()
	if err != nil {
		return nil, err
	}
	if p.schema != nil {
		if _, ok := p.schema[attr]; !ok {
			return nil, p.errorf("unknown attribute %q", attr)
		}
	}
	if err := p.expect(','); err != nil {
		return nil, err
	}
	val, err := p.value()
	if err != nil {
		return nil, err
	}
	if err := p.expect(')'); err != nil {
		return nil, err
	}
	return &Comparison{Comparator: comp, Attribute: attr, Value: val}, nil
}

func (p *exprParser) attribute() (string, error) {
	if c := p.peek(); c == '"' || c == '\'' {
		return p.quoted()
	}
	attr := p.ident()
	if attr == "" {
		return "", p.errorf("expected attribute")
	}
	return attr, nil
}

func (p *exprParser) quoted() (string, error) {
	p.skipSpace()
	q := p.src[p.pos]
	p.pos++
	start := p.pos
	for p.pos < len(p.src) && p.src[p.pos] != q {
		p.pos++
	}
	if p.pos >= len(p.src) {
		return "", p.errorf("unterminated string")
	}
	s := p.src[start:p.pos]
	p.pos++
	return s, nil
}

func (p *exprParser) value() (any, error) {
	c := p.peek()
	switch {
	case c == '"' || c == '\'':
		s, err := p.quoted()
		if err != nil {
			return nil, err
		}
		// numbers are sometimes quoted by the model
		if f, err := strconv.ParseFloat(strings.TrimSpace(s), 64); err == nil {
			return f, nil
		}
		return s, nil
	case c == '-' || c == '+' || c == '.' || (c >= '0' && c <= '9'):
		start := p.pos
		p.pos++
		for p.pos < len(p.src) && strings.IndexByte("0123456789.eE+-", p.src[p.pos]) >= 0 {
			p.pos++
		}
		f, err := strconv.ParseFloat(p.src[start:p.pos], 64)
		if err != nil {
			return nil, p.errorf("invalid number %q", p.src[start:p.pos])
		}
		return f, nil
	}
	word := p.ident()
	switch strings.ToLower(word) {
	case "true":
		return true, nil
	case "false":
		return false, nil
	case "":
		return nil, p.errorf("expected value")
	default:
		return word, nil
	}
}
