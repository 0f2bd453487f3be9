package selfquery

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/cyber-bartender/server/internal/retrieval/vectorstore"
)

// Comparator of a comparison statement.
type Comparator string

const (
	Eq  Comparator = "eq"
	Ne  Comparator = "ne"
	Gt  Comparator = "gt"
	Gte Comparator = "gte"
	Lt  Comparator = "lt"
	Lte Comparator = "lte"
)

// IsRange reports whether c orders values rather than testing equality.
func (c Comparator) IsRange() bool {
	switch c {
	case Gt, Gte, Lt, Lte:
		return true
	}
	return false
}

func (c Comparator) valid() bool {
	return c == Eq || c == Ne || c.IsRange()
}

// Operator of a logical operation statement.
type Operator string

const (
	And Operator = "and"
	Or  Operator = "or"
	Not Operator = "not"
)

func (o Operator) valid() bool {
	return o == And || o == Or || o == Not
}

// Filter is a boolean expression over document metadata.
type Filter interface {
	vectorstore.Predicate
	String() string
}

// Comparison is comp(attr, val).
type Comparison struct {
	Comparator Comparator
	Attribute  string
	Value      any // float64, string or bool
}

// Operation is op(statement, ...).
type Operation struct {
	Operator  Operator
	Arguments []Filter
}

// Match evaluates the comparison against metadata. A missing attribute
// never matches.
func (c *Comparison) Match(meta map[string]any) bool {
	got, ok := meta[c.Attribute]
	if !ok || got == nil {
		return false
	}

	if a, ok := toFloat(got); ok {
		if b, ok := toFloat(c.Value); ok {
			switch c.Comparator {
			case Eq:
				return a == b
			case Ne:
				return a != b
			case Gt:
				return a > b
			case Gte:
				return a >= b
			case Lt:
				return a < b
			case Lte:
				return a <= b
			}
			return false
		}
	}

	a, b := fmt.Sprint(got), fmt.Sprint(c.Value)
	switch c.Comparator {
	case Eq:
		return strings.EqualFold(a, b)
	case Ne:
		return !strings.EqualFold(a, b)
	case Gt:
		return a > b
	case Gte:
		return a >= b
	case Lt:
		return a < b
	case Lte:
		return a <= b
	}
	return false
}

func (c *Comparison) String() string {
	return fmt.Sprintf("%s(%s, %s)", c.Comparator, strconv.Quote(c.Attribute), formatValue(c.Value))
}

// Match evaluates the logical operation.
func (o *Operation) Match(meta map[string]any) bool {
	switch o.Operator {
	case And:
		for _, a := range o.Arguments {
			if !a.Match(meta) {
				return false
			}
		}
		return true
	case Or:
		for _, a := range o.Arguments {
			if a.Match(meta) {
				return true
			}
		}
		return false
	case Not:
		return len(o.Arguments) == 1 && !o.Arguments[0].Match(meta)
	}
	return false
}

func (o *Operation) String() string {
	parts := make([]string, len(o.Arguments))
	for i, a := range o.Arguments {
		parts[i] = a.String()
	}
	return fmt.Sprintf("%s(%s)", o.Operator, strings.Join(parts, ", "))
}

func formatValue(v any) string {
	switch x := v.(type) {
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case string:
		return strconv.Quote(x)
	case bool:
		return strconv.FormatBool(x)
	}
	return fmt.Sprint(v)
}

func toFloat(v any) (float64, bool) {
	switch x := v.(type) {
	case float64:
		return x, true
	case float32:
		return float64(x), true
	case int:
		return float64(x), true
	case int64:
		return float64(x), true
	case int32:
		return float64(x), true
	}
	return 0, false
}

// GuardSentinels rewrites every range comparison on an attribute that has a
// sentinel so the sentinel can never satisfy it. Under an even number of
// negations c becomes and(c, ne(attr, s)); under an odd number it becomes
// or(c, eq(attr, s)), which negates to the same exclusion.
func GuardSentinels(f Filter, schema Schema) Filter {
	if f == nil {
		return nil
	}
	return guard(f, schema, false)
}

func guard(f Filter, schema Schema, negated bool) Filter {
	switch x := f.(type) {
	case *Comparison:
		if !x.Comparator.IsRange() {
			return x
		}
		attr, ok := schema[x.Attribute]
		if !ok || attr.Sentinel == nil {
			return x
		}
		if negated {
			return &Operation{Operator: Or, Arguments: []Filter{x, &Comparison{Comparator: Eq, Attribute: x.Attribute, Value: *attr.Sentinel}}}
		}
		return &Operation{Operator: And, Arguments: []Filter{x, &Comparison{Comparator: Ne, Attribute: x.Attribute, Value: *attr.Sentinel}}}
	case *Operation:
		childNegated := negated
		if x.Operator == Not {
			childNegated = !negated
		}
		args := make([]Filter, len(x.Arguments))
		for i, a := range x.Arguments {
			args[i] = guard(a, schema, childNegated)
		}
		return &Operation{Operator: x.Operator, Arguments: args}
	}
	return f
}
