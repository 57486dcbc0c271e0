package vectorstore

import (
	"errors"
	"fmt"
	"strconv"
)

// ErrInvalidFilter indicates an unparseable filter expression.
var ErrInvalidFilter = errors.New("invalid filter expression")

// Op is a filter comparison operator.
type Op string

// Supported filter operators.
const (
	OpEq  Op = "=="
	OpGte Op = ">="
	OpLte Op = "<="
)

// Condition is one predicate on a metadata field.
type Condition struct {
	Op    Op
	Value interface{}
}

// Filter maps metadata field names to predicates. An entry matches when
// every condition on every field holds. Equality and the two range
// operators are supported on numeric and string fields; the pipeline does
// not interpret field semantics and passes filters through unchanged.
type Filter map[string][]Condition

// ParseFilter converts the wire shape of a filter into a Filter.
//
// Accepted forms per field:
//
//	{"scenario_category": "Aggressive Growth"}   exact match
//	{"age": {">=": 30, "<=": 50}}                range operators
func ParseFilter(raw map[string]interface{}) (Filter, error) {
	if len(raw) == 0 {
		return nil, nil
	}

	f := make(Filter, len(raw))
	for field, spec := range raw {
		switch v := spec.(type) {
		case map[string]interface{}:
			for op, val := range v {
				switch Op(op) {
				case OpGte, OpLte, OpEq:
					f[field] = append(f[field], Condition{Op: Op(op), Value: val})
				default:
					return nil, fmt.Errorf("%w: unknown operator %q on field %q", ErrInvalidFilter, op, field)
				}
			}
		default:
			f[field] = append(f[field], Condition{Op: OpEq, Value: v})
		}
	}
	return f, nil
}

// Matches reports whether metadata satisfies every condition in the filter.
// Numeric comparison is used when both sides coerce to float64, otherwise
// values compare as strings.
func (f Filter) Matches(metadata map[string]interface{}) bool {
	for field, conditions := range f {
		val, ok := metadata[field]
		if !ok {
			return false
		}
		for _, cond := range conditions {
			if !cond.matches(val) {
				return false
			}
		}
	}
	return true
}

func (c Condition) matches(val interface{}) bool {
	lf, lok := toFloat(val)
	rf, rok := toFloat(c.Value)
	if lok && rok {
		switch c.Op {
		case OpEq:
			return lf == rf
		case OpGte:
			return lf >= rf
		case OpLte:
			return lf <= rf
		}
		return false
	}

	ls := fmt.Sprintf("%v", val)
	rs := fmt.Sprintf("%v", c.Value)
	switch c.Op {
	case OpEq:
		return ls == rs
	case OpGte:
		return ls >= rs
	case OpLte:
		return ls <= rs
	}
	return false
}

func toFloat(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case float32:
		return float64(n), true
	case float64:
		return n, true
	case string:
		f, err := strconv.ParseFloat(n, 64)
		if err != nil {
			return 0, false
		}
		return f, true
	default:
		return 0, false
	}
}
