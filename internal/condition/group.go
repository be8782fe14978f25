package condition

import "strings"

// Group is the kind of a reserved logical filter key.
type Group int

const (
	GroupNone Group = iota
	GroupAnd
	GroupOr
	GroupNot
	GroupElemMatch
)

var groupPrefixes = []struct {
	prefix string
	group  Group
}{
	{"$ELEM_MATCH", GroupElemMatch},
	{"$AND", GroupAnd},
	{"$NOT", GroupNot},
	{"$OR", GroupOr},
}

// GroupOf classifies a filter key. A group key is one of the reserved
// prefixes optionally followed by a suffix that starts with a non-letter
// ("$OR 2", "$OR_b"), which lets one level hold several groups.
func GroupOf(key string) Group {
	for _, g := range groupPrefixes {
		if !strings.HasPrefix(key, g.prefix) {
			continue
		}
		rest := key[len(g.prefix):]
		if rest == "" {
			return g.group
		}
		c := rest[0]
		if (c >= 'A' && c <= 'Z') || (c >= 'a' && c <= 'z') {
			continue
		}
		return g.group
	}
	return GroupNone
}

// SubConditions returns the conditions held by an $AND / $OR / $NOT value.
//
// Accepted shapes: *Condition, []*Condition, *Builder, []*Builder, Map and
// []Map. A Map yields one condition per entry so that {"a": 1, "b": 2}
// under $OR means a = 1 OR b = 2.
func SubConditions(key string, value any) ([]*Condition, error) {
	switch v := value.(type) {
	case bool:
		if v {
			return []*Condition{True()}, nil
		}
		return []*Condition{False()}, nil
	case *Condition:
		if v == nil {
			return nil, newValidationError(ErrCodeInvalidSubCondition, key, "nil sub-condition")
		}
		return []*Condition{v}, nil
	case []*Condition:
		for i, c := range v {
			if c == nil {
				return nil, newValidationError(ErrCodeInvalidSubCondition, key, "nil sub-condition at index %d", i)
			}
		}
		return v, nil
	case *Builder:
		c, err := v.Build()
		if err != nil {
			return nil, err
		}
		return []*Condition{c}, nil
	case []*Builder:
		out := make([]*Condition, 0, len(v))
		for _, b := range v {
			c, err := b.Build()
			if err != nil {
				return nil, err
			}
			out = append(out, c)
		}
		return out, nil
	case Map:
		out := make([]*Condition, 0, v.Len())
		for k, val := range v.All() {
			var m Map
			m.Set(k, val)
			out = append(out, &Condition{Filter: m, ReturnAllSubArray: true})
		}
		return out, nil
	case []Map:
		out := make([]*Condition, 0, len(v))
		for _, m := range v {
			out = append(out, &Condition{Filter: m, ReturnAllSubArray: true})
		}
		return out, nil
	case []any:
		out := make([]*Condition, 0, len(v))
		for i, elem := range v {
			subs, err := SubConditions(key, elem)
			if err != nil {
				return nil, err
			}
			if m, ok := elem.(Map); ok {
				// a Map inside a list is one condition, not one per entry
				subs = []*Condition{{Filter: m, ReturnAllSubArray: true}}
			}
			if len(subs) != 1 {
				return nil, newValidationError(ErrCodeInvalidSubCondition, key, "element %d must be a single condition", i)
			}
			out = append(out, subs[0])
		}
		return out, nil
	default:
		return nil, newValidationError(ErrCodeInvalidSubCondition, key, "unsupported sub-condition type %T", value)
	}
}

// NotCondition returns the single condition held by a $NOT value. A Map is
// one condition whose entries are ANDed.
func NotCondition(key string, value any) (*Condition, error) {
	if m, ok := value.(Map); ok {
		return &Condition{Filter: m, ReturnAllSubArray: true}, nil
	}
	subs, err := SubConditions(key, value)
	if err != nil {
		return nil, err
	}
	if len(subs) != 1 {
		return nil, newValidationError(ErrCodeInvalidSubCondition, key, "$NOT takes exactly one condition, got %d", len(subs))
	}
	return subs[0], nil
}

// ElemMatchFilter returns the filter held by an $ELEM_MATCH value.
func ElemMatchFilter(key string, value any) (Map, error) {
	switch v := value.(type) {
	case Map:
		return v, nil
	case *Condition:
		if v == nil {
			return Map{}, newValidationError(ErrCodeInvalidSubCondition, key, "nil $ELEM_MATCH condition")
		}
		return v.Filter, nil
	case *Builder:
		c, err := v.Build()
		if err != nil {
			return Map{}, err
		}
		return c.Filter, nil
	default:
		return Map{}, newValidationError(ErrCodeInvalidSubCondition, key, "$ELEM_MATCH requires a map or condition, got %T", value)
	}
}

// JoinBase returns the longest declared join base covering path.
// A base covers path when path equals it or starts with base + ".".
func JoinBase(path string, joins []string) (string, bool) {
	best := ""
	found := false
	for _, base := range joins {
		if base == "" {
			continue
		}
		if path == base || strings.HasPrefix(path, base+".") {
			if len(base) > len(best) {
				best = base
				found = true
			}
		}
	}
	return best, found
}

// keyFields returns the field paths named by a filter key: the first token
// plus every token following an "OR".
func keyFields(key string) []string {
	tokens := strings.Fields(key)
	if len(tokens) == 0 {
		return nil
	}
	fields := []string{tokens[0]}
	for i := 1; i+1 < len(tokens); i += 2 {
		if tokens[i] != "OR" {
			break
		}
		fields = append(fields, tokens[i+1])
	}
	return fields
}
