package condition

import "strings"

// Validate checks the construction-time invariants of c.
//
// Returns a *ValidationError describing the first violation found, in
// filter order.
func (c *Condition) Validate() error {
	if c == nil {
		return newValidationError(ErrCodeInvalidArguments, "", "nil condition")
	}
	if c.Raw != nil {
		return nil
	}
	if c.Negative && len(c.Join) > 0 {
		return newValidationError(ErrCodeNegativeWithJoin, "", "negative cannot be combined with join %v", c.Join)
	}
	if c.Offset < 0 {
		return newValidationError(ErrCodeInvalidArguments, "", "offset must be >= 0, got %d", c.Offset)
	}
	if c.Limit < 0 {
		return newValidationError(ErrCodeInvalidArguments, "", "limit must be >= 0, got %d", c.Limit)
	}
	for _, s := range c.Sort {
		if strings.TrimSpace(s.Field) == "" {
			return newValidationError(ErrCodeInvalidArguments, "", "empty sort field")
		}
	}
	for _, j := range c.Join {
		if strings.TrimSpace(j) == "" || strings.ContainsAny(j, " \t") {
			return newValidationError(ErrCodeInvalidArguments, j, "invalid join path")
		}
	}
	return validateFilter(c.Filter, c.Join, false)
}

func validateFilter(m Map, joins []string, inElemMatch bool) error {
	for key, value := range m.All() {
		if strings.TrimSpace(key) == "" {
			return newValidationError(ErrCodeInvalidKey, key, "empty filter key")
		}
		group := GroupOf(key)
		if inElemMatch && group != GroupNone {
			return newValidationError(ErrCodeInvalidSubCondition, key, "logical groups are not supported inside $ELEM_MATCH")
		}
		switch group {
		case GroupAnd, GroupOr:
			subs, err := SubConditions(key, value)
			if err != nil {
				return err
			}
			for _, sub := range subs {
				if err := validateSub(key, sub, joins); err != nil {
					return err
				}
			}
		case GroupNot:
			sub, err := NotCondition(key, value)
			if err != nil {
				return err
			}
			if err := validateSub(key, sub, joins); err != nil {
				return err
			}
		case GroupElemMatch:
			if len(joins) == 0 {
				return newValidationError(ErrCodeElemMatchWithoutJoin, key, "$ELEM_MATCH requires a declared join")
			}
			inner, err := ElemMatchFilter(key, value)
			if err != nil {
				return err
			}
			if inner.Len() == 0 {
				return newValidationError(ErrCodeInvalidSubCondition, key, "empty $ELEM_MATCH")
			}
			if err := validateFilter(inner, joins, true); err != nil {
				return err
			}
		default:
			if err := validateKey(key); err != nil {
				return err
			}
			if inElemMatch {
				for _, f := range keyFields(key) {
					if _, ok := JoinBase(f, joins); !ok {
						return newValidationError(ErrCodeElemMatchWithoutJoin, key, "field %q is not under any join base %v", f, joins)
					}
				}
			}
		}
	}
	return nil
}

func validateSub(key string, sub *Condition, joins []string) error {
	if sub.Raw != nil {
		return newValidationError(ErrCodeInvalidSubCondition, key, "raw queries are only allowed at the top level")
	}
	if sub.Constant != ConstNone {
		return nil
	}
	return validateFilter(sub.Filter, joins, false)
}

// validateKey checks the token layout of a clause key:
// field [OR field]* [op [filterKey]].
func validateKey(key string) error {
	tokens := strings.Fields(key)
	i := 1
	for i+1 < len(tokens) && tokens[i] == "OR" {
		i += 2
	}
	if i < len(tokens) && tokens[i] == "OR" {
		return newValidationError(ErrCodeInvalidKey, key, "OR must be followed by a field")
	}
	if len(tokens)-i > 2 {
		return newValidationError(ErrCodeInvalidKey, key, "unexpected tokens after operator")
	}
	return nil
}
