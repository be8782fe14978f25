package queryir

import (
	"strings"

	"github.com/roach88/docquery/internal/condition"
)

// Key is a parsed filter key: field [OR field]* [op [filterKey]].
type Key struct {
	// Fields holds one path, or several for an "a OR b" family.
	Fields []string

	Op Op

	// Token is the operator as written; the function name for OpUnknown.
	Token string

	// FilterKey names the element field tested by ARRAY_CONTAINS_ANY/ALL.
	FilterKey string

	// Explicit is false when Op was inferred from the value.
	Explicit bool
}

// ParseKey parses key, inferring the operator from value when the key
// carries none: IN for collections, = otherwise.
func ParseKey(key string, value any) (Key, error) {
	tokens := strings.Fields(key)
	if len(tokens) == 0 {
		return Key{}, condition.NewValidationError(condition.ErrCodeInvalidKey, key, "empty filter key")
	}

	k := Key{Fields: []string{tokens[0]}}
	i := 1
	for i < len(tokens) && tokens[i] == "OR" {
		if i+1 >= len(tokens) {
			return Key{}, condition.NewValidationError(condition.ErrCodeInvalidKey, key, "OR must be followed by a field")
		}
		k.Fields = append(k.Fields, tokens[i+1])
		i += 2
	}

	rest := tokens[i:]
	switch len(rest) {
	case 0:
		if _, isColl := Elements(value); isColl {
			k.Op = OpIn
		} else {
			k.Op = OpEq
		}
		k.Token = k.Op.String()
		return k, nil
	case 1, 2:
		op, ok := ParseOp(rest[0])
		if !ok {
			return Key{}, condition.NewValidationError(condition.ErrCodeInvalidKey, key, "unknown operator %q", rest[0])
		}
		k.Op = op
		k.Token = rest[0]
		if op != OpUnknown {
			k.Token = op.String()
		}
		k.Explicit = true
		if len(rest) == 2 {
			if op != OpArrayContainsAny && op != OpArrayContainsAll {
				return Key{}, condition.NewValidationError(condition.ErrCodeInvalidKey, key, "only ARRAY_CONTAINS_ANY/ALL take a filter key")
			}
			k.FilterKey = rest[1]
		}
		return k, nil
	default:
		return Key{}, condition.NewValidationError(condition.ErrCodeInvalidKey, key, "unexpected tokens after operator")
	}
}
