package queryir

import (
	"regexp"
	"strings"

	"github.com/roach88/docquery/internal/condition"
)

// Match evaluates p against an in-memory document.
//
// Documents are JSON-shaped: map[string]any or condition.Map objects, []any
// arrays, float64/int numbers, strings, bools and nil. Field references
// resolve from the document root, also inside joins. A missing field never
// satisfies a comparison, including !=.
func Match(p Predicate, doc any) bool {
	return match(p, doc, doc)
}

func match(p Predicate, scope, root any) bool {
	switch n := p.(type) {
	case nil:
		return true
	case Const:
		return n.Value
	case And:
		for _, c := range n.Predicates {
			if !match(c, scope, root) {
				return false
			}
		}
		return true
	case AnyOf:
		for _, c := range n.Predicates {
			if match(c, scope, root) {
				return true
			}
		}
		return false
	case Not:
		return !match(n.Predicate, scope, root)
	case Simple:
		return matchField(n.Field, n.Op, n.Value, scope, root)
	case Or:
		for _, f := range n.Fields {
			if matchField(f, n.Op, n.Value, scope, root) {
				return true
			}
		}
		return false
	case SubQuery:
		return matchSubQuery(n, scope)
	}

	j, ok := JoinOf(p)
	if !ok {
		return false
	}
	val, found := Lookup(scope, j.Base)
	elems, isArr := val.([]any)
	if !found || !isArr {
		return false
	}
	for _, elem := range elems {
		all := true
		for _, inner := range j.Inner {
			if !match(inner, elem, root) {
				all = false
				break
			}
		}
		if all {
			return true
		}
	}
	return false
}

// Lookup resolves a dotted path inside doc. The empty path is doc itself.
func Lookup(doc any, path string) (any, bool) {
	if path == "" {
		return doc, true
	}
	cur := doc
	for _, seg := range strings.Split(path, ".") {
		switch obj := cur.(type) {
		case map[string]any:
			v, ok := obj[seg]
			if !ok {
				return nil, false
			}
			cur = v
		case condition.Map:
			v, ok := obj.Get(seg)
			if !ok {
				return nil, false
			}
			cur = v
		default:
			return nil, false
		}
	}
	return cur, true
}

func matchField(field string, op Op, want any, scope, root any) bool {
	got, found := Lookup(scope, field)

	if ref, ok := want.(condition.FieldRef); ok {
		other, otherFound := Lookup(root, string(ref))
		if !found || !otherFound {
			return false
		}
		return compareOp(got, op, other)
	}

	switch op {
	case OpIsDefined:
		return found == want.(bool)
	case OpIsNumber, OpIsString, OpIsBool, OpIsArray, OpIsObject, OpIsNull:
		is := found && jsonType(got) == op.JSONType()
		return is == want.(bool)
	}
	if !found {
		return false
	}

	switch op {
	case OpEq, OpNe, OpLt, OpLe, OpGt, OpGe:
		return compareOp(got, op, want)
	case OpIn:
		for _, w := range want.([]any) {
			if Equal(got, w) {
				return true
			}
		}
		return false
	case OpStartsWith, OpContains, OpLike, OpRegexMatch:
		s, ok1 := got.(string)
		pattern, ok2 := want.(string)
		if !ok1 || !ok2 {
			return false
		}
		switch op {
		case OpStartsWith:
			return strings.HasPrefix(s, pattern)
		case OpContains:
			return strings.Contains(s, pattern)
		case OpLike:
			return matchLike(s, pattern)
		default:
			re, err := regexp.Compile(pattern)
			return err == nil && re.MatchString(s)
		}
	case OpArrayContains:
		elems, ok := got.([]any)
		if !ok {
			return false
		}
		for _, e := range elems {
			if Contains(e, want) {
				return true
			}
		}
		return false
	default:
		// unknown functions have no in-memory semantics
		return false
	}
}

func matchSubQuery(q SubQuery, scope any) bool {
	got, found := Lookup(scope, q.Field)
	elems, ok := got.([]any)
	if !found || !ok || len(q.Values) == 0 {
		return false
	}
	has := func(v any) bool {
		for _, e := range elems {
			if q.FilterKey == "" {
				if Contains(e, v) {
					return true
				}
				continue
			}
			if inner, ok := Lookup(e, q.FilterKey); ok && Contains(inner, v) {
				return true
			}
		}
		return false
	}
	for _, v := range q.Values {
		hit := has(v)
		if q.Op == OpArrayContainsAny && hit {
			return true
		}
		if q.Op == OpArrayContainsAll && !hit {
			return false
		}
	}
	return q.Op == OpArrayContainsAll
}

func compareOp(got any, op Op, want any) bool {
	switch op {
	case OpEq:
		return Equal(got, want)
	case OpNe:
		return !Equal(got, want)
	}
	if a, ok := ToFloat64(got); ok {
		b, ok := ToFloat64(want)
		if !ok {
			return false
		}
		return ordered(op, cmp3(a, b))
	}
	if a, ok := got.(string); ok {
		b, ok := want.(string)
		if !ok {
			return false
		}
		return ordered(op, strings.Compare(a, b))
	}
	return false
}

func cmp3(a, b float64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

func ordered(op Op, c int) bool {
	switch op {
	case OpLt:
		return c < 0
	case OpLe:
		return c <= 0
	case OpGt:
		return c > 0
	case OpGe:
		return c >= 0
	default:
		return false
	}
}

// Equal compares two JSON-shaped values structurally. Numbers compare by
// value regardless of Go type.
func Equal(a, b any) bool {
	a, b = Normalize(a), Normalize(b)
	if x, ok := ToFloat64(a); ok {
		y, ok := ToFloat64(b)
		return ok && x == y
	}
	switch x := a.(type) {
	case nil:
		return b == nil
	case string:
		y, ok := b.(string)
		return ok && x == y
	case bool:
		y, ok := b.(bool)
		return ok && x == y
	case []any:
		y, ok := b.([]any)
		if !ok || len(x) != len(y) {
			return false
		}
		for i := range x {
			if !Equal(x[i], y[i]) {
				return false
			}
		}
		return true
	case condition.Map:
		y, ok := b.(condition.Map)
		if !ok || x.Len() != y.Len() {
			return false
		}
		for k, v := range x.All() {
			w, ok := y.Get(k)
			if !ok || !Equal(v, w) {
				return false
			}
		}
		return true
	}
	return false
}

// Contains reports JSON containment: objects contain every key of the
// candidate (recursively), arrays contain every candidate element, and
// scalars must be equal.
func Contains(have, want any) bool {
	have, want = Normalize(have), Normalize(want)
	switch w := want.(type) {
	case condition.Map:
		h, ok := have.(condition.Map)
		if !ok {
			return false
		}
		for k, wv := range w.All() {
			hv, ok := h.Get(k)
			if !ok || !Contains(hv, wv) {
				return false
			}
		}
		return true
	case []any:
		h, ok := have.([]any)
		if !ok {
			return false
		}
		for _, wv := range w {
			found := false
			for _, hv := range h {
				if Contains(hv, wv) {
					found = true
					break
				}
			}
			if !found {
				return false
			}
		}
		return true
	}
	return Equal(have, want)
}

func jsonType(v any) string {
	switch KindOf(Normalize(v)) {
	case KindNull:
		return "null"
	case KindBool:
		return "boolean"
	case KindNumber:
		return "number"
	case KindString:
		return "string"
	case KindArray:
		return "array"
	case KindObject:
		return "object"
	default:
		return ""
	}
}

// LikeToRegex converts a LIKE pattern, where % is any run and _ is any
// single character, into an anchored regular expression.
func LikeToRegex(pattern string) string {
	var b strings.Builder
	b.WriteString("^")
	for _, r := range pattern {
		switch r {
		case '%':
			b.WriteString(".*")
		case '_':
			b.WriteString(".")
		default:
			b.WriteString(regexp.QuoteMeta(string(r)))
		}
	}
	b.WriteString("$")
	return b.String()
}

func matchLike(s, pattern string) bool {
	re, err := regexp.Compile("(?s)" + LikeToRegex(pattern))
	return err == nil && re.MatchString(s)
}
