package querysql

import (
	"regexp"
	"strings"

	"github.com/roach88/docquery/internal/condition"
	"github.com/roach88/docquery/internal/queryir"
)

// jsonPathQuery builds $."base"[*] ? (<filter>) for a join node. ok is false
// when any inner clause has no jsonpath equivalent.
func jsonPathQuery(j queryir.Join) (string, bool) {
	filter, ok := jsonPathConjunction(j.Inner)
	if !ok {
		return "", false
	}
	return "$" + jsonPathSteps(j.Base) + "[*] ? (" + filter + ")", true
}

func jsonPathSteps(path string) string {
	var b strings.Builder
	for _, seg := range splitPath(path) {
		lit, _ := jsonText(seg)
		b.WriteString(".")
		b.WriteString(lit)
	}
	return b.String()
}

func jsonPathConjunction(ps []queryir.Predicate) (string, bool) {
	if len(ps) == 0 {
		return "", false
	}
	parts := make([]string, 0, len(ps))
	for _, p := range ps {
		expr, compound, ok := jsonPathPredicate(p)
		if !ok {
			return "", false
		}
		if compound && len(ps) > 1 {
			expr = "(" + expr + ")"
		}
		parts = append(parts, expr)
	}
	return strings.Join(parts, " && "), true
}

// jsonPathPredicate renders p relative to the current element @.
func jsonPathPredicate(p queryir.Predicate) (expr string, compound bool, ok bool) {
	switch n := p.(type) {
	case queryir.Simple:
		return jsonPathClause(n.Field, n.Op, n.Value)
	case queryir.Or:
		parts := make([]string, 0, len(n.Fields))
		for _, f := range n.Fields {
			e, c, ok := jsonPathClause(f, n.Op, n.Value)
			if !ok {
				return "", false, false
			}
			if c {
				e = "(" + e + ")"
			}
			parts = append(parts, e)
		}
		return strings.Join(parts, " || "), len(parts) > 1, true
	case queryir.And:
		return jsonPathJoin(n.Predicates, " && ")
	case queryir.AnyOf:
		return jsonPathJoin(n.Predicates, " || ")
	case queryir.Not:
		e, _, ok := jsonPathPredicate(n.Predicate)
		if !ok {
			return "", false, false
		}
		return "!(" + e + ")", false, true
	case queryir.SubQuery:
		return jsonPathSubQuery(n)
	}
	if j, isJoin := queryir.JoinOf(p); isJoin {
		filter, ok := jsonPathConjunction(j.Inner)
		if !ok {
			return "", false, false
		}
		return "exists(@" + jsonPathSteps(j.Base) + "[*] ? (" + filter + "))", false, true
	}
	return "", false, false
}

func jsonPathJoin(ps []queryir.Predicate, sep string) (string, bool, bool) {
	parts := make([]string, 0, len(ps))
	for _, p := range ps {
		e, c, ok := jsonPathPredicate(p)
		if !ok {
			return "", false, false
		}
		if c {
			e = "(" + e + ")"
		}
		parts = append(parts, e)
	}
	return strings.Join(parts, sep), len(parts) > 1, true
}

var jsonPathComparison = map[queryir.Op]string{
	queryir.OpEq: "==",
	queryir.OpNe: "!=",
	queryir.OpLt: "<",
	queryir.OpLe: "<=",
	queryir.OpGt: ">",
	queryir.OpGe: ">=",
}

func jsonPathClause(field string, op queryir.Op, value any) (string, bool, bool) {
	if _, isRef := value.(condition.FieldRef); isRef {
		return "", false, false
	}
	acc := "@" + jsonPathSteps(field)

	switch op {
	case queryir.OpEq, queryir.OpNe, queryir.OpLt, queryir.OpLe, queryir.OpGt, queryir.OpGe:
		lit, ok := jsonPathLiteral(value)
		if !ok {
			return "", false, false
		}
		return acc + " " + jsonPathComparison[op] + " " + lit, false, true
	case queryir.OpIn:
		values := value.([]any)
		parts := make([]string, 0, len(values))
		for _, v := range values {
			lit, ok := jsonPathLiteral(v)
			if !ok {
				return "", false, false
			}
			parts = append(parts, acc+" == "+lit)
		}
		return strings.Join(parts, " || "), len(parts) > 1, true
	case queryir.OpStartsWith:
		s, ok := value.(string)
		if !ok {
			return "", false, false
		}
		lit, _ := jsonText(s)
		return acc + " starts with " + lit, false, true
	case queryir.OpContains, queryir.OpLike, queryir.OpRegexMatch:
		s, ok := value.(string)
		if !ok {
			return "", false, false
		}
		pattern := s
		switch op {
		case queryir.OpContains:
			pattern = regexp.QuoteMeta(s)
		case queryir.OpLike:
			pattern = queryir.LikeToRegex(s)
		}
		lit, _ := jsonText(pattern)
		return acc + " like_regex " + lit, false, true
	case queryir.OpArrayContains:
		lit, ok := jsonPathLiteral(value)
		if !ok {
			return "", false, false
		}
		return acc + "[*] == " + lit, false, true
	case queryir.OpIsDefined:
		if value.(bool) {
			return "exists(" + acc + ")", false, true
		}
		return "!exists(" + acc + ")", false, true
	case queryir.OpIsNumber, queryir.OpIsString, queryir.OpIsBool, queryir.OpIsArray, queryir.OpIsObject, queryir.OpIsNull:
		// a negated type check must also match missing fields, which
		// jsonpath comparisons cannot express
		if !value.(bool) {
			return "", false, false
		}
		return acc + `.type() == "` + op.JSONType() + `"`, false, true
	}
	return "", false, false
}

func jsonPathSubQuery(q queryir.SubQuery) (string, bool, bool) {
	acc := "@" + jsonPathSteps(q.Field) + "[*]" + jsonPathSteps(q.FilterKey)
	parts := make([]string, 0, len(q.Values))
	for _, v := range q.Values {
		lit, ok := jsonPathLiteral(v)
		if !ok {
			return "", false, false
		}
		parts = append(parts, acc+" == "+lit)
	}
	if len(parts) == 0 {
		return "", false, false
	}
	sep := " || "
	if q.Op == queryir.OpArrayContainsAll {
		sep = " && "
	}
	return strings.Join(parts, sep), len(parts) > 1, true
}

// jsonPathLiteral renders a scalar as a jsonpath literal.
func jsonPathLiteral(v any) (string, bool) {
	switch queryir.KindOf(v) {
	case queryir.KindNull, queryir.KindBool, queryir.KindNumber, queryir.KindString:
		lit, err := jsonText(v)
		return lit, err == nil
	default:
		return "", false
	}
}
