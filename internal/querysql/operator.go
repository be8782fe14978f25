package querysql

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/roach88/docquery/internal/condition"
	"github.com/roach88/docquery/internal/queryir"
)

// renderer turns predicates into SQL fragments within one QueryContext.
type renderer struct {
	opts Options
	ctx  *QueryContext
}

// fragment is rendered SQL. compound fragments need parentheses when
// nested inside another boolean expression.
type fragment struct {
	sql      string
	compound bool
}

func (f fragment) nested() string {
	if f.compound {
		return "(" + f.sql + ")"
	}
	return f.sql
}

const (
	sqlTrue  = "1=1"
	sqlFalse = "1=0"
)

// predicate renders p within s.
func (r *renderer) predicate(p queryir.Predicate, s scope) (fragment, error) {
	switch n := p.(type) {
	case nil:
		return fragment{sql: sqlTrue}, nil
	case queryir.Const:
		if n.Value {
			return fragment{sql: sqlTrue}, nil
		}
		return fragment{sql: sqlFalse}, nil
	case queryir.And:
		return r.combine(n.Predicates, " AND ", s)
	case queryir.AnyOf:
		return r.anyOf(n.Predicates, s)
	case queryir.Not:
		inner := s
		inner.negated = !s.negated
		f, err := r.predicate(n.Predicate, inner)
		if err != nil {
			return fragment{}, err
		}
		return fragment{sql: "NOT (" + f.sql + ")"}, nil
	case queryir.Simple:
		sql, err := r.clause(n.Field, n.Op, n.Token, n.Value, s)
		if err != nil {
			return fragment{}, err
		}
		return fragment{sql: sql}, nil
	case queryir.Or:
		parts := make([]string, 0, len(n.Fields))
		for _, field := range n.Fields {
			sql, err := r.clause(field, n.Op, n.Token, n.Value, s)
			if err != nil {
				return fragment{}, err
			}
			parts = append(parts, sql)
		}
		return fragment{sql: strings.Join(parts, " OR "), compound: len(parts) > 1}, nil
	case queryir.SubQuery:
		return r.subQuery(n, s)
	}

	if j, ok := queryir.JoinOf(p); ok {
		return r.join(j, s)
	}
	return fragment{}, fmt.Errorf("unsupported predicate type: %T", p)
}

func (r *renderer) combine(ps []queryir.Predicate, sep string, s scope) (fragment, error) {
	parts := make([]string, 0, len(ps))
	for _, p := range ps {
		f, err := r.predicate(p, s)
		if err != nil {
			return fragment{}, err
		}
		parts = append(parts, f.nested())
	}
	return fragment{sql: strings.Join(parts, sep), compound: len(parts) > 1}, nil
}

// anyOf renders an OR, recording the joins of each operand separately so
// the projection keeps elements matched by any one of them.
func (r *renderer) anyOf(ps []queryir.Predicate, s scope) (fragment, error) {
	parts := make([]string, 0, len(ps))
	branches := make([]*joinSet, 0, len(ps))
	for _, p := range ps {
		r.ctx.openBranch()
		f, err := r.predicate(p, s)
		branches = append(branches, r.ctx.closeBranch())
		if err != nil {
			return fragment{}, err
		}
		parts = append(parts, f.nested())
	}
	r.ctx.mergeBranches(branches)
	return fragment{sql: strings.Join(parts, " OR "), compound: len(parts) > 1}, nil
}

var comparisonSQL = map[queryir.Op]string{
	queryir.OpEq: "=",
	queryir.OpNe: "!=",
	queryir.OpLt: "<",
	queryir.OpLe: "<=",
	queryir.OpGt: ">",
	queryir.OpGe: ">=",
}

// clause renders one field/operator/value triple.
func (r *renderer) clause(field string, op queryir.Op, token string, value any, s scope) (string, error) {
	abs := s.absolute(field)
	kind := queryir.KindOf(value)

	if ref, ok := value.(condition.FieldRef); ok {
		return fmt.Sprintf("%s %s %s", jsonAccessor(s.root, field), comparisonSQL[op], jsonAccessor(s.docRoot, string(ref))), nil
	}

	switch op {
	case queryir.OpEq, queryir.OpNe, queryir.OpLt, queryir.OpLe, queryir.OpGt, queryir.OpGe:
		switch kind {
		case queryir.KindNumber, queryir.KindBool, queryir.KindString:
			return fmt.Sprintf("%s %s %s", typedAccessor(s.root, field, kind), comparisonSQL[op], r.ctx.bind(abs, value)), nil
		default:
			p, err := r.bindJSON(abs, value)
			if err != nil {
				return "", err
			}
			return fmt.Sprintf("%s %s %s", jsonAccessor(s.root, field), comparisonSQL[op], p), nil
		}

	case queryir.OpIn:
		return r.in(field, abs, value.([]any), s)

	case queryir.OpStartsWith:
		return fmt.Sprintf("%s LIKE %s", textAccessor(s.root, field), r.ctx.bind(abs, escapeLike(toText(value))+"%")), nil
	case queryir.OpContains:
		return fmt.Sprintf("%s LIKE %s", textAccessor(s.root, field), r.ctx.bind(abs, "%"+escapeLike(toText(value))+"%")), nil
	case queryir.OpLike:
		return fmt.Sprintf("%s LIKE %s", textAccessor(s.root, field), r.ctx.bind(abs, toText(value))), nil
	case queryir.OpRegexMatch:
		return fmt.Sprintf("%s ~ %s", textAccessor(s.root, field), r.ctx.bind(abs, toText(value))), nil

	case queryir.OpArrayContains:
		p, err := r.bindJSON(abs, []any{value})
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("%s @> %s", jsonAccessor(s.root, field), p), nil

	case queryir.OpIsDefined:
		if value.(bool) {
			return jsonAccessor(s.root, field) + " IS NOT NULL", nil
		}
		return jsonAccessor(s.root, field) + " IS NULL", nil

	case queryir.OpIsNumber, queryir.OpIsString, queryir.OpIsBool, queryir.OpIsArray, queryir.OpIsObject, queryir.OpIsNull:
		cmp := "="
		if !value.(bool) {
			cmp = "IS DISTINCT FROM"
		}
		return fmt.Sprintf("jsonb_typeof(%s) %s '%s'", jsonAccessor(s.root, field), cmp, op.JSONType()), nil

	case queryir.OpUnknown:
		switch kind {
		case queryir.KindArray, queryir.KindObject, queryir.KindOther:
			p, err := r.bindJSON(abs, value)
			if err != nil {
				return "", err
			}
			return fmt.Sprintf("%s(%s, %s)", token, jsonAccessor(s.root, field), p), nil
		default:
			return fmt.Sprintf("%s(%s, %s)", token, typedAccessor(s.root, field, kind), r.ctx.bind(abs, value)), nil
		}
	}
	return "", fmt.Errorf("operator %s is not supported on the relational target", op)
}

// in renders membership. Elements sharing a scalar kind compare through the
// typed accessor; mixed or structured elements compare as jsonb.
func (r *renderer) in(field, abs string, values []any, s scope) (string, error) {
	if len(values) == 0 {
		return sqlFalse, nil
	}
	kind := queryir.CommonKind(values)
	placeholders := make([]string, 0, len(values))
	var acc string
	switch kind {
	case queryir.KindNumber, queryir.KindBool, queryir.KindString:
		acc = typedAccessor(s.root, field, kind)
		for _, v := range values {
			placeholders = append(placeholders, r.ctx.bind(abs, v))
		}
	default:
		acc = jsonAccessor(s.root, field)
		for _, v := range values {
			p, err := r.bindJSON(abs, v)
			if err != nil {
				return "", err
			}
			placeholders = append(placeholders, p)
		}
	}
	return fmt.Sprintf("%s IN (%s)", acc, strings.Join(placeholders, ", ")), nil
}

// subQuery renders ARRAY_CONTAINS_ANY/ALL as containment tests.
func (r *renderer) subQuery(q queryir.SubQuery, s scope) (fragment, error) {
	if len(q.Values) == 0 {
		return fragment{sql: sqlFalse}, nil
	}
	acc := jsonAccessor(s.root, q.Field)
	abs := s.absolute(q.Field)

	if q.FilterKey == "" && q.Op == queryir.OpArrayContainsAll {
		p, err := r.bindJSON(abs, q.Values)
		if err != nil {
			return fragment{}, err
		}
		return fragment{sql: acc + " @> " + p}, nil
	}

	parts := make([]string, 0, len(q.Values))
	for _, v := range q.Values {
		elem := v
		if q.FilterKey != "" {
			elem = nestValue(q.FilterKey, v)
		}
		p, err := r.bindJSON(abs, []any{elem})
		if err != nil {
			return fragment{}, err
		}
		parts = append(parts, acc+" @> "+p)
	}
	sep := " OR "
	if q.Op == queryir.OpArrayContainsAll {
		sep = " AND "
	}
	return fragment{sql: strings.Join(parts, sep), compound: len(parts) > 1}, nil
}

// bindJSON binds value as JSON text and casts the placeholder to jsonb.
func (r *renderer) bindJSON(path string, value any) (string, error) {
	text, err := jsonText(value)
	if err != nil {
		return "", fmt.Errorf("encode %s: %w", path, err)
	}
	return r.ctx.bind(path, text) + "::jsonb", nil
}

// nestValue builds {"a": {"b": v}} for the dotted key "a.b".
func nestValue(key string, v any) condition.Map {
	segs := splitPath(key)
	var out condition.Map
	out.Set(segs[len(segs)-1], v)
	for i := len(segs) - 2; i >= 0; i-- {
		var wrap condition.Map
		wrap.Set(segs[i], out)
		out = wrap
	}
	return out
}

func jsonText(v any) (string, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return "", err
	}
	return strings.TrimSuffix(buf.String(), "\n"), nil
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// escapeLike escapes LIKE wildcards so the value matches literally.
func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}

func toText(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprint(v)
}
