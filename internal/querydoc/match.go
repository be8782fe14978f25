package querydoc

import (
	"fmt"
	"regexp"
	"strings"

	"go.mongodb.org/mongo-driver/bson"

	"github.com/roach88/docquery/internal/condition"
	"github.com/roach88/docquery/internal/queryir"
)

// renderer turns predicates into query documents within one QueryContext.
type renderer struct {
	ctx *QueryContext

	// rename maps output aliases to stored field names; set only while
	// rendering a post-aggregate condition.
	rename map[string]string
}

// scope is the rendering position: top level or inside a join element.
type scope struct {
	path    string // absolute path of the current join, "" at top level
	depth   int
	negated bool
}

var comparisonOps = map[queryir.Op]string{
	queryir.OpEq: "$eq",
	queryir.OpNe: "$ne",
	queryir.OpLt: "$lt",
	queryir.OpLe: "$lte",
	queryir.OpGt: "$gt",
	queryir.OpGe: "$gte",
}

// matchNothing is a filter no document satisfies.
func matchNothing() bson.D {
	return bson.D{{Key: "$expr", Value: false}}
}

// match renders p as a query document relative to the current element.
func (r *renderer) match(p queryir.Predicate, s scope) (bson.D, error) {
	switch n := p.(type) {
	case nil:
		return bson.D{}, nil
	case queryir.Const:
		if n.Value {
			return bson.D{}, nil
		}
		return matchNothing(), nil
	case queryir.And:
		return r.and(n.Predicates, s)
	case queryir.AnyOf:
		return r.anyOf(n.Predicates, s)
	case queryir.Not:
		inner := s
		inner.negated = !s.negated
		d, err := r.match(n.Predicate, inner)
		if err != nil {
			return nil, err
		}
		return bson.D{{Key: "$nor", Value: bson.A{d}}}, nil
	case queryir.Simple:
		return r.clause(n.Field, n.Op, n.Token, n.Value, s)
	case queryir.Or:
		docs := make(bson.A, 0, len(n.Fields))
		for _, f := range n.Fields {
			d, err := r.clause(f, n.Op, n.Token, n.Value, s)
			if err != nil {
				return nil, err
			}
			docs = append(docs, d)
		}
		if len(docs) == 1 {
			return docs[0].(bson.D), nil
		}
		return bson.D{{Key: "$or", Value: docs}}, nil
	case queryir.SubQuery:
		return r.subQuery(n, s), nil
	}

	if j, ok := queryir.JoinOf(p); ok {
		return r.join(j, s)
	}
	return nil, fmt.Errorf("unsupported predicate type: %T", p)
}

// anyOf renders $or with each operand's joins recorded on their own.
func (r *renderer) anyOf(ps []queryir.Predicate, s scope) (bson.D, error) {
	docs := make(bson.A, 0, len(ps))
	branches := make([]*joinSet, 0, len(ps))
	for _, p := range ps {
		js, err := r.ctx.branch(func() error {
			d, err := r.match(p, s)
			docs = append(docs, d)
			return err
		})
		if err != nil {
			return nil, err
		}
		branches = append(branches, js)
	}
	r.ctx.mergeBranches(branches)
	return bson.D{{Key: "$or", Value: docs}}, nil
}

// and merges the rendered documents into one when their keys are disjoint
// and falls back to $and otherwise.
func (r *renderer) and(ps []queryir.Predicate, s scope) (bson.D, error) {
	docs := make([]bson.D, 0, len(ps))
	seen := make(map[string]bool)
	disjoint := true
	for _, p := range ps {
		d, err := r.match(p, s)
		if err != nil {
			return nil, err
		}
		if len(d) == 0 {
			continue
		}
		for _, e := range d {
			if seen[e.Key] {
				disjoint = false
			}
			seen[e.Key] = true
		}
		docs = append(docs, d)
	}
	switch {
	case len(docs) == 0:
		return bson.D{}, nil
	case len(docs) == 1:
		return docs[0], nil
	case disjoint:
		var out bson.D
		for _, d := range docs {
			out = append(out, d...)
		}
		return out, nil
	}
	all := make(bson.A, len(docs))
	for i, d := range docs {
		all[i] = d
	}
	return bson.D{{Key: "$and", Value: all}}, nil
}

// name returns the stored field name of field at s.
func (r *renderer) name(field string, s scope) string {
	if s.depth > 0 || len(r.rename) == 0 || field == "" {
		return field
	}
	head, rest, nested := strings.Cut(field, ".")
	if to, ok := r.rename[head]; ok {
		head = to
	}
	if nested {
		return head + "." + rest
	}
	return head
}

// fieldDoc pairs a field with its condition. The element itself (empty
// field) takes the condition as an operator document.
func fieldDoc(field string, cond any) bson.D {
	if field != "" {
		return bson.D{{Key: field, Value: cond}}
	}
	if d, ok := cond.(bson.D); ok && isOperatorDoc(d) {
		return d
	}
	return bson.D{{Key: "$eq", Value: cond}}
}

func isOperatorDoc(d bson.D) bool {
	for _, e := range d {
		if !strings.HasPrefix(e.Key, "$") {
			return false
		}
	}
	return len(d) > 0
}

// clause renders one field/operator/value triple.
func (r *renderer) clause(field string, op queryir.Op, token string, value any, s scope) (bson.D, error) {
	if ref, ok := value.(condition.FieldRef); ok {
		if s.depth > 0 {
			return nil, fmt.Errorf("field %q: field references inside a join are not supported by the document target",
				joinPath(s.path, field))
		}
		return bson.D{{Key: "$expr", Value: bson.D{{Key: comparisonOps[op], Value: bson.A{
			"$" + r.name(field, s), "$" + r.name(string(ref), s),
		}}}}}, nil
	}

	var cond any
	switch op {
	case queryir.OpEq:
		switch queryir.KindOf(value) {
		case queryir.KindArray, queryir.KindObject:
			cond = bson.D{{Key: "$eq", Value: toBSON(value)}}
		default:
			cond = value
		}
	case queryir.OpNe, queryir.OpLt, queryir.OpLe, queryir.OpGt, queryir.OpGe:
		cond = bson.D{{Key: comparisonOps[op], Value: toBSON(value)}}
	case queryir.OpIn:
		cond = bson.D{{Key: "$in", Value: literals(value.([]any))}}
	case queryir.OpStartsWith:
		cond = bson.D{{Key: "$regex", Value: "^" + regexp.QuoteMeta(toText(value))}}
	case queryir.OpContains:
		cond = bson.D{{Key: "$regex", Value: regexp.QuoteMeta(toText(value))}}
	case queryir.OpLike:
		cond = bson.D{{Key: "$regex", Value: queryir.LikeToRegex(toText(value))}, {Key: "$options", Value: "s"}}
	case queryir.OpRegexMatch:
		cond = bson.D{{Key: "$regex", Value: toText(value)}}
	case queryir.OpArrayContains:
		if _, isMap := value.(condition.Map); isMap {
			cond = bson.D{{Key: "$elemMatch", Value: toBSON(value)}}
		} else {
			cond = toBSON(value)
		}
	case queryir.OpIsDefined:
		cond = bson.D{{Key: "$exists", Value: value.(bool)}}
	case queryir.OpIsNumber, queryir.OpIsString, queryir.OpIsBool, queryir.OpIsArray, queryir.OpIsObject, queryir.OpIsNull:
		typ := bson.D{{Key: "$type", Value: bsonType(op)}}
		if value.(bool) {
			cond = typ
		} else {
			cond = bson.D{{Key: "$not", Value: typ}}
		}
	case queryir.OpUnknown:
		cond = bson.D{{Key: unknownOperator(token), Value: toBSON(value)}}
	default:
		return nil, fmt.Errorf("operator %s is not supported on the document target", op)
	}
	return fieldDoc(r.name(field, s), cond), nil
}

// subQuery renders ARRAY_CONTAINS_ANY/ALL as $in/$all, against
// field.filterKey when a filter key is given.
func (r *renderer) subQuery(q queryir.SubQuery, s scope) bson.D {
	if len(q.Values) == 0 {
		return matchNothing()
	}
	op := "$in"
	if q.Op == queryir.OpArrayContainsAll {
		op = "$all"
	}
	return fieldDoc(joinPath(r.name(q.Field, s), q.FilterKey), bson.D{{Key: op, Value: literals(q.Values)}})
}

// join renders a join node as $elemMatch and records its element
// predicates for the reshape pass. Negated joins are not recorded.
func (r *renderer) join(j queryir.Join, s scope) (bson.D, error) {
	if !s.negated {
		r.ctx.record(s.path, j)
	}
	inner := scope{path: j.Path, depth: s.depth + 1, negated: s.negated}
	d, err := r.and(j.Inner, inner)
	if err != nil {
		return nil, err
	}
	if len(d) == 0 {
		d = bson.D{{Key: "$exists", Value: true}}
	}
	return bson.D{{Key: r.name(j.Base, s), Value: bson.D{{Key: "$elemMatch", Value: d}}}}, nil
}

func toText(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprint(v)
}
