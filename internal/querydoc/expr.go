package querydoc

import (
	"fmt"
	"regexp"

	"go.mongodb.org/mongo-driver/bson"

	"github.com/roach88/docquery/internal/condition"
	"github.com/roach88/docquery/internal/queryir"
)

// ref addresses field below an aggregation variable such as $$j1.
func ref(root, field string) string {
	if field == "" {
		return root
	}
	return root + "." + field
}

// arrayOrEmpty evaluates to x when it is an array and to [] otherwise.
func arrayOrEmpty(x any) bson.D {
	return bson.D{{Key: "$cond", Value: bson.A{bson.D{{Key: "$isArray", Value: x}}, x, bson.A{}}}}
}

func op2(op string, a, b any) bson.D {
	return bson.D{{Key: op, Value: bson.A{a, b}}}
}

func typeOf(v string) bson.D {
	return bson.D{{Key: "$type", Value: v}}
}

// conjunctionExpr ANDs the expressions of ps evaluated against root.
func (r *renderer) conjunctionExpr(ps []queryir.Predicate, root string, depth int) (any, error) {
	switch len(ps) {
	case 0:
		return true, nil
	case 1:
		return r.expr(ps[0], root, depth)
	}
	return r.listExpr("$and", ps, root, depth)
}

func (r *renderer) listExpr(op string, ps []queryir.Predicate, root string, depth int) (any, error) {
	parts := make(bson.A, 0, len(ps))
	for _, p := range ps {
		e, err := r.expr(p, root, depth)
		if err != nil {
			return nil, err
		}
		parts = append(parts, e)
	}
	return bson.D{{Key: op, Value: parts}}, nil
}

// expr compiles p into an aggregation expression evaluated against the
// element variable root.
func (r *renderer) expr(p queryir.Predicate, root string, depth int) (any, error) {
	switch n := p.(type) {
	case nil:
		return true, nil
	case queryir.Const:
		return n.Value, nil
	case queryir.And:
		return r.listExpr("$and", n.Predicates, root, depth)
	case queryir.AnyOf:
		return r.listExpr("$or", n.Predicates, root, depth)
	case queryir.Not:
		e, err := r.expr(n.Predicate, root, depth)
		if err != nil {
			return nil, err
		}
		return bson.D{{Key: "$not", Value: bson.A{e}}}, nil
	case queryir.Simple:
		return clauseExpr(ref(root, n.Field), n.Op, n.Value)
	case queryir.Or:
		parts := make(bson.A, 0, len(n.Fields))
		for _, f := range n.Fields {
			e, err := clauseExpr(ref(root, f), n.Op, n.Value)
			if err != nil {
				return nil, err
			}
			parts = append(parts, e)
		}
		return bson.D{{Key: "$or", Value: parts}}, nil
	case queryir.SubQuery:
		return subQueryExpr(ref(root, joinPath(n.Field, n.FilterKey)), n), nil
	}

	if j, ok := queryir.JoinOf(p); ok {
		alias := fmt.Sprintf("j%d", depth+1)
		in, err := r.conjunctionExpr(j.Inner, "$$"+alias, depth+1)
		if err != nil {
			return nil, err
		}
		return bson.D{{Key: "$anyElementTrue", Value: bson.A{bson.D{{Key: "$map", Value: bson.D{
			{Key: "input", Value: arrayOrEmpty(ref(root, j.Base))},
			{Key: "as", Value: alias},
			{Key: "in", Value: in},
		}}}}}}, nil
	}
	return nil, fmt.Errorf("unsupported predicate type: %T", p)
}

// clauseExpr mirrors clause as an aggregation expression over v.
func clauseExpr(v string, op queryir.Op, value any) (any, error) {
	if _, ok := value.(condition.FieldRef); ok {
		return nil, fmt.Errorf("field references inside a join are not supported by the document target")
	}

	switch op {
	case queryir.OpEq:
		return op2("$eq", v, literal(value)), nil
	case queryir.OpNe:
		// keeps missing and null like $match does
		return op2("$ne", v, literal(value)), nil
	case queryir.OpLt, queryir.OpLe, queryir.OpGt, queryir.OpGe:
		// missing and null sort lowest here; neither may compare
		return bson.D{{Key: "$and", Value: bson.A{
			op2("$gt", v, nil),
			op2(comparisonOps[op], v, literal(value)),
		}}}, nil
	case queryir.OpIn:
		return op2("$in", v, bson.D{{Key: "$literal", Value: literals(value.([]any))}}), nil
	case queryir.OpStartsWith:
		return regexExpr(v, "^"+regexp.QuoteMeta(toText(value)), ""), nil
	case queryir.OpContains:
		return regexExpr(v, regexp.QuoteMeta(toText(value)), ""), nil
	case queryir.OpLike:
		return regexExpr(v, queryir.LikeToRegex(toText(value)), "s"), nil
	case queryir.OpRegexMatch:
		return regexExpr(v, toText(value), ""), nil
	case queryir.OpArrayContains:
		return bson.D{{Key: "$and", Value: bson.A{
			bson.D{{Key: "$isArray", Value: v}},
			op2("$in", literal(value), v),
		}}}, nil
	case queryir.OpIsDefined:
		if value.(bool) {
			return op2("$ne", typeOf(v), "missing"), nil
		}
		return op2("$eq", typeOf(v), "missing"), nil
	case queryir.OpIsNumber, queryir.OpIsString, queryir.OpIsBool, queryir.OpIsArray, queryir.OpIsObject, queryir.OpIsNull:
		var test bson.D
		switch op {
		case queryir.OpIsNumber:
			test = bson.D{{Key: "$isNumber", Value: v}}
		case queryir.OpIsArray:
			test = bson.D{{Key: "$isArray", Value: v}}
		default:
			test = op2("$eq", typeOf(v), bsonType(op))
		}
		if value.(bool) {
			return test, nil
		}
		return bson.D{{Key: "$not", Value: bson.A{test}}}, nil
	}
	return nil, fmt.Errorf("operator %s has no aggregation expression", op)
}

// regexExpr guards $regexMatch, which fails on non-string input.
func regexExpr(v, pattern, options string) bson.D {
	match := bson.D{{Key: "input", Value: v}, {Key: "regex", Value: pattern}}
	if options != "" {
		match = append(match, bson.E{Key: "options", Value: options})
	}
	return bson.D{{Key: "$and", Value: bson.A{
		op2("$eq", typeOf(v), "string"),
		bson.D{{Key: "$regexMatch", Value: match}},
	}}}
}

func subQueryExpr(v string, q queryir.SubQuery) any {
	if len(q.Values) == 0 {
		return false
	}
	values := bson.D{{Key: "$literal", Value: literals(q.Values)}}
	var test bson.D
	if q.Op == queryir.OpArrayContainsAll {
		test = op2("$setIsSubset", values, v)
	} else {
		test = op2("$gt", bson.D{{Key: "$size", Value: bson.D{{Key: "$setIntersection", Value: bson.A{v, values}}}}}, 0)
	}
	return bson.D{{Key: "$and", Value: bson.A{bson.D{{Key: "$isArray", Value: v}}, test}}}
}
