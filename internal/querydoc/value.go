package querydoc

import (
	"strings"

	"go.mongodb.org/mongo-driver/bson"

	"github.com/roach88/docquery/internal/condition"
	"github.com/roach88/docquery/internal/queryir"
)

// toBSON converts a normalized value into ordered bson values.
func toBSON(v any) any {
	switch val := v.(type) {
	case condition.Map:
		out := make(bson.D, 0, val.Len())
		for k, inner := range val.All() {
			out = append(out, bson.E{Key: k, Value: toBSON(inner)})
		}
		return out
	case []any:
		out := make(bson.A, len(val))
		for i, e := range val {
			out[i] = toBSON(e)
		}
		return out
	case condition.FieldRef:
		return "$" + string(val)
	}
	return v
}

// literal renders v for use inside an aggregation expression, where strings
// starting with $ and documents would otherwise be evaluated.
func literal(v any) any {
	switch val := v.(type) {
	case string:
		if strings.HasPrefix(val, "$") {
			return bson.D{{Key: "$literal", Value: val}}
		}
		return val
	case condition.Map, []any:
		return bson.D{{Key: "$literal", Value: toBSON(val)}}
	}
	return v
}

func literals(vs []any) bson.A {
	out := make(bson.A, len(vs))
	for i, v := range vs {
		out[i] = toBSON(v)
	}
	return out
}

// bsonType is the $type alias tested by an IS_<TYPE> operator.
func bsonType(op queryir.Op) string {
	if op == queryir.OpIsBool {
		return "bool"
	}
	return op.JSONType()
}

// unknownOperator maps an unknown operator token to a query operator name:
// GEO_WITHIN → $geoWithin.
func unknownOperator(token string) string {
	words := strings.Split(strings.ToLower(token), "_")
	var b strings.Builder
	b.WriteString("$")
	for i, w := range words {
		if w == "" {
			continue
		}
		if i > 0 {
			w = strings.ToUpper(w[:1]) + w[1:]
		}
		b.WriteString(w)
	}
	return b.String()
}

func joinPath(prefix, field string) string {
	switch {
	case prefix == "":
		return field
	case field == "":
		return prefix
	default:
		return prefix + "." + field
	}
}
