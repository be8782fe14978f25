package querydoc

import (
	"fmt"
	"strings"

	"go.mongodb.org/mongo-driver/bson"
)

// reshape returns the stages replacing every recorded join array with the
// elements that satisfy all predicates recorded for it:
//
//	{$addFields: {__matched_0: {$filter: {...}}}}   one per top-level base
//	{$replaceRoot: {newRoot: {$mergeObjects: ["$$ROOT", {children: "$__matched_0"}]}}}
//	{$unset: ["__matched_0"]}
func (r *renderer) reshape() ([]bson.D, error) {
	recs := r.ctx.children("")
	if len(recs) == 0 {
		return nil, nil
	}
	stages := make([]bson.D, 0, len(recs)+2)
	temps := make(bson.A, 0, len(recs))
	root := &mergeNode{}
	for _, rec := range recs {
		value, err := r.filtered("$"+rec.base, rec, 0)
		if err != nil {
			return nil, err
		}
		name := r.ctx.temp()
		stages = append(stages, bson.D{{Key: "$addFields", Value: bson.D{{Key: name, Value: value}}}})
		temps = append(temps, name)
		root.set(rec.base, "$"+name)
	}
	stages = append(stages,
		bson.D{{Key: "$replaceRoot", Value: bson.D{{Key: "newRoot", Value: root.merge("$$ROOT")}}}},
		bson.D{{Key: "$unset", Value: temps}},
	)
	return stages, nil
}

// filtered keeps the elements of input matching rec, reshaping nested join
// arrays inside each kept element.
func (r *renderer) filtered(input string, rec *joinRecord, depth int) (any, error) {
	alias := fmt.Sprintf("j%d", depth+1)
	cond, err := r.conjunctionExpr(rec.preds, "$$"+alias, depth+1)
	if err != nil {
		return nil, fmt.Errorf("join %s: %w", rec.path, err)
	}
	var out any = bson.D{{Key: "$filter", Value: bson.D{
		{Key: "input", Value: arrayOrEmpty(input)},
		{Key: "as", Value: alias},
		{Key: "cond", Value: cond},
	}}}

	kids := r.ctx.children(rec.path)
	if len(kids) == 0 {
		return out, nil
	}
	elem := &mergeNode{}
	for _, kid := range kids {
		v, err := r.filtered(ref("$$"+alias, kid.base), kid, depth+1)
		if err != nil {
			return nil, err
		}
		elem.set(kid.base, v)
	}
	return bson.D{{Key: "$map", Value: bson.D{
		{Key: "input", Value: out},
		{Key: "as", Value: alias},
		{Key: "in", Value: elem.merge("$$" + alias)},
	}}}, nil
}

// mergeNode is a tree of dotted paths whose leaves carry replacement
// values, rendered as nested $mergeObjects.
type mergeNode struct {
	key      string
	value    any
	children []*mergeNode
}

func (n *mergeNode) set(path string, value any) {
	for _, seg := range strings.Split(path, ".") {
		n = n.child(seg)
	}
	n.value = value
}

func (n *mergeNode) child(key string) *mergeNode {
	for _, c := range n.children {
		if c.key == key {
			return c
		}
	}
	c := &mergeNode{key: key}
	n.children = append(n.children, c)
	return c
}

func (n *mergeNode) merge(base string) bson.D {
	fields := make(bson.D, 0, len(n.children))
	for _, c := range n.children {
		if c.value != nil {
			fields = append(fields, bson.E{Key: c.key, Value: c.value})
			continue
		}
		fields = append(fields, bson.E{Key: c.key, Value: c.merge(base + "." + c.key)})
	}
	return bson.D{{Key: "$mergeObjects", Value: bson.A{base, fields}}}
}
