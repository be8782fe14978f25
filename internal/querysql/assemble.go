package querysql

import (
	"fmt"
	"strings"

	"github.com/roach88/docquery/internal/condition"
)

// projection renders the SELECT list and any extra FROM items.
//
// Must run after the WHERE pass: the matched-elements reshape reads the
// join predicates it recorded.
func (r *renderer) projection(cond *condition.Condition, s scope) (selectList, from string, err error) {
	var reshaped string
	if !cond.ReturnAllSubArray {
		if recs := r.ctx.children(""); len(recs) > 0 {
			reshaped, err = r.reshape(s.root, recs, s)
			if err != nil {
				return "", "", err
			}
		}
	}

	switch {
	case len(cond.Fields) == 0 && reshaped == "":
		return "*", "", nil
	case len(cond.Fields) == 0:
		return reshaped + " AS " + r.opts.DataColumn, "", nil
	case reshaped == "":
		return buildObject(cond.Fields, s.root) + " AS " + r.opts.DataColumn, "", nil
	default:
		return buildObject(cond.Fields, "r.matched") + " AS " + r.opts.DataColumn,
			" CROSS JOIN LATERAL (SELECT " + reshaped + " AS matched) AS r", nil
	}
}

// reshape rebuilds root with every recorded join array replaced by the
// elements satisfying all predicates recorded for it. Nested join arrays
// are reshaped inside each kept element.
func (r *renderer) reshape(root string, recs []*joinRecord, s scope) (string, error) {
	expr := root
	for _, rec := range recs {
		inner := scope{
			root:    fmt.Sprintf("j%d", s.depth+1),
			docRoot: s.docRoot,
			path:    rec.path,
			depth:   s.depth + 1,
		}
		where, err := r.conjunction(rec.preds, inner)
		if err != nil {
			return "", err
		}
		elem := inner.root
		if kids := r.ctx.children(rec.path); len(kids) > 0 {
			elem, err = r.reshape(inner.root, kids, inner)
			if err != nil {
				return "", err
			}
		}
		expr = fmt.Sprintf("jsonb_set(%s, %s, (SELECT COALESCE(jsonb_agg(%s), '[]'::jsonb) FROM jsonb_array_elements(%s) AS %s WHERE %s))",
			expr, jsonbArrayPath(rec.base), elem, jsonAccessor(root, rec.base), inner.root, where)
	}
	return expr, nil
}

type fieldNode struct {
	key      string
	path     string
	whole    bool
	children []*fieldNode
}

func (n *fieldNode) child(key string) *fieldNode {
	for _, c := range n.children {
		if c.key == key {
			return c
		}
	}
	c := &fieldNode{key: key}
	if n.path == "" {
		c.path = key
	} else {
		c.path = n.path + "." + key
	}
	n.children = append(n.children, c)
	return c
}

// buildObject renders a field projection as nested jsonb_build_object
// calls grouped by shared path prefix, in first-seen order. Selecting a
// path also selects everything below it.
func buildObject(fields []string, root string) string {
	top := &fieldNode{}
	for _, f := range fields {
		if f == "" {
			continue
		}
		n := top
		for _, seg := range splitPath(f) {
			if n.whole {
				break
			}
			n = n.child(seg)
		}
		if !n.whole {
			n.whole = true
			n.children = nil
		}
	}
	return renderObject(top, root)
}

func renderObject(n *fieldNode, root string) string {
	parts := make([]string, 0, len(n.children))
	for _, c := range n.children {
		value := jsonAccessor(root, c.path)
		if !c.whole {
			value = renderObject(c, root)
		}
		parts = append(parts, quoteKey(c.key)+", "+value)
	}
	return "jsonb_build_object(" + strings.Join(parts, ", ") + ")"
}
