package querysql

import (
	"fmt"
	"strings"

	"github.com/roach88/docquery/internal/aggregate"
	"github.com/roach88/docquery/internal/condition"
	"github.com/roach88/docquery/internal/queryir"
)

// Aggregate compiles an aggregate spec.
//
// Each output row is one jsonb object in the data column:
//
//	SELECT jsonb_build_object('city', data->'city', 'n', COUNT(*)) AS data
//	FROM "c"."p" WHERE ... GROUP BY data->'city'
//
// A post-aggregate condition wraps it as SELECT agg.data FROM (...) AS agg
// with its filter, sort and paging addressing output names.
func (c *Compiler) Aggregate(collection, partition string, spec aggregate.Spec) (*Query, error) {
	plan, err := aggregate.Parse(spec)
	if err != nil {
		return nil, err
	}
	pre := plan.Pre
	if pre == nil {
		pre = condition.New()
	}
	if pre.Raw != nil || (plan.Post != nil && plan.Post.Raw != nil) {
		return nil, fmt.Errorf("aggregate: raw conditions are not supported")
	}

	pred, err := queryir.Lower(pre)
	if err != nil {
		return nil, fmt.Errorf("lower condition: %w", err)
	}
	ctx := newQueryContext()
	ctx.recording = false
	r := &renderer{opts: c.opts, ctx: ctx}
	root := c.rootScope()

	where, err := r.where(pred, root)
	if err != nil {
		return nil, fmt.Errorf("compile filter: %w", err)
	}

	col := c.opts.DataColumn
	items := make([]string, 0, len(plan.Groups)+len(plan.Functions))
	groupBy := make([]string, 0, len(plan.Groups))
	for _, g := range plan.Groups {
		acc := jsonAccessor(col, g.Path)
		items = append(items, quoteKey(g.Alias)+", "+acc)
		groupBy = append(groupBy, acc)
	}
	for _, fn := range plan.Functions {
		items = append(items, quoteKey(fn.Alias)+", "+aggregateExpr(fn, col))
	}

	var b strings.Builder
	fmt.Fprintf(&b, "SELECT jsonb_build_object(%s) AS %s FROM %s%s",
		strings.Join(items, ", "), col, table(collection, partition), where)
	if len(groupBy) > 0 {
		b.WriteString(" GROUP BY ")
		b.WriteString(strings.Join(groupBy, ", "))
	}
	text := b.String()

	if plan.HasPost() {
		postPred, err := queryir.Lower(plan.Post)
		if err != nil {
			return nil, fmt.Errorf("lower post-aggregate condition: %w", err)
		}
		aggRoot := "agg." + col
		postWhere, err := r.where(postPred, scope{root: aggRoot, docRoot: aggRoot})
		if err != nil {
			return nil, fmt.Errorf("compile post-aggregate filter: %w", err)
		}
		text = fmt.Sprintf("SELECT %s FROM (%s) AS agg%s%s%s",
			aggRoot, text, postWhere, orderBy(plan.Post.Sort, aggRoot), paging(plan.Post.Offset, plan.Post.Limit))
	}

	q := &Query{Text: text, Params: ctx.Params(), CrossPartition: pre.CrossPartition}
	c.opts.Logger.Debug("compiled aggregate",
		"target", condition.TargetRelational,
		"functions", len(plan.Functions),
		"groups", len(plan.Groups),
		"params", len(q.Params))
	return q, nil
}

func aggregateExpr(fn aggregate.Function, col string) string {
	switch {
	case fn.CountsRows():
		return "COUNT(*)"
	case fn.Func == aggregate.FuncCount:
		return "COUNT(" + jsonAccessor(col, fn.Arg) + ")"
	default:
		return fmt.Sprintf("%s((%s)::numeric)", fn.Func, textAccessor(col, fn.Arg))
	}
}
