package querydoc

import (
	"fmt"
	"strings"

	"go.mongodb.org/mongo-driver/bson"

	"github.com/roach88/docquery/internal/aggregate"
	"github.com/roach88/docquery/internal/condition"
	"github.com/roach88/docquery/internal/queryir"
)

// Aggregate compiles an aggregate spec into a pipeline:
//
//	$match → $project (group keys and arguments) → $group → $project (flatten) → post stages
//
// Output names MongoDB cannot store ($1, a.b, _id) are replaced by agg_N and
// listed in Query.Renames.
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
	r := &renderer{ctx: newQueryContext()}
	r.ctx.recording = false
	filter, err := r.match(pred, scope{})
	if err != nil {
		return nil, fmt.Errorf("compile filter: %w", err)
	}

	names := newOutputNames(plan)
	var stages []bson.D
	if len(filter) > 0 {
		stages = append(stages, bson.D{{Key: "$match", Value: filter}})
	}

	project := bson.D{{Key: "_id", Value: 0}}
	var key any
	flatten := bson.D{{Key: "_id", Value: 0}}
	if plan.Grouped() {
		id := make(bson.D, 0, len(plan.Groups))
		for _, g := range plan.Groups {
			name := names.safe[g.Alias]
			project = append(project, bson.E{Key: name, Value: "$" + g.Path})
			id = append(id, bson.E{Key: name, Value: "$" + name})
			flatten = append(flatten, bson.E{Key: name, Value: "$_id." + name})
		}
		key = id
	}
	group := bson.D{{Key: "_id", Value: key}}
	for i, fn := range plan.Functions {
		name := names.safe[fn.Alias]
		arg := fmt.Sprintf("__arg_%d", i)
		if !fn.CountsRows() {
			project = append(project, bson.E{Key: arg, Value: "$" + fn.Arg})
		}
		group = append(group, bson.E{Key: name, Value: accumulator(fn, "$"+arg)})
		flatten = append(flatten, bson.E{Key: name, Value: 1})
	}
	stages = append(stages,
		bson.D{{Key: "$project", Value: project}},
		bson.D{{Key: "$group", Value: group}},
		bson.D{{Key: "$project", Value: flatten}},
	)

	if plan.HasPost() {
		post, err := queryir.Lower(plan.Post)
		if err != nil {
			return nil, fmt.Errorf("lower post-aggregate condition: %w", err)
		}
		pr := &renderer{ctx: newQueryContext(), rename: names.safe}
		pr.ctx.recording = false
		postFilter, err := pr.match(post, scope{})
		if err != nil {
			return nil, fmt.Errorf("compile post-aggregate filter: %w", err)
		}
		stages = append(stages, matchStages(postFilter, plan.Post.Sort, plan.Post.Offset, plan.Post.Limit, names.safe)...)
	}

	q := &Query{
		Database:       collection,
		Collection:     partition,
		Pipeline:       stages,
		Renames:        names.renames,
		CrossPartition: pre.CrossPartition,
	}
	c.opts.Logger.Debug("compiled aggregate",
		"target", condition.TargetDocument,
		"functions", len(plan.Functions),
		"groups", len(plan.Groups),
		"stages", len(stages))
	return q, nil
}

func accumulator(fn aggregate.Function, arg string) bson.D {
	switch {
	case fn.CountsRows():
		return bson.D{{Key: "$sum", Value: 1}}
	case fn.Func == aggregate.FuncCount:
		present := op2("$ne", typeOf(arg), "missing")
		return bson.D{{Key: "$sum", Value: bson.D{{Key: "$cond", Value: bson.A{present, 1, 0}}}}}
	default:
		return bson.D{{Key: "$" + strings.ToLower(string(fn.Func)), Value: arg}}
	}
}

// outputNames maps every aggregate alias to a storable field name.
type outputNames struct {
	safe    map[string]string // alias → stored name
	renames map[string]string // stored name → alias, only for renamed aliases
}

func newOutputNames(plan *aggregate.Plan) outputNames {
	aliases := make([]string, 0, len(plan.Groups)+len(plan.Functions))
	for _, g := range plan.Groups {
		aliases = append(aliases, g.Alias)
	}
	for _, fn := range plan.Functions {
		aliases = append(aliases, fn.Alias)
	}
	taken := make(map[string]bool, len(aliases))
	for _, a := range aliases {
		taken[a] = true
	}

	names := outputNames{safe: make(map[string]string, len(aliases))}
	n := 0
	for _, a := range aliases {
		if a != "_id" && !strings.HasPrefix(a, "$") && !strings.Contains(a, ".") {
			names.safe[a] = a
			continue
		}
		var name string
		for {
			n++
			name = fmt.Sprintf("agg_%d", n)
			if !taken[name] {
				break
			}
		}
		taken[name] = true
		names.safe[a] = name
		if names.renames == nil {
			names.renames = make(map[string]string)
		}
		names.renames[name] = a
	}
	return names
}
