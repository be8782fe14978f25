package querysql

import (
	"github.com/roach88/docquery/internal/queryir"
)

// QueryContext is the per-compile side channel shared by both passes.
//
// It owns the global parameter counter and, while recording is enabled,
// the predicates applied to each join base. A QueryContext is created by
// one Compile call and never shared.
type QueryContext struct {
	params    []Param
	recording bool
	joins     *joinSet
	branches  []*joinSet // open OR branches, innermost last
}

// joinSet is the per-base element predicates recorded in one boolean scope.
type joinSet struct {
	recs  map[string]*joinRecord
	order []string
}

func newJoinSet() *joinSet {
	return &joinSet{recs: make(map[string]*joinRecord)}
}

func (js *joinSet) add(parent, base, path string, preds ...queryir.Predicate) {
	rec, ok := js.recs[path]
	if !ok {
		rec = &joinRecord{parent: parent, base: base, path: path}
		js.recs[path] = rec
		js.order = append(js.order, path)
	}
	rec.preds = append(rec.preds, preds...)
}

// joinRecord holds the element predicates applied to one join base.
type joinRecord struct {
	parent string // absolute path of the enclosing join, "" at top level
	base   string // path relative to the parent element
	path   string
	preds  []queryir.Predicate
}

func newQueryContext() *QueryContext {
	return &QueryContext{
		recording: true,
		joins:     newJoinSet(),
	}
}

// bind registers value under a fresh name derived from path and returns the
// placeholder.
func (ctx *QueryContext) bind(path string, value any) string {
	p := Param{Name: paramName(len(ctx.params), path), Value: value}
	ctx.params = append(ctx.params, p)
	return p.Placeholder()
}

func (ctx *QueryContext) current() *joinSet {
	if n := len(ctx.branches); n > 0 {
		return ctx.branches[n-1]
	}
	return ctx.joins
}

// record appends the element predicates applied to a join base.
func (ctx *QueryContext) record(parent string, j queryir.Join) {
	if !ctx.recording {
		return
	}
	ctx.current().add(parent, j.Base, j.Path, j.Inner...)
}

// openBranch starts recording one operand of an OR.
func (ctx *QueryContext) openBranch() {
	ctx.branches = append(ctx.branches, newJoinSet())
}

// closeBranch stops recording the innermost OR operand and returns what it
// recorded.
func (ctx *QueryContext) closeBranch() *joinSet {
	n := len(ctx.branches)
	js := ctx.branches[n-1]
	ctx.branches = ctx.branches[:n-1]
	return js
}

// mergeBranches folds the operands of one OR into the enclosing scope. An
// element is kept when it satisfies the conjunction recorded for it by
// any operand; an operand that never touched the base keeps every element.
func (ctx *QueryContext) mergeBranches(branches []*joinSet) {
	dst := ctx.current()
	seen := make(map[string]bool)
	for _, b := range branches {
		for _, path := range b.order {
			if seen[path] {
				continue
			}
			seen[path] = true
			var parent, base string
			alts := make([]queryir.Predicate, 0, len(branches))
			for _, other := range branches {
				rec, ok := other.recs[path]
				if !ok {
					alts = append(alts, queryir.Const{Value: true})
					continue
				}
				parent, base = rec.parent, rec.base
				alts = append(alts, queryir.Conjoin(rec.preds...))
			}
			dst.add(parent, base, path, queryir.Disjoin(alts...))
		}
	}
}

// children returns the records whose enclosing join is parent, in first
// recorded order.
func (ctx *QueryContext) children(parent string) []*joinRecord {
	var out []*joinRecord
	for _, path := range ctx.joins.order {
		if rec := ctx.joins.recs[path]; rec.parent == parent {
			out = append(out, rec)
		}
	}
	return out
}

// Params returns the bindings in creation order.
func (ctx *QueryContext) Params() []Param {
	out := make([]Param, len(ctx.params))
	copy(out, ctx.params)
	return out
}
