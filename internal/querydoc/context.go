package querydoc

import (
	"fmt"

	"github.com/roach88/docquery/internal/queryir"
)

// QueryContext is the per-compile side channel shared by the match and
// reshape passes. It records the element predicates applied to each join
// base while recording is enabled.
type QueryContext struct {
	recording bool
	joins     *joinSet
	branches  []*joinSet
	temps     int
}

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

type joinRecord struct {
	parent string
	base   string
	path   string
	preds  []queryir.Predicate
}

func newQueryContext() *QueryContext {
	return &QueryContext{recording: true, joins: newJoinSet()}
}

func (ctx *QueryContext) current() *joinSet {
	if n := len(ctx.branches); n > 0 {
		return ctx.branches[n-1]
	}
	return ctx.joins
}

func (ctx *QueryContext) record(parent string, j queryir.Join) {
	if !ctx.recording {
		return
	}
	ctx.current().add(parent, j.Base, j.Path, j.Inner...)
}

// branch records the joins of one $or operand apart from its siblings.
func (ctx *QueryContext) branch(fn func() error) (*joinSet, error) {
	ctx.branches = append(ctx.branches, newJoinSet())
	err := fn()
	n := len(ctx.branches)
	js := ctx.branches[n-1]
	ctx.branches = ctx.branches[:n-1]
	return js, err
}

// mergeBranches ORs the per-base conjunctions recorded by each operand into
// the enclosing scope. An operand that left a base alone keeps all of it.
func (ctx *QueryContext) mergeBranches(branches []*joinSet) {
	dst := ctx.current()
	seen := make(map[string]bool)
	for _, b := range branches {
		for _, path := range b.order {
			if seen[path] {
				continue
			}
			seen[path] = true
			rec := b.recs[path]
			alts := make([]queryir.Predicate, 0, len(branches))
			for _, other := range branches {
				if o, ok := other.recs[path]; ok {
					alts = append(alts, queryir.Conjoin(o.preds...))
				} else {
					alts = append(alts, queryir.Const{Value: true})
				}
			}
			dst.add(rec.parent, rec.base, path, queryir.Disjoin(alts...))
		}
	}
}

func (ctx *QueryContext) children(parent string) []*joinRecord {
	var out []*joinRecord
	for _, path := range ctx.joins.order {
		if rec := ctx.joins.recs[path]; rec.parent == parent {
			out = append(out, rec)
		}
	}
	return out
}

// temp returns a fresh temporary field name.
func (ctx *QueryContext) temp() string {
	name := fmt.Sprintf("__matched_%d", ctx.temps)
	ctx.temps++
	return name
}
