package querysql

import (
	"fmt"
	"strings"

	"github.com/roach88/docquery/internal/queryir"
)

// JoinStrategy selects how join-scoped clauses compile.
type JoinStrategy string

const (
	// JoinStrategySubquery compiles joins to EXISTS over jsonb_array_elements.
	JoinStrategySubquery JoinStrategy = "subquery"

	// JoinStrategyJSONPath compiles joins to a bound jsonpath tested with @?.
	// Clauses jsonpath cannot express fall back to JoinStrategySubquery.
	JoinStrategyJSONPath JoinStrategy = "jsonpath"
)

// ParseJoinStrategy accepts "subquery", "exists", "jsonpath" and "" (the default).
func ParseJoinStrategy(s string) (JoinStrategy, error) {
	switch strings.ToLower(s) {
	case "", "subquery", "exists":
		return JoinStrategySubquery, nil
	case "jsonpath", "path":
		return JoinStrategyJSONPath, nil
	default:
		return "", fmt.Errorf("unknown join strategy %q", s)
	}
}

// join renders one join node and records its element predicates for the
// projection pass. Negated joins are not recorded: their elements are the
// ones that did not match.
func (r *renderer) join(j queryir.Join, s scope) (fragment, error) {
	if !s.negated {
		r.ctx.record(s.path, j)
	}
	if r.opts.JoinStrategy == JoinStrategyJSONPath {
		if path, ok := jsonPathQuery(j); ok {
			if !s.negated {
				r.recordNested(j.Path, j.Inner)
			}
			return fragment{sql: fmt.Sprintf("%s @? %s::jsonpath", s.root, r.ctx.bind(j.Path, path))}, nil
		}
	}
	return r.exists(j, s)
}

// exists renders the subquery strategy with a fresh alias per depth.
func (r *renderer) exists(j queryir.Join, s scope) (fragment, error) {
	inner := scope{
		root:    fmt.Sprintf("j%d", s.depth+1),
		docRoot: s.docRoot,
		path:    j.Path,
		depth:   s.depth + 1,
		negated: s.negated,
	}
	where, err := r.conjunction(j.Inner, inner)
	if err != nil {
		return fragment{}, err
	}
	return fragment{sql: fmt.Sprintf("EXISTS (SELECT 1 FROM jsonb_array_elements(%s) AS %s WHERE %s)",
		jsonAccessor(s.root, j.Base), inner.root, where)}, nil
}

// conjunction renders predicates ANDed, 1=1 when empty.
func (r *renderer) conjunction(ps []queryir.Predicate, s scope) (string, error) {
	if len(ps) == 0 {
		return sqlTrue, nil
	}
	if len(ps) == 1 {
		f, err := r.predicate(ps[0], s)
		return f.sql, err
	}
	f, err := r.combine(ps, " AND ", s)
	return f.sql, err
}

// recordNested records join nodes below a join rendered as jsonpath, which
// never visits them through the SQL renderer.
func (r *renderer) recordNested(parent string, ps []queryir.Predicate) {
	for _, p := range ps {
		switch n := p.(type) {
		case queryir.Not:
			continue
		case queryir.And:
			r.recordNested(parent, n.Predicates)
			continue
		case queryir.AnyOf:
			branches := make([]*joinSet, 0, len(n.Predicates))
			for _, sub := range n.Predicates {
				r.ctx.openBranch()
				r.recordNested(parent, []queryir.Predicate{sub})
				branches = append(branches, r.ctx.closeBranch())
			}
			r.ctx.mergeBranches(branches)
			continue
		}
		if j, ok := queryir.JoinOf(p); ok {
			r.ctx.record(parent, j)
			r.recordNested(j.Path, j.Inner)
		}
	}
}
