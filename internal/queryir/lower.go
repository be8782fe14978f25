package queryir

import (
	"fmt"
	"slices"
	"strings"

	"github.com/roach88/docquery/internal/condition"
)

// Lower validates c and lowers it into a folded predicate tree.
//
// Lower never mutates c. Raw conditions cannot be lowered; compilers must
// handle them before calling Lower.
func Lower(c *condition.Condition) (Predicate, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}
	if c.Raw != nil {
		return nil, fmt.Errorf("raw %s query cannot be lowered", c.Raw.Target)
	}
	l := newLowerer(c.Join)
	return l.condition(c)
}

type lowerer struct {
	joins []string
}

func newLowerer(joins []string) *lowerer {
	seen := make(map[string]bool, len(joins))
	out := make([]string, 0, len(joins))
	for _, j := range joins {
		if !seen[j] {
			seen[j] = true
			out = append(out, j)
		}
	}
	return &lowerer{joins: out}
}

func (l *lowerer) condition(c *condition.Condition) (Predicate, error) {
	var p Predicate
	switch c.Constant {
	case condition.ConstTrue:
		p = Const{Value: true}
	case condition.ConstFalse:
		p = Const{Value: false}
	default:
		var err error
		p, err = l.filter(c.Filter)
		if err != nil {
			return nil, err
		}
	}
	if c.Negative {
		p = Negate(p)
	}
	return p, nil
}

func (l *lowerer) filter(m condition.Map) (Predicate, error) {
	parts := make([]Predicate, 0, m.Len())
	for key, value := range m.All() {
		var (
			p   Predicate
			err error
		)
		switch condition.GroupOf(key) {
		case condition.GroupAnd:
			var subs []Predicate
			subs, err = l.subConditions(key, value)
			p = Conjoin(subs...)
		case condition.GroupOr:
			var subs []Predicate
			subs, err = l.subConditions(key, value)
			p = Disjoin(subs...)
		case condition.GroupNot:
			var sub *condition.Condition
			sub, err = condition.NotCondition(key, value)
			if err == nil {
				p, err = l.condition(sub)
				p = Negate(p)
			}
		case condition.GroupElemMatch:
			var inner condition.Map
			inner, err = condition.ElemMatchFilter(key, value)
			if err == nil {
				p, err = l.elemMatch(key, inner)
			}
		default:
			p, err = l.clause(key, value)
		}
		if err != nil {
			return nil, err
		}
		parts = append(parts, p)
	}
	return Conjoin(parts...), nil
}

func (l *lowerer) subConditions(key string, value any) ([]Predicate, error) {
	subs, err := condition.SubConditions(key, value)
	if err != nil {
		return nil, err
	}
	out := make([]Predicate, 0, len(subs))
	for _, sub := range subs {
		p, err := l.condition(sub)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, nil
}

// clause lowers one key/value pair, wrapping it in join nodes when its
// fields are join-scoped.
func (l *lowerer) clause(key string, value any) (Predicate, error) {
	leaf, chain, err := l.scoped(key, value)
	if err != nil {
		return nil, err
	}
	if _, isConst := leaf.(Const); isConst {
		return leaf, nil
	}
	return wrapJoins(leaf, chain), nil
}

// scoped parses a clause and returns its leaf predicate with fields relative
// to the innermost join base, plus the chain of absolute join bases.
func (l *lowerer) scoped(key string, value any) (Predicate, []string, error) {
	k, err := ParseKey(key, value)
	if err != nil {
		return nil, nil, err
	}
	op := k.Op
	v := Normalize(value)
	kind := KindOf(v)

	if kind == KindFieldRef && !op.IsComparison() {
		return nil, nil, condition.NewValidationError(condition.ErrCodeInvalidArguments, key,
			"field references require a comparison operator, got %s", k.Token)
	}

	switch {
	case (op == OpEq || op == OpNe) && kind == KindNull:
		v = op == OpEq
		op = OpIsNull
	case op == OpIn:
		elems, ok := v.([]any)
		if !ok {
			elems = []any{v}
		}
		if len(elems) == 0 {
			return Const{Value: false}, nil, nil
		}
		v = elems
	case op.IsTypeCheck():
		switch tv := v.(type) {
		case nil:
			v = true
		case bool:
		default:
			return nil, nil, condition.NewValidationError(condition.ErrCodeInvalidArguments, key,
				"%s takes a boolean, got %T", op, tv)
		}
	}

	chain, err := l.sharedChain(key, k.Fields, op, KindOf(v))
	if err != nil {
		return nil, nil, err
	}
	scope := ""
	if len(chain) > 0 {
		scope = chain[len(chain)-1]
	}

	if op == OpArrayContainsAny || op == OpArrayContainsAll {
		if len(k.Fields) > 1 {
			return nil, nil, condition.NewValidationError(condition.ErrCodeInvalidKey, key,
				"%s cannot apply to several fields", op)
		}
		values, ok := v.([]any)
		if !ok {
			values = []any{v}
		}
		if len(values) == 0 {
			return Const{Value: false}, chain, nil
		}
		return SubQuery{
			Field:     relativeTo(k.Fields[0], scope),
			FilterKey: k.FilterKey,
			Op:        op,
			Values:    values,
		}, chain, nil
	}

	if len(k.Fields) > 1 {
		fields := make([]string, len(k.Fields))
		for i, f := range k.Fields {
			fields[i] = relativeTo(f, scope)
		}
		return Or{Fields: fields, Op: op, Token: k.Token, Value: v}, chain, nil
	}
	return Simple{Field: relativeTo(k.Fields[0], scope), Op: op, Token: k.Token, Value: v}, chain, nil
}

// sharedChain returns the join chain of the key's fields, which must agree.
func (l *lowerer) sharedChain(key string, fields []string, op Op, kind Kind) ([]string, error) {
	chain := l.chain(fields[0], op, kind)
	for _, f := range fields[1:] {
		if !slices.Equal(chain, l.chain(f, op, kind)) {
			return nil, condition.NewValidationError(condition.ErrCodeInvalidKey, key,
				"fields of an OR key must share the same join scope")
		}
	}
	return chain, nil
}

// chain returns the declared join bases enclosing field, outermost first.
// A field equal to a base is scoped to that base's elements only for
// operators that compare single values.
func (l *lowerer) chain(field string, op Op, kind Kind) []string {
	var out []string
	for _, base := range l.joins {
		if strings.HasPrefix(field, base+".") {
			out = append(out, base)
			continue
		}
		if field == base && elementScoped(op, kind) {
			out = append(out, base)
		}
	}
	slices.SortFunc(out, func(a, b string) int { return len(a) - len(b) })
	return out
}

func elementScoped(op Op, kind Kind) bool {
	switch {
	case op == OpIn, op == OpUnknown, op.IsStringMatch():
		return true
	case op.IsComparison():
		return kind != KindArray && kind != KindObject && kind != KindFieldRef
	default:
		return false
	}
}

// wrapJoins nests leaf inside one join node per chain entry.
func wrapJoins(leaf Predicate, chain []string) Predicate {
	_, isSub := leaf.(SubQuery)
	node := leaf
	for i := len(chain) - 1; i >= 0; i-- {
		parent := ""
		if i > 0 {
			parent = chain[i-1]
		}
		base := relativeTo(chain[i], parent)
		if isSub {
			node = SubQueryInJoin{Base: base, Path: chain[i], Inner: node}
		} else {
			node = SimpleInJoin{Base: base, Path: chain[i], Inner: node}
		}
	}
	return node
}

type scopedClause struct {
	chain []string
	leaf  Predicate
}

// elemMatch groups the clauses of an $ELEM_MATCH by join base so that all
// clauses on one base hold on the same element, recursively for nested
// bases.
func (l *lowerer) elemMatch(key string, m condition.Map) (Predicate, error) {
	items := make([]scopedClause, 0, m.Len())
	for k, v := range m.All() {
		leaf, chain, err := l.scoped(k, v)
		if err != nil {
			return nil, err
		}
		if c, ok := leaf.(Const); ok {
			if !c.Value {
				return c, nil
			}
			continue
		}
		if len(chain) == 0 {
			return nil, condition.NewValidationError(condition.ErrCodeElemMatchWithoutJoin, k,
				"%s clause is not scoped to any join base", key)
		}
		items = append(items, scopedClause{chain: chain, leaf: leaf})
	}
	return Conjoin(groupByBase(items, 0)...), nil
}

func groupByBase(items []scopedClause, depth int) []Predicate {
	var order []string
	groups := make(map[string][]scopedClause)
	for _, it := range items {
		base := it.chain[depth]
		if _, ok := groups[base]; !ok {
			order = append(order, base)
		}
		groups[base] = append(groups[base], it)
	}

	out := make([]Predicate, 0, len(order))
	for _, base := range order {
		var inner []Predicate
		var nestedOrder []string
		nested := make(map[string][]scopedClause)
		for _, it := range groups[base] {
			if len(it.chain) == depth+1 {
				inner = append(inner, it.leaf)
				continue
			}
			next := it.chain[depth+1]
			if _, ok := nested[next]; !ok {
				nestedOrder = append(nestedOrder, next)
				// placeholder keeps the nested group at its first position
				inner = append(inner, nil)
			}
			nested[next] = append(nested[next], it)
		}
		n := 0
		for i, p := range inner {
			if p == nil {
				inner[i] = groupByBase(nested[nestedOrder[n]], depth+1)[0]
				n++
			}
		}

		folded := Conjoin(inner...)
		if c, ok := folded.(Const); ok && !c.Value {
			out = append(out, folded)
			continue
		}
		var preds []Predicate
		switch f := folded.(type) {
		case And:
			preds = f.Predicates
		case Const:
		default:
			preds = []Predicate{f}
		}
		parent := ""
		if depth > 0 {
			parent = groups[base][0].chain[depth-1]
		}
		out = append(out, ElemMatchInJoin{Base: relativeTo(base, parent), Path: base, Inner: preds})
	}
	return out
}

// relativeTo strips the scope prefix from an absolute path. The scope
// itself maps to the empty path.
func relativeTo(path, scope string) string {
	if scope == "" {
		return path
	}
	if path == scope {
		return ""
	}
	return strings.TrimPrefix(path, scope+".")
}
