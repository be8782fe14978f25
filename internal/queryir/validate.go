package queryir

import (
	"fmt"

	"github.com/roach88/docquery/internal/condition"
)

// Analysis summarizes a lowered predicate for diagnostics.
type Analysis struct {
	// Joins lists the absolute join paths used, in first-seen order.
	Joins []string

	// ElemMatches counts ElemMatchInJoin nodes.
	ElemMatches int

	// UnknownOps lists pass-through function tokens, in first-seen order.
	UnknownOps []string

	// FieldRefs counts field-to-field comparisons.
	FieldRefs int

	// Warnings lists target-dependent behavior the caller should know about.
	Warnings []string
}

// Analyze inspects p without compiling it.
//
// Warnings are informational; every analyzed predicate still compiles for
// the relational target. A field reference inside a join scope is the only
// construct the document target rejects, and is reported here.
//
// Analyze is a pure function with no side effects.
func Analyze(p Predicate) Analysis {
	a := &analyzer{seenJoin: map[string]bool{}, seenOp: map[string]bool{}}
	a.visit(p, 0)
	return a.result
}

type analyzer struct {
	result   Analysis
	seenJoin map[string]bool
	seenOp   map[string]bool
	warnedNe bool
}

func (a *analyzer) warn(format string, args ...any) {
	a.result.Warnings = append(a.result.Warnings, fmt.Sprintf(format, args...))
}

func (a *analyzer) visit(p Predicate, joinDepth int) {
	switch n := p.(type) {
	case And:
		for _, c := range n.Predicates {
			a.visit(c, joinDepth)
		}
	case AnyOf:
		for _, c := range n.Predicates {
			a.visit(c, joinDepth)
		}
	case Not:
		a.visit(n.Predicate, joinDepth)
	case Simple:
		a.clause([]string{n.Field}, n.Op, n.Token, n.Value, joinDepth)
	case Or:
		a.clause(n.Fields, n.Op, n.Token, n.Value, joinDepth)
	case SubQuery, Const:
	default:
		j, ok := JoinOf(p)
		if !ok {
			return
		}
		if !a.seenJoin[j.Path] {
			a.seenJoin[j.Path] = true
			a.result.Joins = append(a.result.Joins, j.Path)
		}
		if j.ElemMatch {
			a.result.ElemMatches++
		}
		for _, c := range j.Inner {
			a.visit(c, joinDepth+1)
		}
	}
}

func (a *analyzer) clause(fields []string, op Op, token string, value any, joinDepth int) {
	if op == OpUnknown && !a.seenOp[token] {
		a.seenOp[token] = true
		a.result.UnknownOps = append(a.result.UnknownOps, token)
		a.warn("operator %s is not built in and compiles as a generic function call", token)
	}
	if op == OpNe && !a.warnedNe {
		a.warnedNe = true
		a.warn("!= matches documents missing the field on mongo but not on postgres")
	}
	if ref, ok := value.(condition.FieldRef); ok {
		a.result.FieldRefs++
		if joinDepth > 0 {
			a.warn("field reference %q on %v inside a join is not supported by the mongo target", string(ref), fields)
		}
	}
}
