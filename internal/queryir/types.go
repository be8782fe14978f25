package queryir

// Predicate is a node of the lowered filter tree.
//
// This is a sealed interface - only types in this package implement it.
// The marker method pattern prevents external implementations and enables
// exhaustive type switches in backend compilers.
type Predicate interface {
	predicateNode() // Marker method - seals interface to this package
}

// Simple compares one field against a value.
//
// Semantics:
//
//	<field> <op> <value>
//
// Value is normalized: collections are []any, objects are condition.Map,
// field references are condition.FieldRef. For type-check operators Value
// is a bool selecting the positive (true) or negated (false) test.
//
// Field is relative to the enclosing join element, or to the document root
// outside any join. An empty Field addresses the join element itself.
type Simple struct {
	Field string
	Op    Op
	Token string // function name for OpUnknown
	Value any
}

func (Simple) predicateNode() {}

// Or applies one operator and value to several fields and ORs the results.
//
// Semantics:
//
//	<f1> <op> <value> OR <f2> <op> <value> ...
//
// Produced by keys of the form "fullName.first OR fullName.last STARTSWITH".
type Or struct {
	Fields []string
	Op     Op
	Token  string
	Value  any
}

func (Or) predicateNode() {}

// SubQuery tests array membership for several candidate values.
//
// Semantics (ANY):
//
//	<field> contains <v1> OR <field> contains <v2> ...
//
// With FilterKey set the array holds objects and each candidate is compared
// against element.<FilterKey>. Empty Values never matches.
type SubQuery struct {
	Field     string
	FilterKey string
	Op        Op // OpArrayContainsAny or OpArrayContainsAll
	Values    []any
}

func (SubQuery) predicateNode() {}

// SimpleInJoin scopes a comparison to the elements of a joined array.
//
// Semantics:
//
//	EXISTS element IN <base> WHERE <inner>
//
// Inner is a Simple, Or, or a nested join node.
type SimpleInJoin struct {
	Base  string // relative to the enclosing scope
	Path  string // absolute dotted path of the joined array
	Inner Predicate
}

func (SimpleInJoin) predicateNode() {}

// SubQueryInJoin scopes an ARRAY_CONTAINS_ANY/ALL clause to the elements of
// a joined array. Inner is a SubQuery or a nested join node.
type SubQueryInJoin struct {
	Base  string
	Path  string
	Inner Predicate
}

func (SubQueryInJoin) predicateNode() {}

// ElemMatchInJoin requires every inner predicate to hold on the same
// element of the joined array.
//
// Semantics:
//
//	EXISTS element IN <base> WHERE <p1> AND <p2> ...
//
// CRITICAL: compiling the inner predicates as separate joins would let
// different elements satisfy different clauses.
type ElemMatchInJoin struct {
	Base  string
	Path  string
	Inner []Predicate
}

func (ElemMatchInJoin) predicateNode() {}

// And requires all predicates to hold.
type And struct {
	Predicates []Predicate
}

func (And) predicateNode() {}

// AnyOf requires at least one predicate to hold.
type AnyOf struct {
	Predicates []Predicate
}

func (AnyOf) predicateNode() {}

// Not negates a predicate.
type Not struct {
	Predicate Predicate
}

func (Not) predicateNode() {}

// Const is an always-true or always-false predicate.
type Const struct {
	Value bool
}

func (Const) predicateNode() {}

// Join is the common view of the three join node types.
type Join struct {
	Base      string
	Path      string
	Inner     []Predicate
	ElemMatch bool
}

// JoinOf returns the join view of p, or false when p is not a join node.
func JoinOf(p Predicate) (Join, bool) {
	switch j := p.(type) {
	case SimpleInJoin:
		return Join{Base: j.Base, Path: j.Path, Inner: []Predicate{j.Inner}}, true
	case SubQueryInJoin:
		return Join{Base: j.Base, Path: j.Path, Inner: []Predicate{j.Inner}}, true
	case ElemMatchInJoin:
		return Join{Base: j.Base, Path: j.Path, Inner: j.Inner, ElemMatch: true}, true
	default:
		return Join{}, false
	}
}

// Walk visits p and its descendants depth-first. Returning false from fn
// skips the children of the current node.
func Walk(p Predicate, fn func(Predicate) bool) {
	if p == nil || !fn(p) {
		return
	}
	switch n := p.(type) {
	case And:
		for _, c := range n.Predicates {
			Walk(c, fn)
		}
	case AnyOf:
		for _, c := range n.Predicates {
			Walk(c, fn)
		}
	case Not:
		Walk(n.Predicate, fn)
	default:
		if j, ok := JoinOf(p); ok {
			for _, c := range j.Inner {
				Walk(c, fn)
			}
		}
	}
}

// HasJoin reports whether any node of p is join-scoped.
func HasJoin(p Predicate) bool {
	found := false
	Walk(p, func(n Predicate) bool {
		if _, ok := JoinOf(n); ok {
			found = true
		}
		return !found
	})
	return found
}
