// Package queryir provides the target-neutral predicate IR for docquery.
//
// QueryIR is the boundary between the caller-facing condition model and the
// backend compilers:
//
//	[condition.Condition] → Lower → [queryir.Predicate] → [querysql] (Postgres JSONB)
//	                                                    → [querydoc] (MongoDB)
//
// LOWERING:
//
// Lower parses every filter key into a Key (fields, Op, filter key), infers
// the default operator from the value shape, detects join scope against the
// declared join bases, groups $ELEM_MATCH clauses per array element and
// folds constant sub-trees. The result is immutable; compilers only read it.
//
// SEALED INTERFACES:
//
// Predicate is a sealed interface using the marker method pattern. Only
// types in this package implement it, so backend compilers can use
// exhaustive type switches:
//
//	switch p := pred.(type) {
//	case queryir.Simple:
//	case queryir.Or:
//	case queryir.SubQuery:
//	case queryir.SimpleInJoin, queryir.SubQueryInJoin, queryir.ElemMatchInJoin:
//	case queryir.And, queryir.AnyOf, queryir.Not, queryir.Const:
//	}
//
// JOIN SCOPE:
//
// A clause is join-scoped when its path is under a declared join base.
// Field paths inside a join node are relative to the array element; an empty
// field addresses the element itself. Join nodes nest for array-in-array
// joins, carrying both the base relative to the enclosing scope (Base) and
// the absolute path (Path) used for matched-element projection.
//
// CRITICAL: clauses under one ElemMatchInJoin must hold on the same element.
// Independent join clauses each test for the existence of some element.
//
// CONSTANT FOLDING:
//
//	And(true, x)  → x        And(false, x) → false
//	Or(true, x)   → true     Or(false, x)  → x
//	And()         → true     Or()          → false
//
// Match evaluates a predicate against an in-memory document and serves as
// the reference semantics the compilers are tested against.
package queryir
