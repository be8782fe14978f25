// Package condition defines the caller-facing declarative query model.
//
// A Condition is an ordered set of filter clauses plus sort, paging,
// projection and join declarations. It is backend-agnostic: the queryir
// package lowers it into a predicate tree and the querysql / querydoc
// packages compile that tree into native queries.
//
// FILTER KEYS:
//
// Each filter key is a dotted field path followed by an optional operator
// token and, for ARRAY_CONTAINS_ANY / ARRAY_CONTAINS_ALL, an optional
// filter key naming the element field to test:
//
//	"lastName"                          → equality (membership for collections)
//	"age >="                            → comparison
//	"fullName.first OR fullName.last"   → same clause on several fields, OR'd
//	"children ARRAY_CONTAINS_ANY name"  → element field of an array of objects
//
// Logical groups are expressed with reserved keys: $AND, $OR, $NOT and
// $ELEM_MATCH. A group key may carry a suffix ("$OR 2", "$OR_b") so that a
// single level can hold several independent groups.
//
// INVARIANTS:
//
// Validate (and Builder.Build) reject at construction time:
//   - $ELEM_MATCH, or an $ELEM_MATCH sub-key, without a declared join base
//   - Negative combined with a non-empty Join
//   - malformed group values and empty keys
//
// The compilers never mutate a Condition.
package condition
