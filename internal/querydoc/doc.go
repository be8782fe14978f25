// Package querydoc compiles lowered predicates to MongoDB filter documents
// and aggregation pipelines.
//
// A collection maps to a MongoDB database and a partition to a MongoDB
// collection. All output is built from bson.D and bson.A so key order is
// preserved and compiling the same condition twice yields identical
// documents.
//
// FIND OR PIPELINE:
//
// A condition without joins compiles to a find-style Query.Find (filter,
// sort, projection, skip, limit). A condition declaring joins compiles to
// Query.Pipeline:
//
//	$match → $sort → $skip → $limit → [reshape] → [$project]
//
// Join-scoped clauses match with $elemMatch, so every clause of one
// $ELEM_MATCH group holds on the same element.
//
// RESHAPE:
//
// When ReturnAllSubArray is false each recorded top-level join base is
// filtered into a temporary field with $addFields/$filter, nested bases are
// filtered inside each kept element with $map/$mergeObjects, and a single
// $replaceRoot merges every temporary field back over $$ROOT before $unset
// removes them. The $filter conditions are aggregation expressions compiled
// from the same predicates the $match used.
//
// CRITICAL: aggregation expressions compare missing and null values as
// lowest, unlike query operators. Ordering comparisons are guarded so a
// missing field never satisfies them.
package querydoc
