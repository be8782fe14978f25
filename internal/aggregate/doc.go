// Package aggregate parses aggregate specifications into a backend-neutral
// Plan and post-processes aggregate results.
//
// A Spec names one or more functions, an optional group-by list, a
// pre-aggregate Condition and a post-aggregate Condition:
//
//	aggregate.Spec{
//	  Function: "COUNT(1) AS total, max(age) maxAge, SUM(score)",
//	  GroupBy:  []string{"address.city"},
//	}
//
// Function names are case-insensitive; AS is optional; unaliased functions
// are named $1, $2, ... in declaration order. Group keys are exposed under
// the last segment of their path (address.city → city).
//
// Backend compilers emit stages in a fixed order: pre-filter, group-key
// rename, group/aggregate, flatten, post filter/sort/offset/limit.
// Normalize makes results from both backends look the same.
package aggregate
