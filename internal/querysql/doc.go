// Package querysql compiles lowered predicates to parameterized PostgreSQL
// over a jsonb document column.
//
// Every document lives in one jsonb column (data by default) of the table
// "<collection>"."<partition>". Field paths become chained -> / ->>
// accessors with every key emitted as a quoted string literal:
//
//	lastName            → data->>'lastName'
//	age > 18            → (data->>'age')::numeric > @param000_age
//	skills = [a, b]     → data->'skills' = @param000_skills::jsonb
//
// CRITICAL: values are always bound, never interpolated. Parameter names
// carry a per-compile index so they never collide, and are accepted
// directly by pgx as named arguments (see Query.NamedArgs).
//
// JOINS:
//
// Join-scoped clauses compile, by default, to
//
//	EXISTS (SELECT 1 FROM jsonb_array_elements(data->'children') AS j1 WHERE ...)
//
// with one alias per nesting depth. JoinStrategyJSONPath emits
// data @? @param::jsonpath instead and falls back to EXISTS for clauses
// jsonpath cannot express.
//
// Compilation runs in two passes sharing one QueryContext: the WHERE pass
// records, per join base, the predicates applied to its elements; the
// projection pass reads them to rebuild each joined array with only the
// matched elements when ReturnAllSubArray is false.
package querysql
