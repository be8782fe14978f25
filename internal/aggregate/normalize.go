package aggregate

import (
	"math"

	"github.com/roach88/docquery/internal/condition"
	"github.com/roach88/docquery/internal/queryir"
)

// Normalize post-processes aggregate rows in place and returns them.
//
// Keys found in renames are replaced by their mapped name. Integral numbers
// that fit in 32 bits become int; wider integral values become int64;
// fractional values stay float64. An ungrouped plan over zero rows yields
// one default row: row counts are 0 and every other function is nil. The
// default row is subject to the plan's post condition like any other row.
func Normalize(rows []map[string]any, plan *Plan, renames map[string]string) []map[string]any {
	if len(rows) == 0 && plan != nil && !plan.Grouped() {
		row := make(map[string]any, len(plan.Functions))
		for _, fn := range plan.Functions {
			if fn.Func == FuncCount {
				row[fn.Alias] = 0
			} else {
				row[fn.Alias] = nil
			}
		}
		if !keepsDefault(plan.Post, row) {
			return rows
		}
		return []map[string]any{row}
	}
	for i, row := range rows {
		out := make(map[string]any, len(row))
		for k, v := range row {
			if to, ok := renames[k]; ok {
				k = to
			}
			out[k] = narrow(v)
		}
		rows[i] = out
	}
	return rows
}

// keepsDefault reports whether the single default row survives post.
func keepsDefault(post *condition.Condition, row map[string]any) bool {
	if post == nil {
		return true
	}
	if post.Offset > 0 {
		return false
	}
	pred, err := queryir.Lower(post)
	if err != nil {
		// Parse already validated post
		return true
	}
	return queryir.Match(pred, row)
}

func narrow(v any) any {
	switch n := v.(type) {
	case int32:
		return int(n)
	case int64:
		if n >= math.MinInt32 && n <= math.MaxInt32 {
			return int(n)
		}
		return n
	case int:
		if n >= math.MinInt32 && n <= math.MaxInt32 {
			return n
		}
		return int64(n)
	case float64:
		if n != math.Trunc(n) || math.IsInf(n, 0) || math.IsNaN(n) {
			return n
		}
		if n >= math.MinInt32 && n <= math.MaxInt32 {
			return int(n)
		}
		if n >= math.MinInt64 && n < math.MaxInt64 {
			return int64(n)
		}
		return n
	case float32:
		return narrow(float64(n))
	default:
		return v
	}
}
