package aggregate

import (
	"math"
	"testing"

	"github.com/roach88/docquery/internal/condition"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalize_DefaultRowWhenUngrouped(t *testing.T) {
	plan, err := Parse(Spec{Function: "COUNT(1) AS n, MAX(age) AS oldest"})
	require.NoError(t, err)

	rows := Normalize(nil, plan, nil)
	require.Len(t, rows, 1)
	assert.Equal(t, map[string]any{"n": 0, "oldest": nil}, rows[0])
}

func TestNormalize_DefaultRowFilteredByPostCondition(t *testing.T) {
	tests := []struct {
		name  string
		after *condition.Condition
		want  []map[string]any
	}{
		{"excluded", condition.Where("n >", 0).MustBuild(), nil},
		{"kept", condition.Where("n >=", 0).MustBuild(), []map[string]any{{"n": 0}}},
		{"skipped by offset", condition.Where().Offset(1).MustBuild(), nil},
		{"limit keeps it", condition.Where().Limit(1).MustBuild(), []map[string]any{{"n": 0}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			plan, err := Parse(Spec{Function: "COUNT(1) AS n", After: tt.after})
			require.NoError(t, err)

			rows := Normalize(nil, plan, nil)
			if tt.want == nil {
				assert.Empty(t, rows)
				return
			}
			assert.Equal(t, tt.want, rows)
		})
	}
}

func TestNormalize_NoRowsWhenGrouped(t *testing.T) {
	plan, err := Parse(Spec{Function: "COUNT(1) AS n", GroupBy: []string{"city"}})
	require.NoError(t, err)

	assert.Empty(t, Normalize(nil, plan, nil))
}

func TestNormalize_NarrowsNumbers(t *testing.T) {
	plan, err := Parse(Spec{Function: "COUNT(1) AS n", GroupBy: []string{"city"}})
	require.NoError(t, err)

	rows := Normalize([]map[string]any{{
		"n":     float64(3),
		"big":   float64(1 << 40),
		"frac":  2.5,
		"i32":   int32(7),
		"i64":   int64(9),
		"wide":  int64(math.MaxInt32) + 1,
		"city":  "Oslo",
		"agg_0": float64(1),
	}}, plan, map[string]string{"agg_0": "$count"})

	require.Len(t, rows, 1)
	assert.Equal(t, map[string]any{
		"n":      3,
		"big":    int64(1 << 40),
		"frac":   2.5,
		"i32":    7,
		"i64":    9,
		"wide":   int64(math.MaxInt32) + 1,
		"city":   "Oslo",
		"$count": 1,
	}, rows[0])
}
