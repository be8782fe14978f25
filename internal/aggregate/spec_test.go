package aggregate

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/docquery/internal/condition"
)

func TestParseFunctions(t *testing.T) {
	fns, err := ParseFunctions("COUNT(1) AS total, max(age) maxAge, SUM(score), avg( score ) AS mean, Min(age)")
	require.NoError(t, err)

	assert.Equal(t, []Function{
		{Func: FuncCount, Arg: "*", Alias: "total"},
		{Func: FuncMax, Arg: "age", Alias: "maxAge"},
		{Func: FuncSum, Arg: "score", Alias: "$1"},
		{Func: FuncAvg, Arg: "score", Alias: "mean"},
		{Func: FuncMin, Arg: "age", Alias: "$2"},
	}, fns)
	assert.True(t, fns[0].CountsRows())
	assert.False(t, fns[1].CountsRows())
}

func TestParseFunctions_CountField(t *testing.T) {
	fns, err := ParseFunctions("count(children.name) as named")
	require.NoError(t, err)
	assert.Equal(t, Function{Func: FuncCount, Arg: "children.name", Alias: "named"}, fns[0])
}

func TestParseFunctions_Errors(t *testing.T) {
	tests := []string{
		"",
		"MEDIAN(age)",
		"COUNT()",
		"SUM(*)",
		"COUNT(1) AS a, MAX(age) AS a",
		"COUNT 1",
	}
	for _, input := range tests {
		t.Run(input, func(t *testing.T) {
			_, err := ParseFunctions(input)
			require.Error(t, err)
			var pe *ParseError
			assert.ErrorAs(t, err, &pe)
		})
	}
}

func TestParse_Groups(t *testing.T) {
	plan, err := Parse(Spec{Function: "COUNT(1) AS n", GroupBy: []string{"address.city", "lastName"}})
	require.NoError(t, err)

	assert.Equal(t, []Group{{Path: "address.city", Alias: "city"}, {Path: "lastName", Alias: "lastName"}}, plan.Groups)
	assert.True(t, plan.Grouped())
	assert.False(t, plan.HasPost())
}

func TestParse_DuplicateGroupAlias(t *testing.T) {
	_, err := Parse(Spec{Function: "COUNT(1) AS city", GroupBy: []string{"address.city"}})
	require.Error(t, err)
	var pe *ParseError
	assert.ErrorAs(t, err, &pe)
}

func TestParse_PostCondition(t *testing.T) {
	plan, err := Parse(Spec{
		Function: "COUNT(1) AS n",
		GroupBy:  []string{"city"},
		After:    condition.Where("n >", 1).Limit(3).MustBuild(),
	})
	require.NoError(t, err)
	assert.True(t, plan.HasPost())

	_, err = Parse(Spec{Function: "COUNT(1)", After: condition.Where("a.b", 1).Join("a").MustBuild()})
	assert.Error(t, err)
}

func TestParse_InvalidPreCondition(t *testing.T) {
	bad := &condition.Condition{Filter: condition.M("a", 1), Negative: true, Join: []string{"a"}}
	_, err := Parse(Spec{Function: "COUNT(1)", Condition: bad})
	require.Error(t, err)
	assert.True(t, condition.HasCode(err, condition.ErrCodeNegativeWithJoin))
}
