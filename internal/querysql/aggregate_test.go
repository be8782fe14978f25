package querysql

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/docquery/internal/aggregate"
	"github.com/roach88/docquery/internal/condition"
)

func TestAggregate_GroupedWithPostCondition(t *testing.T) {
	c := newTestCompiler(JoinStrategySubquery)
	q, err := c.Aggregate("families", "oslo", aggregate.Spec{
		Function:  "COUNT(1) AS n, MAX(age) AS oldest",
		GroupBy:   []string{"address.city"},
		Condition: condition.Where("active", true).MustBuild(),
		After:     condition.Where("n >", 1).Sort("n", condition.Desc).Limit(3).MustBuild(),
	})
	require.NoError(t, err)

	inner := `SELECT jsonb_build_object('city', data->'address'->'city', 'n', COUNT(*), 'oldest', MAX((data->>'age')::numeric)) AS data` +
		` FROM "families"."oslo" WHERE (data->>'active')::boolean = @param000_active GROUP BY data->'address'->'city'`
	assert.Equal(t, `SELECT agg.data FROM (`+inner+`) AS agg WHERE (agg.data->>'n')::numeric > @param001_n ORDER BY agg.data->'n' DESC LIMIT 3`, q.Text)
	assert.Equal(t, []Param{
		{Name: "param000_active", Value: true},
		{Name: "param001_n", Value: 1},
	}, q.Params)
}

func TestAggregate_Ungrouped(t *testing.T) {
	c := newTestCompiler(JoinStrategySubquery)
	q, err := c.Aggregate("families", "oslo", aggregate.Spec{Function: "COUNT(1)"})
	require.NoError(t, err)
	assert.Equal(t, `SELECT jsonb_build_object('$1', COUNT(*)) AS data FROM "families"."oslo"`, q.Text)
	assert.Empty(t, q.Params)
}

func TestAggregate_FieldFunctions(t *testing.T) {
	c := newTestCompiler(JoinStrategySubquery)
	q, err := c.Aggregate("families", "oslo", aggregate.Spec{
		Function: "SUM(score), COUNT(email) AS withEmail, AVG(score)",
	})
	require.NoError(t, err)
	assert.Equal(t, `SELECT jsonb_build_object('$1', SUM((data->>'score')::numeric), 'withEmail', COUNT(data->'email'), '$2', AVG((data->>'score')::numeric)) AS data FROM "families"."oslo"`, q.Text)
}

func TestAggregate_PagingOnlyPostStage(t *testing.T) {
	c := newTestCompiler(JoinStrategySubquery)
	q, err := c.Aggregate("families", "oslo", aggregate.Spec{
		Function: "COUNT(1) AS n",
		GroupBy:  []string{"city"},
		After:    condition.Where().Offset(2).MustBuild(),
	})
	require.NoError(t, err)
	assert.Equal(t, `SELECT agg.data FROM (SELECT jsonb_build_object('city', data->'city', 'n', COUNT(*)) AS data FROM "families"."oslo" GROUP BY data->'city') AS agg OFFSET 2`, q.Text)
}

func TestAggregate_Errors(t *testing.T) {
	c := newTestCompiler(JoinStrategySubquery)

	_, err := c.Aggregate("families", "oslo", aggregate.Spec{Function: "MEDIAN(age)"})
	var pe *aggregate.ParseError
	assert.ErrorAs(t, err, &pe)

	_, err = c.Aggregate("families", "oslo", aggregate.Spec{
		Function:  "COUNT(1)",
		Condition: condition.RawSQL("SELECT 1"),
	})
	assert.Error(t, err)
}
