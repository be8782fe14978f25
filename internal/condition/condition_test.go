package condition

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMap_PreservesInsertionOrder(t *testing.T) {
	m := M("b", 1, "a", 2, "c", 3)
	assert.Equal(t, []string{"b", "a", "c"}, m.Keys())

	// Replacing a value keeps its position
	m.Set("a", 20)
	assert.Equal(t, []string{"b", "a", "c"}, m.Keys())
	v, ok := m.Get("a")
	require.True(t, ok)
	assert.Equal(t, 20, v)
}

func TestMap_MarshalJSON(t *testing.T) {
	m := M("z", 1, "a", M("y", true, "b", nil))
	data, err := json.Marshal(m)
	require.NoError(t, err)
	assert.Equal(t, `{"z":1,"a":{"y":true,"b":null}}`, string(data))
}

func TestM_PanicsOnOddArguments(t *testing.T) {
	assert.Panics(t, func() { M("a") })
	assert.Panics(t, func() { M(1, 2) })
}

func TestGroupOf(t *testing.T) {
	tests := []struct {
		key  string
		want Group
	}{
		{"$AND", GroupAnd},
		{"$OR", GroupOr},
		{"$OR 2", GroupOr},
		{"$OR_b", GroupOr},
		{"$NOT", GroupNot},
		{"$NOT1", GroupNot},
		{"$ELEM_MATCH", GroupElemMatch},
		{"$ELEM_MATCH 2", GroupElemMatch},
		{"$ORDER", GroupNone},
		{"$ANDROID", GroupNone},
		{"lastName", GroupNone},
		{"age >=", GroupNone},
	}
	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			assert.Equal(t, tt.want, GroupOf(tt.key))
		})
	}
}

func TestJoinBase_LongestMatchWins(t *testing.T) {
	joins := []string{"children", "children.toys", "child"}

	base, ok := JoinBase("children.toys.name", joins)
	require.True(t, ok)
	assert.Equal(t, "children.toys", base)

	base, ok = JoinBase("children.grade", joins)
	require.True(t, ok)
	assert.Equal(t, "children", base)

	// "child" is not a path prefix of "childish"
	_, ok = JoinBase("childish", joins)
	assert.False(t, ok)
}

func TestBuilder_Build(t *testing.T) {
	c, err := Where("lastName", "Andersen", "age >=", 18).
		Join("children").
		Sort("age", Desc).
		Offset(5).
		Limit(10).
		Fields("id", "lastName").
		ReturnAllSubArray(false).
		CrossPartition().
		Build()
	require.NoError(t, err)

	assert.Equal(t, []string{"lastName", "age >="}, c.Filter.Keys())
	assert.Equal(t, []string{"children"}, c.Join)
	assert.Equal(t, []SortField{{Field: "age", Desc: true}}, c.Sort)
	assert.Equal(t, 5, c.Offset)
	assert.Equal(t, 10, c.Limit)
	assert.Equal(t, []string{"id", "lastName"}, c.Fields)
	assert.False(t, c.ReturnAllSubArray)
	assert.True(t, c.CrossPartition)
}

func TestBuilder_DefaultsReturnAllSubArray(t *testing.T) {
	c := Where("a", 1).MustBuild()
	assert.True(t, c.ReturnAllSubArray)
	assert.True(t, New().ReturnAllSubArray)
}

func TestBuilder_BuildDoesNotAlias(t *testing.T) {
	b := Where("a", 1)
	first := b.MustBuild()
	b.And("b", 2)
	second := b.MustBuild()

	assert.Equal(t, 1, first.Filter.Len())
	assert.Equal(t, 2, second.Filter.Len())
}

func TestBuilder_OddArguments(t *testing.T) {
	_, err := Where("a").Build()
	require.Error(t, err)
	assert.True(t, HasCode(err, ErrCodeInvalidArguments))
}

func TestValidate_NegativeWithJoinRejected(t *testing.T) {
	_, err := Where("children.grade", 5).Join("children").Not().Build()
	require.Error(t, err)
	assert.True(t, IsValidationError(err))
	assert.True(t, HasCode(err, ErrCodeNegativeWithJoin))

	// Same condition without join is fine
	_, err = Where("children.grade", 5).Not().Build()
	assert.NoError(t, err)
}

func TestValidate_ElemMatchWithoutJoin(t *testing.T) {
	_, err := Where("$ELEM_MATCH", M("children.grade", 5, "children.name", "a")).Build()
	require.Error(t, err)
	assert.True(t, HasCode(err, ErrCodeElemMatchWithoutJoin))
}

func TestValidate_ElemMatchKeyOutsideJoin(t *testing.T) {
	_, err := Where("$ELEM_MATCH", M("children.grade", 5, "parents.name", "a")).
		Join("children").
		Build()
	require.Error(t, err)
	assert.True(t, HasCode(err, ErrCodeElemMatchWithoutJoin))

	var ve *ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, "parents.name", ve.Key)
}

func TestValidate_ElemMatchRejectsNestedGroups(t *testing.T) {
	_, err := Where("$ELEM_MATCH", M("$OR", M("children.a", 1))).Join("children").Build()
	require.Error(t, err)
	assert.True(t, HasCode(err, ErrCodeInvalidSubCondition))
}

func TestValidate_SubConditionShapes(t *testing.T) {
	tests := []struct {
		name  string
		value any
		ok    bool
	}{
		{"condition", Where("a", 1).MustBuild(), true},
		{"condition list", []*Condition{Where("a", 1).MustBuild(), Where("b", 2).MustBuild()}, true},
		{"builder", Where("a", 1), true},
		{"map", M("a", 1, "b", 2), true},
		{"list of maps", []any{M("a", 1), M("b", 2)}, true},
		{"constant", true, true},
		{"string", "nope", false},
		{"nil condition", (*Condition)(nil), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Where("$OR", tt.value).Build()
			if tt.ok {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.True(t, HasCode(err, ErrCodeInvalidSubCondition))
		})
	}
}

func TestValidate_NotTakesOneCondition(t *testing.T) {
	_, err := Where("$NOT", []*Condition{Where("a", 1).MustBuild(), Where("b", 1).MustBuild()}).Build()
	require.Error(t, err)
	assert.True(t, HasCode(err, ErrCodeInvalidSubCondition))

	// A map under $NOT is one condition
	_, err = Where("$NOT", M("a", 1, "b", 2)).Build()
	assert.NoError(t, err)
}

func TestValidate_InvalidKeys(t *testing.T) {
	for _, key := range []string{"", "   ", "a OR", "a = b c"} {
		t.Run(key, func(t *testing.T) {
			_, err := Where(key, 1).Build()
			require.Error(t, err)
			assert.True(t, HasCode(err, ErrCodeInvalidKey))
		})
	}
}

func TestValidate_RawSubConditionRejected(t *testing.T) {
	_, err := Where("$AND", RawSQL("SELECT 1")).Build()
	require.Error(t, err)
	assert.True(t, HasCode(err, ErrCodeInvalidSubCondition))
}

func TestIsTrue(t *testing.T) {
	assert.True(t, New().IsTrue())
	assert.True(t, True().IsTrue())
	assert.False(t, False().IsTrue())
	assert.False(t, Where("a", 1).MustBuild().IsTrue())
}

func TestDecode(t *testing.T) {
	m := M(
		"filter", M("lastName", "Andersen", "age >", M(FieldRefKey, "minAge"), "tags", []any{"a", "b"}),
		"sort", []any{"-age", "lastName"},
		"offset", 2,
		"limit", 10,
		"join", []any{"children"},
		"returnAllSubArray", false,
	)
	c, err := Decode(m)
	require.NoError(t, err)

	assert.Equal(t, []string{"lastName", "age >", "tags"}, c.Filter.Keys())
	ref, _ := c.Filter.Get("age >")
	assert.Equal(t, FieldRef("minAge"), ref)
	assert.Equal(t, []SortField{{Field: "age", Desc: true}, {Field: "lastName"}}, c.Sort)
	assert.Equal(t, 2, c.Offset)
	assert.Equal(t, 10, c.Limit)
	assert.Equal(t, []string{"children"}, c.Join)
	assert.False(t, c.ReturnAllSubArray)
}

func TestDecode_SortMap(t *testing.T) {
	c, err := Decode(M("sort", M("age", "desc", "name", 1)))
	require.NoError(t, err)
	assert.Equal(t, []SortField{{Field: "age", Desc: true}, {Field: "name"}}, c.Sort)
}

func TestDecode_Errors(t *testing.T) {
	tests := []struct {
		name string
		in   Map
	}{
		{"unknown key", M("where", M())},
		{"filter not a map", M("filter", "x")},
		{"limit not int", M("limit", "ten")},
		{"negative with join", M("negative", true, "join", []any{"a"})},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Decode(tt.in)
			require.Error(t, err)
			assert.True(t, IsValidationError(err))
		})
	}
}

func TestParseTarget(t *testing.T) {
	tgt, ok := ParseTarget("postgresql")
	require.True(t, ok)
	assert.Equal(t, TargetRelational, tgt)

	tgt, ok = ParseTarget("mongodb")
	require.True(t, ok)
	assert.Equal(t, TargetDocument, tgt)

	_, ok = ParseTarget("cosmos")
	assert.False(t, ok)
}
