package queryir

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/docquery/internal/condition"
)

func TestParseKey(t *testing.T) {
	tests := []struct {
		name      string
		key       string
		value     any
		fields    []string
		op        Op
		token     string
		filterKey string
		explicit  bool
	}{
		{"implicit equality", "lastName", "Andersen", []string{"lastName"}, OpEq, "=", "", false},
		{"implicit membership", "skills", []string{"a", "b"}, []string{"skills"}, OpIn, "IN", "", false},
		{"explicit comparison", "age >=", 18, []string{"age"}, OpGe, ">=", "", true},
		{"explicit equality on collection", "skills =", []any{"a"}, []string{"skills"}, OpEq, "=", "", true},
		{"lowercase operator", "name startswith", "A", []string{"name"}, OpStartsWith, "STARTSWITH", "", true},
		{"or family", "first OR last STARTSWITH", "A", []string{"first", "last"}, OpStartsWith, "STARTSWITH", "", true},
		{"filter key", "children ARRAY_CONTAINS_ANY name", []any{"a"}, []string{"children"}, OpArrayContainsAny, "ARRAY_CONTAINS_ANY", "name", true},
		{"unknown function", "location ST_DWITHIN", 10, []string{"location"}, OpUnknown, "ST_DWITHIN", "", true},
		{"alias", "a <>", 1, []string{"a"}, OpNe, "!=", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			k, err := ParseKey(tt.key, tt.value)
			require.NoError(t, err)
			assert.Equal(t, tt.fields, k.Fields)
			assert.Equal(t, tt.op, k.Op)
			assert.Equal(t, tt.token, k.Token)
			assert.Equal(t, tt.filterKey, k.FilterKey)
			assert.Equal(t, tt.explicit, k.Explicit)
		})
	}
}

func TestParseKey_Errors(t *testing.T) {
	for _, key := range []string{"", "a OR", "a foo", "a = extra", "a = b c"} {
		t.Run(key, func(t *testing.T) {
			_, err := ParseKey(key, 1)
			require.Error(t, err)
			assert.True(t, condition.HasCode(err, condition.ErrCodeInvalidKey))
		})
	}
}

func TestParseOp(t *testing.T) {
	op, ok := ParseOp("ARRAY_CONTAINS")
	require.True(t, ok)
	assert.Equal(t, OpArrayContains, op)

	op, ok = ParseOp("MY_FUNC2")
	require.True(t, ok)
	assert.Equal(t, OpUnknown, op)

	_, ok = ParseOp("notAnOp")
	assert.False(t, ok)
}

func TestOp_Families(t *testing.T) {
	assert.True(t, OpGe.IsComparison())
	assert.False(t, OpIn.IsComparison())
	assert.True(t, OpLike.IsStringMatch())
	assert.True(t, OpArrayContainsAll.IsArray())
	assert.True(t, OpIsDefined.IsTypeCheck())
	assert.Equal(t, "boolean", OpIsBool.JSONType())
	assert.Equal(t, "", OpIsDefined.JSONType())
}

func TestKindOf(t *testing.T) {
	assert.Equal(t, KindNull, KindOf(nil))
	assert.Equal(t, KindNumber, KindOf(int64(3)))
	assert.Equal(t, KindNumber, KindOf(2.5))
	assert.Equal(t, KindString, KindOf("x"))
	assert.Equal(t, KindBool, KindOf(true))
	assert.Equal(t, KindArray, KindOf([]int{1}))
	assert.Equal(t, KindObject, KindOf(map[string]any{"a": 1}))
	assert.Equal(t, KindObject, KindOf(condition.M("a", 1)))
	assert.Equal(t, KindFieldRef, KindOf(condition.Ref("a")))
}

func TestNormalize_SortsPlainMaps(t *testing.T) {
	v := Normalize(map[string]any{"b": 1, "a": []int{1, 2}})
	m, ok := v.(condition.Map)
	require.True(t, ok)
	assert.Equal(t, []string{"a", "b"}, m.Keys())
	inner, _ := m.Get("a")
	assert.Equal(t, []any{1, 2}, inner)
}
