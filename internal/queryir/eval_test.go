package queryir

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/roach88/docquery/internal/condition"
)

func family() map[string]any {
	return map[string]any{
		"lastName": "Andersen",
		"age":      float64(42),
		"skills":   []any{"go", "sql"},
		"children": []any{
			map[string]any{"a": float64(1), "b": float64(2), "name": "Henriette", "pets": []any{map[string]any{"name": "rex"}}},
			map[string]any{"a": float64(2), "b": float64(1), "name": "Jesse"},
		},
		"nickname": nil,
	}
}

func TestMatch_JoinElementScoping(t *testing.T) {
	doc := family()

	sameElement := lower(t, condition.Where(
		"$ELEM_MATCH", condition.M("children.a", 1, "children.b", 1),
	).Join("children"))
	assert.False(t, Match(sameElement, doc), "no single child has a=1 and b=1")

	independent := lower(t, condition.Where("children.a", 1, "children.b", 1).Join("children"))
	assert.True(t, Match(independent, doc), "different children may satisfy different clauses")
}

func TestMatch_Operators(t *testing.T) {
	doc := family()
	tests := []struct {
		name string
		b    *condition.Builder
		want bool
	}{
		{"equality", condition.Where("lastName", "Andersen"), true},
		{"comparison", condition.Where("age >=", 42), true},
		{"comparison fails", condition.Where("age <", 42), false},
		{"membership", condition.Where("lastName", []string{"Smith", "Andersen"}), true},
		{"array equality", condition.Where("skills =", []string{"go", "sql"}), true},
		{"array equality order matters", condition.Where("skills =", []string{"sql", "go"}), false},
		{"membership is not equality", condition.Where("skills", []string{"go", "sql"}), false},
		{"startswith", condition.Where("lastName STARTSWITH", "And"), true},
		{"contains", condition.Where("lastName CONTAINS", "ders"), true},
		{"like", condition.Where("lastName LIKE", "A_d%"), true},
		{"regex", condition.Where("lastName REGEXMATCH", "^A.*n$"), true},
		{"array contains", condition.Where("skills ARRAY_CONTAINS", "go"), true},
		{"array contains object", condition.Where("children ARRAY_CONTAINS", condition.M("name", "Jesse")), true},
		{"contains any", condition.Where("skills ARRAY_CONTAINS_ANY", []string{"rust", "go"}), true},
		{"contains all", condition.Where("skills ARRAY_CONTAINS_ALL", []string{"rust", "go"}), false},
		{"contains any by key", condition.Where("children ARRAY_CONTAINS_ANY name", []string{"Jesse"}), true},
		{"empty any", condition.Where("skills ARRAY_CONTAINS_ANY", []string{}), false},
		{"defined", condition.Where("age IS_DEFINED", true), true},
		{"not defined", condition.Where("missing IS_DEFINED", false), true},
		{"is number", condition.Where("age IS_NUMBER", true), true},
		{"is null", condition.Where("nickname", nil), true},
		{"missing is not null", condition.Where("missing", nil), false},
		{"missing never compares", condition.Where("missing !=", 1), false},
		{"field ref", condition.Where("age >", condition.Ref("children")), false},
		{"or family", condition.Where("lastName OR nickname STARTSWITH", "A"), true},
		{"negative", condition.Where("lastName", "Andersen").Not(), false},
		{"nested join", condition.Where("children.pets.name", "rex").Join("children", "children.pets"), true},
		{"element comparison", condition.Where("skills STARTSWITH", "s").Join("skills"), true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Match(lower(t, tt.b), doc))
		})
	}
}

func TestEqual(t *testing.T) {
	assert.True(t, Equal(1, float64(1)))
	assert.True(t, Equal(map[string]any{"a": 1}, condition.M("a", 1.0)))
	assert.False(t, Equal("1", 1))
	assert.False(t, Equal([]any{1}, []any{1, 2}))
}

func TestContains(t *testing.T) {
	assert.True(t, Contains(map[string]any{"a": 1, "b": 2}, condition.M("a", 1)))
	assert.False(t, Contains(map[string]any{"a": 1}, condition.M("a", 1, "b", 2)))
	assert.True(t, Contains([]any{1, 2, 3}, []any{3, 1}))
}
