package cli

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/docquery/internal/condition"
)

func TestLoadQueryFile_FormatsAgree(t *testing.T) {
	for _, name := range []string{"families.yaml", "families.json", "families.cue"} {
		t.Run(name, func(t *testing.T) {
			qf, err := LoadQueryFile(testdata(name))
			require.NoError(t, err)

			assert.Equal(t, "families", qf.Collection)
			assert.Equal(t, "oslo", qf.Partition)
			assert.Nil(t, qf.Aggregate)
			require.NotNil(t, qf.Condition)

			c := qf.Condition
			assert.Equal(t, []string{"lastName", "age >="}, c.Filter.Keys())
			age, _ := c.Filter.Get("age >=")
			assert.Equal(t, 18, age)
			assert.Equal(t, []condition.SortField{{Field: "age", Desc: true}}, c.Sort)
			assert.Equal(t, 5, c.Offset)
			assert.Equal(t, 10, c.Limit)
		})
	}
}

func TestLoadQueryFile_BareCondition(t *testing.T) {
	qf, err := LoadQueryFile(testdata("bare.yaml"))
	require.NoError(t, err)
	assert.Equal(t, "families", qf.Collection)
	require.NotNil(t, qf.Condition)
	assert.Equal(t, []string{"lastName"}, qf.Condition.Filter.Keys())
}

func TestLoadQueryFile_Aggregate(t *testing.T) {
	qf, err := LoadQueryFile(testdata("aggregate.yaml"))
	require.NoError(t, err)
	assert.Nil(t, qf.Condition)
	require.NotNil(t, qf.Aggregate)

	spec := qf.Aggregate
	assert.Equal(t, "COUNT(1) AS n, MAX(age) AS oldest", spec.Function)
	assert.Equal(t, []string{"address.city"}, spec.GroupBy)
	require.NotNil(t, spec.Condition)
	assert.Equal(t, []string{"active"}, spec.Condition.Filter.Keys())
	require.NotNil(t, spec.After)
	assert.Equal(t, 3, spec.After.Limit)
}

func TestLoadQueryFile_OrderPreserved(t *testing.T) {
	path := filepath.Join(t.TempDir(), "order.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
collection: c
condition:
  filter:
    zeta: 1
    alpha: 2
    "$OR":
      mid: 3
      beta: 4
`), 0o600))

	qf, err := LoadQueryFile(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"zeta", "alpha", "$OR"}, qf.Condition.Filter.Keys())
	or, _ := qf.Condition.Filter.Get("$OR")
	m, ok := or.(condition.Map)
	require.True(t, ok)
	assert.Equal(t, []string{"mid", "beta"}, m.Keys())
}

func TestLoadQueryFile_FieldReference(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ref.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"collection": "c", "condition": {"filter": {"a >": {"$field": "b"}}}}`), 0o600))

	qf, err := LoadQueryFile(path)
	require.NoError(t, err)
	v, _ := qf.Condition.Filter.Get("a >")
	assert.Equal(t, condition.FieldRef("b"), v)
}

func TestLoadQueryFile_Errors(t *testing.T) {
	dir := t.TempDir()
	write := func(name, body string) string {
		path := filepath.Join(dir, name)
		require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
		return path
	}

	tests := []struct {
		name string
		path string
		code string
	}{
		{"missing", filepath.Join(dir, "nope.yaml"), ErrCodeNotFound},
		{"extension", write("query.toml", "a = 1"), ErrCodeUnsupported},
		{"yaml syntax", write("bad.yaml", "condition: [unclosed"), ErrCodeParseFailed},
		{"top-level list", write("list.yaml", "- a\n- b\n"), ErrCodeShape},
		{"collection type", write("coll.yaml", "collection: [a]\ncondition: {}\n"), ErrCodeShape},
		{"unknown condition key", write("key.yaml", "condition: {filters: {}}\n"), ErrCodeInvalidCondition},
		{"elem match without join", testdata("elem_match_without_join.yaml"), ErrCodeInvalidCondition},
		{"aggregate without function", write("agg.yaml", "aggregate: {groupBy: [a]}\n"), ErrCodeShape},
		{"unknown aggregate key", write("agg2.yaml", "aggregate: {function: COUNT(1), having: {}}\n"), ErrCodeShape},
		{"cue syntax", write("bad.cue", "condition: {"), ErrCodeLoadFailed},
		{"cue incomplete", testdata("incomplete.cue"), ErrCodeBuildFailed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadQueryFile(tt.path)
			require.Error(t, err)
			var loadErr *LoadError
			require.True(t, errors.As(err, &loadErr), "got %T: %v", err, err)
			assert.Equal(t, tt.code, loadErr.Code, loadErr.Message)
		})
	}
}

func TestLoadQueryFile_ValidationCodeSurvives(t *testing.T) {
	_, err := LoadQueryFile(testdata("elem_match_without_join.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), string(condition.ErrCodeElemMatchWithoutJoin))
}
