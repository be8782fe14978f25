package cli

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const familiesSQL = `SELECT * FROM "families"."oslo"` +
	` WHERE data->>'lastName' = @param000_lastName AND (data->>'age')::numeric >= @param001_age` +
	` ORDER BY data->'age' DESC OFFSET 5 LIMIT 10`

func TestCompileText(t *testing.T) {
	out, err := execute(t, "compile", testdata("families.yaml"))
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(out, familiesSQL+"\n"), out)
	assert.Contains(t, out, "Params:\n  @param000_lastName = Andersen\n  @param001_age = 18\n")
	assert.Contains(t, out, "Fingerprint: ")
}

func TestCompileJSON(t *testing.T) {
	out, err := execute(t, "compile", testdata("families.yaml"), "--format", "json")
	require.NoError(t, err)

	var result CompileResult
	resp := decodeResponse(t, out, &result)
	assert.Equal(t, "ok", resp.Status)
	assert.NotEmpty(t, resp.TraceID)

	assert.Equal(t, "postgres", result.Target)
	assert.Equal(t, familiesSQL, result.SQL)
	require.Len(t, result.Params, 2)
	assert.Equal(t, "@param000_lastName", result.Params[0].Name)
	assert.Equal(t, "Andersen", result.Params[0].Value)
	assert.Equal(t, float64(18), result.Params[1].Value)
	assert.NotEmpty(t, result.Fingerprint)
}

func TestCompileFormatsProduceSameQuery(t *testing.T) {
	var fingerprints []string
	for _, name := range []string{"families.yaml", "families.json", "families.cue"} {
		out, err := execute(t, "compile", testdata(name), "--format", "json")
		require.NoError(t, err, name)
		var result CompileResult
		decodeResponse(t, out, &result)
		assert.Equal(t, familiesSQL, result.SQL, name)
		fingerprints = append(fingerprints, result.Fingerprint)
	}
	assert.Equal(t, fingerprints[0], fingerprints[1])
	assert.Equal(t, fingerprints[0], fingerprints[2])
}

func TestCompileCount(t *testing.T) {
	out, err := execute(t, "compile", testdata("families.yaml"), "--count")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out,
		`SELECT COUNT(*) AS "count" FROM "families"."oslo" WHERE data->>'lastName' = @param000_lastName`), out)
	assert.NotContains(t, out, "ORDER BY")
}

func TestCompileMongo(t *testing.T) {
	out, err := execute(t, "compile", testdata("families.yaml"), "--target", "mongo", "--format", "json")
	require.NoError(t, err)

	var result CompileResult
	decodeResponse(t, out, &result)
	assert.Equal(t, "mongo", result.Target)
	assert.Empty(t, result.SQL)

	var doc map[string]any
	require.NoError(t, json.Unmarshal(result.Query, &doc))
	assert.Equal(t, "families", doc["database"])
	assert.Equal(t, "oslo", doc["collection"])
	assert.Equal(t, map[string]any{
		"lastName": "Andersen",
		"age":      map[string]any{"$gte": float64(18)},
	}, doc["filter"])
	assert.Equal(t, map[string]any{"age": float64(-1)}, doc["sort"])
	assert.Equal(t, float64(5), doc["skip"])
	assert.Equal(t, float64(10), doc["limit"])
}

func TestCompileMongoText(t *testing.T) {
	out, err := execute(t, "compile", testdata("families.yaml"), "--target", "mongodb")
	require.NoError(t, err)
	assert.Contains(t, out, `"filter":{"lastName":"Andersen","age":{"$gte":18}}`)
	assert.Contains(t, out, "Fingerprint: ")
}

func TestCompileJoin(t *testing.T) {
	out, err := execute(t, "compile", testdata("children.yaml"))
	require.NoError(t, err)
	assert.Contains(t, out, "jsonb_array_elements(data->'children')")
	assert.Contains(t, out, "jsonb_set(data, ARRAY['children']")

	out, err = execute(t, "compile", testdata("children.yaml"), "--target", "mongo")
	require.NoError(t, err)
	assert.Contains(t, out, `"pipeline":[`)
	assert.Contains(t, out, `"$elemMatch"`)
	assert.Contains(t, out, `"$replaceRoot"`)
}

func TestCompileFlagOverridesFile(t *testing.T) {
	out, err := execute(t, "compile", testdata("families.yaml"), "--collection", "people", "--partition", "bergen")
	require.NoError(t, err)
	assert.Contains(t, out, `FROM "people"."bergen"`)
}

func TestCompileConfigFile(t *testing.T) {
	cfg := filepath.Join(t.TempDir(), "docquery.yaml")
	require.NoError(t, os.WriteFile(cfg, []byte("data_column: doc\ncollection: ignored\n"), 0o600))

	out, err := execute(t, "compile", testdata("bare.yaml"), "--config", cfg)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out, `SELECT * FROM "families" WHERE doc->>'lastName' = @param000_lastName`), out)
}

func TestCompileBareConditionWithoutPartition(t *testing.T) {
	out, err := execute(t, "compile", testdata("bare.yaml"))
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out, `SELECT * FROM "families" WHERE data->>'lastName' = @param000_lastName`), out)
}

func TestCompileOutputToFile(t *testing.T) {
	outputFile := filepath.Join(t.TempDir(), "compiled.json")

	out, err := execute(t, "compile", testdata("families.yaml"), "--output", outputFile)
	require.NoError(t, err)
	assert.Contains(t, out, "Wrote compiled query to "+outputFile)

	data, err := os.ReadFile(outputFile)
	require.NoError(t, err)

	var result CompileResult
	require.NoError(t, json.Unmarshal(data, &result))
	assert.Equal(t, familiesSQL, result.SQL)
}

func TestCompileNonExistentFile(t *testing.T) {
	out, err := execute(t, "compile", "/nonexistent/query.yaml")
	require.Error(t, err)
	assert.Equal(t, ExitUsage, ExitCode(err))
	assert.Contains(t, out, "error E005:")
}

func TestCompileInvalidCondition(t *testing.T) {
	out, err := execute(t, "compile", testdata("elem_match_without_join.yaml"), "--format", "json")
	require.Error(t, err)
	assert.Equal(t, ExitUsage, ExitCode(err))

	resp := decodeResponse(t, out, nil)
	assert.Equal(t, "error", resp.Status)
	require.NotNil(t, resp.Error)
	assert.Equal(t, ErrCodeInvalidCondition, resp.Error.Code)
	assert.Contains(t, resp.Error.Message, "ELEM_MATCH_WITHOUT_JOIN")
}

func TestCompileRequiresCollection(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nocoll.yaml")
	require.NoError(t, os.WriteFile(path, []byte("condition: {filter: {a: 1}}\n"), 0o600))

	out, err := execute(t, "compile", path)
	require.Error(t, err)
	assert.Equal(t, ExitUsage, ExitCode(err))
	assert.Contains(t, out, "collection is required")
}

func TestCompileAggregateFileRejected(t *testing.T) {
	out, err := execute(t, "compile", testdata("aggregate.yaml"))
	require.Error(t, err)
	assert.Contains(t, out, "use the aggregate command")
}

func TestCompileCUEErrorPosition(t *testing.T) {
	out, err := execute(t, "compile", testdata("incomplete.cue"), "--format", "json")
	require.Error(t, err)

	resp := decodeResponse(t, out, nil)
	require.NotNil(t, resp.Error)
	assert.Equal(t, ErrCodeBuildFailed, resp.Error.Code)
}
