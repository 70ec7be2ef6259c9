package paramresolver_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/atlasrun/orchestrator/errs"
	"github.com/atlasrun/orchestrator/paramresolver"
)

func lookupFrom(results map[string]any) paramresolver.ResultLookup {
	return func(nodeID string) (any, bool) {
		v, ok := results[nodeID]
		return v, ok
	}
}

func TestResolveWholeReferencePreservesType(t *testing.T) {
	r := paramresolver.New()
	lookup := lookupFrom(map[string]any{
		"fetch": map[string]any{"count": float64(3), "items": []any{"a", "b"}},
	})

	out, err := r.ResolveParams("next", map[string]any{"n": "${fetch.count}"}, lookup)
	require.NoError(t, err)
	assert.Equal(t, float64(3), out["n"])
}

func TestResolveEmbeddedReferenceSplicesJSON(t *testing.T) {
	r := paramresolver.New()
	lookup := lookupFrom(map[string]any{
		"fetch": map[string]any{"items": []any{"a", "b"}},
	})

	out, err := r.ResolveParams("next", map[string]any{
		"prompt": "items were: ${fetch.items}",
	}, lookup)
	require.NoError(t, err)
	assert.Equal(t, "items were: [\n  \"a\",\n  \"b\"\n]", out["prompt"])
}

func TestResolveEnvWithDefault(t *testing.T) {
	t.Setenv("MISSING_VAR_XYZ", "")
	r := paramresolver.New()
	out, err := r.ResolveParams("n1", map[string]any{
		"region": "${env:MISSING_VAR_XYZ:-us-east-1}",
	}, lookupFrom(nil))
	require.NoError(t, err)
	assert.Equal(t, "us-east-1", out["region"])
}

func TestResolveEnvPresent(t *testing.T) {
	t.Setenv("ORCH_TEST_VAR", "hello")
	r := paramresolver.New()
	out, err := r.ResolveParams("n1", map[string]any{
		"greeting": "${env:ORCH_TEST_VAR}",
	}, lookupFrom(nil))
	require.NoError(t, err)
	assert.Equal(t, "hello", out["greeting"])
}

func TestResolveEnvMissingNoDefaultFails(t *testing.T) {
	r := paramresolver.New()
	_, err := r.ResolveParams("n1", map[string]any{
		"x": "${env:ORCH_DEFINITELY_UNSET_VAR}",
	}, lookupFrom(nil))
	require.Error(t, err)
	e, ok := errs.Of(err)
	require.True(t, ok)
	assert.Equal(t, errs.KindUnresolvedReference, e.Kind())
}

func TestResolveUnknownNodeFails(t *testing.T) {
	r := paramresolver.New()
	_, err := r.ResolveParams("n2", map[string]any{
		"x": "${missing.field}",
	}, lookupFrom(nil))
	require.Error(t, err)
	e, ok := errs.Of(err)
	require.True(t, ok)
	assert.Equal(t, errs.KindUnresolvedReference, e.Kind())
}

func TestResolveUnknownPathSegmentFails(t *testing.T) {
	r := paramresolver.New()
	lookup := lookupFrom(map[string]any{"fetch": map[string]any{"count": float64(1)}})
	_, err := r.ResolveParams("n3", map[string]any{
		"x": "${fetch.missing_field}",
	}, lookup)
	require.Error(t, err)
	e, ok := errs.Of(err)
	require.True(t, ok)
	assert.Equal(t, errs.KindUnresolvedReference, e.Kind())
}

func TestResolveArrayIndexPath(t *testing.T) {
	r := paramresolver.New()
	lookup := lookupFrom(map[string]any{
		"fetch": map[string]any{"items": []any{"first", "second"}},
	})
	out, err := r.ResolveParams("n4", map[string]any{"x": "${fetch.items.1}"}, lookup)
	require.NoError(t, err)
	assert.Equal(t, "second", out["x"])
}

func TestResolveCustomIndent(t *testing.T) {
	r := paramresolver.New(paramresolver.WithIndent(""))
	lookup := lookupFrom(map[string]any{"fetch": map[string]any{"items": []any{"a"}}})
	out, err := r.ResolveParams("n5", map[string]any{"x": "prefix ${fetch.items}"}, lookup)
	require.NoError(t, err)
	assert.Equal(t, "prefix [\n\"a\"\n]", out["x"])
}

func TestNonStringValuesPassThrough(t *testing.T) {
	r := paramresolver.New()
	out, err := r.ResolveParams("n6", map[string]any{"x": float64(42), "y": true}, lookupFrom(nil))
	require.NoError(t, err)
	assert.Equal(t, float64(42), out["x"])
	assert.Equal(t, true, out["y"])
}
