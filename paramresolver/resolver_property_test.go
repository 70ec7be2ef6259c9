package paramresolver_test

import (
	"strings"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"github.com/atlasrun/orchestrator/paramresolver"
)

// TestResolvePlainStringsAreUnchanged checks the no-op half of
// resolveString: a value containing no "${" token must come back
// byte-for-byte identical, no matter what else it contains.
func TestResolvePlainStringsAreUnchanged(t *testing.T) {
	properties := gopter.NewProperties(nil)
	r := paramresolver.New()
	lookup := func(string) (any, bool) { return nil, false }

	properties.Property("strings without ${ pass through unchanged", prop.ForAll(
		func(s string) bool {
			if strings.Contains(s, "${") {
				return true // not the case this property targets
			}
			out, err := r.ResolveParams("n", map[string]any{"v": s}, lookup)
			if err != nil {
				return false
			}
			return out["v"] == s
		},
		gen.AnyString(),
	))

	properties.TestingRun(t)
}

// TestResolveNonStringParamsAreUnchanged checks that ResolveParams never
// touches a non-string value: numbers and bools pass straight through
// unchanged.
func TestResolveNonStringParamsAreUnchanged(t *testing.T) {
	properties := gopter.NewProperties(nil)
	r := paramresolver.New()
	lookup := func(string) (any, bool) { return nil, false }

	properties.Property("numeric params pass through unchanged", prop.ForAll(
		func(n float64) bool {
			out, err := r.ResolveParams("n", map[string]any{"v": n}, lookup)
			if err != nil {
				return false
			}
			return out["v"] == n
		},
		gen.Float64Range(-1e9, 1e9),
	))

	properties.Property("bool params pass through unchanged", prop.ForAll(
		func(b bool) bool {
			out, err := r.ResolveParams("n", map[string]any{"v": b}, lookup)
			if err != nil {
				return false
			}
			return out["v"] == b
		},
		gen.Bool(),
	))

	properties.TestingRun(t)
}
