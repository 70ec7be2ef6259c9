// Package paramresolver substitutes ${node.path} and ${env:NAME} references
// inside workflow node parameters. Recognition is hand-rolled string
// scanning, not regex, matching the orchestrator's own query-coercion style.
package paramresolver

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/atlasrun/orchestrator/errs"
)

// ResultLookup resolves a node id to its completed result. It is satisfied
// by the workflow engine's ExecutionContext.
type ResultLookup func(nodeID string) (any, bool)

// Option configures a Resolver.
type Option func(*Resolver)

// WithIndent overrides the JSON indent used when splicing a resolved
// reference into a larger string. The spec keeps the source's 2-space
// indent as the default; downstream LLMs may prefer compact JSON, so this
// is exposed as a knob rather than baked in (spec Open Question 3).
func WithIndent(indent string) Option {
	return func(r *Resolver) { r.indent = indent }
}

// Resolver substitutes ${...} references in workflow node parameters.
type Resolver struct {
	indent string
}

// New builds a Resolver with the spec's default 2-space embedded-JSON
// indent.
func New(opts ...Option) *Resolver {
	r := &Resolver{indent: "  "}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// ResolveParams resolves every string value in params against lookup and
// the process environment, returning a new map. Non-string values pass
// through unchanged.
func (r *Resolver) ResolveParams(nodeID string, params map[string]any, lookup ResultLookup) (map[string]any, error) {
	out := make(map[string]any, len(params))
	for k, v := range params {
		resolved, err := r.resolveValue(nodeID, v, lookup)
		if err != nil {
			return nil, err
		}
		out[k] = resolved
	}
	return out, nil
}

func (r *Resolver) resolveValue(nodeID string, v any, lookup ResultLookup) (any, error) {
	s, ok := v.(string)
	if !ok {
		return v, nil
	}
	return r.resolveString(nodeID, s, lookup)
}

// resolveString implements the two substitution forms from spec §4.E: when
// the reference is the entire string, the resolved value is substituted as
// the original typed value; when embedded, it is JSON-serialized and
// spliced in as text.
func (r *Resolver) resolveString(nodeID, s string, lookup ResultLookup) (any, error) {
	ref, ok := wholeReference(s)
	if ok {
		return r.resolveReference(nodeID, ref, lookup)
	}

	var out strings.Builder
	i := 0
	for i < len(s) {
		start := strings.Index(s[i:], "${")
		if start < 0 {
			out.WriteString(s[i:])
			break
		}
		start += i
		out.WriteString(s[i:start])
		end := matchingBrace(s, start)
		if end < 0 {
			out.WriteString(s[start:])
			break
		}
		token := s[start+2 : end]
		val, err := r.resolveReference(nodeID, token, lookup)
		if err != nil {
			return nil, err
		}
		serialized, err := r.serialize(val)
		if err != nil {
			return nil, err
		}
		out.WriteString(serialized)
		i = end + 1
	}
	return out.String(), nil
}

// wholeReference reports whether s is exactly one ${...} token with nothing
// else around it.
func wholeReference(s string) (string, bool) {
	if !strings.HasPrefix(s, "${") || !strings.HasSuffix(s, "}") {
		return "", false
	}
	end := matchingBrace(s, 0)
	if end != len(s)-1 {
		return "", false
	}
	return s[2:end], true
}

// matchingBrace finds the index of the '}' matching the '{' that follows
// "$" at s[start:start+2], accounting for nested braces.
func matchingBrace(s string, start int) int {
	depth := 0
	for i := start + 1; i < len(s); i++ {
		switch s[i] {
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return i
			}
		}
	}
	return -1
}

func (r *Resolver) resolveReference(nodeID, token string, lookup ResultLookup) (any, error) {
	if after, ok := strings.CutPrefix(token, "env:"); ok {
		return resolveEnv(nodeID, after)
	}
	return resolveNode(nodeID, token, lookup)
}

func resolveEnv(nodeID, spec string) (any, error) {
	name, def, hasDefault := strings.Cut(spec, ":-")
	if v, ok := os.LookupEnv(name); ok && (v != "" || !hasDefault) {
		return v, nil
	}
	if hasDefault {
		return def, nil
	}
	return nil, errs.New(errs.KindUnresolvedReference, "paramresolver",
		fmt.Sprintf("node %q: environment variable %q is not set and has no default", nodeID, name), nil)
}

func resolveNode(nodeID, ref string, lookup ResultLookup) (any, error) {
	target, path, _ := strings.Cut(ref, ".")
	result, ok := lookup(target)
	if !ok {
		return nil, errs.New(errs.KindUnresolvedReference, "paramresolver",
			fmt.Sprintf("node %q: unresolved reference ${%s}", nodeID, ref), nil)
	}
	if path == "" {
		return result, nil
	}
	value, err := drill(result, strings.Split(path, "."))
	if err != nil {
		return nil, errs.New(errs.KindUnresolvedReference, "paramresolver",
			fmt.Sprintf("node %q: unresolved reference ${%s}: %s", nodeID, ref, err.Error()), nil)
	}
	return value, nil
}

func drill(v any, path []string) (any, error) {
	cur := v
	for _, segment := range path {
		switch c := cur.(type) {
		case map[string]any:
			next, ok := c[segment]
			if !ok {
				return nil, fmt.Errorf("field %q not found", segment)
			}
			cur = next
		case []any:
			idx, err := strconv.Atoi(segment)
			if err != nil || idx < 0 || idx >= len(c) {
				return nil, fmt.Errorf("index %q out of range", segment)
			}
			cur = c[idx]
		default:
			return nil, fmt.Errorf("cannot drill into %q of non-object value", segment)
		}
	}
	return cur, nil
}

func (r *Resolver) serialize(v any) (string, error) {
	if s, ok := v.(string); ok {
		return s, nil
	}
	data, err := json.MarshalIndent(v, "", r.indent)
	if err != nil {
		return "", fmt.Errorf("paramresolver: serialize embedded value: %w", err)
	}
	return string(data), nil
}
