package config_test

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/atlasrun/orchestrator/config"
	"github.com/atlasrun/orchestrator/errs"
	"github.com/atlasrun/orchestrator/model"
)

func newRegistry(t *testing.T) (*config.ModelRegistry, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "models.yaml")
	reg, err := config.New(path, model.NewRegistry())
	require.NoError(t, err)
	return reg, path
}

func TestCreateAndList(t *testing.T) {
	reg, path := newRegistry(t)
	require.NoError(t, reg.Create(config.ModelEntry{ID: "claude", Driver: "anthropic-style", APIKeyEnv: "ANTHROPIC_API_KEY"}))

	entries := reg.List()
	require.Len(t, entries, 1)
	assert.Equal(t, "claude", entries[0].ID)

	reg2, err := config.New(path, model.NewRegistry())
	require.NoError(t, err)
	assert.Len(t, reg2.List(), 1)
}

func TestCreateDuplicateIDFails(t *testing.T) {
	reg, _ := newRegistry(t)
	require.NoError(t, reg.Create(config.ModelEntry{ID: "claude"}))
	err := reg.Create(config.ModelEntry{ID: "claude"})
	require.Error(t, err)
	e, ok := errs.Of(err)
	require.True(t, ok)
	assert.Equal(t, errs.KindInvalidArgument, e.Kind())
}

func TestSetDefaultClearsOthers(t *testing.T) {
	reg, _ := newRegistry(t)
	require.NoError(t, reg.Create(config.ModelEntry{ID: "a", IsDefault: true}))
	require.NoError(t, reg.Create(config.ModelEntry{ID: "b"}))

	require.NoError(t, reg.SetDefault("b"))

	a, _ := reg.Get("a")
	b, _ := reg.Get("b")
	assert.False(t, a.IsDefault)
	assert.True(t, b.IsDefault)
}

func TestDeleteDefaultFails(t *testing.T) {
	reg, _ := newRegistry(t)
	require.NoError(t, reg.Create(config.ModelEntry{ID: "a", IsDefault: true}))
	err := reg.Delete("a")
	require.Error(t, err)
	e, ok := errs.Of(err)
	require.True(t, ok)
	assert.Equal(t, errs.KindInvalidArgument, e.Kind())
}

func TestResolveClientMissingAPIKeyFails(t *testing.T) {
	reg, _ := newRegistry(t)
	require.NoError(t, reg.Create(config.ModelEntry{ID: "claude", Driver: "anthropic-style", APIKeyEnv: "ORCH_TEST_UNSET_KEY"}))

	_, err := reg.ResolveClient(t.Context(), "claude")
	require.Error(t, err)
	e, ok := errs.Of(err)
	require.True(t, ok)
	assert.Equal(t, errs.KindLLMAuthError, e.Kind())
}
