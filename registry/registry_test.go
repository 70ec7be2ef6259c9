package registry_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/atlasrun/orchestrator/registry"
	"github.com/atlasrun/orchestrator/worker"
)

type fakeClient struct {
	tools []worker.ToolSchema
	err   error
}

func (f *fakeClient) ListTools(context.Context) ([]worker.ToolSchema, error) {
	return f.tools, f.err
}

func TestRegisterGetList(t *testing.T) {
	r := registry.New()
	r.Register(registry.Worker{Name: "calc", Endpoint: "http://calc"})
	r.Register(registry.Worker{Name: "scan", Endpoint: "http://scan"})

	w, ok := r.Get("calc")
	require.True(t, ok)
	assert.Equal(t, "http://calc", w.Endpoint)

	list := r.List()
	require.Len(t, list, 2)
	assert.Equal(t, "calc", list[0].Name)
	assert.Equal(t, "scan", list[1].Name)
}

func TestUnregister(t *testing.T) {
	r := registry.New()
	r.Register(registry.Worker{Name: "calc", Endpoint: "http://calc"})
	r.Unregister("calc")
	_, ok := r.Get("calc")
	assert.False(t, ok)
	assert.Empty(t, r.List())
}

func TestRefreshToolsReplacesCache(t *testing.T) {
	fc := &fakeClient{tools: []worker.ToolSchema{{Name: "add"}}}
	r := registry.New(registry.WithClientFactory(func(string) registry.WorkerClient { return fc }))
	r.Register(registry.Worker{Name: "calc", Endpoint: "http://calc"})

	require.NoError(t, r.RefreshTools(t.Context(), "calc"))
	w, _ := r.Get("calc")
	require.Len(t, w.Tools, 1)
	assert.Equal(t, "add", w.Tools[0].Name)
	assert.False(t, w.LastHealthyAt.IsZero())
}

func TestRefreshToolsUnknownWorker(t *testing.T) {
	r := registry.New()
	err := r.RefreshTools(t.Context(), "missing")
	assert.Error(t, err)
}

func TestLoadCatalogRegistersEvenOnFailure(t *testing.T) {
	fc := &fakeClient{err: assertError{}}
	r := registry.New(registry.WithClientFactory(func(string) registry.WorkerClient { return fc }))
	r.LoadCatalog(context.Background(), []registry.CatalogEntry{
		{Name: "down", Endpoint: "http://down"},
	}, 50*time.Millisecond)

	w, ok := r.Get("down")
	require.True(t, ok)
	assert.Empty(t, w.Tools)
}

func TestConcurrentReadsDuringRefresh(t *testing.T) {
	fc := &fakeClient{tools: []worker.ToolSchema{{Name: "add"}}}
	r := registry.New(registry.WithClientFactory(func(string) registry.WorkerClient { return fc }))
	r.Register(registry.Worker{Name: "calc", Endpoint: "http://calc"})

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			r.List()
		}()
	}
	require.NoError(t, r.RefreshTools(t.Context(), "calc"))
	wg.Wait()
}

type assertError struct{}

func (assertError) Error() string { return "worker unreachable" }
