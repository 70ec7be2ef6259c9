// Package registry maintains the in-memory set of registered workers: their
// endpoints, descriptions and cached tool schemas. It is the single writer
// of Worker records; engines read it concurrently.
package registry

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/atlasrun/orchestrator/errs"
	"github.com/atlasrun/orchestrator/telemetry"
	"github.com/atlasrun/orchestrator/worker"
)

// Worker is one registered worker's directory entry.
type Worker struct {
	Name          string
	Endpoint      string
	Description   string
	Tools         []worker.ToolSchema
	LastHealthyAt time.Time
}

// WorkerClient is the subset of worker.Client the registry depends on.
type WorkerClient interface {
	ListTools(ctx context.Context) ([]worker.ToolSchema, error)
}

// Option configures a Registry.
type Option func(*Registry)

// WithLogger attaches a logger used for startup refresh diagnostics.
func WithLogger(l telemetry.Logger) Option {
	return func(r *Registry) { r.logger = l }
}

// WithClientFactory overrides how the registry builds a worker client for an
// endpoint; tests substitute a fake.
func WithClientFactory(f func(endpoint string) WorkerClient) Option {
	return func(r *Registry) { r.newClient = f }
}

// Registry is the exclusive owner of Worker records. Registration,
// unregistration and tool refresh mutate it; readers may list/get freely
// and concurrently.
type Registry struct {
	mu        sync.RWMutex
	workers   map[string]*Worker
	order     []string
	logger    telemetry.Logger
	newClient func(endpoint string) WorkerClient
}

// New builds an empty Registry.
func New(opts ...Option) *Registry {
	r := &Registry{
		workers: make(map[string]*Worker),
		logger:  telemetry.Noop().Logger,
	}
	r.newClient = func(endpoint string) WorkerClient {
		return worker.New(endpoint, worker.Options{})
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Register adds or replaces a worker record.
func (r *Registry) Register(w Worker) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.workers[w.Name]; !exists {
		r.order = append(r.order, w.Name)
	}
	cp := w
	r.workers[w.Name] = &cp
}

// Unregister removes a worker record by name. It is a no-op if the worker
// is not registered.
func (r *Registry) Unregister(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.workers[name]; !exists {
		return
	}
	delete(r.workers, name)
	for i, n := range r.order {
		if n == name {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
}

// Get returns a copy of the named worker record.
func (r *Registry) Get(name string) (Worker, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	w, ok := r.workers[name]
	if !ok {
		return Worker{}, false
	}
	return *w, true
}

// List returns a copy of every registered worker, in registration order.
func (r *Registry) List() []Worker {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Worker, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, *r.workers[name])
	}
	return out
}

// RefreshTools calls the worker's list_tools and replaces the cached tool
// list for the named worker.
func (r *Registry) RefreshTools(ctx context.Context, name string) error {
	r.mu.RLock()
	w, ok := r.workers[name]
	var endpoint string
	if ok {
		endpoint = w.Endpoint
	}
	r.mu.RUnlock()
	if !ok {
		return errs.New(errs.KindNotFound, "registry", fmt.Sprintf("worker %q is not registered", name), nil)
	}

	client := r.newClient(endpoint)
	tools, err := client.ListTools(ctx)
	if err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if cur, ok := r.workers[name]; ok {
		cur.Tools = tools
		cur.LastHealthyAt = time.Now()
	}
	return nil
}

// CatalogEntry is one row of the on-disk worker catalog loaded at startup.
type CatalogEntry struct {
	Name        string `json:"name" yaml:"name"`
	Endpoint    string `json:"endpoint" yaml:"endpoint"`
	Description string `json:"description" yaml:"description"`
}

// LoadCatalog registers every entry from the on-disk catalog and issues a
// concurrent, short-timeout RefreshTools for each. Workers that do not
// respond in time are still registered (so they appear in the UI) but with
// an empty tool list.
func (r *Registry) LoadCatalog(ctx context.Context, entries []CatalogEntry, refreshTimeout time.Duration) {
	if refreshTimeout <= 0 {
		refreshTimeout = 5 * time.Second
	}
	sorted := make([]CatalogEntry, len(entries))
	copy(sorted, entries)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Name < sorted[j].Name })

	for _, e := range sorted {
		r.Register(Worker{Name: e.Name, Endpoint: e.Endpoint, Description: e.Description})
	}

	var wg sync.WaitGroup
	for _, e := range sorted {
		wg.Add(1)
		go func(name string) {
			defer wg.Done()
			refreshCtx, cancel := context.WithTimeout(ctx, refreshTimeout)
			defer cancel()
			if err := r.RefreshTools(refreshCtx, name); err != nil {
				r.logger.Warn(ctx, "worker did not respond at startup", "worker", name, "error", err.Error())
			}
		}(e.Name)
	}
	wg.Wait()
}
