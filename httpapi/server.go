// Package httpapi implements ExecutionAPI: the HTTP and streaming-session
// surface of §6. Handlers validate request bodies and dispatch to the
// engines (WorkflowEngine, AgentRuntime, TeamRuntime), the registries
// (WorkerRegistry, ModelRegistry), and the package installer — no business
// logic lives here, matching the thin-handler shape the teacher's generated
// transport layer uses.
package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/atlasrun/orchestrator/agent"
	"github.com/atlasrun/orchestrator/config"
	"github.com/atlasrun/orchestrator/pkginstall"
	"github.com/atlasrun/orchestrator/registry"
	"github.com/atlasrun/orchestrator/team"
	"github.com/atlasrun/orchestrator/telemetry"
	"github.com/atlasrun/orchestrator/workflow"
)

// Dirs locates the on-disk definition stores §6's "persisted state layout"
// names.
type Dirs struct {
	AgentDefinitions string // agent-definitions/
	AgentTeams       string // agent-teams/
	WorkflowsUser    string // workflows/user/
}

// Server bundles every dependency a handler needs. It holds no engine state
// of its own beyond the definition stores; the engines themselves are
// injected so tests can substitute fakes.
type Server struct {
	Workers   *registry.Registry
	Engine    *workflow.Engine
	Agents    *agent.Runtime
	Teams     *team.Runtime
	Models    *config.ModelRegistry
	Installer *pkginstall.Installer
	Catalog   *pkginstall.CatalogClient
	Logger    telemetry.Logger

	workflows *definitionStore[workflow.Workflow]
	agentDefs *definitionStore[agent.Definition]
	teamDefs  *definitionStore[team.Definition]
}

// New builds a Server. dirs locates the on-disk stores for saved workflow,
// agent and team definitions.
func New(dirs Dirs, opts ...Option) *Server {
	s := &Server{
		Logger:    telemetry.Noop().Logger,
		workflows: newDefinitionStore[workflow.Workflow](dirs.WorkflowsUser),
		agentDefs: newDefinitionStore[agent.Definition](dirs.AgentDefinitions),
		teamDefs:  newDefinitionStore[team.Definition](dirs.AgentTeams),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Option configures a Server.
type Option func(*Server)

func WithLogger(l telemetry.Logger) Option         { return func(s *Server) { s.Logger = l } }
func WithWorkers(r *registry.Registry) Option      { return func(s *Server) { s.Workers = r } }
func WithEngine(e *workflow.Engine) Option         { return func(s *Server) { s.Engine = e } }
func WithAgents(a *agent.Runtime) Option           { return func(s *Server) { s.Agents = a } }
func WithTeams(t *team.Runtime) Option             { return func(s *Server) { s.Teams = t } }
func WithModels(m *config.ModelRegistry) Option    { return func(s *Server) { s.Models = m } }
func WithInstaller(i *pkginstall.Installer) Option { return func(s *Server) { s.Installer = i } }
func WithCatalog(c *pkginstall.CatalogClient) Option {
	return func(s *Server) { s.Catalog = c }
}

// Router builds the routed handler tree.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(requestLogger(s.Logger))

	r.Get("/health", s.handleHealth)

	r.Get("/mcp/servers", s.handleListWorkers)
	r.Post("/mcp/servers/{name}/tools", s.handleWorkerTools)

	r.Post("/workflows/execute", s.handleExecuteWorkflow)
	r.Get("/workflows", s.handleListWorkflows)
	r.Post("/workflows", s.handleSaveWorkflow)
	r.Delete("/workflows/{id}", s.handleDeleteWorkflow)

	r.Post("/agents/run", s.handleRunAgent)
	r.Post("/teams/run", s.handleRunTeam)
	r.Post("/chat", s.handleChat)

	r.Post("/registries/install/{kind}/{packageID}", s.handleInstall)
	r.Get("/registries/catalog", s.handleCatalog)

	r.Route("/models", func(r chi.Router) {
		r.Get("/", s.handleListModels)
		r.Post("/", s.handleCreateModel)
		r.Put("/{id}", s.handleUpdateModel)
		r.Delete("/{id}", s.handleDeleteModel)
		r.Post("/{id}/set-default", s.handleSetDefaultModel)
	})

	r.Get("/stream/{sessionID}", s.handleStream)

	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}
