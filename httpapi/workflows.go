package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/atlasrun/orchestrator/errs"
	"github.com/atlasrun/orchestrator/session"
	"github.com/atlasrun/orchestrator/workflow"
)

// noopSink discards every event; the synchronous HTTP endpoints only need
// the final result, not the streaming lifecycle the WebSocket surface
// forwards.
var noopSink = session.SinkFunc(func(session.Event) {})

func newSyncContext() *session.ExecutionContext {
	return session.NewExecutionContext(uuid.NewString(), uuid.NewString(), noopSink)
}

// handleExecuteWorkflow implements POST /workflows/execute: synchronous,
// returns the final result map.
func (s *Server) handleExecuteWorkflow(w http.ResponseWriter, r *http.Request) {
	var wf workflow.Workflow
	if err := decodeJSON(r, &wf); err != nil {
		writeError(w, err)
		return
	}
	result, err := s.Engine.Execute(r.Context(), newSyncContext(), wf)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// handleListWorkflows implements GET /workflows: saved workflows under
// workflows/user/.
func (s *Server) handleListWorkflows(w http.ResponseWriter, r *http.Request) {
	workflows, err := s.workflows.List()
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, workflows)
}

// handleSaveWorkflow implements POST /workflows: persists wf under
// workflows/user/{name}.json, keyed by its own Name field.
func (s *Server) handleSaveWorkflow(w http.ResponseWriter, r *http.Request) {
	var wf workflow.Workflow
	if err := decodeJSON(r, &wf); err != nil {
		writeError(w, err)
		return
	}
	if wf.Name == "" {
		writeError(w, errs.New(errs.KindInvalidArgument, "httpapi", "workflow name is required", nil))
		return
	}
	if err := s.workflows.Save(wf.Name, wf); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, wf)
}

// handleDeleteWorkflow implements DELETE /workflows/{id}: removes a saved
// workflow from workflows/user/.
func (s *Server) handleDeleteWorkflow(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := s.workflows.Delete(id); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
