package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/atlasrun/orchestrator/errs"
)

type workerView struct {
	Name        string `json:"name"`
	Endpoint    string `json:"endpoint"`
	Description string `json:"description"`
}

// handleListWorkers implements GET /mcp/servers.
func (s *Server) handleListWorkers(w http.ResponseWriter, r *http.Request) {
	workers := s.Workers.List()
	out := make([]workerView, 0, len(workers))
	for _, wk := range workers {
		out = append(out, workerView{Name: wk.Name, Endpoint: wk.Endpoint, Description: wk.Description})
	}
	writeJSON(w, http.StatusOK, out)
}

// handleWorkerTools implements POST /mcp/servers/{name}/tools, returning the
// cached tool schemas for a registered worker.
func (s *Server) handleWorkerTools(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	wk, ok := s.Workers.Get(name)
	if !ok {
		writeError(w, errs.New(errs.KindNotFound, "httpapi", "worker "+name+" is not registered", nil))
		return
	}
	writeJSON(w, http.StatusOK, wk.Tools)
}
