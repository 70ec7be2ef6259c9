package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/atlasrun/orchestrator/config"
)

// handleListModels implements GET /models.
func (s *Server) handleListModels(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.Models.List())
}

// handleCreateModel implements POST /models.
func (s *Server) handleCreateModel(w http.ResponseWriter, r *http.Request) {
	var entry config.ModelEntry
	if err := decodeJSON(r, &entry); err != nil {
		writeError(w, err)
		return
	}
	if err := s.Models.Create(entry); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, entry)
}

// handleUpdateModel implements PUT /models/{id}.
func (s *Server) handleUpdateModel(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	var entry config.ModelEntry
	if err := decodeJSON(r, &entry); err != nil {
		writeError(w, err)
		return
	}
	if err := s.Models.Update(id, entry); err != nil {
		writeError(w, err)
		return
	}
	entry.ID = id
	writeJSON(w, http.StatusOK, entry)
}

// handleDeleteModel implements DELETE /models/{id}. Deleting the default
// model fails with 400 per §6 (ModelRegistry.Delete already classifies this
// as KindInvalidArgument).
func (s *Server) handleDeleteModel(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := s.Models.Delete(id); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleSetDefaultModel implements POST /models/{id}/set-default.
func (s *Server) handleSetDefaultModel(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := s.Models.SetDefault(id); err != nil {
		writeError(w, err)
		return
	}
	entry, _ := s.Models.Get(id)
	writeJSON(w, http.StatusOK, entry)
}
