package httpapi

import (
	"net/http"

	"github.com/atlasrun/orchestrator/errs"
)

type runAgentRequest struct {
	AgentID string `json:"agent_id"`
	Message string `json:"message"`
}

type runAgentResponse struct {
	FinalText             string `json:"final_text"`
	MaxIterationsExceeded bool   `json:"max_iterations_exceeded,omitempty"`
	ExecutionCancelled    bool   `json:"execution_cancelled,omitempty"`
}

// handleRunAgent implements POST /agents/run: the synchronous, one-shot
// variant of the streaming agent run.
func (s *Server) handleRunAgent(w http.ResponseWriter, r *http.Request) {
	var req runAgentRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	def, ok, err := s.agentDefs.Get(req.AgentID)
	if err != nil {
		writeError(w, err)
		return
	}
	if !ok {
		writeError(w, errs.New(errs.KindNotFound, "httpapi", "agent "+req.AgentID+" is not installed", nil))
		return
	}

	res, err := s.Agents.Run(r.Context(), newSyncContext(), def, req.Message, nil)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, runAgentResponse{
		FinalText:             res.FinalText,
		MaxIterationsExceeded: res.MaxIterationsExceeded,
		ExecutionCancelled:    res.ExecutionCancelled,
	})
}
