package httpapi

import (
	"net/http"

	"github.com/atlasrun/orchestrator/model"
)

// chatTurn is one entry of the client-supplied conversation history.
type chatTurn struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	TeamID  string     `json:"team_id"`
	Message string     `json:"message"`
	History []chatTurn `json:"history"`
}

type chatResponse struct {
	Reply string `json:"reply"`
}

// maxChatHistory is the number of trailing history turns forwarded to the
// LLM; older turns are dropped rather than summarized.
const maxChatHistory = 10

// handleChat implements POST /chat: only the last ten history entries are
// forwarded.
func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	def, err := s.lookupTeam(req.TeamID)
	if err != nil {
		writeError(w, err)
		return
	}

	res, err := s.Teams.RunWithHistory(r.Context(), newSyncContext(), def, req.Message, truncateHistory(req.History))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, chatResponse{Reply: res.Reply})
}

func truncateHistory(turns []chatTurn) []*model.Message {
	if len(turns) > maxChatHistory {
		turns = turns[len(turns)-maxChatHistory:]
	}
	out := make([]*model.Message, 0, len(turns))
	for _, t := range turns {
		out = append(out, &model.Message{
			Role:  model.ConversationRole(t.Role),
			Parts: []model.Part{model.TextPart{Text: t.Content}},
		})
	}
	return out
}
