package httpapi

import (
	"net/http"

	"github.com/atlasrun/orchestrator/errs"
	"github.com/atlasrun/orchestrator/team"
)

type runTeamRequest struct {
	TeamID  string `json:"team_id"`
	Message string `json:"message"`
}

type runTeamResponse struct {
	Reply string `json:"reply"`
}

// handleRunTeam implements POST /teams/run: the synchronous, one-shot
// variant of the streaming team run.
func (s *Server) handleRunTeam(w http.ResponseWriter, r *http.Request) {
	var req runTeamRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	def, err := s.lookupTeam(req.TeamID)
	if err != nil {
		writeError(w, err)
		return
	}
	res, err := s.Teams.Run(r.Context(), newSyncContext(), def, req.Message)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, runTeamResponse{Reply: res.Reply})
}

func (s *Server) lookupTeam(teamID string) (team.Definition, error) {
	def, ok, err := s.teamDefs.Get(teamID)
	if err != nil {
		return team.Definition{}, err
	}
	if !ok {
		return team.Definition{}, errs.New(errs.KindNotFound, "httpapi", "team "+teamID+" is not installed", nil)
	}
	return def, nil
}
