package httpapi

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/atlasrun/orchestrator/errs"
	"github.com/atlasrun/orchestrator/session"
	"github.com/atlasrun/orchestrator/workflow"
)

// handleStream implements the streaming session surface of §6: opening the
// connection starts exactly one run, chosen by the kind query parameter
// ("workflow", "agent" or "team") and its matching payload. The spec leaves
// the handshake payload shape unspecified; query parameters keep the
// upgrade a plain GET, matching gorilla/websocket's handshake contract.
func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")
	runner, err := s.buildRunner(r)
	if err != nil {
		writeError(w, err)
		return
	}

	broker, err := session.Upgrade(w, r, sessionID, s.Logger)
	if err != nil {
		s.Logger.Warn(r.Context(), "websocket upgrade failed", "session_id", sessionID, "error", err.Error())
		return
	}
	broker.Serve(r.Context(), runner)
}

func (s *Server) buildRunner(r *http.Request) (session.Runner, error) {
	q := r.URL.Query()
	switch q.Get("kind") {
	case "workflow":
		var wf workflow.Workflow
		if err := json.Unmarshal([]byte(q.Get("workflow")), &wf); err != nil {
			return nil, errs.New(errs.KindInvalidArgument, "httpapi", "invalid workflow payload: "+err.Error(), err)
		}
		return func(ctx context.Context, ec *session.ExecutionContext) (any, error) {
			return s.Engine.Execute(ctx, ec, wf)
		}, nil

	case "agent":
		agentID, message := q.Get("agent_id"), q.Get("message")
		def, ok, err := s.agentDefs.Get(agentID)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, errs.New(errs.KindNotFound, "httpapi", "agent "+agentID+" is not installed", nil)
		}
		return func(ctx context.Context, ec *session.ExecutionContext) (any, error) {
			return s.Agents.Run(ctx, ec, def, message, nil)
		}, nil

	case "team":
		teamID, message := q.Get("team_id"), q.Get("message")
		def, err := s.lookupTeam(teamID)
		if err != nil {
			return nil, err
		}
		return func(ctx context.Context, ec *session.ExecutionContext) (any, error) {
			return s.Teams.Run(ctx, ec, def, message)
		}, nil

	default:
		return nil, errs.New(errs.KindInvalidArgument, "httpapi", "stream requires a kind query parameter (workflow|agent|team)", nil)
	}
}
