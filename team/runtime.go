package team

import (
	"context"
	"fmt"
	"hash/fnv"
	"strings"
	"sync"

	"github.com/atlasrun/orchestrator/agent"
	"github.com/atlasrun/orchestrator/errs"
	"github.com/atlasrun/orchestrator/model"
	"github.com/atlasrun/orchestrator/session"
)

// AgentRunner is the subset of agent.Runtime the team depends on.
type AgentRunner interface {
	Run(ctx context.Context, ec *session.ExecutionContext, def agent.Definition, userMessage string, prior []*model.Message) (*agent.Result, error)
}

// AgentLookup resolves an agent_id to its Definition.
type AgentLookup func(agentID string) (agent.Definition, bool)

// colorCount bounds the color index so downstream palettes stay small and
// predictable regardless of how many distinct agent ids exist.
const colorCount = 16

// Runtime drives a TeamDefinition's routing policy over its members.
type Runtime struct {
	agents AgentRunner
	lookup AgentLookup
}

// New builds a Runtime.
func New(agents AgentRunner, lookup AgentLookup) *Runtime {
	return &Runtime{agents: agents, lookup: lookup}
}

// Run dispatches message according to def.Policy and returns the combined
// reply.
func (r *Runtime) Run(ctx context.Context, ec *session.ExecutionContext, def Definition, message string) (*Result, error) {
	return r.RunWithHistory(ctx, ec, def, message, nil)
}

// RunWithHistory is Run with a prior conversation transcript seeded in —
// used by the chat surface, where the caller keeps the last ten turns of
// history and expects the team to continue from them.
func (r *Runtime) RunWithHistory(ctx context.Context, ec *session.ExecutionContext, def Definition, message string, history []*model.Message) (*Result, error) {
	switch def.Policy {
	case PolicySingle:
		return r.runSingle(ctx, ec, def, message, history)
	case PolicySequential:
		return r.runSequential(ctx, ec, def, message, history)
	case PolicyBroadcast:
		return r.runBroadcast(ctx, ec, def, message, history)
	default:
		return nil, errs.New(errs.KindInvalidArgument, "team", fmt.Sprintf("unknown routing policy %q", def.Policy), nil)
	}
}

func (r *Runtime) runSingle(ctx context.Context, ec *session.ExecutionContext, def Definition, message string, history []*model.Message) (*Result, error) {
	for _, m := range def.Members {
		agentDef, ok := r.lookup(m.AgentID)
		if !ok {
			continue
		}
		res, err := r.agents.Run(ctx, r.annotated(ec, m.AgentID), agentDef, message, history)
		if err != nil {
			return nil, err
		}
		return &Result{Reply: res.FinalText}, nil
	}
	return nil, errs.New(errs.KindInvalidArgument, "team", "no matching member for single routing policy", nil)
}

func (r *Runtime) runSequential(ctx context.Context, ec *session.ExecutionContext, def Definition, message string, history []*model.Message) (*Result, error) {
	var sections []string
	transcript := append([]*model.Message{}, history...)

	for _, m := range def.Members {
		agentDef, ok := r.lookup(m.AgentID)
		if !ok {
			continue
		}
		res, err := r.agents.Run(ctx, r.annotated(ec, m.AgentID), agentDef, message, transcript)
		if err != nil {
			return nil, err
		}
		sections = append(sections, section(m, res.FinalText))
		transcript = res.Transcript
	}
	return &Result{Reply: strings.Join(sections, "\n\n")}, nil
}

func (r *Runtime) runBroadcast(ctx context.Context, ec *session.ExecutionContext, def Definition, message string, history []*model.Message) (*Result, error) {
	var wg sync.WaitGroup
	outcomes := make([]string, len(def.Members))

	for i, m := range def.Members {
		agentDef, ok := r.lookup(m.AgentID)
		if !ok {
			outcomes[i] = section(m, fmt.Sprintf("error: agent %q is not registered", m.AgentID))
			continue
		}
		wg.Add(1)
		go func(i int, m Member, agentDef agent.Definition) {
			defer wg.Done()
			res, err := r.agents.Run(ctx, r.annotated(ec, m.AgentID), agentDef, message, history)
			if err != nil {
				outcomes[i] = section(m, fmt.Sprintf("error: %s", err.Error()))
				return
			}
			outcomes[i] = section(m, res.FinalText)
		}(i, m, agentDef)
	}
	wg.Wait()

	sections := make([]string, 0, len(outcomes))
	for _, text := range outcomes {
		if text != "" {
			sections = append(sections, text)
		}
	}
	return &Result{Reply: strings.Join(sections, "\n\n")}, nil
}

func section(m Member, text string) string {
	return fmt.Sprintf("[%s] %s", m.Role, text)
}

// annotated wraps ec so every event the nested agent run emits is relabeled
// with agentID and its stable color index before reaching the real sink.
func (r *Runtime) annotated(ec *session.ExecutionContext, agentID string) *session.ExecutionContext {
	color := colorIndex(agentID)
	wrapped := session.SinkFunc(func(e session.Event) {
		ec.Emit(session.Annotated{Inner: e, AgentID: agentID, Color: color})
	})
	return ec.WithSink(wrapped)
}

// colorIndex derives a stable, non-cryptographic color bucket from the
// agent id so concurrent team members can be color-coded in a UI without
// any coordination between them.
func colorIndex(agentID string) int {
	h := fnv.New32a()
	_, _ = h.Write([]byte(agentID))
	return int(h.Sum32() % colorCount)
}
