// Package session owns the execution lifecycle that every engine
// (WorkflowEngine, AgentRuntime, TeamRuntime) borrows for the duration of
// one run: the ExecutionContext, the JSON event envelope clients see over
// the streaming transport, and the broker that multiplexes one run per
// open connection.
package session

import (
	"sync"
	"sync/atomic"
	"time"
)

// Sink receives every event an engine emits during one run. SessionBroker
// implements Sink for the streaming transport; tests can supply a recording
// fake.
type Sink interface {
	Emit(Event)
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(Event)

// Emit implements Sink.
func (f SinkFunc) Emit(e Event) { f(e) }

// shared holds the state that must be visible across an ExecutionContext and
// every child built from it via WithSink — cancellation and recorded
// results are properties of the run, not of any one engine's view of it.
type shared struct {
	cancelled atomic.Bool

	mu      sync.RWMutex
	results map[string]any
}

// ExecutionContext is created by SessionBroker at the start of one
// workflow/agent/team run and destroyed at the end. Engines borrow it; they
// never construct one directly.
type ExecutionContext struct {
	SessionID   string
	ExecutionID string
	StartTime   time.Time

	sink  Sink
	state *shared
}

// NewExecutionContext builds a fresh context for one run.
func NewExecutionContext(sessionID, executionID string, sink Sink) *ExecutionContext {
	return &ExecutionContext{
		SessionID:   sessionID,
		ExecutionID: executionID,
		StartTime:   time.Now(),
		sink:        sink,
		state:       &shared{results: make(map[string]any)},
	}
}

// WithSink returns a view of the same run (sharing cancellation state and
// recorded results) that emits through a different sink. TeamRuntime uses
// this to relabel a nested AgentRuntime run's events without losing the
// parent's cancellation signal.
func (ec *ExecutionContext) WithSink(sink Sink) *ExecutionContext {
	return &ExecutionContext{
		SessionID:   ec.SessionID,
		ExecutionID: ec.ExecutionID,
		StartTime:   ec.StartTime,
		sink:        sink,
		state:       ec.state,
	}
}

// Emit forwards an event to the underlying sink. Safe for concurrent use
// (broadcast team members emit from multiple goroutines).
func (ec *ExecutionContext) Emit(e Event) {
	if ec.sink != nil {
		ec.sink.Emit(e)
	}
}

// Cancel sets the cancelled flag. Idempotent.
func (ec *ExecutionContext) Cancel() { ec.state.cancelled.Store(true) }

// Cancelled reports whether a cancel_execution control message has been
// received. Engines check this at every suspension point.
func (ec *ExecutionContext) Cancelled() bool { return ec.state.cancelled.Load() }

// RecordResult stores a completed node's (or agent turn's) result, keyed by
// node id, for later ParameterResolver lookups.
func (ec *ExecutionContext) RecordResult(nodeID string, result any) {
	ec.state.mu.Lock()
	defer ec.state.mu.Unlock()
	ec.state.results[nodeID] = result
}

// Result looks up a previously recorded result. Satisfies
// paramresolver.ResultLookup.
func (ec *ExecutionContext) Result(nodeID string) (any, bool) {
	ec.state.mu.RLock()
	defer ec.state.mu.RUnlock()
	v, ok := ec.state.results[nodeID]
	return v, ok
}

// Results returns a snapshot copy of every recorded result, for the final
// workflow_result event.
func (ec *ExecutionContext) Results() map[string]any {
	ec.state.mu.RLock()
	defer ec.state.mu.RUnlock()
	out := make(map[string]any, len(ec.state.results))
	for k, v := range ec.state.results {
		out[k] = v
	}
	return out
}
