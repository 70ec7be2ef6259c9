package session

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/atlasrun/orchestrator/errs"
	"github.com/atlasrun/orchestrator/telemetry"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 45 * time.Second
	pingPeriod = (pongWait * 9) / 10
)

// Upgrader is shared across connections; CheckOrigin is permissive because
// this is a same-origin control-plane API fronted by the deployer's own
// reverse proxy, matching the teacher's control-plane socket.
var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin:     func(*http.Request) bool { return true },
}

// ControlMessage is a client-to-server message on the stream. Only
// cancel_execution is currently defined.
type ControlMessage struct {
	Type        string `json:"type"`
	ExecutionID string `json:"execution_id"`
}

// Runner executes one workflow/agent/team run against ec, returning the
// final result to serialize into the terminal "complete" event.
type Runner func(ctx context.Context, ec *ExecutionContext) (any, error)

// Broker owns one open streaming session: it creates a fresh
// ExecutionContext per run, relays engine events to the client as they
// arrive, and applies cancel_execution control messages.
type Broker struct {
	sessionID string
	conn      *websocket.Conn
	logger    telemetry.Logger

	writeMu sync.Mutex
}

// NewBroker wraps an upgraded websocket connection for one session.
func NewBroker(sessionID string, conn *websocket.Conn, logger telemetry.Logger) *Broker {
	if logger == nil {
		logger = telemetry.Noop().Logger
	}
	return &Broker{sessionID: sessionID, conn: conn, logger: logger}
}

// Upgrade performs the HTTP->websocket handshake and returns a Broker for
// the resulting connection.
func Upgrade(w http.ResponseWriter, r *http.Request, sessionID string, logger telemetry.Logger) (*Broker, error) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return nil, err
	}
	return NewBroker(sessionID, conn, logger), nil
}

// Emit implements Sink by writing one JSON frame to the client connection.
func (b *Broker) Emit(e Event) {
	data, err := json.Marshal(e)
	if err != nil {
		b.logger.Error(context.Background(), "session: marshal event failed", "error", err)
		return
	}
	b.writeMu.Lock()
	defer b.writeMu.Unlock()
	_ = b.conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := b.conn.WriteMessage(websocket.TextMessage, data); err != nil {
		b.logger.Error(context.Background(), "session: write event failed", "error", err)
	}
}

// Serve opens the stream, starts one run via runner, relays its events, and
// applies cancel_execution control messages read concurrently from the
// client. It blocks until the run terminates or the connection closes.
func (b *Broker) Serve(ctx context.Context, runner Runner) {
	defer func() { _ = b.conn.Close() }()

	executionID := uuid.NewString()
	ec := NewExecutionContext(b.sessionID, executionID, b)

	runCtx, cancelRun := context.WithCancel(ctx)
	defer cancelRun()

	go b.readControlMessages(ec, executionID)
	go b.pingLoop(runCtx)

	ec.Emit(ExecutionStarted{ExecutionID: executionID})

	result, err := runner(runCtx, ec)
	switch {
	case ec.Cancelled():
		ec.Emit(Cancelled{})
	case err != nil:
		kind := ""
		if e, ok := errs.Of(err); ok {
			kind = string(e.Kind())
		}
		ec.Emit(Error{Message: err.Error(), Kind: kind})
	default:
		raw, marshalErr := json.Marshal(result)
		if marshalErr != nil {
			ec.Emit(Error{Message: marshalErr.Error()})
			return
		}
		ec.Emit(Complete{Result: raw})
	}
}

// pingLoop keeps the connection's read deadline alive for as long as the
// client responds to pings, independent of how long the run itself takes.
func (b *Broker) pingLoop(ctx context.Context) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			b.writeMu.Lock()
			_ = b.conn.SetWriteDeadline(time.Now().Add(writeWait))
			err := b.conn.WriteMessage(websocket.PingMessage, nil)
			b.writeMu.Unlock()
			if err != nil {
				return
			}
		}
	}
}

// readControlMessages pumps client frames for the lifetime of the
// connection, applying cancel_execution to ec when its execution_id
// matches. It returns when the connection closes.
func (b *Broker) readControlMessages(ec *ExecutionContext, executionID string) {
	_ = b.conn.SetReadDeadline(time.Now().Add(pongWait))
	b.conn.SetPongHandler(func(string) error {
		return b.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := b.conn.ReadMessage()
		if err != nil {
			return
		}
		var msg ControlMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			continue
		}
		if msg.Type == "cancel_execution" && msg.ExecutionID == executionID {
			ec.Cancel()
		}
	}
}

