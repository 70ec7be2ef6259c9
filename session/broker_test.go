package session_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"

	"github.com/atlasrun/orchestrator/session"
)

func startServer(t *testing.T, runner session.Runner) (*httptest.Server, string) {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/stream", func(w http.ResponseWriter, r *http.Request) {
		broker, err := session.Upgrade(w, r, "sess-1", nil)
		require.NoError(t, err)
		broker.Serve(context.Background(), runner)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv, "ws" + strings.TrimPrefix(srv.URL, "http") + "/stream"
}

func dial(t *testing.T, url string) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func readEvent(t *testing.T, conn *websocket.Conn) map[string]any {
	t.Helper()
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)
	var m map[string]any
	require.NoError(t, json.Unmarshal(data, &m))
	return m
}

func TestServeEmitsStartedThenComplete(t *testing.T) {
	runner := func(_ context.Context, ec *session.ExecutionContext) (any, error) {
		return map[string]string{"status": "ok"}, nil
	}
	_, url := startServer(t, runner)
	conn := dial(t, url)

	started := readEvent(t, conn)
	require.Equal(t, "execution_started", started["type"])

	complete := readEvent(t, conn)
	require.Equal(t, "complete", complete["type"])
}

func TestServeCancelExecutionStopsRun(t *testing.T) {
	started := make(chan string, 1)
	runner := func(ctx context.Context, ec *session.ExecutionContext) (any, error) {
		started <- ec.ExecutionID
		for i := 0; i < 200; i++ {
			if ec.Cancelled() {
				return nil, nil
			}
			time.Sleep(5 * time.Millisecond)
		}
		return "ran to completion", nil
	}
	_, url := startServer(t, runner)
	conn := dial(t, url)

	startEvent := readEvent(t, conn)
	execID, _ := startEvent["execution_id"].(string)
	require.NotEmpty(t, execID)

	cancelMsg, err := json.Marshal(session.ControlMessage{Type: "cancel_execution", ExecutionID: execID})
	require.NoError(t, err)
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, cancelMsg))

	terminal := readEvent(t, conn)
	require.Equal(t, "cancelled", terminal["type"])
}
