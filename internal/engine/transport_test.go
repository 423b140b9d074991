package engine

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testUpgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// startSinkServer accepts websocket connections and discards inbound frames.
func startSinkServer(t *testing.T) *httptest.Server {
	t.Helper()

	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := testUpgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
	t.Cleanup(ts.Close)
	return ts
}

type closeRecorder struct {
	mu     sync.Mutex
	closed bool
	code   int
}

func (r *closeRecorder) HandleMessage([]byte) {}
func (r *closeRecorder) HandleError(error)    {}

func (r *closeRecorder) HandleClosed(code int, reason string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.closed = true
	r.code = code
}

func (r *closeRecorder) snapshot() (bool, int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.closed, r.code
}

func wsURL(ts *httptest.Server) string {
	return "ws" + strings.TrimPrefix(ts.URL, "http")
}

// TestWebsocketTransport_ConcurrentSendAndClose hammers Send from one
// goroutine while Close runs on another. Both write to the same connection,
// which permits only one concurrent writer, so every write must go through
// the shared mutex.
func TestWebsocketTransport_ConcurrentSendAndClose(t *testing.T) {
	ts := startSinkServer(t)
	recorder := &closeRecorder{}

	tr := NewWebsocketTransport(quietLogger())
	tr.SetHandler(recorder)
	require.NoError(t, tr.Open(context.Background(), wsURL(ts)))

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < 500; i++ {
			tr.Send(map[string]any{"seq": i})
		}
	}()

	time.Sleep(time.Millisecond)
	require.NoError(t, tr.Close(DeliberateClose, "client disconnect"))
	wg.Wait()

	// After Close the transport drops frames instead of failing the caller.
	assert.NoError(t, tr.Send(map[string]any{"late": true}))

	require.Eventually(t, func() bool {
		closed, _ := recorder.snapshot()
		return closed
	}, time.Second, time.Millisecond)
	_, code := recorder.snapshot()
	assert.Equal(t, DeliberateClose, code)
}

// TestWebsocketTransport_ReopenAfterClose checks that a closed transport can
// dial again, which the reconnection controller relies on.
func TestWebsocketTransport_ReopenAfterClose(t *testing.T) {
	ts := startSinkServer(t)

	tr := NewWebsocketTransport(quietLogger())
	tr.SetHandler(&closeRecorder{})
	require.NoError(t, tr.Open(context.Background(), wsURL(ts)))
	require.NoError(t, tr.Close(DeliberateClose, "client disconnect"))

	require.NoError(t, tr.Open(context.Background(), wsURL(ts)))
	assert.NoError(t, tr.Send(map[string]any{"after": "reopen"}))
	require.NoError(t, tr.Close(DeliberateClose, "client disconnect"))
}
