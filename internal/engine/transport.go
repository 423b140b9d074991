package engine

import (
	"context"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
)

// TransportHandler receives the lifecycle of a transport connection. Closed
// carries the close code reported by the peer; DeliberateClose is the code
// the engine uses for clean shutdowns and is never retried.
type TransportHandler interface {
	HandleMessage(data []byte)
	HandleClosed(code int, reason string)
	HandleError(err error)
}

// Transport owns exactly one physical connection at a time. Implementations
// must be safe for concurrent Send calls.
type Transport interface {
	Open(ctx context.Context, url string) error
	Close(code int, reason string) error
	Send(v any) error
	SetHandler(h TransportHandler)
}

// DeliberateClose is the websocket normal-closure code. Any other close code
// is treated as unexpected and triggers reconnection.
const DeliberateClose = websocket.CloseNormalClosure

// wsTransport is the production Transport over gorilla/websocket. A single
// reader goroutine surfaces inbound frames and closure; writes are
// serialized with a mutex.
type wsTransport struct {
	log *logrus.Logger

	mu      sync.Mutex
	conn    *websocket.Conn
	closing bool
	handler TransportHandler
}

// NewWebsocketTransport returns the production websocket transport.
func NewWebsocketTransport(log *logrus.Logger) Transport {
	return &wsTransport{log: log}
}

func (t *wsTransport) SetHandler(h TransportHandler) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.handler = h
}

func (t *wsTransport) Open(ctx context.Context, url string) error {
	t.mu.Lock()
	if t.conn != nil {
		t.mu.Unlock()
		t.log.WithField("url", url).Warn("transport already open, ignoring open")
		return nil
	}
	t.mu.Unlock()

	conn, resp, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
	if err != nil {
		return err
	}

	t.mu.Lock()
	t.conn = conn
	t.closing = false
	t.mu.Unlock()

	go t.readLoop(conn)
	return nil
}

// readLoop pumps inbound frames until the connection dies, then reports the
// closure once. Runs per connection; a reconnect starts a fresh loop.
func (t *wsTransport) readLoop(conn *websocket.Conn) {
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			t.mu.Lock()
			deliberate := t.closing
			if t.conn == conn {
				t.conn = nil
			}
			handler := t.handler
			t.mu.Unlock()

			if handler == nil {
				return
			}
			if deliberate {
				handler.HandleClosed(DeliberateClose, "client closed")
				return
			}
			code := websocket.CloseAbnormalClosure
			reason := err.Error()
			if closeErr, ok := err.(*websocket.CloseError); ok {
				code = closeErr.Code
				reason = closeErr.Text
			} else {
				handler.HandleError(err)
			}
			handler.HandleClosed(code, reason)
			return
		}

		t.mu.Lock()
		handler := t.handler
		t.mu.Unlock()
		if handler != nil {
			handler.HandleMessage(data)
		}
	}
}

// Send writes v as a JSON frame. Sending while closed is not an error into
// the caller: higher layers check connection state first, so a closed
// transport logs a warning and drops the frame.
func (t *wsTransport) Send(v any) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.conn == nil {
		t.log.Warn("transport send while closed, dropping message")
		return nil
	}
	return t.conn.WriteJSON(v)
}

// Close writes the close frame and drops the connection. The frame write
// shares t.mu with Send: the connection allows only one writer at a time.
func (t *wsTransport) Close(code int, reason string) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	conn := t.conn
	if conn == nil {
		return nil
	}
	t.closing = code == DeliberateClose
	t.conn = nil

	msg := websocket.FormatCloseMessage(code, reason)
	if err := conn.WriteMessage(websocket.CloseMessage, msg); err != nil {
		t.log.WithError(err).Debug("failed to write close frame")
	}
	return conn.Close()
}
