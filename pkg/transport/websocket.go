package transport

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/anortham/coa-mcp-framework-sub002/pkg/errors"
	"github.com/anortham/coa-mcp-framework-sub002/pkg/logging"
)

const (
	wsWriteTimeout    = 10 * time.Second
	wsCloseGracePause = 100 * time.Millisecond
)

// wsConnection is one accepted WebSocket upgrade. All sends go through
// Send, which holds the per-connection write lock so concurrent senders
// never interleave frame bytes.
type wsConnection struct {
	id   string
	conn *websocket.Conn

	writeMu sync.Mutex
	closed  atomic.Bool
}

func newWSConnection(conn *websocket.Conn) *wsConnection {
	return &wsConnection{id: uuid.NewString(), conn: conn}
}

// Send writes one text frame under the connection's write lock.
func (c *wsConnection) Send(payload []byte) error {
	if c.closed.Load() {
		return errors.ConnectionLost(string(TypeWebSocket), c.id, nil)
	}
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	c.conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
	if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
		return errors.WebSocketTransportError("send", err).
			WithContext(&errors.Context{ConnectionID: c.id, Timestamp: time.Now()})
	}
	return nil
}

// Close performs the close handshake once: a close frame with the given
// code, a short grace pause, then the underlying socket close.
func (c *wsConnection) Close(code int, reason string) error {
	if !c.closed.CompareAndSwap(false, true) {
		return nil
	}

	c.writeMu.Lock()
	c.conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
	err := c.conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(code, reason))
	c.writeMu.Unlock()

	if err == nil {
		time.Sleep(wsCloseGracePause)
	}
	if closeErr := c.conn.Close(); closeErr != nil && err == nil {
		err = closeErr
	}
	return err
}

// connectionRegistry tracks live WebSocket connections. It is the
// authoritative source for broadcast and health reporting.
type connectionRegistry struct {
	mu    sync.RWMutex
	conns map[string]*wsConnection
}

func newConnectionRegistry() *connectionRegistry {
	return &connectionRegistry{conns: make(map[string]*wsConnection)}
}

func (r *connectionRegistry) Add(c *wsConnection) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.conns[c.id] = c
}

func (r *connectionRegistry) Remove(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.conns, id)
}

func (r *connectionRegistry) Get(id string) (*wsConnection, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.conns[id]
	return c, ok
}

func (r *connectionRegistry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.conns)
}

// Snapshot returns the current connections so callers can iterate
// without holding the registry lock across sends.
func (r *connectionRegistry) Snapshot() []*wsConnection {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*wsConnection, 0, len(r.conns))
	for _, c := range r.conns {
		out = append(out, c)
	}
	return out
}

// CloseAll closes every tracked connection best-effort and empties the
// registry. Errors are reported to the logger, never returned.
func (r *connectionRegistry) CloseAll(code int, reason string, logger logging.Logger) {
	r.mu.Lock()
	conns := make([]*wsConnection, 0, len(r.conns))
	for _, c := range r.conns {
		conns = append(conns, c)
	}
	r.conns = make(map[string]*wsConnection)
	r.mu.Unlock()

	for _, c := range conns {
		if err := c.Close(code, reason); err != nil {
			logger.Warn("closing websocket connection failed",
				logging.String("connectionId", c.id),
				logging.ErrorField(err))
		}
	}
}
