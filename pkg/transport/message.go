package transport

import (
	"context"
	"io"
	"sync"
	"time"

	"github.com/google/uuid"
)

// errQueueClosed signals a drained, closed queue. Callers of ReadMessage
// see it as io.EOF, the conventional end-of-stream sentinel.
var errQueueClosed = io.EOF

// Header keys attached to TransportMessages by the transports.
const (
	// HeaderConnectionID identifies the WebSocket connection a message
	// arrived on, and routes outbound messages back to that connection.
	HeaderConnectionID = "connection-id"

	// HeaderRemoteAddr records the peer address for diagnostics.
	HeaderRemoteAddr = "remote-addr"
)

// TransportMessage is the unit every transport receives and sends: one
// complete protocol payload plus transport-level routing metadata. The
// payload is opaque to this layer; only correlation and connection ids
// are interpreted.
type TransportMessage struct {
	// ID uniquely identifies the message within the process.
	ID string `json:"id"`

	// Content is the raw protocol payload, typically one JSON-RPC message.
	Content []byte `json:"content"`

	// Headers carries transport metadata such as the connection id.
	Headers map[string]string `json:"headers,omitempty"`

	// Timestamp records when the transport created the message.
	Timestamp time.Time `json:"timestamp"`

	// CorrelationID links a response back to the pending request that
	// produced it. Empty for unsolicited messages.
	CorrelationID string `json:"correlationId,omitempty"`
}

// NewMessage wraps a payload in a TransportMessage with a fresh id.
func NewMessage(content []byte) *TransportMessage {
	return &TransportMessage{
		ID:        uuid.NewString(),
		Content:   content,
		Headers:   make(map[string]string),
		Timestamp: time.Now(),
	}
}

// SetHeader sets a header value, allocating the map on first use.
func (m *TransportMessage) SetHeader(key, value string) {
	if m.Headers == nil {
		m.Headers = make(map[string]string)
	}
	m.Headers[key] = value
}

// Header returns a header value, tolerating a nil map.
func (m *TransportMessage) Header(key string) string {
	if m.Headers == nil {
		return ""
	}
	return m.Headers[key]
}

// messageQueue funnels every transport's receive side into one channel
// consumed by ReadMessage. Close is idempotent; Dequeue keeps draining
// buffered messages after Close and only then reports closed.
type messageQueue struct {
	ch        chan *TransportMessage
	done      chan struct{}
	closeOnce sync.Once
}

func newMessageQueue(capacity int) *messageQueue {
	if capacity <= 0 {
		capacity = 1
	}
	return &messageQueue{
		ch:   make(chan *TransportMessage, capacity),
		done: make(chan struct{}),
	}
}

// Enqueue adds a message, reporting false if the queue is closed or full.
// It never blocks: producers decide what a refused message means (the
// stdio loop drops and logs, the HTTP handler answers 503).
func (q *messageQueue) Enqueue(msg *TransportMessage) bool {
	select {
	case <-q.done:
		return false
	default:
	}
	select {
	case q.ch <- msg:
		return true
	default:
		return false
	}
}

// Dequeue blocks until a message is available, the context is cancelled,
// or the queue is closed and drained.
func (q *messageQueue) Dequeue(ctx context.Context) (*TransportMessage, error) {
	// Buffered messages win over closure so nothing already received
	// is dropped during shutdown.
	select {
	case msg := <-q.ch:
		return msg, nil
	default:
	}
	select {
	case msg := <-q.ch:
		return msg, nil
	case <-q.done:
		select {
		case msg := <-q.ch:
			return msg, nil
		default:
			return nil, errQueueClosed
		}
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Close stops the queue. Messages already buffered remain readable.
func (q *messageQueue) Close() {
	q.closeOnce.Do(func() { close(q.done) })
}

// Closed reports whether Close has been called.
func (q *messageQueue) Closed() bool {
	select {
	case <-q.done:
		return true
	default:
		return false
	}
}
