package transport

import (
	"context"
	"io"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/anortham/coa-mcp-framework-sub002/pkg/errors"
	"github.com/anortham/coa-mcp-framework-sub002/pkg/logging"
	"github.com/anortham/coa-mcp-framework-sub002/pkg/observability"
)

// StdioTransport speaks the protocol over a byte stream pair, normally
// the process's standard streams. The streams are explicit constructor
// parameters so tests can substitute in-memory pipes.
type StdioTransport struct {
	reader *FrameReader
	writer *FrameWriter
	queue  *messageQueue

	disconnect     chan DisconnectEvent
	disconnectOnce sync.Once

	running  atomic.Bool
	stopOnce sync.Once
	stopped  chan struct{}

	logger  logging.Logger
	metrics *observability.TransportMetrics
}

// NewStdioTransport creates a stdio transport bound to os.Stdin and
// os.Stdout.
func NewStdioTransport(config Config, opts Options) *StdioTransport {
	return NewStdioTransportWithStreams(config, opts, os.Stdin, os.Stdout)
}

// NewStdioTransportWithStreams creates a stdio transport over explicit
// streams.
func NewStdioTransportWithStreams(config Config, opts Options, in io.Reader, out io.Writer) *StdioTransport {
	opts = opts.withDefaults()
	return &StdioTransport{
		reader:     NewFrameReader(in, config.Performance.MaxMessageSize),
		writer:     NewFrameWriter(out),
		queue:      newMessageQueue(config.Performance.QueueCapacity),
		disconnect: make(chan DisconnectEvent, 4),
		stopped:    make(chan struct{}),
		logger:     opts.Logger.WithFields(logging.String("transport", string(TypeStdio))),
		metrics:    opts.Metrics,
	}
}

// Start launches the receive loop. It returns immediately.
func (t *StdioTransport) Start(ctx context.Context) error {
	if !t.running.CompareAndSwap(false, true) {
		return errors.StdioTransportError("start", nil).WithDetail("transport already started")
	}
	t.logger.Info("stdio transport started")
	go t.receiveLoop(ctx)
	return nil
}

// receiveLoop reads frames until end-of-stream, a stream fault, or
// cancellation, enqueuing each payload as a TransportMessage.
func (t *StdioTransport) receiveLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			t.signalDisconnect(true, "context cancelled")
			return
		case <-t.stopped:
			t.signalDisconnect(true, "transport stopped")
			return
		default:
		}

		payload, err := t.reader.ReadFrame()
		if err != nil {
			if err == io.EOF {
				t.logger.Info("input stream closed")
				t.signalDisconnect(true, "end of stream")
			} else {
				t.logger.Error("stream read failed", logging.ErrorField(err))
				t.signalDisconnect(false, err.Error())
			}
			return
		}
		if len(payload) == 0 {
			continue
		}

		msg := NewMessage(payload)
		if !t.queue.Enqueue(msg) {
			t.metrics.RecordMessageDropped(string(TypeStdio))
			t.logger.Warn("dropping message, queue unavailable",
				logging.String("messageId", msg.ID))
			continue
		}
		t.metrics.RecordMessageReceived(string(TypeStdio))
	}
}

// signalDisconnect closes the queue and emits the disconnect event once.
func (t *StdioTransport) signalDisconnect(clean bool, reason string) {
	t.disconnectOnce.Do(func() {
		t.queue.Close()
		t.metrics.RecordDisconnect(string(TypeStdio), clean)
		dropDisconnect(t.disconnect, DisconnectEvent{
			Clean:     clean,
			Reason:    reason,
			Timestamp: time.Now(),
		})
	})
}

// ReadMessage blocks for the next inbound message. After the stream ends
// and buffered messages drain, it returns io.EOF.
func (t *StdioTransport) ReadMessage(ctx context.Context) (*TransportMessage, error) {
	return t.queue.Dequeue(ctx)
}

// WriteMessage emits the message content as one framed payload on the
// output stream.
func (t *StdioTransport) WriteMessage(ctx context.Context, msg *TransportMessage) error {
	if msg == nil || len(msg.Content) == 0 {
		return errors.StdioTransportError("write", nil).WithDetail("empty message")
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := t.writer.WriteFrame(msg.Content); err != nil {
		t.metrics.RecordMessageDropped(string(TypeStdio))
		return err
	}
	t.metrics.RecordMessageSent(string(TypeStdio))
	return nil
}

// Stop ends the receive loop and closes the queue. Buffered messages
// remain readable until drained.
func (t *StdioTransport) Stop(ctx context.Context) error {
	t.stopOnce.Do(func() {
		close(t.stopped)
		t.running.Store(false)
		t.signalDisconnect(true, "transport stopped")
		t.logger.Info("stdio transport stopped")
	})
	return nil
}

// Disconnected delivers the transport's disconnect notification.
func (t *StdioTransport) Disconnected() <-chan DisconnectEvent {
	return t.disconnect
}
