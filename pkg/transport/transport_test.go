package transport

import (
	"context"
	"fmt"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/anortham/coa-mcp-framework-sub002/pkg/logging"
)

func TestNewSelectsTransportType(t *testing.T) {
	opts := Options{Logger: logging.NopLogger{}}

	config := DefaultConfig()
	tr, err := New(config, opts)
	require.NoError(t, err)
	assert.IsType(t, &StdioTransport{}, tr)

	config.Type = TypeHTTP
	tr, err = New(config, opts)
	require.NoError(t, err)
	assert.IsType(t, &HTTPTransport{}, tr)

	config.Type = TypeWebSocket
	tr, err = New(config, opts)
	require.NoError(t, err)
	ht, ok := tr.(*HTTPTransport)
	require.True(t, ok)
	assert.True(t, ht.config.HTTP.EnableWebSocket,
		"websocket type forces the upgrade endpoint on")

	config.Type = Type("carrier-pigeon")
	_, err = New(config, opts)
	assert.Error(t, err)
}

func TestDefaultConfig(t *testing.T) {
	config := DefaultConfig()

	assert.Equal(t, TypeStdio, config.Type)
	assert.Equal(t, "localhost", config.HTTP.Host)
	assert.Positive(t, config.HTTP.RequestTimeout)
	assert.Positive(t, config.Performance.MaxMessageSize)
	assert.Positive(t, config.Performance.QueueCapacity)
}

func TestMiddlewareChainOrder(t *testing.T) {
	var order []string
	tag := func(name string) Middleware {
		return MiddlewareFunc(func(next Transport) Transport {
			return &tracingHook{next: next, before: func() { order = append(order, name) }}
		})
	}

	in, _ := io.Pipe()
	base := NewStdioTransportWithStreams(DefaultConfig(),
		Options{Logger: logging.NopLogger{}}, in, io.Discard)

	chained := Chain(base, tag("outer"), tag("inner"))
	chained.WriteMessage(context.Background(), NewMessage([]byte("x")))

	assert.Equal(t, []string{"outer", "inner"}, order)
}

// tracingHook records call order for middleware tests.
type tracingHook struct {
	next   Transport
	before func()
}

func (h *tracingHook) Start(ctx context.Context) error { return h.next.Start(ctx) }
func (h *tracingHook) Stop(ctx context.Context) error  { return h.next.Stop(ctx) }

func (h *tracingHook) ReadMessage(ctx context.Context) (*TransportMessage, error) {
	h.before()
	return h.next.ReadMessage(ctx)
}

func (h *tracingHook) WriteMessage(ctx context.Context, msg *TransportMessage) error {
	h.before()
	return h.next.WriteMessage(ctx, msg)
}

func (h *tracingHook) Disconnected() <-chan DisconnectEvent { return h.next.Disconnected() }

func TestLoggingMiddlewarePassesThrough(t *testing.T) {
	in, inWriter := io.Pipe()
	base := NewStdioTransportWithStreams(DefaultConfig(),
		Options{Logger: logging.NopLogger{}}, in, io.Discard)

	tr := Chain(base, LoggingMiddleware(logging.NopLogger{}))
	ctx := context.Background()
	require.NoError(t, tr.Start(ctx))
	defer tr.Stop(ctx)

	payload := `{"id":1}`
	go fmt.Fprintf(inWriter, "Content-Length: %d\r\n\r\n%s", len(payload), payload)

	readCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	msg, err := tr.ReadMessage(readCtx)
	require.NoError(t, err)
	assert.Equal(t, payload, string(msg.Content))

	require.NoError(t, tr.WriteMessage(ctx, NewMessage([]byte(`{"ok":true}`))))
}
