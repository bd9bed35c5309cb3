// Package transport provides the wire substrates a protocol engine can
// speak over: standard streams with Content-Length framing, HTTP
// request/response bridged onto an asynchronous queue via correlation
// ids, and persistent WebSocket connections. Every substrate satisfies
// the same narrow Transport contract, so the engine consuming messages
// never knows which wire they arrived on.
package transport

import (
	"context"
	"time"

	"github.com/anortham/coa-mcp-framework-sub002/pkg/auth"
	"github.com/anortham/coa-mcp-framework-sub002/pkg/certs"
	"github.com/anortham/coa-mcp-framework-sub002/pkg/errors"
	"github.com/anortham/coa-mcp-framework-sub002/pkg/logging"
	"github.com/anortham/coa-mcp-framework-sub002/pkg/observability"
)

// Type selects a concrete transport implementation.
type Type string

const (
	// TypeStdio reads framed messages from an input stream and writes
	// framed replies to an output stream.
	TypeStdio Type = "stdio"

	// TypeHTTP serves the protocol over HTTP with optional WebSocket
	// upgrade at the RPC path.
	TypeHTTP Type = "http"

	// TypeWebSocket is the HTTP transport with the upgrade endpoint
	// always enabled.
	TypeWebSocket Type = "websocket"
)

// DisconnectEvent reports that a transport's underlying channel ended.
type DisconnectEvent struct {
	// Clean is true for orderly shutdown, false for stream faults.
	Clean bool

	// Reason describes what ended the channel.
	Reason string

	// ConnectionID identifies the affected connection for multi-
	// connection transports; empty for stdio and whole-transport events.
	ConnectionID string

	// Timestamp records when the disconnect was observed.
	Timestamp time.Time
}

// Transport is the uniform contract every wire substrate satisfies.
// Start is non-blocking: it launches the receive machinery and returns.
// ReadMessage blocks until a message arrives from any connection,
// returning io.EOF once the transport has disconnected and drained.
type Transport interface {
	// Start begins accepting and receiving. It must be called once.
	Start(ctx context.Context) error

	// Stop shuts the transport down, closing connections and failing
	// pending requests. It is idempotent.
	Stop(ctx context.Context) error

	// ReadMessage blocks until the next inbound message is available.
	ReadMessage(ctx context.Context) (*TransportMessage, error)

	// WriteMessage delivers an outbound message, routed by correlation
	// id or connection id depending on the substrate.
	WriteMessage(ctx context.Context, msg *TransportMessage) error

	// Disconnected delivers disconnect notifications. The channel is
	// buffered; events are dropped rather than blocking the transport.
	Disconnected() <-chan DisconnectEvent
}

// CORSConfig controls cross-origin handling on the HTTP transport.
type CORSConfig struct {
	Enabled        bool     `json:"enabled"`
	AllowedOrigins []string `json:"allowedOrigins,omitempty"`
	AllowedMethods []string `json:"allowedMethods,omitempty"`
	AllowedHeaders []string `json:"allowedHeaders,omitempty"`
}

// HTTPConfig configures the HTTP/WebSocket transport.
type HTTPConfig struct {
	// Host and Port form the listen address. Port 0 asks the OS for a
	// free port, readable afterwards via Addr.
	Host string `json:"host"`
	Port int    `json:"port"`

	// TLS enables HTTPS via the certificate provisioner.
	TLS bool `json:"tls"`

	// EnableWebSocket exposes the upgrade endpoint.
	EnableWebSocket bool `json:"enableWebSocket"`

	// RequestTimeout bounds how long an RPC request waits for its
	// correlated reply.
	RequestTimeout time.Duration `json:"requestTimeout"`

	// ShutdownTimeout bounds graceful server shutdown.
	ShutdownTimeout time.Duration `json:"shutdownTimeout"`

	CORS  CORSConfig   `json:"cors"`
	Certs certs.Config `json:"certs"`
}

// PerformanceConfig bounds transport resource use.
type PerformanceConfig struct {
	// MaxMessageSize caps one message's byte length on every substrate.
	MaxMessageSize int64 `json:"maxMessageSize"`

	// QueueCapacity sizes the shared receive queue.
	QueueCapacity int `json:"queueCapacity"`
}

// Config configures a transport instance.
type Config struct {
	Type        Type              `json:"type"`
	HTTP        HTTPConfig        `json:"http"`
	Auth        auth.Config       `json:"auth"`
	Performance PerformanceConfig `json:"performance"`
}

// DefaultConfig returns a stdio transport configuration with the HTTP
// section pre-filled for local development.
func DefaultConfig() Config {
	return Config{
		Type: TypeStdio,
		HTTP: HTTPConfig{
			Host:            "localhost",
			Port:            8080,
			RequestTimeout:  30 * time.Second,
			ShutdownTimeout: 10 * time.Second,
			CORS: CORSConfig{
				AllowedMethods: []string{"GET", "POST", "OPTIONS"},
				AllowedHeaders: []string{"Content-Type", "Authorization", auth.DefaultAPIKeyHeader},
			},
		},
		Auth: auth.Config{Mode: auth.ModeNone},
		Performance: PerformanceConfig{
			MaxMessageSize: 10 * 1024 * 1024,
			QueueCapacity:  100,
		},
	}
}

// Options carries the cross-cutting collaborators a transport uses.
// Zero-value fields get working defaults.
type Options struct {
	Logger  logging.Logger
	Metrics *observability.TransportMetrics
	Tracing *observability.TracingProvider
	Binder  certs.Binder
}

func (o Options) withDefaults() Options {
	if o.Logger == nil {
		o.Logger = logging.Default()
	}
	return o
}

// New constructs the transport selected by config.Type. TypeWebSocket is
// the HTTP transport with the upgrade endpoint forced on.
func New(config Config, opts Options) (Transport, error) {
	opts = opts.withDefaults()

	switch config.Type {
	case TypeStdio:
		return NewStdioTransport(config, opts), nil
	case TypeHTTP:
		return NewHTTPTransport(config, opts)
	case TypeWebSocket:
		config.HTTP.EnableWebSocket = true
		return NewHTTPTransport(config, opts)
	default:
		return nil, errors.TransportError(string(config.Type), "create", nil).
			WithDetail("unknown transport type")
	}
}

// dropDisconnect delivers ev without blocking; a full channel drops the
// event.
func dropDisconnect(ch chan DisconnectEvent, ev DisconnectEvent) {
	select {
	case ch <- ev:
	default:
	}
}
