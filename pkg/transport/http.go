package transport

import (
	"context"
	"crypto/tls"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.opentelemetry.io/otel/attribute"

	"github.com/anortham/coa-mcp-framework-sub002/pkg/auth"
	"github.com/anortham/coa-mcp-framework-sub002/pkg/certs"
	"github.com/anortham/coa-mcp-framework-sub002/pkg/errors"
	"github.com/anortham/coa-mcp-framework-sub002/pkg/logging"
	"github.com/anortham/coa-mcp-framework-sub002/pkg/observability"
	"github.com/anortham/coa-mcp-framework-sub002/pkg/protocol"
)

// Endpoint paths served by the HTTP transport.
const (
	PathRPC    = "/mcp/rpc"
	PathHealth = "/mcp/health"
	PathTools  = "/mcp/tools"
	PathWS     = "/mcp/ws"
)

// HTTPTransport serves the protocol over HTTP, bridging each synchronous
// request onto the shared asynchronous queue through the correlator, and
// optionally accepting WebSocket upgrades for persistent connections.
type HTTPTransport struct {
	config Config

	authenticator auth.Authenticator
	provisioner   *certs.Provisioner
	correlator    *Correlator
	queue         *messageQueue
	registry      *connectionRegistry
	upgrader      websocket.Upgrader

	server   *http.Server
	listener net.Listener
	addr     atomic.Value // string

	disconnect chan DisconnectEvent
	running    atomic.Bool
	stopOnce   sync.Once

	logger  logging.Logger
	metrics *observability.TransportMetrics
	tracing *observability.TracingProvider
}

// NewHTTPTransport creates an HTTP transport from config. The transport
// does not listen until Start.
func NewHTTPTransport(config Config, opts Options) (*HTTPTransport, error) {
	opts = opts.withDefaults()
	logger := opts.Logger.WithFields(logging.String("transport", string(TypeHTTP)))

	authenticator, err := auth.New(config.Auth, logger)
	if err != nil {
		return nil, err
	}

	t := &HTTPTransport{
		config:        config,
		authenticator: authenticator,
		correlator:    NewCorrelator(logger, opts.Metrics),
		queue:         newMessageQueue(config.Performance.QueueCapacity),
		registry:      newConnectionRegistry(),
		disconnect:    make(chan DisconnectEvent, 16),
		logger:        logger,
		metrics:       opts.Metrics,
		tracing:       opts.Tracing,
	}
	t.upgrader = websocket.Upgrader{
		ReadBufferSize:  4096,
		WriteBufferSize: 4096,
		CheckOrigin:     t.originAllowed,
	}
	if config.HTTP.TLS {
		t.provisioner = certs.NewProvisioner(config.HTTP.Certs, opts.Binder, logger)
	}
	return t, nil
}

// Start binds the listener, provisioning TLS first when enabled, and
// launches the serve loop. It returns once the listener is bound, so
// Addr is valid immediately after.
func (t *HTTPTransport) Start(ctx context.Context) error {
	if !t.running.CompareAndSwap(false, true) {
		return errors.HTTPTransportError("start", nil).WithDetail("transport already started")
	}

	listenAddr := net.JoinHostPort(t.config.HTTP.Host, fmt.Sprintf("%d", t.config.HTTP.Port))
	listener, err := net.Listen("tcp", listenAddr)
	if err != nil {
		t.running.Store(false)
		return errors.ConnectionFailed(string(TypeHTTP), listenAddr, err)
	}

	if t.config.HTTP.TLS {
		host := t.config.HTTP.Host
		port := listener.Addr().(*net.TCPAddr).Port
		tlsConfig, err := t.provisioner.Provision(host, port)
		if err != nil {
			listener.Close()
			t.running.Store(false)
			return err
		}
		listener = tls.NewListener(listener, tlsConfig)
	}

	t.listener = listener
	t.addr.Store(listener.Addr().String())

	mux := http.NewServeMux()
	mux.HandleFunc(PathRPC, t.handleRPC)
	mux.HandleFunc(PathHealth, t.handleHealth)
	mux.HandleFunc(PathTools, t.handleTools)
	mux.HandleFunc(PathWS, t.handleUpgrade)

	t.server = &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		if err := t.server.Serve(listener); err != nil && err != http.ErrServerClosed {
			t.logger.Error("http server stopped", logging.ErrorField(err))
			t.signalDisconnect(false, err.Error(), "")
		}
	}()

	t.logger.Info("http transport started",
		logging.String("addr", t.Addr()),
		logging.Bool("tls", t.config.HTTP.TLS),
		logging.Bool("websocket", t.config.HTTP.EnableWebSocket))
	return nil
}

// Addr returns the bound listen address, useful when Port was 0.
func (t *HTTPTransport) Addr() string {
	if v := t.addr.Load(); v != nil {
		return v.(string)
	}
	return ""
}

// handleRPC serves POST /mcp/rpc: authenticate, bound-read the body,
// enqueue it under a fresh correlation id, and hold the exchange open
// until the correlator resolves or times out.
func (t *HTTPTransport) handleRPC(w http.ResponseWriter, r *http.Request) {
	if done := t.applyCORS(w, r); done {
		return
	}

	// Upgrade requests at the RPC path are routed to the WebSocket
	// handler before anything else.
	if t.config.HTTP.EnableWebSocket && websocket.IsWebSocketUpgrade(r) {
		t.handleUpgrade(w, r)
		return
	}

	if err := t.authenticator.Authenticate(r); err != nil {
		t.metrics.RecordAuthFailure(string(t.authenticator.Mode()))
		t.logger.Warn("request rejected, authentication failed",
			logging.String("mode", string(t.authenticator.Mode())),
			logging.String("remote", r.RemoteAddr))
		t.writeError(w, http.StatusUnauthorized, protocol.InvalidRequest, "authentication required", nil)
		return
	}

	if r.Method != http.MethodPost {
		t.writeError(w, http.StatusNotFound, protocol.InvalidRequest, "not found", nil)
		return
	}

	maxSize := t.config.Performance.MaxMessageSize
	if maxSize <= 0 {
		maxSize = 10 * 1024 * 1024
	}
	if r.ContentLength > maxSize {
		t.writeError(w, http.StatusRequestEntityTooLarge, protocol.InvalidRequest, "request body too large", nil)
		return
	}
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxSize))
	if err != nil {
		var maxErr *http.MaxBytesError
		if stderrors.As(err, &maxErr) {
			t.writeError(w, http.StatusRequestEntityTooLarge, protocol.InvalidRequest, "request body too large", nil)
			return
		}
		t.writeError(w, http.StatusBadRequest, protocol.InvalidRequest, "unreadable request body", nil)
		return
	}
	if len(strings.TrimSpace(string(body))) == 0 {
		t.writeError(w, http.StatusBadRequest, protocol.InvalidRequest, "empty request body", nil)
		return
	}

	// The protocol-level id is extracted best-effort, for diagnostics
	// and error payloads only.
	requestID := protocol.ExtractRequestID(body)

	ctx, span := t.tracing.StartSpan(r.Context(), "transport.rpc")
	defer span.End()

	correlationID := uuid.NewString()
	span.SetAttributes(attribute.String("rpc.correlation_id", correlationID))
	resultCh := t.correlator.Register(correlationID, t.requestTimeout())
	defer t.correlator.Remove(correlationID)

	msg := NewMessage(body)
	msg.CorrelationID = correlationID
	msg.SetHeader(HeaderRemoteAddr, r.RemoteAddr)

	// Enqueue refuses when the queue is full as well as when it is
	// closed; either way the caller should retry later.
	if !t.queue.Enqueue(msg) {
		t.metrics.RecordMessageDropped(string(TypeHTTP))
		t.writeError(w, http.StatusServiceUnavailable, protocol.ServiceUnavailable, "transport unavailable", requestID)
		return
	}
	t.metrics.RecordMessageReceived(string(TypeHTTP))

	start := time.Now()
	select {
	case res := <-resultCh:
		if res.Err != nil {
			t.tracing.RecordError(ctx, res.Err)
			t.respondFailure(w, res.Err, requestID, start)
			return
		}
		t.metrics.RecordRPC(string(TypeHTTP), "ok", time.Since(start))
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write(res.Content)
	case <-ctx.Done():
		t.metrics.RecordRPC(string(TypeHTTP), "cancelled", time.Since(start))
		t.logger.Debug("request context cancelled",
			logging.String("correlationId", correlationID))
	}
}

// respondFailure maps a correlator failure onto the matching status code
// with a structured error payload, never a raw fault trace.
func (t *HTTPTransport) respondFailure(w http.ResponseWriter, err error, requestID interface{}, start time.Time) {
	if errors.IsCode(err, errors.CodeCorrelationTimeout) {
		t.metrics.RecordRPC(string(TypeHTTP), "timeout", time.Since(start))
		t.writeError(w, http.StatusGatewayTimeout, protocol.RequestTimeout, "request timed out", requestID)
		return
	}
	if errors.IsCode(err, errors.CodeServiceUnavailable) {
		t.metrics.RecordRPC(string(TypeHTTP), "unavailable", time.Since(start))
		t.writeError(w, http.StatusServiceUnavailable, protocol.ServiceUnavailable, "transport shutting down", requestID)
		return
	}
	t.metrics.RecordRPC(string(TypeHTTP), "error", time.Since(start))
	t.logger.Error("request failed", logging.ErrorField(err))
	t.writeError(w, http.StatusInternalServerError, protocol.InternalError, "internal error", requestID)
}

// handleHealth answers synchronously without touching the queue.
func (t *HTTPTransport) handleHealth(w http.ResponseWriter, r *http.Request) {
	if done := t.applyCORS(w, r); done {
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"status":      "ok",
		"transport":   string(TypeHTTP),
		"connections": t.registry.Count(),
		"pending":     t.correlator.Pending(),
		"timestamp":   time.Now().UTC().Format(time.RFC3339),
	})
}

// handleTools serves the tool-list stub; discovery is a protocol-layer
// concern answered elsewhere.
func (t *HTTPTransport) handleTools(w http.ResponseWriter, r *http.Request) {
	if done := t.applyCORS(w, r); done {
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{"tools": []interface{}{}})
}

// handleUpgrade accepts a WebSocket upgrade and runs its receive loop.
func (t *HTTPTransport) handleUpgrade(w http.ResponseWriter, r *http.Request) {
	if !t.config.HTTP.EnableWebSocket {
		http.NotFound(w, r)
		return
	}
	if err := t.authenticator.Authenticate(r); err != nil {
		t.metrics.RecordAuthFailure(string(t.authenticator.Mode()))
		t.writeError(w, http.StatusUnauthorized, protocol.InvalidRequest, "authentication required", nil)
		return
	}

	conn, err := t.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already written its own error response.
		t.logger.Warn("websocket upgrade failed", logging.ErrorField(err))
		return
	}

	c := newWSConnection(conn)
	t.registry.Add(c)
	t.metrics.RecordConnectionChange(string(TypeWebSocket), 1)
	t.logger.Info("websocket connection opened",
		logging.String("connectionId", c.id),
		logging.String("remote", r.RemoteAddr))

	go t.receiveLoop(c)
}

// receiveLoop reads frames from one connection until a close frame,
// receive error, or shutdown, enqueuing each text frame tagged with the
// connection id.
func (t *HTTPTransport) receiveLoop(c *wsConnection) {
	defer func() {
		t.registry.Remove(c.id)
		t.metrics.RecordConnectionChange(string(TypeWebSocket), -1)
	}()

	for {
		msgType, payload, err := c.conn.ReadMessage()
		if err != nil {
			clean := websocket.IsCloseError(err,
				websocket.CloseNormalClosure, websocket.CloseGoingAway) || c.closed.Load()
			if clean {
				t.logger.Info("websocket connection closed",
					logging.String("connectionId", c.id))
			} else {
				t.logger.Warn("websocket receive failed",
					logging.String("connectionId", c.id),
					logging.ErrorField(err))
			}
			c.Close(websocket.CloseNormalClosure, "")
			t.metrics.RecordDisconnect(string(TypeWebSocket), clean)
			dropDisconnect(t.disconnect, DisconnectEvent{
				Clean:        clean,
				Reason:       err.Error(),
				ConnectionID: c.id,
				Timestamp:    time.Now(),
			})
			return
		}
		if msgType != websocket.TextMessage || len(payload) == 0 {
			continue
		}

		msg := NewMessage(payload)
		msg.SetHeader(HeaderConnectionID, c.id)
		if !t.queue.Enqueue(msg) {
			t.metrics.RecordMessageDropped(string(TypeWebSocket))
			continue
		}
		t.metrics.RecordMessageReceived(string(TypeWebSocket))
	}
}

// ReadMessage blocks for the next inbound message from any HTTP request
// or WebSocket connection.
func (t *HTTPTransport) ReadMessage(ctx context.Context) (*TransportMessage, error) {
	return t.queue.Dequeue(ctx)
}

// WriteMessage routes an outbound message: a pending HTTP context wins,
// then the WebSocket connection named in the headers, then a broadcast
// to all open sockets. With none of those the message is a logged no-op;
// HTTP cannot push unsolicited messages without an open socket.
func (t *HTTPTransport) WriteMessage(ctx context.Context, msg *TransportMessage) error {
	if msg == nil || len(msg.Content) == 0 {
		return errors.HTTPTransportError("write", nil).WithDetail("empty message")
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	if msg.CorrelationID != "" && t.correlator.TryComplete(msg.CorrelationID, msg.Content) {
		t.metrics.RecordMessageSent(string(TypeHTTP))
		return nil
	}

	if connID := msg.Header(HeaderConnectionID); connID != "" {
		c, ok := t.registry.Get(connID)
		if !ok {
			return errors.ConnectionLost(string(TypeWebSocket), connID, nil)
		}
		if err := c.Send(msg.Content); err != nil {
			t.metrics.RecordMessageDropped(string(TypeWebSocket))
			return err
		}
		t.metrics.RecordMessageSent(string(TypeWebSocket))
		return nil
	}

	if conns := t.registry.Snapshot(); len(conns) > 0 {
		for _, c := range conns {
			if err := c.Send(msg.Content); err != nil {
				t.logger.Warn("broadcast to connection failed",
					logging.String("connectionId", c.id),
					logging.ErrorField(err))
				continue
			}
			t.metrics.RecordMessageSent(string(TypeWebSocket))
		}
		return nil
	}

	t.logger.Warn("dropping outbound message, no pending request or open connection",
		logging.String("messageId", msg.ID),
		logging.String("correlationId", msg.CorrelationID))
	return nil
}

// Stop closes every WebSocket connection with a normal-closure code,
// shuts the server down, and fails pending HTTP requests.
func (t *HTTPTransport) Stop(ctx context.Context) error {
	var err error
	t.stopOnce.Do(func() {
		t.running.Store(false)

		t.registry.CloseAll(websocket.CloseNormalClosure, "server shutting down", t.logger)

		t.correlator.CancelAll(errors.NewError(
			errors.CodeServiceUnavailable, "transport shutting down",
			errors.CategoryTransport, errors.SeverityWarning))

		if t.server != nil {
			shutdownCtx := ctx
			if t.config.HTTP.ShutdownTimeout > 0 {
				var cancel context.CancelFunc
				shutdownCtx, cancel = context.WithTimeout(ctx, t.config.HTTP.ShutdownTimeout)
				defer cancel()
			}
			err = t.server.Shutdown(shutdownCtx)
		}

		t.queue.Close()
		t.signalDisconnect(true, "transport stopped", "")
		t.logger.Info("http transport stopped")
	})
	return err
}

func (t *HTTPTransport) signalDisconnect(clean bool, reason, connectionID string) {
	t.metrics.RecordDisconnect(string(TypeHTTP), clean)
	dropDisconnect(t.disconnect, DisconnectEvent{
		Clean:        clean,
		Reason:       reason,
		ConnectionID: connectionID,
		Timestamp:    time.Now(),
	})
}

// Disconnected delivers disconnect notifications for the transport and
// its individual WebSocket connections.
func (t *HTTPTransport) Disconnected() <-chan DisconnectEvent {
	return t.disconnect
}

func (t *HTTPTransport) requestTimeout() time.Duration {
	if t.config.HTTP.RequestTimeout > 0 {
		return t.config.HTTP.RequestTimeout
	}
	return 30 * time.Second
}

// applyCORS enforces the cross-origin policy. It reports true when it
// has fully handled the request (preflight or rejection).
func (t *HTTPTransport) applyCORS(w http.ResponseWriter, r *http.Request) bool {
	if !t.config.HTTP.CORS.Enabled {
		return false
	}
	origin := r.Header.Get("Origin")
	if origin == "" {
		return false
	}
	if !t.originAllowedValue(origin) {
		t.writeError(w, http.StatusForbidden, protocol.InvalidRequest, "origin not allowed", nil)
		return true
	}

	w.Header().Set("Access-Control-Allow-Origin", origin)
	w.Header().Set("Vary", "Origin")
	if r.Method == http.MethodOptions {
		cors := t.config.HTTP.CORS
		w.Header().Set("Access-Control-Allow-Methods", strings.Join(cors.AllowedMethods, ", "))
		w.Header().Set("Access-Control-Allow-Headers", strings.Join(cors.AllowedHeaders, ", "))
		w.WriteHeader(http.StatusNoContent)
		return true
	}
	return false
}

func (t *HTTPTransport) originAllowed(r *http.Request) bool {
	if !t.config.HTTP.CORS.Enabled {
		return true
	}
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	return t.originAllowedValue(origin)
}

func (t *HTTPTransport) originAllowedValue(origin string) bool {
	for _, allowed := range t.config.HTTP.CORS.AllowedOrigins {
		if allowed == "*" || strings.EqualFold(allowed, origin) {
			return true
		}
	}
	return false
}

// writeError emits a structured protocol error payload with the given
// HTTP status.
func (t *HTTPTransport) writeError(w http.ResponseWriter, status int, code protocol.ErrorCode, message string, requestID interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	w.Write(protocol.MarshalErrorResponse(requestID, code, message, nil))
}
