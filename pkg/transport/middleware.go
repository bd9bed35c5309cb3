package transport

import (
	"context"
	"time"

	"github.com/anortham/coa-mcp-framework-sub002/pkg/logging"
	"github.com/anortham/coa-mcp-framework-sub002/pkg/observability"
)

// Middleware wraps a Transport with additional behavior. Middlewares
// compose outside-in: the first in a chain sees calls first.
type Middleware interface {
	Wrap(next Transport) Transport
}

// MiddlewareFunc adapts a function to the Middleware interface.
type MiddlewareFunc func(next Transport) Transport

// Wrap implements Middleware.
func (f MiddlewareFunc) Wrap(next Transport) Transport {
	return f(next)
}

// Chain applies middlewares to t so that the first middleware is the
// outermost layer.
func Chain(t Transport, middlewares ...Middleware) Transport {
	for i := len(middlewares) - 1; i >= 0; i-- {
		t = middlewares[i].Wrap(t)
	}
	return t
}

// LoggingMiddleware logs every message crossing the transport at debug
// level, with timing on writes.
func LoggingMiddleware(logger logging.Logger) Middleware {
	return MiddlewareFunc(func(next Transport) Transport {
		return &loggingTransport{next: next, logger: logger}
	})
}

type loggingTransport struct {
	next   Transport
	logger logging.Logger
}

func (t *loggingTransport) Start(ctx context.Context) error { return t.next.Start(ctx) }
func (t *loggingTransport) Stop(ctx context.Context) error  { return t.next.Stop(ctx) }

func (t *loggingTransport) ReadMessage(ctx context.Context) (*TransportMessage, error) {
	msg, err := t.next.ReadMessage(ctx)
	if err != nil {
		return nil, err
	}
	t.logger.Debug("message received",
		logging.String("messageId", msg.ID),
		logging.String("correlationId", msg.CorrelationID),
		logging.Int("bytes", len(msg.Content)))
	return msg, nil
}

func (t *loggingTransport) WriteMessage(ctx context.Context, msg *TransportMessage) error {
	start := time.Now()
	err := t.next.WriteMessage(ctx, msg)
	if err != nil {
		t.logger.Warn("message write failed",
			logging.String("messageId", msg.ID),
			logging.ErrorField(err))
		return err
	}
	t.logger.Debug("message sent",
		logging.String("messageId", msg.ID),
		logging.String("correlationId", msg.CorrelationID),
		logging.Int("bytes", len(msg.Content)),
		logging.Duration("elapsed", time.Since(start)))
	return nil
}

func (t *loggingTransport) Disconnected() <-chan DisconnectEvent { return t.next.Disconnected() }

// TracingMiddleware records a span around every write and annotates
// reads with message ids.
func TracingMiddleware(provider *observability.TracingProvider) Middleware {
	return MiddlewareFunc(func(next Transport) Transport {
		return &tracingTransport{next: next, provider: provider}
	})
}

type tracingTransport struct {
	next     Transport
	provider *observability.TracingProvider
}

func (t *tracingTransport) Start(ctx context.Context) error { return t.next.Start(ctx) }
func (t *tracingTransport) Stop(ctx context.Context) error  { return t.next.Stop(ctx) }

func (t *tracingTransport) ReadMessage(ctx context.Context) (*TransportMessage, error) {
	return t.next.ReadMessage(ctx)
}

func (t *tracingTransport) WriteMessage(ctx context.Context, msg *TransportMessage) error {
	ctx, span := t.provider.StartSpan(ctx, "transport.write")
	defer span.End()

	err := t.next.WriteMessage(ctx, msg)
	if err != nil {
		t.provider.RecordError(ctx, err)
	}
	return err
}

func (t *tracingTransport) Disconnected() <-chan DisconnectEvent { return t.next.Disconnected() }
