package transport

import (
	"context"
	"io"

	"golang.org/x/sync/errgroup"

	"github.com/anortham/coa-mcp-framework-sub002/pkg/logging"
)

// Handler processes one inbound message and returns the reply, or nil
// when the message needs no reply.
type Handler func(ctx context.Context, msg *TransportMessage) (*TransportMessage, error)

// Serve starts t and pumps messages through handler until the transport
// disconnects or ctx is cancelled. workers handlers run concurrently;
// values below one mean a single worker. Serve returns nil on a clean
// end of stream.
func Serve(ctx context.Context, t Transport, handler Handler, workers int, logger logging.Logger) error {
	if logger == nil {
		logger = logging.NopLogger{}
	}
	if workers < 1 {
		workers = 1
	}

	if err := t.Start(ctx); err != nil {
		return err
	}

	g, ctx := errgroup.WithContext(ctx)
	for i := 0; i < workers; i++ {
		g.Go(func() error {
			for {
				msg, err := t.ReadMessage(ctx)
				if err != nil {
					if err == io.EOF || ctx.Err() != nil {
						return nil
					}
					return err
				}

				reply, err := handler(ctx, msg)
				if err != nil {
					// Handler faults never end the loop.
					logger.Error("handler failed",
						logging.String("messageId", msg.ID),
						logging.ErrorField(err))
					continue
				}
				if reply == nil {
					continue
				}

				reply.CorrelationID = msg.CorrelationID
				if connID := msg.Header(HeaderConnectionID); connID != "" {
					reply.SetHeader(HeaderConnectionID, connID)
				}
				if err := t.WriteMessage(ctx, reply); err != nil {
					logger.Warn("reply write failed",
						logging.String("messageId", msg.ID),
						logging.ErrorField(err))
				}
			}
		})
	}

	err := g.Wait()
	stopCtx := context.Background()
	if stopErr := t.Stop(stopCtx); stopErr != nil && err == nil {
		err = stopErr
	}
	return err
}
