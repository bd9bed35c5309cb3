package transport

import (
	"sync"
	"time"

	"github.com/anortham/coa-mcp-framework-sub002/pkg/errors"
	"github.com/anortham/coa-mcp-framework-sub002/pkg/logging"
	"github.com/anortham/coa-mcp-framework-sub002/pkg/observability"
)

// Result is the outcome delivered to a waiter registered with the
// correlator: either the response content or a terminal error.
type Result struct {
	Content []byte
	Err     error
}

// pendingRequest is one registered slot awaiting completion.
type pendingRequest struct {
	ch    chan Result
	timer *time.Timer
	once  sync.Once
}

// resolve delivers the result exactly once. The channel has capacity one
// so delivery never blocks.
func (p *pendingRequest) resolve(res Result) bool {
	delivered := false
	p.once.Do(func() {
		if p.timer != nil {
			p.timer.Stop()
		}
		p.ch <- res
		delivered = true
	})
	return delivered
}

// Correlator matches asynchronous responses to the synchronous callers
// that are blocked waiting for them. Each pending request occupies one
// slot keyed by correlation id; the first of completion, timeout, or
// cancellation wins and the slot is removed.
type Correlator struct {
	mu      sync.Mutex
	pending map[string]*pendingRequest
	logger  logging.Logger
	metrics *observability.TransportMetrics
}

// NewCorrelator creates an empty correlator. The metrics provider may be
// nil.
func NewCorrelator(logger logging.Logger, metrics *observability.TransportMetrics) *Correlator {
	if logger == nil {
		logger = logging.NopLogger{}
	}
	return &Correlator{
		pending: make(map[string]*pendingRequest),
		logger:  logger,
		metrics: metrics,
	}
}

// Register creates a pending slot for correlationID and returns the
// channel the eventual Result arrives on. If no TryComplete lands before
// timeout, the slot resolves with a correlation-timeout error. A second
// Register for a live id replaces the previous slot, failing it with a
// cancellation error.
func (c *Correlator) Register(correlationID string, timeout time.Duration) <-chan Result {
	p := &pendingRequest{ch: make(chan Result, 1)}

	c.mu.Lock()
	if prev, ok := c.pending[correlationID]; ok {
		prev.resolve(Result{Err: errors.CorrelationCancelled(correlationID)})
	}
	c.pending[correlationID] = p
	count := len(c.pending)
	c.mu.Unlock()

	c.metrics.RecordPendingRequests(count)

	if timeout > 0 {
		p.timer = time.AfterFunc(timeout, func() {
			if c.remove(correlationID, p) {
				p.resolve(Result{Err: errors.CorrelationTimeout(correlationID, timeout)})
				c.logger.Debug("pending request timed out",
					logging.String("correlationId", correlationID),
					logging.Duration("timeout", timeout))
			}
		})
	}

	return p.ch
}

// TryComplete resolves the pending slot for correlationID with content.
// It returns false, with no side effects, when no such slot exists —
// late or duplicate completions are expected and harmless.
func (c *Correlator) TryComplete(correlationID string, content []byte) bool {
	c.mu.Lock()
	p, ok := c.pending[correlationID]
	if ok {
		delete(c.pending, correlationID)
	}
	count := len(c.pending)
	c.mu.Unlock()

	if !ok {
		return false
	}
	c.metrics.RecordPendingRequests(count)
	return p.resolve(Result{Content: content})
}

// Cancel fails the pending slot for correlationID with err, if present.
func (c *Correlator) Cancel(correlationID string, err error) bool {
	c.mu.Lock()
	p, ok := c.pending[correlationID]
	if ok {
		delete(c.pending, correlationID)
	}
	count := len(c.pending)
	c.mu.Unlock()

	if !ok {
		return false
	}
	c.metrics.RecordPendingRequests(count)
	return p.resolve(Result{Err: err})
}

// Remove discards the slot for correlationID without resolving it. The
// HTTP handler calls this after its wait ends so abandoned slots never
// accumulate.
func (c *Correlator) Remove(correlationID string) {
	c.mu.Lock()
	p, ok := c.pending[correlationID]
	if ok {
		delete(c.pending, correlationID)
		if p.timer != nil {
			p.timer.Stop()
		}
	}
	count := len(c.pending)
	c.mu.Unlock()

	if ok {
		c.metrics.RecordPendingRequests(count)
	}
}

// CancelAll fails every pending slot with err. Used at shutdown.
func (c *Correlator) CancelAll(err error) {
	c.mu.Lock()
	pending := c.pending
	c.pending = make(map[string]*pendingRequest)
	c.mu.Unlock()

	for id, p := range pending {
		p.resolve(Result{Err: err})
		c.logger.Debug("cancelled pending request", logging.String("correlationId", id))
	}
	c.metrics.RecordPendingRequests(0)
}

// Pending reports the number of registered, unresolved slots.
func (c *Correlator) Pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.pending)
}

// remove deletes the slot only if it still maps to p, guarding against a
// timer firing after the slot was completed and its id reused.
func (c *Correlator) remove(correlationID string, p *pendingRequest) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if cur, ok := c.pending[correlationID]; ok && cur == p {
		delete(c.pending, correlationID)
		return true
	}
	return false
}
