// Package gateway persists store snapshots off the interactive path.
//
// Every scope gets its own FIFO worker: writes for one scope land in the
// order they were submitted while different scopes write concurrently.
// Save never blocks on I/O and never returns an error; failures are
// logged, counted and handed to error subscribers.
package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/tartampluch/go-lifegrid/internal/config"
	"github.com/tartampluch/go-lifegrid/internal/metrics"
	"github.com/tartampluch/go-lifegrid/internal/observe"
)

var (
	// ErrClosed is reported when a snapshot is submitted after Close.
	ErrClosed = errors.New(config.ErrGatewayClosed)
	// ErrScopeEmpty is returned for an empty scope key.
	ErrScopeEmpty = errors.New(config.ErrScopeEmpty)
)

// Backend stores one opaque blob per scope key.
// Read reports ok=false when the scope was never written.
type Backend interface {
	Read(scope string) (data []byte, ok bool, err error)
	Write(scope string, data []byte) error
}

// ScopeError ties a persistence failure to the scope it happened on.
type ScopeError struct {
	Scope string
	Err   error
}

// Error names the scope and the cause.
func (e *ScopeError) Error() string {
	return fmt.Sprintf("%s: %v", e.Scope, e.Err)
}

func (e *ScopeError) Unwrap() error { return e.Err }

// Option configures a Gateway.
type Option func(*Gateway)

// WithMetrics records write counts and latencies on c.
func WithMetrics(c *metrics.Collector) Option {
	return func(g *Gateway) { g.metrics = c }
}

// WithErrorHandler registers fn as an error subscriber from the start.
func WithErrorHandler(fn func(error)) Option {
	return func(g *Gateway) { g.errors.Subscribe(fn) }
}

// Gateway serializes snapshot writes per scope.
type Gateway struct {
	backend Backend
	metrics *metrics.Collector
	errors  observe.Topic[error]
	lastErr atomic.Pointer[ScopeError]

	mu     sync.Mutex
	queues map[string]*queue
	closed bool
	wg     sync.WaitGroup
}

// job is either a snapshot to write or, when done is set, a barrier.
type job struct {
	value any
	done  chan struct{}
}

type queue struct {
	scope   string
	mu      sync.Mutex
	pending []job
	wake    chan struct{}
	stop    chan struct{}
}

// New creates a gateway writing to backend.
func New(backend Backend, opts ...Option) *Gateway {
	g := &Gateway{
		backend: backend,
		queues:  make(map[string]*queue),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Save enqueues a full snapshot for scope and returns immediately.
// The value must not be mutated after the call; stores pass deep copies.
func (g *Gateway) Save(scope string, snapshot any) {
	if scope == "" {
		g.report(scope, ErrScopeEmpty)
		return
	}

	depth, err := g.enqueue(scope, job{value: snapshot})
	if err != nil {
		g.report(scope, err)
		return
	}
	g.metrics.RecordPending(scope, depth)
}

// Load decodes the last written snapshot of scope into dst.
// Pending writes for the scope are drained first so a reader always sees
// its own saves. ok is false when nothing was ever written.
func (g *Gateway) Load(scope string, dst any) (ok bool, err error) {
	if scope == "" {
		return false, ErrScopeEmpty
	}
	g.waitScope(scope)

	data, ok, err := g.backend.Read(scope)
	if err != nil {
		return false, fmt.Errorf("%s: %w", config.ErrBackendRead, err)
	}
	if !ok {
		return false, nil
	}
	if err := json.Unmarshal(data, dst); err != nil {
		return false, fmt.Errorf("%s: %w", config.ErrDecode, err)
	}
	return true, nil
}

// Flush blocks until every snapshot submitted before the call has been written
// or ctx is done.
func (g *Gateway) Flush(ctx context.Context) error {
	g.mu.Lock()
	if g.closed {
		g.mu.Unlock()
		return nil
	}
	barriers := make([]chan struct{}, 0, len(g.queues))
	for _, q := range g.queues {
		done := make(chan struct{})
		q.push(job{done: done})
		barriers = append(barriers, done)
	}
	g.mu.Unlock()

	for _, done := range barriers {
		select {
		case <-done:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

// Close drains every queue and stops the workers. Later saves are reported as ErrClosed.
func (g *Gateway) Close(ctx context.Context) error {
	g.mu.Lock()
	if g.closed {
		g.mu.Unlock()
		return nil
	}
	g.closed = true
	for _, q := range g.queues {
		close(q.stop)
	}
	g.mu.Unlock()

	stopped := make(chan struct{})
	go func() {
		g.wg.Wait()
		close(stopped)
	}()

	select {
	case <-stopped:
		slog.Debug(config.MsgQueueStopped, config.LogKeyComponent, config.CompGateway)
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// SubscribeErrors registers fn for every persistence failure.
func (g *Gateway) SubscribeErrors(fn func(error)) (cancel func()) {
	return g.errors.Subscribe(fn)
}

// LastError returns the most recent persistence failure, or nil.
func (g *Gateway) LastError() error {
	if e := g.lastErr.Load(); e != nil {
		return e
	}
	return nil
}

// enqueue pushes j under the gateway lock so Close cannot stop the worker
// between the closed check and the push.
func (g *Gateway) enqueue(scope string, j job) (int, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.closed {
		return 0, ErrClosed
	}
	q, ok := g.queues[scope]
	if !ok {
		q = g.startQueue(scope)
	}
	return q.push(j), nil
}

// startQueue must be called with g.mu held.
func (g *Gateway) startQueue(scope string) *queue {
	q := &queue{
		scope: scope,
		wake:  make(chan struct{}, config.ChannelBufferSize),
		stop:  make(chan struct{}),
	}
	g.queues[scope] = q
	g.wg.Add(1)
	go g.run(q)

	slog.Debug(config.MsgQueueStarted,
		config.LogKeyComponent, config.CompGateway,
		config.LogKeyScope, scope)
	return q
}

func (g *Gateway) waitScope(scope string) {
	g.mu.Lock()
	q, ok := g.queues[scope]
	if !ok || g.closed {
		g.mu.Unlock()
		return
	}
	done := make(chan struct{})
	q.push(job{done: done})
	g.mu.Unlock()

	<-done
}

// push appends j and returns the new queue depth.
func (q *queue) push(j job) int {
	q.mu.Lock()
	q.pending = append(q.pending, j)
	depth := len(q.pending)
	q.mu.Unlock()

	select {
	case q.wake <- struct{}{}:
	default:
	}
	return depth
}

func (q *queue) pop() (job, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.pending) == 0 {
		return job{}, false
	}
	j := q.pending[0]
	q.pending[0] = job{}
	q.pending = q.pending[1:]
	return j, true
}

func (g *Gateway) run(q *queue) {
	defer g.wg.Done()
	for {
		select {
		case <-q.wake:
			g.drain(q)
		case <-q.stop:
			g.drain(q)
			return
		}
	}
}

func (g *Gateway) drain(q *queue) {
	for {
		j, ok := q.pop()
		if !ok {
			g.metrics.RecordPending(q.scope, 0)
			return
		}
		if j.done != nil {
			close(j.done)
			continue
		}
		g.write(q.scope, j.value)
	}
}

func (g *Gateway) write(scope string, value any) {
	start := time.Now()

	data, err := json.Marshal(value)
	if err != nil {
		err = fmt.Errorf("%s: %w", config.ErrEncode, err)
	} else if werr := g.backend.Write(scope, data); werr != nil {
		err = fmt.Errorf("%s: %w", config.ErrBackendWrite, werr)
	}

	g.metrics.RecordWrite(scope, time.Since(start), err)
	if err != nil {
		g.report(scope, err)
		return
	}

	slog.Debug(config.MsgPersistDone,
		config.LogKeyComponent, config.CompGateway,
		config.LogKeyScope, scope,
		config.LogKeyBytes, len(data))
}

func (g *Gateway) report(scope string, err error) {
	se := &ScopeError{Scope: scope, Err: err}
	g.lastErr.Store(se)

	slog.Error(config.MsgPersistFailed,
		config.LogKeyComponent, config.CompGateway,
		config.LogKeyScope, scope,
		config.LogKeyError, err)

	g.errors.Publish(se)
}
