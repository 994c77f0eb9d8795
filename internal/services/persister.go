package services

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/quotedesk/checkout/internal/repositories"
)

const defaultPersistTimeout = 5 * time.Second

// ErrPersisterClosed is returned by Flush after Close.
var ErrPersisterClosed = errors.New("persister: closed")

// StatePersisterDeps wires the persister.
type StatePersisterDeps struct {
	Store   repositories.QuoteStateStore
	Timeout time.Duration
	Metrics Recorder
	Logger  func(ctx context.Context, event string, fields map[string]any)
}

type persistOp struct {
	payload []byte
	delete  bool
}

// StatePersister writes quote snapshots on a single background worker. Enqueued writes for the same
// session coalesce so only the latest snapshot is written. Callers never block on the store.
type StatePersister struct {
	store   repositories.QuoteStateStore
	timeout time.Duration
	metrics Recorder
	logger  func(context.Context, string, map[string]any)

	mu      sync.Mutex
	pending map[string]persistOp
	order   []string
	busy    bool
	closed  bool
	settled chan struct{}

	wake chan struct{}
	stop chan struct{}
	done chan struct{}
}

// NewStatePersister starts the background writer.
func NewStatePersister(deps StatePersisterDeps) (*StatePersister, error) {
	if deps.Store == nil {
		return nil, errors.New("state persister: store is required")
	}
	timeout := deps.Timeout
	if timeout <= 0 {
		timeout = defaultPersistTimeout
	}
	metrics := deps.Metrics
	if metrics == nil {
		metrics = nopRecorder{}
	}
	logger := deps.Logger
	if logger == nil {
		logger = noopLogger
	}
	p := &StatePersister{
		store:   deps.Store,
		timeout: timeout,
		metrics: metrics,
		logger:  logger,
		pending: make(map[string]persistOp),
		settled: make(chan struct{}),
		wake:    make(chan struct{}, 1),
		stop:    make(chan struct{}),
		done:    make(chan struct{}),
	}
	go p.run()
	return p, nil
}

// Enqueue schedules payload to be written for sessionID.
func (p *StatePersister) Enqueue(sessionID string, payload []byte) {
	p.enqueue(sessionID, persistOp{payload: append([]byte(nil), payload...)})
}

// EnqueueDelete schedules removal of sessionID, superseding any queued write.
func (p *StatePersister) EnqueueDelete(sessionID string) {
	p.enqueue(sessionID, persistOp{delete: true})
}

func (p *StatePersister) enqueue(sessionID string, op persistOp) {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		p.logger(context.Background(), "persist_dropped", map[string]any{"sessionId": sessionID})
		return
	}
	if _, queued := p.pending[sessionID]; !queued {
		p.order = append(p.order, sessionID)
	}
	p.pending[sessionID] = op
	p.mu.Unlock()

	select {
	case p.wake <- struct{}{}:
	default:
	}
}

// Flush blocks until every write queued before the call has been attempted, or ctx ends.
func (p *StatePersister) Flush(ctx context.Context) error {
	for {
		p.mu.Lock()
		if len(p.pending) == 0 && !p.busy {
			p.mu.Unlock()
			return nil
		}
		if p.closed && !p.busy {
			p.mu.Unlock()
			return ErrPersisterClosed
		}
		settled := p.settled
		p.mu.Unlock()

		select {
		case <-settled:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// Close drains the queue within ctx and stops the worker.
func (p *StatePersister) Close(ctx context.Context) error {
	err := p.Flush(ctx)
	p.mu.Lock()
	if !p.closed {
		p.closed = true
		close(p.stop)
	}
	p.mu.Unlock()
	select {
	case <-p.done:
	case <-ctx.Done():
		if err == nil {
			err = ctx.Err()
		}
	}
	return err
}

func (p *StatePersister) run() {
	defer close(p.done)
	for {
		select {
		case <-p.stop:
			return
		case <-p.wake:
			p.drain()
		}
	}
}

func (p *StatePersister) drain() {
	for {
		p.mu.Lock()
		if len(p.order) == 0 {
			p.busy = false
			close(p.settled)
			p.settled = make(chan struct{})
			p.mu.Unlock()
			return
		}
		p.busy = true
		sessionID := p.order[0]
		p.order = p.order[1:]
		op := p.pending[sessionID]
		delete(p.pending, sessionID)
		p.mu.Unlock()

		p.write(sessionID, op)
	}
}

func (p *StatePersister) write(sessionID string, op persistOp) {
	ctx, cancel := context.WithTimeout(context.Background(), p.timeout)
	defer cancel()

	var (
		err  error
		kind = "save"
	)
	if op.delete {
		kind = "delete"
		err = p.store.Delete(ctx, sessionID)
	} else {
		err = p.store.Save(ctx, sessionID, op.payload)
	}
	if err != nil {
		p.metrics.PersistFailed(kind)
		p.logger(ctx, "persist_failed", map[string]any{
			"sessionId": sessionID,
			"op":        kind,
			"error":     err.Error(),
		})
	}
}
