package paymentwebhook

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/angelmondragon/storefront-backend/pkg/logger"
)

var (
	ErrQueueFull        = errors.New("webhook queue is full")
	ErrDispatcherClosed = errors.New("webhook dispatcher is closed")
)

// Job is one accepted delivery waiting to be reconciled. EventID is the provider
// event id held by the idempotency guard, if any.
type Job struct {
	Gateway    string
	ExternalID string
	EventID    string
}

type reconciler interface {
	Reconcile(ctx context.Context, in ReconcileInput) (*Result, error)
}

type releaser interface {
	Release(ctx context.Context, eventID string) error
}

type DispatcherParams struct {
	Reconciler reconciler
	Guard      releaser
	Workers    int
	QueueSize  int
	Timeout    time.Duration
	Logger     *logger.Logger
}

// Dispatcher reconciles accepted webhook deliveries on a fixed pool of workers
// after the HTTP response has been sent.
type Dispatcher struct {
	reconciler reconciler
	guard      releaser
	workers    int
	timeout    time.Duration
	logg       *logger.Logger

	mu     sync.RWMutex
	closed bool
	queue  chan Job
	wg     sync.WaitGroup
	start  sync.Once
}

func NewDispatcher(p DispatcherParams) (*Dispatcher, error) {
	if p.Reconciler == nil {
		return nil, errors.New("reconciler required")
	}
	if p.Workers <= 0 {
		p.Workers = 1
	}
	if p.QueueSize <= 0 {
		p.QueueSize = 64
	}
	if p.Timeout <= 0 {
		p.Timeout = 30 * time.Second
	}
	if p.Logger == nil {
		p.Logger = logger.Nop()
	}
	return &Dispatcher{
		reconciler: p.Reconciler,
		guard:      p.Guard,
		workers:    p.Workers,
		timeout:    p.Timeout,
		logg:       p.Logger,
		queue:      make(chan Job, p.QueueSize),
	}, nil
}

// Start launches the workers. Calling it more than once has no effect.
func (d *Dispatcher) Start() {
	d.start.Do(func() {
		for i := 0; i < d.workers; i++ {
			d.wg.Add(1)
			go d.work()
		}
	})
}

// Enqueue never blocks. A full queue returns ErrQueueFull.
func (d *Dispatcher) Enqueue(job Job) error {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		return ErrDispatcherClosed
	}
	select {
	case d.queue <- job:
		return nil
	default:
		return ErrQueueFull
	}
}

// Shutdown stops accepting jobs and waits for queued ones to finish or ctx to end.
func (d *Dispatcher) Shutdown(ctx context.Context) error {
	d.mu.Lock()
	if !d.closed {
		d.closed = true
		close(d.queue)
	}
	d.mu.Unlock()

	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (d *Dispatcher) work() {
	defer d.wg.Done()
	for job := range d.queue {
		d.process(job)
	}
}

func (d *Dispatcher) process(job Job) {
	ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
	defer cancel()
	ctx = d.logg.WithFields(ctx, map[string]any{
		"gateway":  job.Gateway,
		"event_id": job.EventID,
	})

	defer func() {
		if rec := recover(); rec != nil {
			d.logg.Error(ctx, "webhook job panicked", fmt.Errorf("panic: %v", rec))
			d.release(ctx, job)
		}
	}()

	if _, err := d.reconciler.Reconcile(ctx, ReconcileInput{
		Gateway:    job.Gateway,
		ExternalID: job.ExternalID,
		Source:     SourceWebhook,
	}); err != nil {
		d.logg.Error(ctx, "reconcile webhook payment", err)
		d.release(ctx, job)
	}
}

// release lets the provider's redelivery of a failed event be processed again.
func (d *Dispatcher) release(ctx context.Context, job Job) {
	if d.guard == nil || job.EventID == "" {
		return
	}
	if err := d.guard.Release(ctx, job.EventID); err != nil {
		d.logg.Error(ctx, "release idempotency key", err)
	}
}
