package notify

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"leaseprotect/internal/domain/notification"
	"leaseprotect/internal/observability/metrics"
	"leaseprotect/internal/reliability/retry"
)

var (
	ErrQueueFull = errors.New("notify: queue full")
	ErrClosed    = errors.New("notify: dispatcher closed")
)

type job struct {
	kind string
	send func(ctx context.Context) error
}

// Dispatcher is a Notifier that queues messages for a fixed worker pool,
// so delivery and its retries never run on the request path. Enqueue
// errors when the buffer is full or the dispatcher is closed.
type Dispatcher struct {
	next    notification.Notifier
	log     *slog.Logger
	retry   *retry.Config
	timeout time.Duration

	queue chan job
	wg    sync.WaitGroup

	// mu guards closed; senders hold it shared so close(queue) never races a send
	mu     sync.RWMutex
	closed bool
}

func NewDispatcher(next notification.Notifier, log *slog.Logger, workers, buffer int) *Dispatcher {
	if workers <= 0 {
		workers = 1
	}
	if buffer <= 0 {
		buffer = 256
	}
	d := &Dispatcher{
		next:    next,
		log:     log,
		retry:   retry.DefaultConfig(),
		timeout: 15 * time.Second,
		queue:   make(chan job, buffer),
	}
	d.wg.Add(workers)
	for i := 0; i < workers; i++ {
		go d.work()
	}
	log.Info("notification dispatcher started", slog.Int("workers", workers), slog.Int("buffer", buffer))
	return d
}

func (d *Dispatcher) work() {
	defer d.wg.Done()
	for j := range d.queue {
		metrics.SetNotifyQueueDepth(len(d.queue))
		ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
		_, err := retry.Do(ctx, d.retry, d.log, "notify."+j.kind, func(ctx context.Context) (struct{}, error) {
			return struct{}{}, j.send(ctx)
		})
		cancel()
		if err != nil {
			metrics.ObserveNotification(j.kind, "failed")
			d.log.Error("notification delivery failed", slog.String("kind", j.kind), slog.String("error", err.Error()))
			continue
		}
		metrics.ObserveNotification(j.kind, "sent")
	}
}

func (d *Dispatcher) enqueue(kind string, send func(ctx context.Context) error) error {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		metrics.ObserveNotification(kind, "dropped")
		return ErrClosed
	}
	select {
	case d.queue <- job{kind: kind, send: send}:
		metrics.SetNotifyQueueDepth(len(d.queue))
		return nil
	default:
		metrics.ObserveNotification(kind, "dropped")
		return ErrQueueFull
	}
}

func (d *Dispatcher) SendInvitation(_ context.Context, inv notification.Invitation) error {
	return d.enqueue("invitation", func(ctx context.Context) error { return d.next.SendInvitation(ctx, inv) })
}

func (d *Dispatcher) NotifyActorRejected(_ context.Context, r notification.Rejection) error {
	return d.enqueue("rejection", func(ctx context.Context) error { return d.next.NotifyActorRejected(ctx, r) })
}

func (d *Dispatcher) NotifyPolicyCancelled(_ context.Context, c notification.Cancellation) error {
	return d.enqueue("cancellation", func(ctx context.Context) error { return d.next.NotifyPolicyCancelled(ctx, c) })
}

// Close stops accepting work and waits for queued messages, bounded by ctx.
func (d *Dispatcher) Close(ctx context.Context) error {
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
