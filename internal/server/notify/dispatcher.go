package notify

import (
	"context"
	"sync"
	"time"

	"github.com/dmitrijs2005/contactsapi/internal/logging"
	"github.com/dmitrijs2005/contactsapi/internal/server/metrics"
)

// Dispatcher delivers messages on a fixed pool of workers fed by a bounded
// queue. Enqueue never blocks; a full queue drops the message. Delivery errors
// are logged and counted and never reach the caller that enqueued.
type Dispatcher struct {
	notifier    Notifier
	logger      logging.Logger
	metrics     *metrics.Metrics
	workers     int
	sendTimeout time.Duration

	queue chan Message

	mu     sync.RWMutex
	closed bool
	wg     sync.WaitGroup
}

// DispatcherOptions sizes the pool. Zero values fall back to 2 workers, a
// queue of 64 and a 30s send timeout.
type DispatcherOptions struct {
	Workers     int
	QueueSize   int
	SendTimeout time.Duration
}

func NewDispatcher(n Notifier, logger logging.Logger, m *metrics.Metrics, opts DispatcherOptions) *Dispatcher {
	if opts.Workers <= 0 {
		opts.Workers = 2
	}
	if opts.QueueSize <= 0 {
		opts.QueueSize = 64
	}
	if opts.SendTimeout <= 0 {
		opts.SendTimeout = 30 * time.Second
	}
	if logger == nil {
		logger = logging.Nop()
	}
	return &Dispatcher{
		notifier:    n,
		logger:      logger,
		metrics:     m,
		workers:     opts.Workers,
		sendTimeout: opts.SendTimeout,
		queue:       make(chan Message, opts.QueueSize),
	}
}

// Start launches the workers. They exit once Close drains the queue.
// ctx bounds every send; cancelling it aborts in-flight deliveries.
func (d *Dispatcher) Start(ctx context.Context) {
	for i := 0; i < d.workers; i++ {
		d.wg.Add(1)
		go func() {
			defer d.wg.Done()
			for msg := range d.queue {
				d.deliver(ctx, msg)
			}
		}()
	}
}

// Enqueue schedules msg and reports whether it was accepted.
func (d *Dispatcher) Enqueue(ctx context.Context, msg Message) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if d.closed {
		d.logger.Warn(ctx, "dispatcher closed, email dropped", "to", logging.RedactEmail(msg.To))
		d.metrics.Notification(metrics.OutcomeDropped)
		return false
	}

	select {
	case d.queue <- msg:
		return true
	default:
		d.logger.Warn(ctx, "email queue full, email dropped", "to", logging.RedactEmail(msg.To))
		d.metrics.Notification(metrics.OutcomeDropped)
		return false
	}
}

// Close stops accepting messages and waits for queued ones to be handled.
func (d *Dispatcher) Close() {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return
	}
	d.closed = true
	close(d.queue)
	d.mu.Unlock()

	d.wg.Wait()
}

func (d *Dispatcher) deliver(ctx context.Context, msg Message) {
	sendCtx, cancel := context.WithTimeout(ctx, d.sendTimeout)
	defer cancel()

	if err := d.notifier.Send(sendCtx, msg); err != nil {
		d.logger.Error(ctx, "email delivery failed", "to", logging.RedactEmail(msg.To), "error", err)
		d.metrics.Notification(metrics.OutcomeFailure)
		return
	}
	d.metrics.Notification(metrics.OutcomeSuccess)
}
