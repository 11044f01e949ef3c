package notify

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"travel/internal/telemetry"
)

const defaultPublishTimeout = 5 * time.Second

// Publisher hands a task to the broker.
type Publisher interface {
	Publish(ctx context.Context, task Task) error
	Close() error
}

// Dispatcher accepts tasks without blocking and publishes them from a
// single background goroutine. Tasks that do not fit in the buffer are dropped.
type Dispatcher struct {
	tasks          chan Task
	publisher      Publisher
	logger         *zap.Logger
	metrics        *telemetry.Metrics
	publishTimeout time.Duration

	mu      sync.RWMutex
	closed  bool
	started bool
	done    chan struct{}
}

// NewDispatcher creates a dispatcher with room for bufferSize pending tasks.
func NewDispatcher(publisher Publisher, bufferSize int, logger *zap.Logger, metrics *telemetry.Metrics) *Dispatcher {
	if bufferSize <= 0 {
		bufferSize = 1
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Dispatcher{
		tasks:          make(chan Task, bufferSize),
		publisher:      publisher,
		logger:         logger,
		metrics:        metrics,
		publishTimeout: defaultPublishTimeout,
		done:           make(chan struct{}),
	}
}

// Start launches the publishing goroutine. Calling it more than once is a no-op.
func (d *Dispatcher) Start() {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.started {
		return
	}
	d.started = true
	go d.run()
}

// Enqueue offers a task for delivery and reports whether it was accepted.
// It never blocks.
func (d *Dispatcher) Enqueue(task Task) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if d.closed {
		d.drop(task, "dispatcher closed")
		return false
	}

	select {
	case d.tasks <- task:
		d.metrics.NotificationQueued(string(task.Kind))
		return true
	default:
		d.drop(task, "buffer full")
		return false
	}
}

// Shutdown stops accepting tasks and waits until the buffer is drained or ctx ends.
func (d *Dispatcher) Shutdown(ctx context.Context) error {
	d.mu.Lock()
	if !d.closed {
		d.closed = true
		close(d.tasks)
	}
	started := d.started
	d.mu.Unlock()

	if !started {
		return nil
	}

	select {
	case <-d.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (d *Dispatcher) run() {
	defer close(d.done)

	for task := range d.tasks {
		d.publish(task)
	}
}

func (d *Dispatcher) publish(task Task) {
	ctx, cancel := context.WithTimeout(context.Background(), d.publishTimeout)
	defer cancel()

	if err := d.publisher.Publish(ctx, task); err != nil {
		d.logger.Error("failed to publish notification",
			zap.String("task_id", task.ID),
			zap.String("kind", string(task.Kind)),
			zap.Error(err),
		)
		d.metrics.NotificationDropped(string(task.Kind))
		return
	}

	d.logger.Debug("notification published",
		zap.String("task_id", task.ID),
		zap.String("kind", string(task.Kind)),
	)
}

func (d *Dispatcher) drop(task Task, reason string) {
	d.logger.Warn("dropping notification",
		zap.String("task_id", task.ID),
		zap.String("kind", string(task.Kind)),
		zap.String("reason", reason),
	)
	d.metrics.NotificationDropped(string(task.Kind))
}
