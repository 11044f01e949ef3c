package notify

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"travel/internal/telemetry"
)

// recordingPublisher collects published tasks and can block or fail on demand.
type recordingPublisher struct {
	mu        sync.Mutex
	published []Task
	block     chan struct{}
	err       error
}

func (p *recordingPublisher) Publish(ctx context.Context, task Task) error {
	if p.block != nil {
		select {
		case <-p.block:
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.published = append(p.published, task)
	return nil
}

func (p *recordingPublisher) Close() error { return nil }

func (p *recordingPublisher) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.published)
}

func TestDispatcher_PublishesAndDrainsOnShutdown(t *testing.T) {
	t.Parallel()

	pub := &recordingPublisher{}
	d := NewDispatcher(pub, 16, nil, nil)
	d.Start()

	for i := 0; i < 10; i++ {
		if !d.Enqueue(NewBookingConfirmation("guest@example.com", "b-1")) {
			t.Fatalf("enqueue %d rejected", i)
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := d.Shutdown(ctx); err != nil {
		t.Fatalf("shutdown: %v", err)
	}

	if got := pub.count(); got != 10 {
		t.Errorf("expected 10 published tasks, got %d", got)
	}
}

func TestDispatcher_EnqueueNeverBlocks(t *testing.T) {
	t.Parallel()

	pub := &recordingPublisher{block: make(chan struct{})}
	reg := prometheus.NewRegistry()
	metrics := telemetry.NewMetrics(reg)

	d := NewDispatcher(pub, 2, nil, metrics)
	d.Start()

	accepted := 0
	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 20; i++ {
			if d.Enqueue(NewPaymentConfirmation("a@b.test", "ref", "10.00", "ETB")) {
				accepted++
			}
		}
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("enqueue blocked with a full buffer")
	}

	// At most the buffer plus the one task held by the blocked publisher.
	if accepted > 3 {
		t.Errorf("expected at most 3 accepted tasks, got %d", accepted)
	}

	dropped := counterValue(t, reg, "notifications_dropped_total", string(KindPaymentConfirmation))
	if int(dropped) != 20-accepted {
		t.Errorf("expected %d dropped, got %v", 20-accepted, dropped)
	}

	close(pub.block)
	if err := d.Shutdown(context.Background()); err != nil {
		t.Fatalf("shutdown: %v", err)
	}
}

func TestDispatcher_RejectsAfterShutdown(t *testing.T) {
	t.Parallel()

	d := NewDispatcher(&recordingPublisher{}, 4, nil, nil)
	d.Start()

	if err := d.Shutdown(context.Background()); err != nil {
		t.Fatalf("shutdown: %v", err)
	}
	if d.Enqueue(NewBookingConfirmation("x@y.test", "b-2")) {
		t.Error("expected enqueue after shutdown to be rejected")
	}
	// Second shutdown is harmless.
	if err := d.Shutdown(context.Background()); err != nil {
		t.Errorf("second shutdown: %v", err)
	}
}

func TestDispatcher_PublishErrorIsCounted(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	metrics := telemetry.NewMetrics(reg)
	pub := &recordingPublisher{err: errors.New("broker down")}

	d := NewDispatcher(pub, 4, nil, metrics)
	d.Start()
	d.Enqueue(NewBookingConfirmation("x@y.test", "b-3"))

	if err := d.Shutdown(context.Background()); err != nil {
		t.Fatalf("shutdown: %v", err)
	}

	dropped := counterValue(t, reg, "notifications_dropped_total", string(KindBookingConfirmation))
	if dropped != 1 {
		t.Errorf("expected 1 dropped notification, got %v", dropped)
	}
}

func TestDispatcher_ShutdownRespectsDeadline(t *testing.T) {
	t.Parallel()

	pub := &recordingPublisher{block: make(chan struct{})}
	defer close(pub.block)

	d := NewDispatcher(pub, 4, nil, nil)
	d.Start()
	d.Enqueue(NewBookingConfirmation("x@y.test", "b-4"))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	if err := d.Shutdown(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("expected deadline exceeded, got %v", err)
	}
}

// counterValue reads the counter name whose label equals label.
func counterValue(t *testing.T, reg *prometheus.Registry, name, label string) float64 {
	t.Helper()

	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}

	for _, mf := range families {
		if mf.GetName() != name {
			continue
		}
		for _, m := range mf.GetMetric() {
			for _, lp := range m.GetLabel() {
				if lp.GetValue() == label {
					return m.GetCounter().GetValue()
				}
			}
		}
	}
	return 0
}
