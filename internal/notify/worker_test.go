package notify

import (
	"context"
	"errors"
	"net/smtp"
	"strings"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"travel/internal/config"
)

type captureMailer struct {
	mu   sync.Mutex
	sent []Message
	err  error
}

func (m *captureMailer) Send(ctx context.Context, msg Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.sent = append(m.sent, msg)
	return nil
}

// sliceConsumer replays a fixed list of tasks.
type sliceConsumer struct {
	tasks []Task
}

func (c *sliceConsumer) Consume(ctx context.Context, handle Handler) error {
	for _, task := range c.tasks {
		_ = handle(ctx, task)
	}
	return nil
}

func (c *sliceConsumer) Close() error { return nil }

func TestRender_PaymentConfirmation(t *testing.T) {
	t.Parallel()

	msg, err := Render(NewPaymentConfirmation("guest@example.com", "BK-42", "150.00", "ETB"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if msg.To != "guest@example.com" {
		t.Errorf("unexpected recipient %s", msg.To)
	}
	if !strings.Contains(msg.Subject, "BK-42") {
		t.Errorf("expected booking ref in subject, got %q", msg.Subject)
	}
	if !strings.Contains(msg.Body, "150.00 ETB") {
		t.Errorf("expected amount and currency in body, got %q", msg.Body)
	}
}

func TestRender_UnknownKind(t *testing.T) {
	t.Parallel()

	if _, err := Render(Task{Kind: "sms", Email: "a@b.test"}); err == nil {
		t.Error("expected error for unknown kind")
	}
}

func TestWorker_SendsEveryTask(t *testing.T) {
	t.Parallel()

	mailer := &captureMailer{}
	w := NewWorker(mailer, nil, nil)

	consumer := &sliceConsumer{tasks: []Task{
		NewBookingConfirmation("one@example.com", "b-1"),
		NewPaymentConfirmation("two@example.com", "ref-2", "99.99", "USD"),
		{Kind: "unknown", Email: "three@example.com"},
	}}

	if err := w.Run(context.Background(), consumer); err != nil {
		t.Fatalf("run: %v", err)
	}

	if len(mailer.sent) != 2 {
		t.Fatalf("expected 2 emails, got %d", len(mailer.sent))
	}
	if mailer.sent[0].To != "one@example.com" || mailer.sent[1].To != "two@example.com" {
		t.Errorf("unexpected recipients %+v", mailer.sent)
	}
}

func TestWorker_PropagatesMailerError(t *testing.T) {
	t.Parallel()

	mailer := &captureMailer{err: errors.New("relay unavailable")}
	w := NewWorker(mailer, zap.NewNop(), nil)

	err := w.Handle(context.Background(), NewBookingConfirmation("x@example.com", "b-9"))
	if err == nil || !strings.Contains(err.Error(), "relay unavailable") {
		t.Errorf("expected mailer error, got %v", err)
	}
}

// memoryClaimer is an in-memory Claimer.
type memoryClaimer struct {
	mu      sync.Mutex
	claimed map[string]bool
	err     error
}

func (c *memoryClaimer) Claim(_ context.Context, taskID string, _ time.Duration) (bool, error) {
	if c.err != nil {
		return false, c.err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.claimed[taskID] {
		return false, nil
	}
	c.claimed[taskID] = true
	return true, nil
}

func (c *memoryClaimer) Release(_ context.Context, taskID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.claimed, taskID)
	return nil
}

func TestWorker_SkipsRedeliveredTask(t *testing.T) {
	t.Parallel()

	mailer := &captureMailer{}
	claimer := &memoryClaimer{claimed: make(map[string]bool)}
	w := NewWorker(mailer, nil, nil, WithClaimer(claimer, time.Hour))

	task := NewPaymentConfirmation("guest@example.com", "BK1", "10.00", "ETB")
	for i := 0; i < 3; i++ {
		if err := w.Handle(context.Background(), task); err != nil {
			t.Fatalf("handle %d: %v", i, err)
		}
	}

	if len(mailer.sent) != 1 {
		t.Errorf("expected 1 email for a redelivered task, got %d", len(mailer.sent))
	}
}

func TestWorker_ReleasesClaimWhenSendFails(t *testing.T) {
	t.Parallel()

	mailer := &captureMailer{err: errors.New("relay unavailable")}
	claimer := &memoryClaimer{claimed: make(map[string]bool)}
	w := NewWorker(mailer, nil, nil, WithClaimer(claimer, time.Hour))

	task := NewBookingConfirmation("guest@example.com", "b-1")
	if err := w.Handle(context.Background(), task); err == nil {
		t.Fatal("expected send error")
	}

	mailer.err = nil
	if err := w.Handle(context.Background(), task); err != nil {
		t.Fatalf("retry: %v", err)
	}
	if len(mailer.sent) != 1 {
		t.Errorf("expected the retry to send, got %d emails", len(mailer.sent))
	}
}

// flakyMailer fails its first `failures` sends.
type flakyMailer struct {
	captureMailer
	failures int
	calls    int
}

func (m *flakyMailer) Send(ctx context.Context, msg Message) error {
	m.mu.Lock()
	m.calls++
	fail := m.calls <= m.failures
	m.mu.Unlock()
	if fail {
		return errors.New("relay unavailable")
	}
	return m.captureMailer.Send(ctx, msg)
}

func TestRetry_ClaimedTaskIsSentOnLaterAttempt(t *testing.T) {
	t.Parallel()

	mailer := &flakyMailer{failures: 2}
	claimer := &memoryClaimer{claimed: make(map[string]bool)}
	w := NewWorker(mailer, nil, nil, WithClaimer(claimer, time.Hour))

	deliver := Retry(w.Handle, 3, 0)
	if err := deliver(context.Background(), NewBookingConfirmation("guest@example.com", "b-1")); err != nil {
		t.Fatalf("expected delivery on third attempt, got %v", err)
	}
	if mailer.calls != 3 {
		t.Errorf("expected 3 send attempts, got %d", mailer.calls)
	}
	if len(mailer.sent) != 1 {
		t.Errorf("expected 1 email, got %d", len(mailer.sent))
	}
}

func TestRetry_GivesUpAfterAttempts(t *testing.T) {
	t.Parallel()

	calls := 0
	deliver := Retry(func(context.Context, Task) error {
		calls++
		return errors.New("relay unavailable")
	}, 3, 0)

	if err := deliver(context.Background(), NewBookingConfirmation("guest@example.com", "b-1")); err == nil {
		t.Fatal("expected error after the last attempt")
	}
	if calls != 3 {
		t.Errorf("expected 3 attempts, got %d", calls)
	}
}

func TestRetry_StopsWhenContextEnds(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	deliver := Retry(func(context.Context, Task) error {
		calls++
		cancel()
		return errors.New("relay unavailable")
	}, 3, time.Hour)

	if err := deliver(ctx, NewBookingConfirmation("guest@example.com", "b-1")); !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
	if calls != 1 {
		t.Errorf("expected 1 attempt before shutdown, got %d", calls)
	}
}

func TestWorker_SendsWhenClaimStoreFails(t *testing.T) {
	t.Parallel()

	mailer := &captureMailer{}
	w := NewWorker(mailer, nil, nil, WithClaimer(&memoryClaimer{err: errors.New("redis down")}, time.Hour))

	if err := w.Handle(context.Background(), NewBookingConfirmation("guest@example.com", "b-2")); err != nil {
		t.Fatalf("handle: %v", err)
	}
	if len(mailer.sent) != 1 {
		t.Errorf("expected email despite claim failure, got %d", len(mailer.sent))
	}
}

func TestSMTPMailer_ComposesMessage(t *testing.T) {
	t.Parallel()

	m := NewSMTPMailer(config.EmailConfig{
		Host:     "smtp.example.com",
		Port:     2525,
		Username: "user",
		Password: "secret",
		From:     "Travel Desk <desk@example.com>",
	})

	var gotAddr, gotFrom string
	var gotTo []string
	var gotMsg []byte
	m.sendMail = func(addr string, a smtp.Auth, from string, to []string, msg []byte) error {
		gotAddr, gotFrom, gotTo, gotMsg = addr, from, to, msg
		return nil
	}

	err := m.Send(context.Background(), Message{To: "guest@example.com", Subject: "Hi", Body: "line one\nline two"})
	if err != nil {
		t.Fatalf("send: %v", err)
	}

	if gotAddr != "smtp.example.com:2525" {
		t.Errorf("unexpected addr %s", gotAddr)
	}
	if gotFrom != "desk@example.com" {
		t.Errorf("expected bare envelope sender, got %s", gotFrom)
	}
	if len(gotTo) != 1 || gotTo[0] != "guest@example.com" {
		t.Errorf("unexpected recipients %v", gotTo)
	}

	body := string(gotMsg)
	for _, want := range []string{"From: Travel Desk <desk@example.com>\r\n", "Subject: Hi\r\n", "line one\r\nline two"} {
		if !strings.Contains(body, want) {
			t.Errorf("expected message to contain %q, got %q", want, body)
		}
	}
}

func TestSMTPMailer_LineBreaksCannotAddHeaders(t *testing.T) {
	t.Parallel()

	m := NewSMTPMailer(config.EmailConfig{Host: "smtp.example.com", Port: 25, From: "desk@example.com"})
	var gotMsg []byte
	m.sendMail = func(addr string, a smtp.Auth, from string, to []string, msg []byte) error {
		gotMsg = msg
		return nil
	}

	msg, err := Render(NewPaymentConfirmation("guest@example.com", "BK1\r\nBcc: victim@evil.test\r\n\r\nforged body", "10.00", "ETB"))
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	if err := m.Send(context.Background(), msg); err != nil {
		t.Fatalf("send: %v", err)
	}

	header, _, ok := strings.Cut(string(gotMsg), "\r\n\r\n")
	if !ok {
		t.Fatalf("expected header/body separator in %q", gotMsg)
	}
	lines := strings.Split(header, "\r\n")
	for _, line := range lines {
		if strings.HasPrefix(line, "Bcc:") {
			t.Errorf("unexpected header line %q", line)
		}
	}
	if len(lines) != 6 {
		t.Errorf("expected 6 header lines, got %d: %q", len(lines), lines)
	}
}

func TestSMTPMailer_CanceledContext(t *testing.T) {
	t.Parallel()

	m := NewSMTPMailer(config.EmailConfig{Host: "localhost", Port: 25, From: "a@b.test"})
	called := false
	m.sendMail = func(string, smtp.Auth, string, []string, []byte) error {
		called = true
		return nil
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := m.Send(ctx, Message{To: "x@y.test"}); !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
	if called {
		t.Error("expected no SMTP dial after cancellation")
	}
}

func TestDecodeTask_RejectsIncomplete(t *testing.T) {
	t.Parallel()

	if _, err := decodeTask([]byte(`{"kind":"booking_confirmation"}`)); err == nil {
		t.Error("expected error for task without email")
	}
	if _, err := decodeTask([]byte(`not json`)); err == nil {
		t.Error("expected error for invalid json")
	}

	data, err := encodeTask(NewBookingConfirmation("a@b.test", "b-1"))
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	task, err := decodeTask(data)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if task.Key() != "b-1" {
		t.Errorf("expected key from booking id, got %s", task.Key())
	}
}
