package tests

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"travel/internal/domain"
	"travel/internal/gateway"
	"travel/internal/notify"
	"travel/internal/repository"
	"travel/internal/service"
)

// ──────────────────────────────────────────────
// 2. PAYMENT VERIFICATION
// ──────────────────────────────────────────────

// seedPendingPayment stores a PENDING payment as initiate leaves it.
func seedPendingPayment(store *MockStore) *domain.Payment {
	now := time.Now().UTC()
	payment := &domain.Payment{
		ID:              uuid.New().String(),
		BookingRef:      "BK123",
		TxRef:           service.NewTxRef("BK123"),
		Amount:          decimal.RequireFromString("250.00"),
		Currency:        "ETB",
		CustomerEmail:   "guest@example.com",
		Status:          domain.PaymentStatusPending,
		RawInitResponse: json.RawMessage(`{"status":"success"}`),
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	store.AddPayment(payment)
	return payment
}

func TestVerify_Success_CompletesAndQueuesConfirmation(t *testing.T) {
	t.Parallel()

	f := newPaymentFixture()
	payment := seedPendingPayment(f.store)

	verified, err := f.service.Verify(context.Background(), payment.TxRef)
	if err != nil {
		t.Fatalf("expected no error, got: %v", err)
	}

	if verified.Status != domain.PaymentStatusCompleted {
		t.Errorf("expected COMPLETED, got %s", verified.Status)
	}

	stored := f.store.Payment(payment.ID)
	if stored.Status != domain.PaymentStatusCompleted {
		t.Errorf("expected stored COMPLETED, got %s", stored.Status)
	}
	if len(stored.RawVerifyResponse) == 0 {
		t.Error("expected raw verify response to be stored")
	}

	tasks := f.queue.Tasks()
	if len(tasks) != 1 {
		t.Fatalf("expected exactly 1 task, got %d", len(tasks))
	}
	task := tasks[0]
	if task.Kind != notify.KindPaymentConfirmation {
		t.Errorf("expected payment confirmation, got %s", task.Kind)
	}
	if task.Email != "guest@example.com" || task.BookingRef != "BK123" {
		t.Errorf("unexpected task recipient: %+v", task)
	}
	if task.Amount != "250.00" || task.Currency != "ETB" {
		t.Errorf("unexpected task amount: %s %s", task.Amount, task.Currency)
	}
}

func TestVerify_StatusLocations(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name       string
		result     *gateway.VerifyResult
		wantStatus domain.PaymentStatus
		wantTasks  int
	}{
		{
			name:       "top level success",
			result:     &gateway.VerifyResult{StatusCode: 200, Raw: json.RawMessage(`{"status":"success"}`), Status: "success"},
			wantStatus: domain.PaymentStatusCompleted,
			wantTasks:  1,
		},
		{
			name:       "data status success only",
			result:     &gateway.VerifyResult{StatusCode: 200, Raw: json.RawMessage(`{"data":{"status":"success"}}`), DataStatus: "success"},
			wantStatus: domain.PaymentStatusCompleted,
			wantTasks:  1,
		},
		{
			name:       "completed counts as success",
			result:     &gateway.VerifyResult{StatusCode: 200, Raw: json.RawMessage(`{"status":"Completed"}`), Status: "Completed"},
			wantStatus: domain.PaymentStatusCompleted,
			wantTasks:  1,
		},
		{
			name:       "failed",
			result:     VerifiedWith("failed"),
			wantStatus: domain.PaymentStatusFailed,
			wantTasks:  0,
		},
		{
			name:       "pending at provider",
			result:     VerifiedWith("pending"),
			wantStatus: domain.PaymentStatusFailed,
			wantTasks:  0,
		},
		{
			name:       "provider error body",
			result:     &gateway.VerifyResult{StatusCode: 404, Raw: json.RawMessage(`{"message":"Invalid transaction"}`)},
			wantStatus: domain.PaymentStatusFailed,
			wantTasks:  0,
		},
	}

	for _, tc := range testCases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			f := newPaymentFixture()
			f.gateway.VerifyResult = tc.result
			payment := seedPendingPayment(f.store)

			verified, err := f.service.Verify(context.Background(), payment.TxRef)
			if err != nil {
				t.Fatalf("expected no error, got: %v", err)
			}
			if verified.Status != tc.wantStatus {
				t.Errorf("expected %s, got %s", tc.wantStatus, verified.Status)
			}
			if got := f.queue.Count(notify.KindPaymentConfirmation); got != tc.wantTasks {
				t.Errorf("expected %d tasks, got %d", tc.wantTasks, got)
			}
		})
	}
}

func TestVerify_RepeatedSuccess_QueuesOnce(t *testing.T) {
	t.Parallel()

	f := newPaymentFixture()
	payment := seedPendingPayment(f.store)

	for i := 0; i < 3; i++ {
		if _, err := f.service.Verify(context.Background(), payment.TxRef); err != nil {
			t.Fatalf("verify %d: %v", i, err)
		}
	}

	if got := f.queue.Count(notify.KindPaymentConfirmation); got != 1 {
		t.Errorf("expected 1 confirmation, got %d", got)
	}
	if f.gateway.VerifyCallCount != 3 {
		t.Errorf("expected 3 gateway verify calls, got %d", f.gateway.VerifyCallCount)
	}
}

func TestVerify_FollowsProviderAfterCompletion(t *testing.T) {
	t.Parallel()

	f := newPaymentFixture()
	payment := seedPendingPayment(f.store)

	if _, err := f.service.Verify(context.Background(), payment.TxRef); err != nil {
		t.Fatalf("first verify: %v", err)
	}

	f.gateway.VerifyResult = VerifiedWith("failed")
	verified, err := f.service.Verify(context.Background(), payment.TxRef)
	if err != nil {
		t.Fatalf("second verify: %v", err)
	}
	if verified.Status != domain.PaymentStatusFailed {
		t.Errorf("expected FAILED after provider reports failure, got %s", verified.Status)
	}

	f.gateway.VerifyResult = VerifiedWith("success")
	if _, err := f.service.Verify(context.Background(), payment.TxRef); err != nil {
		t.Fatalf("third verify: %v", err)
	}
	if got := f.queue.Count(notify.KindPaymentConfirmation); got != 2 {
		t.Errorf("expected a confirmation per transition to COMPLETED, got %d", got)
	}
}

func TestVerify_MissingTxRef(t *testing.T) {
	t.Parallel()

	for _, txRef := range []string{"", "   "} {
		f := newPaymentFixture()

		_, err := f.service.Verify(context.Background(), txRef)
		if !errors.Is(err, service.ErrTxRefRequired) {
			t.Errorf("tx_ref %q: expected ErrTxRefRequired, got %v", txRef, err)
		}
		if f.gateway.VerifyCallCount != 0 {
			t.Errorf("tx_ref %q: expected no gateway call", txRef)
		}
	}
}

func TestVerify_UnknownTxRef_NotFoundAndNoRows(t *testing.T) {
	t.Parallel()

	f := newPaymentFixture()

	_, err := f.service.Verify(context.Background(), "bk-missing-0000000000")
	if !errors.Is(err, repository.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if f.store.CountPayments() != 0 {
		t.Errorf("expected no rows to be created, got %d", f.store.CountPayments())
	}
	if f.gateway.VerifyCallCount != 0 {
		t.Error("expected no gateway call for an unknown tx_ref")
	}
}

func TestVerify_GatewayUnreachable_LeavesPaymentUnchanged(t *testing.T) {
	t.Parallel()

	f := newPaymentFixture()
	f.gateway.VerifyResult = nil
	f.gateway.VerifyErr = &gateway.TransportError{Op: gateway.OpVerify, Err: errors.New("i/o timeout")}
	payment := seedPendingPayment(f.store)

	_, err := f.service.Verify(context.Background(), payment.TxRef)

	var gwErr *service.GatewayError
	if !errors.As(err, &gwErr) {
		t.Fatalf("expected GatewayError, got %v", err)
	}
	if gwErr.Kind != service.GatewayNetwork {
		t.Errorf("expected network kind, got %s", gwErr.Kind)
	}
	if gwErr.Error() != "Network error: i/o timeout" {
		t.Errorf("unexpected message %q", gwErr.Error())
	}

	stored := f.store.Payment(payment.ID)
	if stored.Status != domain.PaymentStatusPending {
		t.Errorf("expected PENDING to be kept, got %s", stored.Status)
	}
	if len(stored.RawVerifyResponse) != 0 {
		t.Errorf("expected no raw verify response, got %s", stored.RawVerifyResponse)
	}
	if len(f.queue.Tasks()) != 0 {
		t.Error("expected no notification")
	}
}

func TestVerify_QueueFull_StillCompletes(t *testing.T) {
	t.Parallel()

	f := newPaymentFixture()
	f.queue.Reject = true
	payment := seedPendingPayment(f.store)

	verified, err := f.service.Verify(context.Background(), payment.TxRef)
	if err != nil {
		t.Fatalf("expected no error, got: %v", err)
	}
	if verified.Status != domain.PaymentStatusCompleted {
		t.Errorf("expected COMPLETED, got %s", verified.Status)
	}
}

func TestVerify_Concurrent_SingleTransitionAndOneConfirmation(t *testing.T) {
	t.Parallel()

	f := newPaymentFixture()
	payment := seedPendingPayment(f.store)

	const callers = 20
	var wg sync.WaitGroup
	errs := make(chan error, callers)

	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			verified, err := f.service.Verify(context.Background(), payment.TxRef)
			if err != nil {
				errs <- err
				return
			}
			if verified.Status != domain.PaymentStatusCompleted {
				errs <- errors.New("verify returned " + string(verified.Status))
			}
		}()
	}

	wg.Wait()
	close(errs)
	for err := range errs {
		t.Errorf("concurrent verify: %v", err)
	}

	if stored := f.store.Payment(payment.ID); stored.Status != domain.PaymentStatusCompleted {
		t.Errorf("expected COMPLETED, got %s", stored.Status)
	}
	if got := f.queue.Count(notify.KindPaymentConfirmation); got != 1 {
		t.Errorf("expected exactly 1 confirmation, got %d", got)
	}
	if f.repo.LockCallCount != callers {
		t.Errorf("expected %d locked verifications, got %d", callers, f.repo.LockCallCount)
	}
}

func TestVerify_SaveFails_ReturnsErrorAndNoConfirmation(t *testing.T) {
	t.Parallel()

	f := newPaymentFixture()
	payment := seedPendingPayment(f.store)
	f.repo.UpdateError = errors.New("connection reset")

	if _, err := f.service.Verify(context.Background(), payment.TxRef); err == nil {
		t.Fatal("expected error")
	}

	if stored := f.store.Payment(payment.ID); stored.Status != domain.PaymentStatusPending {
		t.Errorf("expected PENDING to be kept, got %s", stored.Status)
	}
	if len(f.queue.Tasks()) != 0 {
		t.Error("expected no notification when the status was not saved")
	}
}

func TestGetPayment(t *testing.T) {
	t.Parallel()

	f := newPaymentFixture()
	payment := seedPendingPayment(f.store)

	got, err := f.service.GetPayment(context.Background(), payment.ID)
	if err != nil {
		t.Fatalf("expected no error, got: %v", err)
	}
	if got.TxRef != payment.TxRef {
		t.Errorf("expected tx_ref %s, got %s", payment.TxRef, got.TxRef)
	}

	if _, err := f.service.GetPayment(context.Background(), uuid.New().String()); !errors.Is(err, repository.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
	if _, err := f.service.GetPayment(context.Background(), ""); !errors.Is(err, service.ErrInvalidPaymentID) {
		t.Errorf("expected ErrInvalidPaymentID, got %v", err)
	}
}
