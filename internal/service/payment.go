package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"travel/internal/config"
	"travel/internal/domain"
	"travel/internal/gateway"
	"travel/internal/repository"
	"travel/internal/telemetry"
)

// txRefEntropy is the number of random hex characters appended to a tx_ref.
const txRefEntropy = 10

// PaymentService runs the gateway initiate and verify flows.
type PaymentService struct {
	paymentRepo         repository.PaymentRepository
	provider            gateway.Provider
	notificationService *NotificationService
	gatewayCfg          config.GatewayConfig
	logger              *zap.Logger
	metrics             *telemetry.Metrics
}

// NewPaymentService creates a new PaymentService.
func NewPaymentService(
	paymentRepo repository.PaymentRepository,
	provider gateway.Provider,
	notificationService *NotificationService,
	gatewayCfg config.GatewayConfig,
	logger *zap.Logger,
	metrics *telemetry.Metrics,
) *PaymentService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PaymentService{
		paymentRepo:         paymentRepo,
		provider:            provider,
		notificationService: notificationService,
		gatewayCfg:          gatewayCfg,
		logger:              logger,
		metrics:             metrics,
	}
}

// InitiatePaymentRequest contains the parameters for starting a payment.
type InitiatePaymentRequest struct {
	BookingRef string           `json:"booking_ref" validate:"required,max=64,nocontrol"`
	Amount     *decimal.Decimal `json:"amount" validate:"required,gt=0,lte=9999999999.99"`
	Email      string           `json:"email" validate:"required,email"`
	Currency   string           `json:"currency" validate:"omitempty,max=8"`
	FirstName  string           `json:"first_name" validate:"max=100"`
	LastName   string           `json:"last_name" validate:"max=100"`
	// BookingID optionally links the payment to a stored booking.
	BookingID *string `json:"booking_id" validate:"omitempty,uuid"`
}

// InitiateResult is a payment the provider accepted, with its checkout redirect.
type InitiateResult struct {
	Payment     *domain.Payment
	CheckoutURL string
}

// Initiate records a PENDING payment and asks the gateway for a checkout URL.
// The payment row is written before the gateway call, so it can be found by
// tx_ref whatever the outcome.
func (s *PaymentService) Initiate(ctx context.Context, req InitiatePaymentRequest) (*InitiateResult, error) {
	if err := checkMoneyPlaces(validateStruct(req), "amount", req.Amount); err != nil {
		return nil, err
	}

	currency := strings.TrimSpace(req.Currency)
	if currency == "" {
		currency = s.gatewayCfg.DefaultCurrency
	}
	if currency == "" {
		currency = domain.DefaultCurrency
	}

	now := time.Now().UTC()
	payment := &domain.Payment{
		ID:            uuid.New().String(),
		BookingRef:    req.BookingRef,
		BookingID:     req.BookingID,
		TxRef:         NewTxRef(req.BookingRef),
		Amount:        *req.Amount,
		Currency:      currency,
		CustomerEmail: req.Email,
		Status:        domain.PaymentStatusPending,
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	if err := s.paymentRepo.Create(ctx, payment); err != nil {
		if errors.Is(err, repository.ErrInvalidReference) {
			return nil, fieldError("booking_id", "Booking does not exist.")
		}
		if errors.Is(err, repository.ErrOutOfRange) {
			return nil, outOfRangeField(err, "amount")
		}
		return nil, fmt.Errorf("create payment: %w", err)
	}
	s.metrics.PaymentTransition(string(domain.PaymentStatusPending))

	res, err := s.provider.Initialize(ctx, gateway.InitializeRequest{
		Amount:      payment.Amount.StringFixed(2),
		Currency:    payment.Currency,
		Email:       payment.CustomerEmail,
		FirstName:   req.FirstName,
		LastName:    req.LastName,
		TxRef:       payment.TxRef,
		CallbackURL: s.gatewayCfg.CallbackURL,
		ReturnURL:   s.gatewayCfg.ReturnURL,
	})

	// The request may have been abandoned while the gateway was slow; the
	// outcome must still be written.
	saveCtx := context.WithoutCancel(ctx)

	if err != nil {
		s.logger.Warn("gateway initialize failed",
			zap.String("tx_ref", payment.TxRef),
			zap.Error(err),
		)
		s.fail(saveCtx, payment)
		return nil, &GatewayError{Kind: GatewayNetwork, Err: err, Payment: payment}
	}

	payment.RawInitResponse = res.Raw
	if res.ProviderTxnID != "" {
		payment.ProviderTxnID = res.ProviderTxnID
	}

	if res.Rejected() {
		s.logger.Warn("gateway rejected initialize",
			zap.String("tx_ref", payment.TxRef),
			zap.Int("status_code", res.StatusCode),
		)
		s.fail(saveCtx, payment)
		return nil, &GatewayError{
			Kind:     GatewayRejected,
			Err:      fmt.Errorf("gateway returned status %d", res.StatusCode),
			Response: res.Raw,
			Payment:  payment,
		}
	}

	if err := s.paymentRepo.Update(saveCtx, payment); err != nil {
		return nil, fmt.Errorf("save payment: %w", err)
	}

	s.logger.Info("payment initiated",
		zap.String("payment_id", payment.ID),
		zap.String("tx_ref", payment.TxRef),
	)

	return &InitiateResult{Payment: payment, CheckoutURL: res.CheckoutURL}, nil
}

// Verify asks the gateway for the outcome of txRef and records it under a row
// lock. A transport failure leaves the stored status untouched.
func (s *PaymentService) Verify(ctx context.Context, txRef string) (*domain.Payment, error) {
	txRef = strings.TrimSpace(txRef)
	if txRef == "" {
		return nil, ErrTxRefRequired
	}

	var verified *domain.Payment
	var becameCompleted bool

	err := s.paymentRepo.LockByTxRef(ctx, txRef, func(ctx context.Context, payment *domain.Payment) error {
		res, err := s.provider.Verify(ctx, txRef)
		if err != nil {
			return &GatewayError{Kind: GatewayNetwork, Err: err}
		}

		previous := payment.Status
		payment.RawVerifyResponse = res.Raw
		if res.Successful() {
			payment.Status = domain.PaymentStatusCompleted
		} else {
			payment.Status = domain.PaymentStatusFailed
		}

		becameCompleted = payment.Status == domain.PaymentStatusCompleted && previous != domain.PaymentStatusCompleted
		verified = payment
		return nil
	})
	if err != nil {
		var gwErr *GatewayError
		if errors.As(err, &gwErr) {
			s.logger.Warn("gateway verify failed",
				zap.String("tx_ref", txRef),
				zap.Error(gwErr.Err),
			)
		}
		return nil, err
	}

	s.metrics.PaymentTransition(string(verified.Status))
	s.logger.Info("payment verified",
		zap.String("payment_id", verified.ID),
		zap.String("tx_ref", verified.TxRef),
		zap.String("status", string(verified.Status)),
	)

	if becameCompleted {
		s.notificationService.NotifyPaymentCompleted(ctx, verified)
	}

	return verified, nil
}

// GetPayment retrieves a payment by ID.
func (s *PaymentService) GetPayment(ctx context.Context, paymentID string) (*domain.Payment, error) {
	if paymentID == "" {
		return nil, ErrInvalidPaymentID
	}

	return s.paymentRepo.GetByID(ctx, paymentID)
}

// ListPayments returns the most recent payments.
func (s *PaymentService) ListPayments(ctx context.Context) ([]*domain.Payment, error) {
	return s.paymentRepo.GetAll(ctx)
}

// fail marks the payment FAILED and saves it. A save error is logged; the
// caller is already reporting the gateway failure.
func (s *PaymentService) fail(ctx context.Context, payment *domain.Payment) {
	payment.Status = domain.PaymentStatusFailed
	if err := s.paymentRepo.Update(ctx, payment); err != nil {
		s.logger.Error("failed to save failed payment",
			zap.String("payment_id", payment.ID),
			zap.String("tx_ref", payment.TxRef),
			zap.Error(err),
		)
		return
	}
	s.metrics.PaymentTransition(string(domain.PaymentStatusFailed))
}

// NewTxRef builds a merchant transaction reference: "bk-<bookingRef>-<10 hex>".
func NewTxRef(bookingRef string) string {
	hex := strings.ReplaceAll(uuid.New().String(), "-", "")
	return "bk-" + bookingRef + "-" + hex[:txRefEntropy]
}
