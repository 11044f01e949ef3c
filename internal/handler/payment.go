package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"travel/internal/domain"
	"travel/internal/repository"
	"travel/internal/service"
)

// PaymentHandler handles HTTP requests for payments.
type PaymentHandler struct {
	paymentService *service.PaymentService
	logger         *zap.Logger
}

// NewPaymentHandler creates a new PaymentHandler.
func NewPaymentHandler(paymentService *service.PaymentService, logger *zap.Logger) *PaymentHandler {
	return &PaymentHandler{paymentService: paymentService, logger: logger}
}

// PaymentResponse is the HTTP response for payment operations.
type PaymentResponse struct {
	ID                string          `json:"id"`
	BookingRef        string          `json:"booking_ref"`
	BookingID         *string         `json:"booking_id"`
	TxRef             string          `json:"tx_ref"`
	ProviderTxnID     string          `json:"chapa_txn_id"`
	Amount            string          `json:"amount"`
	Currency          string          `json:"currency"`
	CustomerEmail     string          `json:"customer_email"`
	Status            string          `json:"status"`
	RawInitResponse   json.RawMessage `json:"raw_init_response"`
	RawVerifyResponse json.RawMessage `json:"raw_verify_response"`
	CreatedAt         time.Time       `json:"created_at"`
	UpdatedAt         time.Time       `json:"updated_at"`
}

// InitiatePaymentResponse is the HTTP response for a started payment.
type InitiatePaymentResponse struct {
	Payment     PaymentResponse `json:"payment"`
	CheckoutURL string          `json:"checkout_url"`
}

func toPaymentResponse(p *domain.Payment) PaymentResponse {
	return PaymentResponse{
		ID:                p.ID,
		BookingRef:        p.BookingRef,
		BookingID:         p.BookingID,
		TxRef:             p.TxRef,
		ProviderTxnID:     p.ProviderTxnID,
		Amount:            p.Amount.StringFixed(2),
		Currency:          p.Currency,
		CustomerEmail:     p.CustomerEmail,
		Status:            string(p.Status),
		RawInitResponse:   rawOrNull(p.RawInitResponse),
		RawVerifyResponse: rawOrNull(p.RawVerifyResponse),
		CreatedAt:         p.CreatedAt,
		UpdatedAt:         p.UpdatedAt,
	}
}

// rawOrNull renders a missing provider body as JSON null.
func rawOrNull(raw json.RawMessage) json.RawMessage {
	if len(raw) == 0 {
		return json.RawMessage("null")
	}
	return raw
}

// InitiatePayment handles POST /v1/payments/initiate
func (h *PaymentHandler) InitiatePayment(c *gin.Context) {
	var req service.InitiatePaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}

	result, err := h.paymentService.Initiate(c.Request.Context(), req)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	respondJSON(c, http.StatusCreated, InitiatePaymentResponse{
		Payment:     toPaymentResponse(result.Payment),
		CheckoutURL: result.CheckoutURL,
	})
}

// VerifyPayment handles GET /v1/payments/verify?tx_ref=
func (h *PaymentHandler) VerifyPayment(c *gin.Context) {
	payment, err := h.paymentService.Verify(c.Request.Context(), c.Query("tx_ref"))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			c.JSON(http.StatusNotFound, ErrorResponse{Detail: "Payment not found"})
			return
		}
		respondError(c, h.logger, err)
		return
	}

	respondJSON(c, http.StatusOK, toPaymentResponse(payment))
}

// ListPayments handles GET /v1/payments
func (h *PaymentHandler) ListPayments(c *gin.Context) {
	payments, err := h.paymentService.ListPayments(c.Request.Context())
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	resp := make([]PaymentResponse, 0, len(payments))
	for _, p := range payments {
		resp = append(resp, toPaymentResponse(p))
	}
	respondJSON(c, http.StatusOK, resp)
}

// GetPayment handles GET /v1/payments/:id
func (h *PaymentHandler) GetPayment(c *gin.Context) {
	payment, err := h.paymentService.GetPayment(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	respondJSON(c, http.StatusOK, toPaymentResponse(payment))
}
