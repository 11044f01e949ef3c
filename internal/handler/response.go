package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"travel/internal/repository"
	"travel/internal/service"
)

// ErrorResponse represents an error response.
type ErrorResponse struct {
	Detail string            `json:"detail"`
	Errors map[string]string `json:"errors,omitempty"`
	// ChapaResponse carries the provider's raw body when it rejected a payment.
	ChapaResponse json.RawMessage `json:"chapa_response,omitempty"`
}

// respondError sends an error response with the appropriate HTTP status code.
func respondError(c *gin.Context, logger *zap.Logger, err error) {
	code := mapErrorToHTTPStatus(err)
	resp := ErrorResponse{Detail: err.Error()}

	var verr *service.ValidationError
	var gwErr *service.GatewayError

	switch {
	case errors.As(err, &verr):
		resp.Detail = "Invalid input."
		resp.Errors = verr.Fields
	case errors.As(err, &gwErr):
		resp.Detail = gwErr.Error()
		if gwErr.Kind == service.GatewayRejected {
			resp.ChapaResponse = gwErr.Response
		}
	case errors.Is(err, repository.ErrNotFound):
		resp.Detail = "Not found."
	case errors.Is(err, repository.ErrOutOfRange):
		resp.Detail = "Invalid input."
	case code == http.StatusInternalServerError:
		if logger != nil {
			logger.Error("request failed",
				zap.String("method", c.Request.Method),
				zap.String("path", c.FullPath()),
				zap.Error(err),
			)
		}
		resp.Detail = "internal error"
	}

	c.JSON(code, resp)
}

// respondBindError reports a request body that could not be decoded.
func respondBindError(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, ErrorResponse{Detail: "Invalid request body: " + err.Error()})
}

// respondJSON sends a JSON response with the given status code.
func respondJSON(c *gin.Context, code int, data any) {
	c.JSON(code, data)
}

// mapErrorToHTTPStatus maps service/repository errors to HTTP status codes.
func mapErrorToHTTPStatus(err error) int {
	var verr *service.ValidationError
	var gwErr *service.GatewayError

	switch {
	// Not found errors
	case errors.Is(err, repository.ErrNotFound):
		return http.StatusNotFound

	// Validation errors - Bad Request
	case errors.As(err, &verr),
		errors.Is(err, repository.ErrOutOfRange),
		errors.Is(err, service.ErrTxRefRequired),
		errors.Is(err, service.ErrInvalidPaymentID),
		errors.Is(err, service.ErrInvalidListingID),
		errors.Is(err, service.ErrInvalidBookingID),
		errors.Is(err, service.ErrInvalidReviewID):
		return http.StatusBadRequest

	// Conflict errors
	case errors.Is(err, repository.ErrDuplicate):
		return http.StatusConflict

	// Upstream payment gateway failures
	case errors.As(err, &gwErr):
		return http.StatusBadGateway

	// Default to internal server error
	default:
		return http.StatusInternalServerError
	}
}
