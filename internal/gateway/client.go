// Package gateway is the outbound client for the payment provider's
// transaction initialize and verify endpoints.
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/newrelic/go-agent/v3/newrelic"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"travel/internal/config"
	"travel/internal/telemetry"
)

const (
	initializePath = "/v1/transaction/initialize"
	verifyPath     = "/v1/transaction/verify/"

	// maxBodyBytes caps how much of a provider response is read and stored.
	maxBodyBytes = 1 << 20
)

// Operation names used for spans and metrics.
const (
	OpInitialize = "initialize"
	OpVerify     = "verify"
)

// Provider is the set of gateway calls the payment flows depend on.
type Provider interface {
	Initialize(ctx context.Context, req InitializeRequest) (*InitializeResult, error)
	Verify(ctx context.Context, txRef string) (*VerifyResult, error)
}

// InitializeRequest is the JSON body sent to the initialize endpoint.
type InitializeRequest struct {
	Amount      string `json:"amount"`
	Currency    string `json:"currency"`
	Email       string `json:"email"`
	FirstName   string `json:"first_name"`
	LastName    string `json:"last_name"`
	TxRef       string `json:"tx_ref"`
	CallbackURL string `json:"callback_url"`
	ReturnURL   string `json:"return_url"`
}

// InitializeResult is a completed initialize round trip. StatusCode may be an error status.
type InitializeResult struct {
	StatusCode    int
	Raw           json.RawMessage
	CheckoutURL   string
	ProviderTxnID string
}

// Rejected reports whether the provider refused the transaction or gave no checkout URL.
func (r *InitializeResult) Rejected() bool {
	return r.StatusCode >= http.StatusBadRequest || r.CheckoutURL == ""
}

// VerifyResult is a completed verify round trip.
type VerifyResult struct {
	StatusCode int
	Raw        json.RawMessage
	Status     string
	DataStatus string
}

// Successful reports whether either status location says the payment went through.
func (r *VerifyResult) Successful() bool {
	return isSuccessStatus(r.Status) || isSuccessStatus(r.DataStatus)
}

// TransportError is returned when no usable response was received:
// connection failures, timeouts and bodies that are not JSON.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return e.Err.Error()
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// Client calls the payment provider over HTTP with bearer-token auth.
type Client struct {
	baseURL       string
	secretKey     string
	initTimeout   time.Duration
	verifyTimeout time.Duration
	httpClient    *http.Client
	metrics       *telemetry.Metrics
}

// Option customizes a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithMetrics records call counts and latency.
func WithMetrics(m *telemetry.Metrics) Option {
	return func(c *Client) { c.metrics = m }
}

// NewClient creates a gateway client from configuration.
func NewClient(cfg config.GatewayConfig, opts ...Option) *Client {
	c := &Client{
		baseURL:       cfg.BaseURL,
		secretKey:     cfg.SecretKey,
		initTimeout:   cfg.InitTimeout,
		verifyTimeout: cfg.VerifyTimeout,
		httpClient:    &http.Client{},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Initialize starts a transaction and returns the provider's answer.
func (c *Client) Initialize(ctx context.Context, req InitializeRequest) (*InitializeResult, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, err
	}

	status, raw, err := c.do(ctx, OpInitialize, http.MethodPost, c.baseURL+initializePath, body, c.initTimeout)
	if err != nil {
		return nil, err
	}

	obj, err := decodeObject(raw)
	if err != nil {
		return nil, &TransportError{Op: OpInitialize, Err: err}
	}

	data := obj.object("data")
	return &InitializeResult{
		StatusCode:    status,
		Raw:           raw,
		CheckoutURL:   data.firstString(checkoutURLKeys),
		ProviderTxnID: data.firstString(providerTxnIDKeys),
	}, nil
}

// Verify asks the provider for the outcome of the transaction txRef.
func (c *Client) Verify(ctx context.Context, txRef string) (*VerifyResult, error) {
	endpoint := c.baseURL + verifyPath + url.PathEscape(txRef)

	status, raw, err := c.do(ctx, OpVerify, http.MethodGet, endpoint, nil, c.verifyTimeout)
	if err != nil {
		return nil, err
	}

	obj, err := decodeObject(raw)
	if err != nil {
		return nil, &TransportError{Op: OpVerify, Err: err}
	}

	return &VerifyResult{
		StatusCode: status,
		Raw:        raw,
		Status:     obj.string(statusKey),
		DataStatus: obj.object("data").string(statusKey),
	}, nil
}

// do performs one request under timeout and returns the status and raw body.
func (c *Client) do(ctx context.Context, op, method, endpoint string, body []byte, timeout time.Duration) (int, json.RawMessage, error) {
	ctx, span := telemetry.Tracer().Start(ctx, "gateway."+op)
	defer span.End()
	span.SetAttributes(
		attribute.String("http.method", method),
		attribute.String("http.url", endpoint),
	)

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	start := time.Now()
	status, raw, err := c.roundTrip(ctx, op, method, endpoint, body)
	elapsed := time.Since(start)

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		c.metrics.ObserveGatewayCall(op, "network_error", elapsed)
		return 0, nil, err
	}

	span.SetAttributes(attribute.Int("http.status_code", status))
	outcome := "ok"
	if status >= http.StatusBadRequest {
		outcome = "http_error"
		span.SetStatus(codes.Error, http.StatusText(status))
	}
	c.metrics.ObserveGatewayCall(op, outcome, elapsed)

	return status, raw, nil
}

func (c *Client) roundTrip(ctx context.Context, op, method, endpoint string, body []byte) (int, json.RawMessage, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return 0, nil, &TransportError{Op: op, Err: err}
	}
	req.Header.Set("Authorization", "Bearer "+c.secretKey)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	segment := newrelic.StartExternalSegment(newrelic.FromContext(ctx), req)
	resp, err := c.httpClient.Do(req)
	segment.Response = resp
	segment.End()
	if err != nil {
		return 0, nil, &TransportError{Op: op, Err: err}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return 0, nil, &TransportError{Op: op, Err: fmt.Errorf("read response body: %w", err)}
	}

	if !json.Valid(data) {
		return 0, nil, &TransportError{Op: op, Err: fmt.Errorf("invalid JSON response (status %d)", resp.StatusCode)}
	}

	return resp.StatusCode, json.RawMessage(data), nil
}

// Ensure Client implements Provider.
var _ Provider = (*Client)(nil)
