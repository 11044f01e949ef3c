package app

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"travel/internal/config"
	"travel/internal/handler"
	"travel/internal/service"
	"travel/internal/telemetry"
	"travel/internal/tests"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type routerFixture struct {
	store   *tests.MockStore
	gateway *tests.MockGateway
	queue   *tests.MockQueue
	router  *gin.Engine
}

func newRouterFixture() *routerFixture {
	store := tests.NewMockStore()
	gw := tests.NewMockGateway()
	queue := tests.NewMockQueue()
	logger := zap.NewNop()
	registry := prometheus.NewRegistry()
	metrics := telemetry.NewMetrics(registry)

	notifications := service.NewNotificationService(queue, logger)
	listingService := service.NewListingService(store.Listings(), nil, logger)
	bookingService := service.NewBookingService(store.Bookings(), store.Listings(), notifications, logger)
	reviewService := service.NewReviewService(store.Reviews(), store.Listings())
	paymentService := service.NewPaymentService(store.Payments(), gw, notifications, config.GatewayConfig{DefaultCurrency: "ETB"}, logger, metrics)

	router := NewRouter(RouterDeps{
		PaymentHandler: handler.NewPaymentHandler(paymentService, logger),
		ListingHandler: handler.NewListingHandler(listingService, bookingService, reviewService, logger),
		BookingHandler: handler.NewBookingHandler(bookingService, logger),
		ReviewHandler:  handler.NewReviewHandler(reviewService, logger),
		Logger:         logger,
		Metrics:        metrics,
		Gatherer:       registry,
	})

	return &routerFixture{store: store, gateway: gw, queue: queue, router: router}
}

func (f *routerFixture) do(t *testing.T, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()

	var reader *bytes.Reader
	if body != "" {
		reader = bytes.NewReader([]byte(body))
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()

	var out map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode %q: %v", rec.Body.String(), err)
	}
	return out
}

func TestHealth(t *testing.T) {
	t.Parallel()

	f := newRouterFixture()
	rec := f.do(t, http.MethodGet, "/health", "")

	if rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rec.Code)
	}
	if rec.Header().Get("X-Request-ID") == "" {
		t.Error("expected a request id header")
	}
}

func TestInitiatePayment_Created(t *testing.T) {
	t.Parallel()

	f := newRouterFixture()
	rec := f.do(t, http.MethodPost, "/v1/payments/initiate",
		`{"booking_ref":"BK123","amount":"100","email":"guest@example.com","first_name":"Abebe"}`)

	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}

	body := decode(t, rec)
	if body["checkout_url"] != "https://checkout.example.com/pay/abc" {
		t.Errorf("unexpected checkout_url %v", body["checkout_url"])
	}

	payment, ok := body["payment"].(map[string]any)
	if !ok {
		t.Fatalf("expected payment object, got %v", body["payment"])
	}
	if payment["status"] != "PENDING" {
		t.Errorf("expected PENDING, got %v", payment["status"])
	}
	if payment["amount"] != "100.00" {
		t.Errorf("expected amount 100.00, got %v", payment["amount"])
	}
	if payment["currency"] != "ETB" {
		t.Errorf("expected ETB, got %v", payment["currency"])
	}
	if payment["raw_verify_response"] != nil {
		t.Errorf("expected null raw_verify_response, got %v", payment["raw_verify_response"])
	}
	if !strings.HasPrefix(payment["tx_ref"].(string), "bk-BK123-") {
		t.Errorf("unexpected tx_ref %v", payment["tx_ref"])
	}
}

func TestInitiatePayment_InvalidInput(t *testing.T) {
	t.Parallel()

	f := newRouterFixture()
	rec := f.do(t, http.MethodPost, "/v1/payments/initiate", `{"amount":0,"email":"nope"}`)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}

	body := decode(t, rec)
	if body["detail"] != "Invalid input." {
		t.Errorf("unexpected detail %v", body["detail"])
	}
	errs, _ := body["errors"].(map[string]any)
	for _, field := range []string{"booking_ref", "amount", "email"} {
		if _, ok := errs[field]; !ok {
			t.Errorf("expected error for %s, got %v", field, errs)
		}
	}
	if f.store.CountPayments() != 0 {
		t.Errorf("expected no payments, got %d", f.store.CountPayments())
	}
}

func TestInitiatePayment_MalformedBody(t *testing.T) {
	t.Parallel()

	f := newRouterFixture()
	rec := f.do(t, http.MethodPost, "/v1/payments/initiate", `{"booking_ref":`)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", rec.Code)
	}
}

func TestInitiatePayment_GatewayFailures(t *testing.T) {
	t.Parallel()

	t.Run("rejected", func(t *testing.T) {
		t.Parallel()

		f := newRouterFixture()
		f.gateway.InitResult = tests.RejectedInit(500, `{"message":"boom"}`)

		rec := f.do(t, http.MethodPost, "/v1/payments/initiate",
			`{"booking_ref":"BK1","amount":50,"email":"guest@example.com"}`)

		if rec.Code != http.StatusBadGateway {
			t.Fatalf("expected 502, got %d", rec.Code)
		}
		body := decode(t, rec)
		if body["detail"] != "Failed to initialize payment" {
			t.Errorf("unexpected detail %v", body["detail"])
		}
		provider, _ := body["chapa_response"].(map[string]any)
		if provider["message"] != "boom" {
			t.Errorf("expected provider body, got %v", body["chapa_response"])
		}
	})

	t.Run("unreachable", func(t *testing.T) {
		t.Parallel()

		f := newRouterFixture()
		f.gateway.InitResult = nil
		f.gateway.InitErr = errors.New("connection refused")

		rec := f.do(t, http.MethodPost, "/v1/payments/initiate",
			`{"booking_ref":"BK1","amount":50,"email":"guest@example.com"}`)

		if rec.Code != http.StatusBadGateway {
			t.Fatalf("expected 502, got %d", rec.Code)
		}
		body := decode(t, rec)
		if body["detail"] != "Network error: connection refused" {
			t.Errorf("unexpected detail %v", body["detail"])
		}
		if _, ok := body["chapa_response"]; ok {
			t.Error("expected no provider body for a network error")
		}
	})
}

func TestVerifyPayment(t *testing.T) {
	t.Parallel()

	f := newRouterFixture()

	rec := f.do(t, http.MethodGet, "/v1/payments/verify", "")
	if rec.Code != http.StatusBadRequest {
		t.Errorf("missing tx_ref: expected 400, got %d", rec.Code)
	}

	rec = f.do(t, http.MethodGet, "/v1/payments/verify?tx_ref=bk-none-0000000000", "")
	if rec.Code != http.StatusNotFound {
		t.Errorf("unknown tx_ref: expected 404, got %d", rec.Code)
	}
	if body := decode(t, rec); body["detail"] != "Payment not found" {
		t.Errorf("unexpected detail %v", body["detail"])
	}
	if f.store.CountPayments() != 0 {
		t.Error("expected verify of an unknown tx_ref to create nothing")
	}

	rec = f.do(t, http.MethodPost, "/v1/payments/initiate",
		`{"booking_ref":"BK9","amount":"75.5","email":"guest@example.com"}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("initiate: expected 201, got %d", rec.Code)
	}
	txRef := decode(t, rec)["payment"].(map[string]any)["tx_ref"].(string)

	rec = f.do(t, http.MethodGet, "/v1/payments/verify?tx_ref="+txRef, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("verify: expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	body := decode(t, rec)
	if body["status"] != "COMPLETED" {
		t.Errorf("expected COMPLETED, got %v", body["status"])
	}
	if body["raw_verify_response"] == nil {
		t.Error("expected raw verify response in body")
	}
	if len(f.queue.Tasks()) != 1 {
		t.Errorf("expected 1 queued email, got %d", len(f.queue.Tasks()))
	}
}

func TestListingLifecycle(t *testing.T) {
	t.Parallel()

	f := newRouterFixture()

	rec := f.do(t, http.MethodPost, "/v1/listings",
		`{"title":"Cabin","description":"By the lake","location":"Bishoftu","price_per_night":"120"}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create: expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	listing := decode(t, rec)
	id := listing["id"].(string)
	if listing["price_per_night"] != "120.00" {
		t.Errorf("expected price 120.00, got %v", listing["price_per_night"])
	}

	rec = f.do(t, http.MethodPost, "/v1/bookings",
		`{"listing_id":"`+id+`","guest_name":"Sara","guest_email":"sara@example.com","check_in":"2026-03-01","check_out":"2026-03-03"}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("booking: expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	if nights := decode(t, rec)["nights"]; nights != float64(2) {
		t.Errorf("expected 2 nights, got %v", nights)
	}

	rec = f.do(t, http.MethodPost, "/v1/reviews",
		`{"listing_id":"`+id+`","reviewer_name":"Sara","rating":5,"comment":"Lovely"}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("review: expected 201, got %d: %s", rec.Code, rec.Body.String())
	}

	rec = f.do(t, http.MethodGet, "/v1/listings/"+id+"/bookings", "")
	var bookings []map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &bookings); err != nil || len(bookings) != 1 {
		t.Errorf("expected 1 nested booking, got %s", rec.Body.String())
	}

	rec = f.do(t, http.MethodPatch, "/v1/listings/"+id, `{"title":"Hilltop Cabin"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("patch: expected 200, got %d", rec.Code)
	}
	if body := decode(t, rec); body["title"] != "Hilltop Cabin" || body["location"] != "Bishoftu" {
		t.Errorf("unexpected patched listing %v", body)
	}

	rec = f.do(t, http.MethodDelete, "/v1/listings/"+id, "")
	if rec.Code != http.StatusNoContent {
		t.Fatalf("delete: expected 204, got %d", rec.Code)
	}
	if f.store.CountBookings() != 0 || f.store.CountReviews() != 0 {
		t.Error("expected bookings and reviews to go with the listing")
	}

	rec = f.do(t, http.MethodGet, "/v1/listings/"+id, "")
	if rec.Code != http.StatusNotFound {
		t.Errorf("get after delete: expected 404, got %d", rec.Code)
	}
	if body := decode(t, rec); body["detail"] != "Not found." {
		t.Errorf("unexpected detail %v", body["detail"])
	}
}

func TestCreateBooking_UnknownListing(t *testing.T) {
	t.Parallel()

	f := newRouterFixture()
	rec := f.do(t, http.MethodPost, "/v1/bookings",
		`{"listing_id":"`+uuid.New().String()+`","guest_name":"Sara","guest_email":"sara@example.com","check_in":"2026-03-01","check_out":"2026-03-03"}`)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
	errs, _ := decode(t, rec)["errors"].(map[string]any)
	if _, ok := errs["listing_id"]; !ok {
		t.Errorf("expected listing_id error, got %v", errs)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	t.Parallel()

	f := newRouterFixture()
	f.do(t, http.MethodGet, "/health", "")

	rec := f.do(t, http.MethodGet, "/metrics", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "http_request_duration_seconds") {
		t.Errorf("expected request histogram in metrics output")
	}
}
