package tests

import (
	"context"
	"encoding/json"
	"sort"
	"sync"
	"sync/atomic"

	"travel/internal/domain"
	"travel/internal/gateway"
	"travel/internal/notify"
	"travel/internal/redis"
	"travel/internal/repository"
)

// ──────────────────────────────────────────────
// MOCK STORE
// ──────────────────────────────────────────────

// MockStore keeps listings, bookings, reviews and payments in memory and
// applies the same referential rules as the PostgreSQL schema: deleting a
// listing removes its bookings and reviews, deleting a booking clears
// payment.booking_id, and writes pointing at missing rows fail with
// repository.ErrInvalidReference.
type MockStore struct {
	mu       sync.RWMutex
	listings map[string]*domain.Listing
	bookings map[string]*domain.Booking
	reviews  map[string]*domain.Review
	payments map[string]*domain.Payment
	txRefs   map[string]string

	rowLocks sync.Map
}

// NewMockStore creates an empty store.
func NewMockStore() *MockStore {
	return &MockStore{
		listings: make(map[string]*domain.Listing),
		bookings: make(map[string]*domain.Booking),
		reviews:  make(map[string]*domain.Review),
		payments: make(map[string]*domain.Payment),
		txRefs:   make(map[string]string),
	}
}

// Listings returns the listing repository view of the store.
func (s *MockStore) Listings() *MockListingRepository {
	return &MockListingRepository{store: s}
}

// Bookings returns the booking repository view of the store.
func (s *MockStore) Bookings() *MockBookingRepository {
	return &MockBookingRepository{store: s}
}

// Reviews returns the review repository view of the store.
func (s *MockStore) Reviews() *MockReviewRepository {
	return &MockReviewRepository{store: s}
}

// Payments returns the payment repository view of the store.
func (s *MockStore) Payments() *MockPaymentRepository {
	return &MockPaymentRepository{store: s}
}

// AddListing inserts a listing directly.
func (s *MockStore) AddListing(listing *domain.Listing) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *listing
	s.listings[listing.ID] = &cp
}

// AddBooking inserts a booking directly, ignoring the listing reference.
func (s *MockStore) AddBooking(booking *domain.Booking) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *booking
	s.bookings[booking.ID] = &cp
}

// AddReview inserts a review directly, ignoring the listing reference.
func (s *MockStore) AddReview(review *domain.Review) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *review
	s.reviews[review.ID] = &cp
}

// AddPayment inserts a payment directly.
func (s *MockStore) AddPayment(payment *domain.Payment) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.payments[payment.ID] = copyPayment(payment)
	s.txRefs[payment.TxRef] = payment.ID
}

// Payment returns a copy of the stored payment, or nil.
func (s *MockStore) Payment(id string) *domain.Payment {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if p, ok := s.payments[id]; ok {
		return copyPayment(p)
	}
	return nil
}

// PaymentByTxRef returns a copy of the stored payment, or nil.
func (s *MockStore) PaymentByTxRef(txRef string) *domain.Payment {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if id, ok := s.txRefs[txRef]; ok {
		return copyPayment(s.payments[id])
	}
	return nil
}

// CountPayments returns the number of stored payments.
func (s *MockStore) CountPayments() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.payments)
}

// CountBookings returns the number of stored bookings.
func (s *MockStore) CountBookings() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.bookings)
}

// CountReviews returns the number of stored reviews.
func (s *MockStore) CountReviews() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.reviews)
}

func (s *MockStore) rowLock(txRef string) *sync.Mutex {
	lock, _ := s.rowLocks.LoadOrStore(txRef, &sync.Mutex{})
	return lock.(*sync.Mutex)
}

func copyPayment(p *domain.Payment) *domain.Payment {
	cp := *p
	if p.BookingID != nil {
		id := *p.BookingID
		cp.BookingID = &id
	}
	cp.RawInitResponse = append(json.RawMessage(nil), p.RawInitResponse...)
	cp.RawVerifyResponse = append(json.RawMessage(nil), p.RawVerifyResponse...)
	if len(cp.RawInitResponse) == 0 {
		cp.RawInitResponse = nil
	}
	if len(cp.RawVerifyResponse) == 0 {
		cp.RawVerifyResponse = nil
	}
	return &cp
}

// ──────────────────────────────────────────────
// MOCK LISTING REPOSITORY
// ──────────────────────────────────────────────

// MockListingRepository is a mock implementation of repository.ListingRepository.
type MockListingRepository struct {
	store *MockStore

	GetByIDCallCount int32

	// AfterGetByID runs after a row is read, before it is returned.
	AfterGetByID func(id string)
}

var _ repository.ListingRepository = (*MockListingRepository)(nil)

func (m *MockListingRepository) Create(ctx context.Context, listing *domain.Listing) error {
	m.store.mu.Lock()
	defer m.store.mu.Unlock()
	if _, ok := m.store.listings[listing.ID]; ok {
		return repository.ErrDuplicate
	}
	cp := *listing
	m.store.listings[listing.ID] = &cp
	return nil
}

func (m *MockListingRepository) GetByID(ctx context.Context, id string) (*domain.Listing, error) {
	atomic.AddInt32(&m.GetByIDCallCount, 1)
	m.store.mu.RLock()
	l, ok := m.store.listings[id]
	var cp domain.Listing
	if ok {
		cp = *l
	}
	m.store.mu.RUnlock()
	if !ok {
		return nil, repository.ErrNotFound
	}
	if m.AfterGetByID != nil {
		m.AfterGetByID(id)
	}
	return &cp, nil
}

func (m *MockListingRepository) GetAll(ctx context.Context) ([]*domain.Listing, error) {
	m.store.mu.RLock()
	defer m.store.mu.RUnlock()
	result := make([]*domain.Listing, 0, len(m.store.listings))
	for _, l := range m.store.listings {
		cp := *l
		result = append(result, &cp)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].CreatedAt.After(result[j].CreatedAt) })
	return result, nil
}

func (m *MockListingRepository) Update(ctx context.Context, listing *domain.Listing) error {
	m.store.mu.Lock()
	defer m.store.mu.Unlock()
	if _, ok := m.store.listings[listing.ID]; !ok {
		return repository.ErrNotFound
	}
	cp := *listing
	m.store.listings[listing.ID] = &cp
	return nil
}

// Delete removes the listing and cascades to its bookings and reviews.
func (m *MockListingRepository) Delete(ctx context.Context, id string) error {
	m.store.mu.Lock()
	defer m.store.mu.Unlock()
	if _, ok := m.store.listings[id]; !ok {
		return repository.ErrNotFound
	}
	delete(m.store.listings, id)

	for bookingID, b := range m.store.bookings {
		if b.ListingID == id {
			m.store.deleteBookingLocked(bookingID)
		}
	}
	for reviewID, r := range m.store.reviews {
		if r.ListingID == id {
			delete(m.store.reviews, reviewID)
		}
	}
	return nil
}

// deleteBookingLocked removes a booking and clears payment references to it.
// Callers hold s.mu.
func (s *MockStore) deleteBookingLocked(id string) {
	delete(s.bookings, id)
	for _, p := range s.payments {
		if p.BookingID != nil && *p.BookingID == id {
			p.BookingID = nil
		}
	}
}

// ──────────────────────────────────────────────
// MOCK BOOKING REPOSITORY
// ──────────────────────────────────────────────

// MockBookingRepository is a mock implementation of repository.BookingRepository.
type MockBookingRepository struct {
	store *MockStore
}

var _ repository.BookingRepository = (*MockBookingRepository)(nil)

func (m *MockBookingRepository) Create(ctx context.Context, booking *domain.Booking) error {
	m.store.mu.Lock()
	defer m.store.mu.Unlock()
	if _, ok := m.store.listings[booking.ListingID]; !ok {
		return repository.ErrInvalidReference
	}
	cp := *booking
	m.store.bookings[booking.ID] = &cp
	return nil
}

func (m *MockBookingRepository) GetByID(ctx context.Context, id string) (*domain.Booking, error) {
	m.store.mu.RLock()
	defer m.store.mu.RUnlock()
	b, ok := m.store.bookings[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *b
	return &cp, nil
}

func (m *MockBookingRepository) GetAll(ctx context.Context) ([]*domain.Booking, error) {
	return m.filter(func(*domain.Booking) bool { return true }), nil
}

func (m *MockBookingRepository) GetByListingID(ctx context.Context, listingID string) ([]*domain.Booking, error) {
	return m.filter(func(b *domain.Booking) bool { return b.ListingID == listingID }), nil
}

func (m *MockBookingRepository) Update(ctx context.Context, booking *domain.Booking) error {
	m.store.mu.Lock()
	defer m.store.mu.Unlock()
	if _, ok := m.store.bookings[booking.ID]; !ok {
		return repository.ErrNotFound
	}
	if _, ok := m.store.listings[booking.ListingID]; !ok {
		return repository.ErrInvalidReference
	}
	cp := *booking
	m.store.bookings[booking.ID] = &cp
	return nil
}

func (m *MockBookingRepository) Delete(ctx context.Context, id string) error {
	m.store.mu.Lock()
	defer m.store.mu.Unlock()
	if _, ok := m.store.bookings[id]; !ok {
		return repository.ErrNotFound
	}
	m.store.deleteBookingLocked(id)
	return nil
}

func (m *MockBookingRepository) filter(keep func(*domain.Booking) bool) []*domain.Booking {
	m.store.mu.RLock()
	defer m.store.mu.RUnlock()
	result := make([]*domain.Booking, 0)
	for _, b := range m.store.bookings {
		if keep(b) {
			cp := *b
			result = append(result, &cp)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].CreatedAt.After(result[j].CreatedAt) })
	return result
}

// ──────────────────────────────────────────────
// MOCK REVIEW REPOSITORY
// ──────────────────────────────────────────────

// MockReviewRepository is a mock implementation of repository.ReviewRepository.
type MockReviewRepository struct {
	store *MockStore
}

var _ repository.ReviewRepository = (*MockReviewRepository)(nil)

func (m *MockReviewRepository) Create(ctx context.Context, review *domain.Review) error {
	m.store.mu.Lock()
	defer m.store.mu.Unlock()
	if _, ok := m.store.listings[review.ListingID]; !ok {
		return repository.ErrInvalidReference
	}
	cp := *review
	m.store.reviews[review.ID] = &cp
	return nil
}

func (m *MockReviewRepository) GetByID(ctx context.Context, id string) (*domain.Review, error) {
	m.store.mu.RLock()
	defer m.store.mu.RUnlock()
	r, ok := m.store.reviews[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *r
	return &cp, nil
}

func (m *MockReviewRepository) GetAll(ctx context.Context) ([]*domain.Review, error) {
	return m.filter(func(*domain.Review) bool { return true }), nil
}

func (m *MockReviewRepository) GetByListingID(ctx context.Context, listingID string) ([]*domain.Review, error) {
	return m.filter(func(r *domain.Review) bool { return r.ListingID == listingID }), nil
}

func (m *MockReviewRepository) Update(ctx context.Context, review *domain.Review) error {
	m.store.mu.Lock()
	defer m.store.mu.Unlock()
	if _, ok := m.store.reviews[review.ID]; !ok {
		return repository.ErrNotFound
	}
	if _, ok := m.store.listings[review.ListingID]; !ok {
		return repository.ErrInvalidReference
	}
	cp := *review
	m.store.reviews[review.ID] = &cp
	return nil
}

func (m *MockReviewRepository) Delete(ctx context.Context, id string) error {
	m.store.mu.Lock()
	defer m.store.mu.Unlock()
	if _, ok := m.store.reviews[id]; !ok {
		return repository.ErrNotFound
	}
	delete(m.store.reviews, id)
	return nil
}

func (m *MockReviewRepository) filter(keep func(*domain.Review) bool) []*domain.Review {
	m.store.mu.RLock()
	defer m.store.mu.RUnlock()
	result := make([]*domain.Review, 0)
	for _, r := range m.store.reviews {
		if keep(r) {
			cp := *r
			result = append(result, &cp)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].CreatedAt.After(result[j].CreatedAt) })
	return result
}

// ──────────────────────────────────────────────
// MOCK PAYMENT REPOSITORY
// ──────────────────────────────────────────────

// MockPaymentRepository is a mock implementation of repository.PaymentRepository.
// LockByTxRef serializes callers per tx_ref the way SELECT ... FOR UPDATE does.
type MockPaymentRepository struct {
	store *MockStore

	// Counters for verification
	CreateCallCount int32
	UpdateCallCount int32
	LockCallCount   int32

	// Error injection
	CreateError error
	UpdateError error
}

var _ repository.PaymentRepository = (*MockPaymentRepository)(nil)

func (m *MockPaymentRepository) Create(ctx context.Context, payment *domain.Payment) error {
	atomic.AddInt32(&m.CreateCallCount, 1)
	if m.CreateError != nil {
		return m.CreateError
	}
	m.store.mu.Lock()
	defer m.store.mu.Unlock()
	if _, ok := m.store.txRefs[payment.TxRef]; ok {
		return repository.ErrDuplicate
	}
	if payment.BookingID != nil {
		if _, ok := m.store.bookings[*payment.BookingID]; !ok {
			return repository.ErrInvalidReference
		}
	}
	m.store.payments[payment.ID] = copyPayment(payment)
	m.store.txRefs[payment.TxRef] = payment.ID
	return nil
}

func (m *MockPaymentRepository) GetByID(ctx context.Context, id string) (*domain.Payment, error) {
	m.store.mu.RLock()
	defer m.store.mu.RUnlock()
	p, ok := m.store.payments[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return copyPayment(p), nil
}

func (m *MockPaymentRepository) GetByTxRef(ctx context.Context, txRef string) (*domain.Payment, error) {
	m.store.mu.RLock()
	defer m.store.mu.RUnlock()
	id, ok := m.store.txRefs[txRef]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return copyPayment(m.store.payments[id]), nil
}

func (m *MockPaymentRepository) GetAll(ctx context.Context) ([]*domain.Payment, error) {
	m.store.mu.RLock()
	defer m.store.mu.RUnlock()
	result := make([]*domain.Payment, 0, len(m.store.payments))
	for _, p := range m.store.payments {
		result = append(result, copyPayment(p))
	}
	sort.Slice(result, func(i, j int) bool { return result[i].CreatedAt.After(result[j].CreatedAt) })
	return result, nil
}

func (m *MockPaymentRepository) Update(ctx context.Context, payment *domain.Payment) error {
	atomic.AddInt32(&m.UpdateCallCount, 1)
	if m.UpdateError != nil {
		return m.UpdateError
	}
	return m.save(payment)
}

func (m *MockPaymentRepository) LockByTxRef(ctx context.Context, txRef string, fn func(ctx context.Context, payment *domain.Payment) error) error {
	atomic.AddInt32(&m.LockCallCount, 1)

	lock := m.store.rowLock(txRef)
	lock.Lock()
	defer lock.Unlock()

	payment, err := m.GetByTxRef(ctx, txRef)
	if err != nil {
		return err
	}

	if err := fn(ctx, payment); err != nil {
		return err
	}

	if m.UpdateError != nil {
		return m.UpdateError
	}
	return m.save(payment)
}

func (m *MockPaymentRepository) save(payment *domain.Payment) error {
	m.store.mu.Lock()
	defer m.store.mu.Unlock()
	if _, ok := m.store.payments[payment.ID]; !ok {
		return repository.ErrNotFound
	}
	m.store.payments[payment.ID] = copyPayment(payment)
	return nil
}

// ──────────────────────────────────────────────
// MOCK GATEWAY
// ──────────────────────────────────────────────

// MockGateway is a mock implementation of gateway.Provider.
// The Func fields take precedence over the canned results when set.
type MockGateway struct {
	mu sync.Mutex

	InitializeFunc func(ctx context.Context, req gateway.InitializeRequest) (*gateway.InitializeResult, error)
	VerifyFunc     func(ctx context.Context, txRef string) (*gateway.VerifyResult, error)

	InitResult   *gateway.InitializeResult
	InitErr      error
	VerifyResult *gateway.VerifyResult
	VerifyErr    error

	InitializeCallCount int32
	VerifyCallCount     int32

	initRequests []gateway.InitializeRequest
}

var _ gateway.Provider = (*MockGateway)(nil)

// NewMockGateway creates a gateway that accepts every initialize and reports success on verify.
func NewMockGateway() *MockGateway {
	return &MockGateway{
		InitResult:   AcceptedInit("https://checkout.example.com/pay/abc"),
		VerifyResult: VerifiedWith("success"),
	}
}

func (m *MockGateway) Initialize(ctx context.Context, req gateway.InitializeRequest) (*gateway.InitializeResult, error) {
	atomic.AddInt32(&m.InitializeCallCount, 1)
	m.mu.Lock()
	m.initRequests = append(m.initRequests, req)
	m.mu.Unlock()

	if m.InitializeFunc != nil {
		return m.InitializeFunc(ctx, req)
	}
	return m.InitResult, m.InitErr
}

func (m *MockGateway) Verify(ctx context.Context, txRef string) (*gateway.VerifyResult, error) {
	atomic.AddInt32(&m.VerifyCallCount, 1)
	if m.VerifyFunc != nil {
		return m.VerifyFunc(ctx, txRef)
	}
	return m.VerifyResult, m.VerifyErr
}

// InitRequests returns the initialize requests seen so far.
func (m *MockGateway) InitRequests() []gateway.InitializeRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]gateway.InitializeRequest(nil), m.initRequests...)
}

// AcceptedInit is a 200 initialize result carrying checkoutURL.
func AcceptedInit(checkoutURL string) *gateway.InitializeResult {
	raw, _ := json.Marshal(map[string]any{
		"status":  "success",
		"message": "Hosted Link",
		"data":    map[string]any{"checkout_url": checkoutURL},
	})
	return &gateway.InitializeResult{StatusCode: 200, Raw: raw, CheckoutURL: checkoutURL}
}

// RejectedInit is an initialize result with the given error status and body.
func RejectedInit(statusCode int, body string) *gateway.InitializeResult {
	return &gateway.InitializeResult{StatusCode: statusCode, Raw: json.RawMessage(body)}
}

// VerifiedWith is a 200 verify result whose top-level status is status.
func VerifiedWith(status string) *gateway.VerifyResult {
	raw, _ := json.Marshal(map[string]any{"status": status, "data": map[string]any{"status": status}})
	return &gateway.VerifyResult{StatusCode: 200, Raw: raw, Status: status, DataStatus: status}
}

// ──────────────────────────────────────────────
// MOCK NOTIFICATION QUEUE
// ──────────────────────────────────────────────

// MockQueue records enqueued notification tasks.
type MockQueue struct {
	mu    sync.Mutex
	tasks []notify.Task

	// Reject makes Enqueue refuse every task, like a full dispatcher buffer.
	Reject bool
}

// NewMockQueue creates an accepting queue.
func NewMockQueue() *MockQueue {
	return &MockQueue{}
}

func (m *MockQueue) Enqueue(task notify.Task) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Reject {
		return false
	}
	m.tasks = append(m.tasks, task)
	return true
}

// Tasks returns the accepted tasks in order.
func (m *MockQueue) Tasks() []notify.Task {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]notify.Task(nil), m.tasks...)
}

// Count returns the number of accepted tasks of kind.
func (m *MockQueue) Count(kind notify.Kind) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, t := range m.tasks {
		if t.Kind == kind {
			n++
		}
	}
	return n
}

// ──────────────────────────────────────────────
// MOCK LISTING CACHE
// ──────────────────────────────────────────────

// MockListingCache is a mock implementation of redis.ListingCacheInterface.
type MockListingCache struct {
	mu         sync.Mutex
	listings   map[string]*redis.CachedListing
	tombstones map[string]bool

	HitCount        int32
	MissCount       int32
	InvalidateCount int32
}

var _ redis.ListingCacheInterface = (*MockListingCache)(nil)

// NewMockListingCache creates an empty cache.
func NewMockListingCache() *MockListingCache {
	return &MockListingCache{
		listings:   make(map[string]*redis.CachedListing),
		tombstones: make(map[string]bool),
	}
}

func (m *MockListingCache) GetListing(ctx context.Context, listingID string) (*redis.CachedListing, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cached, ok := m.listings[listingID]
	if !ok {
		atomic.AddInt32(&m.MissCount, 1)
		return nil, nil
	}
	atomic.AddInt32(&m.HitCount, 1)
	cp := *cached
	return &cp, nil
}

func (m *MockListingCache) SetListing(ctx context.Context, listing *redis.CachedListing) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.tombstones[listing.ID] {
		return nil
	}
	cp := *listing
	m.listings[listing.ID] = &cp
	return nil
}

func (m *MockListingCache) SetListingsBatch(ctx context.Context, listings []*redis.CachedListing) error {
	for _, l := range listings {
		if err := m.SetListing(ctx, l); err != nil {
			return err
		}
	}
	return nil
}

func (m *MockListingCache) InvalidateListing(ctx context.Context, listingID string) error {
	atomic.AddInt32(&m.InvalidateCount, 1)
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.listings, listingID)
	m.tombstones[listingID] = true
	return nil
}

// ExpireTombstones lets writes cache listings again, as when the TTL lapses.
func (m *MockListingCache) ExpireTombstones() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tombstones = make(map[string]bool)
}

// Has reports whether listingID is cached.
func (m *MockListingCache) Has(listingID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.listings[listingID]
	return ok
}
