// Package notify carries email notification tasks from the API process to the
// worker: a buffered in-process dispatcher, broker publishers and consumers,
// and the mail senders used by the worker.
package notify

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Kind identifies which email a task produces.
type Kind string

const (
	KindPaymentConfirmation Kind = "payment_confirmation"
	KindBookingConfirmation Kind = "booking_confirmation"
)

// Task is one email to send. It is the message body on the broker.
type Task struct {
	ID         string    `json:"id"`
	Kind       Kind      `json:"kind"`
	Email      string    `json:"email"`
	BookingRef string    `json:"booking_ref,omitempty"`
	BookingID  string    `json:"booking_id,omitempty"`
	Amount     string    `json:"amount,omitempty"`
	Currency   string    `json:"currency,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

// NewPaymentConfirmation builds the task sent when a payment completes.
func NewPaymentConfirmation(email, bookingRef, amount, currency string) Task {
	return Task{
		ID:         uuid.New().String(),
		Kind:       KindPaymentConfirmation,
		Email:      email,
		BookingRef: bookingRef,
		Amount:     amount,
		Currency:   currency,
		CreatedAt:  time.Now().UTC(),
	}
}

// NewBookingConfirmation builds the task sent when a booking is created.
func NewBookingConfirmation(email, bookingID string) Task {
	return Task{
		ID:        uuid.New().String(),
		Kind:      KindBookingConfirmation,
		Email:     email,
		BookingID: bookingID,
		CreatedAt: time.Now().UTC(),
	}
}

// Key is the broker partition key: tasks for the same booking stay ordered.
func (t Task) Key() string {
	if t.BookingRef != "" {
		return t.BookingRef
	}
	if t.BookingID != "" {
		return t.BookingID
	}
	return t.ID
}

func encodeTask(t Task) ([]byte, error) {
	return json.Marshal(t)
}

func decodeTask(data []byte) (Task, error) {
	var t Task
	if err := json.Unmarshal(data, &t); err != nil {
		return Task{}, fmt.Errorf("decode task: %w", err)
	}
	if t.Kind == "" || t.Email == "" {
		return Task{}, fmt.Errorf("decode task: missing kind or email")
	}
	return t, nil
}
