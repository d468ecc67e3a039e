// Package notify fans booking lifecycle events out to interested parties:
// kitchen dashboards over websocket and downstream consumers over AMQP.
package notify

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/mealdesk/api/internal/enum"
)

// Event types.
const (
	EventBookingCreated       = "booking.created"
	EventBookingStatusChanged = "booking.status_changed"
)

// Event describes a booking entering a new status. From is empty for a
// freshly created booking.
type Event struct {
	Type        string             `json:"type"`
	BookingID   uuid.UUID          `json:"booking_id"`
	KitchenID   uuid.UUID          `json:"kitchen_id"`
	CustomerID  uuid.UUID          `json:"customer_id"`
	UserID      uuid.UUID          `json:"user_id"`
	BookingDate string             `json:"booking_date"`
	MealType    enum.MealType      `json:"meal_type"`
	From        enum.BookingStatus `json:"from,omitempty"`
	To          enum.BookingStatus `json:"to"`
	OccurredAt  time.Time          `json:"occurred_at"`
}

// Notifier delivers booking events. Implementations must be safe for
// concurrent use.
type Notifier interface {
	BookingStatusChanged(ctx context.Context, e Event) error
}

// Multi delivers each event to every notifier, even if some fail.
type Multi []Notifier

func (m Multi) BookingStatusChanged(ctx context.Context, e Event) error {
	var errs []error
	for _, n := range m {
		if err := n.BookingStatusChanged(ctx, e); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Nop discards events.
type Nop struct{}

func (Nop) BookingStatusChanged(context.Context, Event) error { return nil }
