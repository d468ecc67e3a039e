package booking

import "github.com/mealdesk/api/internal/enum"

// TimestampField names the booking column stamped by a transition.
type TimestampField string

const (
	TimestampNone        TimestampField = ""
	TimestampConfirmedAt TimestampField = "confirmedAt"
	TimestampCompletedAt TimestampField = "completedAt"
)

// allowedTransitions defines valid status transitions.
// Key is current status, value is the set of statuses it can transition to.
// Terminal statuses have no entry.
var allowedTransitions = map[enum.BookingStatus][]enum.BookingStatus{
	enum.BookingStatusPending:   {enum.BookingStatusConfirmed, enum.BookingStatusCancelled},
	enum.BookingStatusConfirmed: {enum.BookingStatusPreparing, enum.BookingStatusCancelled},
	enum.BookingStatusPreparing: {enum.BookingStatusReady, enum.BookingStatusCancelled},
	enum.BookingStatusReady:     {enum.BookingStatusCompleted},
}

// stamps maps a target status to the timestamp it sets.
var stamps = map[enum.BookingStatus]TimestampField{
	enum.BookingStatusConfirmed: TimestampConfirmedAt,
	enum.BookingStatusCompleted: TimestampCompletedAt,
}

// Transition is the decision for a requested status change. On rejection
// AllowedTransitions still lists what current could move to.
type Transition struct {
	From               enum.BookingStatus   `json:"from"`
	To                 enum.BookingStatus   `json:"to"`
	Allowed            bool                 `json:"allowed"`
	TimestampField     TimestampField       `json:"timestamp_field,omitempty"`
	AllowedTransitions []enum.BookingStatus `json:"allowed_transitions"`
}

// AllowedTransitions returns the statuses reachable from current. The slice
// is a copy.
func AllowedTransitions(current enum.BookingStatus) []enum.BookingStatus {
	next := allowedTransitions[current]
	out := make([]enum.BookingStatus, len(next))
	copy(out, next)
	return out
}

// IsTerminal reports whether no transition leaves s.
func IsTerminal(s enum.BookingStatus) bool {
	return s.Valid() && len(allowedTransitions[s]) == 0
}

// ApplyTransition decides whether current may move to requested and which
// timestamp, if any, the caller must set. It never fails; unknown statuses
// are simply not allowed.
func ApplyTransition(current, requested enum.BookingStatus) Transition {
	t := Transition{
		From:               current,
		To:                 requested,
		AllowedTransitions: AllowedTransitions(current),
	}
	for _, s := range t.AllowedTransitions {
		if s == requested {
			t.Allowed = true
			t.TimestampField = stamps[requested]
			break
		}
	}
	return t
}
