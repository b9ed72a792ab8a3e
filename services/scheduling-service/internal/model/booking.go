package model

import "time"

type BookingStatus string

const (
	// BookingRequested only exists inside a commit attempt; committed rows
	// are written as confirmed.
	BookingRequested BookingStatus = "requested"
	BookingConfirmed BookingStatus = "confirmed"
	BookingCancelled BookingStatus = "cancelled"
)

// Booking is one committed entry in a guide's ledger: a single contiguous
// [StartTime, EndTime) interval, possibly spanning multiple calendar days.
// Confirmed bookings are immutable except for cancellation.
type Booking struct {
	ID            string        `json:"id"`
	GuideID       string        `json:"guide_id"`
	ClientID      string        `json:"client_id"`
	StartTime     time.Time     `json:"start_time"`
	EndTime       time.Time     `json:"end_time"`
	DurationHours float64       `json:"duration_hours"`
	BufferMinutes int           `json:"buffer_minutes"` // guide's buffer at commit time
	Status        BookingStatus `json:"status"`
	CancelledAt   *time.Time    `json:"cancelled_at,omitempty"`
	CancelReason  string        `json:"cancellation_reason,omitempty"`
	CreatedAt     time.Time     `json:"created_at"`
}

// Active reports whether the booking holds its interval. Cancelled bookings
// free the interval immediately.
func (b Booking) Active() bool {
	return b.Status == BookingRequested || b.Status == BookingConfirmed
}

// Overlaps tests the half-open interval [start, end) against the booking's
// own interval.
func (b Booking) Overlaps(start, end time.Time) bool {
	return start.Before(b.EndTime) && b.StartTime.Before(end)
}

// TimeSlot is one candidate bookable interval of the requested duration.
type TimeSlot struct {
	Start     time.Time `json:"start"`
	End       time.Time `json:"end"`
	Available bool      `json:"available"`
	BookingID string    `json:"booking_id,omitempty"`
}

// DayAvailability is the ordered slot grid for one calendar day. Blocked
// and non-working days carry no slots.
type DayAvailability struct {
	Day   Date       `json:"date"`
	Slots []TimeSlot `json:"slots"`
}
