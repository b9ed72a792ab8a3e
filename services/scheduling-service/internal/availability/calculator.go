package availability

import (
	"time"

	"github.com/wanderspot/wanderspot/services/scheduling-service/internal/model"
)

// Query bounds one availability computation. Duration is the requested
// booking length; Step is the grid granularity (a deployment constant, not
// per-guide).
type Query struct {
	From     model.Date
	To       model.Date
	Duration time.Duration
	Step     time.Duration
	Now      time.Time
	Location *time.Location
}

type busyInterval struct {
	start     time.Time // buffer-expanded
	end       time.Time
	rawStart  time.Time
	rawEnd    time.Time
	bookingID string
}

// Compute returns the day-by-day slot grid for q. It is a pure function of
// its inputs: safe to call concurrently, identical inputs yield identical
// output. Inputs are assumed validated by the caller (range ordered,
// duration within the guide's bounds).
//
// Per day: a blocked or non-working day yields no slots. Otherwise
// candidates of length Duration start every Step from WorkStart while still
// ending by WorkEnd. A candidate is unavailable when it starts before
// now + minimum advance notice, or when it overlaps any active booking
// expanded by the buffer on both sides. Bookings are compared as absolute
// intervals, so entries spanning midnight and buffers crossing day
// boundaries are handled without per-day special cases.
func Compute(settings model.ScheduleSettings, blocked []model.BlockedDate, bookings []model.Booking, q Query) []model.DayAvailability {
	loc := q.Location
	if loc == nil {
		loc = time.UTC
	}
	step := q.Step
	if step <= 0 {
		step = time.Hour
	}
	if q.Duration <= 0 || q.To.Before(q.From) {
		return nil
	}

	blockedDays := make(map[model.Date]bool, len(blocked))
	for _, b := range blocked {
		blockedDays[b.Day] = true
	}

	buffer := settings.Buffer()
	busy := make([]busyInterval, 0, len(bookings))
	for _, b := range bookings {
		if !b.Active() {
			continue
		}
		busy = append(busy, busyInterval{
			start:     b.StartTime.Add(-buffer),
			end:       b.EndTime.Add(buffer),
			rawStart:  b.StartTime,
			rawEnd:    b.EndTime,
			bookingID: b.ID,
		})
	}

	cutoff := q.Now.Add(time.Duration(settings.MinimumAdvanceHours) * time.Hour)

	days := q.From.DaysUntil(q.To) + 1
	out := make([]model.DayAvailability, 0, days)
	for day := q.From; !day.After(q.To); day = day.AddDays(1) {
		da := model.DayAvailability{Day: day}
		if blockedDays[day] || !settings.WorksOn(day.Weekday()) {
			out = append(out, da)
			continue
		}

		midnight := day.Time(loc)
		windowStart := midnight.Add(settings.WorkStart.Duration())
		windowEnd := midnight.Add(settings.WorkEnd.Duration())

		for t := windowStart; !t.Add(q.Duration).After(windowEnd); t = t.Add(step) {
			slot := model.TimeSlot{Start: t, End: t.Add(q.Duration), Available: true}
			if t.Before(cutoff) {
				slot.Available = false
			}
			for _, b := range busy {
				// Half-open intervals: [s,e) overlaps [b.start,b.end) iff s < b.end && b.start < e.
				if slot.Start.Before(b.end) && b.start.Before(slot.End) {
					slot.Available = false
					if slot.Start.Before(b.rawEnd) && b.rawStart.Before(slot.End) {
						slot.BookingID = b.bookingID
					}
				}
			}
			da.Slots = append(da.Slots, slot)
		}
		out = append(out, da)
	}
	return out
}

// IntervalFree reports whether a booking of [start, end) would conflict
// with any active booking in bookings once the buffer is applied. It is the
// same overlap test Compute uses, reused by the commit path for its
// authoritative re-check.
func IntervalFree(start, end time.Time, buffer time.Duration, bookings []model.Booking) (string, bool) {
	// Expanding the candidate by the buffer is equivalent to expanding
	// every existing booking.
	expandedStart := start.Add(-buffer)
	expandedEnd := end.Add(buffer)
	for _, b := range bookings {
		if !b.Active() {
			continue
		}
		if b.Overlaps(expandedStart, expandedEnd) {
			return b.ID, false
		}
	}
	return "", true
}
