package availability

import (
	"testing"
	"time"

	"github.com/wanderspot/wanderspot/services/scheduling-service/internal/model"
)

func testSettings() model.ScheduleSettings {
	return model.ScheduleSettings{
		GuideID:             "guide-1",
		WorkingDays:         []time.Weekday{time.Monday, time.Tuesday, time.Wednesday, time.Thursday, time.Friday},
		WorkStart:           8 * 60,
		WorkEnd:             18 * 60,
		MinimumAdvanceHours: 24,
		MaximumAdvanceDays:  90,
		BufferMinutes:       30,
		MinBookingHours:     1,
		MaxBookingHours:     8,
	}
}

func mustDate(t *testing.T, s string) model.Date {
	t.Helper()
	d, err := model.ParseDate(s)
	if err != nil {
		t.Fatalf("ParseDate(%q): %v", s, err)
	}
	return d
}

// Monday 2025-03-10, 08:00-18:00, four-hour tours: starts at 08:00 through
// 14:00 (last ends 18:00), all free when the ledger is empty.
func TestComputeOpenDay(t *testing.T) {
	monday := mustDate(t, "2025-03-10")
	out := Compute(testSettings(), nil, nil, Query{
		From:     monday,
		To:       monday,
		Duration: 4 * time.Hour,
		Step:     time.Hour,
		Now:      time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC),
		Location: time.UTC,
	})
	if len(out) != 1 {
		t.Fatalf("expected 1 day, got %d", len(out))
	}
	slots := out[0].Slots
	if len(slots) != 7 {
		t.Fatalf("expected 7 slots, got %d", len(slots))
	}
	for i, s := range slots {
		wantStart := time.Date(2025, 3, 10, 8+i, 0, 0, 0, time.UTC)
		if !s.Start.Equal(wantStart) {
			t.Errorf("slot %d: start %v, want %v", i, s.Start, wantStart)
		}
		if !s.End.Equal(wantStart.Add(4 * time.Hour)) {
			t.Errorf("slot %d: end %v", i, s.End)
		}
		if !s.Available {
			t.Errorf("slot %d: expected available", i)
		}
	}
}

// A 10:00-14:00 booking with a 30-minute buffer holds [09:30, 14:30), so
// every four-hour candidate on the day collides with it, including the
// 14:00 start (14:00 < 14:30). Only candidates overlapping the raw booking
// interval carry its id.
func TestComputeBufferBlocksAdjacentSlots(t *testing.T) {
	monday := mustDate(t, "2025-03-10")
	booked := model.Booking{
		ID:        "bk-1",
		GuideID:   "guide-1",
		StartTime: time.Date(2025, 3, 10, 10, 0, 0, 0, time.UTC),
		EndTime:   time.Date(2025, 3, 10, 14, 0, 0, 0, time.UTC),
		Status:    model.BookingConfirmed,
	}
	out := Compute(testSettings(), nil, []model.Booking{booked}, Query{
		From:     monday,
		To:       monday,
		Duration: 4 * time.Hour,
		Step:     time.Hour,
		Now:      time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC),
		Location: time.UTC,
	})
	slots := out[0].Slots
	if len(slots) != 7 {
		t.Fatalf("expected 7 slots, got %d", len(slots))
	}
	for i, s := range slots {
		if s.Available {
			t.Errorf("slot %d (%v): expected unavailable", i, s.Start)
		}
	}
	// 08:00-12:00 overlaps the raw booking.
	if slots[0].BookingID != "bk-1" {
		t.Errorf("slot 0: expected booking id, got %q", slots[0].BookingID)
	}
	// 14:00-18:00 only touches the buffer, not the booking itself.
	if slots[6].BookingID != "" {
		t.Errorf("slot 6: expected no booking id, got %q", slots[6].BookingID)
	}
}

// A booking crossing midnight holds the early slots of the next day, and
// its buffer reaches past the raw end. Bookings are absolute intervals, so
// no per-day clipping applies.
func TestComputeMidnightSpanningBooking(t *testing.T) {
	settings := testSettings()
	settings.WorkStart = 0
	settings.WorkEnd = 6 * 60

	overnight := model.Booking{
		ID:        "bk-night",
		GuideID:   "guide-1",
		StartTime: time.Date(2025, 3, 10, 23, 0, 0, 0, time.UTC),
		EndTime:   time.Date(2025, 3, 11, 1, 0, 0, 0, time.UTC),
		Status:    model.BookingConfirmed,
	}
	tuesday := mustDate(t, "2025-03-11")
	out := Compute(settings, nil, []model.Booking{overnight}, Query{
		From:     tuesday,
		To:       tuesday,
		Duration: time.Hour,
		Step:     time.Hour,
		Now:      time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC),
		Location: time.UTC,
	})
	slots := out[0].Slots
	if len(slots) != 6 {
		t.Fatalf("expected 6 slots, got %d", len(slots))
	}
	// Busy interval after the 30-minute buffer: [22:30, 01:30).
	for i, wantAvailable := range []bool{false, false, true, true, true, true} {
		if slots[i].Available != wantAvailable {
			t.Errorf("slot %d (%v): available=%v, want %v", i, slots[i].Start, slots[i].Available, wantAvailable)
		}
	}
	// 00:00-01:00 overlaps the raw booking; 01:00-02:00 only the buffer.
	if slots[0].BookingID != "bk-night" {
		t.Errorf("slot 0: expected booking id, got %q", slots[0].BookingID)
	}
	if slots[1].BookingID != "" {
		t.Errorf("slot 1: expected no booking id, got %q", slots[1].BookingID)
	}
}

func TestComputeCancelledBookingFreesSlots(t *testing.T) {
	monday := mustDate(t, "2025-03-10")
	cancelled := model.Booking{
		ID:        "bk-1",
		StartTime: time.Date(2025, 3, 10, 10, 0, 0, 0, time.UTC),
		EndTime:   time.Date(2025, 3, 10, 14, 0, 0, 0, time.UTC),
		Status:    model.BookingCancelled,
	}
	out := Compute(testSettings(), nil, []model.Booking{cancelled}, Query{
		From:     monday,
		To:       monday,
		Duration: 4 * time.Hour,
		Step:     time.Hour,
		Now:      time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC),
		Location: time.UTC,
	})
	for i, s := range out[0].Slots {
		if !s.Available {
			t.Errorf("slot %d: cancelled booking must not hold its interval", i)
		}
	}
}

func TestComputeBlockedAndNonWorkingDays(t *testing.T) {
	sat := mustDate(t, "2025-03-08")
	mon := mustDate(t, "2025-03-10")
	blocked := []model.BlockedDate{{GuideID: "guide-1", Day: mon, Reason: "vacation"}}

	out := Compute(testSettings(), blocked, nil, Query{
		From:     sat,
		To:       mon,
		Duration: 2 * time.Hour,
		Step:     time.Hour,
		Now:      time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC),
		Location: time.UTC,
	})
	if len(out) != 3 {
		t.Fatalf("expected 3 days, got %d", len(out))
	}
	for i, day := range out {
		if len(day.Slots) != 0 {
			t.Errorf("day %d (%s): expected no slots, got %d", i, day.Day, len(day.Slots))
		}
	}
}

// Advance notice removes only the leading slots: with now = Sunday noon and
// 24h notice, Monday candidates before 12:00 are out, 12:00 onward stay in.
func TestComputeAdvanceNoticeCutoff(t *testing.T) {
	monday := mustDate(t, "2025-03-10")
	out := Compute(testSettings(), nil, nil, Query{
		From:     monday,
		To:       monday,
		Duration: 4 * time.Hour,
		Step:     time.Hour,
		Now:      time.Date(2025, 3, 9, 12, 0, 0, 0, time.UTC),
		Location: time.UTC,
	})
	for i, s := range out[0].Slots {
		wantAvailable := !s.Start.Before(time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC))
		if s.Available != wantAvailable {
			t.Errorf("slot %d (%v): available=%v, want %v", i, s.Start, s.Available, wantAvailable)
		}
	}
}

func TestComputeFractionalDuration(t *testing.T) {
	monday := mustDate(t, "2025-03-10")
	out := Compute(testSettings(), nil, nil, Query{
		From:     monday,
		To:       monday,
		Duration: 90 * time.Minute,
		Step:     time.Hour,
		Now:      time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC),
		Location: time.UTC,
	})
	slots := out[0].Slots
	// Starts hourly 08:00 through 16:00; 16:00+1.5h = 17:30 <= 18:00.
	if len(slots) != 9 {
		t.Fatalf("expected 9 slots, got %d", len(slots))
	}
	last := slots[len(slots)-1]
	if !last.End.Equal(time.Date(2025, 3, 10, 17, 30, 0, 0, time.UTC)) {
		t.Errorf("last slot ends %v", last.End)
	}
}

func TestIntervalFree(t *testing.T) {
	booked := model.Booking{
		ID:        "bk-1",
		StartTime: time.Date(2025, 3, 10, 10, 0, 0, 0, time.UTC),
		EndTime:   time.Date(2025, 3, 10, 14, 0, 0, 0, time.UTC),
		Status:    model.BookingConfirmed,
	}
	buffer := 30 * time.Minute

	// Starting exactly at the end of the booking is inside the buffer.
	if id, free := IntervalFree(
		time.Date(2025, 3, 10, 14, 0, 0, 0, time.UTC),
		time.Date(2025, 3, 10, 16, 0, 0, 0, time.UTC),
		buffer, []model.Booking{booked},
	); free || id != "bk-1" {
		t.Fatalf("expected conflict with bk-1, got free=%v id=%q", free, id)
	}

	// 14:30 clears the buffer.
	if _, free := IntervalFree(
		time.Date(2025, 3, 10, 14, 30, 0, 0, time.UTC),
		time.Date(2025, 3, 10, 16, 0, 0, 0, time.UTC),
		buffer, []model.Booking{booked},
	); !free {
		t.Fatal("expected interval after the buffer to be free")
	}

	// Cancelled bookings do not hold their interval.
	cancelled := booked
	cancelled.Status = model.BookingCancelled
	if _, free := IntervalFree(
		time.Date(2025, 3, 10, 10, 0, 0, 0, time.UTC),
		time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC),
		buffer, []model.Booking{cancelled},
	); !free {
		t.Fatal("expected cancelled booking to free its interval")
	}
}
