package model

import (
	"fmt"
	"time"
)

// ScheduleSettings is a guide's recurring availability configuration.
// One record per guide.
type ScheduleSettings struct {
	GuideID             string         `json:"guide_id"`
	WorkingDays         []time.Weekday `json:"working_days"` // 0=Sunday .. 6=Saturday
	WorkStart           ClockTime      `json:"work_start"`
	WorkEnd             ClockTime      `json:"work_end"`
	MinimumAdvanceHours int            `json:"minimum_advance_hours"`
	MaximumAdvanceDays  int            `json:"maximum_advance_days"`
	BufferMinutes       int            `json:"buffer_minutes"`
	MinBookingHours     float64        `json:"minimum_booking_hours"`
	MaxBookingHours     float64        `json:"maximum_booking_hours"`
}

// DefaultSettings seeds a new guide: Mon-Fri 09:00-17:00, 1-8 hour tours,
// a day of notice, bookable three months out.
func DefaultSettings(guideID string) ScheduleSettings {
	return ScheduleSettings{
		GuideID:             guideID,
		WorkingDays:         []time.Weekday{time.Monday, time.Tuesday, time.Wednesday, time.Thursday, time.Friday},
		WorkStart:           9 * 60,
		WorkEnd:             17 * 60,
		MinimumAdvanceHours: 24,
		MaximumAdvanceDays:  90,
		BufferMinutes:       30,
		MinBookingHours:     1,
		MaxBookingHours:     8,
	}
}

func (s ScheduleSettings) WorksOn(wd time.Weekday) bool {
	for _, d := range s.WorkingDays {
		if d == wd {
			return true
		}
	}
	return false
}

func (s ScheduleSettings) Buffer() time.Duration {
	return time.Duration(s.BufferMinutes) * time.Minute
}

func (s ScheduleSettings) Validate() error {
	if s.GuideID == "" {
		return fmt.Errorf("guide_id is required")
	}
	for _, d := range s.WorkingDays {
		if d < time.Sunday || d > time.Saturday {
			return fmt.Errorf("working_days entry %d out of range 0-6", d)
		}
	}
	if s.WorkStart >= s.WorkEnd {
		return fmt.Errorf("work_start must be before work_end")
	}
	if s.WorkEnd > 24*60 {
		return fmt.Errorf("work_end beyond end of day")
	}
	if s.MinimumAdvanceHours < 0 {
		return fmt.Errorf("minimum_advance_hours must be >= 0")
	}
	if s.MaximumAdvanceDays <= 0 {
		return fmt.Errorf("maximum_advance_days must be > 0")
	}
	if s.BufferMinutes < 0 {
		return fmt.Errorf("buffer_minutes must be >= 0")
	}
	if s.MinBookingHours <= 0 || s.MaxBookingHours <= 0 {
		return fmt.Errorf("booking duration bounds must be > 0")
	}
	if s.MinBookingHours > s.MaxBookingHours {
		return fmt.Errorf("minimum_booking_hours exceeds maximum_booking_hours")
	}
	return nil
}

// BlockedDate is an ad-hoc full-day exclusion (vacation, personal
// commitment). It removes the whole day regardless of working-day
// membership.
type BlockedDate struct {
	GuideID string `json:"guide_id"`
	Day     Date   `json:"date"`
	Reason  string `json:"reason,omitempty"`
}
