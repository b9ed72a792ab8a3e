package booking

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/wanderspot/wanderspot/services/scheduling-service/internal/availability"
	"github.com/wanderspot/wanderspot/services/scheduling-service/internal/model"
)

// SettingsStore holds one ScheduleSettings record per guide.
type SettingsStore interface {
	Get(ctx context.Context, guideID string) (model.ScheduleSettings, error)
	Put(ctx context.Context, s model.ScheduleSettings) error
}

// BlockedDateRegistry holds a guide's ad-hoc full-day exclusions.
type BlockedDateRegistry interface {
	List(ctx context.Context, guideID string, from, to model.Date) ([]model.BlockedDate, error)
	Add(ctx context.Context, guideID string, days []model.Date, reason string) error
	Remove(ctx context.Context, guideID string, day model.Date) error
}

// Ledger is the authoritative record of committed bookings per guide.
// ListActive returns requested/confirmed bookings overlapping [from, to).
// Append may return ErrConflict when the store's own overlap guard fires.
type Ledger interface {
	ListActive(ctx context.Context, guideID string, from, to time.Time) ([]model.Booking, error)
	ListByGuide(ctx context.Context, guideID string, limit int) ([]model.Booking, error)
	Get(ctx context.Context, guideID, bookingID string) (model.Booking, error)
	Append(ctx context.Context, b model.Booking) error
	Cancel(ctx context.Context, guideID, bookingID, reason string, at time.Time) (model.Booking, error)
}

type Config struct {
	SlotStep time.Duration  // grid granularity, a deployment constant
	Location *time.Location // wall-clock anchor for working hours
	Logger   *slog.Logger
	Now      func() time.Time
}

// Service orchestrates the availability calculator and the booking commit
// protocol. Reads are lock-free; CreateBooking and CancelBooking serialize
// per guide.
type Service struct {
	settings SettingsStore
	blocked  BlockedDateRegistry
	ledger   Ledger
	locks    *guideLocks
	step     time.Duration
	loc      *time.Location
	logger   *slog.Logger
	now      func() time.Time
}

func NewService(settings SettingsStore, blocked BlockedDateRegistry, ledger Ledger, cfg Config) *Service {
	if cfg.SlotStep <= 0 {
		cfg.SlotStep = time.Hour
	}
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Now == nil {
		cfg.Now = func() time.Time { return time.Now().UTC() }
	}
	return &Service{
		settings: settings,
		blocked:  blocked,
		ledger:   ledger,
		locks:    newGuideLocks(),
		step:     cfg.SlotStep,
		loc:      cfg.Location,
		logger:   cfg.Logger,
		now:      cfg.Now,
	}
}

type WorkingHours struct {
	Start model.ClockTime `json:"start"`
	End   model.ClockTime `json:"end"`
}

type AvailabilityResult struct {
	Days         []model.DayAvailability `json:"availability"`
	WorkingHours WorkingHours            `json:"working_hours"`
	BlockedDates []model.BlockedDate     `json:"blocked_dates"`
}

// Availability computes the slot grid for [from, to]. Lock-free and
// side-effect free; the result reflects ledger state at read time.
func (s *Service) Availability(ctx context.Context, guideID string, from, to model.Date, durationHours float64) (AvailabilityResult, error) {
	if guideID == "" {
		return AvailabilityResult{}, fmt.Errorf("%w: guide_id is required", ErrInvalidRequest)
	}
	if from.IsZero() || to.IsZero() || to.Before(from) {
		return AvailabilityResult{}, fmt.Errorf("%w: start_date must not be after end_date", ErrInvalidRequest)
	}

	settings, err := s.settings.Get(ctx, guideID)
	if err != nil {
		return AvailabilityResult{}, storeErr(err)
	}
	if durationHours == 0 {
		durationHours = settings.MinBookingHours
	}
	duration, err := durationFromHours(settings, durationHours)
	if err != nil {
		return AvailabilityResult{}, err
	}
	if days := from.DaysUntil(to); days > settings.MaximumAdvanceDays {
		return AvailabilityResult{}, fmt.Errorf("%w: date range spans %d days, horizon is %d", ErrInvalidRequest, days, settings.MaximumAdvanceDays)
	}

	blocked, err := s.blocked.List(ctx, guideID, from, to)
	if err != nil {
		return AvailabilityResult{}, storeErr(err)
	}

	// Pad the ledger window by the buffer so bookings on adjoining days
	// whose buffer reaches into the range are included. The overlap query
	// also returns multi-day bookings that merely cross the window.
	windowStart := from.Time(s.loc).Add(-settings.Buffer())
	windowEnd := to.AddDays(1).Time(s.loc).Add(settings.Buffer())
	bookings, err := s.ledger.ListActive(ctx, guideID, windowStart, windowEnd)
	if err != nil {
		return AvailabilityResult{}, storeErr(err)
	}

	days := availability.Compute(settings, blocked, bookings, availability.Query{
		From:     from,
		To:       to,
		Duration: duration,
		Step:     s.step,
		Now:      s.now(),
		Location: s.loc,
	})
	return AvailabilityResult{
		Days:         days,
		WorkingHours: WorkingHours{Start: settings.WorkStart, End: settings.WorkEnd},
		BlockedDates: blocked,
	}, nil
}

type CreateRequest struct {
	GuideID       string
	ClientID      string
	StartDate     model.Date
	StartTime     model.ClockTime
	DurationHours float64
}

// CreateBooking validates the request against the guide's settings and
// blocked dates, then re-derives availability for exactly the requested
// interval under the guide's lock and commits. A losing racer gets
// ErrConflict with no partial effects.
func (s *Service) CreateBooking(ctx context.Context, req CreateRequest) (model.Booking, error) {
	if req.GuideID == "" || req.ClientID == "" {
		return model.Booking{}, fmt.Errorf("%w: guide_id and client_id are required", ErrInvalidRequest)
	}
	if req.StartDate.IsZero() {
		return model.Booking{}, fmt.Errorf("%w: start_date is required", ErrInvalidRequest)
	}

	settings, err := s.settings.Get(ctx, req.GuideID)
	if err != nil {
		return model.Booking{}, storeErr(err)
	}
	duration, err := durationFromHours(settings, req.DurationHours)
	if err != nil {
		return model.Booking{}, err
	}

	now := s.now()
	start := req.StartDate.Time(s.loc).Add(req.StartTime.Duration())
	end := start.Add(duration)

	if start.Before(now.Add(time.Duration(settings.MinimumAdvanceHours) * time.Hour)) {
		return model.Booking{}, fmt.Errorf("%w: start violates the %dh advance notice", ErrInvalidRequest, settings.MinimumAdvanceHours)
	}
	horizon := model.DateOf(now.In(s.loc)).AddDays(settings.MaximumAdvanceDays)
	if req.StartDate.After(horizon) {
		return model.Booking{}, fmt.Errorf("%w: start_date beyond the %d-day booking horizon", ErrInvalidRequest, settings.MaximumAdvanceDays)
	}
	if err := s.checkWorkingWindow(ctx, settings, req.StartDate, req.StartTime, start, end); err != nil {
		return model.Booking{}, err
	}

	unlock := s.locks.lock(req.GuideID)
	defer unlock()

	// Authoritative re-check against current ledger state, closing the
	// window between the optimistic availability read and this commit.
	active, err := s.ledger.ListActive(ctx, req.GuideID, start.Add(-settings.Buffer()), end.Add(settings.Buffer()))
	if err != nil {
		return model.Booking{}, storeErr(err)
	}
	if blockingID, free := availability.IntervalFree(start, end, settings.Buffer(), active); !free {
		return model.Booking{}, fmt.Errorf("%w: interval held by booking %s", ErrConflict, blockingID)
	}

	b := model.Booking{
		ID:            uuid.NewString(),
		GuideID:       req.GuideID,
		ClientID:      req.ClientID,
		StartTime:     start,
		EndTime:       end,
		DurationHours: req.DurationHours,
		BufferMinutes: settings.BufferMinutes,
		Status:        model.BookingConfirmed,
		CreatedAt:     now,
	}
	if err := s.ledger.Append(ctx, b); err != nil {
		return model.Booking{}, storeErr(err)
	}
	s.logger.Info("booking confirmed", "guide_id", b.GuideID, "booking_id", b.ID, "start", b.StartTime, "end", b.EndTime)
	return b, nil
}

// CancelBooking moves a confirmed booking to cancelled and frees its
// interval. Cancelling an already-cancelled booking is a no-op success.
func (s *Service) CancelBooking(ctx context.Context, guideID, bookingID, reason string) (model.Booking, error) {
	if guideID == "" || bookingID == "" {
		return model.Booking{}, fmt.Errorf("%w: guide_id and booking_id are required", ErrInvalidRequest)
	}

	unlock := s.locks.lock(guideID)
	defer unlock()

	b, err := s.ledger.Get(ctx, guideID, bookingID)
	if err != nil {
		return model.Booking{}, storeErr(err)
	}
	if b.Status == model.BookingCancelled {
		return b, nil
	}
	if b.Status != model.BookingConfirmed {
		return model.Booking{}, fmt.Errorf("%w: booking %s is not cancellable", ErrConflict, bookingID)
	}

	cancelled, err := s.ledger.Cancel(ctx, guideID, bookingID, reason, s.now())
	if err != nil {
		return model.Booking{}, storeErr(err)
	}
	s.logger.Info("booking cancelled", "guide_id", guideID, "booking_id", bookingID)
	return cancelled, nil
}

func (s *Service) ListBookings(ctx context.Context, guideID string, limit int) ([]model.Booking, error) {
	if guideID == "" {
		return nil, fmt.Errorf("%w: guide_id is required", ErrInvalidRequest)
	}
	out, err := s.ledger.ListByGuide(ctx, guideID, limit)
	if err != nil {
		return nil, storeErr(err)
	}
	return out, nil
}

// GetSettings returns the guide's schedule configuration, seeding defaults
// on first read so a new guide starts from a sane schedule.
func (s *Service) GetSettings(ctx context.Context, guideID string) (model.ScheduleSettings, error) {
	if guideID == "" {
		return model.ScheduleSettings{}, fmt.Errorf("%w: guide_id is required", ErrInvalidRequest)
	}
	settings, err := s.settings.Get(ctx, guideID)
	if err == nil {
		return settings, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return model.ScheduleSettings{}, storeErr(err)
	}
	settings = model.DefaultSettings(guideID)
	if err := s.settings.Put(ctx, settings); err != nil {
		return model.ScheduleSettings{}, storeErr(err)
	}
	return settings, nil
}

// SettingsPatch carries a partial settings update; nil fields keep their
// current values.
type SettingsPatch struct {
	WorkingDays         *[]time.Weekday  `json:"working_days"`
	WorkStart           *model.ClockTime `json:"work_start"`
	WorkEnd             *model.ClockTime `json:"work_end"`
	MinimumAdvanceHours *int             `json:"minimum_advance_hours"`
	MaximumAdvanceDays  *int             `json:"maximum_advance_days"`
	BufferMinutes       *int             `json:"buffer_minutes"`
	MinBookingHours     *float64         `json:"minimum_booking_hours"`
	MaxBookingHours     *float64         `json:"maximum_booking_hours"`
}

// UpdateSettings applies a partial update on top of the current (or
// default) settings. Takes effect for computations issued afterwards; no
// retroactive effect on committed bookings.
func (s *Service) UpdateSettings(ctx context.Context, guideID string, patch SettingsPatch) (model.ScheduleSettings, error) {
	settings, err := s.GetSettings(ctx, guideID)
	if err != nil {
		return model.ScheduleSettings{}, err
	}

	if patch.WorkingDays != nil {
		settings.WorkingDays = *patch.WorkingDays
	}
	if patch.WorkStart != nil {
		settings.WorkStart = *patch.WorkStart
	}
	if patch.WorkEnd != nil {
		settings.WorkEnd = *patch.WorkEnd
	}
	if patch.MinimumAdvanceHours != nil {
		settings.MinimumAdvanceHours = *patch.MinimumAdvanceHours
	}
	if patch.MaximumAdvanceDays != nil {
		settings.MaximumAdvanceDays = *patch.MaximumAdvanceDays
	}
	if patch.BufferMinutes != nil {
		settings.BufferMinutes = *patch.BufferMinutes
	}
	if patch.MinBookingHours != nil {
		settings.MinBookingHours = *patch.MinBookingHours
	}
	if patch.MaxBookingHours != nil {
		settings.MaxBookingHours = *patch.MaxBookingHours
	}

	if err := settings.Validate(); err != nil {
		return model.ScheduleSettings{}, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}
	if err := s.settings.Put(ctx, settings); err != nil {
		return model.ScheduleSettings{}, storeErr(err)
	}
	return settings, nil
}

// BlockDates adds full-day exclusions. Dates that already hold confirmed
// bookings are still blocked, but reported back as warnings; the bookings
// stay committed.
func (s *Service) BlockDates(ctx context.Context, guideID string, days []model.Date, reason string) ([]string, error) {
	if guideID == "" || len(days) == 0 {
		return nil, fmt.Errorf("%w: guide_id and at least one date are required", ErrInvalidRequest)
	}
	if _, err := s.settings.Get(ctx, guideID); err != nil {
		return nil, storeErr(err)
	}

	var warnings []string
	for _, day := range days {
		if day.IsZero() {
			return nil, fmt.Errorf("%w: invalid date in list", ErrInvalidRequest)
		}
		dayStart := day.Time(s.loc)
		active, err := s.ledger.ListActive(ctx, guideID, dayStart, dayStart.Add(24*time.Hour))
		if err != nil {
			return nil, storeErr(err)
		}
		if n := len(active); n > 0 {
			warnings = append(warnings, fmt.Sprintf("%s has %d confirmed booking(s) that remain scheduled", day, n))
		}
	}

	if err := s.blocked.Add(ctx, guideID, days, reason); err != nil {
		return nil, storeErr(err)
	}
	return warnings, nil
}

func (s *Service) UnblockDate(ctx context.Context, guideID string, day model.Date) error {
	if guideID == "" || day.IsZero() {
		return fmt.Errorf("%w: guide_id and date are required", ErrInvalidRequest)
	}
	return storeErr(s.blocked.Remove(ctx, guideID, day))
}

func (s *Service) ListBlockedDates(ctx context.Context, guideID string, from, to model.Date) ([]model.BlockedDate, error) {
	if guideID == "" {
		return nil, fmt.Errorf("%w: guide_id is required", ErrInvalidRequest)
	}
	out, err := s.blocked.List(ctx, guideID, from, to)
	if err != nil {
		return nil, storeErr(err)
	}
	return out, nil
}

// checkWorkingWindow enforces working-day, blocked-date and working-hours
// membership for the interval. A multi-day booking is one contiguous
// interval: every day it touches must be working and unblocked, but
// per-day working-hours windows are only enforced at the edges.
func (s *Service) checkWorkingWindow(ctx context.Context, settings model.ScheduleSettings, startDate model.Date, startClock model.ClockTime, start, end time.Time) error {
	lastDay := model.DateOf(end.Add(-time.Nanosecond).In(s.loc))

	blocked, err := s.blocked.List(ctx, settings.GuideID, startDate, lastDay)
	if err != nil {
		return storeErr(err)
	}
	blockedDays := make(map[model.Date]bool, len(blocked))
	for _, b := range blocked {
		blockedDays[b.Day] = true
	}

	for day := startDate; !day.After(lastDay); day = day.AddDays(1) {
		if blockedDays[day] {
			return fmt.Errorf("%w: %s is blocked", ErrInvalidRequest, day)
		}
		if !settings.WorksOn(day.Weekday()) {
			return fmt.Errorf("%w: %s is not a working day", ErrInvalidRequest, day)
		}
	}

	if startClock < settings.WorkStart {
		return fmt.Errorf("%w: start %s is before working hours", ErrInvalidRequest, startClock)
	}
	if startDate == lastDay {
		endClock := startClock.Duration() + end.Sub(start)
		if endClock > settings.WorkEnd.Duration() {
			return fmt.Errorf("%w: booking ends after working hours", ErrInvalidRequest)
		}
	}
	return nil
}

func durationFromHours(settings model.ScheduleSettings, hours float64) (time.Duration, error) {
	if hours <= 0 {
		return 0, fmt.Errorf("%w: duration_hours must be > 0", ErrInvalidRequest)
	}
	if hours < settings.MinBookingHours || hours > settings.MaxBookingHours {
		return 0, fmt.Errorf("%w: duration %.2gh outside bounds [%.2g, %.2g]", ErrInvalidRequest, hours, settings.MinBookingHours, settings.MaxBookingHours)
	}
	return time.Duration(hours * float64(time.Hour)), nil
}

// storeErr keeps engine sentinels intact and wraps anything else as an
// infrastructure failure.
func storeErr(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrNotFound) || errors.Is(err, ErrConflict) || errors.Is(err, ErrInvalidRequest) {
		return err
	}
	return fmt.Errorf("%w: %v", ErrUnavailable, err)
}
