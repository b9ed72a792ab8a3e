package storage

import (
	"context"
	"errors"
	"math"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/wanderspot/wanderspot/libs/db"
	"github.com/wanderspot/wanderspot/services/scheduling-service/internal/booking"
	"github.com/wanderspot/wanderspot/services/scheduling-service/internal/model"
)

// ScheduleRepository is the Postgres-backed settings store and blocked-date
// registry.
type ScheduleRepository struct {
	pool *db.Pool
}

func NewScheduleRepository(pool *db.Pool) *ScheduleRepository {
	return &ScheduleRepository{pool: pool}
}

func (r *ScheduleRepository) Get(ctx context.Context, guideID string) (model.ScheduleSettings, error) {
	var (
		s           model.ScheduleSettings
		days        []int
		startMin    int
		endMin      int
		minBookMins int
		maxBookMins int
	)
	err := r.pool.QueryRow(ctx, `
		SELECT guide_id, working_days, work_start_minute, work_end_minute,
			minimum_advance_hours, maximum_advance_days, buffer_minutes,
			min_booking_minutes, max_booking_minutes
		FROM guide_schedule_settings
		WHERE guide_id = $1
	`, guideID).Scan(&s.GuideID, &days, &startMin, &endMin,
		&s.MinimumAdvanceHours, &s.MaximumAdvanceDays, &s.BufferMinutes,
		&minBookMins, &maxBookMins)
	if err != nil {
		return model.ScheduleSettings{}, mapErr(err)
	}

	s.WorkingDays = make([]time.Weekday, 0, len(days))
	for _, d := range days {
		s.WorkingDays = append(s.WorkingDays, time.Weekday(d))
	}
	s.WorkStart = model.ClockTime(startMin)
	s.WorkEnd = model.ClockTime(endMin)
	s.MinBookingHours = float64(minBookMins) / 60
	s.MaxBookingHours = float64(maxBookMins) / 60
	return s, nil
}

func (r *ScheduleRepository) Put(ctx context.Context, s model.ScheduleSettings) error {
	days := make([]int, 0, len(s.WorkingDays))
	for _, d := range s.WorkingDays {
		days = append(days, int(d))
	}
	_, err := r.pool.Exec(ctx, `
		INSERT INTO guide_schedule_settings
			(guide_id, working_days, work_start_minute, work_end_minute,
			minimum_advance_hours, maximum_advance_days, buffer_minutes,
			min_booking_minutes, max_booking_minutes)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (guide_id) DO UPDATE
		SET working_days = EXCLUDED.working_days,
			work_start_minute = EXCLUDED.work_start_minute,
			work_end_minute = EXCLUDED.work_end_minute,
			minimum_advance_hours = EXCLUDED.minimum_advance_hours,
			maximum_advance_days = EXCLUDED.maximum_advance_days,
			buffer_minutes = EXCLUDED.buffer_minutes,
			min_booking_minutes = EXCLUDED.min_booking_minutes,
			max_booking_minutes = EXCLUDED.max_booking_minutes,
			updated_at = now()
	`, s.GuideID, days, int(s.WorkStart), int(s.WorkEnd),
		s.MinimumAdvanceHours, s.MaximumAdvanceDays, s.BufferMinutes,
		minutesFromHours(s.MinBookingHours), minutesFromHours(s.MaxBookingHours))
	return err
}

func (r *ScheduleRepository) List(ctx context.Context, guideID string, from, to model.Date) ([]model.BlockedDate, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT guide_id, day, reason
		FROM guide_blocked_dates
		WHERE guide_id = $1 AND day >= $2 AND day <= $3
		ORDER BY day ASC
	`, guideID, from.Time(time.UTC), to.Time(time.UTC))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.BlockedDate
	for rows.Next() {
		var (
			b   model.BlockedDate
			day time.Time
		)
		if err := rows.Scan(&b.GuideID, &day, &b.Reason); err != nil {
			return nil, err
		}
		b.Day = model.DateOf(day)
		out = append(out, b)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return out, nil
}

func (r *ScheduleRepository) Add(ctx context.Context, guideID string, days []model.Date, reason string) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	for _, day := range days {
		if _, err := tx.Exec(ctx, `
			INSERT INTO guide_blocked_dates (guide_id, day, reason)
			VALUES ($1, $2, $3)
			ON CONFLICT (guide_id, day) DO UPDATE SET reason = EXCLUDED.reason
		`, guideID, day.Time(time.UTC), reason); err != nil {
			return err
		}
	}
	return tx.Commit(ctx)
}

func (r *ScheduleRepository) Remove(ctx context.Context, guideID string, day model.Date) error {
	tag, err := r.pool.Exec(ctx, `
		DELETE FROM guide_blocked_dates
		WHERE guide_id = $1 AND day = $2
	`, guideID, day.Time(time.UTC))
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return booking.ErrNotFound
	}
	return nil
}

func minutesFromHours(hours float64) int {
	return int(math.Round(hours * 60))
}

// mapErr converts driver errors the engine cares about into its sentinels:
// missing rows and exclusion-constraint violations (SQLSTATE 23P01, the
// database-level double-booking backstop).
func mapErr(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return booking.ErrNotFound
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23P01" {
		return booking.ErrConflict
	}
	return err
}
