package stats

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/wanderspot/wanderspot/libs/db"
)

var ErrNotFound = errors.New("no stats recorded for guide")

// GuideStats aggregates a guide's booking activity for marketplace
// dashboards.
type GuideStats struct {
	GuideID           string    `json:"guide_id"`
	ConfirmedBookings int64     `json:"confirmed_bookings"`
	CancelledBookings int64     `json:"cancelled_bookings"`
	TotalHoursBooked  float64   `json:"total_hours_booked"`
	UpdatedAt         time.Time `json:"updated_at"`
}

type Repository struct {
	pool *db.Pool
}

func NewRepository(pool *db.Pool) *Repository {
	return &Repository{pool: pool}
}

func (r *Repository) RecordConfirmed(ctx context.Context, guideID string, durationHours float64) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO guide_booking_stats (guide_id, confirmed_bookings, cancelled_bookings, total_hours_booked)
		VALUES ($1, 1, 0, $2)
		ON CONFLICT (guide_id) DO UPDATE
		SET confirmed_bookings = guide_booking_stats.confirmed_bookings + 1,
			total_hours_booked = guide_booking_stats.total_hours_booked + EXCLUDED.total_hours_booked,
			updated_at = now()
	`, guideID, durationHours)
	return err
}

func (r *Repository) RecordCancelled(ctx context.Context, guideID string, durationHours float64) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO guide_booking_stats (guide_id, confirmed_bookings, cancelled_bookings, total_hours_booked)
		VALUES ($1, 0, 1, 0)
		ON CONFLICT (guide_id) DO UPDATE
		SET cancelled_bookings = guide_booking_stats.cancelled_bookings + 1,
			total_hours_booked = GREATEST(guide_booking_stats.total_hours_booked - $2, 0),
			updated_at = now()
	`, guideID, durationHours)
	return err
}

func (r *Repository) Get(ctx context.Context, guideID string) (GuideStats, error) {
	var s GuideStats
	err := r.pool.QueryRow(ctx, `
		SELECT guide_id, confirmed_bookings, cancelled_bookings, total_hours_booked, updated_at
		FROM guide_booking_stats
		WHERE guide_id = $1
	`, guideID).Scan(&s.GuideID, &s.ConfirmedBookings, &s.CancelledBookings, &s.TotalHoursBooked, &s.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return GuideStats{}, ErrNotFound
	}
	if err != nil {
		return GuideStats{}, err
	}
	return s, nil
}
