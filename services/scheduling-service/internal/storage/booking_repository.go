package storage

import (
	"context"
	"encoding/json"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/wanderspot/wanderspot/libs/db"
	"github.com/wanderspot/wanderspot/services/scheduling-service/internal/model"
	"github.com/wanderspot/wanderspot/services/scheduling-service/internal/outbox"
)

// BookingRepository is the Postgres-backed booking ledger. Ledger writes
// and their outbox events share one transaction.
type BookingRepository struct {
	pool       *db.Pool
	outboxRepo *outbox.Repository
}

func NewBookingRepository(pool *db.Pool, outboxRepo *outbox.Repository) *BookingRepository {
	return &BookingRepository{pool: pool, outboxRepo: outboxRepo}
}

const bookingColumns = `
	id::text, guide_id, client_id, start_time, end_time, duration_hours,
	buffer_minutes, status, cancelled_at, COALESCE(cancellation_reason, ''), created_at`

func (r *BookingRepository) ListActive(ctx context.Context, guideID string, from, to time.Time) ([]model.Booking, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+bookingColumns+`
		FROM bookings
		WHERE guide_id = $1
			AND status IN ('requested', 'confirmed')
			AND start_time < $3
			AND end_time > $2
		ORDER BY start_time ASC
	`, guideID, from, to)
	if err != nil {
		return nil, err
	}
	return scanBookings(rows)
}

func (r *BookingRepository) ListByGuide(ctx context.Context, guideID string, limit int) ([]model.Booking, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.pool.Query(ctx, `
		SELECT `+bookingColumns+`
		FROM bookings
		WHERE guide_id = $1
		ORDER BY start_time DESC
		LIMIT $2
	`, guideID, limit)
	if err != nil {
		return nil, err
	}
	return scanBookings(rows)
}

func (r *BookingRepository) Get(ctx context.Context, guideID, bookingID string) (model.Booking, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+bookingColumns+`
		FROM bookings
		WHERE guide_id = $1 AND id = $2
	`, guideID, bookingID)
	b, err := scanBooking(row)
	if err != nil {
		return model.Booking{}, mapErr(err)
	}
	return b, nil
}

// Append inserts a booking and its confirmation event atomically, holding
// the guide's advisory lock so commits for the same guide serialize across
// service instances. The table's exclusion constraint over buffer-expanded
// intervals is the final backstop; a violation surfaces as a conflict.
func (r *BookingRepository) Append(ctx context.Context, b model.Booking) error {
	return r.pool.WithTxLock(ctx, "booking:"+b.GuideID, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, `
			INSERT INTO bookings
				(id, guide_id, client_id, start_time, end_time, duration_hours, buffer_minutes, status, created_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		`, b.ID, b.GuideID, b.ClientID, b.StartTime, b.EndTime, b.DurationHours, b.BufferMinutes, string(b.Status), b.CreatedAt)
		if err != nil {
			return mapErr(err)
		}

		payload, err := json.Marshal(map[string]any{
			"booking_id":     b.ID,
			"guide_id":       b.GuideID,
			"client_id":      b.ClientID,
			"start_time":     b.StartTime.UTC().Format(time.RFC3339),
			"end_time":       b.EndTime.UTC().Format(time.RFC3339),
			"duration_hours": b.DurationHours,
		})
		if err != nil {
			return err
		}
		return r.outboxRepo.Insert(ctx, tx, outbox.Event{
			AggregateType: "booking",
			AggregateID:   b.ID,
			EventType:     outbox.EventBookingConfirmed,
			Payload:       payload,
		})
	})
}

func (r *BookingRepository) Cancel(ctx context.Context, guideID, bookingID, reason string, at time.Time) (model.Booking, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return model.Booking{}, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	row := tx.QueryRow(ctx, `
		UPDATE bookings
		SET status = 'cancelled',
			cancelled_at = $3,
			cancellation_reason = $4
		WHERE guide_id = $1 AND id = $2 AND status = 'confirmed'
		RETURNING `+bookingColumns+`
	`, guideID, bookingID, at, reason)
	b, err := scanBooking(row)
	if err != nil {
		return model.Booking{}, mapErr(err)
	}

	payload, err := json.Marshal(map[string]any{
		"booking_id":     b.ID,
		"guide_id":       b.GuideID,
		"start_time":     b.StartTime.UTC().Format(time.RFC3339),
		"end_time":       b.EndTime.UTC().Format(time.RFC3339),
		"duration_hours": b.DurationHours,
		"cancelled_at":   at.UTC().Format(time.RFC3339),
		"reason":         reason,
	})
	if err != nil {
		return model.Booking{}, err
	}
	if err := r.outboxRepo.Insert(ctx, tx, outbox.Event{
		AggregateType: "booking",
		AggregateID:   b.ID,
		EventType:     outbox.EventBookingCancelled,
		Payload:       payload,
	}); err != nil {
		return model.Booking{}, err
	}
	if err := tx.Commit(ctx); err != nil {
		return model.Booking{}, err
	}
	return b, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanBooking(row rowScanner) (model.Booking, error) {
	var (
		b           model.Booking
		status      string
		cancelledAt *time.Time
	)
	err := row.Scan(&b.ID, &b.GuideID, &b.ClientID, &b.StartTime, &b.EndTime,
		&b.DurationHours, &b.BufferMinutes, &status, &cancelledAt, &b.CancelReason, &b.CreatedAt)
	if err != nil {
		return model.Booking{}, err
	}
	b.Status = model.BookingStatus(status)
	b.CancelledAt = cancelledAt
	return b, nil
}

func scanBookings(rows pgx.Rows) ([]model.Booking, error) {
	defer rows.Close()
	var out []model.Booking
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return out, nil
}
