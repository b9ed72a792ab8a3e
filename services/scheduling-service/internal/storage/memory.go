package storage

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/wanderspot/wanderspot/services/scheduling-service/internal/booking"
	"github.com/wanderspot/wanderspot/services/scheduling-service/internal/model"
)

// MemoryStore implements the engine's settings store and blocked-date
// registry in process memory; Ledger() exposes the booking ledger view
// over the same state. It backs dev deployments without a DATABASE_URL
// and the engine tests. Like the Postgres ledger, Append re-checks for
// overlap so the store itself never accepts a double booking.
type MemoryStore struct {
	mu       sync.RWMutex
	settings map[string]model.ScheduleSettings
	blocked  map[string]map[model.Date]model.BlockedDate
	bookings map[string]map[string]model.Booking
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		settings: make(map[string]model.ScheduleSettings),
		blocked:  make(map[string]map[model.Date]model.BlockedDate),
		bookings: make(map[string]map[string]model.Booking),
	}
}

func (m *MemoryStore) Get(ctx context.Context, guideID string) (model.ScheduleSettings, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.settings[guideID]
	if !ok {
		return model.ScheduleSettings{}, booking.ErrNotFound
	}
	return s, nil
}

func (m *MemoryStore) Put(ctx context.Context, s model.ScheduleSettings) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.settings[s.GuideID] = s
	return nil
}

func (m *MemoryStore) List(ctx context.Context, guideID string, from, to model.Date) ([]model.BlockedDate, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []model.BlockedDate
	for day, b := range m.blocked[guideID] {
		if day.Before(from) || day.After(to) {
			continue
		}
		out = append(out, b)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Day.Before(out[j].Day) })
	return out, nil
}

func (m *MemoryStore) Add(ctx context.Context, guideID string, days []model.Date, reason string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	reg := m.blocked[guideID]
	if reg == nil {
		reg = make(map[model.Date]model.BlockedDate)
		m.blocked[guideID] = reg
	}
	for _, day := range days {
		reg[day] = model.BlockedDate{GuideID: guideID, Day: day, Reason: reason}
	}
	return nil
}

func (m *MemoryStore) Remove(ctx context.Context, guideID string, day model.Date) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	reg := m.blocked[guideID]
	if _, ok := reg[day]; !ok {
		return booking.ErrNotFound
	}
	delete(reg, day)
	return nil
}

// Ledger returns the booking-ledger view over this store's state.
func (m *MemoryStore) Ledger() *MemoryLedger {
	return &MemoryLedger{store: m}
}

type MemoryLedger struct {
	store *MemoryStore
}

func (l *MemoryLedger) ListActive(ctx context.Context, guideID string, from, to time.Time) ([]model.Booking, error) {
	l.store.mu.RLock()
	defer l.store.mu.RUnlock()
	var out []model.Booking
	for _, b := range l.store.bookings[guideID] {
		if !b.Active() {
			continue
		}
		if b.StartTime.Before(to) && from.Before(b.EndTime) {
			out = append(out, b)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartTime.Before(out[j].StartTime) })
	return out, nil
}

func (l *MemoryLedger) ListByGuide(ctx context.Context, guideID string, limit int) ([]model.Booking, error) {
	if limit <= 0 {
		limit = 50
	}
	l.store.mu.RLock()
	defer l.store.mu.RUnlock()
	out := make([]model.Booking, 0, len(l.store.bookings[guideID]))
	for _, b := range l.store.bookings[guideID] {
		out = append(out, b)
	}
	sort.Slice(out, func(i, j int) bool { return out[j].StartTime.Before(out[i].StartTime) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (l *MemoryLedger) Get(ctx context.Context, guideID, bookingID string) (model.Booking, error) {
	l.store.mu.RLock()
	defer l.store.mu.RUnlock()
	b, ok := l.store.bookings[guideID][bookingID]
	if !ok {
		return model.Booking{}, booking.ErrNotFound
	}
	return b, nil
}

func (l *MemoryLedger) Append(ctx context.Context, b model.Booking) error {
	l.store.mu.Lock()
	defer l.store.mu.Unlock()

	// Same guard the Postgres exclusion constraint provides: each active
	// booking claims [start, end + its own buffer).
	for _, existing := range l.store.bookings[b.GuideID] {
		if !existing.Active() {
			continue
		}
		if rangesOverlap(b, existing) {
			return booking.ErrConflict
		}
	}

	ledger := l.store.bookings[b.GuideID]
	if ledger == nil {
		ledger = make(map[string]model.Booking)
		l.store.bookings[b.GuideID] = ledger
	}
	ledger[b.ID] = b
	return nil
}

func (l *MemoryLedger) Cancel(ctx context.Context, guideID, bookingID, reason string, at time.Time) (model.Booking, error) {
	l.store.mu.Lock()
	defer l.store.mu.Unlock()
	b, ok := l.store.bookings[guideID][bookingID]
	if !ok || b.Status != model.BookingConfirmed {
		return model.Booking{}, booking.ErrNotFound
	}
	b.Status = model.BookingCancelled
	b.CancelledAt = &at
	b.CancelReason = reason
	l.store.bookings[guideID][bookingID] = b
	return b, nil
}

func rangesOverlap(a, b model.Booking) bool {
	aEnd := a.EndTime.Add(time.Duration(a.BufferMinutes) * time.Minute)
	bEnd := b.EndTime.Add(time.Duration(b.BufferMinutes) * time.Minute)
	return a.StartTime.Before(bEnd) && b.StartTime.Before(aEnd)
}
