package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/wanderspot/wanderspot/libs/auth"
	"github.com/wanderspot/wanderspot/services/scheduling-service/internal/booking"
	"github.com/wanderspot/wanderspot/services/scheduling-service/internal/model"
	"github.com/wanderspot/wanderspot/services/scheduling-service/internal/storage"
)

const testSecret = "test-secret"

var testNow = time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestMux(t *testing.T) *http.ServeMux {
	t.Helper()
	mem := storage.NewMemoryStore()
	if err := mem.Put(context.Background(), model.ScheduleSettings{
		GuideID:             "guide-1",
		WorkingDays:         []time.Weekday{time.Monday, time.Tuesday, time.Wednesday, time.Thursday, time.Friday},
		WorkStart:           8 * 60,
		WorkEnd:             18 * 60,
		MinimumAdvanceHours: 24,
		MaximumAdvanceDays:  90,
		BufferMinutes:       30,
		MinBookingHours:     1,
		MaxBookingHours:     8,
	}); err != nil {
		t.Fatalf("seed settings: %v", err)
	}
	svc := booking.NewService(mem, mem, mem.Ledger(), booking.Config{
		SlotStep: time.Hour,
		Location: time.UTC,
		Now:      func() time.Time { return testNow },
	})

	logger := testLogger()
	public := NewPublicHandler(svc, logger)
	manage := NewManageHandler(svc, testSecret, logger)

	mux := http.NewServeMux()
	mux.HandleFunc("/api/v1/public/availability", public.Availability)
	mux.HandleFunc("/api/v1/public/book", public.Book)
	mux.HandleFunc("/api/v1/schedule", manage.RequireGuide(manage.Schedule))
	mux.HandleFunc("/api/v1/schedule/blocked-dates", manage.RequireGuide(manage.BlockedDates))
	mux.HandleFunc("/api/v1/bookings", manage.RequireGuide(manage.Bookings))
	mux.HandleFunc("/api/v1/bookings/cancel", manage.RequireGuide(manage.CancelBooking))
	return mux
}

func guideToken(t *testing.T) string {
	t.Helper()
	token, err := auth.SignHS256(auth.Claims{
		Sub:     "user-1",
		GuideID: "guide-1",
		Role:    "guide",
		Iat:     time.Now().Unix(),
		Exp:     time.Now().Add(time.Hour).Unix(),
	}, testSecret)
	if err != nil {
		t.Fatalf("SignHS256: %v", err)
	}
	return token
}

func doJSON(t *testing.T, mux *http.ServeMux, method, path, token, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	return rec
}

func TestAvailabilityEndpoint(t *testing.T) {
	mux := newTestMux(t)

	rec := doJSON(t, mux, http.MethodGet,
		"/api/v1/public/availability?guide_id=guide-1&start_date=2025-03-10&end_date=2025-03-11&duration_hours=4", "", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status %d: %s", rec.Code, rec.Body)
	}
	var resp struct {
		Availability []struct {
			Date  string `json:"date"`
			Slots []struct {
				Available bool `json:"available"`
			} `json:"slots"`
		} `json:"availability"`
		WorkingHours struct {
			Start string `json:"start"`
			End   string `json:"end"`
		} `json:"working_hours"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(resp.Availability) != 2 {
		t.Fatalf("days %d, want 2", len(resp.Availability))
	}
	if resp.Availability[0].Date != "2025-03-10" || len(resp.Availability[0].Slots) != 7 {
		t.Fatalf("unexpected first day: %+v", resp.Availability[0])
	}
	if resp.WorkingHours.Start != "08:00" || resp.WorkingHours.End != "18:00" {
		t.Fatalf("working hours %+v", resp.WorkingHours)
	}

	if rec := doJSON(t, mux, http.MethodGet, "/api/v1/public/availability?start_date=2025-03-10", "", ""); rec.Code != http.StatusBadRequest {
		t.Fatalf("missing guide_id: status %d", rec.Code)
	}
	if rec := doJSON(t, mux, http.MethodGet, "/api/v1/public/availability?guide_id=guide-1&start_date=10-03-2025", "", ""); rec.Code != http.StatusBadRequest {
		t.Fatalf("bad date: status %d", rec.Code)
	}
}

func TestBookEndpoint(t *testing.T) {
	mux := newTestMux(t)
	body := `{"guide_id":"guide-1","client_id":"client-1","start_date":"2025-03-10","start_time":"10:00","duration_hours":4}`

	rec := doJSON(t, mux, http.MethodPost, "/api/v1/public/book", "", body)
	if rec.Code != http.StatusCreated {
		t.Fatalf("status %d: %s", rec.Code, rec.Body)
	}
	var created model.Booking
	if err := json.Unmarshal(rec.Body.Bytes(), &created); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if created.ID == "" || created.Status != model.BookingConfirmed {
		t.Fatalf("unexpected booking: %+v", created)
	}

	// The identical request now conflicts.
	if rec := doJSON(t, mux, http.MethodPost, "/api/v1/public/book", "", body); rec.Code != http.StatusConflict {
		t.Fatalf("repeat booking: status %d, want 409", rec.Code)
	}

	if rec := doJSON(t, mux, http.MethodPost, "/api/v1/public/book", "", `{not json`); rec.Code != http.StatusBadRequest {
		t.Fatalf("bad json: status %d", rec.Code)
	}
	if rec := doJSON(t, mux, http.MethodGet, "/api/v1/public/book", "", ""); rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("GET book: status %d", rec.Code)
	}

	// Unknown guide maps to 404.
	unknown := strings.Replace(body, "guide-1", "guide-x", 1)
	if rec := doJSON(t, mux, http.MethodPost, "/api/v1/public/book", "", unknown); rec.Code != http.StatusNotFound {
		t.Fatalf("unknown guide: status %d", rec.Code)
	}
}

// downLedger simulates an unreachable booking store behind the handlers.
type downLedger struct{}

var errLedgerDown = errors.New("dial tcp: connection refused")

func (downLedger) ListActive(ctx context.Context, guideID string, from, to time.Time) ([]model.Booking, error) {
	return nil, errLedgerDown
}

func (downLedger) ListByGuide(ctx context.Context, guideID string, limit int) ([]model.Booking, error) {
	return nil, errLedgerDown
}

func (downLedger) Get(ctx context.Context, guideID, bookingID string) (model.Booking, error) {
	return model.Booking{}, errLedgerDown
}

func (downLedger) Append(ctx context.Context, b model.Booking) error {
	return errLedgerDown
}

func (downLedger) Cancel(ctx context.Context, guideID, bookingID, reason string, at time.Time) (model.Booking, error) {
	return model.Booking{}, errLedgerDown
}

func TestStoreFailureMapsTo503(t *testing.T) {
	mem := storage.NewMemoryStore()
	if err := mem.Put(context.Background(), model.DefaultSettings("guide-1")); err != nil {
		t.Fatalf("seed settings: %v", err)
	}
	svc := booking.NewService(mem, mem, downLedger{}, booking.Config{
		SlotStep: time.Hour,
		Location: time.UTC,
		Now:      func() time.Time { return testNow },
	})
	public := NewPublicHandler(svc, testLogger())

	mux := http.NewServeMux()
	mux.HandleFunc("/api/v1/public/availability", public.Availability)
	mux.HandleFunc("/api/v1/public/book", public.Book)

	rec := doJSON(t, mux, http.MethodGet,
		"/api/v1/public/availability?guide_id=guide-1&start_date=2025-03-10", "", "")
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("availability: status %d, want 503", rec.Code)
	}

	body := `{"guide_id":"guide-1","client_id":"client-1","start_date":"2025-03-10","start_time":"10:00","duration_hours":2}`
	rec = doJSON(t, mux, http.MethodPost, "/api/v1/public/book", "", body)
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("book: status %d, want 503", rec.Code)
	}
	// The store error text stays out of the response body.
	if strings.Contains(rec.Body.String(), "connection refused") {
		t.Fatalf("response leaks store error: %s", rec.Body)
	}
}

func TestManagementAuth(t *testing.T) {
	mux := newTestMux(t)

	if rec := doJSON(t, mux, http.MethodGet, "/api/v1/schedule", "", ""); rec.Code != http.StatusUnauthorized {
		t.Fatalf("no token: status %d", rec.Code)
	}
	badToken, err := auth.SignHS256(auth.Claims{Sub: "user-1", GuideID: "guide-1"}, "other-secret")
	if err != nil {
		t.Fatalf("SignHS256: %v", err)
	}
	if rec := doJSON(t, mux, http.MethodGet, "/api/v1/schedule", badToken, ""); rec.Code != http.StatusUnauthorized {
		t.Fatalf("wrong secret: status %d", rec.Code)
	}
}

func TestScheduleEndpoint(t *testing.T) {
	mux := newTestMux(t)
	token := guideToken(t)

	rec := doJSON(t, mux, http.MethodGet, "/api/v1/schedule", token, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("GET schedule: status %d: %s", rec.Code, rec.Body)
	}
	var settings model.ScheduleSettings
	if err := json.Unmarshal(rec.Body.Bytes(), &settings); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if settings.GuideID != "guide-1" || settings.BufferMinutes != 30 {
		t.Fatalf("unexpected settings: %+v", settings)
	}

	rec = doJSON(t, mux, http.MethodPut, "/api/v1/schedule", token, `{"buffer_minutes":45,"minimum_booking_hours":2}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("PUT schedule: status %d: %s", rec.Code, rec.Body)
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &settings); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if settings.BufferMinutes != 45 || settings.MinBookingHours != 2 {
		t.Fatalf("patch not applied: %+v", settings)
	}

	rec = doJSON(t, mux, http.MethodPut, "/api/v1/schedule", token, `{"work_start":"19:00"}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("invalid patch: status %d", rec.Code)
	}
}

func TestBlockedDatesEndpoint(t *testing.T) {
	mux := newTestMux(t)
	token := guideToken(t)

	rec := doJSON(t, mux, http.MethodPost, "/api/v1/schedule/blocked-dates", token,
		`{"dates":["2025-03-10","2025-03-11"],"reason":"vacation"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("POST blocked-dates: status %d: %s", rec.Code, rec.Body)
	}

	rec = doJSON(t, mux, http.MethodGet, "/api/v1/schedule/blocked-dates?start_date=2025-03-01&end_date=2025-03-31", token, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("GET blocked-dates: status %d", rec.Code)
	}
	var listResp struct {
		BlockedDates []model.BlockedDate `json:"blocked_dates"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &listResp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(listResp.BlockedDates) != 2 {
		t.Fatalf("blocked dates %d, want 2", len(listResp.BlockedDates))
	}

	rec = doJSON(t, mux, http.MethodDelete, "/api/v1/schedule/blocked-dates?date=2025-03-10", token, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("DELETE blocked-date: status %d", rec.Code)
	}
	rec = doJSON(t, mux, http.MethodDelete, "/api/v1/schedule/blocked-dates?date=2025-03-10", token, "")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("repeat DELETE: status %d, want 404", rec.Code)
	}
}

func TestBookingsEndpoints(t *testing.T) {
	mux := newTestMux(t)
	token := guideToken(t)

	body := `{"guide_id":"guide-1","client_id":"client-1","start_date":"2025-03-10","start_time":"10:00","duration_hours":4}`
	rec := doJSON(t, mux, http.MethodPost, "/api/v1/public/book", "", body)
	if rec.Code != http.StatusCreated {
		t.Fatalf("book: status %d", rec.Code)
	}
	var created model.Booking
	if err := json.Unmarshal(rec.Body.Bytes(), &created); err != nil {
		t.Fatalf("decode: %v", err)
	}

	rec = doJSON(t, mux, http.MethodGet, "/api/v1/bookings", token, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("list: status %d", rec.Code)
	}
	var listResp struct {
		Bookings []model.Booking `json:"bookings"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &listResp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(listResp.Bookings) != 1 || listResp.Bookings[0].ID != created.ID {
		t.Fatalf("unexpected list: %+v", listResp.Bookings)
	}

	rec = doJSON(t, mux, http.MethodPost, "/api/v1/bookings/cancel", token,
		`{"booking_id":"`+created.ID+`","reason":"guide unavailable"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("cancel: status %d: %s", rec.Code, rec.Body)
	}
	var cancelled model.Booking
	if err := json.Unmarshal(rec.Body.Bytes(), &cancelled); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if cancelled.Status != model.BookingCancelled {
		t.Fatalf("status %q, want cancelled", cancelled.Status)
	}

	rec = doJSON(t, mux, http.MethodPost, "/api/v1/bookings/cancel", token, `{"booking_id":"missing"}`)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("cancel missing: status %d, want 404", rec.Code)
	}
}
