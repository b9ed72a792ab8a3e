package handlers

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/wanderspot/wanderspot/libs/httpx"
	"github.com/wanderspot/wanderspot/services/scheduling-service/internal/booking"
	"github.com/wanderspot/wanderspot/services/scheduling-service/internal/model"
)

// PublicHandler serves the traveler-facing endpoints: availability lookup
// and booking. No authentication; abuse is contained by the rate limiter
// in front.
type PublicHandler struct {
	svc    *booking.Service
	logger *slog.Logger
}

func NewPublicHandler(svc *booking.Service, logger *slog.Logger) *PublicHandler {
	return &PublicHandler{svc: svc, logger: logger}
}

// Availability handles GET /api/v1/public/availability.
func (h *PublicHandler) Availability(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httpx.WriteError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	q := r.URL.Query()
	guideID := q.Get("guide_id")
	if guideID == "" {
		httpx.WriteError(w, http.StatusBadRequest, "guide_id is required")
		return
	}
	from, err := model.ParseDate(q.Get("start_date"))
	if err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "invalid start_date (want YYYY-MM-DD)")
		return
	}
	to := from
	if raw := q.Get("end_date"); raw != "" {
		if to, err = model.ParseDate(raw); err != nil {
			httpx.WriteError(w, http.StatusBadRequest, "invalid end_date (want YYYY-MM-DD)")
			return
		}
	}
	var durationHours float64
	if raw := q.Get("duration_hours"); raw != "" {
		if durationHours, err = strconv.ParseFloat(raw, 64); err != nil {
			httpx.WriteError(w, http.StatusBadRequest, "invalid duration_hours")
			return
		}
	}

	result, err := h.svc.Availability(r.Context(), guideID, from, to, durationHours)
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, result)
}

type bookRequest struct {
	GuideID       string  `json:"guide_id"`
	ClientID      string  `json:"client_id"`
	StartDate     string  `json:"start_date"`
	StartTime     string  `json:"start_time"`
	EndDate       string  `json:"end_date"`
	DurationHours float64 `json:"duration_hours"`
}

// Book handles POST /api/v1/public/book.
func (h *PublicHandler) Book(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		httpx.WriteError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var req bookRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "invalid json body")
		return
	}
	startDate, err := model.ParseDate(req.StartDate)
	if err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "invalid start_date (want YYYY-MM-DD)")
		return
	}
	startTime, err := model.ParseClock(req.StartTime)
	if err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "invalid start_time (want HH:MM)")
		return
	}

	b, err := h.svc.CreateBooking(r.Context(), booking.CreateRequest{
		GuideID:       req.GuideID,
		ClientID:      req.ClientID,
		StartDate:     startDate,
		StartTime:     startTime,
		DurationHours: req.DurationHours,
	})
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}

	// Clients may echo the end date they expect. The booking is already
	// committed at this point, so a mismatch is only logged for support to
	// trace stale client calendars.
	if req.EndDate != "" {
		want, err := model.ParseDate(req.EndDate)
		if err == nil && want != model.DateOf(b.EndTime) {
			h.logger.Warn("booking end date differs from client expectation",
				"booking_id", b.ID, "expected", want.String(), "actual", model.DateOf(b.EndTime).String())
		}
	}
	httpx.WriteJSON(w, http.StatusCreated, b)
}

// writeServiceError maps the engine's error taxonomy onto HTTP statuses.
func writeServiceError(w http.ResponseWriter, logger *slog.Logger, err error) {
	switch {
	case errors.Is(err, booking.ErrInvalidRequest):
		httpx.WriteError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, booking.ErrNotFound):
		httpx.WriteError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, booking.ErrConflict):
		httpx.WriteError(w, http.StatusConflict, err.Error())
	case errors.Is(err, booking.ErrUnavailable):
		logger.Error("dependency failure", "err", err)
		httpx.WriteError(w, http.StatusServiceUnavailable, "service temporarily unavailable")
	default:
		logger.Error("unhandled error", "err", err)
		httpx.WriteError(w, http.StatusInternalServerError, "internal error")
	}
}
