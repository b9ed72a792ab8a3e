package handlers

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/wanderspot/wanderspot/libs/auth"
	"github.com/wanderspot/wanderspot/libs/httpx"
	"github.com/wanderspot/wanderspot/services/scheduling-service/internal/booking"
	"github.com/wanderspot/wanderspot/services/scheduling-service/internal/model"
)

type ctxKey string

const guideIDKey ctxKey = "guide_id"

// ManageHandler serves the guide-facing management endpoints. Every route
// requires a bearer token minted by the identity service; the token's
// guide_id claim scopes all reads and writes.
type ManageHandler struct {
	svc    *booking.Service
	secret string
	logger *slog.Logger
}

func NewManageHandler(svc *booking.Service, secret string, logger *slog.Logger) *ManageHandler {
	return &ManageHandler{svc: svc, secret: secret, logger: logger}
}

// RequireGuide verifies the bearer token and stashes its guide_id in the
// request context.
func (h *ManageHandler) RequireGuide(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		token, ok := auth.BearerToken(r.Header.Get("Authorization"))
		if !ok {
			httpx.WriteError(w, http.StatusUnauthorized, "missing bearer token")
			return
		}
		claims, err := auth.VerifyHS256(token, h.secret)
		if err != nil || claims.GuideID == "" {
			httpx.WriteError(w, http.StatusUnauthorized, "invalid token")
			return
		}
		ctx := context.WithValue(r.Context(), guideIDKey, claims.GuideID)
		next(w, r.WithContext(ctx))
	}
}

func guideFrom(ctx context.Context) string {
	id, _ := ctx.Value(guideIDKey).(string)
	return id
}

// Schedule handles GET and PUT /api/v1/schedule.
func (h *ManageHandler) Schedule(w http.ResponseWriter, r *http.Request) {
	guideID := guideFrom(r.Context())
	switch r.Method {
	case http.MethodGet:
		settings, err := h.svc.GetSettings(r.Context(), guideID)
		if err != nil {
			writeServiceError(w, h.logger, err)
			return
		}
		httpx.WriteJSON(w, http.StatusOK, settings)
	case http.MethodPut:
		var patch booking.SettingsPatch
		if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
			httpx.WriteError(w, http.StatusBadRequest, "invalid json body")
			return
		}
		settings, err := h.svc.UpdateSettings(r.Context(), guideID, patch)
		if err != nil {
			writeServiceError(w, h.logger, err)
			return
		}
		httpx.WriteJSON(w, http.StatusOK, settings)
	default:
		httpx.WriteError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

type blockDatesRequest struct {
	Dates  []string `json:"dates"`
	Reason string   `json:"reason"`
}

type blockDatesResponse struct {
	Blocked  []string `json:"blocked"`
	Warnings []string `json:"warnings,omitempty"`
}

// BlockedDates handles GET, POST and DELETE /api/v1/schedule/blocked-dates.
func (h *ManageHandler) BlockedDates(w http.ResponseWriter, r *http.Request) {
	guideID := guideFrom(r.Context())
	switch r.Method {
	case http.MethodGet:
		from, to, ok := h.dateRange(w, r)
		if !ok {
			return
		}
		out, err := h.svc.ListBlockedDates(r.Context(), guideID, from, to)
		if err != nil {
			writeServiceError(w, h.logger, err)
			return
		}
		if out == nil {
			out = []model.BlockedDate{}
		}
		httpx.WriteJSON(w, http.StatusOK, map[string]any{"blocked_dates": out})
	case http.MethodPost:
		var req blockDatesRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			httpx.WriteError(w, http.StatusBadRequest, "invalid json body")
			return
		}
		days := make([]model.Date, 0, len(req.Dates))
		for _, raw := range req.Dates {
			day, err := model.ParseDate(raw)
			if err != nil {
				httpx.WriteError(w, http.StatusBadRequest, "invalid date "+raw+" (want YYYY-MM-DD)")
				return
			}
			days = append(days, day)
		}
		warnings, err := h.svc.BlockDates(r.Context(), guideID, days, req.Reason)
		if err != nil {
			writeServiceError(w, h.logger, err)
			return
		}
		httpx.WriteJSON(w, http.StatusOK, blockDatesResponse{Blocked: req.Dates, Warnings: warnings})
	case http.MethodDelete:
		day, err := model.ParseDate(r.URL.Query().Get("date"))
		if err != nil {
			httpx.WriteError(w, http.StatusBadRequest, "invalid date (want YYYY-MM-DD)")
			return
		}
		if err := h.svc.UnblockDate(r.Context(), guideID, day); err != nil {
			writeServiceError(w, h.logger, err)
			return
		}
		httpx.WriteJSON(w, http.StatusOK, map[string]string{"unblocked": day.String()})
	default:
		httpx.WriteError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

// Bookings handles GET /api/v1/bookings.
func (h *ManageHandler) Bookings(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httpx.WriteError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			httpx.WriteError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		limit = n
	}
	out, err := h.svc.ListBookings(r.Context(), guideFrom(r.Context()), limit)
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}
	if out == nil {
		out = []model.Booking{}
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]any{"bookings": out})
}

type cancelRequest struct {
	BookingID string `json:"booking_id"`
	Reason    string `json:"reason"`
}

// CancelBooking handles POST /api/v1/bookings/cancel.
func (h *ManageHandler) CancelBooking(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		httpx.WriteError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	var req cancelRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "invalid json body")
		return
	}
	b, err := h.svc.CancelBooking(r.Context(), guideFrom(r.Context()), req.BookingID, req.Reason)
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, b)
}

// dateRange parses optional start_date/end_date query params, defaulting
// to today through the far future so a bare GET lists everything upcoming.
func (h *ManageHandler) dateRange(w http.ResponseWriter, r *http.Request) (model.Date, model.Date, bool) {
	q := r.URL.Query()
	from := model.Date{Year: 1970, Month: 1, Day: 1}
	to := model.Date{Year: 9999, Month: 12, Day: 31}
	var err error
	if raw := q.Get("start_date"); raw != "" {
		if from, err = model.ParseDate(raw); err != nil {
			httpx.WriteError(w, http.StatusBadRequest, "invalid start_date (want YYYY-MM-DD)")
			return model.Date{}, model.Date{}, false
		}
	}
	if raw := q.Get("end_date"); raw != "" {
		if to, err = model.ParseDate(raw); err != nil {
			httpx.WriteError(w, http.StatusBadRequest, "invalid end_date (want YYYY-MM-DD)")
			return model.Date{}, model.Date{}, false
		}
	}
	return from, to, true
}
