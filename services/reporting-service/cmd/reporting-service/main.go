package main

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/wanderspot/wanderspot/libs/config"
	"github.com/wanderspot/wanderspot/libs/db"
	"github.com/wanderspot/wanderspot/libs/httpx"
	"github.com/wanderspot/wanderspot/libs/kafkax"
	otelx "github.com/wanderspot/wanderspot/libs/otel"
	"github.com/wanderspot/wanderspot/libs/runtime"
	"github.com/wanderspot/wanderspot/services/reporting-service/internal/consumer"
	"github.com/wanderspot/wanderspot/services/reporting-service/internal/inbox"
	"github.com/wanderspot/wanderspot/services/reporting-service/internal/stats"
)

type bookingEvent struct {
	BookingID     string  `json:"booking_id"`
	GuideID       string  `json:"guide_id"`
	DurationHours float64 `json:"duration_hours"`
}

func main() {
	service := config.String("SERVICE_NAME", "reporting-service")
	port, err := config.Port("PORT", "8085")
	if err != nil {
		panic(err)
	}
	logger := runtime.NewLogger(service)

	ctx, stop := runtime.SignalContext()
	defer stop()

	otelShutdown, err := otelx.Setup(ctx, otelx.ConfigFromEnv(service))
	if err != nil {
		logger.Error("otel setup failed", "err", err)
	} else {
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = otelShutdown(shutdownCtx)
		}()
	}

	dbURL, err := config.RequiredString("DATABASE_URL")
	if err != nil {
		panic(err)
	}
	pool, err := db.Open(ctx, dbURL)
	if err != nil {
		logger.Error("db connection failed", "err", err)
		panic(err)
	}
	defer pool.Close()

	inboxRepo := inbox.NewRepository(pool)
	statsRepo := stats.NewRepository(pool)

	brokers := config.String("KAFKA_BROKERS", "")
	groupID := config.String("KAFKA_GROUP_ID", "reporting-service")

	decode := func(msg kafka.Message) (bookingEvent, bool) {
		var evt bookingEvent
		if err := json.Unmarshal(msg.Value, &evt); err != nil || evt.GuideID == "" {
			logger.Error("invalid event payload", "topic", msg.Topic)
			return bookingEvent{}, false
		}
		return evt, true
	}

	confirmedConsumer := consumer.New(logger, inboxRepo, consumer.Config{
		Brokers: brokers,
		GroupID: groupID,
		Topic:   config.String("KAFKA_TOPIC_CONFIRMED", "booking.confirmed.v1"),
	}, func(ctx context.Context, msg kafka.Message) error {
		evt, ok := decode(msg)
		if !ok {
			return nil
		}
		return statsRepo.RecordConfirmed(ctx, evt.GuideID, evt.DurationHours)
	})
	go confirmedConsumer.Run(ctx)

	cancelledConsumer := consumer.New(logger, inboxRepo, consumer.Config{
		Brokers: brokers,
		GroupID: groupID,
		Topic:   config.String("KAFKA_TOPIC_CANCELLED", "booking.cancelled.v1"),
	}, func(ctx context.Context, msg kafka.Message) error {
		evt, ok := decode(msg)
		if !ok {
			return nil
		}
		return statsRepo.RecordCancelled(ctx, evt.GuideID, evt.DurationHours)
	})
	go cancelledConsumer.Run(ctx)

	mux := runtime.NewBaseMux(
		runtime.ReadyCheck{Name: "db", Check: db.ReadyCheck(pool)},
		runtime.ReadyCheck{Name: "kafka", Check: kafkax.ReadyCheck(brokers)},
	)
	mux.HandleFunc("/api/v1/stats", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			httpx.WriteError(w, http.StatusMethodNotAllowed, "method not allowed")
			return
		}
		guideID := r.URL.Query().Get("guide_id")
		if guideID == "" {
			httpx.WriteError(w, http.StatusBadRequest, "guide_id is required")
			return
		}
		s, err := statsRepo.Get(r.Context(), guideID)
		if errors.Is(err, stats.ErrNotFound) {
			httpx.WriteError(w, http.StatusNotFound, "no stats recorded for guide")
			return
		}
		if err != nil {
			logger.Error("stats read failed", "err", err)
			httpx.WriteError(w, http.StatusInternalServerError, "internal error")
			return
		}
		httpx.WriteJSON(w, http.StatusOK, s)
	})

	handler := httpx.Chain(mux,
		httpx.WithRequestID,
		httpx.WithAccessLog(logger),
	)
	handler = otelhttp.NewHandler(handler, "reporting")
	srv := &http.Server{
		Addr:              ":" + port,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info("http server starting", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("http server error", "err", err)
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "err", err)
	}
	logger.Info("http server stopped")
}
