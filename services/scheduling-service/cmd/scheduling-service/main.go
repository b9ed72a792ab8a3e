package main

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/wanderspot/wanderspot/libs/config"
	"github.com/wanderspot/wanderspot/libs/db"
	"github.com/wanderspot/wanderspot/libs/httpx"
	"github.com/wanderspot/wanderspot/libs/kafkax"
	otelx "github.com/wanderspot/wanderspot/libs/otel"
	"github.com/wanderspot/wanderspot/libs/runtime"
	"github.com/wanderspot/wanderspot/services/scheduling-service/internal/booking"
	"github.com/wanderspot/wanderspot/services/scheduling-service/internal/handlers"
	"github.com/wanderspot/wanderspot/services/scheduling-service/internal/outbox"
	"github.com/wanderspot/wanderspot/services/scheduling-service/internal/storage"
)

func main() {
	service := config.String("SERVICE_NAME", "scheduling-service")
	port, err := config.Port("PORT", "8084")
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

	loc := time.UTC
	if name := config.String("SCHEDULE_TIMEZONE", "UTC"); name != "UTC" {
		if parsed, err := time.LoadLocation(name); err != nil {
			logger.Warn("invalid SCHEDULE_TIMEZONE, using UTC", "value", name)
		} else {
			loc = parsed
		}
	}
	slotStep := config.Minutes("SLOT_STEP_MINUTES", time.Hour)

	var readyChecks []runtime.ReadyCheck

	var (
		settingsStore booking.SettingsStore
		blockedStore  booking.BlockedDateRegistry
		ledger        booking.Ledger
	)
	if dbURL := config.String("DATABASE_URL", ""); dbURL != "" {
		pool, err := db.Open(ctx, dbURL)
		if err != nil {
			logger.Error("db connection failed", "err", err)
			panic(err)
		}
		defer pool.Close()
		readyChecks = append(readyChecks, runtime.ReadyCheck{Name: "db", Check: db.ReadyCheck(pool)})

		scheduleRepo := storage.NewScheduleRepository(pool)
		outboxRepo := outbox.NewRepository(pool)
		settingsStore = scheduleRepo
		blockedStore = scheduleRepo
		ledger = storage.NewBookingRepository(pool, outboxRepo)

		outboxPublisher := outbox.NewPublisher(pool, outboxRepo, logger, outbox.PublisherConfig{
			Brokers:   config.String("KAFKA_BROKERS", ""),
			PollEvery: 2 * time.Second,
			BatchSize: 50,
		})
		go outboxPublisher.Run(ctx)
	} else {
		logger.Warn("DATABASE_URL not set; using in-memory store (state is lost on restart)")
		mem := storage.NewMemoryStore()
		settingsStore = mem
		blockedStore = mem
		ledger = mem.Ledger()
	}

	if brokers := config.String("KAFKA_BROKERS", ""); brokers != "" {
		readyChecks = append(readyChecks, runtime.ReadyCheck{Name: "kafka", Check: kafkax.ReadyCheck(brokers)})
	}

	svc := booking.NewService(settingsStore, blockedStore, ledger, booking.Config{
		SlotStep: slotStep,
		Location: loc,
		Logger:   logger,
	})

	jwtSecret, err := config.RequiredString("JWT_SECRET")
	if err != nil {
		panic(err)
	}

	publicHandler := handlers.NewPublicHandler(svc, logger)
	manageHandler := handlers.NewManageHandler(svc, jwtSecret, logger)

	mux := runtime.NewBaseMux(readyChecks...)
	mux.HandleFunc("/api/v1/public/availability", publicHandler.Availability)
	mux.HandleFunc("/api/v1/public/book", publicHandler.Book)
	mux.HandleFunc("/api/v1/schedule", manageHandler.RequireGuide(manageHandler.Schedule))
	mux.HandleFunc("/api/v1/schedule/blocked-dates", manageHandler.RequireGuide(manageHandler.BlockedDates))
	mux.HandleFunc("/api/v1/bookings", manageHandler.RequireGuide(manageHandler.Bookings))
	mux.HandleFunc("/api/v1/bookings/cancel", manageHandler.RequireGuide(manageHandler.CancelBooking))

	limitPerMinute := config.Int("RATE_LIMIT_PER_MINUTE", 120)
	var rateLimitMW httpx.Middleware
	if addr := strings.TrimSpace(config.String("REDIS_ADDR", "")); addr != "" {
		rdb := redis.NewClient(&redis.Options{
			Addr:     addr,
			Password: config.String("REDIS_PASSWORD", ""),
			DB:       config.Int("REDIS_DB", 0),
		})
		defer func() { _ = rdb.Close() }()

		rl := httpx.NewRedisRateLimiter(rdb, limitPerMinute, time.Minute, config.String("RATE_LIMIT_PREFIX", "rl"))
		rateLimitMW = rl.Middleware(logger, config.Bool("RATE_LIMIT_FAIL_OPEN", true))
		logger.Info("rate limiting enabled (redis)", "per_minute", limitPerMinute, "redis_addr", addr)
	} else {
		rl := httpx.NewRateLimiter(limitPerMinute, time.Minute)
		rateLimitMW = rl.Middleware()
		logger.Info("rate limiting enabled (in-memory)", "per_minute", limitPerMinute)
	}

	handler := httpx.Chain(mux,
		httpx.WithCORS(httpx.CORSPolicy{
			AllowedOrigins:   parseList(config.String("CORS_ALLOWED_ORIGINS", "")),
			AllowedMethods:   parseList(config.String("CORS_ALLOWED_METHODS", "GET,POST,PUT,DELETE,OPTIONS")),
			AllowedHeaders:   parseList(config.String("CORS_ALLOWED_HEADERS", "Authorization,Content-Type,X-Request-Id")),
			AllowCredentials: config.Bool("CORS_ALLOW_CREDENTIALS", false),
			MaxAge:           time.Duration(config.Int("CORS_MAX_AGE_SECONDS", 600)) * time.Second,
		}),
		httpx.WithRequestID,
		httpx.WithAccessLog(logger),
		httpx.WithBodyLimit(int64(config.Int("REQUEST_BODY_LIMIT_BYTES", 1<<20))),
		httpx.WithTimeout(time.Duration(config.Int("REQUEST_TIMEOUT_SECONDS", 10))*time.Second),
		rateLimitMW,
	)
	handler = otelhttp.NewHandler(handler, "scheduling")
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

func parseList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
