package main

import (
	"context"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"authgate/internal/activity/repository"
	"authgate/internal/auth/handler"
	"authgate/internal/auth/service"
	"authgate/internal/config"
	"authgate/internal/db"
	devicerepo "authgate/internal/device/repository"
	"authgate/internal/events"
	"authgate/internal/events/producer"
	"authgate/internal/health"
	"authgate/internal/notifier"
	"authgate/internal/policy"
	"authgate/internal/security"
	"authgate/internal/server/middleware"
	"authgate/internal/store"
	otelsetup "authgate/internal/telemetry/otel"
	"authgate/internal/throttle"
	userrepo "authgate/internal/user/repository"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	ctx := context.Background()

	providers, err := otelsetup.NewProviders(ctx, cfg.OTLPEndpoint, "authgate", cfg.OTLPInsecure)
	if err != nil {
		log.Fatalf("telemetry: %v", err)
	}
	providers.SetGlobal()
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = providers.Shutdown(sctx)
	}()

	mux := http.NewServeMux()

	var backend store.Backend
	if cfg.DatabaseURL != "" {
		conn, err := db.Open(ctx, cfg.DatabaseURL)
		if err != nil {
			log.Fatalf("db: %v", err)
		}
		defer conn.Close()
		backend = store.NewPostgresBackend(conn)
		mux.Handle("/healthz", health.New(conn))
	} else {
		log.Println("DATABASE_URL not set, using in-memory backend")
		backend = store.NewMemoryBackend()
		mux.Handle("/healthz", health.New(nil))
	}

	engine := store.NewEngine()

	users, err := userrepo.New(engine, backend)
	if err != nil {
		log.Fatalf("user repository: %v", err)
	}
	devices, err := devicerepo.New(engine, backend)
	if err != nil {
		log.Fatalf("device repository: %v", err)
	}
	activity, err := repository.New(engine, backend)
	if err != nil {
		log.Fatalf("activity repository: %v", err)
	}

	tokens, err := security.NewTokenProvider(cfg.JWTSecret, cfg.JWTIssuer, cfg.JWTAudience, cfg.AccessTTL())
	if err != nil {
		log.Fatalf("tokens: %v", err)
	}
	hasher := security.NewHasher(cfg.BcryptCost)
	loginThrottle := throttle.New(cfg.ThrottleWindowTTL(), cfg.ThrottleMaxFailures)

	// Alerts go to Kafka when brokers are configured; otherwise straight to
	// the webhook, and failing both, the OTel log stream.
	var alerts events.Emitter
	if kp := producer.NewKafkaProducer(cfg.AlertKafkaBrokersList(), cfg.AlertKafkaTopic); kp != nil {
		defer kp.Close()
		alerts = kp
	} else if wh := notifier.NewWebhook(cfg.WebhookURL); wh != nil {
		alerts = notifier.Emitter{N: wh}
	} else {
		alerts = otelsetup.NewEventEmitter(providers.LoggerProvider)
	}

	svc := service.New(users, devices, hasher, tokens, loginThrottle, alerts, cfg.RefreshTTL(), cfg.RotateWithinTTL())

	access, err := policy.NewEvaluator(ctx)
	if err != nil {
		log.Fatalf("policy: %v", err)
	}

	metrics, err := handler.NewMetrics()
	if err != nil {
		log.Printf("metrics disabled: %v", err)
	}

	slogger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	h := handler.New(slogger, svc, activity, devices, access, metrics)
	h.Register(mux, middleware.RequireAuth(tokens))

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		log.Printf("HTTP server listening on %s", cfg.HTTPAddr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("serve: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	log.Println("shutting down HTTP server...")
	sctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(sctx); err != nil {
		log.Printf("shutdown: %v", err)
	}
	log.Println("HTTP server stopped")
}
