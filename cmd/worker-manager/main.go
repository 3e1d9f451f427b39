// cmd/worker-manager/main.go
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"conversation-workers/internal/appointments"
	"conversation-workers/internal/common/camunda"
	"conversation-workers/internal/common/config"
	"conversation-workers/internal/common/database"
	"conversation-workers/internal/common/logger"
	"conversation-workers/internal/common/observability"
	"conversation-workers/internal/intent"
	"conversation-workers/internal/outcome"
	"conversation-workers/internal/scheduler"
	"conversation-workers/internal/telemetry"
	"conversation-workers/pkg/registry"

	ai "conversation-workers/internal/workers/conversation/analyze-intent"
	dco "conversation-workers/internal/workers/conversation/detect-conversation-outcome"
	gcm "conversation-workers/internal/workers/conversation/get-conversion-metrics"
	mas "conversation-workers/internal/workers/conversation/mark-abandoned-sessions"
	uco "conversation-workers/internal/workers/conversation/update-conversation-outcome"
)

// retryWithBackoff attempts to execute a function with exponential backoff
func retryWithBackoff(operation func() error, maxRetries int, initialDelay time.Duration, log *zap.Logger, operationName string) error {
	var err error
	delay := initialDelay

	for i := 0; i < maxRetries; i++ {
		err = operation()
		if err == nil {
			return nil
		}

		if i < maxRetries-1 {
			log.Warn(fmt.Sprintf("%s failed, retrying...", operationName),
				zap.Error(err),
				zap.Int("attempt", i+1),
				zap.Int("maxRetries", maxRetries),
				zap.Duration("nextRetryIn", delay),
			)
			time.Sleep(delay)
			delay *= 2
		}
	}

	return fmt.Errorf("%s failed after %d attempts: %w", operationName, maxRetries, err)
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config load failed: %v\n", err)
		os.Exit(1)
	}

	zapLog := logger.New(cfg.Logging, cfg.App.Name)
	defer zapLog.Sync()
	log := logger.NewZapAdapter(zapLog)

	zapLog.Info("Starting worker manager...",
		zap.String("app", cfg.App.Name),
		zap.String("environment", cfg.App.Environment),
	)

	obs := observability.New(cfg.App.Name)
	defer obs.Shutdown()

	ctx := context.Background()

	// --- Zeebe ---
	zeebe, err := camunda.NewClientWithConfig(camunda.ConfigFrom(cfg.Camunda))
	if err != nil {
		zapLog.Fatal("zeebe client failed", zap.Error(err))
	}
	defer zeebe.Close()
	zapLog.Info("Zeebe client connected successfully")

	// --- PostgreSQL with retry ---
	var pg *database.PostgresClient
	err = retryWithBackoff(func() error {
		var err error
		pg, err = database.NewPostgres(cfg.Database.Postgres)
		if err != nil {
			return err
		}
		return pg.Ping(ctx)
	}, 15, 2*time.Second, zapLog, "PostgreSQL connection")
	if err != nil {
		zapLog.Fatal("postgres failed after retries", zap.Error(err))
	}
	defer pg.Close()

	if err := pg.Migrate(ctx); err != nil {
		zapLog.Fatal("schema migration failed", zap.Error(err))
	}
	zapLog.Info("PostgreSQL connected successfully")

	// --- Redis with retry ---
	var rdb *database.RedisClient
	err = retryWithBackoff(func() error {
		var err error
		rdb, err = database.NewRedis(cfg.Database.Redis)
		if err != nil {
			return err
		}
		return rdb.Ping(ctx)
	}, 10, 2*time.Second, zapLog, "Redis connection")
	if err != nil {
		zapLog.Fatal("redis failed after retries", zap.Error(err))
	}
	defer rdb.Close()
	zapLog.Info("Redis connected successfully")

	reg, err := registry.Default()
	if err != nil {
		zapLog.Fatal("activity registry failed to load", zap.Error(err))
	}
	validator, err := reg.Validator()
	if err != nil {
		zapLog.Fatal("activity schemas failed to compile", zap.Error(err))
	}

	// --- Domain services ---
	store := outcome.NewPostgresStore(pg.DB)
	tel := telemetry.NewService(rdb.Client, pg.DB, config.GetDuration(cfg.Telemetry.IntentTTL), log)
	detector := appointments.NewDetector(pg.DB, log)
	reconciler := outcome.NewReconciler(store, tel, detector, outcome.ConfigFrom(cfg.Reconciler), log)
	analyzer := outcome.NewAnalyzer(store, reconciler, log)
	classifier := intent.NewClassifier()

	// --- Workers ---
	group := camunda.NewWorkerGroup(zeebe.GetClient(), zapLog)
	handlers := map[string]worker.JobHandler{
		ai.TaskType: ai.NewHandler(
			ai.LoadConfig(config.GetWorkerConfig(cfg, ai.TaskType)),
			classifier, tel, validator, obs, log,
		).Handle,
		uco.TaskType: uco.NewHandler(
			uco.LoadConfig(config.GetWorkerConfig(cfg, uco.TaskType)),
			reconciler, validator, obs, log,
		).Handle,
		dco.TaskType: dco.NewHandler(
			dco.LoadConfig(config.GetWorkerConfig(cfg, dco.TaskType)),
			reconciler, validator, obs, log,
		).Handle,
		mas.TaskType: mas.NewHandler(
			mas.LoadConfig(config.GetWorkerConfig(cfg, mas.TaskType)),
			reconciler, tel, validator, obs, log,
		).Handle,
		gcm.TaskType: gcm.NewHandler(
			gcm.LoadConfig(config.GetWorkerConfig(cfg, gcm.TaskType)),
			tel, detector, validator, obs, log,
		).Handle,
	}
	for _, a := range reg.Activities {
		handler, ok := handlers[a.TaskType]
		if !ok {
			zapLog.Warn("no handler for registered activity", zap.String("taskType", a.TaskType))
			continue
		}
		group.Start(a.TaskType, config.GetWorkerConfig(cfg, a.TaskType), handler)
	}
	defer group.Stop()
	zapLog.Info("Workers registered", zap.Strings("taskTypes", group.TaskTypes()))

	// --- Scheduled sweeps ---
	var sched *scheduler.Scheduler
	if cfg.Scheduler.Enabled {
		sched, err = scheduler.New(cfg.Scheduler, reconciler, analyzer, obs, log)
		if err != nil {
			zapLog.Fatal("scheduler setup failed", zap.Error(err))
		}
		sched.Start()
		zapLog.Info("Scheduler started",
			zap.String("timeoutSweep", cfg.Scheduler.TimeoutSweep),
			zap.String("bookingSweep", cfg.Scheduler.BookingSweep),
			zap.String("finishedSweep", cfg.Scheduler.FinishedSweep),
		)
	}

	// --- Health / metrics ---
	mux := http.NewServeMux()
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		writeStatus(w, http.StatusOK, map[string]interface{}{
			"status": "healthy",
			"time":   time.Now().Format(time.RFC3339),
		})
	})
	mux.HandleFunc("/ready", func(w http.ResponseWriter, r *http.Request) {
		checkCtx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
		defer cancel()

		checks := map[string]string{}
		status := http.StatusOK
		for name, check := range map[string]func(context.Context) error{
			"postgres": pg.Ping,
			"redis":    rdb.Ping,
			"zeebe":    zeebe.HealthCheck,
		} {
			if err := check(checkCtx); err != nil {
				checks[name] = err.Error()
				status = http.StatusServiceUnavailable
				continue
			}
			checks[name] = "ok"
		}

		state := "ready"
		if status != http.StatusOK {
			state = "not_ready"
		}
		writeStatus(w, status, map[string]interface{}{
			"status":  state,
			"checks":  checks,
			"workers": group.TaskTypes(),
			"time":    time.Now().Format(time.RFC3339),
		})
	})
	mux.Handle("/metrics", promhttp.Handler())

	server := &http.Server{
		Addr:              cfg.Server.Address,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		zapLog.Info("Health/Metrics server listening", zap.String("address", cfg.Server.Address))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zapLog.Error("Health/Metrics server failed", zap.Error(err))
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	zapLog.Info("Shutdown signal received, stopping workers...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if sched != nil {
		select {
		case <-sched.Stop().Done():
		case <-shutdownCtx.Done():
			zapLog.Warn("scheduled jobs still running at shutdown")
		}
	}
	if err := server.Shutdown(shutdownCtx); err != nil {
		zapLog.Error("Error stopping health server", zap.Error(err))
	}

	zapLog.Info("Worker manager stopped gracefully")
}

func writeStatus(w http.ResponseWriter, status int, body map[string]interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
