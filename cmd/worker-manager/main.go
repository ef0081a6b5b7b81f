// cmd/worker-manager/main.go
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	_ "net/http/pprof"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
	"github.com/camunda/zeebe/clients/go/v8/pkg/zbc"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"salon-workers/internal/analytics"
	"salon-workers/internal/budget"
	"salon-workers/internal/common/aws"
	"salon-workers/internal/common/camunda"
	"salon-workers/internal/common/config"
	"salon-workers/internal/common/database"
	"salon-workers/internal/common/logger"
	"salon-workers/internal/common/observability"
	"salon-workers/internal/notify"
	"salon-workers/internal/store"
	"salon-workers/pkg/catalog"

	rd "salon-workers/internal/workers/infrastructure/route-decision"
	sm "salon-workers/internal/workers/routing/select-model"
	ort "salon-workers/internal/workers/timing/optimize-response-timing"
	uws "salon-workers/internal/workers/timing/update-window-settings"
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
			delay *= 2 // Exponential backoff
		}
	}

	return fmt.Errorf("%s failed after %d attempts: %w", operationName, maxRetries, err)
}

func main() {
	zapLog := logger.New("info", "console")

	zapLog.Info("Starting worker manager...")

	cfg, err := config.Load()
	if err != nil {
		zapLog.Fatal("config load failed", zap.Error(err))
	}

	// Rebuild the logger with the configured level and format.
	zapLog = logger.New(cfg.Logging.Level, cfg.Logging.Format)
	defer zapLog.Sync()
	log := logger.NewZapAdapter(zapLog)

	obs := observability.New("worker-manager")
	defer obs.Shutdown()

	ctx := context.Background()

	// --- Init Zeebe Client with retry ---
	var camundaClient *camunda.Client
	err = retryWithBackoff(func() error {
		var err error
		camundaClient, err = camunda.NewClientWithConfig(&camunda.ClientConfig{
			GatewayAddress:         cfg.Camunda.BrokerAddress,
			UsePlaintextConnection: true,
			ConnectionTimeout:      10 * time.Second,
			RequestTimeout:         time.Duration(cfg.Camunda.RequestTimeout) * time.Millisecond,
		})
		return err
	}, 10, 2*time.Second, zapLog, "Zeebe client initialization")

	if err != nil {
		zapLog.Fatal("zeebe client failed after retries", zap.Error(err))
	}
	zeebeClient := camundaClient.GetClient()
	zapLog.Info("Zeebe client connected successfully")

	// --- Init PostgreSQL with retry ---
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
	zapLog.Info("PostgreSQL connected successfully")

	// --- Init Elasticsearch with retry ---
	var esClient *database.ElasticsearchClient
	err = retryWithBackoff(func() error {
		var err error
		esClient, err = database.NewElasticsearch(cfg.Database.Elasticsearch)
		if err != nil {
			return err
		}
		return esClient.Ping()
	}, 15, 2*time.Second, zapLog, "Elasticsearch connection")

	if err != nil {
		zapLog.Fatal("elasticsearch failed after retries", zap.Error(err))
	}
	zapLog.Info("Elasticsearch connected successfully")

	// --- Init Redis with retry ---
	var redis *database.RedisClient
	err = retryWithBackoff(func() error {
		var err error
		redis, err = database.NewRedis(cfg.Database.Redis)
		if err != nil {
			return err
		}
		return redis.Ping(ctx)
	}, 10, 2*time.Second, zapLog, "Redis connection")

	if err != nil {
		zapLog.Fatal("redis failed after retries", zap.Error(err))
	}
	defer redis.Close()
	zapLog.Info("Redis connected successfully")

	// --- Model Catalog ---
	cat, err := catalog.Load(cfg.Engine.CatalogPath)
	if err != nil {
		zapLog.Fatal("model catalog failed to load", zap.Error(err))
	}
	zapLog.Info("Model catalog loaded", zap.Int("models", len(cat.Models)))

	// --- Shared Decision Components ---
	cacheTTL := time.Duration(cfg.Engine.SettingsCacheTTL) * time.Second
	salonStore := store.NewSalonStore(pg.DB, redis.Client, cacheTTL, log)
	usageStore := store.NewUsageStore(pg.DB, redis.Client, cacheTTL, log)
	tracker := budget.NewTracker(usageStore, log)
	sink := analytics.NewSink(esClient.Client, cfg.Engine.AnalyticsIndex, log)

	// Budget alerting is optional: without a configured channel the router
	// runs with a nil alerter and skips delivery entirely.
	var alerter sm.BudgetAlerter
	if cfg.Notifications.Email.Enabled || cfg.Notifications.SMS.Enabled {
		var email notify.EmailSender
		var sms notify.SMSSender
		if cfg.Notifications.Email.Enabled {
			sesClient, err := aws.NewSESClient(ctx, cfg.Notifications.AWS.Region)
			if err != nil {
				zapLog.Fatal("ses client failed", zap.Error(err))
			}
			email = sesClient
		}
		if cfg.Notifications.SMS.Enabled {
			snsClient, err := aws.NewSNSClient(ctx, cfg.Notifications.AWS.Region)
			if err != nil {
				zapLog.Fatal("sns client failed", zap.Error(err))
			}
			sms = snsClient
		}
		notifier := notify.NewNotifier(email, sms, cfg.Notifications, log)
		alerter = notify.NewSalonAlerter(salonStore, notifier, log)
		zapLog.Info("Budget alert notifier initialized")
	}

	// --- Register Workers ---

	if cfg.Workers[sm.TaskType].Enabled {
		handler := sm.NewHandler(
			&sm.Config{
				Timeout:           time.Duration(cfg.Workers[sm.TaskType].Timeout) * time.Millisecond,
				HistoryWindowDays: cfg.Engine.HistoryWindowDays,
				DefaultMode:       cfg.Engine.DefaultOptimizationMode,
			},
			salonStore, usageStore, tracker, sink, alerter, obs, cat, log,
		)
		startWorker(zeebeClient, sm.TaskType, cfg.Workers[sm.TaskType], handler.Handle, zapLog)
	}

	if cfg.Workers[ort.TaskType].Enabled {
		handler := ort.NewHandler(
			&ort.Config{
				Timeout:         time.Duration(cfg.Workers[ort.TaskType].Timeout) * time.Millisecond,
				GapHistoryLimit: cfg.Engine.GapHistoryLimit,
			},
			salonStore, usageStore, sink, obs, log,
		)
		startWorker(zeebeClient, ort.TaskType, cfg.Workers[ort.TaskType], handler.Handle, zapLog)
	}

	if cfg.Workers[uws.TaskType].Enabled {
		handler := uws.NewHandler(
			&uws.Config{
				Timeout: time.Duration(cfg.Workers[uws.TaskType].Timeout) * time.Millisecond,
			},
			salonStore, log,
		)
		startWorker(zeebeClient, uws.TaskType, cfg.Workers[uws.TaskType], handler.Handle, zapLog)
	}

	if cfg.Workers[rd.TaskType].Enabled {
		handler := rd.NewHandler(
			&rd.Config{
				Timeout: time.Duration(cfg.Workers[rd.TaskType].Timeout) * time.Millisecond,
			},
			cat, log,
		)
		startWorker(zeebeClient, rd.TaskType, cfg.Workers[rd.TaskType], handler.Handle, zapLog)
	}

	zapLog.Info("All workers registered successfully")

	// --- Health & Metrics Server ---
	go func() {
		http.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusOK)
			json.NewEncoder(w).Encode(map[string]string{
				"status": "healthy",
				"time":   time.Now().Format(time.RFC3339),
			})
		})
		http.HandleFunc("/ready", func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			if err := camundaClient.HealthCheck(r.Context()); err != nil {
				w.WriteHeader(http.StatusServiceUnavailable)
				json.NewEncoder(w).Encode(map[string]string{
					"status": "not ready",
					"error":  err.Error(),
				})
				return
			}
			w.WriteHeader(http.StatusOK)
			json.NewEncoder(w).Encode(map[string]string{
				"status": "ready",
				"time":   time.Now().Format(time.RFC3339),
			})
		})
		http.Handle("/metrics", promhttp.Handler())

		addr := fmt.Sprintf(":%d", cfg.App.MetricsPort)
		zapLog.Info("Health/Metrics server listening", zap.String("addr", addr))
		if err := http.ListenAndServe(addr, nil); err != nil {
			zapLog.Error("Health/Metrics server failed", zap.Error(err))
		}
	}()

	// --- Graceful Shutdown ---
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	zapLog.Info("Shutdown signal received, stopping workers...")

	if err := camundaClient.Close(); err != nil {
		zapLog.Error("Error closing Zeebe client", zap.Error(err))
	}

	zapLog.Info("Worker manager stopped gracefully")
}

func startWorker(client zbc.Client, taskType string, wcfg config.WorkerConfig, handlerFunc func(worker.JobClient, entities.Job), log *zap.Logger) {
	if !wcfg.Enabled {
		log.Info("worker disabled", zap.String("taskType", taskType))
		return
	}

	client.NewJobWorker().
		JobType(taskType).
		Handler(handlerFunc).
		MaxJobsActive(wcfg.MaxJobsActive).
		Timeout(time.Duration(wcfg.Timeout) * time.Millisecond).
		Open()

	log.Info("worker started",
		zap.String("taskType", taskType),
		zap.Int("maxJobsActive", wcfg.MaxJobsActive),
		zap.Int("timeout_ms", wcfg.Timeout),
	)
}
