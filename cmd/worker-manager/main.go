// cmd/worker-manager/main.go
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"visa-checklist/internal/checklist/applications"
	"visa-checklist/internal/checklist/catalog"
	"visa-checklist/internal/checklist/generator"
	"visa-checklist/internal/checklist/knowledge"
	"visa-checklist/internal/checklist/llm"
	"visa-checklist/internal/checklist/rules"
	"visa-checklist/internal/checklist/service"
	"visa-checklist/internal/checklist/store"
	"visa-checklist/internal/common/camunda"
	"visa-checklist/internal/common/config"
	"visa-checklist/internal/common/database"
	commonhttp "visa-checklist/internal/common/http"
	"visa-checklist/internal/common/logger"
	"visa-checklist/internal/common/observability"
	"visa-checklist/pkg/registry"

	gdc "visa-checklist/internal/workers/checklist/get-document-checklist"
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

	zapLog := logger.New(cfg.Logging.Level, cfg.Logging.Format, cfg.Logging.Output)
	defer zapLog.Sync()
	log := logger.NewZapAdapter(zapLog)

	zapLog.Info("Starting worker manager...", zap.String("app", cfg.App.Name), zap.String("version", cfg.App.Version))

	obs, err := observability.New(cfg.App.Name)
	if err != nil {
		zapLog.Warn("otel exporter unavailable, run metrics disabled", zap.Error(err))
	}
	defer obs.Shutdown()

	ctx := context.Background()

	// --- Zeebe ---
	var zeebe *camunda.Client
	err = retryWithBackoff(func() error {
		var err error
		zeebe, err = camunda.NewClientWithConfig(&camunda.ClientConfig{
			GatewayAddress:         cfg.Camunda.BrokerAddress,
			UsePlaintextConnection: true,
			ConnectionTimeout:      10 * time.Second,
			RequestTimeout:         config.GetDuration(cfg.Camunda.RequestTimeout),
		})
		return err
	}, 10, 2*time.Second, zapLog, "Zeebe client initialization")
	if err != nil {
		zapLog.Fatal("zeebe client failed after retries", zap.Error(err))
	}
	zapLog.Info("Zeebe client connected successfully")

	// --- PostgreSQL ---
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
	if err := pg.EnsureSchema(ctx); err != nil {
		zapLog.Fatal("document_checklists schema setup failed", zap.Error(err))
	}
	zapLog.Info("PostgreSQL connected successfully")

	// --- Redis (optional: caches only) ---
	var redis *database.RedisClient
	err = retryWithBackoff(func() error {
		var err error
		redis, err = database.NewRedis(cfg.Database.Redis)
		if err != nil {
			return err
		}
		return redis.Ping(ctx)
	}, 3, time.Second, zapLog, "Redis connection")
	if err != nil {
		zapLog.Warn("redis unavailable, running without rule and knowledge caches", zap.Error(err))
		redis = nil
	} else {
		defer redis.Close()
		zapLog.Info("Redis connected successfully")
	}

	// --- Elasticsearch (optional: legacy knowledge snippets) ---
	var esClient *database.ElasticsearchClient
	err = retryWithBackoff(func() error {
		var err error
		esClient, err = database.NewElasticsearch(cfg.Database.Elasticsearch)
		if err != nil {
			return err
		}
		return esClient.Ping(ctx)
	}, 3, time.Second, zapLog, "Elasticsearch connection")
	if err != nil {
		zapLog.Warn("elasticsearch unavailable, legacy prompts get no knowledge snippets", zap.Error(err))
		esClient = nil
	} else {
		zapLog.Info("Elasticsearch connected successfully")
	}

	// --- Checklist components ---
	var ruleRepo rules.Repository = rules.NewPostgresRepository(pg.GetDB())
	if redis != nil {
		ruleRepo = rules.NewCachedRepository(ruleRepo, redis.GetClient(), config.GetDuration(cfg.Checklist.RuleSetCacheTTL), log)
	}
	resolver := rules.NewResolver(ruleRepo, log)

	var kb knowledge.Base
	if esClient != nil {
		kb = knowledge.NewElasticsearchBase(esClient.Client, cfg.Database.Elasticsearch.KnowledgeIndex, log)
		if redis != nil {
			kb = knowledge.NewCachedBase(kb, redis.GetClient(), config.GetDuration(cfg.Checklist.KnowledgeCacheTTL), log)
		}
	}

	llmTimeout := config.GetDuration(cfg.LLM.Timeout)
	completer := llm.NewOpenAICompleter(llm.Config{
		BaseURL:     cfg.LLM.BaseURL,
		APIKey:      cfg.LLM.APIKey,
		Model:       cfg.LLM.Model,
		MaxTokens:   cfg.LLM.MaxTokens,
		Temperature: cfg.LLM.Temperature,
		Timeout:     llmTimeout,
		JSONMode:    true,
	}, commonhttp.NewClient(llmTimeout, cfg.App.Name+"/"+cfg.App.Version), log)

	reg, err := registry.LoadRegistry(cfg.Checklist.RegistryPath)
	if err != nil {
		zapLog.Fatal("template registry load failed", zap.String("path", cfg.Checklist.RegistryPath), zap.Error(err))
	}

	gen := generator.New(generator.ConfigFrom(cfg.Checklist), generator.Deps{
		Rules:     resolver,
		LLM:       completer,
		Knowledge: kb,
		Registry:  reg,
		Catalog:   catalog.Default(),
		Logger:    log,
	})

	svc := service.New(service.ConfigFrom(cfg.Checklist), service.Deps{
		Store:         store.NewPostgresStore(pg.GetDB()),
		Applications:  applications.NewPostgresSource(pg.GetDB()),
		Generator:     gen,
		Versions:      resolver,
		Notifier:      service.NewZeebeNotifier(zeebe),
		Observability: obs,
		Logger:        log,
	})

	// --- Workers ---
	var workers []*camunda.CamundaWorker

	workerCfg := gdc.ConfigFrom(cfg)
	if err := workerCfg.Validate(); err != nil {
		zapLog.Fatal("invalid get-document-checklist configuration", zap.Error(err))
	}
	if workerCfg.Enabled {
		handler := gdc.NewHandler(workerCfg, svc, log)
		workers = append(workers, camunda.NewWorker(zeebe.GetClient(), gdc.TaskType, workerCfg.MaxJobsActive, workerCfg.Timeout, handler, zapLog))
	} else {
		zapLog.Info("worker disabled", zap.String("taskType", gdc.TaskType))
	}

	// --- Health & Metrics Server ---
	mux := http.NewServeMux()
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		writeStatus(w, http.StatusOK, "healthy", nil)
	})
	mux.HandleFunc("/ready", func(w http.ResponseWriter, r *http.Request) {
		checkCtx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
		defer cancel()

		checks := map[string]string{"postgres": "ok", "zeebe": "ok"}
		status, code := "ready", http.StatusOK
		if err := pg.Ping(checkCtx); err != nil {
			checks["postgres"] = err.Error()
			status, code = "not_ready", http.StatusServiceUnavailable
		}
		if err := zeebe.HealthCheck(checkCtx); err != nil {
			checks["zeebe"] = err.Error()
			status, code = "not_ready", http.StatusServiceUnavailable
		}
		writeStatus(w, code, status, checks)
	})
	mux.Handle("/metrics", promhttp.Handler())

	server := &http.Server{Addr: cfg.Server.Address, Handler: mux}
	go func() {
		zapLog.Info("Health/Metrics server listening", zap.String("address", cfg.Server.Address))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			zapLog.Error("Health/Metrics server failed", zap.Error(err))
		}
	}()

	// --- Graceful Shutdown ---
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	zapLog.Info("Shutdown signal received, stopping workers...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	for _, w := range workers {
		w.Stop()
	}

	// in-flight generations keep their artifacts consistent; give them time
	// to finish before the connections close
	done := make(chan struct{})
	go func() {
		svc.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-shutdownCtx.Done():
		zapLog.Warn("generations still running at shutdown; they will be re-claimed as abandoned")
	}

	if err := server.Shutdown(shutdownCtx); err != nil {
		zapLog.Error("Error stopping health server", zap.Error(err))
	}
	if err := zeebe.Close(); err != nil {
		zapLog.Error("Error closing Zeebe client", zap.Error(err))
	}

	zapLog.Info("Worker manager stopped gracefully")
}

func writeStatus(w http.ResponseWriter, code int, status string, checks map[string]string) {
	body := map[string]interface{}{
		"status": status,
		"time":   time.Now().Format(time.RFC3339),
	}
	if checks != nil {
		body["checks"] = checks
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(body)
}
