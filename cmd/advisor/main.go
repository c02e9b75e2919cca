// cmd/advisor/main.go
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"protein-advisor/internal/catalog"
	"protein-advisor/internal/common/camunda"
	"protein-advisor/internal/common/config"
	"protein-advisor/internal/common/database"
	"protein-advisor/internal/common/logger"
	"protein-advisor/internal/common/observability"
	"protein-advisor/internal/dialogue"
	"protein-advisor/internal/llm"
	"protein-advisor/internal/server"

	sp "protein-advisor/internal/workers/advisor/select-products"
	stn "protein-advisor/internal/workers/advisor/submit-turn"
)

// retryWithBackoff attempts to execute a function with exponential backoff
func retryWithBackoff(operation func() error, maxRetries int, initialDelay time.Duration, log logger.Logger, operationName string) error {
	var err error
	delay := initialDelay

	for i := 0; i < maxRetries; i++ {
		err = operation()
		if err == nil {
			return nil
		}

		if i < maxRetries-1 {
			log.Warn(fmt.Sprintf("%s failed, retrying...", operationName), map[string]interface{}{
				"error":       err,
				"attempt":     i + 1,
				"maxRetries":  maxRetries,
				"nextRetryMs": delay.Milliseconds(),
			})
			time.Sleep(delay)
			delay *= 2
		}
	}

	return fmt.Errorf("%s failed after %d attempts: %w", operationName, maxRetries, err)
}

func main() {
	bootLog := logger.New("info", "console")

	cfg, err := config.Load()
	if err != nil {
		bootLog.Fatal("config load failed", zap.Error(err))
	}

	zapLog := logger.New(cfg.Logging.Level, cfg.Logging.Format, cfg.Logging.Output)
	defer zapLog.Sync()
	log := logger.NewZapAdapter(zapLog)

	zapLog.Info("Starting protein advisor...",
		zap.String("version", cfg.App.Version),
		zap.String("catalogSource", cfg.Catalog.Source),
	)

	obs := observability.New(cfg.App.Name)
	defer obs.Shutdown()

	ctx, stop := context.WithCancel(context.Background())
	defer stop()

	var checks []server.ReadinessCheck

	// --- Shared snapshot cache (optional) ---
	var redis *database.RedisClient
	if cfg.Database.Redis.Address != "" {
		err = retryWithBackoff(func() error {
			var err error
			redis, err = database.NewRedis(cfg.Database.Redis)
			if err != nil {
				return err
			}
			return redis.Ping(ctx)
		}, 10, 2*time.Second, log, "Redis connection")
		if err != nil {
			zapLog.Fatal("redis failed after retries", zap.Error(err))
		}
		defer redis.Close()
		checks = append(checks, server.ReadinessCheck{Name: "redis", Check: redis.Ping})
		zapLog.Info("Redis connected successfully")
	}

	// --- Catalog source ---
	source, closeSource, sourceCheck := openCatalogSource(ctx, cfg, log)
	defer closeSource()
	if sourceCheck.Check != nil {
		checks = append(checks, sourceCheck)
	}

	storeOpts := []catalog.CachedStoreOption{}
	if redis != nil {
		storeOpts = append(storeOpts, catalog.WithRedis(redis, cfg.Catalog.CacheKey))
	}
	store := catalog.NewCachedStore(source, config.GetDuration(cfg.Catalog.RefreshInterval), log, storeOpts...)

	// The advisor cannot serve anything without a first snapshot.
	initial, err := store.Snapshot(ctx)
	if err != nil {
		zapLog.Fatal("initial catalog load failed", zap.Error(err))
	}
	zapLog.Info("Catalog loaded", zap.Int("products", initial.Len()), zap.String("source", initial.Source))
	checks = append(checks, server.ReadinessCheck{Name: "catalog", Check: func(ctx context.Context) error {
		_, err := store.Snapshot(ctx)
		return err
	}})

	// --- Language model ---
	gen, err := llm.NewGenAIClient(ctx, llm.GenAIConfig{
		APIKey:      cfg.GenAI.APIKey,
		BaseURL:     cfg.GenAI.BaseURL,
		Model:       cfg.GenAI.Model,
		Timeout:     config.GetDuration(cfg.GenAI.Timeout),
		MaxRetries:  cfg.GenAI.MaxRetries,
		Temperature: cfg.GenAI.Temperature,
	}, log)
	if err != nil {
		zapLog.Fatal("genai client init failed", zap.Error(err))
	}

	engine := dialogue.NewEngine(store,
		llm.NewClassifier(gen, log),
		llm.NewComposer(gen, log),
		log,
		dialogue.WithObservability(obs),
	)
	sessions := dialogue.NewManager(config.GetDuration(cfg.Session.IdleTTL), log)
	go sessions.Run(ctx, config.GetDuration(cfg.Session.SweepInterval))

	// --- Zeebe workers (optional) ---
	var zeebe *camunda.Client
	if cfg.Camunda.Enabled {
		zeebe, err = camunda.NewClient(ctx, camunda.ConfigFrom(cfg.Camunda), log)
		if err != nil {
			zapLog.Fatal("zeebe client failed after retries", zap.Error(err))
		}
		checks = append(checks, server.ReadinessCheck{Name: "zeebe", Check: zeebe.HealthCheck})

		spCfg := config.GetWorkerConfig(cfg, sp.TaskType)
		spHandler := sp.NewHandler(sp.LoadConfig(spCfg), store, log)
		zeebe.StartWorker(sp.TaskType, spCfg, spHandler.Handle)

		stCfg := config.GetWorkerConfig(cfg, stn.TaskType)
		stHandler := stn.NewHandler(stn.LoadConfig(stCfg), sessions, engine, log)
		zeebe.StartWorker(stn.TaskType, stCfg, stHandler.Handle)
	}

	// --- HTTP API, health and metrics ---
	srv := server.New(cfg.Server.Address, server.RouterConfig{
		ServiceName:  cfg.App.Name,
		AllowOrigins: cfg.Server.AllowOrigins,
		Handler:      server.NewHandler(sessions, engine, store, log),
		Checks:       checks,
		Logger:       log,
	})
	go func() {
		if err := srv.Run(); err != nil {
			zapLog.Error("HTTP server failed", zap.Error(err))
			stop()
		}
	}()

	// --- Graceful Shutdown ---
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	select {
	case <-sigCh:
		zapLog.Info("Shutdown signal received, stopping...")
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), config.GetDuration(cfg.Server.ShutdownTimeout))
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		zapLog.Error("Error stopping HTTP server", zap.Error(err))
	}
	if zeebe != nil {
		if err := zeebe.Close(); err != nil {
			zapLog.Error("Error closing Zeebe client", zap.Error(err))
		}
	}
	stop()

	zapLog.Info("Protein advisor stopped gracefully")
}

// openCatalogSource builds the configured catalog backend. The returned func
// releases its connection.
func openCatalogSource(ctx context.Context, cfg *config.Config, log logger.Logger) (catalog.Source, func(), server.ReadinessCheck) {
	switch cfg.Catalog.Source {
	case config.CatalogSourcePostgres:
		var pg *database.PostgresClient
		err := retryWithBackoff(func() error {
			var err error
			pg, err = database.NewPostgres(cfg.Database.Postgres)
			if err != nil {
				return err
			}
			return pg.Ping(ctx)
		}, 15, 2*time.Second, log, "PostgreSQL connection")
		if err != nil {
			log.Error("postgres failed after retries", map[string]interface{}{"error": err})
			os.Exit(1)
		}
		return catalog.NewPostgresSource(pg, cfg.Catalog.PostgresTable),
			func() { _ = pg.Close() },
			server.ReadinessCheck{Name: "postgres", Check: pg.Ping}

	case config.CatalogSourceElasticsearch:
		var es *database.ElasticsearchClient
		err := retryWithBackoff(func() error {
			var err error
			es, err = database.NewElasticsearch(cfg.Database.Elasticsearch)
			if err != nil {
				return err
			}
			return es.Ping(ctx)
		}, 15, 2*time.Second, log, "Elasticsearch connection")
		if err != nil {
			log.Error("elasticsearch failed after retries", map[string]interface{}{"error": err})
			os.Exit(1)
		}
		return catalog.NewElasticsearchSource(es, cfg.Catalog.ElasticsearchIndex),
			func() {},
			server.ReadinessCheck{Name: "elasticsearch", Check: es.Ping}

	default:
		src, err := catalog.NewSheetsSource(ctx, cfg.Catalog.Sheets, catalog.SheetsClientOptions(cfg.Catalog.Sheets)...)
		if err != nil {
			log.Error("sheets client init failed", map[string]interface{}{"error": err})
			os.Exit(1)
		}
		return src, func() {}, server.ReadinessCheck{}
	}
}
