// Package bootstrap wires configuration, storage, collaborator clients,
// and the pipeline into runnable applications.
package bootstrap

import (
	"context"
	"database/sql"
	"fmt"
	"os"

	"github.com/gin-gonic/gin"

	"callsight-backend/internal/audio"
	"callsight-backend/internal/charts"
	"callsight-backend/internal/fusion"
	"callsight-backend/internal/jobs"
	"callsight-backend/internal/narrative"
	"callsight-backend/internal/queue"
	"callsight-backend/internal/sentiment"
	"callsight-backend/internal/services/health"
	"callsight-backend/internal/shared/config"
	"callsight-backend/internal/shared/server"
	"callsight-backend/internal/shared/server/middleware"
	"callsight-backend/internal/shared/storage/db"
	"callsight-backend/internal/shared/storage/object"
	"callsight-backend/internal/shared/storage/object/local"
	"callsight-backend/internal/shared/storage/object/s3"
	"callsight-backend/internal/shared/telemetry"
	"callsight-backend/internal/transcribe"
)

// Version is stamped at build time.
var Version = "dev"

// App is a fully wired process. Close releases its resources.
type App struct {
	Config  config.Config
	DB      *sql.DB
	Store   object.ObjectStore
	Service *jobs.Service
	Runner  *jobs.Runner
	Router  *gin.Engine
}

func (a *App) Close() {
	if a.Runner != nil {
		a.Runner.Shutdown()
	}
	if a.DB != nil {
		a.DB.Close()
	}
}

// BuildAPI wires the HTTP server with an in-process worker pool, or a
// queue publisher when SQS_QUEUE_URL is set.
func BuildAPI(ctx context.Context) (*App, error) {
	cfg := config.Load()

	database, repo, err := openRepo(ctx, cfg, db.DefaultServerOptions())
	if err != nil {
		return nil, err
	}

	store, err := openStore(ctx, cfg)
	if err != nil {
		return nil, err
	}

	service, err := buildService(cfg, repo, store)
	if err != nil {
		return nil, err
	}

	app := &App{
		Config:  cfg,
		DB:      database,
		Store:   store,
		Service: service,
	}

	var starter jobs.Starter
	if queueURL := os.Getenv("SQS_QUEUE_URL"); queueURL != "" {
		publisher, err := queue.NewSQS(ctx, cfg.AWSRegion, queueURL)
		if err != nil {
			return nil, err
		}
		starter = publishStarter{publisher: publisher}
		telemetry.Info("bootstrap.starter", map[string]any{"mode": "sqs"})
	} else {
		app.Runner = jobs.NewRunner(service, cfg.WorkerPoolSize)
		starter = app.Runner
		telemetry.Info("bootstrap.starter", map[string]any{
			"mode": "inprocess",
			"size": cfg.WorkerPoolSize,
		})
	}

	handler := jobs.NewHandler(service, starter, cfg.MaxAudioBytes, cfg.MaxChartBytes)
	app.Router = server.NewRouter(server.RouterDeps{
		Config:     cfg,
		JobHandler: handler,
		Health:     &health.Service{DB: database, Version: Version},
	})
	return app, nil
}

// BuildWorker wires the queue-driven worker process.
func BuildWorker(ctx context.Context) (*App, *jobs.Service, error) {
	cfg := config.Load()

	database, repo, err := openRepo(ctx, cfg, db.DefaultWorkerOptions())
	if err != nil {
		return nil, nil, err
	}
	store, err := openStore(ctx, cfg)
	if err != nil {
		return nil, nil, err
	}
	service, err := buildService(cfg, repo, store)
	if err != nil {
		return nil, nil, err
	}

	app := &App{Config: cfg, DB: database, Store: store, Service: service}
	return app, service, nil
}

func openRepo(ctx context.Context, cfg config.Config, defaults db.Options) (*sql.DB, jobs.Repo, error) {
	if cfg.DatabaseURL == "" {
		telemetry.Warn("bootstrap.repo", map[string]any{
			"mode":   "memory",
			"detail": "DATABASE_URL not set, jobs are lost on restart",
		})
		return nil, jobs.NewMemoryRepo(), nil
	}

	database, err := db.Connect(ctx, cfg.DatabaseURL, db.OptionsFromEnv(defaults))
	if err != nil {
		return nil, nil, fmt.Errorf("connect database: %w", err)
	}
	if err := db.RunMigrations(ctx, database); err != nil {
		database.Close()
		return nil, nil, fmt.Errorf("run migrations: %w", err)
	}
	return database, jobs.NewPGRepo(database), nil
}

func openStore(ctx context.Context, cfg config.Config) (object.ObjectStore, error) {
	if cfg.ObjectStoreType == "s3" {
		return s3.New(ctx, cfg.AWSRegion, cfg.S3Bucket, cfg.S3Prefix, cfg.SSEKMSKeyID)
	}
	return local.New(cfg.LocalStoreDir), nil
}

func buildService(cfg config.Config, repo jobs.Repo, store object.ObjectStore) (*jobs.Service, error) {
	transcriber, err := transcribe.NewHTTPClient(cfg.TranscribeURL)
	if err != nil {
		return nil, err
	}
	sentiments, err := sentiment.NewHTTPClient(cfg.SentimentURL)
	if err != nil {
		return nil, err
	}
	chartReader, err := charts.NewAnthropicClient(cfg.AnthropicAPIKey, cfg.AnthropicModel)
	if err != nil {
		return nil, err
	}
	narrator, err := narrative.NewAnthropicClient(cfg.AnthropicAPIKey, cfg.AnthropicModel)
	if err != nil {
		return nil, err
	}

	return jobs.NewService(
		repo,
		store,
		transcriber,
		sentiments,
		chartReader,
		audio.NewExtractor(audio.DefaultConfig()),
		fusion.NewEngine(fusion.DefaultConfig()),
		narrator,
	), nil
}

// publishStarter starts jobs by enqueueing them for the worker.
type publishStarter struct {
	publisher queue.Publisher
}

func (p publishStarter) Start(ctx context.Context, jobID string) error {
	return p.publisher.Publish(ctx, queue.NewMessage(jobID, middleware.RequestIDValue(ctx)))
}
