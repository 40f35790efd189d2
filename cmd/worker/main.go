package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"callsight-backend/internal/bootstrap"
	"callsight-backend/internal/queue"
	"callsight-backend/internal/shared/telemetry"
	"callsight-backend/internal/workerproc"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	app, service, err := bootstrap.BuildWorker(ctx)
	if err != nil {
		telemetry.Error("worker.bootstrap_failed", map[string]any{"error": err.Error()})
		os.Exit(1)
	}
	defer app.Close()

	queueURL := os.Getenv("SQS_QUEUE_URL")
	consumer, err := queue.NewSQS(ctx, app.Config.AWSRegion, queueURL)
	if err != nil {
		telemetry.Error("worker.queue_failed", map[string]any{"error": err.Error()})
		os.Exit(1)
	}

	worker := workerproc.New(service, consumer)
	telemetry.Info("worker.started", map[string]any{
		"concurrency": app.Config.WorkerPoolSize,
		"env":         app.Config.Env,
	})

	worker.Run(ctx, app.Config.WorkerPoolSize)
	telemetry.Info("worker.stopped", nil)
}
