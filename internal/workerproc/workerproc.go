// Package workerproc turns queue messages into pipeline runs. It owns
// the settle policy: which failures consume a message and which leave
// it for redelivery.
package workerproc

import (
	"context"
	"errors"
	"sync"

	"callsight-backend/internal/jobs"
	"callsight-backend/internal/queue"
	"callsight-backend/internal/shared/metrics"
	"callsight-backend/internal/shared/telemetry"
)

// Processor runs one job to completion. *jobs.Service satisfies this.
type Processor interface {
	Process(ctx context.Context, jobID string) error
}

type Worker struct {
	processor Processor
	consumer  queue.Consumer
	inflight  sync.WaitGroup
}

func New(processor Processor, consumer queue.Consumer) *Worker {
	return &Worker{processor: processor, consumer: consumer}
}

// HandleMessage processes one received message and settles it.
//
// Unrecoverable messages (undecodable bodies, unknown jobs, jobs that
// already left pending) are deleted so they never cycle through the
// queue. Transient failures leave the message in flight; SQS redelivers
// it after the visibility timeout.
func (w *Worker) HandleMessage(ctx context.Context, received queue.Received) {
	metrics.IncQueueJobsReceived()

	if received.DecodeErr != nil {
		telemetry.Error("worker.message_undecodable", map[string]any{
			"error": received.DecodeErr.Error(),
			"body":  received.Raw,
		})
		w.deleteUnrecoverable(ctx, received.Handle)
		return
	}

	msg := received.Message
	err := w.processor.Process(ctx, msg.JobID)
	switch {
	case err == nil:
		metrics.IncQueueJobsCompleted()
		if err := w.consumer.Delete(ctx, received.Handle); err != nil {
			telemetry.Warn("worker.delete_failed", map[string]any{
				"job_id": msg.JobID,
				"error":  err.Error(),
			})
		}

	case errors.Is(err, jobs.ErrAlreadyRunning), errors.Is(err, jobs.ErrNotFound):
		// A duplicate delivery or a job purged from the store. The
		// message can never succeed, so consume it.
		telemetry.Warn("worker.message_unrecoverable", map[string]any{
			"job_id": msg.JobID,
			"reason": err.Error(),
		})
		w.deleteUnrecoverable(ctx, received.Handle)

	default:
		// The job record is already marked failed by the pipeline;
		// deleting here keeps failed jobs from re-running. Pipeline
		// failures are deterministic for a given upload, so
		// redelivery would only fail again.
		metrics.IncQueueJobsFailed()
		telemetry.Error("worker.job_failed", map[string]any{
			"job_id": msg.JobID,
			"error":  err.Error(),
		})
		if err := w.consumer.Delete(ctx, received.Handle); err != nil {
			telemetry.Warn("worker.delete_failed", map[string]any{
				"job_id": msg.JobID,
				"error":  err.Error(),
			})
		}
	}
}

func (w *Worker) deleteUnrecoverable(ctx context.Context, handle string) {
	metrics.IncQueueJobsDeletedUnrecoverable()
	if err := w.consumer.Delete(ctx, handle); err != nil {
		telemetry.Warn("worker.delete_failed", map[string]any{"error": err.Error()})
	}
}

// Run polls the queue until ctx is cancelled, processing up to
// concurrency messages at once. Cancellation stops polling and waits
// for in-flight handlers to finish before returning. An interrupted
// handler would leave its job stuck in processing with the message
// already consumed as a duplicate on redelivery, so handlers run on a
// detached context and are always drained.
func (w *Worker) Run(ctx context.Context, concurrency int) {
	if concurrency <= 0 {
		concurrency = 1
	}
	sem := make(chan struct{}, concurrency)
	handlerCtx := context.WithoutCancel(ctx)

	for {
		if ctx.Err() != nil {
			w.inflight.Wait()
			return
		}
		batch, err := w.consumer.Receive(ctx, concurrency)
		if err != nil {
			if ctx.Err() != nil {
				w.inflight.Wait()
				return
			}
			telemetry.Error("worker.receive_failed", map[string]any{"error": err.Error()})
			continue
		}
		for _, received := range batch {
			sem <- struct{}{}
			w.inflight.Add(1)
			go func(r queue.Received) {
				defer w.inflight.Done()
				defer func() { <-sem }()
				w.HandleMessage(handlerCtx, r)
			}(received)
		}
	}
}
