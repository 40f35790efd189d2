package jobs

import (
	"context"
	"errors"
	"sync"

	"callsight-backend/internal/shared/telemetry"
)

// Runner executes jobs on a fixed pool of goroutines. Starting a job
// that is already queued or running is rejected at the repo, so a
// crashed submit can be retried safely.
type Runner struct {
	service *Service
	queue   chan string

	wg     sync.WaitGroup
	cancel context.CancelFunc
	once   sync.Once
}

// NewRunner starts size workers draining the job queue.
func NewRunner(service *Service, size int) *Runner {
	if size <= 0 {
		size = 1
	}
	ctx, cancel := context.WithCancel(context.Background())
	r := &Runner{
		service: service,
		queue:   make(chan string, size*4),
		cancel:  cancel,
	}
	for i := 0; i < size; i++ {
		r.wg.Add(1)
		go r.work(ctx)
	}
	return r
}

// Start enqueues a job for processing. It never blocks: a full queue
// is reported to the caller instead of stalling the request.
func (r *Runner) Start(_ context.Context, jobID string) error {
	select {
	case r.queue <- jobID:
		return nil
	default:
		return errors.New("job queue is full")
	}
}

func (r *Runner) work(ctx context.Context) {
	defer r.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case jobID := <-r.queue:
			if err := r.service.Process(ctx, jobID); err != nil {
				telemetry.Error("runner.job_failed", map[string]any{
					"job_id": jobID,
					"error":  err.Error(),
				})
			}
		}
	}
}

// Shutdown stops the workers. In-flight jobs observe ctx cancellation
// through their blocking calls.
func (r *Runner) Shutdown() {
	r.once.Do(func() {
		r.cancel()
		r.wg.Wait()
	})
}

var _ Starter = (*Runner)(nil)
