package jobs

import "context"

// Repo persists jobs. Stage outputs are committed through Update so a
// crash between stages loses at most the in-flight stage.
type Repo interface {
	Create(ctx context.Context, job *Job) error
	Get(ctx context.Context, id string) (*Job, error)
	List(ctx context.Context, limit, offset int) ([]*Job, error)

	// MarkProcessing claims a pending job. It returns ErrAlreadyRunning
	// when the job is no longer pending, which is how concurrent start
	// attempts for the same id are rejected.
	MarkProcessing(ctx context.Context, id string) error

	// Update persists the job's current stage outputs and progress.
	Update(ctx context.Context, job *Job) error
}
