package jobs

import "errors"

var (
	// ErrNotFound means no job exists with the requested id.
	ErrNotFound = errors.New("job not found")

	// ErrAlreadyRunning means the job left pending before this start
	// attempt claimed it. Starting the same job twice is rejected.
	ErrAlreadyRunning = errors.New("job already running")

	// ErrNotCompleted means results were requested before the job
	// finished.
	ErrNotCompleted = errors.New("job not completed")
)
