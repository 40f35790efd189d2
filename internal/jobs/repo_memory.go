package jobs

import (
	"context"
	"encoding/json"
	"sort"
	"sync"
	"time"
)

// MemoryRepo is the in-process store used when no DATABASE_URL is
// configured, and by tests. Jobs are deep-copied through JSON on the
// way in and out so callers never share mutable state with the store.
type MemoryRepo struct {
	mu   sync.RWMutex
	jobs map[string]*Job
}

func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{jobs: make(map[string]*Job)}
}

func cloneJob(job *Job) *Job {
	raw, err := json.Marshal(job)
	if err != nil {
		copied := *job
		return &copied
	}
	var copied Job
	if err := json.Unmarshal(raw, &copied); err != nil {
		copied = *job
	}
	// Untagged fields don't survive the JSON round trip.
	copied.AudioKey = job.AudioKey
	copied.ChartKeys = append([]string(nil), job.ChartKeys...)
	return &copied
}

func (r *MemoryRepo) Create(_ context.Context, job *Job) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now().UTC()
	job.CreatedAt = now
	job.UpdatedAt = now
	r.jobs[job.ID] = cloneJob(job)
	return nil
}

func (r *MemoryRepo) Get(_ context.Context, id string) (*Job, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	job, ok := r.jobs[id]
	if !ok {
		return nil, ErrNotFound
	}
	return cloneJob(job), nil
}

func (r *MemoryRepo) List(_ context.Context, limit, offset int) ([]*Job, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	all := make([]*Job, 0, len(r.jobs))
	for _, job := range r.jobs {
		all = append(all, job)
	}
	sort.Slice(all, func(i, j int) bool {
		return all[i].CreatedAt.After(all[j].CreatedAt)
	})

	if offset >= len(all) {
		return []*Job{}, nil
	}
	all = all[offset:]
	if limit > 0 && limit < len(all) {
		all = all[:limit]
	}

	out := make([]*Job, len(all))
	for i, job := range all {
		out[i] = cloneJob(job)
	}
	return out, nil
}

func (r *MemoryRepo) MarkProcessing(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	job, ok := r.jobs[id]
	if !ok {
		return ErrNotFound
	}
	if job.Status != StatusPending {
		return ErrAlreadyRunning
	}
	now := time.Now().UTC()
	job.Status = StatusProcessing
	job.StartedAt = &now
	job.UpdatedAt = now
	return nil
}

func (r *MemoryRepo) Update(_ context.Context, job *Job) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.jobs[job.ID]; !ok {
		return ErrNotFound
	}
	job.UpdatedAt = time.Now().UTC()
	r.jobs[job.ID] = cloneJob(job)
	return nil
}

var _ Repo = (*MemoryRepo)(nil)
