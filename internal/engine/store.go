package engine

import (
	"context"
	"fmt"
	"log"
	"time"

	"sync"

	"github.com/bolworks/api/internal/model"
	"github.com/bolworks/api/internal/storage"
)

// StoreConfig bounds the job registry.
type StoreConfig struct {
	Capacity   int           // hard limit on tracked jobs
	TTL        time.Duration // retention window from CreatedAt
	SweepBatch int           // max removals per sweep invocation
}

// Store is the canonical, concurrency-safe registry of jobs. It enforces a
// hard capacity: admission under pressure first attempts a sweep of terminal
// and expired records, and fails with ErrCapacityExceeded if the store is
// still full. Swept jobs release their stored results.
type Store struct {
	mu      sync.Mutex
	jobs    map[string]*model.Job
	results storage.Store

	capacity   int
	ttl        time.Duration
	sweepBatch int
}

// NewStore creates a Store. The results client is used to release stored
// outputs when their jobs are swept; it may be nil in tests that never sweep
// completed jobs.
func NewStore(cfg StoreConfig, results storage.Store) *Store {
	return &Store{
		jobs:       make(map[string]*model.Job),
		results:    results,
		capacity:   cfg.Capacity,
		ttl:        cfg.TTL,
		sweepBatch: cfg.SweepBatch,
	}
}

// Register admits a new job. All-or-nothing: on ErrCapacityExceeded the job
// is not tracked.
func (s *Store) Register(job *model.Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.jobs) >= s.capacity {
		s.sweepLocked()
	}
	if len(s.jobs) >= s.capacity {
		return ErrCapacityExceeded
	}

	s.jobs[job.ID] = copyJob(job)
	return nil
}

// Get returns a copy of the job record, so callers can read it without
// racing with worker updates.
func (s *Store) Get(id string) (*model.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	job, ok := s.jobs[id]
	if !ok {
		return nil, ErrJobNotFound
	}
	return copyJob(job), nil
}

// Remove deletes a job record outright. Used by the engine to roll back a
// registration when the dispatch push fails.
func (s *Store) Remove(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.jobs, id)
}

// MarkProcessing transitions a queued job to processing and returns the
// record (with payload) for execution. If the job outlived its retention
// window while queued it is flipped to expired instead and ErrJobExpired is
// returned — the caller must skip execution.
func (s *Store) MarkProcessing(id string) (*model.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	job, ok := s.jobs[id]
	if !ok {
		return nil, ErrJobNotFound
	}
	if job.Status != model.JobStatusQueued {
		return nil, fmt.Errorf("job %s is %s, not queued", id, job.Status)
	}

	now := time.Now()
	if job.ExpiredAt(now, s.ttl) {
		job.Status = model.JobStatusExpired
		return nil, ErrJobExpired
	}

	job.Status = model.JobStatusProcessing
	job.StartedAt = &now
	return copyJob(job), nil
}

// MarkCompleted records a successful outcome with the result's storage key.
func (s *Store) MarkCompleted(id, resultKey string, metadata map[string]any) error {
	return s.finish(id, func(job *model.Job) {
		job.Status = model.JobStatusCompleted
		job.ResultKey = resultKey
		for k, v := range metadata {
			job.Metadata[k] = v
		}
	})
}

// MarkFailed records a failed outcome with the error description.
func (s *Store) MarkFailed(id, errMsg string) error {
	return s.finish(id, func(job *model.Job) {
		job.Status = model.JobStatusFailed
		job.Error = &errMsg
	})
}

func (s *Store) finish(id string, apply func(*model.Job)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	job, ok := s.jobs[id]
	if !ok {
		return ErrJobNotFound
	}
	if job.Status != model.JobStatusProcessing {
		return fmt.Errorf("job %s is %s, not processing", id, job.Status)
	}

	now := time.Now()
	job.CompletedAt = &now
	apply(job)
	return nil
}

// Sweep removes terminal and retention-expired jobs, up to the configured
// batch size, and releases their stored results. Returns the number of jobs
// removed.
func (s *Store) Sweep() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sweepLocked()
}

func (s *Store) sweepLocked() int {
	now := time.Now()
	removed := 0

	for id, job := range s.jobs {
		if removed >= s.sweepBatch {
			break
		}
		if !job.Status.Terminal() && !job.ExpiredAt(now, s.ttl) {
			continue
		}

		if job.ResultKey != "" && s.results != nil {
			if err := s.results.Delete(context.Background(), job.ResultKey); err != nil {
				log.Printf("Warning: failed to release result %s: %v", job.ResultKey, err)
			}
		}
		delete(s.jobs, id)
		removed++
	}

	if removed > 0 {
		log.Printf("Swept %d job(s) from store", removed)
	}
	return removed
}

// Counts returns the number of tracked jobs per status.
func (s *Store) Counts() map[model.JobStatus]int {
	s.mu.Lock()
	defer s.mu.Unlock()

	counts := make(map[model.JobStatus]int, len(model.AllJobStatuses))
	for _, status := range model.AllJobStatuses {
		counts[status] = 0
	}
	for _, job := range s.jobs {
		counts[job.Status]++
	}
	return counts
}

// Len returns the total number of tracked jobs.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.jobs)
}

// copyJob clones the record so store-internal state is never mutated
// unguarded. Payload bytes are shared: they are immutable once submitted.
func copyJob(job *model.Job) *model.Job {
	cp := *job
	cp.Metadata = make(map[string]any, len(job.Metadata))
	for k, v := range job.Metadata {
		cp.Metadata[k] = v
	}
	return &cp
}
