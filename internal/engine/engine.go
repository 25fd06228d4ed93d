package engine

import (
	"context"
	"fmt"
	"log"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/bolworks/api/internal/client"
	"github.com/bolworks/api/internal/model"
	"github.com/bolworks/api/internal/storage"
)

// Config tunes the engine. Zero values fall back to the defaults of the
// service (2 workers, 100 jobs, 24h retention, sweep batches of 50).
type Config struct {
	Workers     int
	Capacity    int
	TTL         time.Duration
	SweepBatch  int
	PollTimeout time.Duration
}

func (c Config) withDefaults() Config {
	if c.Workers <= 0 {
		c.Workers = 2
	}
	if c.Capacity <= 0 {
		c.Capacity = 100
	}
	if c.TTL <= 0 {
		c.TTL = 24 * time.Hour
	}
	if c.SweepBatch <= 0 {
		c.SweepBatch = 50
	}
	if c.PollTimeout <= 0 {
		c.PollTimeout = time.Second
	}
	return c
}

// Engine owns the job store, the dispatch queue, the metrics aggregator and
// a fixed pool of workers. It is constructed once at process start and
// injected into the HTTP layer; every entry point is safe for concurrent use.
type Engine struct {
	store     *Store
	queue     *DispatchQueue
	metrics   *Metrics
	converter client.Converter
	results   storage.Store
	notifier  Notifier

	pollTimeout time.Duration
	workers     []*Worker
	wg          sync.WaitGroup
}

// New builds an engine. The notifier may be nil.
func New(cfg Config, converter client.Converter, results storage.Store, notifier Notifier) *Engine {
	cfg = cfg.withDefaults()

	e := &Engine{
		store: NewStore(StoreConfig{
			Capacity:   cfg.Capacity,
			TTL:        cfg.TTL,
			SweepBatch: cfg.SweepBatch,
		}, results),
		queue:       NewDispatchQueue(cfg.Capacity),
		metrics:     NewMetrics(),
		converter:   converter,
		results:     results,
		notifier:    notifier,
		pollTimeout: cfg.PollTimeout,
	}

	for i := 0; i < cfg.Workers; i++ {
		e.workers = append(e.workers, newWorker(fmt.Sprintf("worker-%d", i), e))
	}
	return e
}

// Start launches the worker pool. It returns immediately.
func (e *Engine) Start() {
	for _, w := range e.workers {
		e.wg.Add(1)
		go func(w *Worker) {
			defer e.wg.Done()
			w.Run()
		}(w)
	}
	log.Printf("Engine started with %d worker(s)", len(e.workers))
}

// Submit validates the payload, registers the job and pushes it for
// dispatch. All-or-nothing: if the push fails the registration is rolled
// back and no job is left dangling.
func (e *Engine) Submit(priority model.Priority, payload model.Payload) (string, error) {
	if len(payload.Document) == 0 {
		return "", ErrEmptyDocument
	}
	if strings.ToLower(filepath.Ext(payload.DocumentName)) != ".pdf" {
		return "", ErrUnsupportedDocument
	}

	job := &model.Job{
		ID:        uuid.New().String(),
		Priority:  priority,
		Status:    model.JobStatusQueued,
		Payload:   payload,
		Metadata:  make(map[string]any),
		CreatedAt: time.Now(),
	}

	if err := e.store.Register(job); err != nil {
		return "", err
	}
	if err := e.queue.Push(job.ID, job.Priority); err != nil {
		e.store.Remove(job.ID)
		return "", err
	}

	if e.notifier != nil {
		e.notifier.NotifyStatus(job.ID, model.JobStatusQueued)
	}
	log.Printf("Job %s queued with priority %s", job.ID, job.Priority)
	return job.ID, nil
}

// Status returns the caller-facing view of a job.
func (e *Engine) Status(jobID string) (*model.JobStatusView, error) {
	job, err := e.store.Get(jobID)
	if err != nil {
		return nil, err
	}

	return &model.JobStatusView{
		JobID:          job.ID,
		Status:         job.Status,
		Priority:       job.Priority.String(),
		CreatedAt:      job.CreatedAt,
		StartedAt:      job.StartedAt,
		CompletedAt:    job.CompletedAt,
		ProcessingTime: job.ProcessingTime(),
		Error:          job.Error,
		Metadata:       job.Metadata,
	}, nil
}

// Result returns the stored output bytes of a completed job. ErrJobNotFound
// also covers jobs that have not completed and results already evicted.
func (e *Engine) Result(ctx context.Context, jobID string) ([]byte, error) {
	job, err := e.store.Get(jobID)
	if err != nil {
		return nil, err
	}
	if job.Status != model.JobStatusCompleted || job.ResultKey == "" {
		return nil, ErrJobNotFound
	}

	data, err := e.results.Get(ctx, job.ResultKey)
	if err != nil {
		log.Printf("Failed to read result for job %s: %v", jobID, err)
		return nil, ErrJobNotFound
	}
	return data, nil
}

// SystemStatus returns the observability snapshot.
func (e *Engine) SystemStatus() model.SystemStatus {
	workers := model.WorkerStatus{Total: len(e.workers)}
	for _, w := range e.workers {
		if w.Running() {
			workers.Active++
		}
		if id := w.CurrentJob(); id != "" {
			workers.CurrentJobs = append(workers.CurrentJobs, id)
		}
	}

	return model.SystemStatus{
		Workers: workers,
		Queue: model.QueueStatus{
			TotalJobs:       e.store.Len(),
			QueueDepth:      e.queue.Len(),
			StatusBreakdown: e.store.Counts(),
		},
		Metrics: e.metrics.Snapshot(),
	}
}

// Shutdown signals all workers to stop and waits up to timeout for in-flight
// jobs to finish. Jobs still queued are simply not processed; their records
// remain queryable until swept.
func (e *Engine) Shutdown(timeout time.Duration) error {
	log.Println("Shutting down engine...")
	for _, w := range e.workers {
		w.Stop()
	}

	done := make(chan struct{})
	go func() {
		e.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		log.Println("Engine shutdown complete")
		return nil
	case <-time.After(timeout):
		return fmt.Errorf("engine shutdown timed out after %s", timeout)
	}
}
