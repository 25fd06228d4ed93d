package engine

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/bolworks/api/internal/client"
	"github.com/bolworks/api/internal/model"
	"github.com/bolworks/api/internal/storage"
)

// Notifier receives job lifecycle transitions, e.g. for WebSocket fan-out.
type Notifier interface {
	NotifyStatus(jobID string, status model.JobStatus)
	NotifyError(jobID, message string)
}

// Worker is a long-lived execution unit. It pulls job ids from the dispatch
// queue, runs the conversion collaborator and records the outcome. One job
// at a time; a failing job never terminates the loop.
type Worker struct {
	id          string
	store       *Store
	queue       *DispatchQueue
	metrics     *Metrics
	converter   client.Converter
	results     storage.Store
	notifier    Notifier
	pollTimeout time.Duration
	stopCh      chan struct{}

	mu         sync.Mutex
	running    bool
	currentJob string
}

func newWorker(id string, e *Engine) *Worker {
	return &Worker{
		id:          id,
		store:       e.store,
		queue:       e.queue,
		metrics:     e.metrics,
		converter:   e.converter,
		results:     e.results,
		notifier:    e.notifier,
		pollTimeout: e.pollTimeout,
		stopCh:      make(chan struct{}),
	}
}

// Run executes the worker loop until Stop is called. The dispatch pop is
// bounded so the stop signal is observed promptly between jobs.
func (w *Worker) Run() {
	w.setRunning(true)
	defer w.setRunning(false)
	log.Printf("Worker %s started", w.id)

	for {
		select {
		case <-w.stopCh:
			log.Printf("Worker %s stopped", w.id)
			return
		default:
		}

		id, ok := w.queue.Pop(w.pollTimeout)
		if !ok {
			continue
		}
		w.process(id)
	}
}

// Stop signals the loop to exit. Cooperative: an in-flight conversion is
// not interrupted, the engine's shutdown timeout bounds the wait.
func (w *Worker) Stop() {
	select {
	case <-w.stopCh:
	default:
		close(w.stopCh)
	}
}

// Running reports whether the loop is active.
func (w *Worker) Running() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.running
}

// CurrentJob returns the id of the job being executed, if any.
func (w *Worker) CurrentJob() string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.currentJob
}

func (w *Worker) process(id string) {
	job, err := w.store.MarkProcessing(id)
	if err != nil {
		if errors.Is(err, ErrJobExpired) {
			// Sat in the queue past the retention window: never reaches
			// the collaborator, counts neither as success nor failure.
			log.Printf("Worker %s: job %s expired before dispatch", w.id, id)
			w.notifyStatus(id, model.JobStatusExpired)
			return
		}
		log.Printf("Worker %s: skipping job %s: %v", w.id, id, err)
		return
	}

	w.setCurrent(id)
	defer w.setCurrent("")

	// Any unexpected error while the job is owned here must fail the job
	// rather than kill the worker or leave the record stuck in processing.
	defer func() {
		if r := recover(); r != nil {
			log.Printf("Worker %s: panic processing job %s: %v", w.id, id, r)
			w.failJob(id, fmt.Sprintf("internal error: %v", r))
		}
	}()

	log.Printf("Worker %s processing job %s", w.id, id)
	w.notifyStatus(id, model.JobStatusProcessing)
	started := *job.StartedAt

	ctx := context.Background()
	output, err := w.converter.Convert(ctx,
		job.Payload.Document, job.Payload.DocumentName,
		job.Payload.Reference, job.Payload.ReferenceName)
	if err != nil {
		w.failJob(id, err.Error())
		return
	}

	key := fmt.Sprintf("results/%s.csv", id)
	if err := w.results.Put(ctx, key, output); err != nil {
		w.failJob(id, fmt.Sprintf("failed to persist result: %v", err))
		return
	}

	elapsed := time.Since(started)
	metadata := map[string]any{
		"worker_id":       w.id,
		"processing_time": elapsed.Seconds(),
		"result_size":     len(output),
	}
	if err := w.store.MarkCompleted(id, key, metadata); err != nil {
		log.Printf("Worker %s: failed to complete job %s: %v", w.id, id, err)
		return
	}

	w.metrics.RecordSuccess(elapsed)
	w.notifyStatus(id, model.JobStatusCompleted)
	log.Printf("Job %s completed in %.2fs", id, elapsed.Seconds())
}

func (w *Worker) failJob(id, errMsg string) {
	if err := w.store.MarkFailed(id, errMsg); err != nil {
		log.Printf("Worker %s: failed to mark job %s as failed: %v", w.id, id, err)
		return
	}
	w.metrics.RecordFailure()
	w.notifyStatus(id, model.JobStatusFailed)
	if w.notifier != nil {
		w.notifier.NotifyError(id, errMsg)
	}
	log.Printf("Job %s failed: %s", id, errMsg)
}

func (w *Worker) notifyStatus(id string, status model.JobStatus) {
	if w.notifier != nil {
		w.notifier.NotifyStatus(id, status)
	}
}

func (w *Worker) setRunning(v bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.running = v
}

func (w *Worker) setCurrent(id string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.currentJob = id
}
