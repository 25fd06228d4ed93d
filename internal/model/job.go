package model

import "time"

// Payload carries the immutable inputs of a conversion job: the primary
// document and an optional reference tabular file merged into the output.
type Payload struct {
	Document      []byte
	DocumentName  string
	Reference     []byte
	ReferenceName string
}

// Job represents a document-conversion job in the system. The payload is
// immutable once submitted; lifecycle fields are mutated only through the
// engine store's operations.
type Job struct {
	ID          string         `json:"id"`
	Priority    Priority       `json:"priority"`
	Status      JobStatus      `json:"status"`
	Payload     Payload        `json:"-"`
	Error       *string        `json:"error,omitempty"`
	ResultKey   string         `json:"-"`
	Metadata    map[string]any `json:"metadata"`
	CreatedAt   time.Time      `json:"createdAt"`
	StartedAt   *time.Time     `json:"startedAt,omitempty"`
	CompletedAt *time.Time     `json:"completedAt,omitempty"`
}

// ProcessingTime returns the elapsed execution time in seconds, or nil
// while the job has not reached a completed/failed state.
func (j *Job) ProcessingTime() *float64 {
	if j.StartedAt == nil || j.CompletedAt == nil {
		return nil
	}
	secs := j.CompletedAt.Sub(*j.StartedAt).Seconds()
	return &secs
}

// ExpiredAt reports whether the job has outlived the retention window at
// the given instant.
func (j *Job) ExpiredAt(now time.Time, ttl time.Duration) bool {
	return now.Sub(j.CreatedAt) > ttl
}

// JobStatusView is the status representation returned to callers.
type JobStatusView struct {
	JobID          string         `json:"jobId"`
	Status         JobStatus      `json:"status"`
	Priority       string         `json:"priority"`
	CreatedAt      time.Time      `json:"createdAt"`
	StartedAt      *time.Time     `json:"startedAt,omitempty"`
	CompletedAt    *time.Time     `json:"completedAt,omitempty"`
	ProcessingTime *float64       `json:"processingTimeSeconds,omitempty"`
	Error          *string        `json:"error,omitempty"`
	Metadata       map[string]any `json:"metadata"`
}

// SubmitResponse is returned on successful job submission.
type SubmitResponse struct {
	JobID     string    `json:"jobId"`
	Status    JobStatus `json:"status"`
	StatusURL string    `json:"statusUrl"`
	ResultURL string    `json:"resultUrl"`
}

// MetricsSnapshot summarizes throughput since engine start.
type MetricsSnapshot struct {
	UptimeSeconds     float64 `json:"uptimeSeconds"`
	JobsProcessed     int64   `json:"jobsProcessed"`
	JobsFailed        int64   `json:"jobsFailed"`
	SuccessRate       float64 `json:"successRate"`
	AvgProcessingTime float64 `json:"averageProcessingTimeSeconds"`
	JobsPerHour       float64 `json:"jobsPerHour"`
}

// WorkerStatus describes the worker pool for the system status endpoint.
type WorkerStatus struct {
	Total       int      `json:"total"`
	Active      int      `json:"active"`
	CurrentJobs []string `json:"currentJobs"`
}

// QueueStatus describes the store and dispatch queue.
type QueueStatus struct {
	TotalJobs       int               `json:"totalJobs"`
	QueueDepth      int               `json:"queueDepth"`
	StatusBreakdown map[JobStatus]int `json:"statusBreakdown"`
}

// SystemStatus is the full observability snapshot.
type SystemStatus struct {
	Workers WorkerStatus    `json:"workers"`
	Queue   QueueStatus     `json:"queue"`
	Metrics MetricsSnapshot `json:"metrics"`
}
