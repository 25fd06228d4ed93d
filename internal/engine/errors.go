package engine

import "errors"

var (
	// ErrCapacityExceeded is returned when the store (or dispatch queue)
	// is full and a sweep could not reclaim space. Submission is rejected
	// synchronously; callers must resubmit.
	ErrCapacityExceeded = errors.New("job capacity exceeded")

	// ErrJobNotFound covers unknown job IDs, results not yet produced
	// and results already evicted by the sweep.
	ErrJobNotFound = errors.New("job not found")

	// ErrJobExpired is returned by MarkProcessing when a job sat in the
	// queue past its retention window. The job is flipped to expired as
	// a side effect and must not be executed.
	ErrJobExpired = errors.New("job expired before dispatch")

	// ErrEmptyDocument rejects submissions without primary content.
	ErrEmptyDocument = errors.New("document content is empty")

	// ErrUnsupportedDocument rejects primary files that are not PDFs.
	ErrUnsupportedDocument = errors.New("unsupported document type, expected PDF")
)
