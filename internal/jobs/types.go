// Package jobs defines the asynchronous judgement work unit and the
// queue abstractions around it. Oracle calls are the engine's only
// contention point, so they run through a bounded queue with a worker
// pool instead of unbounded fan-out.
package jobs

import (
	"context"
	"time"
)

// JobType represents the type of job to be executed.
type JobType string

const (
	// JobTypeJudgeBundle asks the oracle to judge one evidence bundle.
	JobTypeJudgeBundle JobType = "judge_bundle"
)

// JobStatus represents the current status of a job.
type JobStatus string

const (
	// JobStatusPending indicates the job is waiting to be processed.
	JobStatusPending JobStatus = "pending"
	// JobStatusRunning indicates the job is currently being processed.
	JobStatusRunning JobStatus = "running"
	// JobStatusCompleted indicates the job completed successfully.
	JobStatusCompleted JobStatus = "completed"
	// JobStatusFailed indicates the job failed permanently.
	JobStatusFailed JobStatus = "failed"
	// JobStatusRetrying indicates the job failed and is being retried.
	JobStatusRetrying JobStatus = "retrying"
)

// JudgeBundleJob carries one evidence bundle to the oracle by
// reference. Only record identifiers travel with the job; the handler
// resolves them against the corpus. JobID is the bundle identity
// (strategy plus message), which makes retries idempotent: the same
// bundle always maps to the same job.
type JudgeBundleJob struct {
	// JobID is the bundle identity, e.g. "coordination/M017".
	JobID string `json:"job_id"`

	// Strategy is the correlator strategy that produced the bundle.
	Strategy string `json:"strategy"`

	// MessageID references the bundled message in the corpus.
	MessageID string `json:"message_id"`

	// TransactionIDs reference the bundled transactions in the corpus.
	TransactionIDs []string `json:"transaction_ids,omitempty"`

	// Status is the current status of the job.
	Status JobStatus `json:"status"`

	// CreatedAt is when the job was created.
	CreatedAt time.Time `json:"created_at"`

	// StartedAt is when the job started processing.
	StartedAt *time.Time `json:"started_at,omitempty"`

	// CompletedAt is when the job completed (success or failure).
	CompletedAt *time.Time `json:"completed_at,omitempty"`

	// Error contains error details if the job failed.
	Error string `json:"error,omitempty"`

	// RetryCount is the number of times this job has been retried.
	RetryCount int `json:"retry_count"`

	// MaxRetries is the maximum number of retries allowed.
	MaxRetries int `json:"max_retries"`
}

// Job is a generic interface for all job types.
type Job interface {
	// GetID returns the unique job identifier.
	GetID() string

	// GetType returns the job type.
	GetType() JobType

	// GetStatus returns the current job status.
	GetStatus() JobStatus
}

// GetID implements the Job interface.
func (j *JudgeBundleJob) GetID() string {
	return j.JobID
}

// GetType implements the Job interface.
func (j *JudgeBundleJob) GetType() JobType {
	return JobTypeJudgeBundle
}

// GetStatus implements the Job interface.
func (j *JudgeBundleJob) GetStatus() JobStatus {
	return j.Status
}

// FinalAttempt reports whether the current attempt is the last one the
// queue will make for this job. Handlers use it to mark a bundle
// inconclusive exactly once.
func (j *JudgeBundleJob) FinalAttempt() bool {
	return j.RetryCount >= j.MaxRetries
}

// Publisher defines the interface for publishing jobs to a queue.
type Publisher interface {
	// PublishJudgeBundle publishes a bundle judgement job. It blocks
	// when the queue buffer is full (backpressure against the oracle's
	// rate limits).
	PublishJudgeBundle(ctx context.Context, job *JudgeBundleJob) error

	// Close closes the publisher and releases resources.
	Close() error
}

// Consumer defines the interface for consuming jobs from a queue.
type Consumer interface {
	// Start begins consuming jobs from the queue.
	// The handler function is called for each job received.
	Start(ctx context.Context, handler JobHandler) error

	// Stop stops consuming jobs and waits for in-flight jobs to complete.
	Stop(ctx context.Context) error
}

// JobHandler is a function that processes a job.
// It should return an error if the job failed and should be retried.
type JobHandler func(ctx context.Context, job Job) error

// JobStore defines the interface for storing and retrieving job
// status, keyed by bundle identity.
type JobStore interface {
	// SaveJob saves or updates a job's state.
	SaveJob(ctx context.Context, job *JudgeBundleJob) error

	// GetJob retrieves a job by ID.
	GetJob(ctx context.Context, jobID string) (*JudgeBundleJob, error)

	// ListJobs retrieves jobs with optional filtering.
	ListJobs(ctx context.Context, filter JobFilter) ([]*JudgeBundleJob, error)
}

// JobFilter defines filtering criteria for listing jobs.
type JobFilter struct {
	// Strategy filters jobs by correlator strategy.
	Strategy string

	// Status filters jobs by status.
	Status JobStatus

	// Limit limits the number of results.
	Limit int
}
