// Package pipeline dispatches stage work onto the asynq queue and keeps a
// durable ledger of every attempt. A stage invocation that vanished without
// trace is an operational failure; the job row is the record of why.
package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"

	"github.com/tracklight/api/internal/model"
)

var ErrJobNotFound = errors.New("job not found")

// Enqueuer is the slice of asynq.Client the dispatcher needs; tests
// substitute a capture fake.
type Enqueuer interface {
	Enqueue(task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

// TaskEnvelope wraps every queued payload with its ledger entry id.
type TaskEnvelope struct {
	JobID   string          `json:"jobId"`
	Payload json.RawMessage `json:"payload"`
}

// TaskType maps a stage to its asynq task type.
func TaskType(stage model.Stage) string {
	return "stage:" + string(stage)
}

// Dispatcher records a job row, then enqueues the stage task. Stages carry
// MaxRetry(0): nothing in the pipeline retries automatically, retry is a
// user action through Retry.
type Dispatcher struct {
	store  JobStore
	client Enqueuer
}

func NewDispatcher(store JobStore, client Enqueuer) *Dispatcher {
	return &Dispatcher{store: store, client: client}
}

// Dispatch records the attempt and enqueues it. The returned job is already
// persisted even if enqueueing fails, so a stuck work is always explainable.
func (d *Dispatcher) Dispatch(ctx context.Context, stage model.Stage, workID string, payload interface{}) (*model.Job, error) {
	payloadBytes, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal payload: %w", err)
	}

	job := &model.Job{
		ID:        uuid.New().String(),
		WorkID:    workID,
		Stage:     stage,
		Status:    model.JobStatusQueued,
		Payload:   payloadBytes,
		CreatedAt: time.Now(),
	}
	if err := d.store.SaveJob(ctx, job); err != nil {
		return nil, fmt.Errorf("failed to save job: %w", err)
	}

	if err := d.enqueue(job); err != nil {
		d.markFailed(ctx, job, fmt.Sprintf("enqueue failed: %v", err))
		return job, fmt.Errorf("failed to enqueue task: %w", err)
	}
	return job, nil
}

// Retry re-enqueues a finished job as the same ledger entry with a bumped
// retry count. Each invocation recomputes from current persisted inputs, so
// duplicate runs are idempotent-safe.
func (d *Dispatcher) Retry(ctx context.Context, jobID string) (*model.Job, error) {
	job, err := d.store.GetJob(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if job.Status == model.JobStatusRunning || job.Status == model.JobStatusQueued {
		return nil, fmt.Errorf("job still in flight")
	}

	job.Status = model.JobStatusQueued
	job.Error = nil
	job.StartedAt = nil
	job.CompletedAt = nil
	job.RetryCount++
	if err := d.store.SaveJob(ctx, job); err != nil {
		return nil, fmt.Errorf("failed to save job: %w", err)
	}

	if err := d.enqueue(job); err != nil {
		d.markFailed(ctx, job, fmt.Sprintf("enqueue failed: %v", err))
		return job, fmt.Errorf("failed to enqueue task: %w", err)
	}
	return job, nil
}

// GetJob exposes the ledger for inspection.
func (d *Dispatcher) GetJob(ctx context.Context, jobID string) (*model.Job, error) {
	return d.store.GetJob(ctx, jobID)
}

// Store returns the underlying ledger, used by workers to mark progress.
func (d *Dispatcher) Store() JobStore {
	return d.store
}

func (d *Dispatcher) enqueue(job *model.Job) error {
	envelope, err := json.Marshal(TaskEnvelope{JobID: job.ID, Payload: job.Payload})
	if err != nil {
		return err
	}
	task := asynq.NewTask(TaskType(job.Stage), envelope)
	_, err = d.client.Enqueue(task,
		asynq.Queue(string(job.Stage)),
		asynq.MaxRetry(0),
		asynq.Retention(24*time.Hour),
	)
	return err
}

func (d *Dispatcher) markFailed(ctx context.Context, job *model.Job, msg string) {
	job.Status = model.JobStatusFailed
	job.Error = &msg
	now := time.Now()
	job.CompletedAt = &now
	_ = d.store.SaveJob(ctx, job)
}
