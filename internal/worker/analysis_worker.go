package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/hibiken/asynq"

	"github.com/tracklight/api/internal/model"
	"github.com/tracklight/api/internal/pipeline"
	"github.com/tracklight/api/internal/service"
	"github.com/tracklight/api/internal/websocket"
)

// AnalysisWorker processes analysis dispatches and chains the artwork stage.
type AnalysisWorker struct {
	analysis   *service.AnalysisService
	dispatcher *pipeline.Dispatcher
	hub        *websocket.Hub
}

func NewAnalysisWorker(analysis *service.AnalysisService, dispatcher *pipeline.Dispatcher, hub *websocket.Hub) *AnalysisWorker {
	return &AnalysisWorker{analysis: analysis, dispatcher: dispatcher, hub: hub}
}

// ProcessTask runs one analysis attempt. Any failure marks both the job and
// the work failed so nothing is ever left in analyzing without a record.
func (w *AnalysisWorker) ProcessTask(ctx context.Context, t *asynq.Task) error {
	var envelope pipeline.TaskEnvelope
	if err := json.Unmarshal(t.Payload(), &envelope); err != nil {
		return fmt.Errorf("failed to unmarshal task envelope: %w", err)
	}

	var payload model.AnalysisPayload
	if err := json.Unmarshal(envelope.Payload, &payload); err != nil {
		w.failJob(ctx, envelope.JobID, payload.WorkID, "invalid payload")
		return fmt.Errorf("failed to unmarshal analysis payload: %w", err)
	}

	log.Printf("Starting analysis job %s for work %s", envelope.JobID, payload.WorkID)
	markRunning(ctx, w.dispatcher.Store(), envelope.JobID)
	w.hub.BroadcastStage(payload.WorkID, model.StageAnalysis, model.JobStatusRunning)

	work, err := w.analysis.Run(ctx, &payload)
	if err != nil {
		// Run has already moved the work to failed where appropriate.
		w.failJob(ctx, envelope.JobID, payload.WorkID, err.Error())
		w.analysis.MarkFailed(ctx, payload.WorkID, err.Error())
		return nil // no automatic retry; recovery is a manual re-analyze
	}

	markSucceeded(ctx, w.dispatcher.Store(), envelope.JobID)
	w.hub.BroadcastComplete(payload.WorkID, model.StageAnalysis, work)

	// Chain the artwork stage best-effort: its failure never reverts the
	// completed analysis.
	name := ""
	if work.GeneratedName != nil {
		name = *work.GeneratedName
	}
	mood := ""
	if work.AnalysisData != nil {
		mood = work.AnalysisData.Mood
	}
	if _, err := w.dispatcher.Dispatch(ctx, model.StageArtwork, work.ID, model.ArtworkPayload{
		WorkID:         work.ID,
		GeneratedName:  name,
		PrimaryGenre:   work.PrimaryGenre,
		SecondaryGenre: work.SecondaryGenre,
		Mood:           mood,
	}); err != nil {
		log.Printf("Failed to chain artwork stage for work %s: %v", work.ID, err)
	}

	log.Printf("Analysis job %s completed", envelope.JobID)
	return nil
}

func (w *AnalysisWorker) failJob(ctx context.Context, jobID, workID, msg string) {
	markFailed(ctx, w.dispatcher.Store(), jobID, msg)
	if workID != "" {
		w.hub.BroadcastError(workID, "ANALYSIS_FAILED", msg)
	}
}

// Shared ledger helpers.

func markRunning(ctx context.Context, store pipeline.JobStore, jobID string) {
	job, err := store.GetJob(ctx, jobID)
	if err != nil {
		log.Printf("Failed to load job %s: %v", jobID, err)
		return
	}
	job.Status = model.JobStatusRunning
	now := time.Now()
	if job.StartedAt == nil {
		job.StartedAt = &now
	}
	if err := store.SaveJob(ctx, job); err != nil {
		log.Printf("Failed to save job %s: %v", jobID, err)
	}
}

func markSucceeded(ctx context.Context, store pipeline.JobStore, jobID string) {
	job, err := store.GetJob(ctx, jobID)
	if err != nil {
		log.Printf("Failed to load job %s: %v", jobID, err)
		return
	}
	job.Status = model.JobStatusSucceeded
	now := time.Now()
	job.CompletedAt = &now
	if err := store.SaveJob(ctx, job); err != nil {
		log.Printf("Failed to save job %s: %v", jobID, err)
	}
}

func markFailed(ctx context.Context, store pipeline.JobStore, jobID, msg string) {
	job, err := store.GetJob(ctx, jobID)
	if err != nil {
		log.Printf("Failed to load job %s: %v", jobID, err)
		return
	}
	job.Status = model.JobStatusFailed
	job.Error = &msg
	now := time.Now()
	job.CompletedAt = &now
	if err := store.SaveJob(ctx, job); err != nil {
		log.Printf("Failed to save job %s: %v", jobID, err)
	}
}
