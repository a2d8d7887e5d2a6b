package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"log"

	"github.com/hibiken/asynq"

	"github.com/tracklight/api/internal/model"
	"github.com/tracklight/api/internal/pipeline"
	"github.com/tracklight/api/internal/service"
	"github.com/tracklight/api/internal/websocket"
)

// ArtworkWorker processes chained artwork-prompt dispatches. A failure here
// leaves the work's status untouched; the missing prompt simply shows up in
// the readiness checklist.
type ArtworkWorker struct {
	artwork    *service.ArtworkService
	dispatcher *pipeline.Dispatcher
	hub        *websocket.Hub
}

func NewArtworkWorker(artwork *service.ArtworkService, dispatcher *pipeline.Dispatcher, hub *websocket.Hub) *ArtworkWorker {
	return &ArtworkWorker{artwork: artwork, dispatcher: dispatcher, hub: hub}
}

func (w *ArtworkWorker) ProcessTask(ctx context.Context, t *asynq.Task) error {
	var envelope pipeline.TaskEnvelope
	if err := json.Unmarshal(t.Payload(), &envelope); err != nil {
		return fmt.Errorf("failed to unmarshal task envelope: %w", err)
	}

	var payload model.ArtworkPayload
	if err := json.Unmarshal(envelope.Payload, &payload); err != nil {
		markFailed(ctx, w.dispatcher.Store(), envelope.JobID, "invalid payload")
		return fmt.Errorf("failed to unmarshal artwork payload: %w", err)
	}

	log.Printf("Starting artwork job %s for work %s", envelope.JobID, payload.WorkID)
	markRunning(ctx, w.dispatcher.Store(), envelope.JobID)
	w.hub.BroadcastStage(payload.WorkID, model.StageArtwork, model.JobStatusRunning)

	result, err := w.artwork.Run(ctx, &payload)
	if err != nil {
		markFailed(ctx, w.dispatcher.Store(), envelope.JobID, err.Error())
		w.hub.BroadcastError(payload.WorkID, "ARTWORK_FAILED", err.Error())
		return nil
	}

	markSucceeded(ctx, w.dispatcher.Store(), envelope.JobID)
	w.hub.BroadcastComplete(payload.WorkID, model.StageArtwork, result)
	log.Printf("Artwork job %s completed", envelope.JobID)
	return nil
}
