package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/tracklight/api/internal/client"
	"github.com/tracklight/api/internal/model"
	"github.com/tracklight/api/internal/pipeline"
	"github.com/tracklight/api/internal/repo"
)

var (
	// ErrConfirmationBlocked rejects confirming metadata before
	// categorization is complete.
	ErrConfirmationBlocked = errors.New("categorization incomplete")
	// ErrSubmissionBlocked rejects submission flags before confirmation.
	ErrSubmissionBlocked = errors.New("metadata not confirmed")
)

// WorkService owns the work lifecycle: capture, audio attach/clear, edits,
// deletion. Stage dispatch is fire-and-forget; the HTTP caller never waits
// for a stage to finish.
type WorkService struct {
	works      repo.WorkRepository
	storage    client.StorageClient
	dispatcher *pipeline.Dispatcher
}

func NewWorkService(works repo.WorkRepository, storage client.StorageClient, dispatcher *pipeline.Dispatcher) *WorkService {
	return &WorkService{works: works, storage: storage, dispatcher: dispatcher}
}

// Capture creates a work with no audio: a pure idea.
func (s *WorkService) Capture(ctx context.Context, userID string, req *model.CaptureWorkRequest) (*model.Work, error) {
	work := &model.Work{
		ID:              uuid.New().String(),
		UserID:          userID,
		Status:          model.StatusUploaded,
		IsImprovisation: req.IsImprovisation,
		Notes:           model.DefaultNotes(),
		CreatedAt:       time.Now(),
	}
	if req.Title != "" {
		title := req.Title
		work.GeneratedName = &title
	}
	if err := s.works.Create(ctx, work); err != nil {
		return nil, fmt.Errorf("failed to create work: %w", err)
	}
	return work, nil
}

// Get loads a work scoped to its owner. Foreign rows look like missing rows.
func (s *WorkService) Get(ctx context.Context, userID, id string) (*model.Work, error) {
	work, err := s.works.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if work.UserID != userID {
		return nil, repo.ErrWorkNotFound
	}
	return work, nil
}

func (s *WorkService) List(ctx context.Context, userID string) ([]*model.Work, error) {
	return s.works.ListByUser(ctx, userID)
}

// Update applies a partial field-set edit. Benefits are clamped to the cap
// rather than rejected; confirmation and submission flags are gated.
func (s *WorkService) Update(ctx context.Context, userID, id string, req *model.UpdateWorkRequest) (*model.Work, error) {
	work, err := s.Get(ctx, userID, id)
	if err != nil {
		return nil, err
	}

	if req.IsMetadataConfirmed != nil && *req.IsMetadataConfirmed && !work.CategorizationComplete() {
		// Benefits/practice arriving in the same request count: apply the
		// categorization fields first, then re-check.
		applyCategorization(work, req)
		if !work.CategorizationComplete() {
			return nil, ErrConfirmationBlocked
		}
	} else {
		applyCategorization(work, req)
	}

	if req.GeneratedName != nil {
		work.GeneratedName = req.GeneratedName
	}
	if req.IsImprovisation != nil {
		work.IsImprovisation = req.IsImprovisation
	}
	if req.PrimaryGenre != nil {
		work.PrimaryGenre = *req.PrimaryGenre
	}
	if req.SecondaryGenre != nil {
		work.SecondaryGenre = *req.SecondaryGenre
	}
	if req.ArtworkPrompt != nil {
		work.ArtworkPrompt = *req.ArtworkPrompt
	}
	if req.Notes != nil {
		work.Notes = model.NormalizeNotes(*req.Notes)
	}
	if req.UserTags != nil {
		work.UserTags = *req.UserTags
	}
	if req.IsPiano != nil {
		work.IsPiano = *req.IsPiano
	}
	if req.IsInstrumental != nil {
		work.IsInstrumental = *req.IsInstrumental
	}
	if req.IsOriginalSong != nil {
		work.IsOriginalSong = *req.IsOriginalSong
	}
	if req.HasExplicitLyrics != nil {
		work.HasExplicitLyrics = *req.HasExplicitLyrics
	}
	if req.IsMetadataConfirmed != nil {
		// Once true, confirmation is not auto-revoked by later edits; it
		// may still be cleared explicitly here.
		work.IsMetadataConfirmed = *req.IsMetadataConfirmed
	}
	if req.IsReadyForRelease != nil {
		work.IsReadyForRelease = *req.IsReadyForRelease
	}
	if req.IsSubmittedToDistroKid != nil {
		if *req.IsSubmittedToDistroKid && !work.IsMetadataConfirmed {
			return nil, ErrSubmissionBlocked
		}
		work.IsSubmittedToDistroKid = *req.IsSubmittedToDistroKid
	}
	if req.IsSubmittedToInsightTimer != nil {
		if *req.IsSubmittedToInsightTimer && !work.IsMetadataConfirmed {
			return nil, ErrSubmissionBlocked
		}
		work.IsSubmittedToInsightTimer = *req.IsSubmittedToInsightTimer
	}

	if err := s.works.Save(ctx, work); err != nil {
		return nil, fmt.Errorf("failed to save work: %w", err)
	}
	return work, nil
}

func applyCategorization(work *model.Work, req *model.UpdateWorkRequest) {
	if req.ContentType != nil {
		work.ContentType = *req.ContentType
	}
	if req.Language != nil {
		work.Language = *req.Language
	}
	if req.PrimaryUse != nil {
		work.PrimaryUse = *req.PrimaryUse
	}
	if req.AudienceLevel != nil {
		work.AudienceLevel = *req.AudienceLevel
	}
	if req.AudienceAges != nil {
		work.AudienceAges = *req.AudienceAges
	}
	if req.Voice != nil {
		work.Voice = *req.Voice
	}
	if req.Benefits != nil {
		work.Benefits = clampBenefits(*req.Benefits)
	}
	if req.Practice != nil {
		work.Practice = *req.Practice
	}
	if req.Themes != nil {
		work.Themes = *req.Themes
	}
	if req.Description != nil {
		work.Description = *req.Description
	}
}

func clampBenefits(benefits []string) []string {
	if len(benefits) > model.MaxBenefits {
		return benefits[:model.MaxBenefits]
	}
	return benefits
}

// AttachAudio uploads the blob, moves the work to analyzing and dispatches
// the analysis stage. The upload happens before any row mutation so a
// storage failure leaves the record untouched. Attaching over existing audio
// is a swap: derived fields are reset first.
func (s *WorkService) AttachAudio(ctx context.Context, userID, id, filename, contentType string, body io.Reader) (*model.Work, *model.Job, error) {
	work, err := s.Get(ctx, userID, id)
	if err != nil {
		return nil, nil, err
	}

	key := fmt.Sprintf("%s/%s%s", userID, work.ID, safeExt(filename))
	url, err := s.upload(ctx, key, body, contentType)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to upload audio: %w", err)
	}

	if work.HasAudio() {
		work.ResetDerived()
	}
	work.StoragePath = key
	work.AudioURL = url
	work.Status = model.StatusAnalyzing
	if err := s.works.Save(ctx, work); err != nil {
		return nil, nil, fmt.Errorf("failed to save work: %w", err)
	}

	hint := work.IsImprovisation != nil && *work.IsImprovisation
	job, err := s.dispatcher.Dispatch(ctx, model.StageAnalysis, work.ID, model.AnalysisPayload{
		WorkID:              work.ID,
		StorageRef:          key,
		IsImprovisationHint: hint,
	})
	if err != nil {
		// Fire-and-forget: the ledger already records the failed attempt,
		// and a manual re-analyze can recover. The attach itself succeeded.
		log.Printf("Failed to dispatch analysis for work %s: %v", work.ID, err)
	}
	return work, job, nil
}

// ClearAudio removes the blob and performs the cascading reset back to
// uploaded. Blob removal is best-effort; the reset is mandatory.
func (s *WorkService) ClearAudio(ctx context.Context, userID, id string) (*model.Work, error) {
	work, err := s.Get(ctx, userID, id)
	if err != nil {
		return nil, err
	}

	if work.HasAudio() && s.storage != nil {
		if err := s.storage.Remove(ctx, []string{work.StoragePath}); err != nil {
			log.Printf("Failed to remove audio blob for work %s: %v", work.ID, err)
		}
	}

	work.ResetDerived()
	work.StoragePath = ""
	work.AudioURL = ""
	work.Status = model.StatusUploaded
	if err := s.works.Save(ctx, work); err != nil {
		return nil, fmt.Errorf("failed to save work: %w", err)
	}
	return work, nil
}

// AttachArtwork stores a manually created image and records its URL. This is
// the user-driven flow; the artwork stage only ever produces prompts.
func (s *WorkService) AttachArtwork(ctx context.Context, userID, id, filename, contentType string, body io.Reader) (*model.Work, error) {
	work, err := s.Get(ctx, userID, id)
	if err != nil {
		return nil, err
	}

	key := fmt.Sprintf("%s/artwork/%s%s", userID, work.ID, safeExt(filename))
	url, err := s.upload(ctx, key, body, contentType)
	if err != nil {
		return nil, fmt.Errorf("failed to upload artwork: %w", err)
	}

	work.ArtworkPath = key
	work.ArtworkURL = url
	if err := s.works.Save(ctx, work); err != nil {
		return nil, fmt.Errorf("failed to save work: %w", err)
	}
	return work, nil
}

// Delete reclaims blob storage before removing the row. Individual blob
// failures are logged and the deletion continues best-effort.
func (s *WorkService) Delete(ctx context.Context, userID, id string) error {
	work, err := s.Get(ctx, userID, id)
	if err != nil {
		return err
	}

	var keys []string
	if work.StoragePath != "" {
		keys = append(keys, work.StoragePath)
	}
	if work.ArtworkPath != "" {
		keys = append(keys, work.ArtworkPath)
	}
	if len(keys) > 0 && s.storage != nil {
		if err := s.storage.Remove(ctx, keys); err != nil {
			log.Printf("Blob reclamation incomplete for work %s: %v", work.ID, err)
		}
	}

	if err := s.works.Delete(ctx, work); err != nil {
		return fmt.Errorf("failed to delete work: %w", err)
	}
	return nil
}

func (s *WorkService) upload(ctx context.Context, key string, body io.Reader, contentType string) (string, error) {
	if s.storage == nil {
		// Unconfigured storage: local development mock, same shape as the
		// public URL the real gateway returns.
		return "https://cdn.tracklight.app/" + key, nil
	}
	return s.storage.Upload(ctx, key, body, contentType)
}

func safeExt(filename string) string {
	ext := filepath.Ext(filename)
	if ext == "" || len(ext) > 8 {
		return ".bin"
	}
	return ext
}
