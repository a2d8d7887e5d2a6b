package service

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/tracklight/api/internal/client"
	"github.com/tracklight/api/internal/model"
	"github.com/tracklight/api/internal/repo"
)

// AINameFallbackPrefix marks titles produced locally after the text service
// failed. Naming failure must not block the rest of the pipeline.
const AINameFallbackPrefix = "AI Name Generation Failed - "

// AnalysisService runs the analysis stage: simulated feature extraction,
// genre selection and AI naming, persisted as one atomic row update that
// moves the work out of the analyzing state.
type AnalysisService struct {
	works    repo.WorkRepository
	analyzer AudioAnalyzer
	text     client.TextCompleter
}

func NewAnalysisService(works repo.WorkRepository, analyzer AudioAnalyzer, text client.TextCompleter) *AnalysisService {
	return &AnalysisService{works: works, analyzer: analyzer, text: text}
}

// Run executes the stage for one dispatch. Duplicate invocations are safe:
// each run computes from current persisted inputs and overwrites the same
// output fields, so the last to finish wins deterministically.
func (s *AnalysisService) Run(ctx context.Context, payload *model.AnalysisPayload) (*model.Work, error) {
	work, err := s.works.Get(ctx, payload.WorkID)
	if err != nil {
		return nil, err
	}

	feats, err := s.analyzer.Analyze(ctx, AnalysisInput{
		StorageRef:          payload.StorageRef,
		IsImprovisationHint: payload.IsImprovisationHint,
	})
	if err != nil {
		s.MarkFailed(ctx, payload.WorkID, fmt.Sprintf("analysis failed: %v", err))
		return nil, fmt.Errorf("analyzer error: %w", err)
	}

	name := s.generateName(ctx, work, feats)

	// Re-read so the single completing write only touches this stage's
	// field-set on top of the latest row.
	latest, err := s.works.Get(ctx, payload.WorkID)
	if err != nil {
		return nil, err
	}
	latest.AnalysisData = &model.AnalysisData{Key: feats.Key, Tempo: feats.Tempo, Mood: feats.Mood}
	latest.PrimaryGenre = feats.PrimaryGenre
	latest.SecondaryGenre = feats.SecondaryGenre
	latest.IsPiano = feats.IsPiano
	latest.GeneratedName = &name
	latest.Status = model.StatusCompleted

	if err := s.works.Save(ctx, latest); err != nil {
		s.MarkFailed(ctx, payload.WorkID, fmt.Sprintf("persist failed: %v", err))
		return nil, fmt.Errorf("failed to persist analysis: %w", err)
	}
	return latest, nil
}

// MarkFailed moves a work still stuck in analyzing to failed. Callers treat
// "stuck in analyzing" as an operational failure, never a steady state.
func (s *AnalysisService) MarkFailed(ctx context.Context, workID, reason string) {
	work, err := s.works.Get(ctx, workID)
	if err != nil {
		log.Printf("Failed to load work %s for failure mark: %v", workID, err)
		return
	}
	if work.Status != model.StatusAnalyzing {
		return
	}
	work.Status = model.StatusFailed
	if err := s.works.Save(ctx, work); err != nil {
		log.Printf("Failed to mark work %s failed: %v", workID, err)
		return
	}
	log.Printf("Work %s marked failed: %s", workID, reason)
}

// GenerateTitle is the manual naming trigger. Unlike the in-stage call it
// surfaces text-service errors to the caller; retry is a user action.
func (s *AnalysisService) GenerateTitle(ctx context.Context, workID string) (string, error) {
	work, err := s.works.Get(ctx, workID)
	if err != nil {
		return "", err
	}

	feats := featuresFromWork(work)
	if !s.text.IsConfigured() {
		title := localTitle(feats)
		return title, s.persistName(ctx, workID, title)
	}

	out, err := s.text.ChatCompletion(ctx, namingSystemPrompt, namingUserPrompt(work, feats))
	if err != nil {
		return "", fmt.Errorf("title generation failed: %w", err)
	}
	title := cleanTitle(out)
	if title == "" {
		return "", fmt.Errorf("title generation returned empty output")
	}
	return title, s.persistName(ctx, workID, title)
}

func (s *AnalysisService) persistName(ctx context.Context, workID, title string) error {
	work, err := s.works.Get(ctx, workID)
	if err != nil {
		return err
	}
	work.GeneratedName = &title
	return s.works.Save(ctx, work)
}

const namingSystemPrompt = `You are a creative director naming instrumental music.
Respond with the title only: no quotes, no explanation, no punctuation beyond the title itself.`

func namingUserPrompt(work *model.Work, feats *Features) string {
	kind := "studio piece"
	if work.IsImprovisation != nil && *work.IsImprovisation {
		kind = "improvisation"
	}
	return fmt.Sprintf(`Name this %s.
Primary genre: %s
Secondary genre: %s
Key: %s
Tempo: %d BPM
Mood: %s

Suggest one evocative, human-readable title of at most six words.`,
		kind, feats.PrimaryGenre, feats.SecondaryGenre, feats.Key, feats.Tempo, feats.Mood)
}

// generateName resolves a title during the analysis stage. Transport or HTTP
// failure falls back to a clearly-marked placeholder rather than failing the
// stage; an unconfigured client composes a plain local title.
func (s *AnalysisService) generateName(ctx context.Context, work *model.Work, feats *Features) string {
	if !s.text.IsConfigured() {
		return localTitle(feats)
	}

	out, err := s.text.ChatCompletion(ctx, namingSystemPrompt, namingUserPrompt(work, feats))
	if err != nil {
		log.Printf("AI naming failed for work %s: %v", work.ID, err)
		return AINameFallbackPrefix + localTitle(feats)
	}
	title := cleanTitle(out)
	if title == "" {
		return AINameFallbackPrefix + localTitle(feats)
	}
	return title
}

func localTitle(feats *Features) string {
	instrument := "Ensemble"
	if feats.IsPiano {
		instrument = "Piano"
	}
	return fmt.Sprintf("%s %s Sketch in %s", feats.Mood, instrument, feats.Key)
}

func cleanTitle(raw string) string {
	title := strings.TrimSpace(raw)
	title = strings.Trim(title, "\"'")
	if i := strings.IndexByte(title, '\n'); i >= 0 {
		title = strings.TrimSpace(title[:i])
	}
	if len(title) > 120 {
		title = title[:120]
	}
	return title
}

func featuresFromWork(work *model.Work) *Features {
	feats := &Features{
		IsPiano:        work.IsPiano,
		PrimaryGenre:   work.PrimaryGenre,
		SecondaryGenre: work.SecondaryGenre,
	}
	if work.AnalysisData != nil {
		feats.Key = work.AnalysisData.Key
		feats.Tempo = work.AnalysisData.Tempo
		feats.Mood = work.AnalysisData.Mood
	}
	if feats.Key == "" {
		feats.Key = "C Major"
	}
	if feats.Tempo == 0 {
		feats.Tempo = 90
	}
	if feats.Mood == "" {
		feats.Mood = model.MoodSerene
	}
	return feats
}
