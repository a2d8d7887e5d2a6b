package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/tracklight/api/internal/client"
	"github.com/tracklight/api/internal/model"
	"github.com/tracklight/api/internal/repo"
)

// ErrMalformedModelOutput is returned when the model's categorization JSON
// cannot be parsed or is missing required fields. The caller gets the typed
// error and the row is left untouched; half-populated categorization is
// never written.
var ErrMalformedModelOutput = errors.New("malformed model output")

// AugmentService runs the distribution-augmentation stage: a categorization
// call followed by a description call, written back as one atomic update.
type AugmentService struct {
	works repo.WorkRepository
	text  client.TextCompleter
}

func NewAugmentService(works repo.WorkRepository, text client.TextCompleter) *AugmentService {
	return &AugmentService{works: works, text: text}
}

type categorization struct {
	Benefits      []string `json:"benefits"`
	Practice      string   `json:"practice"`
	Themes        []string `json:"themes"`
	ContentType   string   `json:"contentType"`
	Language      string   `json:"language"`
	PrimaryUse    string   `json:"primaryUse"`
	AudienceLevel string   `json:"audienceLevel"`
	AudienceAges  []string `json:"audienceAges"`
	Voice         string   `json:"voice"`
}

// Run performs both calls. Failure of either surfaces as an error with zero
// row mutation.
func (s *AugmentService) Run(ctx context.Context, workID string) (*model.AugmentResponse, error) {
	work, err := s.works.Get(ctx, workID)
	if err != nil {
		return nil, err
	}

	cat, err := s.categorize(ctx, work)
	if err != nil {
		return nil, err
	}

	desc, err := s.describe(ctx, work, cat)
	if err != nil {
		return nil, err
	}

	cat.Benefits = clampBenefits(cat.Benefits)

	latest, err := s.works.Get(ctx, workID)
	if err != nil {
		return nil, err
	}
	latest.Benefits = cat.Benefits
	latest.Practice = cat.Practice
	latest.Themes = cat.Themes
	if cat.ContentType != "" {
		latest.ContentType = cat.ContentType
	}
	if cat.Language != "" {
		latest.Language = cat.Language
	}
	if cat.PrimaryUse != "" {
		latest.PrimaryUse = cat.PrimaryUse
	}
	if cat.AudienceLevel != "" {
		latest.AudienceLevel = cat.AudienceLevel
	}
	if len(cat.AudienceAges) > 0 {
		latest.AudienceAges = cat.AudienceAges
	}
	if cat.Voice != "" {
		latest.Voice = cat.Voice
	}
	latest.Description = desc
	if err := s.works.Save(ctx, latest); err != nil {
		return nil, fmt.Errorf("failed to persist augmentation: %w", err)
	}

	return &model.AugmentResponse{
		Success:     true,
		Description: desc,
		Updates: &model.AugmentUpdates{
			Benefits: cat.Benefits,
			Practice: cat.Practice,
			Themes:   cat.Themes,
		},
	}, nil
}

// Describe regenerates only the description text.
func (s *AugmentService) Describe(ctx context.Context, workID string) (*model.AugmentResponse, error) {
	work, err := s.works.Get(ctx, workID)
	if err != nil {
		return nil, err
	}

	desc, err := s.describe(ctx, work, nil)
	if err != nil {
		return nil, err
	}

	latest, err := s.works.Get(ctx, workID)
	if err != nil {
		return nil, err
	}
	latest.Description = desc
	if err := s.works.Save(ctx, latest); err != nil {
		return nil, fmt.Errorf("failed to persist description: %w", err)
	}
	return &model.AugmentResponse{Success: true, Description: desc}, nil
}

const categorizeSystemPrompt = `You classify instrumental audio for a meditation and wellness listening platform.
Respond with a single JSON object and nothing else.`

func (s *AugmentService) categorize(ctx context.Context, work *model.Work) (*categorization, error) {
	if !s.text.IsConfigured() {
		return mockCategorization(work), nil
	}

	out, err := s.text.ChatCompletion(ctx, categorizeSystemPrompt, categorizeUserPrompt(work))
	if err != nil {
		return nil, fmt.Errorf("categorization call failed: %w", err)
	}

	cleaned := stripCodeFence(out)
	var cat categorization
	if err := json.Unmarshal([]byte(cleaned), &cat); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedModelOutput, err)
	}
	if len(cat.Benefits) == 0 || cat.Practice == "" {
		return nil, fmt.Errorf("%w: missing benefits or practice", ErrMalformedModelOutput)
	}
	return &cat, nil
}

func categorizeUserPrompt(work *model.Work) string {
	name := ""
	if work.GeneratedName != nil {
		name = *work.GeneratedName
	}
	mood, tempo := "", 0
	if work.AnalysisData != nil {
		mood = work.AnalysisData.Mood
		tempo = work.AnalysisData.Tempo
	}
	return fmt.Sprintf(`Categorize this piece for distribution.
Title: %s
Genre: %s / %s
Mood: %s
Tempo: %d BPM

Pick only from these controlled vocabularies:
benefits (choose up to %d): %s
practice (choose exactly one): %s
themes (choose any): %s
contentType: %s
voice: %s
audienceLevel: %s
audienceAges: %s
primaryUse: %s
language: a lowercase ISO 639-1 code, e.g. "en"

Output JSON with keys: benefits, practice, themes, contentType, language, primaryUse, audienceLevel, audienceAges, voice.`,
		name, work.PrimaryGenre, work.SecondaryGenre, mood, tempo,
		model.MaxBenefits,
		strings.Join(model.ValidBenefits, ", "),
		strings.Join(model.ValidPractices, ", "),
		strings.Join(model.ValidThemes, ", "),
		strings.Join(model.ValidContentTypes, ", "),
		strings.Join(model.ValidVoices, ", "),
		strings.Join(model.ValidAudienceLevels, ", "),
		strings.Join(model.ValidAudienceAges, ", "),
		strings.Join(model.ValidPrimaryUses, ", "))
}

const describeSystemPrompt = `You write listener-facing descriptions for a meditation and wellness listening platform.
Respond with the description text only.`

func (s *AugmentService) describe(ctx context.Context, work *model.Work, cat *categorization) (string, error) {
	if !s.text.IsConfigured() {
		return mockDescription(work), nil
	}

	out, err := s.text.ChatCompletion(ctx, describeSystemPrompt, describeUserPrompt(work, cat))
	if err != nil {
		return "", fmt.Errorf("description call failed: %w", err)
	}
	desc := strings.TrimSpace(stripCodeFence(out))
	if desc == "" {
		return "", fmt.Errorf("%w: empty description", ErrMalformedModelOutput)
	}
	return desc, nil
}

func describeUserPrompt(work *model.Work, cat *categorization) string {
	name := ""
	if work.GeneratedName != nil {
		name = *work.GeneratedName
	}
	mood, key, tempo := "", "", 0
	if work.AnalysisData != nil {
		mood = work.AnalysisData.Mood
		key = work.AnalysisData.Key
		tempo = work.AnalysisData.Tempo
	}
	benefits := work.Benefits
	practice := work.Practice
	if cat != nil {
		benefits = cat.Benefits
		practice = cat.Practice
	}

	var notes []string
	for _, n := range work.Notes {
		if n.Content != "" {
			notes = append(notes, n.Title+": "+n.Content)
		}
	}

	// The sentence-count and no-links constraints come from the distribution
	// target's content policy; they are enforced by instruction only.
	return fmt.Sprintf(`Write a description for this piece.
Title: %s
Genre: %s / %s
Key: %s, Tempo: %d BPM, Mood: %s
Benefits: %s
Practice: %s
Creator notes: %s
Tags: %s

Exactly 3 to 5 sentences. No promotional links. Do not mention any platform or app by name.`,
		name, work.PrimaryGenre, work.SecondaryGenre, key, tempo, mood,
		strings.Join(benefits, ", "), practice,
		strings.Join(notes, " | "), strings.Join(work.UserTags, ", "))
}

// stripCodeFence removes a markdown code fence the model may wrap its JSON
// in, with or without a language tag.
func stripCodeFence(s string) string {
	out := strings.TrimSpace(s)
	if !strings.HasPrefix(out, "```") {
		return out
	}
	out = strings.TrimPrefix(out, "```")
	if i := strings.IndexByte(out, '\n'); i >= 0 {
		// Drop the fence line itself (possibly "json").
		out = out[i+1:]
	}
	out = strings.TrimSuffix(strings.TrimSpace(out), "```")
	return strings.TrimSpace(out)
}

// Local fallbacks for unconfigured text service.

func mockCategorization(work *model.Work) *categorization {
	cat := &categorization{
		Benefits:      []string{"Relax", "Reduce Stress"},
		Practice:      "Sound Meditation",
		Themes:        []string{"Inner Peace", "Presence"},
		ContentType:   "Music",
		Language:      "en",
		PrimaryUse:    "Relax",
		AudienceLevel: "Everyone",
		AudienceAges:  []string{"Adults"},
		Voice:         "No voice",
	}
	if work.AnalysisData != nil && work.AnalysisData.Mood == model.MoodEnergetic {
		cat.Benefits = []string{"Uplift", "Focus"}
		cat.Practice = "Focus Music"
		cat.Themes = []string{"Presence"}
		cat.PrimaryUse = "Focus"
	}
	return cat
}

func mockDescription(work *model.Work) string {
	name := "This piece"
	if work.GeneratedName != nil && *work.GeneratedName != "" {
		name = *work.GeneratedName
	}
	genre := work.PrimaryGenre
	if genre == "" {
		genre = "instrumental"
	}
	return fmt.Sprintf("%s is a %s piece composed for deep listening. "+
		"Gentle textures unfold slowly, giving the mind room to settle. "+
		"Let it accompany rest, reflection, or quiet focus.", name, strings.ToLower(genre))
}
