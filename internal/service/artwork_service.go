package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"

	"github.com/tracklight/api/internal/client"
	"github.com/tracklight/api/internal/model"
	"github.com/tracklight/api/internal/repo"
)

// ErrMissingArtworkInputs rejects prompt generation before a name exists.
// Emitting a degenerate prompt silently would be worse than failing.
var ErrMissingArtworkInputs = errors.New("missing artwork prompt inputs")

// ArtworkService produces a text prompt for an external image generator.
// It never renders pixels; manual image upload is a separate flow.
type ArtworkService struct {
	works repo.WorkRepository
	text  client.TextCompleter
}

func NewArtworkService(works repo.WorkRepository, text client.TextCompleter) *ArtworkService {
	return &ArtworkService{works: works, text: text}
}

// Run generates and persists the artwork prompt. Regeneration is idempotent:
// every run overwrites the same field from current inputs. Transport failure
// of the text service falls back to a locally composed prompt; the stage
// never fails the work's status.
func (s *ArtworkService) Run(ctx context.Context, payload *model.ArtworkPayload) (*model.ArtworkPromptResponse, error) {
	work, err := s.works.Get(ctx, payload.WorkID)
	if err != nil {
		return nil, err
	}

	name := payload.GeneratedName
	if name == "" && work.GeneratedName != nil {
		name = *work.GeneratedName
	}
	genre := payload.PrimaryGenre
	if genre == "" {
		genre = work.PrimaryGenre
	}
	mood := payload.Mood
	if mood == "" && work.AnalysisData != nil {
		mood = work.AnalysisData.Mood
	}
	if name == "" {
		return nil, ErrMissingArtworkInputs
	}

	prompt := s.generatePrompt(ctx, work.ID, name, genre, payload.SecondaryGenre, mood)

	latest, err := s.works.Get(ctx, payload.WorkID)
	if err != nil {
		return nil, err
	}
	latest.ArtworkPrompt = prompt
	if err := s.works.Save(ctx, latest); err != nil {
		return nil, fmt.Errorf("failed to persist artwork prompt: %w", err)
	}

	return &model.ArtworkPromptResponse{Success: true, ArtworkPrompt: prompt}, nil
}

const artworkSystemPrompt = `You write prompts for an AI image generator producing album cover art.
Respond with the prompt text only. Describe imagery, palette and composition; never include text overlays or artist names.`

func (s *ArtworkService) generatePrompt(ctx context.Context, workID, name, genre, secondary, mood string) string {
	if !s.text.IsConfigured() {
		return localArtworkPrompt(name, genre, mood)
	}

	user := fmt.Sprintf(`Write an album cover prompt for the piece %q.
Genre: %s
Secondary genre: %s
Mood: %s

One paragraph, vivid and specific.`, name, genre, secondary, mood)

	out, err := s.text.ChatCompletion(ctx, artworkSystemPrompt, user)
	if err != nil {
		log.Printf("Artwork prompt generation failed for work %s: %v", workID, err)
		return localArtworkPrompt(name, genre, mood)
	}
	prompt := strings.TrimSpace(out)
	if prompt == "" {
		return localArtworkPrompt(name, genre, mood)
	}
	return prompt
}

func localArtworkPrompt(name, genre, mood string) string {
	if genre == "" {
		genre = "instrumental"
	}
	if mood == "" {
		mood = "contemplative"
	}
	return fmt.Sprintf(
		"Album cover for %q: a %s %s scene, soft natural light, muted palette, "+
			"minimal composition with generous negative space, no text.",
		name, strings.ToLower(mood), strings.ToLower(genre))
}
