package model

import "time"

// AnalysisData holds the acoustic features written by the analysis stage.
// Extra carries any additional analyzer output without a schema change.
type AnalysisData struct {
	Key   string            `json:"key"`
	Tempo int               `json:"tempo"`
	Mood  string            `json:"mood"`
	Extra map[string]string `json:"extra,omitempty"`
}

// Complete reports whether the core feature set is populated.
func (a *AnalysisData) Complete() bool {
	return a != nil && a.Key != "" && a.Tempo > 0 && a.Mood != ""
}

// Note zones. Every work carries exactly four notes, one per zone.
const (
	NoteZoneStructure = "structure"
	NoteZoneMood      = "mood"
	NoteZoneTechnical = "technical"
	NoteZoneNextStep  = "next-step"
)

type Note struct {
	ID      string `json:"id"`
	Title   string `json:"title"`
	Content string `json:"content"`
}

// DefaultNotes returns the fixed four-zone note template.
func DefaultNotes() []Note {
	return []Note{
		{ID: NoteZoneStructure, Title: "Structure"},
		{ID: NoteZoneMood, Title: "Mood"},
		{ID: NoteZoneTechnical, Title: "Technical"},
		{ID: NoteZoneNextStep, Title: "Next Step"},
	}
}

// NormalizeNotes replaces a missing or malformed persisted notes array with
// the default template. Malformed notes are never partially merged; either
// the stored array matches the four-zone shape or it is replaced wholesale.
func NormalizeNotes(notes []Note) []Note {
	if len(notes) != 4 {
		return DefaultNotes()
	}
	want := []string{NoteZoneStructure, NoteZoneMood, NoteZoneTechnical, NoteZoneNextStep}
	for i, n := range notes {
		if n.ID != want[i] || n.Title == "" {
			return DefaultNotes()
		}
	}
	return notes
}

// Work is one tracked creative audio piece, the unit of pipeline state.
type Work struct {
	ID              string     `json:"id"`
	UserID          string     `json:"userId"`
	Status          WorkStatus `json:"status"`
	IsImprovisation *bool      `json:"isImprovisation"`

	StoragePath string `json:"storagePath,omitempty"`
	AudioURL    string `json:"audioUrl,omitempty"`

	GeneratedName  *string       `json:"generatedName"`
	AnalysisData   *AnalysisData `json:"analysisData"`
	PrimaryGenre   string        `json:"primaryGenre,omitempty"`
	SecondaryGenre string        `json:"secondaryGenre,omitempty"`

	ArtworkPrompt string `json:"artworkPrompt,omitempty"`
	ArtworkURL    string `json:"artworkUrl,omitempty"`
	ArtworkPath   string `json:"artworkPath,omitempty"`

	Notes    []Note   `json:"notes"`
	UserTags []string `json:"userTags,omitempty"`

	IsPiano           bool `json:"isPiano"`
	IsInstrumental    bool `json:"isInstrumental"`
	IsOriginalSong    bool `json:"isOriginalSong"`
	HasExplicitLyrics bool `json:"hasExplicitLyrics"`

	ContentType   string   `json:"contentType,omitempty"`
	Language      string   `json:"language,omitempty"`
	PrimaryUse    string   `json:"primaryUse,omitempty"`
	AudienceLevel string   `json:"audienceLevel,omitempty"`
	AudienceAges  []string `json:"audienceAges,omitempty"`
	Voice         string   `json:"voice,omitempty"`
	Benefits      []string `json:"benefits,omitempty"`
	Practice      string   `json:"practice,omitempty"`
	Themes        []string `json:"themes,omitempty"`
	Description   string   `json:"description,omitempty"`

	IsMetadataConfirmed       bool `json:"isMetadataConfirmed"`
	IsReadyForRelease         bool `json:"isReadyForRelease"`
	IsSubmittedToDistroKid    bool `json:"isSubmittedToDistroKid"`
	IsSubmittedToInsightTimer bool `json:"isSubmittedToInsightTimer"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// HasAudio reports whether a storage reference exists. A work may live
// indefinitely without audio (pure idea capture).
func (w *Work) HasAudio() bool {
	return w.StoragePath != ""
}

// CategorizationComplete is the precondition for confirming metadata.
func (w *Work) CategorizationComplete() bool {
	return len(w.Benefits) > 0 && w.Practice != ""
}

// HasNotes reports whether any note zone has content.
func (w *Work) HasNotes() bool {
	for _, n := range w.Notes {
		if n.Content != "" {
			return true
		}
	}
	return false
}

// ResetDerived nulls every field populated downstream of the audio blob.
// Called by the clear-audio cascade; leaving stale AI output after an audio
// swap is a correctness bug. Notes, distribution booleans, the improvisation
// flag, submission flags and timestamps are deliberately untouched.
func (w *Work) ResetDerived() {
	w.GeneratedName = nil
	w.AnalysisData = nil
	w.PrimaryGenre = ""
	w.SecondaryGenre = ""
	w.ArtworkPrompt = ""
	w.ArtworkURL = ""
	w.UserTags = nil
	w.ContentType = ""
	w.Language = ""
	w.PrimaryUse = ""
	w.AudienceLevel = ""
	w.AudienceAges = nil
	w.Voice = ""
	w.Benefits = nil
	w.Practice = ""
	w.Themes = nil
	w.Description = ""
	w.IsReadyForRelease = false
	w.IsMetadataConfirmed = false
}
