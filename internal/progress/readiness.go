// Package progress derives release progress and submission gating from a
// work snapshot. Both computations are pure functions of the persisted row;
// callers recompute them on every poll.
package progress

import "github.com/tracklight/api/internal/model"

// ActionKind identifies the suggested call-to-action for the client.
type ActionKind string

const (
	ActionChooseType       ActionKind = "choose_type"
	ActionUploadAudio      ActionKind = "upload_audio"
	ActionCompleteMetadata ActionKind = "complete_metadata"
	ActionAddNotes         ActionKind = "add_notes"
	ActionArtworkPrompt    ActionKind = "artwork_prompt"
	ActionAugment          ActionKind = "augment"
	ActionMarkReady        ActionKind = "mark_ready"
	ActionDistribution     ActionKind = "distribution"
)

type Action struct {
	Kind  ActionKind `json:"kind"`
	Label string     `json:"label"`
}

// Readiness is the advisory progress state. The percentage motivates; it
// does not authorize submission — that is the pre-flight gate's job.
type Readiness struct {
	Percent    int     `json:"progressPercent"`
	Message    string  `json:"message"`
	NextAction *Action `json:"nextAction"`
}

func action(kind ActionKind, label string) *Action {
	return &Action{Kind: kind, Label: label}
}

// Compute walks the ordered readiness checklist. Each rung past the audio
// rung requires every rung below it, so the percentage is monotonic in the
// number of leading rungs satisfied and never decreases as conditions are
// added. At most one next action is surfaced.
func Compute(w *model.Work) Readiness {
	// Rungs 0-2: existence, type choice, audio. Audio is an absolute 30
	// that supersedes the first two rungs.
	percent := 10
	message := "Idea captured"
	next := action(ActionChooseType, "Choose Work Type")

	if w.IsImprovisation != nil {
		percent = 15
		message = "Work type chosen"
		next = action(ActionUploadAudio, "Upload Audio")
	}

	if !w.HasAudio() {
		return Readiness{Percent: percent, Message: message, NextAction: next}
	}

	percent = 30
	message = "Audio attached, analysis pending"
	next = action(ActionCompleteMetadata, "Complete Core Metadata")

	coreComplete := w.PrimaryGenre != "" && w.AnalysisData.Complete()
	if !coreComplete {
		return Readiness{Percent: percent, Message: message, NextAction: next}
	}

	percent = 60
	message = "Core metadata complete"
	if !w.HasNotes() {
		next = action(ActionAddNotes, "Add Creative Notes")
		return Readiness{Percent: percent, Message: message, NextAction: next}
	}
	if w.ArtworkPrompt == "" {
		next = action(ActionArtworkPrompt, "Generate AI Artwork Prompt")
		return Readiness{Percent: percent, Message: message, NextAction: next}
	}

	percent = 70
	message = "Creative package ready"
	if !w.CategorizationComplete() {
		next = action(ActionAugment, "AI Populate Distribution Metadata")
		return Readiness{Percent: percent, Message: message, NextAction: next}
	}

	// Rungs 5 and 6 share a condition: augmentation complete lands the work
	// at 90, pending manual confirmation.
	percent = 90
	message = "Distribution metadata populated, pending confirmation"
	if !w.IsReadyForRelease {
		next = action(ActionMarkReady, "Mark as Ready for Release")
		return Readiness{Percent: percent, Message: message, NextAction: next}
	}

	return Readiness{
		Percent:    100,
		Message:    "Ready for release",
		NextAction: action(ActionDistribution, "Open Distribution Prep"),
	}
}
