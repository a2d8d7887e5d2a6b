package model

// Work status
type WorkStatus string

const (
	StatusUploaded  WorkStatus = "uploaded"
	StatusAnalyzing WorkStatus = "analyzing"
	StatusCompleted WorkStatus = "completed"
	StatusFailed    WorkStatus = "failed"
)

// CanTransitionTo reports whether the status machine allows moving to next.
// The only legal edges are uploaded→analyzing→{completed,failed}; terminal
// states return to uploaded through the clear-audio reset.
func (s WorkStatus) CanTransitionTo(next WorkStatus) bool {
	switch s {
	case StatusUploaded:
		return next == StatusAnalyzing
	case StatusAnalyzing:
		return next == StatusCompleted || next == StatusFailed
	case StatusCompleted, StatusFailed:
		return next == StatusUploaded
	}
	return false
}

// Pipeline stages
type Stage string

const (
	StageAnalysis Stage = "analysis"
	StageArtwork  Stage = "artwork"
	StageAugment  Stage = "augment"
)

// Job status
type JobStatus string

const (
	JobStatusQueued    JobStatus = "queued"
	JobStatusRunning   JobStatus = "running"
	JobStatusSucceeded JobStatus = "succeeded"
	JobStatusFailed    JobStatus = "failed"
)

// Genre vocabularies. Piano-associated genres are used when the analyzer
// classifies the recording as primarily piano; the general list otherwise.
var PianoGenres = []string{
	"Neoclassical",
	"Classical Crossover",
	"Ambient",
	"New Age",
	"Jazz",
	"Cinematic",
}

var GeneralGenres = []string{
	"Pop",
	"Rock",
	"Electronic",
	"Hip-Hop",
	"R&B",
	"Folk",
	"Indie",
	"Lo-Fi",
}

// Moods emitted by the analyzer.
const (
	MoodMelancholy = "Melancholy"
	MoodSerene     = "Serene"
	MoodEnergetic  = "Energetic"
	MoodUplifting  = "Uplifting"
)

var ValidMoods = []string{MoodMelancholy, MoodSerene, MoodEnergetic, MoodUplifting, "Dreamy", "Tense"}

// Controlled vocabularies for distribution categorization. The augmentation
// stage enumerates these in its prompt and the model must pick from them.
var ValidBenefits = []string{
	"Relax",
	"Sleep",
	"Focus",
	"Reduce Stress",
	"Uplift",
	"Heal",
	"Ground",
}

var ValidPractices = []string{
	"Sound Meditation",
	"Music for Sleep",
	"Yoga Music",
	"Breathwork Music",
	"Focus Music",
	"Movement Meditation",
}

var ValidThemes = []string{
	"Nature",
	"Inner Peace",
	"Self-Love",
	"Gratitude",
	"Letting Go",
	"Presence",
	"Healing",
	"Rest",
}

var ValidContentTypes = []string{"Music", "Guided Meditation", "Talk"}

var ValidVoices = []string{"No voice", "Female voice", "Male voice"}

var ValidAudienceLevels = []string{"Everyone", "Beginner", "Intermediate", "Advanced"}

var ValidAudienceAges = []string{"Children", "Teens", "Adults", "Seniors"}

var ValidPrimaryUses = []string{"Meditate", "Sleep", "Relax", "Move", "Focus"}

// MaxBenefits caps the benefits list; the distribution target rejects more.
const MaxBenefits = 3
