package service

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"github.com/tracklight/api/internal/model"
)

// AnalysisInput is what the analyzer sees: a blob reference and a hint.
type AnalysisInput struct {
	StorageRef          string
	IsImprovisationHint bool
}

// Features is the analyzer output consumed by the analysis stage.
type Features struct {
	IsPiano        bool
	Key            string
	Tempo          int
	Mood           string
	PrimaryGenre   string
	SecondaryGenre string
}

// AudioAnalyzer extracts acoustic features from a stored blob. A real DSP or
// ML implementation is a drop-in replacement; the state machine and the
// downstream stages only see Features.
type AudioAnalyzer interface {
	Analyze(ctx context.Context, in AnalysisInput) (*Features, error)
}

type tempoBucket int

const (
	tempoSlow tempoBucket = iota
	tempoMid
	tempoFast
)

func bucketTempo(tempo int) tempoBucket {
	switch {
	case tempo < 90:
		return tempoSlow
	case tempo <= 120:
		return tempoMid
	default:
		return tempoFast
	}
}

type genreRule struct {
	isPiano bool
	mood    string
	bucket  tempoBucket
	primary string
}

// Rule table for primary genre selection. Unmatched combinations fall back
// to a uniform pick from the appropriate list.
var genreRules = []genreRule{
	{true, model.MoodMelancholy, tempoSlow, "Neoclassical"},
	{true, model.MoodMelancholy, tempoMid, "Classical Crossover"},
	{true, model.MoodSerene, tempoSlow, "Ambient"},
	{true, model.MoodSerene, tempoMid, "New Age"},
	{true, model.MoodEnergetic, tempoFast, "Jazz"},
	{false, model.MoodEnergetic, tempoFast, "Electronic"},
	{false, model.MoodEnergetic, tempoMid, "Pop"},
	{false, model.MoodUplifting, tempoMid, "Indie"},
	{false, model.MoodMelancholy, tempoSlow, "Lo-Fi"},
}

// SimulatedAnalyzer stands in for real feature extraction. The piano flag is
// a weighted coin modelling a classifier's confidence distribution; tempo,
// mood and key derive deterministically from the flag so downstream stages
// exercise the full contract.
type SimulatedAnalyzer struct {
	mu  sync.Mutex
	rng *rand.Rand
}

// NewSimulatedAnalyzer seeds the analyzer; seed 0 means time-seeded.
func NewSimulatedAnalyzer(seed int64) *SimulatedAnalyzer {
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return &SimulatedAnalyzer{rng: rand.New(rand.NewSource(seed))}
}

func (a *SimulatedAnalyzer) Analyze(ctx context.Context, in AnalysisInput) (*Features, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	weight := 0.80
	if in.IsImprovisationHint {
		weight = 0.95
	}
	isPiano := a.rng.Float64() < weight

	feats := &Features{IsPiano: isPiano}
	if isPiano {
		feats.Key = "C Major"
		feats.Tempo = 76
		feats.Mood = model.MoodSerene
	} else {
		feats.Key = "A Minor"
		feats.Tempo = 124
		feats.Mood = model.MoodEnergetic
	}

	list := model.GeneralGenres
	if isPiano {
		list = model.PianoGenres
	}
	feats.PrimaryGenre = a.pickPrimary(isPiano, feats.Mood, feats.Tempo, list)
	feats.SecondaryGenre = a.pickSecondary(list, feats.PrimaryGenre)

	return feats, nil
}

func (a *SimulatedAnalyzer) pickPrimary(isPiano bool, mood string, tempo int, list []string) string {
	bucket := bucketTempo(tempo)
	for _, r := range genreRules {
		if r.isPiano == isPiano && r.mood == mood && r.bucket == bucket {
			return r.primary
		}
	}
	return list[a.rng.Intn(len(list))]
}

// pickSecondary draws uniformly from the list excluding the primary. Only a
// single-member list may yield secondary == primary.
func (a *SimulatedAnalyzer) pickSecondary(list []string, primary string) string {
	if len(list) == 1 {
		return list[0]
	}
	remaining := make([]string, 0, len(list))
	for _, g := range list {
		if g != primary {
			remaining = append(remaining, g)
		}
	}
	if len(remaining) == 0 {
		return primary
	}
	return remaining[a.rng.Intn(len(remaining))]
}
