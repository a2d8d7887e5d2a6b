package progress

import "github.com/tracklight/api/internal/model"

// CheckState is the tri-state result of one pre-flight check.
type CheckState string

const (
	CheckPassed  CheckState = "passed"
	CheckPending CheckState = "pending"
	CheckFailed  CheckState = "failed"
)

type GateCheck struct {
	Name   string     `json:"name"`
	State  CheckState `json:"state"`
	Reason string     `json:"reason,omitempty"`
}

// GateResult is the enforced submission precondition. Independent of the
// readiness percentage: a work can sit at 100% with a blocked gate.
type GateResult struct {
	Ready           bool        `json:"ready"`
	Blocked         bool        `json:"blocked"`
	Checks          []GateCheck `json:"checks"`
	BlockingReasons []string    `json:"blockingReasons,omitempty"`
}

// Preflight evaluates the three submission checks. An artwork prompt is not
// sufficient for the artwork check; an uploaded image must exist.
func Preflight(w *model.Work) GateResult {
	checks := make([]GateCheck, 0, 3)

	audio := GateCheck{Name: "audio", State: CheckPassed}
	if !w.HasAudio() {
		audio.State = CheckFailed
		audio.Reason = "no audio attached"
	}
	checks = append(checks, audio)

	artwork := GateCheck{Name: "artwork", State: CheckPassed}
	if w.ArtworkURL == "" {
		artwork.State = CheckFailed
		artwork.Reason = "no artwork uploaded"
	}
	checks = append(checks, artwork)

	meta := GateCheck{Name: "metadata", State: CheckPassed}
	switch {
	case w.IsMetadataConfirmed:
	case w.CategorizationComplete():
		meta.State = CheckPending
		meta.Reason = "categorization complete, awaiting confirmation"
	default:
		meta.State = CheckFailed
		meta.Reason = "categorization incomplete"
	}
	checks = append(checks, meta)

	result := GateResult{Ready: true, Checks: checks}
	for _, c := range checks {
		if c.State != CheckPassed {
			result.Ready = false
		}
		if c.State == CheckFailed {
			result.Blocked = true
			result.BlockingReasons = append(result.BlockingReasons, c.Reason)
		}
	}
	return result
}
