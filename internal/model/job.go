package model

import "time"

// Job records one dispatch attempt of a pipeline stage. Stages are
// fire-and-forget from the caller's point of view, so the job row is the
// only durable record of why a work stopped advancing.
type Job struct {
	ID          string     `json:"id"`
	WorkID      string     `json:"workId"`
	Stage       Stage      `json:"stage"`
	Status      JobStatus  `json:"status"`
	Error       *string    `json:"error,omitempty"`
	Payload     []byte     `json:"-"`
	CreatedAt   time.Time  `json:"createdAt"`
	StartedAt   *time.Time `json:"startedAt,omitempty"`
	CompletedAt *time.Time `json:"completedAt,omitempty"`
	RetryCount  int        `json:"retryCount"`
}

// AnalysisPayload is the input contract of the analysis stage.
type AnalysisPayload struct {
	WorkID              string `json:"workId"`
	StorageRef          string `json:"storageRef"`
	IsImprovisationHint bool   `json:"isImprovisationHint"`
}

// ArtworkPayload is the input contract of the artwork-prompt stage.
type ArtworkPayload struct {
	WorkID         string `json:"workId"`
	GeneratedName  string `json:"generatedName"`
	PrimaryGenre   string `json:"primaryGenre,omitempty"`
	SecondaryGenre string `json:"secondaryGenre,omitempty"`
	Mood           string `json:"mood,omitempty"`
}
