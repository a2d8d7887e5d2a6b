package model

// CaptureWorkRequest creates a work with no audio attached yet.
type CaptureWorkRequest struct {
	Title           string `json:"title" validate:"omitempty,max=200"`
	IsImprovisation *bool  `json:"isImprovisation"`
}

// UpdateWorkRequest carries a partial field-set edit. Only non-nil fields
// are applied; concurrent stage writes touch disjoint field-sets, so
// last-write-wins per field-set is acceptable here.
type UpdateWorkRequest struct {
	GeneratedName   *string   `json:"generatedName" validate:"omitempty,max=200"`
	IsImprovisation *bool     `json:"isImprovisation"`
	PrimaryGenre    *string   `json:"primaryGenre"`
	SecondaryGenre  *string   `json:"secondaryGenre"`
	ArtworkPrompt   *string   `json:"artworkPrompt"`
	Notes           *[]Note   `json:"notes" validate:"omitempty,len=4"`
	UserTags        *[]string `json:"userTags"`

	IsPiano           *bool `json:"isPiano"`
	IsInstrumental    *bool `json:"isInstrumental"`
	IsOriginalSong    *bool `json:"isOriginalSong"`
	HasExplicitLyrics *bool `json:"hasExplicitLyrics"`

	ContentType   *string   `json:"contentType"`
	Language      *string   `json:"language"`
	PrimaryUse    *string   `json:"primaryUse"`
	AudienceLevel *string   `json:"audienceLevel"`
	AudienceAges  *[]string `json:"audienceAges"`
	Voice         *string   `json:"voice"`
	Benefits      *[]string `json:"benefits"`
	Practice      *string   `json:"practice"`
	Themes        *[]string `json:"themes"`
	Description   *string   `json:"description"`

	IsMetadataConfirmed       *bool `json:"isMetadataConfirmed"`
	IsReadyForRelease         *bool `json:"isReadyForRelease"`
	IsSubmittedToDistroKid    *bool `json:"isSubmittedToDistroKid"`
	IsSubmittedToInsightTimer *bool `json:"isSubmittedToInsightTimer"`
}

// AnalysisResponse acknowledges an analysis dispatch.
type AnalysisResponse struct {
	Success       bool   `json:"success"`
	JobID         string `json:"jobId"`
	GeneratedName string `json:"generatedName,omitempty"`
}

// ArtworkPromptResponse is the artwork stage output.
type ArtworkPromptResponse struct {
	Success       bool   `json:"success"`
	ArtworkPrompt string `json:"artworkPrompt"`
}

// AugmentUpdates is the categorization slice of the augmentation output.
type AugmentUpdates struct {
	Benefits []string `json:"benefits"`
	Practice string   `json:"practice"`
	Themes   []string `json:"themes"`
}

// AugmentResponse is the distribution-augmentation stage output.
type AugmentResponse struct {
	Success     bool            `json:"success"`
	Description string          `json:"description"`
	Updates     *AugmentUpdates `json:"updates,omitempty"`
}

// TitleResponse is the manual title-regeneration output.
type TitleResponse struct {
	Title string `json:"title"`
}
