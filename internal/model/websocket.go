package model

// WebSocket message types pushed to clients subscribed to a work.
type WSMessageType string

const (
	WSMessageTypeStage    WSMessageType = "stage"
	WSMessageTypeComplete WSMessageType = "complete"
	WSMessageTypeError    WSMessageType = "error"
)

// WSStageMessage announces a stage status change for a work.
type WSStageMessage struct {
	Type   WSMessageType `json:"type"`
	WorkID string        `json:"workId"`
	Stage  Stage         `json:"stage"`
	Status JobStatus     `json:"status"`
}

// WSCompleteMessage carries the refreshed work snapshot after a stage write.
type WSCompleteMessage struct {
	Type   WSMessageType `json:"type"`
	WorkID string        `json:"workId"`
	Stage  Stage         `json:"stage"`
	Result interface{}   `json:"result,omitempty"`
}

// WSErrorMessage reports a stage failure.
type WSErrorMessage struct {
	Type   WSMessageType `json:"type"`
	WorkID string        `json:"workId"`
	Error  WSError       `json:"error"`
}

type WSError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}
