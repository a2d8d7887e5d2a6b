package e2e

import (
	"bytes"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"testing"
)

// uploadFile posts a multipart file to the given path.
func uploadFile(t *testing.T, ta *testApp, path, filename, contentType string, data []byte) *http.Response {
	t.Helper()

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	partHeader := make(textproto.MIMEHeader)
	partHeader.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename=%q`, filename))
	partHeader.Set("Content-Type", contentType)
	part, err := writer.CreatePart(partHeader)
	if err != nil {
		t.Fatalf("failed to create form file: %v", err)
	}
	_, _ = part.Write(data)
	writer.Close()

	req, err := http.NewRequest(http.MethodPost, path, &buf)
	if err != nil {
		t.Fatalf("failed to create request: %v", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+generateToken(t, ta))

	resp, err := ta.app.Test(req, -1)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	return resp
}

func fakeWAV() []byte {
	data := make([]byte, 1024)
	copy(data, []byte("RIFF\x00\x00\x00\x00WAVEfmt "))
	return data
}

func getWork(t *testing.T, ta *testApp, id string) map[string]interface{} {
	t.Helper()
	resp, err := doAuthRequest(t, ta, http.MethodGet, "/api/works/"+id, "")
	if err != nil {
		t.Fatalf("get work: %v", err)
	}
	assertStatus(t, resp, http.StatusOK)
	return parseJSON(t, resp)
}

// TestAudioPipeline drives the full happy path: attach audio, run the
// analysis worker, and observe the chained artwork stage land a prompt.
func TestAudioPipeline(t *testing.T) {
	ta := setupApp(t)
	id := createWork(t, ta, `{"title":"pipeline test","isImprovisation":true}`)

	resp := uploadFile(t, ta, fmt.Sprintf("/api/works/%s/audio", id), "take.wav", "audio/wav", fakeWAV())
	assertStatus(t, resp, http.StatusAccepted)

	result := parseJSON(t, resp)
	work, ok := result["work"].(map[string]interface{})
	if !ok {
		t.Fatalf("no work in response: %v", result)
	}
	if work["status"] != "analyzing" {
		t.Fatalf("status %v, want analyzing", work["status"])
	}
	jobID, _ := result["jobId"].(string)
	if jobID == "" {
		t.Fatalf("no jobId in response: %v", result)
	}

	ta.processQueued(t)

	updated := getWork(t, ta, id)
	if updated["status"] != "completed" {
		t.Errorf("status %v, want completed", updated["status"])
	}
	name, _ := updated["generatedName"].(string)
	if name == "" {
		t.Error("generatedName not populated by analysis")
	}
	analysis, ok := updated["analysisData"].(map[string]interface{})
	if !ok || analysis["key"] == "" || analysis["mood"] == "" {
		t.Errorf("analysisData not populated: %v", updated["analysisData"])
	}
	if updated["primaryGenre"] == "" || updated["primaryGenre"] == nil {
		t.Errorf("primaryGenre not populated: %v", updated["primaryGenre"])
	}
	// The artwork stage is chained off a successful analysis.
	prompt, _ := updated["artworkPrompt"].(string)
	if prompt == "" {
		t.Error("artworkPrompt not populated by chained artwork stage")
	}

	// The dispatch ledger records the succeeded attempt.
	jobResp, err := doAuthRequest(t, ta, http.MethodGet, "/api/jobs/"+jobID, "")
	if err != nil {
		t.Fatalf("get job: %v", err)
	}
	assertStatus(t, jobResp, http.StatusOK)
	job := parseJSON(t, jobResp)
	if job["status"] != "succeeded" {
		t.Errorf("job status %v, want succeeded", job["status"])
	}
	if job["stage"] != "analysis" {
		t.Errorf("job stage %v, want analysis", job["stage"])
	}
}

func TestClearAudio_ResetsPipelineOutput(t *testing.T) {
	ta := setupApp(t)
	id := createWork(t, ta, `{"title":"clear test","isImprovisation":true}`)

	resp := uploadFile(t, ta, fmt.Sprintf("/api/works/%s/audio", id), "take.wav", "audio/wav", fakeWAV())
	assertStatus(t, resp, http.StatusAccepted)
	ta.processQueued(t)

	resp, err := doAuthRequest(t, ta, http.MethodDelete, fmt.Sprintf("/api/works/%s/audio", id), "")
	if err != nil {
		t.Fatalf("clear audio: %v", err)
	}
	assertStatus(t, resp, http.StatusOK)

	work := parseJSON(t, resp)
	if work["status"] != "uploaded" {
		t.Errorf("status %v, want uploaded", work["status"])
	}
	if work["generatedName"] != nil {
		t.Errorf("generatedName %v, want cleared", work["generatedName"])
	}
	if work["analysisData"] != nil {
		t.Errorf("analysisData %v, want cleared", work["analysisData"])
	}
	if work["audioUrl"] != nil && work["audioUrl"] != "" {
		t.Errorf("audioUrl %v, want cleared", work["audioUrl"])
	}
	// The improvisation choice survives the cascade.
	if work["isImprovisation"] != true {
		t.Errorf("isImprovisation %v, want preserved", work["isImprovisation"])
	}
}

func TestAttachAudio_RejectsWrongType(t *testing.T) {
	ta := setupApp(t)
	id := createWork(t, ta, `{"title":"type test"}`)

	resp := uploadFile(t, ta, fmt.Sprintf("/api/works/%s/audio", id), "notes.txt", "text/plain", []byte("hello"))
	assertStatus(t, resp, http.StatusBadRequest)
}

func TestAttachArtwork(t *testing.T) {
	ta := setupApp(t)
	id := createWork(t, ta, `{"title":"artwork test"}`)

	resp := uploadFile(t, ta, fmt.Sprintf("/api/works/%s/artwork", id), "cover.png", "image/png", []byte("\x89PNG\r\n"))
	assertStatus(t, resp, http.StatusCreated)

	work := parseJSON(t, resp)
	url, _ := work["artworkUrl"].(string)
	if url == "" {
		t.Errorf("artworkUrl not set: %v", work["artworkUrl"])
	}
}

func TestAnalyze_RequiresAudio(t *testing.T) {
	ta := setupApp(t)
	id := createWork(t, ta, `{"title":"no audio"}`)

	resp, err := doAuthRequest(t, ta, http.MethodPost, fmt.Sprintf("/api/works/%s/analyze", id), "")
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	assertStatus(t, resp, http.StatusBadRequest)
}

func TestAugment_MockFallback(t *testing.T) {
	ta := setupApp(t)
	id := createWork(t, ta, `{"title":"augment test"}`)

	resp, err := doAuthRequest(t, ta, http.MethodPost, fmt.Sprintf("/api/works/%s/augment", id), "")
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	assertStatus(t, resp, http.StatusOK)

	result := parseJSON(t, resp)
	if result["success"] != true {
		t.Errorf("success %v", result["success"])
	}
	desc, _ := result["description"].(string)
	if desc == "" {
		t.Error("description missing")
	}
	updates, ok := result["updates"].(map[string]interface{})
	if !ok {
		t.Fatalf("updates missing: %v", result)
	}
	benefits, _ := updates["benefits"].([]interface{})
	if len(benefits) == 0 || len(benefits) > 3 {
		t.Errorf("benefits %v, want between 1 and 3", updates["benefits"])
	}
	if updates["practice"] == "" {
		t.Error("practice missing")
	}
}

func TestArtworkPrompt_RequiresName(t *testing.T) {
	ta := setupApp(t)

	// A work created without a title has no name to prompt from.
	id := createWork(t, ta, `{}`)
	resp, err := doAuthRequest(t, ta, http.MethodPost, fmt.Sprintf("/api/works/%s/artwork-prompt", id), "")
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	assertStatus(t, resp, http.StatusBadRequest)
}

func TestArtworkPrompt_ManualRegeneration(t *testing.T) {
	ta := setupApp(t)
	id := createWork(t, ta, `{"title":"named piece"}`)

	resp, err := doAuthRequest(t, ta, http.MethodPost, fmt.Sprintf("/api/works/%s/artwork-prompt", id), "")
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	assertStatus(t, resp, http.StatusOK)

	result := parseJSON(t, resp)
	prompt, _ := result["artworkPrompt"].(string)
	if prompt == "" {
		t.Errorf("artworkPrompt missing: %v", result)
	}
}

// TestFullReleaseFlow walks capture → audio → analysis → augment → artwork
// upload → confirm → ready, checking progress and the gate along the way.
func TestFullReleaseFlow(t *testing.T) {
	ta := setupApp(t)
	id := createWork(t, ta, `{"title":"release flow","isImprovisation":false}`)

	resp := uploadFile(t, ta, fmt.Sprintf("/api/works/%s/audio", id), "take.wav", "audio/wav", fakeWAV())
	assertStatus(t, resp, http.StatusAccepted)
	ta.processQueued(t)

	// Creative notes.
	patch, err := doAuthRequest(t, ta, http.MethodPatch, "/api/works/"+id,
		`{"notes":[{"id":"structure","title":"Structure","content":"slow build"},{"id":"mood","title":"Mood","content":""},{"id":"technical","title":"Technical","content":""},{"id":"next-step","title":"Next Step","content":""}]}`)
	if err != nil {
		t.Fatalf("notes patch: %v", err)
	}
	assertStatus(t, patch, http.StatusOK)
	patch.Body.Close()

	// Distribution categorization via augmentation.
	aug, err := doAuthRequest(t, ta, http.MethodPost, fmt.Sprintf("/api/works/%s/augment", id), "")
	if err != nil {
		t.Fatalf("augment: %v", err)
	}
	assertStatus(t, aug, http.StatusOK)
	aug.Body.Close()

	progResp, err := doAuthRequest(t, ta, http.MethodGet, fmt.Sprintf("/api/works/%s/progress", id), "")
	if err != nil {
		t.Fatalf("progress: %v", err)
	}
	prog := parseJSON(t, progResp)
	progress := prog["progress"].(map[string]interface{})
	if progress["progressPercent"] != float64(90) {
		t.Errorf("percent %v, want 90 before mark-ready", progress["progressPercent"])
	}

	// Confirm, mark ready and upload artwork.
	patch, err = doAuthRequest(t, ta, http.MethodPatch, "/api/works/"+id,
		`{"isMetadataConfirmed":true,"isReadyForRelease":true}`)
	if err != nil {
		t.Fatalf("confirm patch: %v", err)
	}
	assertStatus(t, patch, http.StatusOK)
	patch.Body.Close()

	resp = uploadFile(t, ta, fmt.Sprintf("/api/works/%s/artwork", id), "cover.png", "image/png", []byte("\x89PNG"))
	assertStatus(t, resp, http.StatusCreated)
	resp.Body.Close()

	progResp, err = doAuthRequest(t, ta, http.MethodGet, fmt.Sprintf("/api/works/%s/progress", id), "")
	if err != nil {
		t.Fatalf("progress: %v", err)
	}
	prog = parseJSON(t, progResp)
	progress = prog["progress"].(map[string]interface{})
	if progress["progressPercent"] != float64(100) {
		t.Errorf("percent %v, want 100", progress["progressPercent"])
	}
	gate := prog["gate"].(map[string]interface{})
	if gate["ready"] != true || gate["blocked"] == true {
		t.Errorf("gate %v, want ready and unblocked", gate)
	}
}
