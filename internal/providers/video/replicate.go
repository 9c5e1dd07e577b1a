package video

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"server/internal/domain"
)

const replicateVariant14B = "wan-14b"

// ReplicateOptions configures the Replicate predictions adapter.
type ReplicateOptions struct {
	APIToken       string
	BaseURL        string
	ModelVersion   string
	HTTPClient     *http.Client
	RequestTimeout time.Duration
}

// ReplicateAdapter runs the 14B Wan model through Replicate's predictions API.
type ReplicateAdapter struct {
	apiToken     string
	baseURL      string
	modelVersion string
	httpClient   *http.Client
}

type replicatePredictionRequest struct {
	Version string              `json:"version"`
	Input   replicateVideoInput `json:"input"`
}

type replicateVideoInput struct {
	Prompt      string `json:"prompt"`
	NumSeconds  int    `json:"num_seconds,omitempty"`
	AspectRatio string `json:"aspect_ratio,omitempty"`
	Image       string `json:"image,omitempty"`
}

type replicatePrediction struct {
	ID      string          `json:"id"`
	Status  string          `json:"status"`
	Output  json.RawMessage `json:"output"`
	Error   json.RawMessage `json:"error"`
	Metrics struct {
		PredictTime float64 `json:"predict_time"`
	} `json:"metrics"`
}

// NewReplicateAdapter constructs the adapter with sane defaults.
func NewReplicateAdapter(opts ReplicateOptions) *ReplicateAdapter {
	httpClient := opts.HTTPClient
	if httpClient == nil {
		timeout := opts.RequestTimeout
		if timeout <= 0 {
			timeout = 30 * time.Second
		}
		httpClient = &http.Client{Timeout: timeout}
	}
	baseURL := strings.TrimRight(opts.BaseURL, "/")
	if baseURL == "" {
		baseURL = "https://api.replicate.com/v1"
	}
	return &ReplicateAdapter{
		apiToken:     strings.TrimSpace(opts.APIToken),
		baseURL:      baseURL,
		modelVersion: strings.TrimSpace(opts.ModelVersion),
		httpClient:   httpClient,
	}
}

func (a *ReplicateAdapter) Key() Key {
	return Key{Provider: "replicate", Variant: replicateVariant14B}
}

// BuildTaskType maps onto the single hosted model version; both generation
// modes run through the same prediction endpoint, distinguished by input.
func (a *ReplicateAdapter) BuildTaskType(mode domain.GenerationMode, variant string) (string, error) {
	if variant != replicateVariant14B {
		return "", fmt.Errorf("replicate: variant %q: %w", variant, domain.ErrUnsupportedCombination)
	}
	switch mode {
	case domain.ModeTextToVideo:
		return "t2v-14b", nil
	case domain.ModeImageToVideo:
		return "i2v-14b", nil
	}
	return "", fmt.Errorf("replicate: mode %q: %w", mode, domain.ErrUnsupportedCombination)
}

func (a *ReplicateAdapter) Submit(ctx context.Context, req SubmitRequest, taskType string) (RemoteHandle, error) {
	if a.apiToken == "" {
		return RemoteHandle{}, ErrMissingAPIKey
	}
	input := replicateVideoInput{
		Prompt:      req.Prompt,
		NumSeconds:  req.DurationSeconds,
		AspectRatio: req.AspectRatio,
	}
	if taskType == "i2v-14b" {
		input.Image = req.SourceImageURL
	}
	body, err := json.Marshal(replicatePredictionRequest{Version: a.modelVersion, Input: input})
	if err != nil {
		return RemoteHandle{}, fmt.Errorf("replicate: encode request: %w", err)
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, a.baseURL+"/predictions", bytes.NewReader(body))
	if err != nil {
		return RemoteHandle{}, fmt.Errorf("replicate: build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+a.apiToken)

	resp, err := a.httpClient.Do(httpReq)
	if err != nil {
		return RemoteHandle{}, fmt.Errorf("replicate: http request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return RemoteHandle{}, fmt.Errorf("replicate: read response: %w", err)
	}
	if resp.StatusCode >= 300 {
		return RemoteHandle{}, &SubmissionError{Provider: "replicate", StatusCode: resp.StatusCode, Payload: raw}
	}

	var decoded replicatePrediction
	if err := json.Unmarshal(raw, &decoded); err != nil || decoded.ID == "" {
		return RemoteHandle{}, &SubmissionError{Provider: "replicate", StatusCode: resp.StatusCode, Payload: raw}
	}
	return RemoteHandle{TaskID: decoded.ID}, nil
}

func (a *ReplicateAdapter) Poll(ctx context.Context, handle RemoteHandle) (RemoteStatus, error) {
	if a.apiToken == "" {
		return RemoteStatus{}, ErrMissingAPIKey
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, a.baseURL+"/predictions/"+handle.TaskID, nil)
	if err != nil {
		return RemoteStatus{}, fmt.Errorf("replicate: build request: %w", err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+a.apiToken)

	resp, err := a.httpClient.Do(httpReq)
	if err != nil {
		return RemoteStatus{}, fmt.Errorf("replicate: http request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return RemoteStatus{}, fmt.Errorf("replicate: read response: %w", err)
	}
	if resp.StatusCode >= 300 {
		return RemoteStatus{}, fmt.Errorf("replicate: status %d: %s", resp.StatusCode, strings.TrimSpace(string(raw)))
	}

	var decoded replicatePrediction
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return RemoteStatus{}, fmt.Errorf("replicate: decode response: %w", err)
	}

	switch decoded.Status {
	case "starting":
		return RemoteStatus{State: StatePending}, nil
	case "processing":
		return RemoteStatus{State: StateProcessing}, nil
	case "succeeded":
		return RemoteStatus{State: StateDone, VideoURL: firstOutputURL(decoded.Output)}, nil
	case "failed", "canceled":
		payload := []byte(decoded.Error)
		if len(payload) == 0 {
			payload = raw
		}
		return RemoteStatus{State: StateError, ErrorPayload: payload}, nil
	default:
		return RemoteStatus{}, fmt.Errorf("replicate: unexpected prediction status %q", decoded.Status)
	}
}

// firstOutputURL tolerates both the bare-string and list output shapes the
// predictions API uses depending on the model.
func firstOutputURL(output json.RawMessage) string {
	if len(output) == 0 {
		return ""
	}
	var single string
	if err := json.Unmarshal(output, &single); err == nil {
		return single
	}
	var many []string
	if err := json.Unmarshal(output, &many); err == nil && len(many) > 0 {
		return many[0]
	}
	return ""
}

var _ Adapter = (*ReplicateAdapter)(nil)
