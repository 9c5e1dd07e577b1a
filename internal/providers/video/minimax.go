package video

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"server/internal/domain"
)

const minimaxVariantVideo01 = "video-01"

// MinimaxOptions configures the MiniMax video adapter.
type MinimaxOptions struct {
	APIKey         string
	BaseURL        string
	HTTPClient     *http.Client
	RequestTimeout time.Duration
}

// MinimaxAdapter drives MiniMax's video-01 model. It is the cheap short-clip
// provider; it only speaks text-to-video.
type MinimaxAdapter struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
}

type minimaxGenerationRequest struct {
	Model       string `json:"model"`
	Prompt      string `json:"prompt"`
	AspectRatio string `json:"aspect_ratio,omitempty"`
}

type minimaxGenerationResponse struct {
	TaskID   string `json:"task_id"`
	BaseResp struct {
		StatusCode int    `json:"status_code"`
		StatusMsg  string `json:"status_msg"`
	} `json:"base_resp"`
}

type minimaxQueryResponse struct {
	TaskID   string `json:"task_id"`
	Status   string `json:"status"`
	VideoURL string `json:"video_url"`
	BaseResp struct {
		StatusCode int    `json:"status_code"`
		StatusMsg  string `json:"status_msg"`
	} `json:"base_resp"`
}

// NewMinimaxAdapter constructs the adapter with sane defaults.
func NewMinimaxAdapter(opts MinimaxOptions) *MinimaxAdapter {
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
		baseURL = "https://api.minimax.io/v1"
	}
	return &MinimaxAdapter{
		apiKey:     strings.TrimSpace(opts.APIKey),
		baseURL:    baseURL,
		httpClient: httpClient,
	}
}

func (a *MinimaxAdapter) Key() Key {
	return Key{Provider: "minimax", Variant: minimaxVariantVideo01}
}

// BuildTaskType rejects image-to-video outright: video-01 has no task type
// for it, and submitting a text task with an image reference would silently
// ignore the image.
func (a *MinimaxAdapter) BuildTaskType(mode domain.GenerationMode, variant string) (string, error) {
	if variant != minimaxVariantVideo01 {
		return "", fmt.Errorf("minimax: variant %q: %w", variant, domain.ErrUnsupportedCombination)
	}
	if mode != domain.ModeTextToVideo {
		return "", fmt.Errorf("minimax: mode %q: %w", mode, domain.ErrUnsupportedCombination)
	}
	return "video_generation", nil
}

func (a *MinimaxAdapter) Submit(ctx context.Context, req SubmitRequest, taskType string) (RemoteHandle, error) {
	if a.apiKey == "" {
		return RemoteHandle{}, ErrMissingAPIKey
	}
	body, err := json.Marshal(minimaxGenerationRequest{
		Model:       minimaxVariantVideo01,
		Prompt:      req.Prompt,
		AspectRatio: req.AspectRatio,
	})
	if err != nil {
		return RemoteHandle{}, fmt.Errorf("minimax: encode request: %w", err)
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, a.baseURL+"/video_generation", bytes.NewReader(body))
	if err != nil {
		return RemoteHandle{}, fmt.Errorf("minimax: build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+a.apiKey)

	resp, err := a.httpClient.Do(httpReq)
	if err != nil {
		return RemoteHandle{}, fmt.Errorf("minimax: http request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return RemoteHandle{}, fmt.Errorf("minimax: read response: %w", err)
	}
	if resp.StatusCode >= 300 {
		return RemoteHandle{}, &SubmissionError{Provider: "minimax", StatusCode: resp.StatusCode, Payload: raw}
	}

	var decoded minimaxGenerationResponse
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return RemoteHandle{}, &SubmissionError{Provider: "minimax", StatusCode: resp.StatusCode, Payload: raw}
	}
	if decoded.BaseResp.StatusCode != 0 || decoded.TaskID == "" {
		return RemoteHandle{}, &SubmissionError{Provider: "minimax", StatusCode: resp.StatusCode, Payload: raw}
	}
	return RemoteHandle{TaskID: decoded.TaskID}, nil
}

func (a *MinimaxAdapter) Poll(ctx context.Context, handle RemoteHandle) (RemoteStatus, error) {
	if a.apiKey == "" {
		return RemoteStatus{}, ErrMissingAPIKey
	}
	endpoint := a.baseURL + "/query/video_generation?task_id=" + url.QueryEscape(handle.TaskID)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return RemoteStatus{}, fmt.Errorf("minimax: build request: %w", err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+a.apiKey)

	resp, err := a.httpClient.Do(httpReq)
	if err != nil {
		return RemoteStatus{}, fmt.Errorf("minimax: http request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return RemoteStatus{}, fmt.Errorf("minimax: read response: %w", err)
	}
	if resp.StatusCode >= 300 {
		return RemoteStatus{}, fmt.Errorf("minimax: status %d: %s", resp.StatusCode, strings.TrimSpace(string(raw)))
	}

	var decoded minimaxQueryResponse
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return RemoteStatus{}, fmt.Errorf("minimax: decode response: %w", err)
	}
	if decoded.BaseResp.StatusCode != 0 {
		return RemoteStatus{State: StateError, ErrorPayload: raw}, nil
	}

	switch strings.ToLower(decoded.Status) {
	case "queueing", "preparing":
		return RemoteStatus{State: StatePending}, nil
	case "processing":
		return RemoteStatus{State: StateProcessing}, nil
	case "success":
		return RemoteStatus{State: StateDone, VideoURL: decoded.VideoURL}, nil
	case "fail":
		return RemoteStatus{State: StateError, ErrorPayload: raw}, nil
	default:
		return RemoteStatus{}, fmt.Errorf("minimax: unexpected task status %q", decoded.Status)
	}
}

var _ Adapter = (*MinimaxAdapter)(nil)
