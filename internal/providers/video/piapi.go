package video

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"server/internal/domain"
)

// ErrMissingAPIKey indicates that an adapter was configured without credentials.
var ErrMissingAPIKey = errors.New("video: api key is required")

const (
	piapiVariant13B = "wan-1.3b"
	piapiVariant14B = "wan-14b"

	piapiTaskTxt2Video13B = "txt2video-1.3b"
	piapiTaskTxt2Video14B = "txt2video-14b"
	piapiTaskImg2Video14B = "img2video-14b"
)

// PiAPIOptions configures the PiAPI Wan adapter.
type PiAPIOptions struct {
	APIKey         string
	BaseURL        string
	Variant        string
	HTTPClient     *http.Client
	RequestTimeout time.Duration
}

// PiAPIAdapter submits Wan-family tasks to PiAPI and polls their status.
type PiAPIAdapter struct {
	apiKey     string
	baseURL    string
	variant    string
	httpClient *http.Client
}

type piapiTaskRequest struct {
	Model    string         `json:"model"`
	TaskType string         `json:"task_type"`
	Input    piapiTaskInput `json:"input"`
}

type piapiTaskInput struct {
	Prompt      string `json:"prompt"`
	Duration    int    `json:"duration,omitempty"`
	AspectRatio string `json:"aspect_ratio,omitempty"`
	ImageURL    string `json:"image_url,omitempty"`
}

type piapiTaskResponse struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    struct {
		TaskID string `json:"task_id"`
		Status string `json:"status"`
		Output struct {
			VideoURL string `json:"video_url"`
		} `json:"output"`
		Error json.RawMessage `json:"error"`
		Meta  struct {
			BilledCents int64 `json:"billed_cents"`
		} `json:"meta"`
	} `json:"data"`
}

// NewPiAPIAdapter constructs the adapter with sane defaults.
func NewPiAPIAdapter(opts PiAPIOptions) *PiAPIAdapter {
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
		baseURL = "https://api.piapi.ai/api/v1"
	}
	variant := strings.TrimSpace(opts.Variant)
	if variant == "" {
		variant = piapiVariant13B
	}
	return &PiAPIAdapter{
		apiKey:     strings.TrimSpace(opts.APIKey),
		baseURL:    baseURL,
		variant:    variant,
		httpClient: httpClient,
	}
}

func (a *PiAPIAdapter) Key() Key {
	return Key{Provider: "piapi", Variant: a.variant}
}

// BuildTaskType maps the generation mode onto PiAPI's task vocabulary. The
// 1.3B Wan variant has no image-to-video task type; those requests are
// carried by the 14B task type instead, and the substituted value is what
// ends up recorded on the job.
func (a *PiAPIAdapter) BuildTaskType(mode domain.GenerationMode, variant string) (string, error) {
	switch mode {
	case domain.ModeTextToVideo:
		switch variant {
		case piapiVariant13B:
			return piapiTaskTxt2Video13B, nil
		case piapiVariant14B:
			return piapiTaskTxt2Video14B, nil
		}
	case domain.ModeImageToVideo:
		switch variant {
		case piapiVariant13B, piapiVariant14B:
			return piapiTaskImg2Video14B, nil
		}
	}
	return "", fmt.Errorf("piapi: mode %q with variant %q: %w", mode, variant, domain.ErrUnsupportedCombination)
}

func (a *PiAPIAdapter) Submit(ctx context.Context, req SubmitRequest, taskType string) (RemoteHandle, error) {
	if a.apiKey == "" {
		return RemoteHandle{}, ErrMissingAPIKey
	}
	payload := piapiTaskRequest{
		Model:    "Qubico/wan",
		TaskType: taskType,
		Input: piapiTaskInput{
			Prompt:      req.Prompt,
			Duration:    req.DurationSeconds,
			AspectRatio: req.AspectRatio,
			ImageURL:    req.SourceImageURL,
		},
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return RemoteHandle{}, fmt.Errorf("piapi: encode request: %w", err)
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, a.baseURL+"/task", bytes.NewReader(body))
	if err != nil {
		return RemoteHandle{}, fmt.Errorf("piapi: build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("X-API-Key", a.apiKey)

	resp, err := a.httpClient.Do(httpReq)
	if err != nil {
		return RemoteHandle{}, fmt.Errorf("piapi: http request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return RemoteHandle{}, fmt.Errorf("piapi: read response: %w", err)
	}
	if resp.StatusCode >= 300 {
		return RemoteHandle{}, &SubmissionError{Provider: "piapi", StatusCode: resp.StatusCode, Payload: raw}
	}

	var decoded piapiTaskResponse
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return RemoteHandle{}, &SubmissionError{Provider: "piapi", StatusCode: resp.StatusCode, Payload: raw}
	}
	if decoded.Data.TaskID == "" {
		return RemoteHandle{}, &SubmissionError{Provider: "piapi", StatusCode: resp.StatusCode, Payload: raw}
	}
	return RemoteHandle{TaskID: decoded.Data.TaskID}, nil
}

func (a *PiAPIAdapter) Poll(ctx context.Context, handle RemoteHandle) (RemoteStatus, error) {
	if a.apiKey == "" {
		return RemoteStatus{}, ErrMissingAPIKey
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, a.baseURL+"/task/"+handle.TaskID, nil)
	if err != nil {
		return RemoteStatus{}, fmt.Errorf("piapi: build request: %w", err)
	}
	httpReq.Header.Set("X-API-Key", a.apiKey)

	resp, err := a.httpClient.Do(httpReq)
	if err != nil {
		return RemoteStatus{}, fmt.Errorf("piapi: http request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return RemoteStatus{}, fmt.Errorf("piapi: read response: %w", err)
	}
	if resp.StatusCode >= 300 {
		return RemoteStatus{}, fmt.Errorf("piapi: status %d: %s", resp.StatusCode, strings.TrimSpace(string(raw)))
	}

	var decoded piapiTaskResponse
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return RemoteStatus{}, fmt.Errorf("piapi: decode response: %w", err)
	}

	switch strings.ToLower(decoded.Data.Status) {
	case "pending", "staged":
		return RemoteStatus{State: StatePending}, nil
	case "processing":
		return RemoteStatus{State: StateProcessing}, nil
	case "completed":
		return RemoteStatus{
			State:         StateDone,
			VideoURL:      decoded.Data.Output.VideoURL,
			CostHintCents: decoded.Data.Meta.BilledCents,
		}, nil
	case "failed":
		payload := []byte(decoded.Data.Error)
		if len(payload) == 0 {
			payload = raw
		}
		return RemoteStatus{State: StateError, ErrorPayload: payload}, nil
	default:
		return RemoteStatus{}, fmt.Errorf("piapi: unexpected task status %q", decoded.Data.Status)
	}
}

var _ Adapter = (*PiAPIAdapter)(nil)
