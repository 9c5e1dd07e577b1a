package video

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"testing"

	"server/internal/domain"
)

func TestReplicateBuildTaskType(t *testing.T) {
	a := NewReplicateAdapter(ReplicateOptions{APIToken: "tok"})

	if got, err := a.BuildTaskType(domain.ModeTextToVideo, "wan-14b"); err != nil || got != "t2v-14b" {
		t.Fatalf("t2v: got %q, %v", got, err)
	}
	if got, err := a.BuildTaskType(domain.ModeImageToVideo, "wan-14b"); err != nil || got != "i2v-14b" {
		t.Fatalf("i2v: got %q, %v", got, err)
	}
	if _, err := a.BuildTaskType(domain.ModeTextToVideo, "wan-1.3b"); !errors.Is(err, domain.ErrUnsupportedCombination) {
		t.Fatalf("expected ErrUnsupportedCombination for foreign variant, got %v", err)
	}
}

func TestReplicateSubmit(t *testing.T) {
	transport := &captureTransport{
		respCode: http.StatusCreated,
		respBody: `{"id":"pred-1","status":"starting"}`,
	}
	a := NewReplicateAdapter(ReplicateOptions{
		APIToken:     "tok",
		ModelVersion: "abc123",
		HTTPClient:   clientWith(transport),
	})

	handle, err := a.Submit(context.Background(), SubmitRequest{
		Prompt:          "product rotating on a turntable",
		DurationSeconds: 90,
		AspectRatio:     "16:9",
		SourceImageURL:  "https://example.com/frame.png",
	}, "i2v-14b")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if handle.TaskID != "pred-1" {
		t.Fatalf("expected pred-1, got %q", handle.TaskID)
	}
	if got := transport.req.Header.Get("Authorization"); got != "Bearer tok" {
		t.Fatalf("unexpected auth header %q", got)
	}
	if got := transport.req.URL.String(); got != "https://api.replicate.com/v1/predictions" {
		t.Fatalf("unexpected url %q", got)
	}

	var sent replicatePredictionRequest
	if err := json.Unmarshal(transport.body, &sent); err != nil {
		t.Fatalf("decode sent body: %v", err)
	}
	if sent.Version != "abc123" {
		t.Fatalf("model version not forwarded: %q", sent.Version)
	}
	if sent.Input.Image != "https://example.com/frame.png" {
		t.Fatal("image input missing for i2v task")
	}
	if sent.Input.NumSeconds != 90 {
		t.Fatalf("duration not forwarded: %d", sent.Input.NumSeconds)
	}
}

func TestReplicateSubmitOmitsImageForTextTask(t *testing.T) {
	transport := &captureTransport{respBody: `{"id":"pred-2","status":"starting"}`}
	a := NewReplicateAdapter(ReplicateOptions{APIToken: "tok", HTTPClient: clientWith(transport)})

	if _, err := a.Submit(context.Background(), SubmitRequest{
		Prompt:         "p",
		SourceImageURL: "https://example.com/frame.png",
	}, "t2v-14b"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var sent replicatePredictionRequest
	if err := json.Unmarshal(transport.body, &sent); err != nil {
		t.Fatalf("decode sent body: %v", err)
	}
	if sent.Input.Image != "" {
		t.Fatal("text task must not carry an image input")
	}
}

func TestReplicatePoll(t *testing.T) {
	cases := []struct {
		name      string
		respBody  string
		wantState RemoteState
		wantURL   string
	}{
		{name: "starting", respBody: `{"id":"p","status":"starting"}`, wantState: StatePending},
		{name: "processing", respBody: `{"id":"p","status":"processing"}`, wantState: StateProcessing},
		{
			name:      "succeeded with string output",
			respBody:  `{"id":"p","status":"succeeded","output":"https://cdn/v.mp4"}`,
			wantState: StateDone,
			wantURL:   "https://cdn/v.mp4",
		},
		{
			name:      "succeeded with list output",
			respBody:  `{"id":"p","status":"succeeded","output":["https://cdn/a.mp4","https://cdn/b.mp4"]}`,
			wantState: StateDone,
			wantURL:   "https://cdn/a.mp4",
		},
		{name: "failed", respBody: `{"id":"p","status":"failed","error":"NSFW content detected"}`, wantState: StateError},
		{name: "canceled maps to error", respBody: `{"id":"p","status":"canceled"}`, wantState: StateError},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			transport := &captureTransport{respBody: tc.respBody}
			a := NewReplicateAdapter(ReplicateOptions{APIToken: "tok", HTTPClient: clientWith(transport)})

			status, err := a.Poll(context.Background(), RemoteHandle{TaskID: "p"})
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if status.State != tc.wantState {
				t.Fatalf("expected %s, got %s", tc.wantState, status.State)
			}
			if status.VideoURL != tc.wantURL {
				t.Fatalf("expected url %q, got %q", tc.wantURL, status.VideoURL)
			}
		})
	}
}

func TestFirstOutputURL(t *testing.T) {
	if got := firstOutputURL(nil); got != "" {
		t.Fatalf("empty output should yield empty url, got %q", got)
	}
	if got := firstOutputURL(json.RawMessage(`"https://cdn/v.mp4"`)); got != "https://cdn/v.mp4" {
		t.Fatalf("string shape: %q", got)
	}
	if got := firstOutputURL(json.RawMessage(`[]`)); got != "" {
		t.Fatalf("empty list should yield empty url, got %q", got)
	}
	if got := firstOutputURL(json.RawMessage(`{"unexpected":true}`)); got != "" {
		t.Fatalf("unknown shape should yield empty url, got %q", got)
	}
}
