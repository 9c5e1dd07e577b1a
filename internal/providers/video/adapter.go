package video

import (
	"context"
	"fmt"

	"server/internal/domain"
)

// RemoteState normalizes the lifecycle vocabulary the providers report.
type RemoteState string

const (
	StatePending    RemoteState = "pending"
	StateProcessing RemoteState = "processing"
	StateDone       RemoteState = "done"
	StateError      RemoteState = "error"
)

// RemoteHandle identifies a submitted task on the provider side.
type RemoteHandle struct {
	TaskID string
}

// RemoteStatus is the result of a single poll call.
type RemoteStatus struct {
	State         RemoteState
	VideoURL      string
	CostHintCents int64
	ErrorPayload  []byte
}

// SubmitRequest is the provider-neutral submission shape. Prompt is the
// already-assembled provider prompt text, not the raw user input.
type SubmitRequest struct {
	Prompt          string
	DurationSeconds int
	AspectRatio     string
	SourceImageURL  string
	RequestID       string
}

// Adapter translates generic requests into one provider's wire protocol.
//
// BuildTaskType is a pure mapping over the provider's closed task vocabulary;
// combinations the provider cannot express fail with
// domain.ErrUnsupportedCombination before anything is submitted. Submit and
// Poll each perform exactly one bounded HTTP call; looping over Poll belongs
// to the status poller, never the adapter.
type Adapter interface {
	Key() Key
	BuildTaskType(mode domain.GenerationMode, variant string) (string, error)
	Submit(ctx context.Context, req SubmitRequest, taskType string) (RemoteHandle, error)
	Poll(ctx context.Context, handle RemoteHandle) (RemoteStatus, error)
}

// Key selects one adapter: provider name plus model variant.
type Key struct {
	Provider string
	Variant  string
}

func (k Key) String() string {
	return k.Provider + "/" + k.Variant
}

// SubmissionError wraps a failed submission with the raw provider payload so
// it can be classified upstream.
type SubmissionError struct {
	Provider   string
	StatusCode int
	Payload    []byte
}

func (e *SubmissionError) Error() string {
	return fmt.Sprintf("%s: submission rejected (status %d)", e.Provider, e.StatusCode)
}
