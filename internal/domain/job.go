package domain

import "time"

// GenerationMode enumerates supported video generation modes.
type GenerationMode string

const (
	ModeTextToVideo  GenerationMode = "text_to_video"
	ModeImageToVideo GenerationMode = "image_to_video"
)

// JobStatus enumerates the video job lifecycle states.
type JobStatus string

const (
	JobStatusSubmitted  JobStatus = "submitted"
	JobStatusProcessing JobStatus = "processing"
	JobStatusCompleted  JobStatus = "completed"
	JobStatusFailed     JobStatus = "failed"
	JobStatusTimedOut   JobStatus = "timed_out"
)

// IsTerminal reports whether the status is a stable sink.
func (s JobStatus) IsTerminal() bool {
	switch s {
	case JobStatusCompleted, JobStatusFailed, JobStatusTimedOut:
		return true
	}
	return false
}

// ErrorCode is the closed taxonomy recorded on failed jobs.
type ErrorCode string

const (
	ErrCodeInvalidTaskType       ErrorCode = "invalid_task_type"
	ErrCodeProviderQuotaExceeded ErrorCode = "provider_quota_exceeded"
	ErrCodeProviderRejected      ErrorCode = "provider_rejected_content"
	ErrCodeProviderInternal      ErrorCode = "provider_internal_error"
	ErrCodeUnknownProvider       ErrorCode = "unknown_provider_error"
)

// GenerationRequest is the inbound request shape. It is never persisted
// as-is; an admitted request is copied into the job record at submission.
type GenerationRequest struct {
	CampaignID       string
	RequesterID      string
	Mode             GenerationMode
	DurationSeconds  int
	AspectRatio      string
	Style            string
	Prompt           string
	SourceImageURL   string
	ProviderOverride string
}

// VideoJob tracks a single video-generation attempt through its lifecycle.
// RemoteTaskID is assigned once at submission and never reassigned. Exactly
// one of {VideoURL, CostCents} or {ErrorCode, ErrorMessage} is populated once
// the status is terminal; a timed-out job carries neither.
type VideoJob struct {
	ID              string
	CampaignID      string
	RequesterID     string
	Tier            Tier
	Mode            GenerationMode
	DurationSeconds int
	AspectRatio     string
	Style           string
	Prompt          string
	SourceImageURL  string
	Provider        string
	ModelVariant    string
	TaskType        string
	RemoteTaskID    string
	Status          JobStatus
	ErrorCode       ErrorCode
	ErrorMessage    string
	CostCents       int64
	VideoURL        string
	StorageKey      string
	CreatedAt       time.Time
	UpdatedAt       time.Time
	CompletedAt     *time.Time
}
