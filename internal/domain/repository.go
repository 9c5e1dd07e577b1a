package domain

import (
	"context"
	"time"
)

// VideoJobRepository defines persistence for video generation jobs.
//
// The Mark* methods are conditional: they only apply when the job is still in
// a non-terminal state and report whether the transition happened, so status
// monotonicity is enforced at the storage level rather than by caller
// discipline.
type VideoJobRepository interface {
	Create(ctx context.Context, job *VideoJob) error
	GetByID(ctx context.Context, id string) (*VideoJob, error)
	ListCompletedByCampaign(ctx context.Context, campaignID string, page, perPage int) ([]VideoJob, int, error)
	ListInFlight(ctx context.Context, limit int) ([]VideoJob, error)
	CountByRequesterSince(ctx context.Context, requesterID string, since time.Time) (int, error)

	MarkProcessing(ctx context.Context, id string) (bool, error)
	MarkCompleted(ctx context.Context, id string, videoURL string, costCents int64) (bool, error)
	MarkFailed(ctx context.Context, id string, code ErrorCode, message string) (bool, error)
	MarkTimedOut(ctx context.Context, id string) (bool, error)
	Touch(ctx context.Context, id string) error
	SetStorageKey(ctx context.Context, id, storageKey string) error
}
