package repo

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"server/internal/domain"
)

// VideoJobRepositoryPG implements domain.VideoJobRepository.
//
// Terminal transitions are guarded in SQL with a status predicate, so a
// second writer racing on the same job sees zero rows affected instead of
// clobbering a terminal state.
type VideoJobRepositoryPG struct {
	pool *pgxpool.Pool
}

// NewVideoJobRepository creates a new job repository backed by PostgreSQL.
func NewVideoJobRepository(pool *pgxpool.Pool) *VideoJobRepositoryPG {
	return &VideoJobRepositoryPG{pool: pool}
}

const videoJobColumns = `
id, campaign_id, requester_id, tier, generation_mode, requested_duration,
aspect_ratio, style, prompt, source_image_url, provider, model_variant,
task_type, remote_task_id, status, error_code, error_message, cost_cents,
video_url, storage_key, created_at, updated_at, completed_at`

// Create inserts a new job record. The job arrives with remote_task_id
// already assigned; it is never written again after this insert.
func (r *VideoJobRepositoryPG) Create(ctx context.Context, job *domain.VideoJob) error {
	query := `
INSERT INTO video_jobs (
    id, campaign_id, requester_id, tier, generation_mode, requested_duration,
    aspect_ratio, style, prompt, source_image_url, provider, model_variant,
    task_type, remote_task_id, status
) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15);
`
	_, err := r.pool.Exec(ctx, query,
		job.ID,
		job.CampaignID,
		job.RequesterID,
		job.Tier,
		job.Mode,
		job.DurationSeconds,
		job.AspectRatio,
		job.Style,
		job.Prompt,
		job.SourceImageURL,
		job.Provider,
		job.ModelVariant,
		job.TaskType,
		job.RemoteTaskID,
		job.Status,
	)
	return err
}

// GetByID fetches a job by its identifier.
func (r *VideoJobRepositoryPG) GetByID(ctx context.Context, id string) (*domain.VideoJob, error) {
	query := `SELECT ` + videoJobColumns + ` FROM video_jobs WHERE id = $1;`
	row := r.pool.QueryRow(ctx, query, id)
	job, err := scanVideoJob(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return job, nil
}

// ListCompletedByCampaign returns a page of completed jobs for a campaign,
// newest first, plus the total completed count.
func (r *VideoJobRepositoryPG) ListCompletedByCampaign(ctx context.Context, campaignID string, page, perPage int) ([]domain.VideoJob, int, error) {
	if page < 1 {
		page = 1
	}
	if perPage < 1 || perPage > 100 {
		perPage = 20
	}
	query := `
SELECT ` + videoJobColumns + `
FROM video_jobs
WHERE campaign_id = $1 AND status = 'completed'
ORDER BY completed_at DESC
LIMIT $2 OFFSET $3;
`
	rows, err := r.pool.Query(ctx, query, campaignID, perPage, (page-1)*perPage)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var jobs []domain.VideoJob
	for rows.Next() {
		job, err := scanVideoJob(rows)
		if err != nil {
			return nil, 0, err
		}
		jobs = append(jobs, *job)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}

	var total int
	countQuery := `SELECT count(*) FROM video_jobs WHERE campaign_id = $1 AND status = 'completed';`
	if err := r.pool.QueryRow(ctx, countQuery, campaignID).Scan(&total); err != nil {
		return nil, 0, err
	}
	return jobs, total, nil
}

// ListInFlight returns jobs still awaiting a terminal state, oldest first.
func (r *VideoJobRepositoryPG) ListInFlight(ctx context.Context, limit int) ([]domain.VideoJob, error) {
	if limit <= 0 {
		limit = 100
	}
	query := `
SELECT ` + videoJobColumns + `
FROM video_jobs
WHERE status IN ('submitted', 'processing')
ORDER BY created_at ASC
LIMIT $1;
`
	rows, err := r.pool.Query(ctx, query, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var jobs []domain.VideoJob
	for rows.Next() {
		job, err := scanVideoJob(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, *job)
	}
	return jobs, rows.Err()
}

// CountByRequesterSince counts jobs a requester created at or after the
// given instant. Used for monthly quota admission.
func (r *VideoJobRepositoryPG) CountByRequesterSince(ctx context.Context, requesterID string, since time.Time) (int, error) {
	query := `SELECT count(*) FROM video_jobs WHERE requester_id = $1 AND created_at >= $2;`
	var count int
	err := r.pool.QueryRow(ctx, query, requesterID, since).Scan(&count)
	return count, err
}

// MarkProcessing promotes a submitted job on its first non-pending poll.
func (r *VideoJobRepositoryPG) MarkProcessing(ctx context.Context, id string) (bool, error) {
	query := `
UPDATE video_jobs
SET status = 'processing', updated_at = NOW()
WHERE id = $1 AND status = 'submitted';
`
	tag, err := r.pool.Exec(ctx, query, id)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

// MarkCompleted finalizes a successful job with its video URL and cost.
func (r *VideoJobRepositoryPG) MarkCompleted(ctx context.Context, id string, videoURL string, costCents int64) (bool, error) {
	query := `
UPDATE video_jobs
SET status = 'completed', video_url = $2, cost_cents = $3,
    updated_at = NOW(), completed_at = NOW()
WHERE id = $1 AND status IN ('submitted', 'processing');
`
	tag, err := r.pool.Exec(ctx, query, id, videoURL, costCents)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

// MarkFailed finalizes a provider-reported failure with its classified code.
func (r *VideoJobRepositoryPG) MarkFailed(ctx context.Context, id string, code domain.ErrorCode, message string) (bool, error) {
	query := `
UPDATE video_jobs
SET status = 'failed', error_code = $2, error_message = $3,
    updated_at = NOW(), completed_at = NOW()
WHERE id = $1 AND status IN ('submitted', 'processing');
`
	tag, err := r.pool.Exec(ctx, query, id, code, message)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

// MarkTimedOut finalizes a job whose poll budget ran out. Distinct from a
// provider-reported failure: no error code is recorded.
func (r *VideoJobRepositoryPG) MarkTimedOut(ctx context.Context, id string) (bool, error) {
	query := `
UPDATE video_jobs
SET status = 'timed_out', updated_at = NOW(), completed_at = NOW()
WHERE id = $1 AND status IN ('submitted', 'processing');
`
	tag, err := r.pool.Exec(ctx, query, id)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

// Touch bumps updated_at on a still-in-flight job.
func (r *VideoJobRepositoryPG) Touch(ctx context.Context, id string) error {
	query := `
UPDATE video_jobs
SET updated_at = NOW()
WHERE id = $1 AND status IN ('submitted', 'processing');
`
	_, err := r.pool.Exec(ctx, query, id)
	return err
}

// SetStorageKey records the local mirror key on a completed job.
func (r *VideoJobRepositoryPG) SetStorageKey(ctx context.Context, id, storageKey string) error {
	query := `
UPDATE video_jobs
SET storage_key = $2, updated_at = NOW()
WHERE id = $1 AND status = 'completed';
`
	_, err := r.pool.Exec(ctx, query, id, storageKey)
	return err
}

func scanVideoJob(row pgx.Row) (*domain.VideoJob, error) {
	var job domain.VideoJob
	var errorCode, errorMessage, videoURL, storageKey, sourceImage *string
	var costCents *int64
	if err := row.Scan(
		&job.ID,
		&job.CampaignID,
		&job.RequesterID,
		&job.Tier,
		&job.Mode,
		&job.DurationSeconds,
		&job.AspectRatio,
		&job.Style,
		&job.Prompt,
		&sourceImage,
		&job.Provider,
		&job.ModelVariant,
		&job.TaskType,
		&job.RemoteTaskID,
		&job.Status,
		&errorCode,
		&errorMessage,
		&costCents,
		&videoURL,
		&storageKey,
		&job.CreatedAt,
		&job.UpdatedAt,
		&job.CompletedAt,
	); err != nil {
		return nil, err
	}
	if sourceImage != nil {
		job.SourceImageURL = *sourceImage
	}
	if errorCode != nil {
		job.ErrorCode = domain.ErrorCode(*errorCode)
	}
	if errorMessage != nil {
		job.ErrorMessage = *errorMessage
	}
	if costCents != nil {
		job.CostCents = *costCents
	}
	if videoURL != nil {
		job.VideoURL = *videoURL
	}
	if storageKey != nil {
		job.StorageKey = *storageKey
	}
	return &job, nil
}

var _ domain.VideoJobRepository = (*VideoJobRepositoryPG)(nil)
