package orchestrator

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"server/internal/domain"
	video "server/internal/providers/video"
	"server/internal/tier"
)

// Service is the synchronous half of the orchestrator: admission, provider
// selection, and submission. Everything after a successful submission belongs
// to the Poller.
type Service struct {
	repo     domain.VideoJobRepository
	policy   *tier.Policy
	selector *Selector
	registry *video.Registry
	logger   zerolog.Logger
	now      func() time.Time
}

func NewService(repo domain.VideoJobRepository, policy *tier.Policy, selector *Selector, registry *video.Registry, logger zerolog.Logger) *Service {
	return &Service{
		repo:     repo,
		policy:   policy,
		selector: selector,
		registry: registry,
		logger:   logger,
		now:      time.Now,
	}
}

// Submit runs the full synchronous pipeline: admit, select, build the
// provider task type, submit to the provider, then persist the job as
// submitted. Admission and submission failures return before any job row
// exists, so a denied or failed request never leaves a phantom job behind.
func (s *Service) Submit(ctx context.Context, requestTier domain.Tier, req domain.GenerationRequest) (*domain.VideoJob, error) {
	monthStart := startOfMonth(s.now())
	used, err := s.repo.CountByRequesterSince(ctx, req.RequesterID, monthStart)
	if err != nil {
		return nil, fmt.Errorf("count monthly usage: %w", err)
	}
	if err := s.policy.Admit(requestTier, req, used); err != nil {
		return nil, err
	}
	limits, err := s.policy.Resolve(requestTier)
	if err != nil {
		return nil, err
	}

	key, err := s.selector.Select(limits, req)
	if err != nil {
		return nil, err
	}
	adapter, err := s.registry.Get(key)
	if err != nil {
		return nil, err
	}

	taskType, err := adapter.BuildTaskType(req.Mode, key.Variant)
	if err != nil {
		return nil, err
	}

	handle, err := adapter.Submit(ctx, video.SubmitRequest{
		Prompt:          video.AssemblePrompt(req.Prompt, req.Style),
		DurationSeconds: req.DurationSeconds,
		AspectRatio:     req.AspectRatio,
		SourceImageURL:  req.SourceImageURL,
		RequestID:       req.CampaignID,
	}, taskType)
	if err != nil {
		s.logger.Error().Err(err).
			Str("provider", key.Provider).
			Str("task_type", taskType).
			Msg("orchestrator: provider submission failed")
		return nil, err
	}

	job := &domain.VideoJob{
		ID:              uuid.NewString(),
		CampaignID:      req.CampaignID,
		RequesterID:     req.RequesterID,
		Tier:            requestTier,
		Mode:            req.Mode,
		DurationSeconds: req.DurationSeconds,
		AspectRatio:     req.AspectRatio,
		Style:           req.Style,
		Prompt:          req.Prompt,
		SourceImageURL:  req.SourceImageURL,
		Provider:        key.Provider,
		ModelVariant:    key.Variant,
		TaskType:        taskType,
		RemoteTaskID:    handle.TaskID,
		Status:          domain.JobStatusSubmitted,
	}
	if err := s.repo.Create(ctx, job); err != nil {
		return nil, fmt.Errorf("persist job: %w", err)
	}

	s.logger.Info().
		Str("job_id", job.ID).
		Str("provider", job.Provider).
		Str("task_type", job.TaskType).
		Str("remote_task_id", job.RemoteTaskID).
		Msg("orchestrator: job submitted")
	return job, nil
}

// Job returns a job snapshot, scoped to its requester.
func (s *Service) Job(ctx context.Context, jobID, requesterID string) (*domain.VideoJob, error) {
	job, err := s.repo.GetByID(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if job.RequesterID != requesterID {
		return nil, domain.ErrNotFound
	}
	return job, nil
}

// Library returns a page of completed jobs for a campaign.
func (s *Service) Library(ctx context.Context, campaignID string, page, perPage int) ([]domain.VideoJob, int, error) {
	return s.repo.ListCompletedByCampaign(ctx, campaignID, page, perPage)
}

func startOfMonth(t time.Time) time.Time {
	y, m, _ := t.UTC().Date()
	return time.Date(y, m, 1, 0, 0, 0, 0, time.UTC)
}
