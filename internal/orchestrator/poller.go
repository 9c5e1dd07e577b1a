package orchestrator

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"server/internal/domain"
	"server/internal/errclass"
	video "server/internal/providers/video"
	"server/internal/storage"
	"server/internal/tier"
)

// PollerOptions tunes the background status loop.
type PollerOptions struct {
	// Interval between scheduling passes over the in-flight job set.
	Interval time.Duration
	// Concurrency caps parallel poll calls per pass.
	Concurrency int
	// CallTimeout bounds a single provider poll call.
	CallTimeout time.Duration
	// PollBudget is the absolute wall-clock allowance per job, measured from
	// its creation. Exceeding it forces timed_out regardless of what the
	// provider would eventually report.
	PollBudget time.Duration
	// TransportRetries is how many consecutive network failures a job
	// tolerates before they are treated as a provider internal error.
	TransportRetries int
	// BatchSize caps how many in-flight jobs one pass loads.
	BatchSize int
}

func (o *PollerOptions) applyDefaults() {
	if o.Interval <= 0 {
		o.Interval = 5 * time.Second
	}
	if o.Concurrency <= 0 {
		o.Concurrency = 8
	}
	if o.CallTimeout <= 0 {
		o.CallTimeout = 20 * time.Second
	}
	if o.PollBudget <= 0 {
		o.PollBudget = 10 * time.Minute
	}
	if o.TransportRetries <= 0 {
		o.TransportRetries = 3
	}
	if o.BatchSize <= 0 {
		o.BatchSize = 100
	}
}

// Poller owns the in-flight job set. It is the only component that mutates a
// job after creation; once it commits a terminal state it never touches the
// job again. A per-job lease keeps concurrent passes from polling the same
// job twice, which matters because providers can answer out of order.
type Poller struct {
	repo     domain.VideoJobRepository
	registry *video.Registry
	policy   *tier.Policy
	logger   zerolog.Logger
	opts     PollerOptions

	// Optional local mirror for finished videos.
	store      *storage.FileStore
	httpClient *http.Client

	mu       sync.Mutex
	leases   map[string]struct{}
	failures map[string]int

	now func() time.Time
}

func NewPoller(repo domain.VideoJobRepository, registry *video.Registry, policy *tier.Policy, logger zerolog.Logger, opts PollerOptions) *Poller {
	opts.applyDefaults()
	return &Poller{
		repo:       repo,
		registry:   registry,
		policy:     policy,
		logger:     logger,
		opts:       opts,
		httpClient: &http.Client{Timeout: 2 * time.Minute},
		leases:     make(map[string]struct{}),
		failures:   make(map[string]int),
		now:        time.Now,
	}
}

// WithMirror configures a local file store that receives a copy of each
// completed video.
func (p *Poller) WithMirror(store *storage.FileStore) *Poller {
	p.store = store
	return p
}

// Run drives the scheduling loop until the context is cancelled.
func (p *Poller) Run(ctx context.Context) error {
	p.logger.Info().
		Dur("interval", p.opts.Interval).
		Int("concurrency", p.opts.Concurrency).
		Msg("poller: started")

	ticker := time.NewTicker(p.opts.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := p.RunOnce(ctx); err != nil && ctx.Err() == nil {
				p.logger.Error().Err(err).Msg("poller: pass failed")
			}
		}
	}
}

// RunOnce performs a single scheduling pass: load in-flight jobs and poll
// each at most once, in parallel up to the concurrency ceiling.
func (p *Poller) RunOnce(ctx context.Context) error {
	jobs, err := p.repo.ListInFlight(ctx, p.opts.BatchSize)
	if err != nil {
		return fmt.Errorf("list in-flight jobs: %w", err)
	}
	if len(jobs) == 0 {
		return nil
	}

	var g errgroup.Group
	g.SetLimit(p.opts.Concurrency)
	for i := range jobs {
		job := jobs[i]
		if !p.acquire(job.ID) {
			continue
		}
		g.Go(func() error {
			defer p.release(job.ID)
			p.pollOne(ctx, &job)
			return nil
		})
	}
	return g.Wait()
}

func (p *Poller) acquire(jobID string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, held := p.leases[jobID]; held {
		return false
	}
	p.leases[jobID] = struct{}{}
	return true
}

func (p *Poller) release(jobID string) {
	p.mu.Lock()
	delete(p.leases, jobID)
	p.mu.Unlock()
}

func (p *Poller) pollOne(ctx context.Context, job *domain.VideoJob) {
	logger := p.logger.With().Str("job_id", job.ID).Str("provider", job.Provider).Logger()

	if p.now().Sub(job.CreatedAt) > p.opts.PollBudget {
		updated, err := p.repo.MarkTimedOut(ctx, job.ID)
		if err != nil {
			logger.Error().Err(err).Msg("poller: mark timed_out failed")
			return
		}
		if updated {
			logger.Warn().Dur("budget", p.opts.PollBudget).Msg("poller: job timed out")
			p.clearFailures(job.ID)
		}
		return
	}

	adapter, err := p.registry.Get(video.Key{Provider: job.Provider, Variant: job.ModelVariant})
	if err != nil {
		logger.Error().Err(err).Msg("poller: adapter missing")
		p.markFailed(ctx, job, domain.ErrCodeUnknownProvider, "provider is no longer configured")
		return
	}

	callCtx, cancel := context.WithTimeout(ctx, p.opts.CallTimeout)
	status, err := adapter.Poll(callCtx, video.RemoteHandle{TaskID: job.RemoteTaskID})
	cancel()
	if err != nil {
		p.handleTransportError(ctx, job, logger, err)
		return
	}
	p.clearFailures(job.ID)

	switch status.State {
	case video.StatePending:
		if err := p.repo.Touch(ctx, job.ID); err != nil {
			logger.Error().Err(err).Msg("poller: touch failed")
		}
	case video.StateProcessing:
		if job.Status == domain.JobStatusSubmitted {
			if _, err := p.repo.MarkProcessing(ctx, job.ID); err != nil {
				logger.Error().Err(err).Msg("poller: mark processing failed")
				return
			}
			logger.Info().Msg("poller: job processing")
			return
		}
		if err := p.repo.Touch(ctx, job.ID); err != nil {
			logger.Error().Err(err).Msg("poller: touch failed")
		}
	case video.StateDone:
		cost := status.CostHintCents
		if cost == 0 {
			cost = p.flatRateCost(job)
		}
		updated, err := p.repo.MarkCompleted(ctx, job.ID, status.VideoURL, cost)
		if err != nil {
			logger.Error().Err(err).Msg("poller: mark completed failed")
			return
		}
		if !updated {
			return
		}
		logger.Info().Int64("cost_cents", cost).Msg("poller: job completed")
		if p.store != nil && status.VideoURL != "" {
			p.mirrorVideo(ctx, job.ID, status.VideoURL, logger)
		}
	case video.StateError:
		code, detail := errclass.Classify(status.ErrorPayload)
		p.markFailed(ctx, job, code, detail)
		logger.Info().Str("error_code", string(code)).Msg("poller: job failed")
	}
}

// handleTransportError distinguishes network trouble from provider-reported
// failure: the former is retried a bounded number of times before the job is
// written off as a provider internal error.
func (p *Poller) handleTransportError(ctx context.Context, job *domain.VideoJob, logger zerolog.Logger, err error) {
	if ctx.Err() != nil {
		return
	}
	p.mu.Lock()
	p.failures[job.ID]++
	count := p.failures[job.ID]
	p.mu.Unlock()

	if count <= p.opts.TransportRetries {
		logger.Warn().Err(err).Int("attempt", count).Msg("poller: poll call failed, will retry")
		if touchErr := p.repo.Touch(ctx, job.ID); touchErr != nil {
			logger.Error().Err(touchErr).Msg("poller: touch failed")
		}
		return
	}
	logger.Error().Err(err).Int("attempts", count).Msg("poller: poll retries exhausted")
	p.markFailed(ctx, job, domain.ErrCodeProviderInternal, "provider unreachable after repeated poll attempts")
}

func (p *Poller) markFailed(ctx context.Context, job *domain.VideoJob, code domain.ErrorCode, message string) {
	updated, err := p.repo.MarkFailed(ctx, job.ID, code, message)
	if err != nil {
		p.logger.Error().Err(err).Str("job_id", job.ID).Msg("poller: mark failed failed")
		return
	}
	if updated {
		p.clearFailures(job.ID)
	}
}

func (p *Poller) clearFailures(jobID string) {
	p.mu.Lock()
	delete(p.failures, jobID)
	p.mu.Unlock()
}

func (p *Poller) flatRateCost(job *domain.VideoJob) int64 {
	limits, err := p.policy.Resolve(job.Tier)
	if err != nil {
		return 0
	}
	return limits.FlatRateCentsPerSecond * int64(job.DurationSeconds)
}

// mirrorVideo downloads the finished asset into the local store. Failures are
// logged and swallowed; the job is already completed and the provider URL
// remains usable.
func (p *Poller) mirrorVideo(ctx context.Context, jobID, videoURL string, logger zerolog.Logger) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, videoURL, nil)
	if err != nil {
		logger.Warn().Err(err).Msg("poller: mirror request failed")
		return
	}
	resp, err := p.httpClient.Do(req)
	if err != nil {
		logger.Warn().Err(err).Msg("poller: mirror download failed")
		return
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		logger.Warn().Int("status", resp.StatusCode).Msg("poller: mirror download rejected")
		return
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		logger.Warn().Err(err).Msg("poller: mirror read failed")
		return
	}
	key := fmt.Sprintf("generated/videos/%s/video.mp4", jobID)
	savedKey, err := p.store.Write(ctx, key, data)
	if err != nil {
		logger.Warn().Err(err).Msg("poller: mirror write failed")
		return
	}
	if err := p.repo.SetStorageKey(ctx, jobID, savedKey); err != nil {
		logger.Warn().Err(err).Msg("poller: record storage key failed")
	}
}
