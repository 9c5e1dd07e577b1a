package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"server/internal/domain"
	"server/internal/errclass"
	"server/internal/middleware"
	video "server/internal/providers/video"
)

type videoGenerateRequest struct {
	CampaignID       string `json:"campaign_id"`
	GenerationMode   string `json:"generation_mode"`
	Prompt           string `json:"prompt"`
	Style            string `json:"style"`
	Duration         int    `json:"duration"`
	AspectRatio      string `json:"aspect_ratio"`
	SourceImageURL   string `json:"source_image_url"`
	ProviderOverride string `json:"provider_override"`
}

type videoJobResponse struct {
	JobID  string `json:"job_id"`
	Status string `json:"status"`
}

// VideosGenerate admits, selects a provider, submits, and answers 202 with
// the new job id. Every failure before persistence maps to a synchronous
// error response; no job row exists for a denied request.
func (a *App) VideosGenerate(w http.ResponseWriter, r *http.Request) {
	userID := middleware.UserIDFromContext(r.Context())
	if userID == "" {
		a.error(w, http.StatusUnauthorized, "unauthorized", "missing user context")
		return
	}
	userTier := domain.Tier(middleware.UserTierFromContext(r.Context()))
	if userTier == "" {
		userTier = domain.TierStarter
	}

	var req videoGenerateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", "invalid payload")
		return
	}
	if req.CampaignID == "" || req.Prompt == "" || req.Duration <= 0 {
		a.error(w, http.StatusBadRequest, "bad_request", "campaign_id, prompt and duration are required")
		return
	}
	mode := domain.GenerationMode(req.GenerationMode)
	if mode == "" {
		mode = domain.ModeTextToVideo
	}
	if mode != domain.ModeTextToVideo && mode != domain.ModeImageToVideo {
		a.error(w, http.StatusBadRequest, "bad_request", "unsupported generation_mode")
		return
	}
	if mode == domain.ModeImageToVideo && req.SourceImageURL == "" {
		a.error(w, http.StatusBadRequest, "bad_request", "source_image_url is required for image_to_video")
		return
	}

	job, err := a.Orchestrator.Submit(r.Context(), userTier, domain.GenerationRequest{
		CampaignID:       req.CampaignID,
		RequesterID:      userID,
		Mode:             mode,
		DurationSeconds:  req.Duration,
		AspectRatio:      req.AspectRatio,
		Style:            req.Style,
		Prompt:           req.Prompt,
		SourceImageURL:   req.SourceImageURL,
		ProviderOverride: req.ProviderOverride,
	})
	if err != nil {
		a.submitError(w, err)
		return
	}
	a.json(w, http.StatusAccepted, videoJobResponse{JobID: job.ID, Status: string(job.Status)})
}

func (a *App) submitError(w http.ResponseWriter, err error) {
	var submission *video.SubmissionError
	switch {
	case errors.Is(err, domain.ErrDurationExceedsTier):
		a.error(w, http.StatusBadRequest, "duration_exceeds_tier", "requested duration exceeds the subscription tier limit")
	case errors.Is(err, domain.ErrProviderNotAllowed):
		a.error(w, http.StatusBadRequest, "provider_not_allowed", "the requested provider is not available on this tier")
	case errors.Is(err, domain.ErrQuotaExhausted):
		a.error(w, http.StatusForbidden, "quota_exhausted", "monthly generation quota exhausted")
	case errors.Is(err, domain.ErrUnknownTier):
		a.error(w, http.StatusBadRequest, "unknown_tier", "unrecognized subscription tier")
	case errors.Is(err, domain.ErrNoEligibleProvider):
		a.error(w, http.StatusUnprocessableEntity, "no_eligible_provider", "no provider can serve this request on this tier")
	case errors.Is(err, domain.ErrUnsupportedCombination):
		a.error(w, http.StatusBadRequest, "unsupported_combination", "the chosen model cannot run this generation mode")
	case errors.As(err, &submission):
		a.error(w, http.StatusBadGateway, "provider_submission_error", "the provider rejected the generation request")
	case errors.Is(err, video.ErrMissingAPIKey):
		a.error(w, http.StatusBadGateway, "provider_unconfigured", "the selected provider is not configured")
	default:
		a.Logger.Error().Err(err).Msg("handlers: video generate failed")
		a.error(w, http.StatusInternalServerError, "internal", "failed to submit video generation")
	}
}

// VideoStatus returns the job snapshot. Failed jobs carry a localized human
// message for the dashboard; raw provider payloads stay internal.
func (a *App) VideoStatus(w http.ResponseWriter, r *http.Request) {
	userID := middleware.UserIDFromContext(r.Context())
	if userID == "" {
		a.error(w, http.StatusUnauthorized, "unauthorized", "missing user context")
		return
	}
	jobID := chi.URLParam(r, "job_id")
	if jobID == "" {
		a.error(w, http.StatusBadRequest, "bad_request", "job_id required")
		return
	}
	job, err := a.Orchestrator.Job(r.Context(), jobID, userID)
	if err != nil {
		a.error(w, http.StatusNotFound, "not_found", "job not found")
		return
	}
	a.json(w, http.StatusOK, a.jobPayload(job, middleware.LocaleFromContext(r.Context())))
}

// VideoLibrary lists a campaign's completed jobs, paginated.
func (a *App) VideoLibrary(w http.ResponseWriter, r *http.Request) {
	userID := middleware.UserIDFromContext(r.Context())
	if userID == "" {
		a.error(w, http.StatusUnauthorized, "unauthorized", "missing user context")
		return
	}
	campaignID := r.URL.Query().Get("campaign_id")
	if campaignID == "" {
		a.error(w, http.StatusBadRequest, "bad_request", "campaign_id required")
		return
	}
	page := queryInt(r, "page", 1)
	perPage := queryInt(r, "per_page", 20)

	jobs, total, err := a.Orchestrator.Library(r.Context(), campaignID, page, perPage)
	if err != nil {
		a.error(w, http.StatusInternalServerError, "internal", "failed to fetch video library")
		return
	}
	locale := middleware.LocaleFromContext(r.Context())
	items := make([]map[string]any, 0, len(jobs))
	for i := range jobs {
		items = append(items, a.jobPayload(&jobs[i], locale))
	}
	a.json(w, http.StatusOK, map[string]any{
		"items":    items,
		"total":    total,
		"page":     page,
		"per_page": perPage,
	})
}

func (a *App) jobPayload(job *domain.VideoJob, locale string) map[string]any {
	payload := map[string]any{
		"id":                 job.ID,
		"campaign_id":        job.CampaignID,
		"generation_mode":    job.Mode,
		"requested_duration": job.DurationSeconds,
		"aspect_ratio":       job.AspectRatio,
		"style":              job.Style,
		"provider":           job.Provider,
		"model_variant":      job.ModelVariant,
		"task_type":          job.TaskType,
		"status":             job.Status,
		"created_at":         job.CreatedAt,
		"updated_at":         job.UpdatedAt,
	}
	if job.CompletedAt != nil {
		payload["completed_at"] = job.CompletedAt.UTC().Format(time.RFC3339)
	}
	switch job.Status {
	case domain.JobStatusCompleted:
		payload["video_url"] = job.VideoURL
		payload["cost_cents"] = job.CostCents
		if job.StorageKey != "" {
			payload["storage_key"] = job.StorageKey
		}
	case domain.JobStatusFailed:
		payload["error_code"] = job.ErrorCode
		payload["error_message"] = errclass.Message(job.ErrorCode, locale)
	}
	return payload
}

func queryInt(r *http.Request, key string, fallback int) int {
	if v := r.URL.Query().Get(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil && i > 0 {
			return i
		}
	}
	return fallback
}
