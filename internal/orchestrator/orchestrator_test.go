package orchestrator

import (
	"context"
	"sync"
	"time"

	"server/internal/domain"
	video "server/internal/providers/video"
)

// memJobRepo is an in-memory domain.VideoJobRepository that mirrors the SQL
// implementation's conditional transition semantics.
type memJobRepo struct {
	mu   sync.Mutex
	jobs map[string]*domain.VideoJob
}

func newMemJobRepo() *memJobRepo {
	return &memJobRepo{jobs: make(map[string]*domain.VideoJob)}
}

func (m *memJobRepo) Create(ctx context.Context, job *domain.VideoJob) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	clone := *job
	now := time.Now()
	if clone.CreatedAt.IsZero() {
		clone.CreatedAt = now
	}
	clone.UpdatedAt = now
	m.jobs[clone.ID] = &clone
	return nil
}

func (m *memJobRepo) GetByID(ctx context.Context, id string) (*domain.VideoJob, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	job, ok := m.jobs[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	clone := *job
	return &clone, nil
}

func (m *memJobRepo) ListCompletedByCampaign(ctx context.Context, campaignID string, page, perPage int) ([]domain.VideoJob, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.VideoJob
	for _, job := range m.jobs {
		if job.CampaignID == campaignID && job.Status == domain.JobStatusCompleted {
			out = append(out, *job)
		}
	}
	return out, len(out), nil
}

func (m *memJobRepo) ListInFlight(ctx context.Context, limit int) ([]domain.VideoJob, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.VideoJob
	for _, job := range m.jobs {
		if !job.Status.IsTerminal() {
			out = append(out, *job)
		}
		if len(out) >= limit {
			break
		}
	}
	return out, nil
}

func (m *memJobRepo) CountByRequesterSince(ctx context.Context, requesterID string, since time.Time) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	count := 0
	for _, job := range m.jobs {
		if job.RequesterID == requesterID && !job.CreatedAt.Before(since) {
			count++
		}
	}
	return count, nil
}

func (m *memJobRepo) MarkProcessing(ctx context.Context, id string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	job, ok := m.jobs[id]
	if !ok || job.Status != domain.JobStatusSubmitted {
		return false, nil
	}
	job.Status = domain.JobStatusProcessing
	job.UpdatedAt = time.Now()
	return true, nil
}

func (m *memJobRepo) MarkCompleted(ctx context.Context, id string, videoURL string, costCents int64) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	job, ok := m.jobs[id]
	if !ok || job.Status.IsTerminal() {
		return false, nil
	}
	now := time.Now()
	job.Status = domain.JobStatusCompleted
	job.VideoURL = videoURL
	job.CostCents = costCents
	job.UpdatedAt = now
	job.CompletedAt = &now
	return true, nil
}

func (m *memJobRepo) MarkFailed(ctx context.Context, id string, code domain.ErrorCode, message string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	job, ok := m.jobs[id]
	if !ok || job.Status.IsTerminal() {
		return false, nil
	}
	now := time.Now()
	job.Status = domain.JobStatusFailed
	job.ErrorCode = code
	job.ErrorMessage = message
	job.UpdatedAt = now
	job.CompletedAt = &now
	return true, nil
}

func (m *memJobRepo) MarkTimedOut(ctx context.Context, id string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	job, ok := m.jobs[id]
	if !ok || job.Status.IsTerminal() {
		return false, nil
	}
	now := time.Now()
	job.Status = domain.JobStatusTimedOut
	job.UpdatedAt = now
	job.CompletedAt = &now
	return true, nil
}

func (m *memJobRepo) Touch(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if job, ok := m.jobs[id]; ok && !job.Status.IsTerminal() {
		job.UpdatedAt = time.Now()
	}
	return nil
}

func (m *memJobRepo) SetStorageKey(ctx context.Context, id, storageKey string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if job, ok := m.jobs[id]; ok && job.Status == domain.JobStatusCompleted {
		job.StorageKey = storageKey
	}
	return nil
}

var _ domain.VideoJobRepository = (*memJobRepo)(nil)

// fakeAdapter scripts submit and poll behavior for one adapter key.
type fakeAdapter struct {
	key video.Key

	submitHandle video.RemoteHandle
	submitErr    error
	taskTypeErr  error

	mu          sync.Mutex
	pollResults []pollResult
	pollCalls   int
}

type pollResult struct {
	status video.RemoteStatus
	err    error
}

func (f *fakeAdapter) Key() video.Key { return f.key }

func (f *fakeAdapter) BuildTaskType(mode domain.GenerationMode, variant string) (string, error) {
	if f.taskTypeErr != nil {
		return "", f.taskTypeErr
	}
	return "task-" + string(mode), nil
}

func (f *fakeAdapter) Submit(ctx context.Context, req video.SubmitRequest, taskType string) (video.RemoteHandle, error) {
	if f.submitErr != nil {
		return video.RemoteHandle{}, f.submitErr
	}
	if f.submitHandle.TaskID == "" {
		return video.RemoteHandle{TaskID: "remote-1"}, nil
	}
	return f.submitHandle, nil
}

// Poll replays the scripted results in order, repeating the last one once
// the script is exhausted.
func (f *fakeAdapter) Poll(ctx context.Context, handle video.RemoteHandle) (video.RemoteStatus, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	idx := f.pollCalls
	f.pollCalls++
	if idx >= len(f.pollResults) {
		idx = len(f.pollResults) - 1
	}
	if idx < 0 {
		return video.RemoteStatus{State: video.StatePending}, nil
	}
	res := f.pollResults[idx]
	return res.status, res.err
}

func (f *fakeAdapter) polls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.pollCalls
}

var _ video.Adapter = (*fakeAdapter)(nil)
