package service

import (
	"context"
	"database/sql"
	"errors"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DPLnainar/placement-management-system-sub002/internal/dto"
	"github.com/DPLnainar/placement-management-system-sub002/internal/models"
	"github.com/DPLnainar/placement-management-system-sub002/internal/repository"
	appErrors "github.com/DPLnainar/placement-management-system-sub002/pkg/errors"
)

var fixedNow = time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

type jobStoreStub struct {
	mu         sync.Mutex
	jobs       map[string]*models.Job
	created    []*models.Job
	lastFilter models.JobFilter
	expired    int64
	err        error
}

func newJobStore(jobs ...*models.Job) *jobStoreStub {
	store := &jobStoreStub{jobs: map[string]*models.Job{}}
	for _, job := range jobs {
		store.jobs[job.ID] = job
	}
	return store
}

func (s *jobStoreStub) Create(ctx context.Context, job *models.Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	if job.ID == "" {
		job.ID = "job-new"
	}
	copied := *job
	s.jobs[job.ID] = &copied
	s.created = append(s.created, &copied)
	return nil
}

func (s *jobStoreStub) GetByID(ctx context.Context, id string) (*models.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	copied := *job
	return &copied, nil
}

func (s *jobStoreStub) List(ctx context.Context, filter models.JobFilter) ([]models.Job, int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastFilter = filter
	var out []models.Job
	for _, job := range s.jobs {
		if filter.CollegeID != "" && job.CollegeID != filter.CollegeID {
			continue
		}
		if len(filter.Status) > 0 && !containsJobStatus(filter.Status, job.Status) {
			continue
		}
		out = append(out, *job)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, len(out), nil
}

func (s *jobStoreStub) ListOpen(ctx context.Context, collegeID string) ([]models.Job, error) {
	jobs, _, err := s.List(ctx, models.JobFilter{CollegeID: collegeID, Status: []models.JobStatus{models.JobStatusActive}})
	return jobs, err
}

func (s *jobStoreStub) ListClosingBetween(ctx context.Context, collegeID string, from, until time.Time) ([]models.Job, error) {
	jobs, err := s.ListOpen(ctx, collegeID)
	if err != nil {
		return nil, err
	}
	var out []models.Job
	for _, job := range jobs {
		if !job.Deadline.Before(from) && !job.Deadline.After(until) {
			out = append(out, job)
		}
	}
	return out, nil
}

func (s *jobStoreStub) CloseExpired(ctx context.Context, scope repository.ExpiryScope, now time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var closed int64
	for _, job := range s.jobs {
		if scope.CollegeID != "" && job.CollegeID != scope.CollegeID {
			continue
		}
		if scope.JobID != "" && job.ID != scope.JobID {
			continue
		}
		if job.Status == models.JobStatusActive && job.Deadline.Before(now) {
			job.Status = models.JobStatusClosed
			job.ClosedReason = models.ClosedReasonDeadline
			closed++
		}
	}
	s.expired += closed
	return closed, nil
}

func (s *jobStoreStub) Mutate(ctx context.Context, id string, fn func(job *models.Job) error) (*models.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	copied := *job
	if err := fn(&copied); err != nil {
		if errors.Is(err, repository.ErrSkipWrite) {
			current := *job
			return &current, nil
		}
		return nil, err
	}
	s.jobs[id] = &copied
	result := copied
	return &result, nil
}

func containsJobStatus(list []models.JobStatus, status models.JobStatus) bool {
	for _, s := range list {
		if s == status {
			return true
		}
	}
	return false
}

type fanoutStub struct {
	mu  sync.Mutex
	ids []string
}

func (f *fanoutStub) Schedule(jobID string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ids = append(f.ids, jobID)
}

type auditTrailStub struct {
	mu   sync.Mutex
	logs []*models.AuditLog
}

func (a *auditTrailStub) CreateAuditLog(ctx context.Context, log *models.AuditLog) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.logs = append(a.logs, log)
	return nil
}

func (a *auditTrailStub) actions() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]string, len(a.logs))
	for i, log := range a.logs {
		out[i] = log.Action
	}
	return out
}

var (
	adminClaims   = &models.JWTClaims{UserID: "admin-1", Role: models.RoleAdmin, CollegeID: "college-1"}
	studentClaims = &models.JWTClaims{UserID: "user-1", Role: models.RoleStudent, CollegeID: "college-1", Department: "CSE"}
)

func storedJob(id string, status models.JobStatus, deadline time.Time) *models.Job {
	ctc := 1200000.0
	return &models.Job{
		ID:          id,
		CollegeID:   "college-1",
		Title:       "SDE",
		CompanyName: "Acme",
		CTC:         &ctc,
		Deadline:    deadline,
		Status:      status,
		IsActive:    true,
		Eligibility: models.EligibilityCriteria{Type: models.EligibilityCommon, AllowArrears: true},
	}
}

func newTestJobService(store *jobStoreStub, fanout *fanoutStub, audit *auditTrailStub) *JobService {
	svc := NewJobService(store, fanout, audit, nil, nil, nil, JobServiceConfig{})
	svc.now = func() time.Time { return fixedNow }
	return svc
}

func TestJobServiceLoadExpiresPastDeadline(t *testing.T) {
	store := newJobStore(storedJob("job-1", models.JobStatusActive, fixedNow.Add(-time.Hour)))
	svc := newTestJobService(store, &fanoutStub{}, &auditTrailStub{})

	job, err := svc.Get(context.Background(), "job-1", studentClaims)
	require.NoError(t, err)
	assert.Equal(t, models.JobStatusClosed, job.Status)
	assert.Equal(t, models.ClosedReasonDeadline, job.ClosedReason)
	assert.False(t, job.AcceptingApplications())

	_, err = svc.Load(context.Background(), "job-1")
	require.NoError(t, err)
	assert.Equal(t, int64(1), store.expired, "a second read must not close the job again")
}

func TestJobServiceGetHidesOtherCollege(t *testing.T) {
	job := storedJob("job-1", models.JobStatusActive, fixedNow.Add(time.Hour))
	job.CollegeID = "college-2"
	svc := newTestJobService(newJobStore(job), &fanoutStub{}, &auditTrailStub{})

	_, err := svc.Get(context.Background(), "job-1", studentClaims)
	assert.ErrorIs(t, err, appErrors.ErrNotFound)

	_, err = svc.Get(context.Background(), "missing", studentClaims)
	assert.ErrorIs(t, err, appErrors.ErrNotFound)
}

func TestJobServiceExtendDeadlineReopensDeadlineClosedJob(t *testing.T) {
	original := fixedNow.Add(-48 * time.Hour)
	store := newJobStore(storedJob("job-1", models.JobStatusActive, original))
	fanout := &fanoutStub{}
	audit := &auditTrailStub{}
	svc := newTestJobService(store, fanout, audit)

	_, err := svc.Load(context.Background(), "job-1")
	require.NoError(t, err)

	first := fixedNow.Add(72 * time.Hour)
	job, err := svc.ExtendDeadline(context.Background(), "job-1", dto.ExtendDeadlineRequest{Deadline: first}, adminClaims)
	require.NoError(t, err)
	assert.Equal(t, models.JobStatusActive, job.Status)
	assert.Equal(t, models.ClosedReasonNone, job.ClosedReason)
	assert.True(t, job.DeadlineExtended)
	require.NotNil(t, job.OriginalDeadline)
	assert.True(t, job.OriginalDeadline.Equal(original))
	assert.Equal(t, []string{"job-1"}, fanout.ids)

	second := fixedNow.Add(96 * time.Hour)
	job, err = svc.ExtendDeadline(context.Background(), "job-1", dto.ExtendDeadlineRequest{Deadline: second}, adminClaims)
	require.NoError(t, err)
	assert.True(t, job.Deadline.Equal(second))
	assert.True(t, job.OriginalDeadline.Equal(original), "original deadline is only recorded once")
	assert.Len(t, fanout.ids, 1)
	assert.Equal(t, []string{models.AuditActionJobDeadlineExtend, models.AuditActionJobDeadlineExtend}, audit.actions())
}

func TestJobServiceExtendDeadlineLeavesManualCloseClosed(t *testing.T) {
	job := storedJob("job-1", models.JobStatusClosed, fixedNow.Add(-time.Hour))
	job.ClosedReason = models.ClosedReasonManual
	fanout := &fanoutStub{}
	svc := newTestJobService(newJobStore(job), fanout, &auditTrailStub{})

	updated, err := svc.ExtendDeadline(context.Background(), "job-1", dto.ExtendDeadlineRequest{Deadline: fixedNow.Add(time.Hour)}, adminClaims)
	require.NoError(t, err)
	assert.Equal(t, models.JobStatusClosed, updated.Status)
	assert.True(t, updated.DeadlineExtended)
	assert.Empty(t, fanout.ids)
}

func TestJobServiceExtendDeadlineRejections(t *testing.T) {
	cancelled := storedJob("job-c", models.JobStatusCancelled, fixedNow.Add(time.Hour))
	svc := newTestJobService(newJobStore(cancelled, storedJob("job-1", models.JobStatusActive, fixedNow.Add(time.Hour))), &fanoutStub{}, &auditTrailStub{})

	_, err := svc.ExtendDeadline(context.Background(), "job-1", dto.ExtendDeadlineRequest{Deadline: fixedNow.Add(-time.Minute)}, adminClaims)
	assert.ErrorIs(t, err, appErrors.ErrValidation)

	_, err = svc.ExtendDeadline(context.Background(), "job-c", dto.ExtendDeadlineRequest{Deadline: fixedNow.Add(time.Hour)}, adminClaims)
	assert.ErrorIs(t, err, appErrors.ErrPreconditionFailed)

	_, err = svc.ExtendDeadline(context.Background(), "missing", dto.ExtendDeadlineRequest{Deadline: fixedNow.Add(time.Hour)}, adminClaims)
	assert.ErrorIs(t, err, appErrors.ErrNotFound)
}

func TestJobServiceChangeStatusTransitions(t *testing.T) {
	store := newJobStore(
		storedJob("draft", models.JobStatusDraft, fixedNow.Add(time.Hour)),
		storedJob("stale-draft", models.JobStatusDraft, fixedNow.Add(-time.Hour)),
		storedJob("open", models.JobStatusActive, fixedNow.Add(time.Hour)),
	)
	fanout := &fanoutStub{}
	svc := newTestJobService(store, fanout, &auditTrailStub{})
	ctx := context.Background()

	job, err := svc.ChangeStatus(ctx, "draft", models.JobStatusActive, adminClaims)
	require.NoError(t, err)
	assert.Equal(t, models.JobStatusActive, job.Status)
	assert.Equal(t, []string{"draft"}, fanout.ids)

	_, err = svc.ChangeStatus(ctx, "stale-draft", models.JobStatusActive, adminClaims)
	assert.ErrorIs(t, err, appErrors.ErrValidation)

	job, err = svc.ChangeStatus(ctx, "open", models.JobStatusInactive, adminClaims)
	require.NoError(t, err)
	assert.False(t, job.IsActive)

	job, err = svc.ChangeStatus(ctx, "open", models.JobStatusActive, adminClaims)
	require.NoError(t, err)
	assert.True(t, job.AcceptingApplications())

	job, err = svc.ChangeStatus(ctx, "open", models.JobStatusClosed, adminClaims)
	require.NoError(t, err)
	assert.Equal(t, models.ClosedReasonManual, job.ClosedReason)

	_, err = svc.ChangeStatus(ctx, "open", models.JobStatusActive, adminClaims)
	assert.ErrorIs(t, err, appErrors.ErrPreconditionFailed)

	job, err = svc.ChangeStatus(ctx, "open", models.JobStatusClosed, adminClaims)
	require.NoError(t, err, "repeating the current status is a no-op")
	assert.Equal(t, models.JobStatusClosed, job.Status)

	_, err = svc.ChangeStatus(ctx, "open", models.JobStatus("archived"), adminClaims)
	assert.ErrorIs(t, err, appErrors.ErrValidation)
}

func TestJobServiceBulkChangeStatusCountsModified(t *testing.T) {
	store := newJobStore(
		storedJob("a", models.JobStatusActive, fixedNow.Add(time.Hour)),
		storedJob("b", models.JobStatusInactive, fixedNow.Add(time.Hour)),
		storedJob("c", models.JobStatusCancelled, fixedNow.Add(time.Hour)),
	)
	svc := newTestJobService(store, &fanoutStub{}, &auditTrailStub{})

	modified, err := svc.BulkChangeStatus(context.Background(), dto.BulkJobStatusRequest{
		JobIDs: []string{"a", "b", "c", "missing"},
		Status: models.JobStatusClosed,
	}, adminClaims)
	require.NoError(t, err)
	assert.Equal(t, 2, modified)
}

func TestJobServiceCreate(t *testing.T) {
	store := newJobStore()
	fanout := &fanoutStub{}
	audit := &auditTrailStub{}
	svc := newTestJobService(store, fanout, audit)

	req := dto.CreateJobRequest{
		Title:       " Backend Engineer ",
		CompanyName: "Acme",
		Description: "APIs",
		Location:    "Chennai",
		Deadline:    fixedNow.Add(7 * 24 * time.Hour),
	}
	job, err := svc.Create(context.Background(), req, adminClaims)
	require.NoError(t, err)
	assert.Equal(t, "Backend Engineer", job.Title)
	assert.Equal(t, models.JobStatusActive, job.Status)
	assert.Equal(t, models.EligibilityCommon, job.Eligibility.Type)
	assert.Equal(t, "college-1", job.CollegeID)
	assert.Equal(t, "admin-1", job.PostedBy)
	assert.Equal(t, []string{job.ID}, fanout.ids)
	assert.Equal(t, []string{models.AuditActionJobCreate}, audit.actions())

	req.Status = models.JobStatusDraft
	_, err = svc.Create(context.Background(), req, adminClaims)
	require.NoError(t, err)
	assert.Len(t, fanout.ids, 1, "drafts are not announced")

	req.Deadline = fixedNow.Add(-time.Hour)
	_, err = svc.Create(context.Background(), req, adminClaims)
	assert.ErrorIs(t, err, appErrors.ErrValidation)

	req.Deadline = fixedNow.Add(time.Hour)
	req.Eligibility = models.EligibilityCriteria{Type: models.EligibilityDepartmentWise}
	_, err = svc.Create(context.Background(), req, adminClaims)
	assert.ErrorIs(t, err, appErrors.ErrValidation)

	_, err = svc.Create(context.Background(), dto.CreateJobRequest{}, adminClaims)
	assert.ErrorIs(t, err, appErrors.ErrValidation)
}

func TestJobServiceListScopesByRole(t *testing.T) {
	store := newJobStore(
		storedJob("active", models.JobStatusActive, fixedNow.Add(time.Hour)),
		storedJob("expired", models.JobStatusActive, fixedNow.Add(-time.Hour)),
		storedJob("draft", models.JobStatusDraft, fixedNow.Add(time.Hour)),
	)
	svc := newTestJobService(store, &fanoutStub{}, &auditTrailStub{})

	jobs, page, err := svc.List(context.Background(), dto.JobListQuery{}, studentClaims)
	require.NoError(t, err)
	require.Len(t, jobs, 1)
	assert.Equal(t, "active", jobs[0].ID)
	assert.Equal(t, 1, page.TotalCount)

	jobs, _, err = svc.List(context.Background(), dto.JobListQuery{}, adminClaims)
	require.NoError(t, err)
	assert.Len(t, jobs, 2)

	jobs, _, err = svc.List(context.Background(), dto.JobListQuery{IncludeExpired: true}, adminClaims)
	require.NoError(t, err)
	assert.Len(t, jobs, 3)

	jobs, _, err = svc.List(context.Background(), dto.JobListQuery{Status: "closed"}, adminClaims)
	require.NoError(t, err)
	require.Len(t, jobs, 1)
	assert.Equal(t, models.ClosedReasonDeadline, jobs[0].ClosedReason)

	_, _, err = svc.List(context.Background(), dto.JobListQuery{Status: "bogus"}, adminClaims)
	assert.ErrorIs(t, err, appErrors.ErrValidation)
}

func TestJobServiceClosingSoon(t *testing.T) {
	store := newJobStore(
		storedJob("soon", models.JobStatusActive, fixedNow.Add(48*time.Hour)),
		storedJob("later", models.JobStatusActive, fixedNow.Add(10*24*time.Hour)),
		storedJob("gone", models.JobStatusActive, fixedNow.Add(-time.Minute)),
	)
	svc := newTestJobService(store, &fanoutStub{}, &auditTrailStub{})

	jobs, err := svc.ClosingSoon(context.Background(), 0, studentClaims)
	require.NoError(t, err)
	require.Len(t, jobs, 1)
	assert.Equal(t, "soon", jobs[0].ID)

	jobs, err = svc.ClosingSoon(context.Background(), 14, studentClaims)
	require.NoError(t, err)
	assert.Len(t, jobs, 2)
}
