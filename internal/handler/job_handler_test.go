package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DPLnainar/placement-management-system-sub002/internal/dto"
	"github.com/DPLnainar/placement-management-system-sub002/internal/models"
	appErrors "github.com/DPLnainar/placement-management-system-sub002/pkg/errors"
)

type jobServiceMock struct {
	job         *models.Job
	jobs        []models.Job
	err         error
	lastQuery   dto.JobListQuery
	lastDays    int
	lastStatus  models.JobStatus
	lastBulk    dto.BulkJobStatusRequest
	createCalls int
}

func (m *jobServiceMock) Create(ctx context.Context, req dto.CreateJobRequest, claims *models.JWTClaims) (*models.Job, error) {
	m.createCalls++
	return m.job, m.err
}

func (m *jobServiceMock) Get(ctx context.Context, id string, claims *models.JWTClaims) (*models.Job, error) {
	return m.job, m.err
}

func (m *jobServiceMock) List(ctx context.Context, query dto.JobListQuery, claims *models.JWTClaims) ([]models.Job, *models.Pagination, error) {
	m.lastQuery = query
	return m.jobs, &models.Pagination{Page: 1, PageSize: 20, TotalCount: len(m.jobs)}, m.err
}

func (m *jobServiceMock) ClosingSoon(ctx context.Context, days int, claims *models.JWTClaims) ([]models.Job, error) {
	m.lastDays = days
	return m.jobs, m.err
}

func (m *jobServiceMock) ChangeStatus(ctx context.Context, id string, target models.JobStatus, claims *models.JWTClaims) (*models.Job, error) {
	m.lastStatus = target
	return m.job, m.err
}

func (m *jobServiceMock) BulkChangeStatus(ctx context.Context, req dto.BulkJobStatusRequest, claims *models.JWTClaims) (int, error) {
	m.lastBulk = req
	return len(req.JobIDs) - 1, m.err
}

func (m *jobServiceMock) ExtendDeadline(ctx context.Context, id string, req dto.ExtendDeadlineRequest, claims *models.JWTClaims) (*models.Job, error) {
	return m.job, m.err
}

func TestJobHandlerCreate(t *testing.T) {
	svc := &jobServiceMock{job: &models.Job{ID: "job-1", Title: "SDE"}}
	h := NewJobHandler(svc)

	c, w := newContext(http.MethodPost, "/jobs", dto.CreateJobRequest{Title: "SDE", CompanyName: "Acme", Deadline: time.Now().Add(time.Hour)}, adminClaims)
	h.Create(c)
	require.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, 1, svc.createCalls)

	var job models.Job
	require.NoError(t, json.Unmarshal(decode(t, w).Data, &job))
	assert.Equal(t, "job-1", job.ID)

	c, w = newContext(http.MethodPost, "/jobs", `{"title":`, adminClaims)
	h.Create(c)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, 1, svc.createCalls)
}

func TestJobHandlerListBindsQuery(t *testing.T) {
	svc := &jobServiceMock{jobs: []models.Job{{ID: "job-1"}, {ID: "job-2"}}}
	h := NewJobHandler(svc)

	c, w := newContext(http.MethodGet, "/jobs?status=active&jobType=internship&includeExpired=true&page=2", nil, studentClaims)
	h.List(c)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "active", svc.lastQuery.Status)
	assert.Equal(t, "internship", svc.lastQuery.JobType)
	assert.True(t, svc.lastQuery.IncludeExpired)
	assert.Equal(t, 2, svc.lastQuery.Page)

	env := decode(t, w)
	require.NotNil(t, env.Pagination)
	assert.Equal(t, 2, env.Pagination.TotalCount)
}

func TestJobHandlerClosingSoonDays(t *testing.T) {
	svc := &jobServiceMock{}
	h := NewJobHandler(svc)

	c, w := newContext(http.MethodGet, "/jobs/closing-soon?days=5", nil, adminClaims)
	h.ClosingSoon(c)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 5, svc.lastDays)

	c, w = newContext(http.MethodGet, "/jobs/closing-soon?days=soon", nil, adminClaims)
	h.ClosingSoon(c)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestJobHandlerChangeStatusMapsErrors(t *testing.T) {
	svc := &jobServiceMock{err: appErrors.Clone(appErrors.ErrPreconditionFailed, "cannot move job from cancelled to active")}
	h := NewJobHandler(svc)

	c, w := newContext(http.MethodPatch, "/jobs/job-1/status", dto.JobStatusRequest{Status: models.JobStatusActive}, adminClaims)
	h.ChangeStatus(c)
	require.Equal(t, http.StatusPreconditionFailed, w.Code)
	assert.Equal(t, models.JobStatusActive, svc.lastStatus)
	assert.Equal(t, appErrors.ErrPreconditionFailed.Code, decode(t, w).Error.Code)
}

func TestJobHandlerBulkChangeStatus(t *testing.T) {
	svc := &jobServiceMock{}
	h := NewJobHandler(svc)

	c, w := newContext(http.MethodPost, "/jobs/bulk-status", dto.BulkJobStatusRequest{JobIDs: []string{"a", "b", "c"}, Status: models.JobStatusClosed}, adminClaims)
	h.BulkChangeStatus(c)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"modified":2}`, string(decode(t, w).Data))
}

func TestJobHandlerInternalErrorHidesCause(t *testing.T) {
	svc := &jobServiceMock{err: appErrors.Wrap(assert.AnError, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load job")}
	h := NewJobHandler(svc)

	c, w := newContext(http.MethodGet, "/jobs/job-1", nil, adminClaims)
	h.Get(c)
	require.Equal(t, http.StatusInternalServerError, w.Code)
	assert.NotContains(t, w.Body.String(), assert.AnError.Error())
}
