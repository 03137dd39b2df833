package handler

import (
	"context"
	"net/http"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DPLnainar/placement-management-system-sub002/internal/dto"
	"github.com/DPLnainar/placement-management-system-sub002/internal/models"
	appErrors "github.com/DPLnainar/placement-management-system-sub002/pkg/errors"
)

type applicationServiceMock struct {
	app        *models.Application
	err        error
	lastApply  dto.ApplyRequest
	lastStatus dto.UpdateApplicationStatusRequest
	lastIndex  int
	lastQuery  dto.ApplicationListQuery
	calls      []string
}

func (m *applicationServiceMock) Apply(ctx context.Context, req dto.ApplyRequest, claims *models.JWTClaims) (*models.Application, error) {
	m.calls = append(m.calls, "apply")
	m.lastApply = req
	return m.app, m.err
}

func (m *applicationServiceMock) Get(ctx context.Context, id string, claims *models.JWTClaims) (*models.Application, error) {
	m.calls = append(m.calls, "get")
	return m.app, m.err
}

func (m *applicationServiceMock) List(ctx context.Context, query dto.ApplicationListQuery, claims *models.JWTClaims) ([]models.Application, *models.Pagination, error) {
	m.calls = append(m.calls, "list")
	m.lastQuery = query
	return []models.Application{}, &models.Pagination{Page: 1, PageSize: 20}, m.err
}

func (m *applicationServiceMock) UpdateStatus(ctx context.Context, id string, req dto.UpdateApplicationStatusRequest, claims *models.JWTClaims) (*models.Application, error) {
	m.calls = append(m.calls, "status")
	m.lastStatus = req
	return m.app, m.err
}

func (m *applicationServiceMock) AddRound(ctx context.Context, id string, req dto.AddRoundRequest, claims *models.JWTClaims) (*models.Application, error) {
	m.calls = append(m.calls, "round")
	return m.app, m.err
}

func (m *applicationServiceMock) UpdateRoundStatus(ctx context.Context, id string, index int, req dto.UpdateRoundRequest, claims *models.JWTClaims) (*models.Application, error) {
	m.calls = append(m.calls, "round-status")
	m.lastIndex = index
	return m.app, m.err
}

func (m *applicationServiceMock) Reject(ctx context.Context, id string, req dto.RejectApplicationRequest, claims *models.JWTClaims) (*models.Application, error) {
	m.calls = append(m.calls, "reject")
	return m.app, m.err
}

func (m *applicationServiceMock) Withdraw(ctx context.Context, id string, claims *models.JWTClaims) (*models.Application, error) {
	m.calls = append(m.calls, "withdraw")
	return m.app, m.err
}

func TestApplicationHandlerApply(t *testing.T) {
	svc := &applicationServiceMock{app: &models.Application{ID: "app-1", JobID: "job-1", Status: models.ApplicationPending}}
	h := NewApplicationHandler(svc)

	c, w := newContext(http.MethodPost, "/applications", dto.ApplyRequest{JobID: "job-1", CoverLetter: "hello"}, studentClaims)
	h.Apply(c)
	require.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, "job-1", svc.lastApply.JobID)
}

func TestApplicationHandlerApplyNotEligibleCarriesReasons(t *testing.T) {
	reasons := []string{"CGPA 6.50 is below the required 7.00", "Department ECE is not eligible"}
	svc := &applicationServiceMock{err: appErrors.WithReasons(appErrors.ErrNotEligible, reasons)}
	h := NewApplicationHandler(svc)

	c, w := newContext(http.MethodPost, "/applications", dto.ApplyRequest{JobID: "job-1"}, studentClaims)
	h.Apply(c)
	require.Equal(t, http.StatusForbidden, w.Code)
	env := decode(t, w)
	require.NotNil(t, env.Error)
	assert.Equal(t, appErrors.ErrNotEligible.Code, env.Error.Code)
	assert.Equal(t, reasons, env.Error.Reasons)
}

func TestApplicationHandlerApplyDuplicate(t *testing.T) {
	svc := &applicationServiceMock{err: appErrors.ErrDuplicateApplication}
	h := NewApplicationHandler(svc)

	c, w := newContext(http.MethodPost, "/applications", dto.ApplyRequest{JobID: "job-1"}, studentClaims)
	h.Apply(c)
	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestApplicationHandlerUpdateStatusAcceptsPlacedAlias(t *testing.T) {
	svc := &applicationServiceMock{app: &models.Application{ID: "app-1", Status: models.ApplicationOfferAccepted}}
	h := NewApplicationHandler(svc)

	c, w := newContext(http.MethodPatch, "/applications/app-1/status", `{"status":"PLACED"}`, adminClaims)
	c.Params = gin.Params{{Key: "id", Value: "app-1"}}
	h.UpdateStatus(c)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "PLACED", svc.lastStatus.Status)
}

func TestApplicationHandlerUpdateRoundIndex(t *testing.T) {
	svc := &applicationServiceMock{app: &models.Application{ID: "app-1"}}
	h := NewApplicationHandler(svc)

	c, w := newContext(http.MethodPatch, "/applications/app-1/rounds/1", dto.UpdateRoundRequest{Status: models.RoundCleared}, adminClaims)
	c.Params = gin.Params{{Key: "id", Value: "app-1"}, {Key: "index", Value: "1"}}
	h.UpdateRound(c)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 1, svc.lastIndex)

	c, w = newContext(http.MethodPatch, "/applications/app-1/rounds/x", dto.UpdateRoundRequest{Status: models.RoundCleared}, adminClaims)
	c.Params = gin.Params{{Key: "id", Value: "app-1"}, {Key: "index", Value: "x"}}
	h.UpdateRound(c)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, []string{"round-status"}, svc.calls)
}

func TestApplicationHandlerListBindsQuery(t *testing.T) {
	svc := &applicationServiceMock{}
	h := NewApplicationHandler(svc)

	c, w := newContext(http.MethodGet, "/applications?jobId=job-1&status=pending,shortlisted", nil, adminClaims)
	h.List(c)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "job-1", svc.lastQuery.JobID)
	assert.Equal(t, "pending,shortlisted", svc.lastQuery.Status)
}

func TestApplicationHandlerWithdrawPrecondition(t *testing.T) {
	svc := &applicationServiceMock{err: appErrors.Clone(appErrors.ErrPreconditionFailed, "placed applications cannot be withdrawn")}
	h := NewApplicationHandler(svc)

	c, w := newContext(http.MethodPost, "/applications/app-1/withdraw", nil, studentClaims)
	c.Params = gin.Params{{Key: "id", Value: "app-1"}}
	h.Withdraw(c)
	assert.Equal(t, http.StatusPreconditionFailed, w.Code)
}
