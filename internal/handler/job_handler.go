package handler

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/DPLnainar/placement-management-system-sub002/internal/dto"
	"github.com/DPLnainar/placement-management-system-sub002/internal/middleware"
	"github.com/DPLnainar/placement-management-system-sub002/internal/models"
	appErrors "github.com/DPLnainar/placement-management-system-sub002/pkg/errors"
	"github.com/DPLnainar/placement-management-system-sub002/pkg/response"
)

type jobService interface {
	Create(ctx context.Context, req dto.CreateJobRequest, claims *models.JWTClaims) (*models.Job, error)
	Get(ctx context.Context, id string, claims *models.JWTClaims) (*models.Job, error)
	List(ctx context.Context, query dto.JobListQuery, claims *models.JWTClaims) ([]models.Job, *models.Pagination, error)
	ClosingSoon(ctx context.Context, days int, claims *models.JWTClaims) ([]models.Job, error)
	ChangeStatus(ctx context.Context, id string, target models.JobStatus, claims *models.JWTClaims) (*models.Job, error)
	BulkChangeStatus(ctx context.Context, req dto.BulkJobStatusRequest, claims *models.JWTClaims) (int, error)
	ExtendDeadline(ctx context.Context, id string, req dto.ExtendDeadlineRequest, claims *models.JWTClaims) (*models.Job, error)
}

// JobHandler exposes job posting endpoints.
type JobHandler struct {
	service jobService
}

// NewJobHandler builds a new handler.
func NewJobHandler(service jobService) *JobHandler {
	return &JobHandler{service: service}
}

// Create godoc
// @Summary Post a job
// @Tags Jobs
// @Accept json
// @Produce json
// @Param payload body dto.CreateJobRequest true "Job payload"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /jobs [post]
func (h *JobHandler) Create(c *gin.Context) {
	var req dto.CreateJobRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, invalidPayload(err, "invalid job payload"))
		return
	}
	job, err := h.service.Create(c.Request.Context(), req, claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, job)
}

// List godoc
// @Summary List jobs
// @Tags Jobs
// @Produce json
// @Param status query string false "Status filter"
// @Param jobType query string false "Job type filter"
// @Param search query string false "Title or company search"
// @Param includeExpired query bool false "Include jobs past their deadline"
// @Param page query int false "Page"
// @Param pageSize query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /jobs [get]
func (h *JobHandler) List(c *gin.Context) {
	var query dto.JobListQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		response.Error(c, invalidPayload(err, "invalid query"))
		return
	}
	jobs, pagination, err := h.service.List(c.Request.Context(), query, claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, jobs, pagination, middleware.ExtractMeta(c))
}

// ClosingSoon godoc
// @Summary Active jobs whose deadline is near
// @Tags Jobs
// @Produce json
// @Param days query int false "Window in days (default 3)"
// @Success 200 {object} response.Envelope
// @Router /jobs/closing-soon [get]
func (h *JobHandler) ClosingSoon(c *gin.Context) {
	days := 0
	if raw := c.Query("days"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 0 {
			response.Error(c, appErrors.Clone(appErrors.ErrValidation, "days must be a non-negative integer"))
			return
		}
		days = parsed
	}
	jobs, err := h.service.ClosingSoon(c.Request.Context(), days, claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, jobs, nil)
}

// Get godoc
// @Summary Get a job
// @Tags Jobs
// @Produce json
// @Param id path string true "Job ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /jobs/{id} [get]
func (h *JobHandler) Get(c *gin.Context) {
	job, err := h.service.Get(c.Request.Context(), c.Param("id"), claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, job, nil)
}

// ChangeStatus godoc
// @Summary Move a job to another status
// @Tags Jobs
// @Accept json
// @Produce json
// @Param id path string true "Job ID"
// @Param payload body dto.JobStatusRequest true "Target status"
// @Success 200 {object} response.Envelope
// @Failure 412 {object} response.Envelope
// @Router /jobs/{id}/status [patch]
func (h *JobHandler) ChangeStatus(c *gin.Context) {
	var req dto.JobStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, invalidPayload(err, "invalid status payload"))
		return
	}
	job, err := h.service.ChangeStatus(c.Request.Context(), c.Param("id"), req.Status, claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, job, nil)
}

// BulkChangeStatus godoc
// @Summary Apply one status change to many jobs
// @Tags Jobs
// @Accept json
// @Produce json
// @Param payload body dto.BulkJobStatusRequest true "Jobs and target status"
// @Success 200 {object} response.Envelope
// @Router /jobs/bulk-status [post]
func (h *JobHandler) BulkChangeStatus(c *gin.Context) {
	var req dto.BulkJobStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, invalidPayload(err, "invalid bulk status payload"))
		return
	}
	modified, err := h.service.BulkChangeStatus(c.Request.Context(), req, claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, dto.BulkJobStatusResponse{Modified: modified}, nil)
}

// ExtendDeadline godoc
// @Summary Extend a job's deadline
// @Tags Jobs
// @Accept json
// @Produce json
// @Param id path string true "Job ID"
// @Param payload body dto.ExtendDeadlineRequest true "New deadline"
// @Success 200 {object} response.Envelope
// @Router /jobs/{id}/extend-deadline [post]
func (h *JobHandler) ExtendDeadline(c *gin.Context) {
	var req dto.ExtendDeadlineRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, invalidPayload(err, "invalid deadline payload"))
		return
	}
	job, err := h.service.ExtendDeadline(c.Request.Context(), c.Param("id"), req, claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, job, nil)
}
