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

type applicationService interface {
	Apply(ctx context.Context, req dto.ApplyRequest, claims *models.JWTClaims) (*models.Application, error)
	Get(ctx context.Context, id string, claims *models.JWTClaims) (*models.Application, error)
	List(ctx context.Context, query dto.ApplicationListQuery, claims *models.JWTClaims) ([]models.Application, *models.Pagination, error)
	UpdateStatus(ctx context.Context, id string, req dto.UpdateApplicationStatusRequest, claims *models.JWTClaims) (*models.Application, error)
	AddRound(ctx context.Context, id string, req dto.AddRoundRequest, claims *models.JWTClaims) (*models.Application, error)
	UpdateRoundStatus(ctx context.Context, id string, index int, req dto.UpdateRoundRequest, claims *models.JWTClaims) (*models.Application, error)
	Reject(ctx context.Context, id string, req dto.RejectApplicationRequest, claims *models.JWTClaims) (*models.Application, error)
	Withdraw(ctx context.Context, id string, claims *models.JWTClaims) (*models.Application, error)
}

// ApplicationHandler exposes the application lifecycle endpoints.
type ApplicationHandler struct {
	service applicationService
}

// NewApplicationHandler builds a new handler.
func NewApplicationHandler(service applicationService) *ApplicationHandler {
	return &ApplicationHandler{service: service}
}

// Apply godoc
// @Summary Apply to a job
// @Description Checks run in order: job open, profile verified, no duplicate, not placed, eligible.
// @Tags Applications
// @Accept json
// @Produce json
// @Param payload body dto.ApplyRequest true "Application payload"
// @Success 201 {object} response.Envelope
// @Failure 403 {object} response.Envelope "NOT_ELIGIBLE, ALREADY_PLACED or PROFILE_NOT_VERIFIED"
// @Failure 409 {object} response.Envelope "DUPLICATE_APPLICATION or JOB_NOT_ACTIVE"
// @Router /applications [post]
func (h *ApplicationHandler) Apply(c *gin.Context) {
	var req dto.ApplyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, invalidPayload(err, "invalid application payload"))
		return
	}
	app, err := h.service.Apply(c.Request.Context(), req, claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, app)
}

// List godoc
// @Summary List applications
// @Tags Applications
// @Produce json
// @Param jobId query string false "Job filter"
// @Param status query string false "Comma separated statuses"
// @Param page query int false "Page"
// @Param pageSize query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /applications [get]
func (h *ApplicationHandler) List(c *gin.Context) {
	var query dto.ApplicationListQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		response.Error(c, invalidPayload(err, "invalid query"))
		return
	}
	apps, pagination, err := h.service.List(c.Request.Context(), query, claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, apps, pagination, middleware.ExtractMeta(c))
}

// Get godoc
// @Summary Get an application
// @Tags Applications
// @Produce json
// @Param id path string true "Application ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /applications/{id} [get]
func (h *ApplicationHandler) Get(c *gin.Context) {
	app, err := h.service.Get(c.Request.Context(), c.Param("id"), claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, app, nil)
}

// UpdateStatus godoc
// @Summary Move an application to a new status
// @Tags Applications
// @Accept json
// @Produce json
// @Param id path string true "Application ID"
// @Param payload body dto.UpdateApplicationStatusRequest true "Status payload"
// @Success 200 {object} response.Envelope
// @Router /applications/{id}/status [patch]
func (h *ApplicationHandler) UpdateStatus(c *gin.Context) {
	var req dto.UpdateApplicationStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, invalidPayload(err, "invalid status payload"))
		return
	}
	app, err := h.service.UpdateStatus(c.Request.Context(), c.Param("id"), req, claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, app, nil)
}

// AddRound godoc
// @Summary Schedule an interview round
// @Tags Applications
// @Accept json
// @Produce json
// @Param id path string true "Application ID"
// @Param payload body dto.AddRoundRequest true "Round payload"
// @Success 201 {object} response.Envelope
// @Router /applications/{id}/rounds [post]
func (h *ApplicationHandler) AddRound(c *gin.Context) {
	var req dto.AddRoundRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, invalidPayload(err, "invalid round payload"))
		return
	}
	app, err := h.service.AddRound(c.Request.Context(), c.Param("id"), req, claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, app)
}

// UpdateRound godoc
// @Summary Record the outcome of a round
// @Tags Applications
// @Accept json
// @Produce json
// @Param id path string true "Application ID"
// @Param index path int true "Zero based round index"
// @Param payload body dto.UpdateRoundRequest true "Round outcome"
// @Success 200 {object} response.Envelope
// @Router /applications/{id}/rounds/{index} [patch]
func (h *ApplicationHandler) UpdateRound(c *gin.Context) {
	index, err := strconv.Atoi(c.Param("index"))
	if err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "round index must be an integer"))
		return
	}
	var req dto.UpdateRoundRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, invalidPayload(err, "invalid round payload"))
		return
	}
	app, err := h.service.UpdateRoundStatus(c.Request.Context(), c.Param("id"), index, req, claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, app, nil)
}

// Reject godoc
// @Summary Reject an application
// @Tags Applications
// @Accept json
// @Produce json
// @Param id path string true "Application ID"
// @Param payload body dto.RejectApplicationRequest true "Reason"
// @Success 200 {object} response.Envelope
// @Router /applications/{id}/reject [post]
func (h *ApplicationHandler) Reject(c *gin.Context) {
	var req dto.RejectApplicationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, invalidPayload(err, "invalid reject payload"))
		return
	}
	app, err := h.service.Reject(c.Request.Context(), c.Param("id"), req, claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, app, nil)
}

// Withdraw godoc
// @Summary Withdraw one's own application
// @Tags Applications
// @Produce json
// @Param id path string true "Application ID"
// @Success 200 {object} response.Envelope
// @Failure 412 {object} response.Envelope
// @Router /applications/{id}/withdraw [post]
func (h *ApplicationHandler) Withdraw(c *gin.Context) {
	app, err := h.service.Withdraw(c.Request.Context(), c.Param("id"), claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, app, nil)
}
