package handler

import (
	"context"
	"fmt"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/DPLnainar/placement-management-system-sub002/internal/dto"
	"github.com/DPLnainar/placement-management-system-sub002/internal/models"
	"github.com/DPLnainar/placement-management-system-sub002/internal/service"
	"github.com/DPLnainar/placement-management-system-sub002/pkg/response"
)

type eligibilityService interface {
	ListEligibility(ctx context.Context, jobID string, claims *models.JWTClaims) (*models.EligibilitySummary, error)
	CheckForStudent(ctx context.Context, jobID string, claims *models.JWTClaims) (*models.JobEligibility, error)
	EligibleJobs(ctx context.Context, claims *models.JWTClaims) (*models.EligibleJobs, error)
	EligibleStudents(ctx context.Context, jobID string, query dto.RosterQuery, claims *models.JWTClaims) (*models.EligibilityRoster, error)
	BulkCheck(ctx context.Context, req dto.BulkCheckRequest, claims *models.JWTClaims) ([]models.StudentEligibility, error)
	ExportEligibleStudents(ctx context.Context, jobID string, req dto.ExportRosterRequest, claims *models.JWTClaims) (*dto.ExportResponse, error)
	OpenExport(ctx context.Context, token string, claims *models.JWTClaims) (*service.ExportFile, error)
}

// EligibilityHandler exposes eligibility views and roster exports.
type EligibilityHandler struct {
	service eligibilityService
}

// NewEligibilityHandler builds a new handler.
func NewEligibilityHandler(service eligibilityService) *EligibilityHandler {
	return &EligibilityHandler{service: service}
}

// EligibleJobs godoc
// @Summary Open jobs the calling student is eligible for
// @Tags Eligibility
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /eligibility/jobs [get]
func (h *EligibilityHandler) EligibleJobs(c *gin.Context) {
	jobs, err := h.service.EligibleJobs(c.Request.Context(), claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, jobs, nil)
}

// Check godoc
// @Summary Eligibility of the calling student for one job
// @Tags Eligibility
// @Produce json
// @Param id path string true "Job ID"
// @Success 200 {object} response.Envelope
// @Router /eligibility/jobs/{id} [get]
func (h *EligibilityHandler) Check(c *gin.Context) {
	result, err := h.service.CheckForStudent(c.Request.Context(), c.Param("id"), claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}

// Students godoc
// @Summary Eligibility roster of a job
// @Tags Eligibility
// @Produce json
// @Param id path string true "Job ID"
// @Param includeIneligible query bool false "Include ineligible students"
// @Param department query string false "Department filter"
// @Success 200 {object} response.Envelope
// @Router /eligibility/jobs/{id}/students [get]
func (h *EligibilityHandler) Students(c *gin.Context) {
	var query dto.RosterQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		response.Error(c, invalidPayload(err, "invalid query"))
		return
	}
	roster, err := h.service.EligibleStudents(c.Request.Context(), c.Param("id"), query, claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, roster, nil)
}

// Summary godoc
// @Summary Eligible, applied and not-applied counts for a job
// @Tags Eligibility
// @Produce json
// @Param id path string true "Job ID"
// @Success 200 {object} response.Envelope
// @Router /eligibility/jobs/{id}/summary [get]
func (h *EligibilityHandler) Summary(c *gin.Context) {
	summary, err := h.service.ListEligibility(c.Request.Context(), c.Param("id"), claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, summary, nil)
}

// BulkCheck godoc
// @Summary Evaluate many students against one job
// @Tags Eligibility
// @Accept json
// @Produce json
// @Param payload body dto.BulkCheckRequest true "Job and student user ids"
// @Success 200 {object} response.Envelope
// @Router /eligibility/bulk-check [post]
func (h *EligibilityHandler) BulkCheck(c *gin.Context) {
	var req dto.BulkCheckRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, invalidPayload(err, "invalid bulk check payload"))
		return
	}
	rows, err := h.service.BulkCheck(c.Request.Context(), req, claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, rows, nil)
}

// Export godoc
// @Summary Export a job's roster
// @Tags Eligibility
// @Accept json
// @Produce json
// @Param id path string true "Job ID"
// @Param payload body dto.ExportRosterRequest true "Export options"
// @Success 201 {object} response.Envelope
// @Router /eligibility/jobs/{id}/export [post]
func (h *EligibilityHandler) Export(c *gin.Context) {
	var req dto.ExportRosterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, invalidPayload(err, "invalid export payload"))
		return
	}
	result, err := h.service.ExportEligibleStudents(c.Request.Context(), c.Param("id"), req, claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, result)
}

// Download godoc
// @Summary Download an exported roster
// @Tags Eligibility
// @Produce octet-stream
// @Param token path string true "Signed export token"
// @Success 200 {file} binary
// @Failure 403 {object} response.Envelope "link expired"
// @Failure 404 {object} response.Envelope
// @Router /export/{token} [get]
func (h *EligibilityHandler) Download(c *gin.Context) {
	file, err := h.service.OpenExport(c.Request.Context(), c.Param("token"), claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	defer file.Body.Close()

	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", file.Filename))
	c.Header("Content-Type", file.ContentType)
	c.Header("Cache-Control", "no-store")
	c.Status(http.StatusOK)
	_, _ = io.Copy(c.Writer, file.Body)
}
