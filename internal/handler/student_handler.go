package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/DPLnainar/placement-management-system-sub002/internal/models"
	appErrors "github.com/DPLnainar/placement-management-system-sub002/pkg/errors"
	"github.com/DPLnainar/placement-management-system-sub002/pkg/response"
)

type offerService interface {
	AcceptOffer(ctx context.Context, userID, offerID string, claims *models.JWTClaims) (*models.Student, error)
	WithdrawOffer(ctx context.Context, userID, offerID string, claims *models.JWTClaims) (*models.Student, error)
	DeclineOffer(ctx context.Context, userID, offerID string, claims *models.JWTClaims) (*models.Student, error)
	PlacementCard(ctx context.Context, userID string) (*models.PlacementCard, error)
}

// StudentHandler exposes student offer and placement endpoints.
type StudentHandler struct {
	placement offerService
}

// NewStudentHandler constructs StudentHandler.
func NewStudentHandler(placement offerService) *StudentHandler {
	return &StudentHandler{placement: placement}
}

// AcceptOffer godoc
// @Summary Accept a pending offer
// @Description Accepting places the student and rejects every other pending offer.
// @Tags Students
// @Produce json
// @Param id path string true "Student user ID or me"
// @Param offerId path string true "Offer ID"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope "ALREADY_PLACED"
// @Router /students/{id}/offers/{offerId}/accept [post]
func (h *StudentHandler) AcceptOffer(c *gin.Context) {
	h.offerAction(c, h.placement.AcceptOffer)
}

// WithdrawOffer godoc
// @Summary Retract a pending offer
// @Tags Students
// @Produce json
// @Param id path string true "Student user ID"
// @Param offerId path string true "Offer ID"
// @Success 200 {object} response.Envelope
// @Router /students/{id}/offers/{offerId}/withdraw [post]
func (h *StudentHandler) WithdrawOffer(c *gin.Context) {
	h.offerAction(c, h.placement.WithdrawOffer)
}

// DeclineOffer godoc
// @Summary Decline a pending offer
// @Tags Students
// @Produce json
// @Param id path string true "Student user ID or me"
// @Param offerId path string true "Offer ID"
// @Success 200 {object} response.Envelope
// @Router /students/{id}/offers/{offerId}/decline [post]
func (h *StudentHandler) DeclineOffer(c *gin.Context) {
	h.offerAction(c, h.placement.DeclineOffer)
}

// PlacementCard godoc
// @Summary Placement status and offers of the calling student
// @Tags Students
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /students/me/placement [get]
func (h *StudentHandler) PlacementCard(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	card, err := h.placement.PlacementCard(c.Request.Context(), claims.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, card, nil)
}

func (h *StudentHandler) offerAction(c *gin.Context, action func(context.Context, string, string, *models.JWTClaims) (*models.Student, error)) {
	claims := claimsFromContext(c)
	student, err := action(c.Request.Context(), studentParam(c, claims), c.Param("offerId"), claims)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, student, nil)
}
