package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/DPLnainar/placement-management-system-sub002/internal/middleware"
	"github.com/DPLnainar/placement-management-system-sub002/internal/models"
	appErrors "github.com/DPLnainar/placement-management-system-sub002/pkg/errors"
)

func claimsFromContext(c *gin.Context) *models.JWTClaims {
	value, exists := c.Get(middleware.ContextUserKey)
	if !exists {
		return nil
	}
	claims, ok := value.(*models.JWTClaims)
	if !ok {
		return nil
	}
	return claims
}

// studentParam resolves the :id path parameter, where "me" stands for the caller.
func studentParam(c *gin.Context, claims *models.JWTClaims) string {
	id := c.Param("id")
	if id == "me" && claims != nil {
		return claims.UserID
	}
	return id
}

func invalidPayload(err error, message string) error {
	return appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, message)
}
