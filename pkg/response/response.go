package response

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/DPLnainar/placement-management-system-sub002/internal/models"
	appErrors "github.com/DPLnainar/placement-management-system-sub002/pkg/errors"
	"github.com/DPLnainar/placement-management-system-sub002/pkg/middleware/requestid"
)

// Envelope is the body of every JSON response: data or error, plus optional
// pagination and metadata.
type Envelope struct {
	Data       interface{}            `json:"data,omitempty"`
	Error      *appErrors.Error       `json:"error,omitempty"`
	Pagination *models.Pagination     `json:"pagination,omitempty"`
	Meta       map[string]interface{} `json:"meta,omitempty"`
}

// JSON sends a success response with optional pagination and metadata.
func JSON(c *gin.Context, status int, data interface{}, pagination *models.Pagination, meta ...map[string]interface{}) {
	noStore(c)
	envelope := Envelope{Data: data, Pagination: pagination}
	if len(meta) > 0 && len(meta[0]) > 0 {
		envelope.Meta = meta[0]
	}
	c.JSON(status, envelope)
}

// Created responds with HTTP 201 Created.
func Created(c *gin.Context, data interface{}) {
	JSON(c, http.StatusCreated, data, nil)
}

// Error writes err as a typed error body. The wrapped cause of a 5xx never
// reaches the client; it is attached to the gin context for the request log.
func Error(c *gin.Context, err error) {
	appErr := appErrors.FromError(err)
	public := appErrors.Clone(appErr, "")
	public.Err = nil
	if appErr.Status >= http.StatusInternalServerError {
		_ = c.Error(err)
	}

	noStore(c)
	envelope := Envelope{Error: public}
	if id := requestid.Value(c); id != "" {
		envelope.Meta = map[string]interface{}{"request_id": id}
	}
	c.JSON(public.Status, envelope)
}

// NoContent sends a 204 response.
func NoContent(c *gin.Context) {
	c.Status(http.StatusNoContent)
}

func noStore(c *gin.Context) {
	c.Header("Cache-Control", "no-store")
	c.Header("Pragma", "no-cache")
}
