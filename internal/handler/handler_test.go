package handler

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	"github.com/DPLnainar/placement-management-system-sub002/internal/middleware"
	"github.com/DPLnainar/placement-management-system-sub002/internal/models"
)

var (
	adminClaims   = &models.JWTClaims{UserID: "admin-1", Role: models.RoleAdmin, CollegeID: "college-1"}
	studentClaims = &models.JWTClaims{UserID: "user-1", Role: models.RoleStudent, CollegeID: "college-1", Department: "CSE"}
)

func init() {
	gin.SetMode(gin.TestMode)
}

// newContext builds a test context carrying claims, with body JSON-encoded unless it is a string.
func newContext(method, target string, body interface{}, claims *models.JWTClaims) (*gin.Context, *httptest.ResponseRecorder) {
	var reader *bytes.Reader
	switch b := body.(type) {
	case nil:
		reader = bytes.NewReader(nil)
	case string:
		reader = bytes.NewReader([]byte(b))
	default:
		raw, _ := json.Marshal(b)
		reader = bytes.NewReader(raw)
	}
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, _ := http.NewRequest(method, target, reader)
	req.Header.Set("Content-Type", "application/json")
	c.Request = req
	if claims != nil {
		c.Set(middleware.ContextUserKey, claims)
	}
	return c, w
}

type envelope struct {
	Data       json.RawMessage        `json:"data"`
	Error      *errorBody             `json:"error"`
	Pagination *models.Pagination     `json:"pagination"`
	Meta       map[string]interface{} `json:"meta"`
}

type errorBody struct {
	Code    string   `json:"code"`
	Message string   `json:"message"`
	Reasons []string `json:"reasons"`
}

func decode(t *testing.T, w *httptest.ResponseRecorder) envelope {
	t.Helper()
	var env envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env))
	return env
}
