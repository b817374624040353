package production

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"framestudio/internal/modules/calendar"
)

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   struct {
		Code    string         `json:"code"`
		Message string         `json:"message"`
		Details map[string]any `json:"details"`
	} `json:"error"`
}

func setupRouter(t *testing.T) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	svc, _, _ := setupService(t)
	router := gin.New()
	NewHandler(svc).RegisterRoutes(router.Group("/api/v1"))
	return router
}

func performRequest(router *gin.Engine, method, path string, body interface{}) (*httptest.ResponseRecorder, envelope) {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)

	var env envelope
	_ = json.Unmarshal(resp.Body.Bytes(), &env)
	return resp, env
}

func TestHandlerScheduleAndFetch(t *testing.T) {
	router := setupRouter(t)

	resp, env := performRequest(router, http.MethodPost, "/api/v1/tasks", order(7, calendar.Simple, monday(17, 0)))
	require.Equal(t, http.StatusCreated, resp.Code, resp.Body.String())
	assert.True(t, env.Success)

	resp, env = performRequest(router, http.MethodGet, "/api/v1/tasks/7", nil)
	require.Equal(t, http.StatusOK, resp.Code)
	var data struct {
		Task struct {
			OrderID int64  `json:"order_id"`
			Status  string `json:"status"`
		} `json:"task"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &data))
	assert.Equal(t, int64(7), data.Task.OrderID)
	assert.Equal(t, "scheduled", data.Task.Status)
}

func TestHandlerErrorEnvelope(t *testing.T) {
	router := setupRouter(t)

	resp, env := performRequest(router, http.MethodPost, "/api/v1/tasks", order(1, calendar.Complex, monday(12, 0)))
	assert.Equal(t, http.StatusConflict, resp.Code)
	assert.False(t, env.Success)
	assert.Equal(t, "SCHEDULING_CONFLICT", env.Error.Code)

	resp, env = performRequest(router, http.MethodGet, "/api/v1/tasks/42", nil)
	assert.Equal(t, http.StatusNotFound, resp.Code)
	assert.Equal(t, "NOT_FOUND", env.Error.Code)

	resp, env = performRequest(router, http.MethodGet, "/api/v1/tasks/abc", nil)
	assert.Equal(t, http.StatusBadRequest, resp.Code)
	assert.Equal(t, "INVALID_ID", env.Error.Code)

	resp, env = performRequest(router, http.MethodPost, "/api/v1/tasks", map[string]any{"order_id": 1, "complexity": "simple"})
	assert.Equal(t, http.StatusBadRequest, resp.Code)
	assert.Equal(t, "VALIDATION_ERROR", env.Error.Code)
	assert.Equal(t, "deadline", env.Error.Details["field"])
}
