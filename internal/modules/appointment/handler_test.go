package appointment

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
	f := setup(t)
	router := gin.New()
	NewHandler(f.svc, f.svc.cal).RegisterRoutes(router.Group("/api/v1"))
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

func TestHandlerBookingFlow(t *testing.T) {
	router := setupRouter(t)
	body := BookRequest{CustomerID: 5, Type: calendar.Consultation, AppointmentTime: on(wednesday, 10, 0)}

	resp, env := performRequest(router, http.MethodPost, "/api/v1/appointments", body)
	require.Equal(t, http.StatusCreated, resp.Code, resp.Body.String())
	var booked BookResult
	require.NoError(t, json.Unmarshal(env.Data, &booked))
	assert.NotEmpty(t, booked.ConfirmationNumber)

	resp, env = performRequest(router, http.MethodPost, "/api/v1/appointments", body)
	assert.Equal(t, http.StatusConflict, resp.Code)
	assert.Equal(t, "SLOT_UNAVAILABLE", env.Error.Code)
	assert.Equal(t, "capacity", env.Error.Details["conflict_kind"])

	path := "/api/v1/appointments/" + booked.AppointmentID.String()
	resp, env = performRequest(router, http.MethodPut, path+"/reschedule", RescheduleRequest{NewTime: on(thursday, 9, 0)})
	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())
	var moved struct {
		Success bool   `json:"success"`
		NewTime string `json:"new_time"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &moved))
	assert.True(t, moved.Success)
	assert.Equal(t, "2025-11-06T09:00:00Z", moved.NewTime)

	resp, _ = performRequest(router, http.MethodGet, path+"/history", nil)
	assert.Equal(t, http.StatusOK, resp.Code)

	resp, _ = performRequest(router, http.MethodPost, path+"/cancel", nil)
	assert.Equal(t, http.StatusOK, resp.Code)
}

func TestHandlerSlotsAndErrors(t *testing.T) {
	router := setupRouter(t)

	resp, env := performRequest(router, http.MethodGet, "/api/v1/appointments/slots?type=pickup&date=2025-11-05&days_ahead=1", nil)
	require.Equal(t, http.StatusOK, resp.Code)
	var data struct {
		Count int `json:"count"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &data))
	assert.Positive(t, data.Count)

	resp, env = performRequest(router, http.MethodGet, "/api/v1/appointments/slots?type=tattoo", nil)
	assert.Equal(t, http.StatusBadRequest, resp.Code)
	assert.Equal(t, "VALIDATION_ERROR", env.Error.Code)

	resp, env = performRequest(router, http.MethodGet, "/api/v1/appointments/not-a-uuid", nil)
	assert.Equal(t, http.StatusBadRequest, resp.Code)
	assert.Equal(t, "INVALID_ID", env.Error.Code)

	resp, env = performRequest(router, http.MethodGet, "/api/v1/appointments/impact?date=2025-11-05", nil)
	assert.Equal(t, http.StatusOK, resp.Code)

	resp, env = performRequest(router, http.MethodGet, "/api/v1/appointments/impact", nil)
	assert.Equal(t, http.StatusBadRequest, resp.Code)
	assert.Equal(t, "VALIDATION_ERROR", env.Error.Code)
}
