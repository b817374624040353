package analytics

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"framestudio/internal/pkg/response"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/analytics/schedule", h.Schedule)
	rg.GET("/analytics/appointments", h.Appointments)
}

// Schedule returns production statistics for a date range.
// @Summary		Schedule analytics
// @Tags		Analytics
// @Param		start_date	query	string	true	"YYYY-MM-DD"
// @Param		end_date	query	string	true	"YYYY-MM-DD, inclusive"
// @Success		200	{object}	map[string]interface{}
// @Router		/analytics/schedule [GET]
func (h *Handler) Schedule(c *gin.Context) {
	var q RangeQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		response.Error(c, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid query parameters")
		return
	}
	res, err := h.svc.GetScheduleAnalytics(c.Request.Context(), q)
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.Success(c, http.StatusOK, res)
}

func (h *Handler) Appointments(c *gin.Context) {
	var q RangeQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		response.Error(c, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid query parameters")
		return
	}
	res, err := h.svc.GetAppointmentAnalytics(c.Request.Context(), q)
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.Success(c, http.StatusOK, res)
}
