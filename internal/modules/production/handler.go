package production

import (
	"net/http"
	"strconv"

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
	rg.POST("/tasks", h.ScheduleOrder)
	rg.GET("/tasks/:order_id", h.GetTask)
	rg.PATCH("/tasks/:order_id/progress", h.UpdateProgress)
	rg.POST("/tasks/optimize", h.Optimize)
}

// ScheduleOrder places a framing order on the production calendar.
// @Summary		Schedule order
// @Tags		Production
// @Param		request	body	ScheduleOrderRequest	true	"Order to place"
// @Success		201	{object}	map[string]interface{}
// @Failure		400	{object}	map[string]interface{}
// @Failure		409	{object}	map[string]interface{}	"No feasible slot before the deadline"
// @Failure		422	{object}	map[string]interface{}	"Dependency cannot finish in time"
// @Router		/tasks [POST]
func (h *Handler) ScheduleOrder(c *gin.Context) {
	var req ScheduleOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid request body")
		return
	}

	task, err := h.svc.ScheduleOrder(c.Request.Context(), req)
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.Success(c, http.StatusCreated, gin.H{"task": task})
}

func (h *Handler) GetTask(c *gin.Context) {
	orderID, ok := orderIDParam(c)
	if !ok {
		return
	}
	task, err := h.svc.GetTask(c.Request.Context(), orderID)
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"task": task})
}

// UpdateProgress records actual hours and a status change.
// @Summary		Update task progress
// @Tags		Production
// @Param		order_id	path	int	true	"Order ID"
// @Param		request	body	UpdateProgressRequest	true	"Progress"
// @Success		200	{object}	map[string]interface{}
// @Failure		404	{object}	map[string]interface{}
// @Router		/tasks/{order_id}/progress [PATCH]
func (h *Handler) UpdateProgress(c *gin.Context) {
	orderID, ok := orderIDParam(c)
	if !ok {
		return
	}
	var req UpdateProgressRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid request body")
		return
	}

	res, err := h.svc.UpdateTaskProgress(c.Request.Context(), orderID, req)
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.Success(c, http.StatusOK, res)
}

func (h *Handler) Optimize(c *gin.Context) {
	res, err := h.svc.OptimizeSchedule(c.Request.Context())
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.Success(c, http.StatusOK, res)
}

func orderIDParam(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("order_id"), 10, 64)
	if err != nil || id <= 0 {
		response.Error(c, http.StatusBadRequest, "INVALID_ID", "Invalid order ID")
		return 0, false
	}
	return id, true
}
