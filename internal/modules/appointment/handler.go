package appointment

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"framestudio/internal/modules/calendar"
	"framestudio/internal/pkg/response"
)

type Handler struct {
	svc *Service
	cal *calendar.Calendar
}

func NewHandler(svc *Service, cal *calendar.Calendar) *Handler {
	return &Handler{svc: svc, cal: cal}
}

func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	appts := rg.Group("/appointments")
	{
		appts.GET("/slots", h.GetAvailableSlots)
		appts.GET("/optimal", h.GetOptimalTimes)
		appts.GET("/impact", h.GetWorkloadImpact)
		appts.POST("", h.Book)
		appts.GET("/:id", h.Get)
		appts.GET("/:id/history", h.History)
		appts.GET("/:id/reminders", h.Reminders)
		appts.PUT("/:id/reschedule", h.Reschedule)
		appts.POST("/:id/cancel", h.Cancel)
		appts.PATCH("/:id/status", h.UpdateStatus)
	}
}

// GetAvailableSlots lists bookable start times for an appointment type.
// @Summary		Available slots
// @Tags		Appointments
// @Param		type		query	string	true	"Appointment type"
// @Param		date		query	string	false	"First day (YYYY-MM-DD), default tomorrow"
// @Param		days_ahead	query	int		false	"Number of days (default 7)"
// @Success		200	{object}	map[string]interface{}
// @Failure		400	{object}	map[string]interface{}
// @Router		/appointments/slots [GET]
func (h *Handler) GetAvailableSlots(c *gin.Context) {
	var q SlotQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		response.Error(c, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid query parameters")
		return
	}
	slots, err := h.svc.GetAvailableSlots(c.Request.Context(), q)
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"slots": slots, "count": len(slots)})
}

func (h *Handler) GetOptimalTimes(c *gin.Context) {
	days, err := strconv.Atoi(c.DefaultQuery("days", "14"))
	if err != nil || days < 1 {
		response.Error(c, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid days")
		return
	}
	times, err := h.svc.GetOptimalAppointmentTimes(c.Request.Context(), calendar.AppointmentType(c.Query("type")), days)
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"optimal_times": times})
}

func (h *Handler) GetWorkloadImpact(c *gin.Context) {
	day, err := h.cal.ParseDay(c.Query("date"))
	if err != nil {
		response.FromError(c, err)
		return
	}
	impact, err := h.svc.CalculateWorkloadImpact(c.Request.Context(), day)
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.Success(c, http.StatusOK, impact)
}

// Book reserves an appointment.
// @Summary		Book appointment
// @Tags		Appointments
// @Param		request	body	BookRequest	true	"Appointment"
// @Success		201	{object}	map[string]interface{}
// @Failure		400	{object}	map[string]interface{}
// @Failure		409	{object}	map[string]interface{}	"Slot no longer available"
// @Router		/appointments [POST]
func (h *Handler) Book(c *gin.Context) {
	var req BookRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid request body")
		return
	}
	res, err := h.svc.BookAppointment(c.Request.Context(), req)
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.Success(c, http.StatusCreated, res)
}

func (h *Handler) Get(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}
	a, err := h.svc.GetAppointment(c.Request.Context(), id)
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"appointment": a})
}

func (h *Handler) History(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}
	rows, err := h.svc.ListHistory(c.Request.Context(), id)
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"history": rows})
}

func (h *Handler) Reminders(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}
	rows, err := h.svc.ListReminders(c.Request.Context(), id)
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"reminders": rows})
}

// Reschedule moves an appointment to a new start time.
// @Summary		Reschedule appointment
// @Tags		Appointments
// @Param		id		path	string				true	"Appointment ID"
// @Param		request	body	RescheduleRequest	true	"New time and reason"
// @Success		200	{object}	map[string]interface{}
// @Failure		404	{object}	map[string]interface{}
// @Failure		409	{object}	map[string]interface{}
// @Router		/appointments/{id}/reschedule [PUT]
func (h *Handler) Reschedule(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}
	var req RescheduleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid request body")
		return
	}
	res, err := h.svc.RescheduleAppointment(c.Request.Context(), id, req)
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{
		"success":  res.Success,
		"new_time": res.NewTime.Format(time.RFC3339),
	})
}

func (h *Handler) Cancel(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}
	var req CancelRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			response.Error(c, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid request body")
			return
		}
	}
	a, err := h.svc.CancelAppointment(c.Request.Context(), id, req)
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"appointment": a})
}

func (h *Handler) UpdateStatus(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}
	var req StatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid request body")
		return
	}
	a, err := h.svc.UpdateAppointmentStatus(c.Request.Context(), id, req)
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"appointment": a})
}

func idParam(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.Error(c, http.StatusBadRequest, "INVALID_ID", "Invalid appointment ID")
		return uuid.Nil, false
	}
	return id, true
}
