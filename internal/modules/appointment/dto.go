package appointment

import (
	"time"

	"github.com/google/uuid"

	"framestudio/internal/domain"
	"framestudio/internal/modules/calendar"
)

type SlotQuery struct {
	Type          calendar.AppointmentType `form:"type" json:"type" validate:"required"`
	PreferredDate string                   `form:"date" json:"date,omitempty"`
	DaysAhead     int                      `form:"days_ahead" json:"days_ahead" validate:"omitempty,gte=1,lte=60"`
}

type DayLoad struct {
	Utilization float64                   `json:"utilization"`
	Category    calendar.WorkloadCategory `json:"category"`
	TotalHours  float64                   `json:"total_hours"`
}

type Slot struct {
	StartTime           time.Time                `json:"start_time"`
	EndTime             time.Time                `json:"end_time"`
	Date                string                   `json:"date"`
	Time                string                   `json:"time"`
	Type                calendar.AppointmentType `json:"type"`
	RecommendationScore int                      `json:"recommendation_score"`
	IsRecommended       bool                     `json:"is_recommended"`
	RemainingCapacity   int                      `json:"remaining_capacity"`
	Workload            DayLoad                  `json:"workload"`
}

type OptimalTime struct {
	Slot
	FormattedDate string   `json:"formatted_date"`
	FormattedTime string   `json:"formatted_time"`
	Benefits      []string `json:"benefits"`
}

type BookRequest struct {
	CustomerID          int64                    `json:"customer_id" validate:"required,gt=0"`
	Type                calendar.AppointmentType `json:"type" validate:"required"`
	AppointmentTime     time.Time                `json:"appointment_time" validate:"required"`
	Notes               string                   `json:"notes,omitempty" validate:"max=2000"`
	ContactMethod       string                   `json:"contact_method,omitempty" validate:"omitempty,oneof=email sms phone"`
	ReminderPreferences []int                    `json:"reminder_preferences,omitempty" validate:"omitempty,max=5,dive,gt=0,lte=168"`
}

// WorkloadImpact describes a day before and after a prospective booking.
// ProjectedUtilization and Category assume the configured impact estimate;
// BookedUtilization and BookedCategory are set only by a booking and use the
// appointment's real duration.
type WorkloadImpact struct {
	Date                 string                    `json:"date"`
	CurrentUtilization   float64                   `json:"current_utilization"`
	ProjectedUtilization float64                   `json:"projected_utilization"`
	Category             calendar.WorkloadCategory `json:"category"`
	BookedUtilization    *float64                  `json:"booked_utilization,omitempty"`
	BookedCategory       calendar.WorkloadCategory `json:"booked_category,omitempty"`
	Impact               string                    `json:"impact"`
	Recommendation       string                    `json:"recommendation,omitempty"`
}

type BookResult struct {
	AppointmentID      uuid.UUID           `json:"appointment_id"`
	ConfirmationNumber string              `json:"confirmation_number"`
	Appointment        *domain.Appointment `json:"appointment"`
	WorkloadImpact     *WorkloadImpact     `json:"workload_impact"`
}

type RescheduleRequest struct {
	NewTime time.Time `json:"new_time" validate:"required"`
	Reason  string    `json:"reason,omitempty" validate:"max=500"`
}

type RescheduleResult struct {
	Success     bool                `json:"success"`
	NewTime     time.Time           `json:"new_time"`
	Appointment *domain.Appointment `json:"appointment"`
}

type CancelRequest struct {
	Reason string `json:"reason,omitempty" validate:"max=500"`
}

type StatusRequest struct {
	Status domain.AppointmentStatus `json:"status" validate:"required,oneof=completed no_show"`
}
