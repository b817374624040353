package production

import (
	"time"

	"framestudio/internal/domain"
	"framestudio/internal/modules/calendar"
)

type CustomerPreferences struct {
	PreferredHours []int `json:"preferred_hours" validate:"omitempty,dive,gte=0,lte=23"`
}

type ScheduleOrderRequest struct {
	OrderID             int64               `json:"order_id" validate:"required,gt=0"`
	Complexity          calendar.Complexity `json:"complexity" validate:"required"`
	EstimatedHours      *float64            `json:"estimated_hours,omitempty" validate:"omitempty,gt=0,lte=24"`
	Priority            *int                `json:"priority,omitempty" validate:"omitempty,gte=0"`
	Deadline            time.Time           `json:"deadline"`
	Dependencies        []int64             `json:"dependencies,omitempty" validate:"omitempty,dive,gt=0"`
	CustomerPreferences CustomerPreferences `json:"customer_preferences"`
}

type UpdateProgressRequest struct {
	ActualHours *float64          `json:"actual_hours,omitempty" validate:"omitempty,gte=0"`
	Status      domain.TaskStatus `json:"status" validate:"required"`
}

type ProgressResult struct {
	Task *domain.ScheduledTask `json:"task"`
	// EligibleDependents are scheduled orders whose dependency on this task
	// was released. They are not moved automatically.
	EligibleDependents []int64 `json:"eligible_dependents,omitempty"`
}

type OptimizeResult struct {
	Considered  int     `json:"considered"`
	Moved       int     `json:"moved"`
	Unplaceable []int64 `json:"unplaceable,omitempty"`
}
