package analytics

import (
	"framestudio/internal/domain"
	"framestudio/internal/modules/calendar"
)

type RangeQuery struct {
	StartDate string `form:"start_date" json:"start_date" validate:"required"`
	EndDate   string `form:"end_date" json:"end_date" validate:"required"`
}

type DayWorkload struct {
	Date             string                    `json:"date"`
	Utilization      float64                   `json:"utilization"`
	Category         calendar.WorkloadCategory `json:"category"`
	TotalHours       float64                   `json:"total_hours"`
	TaskCount        int                       `json:"task_count"`
	AppointmentCount int                       `json:"appointment_count"`
}

type ScheduleAnalytics struct {
	StartDate               string                    `json:"start_date"`
	EndDate                 string                    `json:"end_date"`
	TotalTasks              int                       `json:"total_tasks"`
	ByStatus                map[domain.TaskStatus]int `json:"by_status"`
	CompletionRate          float64                   `json:"completion_rate"`
	DelayRate               float64                   `json:"delay_rate"`
	AverageEstimatedHours   float64                   `json:"average_estimated_hours"`
	AverageActualHours      float64                   `json:"average_actual_hours"`
	AverageDailyUtilization float64                   `json:"average_daily_utilization"`
	Days                    []DayWorkload             `json:"days"`
}

type Counts struct {
	Total     int `json:"total"`
	Confirmed int `json:"confirmed"`
	Completed int `json:"completed"`
	NoShow    int `json:"no_show"`
	Cancelled int `json:"cancelled"`
}

type DayCounts struct {
	Date string `json:"date"`
	Counts
}

type TypeCounts struct {
	Type calendar.AppointmentType `json:"type"`
	Counts
	AverageDurationHours float64 `json:"average_duration_hours"`
}

type AppointmentAnalytics struct {
	StartDate          string       `json:"start_date"`
	EndDate            string       `json:"end_date"`
	Totals             Counts       `json:"totals"`
	ByDay              []DayCounts  `json:"by_day"`
	ByType             []TypeCounts `json:"by_type"`
	AverageUtilization float64      `json:"average_utilization"`
}
