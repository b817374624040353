package domain

import "time"

// DailyWorkload is the per-day cache row. It is always recomputable from
// ScheduledTask and Appointment rows.
type DailyWorkload struct {
	Date                  string    `json:"date" gorm:"type:varchar(10);primaryKey"`
	TotalProductionHours  float64   `json:"total_production_hours"`
	TotalAppointmentHours float64   `json:"total_appointment_hours"`
	TotalScheduledHours   float64   `json:"total_scheduled_hours"`
	Utilization           float64   `json:"utilization"`
	TaskCount             int       `json:"task_count"`
	AppointmentCount      int       `json:"appointment_count"`
	UpdatedAt             time.Time `json:"updated_at"`
}

func (DailyWorkload) TableName() string { return "daily_workload" }

// CalendarDayLock rows are locked FOR UPDATE to serialize writes on one day.
type CalendarDayLock struct {
	Day string `gorm:"type:varchar(10);primaryKey"`
}

func (CalendarDayLock) TableName() string { return "calendar_day_locks" }
