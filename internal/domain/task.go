package domain

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"framestudio/internal/modules/calendar"
)

type TaskStatus string

const (
	TaskScheduled  TaskStatus = "scheduled"
	TaskInProgress TaskStatus = "in_progress"
	TaskCompleted  TaskStatus = "completed"
	TaskDelayed    TaskStatus = "delayed"
	TaskCancelled  TaskStatus = "cancelled"
)

// ActiveTaskStatuses occupy calendar time and count towards workload.
var ActiveTaskStatuses = []TaskStatus{TaskScheduled, TaskInProgress}

func (s TaskStatus) Valid() bool {
	switch s {
	case TaskScheduled, TaskInProgress, TaskCompleted, TaskDelayed, TaskCancelled:
		return true
	}
	return false
}

func (s TaskStatus) Active() bool {
	return s == TaskScheduled || s == TaskInProgress
}

// Terminal statuses release dependents.
func (s TaskStatus) Terminal() bool {
	return s == TaskCompleted || s == TaskCancelled
}

// ScheduledTask is one production unit of work tied to an order.
type ScheduledTask struct {
	ID                  uuid.UUID                  `json:"id" gorm:"type:uuid;primaryKey"`
	OrderID             int64                      `json:"order_id" gorm:"not null;index"`
	StartTime           time.Time                  `json:"start_time" gorm:"not null;index"`
	EndTime             time.Time                  `json:"end_time" gorm:"not null;index"`
	Complexity          calendar.Complexity        `json:"complexity" gorm:"type:varchar(16);not null"`
	EstimatedHours      float64                    `json:"estimated_hours" gorm:"not null"`
	ActualHours         *float64                   `json:"actual_hours,omitempty"`
	Status              TaskStatus                 `json:"status" gorm:"type:varchar(16);not null;index"`
	Priority            int                        `json:"priority" gorm:"not null;index"`
	Deadline            time.Time                  `json:"deadline" gorm:"not null"`
	Dependencies        datatypes.JSONSlice[int64] `json:"dependencies"`
	CustomerPreferences datatypes.JSONSlice[int]   `json:"customer_preferences"`
	CreatedAt           time.Time                  `json:"created_at"`
	UpdatedAt           time.Time                  `json:"updated_at"`
}

func (ScheduledTask) TableName() string { return "scheduled_tasks" }

func (t *ScheduledTask) BeforeCreate(_ *gorm.DB) error {
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	return nil
}

func (t *ScheduledTask) DependsOn(orderID int64) bool {
	for _, d := range t.Dependencies {
		if d == orderID {
			return true
		}
	}
	return false
}
