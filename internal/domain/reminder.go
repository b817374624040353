package domain

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type ReminderStatus string

const (
	ReminderPending ReminderStatus = "pending"
	ReminderSent    ReminderStatus = "sent"
	ReminderFailed  ReminderStatus = "failed"
)

// ScheduledReminder is derived from an Appointment, one row per lead time.
type ScheduledReminder struct {
	ID            uuid.UUID      `json:"id" gorm:"type:uuid;primaryKey"`
	AppointmentID uuid.UUID      `json:"appointment_id" gorm:"type:uuid;not null;index"`
	CustomerID    int64          `json:"customer_id" gorm:"not null"`
	ReminderTime  time.Time      `json:"reminder_time" gorm:"not null;index"`
	Method        string         `json:"method" gorm:"type:varchar(16);not null"`
	Status        ReminderStatus `json:"status" gorm:"type:varchar(16);not null;index"`
	Attempts      int            `json:"attempts" gorm:"not null;default:0"`
	LastError     string         `json:"last_error,omitempty" gorm:"type:text"`
	CreatedAt     time.Time      `json:"created_at"`
	UpdatedAt     time.Time      `json:"updated_at"`
}

func (ScheduledReminder) TableName() string { return "scheduled_reminders" }

func (r *ScheduledReminder) BeforeCreate(_ *gorm.DB) error {
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	return nil
}
