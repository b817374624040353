package domain

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"framestudio/internal/modules/calendar"
)

type AppointmentStatus string

const (
	AppointmentConfirmed AppointmentStatus = "confirmed"
	AppointmentCompleted AppointmentStatus = "completed"
	AppointmentCancelled AppointmentStatus = "cancelled"
	AppointmentNoShow    AppointmentStatus = "no_show"
)

func (s AppointmentStatus) Valid() bool {
	switch s {
	case AppointmentConfirmed, AppointmentCompleted, AppointmentCancelled, AppointmentNoShow:
		return true
	}
	return false
}

// Appointment is a calendar reservation tied to a customer.
type Appointment struct {
	ID                  uuid.UUID                `json:"id" gorm:"type:uuid;primaryKey"`
	CustomerID          int64                    `json:"customer_id" gorm:"not null;index"`
	Type                calendar.AppointmentType `json:"type" gorm:"type:varchar(32);not null;index"`
	AppointmentTime     time.Time                `json:"appointment_time" gorm:"not null;index"`
	AppointmentEnd      time.Time                `json:"appointment_end" gorm:"not null"`
	Status              AppointmentStatus        `json:"status" gorm:"type:varchar(16);not null;index"`
	Notes               string                   `json:"notes,omitempty" gorm:"type:text"`
	ContactMethod       string                   `json:"contact_method" gorm:"type:varchar(16)"`
	ReminderPreferences datatypes.JSONSlice[int] `json:"reminder_preferences"`
	ConfirmationNumber  string                   `json:"confirmation_number" gorm:"type:varchar(16);index"`
	CancellationReason  string                   `json:"cancellation_reason,omitempty" gorm:"type:text"`
	CreatedAt           time.Time                `json:"created_at"`
	UpdatedAt           time.Time                `json:"updated_at"`
	CancelledAt         *time.Time               `json:"cancelled_at,omitempty"`
}

func (Appointment) TableName() string { return "appointments" }

func (a *Appointment) BeforeCreate(_ *gorm.DB) error {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	return nil
}

func (a *Appointment) Hours() float64 {
	return a.AppointmentEnd.Sub(a.AppointmentTime).Hours()
}

// AppointmentHistory is an append-only audit row for reschedules and cancellations.
type AppointmentHistory struct {
	ID            uuid.UUID `json:"id" gorm:"type:uuid;primaryKey"`
	AppointmentID uuid.UUID `json:"appointment_id" gorm:"type:uuid;not null;index"`
	Action        string    `json:"action" gorm:"type:varchar(32);not null"`
	OldValue      string    `json:"old_value"`
	NewValue      string    `json:"new_value"`
	Reason        string    `json:"reason,omitempty" gorm:"type:text"`
	CreatedAt     time.Time `json:"timestamp" gorm:"autoCreateTime"`
}

const (
	HistoryRescheduled = "rescheduled"
	HistoryCancelled   = "cancelled"
	HistoryStatus      = "status_changed"
)

func (AppointmentHistory) TableName() string { return "appointment_history" }

func (h *AppointmentHistory) BeforeCreate(_ *gorm.DB) error {
	if h.ID == uuid.Nil {
		h.ID = uuid.New()
	}
	return nil
}
