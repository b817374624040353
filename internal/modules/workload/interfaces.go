package workload

import (
	"context"
	"time"

	"framestudio/internal/domain"
)

// Reader is the slice of the calendar store needed to compute a day's load.
// Both the plain store and a transaction-bound store satisfy it.
type Reader interface {
	ListActiveTasksBetween(ctx context.Context, from, to time.Time) ([]domain.ScheduledTask, error)
	ListActiveAppointmentsBetween(ctx context.Context, from, to time.Time) ([]domain.Appointment, error)
}
