// Package reminder derives appointment reminders and hands due ones to the
// notification collaborator.
package reminder

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/cenkalti/backoff/v4"

	"framestudio/internal/domain"
	"framestudio/internal/modules/calendar"
	"framestudio/internal/pkg/logger"
	"framestudio/internal/repository"
)

const DefaultMethod = "email"

// Derive returns one pending reminder per distinct lead time that still lies
// after now. The appointment's own preferences win over defaultLeads.
func Derive(a domain.Appointment, defaultLeads []int, now time.Time) []domain.ScheduledReminder {
	leads := []int(a.ReminderPreferences)
	if len(leads) == 0 {
		leads = defaultLeads
	}
	method := a.ContactMethod
	if method == "" {
		method = DefaultMethod
	}

	seen := make(map[int]bool, len(leads))
	var out []domain.ScheduledReminder
	for _, h := range leads {
		if h <= 0 || seen[h] {
			continue
		}
		seen[h] = true
		at := a.AppointmentTime.Add(-time.Duration(h) * time.Hour)
		if !at.After(now) {
			continue
		}
		out = append(out, domain.ScheduledReminder{
			AppointmentID: a.ID,
			CustomerID:    a.CustomerID,
			ReminderTime:  at.UTC(),
			Method:        method,
			Status:        domain.ReminderPending,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ReminderTime.Before(out[j].ReminderTime) })
	return out
}

// Scheduler keeps the reminder rows of an appointment in step with its
// current time. Every call is best effort.
type Scheduler struct {
	store repository.Calendar
	cal   *calendar.Calendar
	log   logger.Logger
}

func NewScheduler(store repository.Calendar, cal *calendar.Calendar, log logger.Logger) *Scheduler {
	if log == nil {
		log = logger.Nop{}
	}
	return &Scheduler{store: store, cal: cal, log: log}
}

// Regenerate drops the appointment's reminders and derives them afresh.
func (s *Scheduler) Regenerate(ctx context.Context, a domain.Appointment) {
	reminders := Derive(a, s.cal.Config().ReminderLeadHours, s.cal.Now())
	err := s.retry(ctx, func(ctx context.Context) error {
		rs := append([]domain.ScheduledReminder(nil), reminders...)
		return s.store.ReplaceReminders(ctx, a.ID, rs)
	})
	if err != nil {
		s.log.Warnw("reminder regeneration failed", map[string]any{"appointment_id": a.ID.String(), "error": err.Error()})
		return
	}
	s.log.Debugf("appointment %s: %d reminders scheduled", a.ID, len(reminders))
}

// Drop removes the appointment's pending reminders.
func (s *Scheduler) Drop(ctx context.Context, a domain.Appointment) {
	err := s.retry(ctx, func(ctx context.Context) error {
		return s.store.DeletePendingReminders(ctx, a.ID)
	})
	if err != nil {
		s.log.Warnw("reminder removal failed", map[string]any{"appointment_id": a.ID.String(), "error": err.Error()})
	}
}

func (s *Scheduler) retry(ctx context.Context, op func(context.Context) error) error {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancel()
	policy := backoff.WithContext(backoff.WithMaxRetries(backoff.NewConstantBackOff(50*time.Millisecond), 2), ctx)
	if err := backoff.Retry(func() error { return op(ctx) }, policy); err != nil {
		return fmt.Errorf("after retries: %w", err)
	}
	return nil
}
