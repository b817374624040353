package appointment

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"framestudio/internal/domain"
	"framestudio/internal/metrics"
	"framestudio/internal/modules/calendar"
	"framestudio/internal/modules/reminder"
	"framestudio/internal/modules/workload"
	"framestudio/internal/pkg/apperr"
	"framestudio/internal/pkg/logger"
	"framestudio/internal/pkg/validator"
	"framestudio/internal/repository"
)

const (
	defaultDaysAhead  = 7
	maxOptimalTimes   = 10
	confirmationStart = "FS"
	maxLockAttempts   = 3
)

type Service struct {
	store     repository.Calendar
	cal       *calendar.Calendar
	workload  *workload.Engine
	reminders *reminder.Scheduler
	log       logger.Logger
	metrics   metrics.Recorder
}

func NewService(store repository.Calendar, cal *calendar.Calendar, wl *workload.Engine, reminders *reminder.Scheduler, log logger.Logger, rec metrics.Recorder) *Service {
	if log == nil {
		log = logger.Nop{}
	}
	if rec == nil {
		rec = metrics.Nop{}
	}
	return &Service{store: store, cal: cal, workload: wl, reminders: reminders, log: log, metrics: rec}
}

// GetAvailableSlots lists bookable starts for typ on each working day of
// [preferred date or tomorrow, +daysAhead), best first. The list is a hint:
// booking re-validates.
func (s *Service) GetAvailableSlots(ctx context.Context, q SlotQuery) ([]Slot, error) {
	began := time.Now()
	defer func() { s.metrics.SlotGeneration(time.Since(began)) }()

	if err := validator.Check(q); err != nil {
		return nil, err
	}
	tc, err := s.cal.AppointmentType(q.Type)
	if err != nil {
		return nil, err
	}
	days := q.DaysAhead
	if days == 0 {
		days = defaultDaysAhead
	}

	now := s.cal.Now()
	first := s.cal.StartOfDay(now).AddDate(0, 0, 1)
	if q.PreferredDate != "" {
		if first, err = s.cal.ParseDay(q.PreferredDate); err != nil {
			return nil, err
		}
	}
	last := first.AddDate(0, 0, days)

	tasks, err := s.store.ListActiveTasksBetween(ctx, first, last)
	if err != nil {
		return nil, fmt.Errorf("load tasks: %w", err)
	}
	appts, err := s.store.ListActiveAppointmentsBetween(ctx, first, last)
	if err != nil {
		return nil, fmt.Errorf("load appointments: %w", err)
	}
	occ := &occupancy{cal: s.cal, appts: appts, tasks: tasks}
	threshold := s.cal.Config().RecommendedScore

	var slots []Slot
	for day := first; day.Before(last); day = day.AddDate(0, 0, 1) {
		starts := candidates(s.cal, day, tc.Duration(), now)
		if len(starts) == 0 {
			continue
		}
		load := workload.Summarize(s.cal, day, tasks, appts)
		dl := DayLoad{
			Utilization: load.Utilization,
			Category:    s.cal.Categorize(load.Utilization),
			TotalHours:  load.TotalScheduledHours,
		}
		for _, start := range starts {
			remaining, c := occ.fits(q.Type, tc, start, uuid.Nil)
			if c != nil {
				continue
			}
			score := CalculateRecommendationScore(start, dl.Utilization, tc)
			slots = append(slots, Slot{
				StartTime:           start,
				EndTime:             start.Add(tc.Duration()),
				Date:                s.cal.DayKey(start),
				Time:                start.Format("15:04"),
				Type:                q.Type,
				RecommendationScore: score,
				IsRecommended:       score >= threshold,
				RemainingCapacity:   remaining,
				Workload:            dl,
			})
		}
	}

	sort.SliceStable(slots, func(i, j int) bool {
		a, b := slots[i], slots[j]
		if a.RecommendationScore != b.RecommendationScore {
			return a.RecommendationScore > b.RecommendationScore
		}
		if ra, rb := a.Workload.Category.Rank(), b.Workload.Category.Rank(); ra != rb {
			return ra < rb
		}
		return a.StartTime.Before(b.StartTime)
	})
	return slots, nil
}

// GetOptimalAppointmentTimes returns the ten best recommended slots over the
// next days, each with display strings and the reasons it ranks well.
func (s *Service) GetOptimalAppointmentTimes(ctx context.Context, typ calendar.AppointmentType, nextDays int) ([]OptimalTime, error) {
	slots, err := s.GetAvailableSlots(ctx, SlotQuery{Type: typ, DaysAhead: nextDays})
	if err != nil {
		return nil, err
	}
	out := make([]OptimalTime, 0, maxOptimalTimes)
	for _, slot := range slots {
		if !slot.IsRecommended {
			continue
		}
		out = append(out, OptimalTime{
			Slot:          slot,
			FormattedDate: slot.StartTime.Format("Monday, January 2, 2006"),
			FormattedTime: slot.StartTime.Format("3:04 PM"),
			Benefits:      benefits(slot),
		})
		if len(out) == maxOptimalTimes {
			break
		}
	}
	return out, nil
}

// BookAppointment re-checks the requested interval against appointments and
// production tasks under the day's lock and stores the appointment if it
// still fits. Reminders and the workload cache follow on a best-effort basis.
func (s *Service) BookAppointment(ctx context.Context, req BookRequest) (*BookResult, error) {
	if err := validator.Check(req); err != nil {
		return nil, err
	}
	tc, err := s.cal.AppointmentType(req.Type)
	if err != nil {
		return nil, err
	}
	start, end, err := s.validateWindow(req.AppointmentTime, tc, "appointment_time")
	if err != nil {
		return nil, err
	}

	a := &domain.Appointment{
		ID:                  uuid.New(),
		CustomerID:          req.CustomerID,
		Type:                req.Type,
		AppointmentTime:     start,
		AppointmentEnd:      end,
		Status:              domain.AppointmentConfirmed,
		Notes:               req.Notes,
		ContactMethod:       req.ContactMethod,
		ReminderPreferences: req.ReminderPreferences,
	}
	if a.ContactMethod == "" {
		a.ContactMethod = reminder.DefaultMethod
	}
	a.ConfirmationNumber = ConfirmationNumber(a.ID, start)

	var impact *WorkloadImpact
	err = s.store.WithDayLock(ctx, []string{s.cal.DayKey(start)}, func(tx repository.Calendar) error {
		occ, err := s.occupancyOn(ctx, tx, start)
		if err != nil {
			return err
		}
		if _, c := occ.fits(req.Type, tc, start, uuid.Nil); c != nil {
			return unavailable(c)
		}
		before := workload.Summarize(s.cal, start, occ.tasks, occ.appts)
		impact = s.impactOf(before)
		booked := s.cal.Utilization(before.TotalScheduledHours + a.Hours())
		impact.BookedUtilization = &booked
		impact.BookedCategory = s.cal.Categorize(booked)
		return tx.CreateAppointment(ctx, a)
	})
	if err != nil {
		s.metrics.BookingResult(string(req.Type), resultOf(err))
		return nil, err
	}
	s.metrics.BookingResult(string(req.Type), "booked")

	if impact.Impact == impactHigh {
		s.log.Warnw("appointment booked on a busy day", map[string]any{
			"appointment_id": a.ID.String(), "date": impact.Date, "projected_utilization": impact.ProjectedUtilization,
		})
	}
	s.reminders.Regenerate(ctx, *a)
	s.workload.RefreshBestEffort(ctx, start)

	return &BookResult{
		AppointmentID:      a.ID,
		ConfirmationNumber: a.ConfirmationNumber,
		Appointment:        a,
		WorkloadImpact:     impact,
	}, nil
}

// RescheduleAppointment moves a confirmed appointment to newTime, keeping
// its type. Both days are locked so that the move is checked and written as
// one step; the old interval does not count against the new one.
func (s *Service) RescheduleAppointment(ctx context.Context, id uuid.UUID, req RescheduleRequest) (*RescheduleResult, error) {
	if err := validator.Check(req); err != nil {
		return nil, err
	}

	for attempt := 0; attempt < maxLockAttempts; attempt++ {
		current, err := s.GetAppointment(ctx, id)
		if err != nil {
			return nil, err
		}
		tc, err := s.cal.AppointmentType(current.Type)
		if err != nil {
			return nil, err
		}
		start, end, err := s.validateWindow(req.NewTime, tc, "new_time")
		if err != nil {
			return nil, err
		}
		oldStart := current.AppointmentTime

		var updated *domain.Appointment
		days := []string{s.cal.DayKey(oldStart), s.cal.DayKey(start)}
		err = s.store.WithDayLock(ctx, days, func(tx repository.Calendar) error {
			a, err := tx.GetAppointment(ctx, id)
			if err != nil {
				return err
			}
			if !a.AppointmentTime.Equal(oldStart) {
				return errMoved
			}
			if a.Status != domain.AppointmentConfirmed {
				return ErrNotConfirmed.With("status", string(a.Status))
			}
			occ, err := s.occupancyOn(ctx, tx, start)
			if err != nil {
				return err
			}
			if _, c := occ.fits(a.Type, tc, start, a.ID); c != nil {
				return unavailable(c)
			}

			a.AppointmentTime, a.AppointmentEnd = start, end
			if err := tx.SaveAppointment(ctx, a); err != nil {
				return err
			}
			if err := tx.AppendHistory(ctx, &domain.AppointmentHistory{
				AppointmentID: a.ID,
				Action:        domain.HistoryRescheduled,
				OldValue:      oldStart.UTC().Format(time.RFC3339),
				NewValue:      start.UTC().Format(time.RFC3339),
				Reason:        req.Reason,
			}); err != nil {
				return err
			}
			updated = a
			return nil
		})
		if errors.Is(err, errMoved) {
			continue
		}
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrAppointmentNotFound.With("id", id.String())
		}
		if err != nil {
			return nil, err
		}

		s.reminders.Regenerate(ctx, *updated)
		s.workload.RefreshBestEffort(ctx, oldStart, start)
		return &RescheduleResult{Success: true, NewTime: updated.AppointmentTime, Appointment: updated}, nil
	}
	return nil, apperr.New(apperr.KindUnavailable, "appointment %s kept moving, try again", id)
}

// CancelAppointment releases a confirmed appointment's slot.
func (s *Service) CancelAppointment(ctx context.Context, id uuid.UUID, req CancelRequest) (*domain.Appointment, error) {
	if err := validator.Check(req); err != nil {
		return nil, err
	}
	return s.transition(ctx, id, func(a *domain.Appointment) *domain.AppointmentHistory {
		now := s.cal.Now().UTC()
		a.Status = domain.AppointmentCancelled
		a.CancellationReason = req.Reason
		a.CancelledAt = &now
		return &domain.AppointmentHistory{
			AppointmentID: a.ID,
			Action:        domain.HistoryCancelled,
			OldValue:      string(domain.AppointmentConfirmed),
			NewValue:      string(domain.AppointmentCancelled),
			Reason:        req.Reason,
		}
	})
}

// UpdateAppointmentStatus closes a confirmed appointment as completed or
// no_show.
func (s *Service) UpdateAppointmentStatus(ctx context.Context, id uuid.UUID, req StatusRequest) (*domain.Appointment, error) {
	if err := validator.Check(req); err != nil {
		return nil, err
	}
	return s.transition(ctx, id, func(a *domain.Appointment) *domain.AppointmentHistory {
		a.Status = req.Status
		return &domain.AppointmentHistory{
			AppointmentID: a.ID,
			Action:        domain.HistoryStatus,
			OldValue:      string(domain.AppointmentConfirmed),
			NewValue:      string(req.Status),
		}
	})
}

func (s *Service) transition(ctx context.Context, id uuid.UUID, apply func(*domain.Appointment) *domain.AppointmentHistory) (*domain.Appointment, error) {
	current, err := s.GetAppointment(ctx, id)
	if err != nil {
		return nil, err
	}

	var updated *domain.Appointment
	err = s.store.WithDayLock(ctx, []string{s.cal.DayKey(current.AppointmentTime)}, func(tx repository.Calendar) error {
		a, err := tx.GetAppointment(ctx, id)
		if err != nil {
			return err
		}
		if a.Status != domain.AppointmentConfirmed {
			return ErrNotConfirmed.With("status", string(a.Status))
		}
		h := apply(a)
		if err := tx.SaveAppointment(ctx, a); err != nil {
			return err
		}
		if err := tx.AppendHistory(ctx, h); err != nil {
			return err
		}
		updated = a
		return nil
	})
	if errors.Is(err, repository.ErrNotFound) {
		return nil, ErrAppointmentNotFound.With("id", id.String())
	}
	if err != nil {
		return nil, err
	}

	s.reminders.Drop(ctx, *updated)
	s.workload.RefreshBestEffort(ctx, updated.AppointmentTime)
	return updated, nil
}

func (s *Service) GetAppointment(ctx context.Context, id uuid.UUID) (*domain.Appointment, error) {
	a, err := s.store.GetAppointment(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, ErrAppointmentNotFound.With("id", id.String())
	}
	return a, err
}

func (s *Service) ListHistory(ctx context.Context, id uuid.UUID) ([]domain.AppointmentHistory, error) {
	if _, err := s.GetAppointment(ctx, id); err != nil {
		return nil, err
	}
	return s.store.ListHistory(ctx, id)
}

func (s *Service) ListReminders(ctx context.Context, id uuid.UUID) ([]domain.ScheduledReminder, error) {
	if _, err := s.GetAppointment(ctx, id); err != nil {
		return nil, err
	}
	return s.store.ListReminders(ctx, id)
}

// CalculateWorkloadImpact reports how a prospective booking would load the
// day containing day.
func (s *Service) CalculateWorkloadImpact(ctx context.Context, day time.Time) (*WorkloadImpact, error) {
	w, err := s.workload.Snapshot(ctx, day)
	if err != nil {
		return nil, err
	}
	return s.impactOf(w), nil
}

const (
	impactHigh = "high"
	impactLow  = "low"
)

func (s *Service) impactOf(w *domain.DailyWorkload) *WorkloadImpact {
	cfg := s.cal.Config()
	projected := s.cal.Utilization(w.TotalScheduledHours + cfg.ImpactEstimateHours)
	out := &WorkloadImpact{
		Date:                 w.Date,
		CurrentUtilization:   w.Utilization,
		ProjectedUtilization: projected,
		Category:             s.cal.Categorize(projected),
		Impact:               impactLow,
	}
	if projected > cfg.HighImpactUtilization {
		out.Impact = impactHigh
		out.Recommendation = fmt.Sprintf("%s is nearly fully booked (%.0f%% projected); consider a lighter day", w.Date, projected*100)
	}
	return out
}

// validateWindow normalizes a requested start into the calendar's zone and
// checks that the whole appointment sits in working hours in the future.
func (s *Service) validateWindow(at time.Time, tc calendar.TypeConfig, field string) (time.Time, time.Time, error) {
	if at.IsZero() {
		return time.Time{}, time.Time{}, apperr.Invalid(field, "is required")
	}
	start := at.In(s.cal.Location()).Truncate(time.Minute)
	end := start.Add(tc.Duration())
	if !start.After(s.cal.Now()) {
		return time.Time{}, time.Time{}, apperr.Invalid(field, "must be in the future")
	}
	if !s.cal.WithinWorkingHours(start, end) {
		return time.Time{}, time.Time{}, apperr.Invalid(field, "%s is outside working hours", start.Format(time.RFC3339))
	}
	return start, end, nil
}

func (s *Service) occupancyOn(ctx context.Context, r repository.Calendar, day time.Time) (*occupancy, error) {
	from, to := s.cal.DayBounds(day)
	appts, err := r.ListActiveAppointmentsBetween(ctx, from, to)
	if err != nil {
		return nil, fmt.Errorf("load appointments: %w", err)
	}
	tasks, err := r.ListActiveTasksBetween(ctx, from, to)
	if err != nil {
		return nil, fmt.Errorf("load tasks: %w", err)
	}
	return &occupancy{cal: s.cal, appts: appts, tasks: tasks}, nil
}

func unavailable(c *clash) error {
	return ErrSlotUnavailable.
		With("conflict_kind", c.Kind).
		With("conflict_id", c.ID.String()).
		With("conflict_start", c.Start.UTC().Format(time.RFC3339)).
		With("conflict_end", c.End.UTC().Format(time.RFC3339))
}

func resultOf(err error) string {
	if k := apperr.KindOf(err); k != "" {
		return string(k)
	}
	return "error"
}

// ConfirmationNumber is a display code, not a secret: the prefix, the
// appointment's month and day, and four hex digits of a hash of its id.
func ConfirmationNumber(id uuid.UUID, start time.Time) string {
	sum := sha256.Sum256([]byte(id.String()))
	return confirmationStart + start.Format("0102") + strings.ToUpper(hex.EncodeToString(sum[:2]))
}
