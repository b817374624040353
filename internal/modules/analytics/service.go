// Package analytics aggregates schedule and appointment statistics over a
// date range. It only reads.
package analytics

import (
	"context"
	"fmt"
	"sort"
	"time"

	"gonum.org/v1/gonum/stat"

	"framestudio/internal/domain"
	"framestudio/internal/modules/calendar"
	"framestudio/internal/modules/workload"
	"framestudio/internal/pkg/apperr"
	"framestudio/internal/pkg/validator"
	"framestudio/internal/repository"
)

const maxRangeDays = 366

type Service struct {
	store    repository.Calendar
	cal      *calendar.Calendar
	workload *workload.Engine
}

func NewService(store repository.Calendar, cal *calendar.Calendar, wl *workload.Engine) *Service {
	return &Service{store: store, cal: cal, workload: wl}
}

// GetScheduleAnalytics summarizes production tasks starting within
// [start, end] and the workload of every working day in it.
func (s *Service) GetScheduleAnalytics(ctx context.Context, q RangeQuery) (*ScheduleAnalytics, error) {
	from, to, err := s.parseRange(q)
	if err != nil {
		return nil, err
	}

	tasks, err := s.store.ListTasksStartingBetween(ctx, from, to)
	if err != nil {
		return nil, fmt.Errorf("load tasks: %w", err)
	}

	out := &ScheduleAnalytics{
		StartDate:  q.StartDate,
		EndDate:    q.EndDate,
		TotalTasks: len(tasks),
		ByStatus:   make(map[domain.TaskStatus]int),
	}
	var estimated, actual []float64
	for _, t := range tasks {
		out.ByStatus[t.Status]++
		estimated = append(estimated, t.EstimatedHours)
		if t.ActualHours != nil {
			actual = append(actual, *t.ActualHours)
		}
	}
	if len(tasks) > 0 {
		out.CompletionRate = float64(out.ByStatus[domain.TaskCompleted]) / float64(len(tasks))
		out.DelayRate = float64(out.ByStatus[domain.TaskDelayed]) / float64(len(tasks))
	}
	out.AverageEstimatedHours = mean(estimated)
	out.AverageActualHours = mean(actual)

	days, err := s.dailyWorkloads(ctx, from, to)
	if err != nil {
		return nil, err
	}
	out.Days = days
	out.AverageDailyUtilization = averageUtilization(days)
	return out, nil
}

// GetAppointmentAnalytics counts appointments starting within [start, end]
// by day and by type, next to the average utilization of the working days.
func (s *Service) GetAppointmentAnalytics(ctx context.Context, q RangeQuery) (*AppointmentAnalytics, error) {
	from, to, err := s.parseRange(q)
	if err != nil {
		return nil, err
	}

	appts, err := s.store.ListAppointmentsStartingBetween(ctx, from, to)
	if err != nil {
		return nil, fmt.Errorf("load appointments: %w", err)
	}

	out := &AppointmentAnalytics{StartDate: q.StartDate, EndDate: q.EndDate}
	byDay := make(map[string]*Counts)
	byType := make(map[calendar.AppointmentType]*Counts)
	durations := make(map[calendar.AppointmentType][]float64)
	for _, a := range appts {
		day := s.cal.DayKey(a.AppointmentTime)
		if byDay[day] == nil {
			byDay[day] = &Counts{}
		}
		if byType[a.Type] == nil {
			byType[a.Type] = &Counts{}
		}
		out.Totals.add(a.Status)
		byDay[day].add(a.Status)
		byType[a.Type].add(a.Status)
		durations[a.Type] = append(durations[a.Type], a.Hours())
	}

	for day, c := range byDay {
		out.ByDay = append(out.ByDay, DayCounts{Date: day, Counts: *c})
	}
	sort.Slice(out.ByDay, func(i, j int) bool { return out.ByDay[i].Date < out.ByDay[j].Date })
	for typ, c := range byType {
		out.ByType = append(out.ByType, TypeCounts{Type: typ, Counts: *c, AverageDurationHours: mean(durations[typ])})
	}
	sort.Slice(out.ByType, func(i, j int) bool { return out.ByType[i].Type < out.ByType[j].Type })

	days, err := s.dailyWorkloads(ctx, from, to)
	if err != nil {
		return nil, err
	}
	out.AverageUtilization = averageUtilization(days)
	return out, nil
}

func (c *Counts) add(status domain.AppointmentStatus) {
	c.Total++
	switch status {
	case domain.AppointmentConfirmed:
		c.Confirmed++
	case domain.AppointmentCompleted:
		c.Completed++
	case domain.AppointmentNoShow:
		c.NoShow++
	case domain.AppointmentCancelled:
		c.Cancelled++
	}
}

// dailyWorkloads reads cache rows for the working days of [from, to) and
// recomputes the ones that are missing.
func (s *Service) dailyWorkloads(ctx context.Context, from, to time.Time) ([]DayWorkload, error) {
	rows, err := s.store.ListWorkloads(ctx, s.cal.DayKey(from), s.cal.DayKey(to))
	if err != nil {
		return nil, fmt.Errorf("load workload cache: %w", err)
	}
	cached := make(map[string]domain.DailyWorkload, len(rows))
	for _, w := range rows {
		cached[w.Date] = w
	}

	var out []DayWorkload
	for d := from; d.Before(to); d = d.AddDate(0, 0, 1) {
		if !s.cal.IsWorkingDay(d) {
			continue
		}
		w, ok := cached[s.cal.DayKey(d)]
		if !ok {
			fresh, err := s.workload.Cached(ctx, d)
			if err != nil {
				return nil, err
			}
			w = *fresh
		}
		out = append(out, DayWorkload{
			Date:             w.Date,
			Utilization:      w.Utilization,
			Category:         s.cal.Categorize(w.Utilization),
			TotalHours:       w.TotalScheduledHours,
			TaskCount:        w.TaskCount,
			AppointmentCount: w.AppointmentCount,
		})
	}
	return out, nil
}

// parseRange turns inclusive start and end dates into [from, to).
func (s *Service) parseRange(q RangeQuery) (time.Time, time.Time, error) {
	if err := validator.Check(q); err != nil {
		return time.Time{}, time.Time{}, err
	}
	from, err := s.cal.ParseDay(q.StartDate)
	if err != nil {
		return time.Time{}, time.Time{}, apperr.Invalid("start_date", "expected YYYY-MM-DD, got %q", q.StartDate)
	}
	end, err := s.cal.ParseDay(q.EndDate)
	if err != nil {
		return time.Time{}, time.Time{}, apperr.Invalid("end_date", "expected YYYY-MM-DD, got %q", q.EndDate)
	}
	if end.Before(from) {
		return time.Time{}, time.Time{}, apperr.Invalid("end_date", "must not be before start_date")
	}
	to := end.AddDate(0, 0, 1)
	if to.Sub(from) > maxRangeDays*24*time.Hour+time.Hour {
		return time.Time{}, time.Time{}, apperr.Invalid("end_date", "range is limited to %d days", maxRangeDays)
	}
	return from, to, nil
}

func averageUtilization(days []DayWorkload) float64 {
	u := make([]float64, len(days))
	for i, d := range days {
		u[i] = d.Utilization
	}
	return mean(u)
}

// mean is stat.Mean with an empty sample defined as 0.
func mean(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	return stat.Mean(xs, nil)
}
