package workload

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"golang.org/x/sync/singleflight"

	"framestudio/internal/domain"
	"framestudio/internal/metrics"
	"framestudio/internal/modules/calendar"
	"framestudio/internal/pkg/logger"
	"framestudio/internal/repository"
)

const refreshTimeout = 10 * time.Second

type Engine struct {
	store   repository.Calendar
	cal     *calendar.Calendar
	log     logger.Logger
	metrics metrics.Recorder
	reads   singleflight.Group
}

func NewEngine(store repository.Calendar, cal *calendar.Calendar, log logger.Logger, rec metrics.Recorder) *Engine {
	if log == nil {
		log = logger.Nop{}
	}
	if rec == nil {
		rec = metrics.Nop{}
	}
	return &Engine{store: store, cal: cal, log: log, metrics: rec}
}

// CalculateDayWorkload computes the committed hours of the day containing
// day straight from task and appointment rows.
func (e *Engine) CalculateDayWorkload(ctx context.Context, day time.Time) (*domain.DailyWorkload, error) {
	return e.CalculateWith(ctx, e.store, day)
}

// CalculateWith is CalculateDayWorkload against an explicit reader, usually a
// transaction-bound store.
func (e *Engine) CalculateWith(ctx context.Context, r Reader, day time.Time) (*domain.DailyWorkload, error) {
	from, to := e.cal.DayBounds(day)
	tasks, err := r.ListActiveTasksBetween(ctx, from, to)
	if err != nil {
		return nil, fmt.Errorf("list tasks for %s: %w", e.cal.DayKey(day), err)
	}
	appts, err := r.ListActiveAppointmentsBetween(ctx, from, to)
	if err != nil {
		return nil, fmt.Errorf("list appointments for %s: %w", e.cal.DayKey(day), err)
	}
	return Summarize(e.cal, day, tasks, appts), nil
}

// Snapshot is a read-side workload lookup for slot generation. Concurrent
// callers asking for the same day share one computation, which is detached
// from any single caller's cancellation. Each caller still stops waiting
// when its own ctx is done.
func (e *Engine) Snapshot(ctx context.Context, day time.Time) (*domain.DailyWorkload, error) {
	key := e.cal.DayKey(day)
	ch := e.reads.DoChan(key, func() (any, error) {
		shared, cancel := context.WithTimeout(context.WithoutCancel(ctx), refreshTimeout)
		defer cancel()
		return e.CalculateDayWorkload(shared, day)
	})
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		w := *res.Val.(*domain.DailyWorkload)
		return &w, nil
	}
}

// Summarize sums the tasks starting on the day and the appointments starting
// on the day. Rows outside the day are ignored.
func Summarize(cal *calendar.Calendar, day time.Time, tasks []domain.ScheduledTask, appts []domain.Appointment) *domain.DailyWorkload {
	from, to := cal.DayBounds(day)
	w := &domain.DailyWorkload{Date: cal.DayKey(day)}

	for _, t := range tasks {
		if !t.Status.Active() || !inDay(t.StartTime, from, to) {
			continue
		}
		w.TotalProductionHours += t.EstimatedHours
		w.TaskCount++
	}
	for _, a := range appts {
		if a.Status == domain.AppointmentCancelled || !inDay(a.AppointmentTime, from, to) {
			continue
		}
		w.TotalAppointmentHours += a.Hours()
		w.AppointmentCount++
	}
	w.TotalScheduledHours = w.TotalProductionHours + w.TotalAppointmentHours
	w.Utilization = cal.Utilization(w.TotalScheduledHours)
	return w
}

func inDay(t, from, to time.Time) bool {
	return !t.Before(from) && t.Before(to)
}

func (e *Engine) CategorizeWorkload(utilization float64) calendar.WorkloadCategory {
	return e.cal.Categorize(utilization)
}

// UpdateWorkloadCache recomputes the day and upserts its cache row. The
// computation and the write share the day's lock so a refresh can never
// overwrite a newer one with stale totals.
func (e *Engine) UpdateWorkloadCache(ctx context.Context, day time.Time) (*domain.DailyWorkload, error) {
	var out *domain.DailyWorkload
	err := e.store.WithDayLock(ctx, []string{e.cal.DayKey(day)}, func(tx repository.Calendar) error {
		w, err := e.CalculateWith(ctx, tx, day)
		if err != nil {
			return err
		}
		w.UpdatedAt = e.cal.Now().UTC()
		if err := tx.UpsertWorkload(ctx, w); err != nil {
			return fmt.Errorf("upsert workload %s: %w", w.Date, err)
		}
		out = w
		return nil
	})
	return out, err
}

// RefreshBestEffort refreshes the cache for each distinct day, retrying a few
// times. Failures are logged and counted, never returned. It survives
// cancellation of ctx because it runs after the triggering write committed.
func (e *Engine) RefreshBestEffort(ctx context.Context, days ...time.Time) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), refreshTimeout)
	defer cancel()

	seen := make(map[string]bool, len(days))
	for _, d := range days {
		key := e.cal.DayKey(d)
		if seen[key] {
			continue
		}
		seen[key] = true

		policy := backoff.WithContext(backoff.WithMaxRetries(backoff.NewConstantBackOff(50*time.Millisecond), 2), ctx)
		err := backoff.Retry(func() error {
			_, err := e.UpdateWorkloadCache(ctx, d)
			return err
		}, policy)
		if err != nil {
			e.metrics.CacheRefreshFailed()
			e.log.Warnw("workload cache refresh failed", map[string]any{"date": key, "error": err.Error()})
		}
	}
}

// RefreshRange rebuilds cache rows for every day in [from, to).
func (e *Engine) RefreshRange(ctx context.Context, from, to time.Time) (int, error) {
	n := 0
	for d := e.cal.StartOfDay(from); d.Before(to); d = d.AddDate(0, 0, 1) {
		if _, err := e.UpdateWorkloadCache(ctx, d); err != nil {
			return n, err
		}
		n++
	}
	return n, nil
}

// Cached returns the cache row for the day, recomputing it when absent.
func (e *Engine) Cached(ctx context.Context, day time.Time) (*domain.DailyWorkload, error) {
	w, err := e.store.GetWorkload(ctx, e.cal.DayKey(day))
	if err == nil {
		return w, nil
	}
	if !errors.Is(err, repository.ErrNotFound) {
		return nil, err
	}
	return e.UpdateWorkloadCache(ctx, day)
}
