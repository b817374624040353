package production

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"framestudio/internal/domain"
	"framestudio/internal/metrics"
	"framestudio/internal/modules/calendar"
	"framestudio/internal/modules/workload"
	"framestudio/internal/pkg/apperr"
	"framestudio/internal/pkg/logger"
	"framestudio/internal/pkg/validator"
	"framestudio/internal/repository"
)

const (
	maxPlanAttempts = 3
	maxRepackPasses = 8
)

type Service struct {
	store    repository.Calendar
	cal      *calendar.Calendar
	workload *workload.Engine
	log      logger.Logger
	metrics  metrics.Recorder
}

func NewService(store repository.Calendar, cal *calendar.Calendar, wl *workload.Engine, log logger.Logger, rec metrics.Recorder) *Service {
	if log == nil {
		log = logger.Nop{}
	}
	if rec == nil {
		rec = metrics.Nop{}
	}
	return &Service{store: store, cal: cal, workload: wl, log: log, metrics: rec}
}

// ScheduleOrder places the order on the earliest feasible working-time window
// before its deadline. The window is picked from a snapshot, then re-checked
// and written under the day's lock; a lost race re-plans.
func (s *Service) ScheduleOrder(ctx context.Context, req ScheduleOrderRequest) (*domain.ScheduledTask, error) {
	if err := validator.Check(req); err != nil {
		return nil, err
	}
	cx, err := s.cal.Complexity(req.Complexity)
	if err != nil {
		return nil, err
	}
	if req.Deadline.IsZero() {
		return nil, apperr.Invalid("deadline", "is required")
	}
	for _, dep := range req.Dependencies {
		if dep == req.OrderID {
			return nil, apperr.Invalid("dependencies", "order %d cannot depend on itself", dep)
		}
	}

	hours := cx.MaxHours
	if req.EstimatedHours != nil {
		hours = *req.EstimatedHours
	}
	priority := cx.DefaultPriority
	if req.Priority != nil {
		priority = *req.Priority
	}
	deadline := req.Deadline.In(s.cal.Location())

	for attempt := 0; attempt < maxPlanAttempts; attempt++ {
		now := s.cal.Now()
		if !deadline.After(now) {
			return nil, apperr.Invalid("deadline", "must be in the future")
		}
		if err := s.ensureNotScheduled(ctx, s.store, req.OrderID); err != nil {
			return nil, err
		}

		floor, err := s.dependencyFloor(ctx, req.Dependencies, deadline)
		if err != nil {
			return nil, err
		}
		notBefore := now
		if floor.After(notBefore) {
			notBefore = floor
		}

		b, err := s.loadBoard(ctx, s.store, now, deadline)
		if err != nil {
			return nil, err
		}
		p, ok := b.place(request{
			hours:     hours,
			length:    hoursToDuration(hours) + s.cal.TaskBuffer(),
			notBefore: notBefore,
			deadline:  deadline,
		})
		if !ok {
			s.metrics.TaskScheduled("conflict")
			return nil, ErrNoFeasibleSlot.
				With("order_id", req.OrderID).
				With("deadline", deadline.Format(time.RFC3339))
		}

		task := &domain.ScheduledTask{
			OrderID:             req.OrderID,
			StartTime:           p.start,
			EndTime:             p.end,
			Complexity:          req.Complexity,
			EstimatedHours:      hours,
			Status:              domain.TaskScheduled,
			Priority:            priority,
			Deadline:            deadline,
			Dependencies:        req.Dependencies,
			CustomerPreferences: req.CustomerPreferences.PreferredHours,
		}

		day := s.cal.DayKey(p.start)
		err = s.store.WithDayLock(ctx, []string{day}, func(tx repository.Calendar) error {
			if err := s.ensureNotScheduled(ctx, tx, req.OrderID); err != nil {
				return err
			}
			fresh, err := s.loadBoard(ctx, tx, p.start, p.start)
			if err != nil {
				return err
			}
			if !fresh.free(p.start, p.end) {
				return errStale
			}
			return tx.CreateTask(ctx, task)
		})
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, ErrAlreadyScheduled.With("order_id", req.OrderID)
		}
		if errors.Is(err, errStale) {
			s.log.Debugf("order %d: window %s taken concurrently, re-planning", req.OrderID, p.start.Format(time.RFC3339))
			continue
		}
		if err != nil {
			return nil, err
		}

		s.metrics.TaskScheduled("scheduled")
		if p.overloaded {
			s.log.Warnw("order scheduled on an overloaded day", map[string]any{"order_id": req.OrderID, "date": day})
		}
		s.workload.RefreshBestEffort(ctx, p.start)
		return task, nil
	}

	s.metrics.TaskScheduled("contended")
	return nil, apperr.New(apperr.KindUnavailable, "calendar changed repeatedly while scheduling order %d", req.OrderID)
}

func (s *Service) ensureNotScheduled(ctx context.Context, r repository.Calendar, orderID int64) error {
	existing, err := r.GetTaskByOrderID(ctx, orderID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("lookup order %d: %w", orderID, err)
	}
	if existing.Status != domain.TaskCancelled {
		return ErrAlreadyScheduled.With("order_id", orderID).With("task_id", existing.ID.String())
	}
	return nil
}

// dependencyFloor returns the latest scheduled end among unfinished
// dependencies. Completed ones impose nothing; missing or cancelled ones,
// or ones ending after the deadline, cannot be satisfied.
func (s *Service) dependencyFloor(ctx context.Context, deps []int64, deadline time.Time) (time.Time, error) {
	var floor time.Time
	if len(deps) == 0 {
		return floor, nil
	}
	tasks, err := s.store.ListTasksByOrderIDs(ctx, deps)
	if err != nil {
		return floor, fmt.Errorf("load dependencies: %w", err)
	}
	latest := latestByOrder(tasks)

	for _, dep := range deps {
		t, ok := latest[dep]
		if !ok {
			return floor, apperr.New(apperr.KindDependencyUnmet, "dependency order %d has no scheduled task", dep).With("dependency", dep)
		}
		switch t.Status {
		case domain.TaskCompleted:
			continue
		case domain.TaskCancelled:
			return floor, apperr.New(apperr.KindDependencyUnmet, "dependency order %d was cancelled", dep).With("dependency", dep)
		}
		if t.EndTime.After(deadline) {
			return floor, apperr.New(apperr.KindDependencyUnmet, "dependency order %d finishes after the deadline", dep).
				With("dependency", dep).
				With("dependency_end", t.EndTime.Format(time.RFC3339))
		}
		if t.EndTime.After(floor) {
			floor = t.EndTime
		}
	}
	return floor, nil
}

func latestByOrder(tasks []domain.ScheduledTask) map[int64]domain.ScheduledTask {
	out := make(map[int64]domain.ScheduledTask, len(tasks))
	for _, t := range tasks {
		prev, ok := out[t.OrderID]
		if !ok || t.CreatedAt.After(prev.CreatedAt) {
			out[t.OrderID] = t
		}
	}
	return out
}

// loadBoard reads every active task and appointment on the days spanned by
// [from, to].
func (s *Service) loadBoard(ctx context.Context, r repository.Calendar, from, to time.Time) (*board, error) {
	start := s.cal.StartOfDay(from)
	_, end := s.cal.DayBounds(to)

	tasks, err := r.ListActiveTasksBetween(ctx, start, end)
	if err != nil {
		return nil, fmt.Errorf("load tasks: %w", err)
	}
	appts, err := r.ListActiveAppointmentsBetween(ctx, start, end)
	if err != nil {
		return nil, fmt.Errorf("load appointments: %w", err)
	}

	b := newBoard(s.cal)
	for _, t := range tasks {
		b.addTask(t)
	}
	for _, a := range appts {
		b.addAppointment(a)
	}
	return b, nil
}

func (s *Service) GetTask(ctx context.Context, orderID int64) (*domain.ScheduledTask, error) {
	t, err := s.store.GetTaskByOrderID(ctx, orderID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, ErrTaskNotFound.With("order_id", orderID)
	}
	return t, err
}

// UpdateTaskProgress records actual hours and moves the task to status.
// Completing or cancelling a task reports the scheduled dependents it
// released; they keep their current slot.
func (s *Service) UpdateTaskProgress(ctx context.Context, orderID int64, req UpdateProgressRequest) (*ProgressResult, error) {
	if err := validator.Check(req); err != nil {
		return nil, err
	}
	if !req.Status.Valid() {
		return nil, apperr.Invalid("status", "unknown task status %q", req.Status)
	}

	current, err := s.GetTask(ctx, orderID)
	if err != nil {
		return nil, err
	}

	var task *domain.ScheduledTask
	err = s.store.WithDayLock(ctx, []string{s.cal.DayKey(current.StartTime)}, func(tx repository.Calendar) error {
		t, err := tx.GetTaskByOrderID(ctx, orderID)
		if err != nil {
			return err
		}
		if t.Status.Terminal() && t.Status != req.Status {
			return ErrInvalidTransition.
				With("from", string(t.Status)).
				With("to", string(req.Status))
		}
		if req.ActualHours != nil {
			h := *req.ActualHours
			t.ActualHours = &h
		}
		t.Status = req.Status
		if err := tx.SaveTask(ctx, t); err != nil {
			return err
		}
		task = t
		return nil
	})
	if err != nil {
		return nil, err
	}

	res := &ProgressResult{Task: task}
	if task.Status.Terminal() {
		scheduled, err := s.store.ListTasksByStatus(ctx, domain.TaskScheduled)
		if err != nil {
			s.log.Warnf("order %d: list dependents: %v", orderID, err)
		}
		for _, t := range scheduled {
			if t.DependsOn(orderID) {
				res.EligibleDependents = append(res.EligibleDependents, t.OrderID)
			}
		}
		if len(res.EligibleDependents) > 0 {
			s.log.Infow("dependents released", map[string]any{"order_id": orderID, "dependents": res.EligibleDependents})
		}
	}

	s.workload.RefreshBestEffort(ctx, task.StartTime)
	return res, nil
}

// OptimizeSchedule re-packs every future scheduled task into the earliest
// feasible slot in priority, then deadline order, keeping dependencies
// ahead of their dependents. In-progress, completed and already started
// tasks stay where they are.
//
// Every movable task keeps its current interval reserved on the board until
// its own turn, so a task that cannot move still owns a free slot. A task
// only ever moves earlier. Passes repeat until nothing moves, which makes a
// second run without writes in between a no-op.
func (s *Service) OptimizeSchedule(ctx context.Context) (*OptimizeResult, error) {
	now := s.cal.Now()

	snapshot, err := s.store.ListTasksByStatus(ctx, domain.TaskScheduled)
	if err != nil {
		return nil, fmt.Errorf("load scheduled tasks: %w", err)
	}
	horizon := now
	for _, t := range snapshot {
		if t.Deadline.After(horizon) {
			horizon = t.Deadline
		}
		if t.EndTime.After(horizon) {
			horizon = t.EndTime
		}
	}
	var days []string
	for d := s.cal.StartOfDay(now); !d.After(horizon); d = d.AddDate(0, 0, 1) {
		days = append(days, s.cal.DayKey(d))
	}

	res := &OptimizeResult{}
	var touched []time.Time
	err = s.store.WithDayLock(ctx, days, func(tx repository.Calendar) error {
		*res = OptimizeResult{}
		touched = touched[:0]

		scheduled, err := tx.ListTasksByStatus(ctx, domain.TaskScheduled)
		if err != nil {
			return err
		}
		var movable []domain.ScheduledTask
		for _, t := range scheduled {
			if !t.StartTime.Before(now) {
				movable = append(movable, t)
			}
		}
		res.Considered = len(movable)
		if len(movable) == 0 {
			return nil
		}

		b, err := s.loadBoard(ctx, tx, now, horizon)
		if err != nil {
			return err
		}
		ends, err := s.externalDependencyEnds(ctx, tx, movable)
		if err != nil {
			return err
		}

		queue := orderForRepack(movable)
		original := make(map[int64]time.Time, len(queue))
		for _, t := range queue {
			original[t.OrderID] = t.StartTime
			ends[t.OrderID] = t.EndTime
		}

		var stuck []int64
		for pass := 0; pass < maxRepackPasses; pass++ {
			moved := false
			stuck = stuck[:0]
			for i := range queue {
				t := &queue[i]
				notBefore := now
				for _, dep := range t.Dependencies {
					if end, ok := ends[dep]; ok && end.After(notBefore) {
						notBefore = end
					}
				}

				b.release(*t)
				p, ok := b.place(request{
					hours:     t.EstimatedHours,
					length:    t.EndTime.Sub(t.StartTime),
					notBefore: notBefore,
					deadline:  t.Deadline.In(s.cal.Location()),
				})
				switch {
				case !ok:
					stuck = append(stuck, t.OrderID)
				case p.start.Before(t.StartTime):
					t.StartTime, t.EndTime = p.start, p.end
					moved = true
				}
				b.addTask(*t)
				ends[t.OrderID] = t.EndTime
			}
			if !moved {
				break
			}
		}
		res.Unplaceable = append(res.Unplaceable, stuck...)

		for i := range queue {
			t := queue[i]
			from := original[t.OrderID]
			if t.StartTime.Equal(from) {
				continue
			}
			if err := tx.SaveTask(ctx, &t); err != nil {
				return err
			}
			touched = append(touched, from, t.StartTime)
			res.Moved++
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if len(res.Unplaceable) > 0 {
		s.log.Warnw("tasks left in place during optimization", map[string]any{"orders": res.Unplaceable})
	}
	s.log.Infow("schedule optimized", map[string]any{"considered": res.Considered, "moved": res.Moved})
	s.workload.RefreshBestEffort(ctx, touched...)
	return res, nil
}

// externalDependencyEnds maps dependency orders that are not being re-packed
// to the end time that still constrains their dependents.
func (s *Service) externalDependencyEnds(ctx context.Context, r repository.Calendar, movable []domain.ScheduledTask) (map[int64]time.Time, error) {
	inSet := make(map[int64]bool, len(movable))
	for _, t := range movable {
		inSet[t.OrderID] = true
	}
	var external []int64
	for _, t := range movable {
		for _, dep := range t.Dependencies {
			if !inSet[dep] {
				external = append(external, dep)
			}
		}
	}
	ends := make(map[int64]time.Time)
	if len(external) == 0 {
		return ends, nil
	}
	tasks, err := r.ListTasksByOrderIDs(ctx, external)
	if err != nil {
		return nil, err
	}
	for id, t := range latestByOrder(tasks) {
		if t.Status.Active() || t.Status == domain.TaskDelayed {
			ends[id] = t.EndTime
		}
	}
	return ends, nil
}

// orderForRepack sorts by priority, deadline, order id, then pulls every
// movable dependency in ahead of the first task that needs it.
func orderForRepack(tasks []domain.ScheduledTask) []domain.ScheduledTask {
	sorted := append([]domain.ScheduledTask(nil), tasks...)
	sort.SliceStable(sorted, func(i, j int) bool {
		a, b := sorted[i], sorted[j]
		if a.Priority != b.Priority {
			return a.Priority < b.Priority
		}
		if !a.Deadline.Equal(b.Deadline) {
			return a.Deadline.Before(b.Deadline)
		}
		if a.OrderID != b.OrderID {
			return a.OrderID < b.OrderID
		}
		return a.ID.String() < b.ID.String()
	})

	byOrder := make(map[int64]int, len(sorted))
	for i, t := range sorted {
		if _, ok := byOrder[t.OrderID]; !ok {
			byOrder[t.OrderID] = i
		}
	}

	const (
		unseen = iota
		visiting
		done
	)
	state := make([]int, len(sorted))
	out := make([]domain.ScheduledTask, 0, len(sorted))
	var visit func(i int)
	visit = func(i int) {
		if state[i] != unseen {
			// done, or a dependency cycle
			return
		}
		state[i] = visiting
		deps := make([]int, 0, len(sorted[i].Dependencies))
		for _, dep := range sorted[i].Dependencies {
			if j, ok := byOrder[dep]; ok {
				deps = append(deps, j)
			}
		}
		sort.Ints(deps)
		for _, j := range deps {
			visit(j)
		}
		state[i] = done
		out = append(out, sorted[i])
	}
	for i := range sorted {
		visit(i)
	}
	return out
}

func hoursToDuration(h float64) time.Duration {
	return time.Duration(h * float64(time.Hour))
}
