package production

import (
	"time"

	"github.com/google/uuid"

	"framestudio/internal/domain"
	"framestudio/internal/modules/calendar"
)

type interval struct {
	start, end time.Time
	owner      uuid.UUID
}

func (i interval) overlaps(start, end time.Time) bool {
	return i.start.Before(end) && start.Before(i.end)
}

// board is an in-memory picture of the shared calendar: busy intervals and
// committed hours per day. Placement runs against it so that a whole
// re-pack can be computed before anything is written.
type board struct {
	cal   *calendar.Calendar
	busy  []interval
	hours map[string]float64
}

func newBoard(cal *calendar.Calendar) *board {
	return &board{cal: cal, hours: make(map[string]float64)}
}

func (b *board) addTask(t domain.ScheduledTask) {
	b.busy = append(b.busy, interval{start: t.StartTime, end: t.EndTime, owner: t.ID})
	b.hours[b.cal.DayKey(t.StartTime)] += t.EstimatedHours
}

// release takes a task's interval and hours off the board.
func (b *board) release(t domain.ScheduledTask) {
	kept := b.busy[:0]
	for _, iv := range b.busy {
		if t.ID == uuid.Nil || iv.owner != t.ID {
			kept = append(kept, iv)
		}
	}
	b.busy = kept
	b.hours[b.cal.DayKey(t.StartTime)] -= t.EstimatedHours
}

// addAppointment blocks the appointment plus its type's trailing buffer.
func (b *board) addAppointment(a domain.Appointment) {
	end := a.AppointmentEnd
	if tc, err := b.cal.AppointmentType(a.Type); err == nil {
		end = end.Add(tc.Buffer())
	}
	b.busy = append(b.busy, interval{start: a.AppointmentTime, end: end})
	b.hours[b.cal.DayKey(a.AppointmentTime)] += a.Hours()
}

func (b *board) free(start, end time.Time) bool {
	for _, iv := range b.busy {
		if iv.overlaps(start, end) {
			return false
		}
	}
	return true
}

func (b *board) load(day time.Time) float64 {
	return b.hours[b.cal.DayKey(day)]
}

type request struct {
	hours     float64
	length    time.Duration
	notBefore time.Time
	deadline  time.Time
}

type placement struct {
	start, end time.Time
	overloaded bool
}

// place walks working days in slot steps from notBefore and returns the
// earliest free window ending by the deadline. A window on a day the task
// would push past the overloaded ceiling is used only if no other day before
// the deadline has room.
func (b *board) place(req request) (placement, bool) {
	cal := b.cal
	ceiling := cal.Config().Thresholds.Overloaded
	step := cal.Granularity()
	earliest := cal.CeilToSlot(req.notBefore)

	var fallback *placement
	for day := cal.StartOfDay(earliest); !day.After(req.deadline); day = day.AddDate(0, 0, 1) {
		if !cal.IsWorkingDay(day) {
			continue
		}
		open, closeAt := cal.WorkingWindow(day)
		t := open
		if earliest.After(t) {
			t = earliest
		}

		overloaded := cal.Utilization(b.load(day)+req.hours) > ceiling
		for ; !t.Add(req.length).After(closeAt); t = t.Add(step) {
			end := t.Add(req.length)
			if end.After(req.deadline) {
				break
			}
			if !b.free(t, end) {
				continue
			}
			p := placement{start: t, end: end, overloaded: overloaded}
			if !overloaded {
				return p, true
			}
			if fallback == nil {
				fallback = &p
			}
			break
		}
	}
	if fallback != nil {
		return *fallback, true
	}
	return placement{}, false
}
