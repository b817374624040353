package appointment

import (
	"time"

	"github.com/google/uuid"

	"framestudio/internal/domain"
	"framestudio/internal/modules/calendar"
)

// clash describes what stands in the way of a candidate appointment.
type clash struct {
	Kind  string // "appointment", "task" or "capacity"
	ID    uuid.UUID
	Start time.Time
	End   time.Time
}

// occupancy is the set of active reservations that can collide with a new
// appointment on one or more days.
type occupancy struct {
	cal   *calendar.Calendar
	appts []domain.Appointment
	tasks []domain.ScheduledTask
}

// fits reports whether an appointment of typ starting at start can be added.
// A reservation blocks its interval plus its type's buffer. Appointments of
// the same type starting on the same minute share the slot up to the type's
// capacity instead of colliding. On success it returns the capacity left
// after this booking.
func (o *occupancy) fits(typ calendar.AppointmentType, tc calendar.TypeConfig, start time.Time, exclude uuid.UUID) (int, *clash) {
	end := start.Add(tc.Duration())
	blockEnd := end.Add(tc.Buffer())

	sharing := 0
	for _, a := range o.appts {
		if a.ID == exclude || a.Status == domain.AppointmentCancelled {
			continue
		}
		if a.Type == typ && a.AppointmentTime.Equal(start) {
			sharing++
			if sharing >= tc.Capacity {
				return 0, &clash{Kind: "capacity", ID: a.ID, Start: a.AppointmentTime, End: a.AppointmentEnd}
			}
			continue
		}
		aEnd := a.AppointmentEnd
		if other, err := o.cal.AppointmentType(a.Type); err == nil {
			aEnd = aEnd.Add(other.Buffer())
		}
		if a.AppointmentTime.Before(blockEnd) && start.Before(aEnd) {
			return 0, &clash{Kind: "appointment", ID: a.ID, Start: a.AppointmentTime, End: a.AppointmentEnd}
		}
	}
	for _, t := range o.tasks {
		if !t.Status.Active() {
			continue
		}
		if t.StartTime.Before(blockEnd) && start.Before(t.EndTime) {
			return 0, &clash{Kind: "task", ID: t.ID, Start: t.StartTime, End: t.EndTime}
		}
	}
	return tc.Capacity - sharing - 1, nil
}

// candidates lists every start on day, at slot granularity, whose
// appointment would end inside the working window and after now.
func candidates(cal *calendar.Calendar, day time.Time, length time.Duration, now time.Time) []time.Time {
	if !cal.IsWorkingDay(day) {
		return nil
	}
	open, closeAt := cal.WorkingWindow(day)
	var out []time.Time
	for t := open; !t.Add(length).After(closeAt); t = t.Add(cal.Granularity()) {
		if t.Before(now) {
			continue
		}
		out = append(out, t)
	}
	return out
}
