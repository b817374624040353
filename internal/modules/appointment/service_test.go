package appointment

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"framestudio/internal/database/dbtest"
	"framestudio/internal/domain"
	"framestudio/internal/modules/calendar"
	"framestudio/internal/modules/reminder"
	"framestudio/internal/modules/workload"
	"framestudio/internal/pkg/apperr"
	"framestudio/internal/pkg/logger"
	"framestudio/internal/repository"
)

// The clock stands at Monday 2025-11-03 07:00 UTC.
var clock = time.Date(2025, 11, 3, 7, 0, 0, 0, time.UTC)

func on(dayOffset, hour, minute int) time.Time {
	return time.Date(2025, 11, 3+dayOffset, hour, minute, 0, 0, time.UTC)
}

const (
	tuesday   = 1
	wednesday = 2
	thursday  = 3
	saturday  = 5
)

type fixture struct {
	svc   *Service
	store *repository.Store
	wl    *workload.Engine
}

func setup(t *testing.T) fixture {
	t.Helper()
	cal, err := calendar.New(calendar.DefaultConfig(), calendar.WithClock(func() time.Time { return clock }))
	require.NoError(t, err)
	store := repository.NewStore(dbtest.Open(t), repository.DefaultRetryConfig())
	wl := workload.NewEngine(store, cal, logger.Nop{}, nil)
	svc := NewService(store, cal, wl, reminder.NewScheduler(store, cal, logger.Nop{}), logger.Nop{}, nil)
	return fixture{svc: svc, store: store, wl: wl}
}

func (f fixture) seedTask(t *testing.T, orderID int64, start time.Time, hours float64) {
	t.Helper()
	task := &domain.ScheduledTask{
		OrderID: orderID, StartTime: start, EndTime: start.Add(time.Duration(hours * float64(time.Hour))),
		Complexity: calendar.Medium, EstimatedHours: hours, Status: domain.TaskScheduled, Deadline: start.AddDate(0, 0, 3),
	}
	require.NoError(t, f.store.CreateTask(context.Background(), task))
}

func (f fixture) book(t *testing.T, typ calendar.AppointmentType, at time.Time) *BookResult {
	t.Helper()
	res, err := f.svc.BookAppointment(context.Background(), BookRequest{CustomerID: 1, Type: typ, AppointmentTime: at})
	require.NoError(t, err)
	return res
}

func startsOf(slots []Slot) []string {
	var out []string
	for _, s := range slots {
		out = append(out, s.Date+" "+s.Time)
	}
	return out
}

func TestGetAvailableSlotsRanksAndFilters(t *testing.T) {
	f := setup(t)
	f.seedTask(t, 1, on(tuesday, 8, 0), 6)

	slots, err := f.svc.GetAvailableSlots(context.Background(), SlotQuery{Type: calendar.Consultation, PreferredDate: "2025-11-04", DaysAhead: 1})
	require.NoError(t, err)

	assert.Equal(t, []string{
		"2025-11-04 14:00", "2025-11-04 14:30", "2025-11-04 15:00", "2025-11-04 15:30", "2025-11-04 16:00",
	}, startsOf(slots))
	assert.Equal(t, 100, slots[0].RecommendationScore)
	assert.True(t, slots[0].IsRecommended)
	assert.Equal(t, 70, slots[4].RecommendationScore)
	assert.False(t, slots[4].IsRecommended)
	assert.InDelta(t, 0.75, slots[0].Workload.Utilization, 1e-9)
	assert.Equal(t, calendar.Normal, slots[0].Workload.Category)
}

func TestGetAvailableSlotsHonoursAppointmentBuffer(t *testing.T) {
	f := setup(t)
	f.seedTask(t, 1, on(tuesday, 8, 0), 6)
	f.book(t, calendar.Consultation, on(tuesday, 14, 0))

	slots, err := f.svc.GetAvailableSlots(context.Background(), SlotQuery{Type: calendar.Consultation, PreferredDate: "2025-11-04", DaysAhead: 1})
	require.NoError(t, err)

	assert.Equal(t, []string{"2025-11-04 15:30", "2025-11-04 16:00"}, startsOf(slots))
	assert.Equal(t, 80, slots[0].RecommendationScore)
	assert.True(t, slots[0].IsRecommended)
	assert.Equal(t, 50, slots[1].RecommendationScore)
}

func TestGetAvailableSlotsDefaultsToTomorrow(t *testing.T) {
	f := setup(t)

	slots, err := f.svc.GetAvailableSlots(context.Background(), SlotQuery{Type: calendar.Consultation, DaysAhead: 1})
	require.NoError(t, err)
	require.Len(t, slots, 17)
	for _, s := range slots {
		assert.Equal(t, "2025-11-04", s.Date)
	}

	slots, err = f.svc.GetAvailableSlots(context.Background(), SlotQuery{Type: calendar.Consultation, PreferredDate: "2025-11-08", DaysAhead: 2})
	require.NoError(t, err)
	assert.Empty(t, slots, "weekends are not bookable")
}

func TestGetAvailableSlotsSharedCapacity(t *testing.T) {
	f := setup(t)
	at := on(wednesday, 10, 0)
	for i := 0; i < 3; i++ {
		f.book(t, calendar.Pickup, at)
	}

	find := func() *Slot {
		slots, err := f.svc.GetAvailableSlots(context.Background(), SlotQuery{Type: calendar.Pickup, PreferredDate: "2025-11-05", DaysAhead: 1})
		require.NoError(t, err)
		for i := range slots {
			if slots[i].StartTime.Equal(at) {
				return &slots[i]
			}
		}
		return nil
	}

	s := find()
	require.NotNil(t, s)
	assert.Equal(t, 0, s.RemainingCapacity)

	f.book(t, calendar.Pickup, at)
	assert.Nil(t, find())
}

func TestGetAvailableSlotsValidation(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	_, err := f.svc.GetAvailableSlots(ctx, SlotQuery{Type: "tattoo"})
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))

	_, err = f.svc.GetAvailableSlots(ctx, SlotQuery{Type: calendar.Pickup, DaysAhead: 90})
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))

	_, err = f.svc.GetAvailableSlots(ctx, SlotQuery{Type: calendar.Pickup, PreferredDate: "05/11/2025"})
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))
}

func TestGetOptimalAppointmentTimes(t *testing.T) {
	f := setup(t)

	times, err := f.svc.GetOptimalAppointmentTimes(context.Background(), calendar.Consultation, 14)
	require.NoError(t, err)
	require.Len(t, times, maxOptimalTimes)

	first := times[0]
	assert.Equal(t, "Tuesday, November 4, 2025", first.FormattedDate)
	assert.Equal(t, "8:00 AM", first.FormattedTime)
	assert.Contains(t, first.Benefits, "Optimal time")
	for _, ot := range times {
		assert.True(t, ot.IsRecommended)
	}
}

func TestBookAppointment(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	res := f.book(t, calendar.Consultation, on(wednesday, 10, 0))
	assert.Regexp(t, `^FS1105[0-9A-F]{4}$`, res.ConfirmationNumber)
	assert.Equal(t, res.AppointmentID, res.Appointment.ID)
	assert.Equal(t, domain.AppointmentConfirmed, res.Appointment.Status)
	assert.True(t, on(wednesday, 11, 0).Equal(res.Appointment.AppointmentEnd))
	assert.Equal(t, "low", res.WorkloadImpact.Impact)
	assert.Empty(t, res.WorkloadImpact.Recommendation)

	stored, err := f.svc.GetAppointment(ctx, res.AppointmentID)
	require.NoError(t, err)
	assert.Equal(t, res.ConfirmationNumber, stored.ConfirmationNumber)
	assert.Equal(t, reminder.DefaultMethod, stored.ContactMethod)

	reminders, err := f.svc.ListReminders(ctx, res.AppointmentID)
	require.NoError(t, err)
	require.Len(t, reminders, 2)
	assert.True(t, on(tuesday, 10, 0).Equal(reminders[0].ReminderTime))
	assert.True(t, on(wednesday, 8, 0).Equal(reminders[1].ReminderTime))

	cached, err := f.wl.Cached(ctx, on(wednesday, 0, 0))
	require.NoError(t, err)
	assert.Equal(t, 1.0, cached.TotalAppointmentHours)
	assert.Equal(t, 1, cached.AppointmentCount)
}

func TestBookAppointmentRejectsConflicts(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	f.book(t, calendar.Consultation, on(wednesday, 10, 0))
	f.seedTask(t, 9, on(wednesday, 14, 0), 2)

	for name, at := range map[string]time.Time{
		"overlapping appointment": on(wednesday, 10, 30),
		"inside buffer":           on(wednesday, 11, 0),
		"production task":         on(wednesday, 13, 30),
	} {
		t.Run(name, func(t *testing.T) {
			_, err := f.svc.BookAppointment(ctx, BookRequest{CustomerID: 2, Type: calendar.Consultation, AppointmentTime: at})
			require.Error(t, err)
			assert.True(t, errors.Is(err, apperr.SlotUnavailable))
		})
	}

	f.book(t, calendar.Consultation, on(wednesday, 11, 30))
}

func TestBookAppointmentValidation(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	cases := map[string]BookRequest{
		"unknown type":       {CustomerID: 1, Type: "tattoo", AppointmentTime: on(wednesday, 10, 0)},
		"missing customer":   {Type: calendar.Consultation, AppointmentTime: on(wednesday, 10, 0)},
		"in the past":        {CustomerID: 1, Type: calendar.Consultation, AppointmentTime: on(0, 6, 0)},
		"ends after closing": {CustomerID: 1, Type: calendar.Consultation, AppointmentTime: on(wednesday, 16, 30)},
		"weekend":            {CustomerID: 1, Type: calendar.Consultation, AppointmentTime: on(saturday, 10, 0)},
		"bad contact method": {CustomerID: 1, Type: calendar.Consultation, AppointmentTime: on(wednesday, 10, 0), ContactMethod: "pigeon"},
	}
	for name, req := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := f.svc.BookAppointment(ctx, req)
			require.Error(t, err)
			assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))
		})
	}
}

func TestBookingOnOverloadedDayIsAdvisory(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	f.seedTask(t, 1, on(wednesday, 8, 0), 7)

	res := f.book(t, calendar.FrameFitting, on(wednesday, 15, 0))
	assert.Equal(t, "high", res.WorkloadImpact.Impact)
	assert.NotEmpty(t, res.WorkloadImpact.Recommendation)
	assert.InDelta(t, 0.875, res.WorkloadImpact.CurrentUtilization, 1e-9)
	assert.InDelta(t, 0.9375, res.WorkloadImpact.ProjectedUtilization, 1e-9)
	assert.Equal(t, calendar.Heavy, res.WorkloadImpact.Category)
	require.NotNil(t, res.WorkloadImpact.BookedUtilization)
	assert.InDelta(t, 1.0, *res.WorkloadImpact.BookedUtilization, 1e-9)
	assert.Equal(t, calendar.Overloaded, res.WorkloadImpact.BookedCategory)

	cached, err := f.wl.Cached(ctx, on(wednesday, 0, 0))
	require.NoError(t, err)
	assert.InDelta(t, 1.0, cached.Utilization, 1e-9)
	assert.Equal(t, calendar.Overloaded, f.wl.CategorizeWorkload(cached.Utilization))
}

func TestConcurrentPickupsNeverExceedCapacity(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	at := on(wednesday, 10, 0)
	for i := 0; i < 3; i++ {
		f.book(t, calendar.Pickup, at)
	}

	const racers = 5
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		succeeded int
		rejected  int
	)
	for i := 0; i < racers; i++ {
		wg.Add(1)
		go func(customer int64) {
			defer wg.Done()
			_, err := f.svc.BookAppointment(ctx, BookRequest{CustomerID: customer, Type: calendar.Pickup, AppointmentTime: at})
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				succeeded++
			case errors.Is(err, apperr.SlotUnavailable):
				rejected++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}(int64(100 + i))
	}
	wg.Wait()

	assert.Equal(t, 1, succeeded)
	assert.Equal(t, racers-1, rejected)

	from, to := at, at.Add(time.Minute)
	appts, err := f.store.ListAppointmentsStartingBetween(ctx, from, to)
	require.NoError(t, err)
	assert.Len(t, appts, 4)
}

func TestRescheduleIntoConflictLeavesOriginal(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	a := f.book(t, calendar.Consultation, on(wednesday, 10, 0))
	f.book(t, calendar.Consultation, on(wednesday, 13, 0))

	_, err := f.svc.RescheduleAppointment(ctx, a.AppointmentID, RescheduleRequest{NewTime: on(wednesday, 13, 30), Reason: "customer asked"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperr.SlotUnavailable))

	stored, err := f.svc.GetAppointment(ctx, a.AppointmentID)
	require.NoError(t, err)
	assert.True(t, on(wednesday, 10, 0).Equal(stored.AppointmentTime))
	assert.True(t, on(wednesday, 11, 0).Equal(stored.AppointmentEnd))

	history, err := f.svc.ListHistory(ctx, a.AppointmentID)
	require.NoError(t, err)
	assert.Empty(t, history)
}

func TestRescheduleAppointment(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	a := f.book(t, calendar.Consultation, on(wednesday, 10, 0))
	b := f.book(t, calendar.Consultation, on(wednesday, 13, 0))

	res, err := f.svc.RescheduleAppointment(ctx, a.AppointmentID, RescheduleRequest{NewTime: on(thursday, 9, 0), Reason: "frame not ready"})
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.True(t, on(thursday, 9, 0).Equal(res.NewTime))
	assert.True(t, on(thursday, 10, 0).Equal(res.Appointment.AppointmentEnd))

	history, err := f.svc.ListHistory(ctx, a.AppointmentID)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, domain.HistoryRescheduled, history[0].Action)
	assert.Equal(t, "2025-11-05T10:00:00Z", history[0].OldValue)
	assert.Equal(t, "2025-11-06T09:00:00Z", history[0].NewValue)
	assert.Equal(t, "frame not ready", history[0].Reason)

	reminders, err := f.svc.ListReminders(ctx, a.AppointmentID)
	require.NoError(t, err)
	require.Len(t, reminders, 2)
	assert.True(t, on(wednesday, 9, 0).Equal(reminders[0].ReminderTime))

	wed, err := f.wl.Cached(ctx, on(wednesday, 0, 0))
	require.NoError(t, err)
	assert.Equal(t, 1, wed.AppointmentCount)
	thu, err := f.wl.Cached(ctx, on(thursday, 0, 0))
	require.NoError(t, err)
	assert.Equal(t, 1, thu.AppointmentCount)

	_, err = f.svc.RescheduleAppointment(ctx, b.AppointmentID, RescheduleRequest{NewTime: on(wednesday, 13, 30)})
	require.NoError(t, err, "an appointment does not conflict with itself")
}

func TestRescheduleUnknownAppointment(t *testing.T) {
	f := setup(t)

	_, err := f.svc.RescheduleAppointment(context.Background(), uuid.New(), RescheduleRequest{NewTime: on(wednesday, 10, 0)})
	assert.True(t, errors.Is(err, apperr.NotFound))
}

func TestCancelAppointmentFreesSlot(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	a := f.book(t, calendar.Consultation, on(wednesday, 10, 0))

	cancelled, err := f.svc.CancelAppointment(ctx, a.AppointmentID, CancelRequest{Reason: "changed mind"})
	require.NoError(t, err)
	assert.Equal(t, domain.AppointmentCancelled, cancelled.Status)
	require.NotNil(t, cancelled.CancelledAt)

	history, err := f.svc.ListHistory(ctx, a.AppointmentID)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, domain.HistoryCancelled, history[0].Action)

	reminders, err := f.svc.ListReminders(ctx, a.AppointmentID)
	require.NoError(t, err)
	assert.Empty(t, reminders)

	cached, err := f.wl.Cached(ctx, on(wednesday, 0, 0))
	require.NoError(t, err)
	assert.Zero(t, cached.AppointmentCount)

	_, err = f.svc.CancelAppointment(ctx, a.AppointmentID, CancelRequest{})
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))

	f.book(t, calendar.Consultation, on(wednesday, 10, 0))
}

func TestUpdateAppointmentStatus(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	a := f.book(t, calendar.Consultation, on(wednesday, 10, 0))

	_, err := f.svc.UpdateAppointmentStatus(ctx, a.AppointmentID, StatusRequest{Status: domain.AppointmentCancelled})
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))

	done, err := f.svc.UpdateAppointmentStatus(ctx, a.AppointmentID, StatusRequest{Status: domain.AppointmentNoShow})
	require.NoError(t, err)
	assert.Equal(t, domain.AppointmentNoShow, done.Status)

	_, err = f.svc.UpdateAppointmentStatus(ctx, a.AppointmentID, StatusRequest{Status: domain.AppointmentCompleted})
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))

	_, err = f.svc.UpdateAppointmentStatus(ctx, uuid.New(), StatusRequest{Status: domain.AppointmentCompleted})
	assert.True(t, errors.Is(err, apperr.NotFound))
}

func TestCalculateWorkloadImpact(t *testing.T) {
	f := setup(t)
	f.seedTask(t, 1, on(thursday, 8, 0), 7)

	impact, err := f.svc.CalculateWorkloadImpact(context.Background(), on(thursday, 0, 0))
	require.NoError(t, err)
	assert.Equal(t, "2025-11-06", impact.Date)
	assert.Equal(t, "high", impact.Impact)

	impact, err = f.svc.CalculateWorkloadImpact(context.Background(), on(tuesday, 0, 0))
	require.NoError(t, err)
	assert.Equal(t, "low", impact.Impact)
	assert.InDelta(t, 0.0625, impact.ProjectedUtilization, 1e-9)
}
