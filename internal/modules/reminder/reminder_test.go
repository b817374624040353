package reminder

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"framestudio/internal/database/dbtest"
	"framestudio/internal/domain"
	"framestudio/internal/modules/calendar"
	"framestudio/internal/pkg/logger"
	"framestudio/internal/repository"
)

var now = time.Date(2025, 11, 3, 9, 0, 0, 0, time.UTC)

func appointmentAt(at time.Time) domain.Appointment {
	return domain.Appointment{
		ID:              uuid.New(),
		CustomerID:      42,
		Type:            calendar.Consultation,
		AppointmentTime: at,
		AppointmentEnd:  at.Add(time.Hour),
		Status:          domain.AppointmentConfirmed,
	}
}

func TestDeriveSkipsPastLeadTimes(t *testing.T) {
	a := appointmentAt(now.Add(3 * time.Hour))

	got := Derive(a, []int{24, 2}, now)
	require.Len(t, got, 1)
	assert.Equal(t, now.Add(time.Hour), got[0].ReminderTime)
	assert.Equal(t, DefaultMethod, got[0].Method)
	assert.Equal(t, domain.ReminderPending, got[0].Status)
	assert.Equal(t, a.ID, got[0].AppointmentID)
	assert.Equal(t, int64(42), got[0].CustomerID)
}

func TestDeriveUsesAppointmentPreferences(t *testing.T) {
	a := appointmentAt(now.Add(72 * time.Hour))
	a.ReminderPreferences = []int{48, 1, 48, 0}
	a.ContactMethod = "sms"

	got := Derive(a, []int{24, 2}, now)
	require.Len(t, got, 2)
	assert.Equal(t, now.Add(24*time.Hour), got[0].ReminderTime)
	assert.Equal(t, now.Add(71*time.Hour), got[1].ReminderTime)
	assert.Equal(t, "sms", got[1].Method)
}

type mockNotifier struct {
	mock.Mock
}

func (m *mockNotifier) Notify(ctx context.Context, n Notification) error {
	args := m.Called(ctx, n)
	return args.Error(0)
}

func setupStore(t *testing.T) *repository.Store {
	t.Helper()
	return repository.NewStore(dbtest.Open(t), repository.DefaultRetryConfig())
}

func TestDispatchDue(t *testing.T) {
	store := setupStore(t)
	ctx := context.Background()

	ok := appointmentAt(now.Add(time.Hour))
	broken := appointmentAt(now.Add(time.Hour))
	broken.CustomerID = 7
	later := appointmentAt(now.Add(48 * time.Hour))

	for _, a := range []domain.Appointment{ok, broken, later} {
		require.NoError(t, store.ReplaceReminders(ctx, a.ID, Derive(a, []int{24, 2}, now.Add(-2*time.Hour))))
	}

	notifier := &mockNotifier{}
	notifier.On("Notify", mock.Anything, mock.MatchedBy(func(n Notification) bool {
		return n.AppointmentID == ok.ID
	})).Return(nil).Once()
	notifier.On("Notify", mock.Anything, mock.MatchedBy(func(n Notification) bool {
		return n.CustomerID == 7
	})).Return(errors.New("gateway down")).Once()
	d := NewDispatcher(store, notifier, func() time.Time { return now }, DefaultDispatcherConfig(), logger.Nop{}, nil)

	sent, err := d.DispatchDue(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, sent)
	notifier.AssertExpectations(t)

	rs, err := store.ListReminders(ctx, broken.ID)
	require.NoError(t, err)
	require.Len(t, rs, 1)
	assert.Equal(t, domain.ReminderFailed, rs[0].Status)
	assert.Equal(t, "gateway down", rs[0].LastError)
	assert.Equal(t, 1, rs[0].Attempts)

	rs, err = store.ListReminders(ctx, later.ID)
	require.NoError(t, err)
	require.Len(t, rs, 2)
	for _, r := range rs {
		assert.Equal(t, domain.ReminderPending, r.Status)
	}

	sent, err = d.DispatchDue(ctx)
	require.NoError(t, err)
	assert.Zero(t, sent)
	notifier.AssertNumberOfCalls(t, "Notify", 2)
}

func TestCleanupRemovesOnlyFinishedReminders(t *testing.T) {
	store := setupStore(t)
	ctx := context.Background()

	old := appointmentAt(now.Add(-40 * 24 * time.Hour))
	require.NoError(t, store.ReplaceReminders(ctx, old.ID, Derive(old, []int{2}, old.AppointmentTime.Add(-48*time.Hour))))
	rs, err := store.ListReminders(ctx, old.ID)
	require.NoError(t, err)
	require.Len(t, rs, 1)
	require.NoError(t, store.MarkReminder(ctx, rs[0].ID, domain.ReminderSent, ""))

	pending := appointmentAt(now.Add(-40 * 24 * time.Hour))
	require.NoError(t, store.ReplaceReminders(ctx, pending.ID, Derive(pending, []int{2}, pending.AppointmentTime.Add(-48*time.Hour))))

	d := NewDispatcher(store, LogNotifier{Log: logger.Nop{}}, func() time.Time { return now }, DefaultDispatcherConfig(), logger.Nop{}, nil)
	deleted, err := d.Cleanup(ctx, 30)
	require.NoError(t, err)
	assert.Equal(t, int64(1), deleted)

	rs, err = store.ListReminders(ctx, pending.ID)
	require.NoError(t, err)
	assert.Len(t, rs, 1)
}

func TestSchedulerRegenerateReplacesRows(t *testing.T) {
	store := setupStore(t)
	ctx := context.Background()
	cal, err := calendar.New(calendar.DefaultConfig(), calendar.WithClock(func() time.Time { return now }))
	require.NoError(t, err)
	s := NewScheduler(store, cal, logger.Nop{})

	a := appointmentAt(now.Add(72 * time.Hour))
	s.Regenerate(ctx, a)
	rs, err := store.ListReminders(ctx, a.ID)
	require.NoError(t, err)
	assert.Len(t, rs, 2)

	a.AppointmentTime = now.Add(5 * time.Hour)
	a.AppointmentEnd = a.AppointmentTime.Add(time.Hour)
	s.Regenerate(ctx, a)
	rs, err = store.ListReminders(ctx, a.ID)
	require.NoError(t, err)
	require.Len(t, rs, 1)
	assert.True(t, now.Add(3*time.Hour).Equal(rs[0].ReminderTime))

	s.Drop(ctx, a)
	rs, err = store.ListReminders(ctx, a.ID)
	require.NoError(t, err)
	assert.Empty(t, rs)
}

func TestDispatcherStartStops(t *testing.T) {
	store := setupStore(t)
	d := NewDispatcher(store, LogNotifier{Log: logger.Nop{}}, nil, DispatcherConfig{Interval: 10 * time.Millisecond}, logger.Nop{}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	stop := d.Start(ctx)
	time.Sleep(30 * time.Millisecond)
	close(stop)
}
