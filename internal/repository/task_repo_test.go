package repository_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"framestudio/internal/database/dbtest"
	"framestudio/internal/domain"
	"framestudio/internal/modules/calendar"
	"framestudio/internal/repository"
)

func newTask(orderID int64, status domain.TaskStatus, start time.Time) *domain.ScheduledTask {
	return &domain.ScheduledTask{
		OrderID: orderID, StartTime: start, EndTime: start.Add(2 * time.Hour),
		Complexity: calendar.Simple, EstimatedHours: 2, Status: status, Priority: 3, Deadline: start.AddDate(0, 0, 2),
	}
}

func TestCreateTaskOneLiveTaskPerOrder(t *testing.T) {
	store := repository.NewStore(dbtest.Open(t), repository.DefaultRetryConfig())
	ctx := context.Background()
	start := time.Date(2025, 11, 3, 8, 0, 0, 0, time.UTC)

	require.NoError(t, store.CreateTask(ctx, newTask(1, domain.TaskScheduled, start)))

	err := store.CreateTask(ctx, newTask(1, domain.TaskScheduled, start.Add(4*time.Hour)))
	require.Error(t, err)
	assert.True(t, errors.Is(err, repository.ErrDuplicate))

	tasks, err := store.ListTasksByOrderIDs(ctx, []int64{1})
	require.NoError(t, err)
	assert.Len(t, tasks, 1)
}

func TestCreateTaskAfterCancellation(t *testing.T) {
	store := repository.NewStore(dbtest.Open(t), repository.DefaultRetryConfig())
	ctx := context.Background()
	start := time.Date(2025, 11, 3, 8, 0, 0, 0, time.UTC)

	first := newTask(1, domain.TaskScheduled, start)
	require.NoError(t, store.CreateTask(ctx, first))
	first.Status = domain.TaskCancelled
	require.NoError(t, store.SaveTask(ctx, first))

	require.NoError(t, store.CreateTask(ctx, newTask(1, domain.TaskScheduled, start.AddDate(0, 0, 1))))

	tasks, err := store.ListTasksByOrderIDs(ctx, []int64{1})
	require.NoError(t, err)
	require.Len(t, tasks, 2)
	assert.Equal(t, domain.TaskCancelled, tasks[0].Status)
	assert.Equal(t, domain.TaskScheduled, tasks[1].Status)
}
