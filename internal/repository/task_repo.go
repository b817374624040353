package repository

import (
	"context"
	"fmt"
	"time"

	"framestudio/internal/domain"
)

func normalizeTask(t *domain.ScheduledTask) {
	t.StartTime = utc(t.StartTime)
	t.EndTime = utc(t.EndTime)
	t.Deadline = utc(t.Deadline)
}

// CreateTask returns ErrDuplicate when the order already has a live task.
func (s *Store) CreateTask(ctx context.Context, t *domain.ScheduledTask) error {
	normalizeTask(t)
	err := s.db.WithContext(ctx).Create(t).Error
	if IsUniqueViolation(err) {
		return fmt.Errorf("order %d: %w", t.OrderID, ErrDuplicate)
	}
	return err
}

func (s *Store) SaveTask(ctx context.Context, t *domain.ScheduledTask) error {
	normalizeTask(t)
	return s.db.WithContext(ctx).Save(t).Error
}

// GetTaskByOrderID returns the most recently created task for the order.
func (s *Store) GetTaskByOrderID(ctx context.Context, orderID int64) (*domain.ScheduledTask, error) {
	var t domain.ScheduledTask
	err := s.db.WithContext(ctx).
		Where("order_id = ?", orderID).
		Order("created_at DESC").
		First(&t).Error
	if err != nil {
		return nil, notFound(err)
	}
	return &t, nil
}

func (s *Store) ListTasksByOrderIDs(ctx context.Context, orderIDs []int64) ([]domain.ScheduledTask, error) {
	var out []domain.ScheduledTask
	if len(orderIDs) == 0 {
		return out, nil
	}
	err := s.db.WithContext(ctx).
		Where("order_id IN ?", orderIDs).
		Order("created_at ASC").
		Find(&out).Error
	return out, err
}

func (s *Store) ListTasksByStatus(ctx context.Context, statuses ...domain.TaskStatus) ([]domain.ScheduledTask, error) {
	var out []domain.ScheduledTask
	err := s.db.WithContext(ctx).
		Where("status IN ?", statuses).
		Order("start_time ASC").
		Find(&out).Error
	return out, err
}

// ListActiveTasksBetween returns scheduled/in-progress tasks overlapping [from, to).
func (s *Store) ListActiveTasksBetween(ctx context.Context, from, to time.Time) ([]domain.ScheduledTask, error) {
	var out []domain.ScheduledTask
	err := s.db.WithContext(ctx).
		Where("status IN ?", domain.ActiveTaskStatuses).
		Where("start_time < ? AND end_time > ?", utc(to), utc(from)).
		Order("start_time ASC").
		Find(&out).Error
	return out, err
}

func (s *Store) ListTasksStartingBetween(ctx context.Context, from, to time.Time) ([]domain.ScheduledTask, error) {
	var out []domain.ScheduledTask
	err := s.db.WithContext(ctx).
		Where("start_time >= ? AND start_time < ?", utc(from), utc(to)).
		Order("start_time ASC").
		Find(&out).Error
	return out, err
}
