package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"framestudio/internal/domain"
)

// ReplaceReminders deletes every reminder of the appointment and inserts the
// given set in one transaction.
func (s *Store) ReplaceReminders(ctx context.Context, appointmentID uuid.UUID, reminders []domain.ScheduledReminder) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("appointment_id = ?", appointmentID).Delete(&domain.ScheduledReminder{}).Error; err != nil {
			return err
		}
		if len(reminders) == 0 {
			return nil
		}
		for i := range reminders {
			reminders[i].ReminderTime = utc(reminders[i].ReminderTime)
		}
		return tx.Create(&reminders).Error
	})
}

func (s *Store) DeletePendingReminders(ctx context.Context, appointmentID uuid.UUID) error {
	return s.db.WithContext(ctx).
		Where("appointment_id = ? AND status = ?", appointmentID, domain.ReminderPending).
		Delete(&domain.ScheduledReminder{}).Error
}

func (s *Store) ListReminders(ctx context.Context, appointmentID uuid.UUID) ([]domain.ScheduledReminder, error) {
	var out []domain.ScheduledReminder
	err := s.db.WithContext(ctx).
		Where("appointment_id = ?", appointmentID).
		Order("reminder_time ASC").
		Find(&out).Error
	return out, err
}

func (s *Store) ListDueReminders(ctx context.Context, before time.Time, limit int) ([]domain.ScheduledReminder, error) {
	var out []domain.ScheduledReminder
	err := s.db.WithContext(ctx).
		Where("status = ? AND reminder_time <= ?", domain.ReminderPending, utc(before)).
		Order("reminder_time ASC").
		Limit(limit).
		Find(&out).Error
	return out, err
}

func (s *Store) MarkReminder(ctx context.Context, id uuid.UUID, status domain.ReminderStatus, lastErr string) error {
	return s.db.WithContext(ctx).
		Model(&domain.ScheduledReminder{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"status":     status,
			"last_error": lastErr,
			"attempts":   gorm.Expr("attempts + 1"),
			"updated_at": time.Now().UTC(),
		}).Error
}

// DeleteRemindersBefore removes delivered or failed reminders scheduled before cutoff.
func (s *Store) DeleteRemindersBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	res := s.db.WithContext(ctx).
		Where("status IN ? AND reminder_time < ?", []domain.ReminderStatus{domain.ReminderSent, domain.ReminderFailed}, utc(cutoff)).
		Delete(&domain.ScheduledReminder{})
	return res.RowsAffected, res.Error
}
