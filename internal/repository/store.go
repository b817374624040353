package repository

import (
	"context"
	"errors"
	"sort"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"framestudio/internal/domain"
	"framestudio/internal/pkg/apperr"
	"framestudio/internal/pkg/daylock"
)

var (
	ErrNotFound  = errors.New("record not found")
	ErrDuplicate = errors.New("duplicate record")
)

// Calendar is the persistence surface of the scheduling engine. Range
// arguments are half-open: [from, to).
type Calendar interface {
	CreateTask(ctx context.Context, t *domain.ScheduledTask) error
	SaveTask(ctx context.Context, t *domain.ScheduledTask) error
	GetTaskByOrderID(ctx context.Context, orderID int64) (*domain.ScheduledTask, error)
	ListTasksByOrderIDs(ctx context.Context, orderIDs []int64) ([]domain.ScheduledTask, error)
	ListTasksByStatus(ctx context.Context, statuses ...domain.TaskStatus) ([]domain.ScheduledTask, error)
	ListActiveTasksBetween(ctx context.Context, from, to time.Time) ([]domain.ScheduledTask, error)
	ListTasksStartingBetween(ctx context.Context, from, to time.Time) ([]domain.ScheduledTask, error)

	CreateAppointment(ctx context.Context, a *domain.Appointment) error
	SaveAppointment(ctx context.Context, a *domain.Appointment) error
	GetAppointment(ctx context.Context, id uuid.UUID) (*domain.Appointment, error)
	ListActiveAppointmentsBetween(ctx context.Context, from, to time.Time) ([]domain.Appointment, error)
	ListAppointmentsStartingBetween(ctx context.Context, from, to time.Time) ([]domain.Appointment, error)

	UpsertWorkload(ctx context.Context, w *domain.DailyWorkload) error
	GetWorkload(ctx context.Context, date string) (*domain.DailyWorkload, error)
	ListWorkloads(ctx context.Context, fromDate, toDate string) ([]domain.DailyWorkload, error)

	AppendHistory(ctx context.Context, h *domain.AppointmentHistory) error
	ListHistory(ctx context.Context, appointmentID uuid.UUID) ([]domain.AppointmentHistory, error)

	ReplaceReminders(ctx context.Context, appointmentID uuid.UUID, reminders []domain.ScheduledReminder) error
	DeletePendingReminders(ctx context.Context, appointmentID uuid.UUID) error
	ListReminders(ctx context.Context, appointmentID uuid.UUID) ([]domain.ScheduledReminder, error)
	ListDueReminders(ctx context.Context, before time.Time, limit int) ([]domain.ScheduledReminder, error)
	MarkReminder(ctx context.Context, id uuid.UUID, status domain.ReminderStatus, lastErr string) error
	DeleteRemindersBefore(ctx context.Context, cutoff time.Time) (int64, error)

	// WithDayLock runs fn in one transaction holding an exclusive lock on
	// every listed day (YYYY-MM-DD). Serialization failures are retried with
	// backoff; fn must therefore be safe to run more than once.
	WithDayLock(ctx context.Context, days []string, fn func(tx Calendar) error) error
}

type RetryConfig struct {
	MaxRetries      uint64
	InitialInterval time.Duration
	MaxInterval     time.Duration
}

func DefaultRetryConfig() RetryConfig {
	return RetryConfig{MaxRetries: 4, InitialInterval: 20 * time.Millisecond, MaxInterval: 500 * time.Millisecond}
}

// Store implements Calendar on gorm. A Store returned to a WithDayLock
// callback is bound to that transaction.
type Store struct {
	db    *gorm.DB
	locks *daylock.Locker
	retry RetryConfig
	inTx  bool
}

func NewStore(db *gorm.DB, retry RetryConfig) *Store {
	return &Store{db: db, locks: daylock.New(), retry: retry}
}

func (s *Store) withTx(tx *gorm.DB) *Store {
	return &Store{db: tx, locks: s.locks, retry: s.retry, inTx: true}
}

func (s *Store) WithDayLock(ctx context.Context, days []string, fn func(tx Calendar) error) error {
	if s.inTx {
		return fn(s)
	}
	days = sortedDays(days)

	unlock := s.locks.Lock(days...)
	defer unlock()

	op := func() error {
		err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			for _, d := range days {
				if err := lockDay(tx, d); err != nil {
					return err
				}
			}
			return fn(s.withTx(tx))
		})
		if err == nil || IsRetryable(err) {
			return err
		}
		return backoff.Permanent(err)
	}

	eb := backoff.NewExponentialBackOff()
	eb.InitialInterval = s.retry.InitialInterval
	eb.MaxInterval = s.retry.MaxInterval
	policy := backoff.WithContext(backoff.WithMaxRetries(eb, s.retry.MaxRetries), ctx)

	err := backoff.Retry(op, policy)
	if err != nil && IsRetryable(err) {
		return apperr.Wrap(apperr.KindUnavailable, err, "calendar is busy, try again")
	}
	return err
}

// lockDay materializes the day's lock row and takes a row lock on it. SQLite
// ignores the locking clause and serializes writers itself.
func lockDay(tx *gorm.DB, day string) error {
	if err := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&domain.CalendarDayLock{Day: day}).Error; err != nil {
		return err
	}
	var row domain.CalendarDayLock
	return tx.Clauses(clause.Locking{Strength: "UPDATE"}).Where("day = ?", day).First(&row).Error
}

// IsRetryable reports transient serialization failures.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "40001", "40P01", "55P03":
			return true
		}
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "database is locked") ||
		strings.Contains(msg, "database table is locked") ||
		strings.Contains(msg, "sqlite_busy")
}

// IsUniqueViolation reports a unique constraint failure on either driver.
func IsUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return strings.Contains(strings.ToLower(err.Error()), "unique constraint failed")
}

func notFound(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	return err
}

func sortedDays(days []string) []string {
	out := append([]string(nil), days...)
	sort.Strings(out)
	return out
}

func utc(t time.Time) time.Time { return t.UTC() }
