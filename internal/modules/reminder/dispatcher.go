package reminder

import (
	"context"
	"time"

	"github.com/google/uuid"

	"framestudio/internal/domain"
	"framestudio/internal/metrics"
	"framestudio/internal/pkg/logger"
	"framestudio/internal/repository"
)

// Notification is what the delivery collaborator receives.
type Notification struct {
	ReminderID    uuid.UUID `json:"reminder_id"`
	AppointmentID uuid.UUID `json:"appointment_id"`
	CustomerID    int64     `json:"customer_id"`
	ReminderTime  time.Time `json:"reminder_time"`
	Method        string    `json:"method"`
}

// Notifier delivers a reminder. The engine never delivers anything itself.
type Notifier interface {
	Notify(ctx context.Context, n Notification) error
}

// LogNotifier only records what would have been sent.
type LogNotifier struct {
	Log logger.Logger
}

func (l LogNotifier) Notify(_ context.Context, n Notification) error {
	l.Log.Infow("reminder due", map[string]any{
		"appointment_id": n.AppointmentID.String(),
		"customer_id":    n.CustomerID,
		"method":         n.Method,
		"reminder_time":  n.ReminderTime.Format(time.RFC3339),
	})
	return nil
}

const cleanupEvery = 24 * time.Hour

type DispatcherConfig struct {
	Interval  time.Duration
	BatchSize int
	// RetentionDays bounds how long sent and failed reminders are kept; 0
	// disables cleanup from the dispatch loop.
	RetentionDays int
}

func DefaultDispatcherConfig() DispatcherConfig {
	return DispatcherConfig{Interval: time.Minute, BatchSize: 100, RetentionDays: 30}
}

type Dispatcher struct {
	store    repository.Calendar
	notifier Notifier
	now      func() time.Time
	cfg      DispatcherConfig
	log      logger.Logger
	metrics  metrics.Recorder
}

func NewDispatcher(store repository.Calendar, notifier Notifier, now func() time.Time, cfg DispatcherConfig, log logger.Logger, rec metrics.Recorder) *Dispatcher {
	if log == nil {
		log = logger.Nop{}
	}
	if rec == nil {
		rec = metrics.Nop{}
	}
	if now == nil {
		now = time.Now
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = DefaultDispatcherConfig().BatchSize
	}
	return &Dispatcher{store: store, notifier: notifier, now: now, cfg: cfg, log: log, metrics: rec}
}

// DispatchDue hands every pending reminder whose time has come to the
// notifier and marks it sent or failed. It returns how many were sent.
func (d *Dispatcher) DispatchDue(ctx context.Context) (int, error) {
	due, err := d.store.ListDueReminders(ctx, d.now(), d.cfg.BatchSize)
	if err != nil {
		return 0, err
	}

	sent := 0
	for _, r := range due {
		n := Notification{
			ReminderID:    r.ID,
			AppointmentID: r.AppointmentID,
			CustomerID:    r.CustomerID,
			ReminderTime:  r.ReminderTime,
			Method:        r.Method,
		}
		status, lastErr := domain.ReminderSent, ""
		if err := d.notifier.Notify(ctx, n); err != nil {
			status, lastErr = domain.ReminderFailed, err.Error()
			d.log.Warnw("reminder delivery failed", map[string]any{"reminder_id": r.ID.String(), "error": lastErr})
		} else {
			sent++
		}
		d.metrics.ReminderDispatched(string(status))
		if err := d.store.MarkReminder(ctx, r.ID, status, lastErr); err != nil {
			return sent, err
		}
	}
	return sent, nil
}

// Cleanup removes sent and failed reminders older than retentionDays.
func (d *Dispatcher) Cleanup(ctx context.Context, retentionDays int) (int64, error) {
	start := time.Now()
	cutoff := d.now().Add(-time.Duration(retentionDays) * 24 * time.Hour)
	deleted, err := d.store.DeleteRemindersBefore(ctx, cutoff)
	if err != nil {
		d.log.Errorf("reminder cleanup failed: %v", err)
		return 0, err
	}
	d.log.Infof("reminder cleanup: deleted %d reminders in %v", deleted, time.Since(start))
	return deleted, nil
}

// Start runs the dispatch loop until ctx is done or the returned channel is
// closed.
func (d *Dispatcher) Start(ctx context.Context) chan struct{} {
	stopCh := make(chan struct{})

	go func() {
		ticker := time.NewTicker(d.cfg.Interval)
		defer ticker.Stop()
		var lastCleanup time.Time

		for {
			select {
			case <-ticker.C:
				if _, err := d.DispatchDue(ctx); err != nil {
					d.log.Errorf("reminder dispatch error: %v", err)
				}
				if d.cfg.RetentionDays > 0 && time.Since(lastCleanup) >= cleanupEvery {
					_, _ = d.Cleanup(ctx, d.cfg.RetentionDays)
					lastCleanup = time.Now()
				}
			case <-stopCh:
				d.log.Infof("reminder dispatcher stopped")
				return
			case <-ctx.Done():
				d.log.Infof("reminder dispatcher stopped (context done)")
				return
			}
		}
	}()

	d.log.Infof("reminder dispatcher started with interval %v", d.cfg.Interval)
	return stopCh
}
