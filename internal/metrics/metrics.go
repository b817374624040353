package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Recorder receives scheduling events.
type Recorder interface {
	BookingResult(appointmentType, result string)
	TaskScheduled(result string)
	CacheRefreshFailed()
	SlotGeneration(d time.Duration)
	ReminderDispatched(status string)
}

type Nop struct{}

func (Nop) BookingResult(string, string) {}
func (Nop) TaskScheduled(string)         {}
func (Nop) CacheRefreshFailed()          {}
func (Nop) SlotGeneration(time.Duration) {}
func (Nop) ReminderDispatched(string)    {}

// PromRecorder records scheduling events in Prometheus metrics.
type PromRecorder struct {
	bookings      *prometheus.CounterVec
	tasks         *prometheus.CounterVec
	cacheFailures prometheus.Counter
	slotLatency   prometheus.Histogram
	reminders     *prometheus.CounterVec
}

// NewPromRecorder registers the collectors on reg, or on the default
// registerer when reg is nil. Already registered collectors are reused.
func NewPromRecorder(reg prometheus.Registerer) (*PromRecorder, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	r := &PromRecorder{
		bookings: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "framestudio_bookings_total",
			Help: "Appointment booking attempts by type and result",
		}, []string{"type", "result"}),
		tasks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "framestudio_tasks_scheduled_total",
			Help: "Production scheduling attempts by result",
		}, []string{"result"}),
		cacheFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "framestudio_workload_cache_refresh_failures_total",
			Help: "Workload cache refreshes that gave up",
		}),
		slotLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "framestudio_slot_generation_seconds",
			Help:    "Time spent generating appointment slots",
			Buckets: prometheus.DefBuckets,
		}),
		reminders: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "framestudio_reminders_dispatched_total",
			Help: "Reminders handed to the notifier by outcome",
		}, []string{"status"}),
	}

	var err error
	if r.bookings, err = register(reg, r.bookings); err != nil {
		return nil, err
	}
	if r.tasks, err = register(reg, r.tasks); err != nil {
		return nil, err
	}
	if r.cacheFailures, err = register(reg, r.cacheFailures); err != nil {
		return nil, err
	}
	if r.slotLatency, err = register(reg, r.slotLatency); err != nil {
		return nil, err
	}
	if r.reminders, err = register(reg, r.reminders); err != nil {
		return nil, err
	}
	return r, nil
}

func register[C prometheus.Collector](reg prometheus.Registerer, c C) (C, error) {
	if err := reg.Register(c); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(C); ok {
				return existing, nil
			}
		}
		return c, err
	}
	return c, nil
}

func (r *PromRecorder) BookingResult(appointmentType, result string) {
	r.bookings.WithLabelValues(appointmentType, result).Inc()
}

func (r *PromRecorder) TaskScheduled(result string) {
	r.tasks.WithLabelValues(result).Inc()
}

func (r *PromRecorder) CacheRefreshFailed() { r.cacheFailures.Inc() }

func (r *PromRecorder) SlotGeneration(d time.Duration) { r.slotLatency.Observe(d.Seconds()) }

func (r *PromRecorder) ReminderDispatched(status string) {
	r.reminders.WithLabelValues(status).Inc()
}
