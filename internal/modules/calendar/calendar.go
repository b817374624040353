// Package calendar is the working-time and capacity model every scheduler
// consults. It holds no state beyond its configuration and clock.
package calendar

import (
	"math"
	"strings"
	"time"

	"framestudio/internal/pkg/apperr"
)

const dayLayout = "2006-01-02"

type WorkloadCategory string

const (
	Light      WorkloadCategory = "light"
	Normal     WorkloadCategory = "normal"
	Heavy      WorkloadCategory = "heavy"
	Overloaded WorkloadCategory = "overloaded"
)

// Rank orders categories from lightest (0) to overloaded (3).
func (c WorkloadCategory) Rank() int {
	switch c {
	case Light:
		return 0
	case Normal:
		return 1
	case Heavy:
		return 2
	default:
		return 3
	}
}

type Option func(*Calendar)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(c *Calendar) { c.now = now }
}

type Calendar struct {
	cfg      Config
	loc      *time.Location
	workdays map[time.Weekday]bool
	openMin  int
	closeMin int
	now      func() time.Time
}

func New(cfg Config, opts ...Option) (*Calendar, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	loc, _ := time.LoadLocation(cfg.TimeZone)
	openMin, _ := parseClock(cfg.DayStart)
	closeMin, _ := parseClock(cfg.DayEnd)

	c := &Calendar{
		cfg:      cfg,
		loc:      loc,
		workdays: make(map[time.Weekday]bool, len(cfg.WorkingDays)),
		openMin:  openMin,
		closeMin: closeMin,
		now:      time.Now,
	}
	for _, d := range cfg.WorkingDays {
		c.workdays[weekdayByName[strings.ToLower(strings.TrimSpace(d))]] = true
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

func (c *Calendar) Config() Config           { return c.cfg }
func (c *Calendar) Location() *time.Location { return c.loc }
func (c *Calendar) Now() time.Time           { return c.now().In(c.loc) }
func (c *Calendar) MaxDailyHours() float64   { return c.cfg.MaxDailyHours }

func (c *Calendar) Granularity() time.Duration {
	return time.Duration(c.cfg.SlotMinutes) * time.Minute
}

func (c *Calendar) TaskBuffer() time.Duration {
	return time.Duration(c.cfg.TaskBufferMinutes) * time.Minute
}

func (c *Calendar) IsWorkingDay(t time.Time) bool {
	return c.workdays[t.In(c.loc).Weekday()]
}

// StartOfDay returns local midnight of the day containing t.
func (c *Calendar) StartOfDay(t time.Time) time.Time {
	t = t.In(c.loc)
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, c.loc)
}

// DayBounds returns [midnight, next midnight) for the day containing t.
func (c *Calendar) DayBounds(t time.Time) (time.Time, time.Time) {
	start := c.StartOfDay(t)
	return start, start.AddDate(0, 0, 1)
}

func (c *Calendar) DayKey(t time.Time) string {
	return t.In(c.loc).Format(dayLayout)
}

func (c *Calendar) ParseDay(key string) (time.Time, error) {
	d, err := time.ParseInLocation(dayLayout, key, c.loc)
	if err != nil {
		return time.Time{}, apperr.Invalid("date", "expected YYYY-MM-DD, got %q", key)
	}
	return d, nil
}

// WorkingWindow returns the open and close instants of the day containing t.
func (c *Calendar) WorkingWindow(t time.Time) (time.Time, time.Time) {
	day := c.StartOfDay(t)
	open := day.Add(time.Duration(c.openMin) * time.Minute)
	closeAt := day.Add(time.Duration(c.closeMin) * time.Minute)
	return open, closeAt
}

// WithinWorkingHours reports whether [start, end) lies inside a working day's window.
func (c *Calendar) WithinWorkingHours(start, end time.Time) bool {
	if !c.IsWorkingDay(start) {
		return false
	}
	open, closeAt := c.WorkingWindow(start)
	return !start.Before(open) && !end.After(closeAt)
}

// CeilToSlot rounds t up to the next slot boundary measured from local midnight.
func (c *Calendar) CeilToSlot(t time.Time) time.Time {
	t = t.In(c.loc)
	day := c.StartOfDay(t)
	g := c.Granularity()
	offset := t.Sub(day)
	steps := offset / g
	if offset%g != 0 {
		steps++
	}
	return day.Add(steps * g)
}

func (c *Calendar) AppointmentType(t AppointmentType) (TypeConfig, error) {
	cfg, ok := c.cfg.AppointmentTypes[string(t)]
	if !ok {
		return TypeConfig{}, apperr.Invalid("type", "unknown appointment type %q", t)
	}
	return cfg, nil
}

func (c *Calendar) Complexity(cx Complexity) (ComplexityConfig, error) {
	cfg, ok := c.cfg.Complexities[string(cx)]
	if !ok {
		return ComplexityConfig{}, apperr.Invalid("complexity", "unknown complexity %q", cx)
	}
	return cfg, nil
}

func (c *Calendar) Utilization(hours float64) float64 {
	return hours / c.cfg.MaxDailyHours
}

// Categorize maps utilization onto light [0,0.6), normal [0.6,0.8),
// heavy [0.8,1.0) and overloaded [1.0,∞) with the configured bounds.
func (c *Calendar) Categorize(utilization float64) WorkloadCategory {
	th := c.cfg.Thresholds
	switch {
	case math.IsNaN(utilization):
		return Light
	case utilization >= th.Overloaded:
		return Overloaded
	case utilization >= th.Heavy:
		return Heavy
	case utilization >= th.Normal:
		return Normal
	default:
		return Light
	}
}
