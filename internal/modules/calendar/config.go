package calendar

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

type AppointmentType string

const (
	Consultation AppointmentType = "consultation"
	FrameFitting AppointmentType = "frame_fitting"
	Pickup       AppointmentType = "pickup"
	DesignReview AppointmentType = "design_review"
)

type Complexity string

const (
	Simple  Complexity = "simple"
	Medium  Complexity = "medium"
	Complex Complexity = "complex"
)

// TypeConfig is the fixed shape of one appointment type.
type TypeConfig struct {
	DurationHours float64 `json:"duration_hours"`
	BufferMinutes int     `json:"buffer_minutes"`
	Capacity      int     `json:"capacity"`
}

func (t TypeConfig) Duration() time.Duration {
	return time.Duration(t.DurationHours * float64(time.Hour))
}

func (t TypeConfig) Buffer() time.Duration {
	return time.Duration(t.BufferMinutes) * time.Minute
}

// IsLong reports whether the appointment lasts an hour or more.
func (t TypeConfig) IsLong() bool { return t.DurationHours >= 1 }

// ComplexityConfig supplies defaults for orders that omit hours or priority.
type ComplexityConfig struct {
	MaxHours        float64 `json:"max_hours"`
	DefaultPriority int     `json:"default_priority"`
}

// Thresholds are the lower bounds of the normal, heavy and overloaded bands.
type Thresholds struct {
	Normal     float64 `json:"normal"`
	Heavy      float64 `json:"heavy"`
	Overloaded float64 `json:"overloaded"`
}

type Config struct {
	TimeZone              string                      `json:"time_zone"`
	WorkingDays           []string                    `json:"working_days"`
	DayStart              string                      `json:"day_start"`
	DayEnd                string                      `json:"day_end"`
	MaxDailyHours         float64                     `json:"max_daily_hours"`
	SlotMinutes           int                         `json:"slot_minutes"`
	TaskBufferMinutes     int                         `json:"task_buffer_minutes"`
	AppointmentTypes      map[string]TypeConfig       `json:"appointment_types"`
	Complexities          map[string]ComplexityConfig `json:"complexities"`
	Thresholds            Thresholds                  `json:"thresholds"`
	RecommendedScore      int                         `json:"recommended_score"`
	ReminderLeadHours     []int                       `json:"reminder_lead_hours"`
	ImpactEstimateHours   float64                     `json:"impact_estimate_hours"`
	HighImpactUtilization float64                     `json:"high_impact_utilization"`
}

func DefaultConfig() Config {
	return Config{
		TimeZone:          "UTC",
		WorkingDays:       []string{"monday", "tuesday", "wednesday", "thursday", "friday"},
		DayStart:          "08:00",
		DayEnd:            "17:00",
		MaxDailyHours:     8,
		SlotMinutes:       30,
		TaskBufferMinutes: 0,
		AppointmentTypes: map[string]TypeConfig{
			string(Consultation): {DurationHours: 1, BufferMinutes: 15, Capacity: 1},
			string(FrameFitting): {DurationHours: 1, BufferMinutes: 15, Capacity: 1},
			string(DesignReview): {DurationHours: 0.5, BufferMinutes: 0, Capacity: 2},
			string(Pickup):       {DurationHours: 0.25, BufferMinutes: 0, Capacity: 4},
		},
		Complexities: map[string]ComplexityConfig{
			string(Simple):  {MaxHours: 2, DefaultPriority: 3},
			string(Medium):  {MaxHours: 4, DefaultPriority: 2},
			string(Complex): {MaxHours: 8, DefaultPriority: 1},
		},
		Thresholds:            Thresholds{Normal: 0.6, Heavy: 0.8, Overloaded: 1.0},
		RecommendedScore:      80,
		ReminderLeadHours:     []int{24, 2},
		ImpactEstimateHours:   0.5,
		HighImpactUtilization: 0.9,
	}
}

func (c Config) Validate() error {
	if _, err := time.LoadLocation(c.TimeZone); err != nil {
		return fmt.Errorf("calendar.time_zone %q: %w", c.TimeZone, err)
	}
	if len(c.WorkingDays) == 0 {
		return fmt.Errorf("calendar.working_days must not be empty")
	}
	for _, d := range c.WorkingDays {
		if _, ok := weekdayByName[strings.ToLower(strings.TrimSpace(d))]; !ok {
			return fmt.Errorf("calendar.working_days: unknown weekday %q", d)
		}
	}
	open, err := parseClock(c.DayStart)
	if err != nil {
		return fmt.Errorf("calendar.day_start: %w", err)
	}
	closeAt, err := parseClock(c.DayEnd)
	if err != nil {
		return fmt.Errorf("calendar.day_end: %w", err)
	}
	if closeAt <= open {
		return fmt.Errorf("calendar.day_end must be after day_start")
	}
	if c.MaxDailyHours <= 0 {
		return fmt.Errorf("calendar.max_daily_hours must be > 0")
	}
	if c.SlotMinutes <= 0 {
		return fmt.Errorf("calendar.slot_minutes must be > 0")
	}
	if c.TaskBufferMinutes < 0 {
		return fmt.Errorf("calendar.task_buffer_minutes must be >= 0")
	}
	if len(c.AppointmentTypes) == 0 {
		return fmt.Errorf("calendar.appointment_types must not be empty")
	}
	for name, t := range c.AppointmentTypes {
		if t.DurationHours <= 0 || t.Capacity <= 0 || t.BufferMinutes < 0 {
			return fmt.Errorf("calendar.appointment_types.%s: duration and capacity must be > 0", name)
		}
	}
	for name, cx := range c.Complexities {
		if cx.MaxHours <= 0 {
			return fmt.Errorf("calendar.complexities.%s: max_hours must be > 0", name)
		}
	}
	th := c.Thresholds
	if !(th.Normal > 0 && th.Normal < th.Heavy && th.Heavy < th.Overloaded) {
		return fmt.Errorf("calendar.thresholds must be increasing: %v < %v < %v", th.Normal, th.Heavy, th.Overloaded)
	}
	for _, h := range c.ReminderLeadHours {
		if h <= 0 {
			return fmt.Errorf("calendar.reminder_lead_hours must be > 0")
		}
	}
	return nil
}

// AppointmentTypeNames lists configured types in stable order.
func (c Config) AppointmentTypeNames() []string {
	out := make([]string, 0, len(c.AppointmentTypes))
	for k := range c.AppointmentTypes {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

var weekdayByName = map[string]time.Weekday{
	"sunday":    time.Sunday,
	"monday":    time.Monday,
	"tuesday":   time.Tuesday,
	"wednesday": time.Wednesday,
	"thursday":  time.Thursday,
	"friday":    time.Friday,
	"saturday":  time.Saturday,
}

// parseClock returns minutes after midnight for "15:04".
func parseClock(v string) (int, error) {
	t, err := time.Parse("15:04", strings.TrimSpace(v))
	if err != nil {
		return 0, err
	}
	return t.Hour()*60 + t.Minute(), nil
}
