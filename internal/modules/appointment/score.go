package appointment

import (
	"time"

	"framestudio/internal/modules/calendar"
)

// CalculateRecommendationScore ranks a start time from 0 to 100. Hour
// windows are half-open and read in the calendar's time zone.
func CalculateRecommendationScore(start time.Time, utilization float64, tc calendar.TypeConfig) int {
	score := 100

	switch {
	case utilization > 0.8:
		score -= 30
	case utilization > 0.6:
		score -= 10
	}
	if utilization < 0.4 {
		score += 20
	}

	hour := start.Hour()
	if tc.IsLong() {
		switch {
		case hour >= 9 && hour < 11:
			score += 15
		case hour >= 14 && hour < 16:
			score += 10
		case hour >= 16:
			score -= 20
		}
	} else if hour >= 11 && hour < 14 {
		score += 10
	}

	switch start.Weekday() {
	case time.Monday, time.Friday:
		score += 5
	case time.Wednesday:
		score += 10
	}

	if score < 0 {
		return 0
	}
	if score > 100 {
		return 100
	}
	return score
}

// benefits explains a recommended slot in plain words.
func benefits(s Slot) []string {
	var out []string
	if s.Workload.Category == calendar.Light {
		out = append(out, "More attention available on a light day")
	}
	if s.RecommendationScore >= 90 {
		out = append(out, "Optimal time")
	}
	if s.Workload.Utilization < 0.5 {
		out = append(out, "Flexible if changes are needed")
	}
	return out
}
