package domain

import "time"

// CommuteDeparture is one logged destination search
type CommuteDeparture struct {
	Destination string       `json:"destination"`
	DayOfWeek   time.Weekday `json:"day_of_week"`
	Hour        int          `json:"hour"`
	Minute      int          `json:"minute"`
	Timestamp   time.Time    `json:"timestamp"`
}

// MinutesOfDay returns minutes since local midnight.
func (d CommuteDeparture) MinutesOfDay() int {
	return d.Hour*60 + d.Minute
}

// CommutePattern is a recurring destination, weekday and time-of-day cluster
type CommutePattern struct {
	Destination string       `json:"destination"`
	DayOfWeek   time.Weekday `json:"day_of_week"`
	AvgHour     int          `json:"avg_hour"`
	AvgMinute   int          `json:"avg_minute"`
	Occurrences int          `json:"occurrences"`
	LastUsed    time.Time    `json:"last_used"`
}

// MinutesOfDay returns the pattern time as minutes since midnight.
func (p CommutePattern) MinutesOfDay() int {
	return p.AvgHour*60 + p.AvgMinute
}

// Occurrence returns the pattern time on whichever of yesterday, today or
// tomorrow (relative to ref, in ref's location) falls on the pattern's weekday.
// It reports false when none of them does.
func (p CommutePattern) Occurrence(ref time.Time) (time.Time, bool) {
	for _, offset := range []int{0, 1, -1} {
		day := ref.AddDate(0, 0, offset)
		if day.Weekday() == p.DayOfWeek {
			return time.Date(day.Year(), day.Month(), day.Day(), p.AvgHour, p.AvgMinute, 0, 0, ref.Location()), true
		}
	}
	return time.Time{}, false
}
