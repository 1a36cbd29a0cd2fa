package commute

import (
	"math"
	"sort"
	"strings"
	"time"

	"transitpulse/internal/domain"
)

const (
	// ClusterGap is the largest gap between consecutive departures of one cluster.
	ClusterGap = 45
	// MinOccurrences is the smallest cluster that becomes a pattern.
	MinOccurrences = 3
	// Retention is how long departures are kept in the log.
	Retention = 60 * 24 * time.Hour
)

// NewDeparture builds a log record from a search at t, in t's location.
func NewDeparture(destination string, t time.Time) domain.CommuteDeparture {
	return domain.CommuteDeparture{
		Destination: strings.TrimSpace(destination),
		DayOfWeek:   t.Weekday(),
		Hour:        t.Hour(),
		Minute:      t.Minute(),
		Timestamp:   t,
	}
}

// Prune drops departures older than Retention relative to now.
func Prune(log []domain.CommuteDeparture, now time.Time) []domain.CommuteDeparture {
	cutoff := now.Add(-Retention)
	out := make([]domain.CommuteDeparture, 0, len(log))
	for _, d := range log {
		if !d.Timestamp.Before(cutoff) {
			out = append(out, d)
		}
	}
	return out
}

type groupKey struct {
	destination string
	day         time.Weekday
}

// DetectPatterns clusters departures by destination, weekday and time of day.
// The result depends only on the input and is sorted by destination, weekday
// and time.
func DetectPatterns(departures []domain.CommuteDeparture) []domain.CommutePattern {
	groups := make(map[groupKey][]domain.CommuteDeparture)
	for _, d := range departures {
		name := normalize(d.Destination)
		if name == "" {
			continue
		}
		k := groupKey{destination: name, day: d.DayOfWeek}
		groups[k] = append(groups[k], d)
	}

	var patterns []domain.CommutePattern
	for _, members := range groups {
		sort.SliceStable(members, func(i, j int) bool {
			mi, mj := members[i].MinutesOfDay(), members[j].MinutesOfDay()
			if mi != mj {
				return mi < mj
			}
			return members[i].Timestamp.Before(members[j].Timestamp)
		})

		start := 0
		for i := 1; i <= len(members); i++ {
			if i < len(members) && members[i].MinutesOfDay()-members[i-1].MinutesOfDay() <= ClusterGap {
				continue
			}
			if cluster := members[start:i]; len(cluster) >= MinOccurrences {
				patterns = append(patterns, toPattern(cluster))
			}
			start = i
		}
	}

	sort.Slice(patterns, func(i, j int) bool {
		a, b := patterns[i], patterns[j]
		if na, nb := normalize(a.Destination), normalize(b.Destination); na != nb {
			return na < nb
		}
		if a.DayOfWeek != b.DayOfWeek {
			return a.DayOfWeek < b.DayOfWeek
		}
		return a.MinutesOfDay() < b.MinutesOfDay()
	})
	return patterns
}

func toPattern(cluster []domain.CommuteDeparture) domain.CommutePattern {
	total := 0
	latest := cluster[0]
	for _, d := range cluster {
		total += d.MinutesOfDay()
		if d.Timestamp.After(latest.Timestamp) {
			latest = d
		}
	}
	mean := float64(total) / float64(len(cluster))

	hour := int(math.Floor(mean / 60))
	minute := int(math.Round(math.Mod(mean, 60)))
	if minute == 60 {
		hour, minute = hour+1, 0
	}

	return domain.CommutePattern{
		Destination: strings.TrimSpace(latest.Destination),
		DayOfWeek:   latest.DayOfWeek,
		AvgHour:     hour,
		AvgMinute:   minute,
		Occurrences: len(cluster),
		LastUsed:    latest.Timestamp,
	}
}

func normalize(destination string) string {
	return strings.ToLower(strings.TrimSpace(destination))
}

// Today returns the patterns whose nearest occurrence lies within [from, to]
// minutes of now, soonest first. The window crosses midnight, so a Tuesday
// 00:10 pattern is 20 minutes ahead at Monday 23:50.
func Today(patterns []domain.CommutePattern, now time.Time, from, to int) []domain.CommutePattern {
	now = now.Truncate(time.Minute)

	type match struct {
		pattern domain.CommutePattern
		at      time.Time
	}
	var matches []match
	for _, p := range patterns {
		at, ok := p.Occurrence(now)
		if !ok {
			continue
		}
		diff := int(at.Sub(now) / time.Minute)
		if diff >= from && diff <= to {
			matches = append(matches, match{p, at})
		}
	}
	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].at.Before(matches[j].at)
	})

	out := make([]domain.CommutePattern, len(matches))
	for i, m := range matches {
		out[i] = m.pattern
	}
	return out
}
