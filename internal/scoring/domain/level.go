package domain

import "time"

// ComputeLevel maps a total score onto the level ladder. thresholds
// holds the minimum score per level, starting at level 1; the top
// level is open-ended.
func ComputeLevel(thresholds []int64, totalScore int64) int {
	level := 1
	for i, min := range thresholds {
		if totalScore < min {
			break
		}
		level = i + 1
	}
	return level
}

// ConsecutiveDays counts the streak ending at the most recent
// timestamp: the number of consecutive UTC calendar days, walking
// backward from the latest day present, before the first gap.
// Timestamps may arrive in any order.
func ConsecutiveDays(stamps []time.Time) int {
	if len(stamps) == 0 {
		return 0
	}

	days := make(map[time.Time]struct{}, len(stamps))
	var latest time.Time
	for _, ts := range stamps {
		day := ts.UTC().Truncate(24 * time.Hour)
		days[day] = struct{}{}
		if day.After(latest) {
			latest = day
		}
	}

	streak := 0
	for day := latest; ; day = day.AddDate(0, 0, -1) {
		if _, ok := days[day]; !ok {
			break
		}
		streak++
	}
	return streak
}
