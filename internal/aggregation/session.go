package aggregation

import (
	"strconv"
	"time"
)

// Classification tables for session-derived user properties. Range
// index strings become counter field names, so they are stable once
// data has been written.
var (
	durationRanges = [][2]int64{
		{0, 10},
		{11, 30},
		{31, 60},
		{61, 180},
		{181, 600},
		{601, 1800},
		{1801, 3600},
	}
	durationMax int64 = 3601

	// Bounds in hours since the previous session.
	frequencyRanges = [][2]int64{
		{0, 1},
		{1, 24},
		{24, 48},
		{48, 72},
		{72, 96},
		{96, 120},
		{120, 144},
		{144, 168},
		{168, 192},
		{192, 360},
		{360, 744},
	}
	frequencyMaxHours int64 = 744

	loyaltyRanges = [][2]int64{
		{0, 1},
		{2, 2},
		{3, 5},
		{6, 9},
		{10, 19},
		{20, 49},
		{50, 99},
		{100, 499},
	}
	loyaltyMax int64 = 500
)

// DurationRange buckets a completed session length in seconds.
func DurationRange(seconds int64) string {
	if seconds >= durationMax {
		return strconv.Itoa(len(durationRanges))
	}
	for i, r := range durationRanges {
		if seconds >= r[0] && seconds <= r[1] {
			return strconv.Itoa(i)
		}
	}
	return "0"
}

// FrequencyRange buckets the gap since the user's previous session.
func FrequencyRange(elapsedSeconds int64) string {
	if elapsedSeconds >= frequencyMaxHours*3600 {
		return strconv.Itoa(len(frequencyRanges))
	}
	for i, r := range frequencyRanges {
		if elapsedSeconds >= r[0]*3600 && elapsedSeconds < r[1]*3600 {
			return strconv.Itoa(i)
		}
	}
	return "0"
}

// LoyaltyRange buckets the user's lifetime session count, including
// the session being recorded.
func LoyaltyRange(sessionCount int64) string {
	if sessionCount >= loyaltyMax {
		return strconv.Itoa(len(loyaltyRanges))
	}
	for i, r := range loyaltyRanges {
		if sessionCount >= r[0] && sessionCount <= r[1] {
			return strconv.Itoa(i)
		}
	}
	return "0"
}

// UniqueLevels decides which bucket levels count a returning user as
// unique again. A user is unique for a level when their previous
// session ended before the level's current period began. The hourly
// case is reported separately because only the sessions series keeps
// hourly uniques.
func UniqueLevels(tc TimeContext, lastSeen int64, loc *time.Location) (levels []string, hourly bool) {
	lastYear, lastWeek := YearWeekOf(lastSeen, loc)
	if strconv.Itoa(lastYear) == tc.Yearly && lastWeek < tc.Week {
		levels = append(levels, tc.WeeklyKey())
	}
	if lastSeen <= tc.Timestamp-tc.SecondsIntoHour() {
		hourly = true
	}
	if lastSeen <= tc.Timestamp-tc.SecondsIntoDay() {
		levels = append(levels, tc.Daily)
	}
	if lastSeen <= tc.Timestamp-tc.SecondsIntoMonth() {
		levels = append(levels, tc.Monthly)
	}
	if lastSeen < tc.Timestamp-tc.SecondsIntoMonth() {
		levels = append(levels, tc.Yearly)
	}
	return levels, hourly
}
