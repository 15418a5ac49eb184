package aggregation

import (
	"strconv"
	"time"
)

// TimeContext pins every bucket key of one request to a single instant
// in the owning application's timezone. Client timestamps from the
// future are clamped to the server clock.
type TimeContext struct {
	// Timestamp is the effective unix time of the request.
	Timestamp int64
	// Now is Timestamp rendered in the application timezone.
	Now time.Time

	Yearly  string // "2024"
	Monthly string // "2024.7"
	Daily   string // "2024.7.20"
	Hourly  string // "2024.7.20.13"
	Week    int
}

// NewTimeContext builds the bucket keys for a request. rawTimestamp is
// honored only when it is a 10 digit unix time; anything else falls
// back to serverNow.
func NewTimeContext(loc *time.Location, rawTimestamp string, serverNow time.Time) TimeContext {
	ts := serverNow.Unix()
	if len(rawTimestamp) == 10 {
		if parsed, err := strconv.ParseInt(rawTimestamp, 10, 64); err == nil {
			if parsed > serverNow.Unix() {
				parsed = serverNow.Unix()
			}
			ts = parsed
		}
	}

	now := time.Unix(ts, 0).In(loc)

	yearly := strconv.Itoa(now.Year())
	monthly := yearly + "." + strconv.Itoa(int(now.Month()))
	daily := monthly + "." + strconv.Itoa(now.Day())
	hourly := daily + "." + strconv.Itoa(now.Hour())

	return TimeContext{
		Timestamp: ts,
		Now:       now,
		Yearly:    yearly,
		Monthly:   monthly,
		Daily:     daily,
		Hourly:    hourly,
		Week:      weekOfYear(now),
	}
}

// WeeklyKey is the week bucket prefix, e.g. "2024.w30".
func (t TimeContext) WeeklyKey() string {
	return t.Yearly + ".w" + strconv.Itoa(t.Week)
}

// SecondsIntoHour is the number of seconds elapsed since the top of
// the current hour.
func (t TimeContext) SecondsIntoHour() int64 {
	return int64(t.Now.Minute())*60 + int64(t.Now.Second())
}

// SecondsIntoDay is the number of seconds elapsed since local midnight.
func (t TimeContext) SecondsIntoDay() int64 {
	return int64(t.Now.Hour())*3600 + t.SecondsIntoHour()
}

// SecondsIntoMonth is the number of seconds elapsed since the start of
// the current month.
func (t TimeContext) SecondsIntoMonth() int64 {
	return int64(t.Now.Day()-1)*86400 + t.SecondsIntoDay()
}

// YearWeekOf places an arbitrary unix time in the same year/week grid
// the bucket keys use.
func YearWeekOf(ts int64, loc *time.Location) (year int, week int) {
	at := time.Unix(ts, 0).In(loc)
	return at.Year(), weekOfYear(at)
}

// Weeks are numbered by slicing the year into 7 day chunks from Jan 1,
// not by ISO week.
func weekOfYear(at time.Time) int {
	return (at.YearDay() + 6) / 7
}
