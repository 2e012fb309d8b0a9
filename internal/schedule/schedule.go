// Package schedule decides when feeds and their fixed-time schedules are
// due. All functions are pure; callers pass now in the configured zone.
package schedule

import (
	"slices"
	"time"

	"github.com/hoanghai1803/feedwright/internal/models"
)

var weekdayKeys = [...]string{
	time.Sunday:    "sun",
	time.Monday:    "mon",
	time.Tuesday:   "tue",
	time.Wednesday: "wed",
	time.Thursday:  "thu",
	time.Friday:    "fri",
	time.Saturday:  "sat",
}

// WeekdayKey returns the three-letter day key used in schedules.
func WeekdayKey(d time.Weekday) string {
	return weekdayKeys[d]
}

// IsDue reports whether s fires at now. A schedule fires once per matching
// minute: it is active, today is one of its days, now formats to its
// time_of_day, and it has not already run in the same minute. The minute
// and weekday are taken in now's location.
func IsDue(s models.Schedule, now time.Time) bool {
	if s.Status != models.StatusActive {
		return false
	}
	if !slices.Contains(s.DaysOfWeek, WeekdayKey(now.Weekday())) {
		return false
	}
	if now.Format("15:04") != s.TimeOfDay {
		return false
	}
	if s.LastRun == nil {
		return true
	}
	return !sameMinute(*s.LastRun, now)
}

// FeedDue reports whether an active feed's frequency interval has elapsed.
func FeedDue(f models.FeedConfig, now time.Time) bool {
	if !f.Active() || f.FrequencyMinutes <= 0 {
		return false
	}
	if f.LastRun == nil {
		return true
	}
	return now.Sub(*f.LastRun) >= time.Duration(f.FrequencyMinutes)*time.Minute
}

func sameMinute(a, b time.Time) bool {
	a = a.In(b.Location())
	return a.Truncate(time.Minute).Equal(b.Truncate(time.Minute))
}
