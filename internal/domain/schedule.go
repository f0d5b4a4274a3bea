package domain

import (
	"fmt"
	"sort"
	"time"
)

// NextOccurrence returns the next time a weekly lesson on (wd, start) takes
// place, relative to now and in now's location.
//
// Today counts only if today's start is not before now; a lesson starting
// exactly at now is still upcoming. Otherwise the result is 1..7 days ahead.
func NextOccurrence(wd Weekday, start ClockTime, now time.Time) (time.Time, error) {
	if !wd.Valid() {
		return time.Time{}, fmt.Errorf("%w: %d", ErrInvalidWeekday, int(wd))
	}
	if !start.Valid() {
		return time.Time{}, fmt.Errorf("%w: %02d:%02d", ErrInvalidClock, start.Hour, start.Minute)
	}

	days := (int(wd) - int(WeekdayOf(now.Weekday())) + 7) % 7
	at := dateAt(now, days, start)
	if days == 0 && at.Before(now) {
		at = dateAt(now, 7, start)
	}
	return at, nil
}

// dateAt builds the local time start on the date days after base's date.
// time.Date normalizes the day overflow and keeps wall-clock time across DST.
func dateAt(base time.Time, days int, start ClockTime) time.Time {
	return time.Date(base.Year(), base.Month(), base.Day()+days, start.Hour, start.Minute, 0, 0, base.Location())
}

// SortLessons orders lessons by weekday, then start time, then label.
func SortLessons(ls []Lesson) {
	sort.SliceStable(ls, func(i, j int) bool {
		a, b := ls[i], ls[j]
		if a.Weekday != b.Weekday {
			return a.Weekday < b.Weekday
		}
		if a.Start.Minutes() != b.Start.Minutes() {
			return a.Start.Minutes() < b.Start.Minutes()
		}
		return a.Label < b.Label
	})
}
