package domain

import (
	"fmt"
	"strings"
	"time"
)

// ReminderKind identifies how long before a lesson a reminder fires.
type ReminderKind string

const (
	Reminder24h ReminderKind = "24h"
	Reminder1h  ReminderKind = "1h"
)

// ReminderKinds lists all kinds in the order they fire.
var ReminderKinds = []ReminderKind{Reminder24h, Reminder1h}

// Lead returns the distance between the reminder and the lesson start.
func (k ReminderKind) Lead() time.Duration {
	switch k {
	case Reminder24h:
		return 24 * time.Hour
	case Reminder1h:
		return time.Hour
	default:
		return 0
	}
}

// ReminderKey identifies one reminder of one lesson occurrence.
type ReminderKey struct {
	UserID     int64
	Occurrence int64 // unix seconds, UTC
	Kind       ReminderKind
}

// NewReminderKey builds a key for the occurrence at the given instant.
// The key has no lesson in it: lessons of one user starting at the same
// instant share one reminder per kind, which names all of them.
func NewReminderKey(userID int64, occurrence time.Time, kind ReminderKind) ReminderKey {
	return ReminderKey{UserID: userID, Occurrence: occurrence.UTC().Unix(), Kind: kind}
}

// OccurrenceTime returns the occurrence instant in UTC.
func (k ReminderKey) OccurrenceTime() time.Time {
	return time.Unix(k.Occurrence, 0).UTC()
}

// DueWindow returns the closed interval [from, to] during which a reminder
// of kind k for the given occurrence may be sent.
func DueWindow(k ReminderKind, occurrence time.Time, width time.Duration) (from, to time.Time) {
	from = occurrence.Add(-k.Lead())
	return from, from.Add(width)
}

// IsDue reports whether now falls inside the dispatch window of kind k and
// the lesson has not started yet.
func IsDue(k ReminderKind, occurrence, now time.Time, width time.Duration) bool {
	if !occurrence.After(now) {
		return false
	}
	from, to := DueWindow(k, occurrence, width)
	return !now.Before(from) && !now.After(to)
}

// DueSince reports whether the reminder of kind k fell due in (since, now]
// and the lesson has not started yet.
func DueSince(k ReminderKind, occurrence, since, now time.Time) bool {
	if !occurrence.After(now) {
		return false
	}
	due := occurrence.Add(-k.Lead())
	return due.After(since) && !due.After(now)
}

// ReminderText renders the notification for the lessons of one occurrence.
func ReminderText(k ReminderKind, occurrence time.Time, lessons ...Lesson) string {
	if len(lessons) == 0 {
		return ""
	}
	labels := make([]string, len(lessons))
	for i, l := range lessons {
		labels[i] = "«" + l.Label + "»"
	}
	what := strings.Join(labels, ", ")
	l := lessons[0]
	when := fmt.Sprintf("%s, %s at %s", l.Weekday, occurrence.Format("02.01"), l.Start)
	switch {
	case k == Reminder24h && len(lessons) > 1:
		return fmt.Sprintf("📅 Reminder: %s are tomorrow (%s).", what, when)
	case k == Reminder24h:
		return fmt.Sprintf("📅 Reminder: %s is tomorrow (%s).", what, when)
	case k == Reminder1h && len(lessons) > 1:
		return fmt.Sprintf("⏰ %s start in 1 hour (%s).", what, when)
	case k == Reminder1h:
		return fmt.Sprintf("⏰ %s starts in 1 hour (%s).", what, when)
	default:
		return fmt.Sprintf("🔔 %s: %s", what, when)
	}
}
