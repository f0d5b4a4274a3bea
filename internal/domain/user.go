package domain

import "time"

// User is a registered bot user (a student or the tutor).
type User struct {
	ID        int64  // Telegram user id
	Name      string // display name
	ChatID    int64  // where reminders go
	CreatedAt time.Time
}

// Lesson is one recurring weekly lesson owned by a user.
type Lesson struct {
	ID        string
	UserID    int64
	Weekday   Weekday
	Start     ClockTime
	Label     string
	CreatedAt time.Time
}

// Entry pairs a lesson with its owner, as read by the reminder loop.
type Entry struct {
	User   User
	Lesson Lesson
}
