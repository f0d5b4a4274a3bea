package store

import (
	"errors"
	"time"

	"github.com/Ruslan-16/ScheduleLessons1Bot/internal/domain"
)

var (
	errNilUser   = errors.New("nil user")
	errBadLesson = errors.New("lesson without id")
	// errDuplicateLesson mirrors the lessons primary key in memory.
	errDuplicateLesson = errors.New("duplicate lesson id")
)

// rowScanner is satisfied by *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(s rowScanner) (domain.User, error) {
	var (
		u         domain.User
		createdAt int64
	)
	if err := s.Scan(&u.ID, &u.Name, &u.ChatID, &createdAt); err != nil {
		return domain.User{}, err
	}
	u.CreatedAt = fromUnix(createdAt)
	return u, nil
}

func scanLesson(s rowScanner) (domain.Lesson, error) {
	var (
		l         domain.Lesson
		weekday   int
		createdAt int64
	)
	if err := s.Scan(&l.ID, &l.UserID, &weekday, &l.Start.Hour, &l.Start.Minute, &l.Label, &createdAt); err != nil {
		return domain.Lesson{}, err
	}
	// Weekday and start are validated by the consumer, not here,
	// so one corrupt row cannot hide the rest of the schedule.
	l.Weekday = domain.Weekday(weekday)
	l.CreatedAt = fromUnix(createdAt)
	return l, nil
}

func toUnix(t time.Time) int64 {
	if t.IsZero() {
		return time.Now().UTC().Unix()
	}
	return t.UTC().Unix()
}

func fromUnix(sec int64) time.Time {
	return time.Unix(sec, 0).UTC()
}
