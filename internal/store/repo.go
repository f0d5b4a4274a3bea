package store

import (
	"context"
	"errors"
	"time"

	"github.com/Ruslan-16/ScheduleLessons1Bot/internal/domain"
)

// ErrNotFound is returned when a user or lesson does not exist.
var ErrNotFound = errors.New("not found")

// Repo defines storage operations for users, lessons and sent reminders.
type Repo interface {
	UpsertUser(ctx context.Context, u *domain.User) error
	GetUser(ctx context.Context, id int64) (*domain.User, error)
	ListUsers(ctx context.Context) ([]domain.User, error)

	AddLesson(ctx context.Context, l *domain.Lesson) error
	GetLesson(ctx context.Context, id string) (*domain.Lesson, error)
	ListLessons(ctx context.Context, userID int64) ([]domain.Lesson, error)
	MoveLesson(ctx context.Context, id string, wd domain.Weekday, start domain.ClockTime) error
	DeleteLesson(ctx context.Context, id string) error
	ResetLessons(ctx context.Context, userID int64) (int, error)
	// ReplaceLessons swaps all lessons of a user for ls in one step: on
	// error the old lessons are left as they were.
	ReplaceLessons(ctx context.Context, userID int64, ls []domain.Lesson) error

	// ListSchedule returns every lesson together with its owner.
	ListSchedule(ctx context.Context) ([]domain.Entry, error)

	// Reserve records key as dispatched. It reports false if the key
	// was already recorded.
	Reserve(ctx context.Context, key domain.ReminderKey) (bool, error)
	// Release forgets a reservation whose send failed.
	Release(ctx context.Context, key domain.ReminderKey) error
	// Purge drops records for occurrences before the given instant.
	Purge(ctx context.Context, before time.Time) (int, error)

	Close() error
}
