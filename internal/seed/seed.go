// Package seed imports a weekly schedule from a YAML file.
package seed

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"github.com/Ruslan-16/ScheduleLessons1Bot/internal/domain"
	"github.com/Ruslan-16/ScheduleLessons1Bot/internal/store"
)

// File is the YAML document layout.
type File struct {
	Users []UserEntry `yaml:"users"`
}

type UserEntry struct {
	ID      int64         `yaml:"id"`
	Name    string        `yaml:"name"`
	ChatID  int64         `yaml:"chat_id"`
	Lessons []LessonEntry `yaml:"lessons"`
}

type LessonEntry struct {
	Day   string `yaml:"day"`
	Time  string `yaml:"time"`
	Label string `yaml:"label"`
}

// Schedule is a validated import: users with their parsed lessons.
type Schedule struct {
	Users []UserSchedule
}

type UserSchedule struct {
	User    domain.User
	Lessons []domain.Lesson
}

// Load reads and validates a schedule file.
func Load(path string) (*Schedule, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Parse(raw)
}

// Parse decodes YAML and validates every lesson. All problems are reported
// together, each with its position in the file.
func Parse(raw []byte) (*Schedule, error) {
	var f File
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return nil, fmt.Errorf("decode schedule: %w", err)
	}

	var (
		out  Schedule
		errs []error
		seen = map[int64]bool{}
	)
	for i, ue := range f.Users {
		if ue.ID == 0 {
			errs = append(errs, fmt.Errorf("users[%d]: missing id", i))
			continue
		}
		if seen[ue.ID] {
			errs = append(errs, fmt.Errorf("users[%d]: duplicate id %d", i, ue.ID))
			continue
		}
		seen[ue.ID] = true

		us := UserSchedule{User: domain.User{ID: ue.ID, Name: ue.Name, ChatID: ue.ChatID}}
		if us.User.ChatID == 0 {
			us.User.ChatID = ue.ID
		}
		for j, le := range ue.Lessons {
			l, err := parseLesson(ue.ID, le)
			if err != nil {
				errs = append(errs, fmt.Errorf("users[%d].lessons[%d]: %w", i, j, err))
				continue
			}
			us.Lessons = append(us.Lessons, l)
		}
		domain.SortLessons(us.Lessons)
		out.Users = append(out.Users, us)
	}
	if err := errors.Join(errs...); err != nil {
		return nil, err
	}
	return &out, nil
}

func parseLesson(userID int64, le LessonEntry) (domain.Lesson, error) {
	wd, err := domain.ParseWeekday(le.Day)
	if err != nil {
		return domain.Lesson{}, err
	}
	start, err := domain.ParseClock(le.Time)
	if err != nil {
		return domain.Lesson{}, err
	}
	label, err := domain.ParseLabel(le.Label)
	if err != nil {
		return domain.Lesson{}, err
	}
	return domain.Lesson{UserID: userID, Weekday: wd, Start: start, Label: label}, nil
}

// Apply upserts every user and replaces their lessons with the imported ones.
// Each user's lessons are swapped in one store call, so a failure never
// leaves a user with part of the file. Users absent from the file are left
// untouched.
func Apply(ctx context.Context, repo store.Repo, s *Schedule) (int, error) {
	now := time.Now().UTC()
	total := 0
	for _, us := range s.Users {
		u := us.User
		u.CreatedAt = now
		staged := make([]domain.Lesson, len(us.Lessons))
		for i, l := range us.Lessons {
			l.ID = uuid.NewString()
			l.UserID = u.ID
			l.CreatedAt = now
			staged[i] = l
		}

		if err := repo.UpsertUser(ctx, &u); err != nil {
			return total, fmt.Errorf("user %d: %w", u.ID, err)
		}
		if err := repo.ReplaceLessons(ctx, u.ID, staged); err != nil {
			return total, fmt.Errorf("user %d: replace lessons: %w", u.ID, err)
		}
		total += len(staged)
	}
	return total, nil
}
