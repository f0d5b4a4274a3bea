package seed

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/Ruslan-16/ScheduleLessons1Bot/internal/domain"
	"github.com/Ruslan-16/ScheduleLessons1Bot/internal/store"
)

const sample = `
users:
  - id: 100
    name: Anna
    lessons:
      - day: wednesday
        time: "10:00"
        label: Algebra
      - day: пн
        time: "8:30"
        label: Physics
  - id: 200
    name: Bob
    chat_id: 2000
    lessons:
      - day: Sun
        time: "23:45"
        label: English
`

func TestParse(t *testing.T) {
	s, err := Parse([]byte(sample))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if len(s.Users) != 2 {
		t.Fatalf("want 2 users, got %d", len(s.Users))
	}
	anna := s.Users[0]
	if anna.User.ChatID != 100 {
		t.Fatalf("chat id must default to user id, got %d", anna.User.ChatID)
	}
	if len(anna.Lessons) != 2 || anna.Lessons[0].Weekday != domain.Monday || anna.Lessons[0].Start != (domain.ClockTime{Hour: 8, Minute: 30}) {
		t.Fatalf("unexpected lessons: %+v", anna.Lessons)
	}
	if s.Users[1].User.ChatID != 2000 || s.Users[1].Lessons[0].Weekday != domain.Sunday {
		t.Fatalf("unexpected second user: %+v", s.Users[1])
	}
}

func TestParse_ReportsEveryInvalidLesson(t *testing.T) {
	raw := `
users:
  - id: 1
    lessons:
      - {day: someday, time: "10:00", label: A}
      - {day: monday, time: "25:00", label: B}
      - {day: monday, time: "10:00", label: ""}
  - name: nobody
`
	_, err := Parse([]byte(raw))
	if err == nil {
		t.Fatal("want validation error")
	}
	msg := err.Error()
	for _, want := range []string{"users[0].lessons[0]", "users[0].lessons[1]", "users[0].lessons[2]", "users[1]: missing id"} {
		if !strings.Contains(msg, want) {
			t.Fatalf("error %q does not mention %s", msg, want)
		}
	}
	if !errors.Is(err, domain.ErrInvalidWeekday) || !errors.Is(err, domain.ErrInvalidClock) {
		t.Fatalf("want wrapped domain errors, got %v", err)
	}
}

func TestApply_ReplacesLessons(t *testing.T) {
	ctx := context.Background()
	repo := store.NewMemory()
	_ = repo.UpsertUser(ctx, &domain.User{ID: 100, Name: "Anna", ChatID: 100})
	_ = repo.AddLesson(ctx, &domain.Lesson{ID: "old", UserID: 100, Weekday: domain.Friday, Label: "Old"})

	s, err := Parse([]byte(sample))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	n, err := Apply(ctx, repo, s)
	if err != nil || n != 3 {
		t.Fatalf("want 3 lessons imported, got %d (%v)", n, err)
	}
	lessons, _ := repo.ListLessons(ctx, 100)
	if len(lessons) != 2 {
		t.Fatalf("old lessons must be replaced, got %+v", lessons)
	}
	for _, l := range lessons {
		if l.ID == "" || l.ID == "old" {
			t.Fatalf("unexpected lesson id %q", l.ID)
		}
	}
	if u, err := repo.GetUser(ctx, 200); err != nil || u.ChatID != 2000 {
		t.Fatalf("user 200 not imported: %+v (%v)", u, err)
	}
}

// flakyRepo fails every lesson replacement.
type flakyRepo struct{ *store.MemoryRepo }

func (flakyRepo) ReplaceLessons(context.Context, int64, []domain.Lesson) error {
	return errors.New("disk I/O error")
}

func TestApply_FailureKeepsOldLessons(t *testing.T) {
	ctx := context.Background()
	mem := store.NewMemory()
	_ = mem.UpsertUser(ctx, &domain.User{ID: 100, Name: "Anna", ChatID: 100})
	_ = mem.AddLesson(ctx, &domain.Lesson{ID: "old", UserID: 100, Weekday: domain.Friday, Label: "Old"})

	s, err := Parse([]byte(sample))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if _, err := Apply(ctx, flakyRepo{mem}, s); err == nil {
		t.Fatal("want error from store")
	}
	lessons, _ := mem.ListLessons(ctx, 100)
	if len(lessons) != 1 || lessons[0].ID != "old" {
		t.Fatalf("old lessons must survive a failed import, got %+v", lessons)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "none.yaml")); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("want ErrNotExist, got %v", err)
	}
}

func TestWatch_CallsOnChange(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "schedule.yaml")
	if err := os.WriteFile(path, []byte(sample), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	changed := make(chan struct{}, 4)
	done := make(chan error, 1)
	go func() {
		done <- Watch(ctx, path, zap.NewNop(), func(context.Context) { changed <- struct{}{} })
	}()

	// Give the watcher time to register, then touch an unrelated file and the target.
	time.Sleep(100 * time.Millisecond)
	_ = os.WriteFile(filepath.Join(dir, "other.txt"), []byte("x"), 0o644)
	if err := os.WriteFile(path, []byte(sample+"\n"), 0o644); err != nil {
		t.Fatalf("rewrite: %v", err)
	}

	select {
	case <-changed:
	case <-time.After(5 * time.Second):
		t.Fatal("onChange not called")
	}
	cancel()
	if err := <-done; err != nil {
		t.Fatalf("watch: %v", err)
	}
}
