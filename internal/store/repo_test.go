package store

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/Ruslan-16/ScheduleLessons1Bot/internal/domain"
)

func openSQLite(t *testing.T) *SQLiteRepo {
	t.Helper()
	repo, err := OpenSQLite(context.Background(), filepath.Join(t.TempDir(), "data", "test.db"))
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() { _ = repo.Close() })
	return repo
}

// backends runs fn once per Repo implementation.
func backends(t *testing.T, fn func(t *testing.T, repo Repo)) {
	t.Run("memory", func(t *testing.T) { fn(t, NewMemory()) })
	t.Run("sqlite", func(t *testing.T) { fn(t, openSQLite(t)) })
}

func TestRepo_Users(t *testing.T) {
	backends(t, func(t *testing.T, repo Repo) {
		ctx := context.Background()
		if _, err := repo.GetUser(ctx, 1); !errors.Is(err, ErrNotFound) {
			t.Fatalf("want ErrNotFound, got %v", err)
		}
		created := time.Date(2025, time.May, 1, 0, 0, 0, 0, time.UTC)
		if err := repo.UpsertUser(ctx, &domain.User{ID: 2, Name: "Bob", ChatID: 20, CreatedAt: created}); err != nil {
			t.Fatalf("upsert: %v", err)
		}
		if err := repo.UpsertUser(ctx, &domain.User{ID: 1, Name: "Anna", ChatID: 10}); err != nil {
			t.Fatalf("upsert: %v", err)
		}
		if err := repo.UpsertUser(ctx, &domain.User{ID: 2, Name: "Boris", ChatID: 21}); err != nil {
			t.Fatalf("upsert: %v", err)
		}

		u, err := repo.GetUser(ctx, 2)
		if err != nil {
			t.Fatalf("get: %v", err)
		}
		if u.Name != "Boris" || u.ChatID != 21 || !u.CreatedAt.Equal(created) {
			t.Fatalf("unexpected user: %+v", u)
		}

		users, err := repo.ListUsers(ctx)
		if err != nil {
			t.Fatalf("list: %v", err)
		}
		if len(users) != 2 || users[0].ID != 1 || users[1].ID != 2 {
			t.Fatalf("unexpected users: %+v", users)
		}
	})
}

func TestRepo_Lessons(t *testing.T) {
	backends(t, func(t *testing.T, repo Repo) {
		ctx := context.Background()
		orphan := &domain.Lesson{ID: "x", UserID: 99, Weekday: domain.Monday, Label: "Orphan"}
		if err := repo.AddLesson(ctx, orphan); !errors.Is(err, ErrNotFound) {
			t.Fatalf("want ErrNotFound for unknown owner, got %v", err)
		}

		_ = repo.UpsertUser(ctx, &domain.User{ID: 1, Name: "Anna", ChatID: 10})
		_ = repo.UpsertUser(ctx, &domain.User{ID: 2, Name: "Bob", ChatID: 20})
		lessons := []domain.Lesson{
			{ID: "a", UserID: 1, Weekday: domain.Friday, Start: domain.ClockTime{Hour: 9}, Label: "Physics"},
			{ID: "b", UserID: 1, Weekday: domain.Monday, Start: domain.ClockTime{Hour: 18, Minute: 30}, Label: "Algebra"},
			{ID: "c", UserID: 2, Weekday: domain.Wednesday, Start: domain.ClockTime{Hour: 10}, Label: "English"},
		}
		for i := range lessons {
			if err := repo.AddLesson(ctx, &lessons[i]); err != nil {
				t.Fatalf("add lesson: %v", err)
			}
		}

		got, err := repo.ListLessons(ctx, 1)
		if err != nil {
			t.Fatalf("list lessons: %v", err)
		}
		if len(got) != 2 || got[0].ID != "b" || got[1].ID != "a" {
			t.Fatalf("unexpected lessons: %+v", got)
		}

		if err := repo.MoveLesson(ctx, "a", domain.Sunday, domain.ClockTime{Hour: 12, Minute: 15}); err != nil {
			t.Fatalf("move: %v", err)
		}
		l, err := repo.GetLesson(ctx, "a")
		if err != nil {
			t.Fatalf("get lesson: %v", err)
		}
		if l.Weekday != domain.Sunday || l.Start != (domain.ClockTime{Hour: 12, Minute: 15}) || l.Label != "Physics" {
			t.Fatalf("unexpected moved lesson: %+v", l)
		}
		if err := repo.MoveLesson(ctx, "missing", domain.Monday, domain.ClockTime{}); !errors.Is(err, ErrNotFound) {
			t.Fatalf("want ErrNotFound, got %v", err)
		}

		entries, err := repo.ListSchedule(ctx)
		if err != nil {
			t.Fatalf("list schedule: %v", err)
		}
		if len(entries) != 3 {
			t.Fatalf("want 3 entries, got %d", len(entries))
		}
		for _, e := range entries {
			if e.Lesson.UserID != e.User.ID {
				t.Fatalf("entry owner mismatch: %+v", e)
			}
			if e.Lesson.ID == "c" && e.User.ChatID != 20 {
				t.Fatalf("entry user not joined: %+v", e)
			}
		}

		if err := repo.DeleteLesson(ctx, "c"); err != nil {
			t.Fatalf("delete: %v", err)
		}
		if err := repo.DeleteLesson(ctx, "c"); !errors.Is(err, ErrNotFound) {
			t.Fatalf("want ErrNotFound on second delete, got %v", err)
		}

		n, err := repo.ResetLessons(ctx, 1)
		if err != nil || n != 2 {
			t.Fatalf("want 2 removed, got %d (%v)", n, err)
		}
		if rest, _ := repo.ListLessons(ctx, 1); len(rest) != 0 {
			t.Fatalf("lessons left after reset: %+v", rest)
		}
	})
}

func TestRepo_ReminderRecord(t *testing.T) {
	backends(t, func(t *testing.T, repo Repo) {
		ctx := context.Background()
		occ := time.Date(2025, time.May, 7, 7, 0, 0, 0, time.UTC)
		k24 := domain.NewReminderKey(1, occ, domain.Reminder24h)
		k1 := domain.NewReminderKey(1, occ, domain.Reminder1h)

		ok, err := repo.Reserve(ctx, k24)
		if err != nil || !ok {
			t.Fatalf("first reserve: ok=%v err=%v", ok, err)
		}
		ok, err = repo.Reserve(ctx, k24)
		if err != nil || ok {
			t.Fatalf("second reserve must report duplicate: ok=%v err=%v", ok, err)
		}
		if ok, _ := repo.Reserve(ctx, k1); !ok {
			t.Fatal("other kind must be independent")
		}

		if err := repo.Release(ctx, k24); err != nil {
			t.Fatalf("release: %v", err)
		}
		if ok, _ := repo.Reserve(ctx, k24); !ok {
			t.Fatal("released key must be reservable again")
		}

		later := domain.NewReminderKey(1, occ.Add(7*24*time.Hour), domain.Reminder24h)
		_, _ = repo.Reserve(ctx, later)

		n, err := repo.Purge(ctx, occ.Add(time.Minute))
		if err != nil || n != 2 {
			t.Fatalf("want 2 purged, got %d (%v)", n, err)
		}
		if ok, _ := repo.Reserve(ctx, later); ok {
			t.Fatal("future record must survive purge")
		}
	})
}

func TestSQLite_ReopenKeepsRecords(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "reopen.db")
	key := domain.NewReminderKey(5, time.Date(2025, time.May, 7, 7, 0, 0, 0, time.UTC), domain.Reminder1h)

	repo, err := OpenSQLite(ctx, path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if ok, err := repo.Reserve(ctx, key); err != nil || !ok {
		t.Fatalf("reserve: ok=%v err=%v", ok, err)
	}
	_ = repo.Close()

	// Migrations must be skipped on the second open.
	repo, err = OpenSQLite(ctx, path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer repo.Close()
	if ok, err := repo.Reserve(ctx, key); err != nil || ok {
		t.Fatalf("reserve after reopen must report duplicate: ok=%v err=%v", ok, err)
	}
}

func TestRepo_ReplaceLessonsIsAtomic(t *testing.T) {
	backends(t, func(t *testing.T, repo Repo) {
		ctx := context.Background()
		_ = repo.UpsertUser(ctx, &domain.User{ID: 1, Name: "Anna", ChatID: 10})
		_ = repo.UpsertUser(ctx, &domain.User{ID: 2, Name: "Bob", ChatID: 20})
		_ = repo.AddLesson(ctx, &domain.Lesson{ID: "old", UserID: 1, Weekday: domain.Monday, Label: "Old"})
		_ = repo.AddLesson(ctx, &domain.Lesson{ID: "bob", UserID: 2, Weekday: domain.Monday, Label: "Bob's"})

		// The second lesson clashes, so nothing may change.
		bad := []domain.Lesson{
			{ID: "n1", Weekday: domain.Tuesday, Label: "New"},
			{ID: "n1", Weekday: domain.Friday, Label: "Clash"},
		}
		if err := repo.ReplaceLessons(ctx, 1, bad); err == nil {
			t.Fatal("want error for duplicate lesson id")
		}
		if err := repo.ReplaceLessons(ctx, 1, []domain.Lesson{{ID: "bob", Label: "Taken"}}); err == nil {
			t.Fatal("want error for a lesson id of another user")
		}
		ls, _ := repo.ListLessons(ctx, 1)
		if len(ls) != 1 || ls[0].ID != "old" {
			t.Fatalf("failed replace must keep old lessons, got %+v", ls)
		}

		good := []domain.Lesson{
			{ID: "n1", Weekday: domain.Tuesday, Start: domain.ClockTime{Hour: 9}, Label: "New"},
			{ID: "n2", Weekday: domain.Friday, Start: domain.ClockTime{Hour: 18}, Label: "Other"},
		}
		if err := repo.ReplaceLessons(ctx, 1, good); err != nil {
			t.Fatalf("replace: %v", err)
		}
		ls, _ = repo.ListLessons(ctx, 1)
		if len(ls) != 2 || ls[0].ID != "n1" || ls[1].ID != "n2" || ls[0].UserID != 1 {
			t.Fatalf("unexpected lessons after replace: %+v", ls)
		}
		if other, _ := repo.ListLessons(ctx, 2); len(other) != 1 {
			t.Fatalf("other users untouched, got %+v", other)
		}
		if err := repo.ReplaceLessons(ctx, 42, good); !errors.Is(err, ErrNotFound) {
			t.Fatalf("want ErrNotFound for unknown user, got %v", err)
		}
	})
}
