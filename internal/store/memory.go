package store

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/Ruslan-16/ScheduleLessons1Bot/internal/domain"
)

// MemoryRepo implements Repo in process memory. Data is lost on restart.
type MemoryRepo struct {
	mu      sync.RWMutex
	users   map[int64]domain.User
	lessons map[string]domain.Lesson
	sent    map[domain.ReminderKey]struct{}
}

func NewMemory() *MemoryRepo {
	return &MemoryRepo{
		users:   make(map[int64]domain.User),
		lessons: make(map[string]domain.Lesson),
		sent:    make(map[domain.ReminderKey]struct{}),
	}
}

func (r *MemoryRepo) Close() error { return nil }

func (r *MemoryRepo) UpsertUser(_ context.Context, u *domain.User) error {
	if u == nil {
		return errNilUser
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *u
	if old, ok := r.users[u.ID]; ok {
		cp.CreatedAt = old.CreatedAt
	} else if cp.CreatedAt.IsZero() {
		cp.CreatedAt = time.Now().UTC()
	}
	r.users[u.ID] = cp
	return nil
}

func (r *MemoryRepo) GetUser(_ context.Context, id int64) (*domain.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	u, ok := r.users[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &u, nil
}

func (r *MemoryRepo) ListUsers(_ context.Context) ([]domain.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	res := make([]domain.User, 0, len(r.users))
	for _, u := range r.users {
		res = append(res, u)
	}
	sort.Slice(res, func(i, j int) bool { return res[i].ID < res[j].ID })
	return res, nil
}

func (r *MemoryRepo) AddLesson(_ context.Context, l *domain.Lesson) error {
	if l == nil || l.ID == "" {
		return errBadLesson
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.users[l.UserID]; !ok {
		return ErrNotFound
	}
	cp := *l
	if cp.CreatedAt.IsZero() {
		cp.CreatedAt = time.Now().UTC()
	}
	r.lessons[l.ID] = cp
	return nil
}

func (r *MemoryRepo) GetLesson(_ context.Context, id string) (*domain.Lesson, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	l, ok := r.lessons[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &l, nil
}

func (r *MemoryRepo) ListLessons(_ context.Context, userID int64) ([]domain.Lesson, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var res []domain.Lesson
	for _, l := range r.lessons {
		if l.UserID == userID {
			res = append(res, l)
		}
	}
	domain.SortLessons(res)
	return res, nil
}

func (r *MemoryRepo) MoveLesson(_ context.Context, id string, wd domain.Weekday, start domain.ClockTime) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	l, ok := r.lessons[id]
	if !ok {
		return ErrNotFound
	}
	l.Weekday, l.Start = wd, start
	r.lessons[id] = l
	return nil
}

func (r *MemoryRepo) DeleteLesson(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.lessons[id]; !ok {
		return ErrNotFound
	}
	delete(r.lessons, id)
	return nil
}

func (r *MemoryRepo) ResetLessons(_ context.Context, userID int64) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for id, l := range r.lessons {
		if l.UserID == userID {
			delete(r.lessons, id)
			n++
		}
	}
	return n, nil
}

func (r *MemoryRepo) ReplaceLessons(_ context.Context, userID int64, ls []domain.Lesson) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.users[userID]; !ok {
		return ErrNotFound
	}
	seen := make(map[string]bool, len(ls))
	for _, l := range ls {
		if l.ID == "" {
			return errBadLesson
		}
		if old, ok := r.lessons[l.ID]; seen[l.ID] || (ok && old.UserID != userID) {
			return fmt.Errorf("%w: %s", errDuplicateLesson, l.ID)
		}
		seen[l.ID] = true
	}

	for id, l := range r.lessons {
		if l.UserID == userID {
			delete(r.lessons, id)
		}
	}
	now := time.Now().UTC()
	for _, l := range ls {
		l.UserID = userID
		if l.CreatedAt.IsZero() {
			l.CreatedAt = now
		}
		r.lessons[l.ID] = l
	}
	return nil
}

func (r *MemoryRepo) ListSchedule(_ context.Context) ([]domain.Entry, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	res := make([]domain.Entry, 0, len(r.lessons))
	for _, l := range r.lessons {
		u, ok := r.users[l.UserID]
		if !ok {
			continue
		}
		res = append(res, domain.Entry{User: u, Lesson: l})
	}
	sort.Slice(res, func(i, j int) bool {
		if res[i].User.ID != res[j].User.ID {
			return res[i].User.ID < res[j].User.ID
		}
		return res[i].Lesson.ID < res[j].Lesson.ID
	})
	return res, nil
}

func (r *MemoryRepo) Reserve(_ context.Context, key domain.ReminderKey) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.sent[key]; ok {
		return false, nil
	}
	r.sent[key] = struct{}{}
	return true, nil
}

func (r *MemoryRepo) Release(_ context.Context, key domain.ReminderKey) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.sent, key)
	return nil
}

func (r *MemoryRepo) Purge(_ context.Context, before time.Time) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	cutoff := before.UTC().Unix()
	n := 0
	for k := range r.sent {
		if k.Occurrence < cutoff {
			delete(r.sent, k)
			n++
		}
	}
	return n, nil
}
