package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	// Registers the "sqlite" driver (pure Go).
	_ "modernc.org/sqlite"

	"github.com/Ruslan-16/ScheduleLessons1Bot/internal/domain"
)

// SQLiteRepo implements Repo using an embedded SQLite database.
type SQLiteRepo struct{ db *sql.DB }

// OpenSQLite opens (or creates) the SQLite database at the given path,
// applies recommended PRAGMAs, runs SQL migrations, and returns a repository.
func OpenSQLite(ctx context.Context, path string) (*SQLiteRepo, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}

	// Reasonable pooling for SQLite; it's a single-writer engine.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := applyPragmas(ctx, db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("apply pragmas: %w", err)
	}
	if err := RunMigrations(ctx, db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrations: %w", err)
	}

	return &SQLiteRepo{db: db}, nil
}

// applyPragmas configures the SQLite connection for durability and concurrency.
func applyPragmas(ctx context.Context, db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA busy_timeout=5000;",
		"PRAGMA foreign_keys=ON;",
	}
	for _, p := range pragmas {
		if _, err := db.ExecContext(ctx, p); err != nil {
			return err
		}
	}
	return nil
}

// Close releases the underlying database resources.
func (r *SQLiteRepo) Close() error {
	return r.db.Close()
}

// UpsertUser inserts a user or updates name and chat of an existing one.
// created_at is kept from the first insert.
func (r *SQLiteRepo) UpsertUser(ctx context.Context, u *domain.User) error {
	if u == nil {
		return errNilUser
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO users (id, name, chat_id, created_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name    = excluded.name,
			chat_id = excluded.chat_id`,
		u.ID, u.Name, u.ChatID, toUnix(u.CreatedAt),
	)
	return err
}

func (r *SQLiteRepo) GetUser(ctx context.Context, id int64) (*domain.User, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, name, chat_id, created_at
		FROM users
		WHERE id = ?`,
		id,
	)
	u, err := scanUser(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}

func (r *SQLiteRepo) ListUsers(ctx context.Context) ([]domain.User, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, name, chat_id, created_at
		FROM users
		ORDER BY id ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var res []domain.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, u)
	}
	return res, rows.Err()
}

// AddLesson inserts a new lesson. The owner must exist.
func (r *SQLiteRepo) AddLesson(ctx context.Context, l *domain.Lesson) error {
	if l == nil || l.ID == "" {
		return errBadLesson
	}
	if _, err := r.GetUser(ctx, l.UserID); err != nil {
		return err
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO lessons (id, user_id, weekday, start_hour, start_minute, label, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		l.ID, l.UserID, int(l.Weekday), l.Start.Hour, l.Start.Minute, l.Label, toUnix(l.CreatedAt),
	)
	return err
}

func (r *SQLiteRepo) GetLesson(ctx context.Context, id string) (*domain.Lesson, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, user_id, weekday, start_hour, start_minute, label, created_at
		FROM lessons
		WHERE id = ?`,
		id,
	)
	l, err := scanLesson(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &l, nil
}

// ListLessons returns a user's lessons ordered by weekday and start time.
func (r *SQLiteRepo) ListLessons(ctx context.Context, userID int64) ([]domain.Lesson, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, user_id, weekday, start_hour, start_minute, label, created_at
		FROM lessons
		WHERE user_id = ?
		ORDER BY weekday, start_hour, start_minute, label`,
		userID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var res []domain.Lesson
	for rows.Next() {
		l, err := scanLesson(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, l)
	}
	return res, rows.Err()
}

func (r *SQLiteRepo) MoveLesson(ctx context.Context, id string, wd domain.Weekday, start domain.ClockTime) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE lessons
		SET weekday = ?, start_hour = ?, start_minute = ?
		WHERE id = ?`,
		int(wd), start.Hour, start.Minute, id,
	)
	if err != nil {
		return err
	}
	return expectRow(res)
}

func (r *SQLiteRepo) DeleteLesson(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM lessons WHERE id = ?`, id)
	if err != nil {
		return err
	}
	return expectRow(res)
}

// ResetLessons deletes all lessons of a user and returns how many were removed.
func (r *SQLiteRepo) ResetLessons(ctx context.Context, userID int64) (int, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM lessons WHERE user_id = ?`, userID)
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	return int(n), err
}

// ReplaceLessons deletes and re-inserts a user's lessons in one transaction.
func (r *SQLiteRepo) ReplaceLessons(ctx context.Context, userID int64, ls []domain.Lesson) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	var n int
	if err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM users WHERE id = ?`, userID).Scan(&n); err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM lessons WHERE user_id = ?`, userID); err != nil {
		return err
	}
	for _, l := range ls {
		if l.ID == "" {
			return errBadLesson
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO lessons (id, user_id, weekday, start_hour, start_minute, label, created_at)
			VALUES (?, ?, ?, ?, ?, ?, ?)`,
			l.ID, userID, int(l.Weekday), l.Start.Hour, l.Start.Minute, l.Label, toUnix(l.CreatedAt),
		); err != nil {
			return fmt.Errorf("lesson %s: %w", l.ID, err)
		}
	}
	return tx.Commit()
}

// ListSchedule returns all lessons joined with their owners.
func (r *SQLiteRepo) ListSchedule(ctx context.Context) ([]domain.Entry, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT u.id, u.name, u.chat_id, u.created_at,
		       l.id, l.weekday, l.start_hour, l.start_minute, l.label, l.created_at
		FROM lessons l
		JOIN users u ON u.id = l.user_id
		ORDER BY u.id, l.id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var res []domain.Entry
	for rows.Next() {
		var (
			e                  domain.Entry
			weekday            int
			userCreated, added int64
		)
		if err := rows.Scan(
			&e.User.ID, &e.User.Name, &e.User.ChatID, &userCreated,
			&e.Lesson.ID, &weekday, &e.Lesson.Start.Hour, &e.Lesson.Start.Minute, &e.Lesson.Label, &added,
		); err != nil {
			return nil, err
		}
		e.User.CreatedAt = fromUnix(userCreated)
		e.Lesson.UserID = e.User.ID
		e.Lesson.Weekday = domain.Weekday(weekday)
		e.Lesson.CreatedAt = fromUnix(added)
		res = append(res, e)
	}
	return res, rows.Err()
}

// Reserve inserts the reminder key; a conflicting row means it was already sent.
func (r *SQLiteRepo) Reserve(ctx context.Context, key domain.ReminderKey) (bool, error) {
	res, err := r.db.ExecContext(ctx, `
		INSERT INTO sent_reminders (user_id, occurrence, kind, sent_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(user_id, occurrence, kind) DO NOTHING`,
		key.UserID, key.Occurrence, string(key.Kind), time.Now().UTC().Unix(),
	)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

func (r *SQLiteRepo) Release(ctx context.Context, key domain.ReminderKey) error {
	_, err := r.db.ExecContext(ctx, `
		DELETE FROM sent_reminders
		WHERE user_id = ? AND occurrence = ? AND kind = ?`,
		key.UserID, key.Occurrence, string(key.Kind),
	)
	return err
}

func (r *SQLiteRepo) Purge(ctx context.Context, before time.Time) (int, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM sent_reminders WHERE occurrence < ?`, before.UTC().Unix())
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	return int(n), err
}

func expectRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
