package reminder

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/Ruslan-16/ScheduleLessons1Bot/internal/clock"
	"github.com/Ruslan-16/ScheduleLessons1Bot/internal/domain"
)

var (
	// ErrScanInProgress is returned by Scan when another scan has not finished.
	ErrScanInProgress = errors.New("scan already in progress")
	// ErrUndeliverable marks send errors that retrying cannot fix.
	ErrUndeliverable = errors.New("recipient undeliverable")
	// ErrUncertain marks sends that may have reached the recipient, such as
	// a request that timed out after it went out. They are never repeated.
	ErrUncertain = errors.New("delivery unconfirmed")
)

// Sender delivers a text message to a chat.
// telegram.Router implements this.
type Sender interface {
	SendMessage(ctx context.Context, chatID int64, text string) error
}

// LessonSource lists every (user, lesson) pair.
type LessonSource interface {
	ListSchedule(ctx context.Context) ([]domain.Entry, error)
}

// Record remembers which reminders were dispatched.
type Record interface {
	Reserve(ctx context.Context, key domain.ReminderKey) (bool, error)
	Release(ctx context.Context, key domain.ReminderKey) error
	Purge(ctx context.Context, before time.Time) (int, error)
}

// Config tunes the dispatcher.
type Config struct {
	// Window is the width of each dispatch window. It must be at least the
	// interval between scans, otherwise reminders near a scan boundary are missed.
	Window     time.Duration
	Retry      RetryPolicy
	RatePerSec float64 // 0 means unlimited
}

// ScanReport summarizes one scan.
type ScanReport struct {
	Lessons    int
	Skipped    int // malformed lessons
	Due        int
	Sent       int
	Duplicates int // due but already dispatched
	Failed     int
}

// Dispatcher decides which reminders are due and sends each at most once.
type Dispatcher struct {
	src     LessonSource
	rec     Record
	sender  Sender
	clock   clock.Clock
	log     *zap.Logger
	cfg     Config
	limiter *rate.Limiter

	running  sync.Mutex
	lastScan time.Time // now of the last completed scan, guarded by running
}

func New(src LessonSource, rec Record, sender Sender, clk clock.Clock, log *zap.Logger, cfg Config) *Dispatcher {
	if log == nil {
		log = zap.NewNop()
	}
	limit := rate.Inf
	burst := 1
	if cfg.RatePerSec > 0 {
		limit = rate.Limit(cfg.RatePerSec)
		burst = int(cfg.RatePerSec)
		if burst < 1 {
			burst = 1
		}
	}
	return &Dispatcher{
		src:     src,
		rec:     rec,
		sender:  sender,
		clock:   clk,
		log:     log.Named("reminder"),
		cfg:     cfg,
		limiter: rate.NewLimiter(limit, burst),
	}
}

// Scan runs one dispatch cycle over the whole schedule.
func (d *Dispatcher) Scan(ctx context.Context) (ScanReport, error) {
	var rep ScanReport
	if !d.running.TryLock() {
		return rep, ErrScanInProgress
	}
	defer d.running.Unlock()

	now := d.clock.Now()
	entries, err := d.src.ListSchedule(ctx)
	if err != nil {
		return rep, fmt.Errorf("list schedule: %w", err)
	}
	rep.Lessons = len(entries)

	var (
		groups = map[domain.ReminderKey]*dueReminder{}
		order  []*dueReminder
	)
	for _, e := range entries {
		for _, r := range d.processEntry(now, e, &rep) {
			if g, ok := groups[r.key]; ok {
				g.lessons = append(g.lessons, r.lessons...)
				continue
			}
			groups[r.key] = r
			order = append(order, r)
		}
	}

	rep.Due = len(order)
	for _, r := range order {
		if err := ctx.Err(); err != nil {
			return rep, err
		}
		d.dispatch(ctx, r, &rep)
	}
	if now.After(d.lastScan) {
		d.lastScan = now
	}

	d.log.Debug("scan finished",
		zap.Time("now", now),
		zap.Int("lessons", rep.Lessons),
		zap.Int("skipped", rep.Skipped),
		zap.Int("due", rep.Due),
		zap.Int("sent", rep.Sent),
		zap.Int("duplicates", rep.Duplicates),
		zap.Int("failed", rep.Failed),
	)
	return rep, nil
}

// dueReminder is one reminder to send: a user, an occurrence, a kind and
// every lesson of that user starting at that occurrence.
type dueReminder struct {
	key     domain.ReminderKey
	kind    domain.ReminderKind
	occ     time.Time
	user    domain.User
	lessons []domain.Lesson
}

// processEntry returns the reminders of one lesson that are due at now.
// Nothing it does may abort the scan.
func (d *Dispatcher) processEntry(now time.Time, e domain.Entry, rep *ScanReport) (due []*dueReminder) {
	defer func() {
		if r := recover(); r != nil {
			rep.Failed++
			due = nil
			d.log.Error("panic while processing lesson",
				zap.Any("panic", r),
				zap.String("lessonID", e.Lesson.ID),
				zap.Int64("userID", e.User.ID),
			)
		}
	}()

	occ, err := domain.NextOccurrence(e.Lesson.Weekday, e.Lesson.Start, now)
	if err != nil {
		rep.Skipped++
		d.log.Warn("skip malformed lesson",
			zap.Error(err),
			zap.String("lessonID", e.Lesson.ID),
			zap.Int64("userID", e.User.ID),
		)
		return nil
	}

	for _, kind := range domain.ReminderKinds {
		if !d.isDue(kind, occ, now) {
			continue
		}
		due = append(due, &dueReminder{
			key:     domain.NewReminderKey(e.User.ID, occ, kind),
			kind:    kind,
			occ:     occ,
			user:    e.User,
			lessons: []domain.Lesson{e.Lesson},
		})
	}
	return due
}

// isDue also covers the whole gap since the previous completed scan, so a
// skipped or delayed scan does not lose reminders that fell due meanwhile.
func (d *Dispatcher) isDue(kind domain.ReminderKind, occ, now time.Time) bool {
	if domain.IsDue(kind, occ, now, d.cfg.Window) {
		return true
	}
	return !d.lastScan.IsZero() && domain.DueSince(kind, occ, d.lastScan, now)
}

// dispatch reserves the reminder key first and sends second, so a crash or a
// lost acknowledgement can drop a reminder but never repeat one.
func (d *Dispatcher) dispatch(ctx context.Context, r *dueReminder, rep *ScanReport) {
	fields := []zap.Field{
		zap.Int64("userID", r.user.ID),
		zap.Int64("chatID", r.user.ChatID),
		zap.String("lessonID", r.lessons[0].ID),
		zap.Int("lessons", len(r.lessons)),
		zap.String("kind", string(r.kind)),
		zap.Time("occurrence", r.occ),
	}

	fresh, err := d.rec.Reserve(ctx, r.key)
	if err != nil {
		rep.Failed++
		d.log.Error("reserve reminder failed", append(fields, zap.Error(err))...)
		return
	}
	if !fresh {
		rep.Duplicates++
		return
	}

	text := domain.ReminderText(r.kind, r.occ, r.lessons...)
	err = d.send(ctx, r.user.ChatID, text)
	switch {
	case err == nil:
		rep.Sent++
		d.log.Info("reminder sent", fields...)
	case errors.Is(err, ErrUndeliverable):
		// Keep the reservation: the recipient cannot be reached this window.
		rep.Failed++
		d.log.Warn("reminder undeliverable", append(fields, zap.Error(err))...)
	case errors.Is(err, ErrUncertain):
		// Keep the reservation: the message may already be in the chat.
		rep.Failed++
		d.log.Warn("reminder delivery unconfirmed, not resending", append(fields, zap.Error(err))...)
	default:
		rep.Failed++
		d.log.Error("reminder not delivered, will retry next scan", append(fields, zap.Error(err))...)
		if rerr := d.rec.Release(context.WithoutCancel(ctx), r.key); rerr != nil {
			d.log.Error("release reminder failed", append(fields, zap.Error(rerr))...)
		}
	}
}

// Purge forgets dispatched reminders whose lessons have already started.
func (d *Dispatcher) Purge(ctx context.Context) (int, error) {
	now := d.clock.Now()
	n, err := d.rec.Purge(ctx, now)
	if err != nil {
		return 0, fmt.Errorf("purge reminders: %w", err)
	}
	d.log.Info("reminder records purged", zap.Int("removed", n), zap.Time("before", now))
	return n, nil
}
