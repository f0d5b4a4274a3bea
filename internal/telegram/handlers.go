package telegram

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/Ruslan-16/ScheduleLessons1Bot/internal/domain"
	"github.com/Ruslan-16/ScheduleLessons1Bot/internal/store"
)

// ensureUser registers the sender or refreshes their name and chat.
func (r *Router) ensureUser(ctx context.Context, chatID int64, from *tgbotapi.User) (*domain.User, error) {
	u := &domain.User{
		ID:        from.ID,
		Name:      displayName(from),
		ChatID:    chatID,
		CreatedAt: time.Now().UTC(),
	}
	if err := r.repo.UpsertUser(ctx, u); err != nil {
		return nil, err
	}
	return u, nil
}

// --- Generic helpers ---

func (r *Router) sendText(chatID int64, text string) {
	for _, chunk := range splitMessage(text, maxMessageLen) {
		if _, err := r.bot.Send(tgbotapi.NewMessage(chatID, chunk)); err != nil {
			r.log.Warn("send failed", zap.Error(err), zap.Int64("chatID", chatID))
			return
		}
	}
}

func (r *Router) sendWithMarkup(chatID int64, text string, markup interface{}) {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ReplyMarkup = markup
	if _, err := r.bot.Send(msg); err != nil {
		r.log.Warn("send failed", zap.Error(err), zap.Int64("chatID", chatID))
	}
}

func (r *Router) answerCallback(id, text string) error {
	_, err := r.bot.Request(tgbotapi.NewCallback(id, text))
	return err
}

// ownedLesson loads a lesson the user may change: their own, or any for admins.
func (r *Router) ownedLesson(ctx context.Context, userID int64, id string) (*domain.Lesson, error) {
	l, err := r.repo.GetLesson(ctx, id)
	if err != nil {
		return nil, err
	}
	if l.UserID != userID && !r.isAdmin(userID) {
		return nil, store.ErrNotFound
	}
	return l, nil
}

// --- Core commands ---

func (r *Router) handleStart(ctx context.Context, chatID int64, from *tgbotapi.User) {
	u, err := r.ensureUser(ctx, chatID, from)
	if err != nil {
		r.log.Error("ensureUser failed", zap.Error(err))
		r.sendText(chatID, "Registration error. Please try again later.")
		return
	}
	r.log.Info("user registered", zap.Int64("userID", u.ID), zap.String("name", u.Name))
	r.sendWithMarkup(chatID, fmt.Sprintf(startText, u.Name), mainMenuKeyboard(r.isAdmin(u.ID)))
}

func (r *Router) handleMenu(ctx context.Context, chatID int64, from *tgbotapi.User) {
	if _, err := r.ensureUser(ctx, chatID, from); err != nil {
		r.log.Error("ensureUser failed", zap.Error(err))
	}
	r.sendWithMarkup(chatID, "Choose an action:", mainMenuKeyboard(r.isAdmin(from.ID)))
}

func (r *Router) handleMenuCallback(ctx context.Context, chatID int64, from *tgbotapi.User, item string) {
	switch item {
	case "add":
		r.askWeekday(chatID, "add_day", "Choose the day of the lesson:")
	case "view":
		r.handleView(ctx, chatID, from.ID)
	case "edit":
		r.handleEditList(ctx, chatID, from.ID)
	case "reset":
		r.sendWithMarkup(chatID, resetConfirmText, resetConfirmKeyboard())
	case "students":
		r.handleStudents(ctx, chatID, from.ID)
	}
}

func (r *Router) handleView(ctx context.Context, chatID, userID int64) {
	ls, err := r.repo.ListLessons(ctx, userID)
	if err != nil {
		r.log.Error("list lessons failed", zap.Error(err), zap.Int64("userID", userID))
		r.sendText(chatID, "Error reading your schedule.")
		return
	}
	r.sendText(chatID, formatSchedule("📅 Your schedule:", ls, r.clock.Now()))
}

func (r *Router) handleStudents(ctx context.Context, chatID, userID int64) {
	if !r.isAdmin(userID) {
		r.sendText(chatID, "This command is for the tutor only.")
		return
	}
	users, err := r.repo.ListUsers(ctx)
	if err != nil {
		r.log.Error("list users failed", zap.Error(err))
		r.sendText(chatID, "Error reading students.")
		return
	}
	if len(users) == 0 {
		r.sendText(chatID, "No registered users yet.")
		return
	}
	now := r.clock.Now()
	var b strings.Builder
	for _, u := range users {
		ls, err := r.repo.ListLessons(ctx, u.ID)
		if err != nil {
			r.log.Error("list lessons failed", zap.Error(err), zap.Int64("userID", u.ID))
			continue
		}
		title := fmt.Sprintf("👤 %s (id %d):", u.Name, u.ID)
		if len(ls) == 0 {
			b.WriteString(title + "\nno lessons\n\n")
			continue
		}
		b.WriteString(formatSchedule(title, ls, now))
		b.WriteString("\n")
	}
	r.sendText(chatID, b.String())
}

// --- Add flow ---

func (r *Router) askWeekday(chatID int64, prefix, prompt string) {
	r.sendWithMarkup(chatID, prompt, weekdayKeyboard(prefix))
}

func (r *Router) handleAddDay(chatID int64, rawDay string) {
	wd, err := decodeWeekday(rawDay)
	if err != nil {
		r.sendText(chatID, "Invalid day.")
		return
	}
	r.sendWithMarkup(chatID, wd.String()+". Choose the start time:", timePresetsKeyboard(wd))
}

func (r *Router) handleAddTime(chatID int64, rawDay, rawTime string) {
	wd, err := decodeWeekday(rawDay)
	if err != nil {
		r.sendText(chatID, "Invalid day.")
		return
	}
	if rawTime == "custom" {
		r.setPending(chatID, pending{kind: pendingAddTime, weekday: wd})
		r.sendText(chatID, askTimeText)
		return
	}
	start, err := decodeClock(rawTime)
	if err != nil {
		r.sendText(chatID, "Invalid time.")
		return
	}
	r.setPending(chatID, pending{kind: pendingLabel, weekday: wd, start: start})
	r.sendText(chatID, askLabelText)
}

func (r *Router) addLesson(ctx context.Context, chatID, userID int64, wd domain.Weekday, start domain.ClockTime, label string) {
	l := &domain.Lesson{
		ID:        uuid.NewString(),
		UserID:    userID,
		Weekday:   wd,
		Start:     start,
		Label:     label,
		CreatedAt: time.Now().UTC(),
	}
	err := r.repo.AddLesson(ctx, l)
	if errors.Is(err, store.ErrNotFound) {
		r.sendText(chatID, "Please send /start first.")
		return
	}
	if err != nil {
		r.log.Error("add lesson failed", zap.Error(err), zap.Int64("userID", userID))
		r.sendText(chatID, "Could not save the lesson.")
		return
	}
	r.log.Info("lesson added", zap.Int64("userID", userID), zap.String("lessonID", l.ID))
	r.sendText(chatID, "✅ Added: "+lessonLine(*l))
}

// --- Free-form dispatcher (for all text inputs) ---

func (r *Router) handleFreeForm(ctx context.Context, chatID, userID int64, text string) {
	p, ok := r.getPending(chatID)
	if !ok {
		// No pending flow: ignore free-form message
		return
	}

	switch p.kind {
	case pendingAddTime:
		start, err := domain.ParseClock(text)
		if err != nil {
			r.sendText(chatID, "Invalid time. Example: 17:30")
			return
		}
		r.setPending(chatID, pending{kind: pendingLabel, weekday: p.weekday, start: start})
		r.sendText(chatID, askLabelText)

	case pendingLabel:
		label, err := domain.ParseLabel(text)
		if err != nil {
			r.sendText(chatID, fmt.Sprintf("Invalid name: keep it between 1 and %d characters.", domain.MaxLabelLen))
			return
		}
		r.clearPending(chatID)
		r.addLesson(ctx, chatID, userID, p.weekday, p.start, label)

	case pendingMoveTime:
		start, err := domain.ParseClock(text)
		if err != nil {
			r.sendText(chatID, "Invalid time. Example: 17:30")
			return
		}
		r.clearPending(chatID)
		r.moveLesson(ctx, chatID, userID, p.lessonID, p.weekday, start)
	}
}

// --- Edit flow ---

func (r *Router) handleEditList(ctx context.Context, chatID, userID int64) {
	ls, err := r.repo.ListLessons(ctx, userID)
	if err != nil {
		r.log.Error("list lessons failed", zap.Error(err), zap.Int64("userID", userID))
		r.sendText(chatID, "Error reading your schedule.")
		return
	}
	if len(ls) == 0 {
		r.sendText(chatID, emptyScheduleText)
		return
	}
	r.sendWithMarkup(chatID, "Choose a lesson:", lessonsKeyboard(ls))
}

func (r *Router) handleEditLesson(ctx context.Context, chatID, userID int64, id string) {
	l, err := r.ownedLesson(ctx, userID, id)
	if err != nil {
		r.sendText(chatID, "Lesson not found.")
		return
	}
	r.sendWithMarkup(chatID, lessonLine(*l), lessonActionsKeyboard(l.ID))
}

func (r *Router) handleDelete(ctx context.Context, chatID, userID int64, id string) {
	l, err := r.ownedLesson(ctx, userID, id)
	if err != nil {
		r.sendText(chatID, "Lesson not found.")
		return
	}
	if err := r.repo.DeleteLesson(ctx, id); err != nil {
		r.log.Error("delete lesson failed", zap.Error(err), zap.String("lessonID", id))
		r.sendText(chatID, "Could not delete the lesson.")
		return
	}
	r.log.Info("lesson deleted", zap.Int64("userID", userID), zap.String("lessonID", id))
	r.sendText(chatID, "🗑 Deleted: "+lessonLine(*l))
}

func (r *Router) handleMoveDay(ctx context.Context, chatID, userID int64, id, rawDay string) {
	if _, err := r.ownedLesson(ctx, userID, id); err != nil {
		r.sendText(chatID, "Lesson not found.")
		return
	}
	wd, err := decodeWeekday(rawDay)
	if err != nil {
		r.sendText(chatID, "Invalid day.")
		return
	}
	r.setPending(chatID, pending{kind: pendingMoveTime, weekday: wd, lessonID: id})
	r.sendText(chatID, wd.String()+". "+askTimeText)
}

func (r *Router) moveLesson(ctx context.Context, chatID, userID int64, id string, wd domain.Weekday, start domain.ClockTime) {
	l, err := r.ownedLesson(ctx, userID, id)
	if err != nil {
		r.sendText(chatID, "Lesson not found.")
		return
	}
	if err := r.repo.MoveLesson(ctx, id, wd, start); err != nil {
		r.log.Error("move lesson failed", zap.Error(err), zap.String("lessonID", id))
		r.sendText(chatID, "Could not move the lesson.")
		return
	}
	l.Weekday, l.Start = wd, start
	r.log.Info("lesson moved", zap.Int64("userID", userID), zap.String("lessonID", id))
	r.sendText(chatID, "🔀 Moved: "+lessonLine(*l))
}

// --- Reset ---

func (r *Router) handleReset(ctx context.Context, chatID, userID int64, confirmed bool) {
	if !confirmed {
		r.sendText(chatID, "Reset cancelled.")
		return
	}
	n, err := r.repo.ResetLessons(ctx, userID)
	if err != nil {
		r.log.Error("reset failed", zap.Error(err), zap.Int64("userID", userID))
		r.sendText(chatID, "Failed to reset the schedule.")
		return
	}
	r.log.Info("schedule reset", zap.Int64("userID", userID), zap.Int("removed", n))
	r.sendText(chatID, fmt.Sprintf("Schedule cleared: %d lesson(s) removed.", n))
}
