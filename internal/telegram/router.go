package telegram

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"sync"
	"syscall"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"github.com/Ruslan-16/ScheduleLessons1Bot/internal/clock"
	"github.com/Ruslan-16/ScheduleLessons1Bot/internal/domain"
	"github.com/Ruslan-16/ScheduleLessons1Bot/internal/reminder"
	"github.com/Ruslan-16/ScheduleLessons1Bot/internal/store"
)

// Pending state kinds used in conversational flows.
const (
	pendingAddTime  = "await_add_time"
	pendingLabel    = "await_label"
	pendingMoveTime = "await_move_time"
)

// pending is the in-progress input of one chat.
type pending struct {
	kind     string
	weekday  domain.Weekday
	start    domain.ClockTime
	lessonID string
}

// Router wires Telegram updates to handlers and holds minimal in-memory state.
type Router struct {
	bot     *tgbotapi.BotAPI
	log     *zap.Logger
	repo    store.Repo
	clock   clock.Clock
	isAdmin func(userID int64) bool
	state   map[int64]pending // chatID -> pending state
	mu      sync.RWMutex
}

// NewRouter creates a new Telegram router.
func NewRouter(bot *tgbotapi.BotAPI, log *zap.Logger, repo store.Repo, clk clock.Clock, isAdmin func(int64) bool) *Router {
	if isAdmin == nil {
		isAdmin = func(int64) bool { return false }
	}
	return &Router{
		bot:     bot,
		log:     log.Named("telegram"),
		repo:    repo,
		clock:   clk,
		isAdmin: isAdmin,
		state:   make(map[int64]pending),
	}
}

// setPending sets a pending state for a chat (non-persistent, in-memory).
func (r *Router) setPending(chatID int64, p pending) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.state[chatID] = p
}

// getPending returns current pending state for a chat.
func (r *Router) getPending(chatID int64) (pending, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.state[chatID]
	return p, ok
}

// clearPending clears a pending state for a chat.
func (r *Router) clearPending(chatID int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.state, chatID)
}

// RegisterCommands publishes the command menu. Admins additionally get the
// admin commands in their private chats.
func (r *Router) RegisterCommands(adminIDs ...int64) error {
	if _, err := r.bot.Request(tgbotapi.NewSetMyCommands(botCommands...)); err != nil {
		return err
	}
	adminMenu := append(append([]tgbotapi.BotCommand(nil), botCommands...), adminCommands...)
	var errs []error
	for _, id := range adminIDs {
		scope := tgbotapi.NewBotCommandScopeChat(id)
		if _, err := r.bot.Request(tgbotapi.NewSetMyCommandsWithScope(scope, adminMenu...)); err != nil {
			errs = append(errs, fmt.Errorf("admin %d: %w", id, err))
		}
	}
	return errors.Join(errs...)
}

// HandleUpdate routes a single update to appropriate handler.
func (r *Router) HandleUpdate(ctx context.Context, upd tgbotapi.Update) {
	// Text messages
	if upd.Message != nil && upd.Message.From != nil {
		msg := upd.Message
		chatID := msg.Chat.ID
		from := msg.From

		if msg.IsCommand() {
			// Any command aborts an unfinished input.
			r.clearPending(chatID)
			switch msg.Command() {
			case "start":
				r.handleStart(ctx, chatID, from)
			case "menu":
				r.handleMenu(ctx, chatID, from)
			case "help":
				r.sendText(chatID, helpText)
			case "add":
				r.askWeekday(chatID, "add_day", "Choose the day of the lesson:")
			case "schedule":
				r.handleView(ctx, chatID, from.ID)
			case "edit":
				r.handleEditList(ctx, chatID, from.ID)
			case "reset":
				r.sendWithMarkup(chatID, resetConfirmText, resetConfirmKeyboard())
			case "students":
				r.handleStudents(ctx, chatID, from.ID)
			case "cancel":
				r.sendText(chatID, "Cancelled.")
			default:
				r.sendText(chatID, "Unknown command. "+helpText)
			}
			return
		}
		r.handleFreeForm(ctx, chatID, from.ID, strings.TrimSpace(msg.Text))
		return
	}

	// Callback queries (inline buttons)
	if upd.CallbackQuery != nil && upd.CallbackQuery.Message != nil {
		cb := upd.CallbackQuery
		chatID := cb.Message.Chat.ID
		userID := cb.From.ID
		_ = r.answerCallback(cb.ID, "")

		parts := strings.Split(cb.Data, ":")
		switch parts[0] {
		case "menu":
			r.handleMenuCallback(ctx, chatID, cb.From, arg(parts, 1))
		case "add_day":
			r.handleAddDay(chatID, arg(parts, 1))
		case "add_time":
			r.handleAddTime(chatID, arg(parts, 1), arg(parts, 2))
		case "edit":
			r.handleEditLesson(ctx, chatID, userID, arg(parts, 1))
		case "del":
			r.handleDelete(ctx, chatID, userID, arg(parts, 1))
		case "move":
			r.askWeekday(chatID, "move_day:"+arg(parts, 1), "Choose the new day:")
		case "move_day":
			r.handleMoveDay(ctx, chatID, userID, arg(parts, 1), arg(parts, 2))
		case "reset":
			r.handleReset(ctx, chatID, userID, arg(parts, 1) == "yes")
		default:
			// Unknown callback, ignore
		}
	}
}

func arg(parts []string, i int) string {
	if i < len(parts) {
		return parts[i]
	}
	return ""
}

// SendMessage sends a plain text message to the given chat, giving up when
// ctx is done. This makes Router satisfy reminder.Sender.
//
// Once the request may have reached Telegram, a failure is reported as
// reminder.ErrUncertain so the caller does not send the text twice.
func (r *Router) SendMessage(ctx context.Context, chatID int64, text string) error {
	done := make(chan error, 1)
	go func() {
		// Bounded by the HTTP client timeout.
		_, err := r.bot.Send(tgbotapi.NewMessage(chatID, text))
		done <- err
	}()
	select {
	case err := <-done:
		return classifySendError(err)
	case <-ctx.Done():
		return fmt.Errorf("%w: %v", reminder.ErrUncertain, ctx.Err())
	}
}

// classifySendError sorts send failures into three groups: not delivered and
// worth retrying (returned as is), never deliverable, and possibly delivered.
func classifySendError(err error) error {
	if err == nil {
		return nil
	}
	var apiErr *tgbotapi.Error
	if errors.As(err, &apiErr) {
		switch {
		case apiErr.Code == http.StatusTooManyRequests, apiErr.Code >= http.StatusInternalServerError:
			return err
		default:
			return fmt.Errorf("%w: %d %s", reminder.ErrUndeliverable, apiErr.Code, apiErr.Message)
		}
	}
	if notSent(err) {
		return err
	}
	return fmt.Errorf("%w: %v", reminder.ErrUncertain, err)
}

// notSent reports transport errors raised before the request left the host.
func notSent(err error) bool {
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return true
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) && opErr.Op == "dial" {
		return true
	}
	return errors.Is(err, syscall.ECONNREFUSED)
}
