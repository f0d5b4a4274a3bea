package telegram

import (
	"fmt"
	"strconv"
	"strings"
	"time"
	"unicode/utf16"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/Ruslan-16/ScheduleLessons1Bot/internal/domain"
)

// UI texts in English
const (
	startText = "👋 Hi, %s! I keep your weekly lesson schedule and remind you " +
		"24 hours and 1 hour before every lesson.\n\nChoose an action:"
	helpText = "Commands:\n" +
		"/add — add a lesson\n" +
		"/schedule — view your schedule\n" +
		"/edit — move or delete a lesson\n" +
		"/reset — delete the whole schedule\n" +
		"/cancel — abort the current input\n" +
		"/menu — show the menu"
	emptyScheduleText = "Your schedule is empty. Use /add to add a lesson."
	askLabelText      = "Send the lesson name (e.g. Algebra):"
	askTimeText       = "Enter the start time as HH:MM (e.g. 17:30):"
	resetConfirmText  = "Delete all lessons from your schedule?"
)

// botCommands is the list shown in the Telegram command menu.
var botCommands = []tgbotapi.BotCommand{
	{Command: "start", Description: "Register and show the menu"},
	{Command: "menu", Description: "Show the menu"},
	{Command: "add", Description: "Add a lesson"},
	{Command: "schedule", Description: "View your schedule"},
	{Command: "edit", Description: "Move or delete a lesson"},
	{Command: "reset", Description: "Delete the whole schedule"},
	{Command: "cancel", Description: "Abort the current input"},
	{Command: "help", Description: "Help"},
}

// adminCommands are shown to admins only.
var adminCommands = []tgbotapi.BotCommand{
	{Command: "students", Description: "List students and their schedules"},
}

// maxMessageLen is the Telegram limit for one text message, in UTF-16 units.
const maxMessageLen = 4096

// splitMessage cuts text into chunks of at most limit UTF-16 units,
// preferring line breaks. A single longer line is cut hard.
func splitMessage(text string, limit int) []string {
	var (
		chunks []string
		cur    strings.Builder
		size   int
	)
	flush := func() {
		if s := strings.TrimRight(cur.String(), "\n"); s != "" {
			chunks = append(chunks, s)
		}
		cur.Reset()
		size = 0
	}
	for _, line := range strings.SplitAfter(text, "\n") {
		n := utf16Len(line)
		if size+n > limit {
			flush()
		}
		if n <= limit {
			cur.WriteString(line)
			size += n
			continue
		}
		for _, r := range line {
			rn := utf16.RuneLen(r)
			if size+rn > limit {
				flush()
			}
			cur.WriteRune(r)
			size += rn
		}
	}
	flush()
	return chunks
}

func utf16Len(s string) int {
	n := 0
	for _, r := range s {
		n += utf16.RuneLen(r)
	}
	return n
}

func mainMenuKeyboard(admin bool) tgbotapi.InlineKeyboardMarkup {
	rows := [][]tgbotapi.InlineKeyboardButton{
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("➕ Add lesson", "menu:add"),
			tgbotapi.NewInlineKeyboardButtonData("📅 Schedule", "menu:view"),
		),
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("✏️ Edit", "menu:edit"),
			tgbotapi.NewInlineKeyboardButtonData("🗑 Reset", "menu:reset"),
		),
	}
	if admin {
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("👥 Students", "menu:students"),
		))
	}
	return tgbotapi.NewInlineKeyboardMarkup(rows...)
}

// weekdayKeyboard lists the days; each button carries prefix:<day>.
func weekdayKeyboard(prefix string) tgbotapi.InlineKeyboardMarkup {
	var rows [][]tgbotapi.InlineKeyboardButton
	var row []tgbotapi.InlineKeyboardButton
	for _, wd := range domain.Weekdays {
		row = append(row, tgbotapi.NewInlineKeyboardButtonData(wd.Short(), prefix+":"+strconv.Itoa(int(wd))))
		if len(row) == 4 {
			rows = append(rows, row)
			row = nil
		}
	}
	if len(row) > 0 {
		rows = append(rows, row)
	}
	return tgbotapi.NewInlineKeyboardMarkup(rows...)
}

func timePresetsKeyboard(wd domain.Weekday) tgbotapi.InlineKeyboardMarkup {
	prefix := "add_time:" + strconv.Itoa(int(wd)) + ":"
	var rows [][]tgbotapi.InlineKeyboardButton
	var row []tgbotapi.InlineKeyboardButton
	for _, ct := range timePresets {
		row = append(row, tgbotapi.NewInlineKeyboardButtonData(ct.String(), prefix+encodeClock(ct)))
		if len(row) == 5 {
			rows = append(rows, row)
			row = nil
		}
	}
	if len(row) > 0 {
		rows = append(rows, row)
	}
	rows = append(rows, tgbotapi.NewInlineKeyboardRow(
		tgbotapi.NewInlineKeyboardButtonData("✍️ Custom…", prefix+"custom"),
	))
	return tgbotapi.NewInlineKeyboardMarkup(rows...)
}

func lessonsKeyboard(ls []domain.Lesson) tgbotapi.InlineKeyboardMarkup {
	rows := make([][]tgbotapi.InlineKeyboardButton, 0, len(ls))
	for _, l := range ls {
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData(lessonLine(l), "edit:"+l.ID),
		))
	}
	return tgbotapi.NewInlineKeyboardMarkup(rows...)
}

func lessonActionsKeyboard(id string) tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("🔀 Move", "move:"+id),
			tgbotapi.NewInlineKeyboardButtonData("❌ Delete", "del:"+id),
		),
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("⬅️ Back", "menu:edit"),
		),
	)
}

func resetConfirmKeyboard() tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("Yes, delete all", "reset:yes"),
			tgbotapi.NewInlineKeyboardButtonData("No", "reset:no"),
		),
	)
}

func lessonLine(l domain.Lesson) string {
	return fmt.Sprintf("%s %s · %s", l.Weekday.Short(), l.Start, l.Label)
}

// formatSchedule renders lessons with the date of their next occurrence.
func formatSchedule(title string, ls []domain.Lesson, now time.Time) string {
	if len(ls) == 0 {
		return emptyScheduleText
	}
	var b strings.Builder
	b.WriteString(title)
	b.WriteString("\n")
	for _, l := range ls {
		b.WriteString("• ")
		b.WriteString(lessonLine(l))
		if occ, err := domain.NextOccurrence(l.Weekday, l.Start, now); err == nil {
			b.WriteString(" (next: ")
			b.WriteString(occ.Format("02.01"))
			b.WriteString(")")
		}
		b.WriteString("\n")
	}
	return b.String()
}

// encodeClock packs a time as HHMM for callback data.
func encodeClock(c domain.ClockTime) string {
	return fmt.Sprintf("%02d%02d", c.Hour, c.Minute)
}

func decodeClock(s string) (domain.ClockTime, error) {
	if len(s) != 4 {
		return domain.ClockTime{}, domain.ErrInvalidClock
	}
	return domain.ParseClock(s[:2] + ":" + s[2:])
}

func decodeWeekday(s string) (domain.Weekday, error) {
	n, err := strconv.Atoi(s)
	if err != nil || !domain.Weekday(n).Valid() {
		return 0, domain.ErrInvalidWeekday
	}
	return domain.Weekday(n), nil
}

// displayName picks the best human-readable name of a Telegram user.
func displayName(u *tgbotapi.User) string {
	if u == nil {
		return ""
	}
	name := strings.TrimSpace(u.FirstName + " " + u.LastName)
	if name == "" && u.UserName != "" {
		name = "@" + u.UserName
	}
	return name
}
