package domain

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

var ErrInvalidWeekday = errors.New("invalid weekday")

// Weekday is a day of the week, Monday=1 .. Sunday=7.
type Weekday int

const (
	Monday Weekday = iota + 1
	Tuesday
	Wednesday
	Thursday
	Friday
	Saturday
	Sunday
)

// Weekdays lists all days in calendar order starting from Monday.
var Weekdays = []Weekday{Monday, Tuesday, Wednesday, Thursday, Friday, Saturday, Sunday}

var weekdayNames = [...]string{"", "Monday", "Tuesday", "Wednesday", "Thursday", "Friday", "Saturday", "Sunday"}

// weekdayAliases maps every accepted spelling (lower case) to a day.
var weekdayAliases = map[string]Weekday{
	"monday": Monday, "mon": Monday, "понедельник": Monday, "пн": Monday, "1": Monday,
	"tuesday": Tuesday, "tue": Tuesday, "вторник": Tuesday, "вт": Tuesday, "2": Tuesday,
	"wednesday": Wednesday, "wed": Wednesday, "среда": Wednesday, "ср": Wednesday, "3": Wednesday,
	"thursday": Thursday, "thu": Thursday, "четверг": Thursday, "чт": Thursday, "4": Thursday,
	"friday": Friday, "fri": Friday, "пятница": Friday, "пт": Friday, "5": Friday,
	"saturday": Saturday, "sat": Saturday, "суббота": Saturday, "сб": Saturday, "6": Saturday,
	"sunday": Sunday, "sun": Sunday, "воскресенье": Sunday, "вс": Sunday, "7": Sunday,
}

// ParseWeekday normalizes user or file input into a Weekday.
func ParseWeekday(s string) (Weekday, error) {
	key := strings.ToLower(strings.TrimSpace(s))
	if wd, ok := weekdayAliases[key]; ok {
		return wd, nil
	}
	return 0, fmt.Errorf("%w: %q", ErrInvalidWeekday, s)
}

// WeekdayOf converts a time.Weekday (Sunday=0) into a Weekday (Sunday=7).
func WeekdayOf(d time.Weekday) Weekday {
	if d == time.Sunday {
		return Sunday
	}
	return Weekday(d)
}

func (w Weekday) Valid() bool { return w >= Monday && w <= Sunday }

func (w Weekday) String() string {
	if !w.Valid() {
		return fmt.Sprintf("Weekday(%d)", int(w))
	}
	return weekdayNames[w]
}

// Short returns the three-letter English abbreviation.
func (w Weekday) Short() string {
	if !w.Valid() {
		return "?"
	}
	return weekdayNames[w][:3]
}
