package domain

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"
)

var (
	ErrInvalidClock = errors.New("invalid time of day")
	ErrEmptyLabel   = errors.New("empty label")
	ErrLabelTooLong = errors.New("label too long")
)

// MaxLabelLen is the maximum lesson label length in characters.
const MaxLabelLen = 128

// ClockTime is a wall-clock time of day.
type ClockTime struct {
	Hour   int
	Minute int
}

func (c ClockTime) Valid() bool {
	return c.Hour >= 0 && c.Hour <= 23 && c.Minute >= 0 && c.Minute <= 59
}

// Minutes returns minutes since midnight.
func (c ClockTime) Minutes() int { return c.Hour*60 + c.Minute }

func (c ClockTime) String() string {
	return fmt.Sprintf("%02d:%02d", c.Hour, c.Minute)
}

// ParseClock parses "HH:MM" (also "H:MM" and "HH.MM") into a ClockTime.
func ParseClock(s string) (ClockTime, error) {
	s = strings.TrimSpace(s)
	sep := ":"
	if !strings.Contains(s, ":") && strings.Contains(s, ".") {
		sep = "."
	}
	parts := strings.Split(s, sep)
	if len(parts) != 2 {
		return ClockTime{}, fmt.Errorf("%w: expected HH:MM, got %q", ErrInvalidClock, s)
	}
	h, err := strconv.Atoi(strings.TrimSpace(parts[0]))
	if err != nil || h < 0 || h > 23 {
		return ClockTime{}, fmt.Errorf("%w: invalid hour in %q", ErrInvalidClock, s)
	}
	m, err := strconv.Atoi(strings.TrimSpace(parts[1]))
	if err != nil || m < 0 || m > 59 || len(strings.TrimSpace(parts[1])) != 2 {
		return ClockTime{}, fmt.Errorf("%w: invalid minute in %q", ErrInvalidClock, s)
	}
	return ClockTime{Hour: h, Minute: m}, nil
}

// ParseLabel trims a lesson label and checks its length.
func ParseLabel(s string) (string, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", ErrEmptyLabel
	}
	if utf8.RuneCountInString(s) > MaxLabelLen {
		return "", fmt.Errorf("%w: max %d characters", ErrLabelTooLong, MaxLabelLen)
	}
	return s, nil
}

// LoadZone resolves an IANA location name.
func LoadZone(tz string) (*time.Location, error) {
	loc, err := time.LoadLocation(strings.TrimSpace(tz))
	if err != nil {
		return nil, fmt.Errorf("load time zone %q: %w", tz, err)
	}
	return loc, nil
}
