package clock

import "time"

// Clock is a source of the current time.
type Clock interface {
	Now() time.Time
}

// Zoned reports the system time in a fixed location.
type Zoned struct{ loc *time.Location }

func InZone(loc *time.Location) Zoned {
	if loc == nil {
		loc = time.UTC
	}
	return Zoned{loc: loc}
}

func (z Zoned) Now() time.Time { return time.Now().In(z.loc) }

func (z Zoned) Location() *time.Location { return z.loc }
