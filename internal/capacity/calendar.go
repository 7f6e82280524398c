package capacity

import (
	"fmt"
	"time"
)

// Calendar knows which weekdays are worked.
type Calendar struct {
	off [7]bool
}

// NewCalendar builds a calendar closed on the given weekdays. At least one
// weekday must remain a working day.
func NewCalendar(nonWorking ...time.Weekday) (Calendar, error) {
	var c Calendar
	for _, d := range nonWorking {
		if d < time.Sunday || d > time.Saturday {
			return Calendar{}, fmt.Errorf("%w: weekday %d out of range", ErrInvalidConfig, d)
		}
		c.off[d] = true
	}
	for _, off := range c.off {
		if !off {
			return c, nil
		}
	}
	return Calendar{}, fmt.Errorf("%w: every weekday is non-working", ErrInvalidConfig)
}

// IsWorkingDay reports whether t falls on a working weekday.
func (c Calendar) IsWorkingDay(t time.Time) bool {
	return !c.off[t.Weekday()]
}

// AddBusinessDays walks forward one calendar day at a time, counting only
// working days, until n have been counted.
func (c Calendar) AddBusinessDays(t time.Time, n int) time.Time {
	for counted := 0; counted < n; {
		t = t.AddDate(0, 0, 1)
		if c.IsWorkingDay(t) {
			counted++
		}
	}
	return t
}

// NextWorkingDay returns t if it is a working day, otherwise the first
// working day after it.
func (c Calendar) NextWorkingDay(t time.Time) time.Time {
	for !c.IsWorkingDay(t) {
		t = t.AddDate(0, 0, 1)
	}
	return t
}

// DayKey identifies the calendar day of t in loc, e.g. "2026-03-02".
func DayKey(t time.Time, loc *time.Location) string {
	if loc == nil {
		loc = time.UTC
	}
	return t.In(loc).Format(time.DateOnly)
}

func startOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}
