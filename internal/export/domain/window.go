package export

import (
	"fmt"
	"time"
)

const (
	// DayKeyLayout is the yyyyMMdd layout used for queries and cell keys.
	DayKeyLayout = "20060102"
	// DisplayLayout is the yyyy-MM-dd layout used in CSV rows.
	DisplayLayout = "2006-01-02"
)

// ParseDayKey parses a yyyyMMdd key into UTC midnight.
func ParseDayKey(key string) (time.Time, error) {
	if len(key) != len(DayKeyLayout) {
		return time.Time{}, fmt.Errorf("%w: %q", ErrInvalidDayKey, key)
	}
	day, err := time.Parse(DayKeyLayout, key)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %q", ErrInvalidDayKey, key)
	}
	return day.UTC(), nil
}

// FormatDayKey renders t as yyyyMMdd.
func FormatDayKey(t time.Time) string { return t.Format(DayKeyLayout) }

// DayWindow is the half-open range [MinDayKey, MaxDayKey) of one calendar day.
type DayWindow struct {
	Day       time.Time
	MinDayKey string
	MaxDayKey string
}

// NewDayWindow builds the window starting at the calendar day of t.
func NewDayWindow(t time.Time) DayWindow {
	day := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
	return DayWindow{
		Day:       day,
		MinDayKey: FormatDayKey(day),
		MaxDayKey: FormatDayKey(day.AddDate(0, 0, 1)),
	}
}

// Display returns the yyyy-MM-dd form written in CSV rows.
func (w DayWindow) Display() string { return w.Day.Format(DisplayLayout) }

// String implements fmt.Stringer.
func (w DayWindow) String() string { return "[" + w.MinDayKey + "," + w.MaxDayKey + ")" }

// DayWindows yields consecutive day windows covering [start, end).
// It is single use: once exhausted it keeps returning false.
type DayWindows struct {
	current DayWindow
	endKey  string
	done    bool
}

// NewDayWindows constructs the iterator. A start at or after end yields nothing.
func NewDayWindows(start, end time.Time) *DayWindows {
	return &DayWindows{
		current: NewDayWindow(start),
		endKey:  FormatDayKey(end),
	}
}

// Next returns the next window, or false when the range is exhausted.
func (it *DayWindows) Next() (DayWindow, bool) {
	if it == nil || it.done {
		return DayWindow{}, false
	}
	if it.current.MaxDayKey > it.endKey {
		it.done = true
		return DayWindow{}, false
	}
	window := it.current
	it.current = NewDayWindow(window.Day.AddDate(0, 0, 1))
	return window, true
}
