// Package calendar computes the calendar-aligned date windows used by every
// aggregation. All arithmetic happens in the configured local calendar; a
// window never passes through UTC, so boundaries do not drift for users near
// local midnight.
package calendar

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// DateLayout is the rendering used for window bounds and store arguments.
const DateLayout = "2006-01-02"

// DefaultLaunchDate floors the all-time window when none is configured.
const DefaultLaunchDate = "2025-01-01"

// ErrUnknownKind is returned when a window selector is not recognised.
var ErrUnknownKind = errors.New("unknown window kind")

// Kind selects one of the leaderboard windows.
type Kind string

const (
	KindToday     Kind = "today"
	KindWeek      Kind = "week"
	KindThisMonth Kind = "this_month"
	KindAllTime   Kind = "all_time"
)

// ParseKind accepts the externally visible window selectors. The legacy
// "this month" spelling is kept as an alias of this_month.
func ParseKind(s string) (Kind, error) {
	switch strings.TrimSpace(strings.ToLower(s)) {
	case "today":
		return KindToday, nil
	case "week":
		return KindWeek, nil
	case "this_month", "this month":
		return KindThisMonth, nil
	case "all_time":
		return KindAllTime, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownKind, s)
}

// Window is an inclusive range of calendar days. Start and End are always
// local midnights.
type Window struct {
	Start time.Time
	End   time.Time
}

// StartDate renders the first day of the window.
func (w Window) StartDate() string { return w.Start.Format(DateLayout) }

// EndDate renders the last day of the window.
func (w Window) EndDate() string { return w.End.Format(DateLayout) }

func (w Window) String() string {
	return w.StartDate() + ".." + w.EndDate()
}

// Calendar holds the local zone and the service launch date that floors the
// all-time window.
type Calendar struct {
	loc    *time.Location
	launch time.Time
}

// New builds a Calendar. A nil location means time.Local. Only the calendar
// date of launch is kept; its zone is ignored.
func New(loc *time.Location, launch time.Time) *Calendar {
	if loc == nil {
		loc = time.Local
	}
	y, m, d := launch.Date()
	return &Calendar{loc: loc, launch: time.Date(y, m, d, 0, 0, 0, 0, loc)}
}

// Location returns the calendar's zone.
func (c *Calendar) Location() *time.Location { return c.loc }

// Launch returns the all-time floor.
func (c *Calendar) Launch() time.Time { return c.launch }

// At anchors the calendar on a reference instant.
func (c *Calendar) At(ref time.Time) Frame {
	return Frame{cal: c, day: midnight(ref.In(c.loc))}
}

// ParseDate reads a YYYY-MM-DD date in the calendar's zone.
func (c *Calendar) ParseDate(s string) (time.Time, error) {
	return time.ParseInLocation(DateLayout, s, c.loc)
}

// Frame is the set of windows derived from one reference day.
type Frame struct {
	cal *Calendar
	day time.Time
}

// Day is the reference day at local midnight.
func (f Frame) Day() time.Time { return f.day }

// DaysAgo returns the day n days before the reference day.
func (f Frame) DaysAgo(n int) time.Time { return addDays(f.day, -n) }

func (f Frame) Today() Window { return single(f.day) }

func (f Frame) Yesterday() Window { return single(addDays(f.day, -1)) }

// CurrentWeek runs from Monday through the reference day.
func (f Frame) CurrentWeek() Window {
	offset := int(f.day.Weekday()) - 1
	if f.day.Weekday() == time.Sunday {
		offset = 6
	}
	return Window{Start: addDays(f.day, -offset), End: f.day}
}

// PreviousWeek is the seven days immediately before CurrentWeek.
func (f Frame) PreviousWeek() Window {
	start := f.CurrentWeek().Start
	return Window{Start: addDays(start, -7), End: addDays(start, -1)}
}

func (f Frame) CurrentMonth() Window {
	y, m, _ := f.day.Date()
	return Window{Start: time.Date(y, m, 1, 0, 0, 0, 0, f.cal.loc), End: f.day}
}

// PreviousMonth ends on day 0 of the current month.
func (f Frame) PreviousMonth() Window {
	y, m, _ := f.day.Date()
	return Window{
		Start: time.Date(y, m-1, 1, 0, 0, 0, 0, f.cal.loc),
		End:   time.Date(y, m, 0, 0, 0, 0, 0, f.cal.loc),
	}
}

// AllTime runs from the launch date through today. A launch date in the
// future collapses to today so the window stays well formed.
func (f Frame) AllTime() Window {
	start := f.cal.launch
	if start.After(f.day) {
		start = f.day
	}
	return Window{Start: start, End: f.day}
}

// Window resolves a leaderboard selector.
func (f Frame) Window(k Kind) (Window, error) {
	switch k {
	case KindToday:
		return f.Today(), nil
	case KindWeek:
		return f.CurrentWeek(), nil
	case KindThisMonth:
		return f.CurrentMonth(), nil
	case KindAllTime:
		return f.AllTime(), nil
	}
	return Window{}, fmt.Errorf("%w: %q", ErrUnknownKind, k)
}

func single(d time.Time) Window { return Window{Start: d, End: d} }

// addDays goes through time.Date so DST transitions keep days at midnight.
func addDays(t time.Time, n int) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d+n, 0, 0, 0, 0, t.Location())
}

func midnight(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}
