// Package calendar resolves a restaurant's operating window for a date.
//
// Clock values are minutes since local midnight. A rule whose close is
// earlier than its open closes after midnight; such a close is compared as
// close+24h and never treated as falling before open.
package calendar

import (
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"
)

const minutesPerDay = 24 * 60

var ErrInvalidClock = errors.New("invalid clock time")

// ClockTime is a local wall-clock time at minute granularity. Values at or
// past 24:00 denote the following morning of a rolled-over service.
type ClockTime int

// ParseClock accepts "HH:MM" and "HH:MM:SS" (seconds are dropped).
func ParseClock(s string) (ClockTime, error) {
	s = strings.TrimSpace(s)
	parts := strings.Split(s, ":")
	if len(parts) < 2 || len(parts) > 3 {
		return 0, fmt.Errorf("%w: %q", ErrInvalidClock, s)
	}
	h, err := strconv.Atoi(parts[0])
	if err != nil || h < 0 || h > 23 || len(parts[0]) > 2 {
		return 0, fmt.Errorf("%w: %q", ErrInvalidClock, s)
	}
	m, err := strconv.Atoi(parts[1])
	if err != nil || m < 0 || m > 59 || len(parts[1]) != 2 {
		return 0, fmt.Errorf("%w: %q", ErrInvalidClock, s)
	}
	if len(parts) == 3 {
		if sec, err := strconv.Atoi(parts[2]); err != nil || sec < 0 || sec > 59 {
			return 0, fmt.Errorf("%w: %q", ErrInvalidClock, s)
		}
	}
	return ClockTime(h*60 + m), nil
}

func MustClock(s string) ClockTime {
	c, err := ParseClock(s)
	if err != nil {
		panic(err)
	}
	return c
}

// Mod folds a rolled-over value back into a single day.
func (c ClockTime) Mod() ClockTime {
	return ((c % minutesPerDay) + minutesPerDay) % minutesPerDay
}

func (c ClockTime) Add(d time.Duration) ClockTime {
	return c + ClockTime(d/time.Minute)
}

func (c ClockTime) String() string {
	m := int(c.Mod())
	return fmt.Sprintf("%02d:%02d", m/60, m%60)
}

// On returns the instant this clock time falls on for the given local date.
// The value is read as wall-clock time, so DST shifts do not move it.
// Rolled-over values land on the next calendar day.
func (c ClockTime) On(date time.Time, loc *time.Location) time.Time {
	y, mo, d := date.Date()
	return time.Date(y, mo, d, 0, int(c), 0, 0, loc)
}

func (c ClockTime) MarshalText() ([]byte, error) {
	return []byte(c.String()), nil
}

func (c *ClockTime) UnmarshalText(b []byte) error {
	v, err := ParseClock(string(b))
	if err != nil {
		return err
	}
	*c = v
	return nil
}

// Rule is one opening window on a weekday (0=Sunday..6=Saturday).
type Rule struct {
	Weekday time.Weekday `json:"weekday"`
	Open    ClockTime    `json:"open"`
	Close   ClockTime    `json:"close"`
}

func (r Rule) Validate() error {
	if r.Weekday < time.Sunday || r.Weekday > time.Saturday {
		return fmt.Errorf("weekday %d out of range 0..6", r.Weekday)
	}
	if r.Open < 0 || r.Open >= minutesPerDay || r.Close < 0 || r.Close >= minutesPerDay {
		return fmt.Errorf("%s: %w", r.Weekday, ErrInvalidClock)
	}
	if r.Open == r.Close {
		return fmt.Errorf("%s: open and close are both %s", r.Weekday, r.Open)
	}
	return nil
}

// EffectiveClose is Close, shifted by a day when the rule runs past midnight.
func (r Rule) EffectiveClose() ClockTime {
	if r.Close < r.Open {
		return r.Close + minutesPerDay
	}
	return r.Close
}

// OperatingHours is the set of rules for a restaurant. A weekday with no rule
// is closed.
type OperatingHours []Rule

func (h OperatingHours) Validate() error {
	for _, r := range h {
		if err := r.Validate(); err != nil {
			return err
		}
	}
	return nil
}

// Effective returns override when it carries any rule, else profile.
func Effective(profile, override OperatingHours) OperatingHours {
	if len(override) > 0 {
		return override
	}
	return profile
}

// Window is the resolved service window for one rule.
type Window struct {
	OpenTime  ClockTime `json:"open_time"`
	CloseTime ClockTime `json:"close_time"`
}

// Contains reports whether t falls in [open, effective close). A t earlier
// than open is retried as t+24h so early-morning times reach a rolled-over
// close. The returned value is t as positioned inside the window.
func (w Window) Contains(t ClockTime) (ClockTime, bool) {
	t = t.Mod()
	if t >= w.OpenTime && t < w.CloseTime {
		return t, true
	}
	if t < w.OpenTime && t+minutesPerDay < w.CloseTime {
		return t + minutesPerDay, true
	}
	return 0, false
}

// Day is the outcome of resolving a date against operating hours.
type Day struct {
	Weekday time.Weekday
	Windows []Window
}

func (d Day) Open() bool { return len(d.Windows) > 0 }

// OpenTime is the first opening of the day.
func (d Day) OpenTime() ClockTime {
	if !d.Open() {
		return 0
	}
	return d.Windows[0].OpenTime
}

// CloseTime is the latest effective close of the day.
func (d Day) CloseTime() ClockTime {
	var c ClockTime
	for _, w := range d.Windows {
		if w.CloseTime > c {
			c = w.CloseTime
		}
	}
	return c
}

// Locate finds the window containing t.
func (d Day) Locate(t ClockTime) (Window, ClockTime, bool) {
	for _, w := range d.Windows {
		if at, ok := w.Contains(t); ok {
			return w, at, true
		}
	}
	return Window{}, 0, false
}

// IsOpen resolves the rules for date's weekday, with close times normalised
// for midnight rollover and windows ordered by open time.
func (h OperatingHours) IsOpen(date time.Time) Day {
	day := Day{Weekday: date.Weekday()}
	for _, r := range h {
		if r.Weekday != day.Weekday {
			continue
		}
		day.Windows = append(day.Windows, Window{OpenTime: r.Open, CloseTime: r.EffectiveClose()})
	}
	sort.Slice(day.Windows, func(i, j int) bool {
		return day.Windows[i].OpenTime < day.Windows[j].OpenTime
	})
	return day
}

// ParseDate parses an ISO YYYY-MM-DD date in loc.
func ParseDate(s string, loc *time.Location) (time.Time, error) {
	return time.ParseInLocation(time.DateOnly, strings.TrimSpace(s), loc)
}

// DaysBetween counts calendar days from a to b, ignoring clock time and DST.
func DaysBetween(a, b time.Time) int {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	ua := time.Date(ay, am, ad, 0, 0, 0, 0, time.UTC)
	ub := time.Date(by, bm, bd, 0, 0, 0, 0, time.UTC)
	return int(ub.Sub(ua).Hours() / 24)
}

// SameDate reports whether a and b share a calendar date in their own zones.
func SameDate(a, b time.Time) bool {
	return DaysBetween(a, b) == 0
}
