// Package availability computes bookable slots for a restaurant day.
package availability

import (
	"errors"
	"fmt"
	"time"

	"github.com/example/tablebook/internal/calendar"
	"github.com/example/tablebook/internal/reservation"
)

var ErrConfiguration = errors.New("configuration error")

type SlotStatus string

const (
	Unavailable SlotStatus = "unavailable"
	Limited     SlotStatus = "limited"
	Available   SlotStatus = "available"
)

func (s SlotStatus) rank() int {
	switch s {
	case Limited:
		return 1
	case Available:
		return 2
	}
	return 0
}

type Slot struct {
	Time            calendar.ClockTime `json:"time"`
	AvailableTables int                `json:"available_tables"`
	Status          SlotStatus         `json:"status"`
}

// Classify labels remaining capacity. Limited covers a single table or a
// quarter or less of the eligible tables, which keeps the label monotonic.
func Classify(available, eligible int) SlotStatus {
	switch {
	case available <= 0:
		return Unavailable
	case available == 1 || available*4 <= eligible:
		return Limited
	default:
		return Available
	}
}

// Counts is the number of occupying reservations per positioned start time.
type Counts map[calendar.ClockTime]int

// CountOccupying tallies reservations that still hold a table.
func CountOccupying(rs []reservation.Reservation) Counts {
	c := Counts{}
	for _, r := range rs {
		if r.Status.Occupying() {
			c[r.Time]++
		}
	}
	return c
}

type Request struct {
	Date           time.Time
	Hours          calendar.OperatingHours
	SlotDuration   time.Duration
	Buffer         time.Duration
	EligibleTables int
	Counts         Counts
}

// ComputeSlots lists candidate start times in ascending order with their
// remaining capacity. A closed day yields no slots.
func ComputeSlots(req Request) ([]Slot, error) {
	if req.SlotDuration < time.Minute {
		return nil, fmt.Errorf("%w: slot duration must be positive, got %s", ErrConfiguration, req.SlotDuration)
	}
	if req.Buffer < 0 {
		return nil, fmt.Errorf("%w: buffer must not be negative, got %s", ErrConfiguration, req.Buffer)
	}

	day := req.Hours.IsOpen(req.Date)
	if !day.Open() {
		return []Slot{}, nil
	}

	starts := Starts(day, req.SlotDuration, req.Buffer)
	slots := make([]Slot, 0, len(starts))
	for _, t := range starts {
		available := req.EligibleTables - req.Counts[t]
		if available < 0 {
			available = 0
		}
		slots = append(slots, Slot{
			Time:            t,
			AvailableTables: available,
			Status:          Classify(available, req.EligibleTables),
		})
	}
	return slots, nil
}

// Starts is the slot grid of an open day: each window is stepped from its
// open time by duration plus buffer, keeping starts whose duration ends by
// the close. duration must be at least a minute.
func Starts(day calendar.Day, duration, buffer time.Duration) []calendar.ClockTime {
	step := duration + buffer
	starts := []calendar.ClockTime{}
	var last calendar.ClockTime = -1
	for _, w := range day.Windows {
		for t := w.OpenTime; t.Add(duration) <= w.CloseTime; t = t.Add(step) {
			if t <= last {
				// overlapping rules on one day
				continue
			}
			last = t
			starts = append(starts, t)
		}
	}
	return starts
}

// OnGrid reports whether the positioned time at is one of the day's starts.
func OnGrid(day calendar.Day, at calendar.ClockTime, duration, buffer time.Duration) bool {
	for _, t := range Starts(day, duration, buffer) {
		if t == at {
			return true
		}
	}
	return false
}

// Suggest picks a fallback for a refused time: the first bookable slot after
// it, else the earliest bookable slot before it. Slots rejected by keep are
// skipped.
func Suggest(slots []Slot, requested calendar.ClockTime, keep func(Slot) bool) (Slot, bool) {
	var before *Slot
	for i := range slots {
		s := slots[i]
		if s.Status == Unavailable || s.Time == requested {
			continue
		}
		if keep != nil && !keep(s) {
			continue
		}
		if s.Time > requested {
			return s, true
		}
		if before == nil {
			before = &slots[i]
		}
	}
	if before != nil {
		return *before, true
	}
	return Slot{}, false
}

// MoreAvailable reports whether a is labeled strictly more available than b.
func MoreAvailable(a, b SlotStatus) bool {
	return a.rank() > b.rank()
}
