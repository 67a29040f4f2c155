package booking

import (
	"fmt"
	"time"

	"github.com/example/tablebook/internal/availability"
	"github.com/example/tablebook/internal/calendar"
	"github.com/example/tablebook/internal/reservation"
	"github.com/example/tablebook/internal/restaurant"
)

// Check runs the pre-commit booking rules in order, stopping at the first
// failure. It is a pure function of its inputs. On success the requested
// time is returned positioned inside its service window. Only starts on the
// day's slot grid are accepted.
func Check(rest restaurant.Restaurant, date time.Time, at calendar.ClockTime, party reservation.PartySize, now time.Time) (calendar.ClockTime, error) {
	st := rest.Settings
	loc := rest.Location()
	now = now.In(loc)

	if !st.OnlineReservationsEnabled {
		return 0, newError(KindNotAccepting, nil, "%s is not accepting online reservations", name(rest))
	}

	day := rest.EffectiveHours().IsOpen(date)
	if !day.Open() {
		return 0, newError(KindClosedDay, nil, "closed on %s", date.Weekday())
	}

	_, positioned, ok := day.Locate(at)
	if !ok {
		return 0, newError(KindOutsideHours, nil, "%s is outside operating hours (%s)", at, describe(day))
	}
	if st.SlotDuration() < time.Minute || st.Buffer() < 0 {
		return 0, newError(KindConfiguration, availability.ErrConfiguration,
			"slot duration %d minutes and buffer %d minutes", st.SlotDurationMinutes, st.BufferMinutes)
	}
	// capacity is counted per slot start, so only grid times are bookable
	if !availability.OnGrid(day, positioned, st.SlotDuration(), st.Buffer()) {
		return 0, newError(KindOutsideHours, nil, "%s is not a bookable time; tables are offered every %d minutes from opening",
			at, st.SlotDurationMinutes+st.BufferMinutes)
	}

	if calendar.SameDate(now, date) {
		start := positioned.On(date, loc)
		if start.Sub(now) < st.Cutoff() {
			return 0, newError(KindWithinCutoff, nil,
				"same-day reservations must be made at least %d hours in advance", st.SameDayCutoffHours)
		}
	}

	ahead := calendar.DaysBetween(now, date)
	if ahead < 0 {
		return 0, newError(KindOutsideWindow, nil, "%s is in the past", date.Format(time.DateOnly))
	}
	if ahead > st.AdvanceBookingDays {
		return 0, newError(KindOutsideWindow, nil,
			"reservations open at most %d days in advance", st.AdvanceBookingDays)
	}

	if party.Seats() > st.MaxPartySize {
		return 0, newError(KindPartySize, nil, "party size %s exceeds the limit of %d", party, st.MaxPartySize)
	}

	return positioned, nil
}

// passesCutoff reports whether a slot on date can still be offered at now.
func passesCutoff(rest restaurant.Restaurant, date time.Time, at calendar.ClockTime, now time.Time) bool {
	loc := rest.Location()
	now = now.In(loc)
	if !calendar.SameDate(now, date) {
		return true
	}
	return at.On(date, loc).Sub(now) >= rest.Settings.Cutoff()
}

func name(r restaurant.Restaurant) string {
	if r.Name != "" {
		return r.Name
	}
	return "restaurant " + r.ID
}

func describe(d calendar.Day) string {
	s := ""
	for i, w := range d.Windows {
		if i > 0 {
			s += ", "
		}
		s += fmt.Sprintf("%s-%s", w.OpenTime, w.CloseTime)
	}
	return s
}
