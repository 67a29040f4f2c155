// Package booking is the write path for reservations. Everything a request
// is checked against is re-read at write time, and the final capacity check
// happens inside the ledger commit.
package booking

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/example/tablebook/internal/availability"
	"github.com/example/tablebook/internal/calendar"
	"github.com/example/tablebook/internal/ledger"
	"github.com/example/tablebook/internal/logger"
	"github.com/example/tablebook/internal/reservation"
	"github.com/example/tablebook/internal/restaurant"
)

// Directory resolves the restaurant read model.
type Directory interface {
	Restaurant(ctx context.Context, id string) (restaurant.Restaurant, error)
}

// Notifier receives lifecycle events. Implementations must not block the
// caller; delivery is best effort.
type Notifier interface {
	ReservationCreated(rest restaurant.Restaurant, r reservation.Reservation)
	StatusChanged(rest restaurant.Restaurant, r reservation.Reservation, from reservation.Status, actor reservation.Actor)
}

type nopNotifier struct{}

func (nopNotifier) ReservationCreated(restaurant.Restaurant, reservation.Reservation) {}

func (nopNotifier) StatusChanged(restaurant.Restaurant, reservation.Reservation, reservation.Status, reservation.Actor) {
}

type Service struct {
	directory     Directory
	ledger        ledger.Ledger
	cache         availability.Cache
	notifier      Notifier
	l             *logger.Logger
	initialStatus reservation.Status
	now           func() time.Time
}

type Deps struct {
	Directory Directory
	Ledger    ledger.Ledger
	Cache     availability.Cache
	Notifier  Notifier
	Logger    *logger.Logger
	// InitialStatus defaults to confirmed.
	InitialStatus reservation.Status
	Now           func() time.Time
}

func NewService(d Deps) *Service {
	s := &Service{
		directory:     d.Directory,
		ledger:        d.Ledger,
		cache:         d.Cache,
		notifier:      d.Notifier,
		l:             d.Logger,
		initialStatus: d.InitialStatus,
		now:           d.Now,
	}
	if s.cache == nil {
		s.cache = availability.NopCache{}
	}
	if s.notifier == nil {
		s.notifier = nopNotifier{}
	}
	if s.l == nil {
		s.l = logger.Discard()
	}
	if s.initialStatus == "" {
		s.initialStatus = reservation.StatusConfirmed
	}
	if s.now == nil {
		s.now = time.Now
	}
	return s
}

// CreateRequest is a booking attempt as received from a diner or guest.
type CreateRequest struct {
	RestaurantID    string
	Date            string
	Time            string
	PartySize       reservation.PartySize
	Guest           reservation.Guest
	SpecialRequests string
	Occasion        reservation.Occasion
	DinerID         string
}

type parsed struct {
	date  time.Time
	at    calendar.ClockTime
	party reservation.PartySize
}

func (req CreateRequest) parse(loc *time.Location, withGuest bool) (parsed, error) {
	problems := fieldErrors{}
	var p parsed
	var err error

	if p.date, err = calendar.ParseDate(req.Date, loc); err != nil {
		problems.add("date", "date must be YYYY-MM-DD")
	}
	if p.at, err = calendar.ParseClock(req.Time); err != nil {
		problems.add("time", "time must be HH:MM")
	}
	p.party = req.PartySize
	if err := p.party.Validate(); err != nil {
		problems.add("party_size", err.Error())
	}
	if withGuest {
		problems.merge(req.Guest.Validate())
	}
	problems.merge(reservation.ValidateRequests(req.SpecialRequests, req.Occasion))
	return p, problems.err()
}

func (s *Service) restaurant(ctx context.Context, id string) (restaurant.Restaurant, error) {
	rest, err := s.directory.Restaurant(ctx, id)
	if errors.Is(err, restaurant.ErrNotFound) {
		return rest, newError(KindNotFound, err, "restaurant %s not found", id)
	}
	if err != nil {
		return rest, fmt.Errorf("load restaurant %s: %w", id, err)
	}
	if err := rest.Settings.Validate(); err != nil {
		return rest, newError(KindConfiguration, err, "restaurant %s: %v", id, err)
	}
	return rest, nil
}

// Restaurant loads the restaurant the write path would book against.
func (s *Service) Restaurant(ctx context.Context, id string) (restaurant.Restaurant, error) {
	return s.restaurant(ctx, id)
}

// CreateReservation validates and atomically commits a new reservation.
func (s *Service) CreateReservation(ctx context.Context, req CreateRequest) (reservation.Reservation, error) {
	rest, err := s.restaurant(ctx, req.RestaurantID)
	if err != nil {
		return reservation.Reservation{}, err
	}
	p, err := req.parse(rest.Location(), true)
	if err != nil {
		return reservation.Reservation{}, err
	}

	now := s.now()
	at, err := Check(rest, p.date, p.at, p.party, now)
	if err != nil {
		return reservation.Reservation{}, err
	}

	r := s.draft(rest, req, p.date, at, p.party, now)
	if err := s.ledger.Commit(ctx, s.claim(rest, r)); err != nil {
		return reservation.Reservation{}, s.commitError(ctx, rest, p.date, at, p.party, err)
	}

	s.l.LogInfo("type: booking, reservation: %s, restaurant: %s, date: %s, time: %s, party: %s, status: %s",
		r.ID, rest.ID, r.DateString(), r.Time, r.PartySize, r.Status)
	s.invalidate(ctx, rest.ID, r.DateString())
	s.notifier.ReservationCreated(rest, r)
	return r, nil
}

func (s *Service) draft(rest restaurant.Restaurant, req CreateRequest, date time.Time, at calendar.ClockTime, party reservation.PartySize, now time.Time) reservation.Reservation {
	r := reservation.New(rest.ID, date, at, party, s.initialStatus, now)
	r.Guest = req.Guest
	r.Guest.Name = strings.TrimSpace(r.Guest.Name)
	r.Guest.Email = strings.TrimSpace(r.Guest.Email)
	r.SpecialRequests = strings.TrimSpace(req.SpecialRequests)
	r.Occasion = req.Occasion
	r.DinerID = req.DinerID
	return r
}

func (s *Service) claim(rest restaurant.Restaurant, r reservation.Reservation) ledger.Claim {
	return ledger.Claim{
		Reservation:    r,
		EligibleTables: rest.EligibleTables(r.PartySize.Seats()),
		MaxPartySize:   rest.Settings.MaxPartySize,
	}
}

// commitError maps ledger refusals, attaching a same-day suggestion when
// the slot is full.
func (s *Service) commitError(ctx context.Context, rest restaurant.Restaurant, date time.Time, at calendar.ClockTime, party reservation.PartySize, err error) error {
	switch {
	case errors.Is(err, ledger.ErrNoCapacity):
		e := newError(KindNoAvailability, err, "no tables left for a party of %s at %s", party, at)
		if slot, ok := s.suggest(ctx, rest, date, at, party); ok {
			t := slot.Time
			e.SuggestedTime = &t
			e.Message += fmt.Sprintf("; %s is available", t)
		}
		return e
	case errors.Is(err, ledger.ErrPartyTooBig):
		return newError(KindPartySize, err, "party size %s exceeds the limit of %d", party, rest.Settings.MaxPartySize)
	case errors.Is(err, ledger.ErrStale):
		return newError(KindInvalidTransition, err, "the reservation changed while it was being modified")
	}
	return fmt.Errorf("commit reservation: %w", err)
}

func (s *Service) suggest(ctx context.Context, rest restaurant.Restaurant, date time.Time, at calendar.ClockTime, party reservation.PartySize) (availability.Slot, bool) {
	slots, err := s.computeSlots(ctx, rest, date, party)
	if err != nil {
		s.l.LogErrorf("type: suggestion, restaurant: %s, date: %s, error: %v", rest.ID, date.Format(time.DateOnly), err)
		return availability.Slot{}, false
	}
	now := s.now()
	return availability.Suggest(slots, at, func(sl availability.Slot) bool {
		return passesCutoff(rest, date, sl.Time, now)
	})
}

func (s *Service) computeSlots(ctx context.Context, rest restaurant.Restaurant, date time.Time, party reservation.PartySize) ([]availability.Slot, error) {
	rs, err := s.ledger.ListDay(ctx, rest.ID, date)
	if err != nil {
		return nil, fmt.Errorf("list reservations: %w", err)
	}
	slots, err := availability.ComputeSlots(availability.Request{
		Date:           date,
		Hours:          rest.EffectiveHours(),
		SlotDuration:   rest.Settings.SlotDuration(),
		Buffer:         rest.Settings.Buffer(),
		EligibleTables: rest.EligibleTables(party.Seats()),
		Counts:         availability.CountOccupying(rs),
	})
	if errors.Is(err, availability.ErrConfiguration) {
		return nil, newError(KindConfiguration, err, "%v", err)
	}
	return slots, err
}

// Availability lists the day's slots for a party. Results may come from the
// slot cache; they are advisory.
func (s *Service) Availability(ctx context.Context, restaurantID, date string, party reservation.PartySize) ([]availability.Slot, error) {
	rest, err := s.restaurant(ctx, restaurantID)
	if err != nil {
		return nil, err
	}
	problems := fieldErrors{}
	d, err := calendar.ParseDate(date, rest.Location())
	if err != nil {
		problems.add("date", "date must be YYYY-MM-DD")
	}
	if err := party.Validate(); err != nil {
		problems.add("party_size", err.Error())
	}
	if err := problems.err(); err != nil {
		return nil, err
	}

	key := d.Format(time.DateOnly)
	if slots, hit, err := s.cache.Get(ctx, rest.ID, key, party.Seats()); err != nil {
		s.l.LogErrorf("type: cache, op: get, restaurant: %s, date: %s, error: %v", rest.ID, key, err)
	} else if hit {
		return slots, nil
	}

	// read before the ledger so a booking committed meanwhile bumps it
	version, verr := s.cache.Version(ctx, rest.ID, key)
	if verr != nil {
		s.l.LogErrorf("type: cache, op: version, restaurant: %s, date: %s, error: %v", rest.ID, key, verr)
	}
	slots, err := s.computeSlots(ctx, rest, d, party)
	if err != nil {
		return nil, err
	}
	if verr == nil {
		err := s.cache.Set(ctx, rest.ID, key, party.Seats(), version, slots)
		if err != nil && !errors.Is(err, availability.ErrSuperseded) {
			s.l.LogErrorf("type: cache, op: set, restaurant: %s, date: %s, error: %v", rest.ID, key, err)
		}
	}
	return slots, nil
}

func (s *Service) invalidate(ctx context.Context, restaurantID, date string) {
	if err := s.cache.Invalidate(ctx, restaurantID, date); err != nil {
		s.l.LogErrorf("type: cache, op: invalidate, restaurant: %s, date: %s, error: %v", restaurantID, date, err)
	}
}

// Get loads a reservation with its date in the restaurant's zone.
func (s *Service) Get(ctx context.Context, id string) (reservation.Reservation, error) {
	r, err := s.ledger.Get(ctx, id)
	if err != nil {
		return r, s.lookupError(id, err)
	}
	return s.localize(ctx, r)
}

// FindByCode looks a reservation up by confirmation code. The guest email
// must match so codes alone do not disclose bookings.
func (s *Service) FindByCode(ctx context.Context, code, email string) (reservation.Reservation, error) {
	code = strings.ToUpper(strings.TrimSpace(code))
	email = strings.TrimSpace(email)
	if email == "" {
		return reservation.Reservation{}, newError(KindNotFound, ledger.ErrNotFound, "reservation %s not found", code)
	}
	r, err := s.ledger.FindByCode(ctx, code, email)
	if err != nil {
		return reservation.Reservation{}, s.lookupError(code, err)
	}
	return s.localize(ctx, r)
}

// DayReservations is the owner's view of one service date.
func (s *Service) DayReservations(ctx context.Context, restaurantID, date string) ([]reservation.Reservation, error) {
	rest, err := s.restaurant(ctx, restaurantID)
	if err != nil {
		return nil, err
	}
	d, err := calendar.ParseDate(date, rest.Location())
	if err != nil {
		return nil, &InputError{Fields: map[string]string{"date": "date must be YYYY-MM-DD"}}
	}
	rs, err := s.ledger.ListDay(ctx, rest.ID, d)
	if err != nil {
		return nil, fmt.Errorf("list reservations: %w", err)
	}
	for i := range rs {
		rs[i].Date = inZone(rs[i].Date, rest.Location())
	}
	return rs, nil
}

func (s *Service) lookupError(id string, err error) error {
	if errors.Is(err, ledger.ErrNotFound) {
		return newError(KindNotFound, err, "reservation %s not found", id)
	}
	return fmt.Errorf("load reservation %s: %w", id, err)
}

func (s *Service) localize(ctx context.Context, r reservation.Reservation) (reservation.Reservation, error) {
	rest, err := s.restaurant(ctx, r.RestaurantID)
	if err != nil {
		return r, err
	}
	r.Date = inZone(r.Date, rest.Location())
	return r, nil
}

// inZone re-anchors a calendar date at local midnight in loc.
func inZone(date time.Time, loc *time.Location) time.Time {
	y, m, d := date.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, loc)
}
