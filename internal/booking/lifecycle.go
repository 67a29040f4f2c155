package booking

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/example/tablebook/internal/ledger"
	"github.com/example/tablebook/internal/reservation"
	"github.com/example/tablebook/internal/restaurant"
)

func policy(rest restaurant.Restaurant, now time.Time) reservation.Policy {
	return reservation.Policy{Now: now, Cutoff: rest.Settings.Cutoff()}
}

func transitionError(err error) error {
	var te *reservation.TransitionError
	if !errors.As(err, &te) {
		return err
	}
	if errors.Is(err, reservation.ErrWithinCutoff) {
		return newError(KindWithinCutoff, err, "%s", te.Error())
	}
	return newError(KindInvalidTransition, err, "%s", te.Error())
}

// Transition moves a reservation along its lifecycle on behalf of actor.
// Refused transitions leave the stored reservation unchanged.
func (s *Service) Transition(ctx context.Context, id string, to reservation.Status, actor reservation.Actor) (reservation.Reservation, error) {
	current, err := s.Get(ctx, id)
	if err != nil {
		return current, err
	}
	rest, err := s.restaurant(ctx, current.RestaurantID)
	if err != nil {
		return current, err
	}

	var from reservation.Status
	now := s.now()
	updated, err := s.ledger.Update(ctx, id, func(r *reservation.Reservation) error {
		r.Date = inZone(r.Date, rest.Location())
		from = r.Status
		return r.Transition(to, actor, policy(rest, now))
	})
	if err != nil {
		if errors.Is(err, ledger.ErrNotFound) {
			return current, s.lookupError(id, err)
		}
		return current, transitionError(err)
	}

	s.l.LogInfo("type: transition, reservation: %s, from: %s, to: %s, actor: %s", id, from, to, actor)
	s.invalidate(ctx, rest.ID, updated.DateString())
	s.notifier.StatusChanged(rest, updated, from, actor)
	return updated, nil
}

func (s *Service) Cancel(ctx context.Context, id string, actor reservation.Actor) (reservation.Reservation, error) {
	return s.Transition(ctx, id, reservation.StatusCancelled, actor)
}

// ModifyRequest carries the new slot for an existing reservation. Empty
// fields keep their current value.
type ModifyRequest struct {
	Date            string
	Time            string
	PartySize       reservation.PartySize
	SpecialRequests *string
	Occasion        *reservation.Occasion
}

// Modify replaces a reservation with a new one at the requested slot. The
// original is cancelled and the replacement committed as one ledger unit,
// so a full target leaves the original booking in place.
func (s *Service) Modify(ctx context.Context, id string, actor reservation.Actor, m ModifyRequest) (reservation.Reservation, error) {
	old, err := s.Get(ctx, id)
	if err != nil {
		return reservation.Reservation{}, err
	}
	rest, err := s.restaurant(ctx, old.RestaurantID)
	if err != nil {
		return reservation.Reservation{}, err
	}
	now := s.now()
	if err := old.CanModify(actor, policy(rest, now)); err != nil {
		return reservation.Reservation{}, transitionError(err)
	}

	req := CreateRequest{
		RestaurantID:    rest.ID,
		Date:            old.DateString(),
		Time:            old.Time.String(),
		PartySize:       old.PartySize,
		Guest:           old.Guest,
		SpecialRequests: old.SpecialRequests,
		Occasion:        old.Occasion,
		DinerID:         old.DinerID,
	}
	if m.Date != "" {
		req.Date = m.Date
	}
	if m.Time != "" {
		req.Time = m.Time
	}
	if !m.PartySize.IsZero() {
		req.PartySize = m.PartySize
	}
	if m.SpecialRequests != nil {
		req.SpecialRequests = *m.SpecialRequests
	}
	if m.Occasion != nil {
		req.Occasion = *m.Occasion
	}

	p, err := req.parse(rest.Location(), false)
	if err != nil {
		return reservation.Reservation{}, err
	}
	at, err := Check(rest, p.date, p.at, p.party, now)
	if err != nil {
		return reservation.Reservation{}, err
	}

	next := s.draft(rest, req, p.date, at, p.party, now)
	next.Status = old.Status
	cancelled, err := s.ledger.Replace(ctx, old.ID, s.claim(rest, next), now)
	if err != nil {
		return reservation.Reservation{}, s.commitError(ctx, rest, p.date, at, p.party, err)
	}
	cancelled.Date = inZone(cancelled.Date, rest.Location())

	s.l.LogInfo("type: modify, reservation: %s, replaced_by: %s, date: %s, time: %s, party: %s",
		old.ID, next.ID, next.DateString(), next.Time, next.PartySize)
	s.invalidate(ctx, rest.ID, old.DateString())
	if next.DateString() != old.DateString() {
		s.invalidate(ctx, rest.ID, next.DateString())
	}
	s.notifier.StatusChanged(rest, cancelled, old.Status, actor)
	s.notifier.ReservationCreated(rest, next)
	return next, nil
}

// AutoConfirm confirms pending reservations older than age as the system
// actor. It returns how many were confirmed.
func (s *Service) AutoConfirm(ctx context.Context, age time.Duration, limit int) (int, error) {
	pending, err := s.ledger.PendingBefore(ctx, s.now().Add(-age), limit)
	if err != nil {
		return 0, fmt.Errorf("list pending: %w", err)
	}
	n := 0
	for _, r := range pending {
		if ctx.Err() != nil {
			return n, ctx.Err()
		}
		if _, err := s.Transition(ctx, r.ID, reservation.StatusConfirmed, reservation.ActorSystem); err != nil {
			// it may have been confirmed or cancelled in the meantime
			s.l.LogErrorf("type: auto-confirm, reservation: %s, error: %v", r.ID, err)
			continue
		}
		n++
	}
	return n, nil
}
