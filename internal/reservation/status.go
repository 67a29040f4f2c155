package reservation

import (
	"errors"
	"fmt"
	"time"

	"github.com/example/tablebook/internal/calendar"
)

type Status string

const (
	StatusPending   Status = "pending"
	StatusConfirmed Status = "confirmed"
	StatusSeated    Status = "seated"
	StatusCompleted Status = "completed"
	StatusCancelled Status = "cancelled"
	StatusNoShow    Status = "no_show"
)

var statuses = []Status{StatusPending, StatusConfirmed, StatusSeated, StatusCompleted, StatusCancelled, StatusNoShow}

func ParseStatus(s string) (Status, error) {
	for _, st := range statuses {
		if string(st) == s {
			return st, nil
		}
	}
	return "", fmt.Errorf("unknown reservation status %q", s)
}

// Occupying statuses hold a table for capacity counting.
func (s Status) Occupying() bool {
	switch s {
	case StatusPending, StatusConfirmed, StatusSeated:
		return true
	}
	return false
}

func (s Status) Terminal() bool {
	switch s {
	case StatusCompleted, StatusCancelled, StatusNoShow:
		return true
	}
	return false
}

// Actor is whoever drives a transition. It is always passed explicitly.
type Actor string

const (
	ActorDiner  Actor = "diner"
	ActorOwner  Actor = "owner"
	ActorSystem Actor = "system"
)

var (
	ErrInvalidTransition = errors.New("invalid status transition")
	ErrWithinCutoff      = errors.New("within same-day cutoff")
)

// TransitionError describes a refused transition.
type TransitionError struct {
	From, To Status
	Actor    Actor
	Reason   string
	err      error
}

func (e *TransitionError) Error() string {
	msg := fmt.Sprintf("%s cannot move reservation from %s to %s", e.Actor, e.From, e.To)
	if e.Reason != "" {
		msg += ": " + e.Reason
	}
	return msg
}

func (e *TransitionError) Unwrap() error { return e.err }

func refuse(r Reservation, to Status, actor Actor, cause error, reason string) error {
	return &TransitionError{From: r.Status, To: to, Actor: actor, Reason: reason, err: cause}
}

// Policy carries the business clock inputs a transition depends on.
type Policy struct {
	Now    time.Time
	Cutoff time.Duration
}

// CanTransition reports whether actor may move r to the target status under
// policy. It never mutates r.
func (r Reservation) CanTransition(to Status, actor Actor, p Policy) error {
	if r.Status.Terminal() {
		return refuse(r, to, actor, ErrInvalidTransition, "reservation is "+string(r.Status))
	}

	switch {
	case r.Status == StatusPending && to == StatusConfirmed:
		if actor != ActorOwner && actor != ActorSystem {
			return refuse(r, to, actor, ErrInvalidTransition, "")
		}
		return nil

	case r.Status == StatusConfirmed && to == StatusSeated:
		if actor != ActorOwner {
			return refuse(r, to, actor, ErrInvalidTransition, "")
		}
		if calendar.DaysBetween(p.Now.In(r.location()), r.Date) > 0 {
			return refuse(r, to, actor, ErrInvalidTransition, "reservation date has not arrived")
		}
		return nil

	case r.Status == StatusSeated && to == StatusCompleted:
		if actor != ActorOwner {
			return refuse(r, to, actor, ErrInvalidTransition, "")
		}
		return nil

	case (r.Status == StatusPending || r.Status == StatusConfirmed) && to == StatusCancelled:
		switch actor {
		case ActorOwner:
			return nil
		case ActorDiner:
			return r.dinerMayChange(to, p)
		}
		return refuse(r, to, actor, ErrInvalidTransition, "")

	case to == StatusNoShow && r.Status.Occupying():
		if actor != ActorOwner {
			return refuse(r, to, actor, ErrInvalidTransition, "")
		}
		return nil
	}

	return refuse(r, to, actor, ErrInvalidTransition, "")
}

// CanModify applies the diner rule for cancel-then-recreate edits.
func (r Reservation) CanModify(actor Actor, p Policy) error {
	if r.Status != StatusPending && r.Status != StatusConfirmed {
		return refuse(r, StatusCancelled, actor, ErrInvalidTransition, "only upcoming reservations can be modified")
	}
	if actor == ActorOwner {
		return nil
	}
	if actor != ActorDiner {
		return refuse(r, StatusCancelled, actor, ErrInvalidTransition, "")
	}
	return r.dinerMayChange(StatusCancelled, p)
}

func (r Reservation) dinerMayChange(to Status, p Policy) error {
	start := r.StartsAt()
	if !start.After(p.Now) {
		return refuse(r, to, ActorDiner, ErrInvalidTransition, "reservation is no longer upcoming")
	}
	if calendar.SameDate(p.Now.In(r.location()), r.Date) && start.Sub(p.Now) < p.Cutoff {
		return refuse(r, to, ActorDiner, ErrWithinCutoff, fmt.Sprintf("changes close %s before the reservation", p.Cutoff))
	}
	return nil
}

// Transition moves r to the target status when permitted. On refusal r is
// left untouched.
func (r *Reservation) Transition(to Status, actor Actor, p Policy) error {
	if err := r.CanTransition(to, actor, p); err != nil {
		return err
	}
	r.Status = to
	r.UpdatedAt = p.Now
	return nil
}
