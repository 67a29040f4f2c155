// Package ledger defines the reservation store the booking engine commits
// against. Implementations must make the capacity check and the insert a
// single all-or-nothing step per (restaurant, date, time).
package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/example/tablebook/internal/calendar"
	"github.com/example/tablebook/internal/reservation"
)

var (
	ErrNoCapacity   = errors.New("no remaining capacity")
	ErrPartyTooBig  = errors.New("party size exceeds limit")
	ErrNotFound     = errors.New("reservation not found")
	ErrStale        = errors.New("reservation changed concurrently")
	ErrDuplicateKey = errors.New("reservation already exists")
)

// Claim is a reservation along with the capacity snapshot it was validated
// against. Stores that own table inventory recompute both limits inside the
// commit.
type Claim struct {
	Reservation    reservation.Reservation
	EligibleTables int
	MaxPartySize   int
}

// Admit applies the commit-time rules given the occupying count at the
// claimed slot.
func (c Claim) Admit(occupied int) error {
	if c.Reservation.PartySize.Seats() > c.MaxPartySize {
		return ErrPartyTooBig
	}
	if c.EligibleTables-occupied <= 0 {
		return ErrNoCapacity
	}
	return nil
}

type Ledger interface {
	// Commit inserts the claimed reservation if capacity remains.
	Commit(ctx context.Context, c Claim) error
	// Replace cancels oldID and commits c as one unit. On any error neither
	// change is applied. The cancelled reservation is returned.
	Replace(ctx context.Context, oldID string, c Claim, now time.Time) (reservation.Reservation, error)
	// Update applies fn to a reservation under the ledger's lock. When fn
	// fails nothing is written.
	Update(ctx context.Context, id string, fn func(*reservation.Reservation) error) (reservation.Reservation, error)

	Get(ctx context.Context, id string) (reservation.Reservation, error)
	// FindByCode returns the newest reservation with the code whose guest
	// email matches, ignoring case. Codes are short and may collide.
	FindByCode(ctx context.Context, code, email string) (reservation.Reservation, error)
	ListDay(ctx context.Context, restaurantID string, date time.Time) ([]reservation.Reservation, error)
	// PendingBefore lists pending reservations created before t, oldest first.
	PendingBefore(ctx context.Context, t time.Time, limit int) ([]reservation.Reservation, error)
}

// SlotKey names the contention point of a reservation.
func SlotKey(restaurantID string, date time.Time, at calendar.ClockTime) string {
	return fmt.Sprintf("%s|%s|%d", restaurantID, date.Format(time.DateOnly), int(at))
}
