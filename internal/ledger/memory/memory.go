// Package memory is an in-process reservation ledger. Each (restaurant,
// date, time) slot has its own mutex, so commits to different slots never
// wait on each other.
package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/example/tablebook/internal/ledger"
	"github.com/example/tablebook/internal/reservation"
)

type Ledger struct {
	slots sync.Map // slot key -> *sync.Mutex

	mu     sync.RWMutex
	byID   map[string]reservation.Reservation
	bySlot map[string][]string
}

func New() *Ledger {
	return &Ledger{
		byID:   map[string]reservation.Reservation{},
		bySlot: map[string][]string{},
	}
}

var _ ledger.Ledger = (*Ledger)(nil)

func keyOf(r reservation.Reservation) string {
	return ledger.SlotKey(r.RestaurantID, r.Date, r.Time)
}

func (l *Ledger) slotLock(key string) *sync.Mutex {
	m, _ := l.slots.LoadOrStore(key, &sync.Mutex{})
	return m.(*sync.Mutex)
}

// lockSlots takes the slot mutexes in key order and returns the release.
func (l *Ledger) lockSlots(keys ...string) func() {
	sort.Strings(keys)
	var held []*sync.Mutex
	for i, k := range keys {
		if i > 0 && keys[i-1] == k {
			continue
		}
		m := l.slotLock(k)
		m.Lock()
		held = append(held, m)
	}
	return func() {
		for i := len(held) - 1; i >= 0; i-- {
			held[i].Unlock()
		}
	}
}

// occupied must be called with the slot lock held.
func (l *Ledger) occupied(key string) int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	n := 0
	for _, id := range l.bySlot[key] {
		if l.byID[id].Status.Occupying() {
			n++
		}
	}
	return n
}

func (l *Ledger) insertLocked(r reservation.Reservation) {
	l.byID[r.ID] = r
	k := keyOf(r)
	l.bySlot[k] = append(l.bySlot[k], r.ID)
}

func (l *Ledger) Commit(ctx context.Context, c ledger.Claim) error {
	key := keyOf(c.Reservation)
	unlock := l.lockSlots(key)
	defer unlock()

	if err := ctx.Err(); err != nil {
		return err
	}
	if err := c.Admit(l.occupied(key)); err != nil {
		return err
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.byID[c.Reservation.ID]; ok {
		return ledger.ErrDuplicateKey
	}
	l.insertLocked(c.Reservation)
	return nil
}

func (l *Ledger) Replace(ctx context.Context, oldID string, c ledger.Claim, now time.Time) (reservation.Reservation, error) {
	old, err := l.Get(ctx, oldID)
	if err != nil {
		return reservation.Reservation{}, err
	}
	oldKey, newKey := keyOf(old), keyOf(c.Reservation)
	unlock := l.lockSlots(oldKey, newKey)
	defer unlock()

	if err := ctx.Err(); err != nil {
		return reservation.Reservation{}, err
	}

	l.mu.RLock()
	current := l.byID[oldID]
	l.mu.RUnlock()
	if current.Status != reservation.StatusPending && current.Status != reservation.StatusConfirmed {
		return reservation.Reservation{}, ledger.ErrStale
	}

	occupied := l.occupied(newKey)
	if oldKey == newKey {
		// the old booking frees its own table
		occupied--
	}
	if err := c.Admit(occupied); err != nil {
		return reservation.Reservation{}, err
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.byID[c.Reservation.ID]; ok {
		return reservation.Reservation{}, ledger.ErrDuplicateKey
	}
	current.Status = reservation.StatusCancelled
	current.UpdatedAt = now
	l.byID[oldID] = current
	l.insertLocked(c.Reservation)
	return current, nil
}

func (l *Ledger) Update(ctx context.Context, id string, fn func(*reservation.Reservation) error) (reservation.Reservation, error) {
	r, err := l.Get(ctx, id)
	if err != nil {
		return reservation.Reservation{}, err
	}
	unlock := l.lockSlots(keyOf(r))
	defer unlock()

	l.mu.RLock()
	r = l.byID[id]
	l.mu.RUnlock()

	next := r
	if err := fn(&next); err != nil {
		return r, err
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	l.byID[id] = next
	return next, nil
}

func (l *Ledger) Get(ctx context.Context, id string) (reservation.Reservation, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	r, ok := l.byID[id]
	if !ok {
		return reservation.Reservation{}, ledger.ErrNotFound
	}
	return r, nil
}

func (l *Ledger) FindByCode(ctx context.Context, code, email string) (reservation.Reservation, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	var (
		found reservation.Reservation
		ok    bool
	)
	for _, r := range l.byID {
		if r.ConfirmationCode() != code || !strings.EqualFold(r.Guest.Email, email) {
			continue
		}
		if !ok || r.CreatedAt.After(found.CreatedAt) {
			found, ok = r, true
		}
	}
	if !ok {
		return reservation.Reservation{}, ledger.ErrNotFound
	}
	return found, nil
}

func (l *Ledger) ListDay(ctx context.Context, restaurantID string, date time.Time) ([]reservation.Reservation, error) {
	day := date.Format(time.DateOnly)
	l.mu.RLock()
	defer l.mu.RUnlock()
	var out []reservation.Reservation
	for _, r := range l.byID {
		if r.RestaurantID == restaurantID && r.DateString() == day {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Time != out[j].Time {
			return out[i].Time < out[j].Time
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

func (l *Ledger) PendingBefore(ctx context.Context, t time.Time, limit int) ([]reservation.Reservation, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	var out []reservation.Reservation
	for _, r := range l.byID {
		if r.Status == reservation.StatusPending && r.CreatedAt.Before(t) {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}
