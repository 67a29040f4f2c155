// Package postgres stores reservations and restaurant data in Postgres.
//
// Commits run in SERIALIZABLE transactions opened while holding a session
// advisory lock per (restaurant, date, time) slot, so contending bookings
// queue on the lock and each one counts every earlier commit.
package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/example/tablebook/internal/calendar"
	"github.com/example/tablebook/internal/db"
	"github.com/example/tablebook/internal/ledger"
	"github.com/example/tablebook/internal/reservation"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

type Ledger struct {
	db *db.DB
}

func NewLedger(d *db.DB) *Ledger { return &Ledger{db: d} }

var _ ledger.Ledger = (*Ledger)(nil)

const reservationColumns = `id::text, restaurant_id, reservation_date, start_minute, party_size, party_open_ended, status,
	guest_name, guest_email, guest_phone, sms_opt_in, create_account, occasion, special_requests, diner_id,
	created_at, updated_at`

func scanReservation(row db.Row) (reservation.Reservation, error) {
	var (
		r         reservation.Reservation
		minute    int
		party     int
		openEnded bool
		status    string
		occasion  string
	)
	err := row.Scan(&r.ID, &r.RestaurantID, &r.Date, &minute, &party, &openEnded, &status,
		&r.Guest.Name, &r.Guest.Email, &r.Guest.Phone, &r.Guest.SMSOptIn, &r.Guest.CreateAccount,
		&occasion, &r.SpecialRequests, &r.DinerID, &r.CreatedAt, &r.UpdatedAt)
	if err != nil {
		return r, err
	}
	r.Time = calendar.ClockTime(minute)
	r.PartySize = reservation.Party(party)
	if openEnded {
		r.PartySize = reservation.PartyOpenEnded()
	}
	r.Occasion = reservation.Occasion(occasion)
	if r.Status, err = reservation.ParseStatus(status); err != nil {
		return r, err
	}
	return r, nil
}

func notFound(err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return ledger.ErrNotFound
	}
	return err
}

func slotKey(r reservation.Reservation) string {
	return ledger.SlotKey(r.RestaurantID, r.Date, r.Time)
}

// admit recomputes eligible tables and the party limit from the tables this
// transaction sees, then counts occupying reservations at the slot.
func admit(ctx context.Context, tx db.Tx, c ledger.Claim) error {
	r := c.Reservation
	var eligible, maxParty int
	err := tx.QueryRow(ctx, `
SELECT
  (SELECT count(*) FROM restaurant_tables WHERE restaurant_id=$1 AND active AND capacity >= $2),
  COALESCE((SELECT max_party_size FROM availability_settings WHERE restaurant_id=$1), $3)`,
		r.RestaurantID, r.PartySize.Seats(), c.MaxPartySize,
	).Scan(&eligible, &maxParty)
	if err != nil {
		return err
	}

	var occupied int
	err = tx.QueryRow(ctx, `
SELECT count(*) FROM reservations
WHERE restaurant_id=$1 AND reservation_date=$2::date AND start_minute=$3
  AND status IN ('pending','confirmed','seated')`,
		r.RestaurantID, r.DateString(), int(r.Time),
	).Scan(&occupied)
	if err != nil {
		return err
	}

	return ledger.Claim{Reservation: r, EligibleTables: eligible, MaxPartySize: maxParty}.Admit(occupied)
}

func insert(ctx context.Context, tx db.Tx, r reservation.Reservation) error {
	_, err := tx.Exec(ctx, `
INSERT INTO reservations(id, confirmation_code, restaurant_id, reservation_date, start_minute, starts_at,
  party_size, party_open_ended, status, guest_name, guest_email, guest_phone, sms_opt_in, create_account,
  occasion, special_requests, diner_id, created_at, updated_at)
VALUES ($1,$2,$3,$4::date,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19)`,
		r.ID, r.ConfirmationCode(), r.RestaurantID, r.DateString(), int(r.Time), r.StartsAt(),
		r.PartySize.Seats(), r.PartySize.OpenEnded(), string(r.Status), r.Guest.Name, r.Guest.Email, r.Guest.Phone,
		r.Guest.SMSOptIn, r.Guest.CreateAccount, string(r.Occasion), r.SpecialRequests, r.DinerID, r.CreatedAt, r.UpdatedAt,
	)
	if db.IsUniqueViolation(err) {
		return ledger.ErrDuplicateKey
	}
	return err
}

func (l *Ledger) Commit(ctx context.Context, c ledger.Claim) error {
	return l.db.SerializableLocked(ctx, []string{slotKey(c.Reservation)}, func(ctx context.Context, tx db.Tx) error {
		if err := admit(ctx, tx, c); err != nil {
			return err
		}
		return insert(ctx, tx, c.Reservation)
	})
}

func selectForUpdate(ctx context.Context, tx db.Tx, id string) (reservation.Reservation, error) {
	if _, err := uuid.Parse(id); err != nil {
		return reservation.Reservation{}, ledger.ErrNotFound
	}
	r, err := scanReservation(tx.QueryRow(ctx, `SELECT `+reservationColumns+` FROM reservations WHERE id=$1 FOR UPDATE`, id))
	return r, notFound(err)
}

func setStatus(ctx context.Context, tx db.Tx, r reservation.Reservation) error {
	_, err := tx.Exec(ctx, `UPDATE reservations SET status=$2, updated_at=$3 WHERE id=$1`, r.ID, string(r.Status), r.UpdatedAt)
	return err
}

func (l *Ledger) Replace(ctx context.Context, oldID string, c ledger.Claim, now time.Time) (reservation.Reservation, error) {
	// a reservation's slot never changes, so its key can be read up front
	current, err := l.Get(ctx, oldID)
	if err != nil {
		return reservation.Reservation{}, err
	}
	var cancelled reservation.Reservation
	keys := []string{slotKey(current), slotKey(c.Reservation)}
	err = l.db.SerializableLocked(ctx, keys, func(ctx context.Context, tx db.Tx) error {
		old, err := selectForUpdate(ctx, tx, oldID)
		if err != nil {
			return err
		}
		if old.Status != reservation.StatusPending && old.Status != reservation.StatusConfirmed {
			return ledger.ErrStale
		}

		old.Status = reservation.StatusCancelled
		old.UpdatedAt = now
		if err := setStatus(ctx, tx, old); err != nil {
			return err
		}
		if err := admit(ctx, tx, c); err != nil {
			return err
		}
		if err := insert(ctx, tx, c.Reservation); err != nil {
			return err
		}
		cancelled = old
		return nil
	})
	return cancelled, err
}

func (l *Ledger) Update(ctx context.Context, id string, fn func(*reservation.Reservation) error) (reservation.Reservation, error) {
	var out reservation.Reservation
	err := l.db.Serializable(ctx, func(ctx context.Context, tx db.Tx) error {
		r, err := selectForUpdate(ctx, tx, id)
		if err != nil {
			return err
		}
		out = r
		next := r
		if err := fn(&next); err != nil {
			return err
		}
		if err := setStatus(ctx, tx, next); err != nil {
			return err
		}
		out = next
		return nil
	})
	return out, err
}

func (l *Ledger) Get(ctx context.Context, id string) (reservation.Reservation, error) {
	if _, err := uuid.Parse(id); err != nil {
		return reservation.Reservation{}, ledger.ErrNotFound
	}
	r, err := scanReservation(l.db.QueryRow(ctx, `SELECT `+reservationColumns+` FROM reservations WHERE id=$1`, id))
	return r, notFound(err)
}

func (l *Ledger) FindByCode(ctx context.Context, code, email string) (reservation.Reservation, error) {
	r, err := scanReservation(l.db.QueryRow(ctx, `SELECT `+reservationColumns+` FROM reservations
WHERE confirmation_code=$1 AND lower(guest_email)=lower($2)
ORDER BY created_at DESC LIMIT 1`, code, email))
	return r, notFound(err)
}

func (l *Ledger) list(ctx context.Context, sql string, args ...any) ([]reservation.Reservation, error) {
	rows, err := l.db.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []reservation.Reservation
	for rows.Next() {
		r, err := scanReservation(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (l *Ledger) ListDay(ctx context.Context, restaurantID string, date time.Time) ([]reservation.Reservation, error) {
	return l.list(ctx, `SELECT `+reservationColumns+` FROM reservations
WHERE restaurant_id=$1 AND reservation_date=$2::date
ORDER BY start_minute, created_at`, restaurantID, date.Format(time.DateOnly))
}

func (l *Ledger) PendingBefore(ctx context.Context, t time.Time, limit int) ([]reservation.Reservation, error) {
	if limit < 1 {
		limit = 100
	}
	return l.list(ctx, `SELECT `+reservationColumns+` FROM reservations
WHERE status='pending' AND created_at < $1
ORDER BY created_at
LIMIT $2`, t, limit)
}
