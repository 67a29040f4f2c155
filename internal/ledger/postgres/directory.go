package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/example/tablebook/internal/availability"
	"github.com/example/tablebook/internal/calendar"
	"github.com/example/tablebook/internal/db"
	"github.com/example/tablebook/internal/inventory"
	"github.com/example/tablebook/internal/restaurant"
)

const (
	levelProfile  = "profile"
	levelOverride = "override"
)

// Directory loads restaurants with their hours, settings and tables.
type Directory struct {
	db *db.DB
}

func NewDirectory(d *db.DB) *Directory { return &Directory{db: d} }

func (d *Directory) Restaurant(ctx context.Context, id string) (restaurant.Restaurant, error) {
	r := restaurant.Restaurant{Settings: availability.DefaultSettings()}
	var owner *int64
	err := d.db.QueryRow(ctx, `
SELECT r.id, r.name, r.timezone, r.email, r.phone, r.owner_id,
       COALESCE(s.slot_duration_minutes, $2), COALESCE(s.advance_booking_days, $3),
       COALESCE(s.same_day_cutoff_hours, $4), COALESCE(s.max_party_size, $5),
       COALESCE(s.buffer_minutes, 0), COALESCE(s.online_reservations_enabled, true)
FROM restaurants r
LEFT JOIN availability_settings s ON s.restaurant_id = r.id
WHERE r.id = $1`,
		id, r.Settings.SlotDurationMinutes, r.Settings.AdvanceBookingDays,
		r.Settings.SameDayCutoffHours, r.Settings.MaxPartySize,
	).Scan(&r.ID, &r.Name, &r.Timezone, &r.Email, &r.Phone, &owner,
		&r.Settings.SlotDurationMinutes, &r.Settings.AdvanceBookingDays,
		&r.Settings.SameDayCutoffHours, &r.Settings.MaxPartySize,
		&r.Settings.BufferMinutes, &r.Settings.OnlineReservationsEnabled)
	if db.IsNotFound(err) {
		return restaurant.Restaurant{}, restaurant.ErrNotFound
	}
	if err != nil {
		return restaurant.Restaurant{}, err
	}
	if owner != nil {
		r.OwnerID = *owner
	}

	if err := d.loadHours(ctx, &r); err != nil {
		return restaurant.Restaurant{}, err
	}
	if err := d.loadTables(ctx, &r); err != nil {
		return restaurant.Restaurant{}, err
	}
	return r, nil
}

func (d *Directory) loadHours(ctx context.Context, r *restaurant.Restaurant) error {
	rows, err := d.db.Query(ctx, `
SELECT level, weekday, open_minute, close_minute FROM operating_hours
WHERE restaurant_id = $1 ORDER BY weekday, open_minute`, r.ID)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var (
			level               string
			weekday, open, shut int
		)
		if err := rows.Scan(&level, &weekday, &open, &shut); err != nil {
			return err
		}
		rule := calendar.Rule{Weekday: time.Weekday(weekday), Open: calendar.ClockTime(open), Close: calendar.ClockTime(shut)}
		switch level {
		case levelProfile:
			r.Hours = append(r.Hours, rule)
		case levelOverride:
			r.Settings.Hours = append(r.Settings.Hours, rule)
		default:
			return fmt.Errorf("restaurant %s: unknown hours level %q", r.ID, level)
		}
	}
	return rows.Err()
}

func (d *Directory) loadTables(ctx context.Context, r *restaurant.Restaurant) error {
	rows, err := d.db.Query(ctx, `
SELECT id, label, capacity, active FROM restaurant_tables
WHERE restaurant_id = $1 ORDER BY id`, r.ID)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		t := inventory.Table{RestaurantID: r.ID}
		if err := rows.Scan(&t.ID, &t.Label, &t.Capacity, &t.Active); err != nil {
			return err
		}
		r.Tables = append(r.Tables, t)
	}
	return rows.Err()
}

// Save replaces the restaurant's profile, hours, settings and tables.
func (d *Directory) Save(ctx context.Context, r restaurant.Restaurant) error {
	if err := r.Validate(); err != nil {
		return err
	}
	return d.db.Serializable(ctx, func(ctx context.Context, tx db.Tx) error {
		_, err := tx.Exec(ctx, `
INSERT INTO restaurants(id, name, timezone, email, phone, owner_id)
VALUES ($1, $2, $3, $4, $5, NULLIF($6, 0))
ON CONFLICT (id) DO UPDATE SET name=EXCLUDED.name, timezone=EXCLUDED.timezone,
  email=EXCLUDED.email, phone=EXCLUDED.phone, owner_id=EXCLUDED.owner_id`,
			r.ID, r.Name, r.Timezone, r.Email, r.Phone, r.OwnerID)
		if err != nil {
			return err
		}

		s := r.Settings
		_, err = tx.Exec(ctx, `
INSERT INTO availability_settings(restaurant_id, slot_duration_minutes, advance_booking_days,
  same_day_cutoff_hours, max_party_size, buffer_minutes, online_reservations_enabled)
VALUES ($1, $2, $3, $4, $5, $6, $7)
ON CONFLICT (restaurant_id) DO UPDATE SET
  slot_duration_minutes=EXCLUDED.slot_duration_minutes, advance_booking_days=EXCLUDED.advance_booking_days,
  same_day_cutoff_hours=EXCLUDED.same_day_cutoff_hours, max_party_size=EXCLUDED.max_party_size,
  buffer_minutes=EXCLUDED.buffer_minutes, online_reservations_enabled=EXCLUDED.online_reservations_enabled`,
			r.ID, s.SlotDurationMinutes, s.AdvanceBookingDays, s.SameDayCutoffHours,
			s.MaxPartySize, s.BufferMinutes, s.OnlineReservationsEnabled)
		if err != nil {
			return err
		}

		if _, err := tx.Exec(ctx, `DELETE FROM operating_hours WHERE restaurant_id=$1`, r.ID); err != nil {
			return err
		}
		for _, h := range []struct {
			level string
			rules calendar.OperatingHours
		}{{levelProfile, r.Hours}, {levelOverride, s.Hours}} {
			for _, rule := range h.rules {
				_, err := tx.Exec(ctx, `
INSERT INTO operating_hours(restaurant_id, level, weekday, open_minute, close_minute)
VALUES ($1, $2, $3, $4, $5)`, r.ID, h.level, int(rule.Weekday), int(rule.Open), int(rule.Close))
				if err != nil {
					return err
				}
			}
		}

		for _, t := range r.Tables {
			_, err := tx.Exec(ctx, `
INSERT INTO restaurant_tables(id, restaurant_id, label, capacity, active)
VALUES ($1, $2, $3, $4, $5)
ON CONFLICT (id) DO UPDATE SET label=EXCLUDED.label, capacity=EXCLUDED.capacity, active=EXCLUDED.active`,
				t.ID, r.ID, t.Label, t.Capacity, t.Active)
			if err != nil {
				return err
			}
		}
		return nil
	})
}
