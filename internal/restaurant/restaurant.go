// Package restaurant is the read model the booking engine works from.
package restaurant

import (
	"fmt"
	"time"

	"github.com/example/tablebook/internal/availability"
	"github.com/example/tablebook/internal/calendar"
	"github.com/example/tablebook/internal/inventory"
)

type Restaurant struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Timezone string `json:"timezone"`
	Email    string `json:"email,omitempty"`
	Phone    string `json:"phone,omitempty"`
	OwnerID  int64  `json:"owner_id,omitempty"`

	// Hours are the profile-level hours; Settings.Hours overrides them.
	Hours    calendar.OperatingHours `json:"hours"`
	Settings availability.Settings   `json:"settings"`
	Tables   []inventory.Table       `json:"tables"`
}

// Location falls back to UTC when the zone is unknown.
func (r Restaurant) Location() *time.Location {
	if r.Timezone == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(r.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

func (r Restaurant) EffectiveHours() calendar.OperatingHours {
	return calendar.Effective(r.Hours, r.Settings.Hours)
}

func (r Restaurant) EligibleTables(partySeats int) int {
	return inventory.EligibleCount(r.Tables, partySeats)
}

func (r Restaurant) Validate() error {
	if r.ID == "" {
		return fmt.Errorf("restaurant id is required")
	}
	if _, err := time.LoadLocation(r.Timezone); err != nil {
		return fmt.Errorf("restaurant %s: timezone: %w", r.ID, err)
	}
	if err := r.Hours.Validate(); err != nil {
		return fmt.Errorf("restaurant %s: hours: %w", r.ID, err)
	}
	if err := r.Settings.Validate(); err != nil {
		return fmt.Errorf("restaurant %s: %w", r.ID, err)
	}
	for _, t := range r.Tables {
		if err := t.Validate(); err != nil {
			return fmt.Errorf("restaurant %s: %w", r.ID, err)
		}
	}
	return nil
}
