package availability

import (
	"fmt"
	"time"

	"github.com/example/tablebook/internal/calendar"
)

const (
	DefaultSlotDurationMinutes = 90
	DefaultAdvanceBookingDays  = 30
	DefaultSameDayCutoffHours  = 2
	DefaultMaxPartySize        = 20
)

// Settings are the per-restaurant parameters shared by the slot allocator
// and booking validation.
type Settings struct {
	SlotDurationMinutes       int  `json:"slot_duration_minutes"`
	AdvanceBookingDays        int  `json:"advance_booking_days"`
	SameDayCutoffHours        int  `json:"same_day_cutoff_hours"`
	MaxPartySize              int  `json:"max_party_size"`
	BufferMinutes             int  `json:"buffer_minutes"`
	OnlineReservationsEnabled bool `json:"online_reservations_enabled"`

	// Hours overrides the restaurant profile hours when non-empty.
	Hours calendar.OperatingHours `json:"hours,omitempty"`
}

func DefaultSettings() Settings {
	return Settings{
		SlotDurationMinutes:       DefaultSlotDurationMinutes,
		AdvanceBookingDays:        DefaultAdvanceBookingDays,
		SameDayCutoffHours:        DefaultSameDayCutoffHours,
		MaxPartySize:              DefaultMaxPartySize,
		OnlineReservationsEnabled: true,
	}
}

func (s Settings) SlotDuration() time.Duration {
	return time.Duration(s.SlotDurationMinutes) * time.Minute
}

func (s Settings) Buffer() time.Duration {
	return time.Duration(s.BufferMinutes) * time.Minute
}

func (s Settings) Cutoff() time.Duration {
	return time.Duration(s.SameDayCutoffHours) * time.Hour
}

// Validate rejects settings the allocator cannot run with.
func (s Settings) Validate() error {
	if s.SlotDurationMinutes <= 0 {
		return fmt.Errorf("%w: slot duration must be positive, got %d minutes", ErrConfiguration, s.SlotDurationMinutes)
	}
	if s.BufferMinutes < 0 {
		return fmt.Errorf("%w: buffer must not be negative, got %d minutes", ErrConfiguration, s.BufferMinutes)
	}
	if s.AdvanceBookingDays < 0 || s.SameDayCutoffHours < 0 || s.MaxPartySize < 1 {
		return fmt.Errorf("%w: advance window, cutoff and max party size must be non-negative", ErrConfiguration)
	}
	return s.Hours.Validate()
}
