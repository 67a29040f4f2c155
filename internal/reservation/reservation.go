// Package reservation holds the reservation entity and its lifecycle.
package reservation

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/example/tablebook/internal/calendar"
	"github.com/google/uuid"
)

const (
	MinPartySize = 1
	// MaxPartySize is both the largest exact size and the seat count used
	// for the open-ended "20+" party.
	MaxPartySize = 20

	MaxSpecialRequests = 500
)

// PartySize is an exact head count or the open-ended "20+" sentinel.
type PartySize struct {
	n         int
	openEnded bool
}

func Party(n int) PartySize { return PartySize{n: n} }

// PartyOpenEnded is the "20+" party, seated as MaxPartySize.
func PartyOpenEnded() PartySize { return PartySize{n: MaxPartySize, openEnded: true} }

func ParsePartySize(s string) (PartySize, error) {
	s = strings.TrimSpace(s)
	if s == strconv.Itoa(MaxPartySize)+"+" {
		return PartyOpenEnded(), nil
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return PartySize{}, fmt.Errorf("party size %q is not a number", s)
	}
	p := Party(n)
	return p, p.Validate()
}

// Seats is the value used in capacity arithmetic.
func (p PartySize) Seats() int { return p.n }

func (p PartySize) OpenEnded() bool { return p.openEnded }

func (p PartySize) IsZero() bool { return p.n == 0 }

func (p PartySize) Validate() error {
	if p.n < MinPartySize || p.n > MaxPartySize {
		return fmt.Errorf("party size must be between %d and %d", MinPartySize, MaxPartySize)
	}
	return nil
}

func (p PartySize) String() string {
	if p.openEnded {
		return strconv.Itoa(MaxPartySize) + "+"
	}
	return strconv.Itoa(p.n)
}

// MarshalJSON writes exact sizes as numbers and the sentinel as "20+".
func (p PartySize) MarshalJSON() ([]byte, error) {
	if p.openEnded {
		return json.Marshal(p.String())
	}
	return json.Marshal(p.n)
}

func (p *PartySize) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		var n int
		if err := json.Unmarshal(b, &n); err != nil {
			return fmt.Errorf("party size must be a number or %q", strconv.Itoa(MaxPartySize)+"+")
		}
		s = strconv.Itoa(n)
	}
	v, err := ParsePartySize(s)
	if err != nil {
		return err
	}
	*p = v
	return nil
}

type Occasion string

const (
	OccasionNone        Occasion = ""
	OccasionBirthday    Occasion = "birthday"
	OccasionAnniversary Occasion = "anniversary"
	OccasionDateNight   Occasion = "date_night"
	OccasionBusiness    Occasion = "business"
	OccasionCelebration Occasion = "celebration"
	OccasionOther       Occasion = "other"
)

func (o Occasion) Valid() bool {
	switch o {
	case OccasionNone, OccasionBirthday, OccasionAnniversary, OccasionDateNight,
		OccasionBusiness, OccasionCelebration, OccasionOther:
		return true
	}
	return false
}

// Guest is the contact block captured at checkout.
type Guest struct {
	Name          string `json:"name"`
	Email         string `json:"email"`
	Phone         string `json:"phone,omitempty"`
	SMSOptIn      bool   `json:"sms_opt_in,omitempty"`
	CreateAccount bool   `json:"create_account,omitempty"`
}

// Validate returns field -> message for every problem found.
func (g Guest) Validate() map[string]string {
	problems := map[string]string{}
	if strings.TrimSpace(g.Name) == "" {
		problems["guest.name"] = "name is required"
	}
	email := strings.TrimSpace(g.Email)
	if email == "" {
		problems["guest.email"] = "email is required"
	} else if at := strings.IndexByte(email, '@'); at < 1 || at == len(email)-1 {
		problems["guest.email"] = "email is not valid"
	}
	if g.SMSOptIn && strings.TrimSpace(g.Phone) == "" {
		problems["guest.phone"] = "phone is required for SMS updates"
	}
	return problems
}

type Reservation struct {
	ID           string `json:"id"`
	RestaurantID string `json:"restaurant_id"`
	// Date is local midnight of the service date in the restaurant's zone.
	Date time.Time `json:"-"`
	// Time is positioned inside the service window, so a past-midnight
	// booking carries a value at or beyond 24:00.
	Time            calendar.ClockTime `json:"time"`
	PartySize       PartySize          `json:"party_size"`
	Status          Status             `json:"status"`
	Guest           Guest              `json:"guest"`
	Occasion        Occasion           `json:"occasion,omitempty"`
	SpecialRequests string             `json:"special_requests,omitempty"`
	DinerID         string             `json:"diner_id,omitempty"`
	CreatedAt       time.Time          `json:"created_at"`
	UpdatedAt       time.Time          `json:"updated_at"`
}

// New builds a reservation with a fresh id.
func New(restaurantID string, date time.Time, at calendar.ClockTime, party PartySize, status Status, now time.Time) Reservation {
	return Reservation{
		ID:           uuid.NewString(),
		RestaurantID: restaurantID,
		Date:         date,
		Time:         at,
		PartySize:    party,
		Status:       status,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

func (r Reservation) location() *time.Location {
	if r.Date.Location() == nil {
		return time.UTC
	}
	return r.Date.Location()
}

// StartsAt is the instant the reservation begins.
func (r Reservation) StartsAt() time.Time {
	return r.Time.On(r.Date, r.location())
}

// DateString is the service date as YYYY-MM-DD.
func (r Reservation) DateString() string {
	return r.Date.Format(time.DateOnly)
}

// ConfirmationCode is derived from the id and so stable across reads.
func (r Reservation) ConfirmationCode() string {
	return ConfirmationCode(r.ID)
}

func ConfirmationCode(id string) string {
	hex := strings.ReplaceAll(id, "-", "")
	if len(hex) > 8 {
		hex = hex[:8]
	}
	return strings.ToUpper(hex)
}

// ValidateRequests checks the free-text and occasion fields.
func ValidateRequests(special string, occasion Occasion) map[string]string {
	problems := map[string]string{}
	if utf8.RuneCountInString(special) > MaxSpecialRequests {
		problems["special_requests"] = fmt.Sprintf("special requests must be at most %d characters", MaxSpecialRequests)
	}
	if !occasion.Valid() {
		problems["occasion"] = fmt.Sprintf("unknown occasion %q", occasion)
	}
	return problems
}
