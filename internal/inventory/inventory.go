// Package inventory models a restaurant's tables for capacity counting.
package inventory

import "fmt"

// Table is fungible for allocation; only its capacity and active flag matter.
type Table struct {
	ID           string `json:"id"`
	RestaurantID string `json:"restaurant_id"`
	Label        string `json:"label,omitempty"`
	Capacity     int    `json:"capacity"`
	Active       bool   `json:"active"`
}

func (t Table) Validate() error {
	if t.Capacity <= 0 {
		return fmt.Errorf("table %q: capacity must be positive, got %d", t.ID, t.Capacity)
	}
	return nil
}

// Eligible reports whether the table can seat a party of the given size.
func (t Table) Eligible(partySize int) bool {
	return t.Active && t.Capacity >= partySize
}

// EligibleCount is the number of active tables seating at least partySize.
func EligibleCount(tables []Table, partySize int) int {
	n := 0
	for _, t := range tables {
		if t.Eligible(partySize) {
			n++
		}
	}
	return n
}
