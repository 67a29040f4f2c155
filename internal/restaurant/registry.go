package restaurant

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sync"

	"github.com/example/tablebook/internal/availability"
)

var ErrNotFound = errors.New("restaurant not found")

// Registry is an in-memory directory of restaurants.
type Registry struct {
	mu sync.RWMutex
	rs map[string]Restaurant
}

func NewRegistry(rs ...Restaurant) *Registry {
	reg := &Registry{rs: map[string]Restaurant{}}
	for _, r := range rs {
		reg.rs[r.ID] = r
	}
	return reg
}

func (g *Registry) Restaurant(ctx context.Context, id string) (Restaurant, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	r, ok := g.rs[id]
	if !ok {
		return Restaurant{}, ErrNotFound
	}
	return r, nil
}

func (g *Registry) Put(r Restaurant) error {
	if err := r.Validate(); err != nil {
		return err
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	g.rs[r.ID] = r
	return nil
}

// Seed is the JSON document used to import restaurants.
type Seed struct {
	Restaurants []Restaurant `json:"restaurants"`
	Owners      []SeedOwner  `json:"owners,omitempty"`
}

type SeedOwner struct {
	ID       int64  `json:"id"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// ReadSeed parses a seed file. Restaurants without an explicit settings
// block get the defaults.
func ReadSeed(path string) (Seed, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return Seed{}, err
	}
	var raw struct {
		Restaurants []json.RawMessage `json:"restaurants"`
		Owners      []SeedOwner       `json:"owners"`
	}
	if err := json.Unmarshal(b, &raw); err != nil {
		return Seed{}, fmt.Errorf("parse %s: %w", path, err)
	}
	seed := Seed{Owners: raw.Owners}
	for i, m := range raw.Restaurants {
		r := Restaurant{Settings: availability.DefaultSettings()}
		if err := json.Unmarshal(m, &r); err != nil {
			return Seed{}, fmt.Errorf("parse %s: restaurant %d: %w", path, i, err)
		}
		if err := r.Validate(); err != nil {
			return Seed{}, err
		}
		seed.Restaurants = append(seed.Restaurants, r)
	}
	return seed, nil
}
