package cmd

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/example/tablebook/internal/auth"
	"github.com/example/tablebook/internal/availability"
	"github.com/example/tablebook/internal/booking"
	"github.com/example/tablebook/internal/config"
	"github.com/example/tablebook/internal/db"
	"github.com/example/tablebook/internal/ledger"
	"github.com/example/tablebook/internal/ledger/memory"
	"github.com/example/tablebook/internal/ledger/postgres"
	"github.com/example/tablebook/internal/logger"
	"github.com/example/tablebook/internal/migrate"
	"github.com/example/tablebook/internal/reservation"
	"github.com/example/tablebook/internal/restaurant"
	"github.com/redis/go-redis/v9"
)

// app holds the stores a command runs against.
type app struct {
	cfg       config.Config
	l         *logger.Logger
	db        *db.DB
	ledger    ledger.Ledger
	directory booking.Directory
	owners    auth.Owners
	cache     availability.Cache

	closers []func()
}

type storeFlags struct {
	store   string
	seed    string
	migrate bool
}

func openApp(ctx context.Context, cfg config.Config, f storeFlags, l *logger.Logger) (*app, error) {
	a := &app{cfg: cfg, l: l, cache: availability.NopCache{}}
	store := cfg.Store
	if f.store != "" {
		store = f.store
	}

	switch store {
	case "memory":
		reg := restaurant.NewRegistry()
		owners := auth.NewMemoryOwners()
		if f.seed != "" {
			seed, err := readSeed(f.seed, cfg)
			if err != nil {
				return nil, err
			}
			for _, r := range seed.Restaurants {
				if err := reg.Put(r); err != nil {
					return nil, err
				}
			}
			for _, o := range seed.Owners {
				hash, err := auth.HashPassword(o.Password)
				if err != nil {
					return nil, err
				}
				owners.Put(o.ID, o.Email, hash)
			}
			l.LogInfo("type: seed, restaurants: %d, owners: %d", len(seed.Restaurants), len(seed.Owners))
		}
		a.ledger, a.directory, a.owners = memory.New(), reg, owners

	case "postgres":
		d, err := db.Open(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, err
		}
		a.db = d
		a.closers = append(a.closers, d.Close)
		if err := d.Ping(ctx); err != nil {
			a.Close()
			return nil, fmt.Errorf("db ping: %w", err)
		}
		if f.migrate {
			if err := migrate.Up(ctx, d); err != nil {
				a.Close()
				return nil, err
			}
		}
		dir := postgres.NewDirectory(d)
		owners := auth.NewPGOwners(d)
		if f.seed != "" {
			if err := importSeed(ctx, dir, owners, f.seed, cfg, l); err != nil {
				a.Close()
				return nil, err
			}
		}
		a.ledger, a.directory, a.owners = postgres.NewLedger(d), dir, owners

	default:
		return nil, fmt.Errorf("unknown store %q (want postgres or memory)", store)
	}

	if cfg.RedisAddr != "" {
		client := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		if err := client.Ping(ctx).Err(); err != nil {
			// the cache is advisory; run without it
			l.LogErrorf("type: cache, addr: %s, error: %v", cfg.RedisAddr, err)
			_ = client.Close()
		} else {
			a.cache = availability.NewRedisCache(client, cfg.SlotCacheTTL)
			a.closers = append(a.closers, func() { _ = client.Close() })
		}
	}
	return a, nil
}

func (a *app) service(n booking.Notifier) *booking.Service {
	return booking.NewService(booking.Deps{
		Directory:     a.directory,
		Ledger:        a.ledger,
		Cache:         a.cache,
		Notifier:      n,
		Logger:        a.l,
		InitialStatus: reservation.Status(a.cfg.InitialStatus),
	})
}

func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}

// readSeed applies the default timezone to restaurants that do not name one.
func readSeed(path string, cfg config.Config) (restaurant.Seed, error) {
	seed, err := restaurant.ReadSeed(path)
	if err != nil {
		return seed, err
	}
	for i := range seed.Restaurants {
		if seed.Restaurants[i].Timezone == "" {
			seed.Restaurants[i].Timezone = cfg.DefaultTimezone
		}
	}
	return seed, nil
}

// importSeed writes seed restaurants through dir. Seed owner ids are local to
// the file, so owners are created (or found) first and restaurant owner ids
// rewritten to the stored ones.
func importSeed(ctx context.Context, dir *postgres.Directory, owners auth.Owners, path string, cfg config.Config, l *logger.Logger) error {
	seed, err := readSeed(path, cfg)
	if err != nil {
		return err
	}

	ids := map[int64]int64{}
	for _, o := range seed.Owners {
		hash, err := auth.HashPassword(o.Password)
		if err != nil {
			return err
		}
		email := strings.ToLower(strings.TrimSpace(o.Email))
		id, err := owners.Create(ctx, email, hash)
		if errors.Is(err, auth.ErrOwnerExists) {
			id, _, err = owners.Credentials(ctx, email)
		}
		if err != nil {
			return fmt.Errorf("import owner %s: %w", o.Email, err)
		}
		ids[o.ID] = id
	}

	for _, r := range seed.Restaurants {
		if r.OwnerID != 0 {
			r.OwnerID = ids[r.OwnerID]
		}
		if err := dir.Save(ctx, r); err != nil {
			return fmt.Errorf("import %s: %w", r.ID, err)
		}
	}
	l.LogInfo("type: seed, restaurants: %d, owners: %d", len(seed.Restaurants), len(seed.Owners))
	return nil
}

func splitCSV(s string) []string {
	parts := strings.Split(s, ",")
	var out []string
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		out = append(out, p)
	}
	return out
}
