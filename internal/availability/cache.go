package availability

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"time"

	"github.com/example/tablebook/internal/calendar"
	"github.com/redis/go-redis/v9"
)

// ErrSuperseded is returned by Set when the day was invalidated after the
// caller read its version. Nothing is stored.
var ErrSuperseded = errors.New("slot list superseded")

// Cache memoises computed slot lists. It is advisory only: booking always
// re-checks capacity against the ledger.
//
// Callers read Version before loading the ledger and pass it to Set, so a
// list computed from reads older than the last Invalidate is never stored.
type Cache interface {
	Get(ctx context.Context, restaurantID, date string, partySeats int) ([]Slot, bool, error)
	Version(ctx context.Context, restaurantID, date string) (int64, error)
	Set(ctx context.Context, restaurantID, date string, partySeats int, version int64, slots []Slot) error
	Invalidate(ctx context.Context, restaurantID, date string) error
}

// versionTTL must outlive any slot computation.
const versionTTL = 24 * time.Hour

// RedisCache keeps one hash per restaurant day, one field per party size,
// so a single DEL drops every cached list for that day. A counter beside
// the hash is bumped on every invalidation.
type RedisCache struct {
	Client *redis.Client
	TTL    time.Duration
}

func NewRedisCache(client *redis.Client, ttl time.Duration) *RedisCache {
	return &RedisCache{Client: client, TTL: ttl}
}

func (c *RedisCache) DayKey(restaurantID, date string) string {
	return "slots:" + restaurantID + ":" + date
}

func (c *RedisCache) VersionKey(restaurantID, date string) string {
	return c.DayKey(restaurantID, date) + ":v"
}

type cachedSlot struct {
	Minute    int        `json:"m"`
	Available int        `json:"a"`
	Status    SlotStatus `json:"s"`
}

func (c *RedisCache) Get(ctx context.Context, restaurantID, date string, partySeats int) ([]Slot, bool, error) {
	raw, err := c.Client.HGet(ctx, c.DayKey(restaurantID, date), strconv.Itoa(partySeats)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	var cs []cachedSlot
	if err := json.Unmarshal(raw, &cs); err != nil {
		return nil, false, err
	}
	slots := make([]Slot, len(cs))
	for i, s := range cs {
		slots[i] = Slot{Time: calendar.ClockTime(s.Minute), AvailableTables: s.Available, Status: s.Status}
	}
	return slots, true, nil
}

func (c *RedisCache) Version(ctx context.Context, restaurantID, date string) (int64, error) {
	v, err := c.Client.Get(ctx, c.VersionKey(restaurantID, date)).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	return v, err
}

// Set stores slots only while the day's version still equals version. The
// version key is watched, so an Invalidate racing the write aborts it.
func (c *RedisCache) Set(ctx context.Context, restaurantID, date string, partySeats int, version int64, slots []Slot) error {
	cs := make([]cachedSlot, len(slots))
	for i, s := range slots {
		cs[i] = cachedSlot{Minute: int(s.Time), Available: s.AvailableTables, Status: s.Status}
	}
	b, err := json.Marshal(cs)
	if err != nil {
		return err
	}
	key, vkey := c.DayKey(restaurantID, date), c.VersionKey(restaurantID, date)
	err = c.Client.Watch(ctx, func(tx *redis.Tx) error {
		current, err := tx.Get(ctx, vkey).Int64()
		if err != nil && !errors.Is(err, redis.Nil) {
			return err
		}
		if current != version {
			return ErrSuperseded
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.HSet(ctx, key, strconv.Itoa(partySeats), b)
			pipe.Expire(ctx, key, c.TTL)
			return nil
		})
		return err
	}, vkey)
	if errors.Is(err, redis.TxFailedErr) {
		return ErrSuperseded
	}
	return err
}

func (c *RedisCache) Invalidate(ctx context.Context, restaurantID, date string) error {
	vkey := c.VersionKey(restaurantID, date)
	pipe := c.Client.TxPipeline()
	pipe.Incr(ctx, vkey)
	pipe.Expire(ctx, vkey, versionTTL)
	pipe.Del(ctx, c.DayKey(restaurantID, date))
	_, err := pipe.Exec(ctx)
	return err
}

// NopCache never hits.
type NopCache struct{}

func (NopCache) Get(context.Context, string, string, int) ([]Slot, bool, error) {
	return nil, false, nil
}

func (NopCache) Version(context.Context, string, string) (int64, error) { return 0, nil }

func (NopCache) Set(context.Context, string, string, int, int64, []Slot) error { return nil }

func (NopCache) Invalidate(context.Context, string, string) error { return nil }
