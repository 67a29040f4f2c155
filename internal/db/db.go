package db

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

type DB struct {
	pool *pgxpool.Pool

	// MaxTxAttempts bounds retries of serialization failures.
	MaxTxAttempts int
}

func Open(ctx context.Context, databaseURL string) (*DB, error) {
	cfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, err
	}
	cfg.MaxConnLifetime = 5 * time.Minute
	cfg.MaxConnIdleTime = 1 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, err
	}

	return &DB{pool: pool, MaxTxAttempts: 5}, nil
}

func (d *DB) Close() {
	d.pool.Close()
}

func (d *DB) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	return d.pool.Ping(ctx)
}

func (d *DB) Exec(ctx context.Context, sql string, args ...any) error {
	_, err := d.pool.Exec(ctx, sql, args...)
	return err
}

func (d *DB) QueryRow(ctx context.Context, sql string, args ...any) Row {
	return d.pool.QueryRow(ctx, sql, args...)
}

func (d *DB) Query(ctx context.Context, sql string, args ...any) (Rows, error) {
	return d.pool.Query(ctx, sql, args...)
}

type Row interface {
	Scan(dest ...any) error
}

type Rows interface {
	Close()
	Err() error
	Next() bool
	Scan(dest ...any) error
}

// Tx is the subset of pgx.Tx used inside Serializable.
type Tx interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// Serializable runs fn in a SERIALIZABLE transaction, retrying when
// Postgres aborts it with a serialization failure or deadlock. fn may run
// more than once and must not have side effects outside tx.
func (d *DB) Serializable(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error {
	return d.SerializableLocked(ctx, nil, fn)
}

// SerializableLocked is Serializable run while holding a session advisory
// lock per key. The locks are taken before BEGIN, so the transaction's
// snapshot already includes every commit made by earlier holders and
// contending writers queue instead of aborting each other.
func (d *DB) SerializableLocked(ctx context.Context, keys []string, fn func(ctx context.Context, tx Tx) error) error {
	conn, err := d.pool.Acquire(ctx)
	if err != nil {
		return err
	}
	keys = LockOrder(keys)
	if err := lockKeys(ctx, conn, keys); err != nil {
		// a cancelled lock wait may still have been granted; closing the
		// session is the only way to be sure it is released
		_ = conn.Hijack().Close(context.Background())
		return err
	}
	defer func() {
		if err := unlockKeys(conn, keys); err != nil {
			_ = conn.Hijack().Close(context.Background())
			return
		}
		conn.Release()
	}()

	attempts := d.MaxTxAttempts
	if attempts < 1 {
		attempts = 1
	}
	for i := 0; i < attempts; i++ {
		err = pgx.BeginTxFunc(ctx, conn, pgx.TxOptions{IsoLevel: pgx.Serializable}, func(tx pgx.Tx) error {
			return fn(ctx, tx)
		})
		if !IsRetryable(err) {
			return err
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff(i)):
		}
	}
	return fmt.Errorf("db: gave up after %d attempts: %w", attempts, err)
}

// LockOrder sorts and de-duplicates lock keys so concurrent callers always
// acquire them in the same order.
func LockOrder(keys []string) []string {
	out := append([]string(nil), keys...)
	sort.Strings(out)
	n := 0
	for i, k := range out {
		if i > 0 && out[i-1] == k {
			continue
		}
		out[n] = k
		n++
	}
	return out[:n]
}

func lockKeys(ctx context.Context, conn *pgxpool.Conn, keys []string) error {
	for _, k := range keys {
		if _, err := conn.Exec(ctx, `SELECT pg_advisory_lock(hashtextextended($1, 0))`, k); err != nil {
			return fmt.Errorf("db: lock %s: %w", k, err)
		}
	}
	return nil
}

func unlockKeys(conn *pgxpool.Conn, keys []string) error {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	for i := len(keys) - 1; i >= 0; i-- {
		if _, err := conn.Exec(ctx, `SELECT pg_advisory_unlock(hashtextextended($1, 0))`, keys[i]); err != nil {
			return err
		}
	}
	return nil
}

func backoff(attempt int) time.Duration {
	return time.Duration(attempt+1) * 10 * time.Millisecond
}

// IsRetryable reports SQLSTATE 40001 (serialization_failure) and 40P01
// (deadlock_detected).
func IsRetryable(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "40001" || pgErr.Code == "40P01"
	}
	return false
}

// IsUniqueViolation reports SQLSTATE 23505.
func IsUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

var ErrNotFound = errors.New("not found")

func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound) || errors.Is(err, pgx.ErrNoRows)
}

func WrapNotFound(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	return fmt.Errorf("db: %w", err)
}
