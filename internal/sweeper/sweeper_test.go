package sweeper

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingConfirmer struct {
	calls atomic.Int32
	age   atomic.Int64
	err   error
}

func (c *countingConfirmer) AutoConfirm(_ context.Context, age time.Duration, limit int) (int, error) {
	c.calls.Add(1)
	c.age.Store(int64(age))
	return limit, c.err
}

func TestRunTicksUntilCancelled(t *testing.T) {
	c := &countingConfirmer{}
	s := &Sweeper{Booking: c, Interval: 5 * time.Millisecond, After: time.Minute}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	require.Eventually(t, func() bool { return c.calls.Load() >= 3 }, time.Second, time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("sweeper did not stop")
	}
	assert.Equal(t, int64(time.Minute), c.age.Load())
}

type blockingConfirmer struct {
	calls   atomic.Int32
	release chan struct{}
}

func (b *blockingConfirmer) AutoConfirm(ctx context.Context, _ time.Duration, _ int) (int, error) {
	b.calls.Add(1)
	select {
	case <-b.release:
	case <-ctx.Done():
	}
	return 0, nil
}

func TestTicksDoNotOverlap(t *testing.T) {
	b := &blockingConfirmer{release: make(chan struct{})}
	s := &Sweeper{Booking: b, Interval: time.Millisecond}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = s.Run(ctx) }()

	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, int32(1), b.calls.Load())
	close(b.release)
	require.Eventually(t, func() bool { return b.calls.Load() > 1 }, time.Second, time.Millisecond)
}

func TestErrorsAreSwallowed(t *testing.T) {
	c := &countingConfirmer{err: errors.New("db down")}
	s := &Sweeper{Booking: c, Interval: time.Hour}
	s.tick(context.Background())
	assert.Equal(t, int32(1), c.calls.Load())
}
