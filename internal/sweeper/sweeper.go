// Package sweeper runs the system actor that auto-confirms pending
// reservations.
package sweeper

import (
	"context"
	"sync"
	"time"

	"github.com/example/tablebook/internal/logger"
)

const defaultBatch = 50

// Confirmer confirms pending reservations older than age.
type Confirmer interface {
	AutoConfirm(ctx context.Context, age time.Duration, limit int) (int, error)
}

// Sweeper polls on Interval and confirms reservations pending for longer
// than After. A tick that is still running when the next one fires is not
// overlapped.
type Sweeper struct {
	Booking  Confirmer
	Interval time.Duration
	After    time.Duration
	Batch    int
	Logger   *logger.Logger

	mu sync.Mutex
	wg sync.WaitGroup
}

func (s *Sweeper) Run(ctx context.Context) error {
	if s.Logger == nil {
		s.Logger = logger.Discard()
	}
	t := time.NewTicker(s.Interval)
	defer t.Stop()

	s.kick(ctx)

	for {
		select {
		case <-ctx.Done():
			s.wg.Wait()
			return ctx.Err()
		case <-t.C:
			s.kick(ctx)
		}
	}
}

func (s *Sweeper) kick(ctx context.Context) {
	if !s.mu.TryLock() {
		return
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer s.mu.Unlock()
		s.tick(ctx)
	}()
}

func (s *Sweeper) tick(ctx context.Context) {
	batch := s.Batch
	if batch < 1 {
		batch = defaultBatch
	}
	n, err := s.Booking.AutoConfirm(ctx, s.After, batch)
	if err != nil && ctx.Err() == nil {
		s.Logger.LogErrorf("type: sweeper, error: %v", err)
	}
	if n > 0 {
		s.Logger.LogInfo("type: sweeper, confirmed: %d", n)
	}
}
