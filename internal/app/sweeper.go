package app

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/semaphore"

	"travel_desk/internal/domain"
)

// SnapshotStore is the KV store plus key iteration.
type SnapshotStore interface {
	domain.KVStore
	Scan(ctx context.Context, pattern string, fn func(key string) error) error
}

// Sweeper deletes draft snapshots nobody came back for.
type Sweeper struct {
	store   SnapshotStore
	maxAge  time.Duration
	workers int64
	now     func() time.Time
}

func NewSweeper(s SnapshotStore, maxAge time.Duration, workers int) *Sweeper {
	if workers <= 0 {
		workers = 8
	}
	return &Sweeper{store: s, maxAge: maxAge, workers: int64(workers), now: time.Now}
}

// Sweep removes snapshots older than maxAge and ones that no longer parse.
// It returns how many keys were deleted.
func (w *Sweeper) Sweep(ctx context.Context) (int, error) {
	var keys []string
	if err := w.store.Scan(ctx, SnapshotPrefix+"*", func(k string) error {
		keys = append(keys, k)
		return nil
	}); err != nil {
		return 0, err
	}

	sem := semaphore.NewWeighted(w.workers)
	var wg sync.WaitGroup
	var removed atomic.Int64
	cutoff := w.now().Add(-w.maxAge)

	for _, k := range keys {
		// acquire before launching the goroutine; release inside it
		if err := sem.Acquire(ctx, 1); err != nil {
			break
		}
		wg.Add(1)
		go func(key string) {
			defer wg.Done()
			defer sem.Release(1)
			if w.expired(ctx, key, cutoff) {
				if err := w.store.Delete(ctx, key); err != nil {
					log.Warn().Err(err).Str("key", key).Msg("snapshot delete failed")
					return
				}
				removed.Add(1)
			}
		}(k)
	}
	wg.Wait()
	return int(removed.Load()), ctx.Err()
}

func (w *Sweeper) expired(ctx context.Context, key string, cutoff time.Time) bool {
	raw, ok, err := w.store.GetString(ctx, key)
	if err != nil {
		log.Warn().Err(err).Str("key", key).Msg("snapshot read failed")
		return false
	}
	if !ok {
		return false
	}
	at, err := SnapshotCreatedAt(raw)
	if err != nil {
		log.Info().Str("key", key).Msg("corrupt snapshot swept")
		return true
	}
	return !at.IsZero() && at.Before(cutoff)
}
