package cache

import (
	"context"
	"sync/atomic"

	"go.uber.org/zap"
)

// Observer receives shared tier events for metrics
type Observer interface {
	RecordSharedError(op string)
	RecordCompression(originalBytes, storedBytes int)
}

type nopObserver struct{}

func (nopObserver) RecordSharedError(string)   {}
func (nopObserver) RecordCompression(int, int) {}

// Tiered puts the in-process PageCache in front of an optional shared tier.
// Shared tier failures are logged and reported as misses.
type Tiered struct {
	local    *PageCache
	shared   *Shared
	logger   *zap.Logger
	observer Observer

	sharedHits atomic.Uint64
}

// NewTiered composes the tiers; shared may be nil
func NewTiered(local *PageCache, shared *Shared, observer Observer, logger *zap.Logger) *Tiered {
	if observer == nil {
		observer = nopObserver{}
	}
	return &Tiered{
		local:    local,
		shared:   shared,
		logger:   logger,
		observer: observer,
	}
}

func (t *Tiered) Get(ctx context.Context, key string) (string, bool) {
	if value, ok := t.local.Get(key); ok {
		return value, true
	}
	if t.shared == nil {
		return "", false
	}

	entry, ok, err := t.shared.Get(ctx, key)
	if err != nil {
		t.observer.RecordSharedError("get")
		t.logger.Warn("Shared cache read failed, treating as miss",
			zap.String("cache_key", key),
			zap.Error(err))
		return "", false
	}
	if !ok {
		return "", false
	}

	// promoted entries keep their original timestamp
	if t.local.now().Sub(entry.StoredAt) > t.local.MaxAge() {
		return "", false
	}

	t.local.setAt(key, entry.Value, entry.StoredAt)
	t.sharedHits.Add(1)
	t.logger.Debug("Promoted shared cache entry", zap.String("cache_key", key))
	return entry.Value, true
}

func (t *Tiered) Set(ctx context.Context, key, value string) {
	storedAt := t.local.now()
	t.local.setAt(key, value, storedAt)

	if t.shared == nil {
		return
	}
	stored, err := t.shared.Set(ctx, key, value, storedAt)
	if err != nil {
		t.observer.RecordSharedError("set")
		t.logger.Warn("Shared cache write failed",
			zap.String("cache_key", key),
			zap.Error(err))
		return
	}
	t.observer.RecordCompression(len(value), stored)
}

// Delete removes key from both tiers and reports whether the local tier held it
func (t *Tiered) Delete(ctx context.Context, key string) bool {
	removed := t.local.Delete(key)
	if t.shared != nil {
		if err := t.shared.Delete(ctx, key); err != nil {
			t.observer.RecordSharedError("delete")
			t.logger.Warn("Shared cache delete failed", zap.String("cache_key", key), zap.Error(err))
		}
	}
	return removed
}

// Purge empties both tiers and returns the number of local entries removed
func (t *Tiered) Purge(ctx context.Context) int {
	removed := t.local.Purge()
	if t.shared != nil {
		n, err := t.shared.Purge(ctx)
		if err != nil {
			t.observer.RecordSharedError("purge")
			t.logger.Warn("Shared cache purge failed", zap.Error(err))
		} else {
			t.logger.Info("Shared cache purged", zap.Int("keys", n))
		}
	}
	return removed
}

func (t *Tiered) Stats() Stats {
	stats := t.local.Stats()
	stats.SharedHits = t.sharedHits.Load()
	return stats
}

func (t *Tiered) Len() int {
	return t.local.Len()
}

// Ping checks the shared tier; it always succeeds when no shared tier is configured
func (t *Tiered) Ping(ctx context.Context) error {
	if t.shared == nil {
		return nil
	}
	return t.shared.Ping(ctx)
}

func (t *Tiered) SharedEnabled() bool {
	return t.shared != nil
}
