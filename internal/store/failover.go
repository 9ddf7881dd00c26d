package store

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
)

// FailoverKV routes calls to a primary KV and falls back to a secondary
// when the primary fails. Once the primary is marked down, it is retried
// at most once per recovery interval.
//
// Reads served from the fallback may lag the primary; the two stores are
// not reconciled here.
type FailoverKV struct {
	primary  KV
	fallback KV
	logger   zerolog.Logger

	isDown    atomic.Bool
	mu        sync.Mutex
	lastCheck time.Time
	recovery  time.Duration
}

// NewFailoverKV composes primary and fallback stores. A zero recovery
// interval defaults to one minute.
func NewFailoverKV(primary, fallback KV, recovery time.Duration, logger zerolog.Logger) *FailoverKV {
	if recovery <= 0 {
		recovery = time.Minute
	}
	return &FailoverKV{
		primary:  primary,
		fallback: fallback,
		recovery: recovery,
		logger:   logger.With().Str("component", "failover_store").Logger(),
	}
}

// usePrimary reports whether the next call should try the primary.
func (f *FailoverKV) usePrimary() bool {
	if !f.isDown.Load() {
		return true
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if time.Since(f.lastCheck) < f.recovery {
		return false
	}
	f.lastCheck = time.Now()
	return true
}

func (f *FailoverKV) markDown(op string, err error) {
	if f.isDown.CompareAndSwap(false, true) {
		f.logger.Warn().Err(err).Str("op", op).Msg("primary store down, switching to fallback")
	}
	f.mu.Lock()
	f.lastCheck = time.Now()
	f.mu.Unlock()
}

func (f *FailoverKV) markUp() {
	if f.isDown.CompareAndSwap(true, false) {
		f.logger.Info().Msg("primary store recovered")
	}
}

func (f *FailoverKV) Get(ctx context.Context, family, key string) ([]byte, error) {
	if f.usePrimary() {
		val, err := f.primary.Get(ctx, family, key)
		if err == nil || err == ErrNotFound {
			f.markUp()
			return val, err
		}
		f.markDown("get", err)
	}
	return f.fallback.Get(ctx, family, key)
}

func (f *FailoverKV) Put(ctx context.Context, family, key string, value []byte) error {
	if f.usePrimary() {
		if err := f.primary.Put(ctx, family, key, value); err != nil {
			f.markDown("put", err)
		} else {
			f.markUp()
			// Mirror into the fallback so a later failover still sees
			// the write. Mirror failures are logged, not fatal.
			if err := f.fallback.Put(ctx, family, key, value); err != nil {
				f.logger.Error().Err(err).Str("key", key).Msg("fallback mirror write failed")
			}
			return nil
		}
	}
	return f.fallback.Put(ctx, family, key, value)
}

func (f *FailoverKV) Delete(ctx context.Context, family, key string) error {
	if f.usePrimary() {
		if err := f.primary.Delete(ctx, family, key); err != nil {
			f.markDown("delete", err)
		} else {
			f.markUp()
			if err := f.fallback.Delete(ctx, family, key); err != nil {
				f.logger.Error().Err(err).Str("key", key).Msg("fallback mirror delete failed")
			}
			return nil
		}
	}
	return f.fallback.Delete(ctx, family, key)
}

func (f *FailoverKV) GetAll(ctx context.Context, family string) ([]Entry, error) {
	if f.usePrimary() {
		entries, err := f.primary.GetAll(ctx, family)
		if err == nil {
			f.markUp()
			return entries, nil
		}
		f.markDown("getall", err)
	}
	return f.fallback.GetAll(ctx, family)
}

// IsDown reports whether the primary is currently marked down.
func (f *FailoverKV) IsDown() bool { return f.isDown.Load() }
