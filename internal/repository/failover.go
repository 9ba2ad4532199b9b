package repository

import (
	"context"
	"sync/atomic"
	"time"

	"staybook/internal/domain"

	"github.com/rs/zerolog"
)

const recoveryInterval = time.Minute

// FailoverIdempotencyStore prefers the primary store and switches to the
// fallback on the first primary error, probing the primary again after recoveryInterval.
type FailoverIdempotencyStore struct {
	primary   domain.IdempotencyStore
	fallback  domain.IdempotencyStore
	logger    *zerolog.Logger
	isDown    atomic.Bool
	lastCheck atomic.Int64
}

func NewFailoverIdempotencyStore(primary, fallback domain.IdempotencyStore, logger *zerolog.Logger) *FailoverIdempotencyStore {
	return &FailoverIdempotencyStore{
		primary:  primary,
		fallback: fallback,
		logger:   logger,
	}
}

func (r *FailoverIdempotencyStore) markDown(err error) {
	r.logger.Error().Err(err).Msg("Primary idempotency store failed, falling back to memory")
	r.isDown.Store(true)
	r.lastCheck.Store(time.Now().UnixNano())
}

func (r *FailoverIdempotencyStore) shouldProbe() bool {
	return r.isDown.Load() && time.Since(time.Unix(0, r.lastCheck.Load())) > recoveryInterval
}

func (r *FailoverIdempotencyStore) Get(ctx context.Context, key string) (string, bool, error) {
	if !r.isDown.Load() {
		id, ok, err := r.primary.Get(ctx, key)
		if err == nil {
			return id, ok, nil
		}
		r.markDown(err)
	}

	if r.shouldProbe() {
		id, ok, err := r.primary.Get(ctx, key)
		if err == nil {
			r.isDown.Store(false)
			r.logger.Info().Msg("Primary idempotency store recovered")
			return id, ok, nil
		}
		r.lastCheck.Store(time.Now().UnixNano())
	}

	return r.fallback.Get(ctx, key)
}

func (r *FailoverIdempotencyStore) Put(ctx context.Context, key, bookingID string) error {
	if !r.isDown.Load() {
		err := r.primary.Put(ctx, key, bookingID)
		if err == nil {
			return nil
		}
		r.markDown(err)
	}

	return r.fallback.Put(ctx, key, bookingID)
}
