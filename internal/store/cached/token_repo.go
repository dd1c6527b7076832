// Package cached wraps repositories with read-through caches for the hot
// per-event lookup path.
package cached

import (
	"context"
	"database/sql"

	"github.com/nadscan/tradeledger/internal/cache"
	"github.com/nadscan/tradeledger/internal/domain/model"
	"github.com/nadscan/tradeledger/internal/metrics"
	"github.com/nadscan/tradeledger/internal/store"
)

// TokenRepo caches token rows in front of a durable repository. Token rows
// are immutable once created (repeated creations keep the first row), so
// entries never need invalidation. Unknown tokens are not negative-cached:
// a market creation may arrive later in the stream.
type TokenRepo struct {
	inner store.TokenRepository
	lru   *cache.LRU[string, *model.Token]
}

func NewTokenRepo(inner store.TokenRepository, capacity int) *TokenRepo {
	return &TokenRepo{
		inner: inner,
		lru:   cache.NewLRU[string, *model.Token](capacity),
	}
}

func (r *TokenRepo) UpsertTx(ctx context.Context, tx *sql.Tx, t *model.Token) (*model.Token, error) {
	stored, err := r.inner.UpsertTx(ctx, tx, t)
	if err != nil {
		return nil, err
	}
	r.lru.Put(stored.Address, stored)
	return stored, nil
}

func (r *TokenRepo) FindByAddressTx(ctx context.Context, tx *sql.Tx, address string) (*model.Token, error) {
	if t, ok := r.lru.Get(address); ok {
		metrics.TokenCacheHits.Inc()
		return t, nil
	}
	metrics.TokenCacheMisses.Inc()

	t, err := r.inner.FindByAddressTx(ctx, tx, address)
	if err != nil {
		return nil, err
	}
	if t != nil {
		r.lru.Put(t.Address, t)
	}
	return t, nil
}

func (r *TokenRepo) FindByAddress(ctx context.Context, address string) (*model.Token, error) {
	if t, ok := r.lru.Get(address); ok {
		metrics.TokenCacheHits.Inc()
		return t, nil
	}
	metrics.TokenCacheMisses.Inc()

	t, err := r.inner.FindByAddress(ctx, address)
	if err != nil {
		return nil, err
	}
	if t != nil {
		r.lru.Put(t.Address, t)
	}
	return t, nil
}

func (r *TokenRepo) ListPooled(ctx context.Context) ([]model.Token, error) {
	return r.inner.ListPooled(ctx)
}

func (r *TokenRepo) ListAll(ctx context.Context) ([]model.Token, error) {
	return r.inner.ListAll(ctx)
}
