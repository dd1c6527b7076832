package ledger

import (
	"context"
	"fmt"
	"sync"

	"github.com/nadscan/tradeledger/internal/domain/model"
	"github.com/nadscan/tradeledger/internal/store"
)

// PoolBinding ties an AMM pool to the token it was created for. Which pool
// side holds the token is a fact about the pool, fixed once at registration
// and never re-guessed per swap.
type PoolBinding struct {
	TokenAddress  string
	TokenIsAsset0 bool
}

// PoolRegistry resolves pool addresses to tracked tokens. It is injected
// into the dispatcher so a durable-store-backed implementation can replace
// the in-memory one without touching classification.
type PoolRegistry interface {
	Register(poolAddress, tokenAddress string, tokenIsAsset0 bool)
	Resolve(poolAddress string) (PoolBinding, bool)
}

// MemoryPoolRegistry is the process-scoped PoolRegistry. It is not durable:
// on startup Rebuild repopulates it from the token registry, which records
// each market's pool at creation time.
type MemoryPoolRegistry struct {
	mu    sync.RWMutex
	pools map[string]PoolBinding
}

func NewPoolRegistry() *MemoryPoolRegistry {
	return &MemoryPoolRegistry{pools: make(map[string]PoolBinding)}
}

func (r *MemoryPoolRegistry) Register(poolAddress, tokenAddress string, tokenIsAsset0 bool) {
	key := model.NormalizeAddress(poolAddress)
	if key == "" {
		return
	}
	r.mu.Lock()
	r.pools[key] = PoolBinding{
		TokenAddress:  model.NormalizeAddress(tokenAddress),
		TokenIsAsset0: tokenIsAsset0,
	}
	r.mu.Unlock()
}

func (r *MemoryPoolRegistry) Resolve(poolAddress string) (PoolBinding, bool) {
	r.mu.RLock()
	binding, ok := r.pools[model.NormalizeAddress(poolAddress)]
	r.mu.RUnlock()
	return binding, ok
}

// Rebuild replays pool bindings from the token registry. Equivalent to
// replaying every market-creation event from genesis.
func (r *MemoryPoolRegistry) Rebuild(ctx context.Context, tokens store.TokenRepository) error {
	pooled, err := tokens.ListPooled(ctx)
	if err != nil {
		return fmt.Errorf("rebuild pool registry: %w", err)
	}
	for _, t := range pooled {
		if t.PoolAddress == nil {
			continue
		}
		r.Register(*t.PoolAddress, t.Address, true)
	}
	return nil
}

func (r *MemoryPoolRegistry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.pools)
}
