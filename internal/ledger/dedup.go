package ledger

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/nadscan/tradeledger/internal/store"
)

// Deduplicator suppresses pool-derived trades a higher-priority source has
// already recorded. A router trade that executes against the pool triggers
// both a router event and a pool Swap for the same transaction; the router
// record wins.
type Deduplicator struct {
	trades store.TradeRepository
}

func NewDeduplicator(trades store.TradeRepository) *Deduplicator {
	return &Deduplicator{trades: trades}
}

// ShouldSuppress reports whether a pool-derived trade for (txHash, token)
// must be dropped because a trade already exists for that pair. It runs
// after token resolution and before the pool trade is written; the lookup
// is a point read on the dedup key, never a scan.
func (d *Deduplicator) ShouldSuppress(ctx context.Context, tx *sql.Tx, txHash, tokenAddress string) (bool, error) {
	exists, err := d.trades.ExistsForTxTokenTx(ctx, tx, txHash, tokenAddress)
	if err != nil {
		return false, fmt.Errorf("dedup lookup: %w", err)
	}
	return exists, nil
}
