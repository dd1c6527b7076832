package ledger

import (
	"context"
	"database/sql"
	"fmt"
	"math/big"
	"time"

	"github.com/nadscan/tradeledger/internal/domain/model"
	"github.com/nadscan/tradeledger/internal/store"
)

// HoldingsLedger maintains the signed running balance per (wallet, token)
// pair from raw transfer deltas.
type HoldingsLedger struct {
	holdings store.HoldingRepository
}

func NewHoldingsLedger(holdings store.HoldingRepository) *HoldingsLedger {
	return &HoldingsLedger{holdings: holdings}
}

// ApplyDelta folds one signed delta into the (wallet, token) balance.
//
// The zero-address sentinel never gets a row: a mint credits only the
// receiver, a burn debits only the sender. A pair with no row gets one only
// when the first delta leaves a strictly positive balance; a wallet that
// never held anything has no row. An existing row is always updated, even
// down to zero or below; drawdown never deletes history.
func (h *HoldingsLedger) ApplyDelta(ctx context.Context, tx *sql.Tx, walletAddress, tokenAddress string, delta *big.Int, ts time.Time) error {
	if model.IsZeroAddress(walletAddress) {
		return nil
	}

	holding, err := h.holdings.FindForUpdateTx(ctx, tx, walletAddress, tokenAddress)
	if err != nil {
		return fmt.Errorf("find holding: %w", err)
	}

	if holding == nil {
		if delta.Sign() <= 0 {
			return nil
		}
		return h.holdings.InsertTx(ctx, tx, &model.TokenHolding{
			WalletAddress:   walletAddress,
			TokenAddress:    tokenAddress,
			PreviousBalance: "0",
			CurrentBalance:  delta.String(),
			FirstAcquired:   ts,
			LastUpdated:     ts,
		})
	}

	current, ok := new(big.Int).SetString(holding.CurrentBalance, 10)
	if !ok {
		return fmt.Errorf("holding %s/%s: corrupt balance %q", walletAddress, tokenAddress, holding.CurrentBalance)
	}

	holding.PreviousBalance = current.String()
	holding.CurrentBalance = new(big.Int).Add(current, delta).String()
	holding.LastUpdated = ts
	return h.holdings.UpdateTx(ctx, tx, holding)
}
