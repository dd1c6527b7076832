package store

import (
	"context"
	"database/sql"

	"github.com/nadscan/tradeledger/internal/domain/model"
)

// TxBeginner abstracts the ability to begin a database transaction.
type TxBeginner interface {
	BeginTx(ctx context.Context, opts *sql.TxOptions) (*sql.Tx, error)
}

// WalletRepository provides access to wallet records.
type WalletRepository interface {
	// GetOrCreateTx looks a wallet up by address, creating it if absent.
	// Repeated calls for the same address converge on one stored row.
	GetOrCreateTx(ctx context.Context, tx *sql.Tx, address string) (*model.Wallet, error)
	FindByAddress(ctx context.Context, address string) (*model.Wallet, error)
}

// TokenRepository provides access to token records.
type TokenRepository interface {
	UpsertTx(ctx context.Context, tx *sql.Tx, t *model.Token) (*model.Token, error)
	FindByAddressTx(ctx context.Context, tx *sql.Tx, address string) (*model.Token, error)
	FindByAddress(ctx context.Context, address string) (*model.Token, error)
	// ListPooled returns every token that has an AMM pool bound to it,
	// in creation order. Used to rebuild the pool registry at startup.
	ListPooled(ctx context.Context) ([]model.Token, error)
	// ListAll returns every tracked token in creation order.
	ListAll(ctx context.Context) ([]model.Token, error)
}

// TradeRepository provides access to trade records.
type TradeRepository interface {
	// UpsertTx writes a trade, overwriting any existing row for the same
	// (tx_hash, token_address) pair. Used by explicit-direction sources,
	// whose records take precedence over pool-derived ones.
	UpsertTx(ctx context.Context, tx *sql.Tx, t *model.Trade) error
	// InsertIgnoreTx writes a trade only if no row exists for the same
	// (tx_hash, token_address) pair. Used by pool-derived trades.
	InsertIgnoreTx(ctx context.Context, tx *sql.Tx, t *model.Trade) error
	// ExistsForTxTokenTx is a point lookup on the dedup key.
	ExistsForTxTokenTx(ctx context.Context, tx *sql.Tx, txHash, tokenAddress string) (bool, error)
	ListByToken(ctx context.Context, tokenAddress string) ([]model.Trade, error)
}

// TransferRepository provides access to transfer records.
type TransferRepository interface {
	// UpsertTx writes a transfer keyed by (tx_hash, log_index). inserted
	// reports whether the row is new; a replayed transfer must not fold
	// its delta into the holdings ledger a second time.
	UpsertTx(ctx context.Context, tx *sql.Tx, t *model.Transfer) (inserted bool, err error)
	ListByToken(ctx context.Context, tokenAddress string) ([]model.Transfer, error)
}

// HoldingRepository provides access to token holding records.
type HoldingRepository interface {
	// FindForUpdateTx returns the holding for (wallet, token), locking it
	// for the duration of the transaction, or nil if no row exists.
	FindForUpdateTx(ctx context.Context, tx *sql.Tx, walletAddress, tokenAddress string) (*model.TokenHolding, error)
	InsertTx(ctx context.Context, tx *sql.Tx, h *model.TokenHolding) error
	UpdateTx(ctx context.Context, tx *sql.Tx, h *model.TokenHolding) error
	Find(ctx context.Context, walletAddress, tokenAddress string) (*model.TokenHolding, error)
	ListByToken(ctx context.Context, tokenAddress string) ([]model.TokenHolding, error)
}
