package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/nadscan/tradeledger/internal/domain/model"
)

type WalletRepo struct {
	db *DB
}

func NewWalletRepo(db *DB) *WalletRepo {
	return &WalletRepo{db: db}
}

// GetOrCreateTx upserts a wallet by address. ON CONFLICT keeps the original
// row, so concurrent or repeated calls converge on one record.
func (r *WalletRepo) GetOrCreateTx(ctx context.Context, tx *sql.Tx, address string) (*model.Wallet, error) {
	var w model.Wallet
	err := tx.QueryRowContext(ctx, `
		INSERT INTO wallets (address)
		VALUES ($1)
		ON CONFLICT (address) DO UPDATE SET
			address = wallets.address
		RETURNING id, address, created_at
	`, address).Scan(&w.ID, &w.Address, &w.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("get or create wallet: %w", err)
	}
	return &w, nil
}

func (r *WalletRepo) FindByAddress(ctx context.Context, address string) (*model.Wallet, error) {
	ctx, cancel := withTimeout(ctx, DefaultQueryTimeout)
	defer cancel()

	var w model.Wallet
	err := r.db.QueryRowContext(ctx, `
		SELECT id, address, created_at
		FROM wallets
		WHERE address = $1
	`, address).Scan(&w.ID, &w.Address, &w.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find wallet by address: %w", err)
	}
	return &w, nil
}
