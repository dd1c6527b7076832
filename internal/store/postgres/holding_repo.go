package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/nadscan/tradeledger/internal/domain/model"
)

type HoldingRepo struct {
	db *DB
}

func NewHoldingRepo(db *DB) *HoldingRepo {
	return &HoldingRepo{db: db}
}

// FindForUpdateTx locks the (wallet, token) holding row for the rest of the
// transaction so the read-modify-write in the holdings ledger is safe even
// if the host ever partitions streams.
func (r *HoldingRepo) FindForUpdateTx(ctx context.Context, tx *sql.Tx, walletAddress, tokenAddress string) (*model.TokenHolding, error) {
	return scanHolding(tx.QueryRowContext(ctx, holdingSelect+`
		WHERE wallet_address = $1 AND token_address = $2
		FOR UPDATE
	`, walletAddress, tokenAddress))
}

func (r *HoldingRepo) Find(ctx context.Context, walletAddress, tokenAddress string) (*model.TokenHolding, error) {
	ctx, cancel := withTimeout(ctx, DefaultQueryTimeout)
	defer cancel()
	return scanHolding(r.db.QueryRowContext(ctx, holdingSelect+`
		WHERE wallet_address = $1 AND token_address = $2
	`, walletAddress, tokenAddress))
}

func (r *HoldingRepo) InsertTx(ctx context.Context, tx *sql.Tx, h *model.TokenHolding) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO token_holdings (
			wallet_address, token_address, previous_balance, current_balance,
			first_acquired, last_updated
		) VALUES ($1, $2, $3::numeric, $4::numeric, $5, $6)
		ON CONFLICT (wallet_address, token_address) DO NOTHING
	`, h.WalletAddress, h.TokenAddress, h.PreviousBalance, h.CurrentBalance,
		h.FirstAcquired, h.LastUpdated,
	)
	if err != nil {
		return fmt.Errorf("insert holding: %w", err)
	}
	return nil
}

func (r *HoldingRepo) UpdateTx(ctx context.Context, tx *sql.Tx, h *model.TokenHolding) error {
	_, err := tx.ExecContext(ctx, `
		UPDATE token_holdings SET
			previous_balance = $3::numeric,
			current_balance  = $4::numeric,
			last_updated     = $5
		WHERE wallet_address = $1 AND token_address = $2
	`, h.WalletAddress, h.TokenAddress, h.PreviousBalance, h.CurrentBalance, h.LastUpdated)
	if err != nil {
		return fmt.Errorf("update holding: %w", err)
	}
	return nil
}

// ListByToken returns every holding row for a token, used by the audit
// sweep.
func (r *HoldingRepo) ListByToken(ctx context.Context, tokenAddress string) ([]model.TokenHolding, error) {
	ctx, cancel := withTimeout(ctx, DefaultQueryTimeout)
	defer cancel()

	rows, err := r.db.QueryContext(ctx, holdingSelect+`
		WHERE token_address = $1
		ORDER BY wallet_address
	`, tokenAddress)
	if err != nil {
		return nil, fmt.Errorf("list holdings: %w", err)
	}
	defer rows.Close()

	var holdings []model.TokenHolding
	for rows.Next() {
		var h model.TokenHolding
		if err := rows.Scan(
			&h.ID, &h.WalletAddress, &h.TokenAddress, &h.PreviousBalance,
			&h.CurrentBalance, &h.FirstAcquired, &h.LastUpdated, &h.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan holding: %w", err)
		}
		holdings = append(holdings, h)
	}
	return holdings, rows.Err()
}

const holdingSelect = `
	SELECT id, wallet_address, token_address, previous_balance::text,
	       current_balance::text, first_acquired, last_updated, created_at
	FROM token_holdings`

func scanHolding(row *sql.Row) (*model.TokenHolding, error) {
	var h model.TokenHolding
	err := row.Scan(
		&h.ID, &h.WalletAddress, &h.TokenAddress, &h.PreviousBalance,
		&h.CurrentBalance, &h.FirstAcquired, &h.LastUpdated, &h.CreatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find holding: %w", err)
	}
	return &h, nil
}
