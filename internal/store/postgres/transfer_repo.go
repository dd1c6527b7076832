package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/nadscan/tradeledger/internal/domain/model"
)

type TransferRepo struct {
	db *DB
}

func NewTransferRepo(db *DB) *TransferRepo {
	return &TransferRepo{db: db}
}

func (r *TransferRepo) UpsertTx(ctx context.Context, tx *sql.Tx, t *model.Transfer) (bool, error) {
	res, err := tx.ExecContext(ctx, `
		INSERT INTO transfers (
			tx_hash, log_index, token_address, from_address, to_address,
			amount, block_number, block_time
		) VALUES ($1, $2, $3, $4, $5, $6::numeric, $7, $8)
		ON CONFLICT (tx_hash, log_index) DO NOTHING
	`, t.TxHash, t.LogIndex, t.TokenAddress, t.FromAddress, t.ToAddress,
		t.Amount, t.BlockNumber, t.BlockTime,
	)
	if err != nil {
		return false, fmt.Errorf("upsert transfer: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("upsert transfer rows affected: %w", err)
	}
	return n > 0, nil
}

func (r *TransferRepo) ListByToken(ctx context.Context, tokenAddress string) ([]model.Transfer, error) {
	ctx, cancel := withTimeout(ctx, DefaultQueryTimeout)
	defer cancel()

	rows, err := r.db.QueryContext(ctx, `
		SELECT id, tx_hash, log_index, token_address, from_address, to_address,
		       amount::text, block_number, block_time, created_at
		FROM transfers
		WHERE token_address = $1
		ORDER BY block_number, log_index
	`, tokenAddress)
	if err != nil {
		return nil, fmt.Errorf("list transfers: %w", err)
	}
	defer rows.Close()

	var transfers []model.Transfer
	for rows.Next() {
		var t model.Transfer
		if err := rows.Scan(
			&t.ID, &t.TxHash, &t.LogIndex, &t.TokenAddress, &t.FromAddress,
			&t.ToAddress, &t.Amount, &t.BlockNumber, &t.BlockTime, &t.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan transfer: %w", err)
		}
		transfers = append(transfers, t)
	}
	return transfers, rows.Err()
}
