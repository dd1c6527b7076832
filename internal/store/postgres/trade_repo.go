package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/nadscan/tradeledger/internal/domain/model"
)

type TradeRepo struct {
	db *DB
}

func NewTradeRepo(db *DB) *TradeRepo {
	return &TradeRepo{db: db}
}

// UpsertTx writes a trade, overwriting any existing row for the same
// (tx_hash, token_address) pair. Explicit-direction sources use this form
// so their record wins over a pool-derived one regardless of arrival order.
func (r *TradeRepo) UpsertTx(ctx context.Context, tx *sql.Tx, t *model.Trade) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO trades (
			tx_hash, log_index, token_address, trader_address,
			direction, source, token_amount, mon_amount, block_number, block_time
		) VALUES ($1, $2, $3, $4, $5, $6, $7::numeric, $8::numeric, $9, $10)
		ON CONFLICT (tx_hash, token_address) DO UPDATE SET
			log_index      = EXCLUDED.log_index,
			trader_address = EXCLUDED.trader_address,
			direction      = EXCLUDED.direction,
			source         = EXCLUDED.source,
			token_amount   = EXCLUDED.token_amount,
			mon_amount     = EXCLUDED.mon_amount,
			block_number   = EXCLUDED.block_number,
			block_time     = EXCLUDED.block_time
	`, t.TxHash, t.LogIndex, t.TokenAddress, t.TraderAddress,
		t.Direction, t.Source, t.TokenAmount, t.MonAmount, t.BlockNumber, t.BlockTime,
	)
	if err != nil {
		return fmt.Errorf("upsert trade: %w", err)
	}
	return nil
}

// InsertIgnoreTx writes a pool-derived trade only if no row exists for the
// (tx_hash, token_address) pair.
func (r *TradeRepo) InsertIgnoreTx(ctx context.Context, tx *sql.Tx, t *model.Trade) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO trades (
			tx_hash, log_index, token_address, trader_address,
			direction, source, token_amount, mon_amount, block_number, block_time
		) VALUES ($1, $2, $3, $4, $5, $6, $7::numeric, $8::numeric, $9, $10)
		ON CONFLICT (tx_hash, token_address) DO NOTHING
	`, t.TxHash, t.LogIndex, t.TokenAddress, t.TraderAddress,
		t.Direction, t.Source, t.TokenAmount, t.MonAmount, t.BlockNumber, t.BlockTime,
	)
	if err != nil {
		return fmt.Errorf("insert trade: %w", err)
	}
	return nil
}

func (r *TradeRepo) ExistsForTxTokenTx(ctx context.Context, tx *sql.Tx, txHash, tokenAddress string) (bool, error) {
	var exists bool
	err := tx.QueryRowContext(ctx, `
		SELECT EXISTS(
			SELECT 1 FROM trades WHERE tx_hash = $1 AND token_address = $2
		)
	`, txHash, tokenAddress).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("trade exists lookup: %w", err)
	}
	return exists, nil
}

func (r *TradeRepo) ListByToken(ctx context.Context, tokenAddress string) ([]model.Trade, error) {
	ctx, cancel := withTimeout(ctx, DefaultQueryTimeout)
	defer cancel()

	rows, err := r.db.QueryContext(ctx, `
		SELECT id, tx_hash, log_index, token_address, trader_address,
		       direction, source, token_amount::text, mon_amount::text,
		       block_number, block_time, created_at
		FROM trades
		WHERE token_address = $1
		ORDER BY block_number, log_index
	`, tokenAddress)
	if err != nil {
		return nil, fmt.Errorf("list trades: %w", err)
	}
	defer rows.Close()

	var trades []model.Trade
	for rows.Next() {
		var t model.Trade
		if err := rows.Scan(
			&t.ID, &t.TxHash, &t.LogIndex, &t.TokenAddress, &t.TraderAddress,
			&t.Direction, &t.Source, &t.TokenAmount, &t.MonAmount,
			&t.BlockNumber, &t.BlockTime, &t.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan trade: %w", err)
		}
		trades = append(trades, t)
	}
	return trades, rows.Err()
}
