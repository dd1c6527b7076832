package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/nadscan/tradeledger/internal/domain/model"
)

type TokenRepo struct {
	db *DB
}

func NewTokenRepo(db *DB) *TokenRepo {
	return &TokenRepo{db: db}
}

// UpsertTx inserts a token. A market is created exactly once, so on
// conflict the original row is kept untouched and returned.
func (r *TokenRepo) UpsertTx(ctx context.Context, tx *sql.Tx, t *model.Token) (*model.Token, error) {
	var stored model.Token
	err := tx.QueryRowContext(ctx, `
		INSERT INTO tokens (address, name, symbol, creator_address, pool_address, total_supply, creation_time)
		VALUES ($1, $2, $3, $4, $5, $6::numeric, $7)
		ON CONFLICT (address) DO UPDATE SET
			address = tokens.address
		RETURNING id, address, name, symbol, creator_address, pool_address, total_supply::text, creation_time, created_at, updated_at
	`, t.Address, t.Name, t.Symbol, t.CreatorAddress, t.PoolAddress, t.TotalSupply, t.CreationTime,
	).Scan(
		&stored.ID, &stored.Address, &stored.Name, &stored.Symbol,
		&stored.CreatorAddress, &stored.PoolAddress, &stored.TotalSupply,
		&stored.CreationTime, &stored.CreatedAt, &stored.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("upsert token: %w", err)
	}
	return &stored, nil
}

func (r *TokenRepo) FindByAddressTx(ctx context.Context, tx *sql.Tx, address string) (*model.Token, error) {
	return scanToken(tx.QueryRowContext(ctx, tokenSelect+` WHERE address = $1`, address))
}

func (r *TokenRepo) FindByAddress(ctx context.Context, address string) (*model.Token, error) {
	ctx, cancel := withTimeout(ctx, DefaultQueryTimeout)
	defer cancel()
	return scanToken(r.db.QueryRowContext(ctx, tokenSelect+` WHERE address = $1`, address))
}

// ListPooled returns every token bound to an AMM pool, oldest first.
func (r *TokenRepo) ListPooled(ctx context.Context) ([]model.Token, error) {
	ctx, cancel := withTimeout(ctx, DefaultQueryTimeout)
	defer cancel()

	rows, err := r.db.QueryContext(ctx, tokenSelect+`
		WHERE pool_address IS NOT NULL
		ORDER BY creation_time, address
	`)
	if err != nil {
		return nil, fmt.Errorf("list pooled tokens: %w", err)
	}
	defer rows.Close()

	var tokens []model.Token
	for rows.Next() {
		var t model.Token
		if err := rows.Scan(
			&t.ID, &t.Address, &t.Name, &t.Symbol,
			&t.CreatorAddress, &t.PoolAddress, &t.TotalSupply,
			&t.CreationTime, &t.CreatedAt, &t.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan token: %w", err)
		}
		tokens = append(tokens, t)
	}
	return tokens, rows.Err()
}

// ListAll returns every tracked token, oldest first.
func (r *TokenRepo) ListAll(ctx context.Context) ([]model.Token, error) {
	ctx, cancel := withTimeout(ctx, DefaultQueryTimeout)
	defer cancel()

	rows, err := r.db.QueryContext(ctx, tokenSelect+`
		ORDER BY creation_time, address
	`)
	if err != nil {
		return nil, fmt.Errorf("list tokens: %w", err)
	}
	defer rows.Close()

	var tokens []model.Token
	for rows.Next() {
		var t model.Token
		if err := rows.Scan(
			&t.ID, &t.Address, &t.Name, &t.Symbol,
			&t.CreatorAddress, &t.PoolAddress, &t.TotalSupply,
			&t.CreationTime, &t.CreatedAt, &t.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan token: %w", err)
		}
		tokens = append(tokens, t)
	}
	return tokens, rows.Err()
}

const tokenSelect = `
	SELECT id, address, name, symbol, creator_address, pool_address,
	       total_supply::text, creation_time, created_at, updated_at
	FROM tokens`

func scanToken(row *sql.Row) (*model.Token, error) {
	var t model.Token
	err := row.Scan(
		&t.ID, &t.Address, &t.Name, &t.Symbol,
		&t.CreatorAddress, &t.PoolAddress, &t.TotalSupply,
		&t.CreationTime, &t.CreatedAt, &t.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find token: %w", err)
	}
	return &t, nil
}
