package model

import (
	"time"

	"github.com/google/uuid"
)

// TokenHolding is the running balance of one wallet in one token. Rows are
// created only when the first delta leaves a positive balance, and are never
// deleted afterwards, even when the balance draws down to zero or (on
// inconsistent upstream data) below it.
type TokenHolding struct {
	ID              uuid.UUID `db:"id"`
	WalletAddress   string    `db:"wallet_address"`
	TokenAddress    string    `db:"token_address"`
	PreviousBalance string    `db:"previous_balance"` // signed NUMERIC(78,0) as string
	CurrentBalance  string    `db:"current_balance"`  // signed NUMERIC(78,0) as string
	FirstAcquired   time.Time `db:"first_acquired"`
	LastUpdated     time.Time `db:"last_updated"`
	CreatedAt       time.Time `db:"created_at"`
}
