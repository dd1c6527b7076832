package model

import (
	"time"

	"github.com/google/uuid"
)

type Transfer struct {
	ID           uuid.UUID `db:"id"`
	TxHash       string    `db:"tx_hash"`
	LogIndex     int       `db:"log_index"`
	TokenAddress string    `db:"token_address"`
	FromAddress  string    `db:"from_address"`
	ToAddress    string    `db:"to_address"`
	Amount       string    `db:"amount"` // NUMERIC(78,0) as string
	BlockNumber  int64     `db:"block_number"`
	BlockTime    time.Time `db:"block_time"`
	CreatedAt    time.Time `db:"created_at"`
}
