package model

import (
	"time"

	"github.com/google/uuid"
)

type Token struct {
	ID             uuid.UUID `db:"id"`
	Address        string    `db:"address"`
	Name           string    `db:"name"`
	Symbol         string    `db:"symbol"`
	CreatorAddress string    `db:"creator_address"`
	PoolAddress    *string   `db:"pool_address"`
	TotalSupply    string    `db:"total_supply"` // NUMERIC(78,0) as string
	CreationTime   time.Time `db:"creation_time"`
	CreatedAt      time.Time `db:"created_at"`
	UpdatedAt      time.Time `db:"updated_at"`
}
