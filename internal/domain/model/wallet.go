package model

import (
	"time"

	"github.com/google/uuid"
)

type Wallet struct {
	ID        uuid.UUID `db:"id"`
	Address   string    `db:"address"`
	CreatedAt time.Time `db:"created_at"`
}
