package model

import (
	"time"

	"github.com/google/uuid"
)

type TradeDirection string

const (
	DirectionBuy  TradeDirection = "BUY"
	DirectionSell TradeDirection = "SELL"
)

type TradeSource string

const (
	SourceBondingCurve TradeSource = "BONDING_CURVE"
	SourceDexRouter    TradeSource = "DEX_ROUTER"
	SourceAggregator   TradeSource = "AGGREGATOR"
	SourceUniswapPool  TradeSource = "UNISWAP_POOL"
)

// Trade is one canonical buy or sell of a tracked token. The natural key is
// (tx_hash, token_address): a router trade and the pool swap it executed
// against collapse onto the same row, with the router source winning.
type Trade struct {
	ID            uuid.UUID      `db:"id"`
	TxHash        string         `db:"tx_hash"`
	LogIndex      int            `db:"log_index"`
	TokenAddress  string         `db:"token_address"`
	TraderAddress string         `db:"trader_address"`
	Direction     TradeDirection `db:"direction"`
	Source        TradeSource    `db:"source"`
	TokenAmount   string         `db:"token_amount"` // NUMERIC(78,0) as string, >= 0
	MonAmount     string         `db:"mon_amount"`   // NUMERIC(78,0) as string, >= 0
	BlockNumber   int64          `db:"block_number"`
	BlockTime     time.Time      `db:"block_time"`
	CreatedAt     time.Time      `db:"created_at"`
}
