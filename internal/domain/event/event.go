package event

import "time"

type Kind string

const (
	KindMarketCreated  Kind = "MARKET_CREATED"
	KindCurveTrade     Kind = "CURVE_TRADE"
	KindAggregatorSwap Kind = "AGGREGATOR_SWAP"
	KindPoolSwap       Kind = "POOL_SWAP"
	KindTokenTransfer  Kind = "TOKEN_TRANSFER"
)

// Cursor is the chain position of a log entry. The upstream subscription
// delivers events in strictly increasing cursor order; the pipeline treats
// any regression or repeat as a fatal stream fault.
type Cursor struct {
	BlockNumber int64
	LogIndex    int
}

// After reports whether c is strictly later in chain order than other.
func (c Cursor) After(other Cursor) bool {
	if c.BlockNumber != other.BlockNumber {
		return c.BlockNumber > other.BlockNumber
	}
	return c.LogIndex > other.LogIndex
}

// Event is one decoded on-chain log from any of the tracked protocol
// surfaces. Each variant carries only the fields its source provides.
type Event interface {
	Kind() Kind
	Cursor() Cursor
	TxID() string
}

// Meta holds the fields common to every event kind.
type Meta struct {
	TxHash      string
	LogIndex    int
	BlockNumber int64
	BlockTime   time.Time
}

func (m Meta) Cursor() Cursor {
	return Cursor{BlockNumber: m.BlockNumber, LogIndex: m.LogIndex}
}

func (m Meta) TxID() string {
	return m.TxHash
}
