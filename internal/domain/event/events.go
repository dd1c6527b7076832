package event

import (
	"math/big"

	"github.com/nadscan/tradeledger/internal/domain/model"
)

// MarketCreated announces a new bonding-curve market. It is the only event
// that introduces a token; activity on tokens never announced this way is
// dropped everywhere else.
type MarketCreated struct {
	Meta
	Creator      string
	TokenAddress string
	Name         string
	Symbol       string
	PoolAddress  string // empty until the market has an AMM pool
	TotalSupply  *big.Int
}

func (e *MarketCreated) Kind() Kind { return KindMarketCreated }

// CurveTrade is an explicit-direction trade from the bonding curve, the DEX
// router, or any other surface whose event kind itself names the direction.
type CurveTrade struct {
	Meta
	Source       model.TradeSource
	Direction    model.TradeDirection
	Sender       string
	TokenAddress string
	AmountIn     *big.Int
	AmountOut    *big.Int
}

func (e *CurveTrade) Kind() Kind { return KindCurveTrade }

// AggregatorSwap is a generic tokenIn/tokenOut swap. Either side may be a
// tracked token; when both are, the swap legitimately yields two trades.
type AggregatorSwap struct {
	Meta
	Sender    string
	TokenIn   string
	TokenOut  string
	AmountIn  *big.Int
	AmountOut *big.Int
}

func (e *AggregatorSwap) Kind() Kind { return KindAggregatorSwap }

// PoolSwap is an AMM pool swap reported as two signed deltas: negative means
// the asset left the pool toward the trader, positive means it entered.
// There is no direction tag; classification infers it from the signs.
type PoolSwap struct {
	Meta
	PoolAddress string
	Sender      string
	Recipient   string
	Amount0     *big.Int
	Amount1     *big.Int
}

func (e *PoolSwap) Kind() Kind { return KindPoolSwap }

// TokenTransfer is an ERC20 Transfer log emitted by a token contract.
type TokenTransfer struct {
	Meta
	TokenAddress string
	From         string
	To           string
	Value        *big.Int
}

func (e *TokenTransfer) Kind() Kind { return KindTokenTransfer }
