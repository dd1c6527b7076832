package ledger

import (
	"math/big"

	"github.com/nadscan/tradeledger/internal/domain/model"
)

// Classification is the canonical output of trade classification: a
// direction plus two non-negative magnitudes. Sign lives in the direction,
// never in the amounts.
type Classification struct {
	Direction   model.TradeDirection
	TokenAmount *big.Int
	MonAmount   *big.Int
}

// ClassifyExplicit relabels an amountIn/amountOut pair whose direction is
// already known from the event kind. For a BUY the trader paid MON in and
// took tokens out; for a SELL the reverse. No arithmetic beyond relabeling:
// tokenAmount + monAmount always equals amountIn + amountOut.
func ClassifyExplicit(direction model.TradeDirection, amountIn, amountOut *big.Int) Classification {
	if direction == model.DirectionBuy {
		return Classification{
			Direction:   model.DirectionBuy,
			TokenAmount: new(big.Int).Set(amountOut),
			MonAmount:   new(big.Int).Set(amountIn),
		}
	}
	return Classification{
		Direction:   model.DirectionSell,
		TokenAmount: new(big.Int).Set(amountIn),
		MonAmount:   new(big.Int).Set(amountOut),
	}
}

// ClassifyPoolSwap infers direction from an AMM pool's two signed deltas.
// Sign convention: negative = asset left the pool toward the trader,
// positive = asset entered the pool from the trader. tokenIsAsset0 names
// which side is the tracked token, fixed at pool registration time.
//
// Equal signs (including zeros) do not describe a two-asset swap this
// classifier understands; ok is false and the caller drops the event.
func ClassifyPoolSwap(amount0, amount1 *big.Int, tokenIsAsset0 bool) (Classification, bool) {
	tokenDelta, monDelta := amount0, amount1
	if !tokenIsAsset0 {
		tokenDelta, monDelta = amount1, amount0
	}

	switch {
	case tokenDelta.Sign() < 0 && monDelta.Sign() > 0:
		// Tokens flowed out of the pool to the trader: a buy.
		return Classification{
			Direction:   model.DirectionBuy,
			TokenAmount: new(big.Int).Neg(tokenDelta),
			MonAmount:   new(big.Int).Set(monDelta),
		}, true
	case tokenDelta.Sign() > 0 && monDelta.Sign() < 0:
		// Tokens flowed into the pool from the trader: a sell.
		return Classification{
			Direction:   model.DirectionSell,
			TokenAmount: new(big.Int).Set(tokenDelta),
			MonAmount:   new(big.Int).Neg(monDelta),
		}, true
	default:
		return Classification{}, false
	}
}
