package ledger

import (
	"math/big"
	"testing"

	"github.com/nadscan/tradeledger/internal/domain/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassifyExplicit(t *testing.T) {
	tests := []struct {
		name        string
		direction   model.TradeDirection
		amountIn    string
		amountOut   string
		wantToken   string
		wantMon     string
	}{
		{
			name:      "buy takes tokens out for mon in",
			direction: model.DirectionBuy,
			amountIn:  "100",
			amountOut: "50",
			wantToken: "50",
			wantMon:   "100",
		},
		{
			name:      "sell pays tokens in for mon out",
			direction: model.DirectionSell,
			amountIn:  "50",
			amountOut: "90",
			wantToken: "50",
			wantMon:   "90",
		},
		{
			name:      "zero amounts pass through",
			direction: model.DirectionBuy,
			amountIn:  "0",
			amountOut: "0",
			wantToken: "0",
			wantMon:   "0",
		},
		{
			name:      "256-bit magnitudes survive",
			direction: model.DirectionSell,
			amountIn:  "115792089237316195423570985008687907853269984665640564039457584007913129639935",
			amountOut: "1",
			wantToken: "115792089237316195423570985008687907853269984665640564039457584007913129639935",
			wantMon:   "1",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in, ok := new(big.Int).SetString(tt.amountIn, 10)
			require.True(t, ok)
			out, ok := new(big.Int).SetString(tt.amountOut, 10)
			require.True(t, ok)

			cls := ClassifyExplicit(tt.direction, in, out)

			assert.Equal(t, tt.direction, cls.Direction)
			assert.Equal(t, tt.wantToken, cls.TokenAmount.String())
			assert.Equal(t, tt.wantMon, cls.MonAmount.String())

			// Relabeling only: no arithmetic was performed on the pair.
			sum := new(big.Int).Add(cls.TokenAmount, cls.MonAmount)
			assert.Equal(t, new(big.Int).Add(in, out).String(), sum.String())
		})
	}
}

func TestClassifyExplicitDoesNotAliasInputs(t *testing.T) {
	in := big.NewInt(100)
	out := big.NewInt(50)
	cls := ClassifyExplicit(model.DirectionBuy, in, out)

	in.SetInt64(7)
	out.SetInt64(9)

	assert.Equal(t, "50", cls.TokenAmount.String())
	assert.Equal(t, "100", cls.MonAmount.String())
}

func TestClassifyPoolSwap(t *testing.T) {
	tests := []struct {
		name          string
		amount0       int64
		amount1       int64
		tokenIsAsset0 bool
		wantOK        bool
		wantDirection model.TradeDirection
		wantToken     string
		wantMon       string
	}{
		{
			name:          "token out of pool is a buy",
			amount0:       -500,
			amount1:       20,
			tokenIsAsset0: true,
			wantOK:        true,
			wantDirection: model.DirectionBuy,
			wantToken:     "500",
			wantMon:       "20",
		},
		{
			name:          "token into pool is a sell",
			amount0:       500,
			amount1:       -18,
			tokenIsAsset0: true,
			wantOK:        true,
			wantDirection: model.DirectionSell,
			wantToken:     "500",
			wantMon:       "18",
		},
		{
			name:          "asset1 token flips the delta assignment",
			amount0:       20,
			amount1:       -500,
			tokenIsAsset0: false,
			wantOK:        true,
			wantDirection: model.DirectionBuy,
			wantToken:     "500",
			wantMon:       "20",
		},
		{
			name:          "asset1 token sell",
			amount0:       -18,
			amount1:       500,
			tokenIsAsset0: false,
			wantOK:        true,
			wantDirection: model.DirectionSell,
			wantToken:     "500",
			wantMon:       "18",
		},
		{
			name:          "both deltas positive is unresolvable",
			amount0:       10,
			amount1:       10,
			tokenIsAsset0: true,
			wantOK:        false,
		},
		{
			name:          "both deltas negative is unresolvable",
			amount0:       -10,
			amount1:       -10,
			tokenIsAsset0: true,
			wantOK:        false,
		},
		{
			name:          "zero token delta is unresolvable",
			amount0:       0,
			amount1:       5,
			tokenIsAsset0: true,
			wantOK:        false,
		},
		{
			name:          "zero mon delta is unresolvable",
			amount0:       -5,
			amount1:       0,
			tokenIsAsset0: true,
			wantOK:        false,
		},
		{
			name:          "both zero is unresolvable",
			amount0:       0,
			amount1:       0,
			tokenIsAsset0: true,
			wantOK:        false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cls, ok := ClassifyPoolSwap(big.NewInt(tt.amount0), big.NewInt(tt.amount1), tt.tokenIsAsset0)
			require.Equal(t, tt.wantOK, ok)
			if !ok {
				return
			}
			assert.Equal(t, tt.wantDirection, cls.Direction)
			assert.Equal(t, tt.wantToken, cls.TokenAmount.String())
			assert.Equal(t, tt.wantMon, cls.MonAmount.String())
			assert.GreaterOrEqual(t, cls.TokenAmount.Sign(), 0)
			assert.GreaterOrEqual(t, cls.MonAmount.Sign(), 0)
		})
	}
}
