package ledger

import (
	"context"
	"io"
	"log/slog"
	"math/big"
	"testing"
	"time"

	"github.com/nadscan/tradeledger/internal/domain/event"
	"github.com/nadscan/tradeledger/internal/domain/model"
	"github.com/nadscan/tradeledger/internal/store/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testToken   = "0x1111111111111111111111111111111111111111"
	testToken2  = "0x2222222222222222222222222222222222222222"
	testPool    = "0x3333333333333333333333333333333333333333"
	testCreator = "0xaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa"
	testTrader  = "0xbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb"
	testTrader2 = "0xcccccccccccccccccccccccccccccccccccccccc"
)

var testTime = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

type fixture struct {
	store  *memory.Store
	pools  *MemoryPoolRegistry
	ledger *Ledger
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	st := memory.New()
	pools := NewPoolRegistry()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	l := New(st, st.Wallets(), st.Tokens(), st.Trades(), st.Transfers(), st.Holdings(), pools, logger)
	return &fixture{store: st, pools: pools, ledger: l}
}

func marketCreated(block int64, logIndex int, pool string) *event.MarketCreated {
	return &event.MarketCreated{
		Meta: event.Meta{
			TxHash:      "0xtx-create",
			LogIndex:    logIndex,
			BlockNumber: block,
			BlockTime:   testTime,
		},
		Creator:      testCreator,
		TokenAddress: testToken,
		Name:         "Test Token",
		Symbol:       "TST",
		PoolAddress:  pool,
		TotalSupply:  big.NewInt(1_000_000),
	}
}

func (f *fixture) mustApply(t *testing.T, evs ...event.Event) {
	t.Helper()
	for _, ev := range evs {
		require.NoError(t, f.ledger.Apply(context.Background(), ev))
	}
}

func TestApplyMarketCreated(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	f.mustApply(t, marketCreated(10, 0, testPool))

	token, err := f.store.Tokens().FindByAddress(ctx, testToken)
	require.NoError(t, err)
	require.NotNil(t, token)
	assert.Equal(t, "TST", token.Symbol)
	assert.Equal(t, testCreator, token.CreatorAddress)
	assert.Equal(t, "1000000", token.TotalSupply)
	require.NotNil(t, token.PoolAddress)
	assert.Equal(t, testPool, *token.PoolAddress)

	wallet, err := f.store.Wallets().FindByAddress(ctx, testCreator)
	require.NoError(t, err)
	assert.NotNil(t, wallet)

	binding, ok := f.pools.Resolve(testPool)
	require.True(t, ok)
	assert.Equal(t, testToken, binding.TokenAddress)
}

func TestApplyMarketCreatedWithoutPool(t *testing.T) {
	f := newFixture(t)
	f.mustApply(t, marketCreated(10, 0, ""))

	assert.Equal(t, 0, f.pools.Len())
}

func TestApplyCurveTradeBuy(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.mustApply(t, marketCreated(10, 0, ""))

	f.mustApply(t, &event.CurveTrade{
		Meta: event.Meta{
			TxHash:      "0xtx-buy",
			LogIndex:    2,
			BlockNumber: 11,
			BlockTime:   testTime,
		},
		Source:       model.SourceBondingCurve,
		Direction:    model.DirectionBuy,
		Sender:       testTrader,
		TokenAddress: testToken,
		AmountIn:     big.NewInt(100),
		AmountOut:    big.NewInt(50),
	})

	trades, err := f.store.Trades().ListByToken(ctx, testToken)
	require.NoError(t, err)
	require.Len(t, trades, 1)
	tr := trades[0]
	assert.Equal(t, model.DirectionBuy, tr.Direction)
	assert.Equal(t, model.SourceBondingCurve, tr.Source)
	assert.Equal(t, "50", tr.TokenAmount)
	assert.Equal(t, "100", tr.MonAmount)
	assert.Equal(t, testTrader, tr.TraderAddress)
}

func TestApplyCurveTradeUnknownTokenDropped(t *testing.T) {
	f := newFixture(t)

	// No market creation: the token is untracked and the trade is a no-op.
	f.mustApply(t, &event.CurveTrade{
		Meta:         event.Meta{TxHash: "0xtx", LogIndex: 0, BlockNumber: 5, BlockTime: testTime},
		Source:       model.SourceBondingCurve,
		Direction:    model.DirectionBuy,
		Sender:       testTrader,
		TokenAddress: testToken,
		AmountIn:     big.NewInt(100),
		AmountOut:    big.NewInt(50),
	})

	assert.Equal(t, 0, f.store.TradeCount())
	assert.Equal(t, 0, f.store.WalletCount())
}

func TestApplyAggregatorSwapBothLegs(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.mustApply(t, marketCreated(10, 0, ""))
	f.mustApply(t, &event.MarketCreated{
		Meta:         event.Meta{TxHash: "0xtx-create2", LogIndex: 1, BlockNumber: 10, BlockTime: testTime},
		Creator:      testCreator,
		TokenAddress: testToken2,
		Name:         "Other Token",
		Symbol:       "OTH",
		TotalSupply:  big.NewInt(1_000_000),
	})

	// Swap 500 of token1 for 250 of token2: a SELL of token1 and a BUY of
	// token2, both attributed to the same trader and transaction.
	f.mustApply(t, &event.AggregatorSwap{
		Meta:      event.Meta{TxHash: "0xtx-agg", LogIndex: 3, BlockNumber: 12, BlockTime: testTime},
		Sender:    testTrader,
		TokenIn:   testToken,
		TokenOut:  testToken2,
		AmountIn:  big.NewInt(500),
		AmountOut: big.NewInt(250),
	})

	assert.Equal(t, 2, f.store.TradeCount())

	sells, err := f.store.Trades().ListByToken(ctx, testToken)
	require.NoError(t, err)
	require.Len(t, sells, 1)
	assert.Equal(t, model.DirectionSell, sells[0].Direction)
	assert.Equal(t, model.SourceAggregator, sells[0].Source)
	assert.Equal(t, "500", sells[0].TokenAmount)
	assert.Equal(t, "250", sells[0].MonAmount)

	buys, err := f.store.Trades().ListByToken(ctx, testToken2)
	require.NoError(t, err)
	require.Len(t, buys, 1)
	assert.Equal(t, model.DirectionBuy, buys[0].Direction)
	assert.Equal(t, "250", buys[0].TokenAmount)
	assert.Equal(t, "500", buys[0].MonAmount)
}

func TestApplyAggregatorSwapOneTrackedSide(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.mustApply(t, marketCreated(10, 0, ""))

	f.mustApply(t, &event.AggregatorSwap{
		Meta:      event.Meta{TxHash: "0xtx-agg", LogIndex: 3, BlockNumber: 12, BlockTime: testTime},
		Sender:    testTrader,
		TokenIn:   testToken,
		TokenOut:  "0x9999999999999999999999999999999999999999",
		AmountIn:  big.NewInt(500),
		AmountOut: big.NewInt(250),
	})

	trades, err := f.store.Trades().ListByToken(ctx, testToken)
	require.NoError(t, err)
	require.Len(t, trades, 1)
	assert.Equal(t, model.DirectionSell, trades[0].Direction)
	assert.Equal(t, 1, f.store.TradeCount())
}

func TestApplyAggregatorSwapNeitherTrackedDropped(t *testing.T) {
	f := newFixture(t)

	f.mustApply(t, &event.AggregatorSwap{
		Meta:      event.Meta{TxHash: "0xtx-agg", LogIndex: 3, BlockNumber: 12, BlockTime: testTime},
		Sender:    testTrader,
		TokenIn:   "0x8888888888888888888888888888888888888888",
		TokenOut:  "0x9999999999999999999999999999999999999999",
		AmountIn:  big.NewInt(500),
		AmountOut: big.NewInt(250),
	})

	assert.Equal(t, 0, f.store.TradeCount())
}

func TestApplyPoolSwap(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.mustApply(t, marketCreated(10, 0, testPool))

	// amount0 = -500 (token left the pool), amount1 = +20 (mon entered): buy.
	f.mustApply(t, &event.PoolSwap{
		Meta:        event.Meta{TxHash: "0xtx-swap", LogIndex: 4, BlockNumber: 13, BlockTime: testTime},
		PoolAddress: testPool,
		Sender:      testTrader,
		Recipient:   testTrader,
		Amount0:     big.NewInt(-500),
		Amount1:     big.NewInt(20),
	})

	trades, err := f.store.Trades().ListByToken(ctx, testToken)
	require.NoError(t, err)
	require.Len(t, trades, 1)
	assert.Equal(t, model.DirectionBuy, trades[0].Direction)
	assert.Equal(t, model.SourceUniswapPool, trades[0].Source)
	assert.Equal(t, "500", trades[0].TokenAmount)
	assert.Equal(t, "20", trades[0].MonAmount)
}

func TestApplyPoolSwapUnknownPoolDropped(t *testing.T) {
	f := newFixture(t)
	f.mustApply(t, marketCreated(10, 0, testPool))

	f.mustApply(t, &event.PoolSwap{
		Meta:        event.Meta{TxHash: "0xtx-swap", LogIndex: 4, BlockNumber: 13, BlockTime: testTime},
		PoolAddress: "0x7777777777777777777777777777777777777777",
		Sender:      testTrader,
		Amount0:     big.NewInt(-500),
		Amount1:     big.NewInt(20),
	})

	assert.Equal(t, 0, f.store.TradeCount())
}

func TestApplyPoolSwapUnresolvableDropped(t *testing.T) {
	f := newFixture(t)
	f.mustApply(t, marketCreated(10, 0, testPool))

	f.mustApply(t, &event.PoolSwap{
		Meta:        event.Meta{TxHash: "0xtx-swap", LogIndex: 4, BlockNumber: 13, BlockTime: testTime},
		PoolAddress: testPool,
		Sender:      testTrader,
		Amount0:     big.NewInt(500),
		Amount1:     big.NewInt(20),
	})

	assert.Equal(t, 0, f.store.TradeCount())
}

// One router trade executes against the pool and produces both a router
// event and the pool's own Swap log. Whichever order they arrive in, exactly
// one trade survives and it carries the router source.
func TestRouterPoolDedup(t *testing.T) {
	routerEvent := func(logIndex int) *event.CurveTrade {
		return &event.CurveTrade{
			Meta:         event.Meta{TxHash: "0xtx-shared", LogIndex: logIndex, BlockNumber: 14, BlockTime: testTime},
			Source:       model.SourceDexRouter,
			Direction:    model.DirectionBuy,
			Sender:       testTrader,
			TokenAddress: testToken,
			AmountIn:     big.NewInt(20),
			AmountOut:    big.NewInt(500),
		}
	}
	poolEvent := func(logIndex int) *event.PoolSwap {
		return &event.PoolSwap{
			Meta:        event.Meta{TxHash: "0xtx-shared", LogIndex: logIndex, BlockNumber: 14, BlockTime: testTime},
			PoolAddress: testPool,
			Sender:      testTrader,
			Amount0:     big.NewInt(-500),
			Amount1:     big.NewInt(20),
		}
	}

	t.Run("router first suppresses the pool swap", func(t *testing.T) {
		ctx := context.Background()
		f := newFixture(t)
		f.mustApply(t, marketCreated(10, 0, testPool))
		f.mustApply(t, routerEvent(2), poolEvent(3))

		trades, err := f.store.Trades().ListByToken(ctx, testToken)
		require.NoError(t, err)
		require.Len(t, trades, 1)
		assert.Equal(t, model.SourceDexRouter, trades[0].Source)
	})

	t.Run("pool first is overwritten by the router", func(t *testing.T) {
		ctx := context.Background()
		f := newFixture(t)
		f.mustApply(t, marketCreated(10, 0, testPool))
		f.mustApply(t, poolEvent(2), routerEvent(3))

		trades, err := f.store.Trades().ListByToken(ctx, testToken)
		require.NoError(t, err)
		require.Len(t, trades, 1)
		assert.Equal(t, model.SourceDexRouter, trades[0].Source)
	})
}

func TestApplyTokenTransfer(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.mustApply(t, marketCreated(10, 0, ""))

	mint := &event.TokenTransfer{
		Meta:         event.Meta{TxHash: "0xtx-mint", LogIndex: 1, BlockNumber: 11, BlockTime: testTime},
		TokenAddress: testToken,
		From:         model.ZeroAddress,
		To:           testTrader,
		Value:        big.NewInt(1000),
	}
	move := &event.TokenTransfer{
		Meta:         event.Meta{TxHash: "0xtx-move", LogIndex: 2, BlockNumber: 12, BlockTime: testTime},
		TokenAddress: testToken,
		From:         testTrader,
		To:           testTrader2,
		Value:        big.NewInt(400),
	}
	f.mustApply(t, mint, move)

	sender, err := f.store.Holdings().Find(ctx, testTrader, testToken)
	require.NoError(t, err)
	require.NotNil(t, sender)
	assert.Equal(t, "600", sender.CurrentBalance)

	receiver, err := f.store.Holdings().Find(ctx, testTrader2, testToken)
	require.NoError(t, err)
	require.NotNil(t, receiver)
	assert.Equal(t, "400", receiver.CurrentBalance)

	// The mint's zero-address side never gets a row.
	minter, err := f.store.Holdings().Find(ctx, model.ZeroAddress, testToken)
	require.NoError(t, err)
	assert.Nil(t, minter)

	transfers, err := f.store.Transfers().ListByToken(ctx, testToken)
	require.NoError(t, err)
	assert.Len(t, transfers, 2)
}

func TestApplyTokenTransferUnknownTokenDropped(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	f.mustApply(t, &event.TokenTransfer{
		Meta:         event.Meta{TxHash: "0xtx", LogIndex: 1, BlockNumber: 11, BlockTime: testTime},
		TokenAddress: testToken,
		From:         testTrader,
		To:           testTrader2,
		Value:        big.NewInt(400),
	})

	assert.Equal(t, 0, f.store.HoldingCount())
	transfers, err := f.store.Transfers().ListByToken(ctx, testToken)
	require.NoError(t, err)
	assert.Empty(t, transfers)
}

func TestApplyBurnDebitsOnlySender(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.mustApply(t, marketCreated(10, 0, ""))

	f.mustApply(t,
		&event.TokenTransfer{
			Meta:         event.Meta{TxHash: "0xtx-mint", LogIndex: 1, BlockNumber: 11, BlockTime: testTime},
			TokenAddress: testToken,
			From:         model.ZeroAddress,
			To:           testTrader,
			Value:        big.NewInt(1000),
		},
		&event.TokenTransfer{
			Meta:         event.Meta{TxHash: "0xtx-burn", LogIndex: 2, BlockNumber: 12, BlockTime: testTime},
			TokenAddress: testToken,
			From:         testTrader,
			To:           model.ZeroAddress,
			Value:        big.NewInt(300),
		},
	)

	holding, err := f.store.Holdings().Find(ctx, testTrader, testToken)
	require.NoError(t, err)
	require.NotNil(t, holding)
	assert.Equal(t, "700", holding.CurrentBalance)
	assert.Equal(t, 1, f.store.HoldingCount())
}

// Replaying the identical event stream against the same store leaves every
// table unchanged: trades and transfers upsert on their natural keys and a
// replayed transfer skips the holdings fold.
func TestReplayIsIdempotent(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	events := []event.Event{
		marketCreated(10, 0, testPool),
		&event.TokenTransfer{
			Meta:         event.Meta{TxHash: "0xtx-mint", LogIndex: 1, BlockNumber: 11, BlockTime: testTime},
			TokenAddress: testToken,
			From:         model.ZeroAddress,
			To:           testTrader,
			Value:        big.NewInt(1000),
		},
		&event.CurveTrade{
			Meta:         event.Meta{TxHash: "0xtx-buy", LogIndex: 2, BlockNumber: 11, BlockTime: testTime},
			Source:       model.SourceBondingCurve,
			Direction:    model.DirectionBuy,
			Sender:       testTrader,
			TokenAddress: testToken,
			AmountIn:     big.NewInt(100),
			AmountOut:    big.NewInt(50),
		},
		&event.PoolSwap{
			Meta:        event.Meta{TxHash: "0xtx-swap", LogIndex: 3, BlockNumber: 12, BlockTime: testTime},
			PoolAddress: testPool,
			Sender:      testTrader2,
			Amount0:     big.NewInt(-500),
			Amount1:     big.NewInt(20),
		},
	}

	f.mustApply(t, events...)
	f.mustApply(t, events...)

	assert.Equal(t, 2, f.store.TradeCount())

	holding, err := f.store.Holdings().Find(ctx, testTrader, testToken)
	require.NoError(t, err)
	require.NotNil(t, holding)
	assert.Equal(t, "1000", holding.CurrentBalance)

	transfers, err := f.store.Transfers().ListByToken(ctx, testToken)
	require.NoError(t, err)
	assert.Len(t, transfers, 1)
}
