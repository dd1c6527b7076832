package ledger

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"math/big"
	"time"

	"github.com/nadscan/tradeledger/internal/domain/event"
	"github.com/nadscan/tradeledger/internal/domain/model"
	"github.com/nadscan/tradeledger/internal/metrics"
	"github.com/nadscan/tradeledger/internal/store"
	"github.com/nadscan/tradeledger/internal/tracing"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

// Drop reasons, used for logging and metrics labels.
const (
	dropUnknownToken     = "unknown_token"
	dropUnknownPool      = "unknown_pool"
	dropUnresolvableSwap = "unresolvable_swap"
)

// Ledger is the reconciliation dispatcher. Each event is applied in its own
// database transaction: registry lookups, classification, the dedup check,
// and the resulting writes either all land or none do. It is a single
// writer; ordering is guaranteed upstream, so no locking happens here.
type Ledger struct {
	db        store.TxBeginner
	wallets   store.WalletRepository
	tokens    store.TokenRepository
	trades    store.TradeRepository
	transfers store.TransferRepository
	holdings  *HoldingsLedger
	pools     PoolRegistry
	dedup     *Deduplicator
	logger    *slog.Logger
}

func New(
	db store.TxBeginner,
	wallets store.WalletRepository,
	tokens store.TokenRepository,
	trades store.TradeRepository,
	transfers store.TransferRepository,
	holdings store.HoldingRepository,
	pools PoolRegistry,
	logger *slog.Logger,
) *Ledger {
	return &Ledger{
		db:        db,
		wallets:   wallets,
		tokens:    tokens,
		trades:    trades,
		transfers: transfers,
		holdings:  NewHoldingsLedger(holdings),
		pools:     pools,
		dedup:     NewDeduplicator(trades),
		logger:    logger.With("component", "ledger"),
	}
}

// Apply reconciles one event into the ledger. Routine "nothing to do"
// conditions (unknown token, unknown pool, unresolvable swap, suppressed
// duplicate) return nil; only store failures propagate.
func (l *Ledger) Apply(ctx context.Context, ev event.Event) error {
	spanCtx, span := tracing.Tracer("ledger").Start(ctx, "ledger.apply")
	span.SetAttributes(
		attribute.String("event.kind", string(ev.Kind())),
		attribute.String("event.tx_hash", ev.TxID()),
	)
	defer span.End()

	start := time.Now()
	err := l.applyInTx(spanCtx, ev)
	metrics.ApplyLatency.WithLabelValues(string(ev.Kind())).Observe(time.Since(start).Seconds())
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "apply failed")
		return err
	}
	metrics.EventsProcessed.WithLabelValues(string(ev.Kind())).Inc()
	return nil
}

func (l *Ledger) applyInTx(ctx context.Context, ev event.Event) error {
	tx, err := l.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	switch e := ev.(type) {
	case *event.MarketCreated:
		err = l.applyMarketCreated(ctx, tx, e)
	case *event.CurveTrade:
		err = l.applyCurveTrade(ctx, tx, e)
	case *event.AggregatorSwap:
		err = l.applyAggregatorSwap(ctx, tx, e)
	case *event.PoolSwap:
		err = l.applyPoolSwap(ctx, tx, e)
	case *event.TokenTransfer:
		err = l.applyTokenTransfer(ctx, tx, e)
	default:
		return fmt.Errorf("apply: unknown event type %T", ev)
	}
	if err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// applyMarketCreated registers a new token and, when the market already has
// a pool, binds it in the pool registry. Both ride on the single token row,
// so a creation is never half-applied.
func (l *Ledger) applyMarketCreated(ctx context.Context, tx *sql.Tx, e *event.MarketCreated) error {
	if _, err := l.wallets.GetOrCreateTx(ctx, tx, e.Creator); err != nil {
		return fmt.Errorf("get or create creator wallet: %w", err)
	}

	token := &model.Token{
		Address:        e.TokenAddress,
		Name:           e.Name,
		Symbol:         e.Symbol,
		CreatorAddress: e.Creator,
		TotalSupply:    e.TotalSupply.String(),
		CreationTime:   e.BlockTime,
	}
	if e.PoolAddress != "" {
		pool := e.PoolAddress
		token.PoolAddress = &pool
	}
	if _, err := l.tokens.UpsertTx(ctx, tx, token); err != nil {
		return fmt.Errorf("upsert token: %w", err)
	}

	if e.PoolAddress != "" {
		l.pools.Register(e.PoolAddress, e.TokenAddress, true)
	}

	l.logger.Info("market created",
		"token", e.TokenAddress,
		"symbol", e.Symbol,
		"creator", e.Creator,
		"pool", e.PoolAddress,
	)
	return nil
}

// applyCurveTrade records an explicit-direction trade from the bonding
// curve or the DEX router.
func (l *Ledger) applyCurveTrade(ctx context.Context, tx *sql.Tx, e *event.CurveTrade) error {
	token, err := l.tokens.FindByAddressTx(ctx, tx, e.TokenAddress)
	if err != nil {
		return fmt.Errorf("find token: %w", err)
	}
	if token == nil {
		l.drop(e, dropUnknownToken, "token", e.TokenAddress)
		return nil
	}

	trader, err := l.wallets.GetOrCreateTx(ctx, tx, e.Sender)
	if err != nil {
		return fmt.Errorf("get or create trader wallet: %w", err)
	}

	cls := ClassifyExplicit(e.Direction, e.AmountIn, e.AmountOut)
	return l.recordTrade(ctx, tx, &model.Trade{
		TxHash:        e.TxHash,
		LogIndex:      e.LogIndex,
		TokenAddress:  token.Address,
		TraderAddress: trader.Address,
		Direction:     cls.Direction,
		Source:        e.Source,
		TokenAmount:   cls.TokenAmount.String(),
		MonAmount:     cls.MonAmount.String(),
		BlockNumber:   e.BlockNumber,
		BlockTime:     e.BlockTime,
	}, false)
}

// applyAggregatorSwap records up to two trades from one aggregator event:
// a SELL leg when tokenIn is tracked and a BUY leg when tokenOut is. Both
// legs are genuine trades; they are not subject to the dedup check.
func (l *Ledger) applyAggregatorSwap(ctx context.Context, tx *sql.Tx, e *event.AggregatorSwap) error {
	tokenIn, err := l.tokens.FindByAddressTx(ctx, tx, e.TokenIn)
	if err != nil {
		return fmt.Errorf("find tokenIn: %w", err)
	}
	tokenOut, err := l.tokens.FindByAddressTx(ctx, tx, e.TokenOut)
	if err != nil {
		return fmt.Errorf("find tokenOut: %w", err)
	}
	if tokenIn == nil && tokenOut == nil {
		l.drop(e, dropUnknownToken, "token_in", e.TokenIn, "token_out", e.TokenOut)
		return nil
	}

	trader, err := l.wallets.GetOrCreateTx(ctx, tx, e.Sender)
	if err != nil {
		return fmt.Errorf("get or create trader wallet: %w", err)
	}

	if tokenIn != nil {
		cls := ClassifyExplicit(model.DirectionSell, e.AmountIn, e.AmountOut)
		if err := l.recordTrade(ctx, tx, &model.Trade{
			TxHash:        e.TxHash,
			LogIndex:      e.LogIndex,
			TokenAddress:  tokenIn.Address,
			TraderAddress: trader.Address,
			Direction:     cls.Direction,
			Source:        model.SourceAggregator,
			TokenAmount:   cls.TokenAmount.String(),
			MonAmount:     cls.MonAmount.String(),
			BlockNumber:   e.BlockNumber,
			BlockTime:     e.BlockTime,
		}, false); err != nil {
			return err
		}
	}

	if tokenOut != nil {
		cls := ClassifyExplicit(model.DirectionBuy, e.AmountIn, e.AmountOut)
		if err := l.recordTrade(ctx, tx, &model.Trade{
			TxHash:        e.TxHash,
			LogIndex:      e.LogIndex,
			TokenAddress:  tokenOut.Address,
			TraderAddress: trader.Address,
			Direction:     cls.Direction,
			Source:        model.SourceAggregator,
			TokenAmount:   cls.TokenAmount.String(),
			MonAmount:     cls.MonAmount.String(),
			BlockNumber:   e.BlockNumber,
			BlockTime:     e.BlockTime,
		}, false); err != nil {
			return err
		}
	}
	return nil
}

// applyPoolSwap classifies a signed-delta pool swap, then runs the dedup
// check before writing: a router trade for the same (tx, token) wins.
func (l *Ledger) applyPoolSwap(ctx context.Context, tx *sql.Tx, e *event.PoolSwap) error {
	binding, ok := l.pools.Resolve(e.PoolAddress)
	if !ok {
		l.drop(e, dropUnknownPool, "pool", e.PoolAddress)
		return nil
	}

	token, err := l.tokens.FindByAddressTx(ctx, tx, binding.TokenAddress)
	if err != nil {
		return fmt.Errorf("find token: %w", err)
	}
	if token == nil {
		l.drop(e, dropUnknownToken, "pool", e.PoolAddress, "token", binding.TokenAddress)
		return nil
	}

	cls, ok := ClassifyPoolSwap(e.Amount0, e.Amount1, binding.TokenIsAsset0)
	if !ok {
		l.drop(e, dropUnresolvableSwap,
			"pool", e.PoolAddress,
			"amount0", e.Amount0.String(),
			"amount1", e.Amount1.String(),
		)
		return nil
	}

	suppress, err := l.dedup.ShouldSuppress(ctx, tx, e.TxHash, token.Address)
	if err != nil {
		return err
	}
	if suppress {
		metrics.TradesSuppressed.Inc()
		l.logger.Debug("pool trade suppressed by higher-priority source",
			"tx_hash", e.TxHash, "token", token.Address)
		return nil
	}

	trader, err := l.wallets.GetOrCreateTx(ctx, tx, e.Sender)
	if err != nil {
		return fmt.Errorf("get or create trader wallet: %w", err)
	}

	return l.recordTrade(ctx, tx, &model.Trade{
		TxHash:        e.TxHash,
		LogIndex:      e.LogIndex,
		TokenAddress:  token.Address,
		TraderAddress: trader.Address,
		Direction:     cls.Direction,
		Source:        model.SourceUniswapPool,
		TokenAmount:   cls.TokenAmount.String(),
		MonAmount:     cls.MonAmount.String(),
		BlockNumber:   e.BlockNumber,
		BlockTime:     e.BlockTime,
	}, true)
}

// applyTokenTransfer records the transfer and folds its delta into both
// sides of the holdings ledger, skipping the zero-address sentinel.
func (l *Ledger) applyTokenTransfer(ctx context.Context, tx *sql.Tx, e *event.TokenTransfer) error {
	token, err := l.tokens.FindByAddressTx(ctx, tx, e.TokenAddress)
	if err != nil {
		return fmt.Errorf("find token: %w", err)
	}
	if token == nil {
		l.drop(e, dropUnknownToken, "token", e.TokenAddress)
		return nil
	}

	if _, err := l.wallets.GetOrCreateTx(ctx, tx, e.From); err != nil {
		return fmt.Errorf("get or create sender wallet: %w", err)
	}
	if _, err := l.wallets.GetOrCreateTx(ctx, tx, e.To); err != nil {
		return fmt.Errorf("get or create receiver wallet: %w", err)
	}

	inserted, err := l.transfers.UpsertTx(ctx, tx, &model.Transfer{
		TxHash:       e.TxHash,
		LogIndex:     e.LogIndex,
		TokenAddress: token.Address,
		FromAddress:  e.From,
		ToAddress:    e.To,
		Amount:       e.Value.String(),
		BlockNumber:  e.BlockNumber,
		BlockTime:    e.BlockTime,
	})
	if err != nil {
		return fmt.Errorf("upsert transfer: %w", err)
	}
	if !inserted {
		// Replayed transfer. The holdings deltas were already folded in
		// the first time around.
		l.logger.Debug("transfer already recorded", "tx_hash", e.TxHash, "log_index", e.LogIndex)
		return nil
	}

	neg := new(big.Int).Neg(e.Value)
	if err := l.holdings.ApplyDelta(ctx, tx, e.From, token.Address, neg, e.BlockTime); err != nil {
		return fmt.Errorf("apply sender delta: %w", err)
	}
	if err := l.holdings.ApplyDelta(ctx, tx, e.To, token.Address, e.Value, e.BlockTime); err != nil {
		return fmt.Errorf("apply receiver delta: %w", err)
	}
	metrics.HoldingsUpdates.Inc()
	return nil
}

func (l *Ledger) recordTrade(ctx context.Context, tx *sql.Tx, t *model.Trade, poolSourced bool) error {
	var err error
	if poolSourced {
		err = l.trades.InsertIgnoreTx(ctx, tx, t)
	} else {
		err = l.trades.UpsertTx(ctx, tx, t)
	}
	if err != nil {
		return fmt.Errorf("record trade: %w", err)
	}
	metrics.TradesRecorded.WithLabelValues(string(t.Source), string(t.Direction)).Inc()
	return nil
}

func (l *Ledger) drop(ev event.Event, reason string, args ...any) {
	metrics.EventsDropped.WithLabelValues(string(ev.Kind()), reason).Inc()
	fields := append([]any{"kind", ev.Kind(), "reason", reason, "tx_hash", ev.TxID()}, args...)
	l.logger.Debug("event dropped", fields...)
}
