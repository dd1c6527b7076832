// Package pipeline drains the ordered event feed into the ledger. It is the
// single writer: one event is fully applied before the next is read, which
// is the only concurrency control the core relies on.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/nadscan/tradeledger/internal/domain/event"
	"github.com/nadscan/tradeledger/internal/metrics"
	"github.com/nadscan/tradeledger/internal/pipeline/retry"
)

// ErrOrderingViolation signals that the upstream feed broke its ordering
// guarantee (an event arrived at or before the last seen cursor). The core
// cannot reconcile out-of-order or redelivered events, so the stream halts.
var ErrOrderingViolation = errors.New("event stream ordering violation")

// Source yields decoded events in chain order. Next blocks until an event
// is available, the context is done, or the source is exhausted (io.EOF).
type Source interface {
	Next(ctx context.Context) (event.Event, error)
}

// Applier reconciles one event. Satisfied by *ledger.Ledger.
type Applier interface {
	Apply(ctx context.Context, ev event.Event) error
}

const (
	defaultRetryMaxAttempts = 3
	defaultRetryDelayStart  = 100 * time.Millisecond
	defaultRetryDelayMax    = 2 * time.Second
)

type Consumer struct {
	source           Source
	ledger           Applier
	logger           *slog.Logger
	retryMaxAttempts int
	retryDelayStart  time.Duration
	retryDelayMax    time.Duration
	sleepFn          func(context.Context, time.Duration) error

	lastCursor *event.Cursor
}

type Option func(*Consumer)

func WithRetryConfig(maxAttempts int, delayStart, delayMax time.Duration) Option {
	return func(c *Consumer) {
		c.retryMaxAttempts = maxAttempts
		c.retryDelayStart = delayStart
		c.retryDelayMax = delayMax
	}
}

func NewConsumer(source Source, ledger Applier, logger *slog.Logger, opts ...Option) *Consumer {
	c := &Consumer{
		source:           source,
		ledger:           ledger,
		logger:           logger.With("component", "consumer"),
		retryMaxAttempts: defaultRetryMaxAttempts,
		retryDelayStart:  defaultRetryDelayStart,
		retryDelayMax:    defaultRetryDelayMax,
		sleepFn:          sleepContext,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}
	return c
}

// Run consumes the source until it is exhausted, the context ends, or a
// terminal fault occurs. Returns nil on clean exhaustion.
func (c *Consumer) Run(ctx context.Context) error {
	c.logger.Info("consumer started")

	for {
		ev, err := c.source.Next(ctx)
		if err != nil {
			if errors.Is(err, io.EOF) {
				c.logger.Info("event source exhausted")
				return nil
			}
			if errors.Is(err, context.Canceled) {
				return err
			}
			return fmt.Errorf("read event: %w", err)
		}

		if err := c.checkOrder(ev); err != nil {
			return err
		}

		if err := c.applyWithRetry(ctx, ev); err != nil {
			metrics.EventsFailed.WithLabelValues(string(ev.Kind())).Inc()
			return err
		}

		cursor := ev.Cursor()
		c.lastCursor = &cursor
	}
}

// checkOrder enforces strictly increasing (block, logIndex) cursors. Equal
// cursors mean redelivery; regressions mean reordering. Both are fatal.
func (c *Consumer) checkOrder(ev event.Event) error {
	if c.lastCursor == nil {
		return nil
	}
	cursor := ev.Cursor()
	if cursor.After(*c.lastCursor) {
		return nil
	}
	metrics.OrderingViolations.Inc()
	c.logger.Error("ordering violation",
		"kind", ev.Kind(),
		"tx_hash", ev.TxID(),
		"block", cursor.BlockNumber,
		"log_index", cursor.LogIndex,
		"last_block", c.lastCursor.BlockNumber,
		"last_log_index", c.lastCursor.LogIndex,
	)
	return fmt.Errorf("%w: cursor (%d,%d) after (%d,%d)",
		ErrOrderingViolation,
		cursor.BlockNumber, cursor.LogIndex,
		c.lastCursor.BlockNumber, c.lastCursor.LogIndex,
	)
}

func (c *Consumer) applyWithRetry(ctx context.Context, ev event.Event) error {
	delay := c.retryDelayStart
	var lastErr error

	for attempt := 1; attempt <= c.retryMaxAttempts; attempt++ {
		lastErr = c.ledger.Apply(ctx, ev)
		if lastErr == nil {
			return nil
		}

		decision := retry.Classify(lastErr)
		if !decision.IsTransient() {
			return fmt.Errorf("apply %s: %w", ev.Kind(), lastErr)
		}

		c.logger.Warn("transient apply failure, retrying",
			"kind", ev.Kind(),
			"tx_hash", ev.TxID(),
			"attempt", attempt,
			"reason", decision.Reason,
			"error", lastErr,
		)

		if attempt == c.retryMaxAttempts {
			break
		}
		if err := c.sleepFn(ctx, delay); err != nil {
			return err
		}
		delay *= 2
		if delay > c.retryDelayMax {
			delay = c.retryDelayMax
		}
	}
	return fmt.Errorf("apply %s after %d attempts: %w", ev.Kind(), c.retryMaxAttempts, lastErr)
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
