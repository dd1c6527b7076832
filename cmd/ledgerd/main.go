package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/nadscan/tradeledger/internal/alert"
	"github.com/nadscan/tradeledger/internal/audit"
	"github.com/nadscan/tradeledger/internal/config"
	"github.com/nadscan/tradeledger/internal/feed"
	"github.com/nadscan/tradeledger/internal/ledger"
	"github.com/nadscan/tradeledger/internal/metrics"
	"github.com/nadscan/tradeledger/internal/pipeline"
	"github.com/nadscan/tradeledger/internal/store/cached"
	"github.com/nadscan/tradeledger/internal/store/postgres"
	"github.com/nadscan/tradeledger/internal/stream"
	"github.com/nadscan/tradeledger/internal/tracing"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"
)

func main() {
	if err := run(); err != nil {
		slog.Error("ledgerd exited with error", "error", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger := newLogger(cfg.Log.Level)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := tracing.Init(ctx, "tradeledger", cfg.Tracing.Endpoint, cfg.Tracing.Insecure)
	if err != nil {
		return fmt.Errorf("init tracing: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracing(shutdownCtx); err != nil {
			logger.Warn("tracing shutdown failed", "error", err)
		}
	}()

	db, err := postgres.New(postgres.Config{
		URL:             cfg.DB.URL,
		MaxOpenConns:    cfg.DB.MaxOpenConns,
		MaxIdleConns:    cfg.DB.MaxIdleConns,
		ConnMaxLifetime: cfg.DB.ConnMaxLifetime,
	})
	if err != nil {
		return fmt.Errorf("connect db: %w", err)
	}
	defer db.Close()

	if err := db.RunMigrations(cfg.DB.MigrationsDir); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}

	wallets := postgres.NewWalletRepo(db)
	tokens := cached.NewTokenRepo(postgres.NewTokenRepo(db), 10_000)
	trades := postgres.NewTradeRepo(db)
	transfers := postgres.NewTransferRepo(db)
	holdings := postgres.NewHoldingRepo(db)

	pools := ledger.NewPoolRegistry()
	if err := pools.Rebuild(ctx, tokens); err != nil {
		return fmt.Errorf("rebuild pool registry: %w", err)
	}
	logger.Info("pool registry rebuilt", "pools", pools.Len())

	led := ledger.New(db, wallets, tokens, trades, transfers, holdings, pools, logger)
	alerter := newAlerter(cfg, logger)

	source, closeSource, err := newSource(cfg, logger)
	if err != nil {
		return err
	}
	defer closeSource()

	consumer := pipeline.NewConsumer(source, led, logger,
		pipeline.WithRetryConfig(
			cfg.Pipeline.RetryMaxAttempts,
			time.Duration(cfg.Pipeline.RetryDelayMS)*time.Millisecond,
			time.Duration(cfg.Pipeline.RetryDelayMaxMS)*time.Millisecond,
		),
	)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		err := consumer.Run(gctx)
		if err != nil && gctx.Err() == nil {
			notifyPipelineFault(alerter, logger, err)
		}
		return err
	})

	if ws, ok := source.(*feed.WebSocketSource); ok {
		g.Go(func() error {
			return ws.Run(gctx)
		})
	}

	if cfg.Audit.Interval > 0 {
		auditor := audit.NewService(tokens, transfers, holdings, alerter, logger)
		g.Go(func() error {
			return auditor.RunPeriodic(gctx, cfg.Audit.Interval)
		})
		logger.Info("holdings audit enabled", "interval", cfg.Audit.Interval)
	}

	metricsSrv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.MetricsPort),
		Handler: promhttp.Handler(),
	}
	g.Go(func() error {
		logger.Info("metrics server listening", "port", cfg.Server.MetricsPort)
		if err := metricsSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("metrics server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return metricsSrv.Shutdown(shutdownCtx)
	})

	g.Go(func() error {
		ticker := time.NewTicker(15 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-gctx.Done():
				return nil
			case <-ticker.C:
				stats := db.Stats()
				metrics.DBPoolOpen.Set(float64(stats.OpenConnections))
				metrics.DBPoolInUse.Set(float64(stats.InUse))
				metrics.DBPoolIdle.Set(float64(stats.Idle))
			}
		}
	})

	logger.Info("ledgerd started", "source", cfg.Pipeline.Source)
	err = g.Wait()
	if err != nil && err != context.Canceled {
		return err
	}
	logger.Info("ledgerd stopped")
	return nil
}

func newAlerter(cfg *config.Config, logger *slog.Logger) alert.Alerter {
	var channels []alert.Alerter
	if cfg.Alert.SlackWebhookURL != "" {
		channels = append(channels, alert.NewSlackAlerter(cfg.Alert.SlackWebhookURL))
	}
	if cfg.Alert.WebhookURL != "" {
		channels = append(channels, alert.NewWebhookAlerter(cfg.Alert.WebhookURL))
	}
	if len(channels) == 0 {
		return &alert.NoopAlerter{}
	}
	return alert.NewMultiAlerter(cfg.Alert.Cooldown, logger, channels...)
}

func notifyPipelineFault(alerter alert.Alerter, logger *slog.Logger, cause error) {
	typ := alert.AlertTypePipelineHalted
	if errors.Is(cause, pipeline.ErrOrderingViolation) {
		typ = alert.AlertTypeOrderingViolation
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := alerter.Send(ctx, alert.Alert{
		Type:    typ,
		Title:   "event pipeline stopped",
		Message: cause.Error(),
	}); err != nil {
		logger.Warn("pipeline fault alert failed", "error", err)
	}
}

func newSource(cfg *config.Config, logger *slog.Logger) (pipeline.Source, func(), error) {
	switch cfg.Pipeline.Source {
	case config.SourceRedis:
		rs, err := stream.NewRedisStream(cfg.Redis.URL, cfg.Redis.StreamKey)
		if err != nil {
			return nil, nil, fmt.Errorf("connect redis stream: %w", err)
		}
		return rs, func() { rs.Close() }, nil
	case config.SourceWebSocket:
		ws := feed.NewWebSocketSource(cfg.Feed.WSURL, logger)
		return ws, func() {}, nil
	default:
		return nil, nil, fmt.Errorf("unknown pipeline source %q", cfg.Pipeline.Source)
	}
}

func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	switch strings.ToLower(level) {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: lvl}))
}
