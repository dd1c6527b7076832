// Command replay loads a JSONL file of wire envelopes, validates ordering,
// and optionally publishes them to the Redis stream the pipeline consumes.
// It exists for backfills: replaying a recorded event history from genesis
// rebuilds an identical ledger, because every write is an upsert keyed by
// deterministic identifiers.
//
// Usage:
//
//	replay -file events.jsonl -dry-run
//	replay -file events.jsonl -redis-url redis://localhost:6379 -stream-key tradeledger:events
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/nadscan/tradeledger/internal/domain/event"
	"github.com/nadscan/tradeledger/internal/stream"
)

func main() {
	var (
		file      = flag.String("file", "", "path to a JSONL file of wire envelopes (required)")
		redisURL  = flag.String("redis-url", "redis://localhost:6379", "redis connection URL")
		streamKey = flag.String("stream-key", "tradeledger:events", "redis stream key to publish into")
		dryRun    = flag.Bool("dry-run", false, "decode and validate only, publish nothing")
	)
	flag.Parse()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	if err := run(*file, *redisURL, *streamKey, *dryRun, logger); err != nil {
		logger.Error("replay failed", "error", err)
		os.Exit(1)
	}
}

func run(file, redisURL, streamKey string, dryRun bool, logger *slog.Logger) error {
	if file == "" {
		return fmt.Errorf("-file is required")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	f, err := os.Open(file)
	if err != nil {
		return fmt.Errorf("open %s: %w", file, err)
	}
	defer f.Close()

	var publisher *stream.RedisStream
	if !dryRun {
		publisher, err = stream.NewRedisStream(redisURL, streamKey)
		if err != nil {
			return fmt.Errorf("connect redis: %w", err)
		}
		defer publisher.Close()
	}

	var (
		lastCursor *event.Cursor
		byKind     = make(map[event.Kind]int)
		line       int
		violations int
	)

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		line++
		if err := ctx.Err(); err != nil {
			return err
		}
		raw := scanner.Bytes()
		if len(raw) == 0 {
			continue
		}

		ev, err := event.Decode(raw)
		if err != nil {
			return fmt.Errorf("line %d: %w", line, err)
		}

		cursor := ev.Cursor()
		if lastCursor != nil && !cursor.After(*lastCursor) {
			violations++
			logger.Warn("ordering violation in input",
				"line", line,
				"block", cursor.BlockNumber,
				"log_index", cursor.LogIndex,
			)
		}
		lastCursor = &cursor
		byKind[ev.Kind()]++

		if publisher != nil {
			if err := publisher.Publish(ctx, ev); err != nil {
				return fmt.Errorf("line %d: publish: %w", line, err)
			}
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("read %s: %w", file, err)
	}

	for kind, count := range byKind {
		logger.Info("replay summary", "kind", kind, "count", count)
	}
	logger.Info("replay finished",
		"lines", line,
		"ordering_violations", violations,
		"published", publisher != nil,
	)
	if violations > 0 {
		return fmt.Errorf("input contains %d ordering violations; the pipeline will halt on the first one", violations)
	}
	return nil
}
