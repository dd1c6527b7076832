// Package feed connects to the event-subscription collaborator's WebSocket
// endpoint and exposes it as a pipeline source. The feed reconnects on
// transport faults; ordering is still verified downstream, so a reconnect
// that replays an already-seen event halts the stream rather than
// corrupting the ledger.
package feed

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/gorilla/websocket"
	"github.com/nadscan/tradeledger/internal/circuitbreaker"
	"github.com/nadscan/tradeledger/internal/domain/event"
	"github.com/nadscan/tradeledger/internal/metrics"
)

const (
	handshakeTimeout = 10 * time.Second
	readTimeout      = 60 * time.Second
	pingInterval     = 30 * time.Second
	reconnectDelay   = 5 * time.Second
)

type WebSocketSource struct {
	url     string
	logger  *slog.Logger
	breaker *circuitbreaker.Breaker
	events  chan event.Event
	errs    chan error
}

func NewWebSocketSource(url string, logger *slog.Logger) *WebSocketSource {
	log := logger.With("component", "feed")
	return &WebSocketSource{
		url:    url,
		logger: log,
		breaker: circuitbreaker.New(circuitbreaker.Config{
			FailureThreshold: 5,
			SuccessThreshold: 1,
			OpenTimeout:      time.Minute,
			OnStateChange: func(from, to circuitbreaker.State) {
				log.Warn("feed breaker state changed", "from", from.String(), "to", to.String())
				metrics.FeedBreakerState.Set(float64(to))
			},
		}),
		events: make(chan event.Event, 64),
		errs:   make(chan error, 1),
	}
}

// Run maintains the connection until the context ends. Transport faults
// trigger a reconnect; repeated dial failures trip a breaker that spaces out
// attempts. Decode faults are fatal, because a feed emitting undecodable
// envelopes cannot be trusted to uphold its contract.
func (s *WebSocketSource) Run(ctx context.Context) error {
	for {
		err := s.session(ctx)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		select {
		case fatal := <-s.errs:
			return fatal
		default:
		}

		if !errors.Is(err, circuitbreaker.ErrOpen) {
			s.logger.Warn("feed connection lost, reconnecting",
				"url", s.url,
				"delay", reconnectDelay,
				"error", err,
			)
			metrics.FeedReconnects.Inc()
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(reconnectDelay):
		}
	}
}

// session dials one connection and consumes it until a transport fault.
func (s *WebSocketSource) session(ctx context.Context) error {
	if err := s.breaker.Allow(); err != nil {
		return err
	}

	dialer := websocket.Dialer{HandshakeTimeout: handshakeTimeout}
	conn, _, err := dialer.DialContext(ctx, s.url, nil)
	if err != nil {
		s.breaker.RecordFailure()
		return fmt.Errorf("dial feed: %w", err)
	}
	defer conn.Close()

	s.breaker.RecordSuccess()
	s.logger.Info("feed connected", "url", s.url)

	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(readTimeout))
	})

	pingCtx, cancelPing := context.WithCancel(ctx)
	defer cancelPing()
	go s.keepAlive(pingCtx, conn)

	for {
		if err := conn.SetReadDeadline(time.Now().Add(readTimeout)); err != nil {
			return fmt.Errorf("set read deadline: %w", err)
		}
		_, data, err := conn.ReadMessage()
		if err != nil {
			return fmt.Errorf("read feed: %w", err)
		}

		ev, err := event.Decode(data)
		if err != nil {
			fatal := fmt.Errorf("feed sent undecodable event: %w", err)
			select {
			case s.errs <- fatal:
			default:
			}
			return fatal
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case s.events <- ev:
		}
	}
}

func (s *WebSocketSource) keepAlive(ctx context.Context, conn *websocket.Conn) {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			deadline := time.Now().Add(handshakeTimeout)
			if err := conn.WriteControl(websocket.PingMessage, nil, deadline); err != nil {
				return
			}
		}
	}
}

// Next yields the next feed event in arrival order.
func (s *WebSocketSource) Next(ctx context.Context) (event.Event, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case err := <-s.errs:
		return nil, err
	case ev := <-s.events:
		return ev, nil
	}
}
