package stream

import (
	"context"
	"io"
	"math/big"
	"testing"
	"time"

	"github.com/nadscan/tradeledger/internal/domain/event"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStreamOrderAndEOF(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStream(8)

	for i := 0; i < 3; i++ {
		s.Publish(&event.TokenTransfer{
			Meta:         event.Meta{TxHash: "0xtx", LogIndex: i, BlockNumber: 1},
			TokenAddress: "0xtoken",
			From:         "0xa",
			To:           "0xb",
			Value:        big.NewInt(int64(i)),
		})
	}
	s.Close()

	for i := 0; i < 3; i++ {
		ev, err := s.Next(ctx)
		require.NoError(t, err)
		assert.Equal(t, i, ev.Cursor().LogIndex)
	}

	_, err := s.Next(ctx)
	assert.ErrorIs(t, err, io.EOF)

	// Close is safe to call twice.
	s.Close()
}

func TestMemoryStreamNextHonorsContext(t *testing.T) {
	s := NewMemoryStream(1)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	_, err := s.Next(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
