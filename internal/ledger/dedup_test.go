package ledger

import (
	"context"
	"testing"

	"github.com/nadscan/tradeledger/internal/domain/model"
	"github.com/nadscan/tradeledger/internal/store/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDeduplicatorShouldSuppress(t *testing.T) {
	ctx := context.Background()
	st := memory.New()
	d := NewDeduplicator(st.Trades())
	tx, err := st.BeginTx(ctx, nil)
	require.NoError(t, err)

	suppress, err := d.ShouldSuppress(ctx, tx, "0xtx", testToken)
	require.NoError(t, err)
	assert.False(t, suppress)

	require.NoError(t, st.Trades().UpsertTx(ctx, tx, &model.Trade{
		TxHash:       "0xtx",
		TokenAddress: testToken,
		Direction:    model.DirectionBuy,
		Source:       model.SourceDexRouter,
		TokenAmount:  "1",
		MonAmount:    "1",
	}))

	suppress, err = d.ShouldSuppress(ctx, tx, "0xtx", testToken)
	require.NoError(t, err)
	assert.True(t, suppress)

	// The key is the pair, not the transaction alone.
	suppress, err = d.ShouldSuppress(ctx, tx, "0xtx", testToken2)
	require.NoError(t, err)
	assert.False(t, suppress)
}
