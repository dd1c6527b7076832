package ledger

import (
	"context"
	"testing"

	"github.com/nadscan/tradeledger/internal/domain/model"
	"github.com/nadscan/tradeledger/internal/store/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPoolRegistryRegisterResolve(t *testing.T) {
	r := NewPoolRegistry()

	r.Register("0xPOOLaaaa", "0xTOKENaaaa", true)

	binding, ok := r.Resolve("0xpoolaaaa")
	require.True(t, ok)
	assert.Equal(t, "0xtokenaaaa", binding.TokenAddress)
	assert.True(t, binding.TokenIsAsset0)

	// Lookup is case-insensitive in both directions.
	binding, ok = r.Resolve("0XPOOLAAAA")
	require.True(t, ok)
	assert.Equal(t, "0xtokenaaaa", binding.TokenAddress)

	_, ok = r.Resolve("0xdeadbeef")
	assert.False(t, ok)
}

func TestPoolRegistryEmptyPoolIgnored(t *testing.T) {
	r := NewPoolRegistry()
	r.Register("", "0xtoken", true)
	r.Register("   ", "0xtoken", true)
	assert.Equal(t, 0, r.Len())
}

func TestPoolRegistryReRegisterOverwrites(t *testing.T) {
	r := NewPoolRegistry()
	r.Register("0xpool", "0xtoken1", true)
	r.Register("0xpool", "0xtoken2", false)

	binding, ok := r.Resolve("0xpool")
	require.True(t, ok)
	assert.Equal(t, "0xtoken2", binding.TokenAddress)
	assert.False(t, binding.TokenIsAsset0)
	assert.Equal(t, 1, r.Len())
}

func TestPoolRegistryRebuild(t *testing.T) {
	ctx := context.Background()
	st := memory.New()

	pool1 := "0xPOOL1111"
	_, err := st.Tokens().UpsertTx(ctx, nil, &model.Token{
		Address:     "0xtoken1",
		Symbol:      "ONE",
		PoolAddress: &pool1,
	})
	require.NoError(t, err)

	// No pool yet: must not enter the registry.
	_, err = st.Tokens().UpsertTx(ctx, nil, &model.Token{
		Address: "0xtoken2",
		Symbol:  "TWO",
	})
	require.NoError(t, err)

	r := NewPoolRegistry()
	require.NoError(t, r.Rebuild(ctx, st.Tokens()))

	assert.Equal(t, 1, r.Len())
	binding, ok := r.Resolve("0xpool1111")
	require.True(t, ok)
	assert.Equal(t, "0xtoken1", binding.TokenAddress)
	assert.True(t, binding.TokenIsAsset0)
}
