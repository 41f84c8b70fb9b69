package clmm

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func nftFixture(t *testing.T) (*CorePool, *TokenPositionManager) {
	t.Helper()
	pool := scenarioPool(t)
	tpm := NewTokenPositionManager()
	tpm.RegisterPool(pool)
	return pool, tpm
}

func TestNFT_Mint_BindsTokenToPoolRange(t *testing.T) {
	_, tpm := nftFixture(t)
	tokenID, amount0, amount1, err := tpm.Mint("alice", "0xpool", -600, 600, decimal.NewFromInt(1_000_000))
	require.NoError(t, err)
	assert.Equal(t, uint64(1), tokenID)
	assert.True(t, amount0.IsPositive())
	assert.True(t, amount1.IsPositive())
	assert.Equal(t, []*TokenPosition{tpm.Tokens[tokenID]}, tpm.PositionsByOwner("alice"))
}

func TestNFT_SameRangeRemintsAreDistinctPositions(t *testing.T) {
	pool, tpm := nftFixture(t)
	id1, _, _, err := tpm.Mint("alice", "0xpool", -600, 600, decimal.NewFromInt(1_000_000))
	require.NoError(t, err)
	id2, _, _, err := tpm.Mint("alice", "0xpool", -600, 600, decimal.NewFromInt(1_000_000))
	require.NoError(t, err)
	assert.NotEqual(t, id1, id2)

	pos1 := pool.GetPositionData(tokenIDKey(id1), -600, 600)
	pos2 := pool.GetPositionData(tokenIDKey(id2), -600, 600)
	assert.True(t, pos1.Liquidity.Equal(decimal.NewFromInt(1_000_000)))
	assert.True(t, pos2.Liquidity.Equal(decimal.NewFromInt(1_000_000)))
	assert.True(t, pool.Liquidity.Equal(decimal.NewFromInt(2_000_000)), "both positions contribute independently")
}

func TestNFT_Transfer_RequiresOwnership(t *testing.T) {
	_, tpm := nftFixture(t)
	tokenID, _, _, err := tpm.Mint("alice", "0xpool", -600, 600, decimal.NewFromInt(1_000_000))
	require.NoError(t, err)

	err = tpm.Transfer(tokenID, "bob", "carol")
	require.ErrorIs(t, err, ErrUnauthorized)

	require.NoError(t, tpm.Transfer(tokenID, "alice", "bob"))
	assert.Equal(t, "bob", tpm.Tokens[tokenID].Owner)
	assert.Empty(t, tpm.PositionsByOwner("alice"))
	assert.Len(t, tpm.PositionsByOwner("bob"), 1)
}

func TestNFT_Burn_RequiresEmptyPositionAndDeregisters(t *testing.T) {
	_, tpm := nftFixture(t)
	tokenID, _, _, err := tpm.Mint("alice", "0xpool", -600, 600, decimal.NewFromInt(1_000_000))
	require.NoError(t, err)

	err = tpm.Burn(tokenID)
	require.ErrorIs(t, err, ErrInvalidPosition)

	_, _, err = tpm.DecreaseLiquidity(tokenID, decimal.NewFromInt(1_000_000))
	require.NoError(t, err)
	_, _, err = tpm.Collect(tokenID, ZERO, ZERO)
	require.NoError(t, err)

	require.NoError(t, tpm.Burn(tokenID))
	assert.Empty(t, tpm.PositionsByOwner("alice"))
	_, ok := tpm.Tokens[tokenID]
	assert.False(t, ok)
}

func TestNFT_Mint_RejectsUnknownPool(t *testing.T) {
	_, tpm := nftFixture(t)
	_, _, _, err := tpm.Mint("alice", "0xnowhere", -600, 600, decimal.NewFromInt(1_000_000))
	require.ErrorIs(t, err, ErrNftWrongPool)
}
