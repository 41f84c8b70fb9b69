package clmm

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTickManager_Update_FlipsOnFirstLiquidity(t *testing.T) {
	m := NewTickManager(60)
	flipped, err := m.Update(60, decimal.NewFromInt(1_000_000), false, 0, ZERO, ZERO, decimal.NewFromInt(10_000_000))
	require.NoError(t, err)
	assert.True(t, flipped)

	info, ok := m.Get(60)
	require.True(t, ok)
	assert.True(t, info.LiquidityGross.Equal(decimal.NewFromInt(1_000_000)))
	assert.True(t, info.LiquidityNet.Equal(decimal.NewFromInt(1_000_000)))
	assert.True(t, info.Initialized)
}

func TestTickManager_Update_UpperFlipsSignOfNet(t *testing.T) {
	m := NewTickManager(60)
	_, err := m.Update(60, decimal.NewFromInt(1_000_000), true, 0, ZERO, ZERO, decimal.NewFromInt(10_000_000))
	require.NoError(t, err)
	info, _ := m.Get(60)
	assert.True(t, info.LiquidityNet.Equal(decimal.NewFromInt(-1_000_000)), "an upper-bound touch subtracts from net")
	assert.True(t, info.LiquidityGross.Equal(decimal.NewFromInt(1_000_000)), "gross is always the magnitude")
}

func TestTickManager_Update_RejectsOverMaxLiquidityPerTick(t *testing.T) {
	m := NewTickManager(60)
	_, err := m.Update(60, decimal.NewFromInt(20_000_000), false, 0, ZERO, ZERO, decimal.NewFromInt(10_000_000))
	require.ErrorIs(t, err, ErrOverflow)
}

func TestTickManager_Update_FlipsBackToUninitializedOnFullBurn(t *testing.T) {
	m := NewTickManager(60)
	_, err := m.Update(60, decimal.NewFromInt(1_000_000), false, 0, ZERO, ZERO, decimal.NewFromInt(10_000_000))
	require.NoError(t, err)

	flipped, err := m.Update(60, decimal.NewFromInt(-1_000_000), false, 0, ZERO, ZERO, decimal.NewFromInt(10_000_000))
	require.NoError(t, err)
	assert.True(t, flipped)

	info, _ := m.Get(60)
	assert.True(t, info.LiquidityGross.IsZero())
}

func TestTickManager_Cross_AppliesWrappingSubtraction(t *testing.T) {
	m := NewTickManager(60)
	_, err := m.Update(60, decimal.NewFromInt(1_000_000), false, 60, decimal.NewFromInt(500), decimal.NewFromInt(200), decimal.NewFromInt(10_000_000))
	require.NoError(t, err)

	net := m.Cross(60, decimal.NewFromInt(800), decimal.NewFromInt(300))
	assert.True(t, net.Equal(decimal.NewFromInt(1_000_000)))

	info, _ := m.Get(60)
	assert.True(t, info.FeeGrowthOutside0X128.Equal(decimal.NewFromInt(300)))
	assert.True(t, info.FeeGrowthOutside1X128.Equal(decimal.NewFromInt(100)))
}

func TestTickManager_GetFeeGrowthInside_CurrentBelowRange(t *testing.T) {
	m := NewTickManager(60)
	inside0, inside1 := m.GetFeeGrowthInside(-60, 60, -120, decimal.NewFromInt(1000), decimal.NewFromInt(2000))
	// Neither tick is initialized, so outside values default to zero and
	// the whole global growth counts as "below" the range when price is below it.
	assert.True(t, inside0.IsZero())
	assert.True(t, inside1.IsZero())
}

func TestTickManager_GetNextInitializedTick_WalksAcrossWords(t *testing.T) {
	m := NewTickManager(60)
	_, err := m.Update(-120, decimal.NewFromInt(1_000_000), false, 0, ZERO, ZERO, decimal.NewFromInt(10_000_000))
	require.NoError(t, err)

	next, found := m.GetNextInitializedTick(0, true)
	assert.True(t, found)
	assert.Equal(t, -120, next)
}
