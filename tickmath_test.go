package clmm

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetSqrtRatioAtTick_Zero(t *testing.T) {
	ratio, err := GetSqrtRatioAtTick(0)
	require.NoError(t, err)
	assert.True(t, ratio.Equal(Q96), "tick 0 must be exactly sqrt(1)*2^96")
}

func TestGetSqrtRatioAtTick_OutOfRange(t *testing.T) {
	_, err := GetSqrtRatioAtTick(MaxTick + 1)
	require.ErrorIs(t, err, ErrTickOutOfRange)
	_, err = GetSqrtRatioAtTick(MinTick - 1)
	require.ErrorIs(t, err, ErrTickOutOfRange)
}

func TestGetTickAtSqrtRatio_RoundTripsThroughZero(t *testing.T) {
	ratio, err := GetSqrtRatioAtTick(0)
	require.NoError(t, err)
	tick, err := GetTickAtSqrtRatio(ratio)
	require.NoError(t, err)
	assert.Equal(t, 0, tick)
}

func TestGetTickAtSqrtRatio_Monotonic(t *testing.T) {
	r1, err := GetSqrtRatioAtTick(-60)
	require.NoError(t, err)
	r2, err := GetSqrtRatioAtTick(60)
	require.NoError(t, err)
	assert.True(t, r1.LessThan(r2))

	t1, err := GetTickAtSqrtRatio(r1)
	require.NoError(t, err)
	t2, err := GetTickAtSqrtRatio(r2)
	require.NoError(t, err)
	assert.True(t, t1 < t2)
}

func TestGetTickAtSqrtRatio_OutOfRange(t *testing.T) {
	_, err := GetTickAtSqrtRatio(MinSqrtRatio.Sub(ONE))
	require.ErrorIs(t, err, ErrPriceOutOfRange)
	_, err = GetTickAtSqrtRatio(MaxSqrtRatio)
	require.ErrorIs(t, err, ErrPriceOutOfRange)
}
