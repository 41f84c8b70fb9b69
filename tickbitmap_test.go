package clmm

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTickBitmap_FlipTick_RequiresAlignment(t *testing.T) {
	b := NewTickBitmap()
	err := b.FlipTick(61, 60)
	require.ErrorIs(t, err, ErrTickNotAligned)
}

func TestTickBitmap_FlipTick_TogglesBit(t *testing.T) {
	b := NewTickBitmap()
	require.NoError(t, b.FlipTick(60, 60))
	assert.True(t, b.IsInitialized(60, 60))

	require.NoError(t, b.FlipTick(60, 60))
	assert.False(t, b.IsInitialized(60, 60), "flipping twice returns to uninitialized")
}

func TestTickBitmap_NextInitializedTickWithinOneWord_Lte(t *testing.T) {
	b := NewTickBitmap()
	require.NoError(t, b.FlipTick(-120, 60))
	require.NoError(t, b.FlipTick(60, 60))

	next, found := b.NextInitializedTickWithinOneWord(-60, 60, true)
	assert.True(t, found)
	assert.Equal(t, -120, next)
}

func TestTickBitmap_NextInitializedTickWithinOneWord_Gt(t *testing.T) {
	b := NewTickBitmap()
	require.NoError(t, b.FlipTick(-120, 60))
	require.NoError(t, b.FlipTick(60, 60))

	next, found := b.NextInitializedTickWithinOneWord(0, 60, false)
	assert.True(t, found)
	assert.Equal(t, 60, next)
}

func TestTickBitmap_NextInitializedTickWithinOneWord_NoneFound(t *testing.T) {
	b := NewTickBitmap()
	_, found := b.NextInitializedTickWithinOneWord(0, 60, true)
	assert.False(t, found)
}

func TestTickBitmap_Clone_IsIndependent(t *testing.T) {
	b := NewTickBitmap()
	require.NoError(t, b.FlipTick(60, 60))
	clone := b.Clone()
	require.NoError(t, clone.FlipTick(120, 60))
	assert.False(t, b.IsInitialized(120, 60), "mutating the clone must not affect the original")
}
