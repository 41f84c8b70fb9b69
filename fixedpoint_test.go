package clmm

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMulDivFloor(t *testing.T) {
	got, err := MulDivFloor(decimal.NewFromInt(7), decimal.NewFromInt(3), decimal.NewFromInt(2))
	require.NoError(t, err)
	assert.True(t, got.Equal(decimal.NewFromInt(10))) // floor(21/2) = 10
}

func TestMulDivFloor_DivByZero(t *testing.T) {
	_, err := MulDivFloor(decimal.NewFromInt(1), decimal.NewFromInt(1), ZERO)
	require.ErrorIs(t, err, ErrDivByZero)
}

func TestMulDivCeil(t *testing.T) {
	got, err := MulDivCeil(decimal.NewFromInt(7), decimal.NewFromInt(3), decimal.NewFromInt(2))
	require.NoError(t, err)
	assert.True(t, got.Equal(decimal.NewFromInt(11))) // ceil(21/2) = 11
}

func TestMulDivCeil_ExactDivisionDoesNotRoundUp(t *testing.T) {
	got, err := MulDivCeil(decimal.NewFromInt(6), decimal.NewFromInt(3), decimal.NewFromInt(2))
	require.NoError(t, err)
	assert.True(t, got.Equal(decimal.NewFromInt(9)))
}

// FloorDivInt is the explicit floor-vs-truncate gate: Go's native / would
// give -16 here (truncation toward zero); floor division must give -17.
func TestFloorDivInt_NegativeTick(t *testing.T) {
	assert.Equal(t, -17, FloorDivInt(-1000, 60))
	assert.Equal(t, 16, FloorDivInt(1000, 60))
	assert.Equal(t, -1, FloorDivInt(-60, 60))
	assert.Equal(t, 0, FloorDivInt(0, 60))
}

func TestWrappingSubU256_NoWrap(t *testing.T) {
	a := decimal.NewFromInt(100)
	b := decimal.NewFromInt(40)
	assert.True(t, wrappingSubU256(a, b).Equal(decimal.NewFromInt(60)))
}

func TestWrappingSubU256_Wraps(t *testing.T) {
	// a - b goes negative; result must be (a-b) mod 2^256, not a negative value.
	a := decimal.NewFromInt(10)
	b := decimal.NewFromInt(20)
	got := wrappingSubU256(a, b)
	assert.True(t, got.IsPositive())
	assert.True(t, got.GreaterThan(Q128))
}

func TestWrappingAddU256_RoundTrip(t *testing.T) {
	a := decimal.NewFromInt(123456)
	b := decimal.NewFromInt(654321)
	sum := wrappingAddU256(a, b)
	back := wrappingSubU256(sum, b)
	assert.True(t, back.Equal(a))
}

func TestAddDelta_Positive(t *testing.T) {
	got, err := AddDelta(decimal.NewFromInt(100), decimal.NewFromInt(50))
	require.NoError(t, err)
	assert.True(t, got.Equal(decimal.NewFromInt(150)))
}

func TestAddDelta_UnderflowRejected(t *testing.T) {
	_, err := AddDelta(decimal.NewFromInt(10), decimal.NewFromInt(-20))
	require.ErrorIs(t, err, ErrNegativeLiquidity)
}
