package clmm

import (
	"math/big"

	"github.com/shopspring/decimal"
)

// MulDivFloor computes floor(a*b/d) with a full-width big.Int intermediate,
// the way the Solidity FullMath.mulDiv the teacher's math is ported from
// avoids precision loss from decimal.Decimal's default fractional Div.
func MulDivFloor(a, b, d decimal.Decimal) (decimal.Decimal, error) {
	if d.IsZero() {
		return ZERO, ErrDivByZero
	}
	num := new(big.Int).Mul(a.BigInt(), b.BigInt())
	den := d.BigInt()
	q, r := new(big.Int).QuoRem(num, den, new(big.Int))
	// big.Int.QuoRem truncates toward zero; convert to floor division for
	// the (expected) positive operands used throughout this engine.
	if r.Sign() != 0 && (r.Sign() < 0) != (den.Sign() < 0) {
		q.Sub(q, big.NewInt(1))
	}
	return decimal.NewFromBigInt(q, 0), nil
}

// MulDivCeil computes ceil(a*b/d).
func MulDivCeil(a, b, d decimal.Decimal) (decimal.Decimal, error) {
	q, err := MulDivFloor(a, b, d)
	if err != nil {
		return ZERO, err
	}
	num := new(big.Int).Mul(a.BigInt(), b.BigInt())
	den := d.BigInt()
	prod := new(big.Int).Mul(q.BigInt(), den)
	if prod.Cmp(num) != 0 {
		q = q.Add(ONE)
	}
	return q, nil
}

// FloorDivInt performs mathematical floor division of a signed tick by a
// positive divisor (tick spacing), e.g. FloorDivInt(-1000, 60) == -17. Go's
// native integer division truncates toward zero, which is wrong for the
// tick-bitmap compression in negative-tick territory; this is the gate
// spec.md calls out explicitly.
func FloorDivInt(a, b int) int {
	q := a / b
	if (a%b != 0) && ((a < 0) != (b < 0)) {
		q--
	}
	return q
}

// wrappingSubU256 computes (a-b) mod 2^256, the rule fee-growth
// accumulators rely on: fee_growth_global - fee_growth_outside must stay
// correct even after the global counter has wrapped around 2^256.
func wrappingSubU256(a, b decimal.Decimal) decimal.Decimal {
	diff := new(big.Int).Sub(a.BigInt(), b.BigInt())
	diff.Mod(diff, q256Modulus)
	return decimal.NewFromBigInt(diff, 0)
}

// wrappingAddU256 computes (a+b) mod 2^256.
func wrappingAddU256(a, b decimal.Decimal) decimal.Decimal {
	sum := new(big.Int).Add(a.BigInt(), b.BigInt())
	sum.Mod(sum, q256Modulus)
	return decimal.NewFromBigInt(sum, 0)
}

// AddDelta adds a signed liquidity delta to an unsigned liquidity value,
// failing on underflow below zero. Mirrors the LiquidityMath.addDelta
// contract used across the whole Uniswap-v3 family.
func AddDelta(x, delta decimal.Decimal) (decimal.Decimal, error) {
	result := x.Add(delta)
	if result.IsNegative() {
		return ZERO, ErrNegativeLiquidity
	}
	return result, nil
}
