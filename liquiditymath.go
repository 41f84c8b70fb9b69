package clmm

import (
	"fmt"
	"math/big"

	"github.com/daoleno/uniswapv3-sdk/constants"
	"github.com/daoleno/uniswapv3-sdk/utils"
	"github.com/shopspring/decimal"
)

// sortSqrtRatios returns (sqrtA, sqrtB) with sqrtA <= sqrtB.
func sortSqrtRatios(sqrtA, sqrtB decimal.Decimal) (decimal.Decimal, decimal.Decimal) {
	if sqrtA.GreaterThan(sqrtB) {
		return sqrtB, sqrtA
	}
	return sqrtA, sqrtB
}

// GetAmount0Delta computes the amount of token0 for a given liquidity and
// price range: L*(sqrtB-sqrtA)/(sqrtA*sqrtB), expressed in Q96 terms.
// liquidity may be signed (negative for a burn); the rounding direction
// follows the liquidity sign the way the LiquidityAmounts library does:
// adding liquidity rounds up (pessimistic for the pool), removing rounds
// down.
func GetAmount0Delta(sqrtA, sqrtB, liquidity decimal.Decimal) (decimal.Decimal, error) {
	roundUp := liquidity.IsPositive()
	sqrtA, sqrtB = sortSqrtRatios(sqrtA, sqrtB)
	if sqrtA.Sign() <= 0 {
		return ZERO, ErrDivByZero
	}
	absL := liquidity.Abs()
	numerator1 := new(big.Int).Lsh(absL.BigInt(), 96)
	numerator2 := new(big.Int).Sub(sqrtB.BigInt(), sqrtA.BigInt())
	if roundUp {
		amt, err := mulDivRoundUpBig(numerator1, numerator2, sqrtB.BigInt())
		if err != nil {
			return ZERO, err
		}
		amt, err = divRoundUpBig(amt, sqrtA.BigInt())
		if err != nil {
			return ZERO, err
		}
		res := decimal.NewFromBigInt(amt, 0)
		if liquidity.IsNegative() {
			res = res.Neg()
		}
		return res, nil
	}
	num := new(big.Int).Mul(numerator1, numerator2)
	den := new(big.Int).Mul(sqrtA.BigInt(), sqrtB.BigInt())
	amt := new(big.Int).Quo(num, den)
	res := decimal.NewFromBigInt(amt, 0)
	if liquidity.IsNegative() {
		res = res.Neg()
	}
	return res, nil
}

// GetAmount1Delta computes the amount of token1 for a given liquidity and
// price range: L*(sqrtB-sqrtA)/2^96.
func GetAmount1Delta(sqrtA, sqrtB, liquidity decimal.Decimal) (decimal.Decimal, error) {
	roundUp := liquidity.IsPositive()
	sqrtA, sqrtB = sortSqrtRatios(sqrtA, sqrtB)
	absL := liquidity.Abs()
	num := new(big.Int).Mul(absL.BigInt(), new(big.Int).Sub(sqrtB.BigInt(), sqrtA.BigInt()))
	var amt *big.Int
	if roundUp {
		var err error
		amt, err = divRoundUpBig(num, Q96.BigInt())
		if err != nil {
			return ZERO, err
		}
	} else {
		amt = new(big.Int).Quo(num, Q96.BigInt())
	}
	res := decimal.NewFromBigInt(amt, 0)
	if liquidity.IsNegative() {
		res = res.Neg()
	}
	return res, nil
}

func mulDivRoundUpBig(a, b, d *big.Int) (*big.Int, error) {
	if d.Sign() == 0 {
		return nil, ErrDivByZero
	}
	num := new(big.Int).Mul(a, b)
	return divRoundUpBig(num, d)
}

func divRoundUpBig(num, den *big.Int) (*big.Int, error) {
	if den.Sign() == 0 {
		return nil, ErrDivByZero
	}
	q, r := new(big.Int).QuoRem(num, den, new(big.Int))
	if r.Sign() != 0 {
		q.Add(q, big.NewInt(1))
	}
	return q, nil
}

// LiquidityAddDelta is an alias of AddDelta: it adds a signed delta to
// unsigned liquidity.
func LiquidityAddDelta(x, delta decimal.Decimal) (decimal.Decimal, error) {
	return AddDelta(x, delta)
}

// TickSpacingToMaxLiquidityPerTick returns the maximum liquidity_gross a
// single tick may carry for a given spacing, the same cap the teacher's
// pool stores as MaxLiquidityPerTick.
func TickSpacingToMaxLiquidityPerTick(tickSpacing int) decimal.Decimal {
	minTickAligned := FloorDivInt(MinTick, tickSpacing) * tickSpacing
	maxTickAligned := (MaxTick / tickSpacing) * tickSpacing
	numTicks := (maxTickAligned-minTickAligned)/tickSpacing + 1
	maxUint128 := new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 128), big.NewInt(1))
	perTick := new(big.Int).Quo(maxUint128, big.NewInt(int64(numTicks)))
	return decimal.NewFromBigInt(perTick, 0)
}

// ComputeSwapStep advances the price by one step of a swap, delegating the
// exact rounding rules (input rounds up, output rounds down, fee rounds
// up) to daoleno/uniswapv3-sdk's port of the Solidity SwapMath library.
// pool.go's Swap loop calls it through this wrapper.
func ComputeSwapStep(sqrtCurrent, sqrtTarget, liquidity, amountRemaining decimal.Decimal, feeBps FeeAmount) (sqrtNext, amountIn, amountOut, feeAmount decimal.Decimal, err error) {
	sNext, aIn, aOut, fee, cerr := utils.ComputeSwapStep(
		sqrtCurrent.BigInt(),
		sqrtTarget.BigInt(),
		liquidity.BigInt(),
		amountRemaining.BigInt(),
		constants.FeeAmount(feeBps),
	)
	if cerr != nil {
		return ZERO, ZERO, ZERO, ZERO, fmt.Errorf("compute swap step: %w", cerr)
	}
	return decimal.NewFromBigInt(sNext, 0),
		decimal.NewFromBigInt(aIn, 0),
		decimal.NewFromBigInt(aOut, 0),
		decimal.NewFromBigInt(fee, 0),
		nil
}

// GetNextSqrtPriceFromInput computes the sqrt price reached after
// consuming amountIn at the given liquidity, rounding toward sp (input
// side) so the pool never gives more than it received.
func GetNextSqrtPriceFromInput(sp, liquidity, amountIn decimal.Decimal, zeroForOne bool) (decimal.Decimal, error) {
	if sp.Sign() <= 0 || liquidity.Sign() <= 0 {
		return ZERO, ErrInsufficientLiquidity
	}
	if zeroForOne {
		return getNextSqrtPriceFromAmount0RoundingUp(sp, liquidity, amountIn, true)
	}
	return getNextSqrtPriceFromAmount1RoundingDown(sp, liquidity, amountIn, true)
}

// GetNextSqrtPriceFromOutput computes the sqrt price reached after paying
// out amountOut, rounding away from sp (output side).
func GetNextSqrtPriceFromOutput(sp, liquidity, amountOut decimal.Decimal, zeroForOne bool) (decimal.Decimal, error) {
	if sp.Sign() <= 0 || liquidity.Sign() <= 0 {
		return ZERO, ErrInsufficientLiquidity
	}
	if zeroForOne {
		return getNextSqrtPriceFromAmount1RoundingDown(sp, liquidity, amountOut, false)
	}
	return getNextSqrtPriceFromAmount0RoundingUp(sp, liquidity, amountOut, false)
}

func getNextSqrtPriceFromAmount0RoundingUp(sp, liquidity, amount decimal.Decimal, add bool) (decimal.Decimal, error) {
	if amount.IsZero() {
		return sp, nil
	}
	liquidityShifted := new(big.Int).Lsh(liquidity.BigInt(), 96)
	product := new(big.Int).Mul(amount.BigInt(), sp.BigInt())
	if add {
		denom := new(big.Int).Add(liquidityShifted, product)
		if denom.Cmp(liquidityShifted) >= 0 {
			num, err := mulDivRoundUpBig(liquidityShifted, sp.BigInt(), denom)
			if err != nil {
				return ZERO, err
			}
			return decimal.NewFromBigInt(num, 0), nil
		}
		// overflow-style fallback: liquidity/(liquidity/sp + amount)
		denom2 := new(big.Int).Add(new(big.Int).Quo(liquidityShifted, sp.BigInt()), amount.BigInt())
		num, err := divRoundUpBig(liquidityShifted, denom2)
		if err != nil {
			return ZERO, err
		}
		return decimal.NewFromBigInt(num, 0), nil
	}
	denom := new(big.Int).Sub(liquidityShifted, product)
	if denom.Sign() <= 0 {
		return ZERO, ErrOverflow
	}
	num, err := mulDivRoundUpBig(liquidityShifted, sp.BigInt(), denom)
	if err != nil {
		return ZERO, err
	}
	return decimal.NewFromBigInt(num, 0), nil
}

func getNextSqrtPriceFromAmount1RoundingDown(sp, liquidity, amount decimal.Decimal, add bool) (decimal.Decimal, error) {
	if add {
		quotient, err := MulDivFloor(amount, Q96, liquidity)
		if err != nil {
			return ZERO, err
		}
		return sp.Add(quotient), nil
	}
	quotient, err := MulDivCeil(amount, Q96, liquidity)
	if err != nil {
		return ZERO, err
	}
	if sp.LessThanOrEqual(quotient) {
		return ZERO, ErrOverflow
	}
	return sp.Sub(quotient), nil
}
