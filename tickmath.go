package clmm

import (
	"fmt"

	"github.com/daoleno/uniswapv3-sdk/utils"
	"github.com/shopspring/decimal"
)

// GetSqrtRatioAtTick returns sqrt(1.0001)^tick * 2^96, delegating the
// bit-tabulated computation to daoleno/uniswapv3-sdk (the same library
// pool.go's swap loop already calls for this).
func GetSqrtRatioAtTick(tick int) (decimal.Decimal, error) {
	if tick < MinTick || tick > MaxTick {
		return ZERO, fmt.Errorf("%w: %d", ErrTickOutOfRange, tick)
	}
	ratio, err := utils.GetSqrtRatioAtTick(tick)
	if err != nil {
		return ZERO, fmt.Errorf("%w: %s", ErrTickOutOfRange, err)
	}
	return decimal.NewFromBigInt(ratio, 0), nil
}

// GetTickAtSqrtRatio returns the greatest tick t with
// GetSqrtRatioAtTick(t) <= sqrtPriceX96.
func GetTickAtSqrtRatio(sqrtPriceX96 decimal.Decimal) (int, error) {
	if sqrtPriceX96.LessThan(MinSqrtRatio) || sqrtPriceX96.GreaterThanOrEqual(MaxSqrtRatio) {
		return 0, fmt.Errorf("%w: %s", ErrPriceOutOfRange, sqrtPriceX96)
	}
	tick, err := utils.GetTickAtSqrtRatio(sqrtPriceX96.BigInt())
	if err != nil {
		return 0, fmt.Errorf("%w: %s", ErrPriceOutOfRange, err)
	}
	return tick, nil
}
