package clmm

import (
	"math/big"

	"github.com/shopspring/decimal"
)

// Tick domain, identical to the Uniswap v3 family.
const (
	MinTick = -887272
	MaxTick = 887272
)

var (
	ZERO = decimal.Zero
	ONE  = decimal.NewFromInt(1)

	// Q96 and Q128 are the fixed-point bases used throughout: sqrt-price is
	// stored as sqrtPrice * 2^96, fee growth as growth-per-unit-liquidity * 2^128.
	Q96  = decimal.NewFromBigInt(new(big.Int).Lsh(big.NewInt(1), 96), 0)
	Q128 = decimal.NewFromBigInt(new(big.Int).Lsh(big.NewInt(1), 128), 0)

	// q256Modulus is the modulus fee-growth accumulators wrap around, per
	// spec: fee_growth_global - fee_growth_outside must be computed modulo
	// 2^256 so it stays correct across rollover.
	q256Modulus = new(big.Int).Lsh(big.NewInt(1), 256)

	MinSqrtRatio = decimal.RequireFromString("4295128739")
	MaxSqrtRatio = decimal.RequireFromString("1461446703485210103287273052203988822378723970342")
)

// FeeAmount is a pool fee in hundredths of a bip (1e-6), matching the
// daoleno/uniswapv3-sdk constants.FeeAmount convention the teacher already
// depends on.
type FeeAmount uint32

const maxFeeAmount FeeAmount = 1_000_000
