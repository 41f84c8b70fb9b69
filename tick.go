package clmm

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// TickInfo is the per-tick state from spec C5.
type TickInfo struct {
	LiquidityGross       decimal.Decimal
	LiquidityNet         decimal.Decimal
	FeeGrowthOutside0X128 decimal.Decimal
	FeeGrowthOutside1X128 decimal.Decimal
	Initialized          bool
}

func newTickInfo() *TickInfo {
	return &TickInfo{
		LiquidityGross:        ZERO,
		LiquidityNet:          ZERO,
		FeeGrowthOutside0X128: ZERO,
		FeeGrowthOutside1X128: ZERO,
	}
}

func (t *TickInfo) clone() *TickInfo {
	cp := *t
	return &cp
}

// TickManager owns every tick record plus the compressed bitmap index
// over them, the two halves of spec C4+C5 that the swap loop walks
// together.
type TickManager struct {
	ticks       map[int]*TickInfo
	bitmap      *TickBitmap
	tickSpacing int
}

func NewTickManager(tickSpacing int) *TickManager {
	return &TickManager{
		ticks:       map[int]*TickInfo{},
		bitmap:      NewTickBitmap(),
		tickSpacing: tickSpacing,
	}
}

func (m *TickManager) Clone() *TickManager {
	nm := &TickManager{
		ticks:       make(map[int]*TickInfo, len(m.ticks)),
		bitmap:      m.bitmap.Clone(),
		tickSpacing: m.tickSpacing,
	}
	for k, v := range m.ticks {
		nm.ticks[k] = v.clone()
	}
	return nm
}

// GetTickAndInitIfAbsent returns the tick record for t, creating a zero
// record on first access. Creation alone does not flip the bitmap bit —
// only a gross-liquidity transition from zero does that, in Update.
func (m *TickManager) GetTickAndInitIfAbsent(t int) *TickInfo {
	info, ok := m.ticks[t]
	if !ok {
		info = newTickInfo()
		m.ticks[t] = info
	}
	return info
}

func (m *TickManager) Get(t int) (*TickInfo, bool) {
	info, ok := m.ticks[t]
	return info, ok
}

// Update applies a signed liquidity delta to tick t (upper=false means t is
// a position's lower bound, upper=true its upper bound) and returns
// whether the tick's initialized state flipped. On a flip to initialized,
// fee growth outside is seeded from the global accumulators if the tick is
// already at or below current price, per spec's update_for_mint rule; on a
// flip to uninitialized Initialized is reset (the record itself is removed
// later by Clear).
func (m *TickManager) Update(
	t int,
	liquidityDelta decimal.Decimal,
	upper bool,
	currentTick int,
	feeGrowthGlobal0, feeGrowthGlobal1 decimal.Decimal,
	maxLiquidityPerTick decimal.Decimal,
) (flipped bool, err error) {
	info := m.GetTickAndInitIfAbsent(t)
	liquidityGrossBefore := info.LiquidityGross

	liquidityGrossAfter, err := AddDelta(liquidityGrossBefore, liquidityDelta)
	if err != nil {
		return false, err
	}
	if liquidityGrossAfter.GreaterThan(maxLiquidityPerTick) {
		return false, fmt.Errorf("%w: liquidity_gross %s exceeds per-tick max %s", ErrOverflow, liquidityGrossAfter, maxLiquidityPerTick)
	}

	flipped = liquidityGrossBefore.IsZero() != liquidityGrossAfter.IsZero()

	if liquidityGrossBefore.IsZero() {
		if currentTick >= t {
			info.FeeGrowthOutside0X128 = feeGrowthGlobal0
			info.FeeGrowthOutside1X128 = feeGrowthGlobal1
		}
		info.Initialized = true
	}
	if liquidityGrossAfter.IsZero() {
		info.Initialized = false
	}

	info.LiquidityGross = liquidityGrossAfter

	netDelta := liquidityDelta
	if upper {
		netDelta = liquidityDelta.Neg()
	}
	info.LiquidityNet = info.LiquidityNet.Add(netDelta)

	if flipped {
		if ferr := m.bitmap.FlipTick(t, m.tickSpacing); ferr != nil {
			return false, ferr
		}
	}
	return flipped, nil
}

// Clear removes a tick's bookkeeping once it returns to liquidity_gross==0,
// matching pool.go's call to TickManager.Clear after a burn flips a tick
// back to uninitialized.
func (m *TickManager) Clear(t int) {
	delete(m.ticks, t)
}

// Cross updates fee growth outside for tick t when price crosses it and
// returns the tick's liquidity_net to be applied to active liquidity.
func (m *TickManager) Cross(t int, feeGrowthGlobal0, feeGrowthGlobal1 decimal.Decimal) decimal.Decimal {
	info, ok := m.ticks[t]
	if !ok {
		return ZERO
	}
	info.FeeGrowthOutside0X128 = wrappingSubU256(feeGrowthGlobal0, info.FeeGrowthOutside0X128)
	info.FeeGrowthOutside1X128 = wrappingSubU256(feeGrowthGlobal1, info.FeeGrowthOutside1X128)
	return info.LiquidityNet
}

// GetFeeGrowthInside computes the fee growth accrued while current_tick
// was inside [lower, upper), per spec C5.
func (m *TickManager) GetFeeGrowthInside(lower, upper, currentTick int, feeGrowthGlobal0, feeGrowthGlobal1 decimal.Decimal) (inside0, inside1 decimal.Decimal) {
	lowerInfo, lowerOk := m.ticks[lower]
	upperInfo, upperOk := m.ticks[upper]

	var lowerOutside0, lowerOutside1, upperOutside0, upperOutside1 decimal.Decimal
	if lowerOk {
		lowerOutside0, lowerOutside1 = lowerInfo.FeeGrowthOutside0X128, lowerInfo.FeeGrowthOutside1X128
	}
	if upperOk {
		upperOutside0, upperOutside1 = upperInfo.FeeGrowthOutside0X128, upperInfo.FeeGrowthOutside1X128
	}

	var below0, below1 decimal.Decimal
	if currentTick >= lower {
		below0, below1 = lowerOutside0, lowerOutside1
	} else {
		below0 = wrappingSubU256(feeGrowthGlobal0, lowerOutside0)
		below1 = wrappingSubU256(feeGrowthGlobal1, lowerOutside1)
	}

	var above0, above1 decimal.Decimal
	if currentTick < upper {
		above0, above1 = upperOutside0, upperOutside1
	} else {
		above0 = wrappingSubU256(feeGrowthGlobal0, upperOutside0)
		above1 = wrappingSubU256(feeGrowthGlobal1, upperOutside1)
	}

	inside0 = wrappingSubU256(wrappingSubU256(feeGrowthGlobal0, below0), above0)
	inside1 = wrappingSubU256(wrappingSubU256(feeGrowthGlobal1, below1), above1)
	return
}

// GetNextInitializedTick walks the bitmap word by word from `tick` in the
// direction of the swap (lte=zeroForOne) until it finds an initialized
// tick or reaches the edge of the tick domain, in which case it returns
// MinTick or MaxTick with initialized=false. A single call may scan many
// words, so one swap-loop iteration is not limited to one bitmap word.
func (m *TickManager) GetNextInitializedTick(tick int, zeroForOne bool) (next int, initialized bool) {
	next, initialized = m.bitmap.NextInitializedTickWithinOneWord(tick, m.tickSpacing, zeroForOne)
	for !initialized {
		if zeroForOne && next <= MinTick {
			return MinTick, false
		}
		if !zeroForOne && next >= MaxTick {
			return MaxTick, false
		}
		step := tick
		if zeroForOne {
			step = next - 1
		} else {
			step = next + 1
		}
		next, initialized = m.bitmap.NextInitializedTickWithinOneWord(step, m.tickSpacing, zeroForOne)
	}
	return next, initialized
}
