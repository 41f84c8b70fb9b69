package clmm

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// PositionKey identifies a position by owner and range. Per spec §9 the
// authoritative key is whatever the caller routes through (an NFT token id
// when minted through the NFT envelope, an owner string otherwise);
// same-range re-mints under a distinct key create distinct positions
// rather than merging liquidity.
type PositionKey struct {
	Owner     string
	TickLower int
	TickUpper int
}

func GetPositionKey(owner string, tickLower, tickUpper int) PositionKey {
	return PositionKey{Owner: owner, TickLower: tickLower, TickUpper: tickUpper}
}

// Position is the per-(owner,range) record from spec C6.
type Position struct {
	Liquidity                decimal.Decimal
	FeeGrowthInside0LastX128 decimal.Decimal
	FeeGrowthInside1LastX128 decimal.Decimal
	TokensOwed0              decimal.Decimal
	TokensOwed1              decimal.Decimal
}

func newPosition() *Position {
	return &Position{
		Liquidity:                ZERO,
		FeeGrowthInside0LastX128: ZERO,
		FeeGrowthInside1LastX128: ZERO,
		TokensOwed0:              ZERO,
		TokensOwed1:              ZERO,
	}
}

func (p *Position) clone() *Position {
	cp := *p
	return &cp
}

// IsEmpty reports whether a position may be destroyed: liquidity and both
// owed counters must be zero.
func (p *Position) IsEmpty() bool {
	return p.Liquidity.IsZero() && p.TokensOwed0.IsZero() && p.TokensOwed1.IsZero()
}

// Update accrues fees since the last touch and applies a signed liquidity
// delta, per spec C6.
func (p *Position) Update(liquidityDelta, feeGrowthInside0, feeGrowthInside1 decimal.Decimal) error {
	tokensOwed0, err := MulDivFloor(wrappingSubU256(feeGrowthInside0, p.FeeGrowthInside0LastX128), p.Liquidity, Q128)
	if err != nil {
		return err
	}
	tokensOwed1, err := MulDivFloor(wrappingSubU256(feeGrowthInside1, p.FeeGrowthInside1LastX128), p.Liquidity, Q128)
	if err != nil {
		return err
	}

	newLiquidity, err := AddDelta(p.Liquidity, liquidityDelta)
	if err != nil {
		return err
	}
	p.Liquidity = newLiquidity
	p.FeeGrowthInside0LastX128 = feeGrowthInside0
	p.FeeGrowthInside1LastX128 = feeGrowthInside1

	if tokensOwed0.IsPositive() || tokensOwed1.IsPositive() {
		p.TokensOwed0 = p.TokensOwed0.Add(tokensOwed0)
		p.TokensOwed1 = p.TokensOwed1.Add(tokensOwed1)
	}
	return nil
}

// UpdateBurn overwrites the owed totals with the given values (used by
// Pool.Burn, which passes the current owed amounts plus the negated
// amount0/amount1 deltas, turning them into owed balances rather than
// transferring them).
func (p *Position) UpdateBurn(tokensOwed0, tokensOwed1 decimal.Decimal) {
	p.TokensOwed0 = tokensOwed0
	p.TokensOwed1 = tokensOwed1
}

// Collect pays out up to max0/max1 (0 meaning "all") from tokens owed.
func (p *Position) Collect(max0, max1 decimal.Decimal) (decimal.Decimal, decimal.Decimal) {
	amount0 := p.TokensOwed0
	if max0.IsPositive() && max0.LessThan(amount0) {
		amount0 = max0
	}
	amount1 := p.TokensOwed1
	if max1.IsPositive() && max1.LessThan(amount1) {
		amount1 = max1
	}
	p.TokensOwed0 = p.TokensOwed0.Sub(amount0)
	p.TokensOwed1 = p.TokensOwed1.Sub(amount1)
	return amount0, amount1
}

// PositionManager owns every position record keyed by (owner, range).
type PositionManager struct {
	positions map[PositionKey]*Position
}

func NewPositionManager() *PositionManager {
	return &PositionManager{positions: map[PositionKey]*Position{}}
}

func (m *PositionManager) Clone() *PositionManager {
	nm := NewPositionManager()
	for k, v := range m.positions {
		nm.positions[k] = v.clone()
	}
	return nm
}

func (m *PositionManager) GetPositionAndInitIfAbsent(key PositionKey) *Position {
	pos, ok := m.positions[key]
	if !ok {
		pos = newPosition()
		m.positions[key] = pos
	}
	return pos
}

// GetPositionReadonly returns the position at key, or a fresh zero value
// (not stored) if absent — used for precondition checks before mutation.
func (m *PositionManager) GetPositionReadonly(key PositionKey) *Position {
	pos, ok := m.positions[key]
	if !ok {
		return newPosition()
	}
	return pos
}

func (m *PositionManager) CollectPosition(key PositionKey, max0, max1 decimal.Decimal) (decimal.Decimal, decimal.Decimal, error) {
	pos, ok := m.positions[key]
	if !ok {
		return ZERO, ZERO, fmt.Errorf("%w: no position for %+v", ErrInvalidPosition, key)
	}
	a0, a1 := pos.Collect(max0, max1)
	return a0, a1, nil
}

// Remove deletes a position; callers must ensure IsEmpty() first.
func (m *PositionManager) Remove(key PositionKey) {
	delete(m.positions, key)
}
