package clmm

import (
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/core/types"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

// Order is a single resting order escrowed by the auction house until it
// is cancelled or settled at the next batch, per spec C8. A bid sells
// token0 for token1; an ask sells token1 for token0. Orders are never
// crossed against each other directly — they clear against the uniform
// price a batch discovers.
type Order struct {
	ID           uint64
	Owner        string
	AmountIn     decimal.Decimal
	MinAmountOut decimal.Decimal
	IsBid        bool
	Timestamp    time.Time
}

// BatchReceipt records the outcome of one ExecuteBatch call. BatchID is a
// google/uuid value so a notification consumer can dedupe a replayed
// message instead of keying off (pool, sequence) pairs that can collide
// across restarts.
type BatchReceipt struct {
	BatchID       uuid.UUID
	ClearingPrice decimal.Decimal // Q64.64 token1-per-token0
	Iterations    int
	OrdersFilled  int
	SwapAmount0   decimal.Decimal
	SwapAmount1   decimal.Decimal
	Payouts       map[uint64]decimal.Decimal // order id -> amount received, opposite side of its input
	Refunds       map[uint64]decimal.Decimal // order id -> amount refunded, its own input side
}

// AuctionHouse runs a uniform-price batch auction on top of a single pool:
// every order that clears in a batch trades at the same discovered price,
// and only the net imbalance the escrowed orders could not net out against
// each other is routed through a single pool swap.
type AuctionHouse struct {
	Pool           *CorePool
	MaxIterations  int
	Tolerance      decimal.Decimal // absolute price tolerance for convergence
	BatchDuration  time.Duration
	CurrentBatchID uint64
	LastBatchStart time.Time
	Escrow0        decimal.Decimal
	Escrow1        decimal.Decimal

	orderCount uint64
	orders     map[uint64]*Order

	// Events accumulates one log per successful PlaceOrder/CancelOrder/
	// ExecuteBatch, the auction-side counterpart of CorePool.Events.
	Events []*types.Log
}

func NewAuctionHouse(pool *CorePool, maxIterations int, tolerance decimal.Decimal, batchDuration time.Duration, now time.Time) *AuctionHouse {
	if maxIterations < 3 {
		maxIterations = 3
	}
	return &AuctionHouse{
		Pool:           pool,
		MaxIterations:  maxIterations,
		Tolerance:      tolerance,
		BatchDuration:  batchDuration,
		LastBatchStart: now,
		Escrow0:        ZERO,
		Escrow1:        ZERO,
		orders:         map[uint64]*Order{},
	}
}

func (h *AuctionHouse) expired(now time.Time) bool {
	return h.BatchDuration > 0 && now.Sub(h.LastBatchStart) > h.BatchDuration
}

// PlaceOrder escrows amountIn and admits a new order into the current
// batch window.
func (h *AuctionHouse) PlaceOrder(owner string, isBid bool, amountIn, minAmountOut decimal.Decimal, now time.Time) (*Order, error) {
	if !amountIn.IsPositive() {
		return nil, fmt.Errorf("%w: order amount must be > 0", ErrZeroAmount)
	}
	if minAmountOut.IsNegative() {
		return nil, fmt.Errorf("%w: min amount out must be >= 0", ErrInvalidAmount)
	}
	if h.expired(now) {
		return nil, fmt.Errorf("%w: call ExecuteBatch before placing further orders", ErrAuctionExpired)
	}

	h.orderCount++
	order := &Order{
		ID:           h.orderCount,
		Owner:        owner,
		AmountIn:     amountIn,
		MinAmountOut: minAmountOut,
		IsBid:        isBid,
		Timestamp:    now,
	}
	h.orders[order.ID] = order
	if isBid {
		h.Escrow0 = h.Escrow0.Add(amountIn)
	} else {
		h.Escrow1 = h.Escrow1.Add(amountIn)
	}
	h.Events = append(h.Events, EncodePlaceOrderEvent(order.ID, owner, isBid, amountIn, minAmountOut))
	return order, nil
}

// CancelOrder withdraws an order before it settles, refunding its escrow
// to the caller (the engine has no token-custody layer of its own; the
// caller is responsible for crediting the returned amount back).
func (h *AuctionHouse) CancelOrder(owner string, orderID uint64) (decimal.Decimal, error) {
	order, ok := h.orders[orderID]
	if !ok {
		return ZERO, fmt.Errorf("%w: order %d", ErrOrderNotFound, orderID)
	}
	if order.Owner != owner {
		return ZERO, fmt.Errorf("%w: order %d not owned by %s", ErrUnauthorized, orderID, owner)
	}
	delete(h.orders, orderID)
	if order.IsBid {
		h.Escrow0 = h.Escrow0.Sub(order.AmountIn)
	} else {
		h.Escrow1 = h.Escrow1.Sub(order.AmountIn)
	}
	h.Events = append(h.Events, EncodeCancelOrderEvent(order.ID))
	return order.AmountIn, nil
}

// decimalToRat converts a decimal.Decimal to an exact big.Rat via its
// coefficient and exponent, so fractional tolerances and prices never lose
// precision the way a float64 round-trip would.
func decimalToRat(d decimal.Decimal) *big.Rat {
	r := new(big.Rat).SetInt(d.Coefficient())
	exp := d.Exponent()
	ten := big.NewInt(10)
	if exp >= 0 {
		scale := new(big.Int).Exp(ten, big.NewInt(int64(exp)), nil)
		r.Mul(r, new(big.Rat).SetInt(scale))
	} else {
		scale := new(big.Int).Exp(ten, big.NewInt(int64(-exp)), nil)
		r.Quo(r, new(big.Rat).SetInt(scale))
	}
	return r
}

// ratFloor truncates a non-negative exact rational to a decimal integer.
func ratFloor(r *big.Rat) decimal.Decimal {
	q := new(big.Int).Quo(r.Num(), r.Denom())
	return decimal.NewFromBigInt(q, 0)
}

// priceFromSqrtX96 returns the exact token1-per-token0 price implied by a
// Q64.96 sqrt price: (sqrtPriceX96/2^96)^2, kept as an exact rational so
// repeated rounds of price discovery never compound truncation error.
func priceFromSqrtX96(sqrtPriceX96 decimal.Decimal) *big.Rat {
	num := new(big.Int).Mul(sqrtPriceX96.BigInt(), sqrtPriceX96.BigInt())
	den := new(big.Int).Lsh(big.NewInt(1), 192)
	return new(big.Rat).SetFrac(num, den)
}

// priceToQ64x64 is the only place a discovered price gets truncated: once
// discovery and every validity comparison are done, the exact rational is
// rounded down to a Q64.64 fixed-point value for display/storage, per the
// spec's note on avoiding early Q-number truncation.
func priceToQ64x64(p *big.Rat) decimal.Decimal {
	scaled := new(big.Int).Mul(p.Num(), new(big.Int).Lsh(big.NewInt(1), 64))
	scaled.Quo(scaled, p.Denom())
	return decimal.NewFromBigInt(scaled, 0)
}

// partitionValid splits the resting order book into the bids and asks that
// clear at candidate price p (exact rational arithmetic throughout: a bid
// is valid iff amount_in * P >= min_amount_out, an ask iff amount_in / P
// >= min_amount_out), and sums each side's valid input.
func (h *AuctionHouse) partitionValid(p *big.Rat) (validBids, validAsks []*Order, valid0In, valid1In *big.Rat) {
	valid0In = new(big.Rat)
	valid1In = new(big.Rat)
	for _, o := range h.orders {
		amountIn := decimalToRat(o.AmountIn)
		minOut := decimalToRat(o.MinAmountOut)
		if o.IsBid {
			achieved := new(big.Rat).Mul(amountIn, p)
			if achieved.Cmp(minOut) >= 0 {
				validBids = append(validBids, o)
				valid0In.Add(valid0In, amountIn)
			}
			continue
		}
		if p.Sign() == 0 {
			continue
		}
		achieved := new(big.Rat).Quo(amountIn, p)
		if achieved.Cmp(minOut) >= 0 {
			validAsks = append(validAsks, o)
			valid1In.Add(valid1In, amountIn)
		}
	}
	return
}

// surplusAt returns which side holds the net imbalance at candidate price
// p (zeroForOne true means token0 must be sold into the pool) and the
// surplus amount, given the valid aggregates.
func surplusAt(p *big.Rat, valid0In, valid1In *big.Rat) (zeroForOne bool, surplus *big.Rat) {
	valueOfBidsInToken1 := new(big.Rat).Mul(valid0In, p)
	if valueOfBidsInToken1.Cmp(valid1In) > 0 {
		var askSideInToken0 *big.Rat
		if p.Sign() == 0 {
			askSideInToken0 = new(big.Rat)
		} else {
			askSideInToken0 = new(big.Rat).Quo(valid1In, p)
		}
		s := new(big.Rat).Sub(valid0In, askSideInToken0)
		if s.Sign() < 0 {
			s.SetInt64(0)
		}
		return true, s
	}
	s := new(big.Rat).Sub(valid1In, valueOfBidsInToken1)
	if s.Sign() < 0 {
		s.SetInt64(0)
	}
	return false, s
}

// ExecuteBatch discovers a uniform clearing price by iteratively probing
// the pool's own swap curve (never mutating it during discovery), then
// settles every order that clears pro-rata, routing only the undiscovered
// net imbalance through a single real pool swap, per spec C8.
func (h *AuctionHouse) ExecuteBatch(now time.Time) (*BatchReceipt, error) {
	if len(h.orders) == 0 {
		h.CurrentBatchID++
		h.LastBatchStart = now
		receipt := &BatchReceipt{
			BatchID:       uuid.New(),
			ClearingPrice: priceToQ64x64(priceFromSqrtX96(h.Pool.SqrtPriceX96)),
			Payouts:       map[uint64]decimal.Decimal{},
			Refunds:       map[uint64]decimal.Decimal{},
		}
		var batchID [16]byte
		copy(batchID[:], receipt.BatchID[:])
		h.Events = append(h.Events, EncodeExecuteBatchEvent(batchID, receipt.ClearingPrice, receipt.OrdersFilled))
		return receipt, nil
	}

	tol := decimalToRat(h.Tolerance)
	p := priceFromSqrtX96(h.Pool.SqrtPriceX96)
	iterations := 0

	for ; iterations < h.MaxIterations; iterations++ {
		_, _, valid0In, valid1In := h.partitionValid(p)
		if valid0In.Sign() == 0 && valid1In.Sign() == 0 {
			break
		}
		zeroForOne, surplusRat := surplusAt(p, valid0In, valid1In)
		surplusAmount := ratFloor(surplusRat)
		if !surplusAmount.IsPositive() {
			break
		}

		sqrtLimit := MinSqrtRatio.Add(ONE)
		if !zeroForOne {
			sqrtLimit = MaxSqrtRatio.Sub(ONE)
		}
		_, _, resultSqrtPrice, err := h.Pool.SimulateSwap(zeroForOne, surplusAmount, sqrtLimit)
		if err != nil {
			return nil, fmt.Errorf("batch price discovery: %w", err)
		}
		pNext := priceFromSqrtX96(resultSqrtPrice)

		diff := new(big.Rat).Sub(pNext, p)
		diff.Abs(diff)

		if logrus.GetLevel() >= logrus.DebugLevel {
			logrus.Debugf("batch auction round %d: price=%s next=%s diff=%s", iterations, p.FloatString(18), pNext.FloatString(18), diff.FloatString(18))
		}

		p = pNext
		if diff.Cmp(tol) <= 0 {
			iterations++
			break
		}
	}

	validBids, validAsks, valid0In, valid1In := h.partitionValid(p)
	zeroForOne, surplusRat := surplusAt(p, valid0In, valid1In)
	surplusAmount := ratFloor(surplusRat)

	swapAmount0, swapAmount1 := ZERO, ZERO
	if surplusAmount.IsPositive() {
		sqrtLimit := MinSqrtRatio.Add(ONE)
		if !zeroForOne {
			sqrtLimit = MaxSqrtRatio.Sub(ONE)
		}
		a0, a1, err := h.Pool.Swap(zeroForOne, surplusAmount, sqrtLimit)
		if err != nil {
			return nil, fmt.Errorf("batch settlement swap: %w", err)
		}
		swapAmount0, swapAmount1 = a0, a1
		if zeroForOne {
			h.Escrow0 = h.Escrow0.Sub(swapAmount0)
			h.Escrow1 = h.Escrow1.Add(swapAmount1.Abs())
		} else {
			h.Escrow1 = h.Escrow1.Sub(swapAmount1)
			h.Escrow0 = h.Escrow0.Add(swapAmount0.Abs())
		}
	}

	validBidSet := map[uint64]bool{}
	for _, o := range validBids {
		validBidSet[o.ID] = true
	}
	validAskSet := map[uint64]bool{}
	for _, o := range validAsks {
		validAskSet[o.ID] = true
	}

	refunds := map[uint64]decimal.Decimal{}
	for _, o := range h.orders {
		if o.IsBid && !validBidSet[o.ID] {
			refunds[o.ID] = o.AmountIn
			h.Escrow0 = h.Escrow0.Sub(o.AmountIn)
		} else if !o.IsBid && !validAskSet[o.ID] {
			refunds[o.ID] = o.AmountIn
			h.Escrow1 = h.Escrow1.Sub(o.AmountIn)
		}
	}

	total1Avail := h.Escrow1
	total0Avail := h.Escrow0
	valid0InDec := ratFloor(valid0In)
	valid1InDec := ratFloor(valid1In)

	payouts := map[uint64]decimal.Decimal{}
	for _, o := range validBids {
		if valid0InDec.IsZero() {
			continue
		}
		share, err := MulDivFloor(o.AmountIn, total1Avail, valid0InDec)
		if err != nil {
			return nil, err
		}
		if share.IsPositive() {
			payouts[o.ID] = share
			h.Escrow1 = h.Escrow1.Sub(share)
		}
	}
	for _, o := range validAsks {
		if valid1InDec.IsZero() {
			continue
		}
		share, err := MulDivFloor(o.AmountIn, total0Avail, valid1InDec)
		if err != nil {
			return nil, err
		}
		if share.IsPositive() {
			payouts[o.ID] = share
			h.Escrow0 = h.Escrow0.Sub(share)
		}
	}

	h.orders = map[uint64]*Order{}
	h.CurrentBatchID++
	h.LastBatchStart = now

	receipt := &BatchReceipt{
		BatchID:       uuid.New(),
		ClearingPrice: priceToQ64x64(p),
		Iterations:    iterations,
		OrdersFilled:  len(payouts),
		SwapAmount0:   swapAmount0,
		SwapAmount1:   swapAmount1,
		Payouts:       payouts,
		Refunds:       refunds,
	}

	if logrus.GetLevel() >= logrus.DebugLevel {
		logrus.Debugf("batch %d settled: pool=%s price=%s iterations=%d filled=%d swap0=%s swap1=%s",
			h.CurrentBatchID, h.Pool.PoolAddress, receipt.ClearingPrice, iterations, len(payouts), swapAmount0, swapAmount1)
	}

	var batchID [16]byte
	copy(batchID[:], receipt.BatchID[:])
	h.Events = append(h.Events, EncodeExecuteBatchEvent(batchID, receipt.ClearingPrice, receipt.OrdersFilled))

	return receipt, nil
}
