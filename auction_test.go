package clmm

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func auctionFixture(t *testing.T, now time.Time) (*CorePool, *AuctionHouse) {
	t.Helper()
	pool := scenarioPool(t)
	_, _, err := pool.Mint("lp1", -6000, 6000, decimal.NewFromInt(100_000_000))
	require.NoError(t, err)
	house := NewAuctionHouse(pool, 3, decimal.RequireFromString("0.000000001"), time.Minute, now)
	return pool, house
}

// S6: two bids and two asks of equal size against an in-range pool should
// net out to zero surplus and settle every order pro-rata without moving
// the pool's price.
func TestAuction_S6_BalancedBook(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	pool, house := auctionFixture(t, now)
	startSqrtPrice := pool.SqrtPriceX96

	_, err := house.PlaceOrder("bidder1", true, decimal.NewFromInt(100), ZERO, now)
	require.NoError(t, err)
	_, err = house.PlaceOrder("bidder2", true, decimal.NewFromInt(100), ZERO, now)
	require.NoError(t, err)
	_, err = house.PlaceOrder("asker1", false, decimal.NewFromInt(100), ZERO, now)
	require.NoError(t, err)
	_, err = house.PlaceOrder("asker2", false, decimal.NewFromInt(100), ZERO, now)
	require.NoError(t, err)

	receipt, err := house.ExecuteBatch(now)
	require.NoError(t, err)

	assert.Equal(t, 4, receipt.OrdersFilled)
	assert.Empty(t, receipt.Refunds)
	assert.True(t, receipt.SwapAmount0.IsZero())
	assert.True(t, receipt.SwapAmount1.IsZero())
	assert.True(t, pool.SqrtPriceX96.Equal(startSqrtPrice), "a perfectly netting book must not touch the pool")

	var totalBidPayout, totalAskPayout decimal.Decimal
	for id, amt := range receipt.Payouts {
		order, ok := house.orders[id]
		_ = order
		_ = ok
		if id <= 2 {
			totalBidPayout = totalBidPayout.Add(amt)
		} else {
			totalAskPayout = totalAskPayout.Add(amt)
		}
	}
	assert.True(t, totalBidPayout.Equal(decimal.NewFromInt(200)))
	assert.True(t, totalAskPayout.Equal(decimal.NewFromInt(200)))
	assert.Empty(t, house.orders, "the order table resets after a batch")
	assert.Equal(t, uint64(1), house.CurrentBatchID)
}

func TestAuction_PlaceOrder_EscrowsInput(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	_, house := auctionFixture(t, now)

	_, err := house.PlaceOrder("bidder1", true, decimal.NewFromInt(500), ZERO, now)
	require.NoError(t, err)
	assert.True(t, house.Escrow0.Equal(decimal.NewFromInt(500)))
	assert.True(t, house.Escrow1.IsZero())

	_, err = house.PlaceOrder("asker1", false, decimal.NewFromInt(300), ZERO, now)
	require.NoError(t, err)
	assert.True(t, house.Escrow1.Equal(decimal.NewFromInt(300)))
}

func TestAuction_PlaceOrder_RejectsZeroAmount(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	_, house := auctionFixture(t, now)
	_, err := house.PlaceOrder("bidder1", true, ZERO, ZERO, now)
	require.ErrorIs(t, err, ErrZeroAmount)
}

func TestAuction_CancelOrder_RefundsAndRequiresOwnership(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	_, house := auctionFixture(t, now)

	order, err := house.PlaceOrder("bidder1", true, decimal.NewFromInt(500), ZERO, now)
	require.NoError(t, err)

	_, err = house.CancelOrder("someone-else", order.ID)
	require.ErrorIs(t, err, ErrUnauthorized)

	refund, err := house.CancelOrder("bidder1", order.ID)
	require.NoError(t, err)
	assert.True(t, refund.Equal(decimal.NewFromInt(500)))
	assert.True(t, house.Escrow0.IsZero())

	_, err = house.CancelOrder("bidder1", order.ID)
	require.ErrorIs(t, err, ErrOrderNotFound)
}

func TestAuction_PlaceOrder_RejectsAfterExpiry(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	_, house := auctionFixture(t, now)
	later := now.Add(2 * time.Minute)
	_, err := house.PlaceOrder("bidder1", true, decimal.NewFromInt(100), ZERO, later)
	require.ErrorIs(t, err, ErrAuctionExpired)
}

// Asks with an unreachable min_amount_out must be refunded rather than
// settled, and must not dilute the valid side's payout.
func TestAuction_InvalidOrdersAreRefunded(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	pool, house := auctionFixture(t, now)
	_ = pool

	validBid, err := house.PlaceOrder("bidder1", true, decimal.NewFromInt(100), ZERO, now)
	require.NoError(t, err)
	validAsk, err := house.PlaceOrder("asker1", false, decimal.NewFromInt(100), ZERO, now)
	require.NoError(t, err)
	// Impossible to satisfy at any price near 1: demands 1,000,000 token0
	// out of 1 token1 in.
	badAsk, err := house.PlaceOrder("asker2", false, decimal.NewFromInt(1), decimal.NewFromInt(1_000_000), now)
	require.NoError(t, err)

	receipt, err := house.ExecuteBatch(now)
	require.NoError(t, err)

	assert.Contains(t, receipt.Refunds, badAsk.ID)
	assert.True(t, receipt.Refunds[badAsk.ID].Equal(decimal.NewFromInt(1)))
	assert.NotContains(t, receipt.Payouts, badAsk.ID)
	assert.Contains(t, receipt.Payouts, validBid.ID)
	assert.Contains(t, receipt.Payouts, validAsk.ID)
}

func TestAuction_EmptyBatchStillAdvances(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	_, house := auctionFixture(t, now)
	receipt, err := house.ExecuteBatch(now)
	require.NoError(t, err)
	assert.Equal(t, 0, receipt.OrdersFilled)
	assert.Equal(t, uint64(1), house.CurrentBatchID)
}

// An imbalanced book (bids for 1000 token0 against asks for only 400
// token1, both with min_amount_out=0 so validity never depends on the
// discovered price) forces a real settlement swap of the 600 token0
// surplus. The house must debit that surplus from Escrow0 before paying
// the ask pro-rata out of total0Avail — paying out the pre-swap escrow
// total of 1000 would hand the ask tokens the house no longer holds.
func TestAuction_ImbalancedBook_SettlementDoesNotOverpay(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	pool, house := auctionFixture(t, now)
	_ = pool

	_, err := house.PlaceOrder("bidder1", true, decimal.NewFromInt(1000), ZERO, now)
	require.NoError(t, err)
	ask, err := house.PlaceOrder("asker1", false, decimal.NewFromInt(400), ZERO, now)
	require.NoError(t, err)

	receipt, err := house.ExecuteBatch(now)
	require.NoError(t, err)

	require.True(t, receipt.SwapAmount0.IsPositive(), "a 1000-vs-400 book at p~=1 must route its surplus through the pool")
	require.Contains(t, receipt.Payouts, ask.ID)

	askPayout := receipt.Payouts[ask.ID]
	// Pre-fix, the ask was paid from the escrow's stale pre-swap balance of
	// 1000 token0 even though swapAmount0 of that had already left for the
	// pool; the house only ever held 1000-swapAmount0.
	maxAvailable := decimal.NewFromInt(1000).Sub(receipt.SwapAmount0)
	assert.True(t, askPayout.LessThanOrEqual(maxAvailable), "ask payout %s must not exceed what the house actually holds (%s)", askPayout, maxAvailable)
	assert.True(t, askPayout.LessThan(decimal.NewFromInt(1000)), "ask must not be paid the stale pre-swap escrow total")
	assert.True(t, house.Escrow0.GreaterThanOrEqual(ZERO), "escrow0 must never go negative")
	assert.True(t, house.Escrow1.GreaterThanOrEqual(ZERO), "escrow1 must never go negative")
}

// Every successful order-book and batch operation must append an event,
// mirroring the ABI-style logs CorePool emits for Mint/Burn/Collect/Swap.
func TestAuction_Events_RecordedPerOperation(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	_, house := auctionFixture(t, now)

	order, err := house.PlaceOrder("bidder1", true, decimal.NewFromInt(100), ZERO, now)
	require.NoError(t, err)
	require.Len(t, house.Events, 1)
	assert.Equal(t, PlaceOrderEventSig, house.Events[0].Topics[0])

	_, err = house.PlaceOrder("asker1", false, decimal.NewFromInt(100), ZERO, now)
	require.NoError(t, err)
	require.Len(t, house.Events, 2)

	_, err = house.CancelOrder("bidder1", order.ID)
	require.NoError(t, err)
	require.Len(t, house.Events, 3)
	assert.Equal(t, CancelOrderEventSig, house.Events[2].Topics[0])

	receipt, err := house.ExecuteBatch(now)
	require.NoError(t, err)
	require.Len(t, house.Events, 4)
	assert.Equal(t, ExecuteBatchEventSig, house.Events[3].Topics[0])
	_ = receipt
}
