package clmm

import (
	"fmt"
	"time"

	"github.com/CoinSummer/clmm-engine/internal/config"
	"github.com/CoinSummer/clmm-engine/internal/feed"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Engine is the top-level orchestrator: it owns every pool, the shared NFT
// position registry, one batch auction per pool, and the notification
// feed, the same role the teacher's NFTPositionSimulator plays as the
// entry point wrapping a pool map plus a token position manager.
type Engine struct {
	config   *config.Config
	pools    map[string]*CorePool
	auctions map[string]*AuctionHouse
	nft      *TokenPositionManager
	feed     *feed.Broadcaster
}

func NewEngine(cfg *config.Config) *Engine {
	return &Engine{
		config:   cfg,
		pools:    map[string]*CorePool{},
		auctions: map[string]*AuctionHouse{},
		nft:      NewTokenPositionManager(),
		feed:     feed.NewBroadcaster(),
	}
}

func (e *Engine) Feed() *feed.Broadcaster { return e.feed }

// CreatePool validates and registers a new pool, wiring it into the NFT
// registry and spinning up its batch auction.
func (e *Engine) CreatePool(addr string, poolCfg PoolConfig, initialSqrtPriceX96 decimal.Decimal, now time.Time) (*CorePool, error) {
	if _, exists := e.pools[addr]; exists {
		return nil, fmt.Errorf("%w: pool %s already exists", ErrInvalidPosition, addr)
	}
	fee := poolCfg.Fee
	if uint32(fee) < e.config.Pool.MinFeeBps || uint32(fee) > e.config.Pool.MaxFeeBps {
		return nil, fmt.Errorf("%w: fee_bps %d outside configured bounds [%d, %d]", ErrInvalidFee, fee, e.config.Pool.MinFeeBps, e.config.Pool.MaxFeeBps)
	}

	pool, err := CreatePool(addr, poolCfg, initialSqrtPriceX96)
	if err != nil {
		return nil, err
	}
	e.pools[addr] = pool
	e.nft.RegisterPool(pool)

	tolerance, tErr := decimal.NewFromString(e.config.Auction.Tolerance)
	if tErr != nil {
		tolerance = ONE
	}
	batchDuration := time.Duration(e.config.Auction.BatchDurationMs) * time.Millisecond
	e.auctions[addr] = NewAuctionHouse(pool, e.config.Auction.MaxIterations, tolerance, batchDuration, now)
	return pool, nil
}

func (e *Engine) GetPool(addr string) (*CorePool, error) {
	pool, ok := e.pools[addr]
	if !ok {
		return nil, fmt.Errorf("%w: pool %s", ErrInvalidPosition, addr)
	}
	return pool, nil
}

func (e *Engine) GetAuctionHouse(addr string) (*AuctionHouse, error) {
	house, ok := e.auctions[addr]
	if !ok {
		return nil, fmt.Errorf("%w: pool %s", ErrInvalidPosition, addr)
	}
	return house, nil
}

func (e *Engine) NFTPositions() *TokenPositionManager { return e.nft }

// ExecuteBatch runs the named pool's auction and publishes the outcome to
// the notification feed.
func (e *Engine) ExecuteBatch(poolAddr string, now time.Time) (*BatchReceipt, error) {
	house, err := e.GetAuctionHouse(poolAddr)
	if err != nil {
		return nil, err
	}
	receipt, err := house.ExecuteBatch(now)
	if err != nil {
		return nil, err
	}
	e.feed.Publish(feed.BatchNotification{
		Pool:          poolAddr,
		BatchID:       receipt.BatchID.String(),
		ClearingPrice: receipt.ClearingPrice.String(),
		OrdersFilled:  receipt.OrdersFilled,
		NetAmount0:    receipt.SwapAmount0.String(),
		NetAmount1:    receipt.SwapAmount1.String(),
	})
	return receipt, nil
}

// Flush persists every pool's current snapshot, the multi-pool counterpart
// of CorePool.Flush.
func (e *Engine) Flush(db *gorm.DB) error {
	for _, pool := range e.pools {
		if err := pool.Flush(db); err != nil {
			return fmt.Errorf("flush pool %s: %w", pool.PoolAddress, err)
		}
	}
	return nil
}
