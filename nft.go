package clmm

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"

	"github.com/shopspring/decimal"
)

// TokenPosition is the NFT envelope around a pool position: it remembers
// which pool and range a token id was minted against so the caller never
// has to carry that context itself. The authoritative liquidity and fee
// bookkeeping still lives in the pool's own PositionManager, keyed by
// tokenIDKey(tokenID) ("nft:<id>") — per the position-key rule, a second mint
// into the same range opens a distinct position under its own token id
// rather than merging into an existing one.
type TokenPosition struct {
	TokenID     uint64
	Owner       string
	PoolAddress string
	TickLower   int
	TickUpper   int
}

func tokenIDKey(tokenID uint64) string {
	return fmt.Sprintf("nft:%d", tokenID)
}

// TokenPositionManager is the NFT registry from spec §6.4: it dispenses
// token ids, binds them to a pool, and indexes them by owner and by pool
// so a wallet's or a pool's positions can be listed without scanning the
// pool's own position map.
type TokenPositionManager struct {
	pools       map[string]*CorePool
	nextTokenID uint64

	Tokens      map[uint64]*TokenPosition
	OwnerTokens map[string][]uint64
	PoolTokens  map[string][]uint64
}

func NewTokenPositionManager() *TokenPositionManager {
	return &TokenPositionManager{
		pools:       map[string]*CorePool{},
		nextTokenID: 1,
		Tokens:      map[uint64]*TokenPosition{},
		OwnerTokens: map[string][]uint64{},
		PoolTokens:  map[string][]uint64{},
	}
}

// RegisterPool makes a pool mintable through this manager.
func (tpm *TokenPositionManager) RegisterPool(pool *CorePool) {
	tpm.pools[pool.PoolAddress] = pool
}

func (tpm *TokenPositionManager) Clone() *TokenPositionManager {
	ntpm := &TokenPositionManager{
		pools:       tpm.pools,
		nextTokenID: tpm.nextTokenID,
		Tokens:      make(map[uint64]*TokenPosition, len(tpm.Tokens)),
		OwnerTokens: make(map[string][]uint64, len(tpm.OwnerTokens)),
		PoolTokens:  make(map[string][]uint64, len(tpm.PoolTokens)),
	}
	for k, v := range tpm.Tokens {
		cp := *v
		ntpm.Tokens[k] = &cp
	}
	for owner, ids := range tpm.OwnerTokens {
		cp := make([]uint64, len(ids))
		copy(cp, ids)
		ntpm.OwnerTokens[owner] = cp
	}
	for pool, ids := range tpm.PoolTokens {
		cp := make([]uint64, len(ids))
		copy(cp, ids)
		ntpm.PoolTokens[pool] = cp
	}
	return ntpm
}

// Mint opens a new NFT-wrapped position and returns its token id alongside
// the token amounts the mint required.
func (tpm *TokenPositionManager) Mint(owner, poolAddress string, tickLower, tickUpper int, amount decimal.Decimal) (uint64, decimal.Decimal, decimal.Decimal, error) {
	pool, ok := tpm.pools[poolAddress]
	if !ok {
		return 0, ZERO, ZERO, fmt.Errorf("%w: %s", ErrNftWrongPool, poolAddress)
	}

	tokenID := tpm.nextTokenID
	amount0, amount1, err := pool.Mint(tokenIDKey(tokenID), tickLower, tickUpper, amount)
	if err != nil {
		return 0, ZERO, ZERO, err
	}
	tpm.nextTokenID++

	tpm.Tokens[tokenID] = &TokenPosition{
		TokenID:     tokenID,
		Owner:       owner,
		PoolAddress: poolAddress,
		TickLower:   tickLower,
		TickUpper:   tickUpper,
	}
	tpm.OwnerTokens[owner] = append(tpm.OwnerTokens[owner], tokenID)
	tpm.PoolTokens[poolAddress] = append(tpm.PoolTokens[poolAddress], tokenID)
	return tokenID, amount0, amount1, nil
}

func (tpm *TokenPositionManager) resolve(tokenID uint64) (*TokenPosition, *CorePool, error) {
	tok, ok := tpm.Tokens[tokenID]
	if !ok {
		return nil, nil, fmt.Errorf("%w: token %d", ErrInvalidPosition, tokenID)
	}
	pool, ok := tpm.pools[tok.PoolAddress]
	if !ok {
		return nil, nil, fmt.Errorf("%w: %s", ErrNftWrongPool, tok.PoolAddress)
	}
	return tok, pool, nil
}

// IncreaseLiquidity adds to an existing token's position.
func (tpm *TokenPositionManager) IncreaseLiquidity(tokenID uint64, amount decimal.Decimal) (decimal.Decimal, decimal.Decimal, error) {
	tok, pool, err := tpm.resolve(tokenID)
	if err != nil {
		return ZERO, ZERO, err
	}
	return pool.Mint(tokenIDKey(tokenID), tok.TickLower, tok.TickUpper, amount)
}

// DecreaseLiquidity burns liquidity out of a token's position, crediting
// the freed amounts to tokens owed without transferring them.
func (tpm *TokenPositionManager) DecreaseLiquidity(tokenID uint64, amount decimal.Decimal) (decimal.Decimal, decimal.Decimal, error) {
	tok, pool, err := tpm.resolve(tokenID)
	if err != nil {
		return ZERO, ZERO, err
	}
	return pool.Burn(tokenIDKey(tokenID), tok.TickLower, tok.TickUpper, amount)
}

// Collect pays out up to (max0,max1) owed tokens for a token id, 0 meaning "all".
func (tpm *TokenPositionManager) Collect(tokenID uint64, max0, max1 decimal.Decimal) (decimal.Decimal, decimal.Decimal, error) {
	tok, pool, err := tpm.resolve(tokenID)
	if err != nil {
		return ZERO, ZERO, err
	}
	return pool.Collect(tokenIDKey(tokenID), tok.TickLower, tok.TickUpper, max0, max1)
}

// Burn removes the NFT envelope once its underlying position carries no
// liquidity and no owed tokens.
func (tpm *TokenPositionManager) Burn(tokenID uint64) error {
	tok, pool, err := tpm.resolve(tokenID)
	if err != nil {
		return err
	}
	if err := pool.BurnPosition(tokenIDKey(tokenID), tok.TickLower, tok.TickUpper); err != nil {
		return err
	}
	delete(tpm.Tokens, tokenID)

	ownerTokens := tpm.OwnerTokens[tok.Owner]
	for i, id := range ownerTokens {
		if id == tokenID {
			ownerTokens[i] = ownerTokens[len(ownerTokens)-1]
			tpm.OwnerTokens[tok.Owner] = ownerTokens[:len(ownerTokens)-1]
			break
		}
	}
	poolTokens := tpm.PoolTokens[tok.PoolAddress]
	for i, id := range poolTokens {
		if id == tokenID {
			poolTokens[i] = poolTokens[len(poolTokens)-1]
			tpm.PoolTokens[tok.PoolAddress] = poolTokens[:len(poolTokens)-1]
			break
		}
	}
	return nil
}

// Transfer reassigns a token id's owner without touching its liquidity or
// pool position; the position's authoritative key stays the token id.
func (tpm *TokenPositionManager) Transfer(tokenID uint64, from, to string) error {
	tok, ok := tpm.Tokens[tokenID]
	if !ok {
		return fmt.Errorf("%w: token %d", ErrInvalidPosition, tokenID)
	}
	if tok.Owner != from {
		return fmt.Errorf("%w: token %d owned by %s, not %s", ErrUnauthorized, tokenID, tok.Owner, from)
	}
	tok.Owner = to

	ownerTokens := tpm.OwnerTokens[from]
	for i, id := range ownerTokens {
		if id == tokenID {
			ownerTokens[i] = ownerTokens[len(ownerTokens)-1]
			tpm.OwnerTokens[from] = ownerTokens[:len(ownerTokens)-1]
			break
		}
	}
	tpm.OwnerTokens[to] = append(tpm.OwnerTokens[to], tokenID)
	return nil
}

func (tpm *TokenPositionManager) PositionsByOwner(owner string) []*TokenPosition {
	ids := tpm.OwnerTokens[owner]
	out := make([]*TokenPosition, 0, len(ids))
	for _, id := range ids {
		if tok, ok := tpm.Tokens[id]; ok {
			out = append(out, tok)
		}
	}
	return out
}

func (tpm *TokenPositionManager) PositionsByPool(poolAddress string) []*TokenPosition {
	ids := tpm.PoolTokens[poolAddress]
	out := make([]*TokenPosition, 0, len(ids))
	for _, id := range ids {
		if tok, ok := tpm.Tokens[id]; ok {
			out = append(out, tok)
		}
	}
	return out
}

// GormDataType stores the registry's index maps as a JSON blob, for a GORM
// column that doesn't map to a native SQL type.
func (tpm *TokenPositionManager) GormDataType() string {
	return "LONGTEXT"
}

func (tpm *TokenPositionManager) Scan(value interface{}) error {
	switch v := value.(type) {
	case []byte:
		return json.Unmarshal(v, tpm)
	case string:
		return json.Unmarshal([]byte(v), tpm)
	case nil:
		return nil
	default:
		return fmt.Errorf("cannot scan %T into TokenPositionManager", value)
	}
}

func (tpm *TokenPositionManager) Value() (driver.Value, error) {
	bs, err := json.Marshal(tpm)
	if err != nil {
		return nil, err
	}
	return string(bs), nil
}
