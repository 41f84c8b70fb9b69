// Package clmm implements the core of a concentrated-liquidity automated
// market maker in the Uniswap-v3 family plus a batch auction that clears
// multiple orders against a pool at a single uniform price.
//
// The pool engine (slot0, tick map, tick bitmap, position map) lives in
// pool.go, tick.go, tickbitmap.go and position.go. Fixed-point and tick
// math live in fixedpoint.go, tickmath.go and liquiditymath.go. The batch
// auction sits on top in auction.go. Token custody, the position-NFT
// transfer/approval state machine, governance, oracles and cross-pool
// routing are not part of this package; see nft.go for the NFT data
// contract the engine does keep an authoritative copy for.
package clmm
