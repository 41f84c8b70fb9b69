package clmm

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/shopspring/decimal"
)

// Event signatures, the encode-side counterpart of the NFT manager's
// decode-side NonfungiblePositionManager*Sig constants: here the engine is
// the emitter, so each signature is the real Keccak256 hash of the event's
// canonical signature string rather than a recorded on-chain constant.
var (
	MintEventSig         = crypto.Keccak256Hash([]byte("Mint(address,int24,int24,uint256,uint256,uint256)"))
	BurnEventSig         = crypto.Keccak256Hash([]byte("Burn(address,int24,int24,uint256,uint256,uint256)"))
	CollectEventSig      = crypto.Keccak256Hash([]byte("Collect(address,int24,int24,uint256,uint256)"))
	SwapEventSig         = crypto.Keccak256Hash([]byte("Swap(address,bool,int256,int256,uint160,int24)"))
	PlaceOrderEventSig   = crypto.Keccak256Hash([]byte("PlaceOrder(uint256,address,bool,uint256,uint256)"))
	CancelOrderEventSig  = crypto.Keccak256Hash([]byte("CancelOrder(uint256)"))
	ExecuteBatchEventSig = crypto.Keccak256Hash([]byte("ExecuteBatch(bytes16,uint256,uint256)"))
)

func decimalTopic(d decimal.Decimal) common.Hash {
	return common.BigToHash(d.BigInt())
}

func int24Topic(tick int) common.Hash {
	return common.BigToHash(big.NewInt(int64(tick)))
}

func decimalWord(d decimal.Decimal) []byte {
	return common.LeftPadBytes(d.BigInt().Bytes(), 32)
}

// EncodeMintEvent produces the log a Mint call emits: owner and the tick
// range are indexed, the liquidity delta and required amounts are data —
// the mirror image of parseNFTMintEvent's topic/data split.
func EncodeMintEvent(poolAddress, owner string, tickLower, tickUpper int, liquidityDelta, amount0, amount1 decimal.Decimal) *types.Log {
	data := append([]byte{}, decimalWord(liquidityDelta)...)
	data = append(data, decimalWord(amount0)...)
	data = append(data, decimalWord(amount1)...)
	return &types.Log{
		Address: common.HexToAddress(poolAddress),
		Topics:  []common.Hash{MintEventSig, common.HexToHash(owner), int24Topic(tickLower), int24Topic(tickUpper)},
		Data:    data,
	}
}

// EncodeBurnEvent mirrors EncodeMintEvent for a burn.
func EncodeBurnEvent(poolAddress, owner string, tickLower, tickUpper int, liquidityDelta, amount0, amount1 decimal.Decimal) *types.Log {
	data := append([]byte{}, decimalWord(liquidityDelta)...)
	data = append(data, decimalWord(amount0)...)
	data = append(data, decimalWord(amount1)...)
	return &types.Log{
		Address: common.HexToAddress(poolAddress),
		Topics:  []common.Hash{BurnEventSig, common.HexToHash(owner), int24Topic(tickLower), int24Topic(tickUpper)},
		Data:    data,
	}
}

// EncodeCollectEvent records a payout of tokens owed.
func EncodeCollectEvent(poolAddress, owner string, tickLower, tickUpper int, amount0, amount1 decimal.Decimal) *types.Log {
	data := append([]byte{}, decimalWord(amount0)...)
	data = append(data, decimalWord(amount1)...)
	return &types.Log{
		Address: common.HexToAddress(poolAddress),
		Topics:  []common.Hash{CollectEventSig, common.HexToHash(owner), int24Topic(tickLower), int24Topic(tickUpper)},
		Data:    data,
	}
}

// EncodeSwapEvent records the result of a pool swap: direction is indexed,
// the traded amounts and resulting price/tick are data.
func EncodeSwapEvent(poolAddress string, zeroForOne bool, amount0, amount1, sqrtPriceX96 decimal.Decimal, tick int) *types.Log {
	var dirWord [32]byte
	if zeroForOne {
		dirWord[31] = 1
	}
	data := append([]byte{}, decimalWord(amount0)...)
	data = append(data, decimalWord(amount1)...)
	data = append(data, decimalWord(sqrtPriceX96)...)
	data = append(data, decimalWord(decimal.NewFromInt(int64(tick)))...)
	return &types.Log{
		Address: common.HexToAddress(poolAddress),
		Topics:  []common.Hash{SwapEventSig, common.BytesToHash(dirWord[:])},
		Data:    data,
	}
}

// EncodePlaceOrderEvent records an order entering the book for the next
// batch: is_bid is indexed (a bid sells token0 for token1), amount_in and
// min_amount_out are data.
func EncodePlaceOrderEvent(orderID uint64, owner string, isBid bool, amountIn, minAmountOut decimal.Decimal) *types.Log {
	var sideWord [32]byte
	if isBid {
		sideWord[31] = 1
	}
	data := append([]byte{}, decimalWord(amountIn)...)
	data = append(data, decimalWord(minAmountOut)...)
	return &types.Log{
		Topics: []common.Hash{PlaceOrderEventSig, common.BigToHash(new(big.Int).SetUint64(orderID)), common.HexToHash(owner), common.BytesToHash(sideWord[:])},
		Data:   data,
	}
}

// EncodeCancelOrderEvent records an order withdrawn before the batch ran.
func EncodeCancelOrderEvent(orderID uint64) *types.Log {
	return &types.Log{Topics: []common.Hash{CancelOrderEventSig, common.BigToHash(new(big.Int).SetUint64(orderID))}}
}

// EncodeExecuteBatchEvent records a batch's clearing price and the number
// of orders it settled, using a google/uuid-derived batch id as the
// idempotency key callers can use to detect a replayed notification.
func EncodeExecuteBatchEvent(batchID [16]byte, clearingPrice decimal.Decimal, ordersFilled int) *types.Log {
	data := append([]byte{}, decimalWord(clearingPrice)...)
	data = append(data, decimalWord(decimal.NewFromInt(int64(ordersFilled)))...)
	return &types.Log{
		Topics: []common.Hash{ExecuteBatchEventSig, common.BytesToHash(batchID[:])},
		Data:   data,
	}
}
