package clmm

import (
	"fmt"

	"github.com/holiman/uint256"
)

// TickBitmap is the compressed tick index from spec C4: a map from signed
// 16-bit word index to a 256-bit word, where bit b of word w corresponds
// to compressed tick c = w*256+b, i.e. real tick c*tickSpacing. Only ticks
// aligned to tickSpacing may ever be flipped.
type TickBitmap struct {
	words map[int16]*uint256.Int
}

func NewTickBitmap() *TickBitmap {
	return &TickBitmap{words: map[int16]*uint256.Int{}}
}

func (b *TickBitmap) Clone() *TickBitmap {
	nb := NewTickBitmap()
	for k, v := range b.words {
		nb.words[k] = new(uint256.Int).Set(v)
	}
	return nb
}

func position(compressed int) (wordPos int16, bitPos uint8) {
	wordPos = int16(compressed >> 8)
	bitPos = uint8(uint32(compressed) & 0xFF)
	return
}

// FlipTick toggles the bit for tick t. t must be a multiple of tickSpacing.
func (b *TickBitmap) FlipTick(t, tickSpacing int) error {
	if t%tickSpacing != 0 {
		return fmt.Errorf("%w: tick %d not a multiple of spacing %d", ErrTickNotAligned, t, tickSpacing)
	}
	compressed := FloorDivInt(t, tickSpacing)
	wordPos, bitPos := position(compressed)
	word, ok := b.words[wordPos]
	if !ok {
		word = new(uint256.Int)
		b.words[wordPos] = word
	}
	mask := new(uint256.Int).Lsh(uint256.NewInt(1), uint(bitPos))
	word.Xor(word, mask)
	return nil
}

// IsInitialized reports whether tick t's bit is set.
func (b *TickBitmap) IsInitialized(t, tickSpacing int) bool {
	compressed := FloorDivInt(t, tickSpacing)
	wordPos, bitPos := position(compressed)
	word, ok := b.words[wordPos]
	if !ok {
		return false
	}
	mask := new(uint256.Int).Lsh(uint256.NewInt(1), uint(bitPos))
	return new(uint256.Int).And(word, mask).Sign() != 0
}

// NextInitializedTickWithinOneWord finds the next initialized tick inside
// the same 256-bit word as t, searching left-to-right (lte=true, towards
// lower ticks) or right-to-left (lte=false, towards higher ticks). If no
// initialized tick is found within the word, it returns the word's
// boundary tick with found=false so the swap loop can advance a whole
// word in a single step.
func (b *TickBitmap) NextInitializedTickWithinOneWord(t, tickSpacing int, lte bool) (next int, found bool) {
	compressed := FloorDivInt(t, tickSpacing)

	if lte {
		wordPos, bitPos := position(compressed)
		word := b.words[wordPos]
		mask := new(uint256.Int)
		// mask = (1 << (bitPos+1)) - 1, i.e. all bits at position <= bitPos.
		if bitPos == 255 {
			mask.SetAllOne()
		} else {
			mask.Lsh(uint256.NewInt(1), uint(bitPos)+1)
			mask.Sub(mask, uint256.NewInt(1))
		}
		var masked uint256.Int
		if word != nil {
			masked.And(word, mask)
		}
		if masked.Sign() != 0 {
			msb := msbOf(&masked)
			return (int(wordPos)*256 + int(msb)) * tickSpacing, true
		}
		return int(wordPos) * 256 * tickSpacing, false // lowest compressed tick in this word
	}

	compressed++ // start search strictly above t
	wordPos, bitPos := position(compressed)
	word := b.words[wordPos]
	mask := new(uint256.Int)
	// mask = ~((1 << bitPos) - 1), i.e. all bits at position >= bitPos.
	lower := new(uint256.Int).Sub(new(uint256.Int).Lsh(uint256.NewInt(1), uint(bitPos)), uint256.NewInt(1))
	mask.Not(lower)
	var masked uint256.Int
	if word != nil {
		masked.And(word, mask)
	}
	if masked.Sign() != 0 {
		lsb := lsbOf(&masked)
		return (int(wordPos)*256 + int(lsb)) * tickSpacing, true
	}
	return (int(wordPos)*256 + 255) * tickSpacing, false // right boundary of this word
}

// msbOf returns the index of the most significant set bit of x (x != 0).
func msbOf(x *uint256.Int) int {
	return x.BitLen() - 1
}

// lsbOf returns the index of the least significant set bit of x (x != 0).
func lsbOf(x *uint256.Int) int {
	for i := 0; i < 256; i++ {
		if x.Bit(i) == 1 {
			return i
		}
	}
	return 0
}
