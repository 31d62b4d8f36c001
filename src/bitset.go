package warbler

/*------------------------------------------------------------------
 *
 * Purpose:	Packed bit array, and the bitstream autocorrelation
 *		function computed over it.
 *
 *		The period detector quantizes the input into a stream
 *		of pulse/no-pulse bits, one per sample.  Correlating
 *		two halves of that stream is then a Hamming distance:
 *		XOR plus popcount, sixty-four samples' worth of signal
 *		per machine word.
 *
 *----------------------------------------------------------------*/

import (
	"math/bits"
)

// Bits per storage word.
const BITSET_VALUE_SIZE = 64

type Bitset struct {
	size     int // number of words
	bit_size int // size * BITSET_VALUE_SIZE
	bit      []uint64
}

func NewBitset(numBits int) *Bitset {
	Assert(numBits > 0)

	var b = new(Bitset)

	b.size = (numBits + BITSET_VALUE_SIZE - 1) / BITSET_VALUE_SIZE
	b.bit_size = b.size * BITSET_VALUE_SIZE
	b.bit = make([]uint64, b.size)

	return b
}

// Size returns the capacity in bits, which is the requested size
// rounded up to a whole number of words.
func (b *Bitset) Size() int {
	return b.bit_size
}

func (b *Bitset) Clear() {
	for i := range b.bit {
		b.bit[i] = 0
	}
}

func (b *Bitset) Get(index int) bool {
	if index < 0 || index >= b.bit_size {
		return false
	}

	return b.bit[index/BITSET_VALUE_SIZE]&(1<<(index%BITSET_VALUE_SIZE)) != 0
}

func (b *Bitset) Set(index int, val bool) {
	if index < 0 || index >= b.bit_size {
		return
	}

	var mask = uint64(1) << (index % BITSET_VALUE_SIZE)
	if val {
		b.bit[index/BITSET_VALUE_SIZE] |= mask
	} else {
		b.bit[index/BITSET_VALUE_SIZE] &^= mask
	}
}

/*------------------------------------------------------------------
 *
 * Name:	Bitset.SetMultiple
 *
 * Purpose:	Set or clear a run of n bits starting at index.
 *
 * Description:	Equivalent to n individual Set calls but done with
 *		masked word operations: a partial head word, then
 *		whole words, then a partial tail word.
 *
 *----------------------------------------------------------------*/

func (b *Bitset) SetMultiple(index int, n int, val bool) {
	if index < 0 || index >= b.bit_size || n <= 0 {
		return
	}

	if index+n > b.bit_size {
		n = b.bit_size - index
	}

	var i = index / BITSET_VALUE_SIZE

	// The first partial word, if the start isn't word aligned.
	var mod = index & (BITSET_VALUE_SIZE - 1)
	if mod != 0 {
		// High (value_size - mod) bits of this word.
		mod = BITSET_VALUE_SIZE - mod

		var mask = ^(^uint64(0) >> mod)

		// Shorten the mask if the run ends inside this word.
		if n < mod {
			mask &= ^uint64(0) >> (mod - n)
		}

		if val {
			b.bit[i] |= mask
		} else {
			b.bit[i] &^= mask
		}

		if n < mod {
			return
		}

		n -= mod
		i++
	}

	// Whole words, value_size bits at a time.
	if n >= BITSET_VALUE_SIZE {
		var fill uint64 = 0
		if val {
			fill = ^uint64(0)
		}
		for n >= BITSET_VALUE_SIZE {
			b.bit[i] = fill
			i++
			n -= BITSET_VALUE_SIZE
		}
	}

	// The final partial word.
	if n != 0 {
		var mask = (uint64(1) << (n & (BITSET_VALUE_SIZE - 1))) - 1
		if val {
			b.bit[i] |= mask
		} else {
			b.bit[i] &^= mask
		}
	}
}

/*------------------------------------------------------------------
 *
 * Purpose:	Bitstream autocorrelation over a Bitset.
 *
 *		GetCorrelation(pos) is the Hamming distance between
 *		the first half of the bitstream and the stretch of the
 *		same length starting pos bits in.  Zero means the two
 *		halves line up perfectly; identical streams give zero
 *		at lag zero by construction.
 *
 *----------------------------------------------------------------*/

type BACF struct {
	bitset    *Bitset
	mid_array int // words compared per call: half the array, less one
}

func NewBACF(bitset *Bitset) *BACF {
	var b = new(BACF)

	b.SetBitset(bitset)

	return b
}

func (b *BACF) SetBitset(bitset *Bitset) {
	b.bitset = bitset
	b.mid_array = (bitset.bit_size/BITSET_VALUE_SIZE)/2 - 1
}

func (b *BACF) GetCorrelation(pos int) int {
	var index = pos / BITSET_VALUE_SIZE
	var shift = pos % BITSET_VALUE_SIZE

	var p = b.bitset.bit
	var count = 0

	if shift == 0 {
		for i := 0; i < b.mid_array; i++ {
			// bits.OnesCount64 compiles to the hardware popcount
			// where there is one, and the portable fallback is
			// bit-exact with it.
			count += bits.OnesCount64(p[i] ^ p[index+i])
		}
	} else {
		var shift2 = BITSET_VALUE_SIZE - shift
		for i := 0; i < b.mid_array; i++ {
			var v = p[index+i] >> shift
			v |= p[index+i+1] << shift2
			count += bits.OnesCount64(p[i] ^ v)
		}
	}

	return count
}
