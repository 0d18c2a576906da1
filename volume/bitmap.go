package volume

import (
	"math/bits"

	"github.com/boljen/go-bitmap"
)

// Allocator owns the RedSea allocation bitmap and implements first-fit
// contiguous allocation with bit-granular starts and ends (spec §4.3).
//
// Bit b of byte B represents volume-relative sector B*8 + b + reserved,
// where reserved = bitmap_sectors + 1 accounts for the superblock and the
// bitmap itself, neither of which is represented in the bitmap — they are
// treated as permanently allocated.
//
// The allocator is not internally synchronized (spec §5); callers serialize
// structural mutations upstream.
type Allocator struct {
	bits     bitmap.Bitmap
	reserved uint64
}

// NewAllocator wraps raw (bitmap_sectors*512 bytes, loaded from volume byte
// offset 512) as the live allocation bitmap.
func NewAllocator(raw []byte, reserved uint64) *Allocator {
	return &Allocator{bits: bitmap.Bitmap(raw), reserved: reserved}
}

// Bytes returns the bitmap's backing storage, for FlushBitmap.
func (a *Allocator) Bytes() []byte { return a.bits }

func (a *Allocator) bitCount() int { return len(a.bits) * 8 }

func (a *Allocator) indexOf(sector uint64) int {
	return int(sector - a.reserved)
}

func (a *Allocator) sectorOf(index int) uint64 {
	return uint64(index) + a.reserved
}

// IsFree reports whether a single volume-relative sector is unallocated. Per
// Design Note/Open Question 1, the bit must be tested with an explicit
// comparison, not a bare truthiness check.
func (a *Allocator) IsFree(sector uint64) bool {
	return a.bits.Get(a.indexOf(sector)) == false
}

// ForceAllocate marks a single sector allocated unconditionally.
func (a *Allocator) ForceAllocate(sector uint64) {
	a.bits.Set(a.indexOf(sector), true)
}

// FirstFree scans byte-by-byte, bit-by-bit from the lowest address, tracking
// the current run of clear bits, and returns the volume-relative sector of
// the first clear bit of the first run of length >= n. n == 0 returns the
// first clear bit in the bitmap; like every call, it does not mutate the
// bitmap.
func (a *Allocator) FirstFree(n uint64) (uint64, bool) {
	runStart := -1
	var runLen uint64

	total := a.bitCount()
	for i := 0; i < total; i++ {
		if a.bits.Get(i) {
			runStart = -1
			runLen = 0
			continue
		}
		if runStart < 0 {
			runStart = i
		}
		runLen++
		if runLen >= n {
			return a.sectorOf(runStart), true
		}
	}
	return 0, false
}

// Allocate finds the first free run of n contiguous sectors, marks them all
// allocated in one pass, and returns the run's starting sector. It does not
// flush the bitmap to disk. Returns ok=false, unchanged, if no run exists.
func (a *Allocator) Allocate(n uint64) (sector uint64, ok bool) {
	start, ok := a.FirstFree(n)
	if !ok {
		return 0, false
	}
	a.setRun(start, n, true)
	return start, true
}

// Deallocate clears the n bits starting at the volume-relative sector start.
func (a *Allocator) Deallocate(start uint64, n uint64) {
	a.setRun(start, n, false)
}

// setRun sets (or clears) the n bits beginning at volume-relative sector
// start, memset-ing whole interior bytes and bit-masking the head and tail
// partial bytes. This mirrors the original engine's byte-exact algorithm
// (including the "inclusive end byte" policy, where an end bit of 7 folds
// the final byte into the interior memset) rather than looping bit-by-bit
// through the go-bitmap accessor, which would be semantically equivalent but
// would not exercise the same edge cases the spec calls out.
func (a *Allocator) setRun(start uint64, n uint64, value bool) {
	if n == 0 {
		return
	}

	startIndex := uint64(a.indexOf(start))
	endIndex := startIndex + n - 1 // inclusive

	startByte := startIndex / 8
	endByte := endIndex / 8
	startBit := startIndex % 8
	endBit := endIndex % 8

	fill := byte(0x00)
	if value {
		fill = 0xFF
	}

	if startByte == endByte {
		for i := startBit; i <= endBit; i++ {
			a.setBit(startByte, i, value)
		}
		return
	}

	if startBit == 0 {
		a.bits[startByte] = fill
	} else {
		for i := startBit; i < 8; i++ {
			a.setBit(startByte, i, value)
		}
	}

	if endBit == 7 {
		for b := startByte + 1; b <= endByte; b++ {
			a.bits[b] = fill
		}
	} else {
		for b := startByte + 1; b < endByte; b++ {
			a.bits[b] = fill
		}
		for i := uint64(0); i <= endBit; i++ {
			a.setBit(endByte, i, value)
		}
	}
}

func (a *Allocator) setBit(byteIndex, bitIndex uint64, value bool) {
	mask := byte(1) << bitIndex
	if value {
		a.bits[byteIndex] |= mask
	} else {
		a.bits[byteIndex] &^= mask
	}
}

// PopCount returns the number of set bits across the entire bitmap.
func (a *Allocator) PopCount() uint64 {
	var count uint64
	for _, b := range []byte(a.bits) {
		count += uint64(bits.OnesCount8(b))
	}
	return count
}

// UsedClusters returns the popcount of the bitmap plus the reserved sectors
// (superblock + bitmap) that occupy space but are outside the bitmap itself
// (Open Question 3: the spec chooses this form over raw popcount, since it
// reports true occupancy).
func (a *Allocator) UsedClusters() uint64 {
	return a.PopCount() + a.reserved
}
