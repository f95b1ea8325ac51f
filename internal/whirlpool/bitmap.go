package whirlpool

import (
	"encoding/binary"

	"github.com/bits-and-blooms/bitset"
)

// BundleSlots is the capacity of a position bundle.
const BundleSlots = 256

// Bitmap is the occupancy bitmap of a bundle: bit i of byte i/8 marks slot i.
type Bitmap [BundleSlots / 8]byte

func (b Bitmap) set() *bitset.BitSet {
	words := make([]uint64, BundleSlots/64)
	for i := range words {
		words[i] = binary.LittleEndian.Uint64(b[i*8:])
	}
	return bitset.From(words)
}

// Occupied returns the occupied slot indices in ascending order.
func (b Bitmap) Occupied() []int {
	s := b.set()
	out := make([]int, 0, s.Count())
	for i, ok := s.NextSet(0); ok; i, ok = s.NextSet(i + 1) {
		out = append(out, int(i))
	}
	return out
}

// Count is the number of occupied slots.
func (b Bitmap) Count() int {
	return int(b.set().Count())
}

// IsOccupied reports whether slot index is in use.
func (b Bitmap) IsOccupied(index int) bool {
	if index < 0 || index >= BundleSlots {
		return false
	}
	return b[index/8]&(1<<(uint(index)%8)) != 0
}

// FirstFree returns the lowest unoccupied slot, or -1 when the bundle is full.
func (b Bitmap) FirstFree() int {
	i, ok := b.set().NextClear(0)
	if !ok || i >= BundleSlots {
		return -1
	}
	return int(i)
}

// Set marks slot index as occupied.
func (b *Bitmap) Set(index int) {
	if index < 0 || index >= BundleSlots {
		return
	}
	b[index/8] |= 1 << (uint(index) % 8)
}
