/* This program is free software. It comes without any warranty, to
 * the extent permitted by applicable law. You can redistribute it
 * and/or modify it under the terms of the Do What The Fuck You Want
 * To Public License, Version 2, as published by Sam Hocevar. See
 * http://sam.zoy.org/wtfpl/COPYING for more details. */

package memalloc

const (
	// MallocAlign is the payload alignment and the chunk size quantum.
	MallocAlign = 16
	alignMask   = MallocAlign - 1

	// HeaderSize is the size of the boundary tag in front of every chunk.
	HeaderSize = 16

	// MinChunkSize holds a header plus the two free-list links of a small chunk.
	MinChunkSize = 32

	// Small bins are indexed by size >> SmallBinShift. Bins 0 and 1 are
	// never used because no chunk is smaller than MinChunkSize.
	SmallBinShift     = 4
	NumSmallBins      = 8
	MaxSmallChunkSize = (NumSmallBins - 1) << SmallBinShift // 112
	MaxSmallRequest   = MaxSmallChunkSize - HeaderSize      // 96

	// Tree bins hold one power of two each, starting at MinLargeSize.
	TreeBinShift      = 7
	MinLargeSize      = 1 << TreeBinShift // 128
	MaxLargeShift     = 20
	MaxLargeChunkSize = 1 << MaxLargeShift // 1MB
	MaxLargeRequest   = MaxLargeChunkSize - HeaderSize
	NumTreeBins       = MaxLargeShift - TreeBinShift + 1 // 14

	// DefaultPageSize is the reservation size of the small-chunk arena.
	DefaultPageSize = 64 * 1024
	// DefaultLargePageSize is the reservation size of the large-chunk arena.
	DefaultLargePageSize = 4 * 1024 * 1024

	// stampSize is the trailing word reserved per chunk in check mode.
	stampSize = 8
)

var table = [256]int{
	-1, 0, 1, 1, 2, 2, 2, 2, 3, 3, 3, 3, 3, 3, 3, 3, 4, 4, 4, 4, 4, 4, 4, 4, 4,
	4, 4, 4, 4, 4, 4, 4,
	5, 5, 5, 5, 5, 5, 5, 5, 5, 5, 5, 5, 5, 5, 5, 5, 5, 5, 5, 5, 5, 5, 5, 5, 5,
	5, 5, 5, 5, 5, 5, 5,
	6, 6, 6, 6, 6, 6, 6, 6, 6, 6, 6, 6, 6, 6, 6, 6, 6, 6, 6, 6, 6, 6, 6, 6, 6,
	6, 6, 6, 6, 6, 6, 6,
	6, 6, 6, 6, 6, 6, 6, 6, 6, 6, 6, 6, 6, 6, 6, 6, 6, 6, 6, 6, 6, 6, 6, 6, 6,
	6, 6, 6, 6, 6, 6, 6,
	7, 7, 7, 7, 7, 7, 7, 7, 7, 7, 7, 7, 7, 7, 7, 7, 7, 7, 7, 7, 7, 7, 7, 7, 7,
	7, 7, 7, 7, 7, 7, 7,
	7, 7, 7, 7, 7, 7, 7, 7, 7, 7, 7, 7, 7, 7, 7, 7, 7, 7, 7, 7, 7, 7, 7, 7, 7,
	7, 7, 7, 7, 7, 7, 7,
	7, 7, 7, 7, 7, 7, 7, 7, 7, 7, 7, 7, 7, 7, 7, 7, 7, 7, 7, 7, 7, 7, 7, 7, 7,
	7, 7, 7, 7, 7, 7, 7,
	7, 7, 7, 7, 7, 7, 7, 7, 7, 7, 7, 7, 7, 7, 7, 7, 7, 7, 7, 7, 7, 7, 7, 7, 7,
	7, 7, 7, 7, 7, 7, 7,
}

// roundUp rounds up the given size to the nearest multiple of MallocAlign.
func roundUp(size int) int {
	return (size + alignMask) &^ alignMask
}

// msb returns the index of the most significant set bit, or -1 for zero.
func msb(x uint32) int {
	var a uint32
	if x <= 0xffff {
		if x <= 0xff {
			a = 0
		} else {
			a = 8
		}
	} else {
		if x <= 0xffffff {
			a = 16
		} else {
			a = 24
		}
	}

	return table[x>>a] + int(a)
}

// lsb returns the index of the least significant set bit, or -1 for zero.
func lsb(n uint32) int {
	return msb(n & -n)
}

// setBit sets a specific bit in a uint32 value to 1.
func setBit(nr int, addr *uint32) {
	*addr |= 1 << uint(nr&0x1f)
}

// clearBit clears (sets to 0) a specific bit in a uint32 value.
func clearBit(nr int, addr *uint32) {
	*addr &^= 1 << uint(nr&0x1f)
}

// bitsFrom masks off every bit below nr.
func bitsFrom(nr int) uint32 {
	return ^uint32(0) << uint(nr)
}

// smallIndex returns the small bin for a small chunk size.
func smallIndex(size int) int {
	return size >> SmallBinShift
}

// treeIndex returns the tree bin for a large chunk size: its MSB position
// relative to MinLargeSize.
func treeIndex(size int) int {
	return msb(uint32(size)) - TreeBinShift
}

// sizeKey left-aligns the bits of size below its MSB so that successive
// trie levels can read them from bit 63 downwards.
func sizeKey(size, idx int) uint64 {
	return uint64(size) << uint(64-(idx+TreeBinShift))
}

// padRequest converts a request into a chunk size.
func padRequest(size int, check bool) int {
	n := size + HeaderSize
	if check {
		n += stampSize
	}
	if n < MinChunkSize {
		return MinChunkSize
	}
	return roundUp(n)
}
