package memalloc

import (
	"fmt"
	"math/bits"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRoundUp(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name string
		size int
		want int
	}{
		{"roundUp(0)", 0, 0},
		{"roundUp(1)", 1, 16},
		{"roundUp(15)", 15, 16},
		{"roundUp(16)", 16, 16},
		{"roundUp(17)", 17, 32},
		{"roundUp(31)", 31, 32},
		{"roundUp(32)", 32, 32},
		{"roundUp(33)", 33, 48},
		{"roundUp(1024)", 1024, 1024},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, roundUp(tt.size))
		})
	}
}

func TestLSB(t *testing.T) {
	tests := []struct {
		input    uint32
		expected int
	}{
		{0, -1}, // special case
		{1, 0},
		{2, 1},
		{3, 0},
		{4, 2},
		{7, 0},
		{8, 3},
		{15, 0},
		{16, 4},
		{0xFF, 0},
		{0x100, 8},
		{0xFFFF, 0},
		{0x10000, 16},
		{0xFFFFFF, 0},
		{0x1000000, 24},
		{0xFFFFFFFF, 0},
		{0x80000000, 31},
	}

	for _, test := range tests {
		result := lsb(test.input)
		assert.Equal(t, test.expected, result, "lsb(%#x)", test.input)

		// Compare with the standard library implementation
		if test.input != 0 {
			assert.Equal(t, bits.TrailingZeros32(test.input), result, "lsb(%#x) vs math/bits", test.input)
		}
	}
}

func TestMSB(t *testing.T) {
	tests := []struct {
		input    uint32
		expected int
	}{
		{0, -1}, // special case
		{1, 0},
		{2, 1},
		{3, 1},
		{4, 2},
		{7, 2},
		{8, 3},
		{15, 3},
		{16, 4},
		{0xFF, 7},
		{0x100, 8},
		{0xFFFF, 15},
		{0x10000, 16},
		{0xFFFFFF, 23},
		{0x1000000, 24},
		{0xFFFFFFFF, 31},
	}

	for _, test := range tests {
		result := msb(test.input)
		assert.Equal(t, test.expected, result, "msb(%#x)", test.input)

		// Compare with the standard library implementation
		if test.input != 0 {
			assert.Equal(t, bits.Len32(test.input)-1, result, "msb(%#x) vs math/bits", test.input)
		}
	}
}

func TestBitHelpers(t *testing.T) {
	var m uint32
	setBit(3, &m)
	setBit(31, &m)
	assert.Equal(t, uint32(1<<3|1<<31), m)
	clearBit(3, &m)
	assert.Equal(t, uint32(1<<31), m)

	assert.Equal(t, ^uint32(0), bitsFrom(0))
	assert.Equal(t, uint32(0xFFFFFFF0), bitsFrom(4))
}

func TestPadRequest(t *testing.T) {
	tests := []struct {
		size  int
		check bool
		want  int
	}{
		{1, false, MinChunkSize},
		{16, false, MinChunkSize},
		{17, false, 48},
		{MaxSmallRequest, false, MaxSmallChunkSize},
		{MaxSmallRequest + 1, false, MinLargeSize},
		{MaxLargeRequest, false, MaxLargeChunkSize},
		{8, true, MinChunkSize},
		{9, true, 48},
		{MaxSmallRequest, true, MinLargeSize},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprintf("size=%d/check=%v", tt.size, tt.check), func(t *testing.T) {
			assert.Equal(t, tt.want, padRequest(tt.size, tt.check))
		})
	}
}

func TestBinIndexes(t *testing.T) {
	assert.Equal(t, 2, smallIndex(MinChunkSize))
	assert.Equal(t, NumSmallBins-1, smallIndex(MaxSmallChunkSize))

	tests := []struct {
		size int
		want int
	}{
		{MinLargeSize, 0},
		{200, 0},
		{255, 0},
		{256, 1},
		{1024, 3},
		{MaxLargeChunkSize - MallocAlign, NumTreeBins - 2},
		{MaxLargeChunkSize, NumTreeBins - 1},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, treeIndex(tt.size), "treeIndex(%d)", tt.size)
	}
}

func TestSizeKey(t *testing.T) {
	// 0b1_0110_0000: bits below the MSB, high to low, are 0,1,1,0,...
	size := 0x160
	k := sizeKey(size, treeIndex(size))
	var got []uint64
	for range 4 {
		got = append(got, k>>63)
		k <<= 1
	}
	assert.Equal(t, []uint64{0, 1, 1, 0}, got)
}
