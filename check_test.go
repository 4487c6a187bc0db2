package memalloc

import (
	"testing"
	"unsafe"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCheckStampDetectsOverrun(t *testing.T) {
	for _, size := range []int{8, 40, MaxSmallRequest, 1000, 70_000} {
		a := newTestAllocator(t, &Config{Check: true})
		p := mustAllocate(t, a, size)
		fill(p, size, 0x5A)

		off := chunkSizeOf(p) - HeaderSize - stampSize
		require.GreaterOrEqual(t, off, size, "stamp must not overlap the request")
		b := (*byte)(unsafe.Add(p, off))

		*b ^= 0xFF
		assert.ErrorIs(t, a.Deallocate(p), ErrCorrupted, "size %d", size)
		assert.True(t, getChunk(p).inUse(), "a rejected chunk stays allocated")

		*b ^= 0xFF
		require.NoError(t, a.Deallocate(p), "size %d", size)
		require.NoError(t, a.Verify())
	}
}

func TestCheckStampIsCleared(t *testing.T) {
	a := newTestAllocator(t, &Config{Check: true})
	p := mustAllocate(t, a, 40)
	c := getChunk(p)
	require.Equal(t, magicFor(c), *c.stamp())

	mustDeallocate(t, a, p)
	assert.Zero(t, *c.stamp())
	assert.ErrorIs(t, a.Deallocate(p), ErrDoubleFree)
}

func TestCheckReservesStampWord(t *testing.T) {
	a := newTestAllocator(t, &Config{Check: true})

	p := mustAllocate(t, a, MaxSmallRequest)
	assert.Equal(t, MinLargeSize, chunkSizeOf(p), "stamp pushes the request into the trie class")
	assert.Equal(t, 1, a.Stats().LargePages)

	q := mustAllocate(t, a, MaxSmallRequest-stampSize)
	assert.Equal(t, MaxSmallChunkSize, chunkSizeOf(q))
	assert.Equal(t, 1, a.Stats().SmallPages)
}

func TestCheckOffLeavesChunkTail(t *testing.T) {
	a := newTestAllocator(t, &Config{Check: false})
	p := mustAllocate(t, a, 48)
	require.Equal(t, 64, chunkSizeOf(p))

	// Without stamps the whole chunk tail is payload.
	fill(p, 48, 0xFF)
	require.NoError(t, a.Deallocate(p))
}

func TestCheckStampOversized(t *testing.T) {
	a := newTestAllocator(t, &Config{Check: true})

	size := MaxLargeRequest + 1
	p := mustAllocate(t, a, size)
	mem := a.direct[uintptr(p)-HeaderSize]
	require.NotNil(t, mem)
	assert.Equal(t, int64(len(mem)), a.UsedSize())

	off := len(mem) - HeaderSize - stampSize
	require.GreaterOrEqual(t, off, size, "stamp must not overlap the request")
	fill(p, size, 0x5A)
	b := (*byte)(unsafe.Add(p, off))

	*b ^= 0xFF
	assert.ErrorIs(t, a.Deallocate(p), ErrCorrupted)
	assert.Equal(t, 1, a.Stats().DirectMappings, "a rejected mapping is kept")

	*b ^= 0xFF
	require.NoError(t, a.Deallocate(p))
	assert.Zero(t, a.Stats().DirectMappings)
	assert.Zero(t, a.UsedSize())
}
