package memalloc

import (
	"testing"
	"unsafe"

	"github.com/stretchr/testify/require"
)

// newTestAllocator returns an allocator disposed at the end of the test.
// A nil cfg gives the defaults with check mode off.
func newTestAllocator(t testing.TB, cfg *Config) *Allocator {
	t.Helper()
	if cfg == nil {
		cfg = &Config{}
	}
	a, err := New(cfg)
	require.NoError(t, err)
	t.Cleanup(a.Dispose)
	return a
}

// freeTreeChunk carves a detached free chunk of exactly size bytes.
func freeTreeChunk(t testing.TB, a *Allocator, size int) blockRef {
	t.Helper()
	c, err := a.allocateTreeChunk(size)
	require.NoError(t, err)
	require.False(t, c.inUse())
	return a.refOf(c)
}

// freeSmallChunk carves a detached free small chunk of exactly size bytes.
func freeSmallChunk(t testing.TB, a *Allocator, size int) blockRef {
	t.Helper()
	c, err := a.allocateChunk(size)
	require.NoError(t, err)
	return a.refOf(c)
}

func mustAllocate(t testing.TB, a *Allocator, size int) unsafe.Pointer {
	t.Helper()
	p, err := a.Allocate(size)
	require.NoError(t, err)
	require.NotNil(t, p)
	return p
}

func mustDeallocate(t testing.TB, a *Allocator, p unsafe.Pointer) {
	t.Helper()
	require.NoError(t, a.Deallocate(p))
}

func chunkSizeOf(p unsafe.Pointer) int {
	return getChunk(p).size()
}

func fill(p unsafe.Pointer, n int, v byte) {
	b := unsafe.Slice((*byte)(p), n)
	for i := range b {
		b[i] = v
	}
}

func filledWith(p unsafe.Pointer, n int, v byte) bool {
	for _, x := range unsafe.Slice((*byte)(p), n) {
		if x != v {
			return false
		}
	}
	return true
}
