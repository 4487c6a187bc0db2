package vmem

import (
	"testing"
	"unsafe"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPageSize(t *testing.T) {
	ps := PageSize()
	require.Greater(t, ps, 0)
	assert.Zero(t, ps&(ps-1), "page size %d is not a power of two", ps)
}

func TestRoundUp(t *testing.T) {
	ps := PageSize()
	tests := []struct {
		name string
		size int
		want int
	}{
		{"one byte", 1, ps},
		{"exact page", ps, ps},
		{"page plus one", ps + 1, 2 * ps},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, RoundUp(tt.size))
		})
	}
}

func TestReserveRelease(t *testing.T) {
	size := 4 * PageSize()
	b, err := Reserve(size)
	require.NoError(t, err)
	require.Len(t, b, size)
	assert.Zero(t, uintptr(unsafe.Pointer(&b[0]))%uintptr(PageSize()), "region not page aligned")

	for i := range b {
		require.Zero(t, b[i], "byte %d not zeroed", i)
	}
	b[0], b[size-1] = 0xAA, 0x55
	assert.Equal(t, byte(0xAA), b[0])
	assert.Equal(t, byte(0x55), b[size-1])

	require.NoError(t, Release(b))
}

func TestReserveInvalidSize(t *testing.T) {
	_, err := Reserve(0)
	require.ErrorIs(t, err, ErrReserve)
	_, err = Reserve(-1)
	require.ErrorIs(t, err, ErrReserve)
}

func TestReleaseEmpty(t *testing.T) {
	require.NoError(t, Release(nil))
}
