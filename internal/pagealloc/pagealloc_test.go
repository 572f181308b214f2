package pagealloc

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestPooledAllocZeroed(t *testing.T) {
	var a Pooled

	h, err := a.Alloc(4) // 16 pages
	require.NoError(t, err)
	require.Len(t, h.Bytes(), PageSize<<4)

	for _, b := range h.Bytes() {
		require.Equal(t, byte(0), b)
	}

	h.Bytes()[10] = 0xAB
	a.Free(h)

	h2, err := a.Alloc(4)
	require.NoError(t, err)
	require.Equal(t, byte(0), h2.Bytes()[10], "freed page must come back zeroed")
}

func TestPooledBucketsByOrder(t *testing.T) {
	var a Pooled

	small, err := a.Alloc(0)
	require.NoError(t, err)
	require.Len(t, small.Bytes(), PageSize)

	big, err := a.Alloc(8)
	require.NoError(t, err)
	require.Len(t, big.Bytes(), PageSize<<8)
}

func TestMmapAllocFree(t *testing.T) {
	var a Mmap

	h, err := a.Alloc(0)
	require.NoError(t, err)
	require.Equal(t, 1, a.Outstanding())

	a.Free(h)
	require.Equal(t, 0, a.Outstanding())
}
