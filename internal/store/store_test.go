package store

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/behrlich/go-osd/internal/cursor"
	"github.com/behrlich/go-osd/internal/interfaces"
	"github.com/behrlich/go-osd/internal/oerr"
	"github.com/behrlich/go-osd/internal/pagealloc"
	"github.com/behrlich/go-osd/internal/wire"
)

// trackingAllocator wraps pagealloc.Pooled and counts outstanding
// allocations, to assert that Delete/Destroy actually call Free rather than
// just dropping the object table's references.
type trackingAllocator struct {
	pagealloc.Pooled
	live int
}

func (a *trackingAllocator) Alloc(order uint) (interfaces.PageHandle, error) {
	h, err := a.Pooled.Alloc(order)
	if err == nil {
		a.live++
	}
	return h, err
}

func (a *trackingAllocator) Free(h interfaces.PageHandle) {
	a.Pooled.Free(h)
	a.live--
}

func (a *trackingAllocator) outstanding() int { return a.live }

func testIdentity(name string) wire.ObjectIdentity {
	return wire.ObjectIdentity{Pool: 1, Hash: 0, Name: []byte(name)}
}

func writeBytes(t *testing.T, s *Store, id wire.ObjectIdentity, offset uint64, data []byte, mtime wire.Timestamp) {
	t.Helper()
	cur := cursor.NewKernelSegments([]cursor.KernelSegment{{Data: data}}, len(data), cursor.DirRead)
	err := s.Write(id, offset, uint64(len(data)), cur, mtime)
	require.NoError(t, err)
}

func TestWriteThenReadExact(t *testing.T) {
	s := New(&pagealloc.Pooled{})
	id := testIdentity("obj-1")
	mtime := wire.Timestamp{Seconds: 10}

	writeBytes(t, s, id, 0, []byte("hello world"), mtime)

	out, err := s.Read(id, 0, 11)
	require.NoError(t, err)
	require.Equal(t, []byte("hello world"), out)
}

func TestSparseWriteReadHoleIsZeroFilled(t *testing.T) {
	s := New(&pagealloc.Pooled{})
	id := testIdentity("obj-2")
	mtime := wire.Timestamp{Seconds: 1}

	// Write a block far past the start, leaving a hole at [0, 65536).
	writeBytes(t, s, id, 65536, []byte("tail"), mtime)

	out, err := s.Read(id, 0, 65540)
	require.NoError(t, err)
	require.Len(t, out, 65540)
	for i := 0; i < 65536; i++ {
		require.Equalf(t, byte(0), out[i], "hole byte %d not zero", i)
	}
	require.Equal(t, []byte("tail"), out[65536:65540])
}

func TestReadPastEOFTruncatesToSize(t *testing.T) {
	s := New(&pagealloc.Pooled{})
	id := testIdentity("obj-3")
	writeBytes(t, s, id, 0, []byte("abc"), wire.Timestamp{})

	out, err := s.Read(id, 0, 100)
	require.NoError(t, err)
	require.Equal(t, []byte("abc"), out)

	out, err = s.Read(id, 3, 100)
	require.NoError(t, err)
	require.Empty(t, out)

	out, err = s.Read(id, 50, 10)
	require.NoError(t, err)
	require.Empty(t, out)
}

func TestReadMissingObjectIsNotFound(t *testing.T) {
	s := New(&pagealloc.Pooled{})
	_, err := s.Read(testIdentity("ghost"), 0, 1)
	require.Error(t, err)
	require.True(t, oerr.IsKind(err, oerr.NotFound))
}

func TestStatReflectsSizeAndMTimeAfterWrite(t *testing.T) {
	s := New(&pagealloc.Pooled{})
	id := testIdentity("obj-4")
	mtime := wire.Timestamp{Seconds: 555, Nanoseconds: 42}

	writeBytes(t, s, id, 100, []byte("0123456789"), mtime)

	out, err := s.Stat(id)
	require.NoError(t, err)
	require.Len(t, out, 16)

	var size uint64
	for i := 0; i < 8; i++ {
		size |= uint64(out[i]) << (8 * i)
	}
	require.Equal(t, uint64(110), size)
}

func TestWriteAcrossTwoBlocksAllocatesBothAndPreservesData(t *testing.T) {
	s := New(&pagealloc.Pooled{})
	id := testIdentity("obj-5")

	data := make([]byte, 100)
	for i := range data {
		data[i] = byte(i)
	}
	// Straddle the boundary between block 0 and block 1.
	offset := uint64(65536 - 50)
	writeBytes(t, s, id, offset, data, wire.Timestamp{})

	obj, ok := s.table.get(id)
	require.True(t, ok)
	require.Equal(t, 2, obj.NumBlocks())

	out, err := s.Read(id, offset, 100)
	require.NoError(t, err)
	require.Equal(t, data, out)
}

func TestWriteExtendsSizeOnlyWhenPastCurrentEnd(t *testing.T) {
	s := New(&pagealloc.Pooled{})
	id := testIdentity("obj-6")

	writeBytes(t, s, id, 0, []byte("0123456789"), wire.Timestamp{Seconds: 1})
	// Overwrite inside the existing range: size must not shrink or change.
	writeBytes(t, s, id, 2, []byte("XX"), wire.Timestamp{Seconds: 2})

	obj, ok := s.table.get(id)
	require.True(t, ok)
	require.Equal(t, uint64(10), obj.Size)
	require.Equal(t, wire.Timestamp{Seconds: 2}, obj.MTime)

	out, err := s.Read(id, 0, 10)
	require.NoError(t, err)
	require.Equal(t, []byte("01XX456789"), out)
}

func TestNoopWriteSkipsStorageAboveThreshold(t *testing.T) {
	s := New(&pagealloc.Pooled{})
	s.NoopWrite = true
	id := testIdentity("obj-7")

	data := make([]byte, 4096)
	writeBytes(t, s, id, 0, data, wire.Timestamp{Seconds: 9})

	_, ok := s.table.get(id)
	require.False(t, ok, "noop write must not materialize the object")
}

func TestDeleteRemovesObject(t *testing.T) {
	s := New(&pagealloc.Pooled{})
	id := testIdentity("obj-8")
	writeBytes(t, s, id, 0, []byte("x"), wire.Timestamp{})

	require.NoError(t, s.Delete(id))
	require.Equal(t, 0, s.Len())

	err := s.Delete(id)
	require.Error(t, err)
	require.True(t, oerr.IsKind(err, oerr.NotFound))
}

func TestDeleteFreesBlockPagesBackToAllocator(t *testing.T) {
	alloc := &trackingAllocator{}
	s := New(alloc)
	id := testIdentity("obj-9")
	writeBytes(t, s, id, 0, []byte("hello"), wire.Timestamp{})

	require.Equal(t, 1, alloc.outstanding())
	require.NoError(t, s.Delete(id))
	require.Equal(t, 0, alloc.outstanding())
}

func TestDestroyFreesAllBlockPagesAndClearsTable(t *testing.T) {
	alloc := &trackingAllocator{}
	s := New(alloc)

	writeBytes(t, s, testIdentity("obj-10"), 0, []byte("a"), wire.Timestamp{})
	writeBytes(t, s, testIdentity("obj-11"), 65536, []byte("b"), wire.Timestamp{})

	require.Equal(t, 2, alloc.outstanding())
	s.Destroy()
	require.Equal(t, 0, alloc.outstanding())
	require.Equal(t, 0, s.Len())
}
