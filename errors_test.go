package osd

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNewErrorCarriesKind(t *testing.T) {
	err := NewError("store.Read", NotFound, "object not found")
	require.True(t, IsKind(err, NotFound))
	require.False(t, IsKind(err, OutOfMemory))
	require.Contains(t, err.Error(), "object not found")
}

func TestWrapErrorPreservesInnerViaUnwrap(t *testing.T) {
	inner := errors.New("mmap failed")
	err := WrapError("pagealloc.Alloc", OutOfMemory, inner)
	require.True(t, IsKind(err, OutOfMemory))
	require.ErrorIs(t, err, inner)
}

func TestWrapErrorNilIsNil(t *testing.T) {
	require.Nil(t, WrapError("x", Timeout, nil))
}

func TestErrnoMapping(t *testing.T) {
	require.Equal(t, int32(-2), NotFound.Errno())
	require.Equal(t, int32(-12), OutOfMemory.Errno())
	require.Equal(t, int32(-14), BadAddress.Errno())
	require.Equal(t, int32(-95), UnsupportedOp.Errno())
}
