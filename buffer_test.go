package httpwire

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestBufferRetainReleaseCount(t *testing.T) {
	b := NewBuffer([]byte("abc"))
	require.EqualValues(t, 1, b.RefCount())
	b.Retain()
	require.EqualValues(t, 2, b.RefCount())
	require.False(t, b.Release())
	require.True(t, b.Release())
}

func TestBufferOverReleasePanics(t *testing.T) {
	b := NewBuffer([]byte("x"))
	b.Release()
	require.Panics(t, func() { b.Release() })
}

func TestCompositeBufferConcatenatesAndReleasesInputs(t *testing.T) {
	a := NewBuffer([]byte("foo"))
	b := NewBuffer([]byte("bar"))
	composite := CompositeBuffer(a, b)
	require.Equal(t, "foobar", string(composite.Bytes()))
	require.EqualValues(t, 0, a.RefCount())
	require.EqualValues(t, 0, b.RefCount())
}

func TestEmptyBufferRetainReleaseAreNoOps(t *testing.T) {
	require.False(t, EmptyBuffer.Release())
	require.Equal(t, EmptyBuffer, EmptyBuffer.Retain())
	require.Empty(t, EmptyBuffer.Bytes())
}
