package token

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNameEqualIsCaseInsensitive(t *testing.T) {
	a := New("Content-Type")
	b := New("content-type")
	require.True(t, a.Equal(b))
	require.Equal(t, a.Hash(), b.Hash())
	require.Equal(t, "Content-Type", a.String())
}

func TestValidHeaderNameRejectsForbiddenBytes(t *testing.T) {
	require.True(t, ValidHeaderName("X-Custom"))
	require.False(t, ValidHeaderName(""))
	require.False(t, ValidHeaderName("a b"))
	require.False(t, ValidHeaderName("a,b"))
	require.False(t, ValidHeaderName("a:b"))
}

func TestValidHeaderValueObsFold(t *testing.T) {
	require.True(t, ValidHeaderValue("plain value"))
	require.True(t, ValidHeaderValue("line1\r\n continuation"))
	require.False(t, ValidHeaderValue("line1\r\nno-leading-space"))
	require.False(t, ValidHeaderValue("trailing\r\n"))
	require.False(t, ValidHeaderValue("has\x00nul"))
}

func TestHeaderValueContainsToken(t *testing.T) {
	require.True(t, HeaderValueContainsToken("keep-alive, Upgrade", "upgrade"))
	require.False(t, HeaderValueContainsToken("keep-alive", "upgrade"))
}
