package multipart

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestURLEncodedDecoderParsesMultipleAttributes(t *testing.T) {
	d := NewURLEncodedDecoder("")
	require.NoError(t, d.Feed([]byte("a=1&b=two+words&c=%2Fpath%2F"), true))

	require.Equal(t, []Attribute{
		{Name: "a", Value: "1"},
		{Name: "b", Value: "two words"},
		{Name: "c", Value: "/path/"},
	}, d.Attributes())
}

func TestURLEncodedDecoderHandlesTrailingAttributeWithoutTerminator(t *testing.T) {
	d := NewURLEncodedDecoder("")
	require.NoError(t, d.Feed([]byte("key"), false))
	require.NoError(t, d.Feed([]byte("=value"), true))

	require.Equal(t, []Attribute{{Name: "key", Value: "value"}}, d.Attributes())
}

func TestURLEncodedDecoderFeedAcrossChunks(t *testing.T) {
	d := NewURLEncodedDecoder("")
	require.NoError(t, d.Feed([]byte("foo=ba"), false))
	require.NoError(t, d.Feed([]byte("r&baz=qux"), true))

	require.Equal(t, []Attribute{
		{Name: "foo", Value: "bar"},
		{Name: "baz", Value: "qux"},
	}, d.Attributes())
}

func TestURLEncodedDecoderRejectsMalformedEscape(t *testing.T) {
	d := NewURLEncodedDecoder("")
	err := d.Feed([]byte("a=%G1"), true)
	require.ErrorIs(t, err, ErrMalformedEscape)
}

func TestURLEncodedDecoderEmptyValueIsPreserved(t *testing.T) {
	d := NewURLEncodedDecoder("")
	require.NoError(t, d.Feed([]byte("a=&b=1"), true))

	require.Equal(t, []Attribute{
		{Name: "a", Value: ""},
		{Name: "b", Value: "1"},
	}, d.Attributes())
}
