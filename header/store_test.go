package header

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestStoreAddPreservesOrderAndMultiValue(t *testing.T) {
	s := New()
	_, err := s.Add("Set-Cookie", "a=1")
	require.NoError(t, err)
	_, err = s.Add("Set-Cookie", "b=2")
	require.NoError(t, err)
	_, err = s.Add(ContentType, "text/plain")
	require.NoError(t, err)

	require.Equal(t, []string{"Set-Cookie", ContentType}, s.Names())
	require.Equal(t, []string{"a=1", "b=2"}, s.GetAll("set-cookie"))
}

func TestStoreGetIsCaseInsensitive(t *testing.T) {
	s := New()
	_, err := s.Add(ContentLength, "5")
	require.NoError(t, err)
	v, ok := s.Get("content-length")
	require.True(t, ok)
	require.Equal(t, "5", v)
}

func TestStoreSetReplacesAllValues(t *testing.T) {
	s := New()
	_, _ = s.Add("X-Tag", "one")
	_, _ = s.Add("X-Tag", "two")
	_, err := s.Set("X-Tag", "only")
	require.NoError(t, err)
	require.Equal(t, []string{"only"}, s.GetAll("X-Tag"))
}

func TestFoldedStoreEscapesCommasAndRoundTrips(t *testing.T) {
	f := NewFolded()
	_, err := f.Add("Cache-Control", "no-cache")
	require.NoError(t, err)
	_, err = f.Add("Cache-Control", `odd, value with "quote"`)
	require.NoError(t, err)

	require.Equal(t, []string{"no-cache", `odd, value with "quote"`}, f.GetAll("Cache-Control"))

	rawAll := f.Raw().GetAll("Cache-Control")
	require.Len(t, rawAll, 1, "folded store keeps exactly one entry per name")
	require.Contains(t, rawAll[0], `"odd, value with ""quote"""`)
}
