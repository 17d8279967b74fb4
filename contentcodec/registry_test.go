package contentcodec

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func roundTrip(t *testing.T, registry *Registry, encoding string, payload []byte) []byte {
	t.Helper()
	encFactory, ok := registry.Encoder(encoding)
	require.True(t, ok, "no encoder registered for %q", encoding)
	enc := encFactory()

	var encoded []byte
	out, err := enc.Push(payload)
	require.NoError(t, err)
	encoded = append(encoded, out...)
	tail, err := enc.Finish()
	require.NoError(t, err)
	encoded = append(encoded, tail...)

	decFactory, ok := registry.Decoder(encoding)
	require.True(t, ok, "no decoder registered for %q", encoding)
	dec := decFactory()

	var decoded []byte
	out, err = dec.Push(encoded)
	require.NoError(t, err)
	decoded = append(decoded, out...)
	tail, err = dec.Finish()
	require.NoError(t, err)
	decoded = append(decoded, tail...)
	return decoded
}

func TestDefaultRegistryRoundTripsEveryEncoding(t *testing.T) {
	registry := DefaultRegistry()
	payload := []byte("the quick brown fox jumps over the lazy dog, repeated a few times, " +
		"the quick brown fox jumps over the lazy dog, repeated a few times")

	for _, encoding := range []string{"gzip", "deflate", "br", "zstd"} {
		t.Run(encoding, func(t *testing.T) {
			got := roundTrip(t, registry, encoding, payload)
			require.Equal(t, payload, got)
		})
	}
}

func TestDefaultRegistryPreferenceOrder(t *testing.T) {
	registry := DefaultRegistry()
	require.Equal(t, []string{"gzip", "br", "zstd", "deflate"}, registry.Preference)
}
