package config

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/nicholaspei/httpwire"
)

func TestParseSizeAcceptsBareIntegers(t *testing.T) {
	n, err := ParseSize("4096")
	require.NoError(t, err)
	require.Equal(t, 4096, n)
}

func TestParseSizeAcceptsBinaryAndDecimalSuffixes(t *testing.T) {
	cases := map[string]int{
		"1KiB": 1024,
		"2MiB": 2 * 1024 * 1024,
		"1GiB": 1 << 30,
		"1KB":  1000,
		"2MB":  2000000,
	}
	for input, want := range cases {
		n, err := ParseSize(input)
		require.NoError(t, err, input)
		require.Equal(t, want, n, input)
	}
}

func TestParseSizeEmptyStringYieldsZero(t *testing.T) {
	n, err := ParseSize("")
	require.NoError(t, err)
	require.Equal(t, 0, n)
}

func TestParseSizeRejectsGarbage(t *testing.T) {
	_, err := ParseSize("not-a-size")
	require.Error(t, err)
}

func TestLoadBytesUnpacksNestedSettings(t *testing.T) {
	yaml := []byte(`
decoder:
  maxHeaderSize: 16KiB
  chunkedSupported: true
aggregator:
  maxContentLength: 10MiB
  closeOnExpectationFailed: true
multipart:
  storageMode: disk
  tempDir: /tmp/uploads
logging:
  stdout: true
  level: debug
`)
	cfg, err := LoadBytes(yaml)
	require.NoError(t, err)

	var settings Settings
	require.NoError(t, cfg.Unpack(&settings))

	require.Equal(t, "16KiB", settings.Decoder.MaxHeaderSize)
	require.True(t, settings.Decoder.ChunkedSupported)
	require.True(t, settings.Aggregator.CloseOnExpectationFailed)
	require.Equal(t, "disk", settings.Multipart.StorageMode)
	require.True(t, settings.Logging.Stdout)
	require.Equal(t, "debug", settings.Logging.Level)

	require.EqualValues(t, 10*1024*1024, settings.Aggregator.MaxContentLengthBytes())
}

func TestDecoderSettingsDecoderConfigFallsBackToDefaults(t *testing.T) {
	var s DecoderSettings
	cfg := s.DecoderConfig()
	def := httpwire.NewDecoderConfig()
	require.Equal(t, def.MaxHeaderSize, cfg.MaxHeaderSize)
	require.Equal(t, def.MaxInitialLineLength, cfg.MaxInitialLineLength)
}

func TestMultipartSettingsDiscardThresholdDefaultsWhenUnset(t *testing.T) {
	var s MultipartSettings
	require.EqualValues(t, 10*1024*1024, s.DiscardThresholdBytes())
}

func TestMultipartSettingsDiscardThresholdHonoursOverride(t *testing.T) {
	s := MultipartSettings{DiscardThreshold: "1MiB"}
	require.EqualValues(t, 1<<20, s.DiscardThresholdBytes())
}

func TestConfigHasReportsMissingPath(t *testing.T) {
	cfg, err := LoadBytes([]byte("decoder:\n  chunkedSupported: true\n"))
	require.NoError(t, err)
	require.True(t, cfg.Has("decoder.chunkedSupported"))
	require.False(t, cfg.Has("decoder.nonexistent"))
}
