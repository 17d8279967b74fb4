package httpwire

// DecoderConfig holds the C4 streaming decoder's tunables from §4.3.
// A zero-value DecoderConfig is not usable; use NewDecoderConfig for
// defaults, or populate one from a config.Config loaded via go-ucfg (see
// package config).
type DecoderConfig struct {
	MaxInitialLineLength int
	MaxHeaderSize        int
	MaxChunkSize         int
	ChunkedSupported     bool
	ValidateHeaders      bool
}

// NewDecoderConfig returns the conservative defaults the teacher's
// server.go applies (4096-byte initial-line cap, 8192-byte header-line
// and chunk-size caps, chunked supported, header validation on).
func NewDecoderConfig() DecoderConfig {
	return DecoderConfig{
		MaxInitialLineLength: 4096,
		MaxHeaderSize:        8192,
		MaxChunkSize:         8192,
		ChunkedSupported:     true,
		ValidateHeaders:      true,
	}
}
