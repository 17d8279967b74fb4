// Package config is the ambient configuration surface for httpwire: a
// thin wrapper over github.com/elastic/go-ucfg that loads YAML/JSON into
// a typed Settings tree, with ParseSize (github.com/spf13/cast plus a
// unit-suffix table) covering the human-friendly size strings operators
// write ("8MiB") that go-ucfg's Unpack alone won't coerce. Grounded on the retrieval
// pack's packetd-packetd/confengine and common packages.
package config

import (
	"strconv"
	"strings"

	"github.com/elastic/go-ucfg"
	"github.com/elastic/go-ucfg/yaml"
	"github.com/pkg/errors"
	"github.com/spf13/cast"

	"github.com/nicholaspei/httpwire"
)

// Config wraps a ucfg.Config, giving callers Has/Child/Unpack without
// every caller importing go-ucfg directly.
type Config struct {
	conf *ucfg.Config
}

// New wraps an already-parsed ucfg.Config.
func New(conf *ucfg.Config) *Config {
	return &Config{conf: conf}
}

// LoadPath reads and parses a YAML config file at path.
func LoadPath(path string) (*Config, error) {
	conf, err := yaml.NewConfigWithFile(path, ucfg.PathSep("."))
	if err != nil {
		return nil, err
	}
	return New(conf), nil
}

// LoadBytes parses YAML config content already in memory.
func LoadBytes(b []byte) (*Config, error) {
	conf, err := yaml.NewConfig(b, ucfg.PathSep("."))
	if err != nil {
		return nil, err
	}
	return New(conf), nil
}

// Has reports whether path resolves to a value.
func (c *Config) Has(path string) bool {
	ok, err := c.conf.Has(path, -1)
	return err == nil && ok
}

// Child returns the sub-tree at path.
func (c *Config) Child(path string) (*Config, error) {
	child, err := c.conf.Child(path, -1)
	if err != nil {
		return nil, err
	}
	return New(child), nil
}

// Unpack decodes the whole tree into to, which must be a pointer to a
// struct carrying "config" tags.
func (c *Config) Unpack(to any) error {
	return c.conf.Unpack(to)
}

// UnpackChild decodes the sub-tree at path into to.
func (c *Config) UnpackChild(path string, to any) error {
	child, err := c.Child(path)
	if err != nil {
		return err
	}
	return child.Unpack(to)
}

// Settings is the full ambient + domain configuration tree httpwire's
// server-side plumbing loads at startup.
type Settings struct {
	Decoder    DecoderSettings    `config:"decoder"`
	Encoder    EncoderSettings    `config:"encoder"`
	Aggregator AggregatorSettings `config:"aggregator"`
	Multipart  MultipartSettings  `config:"multipart"`
	Logging    LoggingSettings    `config:"logging"`
}

// DecoderSettings carries §4.3's tunables. Size fields accept either a
// bare byte count or a human string ("8KiB", "1MB") via ParseSize.
type DecoderSettings struct {
	MaxInitialLineLength string `config:"maxInitialLineLength"`
	MaxHeaderSize        string `config:"maxHeaderSize"`
	MaxChunkSize         string `config:"maxChunkSize"`
	ChunkedSupported     bool   `config:"chunkedSupported"`
	ValidateHeaders      bool   `config:"validateHeaders"`
}

// EncoderSettings carries the C5 encoder's tunables.
type EncoderSettings struct {
	MaxChunkSize string `config:"maxChunkSize"`
}

// AggregatorSettings carries C6's tunables (§4.5/§4.5.1).
type AggregatorSettings struct {
	MaxContentLength         string `config:"maxContentLength"`
	CloseOnExpectationFailed bool   `config:"closeOnExpectationFailed"`
}

// MultipartSettings carries C9/C11's tunables.
type MultipartSettings struct {
	DiscardThreshold string `config:"discardThreshold"`
	StorageMode      string `config:"storageMode"`
	TempDir          string `config:"tempDir"`
	MinSize          string `config:"minSize"`
	MaxSize          string `config:"maxSize"`
}

// LoggingSettings carries the logging package's Options, duplicated
// here (rather than embedded) so this package does not import logging.
type LoggingSettings struct {
	Stdout     bool   `config:"stdout"`
	Level      string `config:"level"`
	Filename   string `config:"filename"`
	MaxSize    int    `config:"maxSize"`
	MaxAge     int    `config:"maxAge"`
	MaxBackups int    `config:"maxBackups"`
}

// ParseSize coerces a size setting to bytes. Accepts a bare integer
// (treated as bytes) or an integer followed by KiB/MiB/GiB/KB/MB/GB
// (case-insensitive). Empty input yields (0, nil) so zero-value struct
// fields fall back to caller-supplied defaults.
func ParseSize(s string) (int, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, nil
	}
	if n, err := cast.ToIntE(s); err == nil {
		return n, nil
	}
	units := []struct {
		suffix string
		mult   int
	}{
		{"gib", 1 << 30}, {"mib", 1 << 20}, {"kib", 1 << 10},
		{"gb", 1e9}, {"mb", 1e6}, {"kb", 1e3},
	}
	lower := strings.ToLower(s)
	for _, u := range units {
		if strings.HasSuffix(lower, u.suffix) {
			numPart := strings.TrimSpace(lower[:len(lower)-len(u.suffix)])
			n, err := strconv.Atoi(numPart)
			if err != nil {
				return 0, errors.Wrapf(err, "config: invalid size %q", s)
			}
			return n * u.mult, nil
		}
	}
	return 0, errors.Errorf("config: invalid size %q", s)
}

// orDefault returns parsed when it is non-zero and no error occurred,
// falling back to def otherwise; used to apply defaults over an empty
// config string.
func orDefault(parsed int, err error, def int) int {
	if err != nil || parsed == 0 {
		return def
	}
	return parsed
}

// DecoderConfig resolves s against httpwire's built-in defaults,
// applying any sizes the config tree overrides. ChunkedSupported and
// ValidateHeaders are copied from s as they are, so a tree that omits
// them yields false for both rather than the defaults.
func (s DecoderSettings) DecoderConfig() httpwire.DecoderConfig {
	def := httpwire.NewDecoderConfig()
	lineLen, lineErr := ParseSize(s.MaxInitialLineLength)
	hdrSize, hdrErr := ParseSize(s.MaxHeaderSize)
	chunkSize, chunkErr := ParseSize(s.MaxChunkSize)
	return httpwire.DecoderConfig{
		MaxInitialLineLength: orDefault(lineLen, lineErr, def.MaxInitialLineLength),
		MaxHeaderSize:        orDefault(hdrSize, hdrErr, def.MaxHeaderSize),
		MaxChunkSize:         orDefault(chunkSize, chunkErr, def.MaxChunkSize),
		ChunkedSupported:     s.ChunkedSupported,
		ValidateHeaders:      s.ValidateHeaders,
	}
}

// MaxContentLengthBytes resolves the aggregator's size limit, treating
// an unparsable or empty value as "no limit" (-1, which the aggregator
// never compares against).
func (s AggregatorSettings) MaxContentLengthBytes() int64 {
	if strings.TrimSpace(s.MaxContentLength) == "" {
		return -1
	}
	n, err := ParseSize(s.MaxContentLength)
	if err != nil {
		return -1
	}
	return int64(n)
}

// DiscardThresholdBytes resolves the multipart decoder's buffer-compaction
// threshold, defaulting to 10MiB when unset or unparsable.
func (s MultipartSettings) DiscardThresholdBytes() int64 {
	const def = 10 * 1024 * 1024
	n, err := ParseSize(s.DiscardThreshold)
	if err != nil || n == 0 {
		return def
	}
	return int64(n)
}
