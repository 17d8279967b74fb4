// Package upgrade implements C8: the upgrade handshake. It takes a
// request that the caller has already aggregated into a
// httpwire.FullMessage (this package does no buffering or aggregation of
// its own), matches its Upgrade header against a registry of codec
// factories, verifies the required Connection tokens and headers, and on
// success writes a 101 Switching Protocols response before handing the
// connection to the chosen target codec.
//
// There is no teacher precedent for a protocol upgrade in badu-http (it
// only serves plain HTTP); the codec-factory shape is grounded on the
// handler-registry pattern common across the retrieval pack (e.g.
// shiroyk-ski-ext's extension registries), and the one concrete factory
// this package ships wires github.com/gorilla/websocket.
package upgrade

import (
	"net"
	"strings"

	"golang.org/x/net/http/httpguts"

	"github.com/nicholaspei/httpwire"
	"github.com/nicholaspei/httpwire/header"
)

// Codec is a target protocol a connection can be upgraded to.
type Codec interface {
	// Protocol is the token this codec answers to in the Upgrade header
	// (e.g. "websocket"), compared case-insensitively.
	Protocol() string
	// RequiredConnectionTokens lists tokens, besides "Upgrade" itself,
	// that the Connection header must contain.
	RequiredConnectionTokens() []string
	// RequiredHeaders lists header names that must be present on the
	// request for this codec to proceed.
	RequiredHeaders() []string
	// OwnsHandshakeWrite reports whether UpgradeTo itself writes the 101
	// response (gorilla/websocket's Upgrader does this internally), in
	// which case Handshake must not also write PopulateResponse's
	// headers itself.
	OwnsHandshakeWrite() bool
	// PopulateResponse adds codec-specific headers to the 101 response
	// Handshake is building (ignored when OwnsHandshakeWrite is true).
	PopulateResponse(req *httpwire.FullMessage, resp *header.Store) error
	// UpgradeFrom is invoked before UpgradeTo; it signals the source codec
	// (this package) to stop interpreting further bytes as HTTP. When
	// Handshake writes the response, UpgradeFrom runs only after that
	// write succeeded; when OwnsHandshakeWrite is true, it runs before the
	// response has been written.
	UpgradeFrom()
	// UpgradeTo hands the raw connection to the target protocol. If
	// OwnsHandshakeWrite is true, UpgradeTo is responsible for writing
	// the handshake response itself.
	UpgradeTo(conn net.Conn, req *httpwire.FullMessage) error
}

// CodecFactory inspects a fully-aggregated upgrade request and returns a
// Codec if it can serve it.
type CodecFactory func(req *httpwire.FullMessage) (Codec, bool)

// Handshake drives the C8 state machine described above.
type Handshake struct {
	factories map[string]CodecFactory
	order     []string

	// Write sends raw bytes (the 101 response) to the peer when the
	// matched codec does not own handshake writing itself.
	Write func([]byte) error
	Close func() error

	// OnUpgrade, if set, fires once the handshake completes
	// successfully, mirroring §4.7's "fire an upgrade-event user event".
	OnUpgrade func(codec Codec)
}

// NewHandshake returns an empty Handshake.
func NewHandshake() *Handshake {
	return &Handshake{factories: make(map[string]CodecFactory)}
}

// Register adds a codec factory for protocol. When more than one Upgrade
// token is offered, factories are tried in the order the request lists
// the tokens, not in registration order.
func (h *Handshake) Register(protocol string, f CodecFactory) {
	key := strings.ToLower(protocol)
	if _, exists := h.factories[key]; !exists {
		h.order = append(h.order, key)
	}
	h.factories[key] = f
}

// Attempt runs the full C8 negotiation against req, delivered over conn.
// It returns (true, codec, nil) on a completed upgrade, (false, nil, nil)
// when the request should simply pass through (no Upgrade header, or no
// registered codec matches), and (false, nil, err) when a codec matched
// but the handshake failed validation or the write/upgrade step errored.
func (h *Handshake) Attempt(conn net.Conn, req *httpwire.FullMessage) (bool, Codec, error) {
	upgradeHeader, ok := req.Headers.Get(header.Upgrade)
	if !ok || strings.TrimSpace(upgradeHeader) == "" {
		return false, nil, nil
	}

	codec, protocol := h.match(upgradeHeader, req)
	if codec == nil {
		return false, nil, nil
	}

	if err := h.verify(req, codec); err != nil {
		return false, nil, err
	}

	resp := header.New()
	resp.Set(header.Connection, "Upgrade")
	resp.Set(header.Upgrade, protocol)
	resp.Set(header.ContentLength, "0")
	if err := codec.PopulateResponse(req, resp); err != nil {
		return false, nil, err
	}

	if !codec.OwnsHandshakeWrite() {
		if err := h.writeResponse(resp); err != nil {
			if h.Close != nil {
				_ = h.Close()
			}
			return false, nil, err
		}
	}

	codec.UpgradeFrom()
	if err := codec.UpgradeTo(conn, req); err != nil {
		if h.Close != nil {
			_ = h.Close()
		}
		return false, nil, err
	}

	if h.OnUpgrade != nil {
		h.OnUpgrade(codec)
	}
	return true, codec, nil
}

func (h *Handshake) match(upgradeHeader string, req *httpwire.FullMessage) (Codec, string) {
	for _, tok := range strings.Split(upgradeHeader, ",") {
		name := strings.ToLower(strings.TrimSpace(tok))
		if name == "" {
			continue
		}
		factory, ok := h.factories[name]
		if !ok {
			continue
		}
		if codec, matched := factory(req); matched {
			return codec, name
		}
	}
	return nil, ""
}

func (h *Handshake) verify(req *httpwire.FullMessage, codec Codec) error {
	conn, _ := req.Headers.Get(header.Connection)
	if !httpguts.HeaderValuesContainsToken([]string{conn}, "upgrade") {
		return httpwire.ErrUpgrade
	}
	for _, required := range codec.RequiredConnectionTokens() {
		if !httpguts.HeaderValuesContainsToken([]string{conn}, required) {
			return httpwire.ErrUpgrade
		}
	}
	for _, name := range codec.RequiredHeaders() {
		if _, ok := req.Headers.Get(name); !ok {
			return httpwire.ErrUpgrade
		}
	}
	return nil
}

func (h *Handshake) writeResponse(resp *header.Store) error {
	if h.Write == nil {
		return nil
	}
	var b strings.Builder
	b.WriteString("HTTP/1.1 101 Switching Protocols\r\n")
	if err := resp.WriteSubset(&b, nil); err != nil {
		return err
	}
	b.WriteString("\r\n")
	return h.Write([]byte(b.String()))
}
