package upgrade

import (
	"bufio"
	"net"
	"net/http"
	"net/url"
	"strings"

	"github.com/gorilla/websocket"

	"github.com/nicholaspei/httpwire"
	"github.com/nicholaspei/httpwire/header"
)

// WebSocketCodec is the one concrete target codec this package ships: it
// answers "Upgrade: websocket" by delegating the actual RFC 6455
// handshake math and frame codec to github.com/gorilla/websocket's
// Upgrader, which this package drives through a small net/http shim
// since Upgrader is designed against http.ResponseWriter/http.Request.
type WebSocketCodec struct {
	Upgrader *websocket.Upgrader
	// OnConn, if set, receives the established *websocket.Conn once
	// UpgradeTo completes.
	OnConn func(*websocket.Conn)

	conn *websocket.Conn
}

// NewWebSocketFactory returns a CodecFactory that matches any GET request
// offering the websocket protocol (other methods do not match); upgrader
// may be nil to use sensible
// defaults (4KiB buffers, all origins accepted since origin policy is
// this package's caller's concern, not the wire codec's).
func NewWebSocketFactory(upgrader *websocket.Upgrader, onConn func(*websocket.Conn)) CodecFactory {
	if upgrader == nil {
		upgrader = &websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin:     func(*http.Request) bool { return true },
		}
	}
	return func(req *httpwire.FullMessage) (Codec, bool) {
		if req.Line.Method != httpwire.MethodGet {
			return nil, false
		}
		return &WebSocketCodec{Upgrader: upgrader, OnConn: onConn}, true
	}
}

func (c *WebSocketCodec) Protocol() string { return "websocket" }

func (c *WebSocketCodec) RequiredConnectionTokens() []string { return nil }

func (c *WebSocketCodec) RequiredHeaders() []string {
	return []string{"Sec-WebSocket-Key", "Sec-WebSocket-Version"}
}

// OwnsHandshakeWrite is true: gorilla/websocket's Upgrader.Upgrade writes
// the 101 response (including the computed Sec-WebSocket-Accept) itself
// over the hijacked connection.
func (c *WebSocketCodec) OwnsHandshakeWrite() bool { return true }

// PopulateResponse is a no-op for this codec; Upgrader.Upgrade computes
// every response header gorilla/websocket needs.
func (c *WebSocketCodec) PopulateResponse(req *httpwire.FullMessage, resp *header.Store) error {
	return nil
}

func (c *WebSocketCodec) UpgradeFrom() {}

// UpgradeTo rebuilds req as a synthetic *http.Request and a minimal
// http.ResponseWriter/http.Hijacker shim over conn, then hands both to
// gorilla/websocket's Upgrader so it performs (and writes) the real
// handshake and returns a frame-level *websocket.Conn.
func (c *WebSocketCodec) UpgradeTo(conn net.Conn, req *httpwire.FullMessage) error {
	httpReq := &http.Request{
		Method:     req.Line.Method,
		URL:        &url.URL{Path: req.Line.RequestTarget},
		Proto:      req.Line.Version.String(),
		ProtoMajor: req.Line.Version.Major,
		ProtoMinor: req.Line.Version.Minor,
		Header:     make(http.Header),
		Host:       "",
	}
	req.Headers.Each(func(name, value string) {
		httpReq.Header.Add(name, value)
		if strings.EqualFold(name, header.Host) {
			httpReq.Host = value
		}
	})

	shim := &hijackShim{conn: conn, header: make(http.Header)}
	wsConn, err := c.Upgrader.Upgrade(shim, httpReq, nil)
	if err != nil {
		return err
	}
	c.conn = wsConn
	if c.OnConn != nil {
		c.OnConn(wsConn)
	}
	return nil
}

// hijackShim satisfies http.ResponseWriter and http.Hijacker over an
// already-open net.Conn, the minimum gorilla/websocket's Upgrader needs
// to drive its handshake without a real net/http server loop behind it.
type hijackShim struct {
	conn   net.Conn
	header http.Header
}

func (s *hijackShim) Header() http.Header         { return s.header }
func (s *hijackShim) Write(p []byte) (int, error) { return s.conn.Write(p) }
func (s *hijackShim) WriteHeader(statusCode int)  {}

func (s *hijackShim) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	rw := bufio.NewReadWriter(bufio.NewReader(s.conn), bufio.NewWriter(s.conn))
	return s.conn, rw, nil
}
