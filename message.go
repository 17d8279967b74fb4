package httpwire

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/nicholaspei/httpwire/header"
)

// Version is an HTTP protocol version: a name plus major/minor numbers and
// the RFC 7230 keep-alive default for that version (true for HTTP/1.1,
// false for HTTP/1.0), per §3 "Start line".
type Version struct {
	Name             string
	Major, Minor     int
	KeepAliveDefault bool
}

func (v Version) String() string { return fmt.Sprintf("%s/%d.%d", v.Name, v.Major, v.Minor) }

// HTTP/1.0 and HTTP/1.1, the only two versions this codec frames.
var (
	HTTP10 = Version{Name: "HTTP", Major: 1, Minor: 0, KeepAliveDefault: false}
	HTTP11 = Version{Name: "HTTP", Major: 1, Minor: 1, KeepAliveDefault: true}
)

// ParseVersion parses a protocol-version token such as "HTTP/1.1".
func ParseVersion(s string) (Version, bool) {
	switch s {
	case "HTTP/1.1":
		return HTTP11, true
	case "HTTP/1.0":
		return HTTP10, true
	}
	// Fall back to a generic HTTP/<major>.<minor> parse so unusual but
	// well-formed versions aren't rejected outright.
	slash := strings.IndexByte(s, '/')
	if slash <= 0 {
		return Version{}, false
	}
	name := s[:slash]
	rest := s[slash+1:]
	dot := strings.IndexByte(rest, '.')
	if dot < 0 {
		return Version{}, false
	}
	major, err := strconv.Atoi(rest[:dot])
	if err != nil {
		return Version{}, false
	}
	minor, err := strconv.Atoi(rest[dot+1:])
	if err != nil {
		return Version{}, false
	}
	return Version{Name: name, Major: major, Minor: minor, KeepAliveDefault: major > 1 || (major == 1 && minor >= 1)}, true
}

// StatusClass partitions a status code per §3 "Status code".
type StatusClass int

const (
	StatusClassUnknown StatusClass = iota
	StatusClassInformational
	StatusClassSuccess
	StatusClassRedirection
	StatusClassClientError
	StatusClassServerError
)

// ClassifyStatus returns the StatusClass for code.
func ClassifyStatus(code int) StatusClass {
	switch {
	case code >= 100 && code < 200:
		return StatusClassInformational
	case code >= 200 && code < 300:
		return StatusClassSuccess
	case code >= 300 && code < 400:
		return StatusClassRedirection
	case code >= 400 && code < 500:
		return StatusClassClientError
	case code >= 500 && code < 600:
		return StatusClassServerError
	default:
		return StatusClassUnknown
	}
}

// Direction distinguishes request-shaped from response-shaped traffic,
// replacing the source's request-decoder/response-decoder subclassing
// per spec.md §9 "State machines vs subclassing": the decoder and
// encoder are each a single implementation parameterised on Direction.
type Direction int

const (
	DirectionRequest Direction = iota
	DirectionResponse
)

// StartLine is either a request line or a status line, tagged by
// Direction; exactly one of the request or response fields is
// meaningful for a given Direction.
type StartLine struct {
	Direction Direction
	Version   Version

	// Request line fields.
	Method        string
	RequestTarget string

	// Status line fields.
	StatusCode int
	Reason     string
}

func (l StartLine) String() string {
	if l.Direction == DirectionRequest {
		return fmt.Sprintf("%s %s %s", l.Method, l.RequestTarget, l.Version)
	}
	if l.Reason == "" {
		return fmt.Sprintf("%s %d", l.Version, l.StatusCode)
	}
	return fmt.Sprintf("%s %d %s", l.Version, l.StatusCode, l.Reason)
}

// Common request methods, interned as plain strings (arbitrary tokens
// remain permitted per §3).
const (
	MethodGet     = "GET"
	MethodHead    = "HEAD"
	MethodPost    = "POST"
	MethodPut     = "PUT"
	MethodDelete  = "DELETE"
	MethodConnect = "CONNECT"
	MethodOptions = "OPTIONS"
	MethodTrace   = "TRACE"
	MethodPatch   = "PATCH"
)

// ObjectKind tags the three message shapes from §3 "Message": a
// StartMessage, a ContentChunk, and the terminal chunk (itself a
// ContentChunk with Last set).
type ObjectKind int

const (
	KindStart ObjectKind = iota
	KindContent
)

// Kind reports which of Start or Chunk is populated, sparing callers a
// nil check when they only care about dispatching on shape.
func (o Object) Kind() ObjectKind {
	if o.Start != nil {
		return KindStart
	}
	return KindContent
}

// StartMessage is the first object the decoder emits for a message: the
// start line plus headers. It carries no body; subsequent ContentChunk
// objects carry the body.
type StartMessage struct {
	Line    StartLine
	Headers *header.Store

	// DecodeFailure is set when this StartMessage is actually the
	// synthetic "invalid message" marker from §4.3 "Bad message": Line
	// and Headers are zero/empty and Cause explains why.
	DecodeFailure bool
	Cause         error
}

// ContentChunk is a body fragment. The final chunk of a message has Last
// set and may carry Trailers (trailer headers, possibly empty). Buf must
// be released by the consumer exactly once; EmptyTerminal returns the
// canonical zero-length Last chunk described in §3 "empty terminal".
type ContentChunk struct {
	Buf      *Buffer
	Last     bool
	Trailers *header.Store
}

// EmptyTerminal is the singleton sentinel terminal chunk: an empty
// buffer and nil trailers, per §3 "empty terminal". Because it carries
// EmptyBuffer, Release is a safe no-op.
func EmptyTerminal() ContentChunk {
	return ContentChunk{Buf: EmptyBuffer, Last: true}
}

// FullMessage is the aggregator's (C6) output: a single object carrying
// the start line, headers, a composite content buffer, and trailing
// headers. It owns Content and must be released via Release.
type FullMessage struct {
	Line     StartLine
	Headers  *header.Store
	Content  *Buffer
	Trailers *header.Store
}

// Release releases the owned content buffer. Safe to call once; calling
// it twice panics, matching Buffer.Release's over-release guard.
func (m *FullMessage) Release() {
	if m.Content != nil {
		m.Content.Release()
	}
}

// AlwaysEmptyResponse reports whether a response with the given status
// code and correlated request method must have an empty body regardless
// of framing headers, per the GLOSSARY's "Always-empty" definition.
//
// 304 is intentionally not folded into the same branch as 204: spec.md §9
// records that the source's IsSelfDefinedMessageLength test includes 204
// but not 304, with 304 handled separately elsewhere, and instructs that
// this separation be preserved rather than unified. See Is204Or1xxEmpty
// and Is304Empty below, kept as two distinct predicates for that reason.
func AlwaysEmptyResponse(statusCode int, requestMethod string, hasWebSocketUpgradeAccept bool) bool {
	if requestMethod == MethodHead {
		return true
	}
	return Is204Or1xxEmpty(statusCode, hasWebSocketUpgradeAccept) || Is304Empty(statusCode)
}

// Is204Or1xxEmpty reports whether statusCode is always-empty under the
// "1xx except 101 Upgrade: websocket, 204, 205" rule. hasWebSocketUpgradeAccept
// should be true when a 101 response is in fact a successful WebSocket
// upgrade (carries Sec-WebSocket-Accept) — such a response is exempted
// from the "1xx informational" always-empty rule because its body, if
// any, belongs to the upgraded protocol.
func Is204Or1xxEmpty(statusCode int, hasWebSocketUpgradeAccept bool) bool {
	if statusCode == 101 {
		return !hasWebSocketUpgradeAccept
	}
	if statusCode >= 100 && statusCode < 200 {
		return true
	}
	return statusCode == 204 || statusCode == 205
}

// Is304Empty reports whether statusCode is the always-empty 304 Not
// Modified case, kept separate from Is204Or1xxEmpty per the design note
// above.
func Is304Empty(statusCode int) bool { return statusCode == 304 }
