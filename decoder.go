package httpwire

import (
	"bytes"
	"strconv"
	"strings"

	"github.com/pkg/errors"

	"github.com/nicholaspei/httpwire/header"
	"github.com/nicholaspei/httpwire/token"
)

// decoderState enumerates C4's state machine from §4.3.
type decoderState int

const (
	stateSkipControlChars decoderState = iota
	stateReadInitial
	stateReadHeader
	stateReadChunkSize
	stateReadFixedLengthContent
	stateReadVariableLengthContent
	stateReadChunkedContent
	stateReadChunkDelimiter
	stateReadChunkFooter
	stateBadMessage
	stateUpgraded
)

// Object is one item the decoder emits: exactly one of Start or Chunk is
// set, matching §3's "streamed" message shape (one StartMessage, then
// zero or more ContentChunk, then one terminal ContentChunk).
type Object struct {
	Start *StartMessage
	Chunk *ContentChunk
}

// Decoder is the C4 streaming HTTP/1.x message decoder: a byte-driven
// state machine that consumes arbitrary fragments via Decode and emits a
// stream of Objects. It replaces the source's request-decoder/
// response-decoder subclass pair with one implementation parameterised
// on Direction, per spec.md §9.
type Decoder struct {
	Config    DecoderConfig
	Direction Direction

	// CorrelatedMethod, if set, is consulted once per response
	// StartMessage to implement §4.8's always-empty-if-HEAD rule; the
	// caller wires this to its own FIFO of request methods.
	CorrelatedMethod func() (method string, ok bool)

	state decoderState
	buf   []byte
	pos   int

	lineParser LineParser
	headerLine LineParser

	headers       *header.Store
	trailersAccum *header.Store
	startLine     StartLine

	chunked        bool
	remaining      int64 // bytes left for fixed-length / chunk content
	currentMethod  string // method of the request currently being decoded (request direction) or correlated method (response direction)
	resetRequested bool
}

// NewDecoder returns a Decoder ready to decode messages flowing in the
// given Direction.
func NewDecoder(direction Direction, cfg DecoderConfig) *Decoder {
	d := &Decoder{Config: cfg, Direction: direction}
	d.lineParser.Limit = cfg.MaxInitialLineLength
	d.headerLine.Limit = cfg.MaxHeaderSize
	return d
}

// RequestReset asks the decoder to return to stateSkipControlChars at the
// top of its next Decode call, per §4.3 "Reset" — used by the aggregator
// after an Expect rejection.
func (d *Decoder) RequestReset() { d.resetRequested = true }

// Decode consumes input (which may be empty) and appends every Object it
// can produce to *out. End-of-stream is signalled with DecodeEOF, not by
// empty input.
func (d *Decoder) Decode(input []byte, out *[]Object) error {
	if len(input) > 0 {
		d.buf = append(d.buf, input...)
	}
	return d.run(out, false)
}

// DecodeEOF signals that the underlying transport has closed, so the
// decoder can apply §4.3's "End of stream" rules (emit the empty
// terminal for a variable-length response, or an invalid-message marker
// for a connection closed before headers / mid fixed-length content).
func (d *Decoder) DecodeEOF(out *[]Object) error {
	return d.run(out, true)
}

func (d *Decoder) run(out *[]Object, eof bool) error {
	for {
		if d.resetRequested {
			d.reset()
			d.resetRequested = false
		}

		switch d.state {
		case stateUpgraded:
			if d.pos < len(d.buf) {
				b := NewBuffer(append([]byte(nil), d.buf[d.pos:]...))
				*out = append(*out, Object{Chunk: &ContentChunk{Buf: b}})
				d.pos = len(d.buf)
			}
			d.compact()
			return nil

		case stateBadMessage:
			d.pos = len(d.buf)
			d.compact()
			return nil

		case stateSkipControlChars:
			skipControlOrSpace(d.buf, &d.pos)
			if d.pos >= len(d.buf) {
				d.compact()
				return nil
			}
			d.state = stateReadInitial
			d.lineParser.Reset()

		case stateReadInitial:
			line, err := d.lineParser.Parse(d.buf, &d.pos)
			if err == needMoreData {
				if eof {
					*out = append(*out, d.badMessage(frameError("connection closed before headers")))
					d.state = stateBadMessage
					continue
				}
				d.compact()
				return nil
			}
			if err != nil {
				*out = append(*out, d.badMessage(err))
				d.state = stateBadMessage
				continue
			}
			if !d.onInitialLine(line, out) {
				// lenient recovery: fewer than three fields, discard and
				// go back to skipping control bytes without emitting.
				d.state = stateSkipControlChars
				continue
			}

		case stateReadHeader:
			line, err := d.headerLine.Parse(d.buf, &d.pos)
			if err == needMoreData {
				if eof {
					*out = append(*out, d.badMessage(frameError("connection closed before headers")))
					d.state = stateBadMessage
					continue
				}
				d.compact()
				return nil
			}
			if err != nil {
				*out = append(*out, d.badMessage(err))
				d.state = stateBadMessage
				continue
			}
			if done, failed := d.onHeaderLine(line); failed != nil {
				*out = append(*out, d.badMessage(failed))
				d.state = stateBadMessage
				continue
			} else if done {
				d.onHeadersComplete(out)
			}

		case stateReadFixedLengthContent:
			if d.remaining == 0 {
				*out = append(*out, Object{Chunk: &ContentChunk{Buf: EmptyBuffer, Last: true}})
				d.state = stateSkipControlChars
				continue
			}
			avail := int64(len(d.buf) - d.pos)
			if avail == 0 {
				if eof {
					// premature closure unless nothing was ever
					// outstanding (already handled by remaining==0 above)
					*out = append(*out, d.badMessage(ErrPrematureClosure))
					d.state = stateBadMessage
					continue
				}
				d.compact()
				return nil
			}
			take := avail
			if take > d.remaining {
				take = d.remaining
			}
			chunkBytes := append([]byte(nil), d.buf[d.pos:d.pos+int(take)]...)
			d.pos += int(take)
			d.remaining -= take
			*out = append(*out, Object{Chunk: &ContentChunk{Buf: NewBuffer(chunkBytes)}})
			if d.remaining == 0 {
				// §4.4's encoder expects a zero-length terminal chunk to
				// signal the end of a non-chunked body; keep the last
				// data chunk and the terminal marker separate.
				*out = append(*out, Object{Chunk: &ContentChunk{Buf: EmptyBuffer, Last: true}})
				d.state = stateSkipControlChars
			} else if eof {
				*out = append(*out, d.badMessage(ErrPrematureClosure))
				d.state = stateBadMessage
			} else {
				d.compact()
				return nil
			}

		case stateReadVariableLengthContent:
			avail := len(d.buf) - d.pos
			if avail > 0 {
				chunkBytes := append([]byte(nil), d.buf[d.pos:]...)
				d.pos = len(d.buf)
				*out = append(*out, Object{Chunk: &ContentChunk{Buf: NewBuffer(chunkBytes)}})
			}
			if eof {
				*out = append(*out, Object{Chunk: &ContentChunk{Buf: EmptyBuffer, Last: true}})
				d.state = stateSkipControlChars
				continue
			}
			d.compact()
			return nil

		case stateReadChunkSize:
			line, err := d.lineParser.Parse(d.buf, &d.pos)
			if err == needMoreData {
				if eof {
					*out = append(*out, d.badMessage(ErrPrematureClosure))
					d.state = stateBadMessage
					continue
				}
				d.compact()
				return nil
			}
			if err != nil {
				*out = append(*out, d.badMessage(err))
				d.state = stateBadMessage
				continue
			}
			d.lineParser.Reset()
			size, err := parseChunkSizeLine(line)
			if err != nil {
				*out = append(*out, d.badMessage(frameError("invalid chunk size: "+err.Error())))
				d.state = stateBadMessage
				continue
			}
			if d.Config.MaxChunkSize > 0 && size > int64(d.Config.MaxChunkSize) {
				*out = append(*out, d.badMessage(ErrSize))
				d.state = stateBadMessage
				continue
			}
			if size == 0 {
				d.state = stateReadChunkFooter
				d.headerLine.Reset()
				continue
			}
			d.remaining = size
			d.state = stateReadChunkedContent

		case stateReadChunkedContent:
			avail := int64(len(d.buf) - d.pos)
			if avail == 0 {
				if eof {
					*out = append(*out, d.badMessage(ErrPrematureClosure))
					d.state = stateBadMessage
					continue
				}
				d.compact()
				return nil
			}
			take := avail
			if take > d.remaining {
				take = d.remaining
			}
			chunkBytes := append([]byte(nil), d.buf[d.pos:d.pos+int(take)]...)
			d.pos += int(take)
			d.remaining -= take
			*out = append(*out, Object{Chunk: &ContentChunk{Buf: NewBuffer(chunkBytes)}})
			if d.remaining == 0 {
				d.state = stateReadChunkDelimiter
			} else if eof {
				*out = append(*out, d.badMessage(ErrPrematureClosure))
				d.state = stateBadMessage
			} else {
				d.compact()
				return nil
			}

		case stateReadChunkDelimiter:
			idx := bytes.IndexByte(d.buf[d.pos:], '\n')
			if idx == -1 {
				if eof {
					*out = append(*out, d.badMessage(ErrPrematureClosure))
					d.state = stateBadMessage
					continue
				}
				d.compact()
				return nil
			}
			d.pos += idx + 1
			d.state = stateReadChunkSize
			d.lineParser.Reset()

		case stateReadChunkFooter:
			line, err := d.headerLine.Parse(d.buf, &d.pos)
			if err == needMoreData {
				if eof {
					*out = append(*out, d.badMessage(ErrPrematureClosure))
					d.state = stateBadMessage
					continue
				}
				d.compact()
				return nil
			}
			if err != nil {
				*out = append(*out, d.badMessage(err))
				d.state = stateBadMessage
				continue
			}
			if len(line) == 0 {
				if d.trailersAccum == nil || d.trailersAccum.Len() == 0 {
					*out = append(*out, Object{Chunk: &ContentChunk{Buf: EmptyBuffer, Last: true}})
				} else {
					*out = append(*out, Object{Chunk: &ContentChunk{Buf: EmptyBuffer, Last: true, Trailers: d.trailersAccum}})
				}
				d.trailersAccum = nil
				d.state = stateSkipControlChars
				continue
			}
			if err := d.addTrailerLine(line); err != nil {
				*out = append(*out, d.badMessage(err))
				d.state = stateBadMessage
				continue
			}
		}
	}
}

// badMessage builds the synthetic invalid-message marker from §4.3 "Bad
// message".
func (d *Decoder) badMessage(cause error) Object {
	return Object{Start: &StartMessage{DecodeFailure: true, Cause: cause}}
}

func (d *Decoder) reset() {
	d.state = stateSkipControlChars
	d.headers = nil
	d.chunked = false
	d.remaining = 0
	d.trailersAccum = nil
	d.lineParser.Reset()
	d.headerLine.Reset()
}

func (d *Decoder) compact() {
	if d.pos == 0 {
		return
	}
	n := copy(d.buf, d.buf[d.pos:])
	d.buf = d.buf[:n]
	d.pos = 0
}

// onInitialLine parses the request/status line. It returns false when
// §4.3's lenient recovery applies (fewer than three fields).
func (d *Decoder) onInitialLine(line []byte, out *[]Object) bool {
	a, b, c, ok := splitInitialLineRaw(line)
	if !ok {
		return false
	}

	sl := StartLine{Direction: d.Direction}
	if d.Direction == DirectionRequest {
		sl.Method = string(a)
		sl.RequestTarget = string(b)
		v, ok := ParseVersion(string(c))
		if !ok {
			*out = append(*out, d.badMessage(frameError("bad HTTP version: "+string(c))))
			d.state = stateBadMessage
			return true
		}
		sl.Version = v
		d.currentMethod = sl.Method
	} else {
		v, ok := ParseVersion(string(a))
		if !ok {
			*out = append(*out, d.badMessage(frameError("bad HTTP version: "+string(a))))
			d.state = stateBadMessage
			return true
		}
		sl.Version = v
		code, err := strconv.Atoi(string(b))
		if err != nil {
			*out = append(*out, d.badMessage(frameError("bad status code: "+string(b))))
			d.state = stateBadMessage
			return true
		}
		sl.StatusCode = code
		sl.Reason = string(c)
		if d.CorrelatedMethod != nil {
			if m, ok := d.CorrelatedMethod(); ok {
				d.currentMethod = m
			}
		}
	}

	d.startLine = sl
	d.headers = header.New()
	d.headerLine.Reset()
	d.state = stateReadHeader
	return true
}

// onHeaderLine feeds one header-section line (possibly an obs-fold
// continuation) into the in-progress header store. It returns done=true
// when line is the blank line terminating the header section.
func (d *Decoder) onHeaderLine(line []byte) (done bool, err error) {
	if len(line) == 0 {
		return true, nil
	}
	if token.IsObsFoldContinuation(line[0]) {
		if d.headers.Len() == 0 {
			return false, frameError("obs-fold without a prior header")
		}
		return false, d.appendFold(line)
	}
	idx := bytes.IndexByte(line, ':')
	if idx <= 0 {
		return false, frameError("malformed header line")
	}
	name := string(bytes.TrimRight(line[:idx], " \t"))
	value := string(trimLWS(line[idx+1:]))
	if d.Config.ValidateHeaders {
		var problems []error
		if !token.ValidHeaderName(name) {
			problems = append(problems, errors.New("invalid header name"))
		}
		if !token.ValidHeaderValue(value) {
			problems = append(problems, errors.New("invalid header value"))
		}
		if cause := multiCause(problems...); cause != nil {
			return false, frameError(cause.Error())
		}
		if _, err := d.headers.Add(name, value); err != nil {
			return false, frameError(err.Error())
		}
		return false, nil
	}
	d.headers.AddUnchecked(name, value)
	return false, nil
}

// addTrailerLine parses one trailer header line during stateReadChunkFooter
// per §4.3 "Trailers": Content-Length, Transfer-Encoding, and Trailer are
// silently dropped if ValidateHeaders is set, since a trailer section may
// not carry them.
func (d *Decoder) addTrailerLine(line []byte) error {
	idx := bytes.IndexByte(line, ':')
	if idx <= 0 {
		return frameError("malformed trailer line")
	}
	name := string(bytes.TrimRight(line[:idx], " \t"))
	value := string(trimLWS(line[idx+1:]))
	if d.Config.ValidateHeaders {
		var problems []error
		if !token.ValidHeaderName(name) {
			problems = append(problems, errors.New("invalid trailer name"))
		}
		if !token.ValidHeaderValue(value) {
			problems = append(problems, errors.New("invalid trailer value"))
		}
		if cause := multiCause(problems...); cause != nil {
			return frameError(cause.Error())
		}
		switch {
		case token.EqualFold(name, header.ContentLength),
			token.EqualFold(name, header.TransferEncoding),
			token.EqualFold(name, header.Trailer):
			return nil
		}
	}
	if d.trailersAccum == nil {
		d.trailersAccum = header.New()
	}
	if d.Config.ValidateHeaders {
		_, err := d.trailersAccum.Add(name, value)
		return err
	}
	d.trailersAccum.AddUnchecked(name, value)
	return nil
}

// appendFold implements §4.3 "Header folding": the continuation is
// joined to the previous header's last value with a single space, after
// trimming.
func (d *Decoder) appendFold(line []byte) error {
	names := d.headers.Names()
	if len(names) == 0 {
		return frameError("obs-fold without a prior header")
	}
	last := names[len(names)-1]
	vals := d.headers.GetAll(last)
	if len(vals) == 0 {
		return frameError("obs-fold without a prior header")
	}
	joined := vals[len(vals)-1] + " " + string(trimLWS(line))
	vals[len(vals)-1] = joined
	_, err := d.headers.SetAll(last, vals)
	return err
}

func trimLWS(b []byte) []byte {
	i, j := 0, len(b)
	for i < j && (b[i] == ' ' || b[i] == '\t') {
		i++
	}
	for j > i && (b[j-1] == ' ' || b[j-1] == '\t') {
		j--
	}
	return b[i:j]
}

// onHeadersComplete emits the StartMessage and decides the content
// framing state per §4.3 "Content framing after headers".
func (d *Decoder) onHeadersComplete(out *[]Object) {
	hasWSAccept := d.headers.Contains("Sec-WebSocket-Accept")
	statusForEmpty := d.startLine.StatusCode
	isResponse := d.Direction == DirectionResponse

	alwaysEmpty := false
	if isResponse {
		alwaysEmpty = AlwaysEmptyResponse(statusForEmpty, d.currentMethod, hasWSAccept)
	}

	sm := d.startLine.toStartMessage(d.headers)
	*out = append(*out, Object{Start: &sm})

	if alwaysEmpty {
		*out = append(*out, Object{Chunk: &ContentChunk{Buf: EmptyBuffer, Last: true}})
		d.state = stateSkipControlChars
		return
	}

	te, _ := d.headers.Get(header.TransferEncoding)
	isChunked := te != "" && token.HeaderValueContainsToken(te, "chunked")

	if isChunked {
		if !d.Config.ChunkedSupported {
			*out = append(*out, d.badMessage(ErrUnsupportedChunks))
			d.state = stateBadMessage
			return
		}
		d.state = stateReadChunkSize
		d.lineParser.Reset()
		return
	}

	if cl, ok := d.headers.Get(header.ContentLength); ok {
		n, err := parseContentLengthHeader(cl)
		if err != nil {
			*out = append(*out, d.badMessage(frameError("bad Content-Length")))
			d.state = stateBadMessage
			return
		}
		d.remaining = n
		d.state = stateReadFixedLengthContent
		return
	}

	if wsLen, ok := webSocketContentLengthHeuristic(d.Direction, d.startLine.Method, statusForEmpty, d.headers); ok {
		d.remaining = wsLen
		d.state = stateReadFixedLengthContent
		return
	}

	if d.Direction == DirectionRequest {
		*out = append(*out, Object{Chunk: &ContentChunk{Buf: EmptyBuffer, Last: true}})
		d.state = stateSkipControlChars
		return
	}

	d.state = stateReadVariableLengthContent
	if 101 == d.startLine.StatusCode && hasWSAccept {
		d.state = stateUpgraded
	}
}

func parseContentLengthHeader(v string) (int64, error) {
	v = strings.TrimSpace(v)
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil || n < 0 {
		return 0, frameError("bad Content-Length: " + v)
	}
	return n, nil
}

func parseChunkSizeLine(line []byte) (int64, error) {
	// hex prefix up to ';', whitespace, or ISO control, per §4.3 "Chunk
	// size line"; everything after is a chunk-extension and is ignored.
	end := 0
	for end < len(line) {
		b := line[end]
		if b == ';' || b == ' ' || b == '\t' || b < 0x20 {
			break
		}
		end++
	}
	return strconv.ParseInt(string(line[:end]), 16, 64)
}

// webSocketContentLengthHeuristic implements §6's WebSocket
// content-length heuristic for messages lacking Content-Length.
func webSocketContentLengthHeuristic(dir Direction, method string, status int, h *header.Store) (int64, bool) {
	if dir == DirectionRequest && method == MethodGet {
		if h.Contains("Sec-WebSocket-Key1") && h.Contains("Sec-WebSocket-Key2") {
			return 8, true
		}
	}
	if dir == DirectionResponse && status == 101 {
		if h.Contains("Sec-WebSocket-Origin") && h.Contains("Sec-WebSocket-Location") {
			return 16, true
		}
	}
	return 0, false
}

func (l StartLine) toStartMessage(h *header.Store) StartMessage {
	return StartMessage{Line: l, Headers: h}
}
