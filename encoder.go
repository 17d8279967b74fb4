package httpwire

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/nicholaspei/httpwire/header"
	"github.com/nicholaspei/httpwire/token"
)

// encoderState is C5's four-state machine from §4.4.
type encoderState int

const (
	encInit encoderState = iota
	encContentNonChunk
	encContentChunk
	encContentAlwaysEmpty
)

// Encoder is the C5 streaming HTTP/1.x message encoder: it serialises a
// StartMessage and its following ContentChunks, framing the body via
// fixed length, chunked transfer, or always-empty, mirroring the C4
// decoder's Direction-parameterised design.
type Encoder struct {
	Direction Direction

	// CorrelatedMethod mirrors Decoder.CorrelatedMethod: for response
	// encoding it reports whether the response being encoded answers a
	// HEAD request, per §4.8.
	CorrelatedMethod func() (method string, ok bool)

	state   encoderState
	chunked bool
}

// EncodeStart writes sm's initial line and headers to w and decides the
// next content-framing state per §4.4. It returns an error only if
// writing the headers fails.
func (e *Encoder) EncodeStart(w *strings.Builder, sm *StartMessage) error {
	line := sm.Line
	if line.Direction == DirectionRequest {
		target := normalizeRequestTarget(line.RequestTarget)
		w.WriteString(line.Method)
		w.WriteByte(' ')
		w.WriteString(target)
		w.WriteByte(' ')
		w.WriteString(line.Version.String())
		w.WriteString("\r\n")
	} else {
		w.WriteString(line.Version.String())
		w.WriteByte(' ')
		w.WriteString(strconv.Itoa(line.StatusCode))
		if line.Reason != "" {
			w.WriteByte(' ')
			w.WriteString(line.Reason)
		}
		w.WriteString("\r\n")
	}

	if sm.Headers != nil {
		if err := sm.Headers.WriteSubset(w, nil); err != nil {
			return err
		}
	}
	w.WriteString("\r\n")

	e.decideNextState(sm)
	return nil
}

func (e *Encoder) decideNextState(sm *StartMessage) {
	method := sm.Line.Method
	if sm.Line.Direction == DirectionResponse && e.CorrelatedMethod != nil {
		if m, ok := e.CorrelatedMethod(); ok {
			method = m
		}
	}

	hasWSAccept := sm.Headers != nil && sm.Headers.Contains("Sec-WebSocket-Accept")
	if sm.Line.Direction == DirectionResponse && AlwaysEmptyResponse(sm.Line.StatusCode, method, hasWSAccept) {
		e.state = encContentAlwaysEmpty
		e.chunked = false
		return
	}

	te, _ := sm.Headers.Get(header.TransferEncoding)
	if te != "" && token.HeaderValueContainsToken(te, "chunked") {
		e.state = encContentChunk
		e.chunked = true
		return
	}
	e.state = encContentNonChunk
	e.chunked = false
}

// EncodeChunk writes one ContentChunk to w per the current state.
func (e *Encoder) EncodeChunk(w *strings.Builder, c *ContentChunk) error {
	switch e.state {
	case encContentAlwaysEmpty:
		if c.Last {
			e.state = encInit
		}
		return nil

	case encContentNonChunk:
		if c.Buf.Len() > 0 {
			w.Write(c.Buf.Bytes())
		}
		if c.Last && c.Buf.Len() == 0 {
			e.state = encInit
		}
		return nil

	case encContentChunk:
		if !c.Last {
			if c.Buf.Len() > 0 {
				fmt.Fprintf(w, "%x\r\n", c.Buf.Len())
				w.Write(c.Buf.Bytes())
				w.WriteString("\r\n")
			}
			return nil
		}
		w.WriteString("0\r\n")
		if c.Trailers != nil && c.Trailers.Len() > 0 {
			if err := c.Trailers.WriteSubset(w, nil); err != nil {
				return err
			}
		}
		w.WriteString("\r\n")
		e.state = encInit
		return nil

	default:
		return frameError("encoder: content chunk with no start message")
	}
}

// normalizeRequestTarget applies §4.4's request-target normalisation so
// an absolute-URI target always carries an absolute-path component.
func normalizeRequestTarget(u string) string {
	if u == "" {
		return "/"
	}
	if u[0] == '/' {
		return u
	}
	p := strings.Index(u, "://")
	if p == -1 {
		return u
	}
	q := strings.IndexByte(u, '?')
	lastSlash := strings.LastIndexByte(u, '/')
	if q == -1 {
		if lastSlash <= p+3 {
			return u + "/"
		}
		return u
	}
	lastSlashBeforeQ := strings.LastIndexByte(u[:q], '/')
	if lastSlashBeforeQ <= p+3 {
		return u[:q] + "/" + u[q:]
	}
	return u
}
