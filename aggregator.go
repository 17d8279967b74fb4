package httpwire

import (
	"strconv"
	"strings"

	"github.com/nicholaspei/httpwire/header"
	"github.com/nicholaspei/httpwire/token"
)

// AggregatorEvent is fired by the aggregator alongside its normal Object
// output, for callers that want to log or meter the cases described in
// §4.5 without polling FullMessage for nil.
type AggregatorEvent int

const (
	EventNone AggregatorEvent = iota
	EventExpectationFailed
	EventOversized
)

// AggregatorStats is the Stats() snapshot described in SPEC_FULL.md §5,
// additive instrumentation over the base spec.
type AggregatorStats struct {
	MessagesAggregated uint64
	BytesDiscarded     uint64
}

// Aggregator is C6: it collects one streamed message (a StartMessage
// followed by ContentChunks) into one FullMessage bounded by
// MaxContentLength, handling Expect: 100-continue negotiation and the
// oversize policy from §4.5.1.
type Aggregator struct {
	MaxContentLength         int64
	CloseOnExpectationFailed bool

	// Write sends raw bytes to the peer (100 Continue / 417 / 413
	// responses); Close closes the connection. Both are fire-and-forget
	// per §5 "Cancellation and timeouts".
	Write func([]byte) error
	Close func() error

	// Decoder is reset via RequestReset on Expect rejection and
	// oversize, per §4.5.
	Decoder *Decoder

	direction Direction
	current   *aggregation
	stats     AggregatorStats
}

type aggregation struct {
	start     *StartMessage
	parts     []*Buffer
	length    int64
	declared  int64 // -1 if absent
	oversized bool
	started   bool // at least one content chunk has been absorbed
}

// Stats returns a snapshot of the aggregator's lifetime counters.
func (a *Aggregator) Stats() AggregatorStats { return a.stats }

// NewAggregator returns an Aggregator bound to decoder's direction.
func NewAggregator(decoder *Decoder, maxContentLength int64) *Aggregator {
	return &Aggregator{
		MaxContentLength: maxContentLength,
		Decoder:          decoder,
		direction:        decoder.Direction,
	}
}

// Process feeds one decoder Object through the aggregator. It returns the
// completed FullMessage (nil if none is ready yet) and the event, if any,
// fired while processing obj.
func (a *Aggregator) Process(obj Object) (*FullMessage, AggregatorEvent, error) {
	if obj.Start != nil {
		return a.onStart(obj.Start)
	}
	if obj.Chunk != nil {
		return a.onChunk(obj.Chunk)
	}
	return nil, EventNone, nil
}

func (a *Aggregator) onStart(sm *StartMessage) (*FullMessage, AggregatorEvent, error) {
	if sm.DecodeFailure {
		// Pass bad-message markers straight through; nothing to
		// aggregate.
		return nil, EventNone, nil
	}

	declared := int64(-1)
	if cl, ok := sm.Headers.Get(header.ContentLength); ok {
		if n, err := strconv.ParseInt(strings.TrimSpace(cl), 10, 64); err == nil {
			declared = n
		}
	}

	a.current = &aggregation{start: sm, declared: declared}

	if expect, ok := sm.Headers.Get(header.Expect); ok {
		return a.handleExpect(sm, expect, declared)
	}

	if declared >= 0 && a.MaxContentLength >= 0 && declared > a.MaxContentLength {
		return a.handleOversize(sm)
	}

	return nil, EventNone, nil
}

// handleExpect implements §4.5's Expect negotiation.
func (a *Aggregator) handleExpect(sm *StartMessage, expect string, declared int64) (*FullMessage, AggregatorEvent, error) {
	if !token.HeaderValueContainsToken(expect, "100-continue") {
		if err := a.writeSimpleResponse(417, "Expectation Failed", nil); err != nil {
			return nil, EventExpectationFailed, err
		}
		a.resetDecoder()
		return nil, EventExpectationFailed, nil
	}

	if declared >= 0 && a.MaxContentLength >= 0 && declared > a.MaxContentLength {
		if err := a.writeSimpleResponse(413, "Request Entity Too Large", map[string]string{header.ContentLength: "0"}); err != nil {
			return nil, EventExpectationFailed, err
		}
		if a.CloseOnExpectationFailed && a.Close != nil {
			_ = a.Close()
		}
		a.resetDecoder()
		return nil, EventExpectationFailed, nil
	}

	if err := a.writeSimpleResponse(100, "Continue", nil); err != nil {
		return nil, EventNone, err
	}
	return nil, EventNone, nil
}

// handleOversize implements §4.5.1's oversize policy for the initial
// declared Content-Length.
func (a *Aggregator) handleOversize(sm *StartMessage) (*FullMessage, AggregatorEvent, error) {
	a.current.oversized = true
	if sm.Line.Direction == DirectionResponse {
		if a.Close != nil {
			_ = a.Close()
		}
		return nil, EventOversized, ErrSize
	}

	clientStartedSending := a.current.started
	keepAlive := sm.Line.Version.KeepAliveDefault
	if conn, ok := sm.Headers.Get(header.Connection); ok {
		keepAlive = token.HeaderValueContainsToken(conn, "keep-alive")
		if token.HeaderValueContainsToken(conn, "close") {
			keepAlive = false
		}
	}
	extra := map[string]string{}
	if clientStartedSending || !keepAlive {
		extra[header.Connection] = "close"
	}
	writeErr := a.writeSimpleResponse(413, "Request Entity Too Large", extra)
	if a.Close != nil {
		_ = a.Close()
	}
	a.resetDecoder()
	if writeErr != nil {
		return nil, EventOversized, writeErr
	}
	return nil, EventOversized, nil
}

func (a *Aggregator) onChunk(c *ContentChunk) (*FullMessage, AggregatorEvent, error) {
	if a.current == nil {
		return nil, EventNone, nil
	}
	cur := a.current
	cur.started = true

	if !cur.oversized && c.Buf.Len() > 0 {
		if a.MaxContentLength >= 0 && cur.length+int64(c.Buf.Len()) > a.MaxContentLength {
			a.stats.BytesDiscarded += uint64(c.Buf.Len())
			c.Buf.Release()
			return a.handleOversize(cur.start)
		}
		cur.length += int64(c.Buf.Len())
		cur.parts = append(cur.parts, c.Buf.Retain())
	}
	c.Buf.Release()

	if !c.Last {
		return nil, EventNone, nil
	}

	if cur.oversized {
		a.current = nil
		return nil, EventNone, nil
	}

	content := CompositeBuffer(cur.parts...)
	full := &FullMessage{
		Line:     cur.start.Line,
		Headers:  cur.start.Headers,
		Content:  content,
		Trailers: c.Trailers,
	}
	if _, ok := full.Headers.Get(header.ContentLength); !ok {
		full.Headers.AddInt(header.ContentLength, int64(content.Len()))
	}
	a.current = nil
	a.stats.MessagesAggregated++
	return full, EventNone, nil
}

func (a *Aggregator) resetDecoder() {
	if a.Decoder != nil {
		a.Decoder.RequestReset()
	}
	a.current = nil
}

// writeSimpleResponse encodes and writes a bodyless response with the
// given status/reason and extra headers, used for 100/417/413.
func (a *Aggregator) writeSimpleResponse(status int, reason string, extra map[string]string) error {
	if a.Write == nil {
		return nil
	}
	h := header.New()
	for k, v := range extra {
		h.Set(k, v)
	}
	sm := &StartMessage{
		Line: StartLine{
			Direction:  DirectionResponse,
			Version:    HTTP11,
			StatusCode: status,
			Reason:     reason,
		},
		Headers: h,
	}
	enc := &Encoder{Direction: DirectionResponse}
	var b strings.Builder
	if err := enc.EncodeStart(&b, sm); err != nil {
		return err
	}
	if err := enc.EncodeChunk(&b, &ContentChunk{Buf: EmptyBuffer, Last: true}); err != nil {
		return err
	}
	return a.Write([]byte(b.String()))
}
