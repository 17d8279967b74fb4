package contentcodec

import (
	"strings"

	"github.com/nicholaspei/httpwire"
	"github.com/nicholaspei/httpwire/header"
)

const identity = "identity"

// InboundSandwich implements C7's inbound half: it sits between the
// decoder (C4) and whatever consumes its Object stream, decompressing
// Content-Encoding bodies transparently. One sandwich instance handles
// one message at a time; each new Start object replaces the previous
// message's sub-decoder and passthrough state.
type InboundSandwich struct {
	Registry *Registry

	dec         SubDecoder
	passthrough bool
}

// Process consumes one decoder Object and returns zero or more Objects to
// forward downstream. A terminal chunk can expand into two Objects (a
// trailing data chunk plus the empty terminal) when the sub-decoder has
// buffered output to drain at Finish.
func (s *InboundSandwich) Process(obj httpwire.Object) ([]httpwire.Object, error) {
	if obj.Start != nil {
		return s.onStart(obj.Start)
	}
	if obj.Chunk != nil {
		return s.onChunk(obj.Chunk)
	}
	return nil, nil
}

func (s *InboundSandwich) onStart(sm *httpwire.StartMessage) ([]httpwire.Object, error) {
	if sm.DecodeFailure {
		s.passthrough = true
		return []httpwire.Object{{Start: sm}}, nil
	}
	if sm.Line.Direction == httpwire.DirectionResponse && sm.Line.StatusCode < 200 {
		s.passthrough = true
		return []httpwire.Object{{Start: sm}}, nil
	}

	encoding := identity
	if v, ok := sm.Headers.Get(header.ContentEncoding); ok && strings.TrimSpace(v) != "" {
		encoding = strings.ToLower(strings.TrimSpace(v))
	}

	factory, ok := s.Registry.Decoder(encoding)
	if !ok || encoding == identity {
		s.passthrough = true
		return []httpwire.Object{{Start: sm}}, nil
	}

	s.passthrough = false
	s.dec = factory()

	out := sm.Headers.Clone()
	out.Remove(header.ContentLength)
	out.Set(header.TransferEncoding, "chunked")
	out.Remove(header.ContentEncoding)

	shallow := &httpwire.StartMessage{Line: sm.Line, Headers: out}
	return []httpwire.Object{{Start: shallow}}, nil
}

func (s *InboundSandwich) onChunk(c *httpwire.ContentChunk) ([]httpwire.Object, error) {
	if s.passthrough {
		return []httpwire.Object{{Chunk: c}}, nil
	}

	if !c.Last {
		decoded, err := s.dec.Push(c.Buf.Bytes())
		c.Buf.Release()
		if err != nil {
			return nil, httpwire.ErrSubCodec
		}
		if len(decoded) == 0 {
			return nil, nil
		}
		return []httpwire.Object{{Chunk: &httpwire.ContentChunk{Buf: httpwire.NewBuffer(decoded)}}}, nil
	}

	c.Buf.Release()
	tail, err := s.dec.Finish()
	s.dec = nil
	if err != nil {
		return nil, httpwire.ErrSubCodec
	}

	var objs []httpwire.Object
	if len(tail) > 0 {
		objs = append(objs, httpwire.Object{Chunk: &httpwire.ContentChunk{Buf: httpwire.NewBuffer(tail)}})
	}
	objs = append(objs, httpwire.Object{Chunk: &httpwire.ContentChunk{Buf: httpwire.EmptyBuffer, Last: true, Trailers: c.Trailers}})
	return objs, nil
}

// OutboundSandwich is C7's outbound half: it compresses response bodies
// according to a FIFO of Accept-Encoding values correlated one-per-request,
// mirroring the encoder's (C5) method-correlation queue from §4.8.
type OutboundSandwich struct {
	Registry *Registry

	queue       []string
	enc         SubEncoder
	passthrough bool
}

// sentinelPassthrough marks a queued request (HEAD, CONNECT) whose
// response must never be compressed regardless of Accept-Encoding.
const sentinelPassthrough = "\x00passthrough"

// QueueRequest records one outbound request's Accept-Encoding for
// correlation with the response that answers it.
func (s *OutboundSandwich) QueueRequest(method, acceptEncoding string) {
	if method == httpwire.MethodHead || method == httpwire.MethodConnect {
		s.queue = append(s.queue, sentinelPassthrough)
		return
	}
	s.queue = append(s.queue, acceptEncoding)
}

// Process mirrors InboundSandwich.Process for the outbound direction.
func (s *OutboundSandwich) Process(obj httpwire.Object) ([]httpwire.Object, error) {
	if obj.Start != nil {
		return s.onStart(obj.Start)
	}
	if obj.Chunk != nil {
		return s.onChunk(obj.Chunk)
	}
	return nil, nil
}

func (s *OutboundSandwich) onStart(sm *httpwire.StartMessage) ([]httpwire.Object, error) {
	if len(s.queue) == 0 {
		return nil, httpwire.ErrFraming
	}
	accept := s.queue[0]
	s.queue = s.queue[1:]

	status := sm.Line.StatusCode
	forcedPassthrough := accept == sentinelPassthrough ||
		status < 200 || status == 204 || status == 304 ||
		sm.Line.Version.Major == 1 && sm.Line.Version.Minor == 0

	if forcedPassthrough {
		s.passthrough = true
		return []httpwire.Object{{Start: sm}}, nil
	}

	encoding := s.chooseEncoding(accept)
	if encoding == "" || encoding == identity {
		s.passthrough = true
		return []httpwire.Object{{Start: sm}}, nil
	}

	factory, ok := s.Registry.Encoder(encoding)
	if !ok {
		s.passthrough = true
		return []httpwire.Object{{Start: sm}}, nil
	}

	s.passthrough = false
	s.enc = factory()

	out := sm.Headers.Clone()
	out.Remove(header.ContentLength)
	out.Set(header.TransferEncoding, "chunked")
	out.Set(header.ContentEncoding, encoding)

	shallow := &httpwire.StartMessage{Line: sm.Line, Headers: out}
	return []httpwire.Object{{Start: shallow}}, nil
}

// chooseEncoding picks the first registry-preferred encoding mutually
// acceptable per accept, an Accept-Encoding header value. A bare "*"
// token accepts the registry's top preference.
func (s *OutboundSandwich) chooseEncoding(accept string) string {
	if strings.TrimSpace(accept) == "" {
		return identity
	}
	offered := make(map[string]bool)
	for _, part := range strings.Split(accept, ",") {
		name, _, _ := strings.Cut(strings.TrimSpace(part), ";")
		name = strings.ToLower(strings.TrimSpace(name))
		if name != "" {
			offered[name] = true
		}
	}
	if offered["*"] && len(s.Registry.Preference) > 0 {
		return s.Registry.Preference[0]
	}
	for _, pref := range s.Registry.Preference {
		if offered[pref] {
			if _, ok := s.Registry.Encoder(pref); ok {
				return pref
			}
		}
	}
	return identity
}

func (s *OutboundSandwich) onChunk(c *httpwire.ContentChunk) ([]httpwire.Object, error) {
	if s.passthrough {
		return []httpwire.Object{{Chunk: c}}, nil
	}

	if !c.Last {
		encoded, err := s.enc.Push(c.Buf.Bytes())
		c.Buf.Release()
		if err != nil {
			return nil, httpwire.ErrSubCodec
		}
		if len(encoded) == 0 {
			return nil, nil
		}
		return []httpwire.Object{{Chunk: &httpwire.ContentChunk{Buf: httpwire.NewBuffer(encoded)}}}, nil
	}

	c.Buf.Release()
	tail, err := s.enc.Finish()
	s.enc = nil
	if err != nil {
		return nil, httpwire.ErrSubCodec
	}

	var objs []httpwire.Object
	if len(tail) > 0 {
		objs = append(objs, httpwire.Object{Chunk: &httpwire.ContentChunk{Buf: httpwire.NewBuffer(tail)}})
	}
	objs = append(objs, httpwire.Object{Chunk: &httpwire.ContentChunk{Buf: httpwire.EmptyBuffer, Last: true, Trailers: c.Trailers}})
	return objs, nil
}
