package contentcodec

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/nicholaspei/httpwire"
	"github.com/nicholaspei/httpwire/header"
)

func TestOutboundSandwichCompressesAndInboundDecompresses(t *testing.T) {
	registry := DefaultRegistry()
	out := &OutboundSandwich{Registry: registry}
	out.QueueRequest(httpwire.MethodGet, "gzip, deflate")

	h := header.New()
	h.AddUnchecked(header.ContentLength, "11")
	startObjs, err := out.Process(httpwire.Object{Start: &httpwire.StartMessage{
		Line:    httpwire.StartLine{Direction: httpwire.DirectionResponse, Version: httpwire.HTTP11, StatusCode: 200},
		Headers: h,
	}})
	require.NoError(t, err)
	require.Len(t, startObjs, 1)
	rewritten := startObjs[0].Start.Headers
	_, hasCL := rewritten.Get(header.ContentLength)
	require.False(t, hasCL)
	enc, _ := rewritten.Get(header.ContentEncoding)
	require.Equal(t, "gzip", enc)

	var compressed []byte
	chunkObjs, err := out.Process(httpwire.Object{Chunk: &httpwire.ContentChunk{Buf: httpwire.NewBuffer([]byte("hello world")), Last: false}})
	require.NoError(t, err)
	for _, o := range chunkObjs {
		compressed = append(compressed, o.Chunk.Buf.Bytes()...)
	}
	termObjs, err := out.Process(httpwire.Object{Chunk: &httpwire.ContentChunk{Buf: httpwire.EmptyBuffer, Last: true}})
	require.NoError(t, err)
	var sawTerminal bool
	for _, o := range termObjs {
		if o.Chunk.Last {
			sawTerminal = true
			continue
		}
		compressed = append(compressed, o.Chunk.Buf.Bytes()...)
	}
	require.True(t, sawTerminal)
	require.NotEqual(t, "hello world", string(compressed))

	in := &InboundSandwich{Registry: registry}
	inHeaders := header.New()
	inHeaders.AddUnchecked(header.ContentEncoding, "gzip")
	_, err = in.Process(httpwire.Object{Start: &httpwire.StartMessage{
		Line:    httpwire.StartLine{Direction: httpwire.DirectionResponse, Version: httpwire.HTTP11, StatusCode: 200},
		Headers: inHeaders,
	}})
	require.NoError(t, err)

	var decoded []byte
	chunkObjs, err = in.Process(httpwire.Object{Chunk: &httpwire.ContentChunk{Buf: httpwire.NewBuffer(compressed), Last: false}})
	require.NoError(t, err)
	for _, o := range chunkObjs {
		decoded = append(decoded, o.Chunk.Buf.Bytes()...)
	}
	termObjs, err = in.Process(httpwire.Object{Chunk: &httpwire.ContentChunk{Buf: httpwire.EmptyBuffer, Last: true}})
	require.NoError(t, err)
	for _, o := range termObjs {
		if !o.Chunk.Last {
			decoded = append(decoded, o.Chunk.Buf.Bytes()...)
		}
	}
	require.Equal(t, "hello world", string(decoded))
}

func TestOutboundSandwichPassesThroughHeadResponses(t *testing.T) {
	registry := DefaultRegistry()
	out := &OutboundSandwich{Registry: registry}
	out.QueueRequest(httpwire.MethodHead, "gzip")

	h := header.New()
	objs, err := out.Process(httpwire.Object{Start: &httpwire.StartMessage{
		Line:    httpwire.StartLine{Direction: httpwire.DirectionResponse, Version: httpwire.HTTP11, StatusCode: 200},
		Headers: h,
	}})
	require.NoError(t, err)
	_, hasEncoding := objs[0].Start.Headers.Get(header.ContentEncoding)
	require.False(t, hasEncoding)
}
