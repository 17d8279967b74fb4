package httpwire

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func decodeAll(t *testing.T, d *Decoder, chunks ...string) []Object {
	t.Helper()
	var out []Object
	for _, c := range chunks {
		require.NoError(t, d.Decode([]byte(c), &out))
	}
	return out
}

func TestDecoderFixedLengthRequest(t *testing.T) {
	d := NewDecoder(DirectionRequest, NewDecoderConfig())
	objs := decodeAll(t, d, "POST /upload HTTP/1.1\r\nHost: example.com\r\nContent-Length: 5\r\n\r\nhello")

	require.Len(t, objs, 3)
	require.NotNil(t, objs[0].Start)
	require.Equal(t, "POST", objs[0].Start.Line.Method)
	require.NotNil(t, objs[1].Chunk)
	require.True(t, objs[2].Chunk.Last)
	require.Equal(t, "hello", string(objs[1].Chunk.Buf.Bytes()))
}

func TestDecoderChunkedResponseWithTrailer(t *testing.T) {
	d := NewDecoder(DirectionResponse, NewDecoderConfig())
	raw := "HTTP/1.1 200 OK\r\nTransfer-Encoding: chunked\r\n\r\n" +
		"5\r\nhello\r\n0\r\nX-Checksum: abc\r\n\r\n"
	objs := decodeAll(t, d, raw)

	require.NotEmpty(t, objs)
	last := objs[len(objs)-1]
	require.NotNil(t, last.Chunk)
	require.True(t, last.Chunk.Last)
	require.NotNil(t, last.Chunk.Trailers)
	v, ok := last.Chunk.Trailers.Get("X-Checksum")
	require.True(t, ok)
	require.Equal(t, "abc", v)
}

func TestDecoderVariableLengthResponseTerminatedByClose(t *testing.T) {
	d := NewDecoder(DirectionResponse, NewDecoderConfig())
	var out []Object
	require.NoError(t, d.Decode([]byte("HTTP/1.0 200 OK\r\n\r\nsome body bytes"), &out))
	require.NoError(t, d.DecodeEOF(&out))

	var sawTerminal bool
	var body []byte
	for _, o := range out {
		if o.Chunk != nil {
			body = append(body, o.Chunk.Buf.Bytes()...)
			if o.Chunk.Last {
				sawTerminal = true
			}
		}
	}
	require.True(t, sawTerminal)
	require.Equal(t, "some body bytes", string(body))
}

func TestDecoderRejectsMalformedHeaderLine(t *testing.T) {
	d := NewDecoder(DirectionRequest, NewDecoderConfig())
	var out []Object
	require.NoError(t, d.Decode([]byte("GET / HTTP/1.1\r\nBadHeaderNoColon\r\n\r\n"), &out))

	require.NotEmpty(t, out)
	last := out[len(out)-1]
	require.NotNil(t, last.Start)
	require.True(t, last.Start.DecodeFailure)
	require.Error(t, last.Start.Cause)
}

func TestDecoderObsFoldJoinsContinuationLine(t *testing.T) {
	d := NewDecoder(DirectionRequest, NewDecoderConfig())
	objs := decodeAll(t, d, "GET / HTTP/1.1\r\nX-Multi: first\r\n second\r\n\r\n")
	require.NotEmpty(t, objs)
	v, ok := objs[0].Start.Headers.Get("X-Multi")
	require.True(t, ok)
	require.Equal(t, "first second", v)
}
