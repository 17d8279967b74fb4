package httpwire

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/nicholaspei/httpwire/header"
)

func newTestAggregator(maxLen int64) (*Aggregator, *[]byte, *bool) {
	dec := NewDecoder(DirectionRequest, NewDecoderConfig())
	agg := NewAggregator(dec, maxLen)
	written := &[]byte{}
	closed := new(bool)
	agg.Write = func(b []byte) error { *written = append(*written, b...); return nil }
	agg.Close = func() error { *closed = true; return nil }
	return agg, written, closed
}

func startMessage(method string, headers *header.Store) *StartMessage {
	return &StartMessage{
		Line: StartLine{
			Direction:     DirectionRequest,
			Version:       HTTP11,
			Method:        method,
			RequestTarget: "/",
		},
		Headers: headers,
	}
}

func TestAggregatorFixedLengthRoundTrip(t *testing.T) {
	agg, _, _ := newTestAggregator(1024)
	h := header.New()
	h.AddUnchecked(header.ContentLength, "5")
	full, event, err := agg.Process(Object{Start: startMessage(MethodPost, h)})
	require.NoError(t, err)
	require.Equal(t, EventNone, event)
	require.Nil(t, full)

	buf := NewBuffer([]byte("hello"))
	full, event, err = agg.Process(Object{Chunk: &ContentChunk{Buf: buf, Last: true}})
	require.NoError(t, err)
	require.Equal(t, EventNone, event)
	require.NotNil(t, full)
	require.Equal(t, "hello", string(full.Content.Bytes()))
	full.Release()
}

func TestAggregatorExpectContinueAccepted(t *testing.T) {
	agg, written, _ := newTestAggregator(1024)
	h := header.New()
	h.AddUnchecked(header.Expect, "100-continue")
	h.AddUnchecked(header.ContentLength, "5")
	full, event, err := agg.Process(Object{Start: startMessage(MethodPost, h)})
	require.NoError(t, err)
	require.Equal(t, EventNone, event)
	require.Nil(t, full)
	require.Contains(t, string(*written), "100 Continue")
}

func TestAggregatorExpectContinueOversizeRejected(t *testing.T) {
	agg, written, _ := newTestAggregator(4)
	h := header.New()
	h.AddUnchecked(header.Expect, "100-continue")
	h.AddUnchecked(header.ContentLength, "5000")
	full, event, err := agg.Process(Object{Start: startMessage(MethodPost, h)})
	require.NoError(t, err)
	require.Equal(t, EventExpectationFailed, event)
	require.Nil(t, full)
	require.Contains(t, string(*written), "413")
}

func TestAggregatorOversizeWithoutExpectClosesConnection(t *testing.T) {
	agg, written, closed := newTestAggregator(4)
	h := header.New()
	h.AddUnchecked(header.ContentLength, "5000")
	full, event, err := agg.Process(Object{Start: startMessage(MethodPost, h)})
	require.NoError(t, err)
	require.Equal(t, EventOversized, event)
	require.Nil(t, full)
	require.Contains(t, string(*written), "413")
	require.True(t, *closed)
}
