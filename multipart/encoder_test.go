package multipart

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNewEncoderRejectsTraceMethod(t *testing.T) {
	_, err := NewEncoder("TRACE", ModeHTML5)
	require.ErrorIs(t, err, ErrForbiddenMethod)
}

func TestEncoderContentTypeCarriesBoundary(t *testing.T) {
	enc, err := NewEncoder("POST", ModeHTML5)
	require.NoError(t, err)
	require.Equal(t, "multipart/form-data; boundary="+enc.Boundary(), enc.ContentType())
}

func TestEncoderAttributeAndFileRoundTripThroughDecoder(t *testing.T) {
	enc, err := NewEncoder("POST", ModeHTML5)
	require.NoError(t, err)

	enc.Add(UploadItem{Name: "title", Content: []byte("hello")})
	enc.Add(UploadItem{Name: "upload", FileName: "a.txt", ContentType: "text/plain", Content: []byte("file body")})
	body := enc.Finish()

	factory := NewStorageFactory(StorageMemory, t.TempDir())
	dec := NewDecoder(enc.Boundary(), "", factory)
	require.NoError(t, dec.Feed(body, true))

	require.True(t, dec.HasNext())
	field := dec.Next()
	require.Equal(t, "title", field.FieldName)
	b, err := field.GetBytes()
	require.NoError(t, err)
	require.Equal(t, "hello", string(b))

	require.True(t, dec.HasNext())
	file := dec.Next()
	require.Equal(t, "upload", file.FieldName)
	require.Equal(t, "a.txt", file.FileName)
	b, err = file.GetBytes()
	require.NoError(t, err)
	require.Equal(t, "file body", string(b))

	require.False(t, dec.HasNext())
}

func TestEncoderPromotesConsecutiveFilesToMixed(t *testing.T) {
	enc, err := NewEncoder("POST", ModeRFC3986)
	require.NoError(t, err)

	enc.Add(UploadItem{Name: "files", FileName: "one.txt", Content: []byte("one")})
	enc.Add(UploadItem{Name: "files", FileName: "two.txt", Content: []byte("two")})
	body := enc.Finish()

	require.True(t, strings.Contains(string(body), "multipart/mixed"))

	factory := NewStorageFactory(StorageMemory, t.TempDir())
	dec := NewDecoder(enc.Boundary(), "", factory)
	require.NoError(t, dec.Feed(body, true))

	parts := dec.Parts("files")
	require.Len(t, parts, 2)
	require.Equal(t, "one.txt", parts[0].FileName)
	require.Equal(t, "two.txt", parts[1].FileName)
}

func TestEncoderDoesNotPromoteInHTML5Mode(t *testing.T) {
	enc, err := NewEncoder("POST", ModeHTML5)
	require.NoError(t, err)

	enc.Add(UploadItem{Name: "files", FileName: "one.txt", Content: []byte("one")})
	enc.Add(UploadItem{Name: "files", FileName: "two.txt", Content: []byte("two")})
	body := enc.Finish()

	require.False(t, strings.Contains(string(body), "multipart/mixed"))
}

func TestEncoderReadChunkIteratesEntireBody(t *testing.T) {
	enc, err := NewEncoder("POST", ModeHTML5)
	require.NoError(t, err)
	enc.ChunkSize = 4
	enc.Add(UploadItem{Name: "a", Content: []byte("0123456789")})
	full := enc.Finish()

	var reassembled []byte
	offset := 0
	for {
		chunk, next, ok := enc.ReadChunk(offset)
		if !ok {
			break
		}
		reassembled = append(reassembled, chunk...)
		offset = next
	}
	require.Equal(t, full, reassembled)
}

func TestEncoderEncodeURLValuesRFC3986(t *testing.T) {
	enc, err := NewEncoder("POST", ModeRFC3986)
	require.NoError(t, err)
	out := enc.EncodeURLValues([]Attribute{
		{Name: "q", Value: "a b*c~d"},
		{Name: "n", Value: "1"},
	})
	require.Equal(t, "q=a%20b%2Ac%7Ed&n=1", string(out))
}

func TestEncoderEncodeURLValuesHTML5UsesPlusForSpace(t *testing.T) {
	enc, err := NewEncoder("POST", ModeHTML5)
	require.NoError(t, err)
	out := enc.EncodeURLValues([]Attribute{{Name: "q", Value: "a b"}})
	require.Equal(t, "q=a+b", string(out))
}
