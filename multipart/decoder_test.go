package multipart

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDecoderParsesFieldAndFileParts(t *testing.T) {
	const boundary = "X-BOUNDARY"
	body := "--" + boundary + "\r\n" +
		"Content-Disposition: form-data; name=\"field1\"\r\n\r\n" +
		"value1\r\n" +
		"--" + boundary + "\r\n" +
		"Content-Disposition: form-data; name=\"file1\"; filename=\"a.txt\"\r\n" +
		"Content-Type: text/plain\r\n\r\n" +
		"file contents\r\n" +
		"--" + boundary + "--\r\n"

	factory := NewStorageFactory(StorageMemory, t.TempDir())
	d := NewDecoder(boundary, "", factory)
	require.NoError(t, d.Feed([]byte(body), true))

	require.True(t, d.HasNext())
	field := d.Next()
	require.Equal(t, "field1", field.FieldName)
	b, err := field.GetBytes()
	require.NoError(t, err)
	require.Equal(t, "value1", string(b))

	require.True(t, d.HasNext())
	file := d.Next()
	require.Equal(t, "file1", file.FieldName)
	require.Equal(t, "a.txt", file.FileName)
	b, err = file.GetBytes()
	require.NoError(t, err)
	require.Equal(t, "file contents", string(b))

	require.False(t, d.HasNext())
}

func TestDecoderHandlesMixedNestedBoundary(t *testing.T) {
	const outer = "OUTER"
	const inner = "INNER"
	body := "--" + outer + "\r\n" +
		"Content-Disposition: form-data; name=\"files\"\r\n" +
		"Content-Type: multipart/mixed; boundary=" + inner + "\r\n\r\n" +
		"--" + inner + "\r\n" +
		"Content-Disposition: attachment; filename=\"one.txt\"\r\n\r\n" +
		"one\r\n" +
		"--" + inner + "\r\n" +
		"Content-Disposition: attachment; filename=\"two.txt\"\r\n\r\n" +
		"two\r\n" +
		"--" + inner + "--\r\n" +
		"--" + outer + "--\r\n"

	factory := NewStorageFactory(StorageMemory, t.TempDir())
	d := NewDecoder(outer, "", factory)
	require.NoError(t, d.Feed([]byte(body), true))

	var names []string
	var contents []string
	for d.HasNext() {
		p := d.Next()
		names = append(names, p.FileName)
		b, err := p.GetBytes()
		require.NoError(t, err)
		contents = append(contents, string(b))
	}
	require.Equal(t, []string{"one.txt", "two.txt"}, names)
	require.Equal(t, []string{"one", "two"}, contents)

	parts := d.Parts("files")
	require.Len(t, parts, 2)
}

func TestDecoderFeedIncrementallyAcrossChunkBoundaries(t *testing.T) {
	const boundary = "B"
	body := "--" + boundary + "\r\n" +
		"Content-Disposition: form-data; name=\"f\"\r\n\r\n" +
		"abcdef\r\n" +
		"--" + boundary + "--\r\n"

	factory := NewStorageFactory(StorageMemory, t.TempDir())
	d := NewDecoder(boundary, "", factory)
	for i := 0; i < len(body); i++ {
		last := i == len(body)-1
		require.NoError(t, d.Feed([]byte{body[i]}, last))
	}

	require.True(t, d.HasNext())
	p := d.Next()
	b, err := p.GetBytes()
	require.NoError(t, err)
	require.Equal(t, "abcdef", string(b))
}

func TestDecoderMissingDispositionIsFatal(t *testing.T) {
	const boundary = "B"
	body := "--" + boundary + "\r\n" +
		"Content-Type: text/plain\r\n\r\n" +
		"oops\r\n" +
		"--" + boundary + "--\r\n"

	factory := NewStorageFactory(StorageMemory, t.TempDir())
	d := NewDecoder(boundary, "", factory)
	err := d.Feed([]byte(body), true)
	require.ErrorIs(t, err, ErrMissingDisposition)
}
