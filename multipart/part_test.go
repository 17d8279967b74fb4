package multipart

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestPartMemoryStorageRoundTrips(t *testing.T) {
	factory := NewStorageFactory(StorageMemory, t.TempDir())
	p := factory.NewPart("field", "", "")
	require.NoError(t, p.AddContent([]byte("hello "), false))
	require.NoError(t, p.AddContent([]byte("world"), true))
	require.True(t, p.Completed)

	b, err := p.GetBytes()
	require.NoError(t, err)
	require.Equal(t, "hello world", string(b))
	require.EqualValues(t, 11, p.Size())
}

func TestPartDiskStorageRoundTrips(t *testing.T) {
	dir := t.TempDir()
	factory := NewStorageFactory(StorageDisk, dir)
	p := factory.NewPart("file", "a.bin", "application/octet-stream")
	require.NoError(t, p.AddContent([]byte("binary data"), true))

	b, err := p.GetBytes()
	require.NoError(t, err)
	require.Equal(t, "binary data", string(b))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
}

func TestPartMixedStoragePromotesPastMinSize(t *testing.T) {
	dir := t.TempDir()
	factory := NewStorageFactory(StorageMixed, dir)
	factory.MinSize = 8
	p := factory.NewPart("file", "big.bin", "")

	require.NoError(t, p.AddContent([]byte("1234"), false))
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Empty(t, entries)

	require.NoError(t, p.AddContent([]byte("5678901"), true))
	entries, err = os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)

	b, err := p.GetBytes()
	require.NoError(t, err)
	require.Equal(t, "12345678901", string(b))
}

func TestPartAddContentEnforcesMaxSize(t *testing.T) {
	factory := NewStorageFactory(StorageMemory, t.TempDir())
	factory.MaxSize = 4
	p := factory.NewPart("field", "", "")

	err := p.AddContent([]byte("12345"), true)
	require.ErrorIs(t, err, ErrSizeExceeded)
}

func TestPartSetContentRejectsOverDeclaredSize(t *testing.T) {
	factory := NewStorageFactory(StorageMemory, t.TempDir())
	p := factory.NewPart("field", "", "")
	p.DeclaredSize = 3

	err := p.SetContent([]byte("too long"))
	require.ErrorIs(t, err, ErrOutOfSize)
}

func TestPartSetContentReplacesPreviousBody(t *testing.T) {
	factory := NewStorageFactory(StorageMemory, t.TempDir())
	p := factory.NewPart("field", "", "")
	p.DeclaredSize = -1
	require.NoError(t, p.AddContent([]byte("old"), true))
	require.NoError(t, p.SetContent([]byte("new")))

	b, err := p.GetBytes()
	require.NoError(t, err)
	require.Equal(t, "new", string(b))
}

func TestPartSetContentFromStreamDrainsReader(t *testing.T) {
	factory := NewStorageFactory(StorageMemory, t.TempDir())
	p := factory.NewPart("field", "", "")
	p.DeclaredSize = -1

	require.NoError(t, p.SetContentFromStream(bytes.NewBufferString("streamed content")))
	require.True(t, p.Completed)

	b, err := p.GetBytes()
	require.NoError(t, err)
	require.Equal(t, "streamed content", string(b))
}

func TestPartRenameToMovesDiskBackedContent(t *testing.T) {
	dir := t.TempDir()
	factory := NewStorageFactory(StorageDisk, dir)
	p := factory.NewPart("file", "a.bin", "")
	require.NoError(t, p.AddContent([]byte("payload"), true))

	dest := filepath.Join(dir, "renamed.bin")
	require.NoError(t, p.RenameTo(dest))

	b, err := os.ReadFile(dest)
	require.NoError(t, err)
	require.Equal(t, "payload", string(b))
}

func TestPartRenameToDrainsMemoryBackedContent(t *testing.T) {
	dir := t.TempDir()
	factory := NewStorageFactory(StorageMemory, dir)
	p := factory.NewPart("field", "", "")
	require.NoError(t, p.AddContent([]byte("payload"), true))

	dest := filepath.Join(dir, "out.bin")
	require.NoError(t, p.RenameTo(dest))

	b, err := os.ReadFile(dest)
	require.NoError(t, err)
	require.Equal(t, "payload", string(b))
}

func TestPartGetStringDecodesDeclaredCharset(t *testing.T) {
	factory := NewStorageFactory(StorageMemory, t.TempDir())
	p := factory.NewPart("field", "", "")
	require.NoError(t, p.AddContent([]byte("caf\xe9"), true))

	s, err := p.GetString("iso-8859-1")
	require.NoError(t, err)
	require.Equal(t, "café", s)
}

func TestStorageFactoryCleanupRemovesTempFiles(t *testing.T) {
	dir := t.TempDir()
	factory := NewStorageFactory(StorageDisk, dir)
	p1 := factory.NewPart("a", "a.bin", "")
	p2 := factory.NewPart("b", "b.bin", "")
	require.NoError(t, p1.AddContent([]byte("x"), true))
	require.NoError(t, p2.AddContent([]byte("y"), true))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 2)

	require.NoError(t, factory.Cleanup())

	entries, err = os.ReadDir(dir)
	require.NoError(t, err)
	require.Empty(t, entries)
}

func TestPartDeleteRemovesDiskFile(t *testing.T) {
	dir := t.TempDir()
	factory := NewStorageFactory(StorageDisk, dir)
	p := factory.NewPart("file", "a.bin", "")
	require.NoError(t, p.AddContent([]byte("x"), true))

	require.NoError(t, p.Delete())

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Empty(t, entries)
}
