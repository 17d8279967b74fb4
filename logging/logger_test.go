package logging

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNewWithStdoutTrueBuildsUsableLogger(t *testing.T) {
	l, err := New(Options{Stdout: true, Level: string(LevelDebug)})
	require.NoError(t, err)
	require.NotPanics(t, func() {
		l.Infof("hello %s", "world")
		l.With("request_id", "abc").Warnf("retrying")
	})
}

func TestNewWithFilenameCreatesParentDirectoryAndFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "nested", "httpwire.log")

	l, err := New(Options{Filename: path, MaxSize: 1, Level: string(LevelInfo)})
	require.NoError(t, err)
	l.Infof("first line")

	_, err = os.Stat(filepath.Dir(path))
	require.NoError(t, err)
}

func TestToZapLevelMapsKnownLevels(t *testing.T) {
	require.NotPanics(t, func() {
		for _, lvl := range []Level{LevelDebug, LevelInfo, LevelWarn, LevelError, Level("unknown")} {
			toZapLevel(lvl)
		}
	})
}

func TestSetDefaultReplacesPackageLevelLogger(t *testing.T) {
	original := std
	defer func() { std = original }()

	replacement, err := New(Options{Stdout: true, Level: string(LevelError)})
	require.NoError(t, err)
	SetDefault(replacement)

	require.NotPanics(t, func() {
		Infof("this goes through the replaced logger")
		Errorf("so does this")
	})
}
