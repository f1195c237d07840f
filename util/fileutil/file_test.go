package fileutil

import (
	"bufio"
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPathJoinSafe(t *testing.T) {
	assert.Equal(t, filepath.Join("a", "b", "c.json"), PathJoinSafe("a", "b", "c.json"))
	assert.Equal(t, "s3://bucket/models/tokenizer.json", PathJoinSafe("s3://bucket/", "models", "tokenizer.json"))
}

func TestReadLineLongerThanBuffer(t *testing.T) {
	long := strings.Repeat("x", 100_000)
	r := bufio.NewReaderSize(strings.NewReader(long+"\nshort\n"), 16)
	line, err := ReadLine(r)
	require.NoError(t, err)
	assert.Len(t, line, 100_000)
	line, err = ReadLine(r)
	require.NoError(t, err)
	assert.Equal(t, "short", string(line))
	_, err = ReadLine(r)
	assert.ErrorIs(t, err, io.EOF)
}

func TestWriteThenRead(t *testing.T) {
	dir := t.TempDir()
	target := filepath.Join(dir, "out.jsonl")
	require.NoError(t, os.WriteFile(target, []byte("stale"), 0o644))

	w, err := NewFileWriter(context.Background(), target)
	require.NoError(t, err)
	_, err = w.Write([]byte(`{"a":1}`))
	require.NoError(t, err)
	require.NoError(t, w.Close())

	b, err := ReadFileBytes(target)
	require.NoError(t, err)
	assert.Equal(t, `{"a":1}`, string(b))

	exists, err := FileExists(target)
	require.NoError(t, err)
	assert.True(t, exists)
}
