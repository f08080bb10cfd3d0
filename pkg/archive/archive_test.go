package archive

import (
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/klauspost/pgzip"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/voluzi/memwatch/pkg/logparser"
	"github.com/voluzi/memwatch/pkg/timerange"
)

const systemBlock = "监控时间: 2024-01-01 10:00:00\n" +
	"总内存: 16000.00 MB, 已用内存: 8000.00 MB, 使用率: 50.00%\n\n"

func writeSource(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "server_memory.log")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func readGzip(t *testing.T, path string) string {
	t.Helper()
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	gz, err := pgzip.NewReader(f)
	require.NoError(t, err)
	defer gz.Close()

	data, err := io.ReadAll(gz)
	require.NoError(t, err)
	return string(data)
}

func TestCompressRoundTrip(t *testing.T) {
	content := strings.Repeat(systemBlock, 500)
	src := writeSource(t, content)
	dst := filepath.Join(t.TempDir(), "archive", "server_memory.log.gz")

	result, err := Compress(src, dst, WithBlockSize("1KB"), WithBlocks(2), WithLevel(pgzip.BestSpeed))
	require.NoError(t, err)

	assert.Equal(t, dst, result.Destination)
	assert.Equal(t, uint64(len(content)), result.Size.Bytes())
	assert.Less(t, result.CompressedSize.Bytes(), result.Size.Bytes())
	assert.False(t, result.Truncated)
	assert.Equal(t, content, readGzip(t, dst))

	kept, err := os.ReadFile(src)
	require.NoError(t, err)
	assert.Equal(t, content, string(kept))
}

func TestCompressTruncate(t *testing.T) {
	src := writeSource(t, systemBlock)
	dst := src + ".gz"

	result, err := Compress(src, dst, WithTruncate(true))
	require.NoError(t, err)
	assert.True(t, result.Truncated)

	info, err := os.Stat(src)
	require.NoError(t, err)
	assert.Zero(t, info.Size())

	parsed, err := logparser.New(logparser.WithLocation(time.UTC)).ParseSystem(dst, timerange.Window{
		Start: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		End:   time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)
	require.Len(t, parsed.Memory, 1)
	assert.Equal(t, 50.0, parsed.Memory[0].Value)
}

func TestCompressDefaultDestination(t *testing.T) {
	src := writeSource(t, systemBlock)

	result, err := Compress(src, "")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(result.Destination, src+"."))
	assert.True(t, strings.HasSuffix(result.Destination, ".gz"))
	assert.FileExists(t, result.Destination)
}

func TestDefaultDestination(t *testing.T) {
	now := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	assert.Equal(t, "check.log.20240102030405.gz", DefaultDestination("check.log", now))
}

func TestCompressErrors(t *testing.T) {
	src := writeSource(t, systemBlock)

	_, err := Compress(src, src)
	assert.Error(t, err)

	_, err = Compress(filepath.Join(t.TempDir(), "missing.log"), "")
	assert.Error(t, err)

	dst := filepath.Join(t.TempDir(), "bad.gz")
	_, err = Compress(src, dst, WithLevel(42))
	assert.Error(t, err)
	assert.NoFileExists(t, dst, "partial archive is removed")
}
