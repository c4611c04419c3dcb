package decompressor

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/klauspost/compress/gzip"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dselans/ungz/checkpoint"
	"github.com/dselans/ungz/config"
	"github.com/dselans/ungz/gunzip"
)

var payload = bytes.Repeat([]byte("the quick brown fox jumps over the lazy dog\n"), 2000)

func gzipFile(t *testing.T, data []byte, name string) string {
	t.Helper()

	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	zw.Name = name
	_, err := zw.Write(data)
	require.NoError(t, err)
	require.NoError(t, zw.Close())

	src := filepath.Join(t.TempDir(), "in.gz")
	require.NoError(t, os.WriteFile(src, buf.Bytes(), 0644))

	return src
}

func newDecompressor(t *testing.T, args ...string) *Decompressor {
	t.Helper()

	cfg, err := config.New(args)
	require.NoError(t, err)

	d, err := New(cfg)
	require.NoError(t, err)

	return d
}

func corruptTrailer(t *testing.T, src string) {
	t.Helper()

	data, err := os.ReadFile(src)
	require.NoError(t, err)

	data[len(data)-8] ^= 0xff
	require.NoError(t, os.WriteFile(src, data, 0644))
}

func TestRun(t *testing.T) {
	src := gzipFile(t, payload, "fox.txt")
	dst := filepath.Join(t.TempDir(), "out")

	res, err := newDecompressor(t, src, dst).Run(context.Background())
	require.NoError(t, err)

	got, err := os.ReadFile(dst)
	require.NoError(t, err)
	assert.Equal(t, payload, got)

	info, err := os.Stat(src)
	require.NoError(t, err)

	require.Len(t, res.Members, 1)
	assert.Equal(t, "fox.txt", res.Members[0].Header.Name)
	assert.Equal(t, info.Size(), res.BytesIn)
	assert.Equal(t, int64(len(payload)), res.BytesOut)
}

func TestRunRemovesPartialOutput(t *testing.T) {
	src := gzipFile(t, payload, "")
	corruptTrailer(t, src)
	dst := filepath.Join(t.TempDir(), "out")

	_, err := newDecompressor(t, src, dst).Run(context.Background())
	require.Error(t, err)
	assert.True(t, errors.Is(err, gunzip.ErrTrailerMismatch))

	_, err = os.Stat(dst)
	assert.True(t, os.IsNotExist(err))
}

func TestRunKeepPartial(t *testing.T) {
	src := gzipFile(t, payload, "")
	corruptTrailer(t, src)
	dst := filepath.Join(t.TempDir(), "out")

	_, err := newDecompressor(t, src, dst, "--keep-partial").Run(context.Background())
	require.Error(t, err)
	assert.True(t, errors.Is(err, gunzip.ErrTrailerMismatch))

	// Every byte was decoded before the trailer was checked
	got, err := os.ReadFile(dst)
	require.NoError(t, err)
	assert.Equal(t, payload, got)
}

func TestRunNoEmit(t *testing.T) {
	src := gzipFile(t, payload, "")
	dst := filepath.Join(t.TempDir(), "out")

	res, err := newDecompressor(t, src, dst, "--no-emit").Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(len(payload)), res.BytesOut)

	_, err = os.Stat(dst)
	assert.True(t, os.IsNotExist(err))
}

func TestRunSingleMember(t *testing.T) {
	first := gzipFile(t, []byte("one"), "")
	second := gzipFile(t, []byte("two"), "")

	a, err := os.ReadFile(first)
	require.NoError(t, err)
	b, err := os.ReadFile(second)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(first, append(a, b...), 0644))

	dst := filepath.Join(t.TempDir(), "out")

	_, err = newDecompressor(t, first, dst).Run(context.Background())
	require.NoError(t, err)
	got, err := os.ReadFile(dst)
	require.NoError(t, err)
	assert.Equal(t, "onetwo", string(got))

	_, err = newDecompressor(t, first, dst, "--single-member").Run(context.Background())
	require.NoError(t, err)
	got, err = os.ReadFile(dst)
	require.NoError(t, err)
	assert.Equal(t, "one", string(got))
}

func TestRunWritesCheckpoint(t *testing.T) {
	src := gzipFile(t, payload, "")
	dst := filepath.Join(t.TempDir(), "out")
	cpFile := filepath.Join(t.TempDir(), "cp.json")

	res, err := newDecompressor(t, src, dst, "--checkpoint-file", cpFile).Run(context.Background())
	require.NoError(t, err)

	cp, err := checkpoint.Load(cpFile)
	require.NoError(t, err)
	require.NotNil(t, cp)

	assert.Equal(t, src, cp.SourceFile)
	assert.Equal(t, dst, cp.DestinationFile)
	assert.NotNil(t, cp.CompletedAt)
	assert.Empty(t, cp.Error)
	assert.Equal(t, 1, cp.Member)
	assert.Equal(t, res.BytesIn, cp.CompressedOffset)
	assert.Equal(t, res.BytesOut, cp.UncompressedOffset)

	blocks := 0
	for _, m := range res.Members {
		blocks += m.Blocks
	}
	assert.Equal(t, blocks, cp.Blocks)
}

func TestRunCheckpointRecordsFailure(t *testing.T) {
	src := gzipFile(t, payload, "")
	corruptTrailer(t, src)
	dst := filepath.Join(t.TempDir(), "out")
	cpFile := filepath.Join(t.TempDir(), "cp.json")

	_, err := newDecompressor(t, src, dst, "--checkpoint-file", cpFile).Run(context.Background())
	require.Error(t, err)

	cp, err := checkpoint.Load(cpFile)
	require.NoError(t, err)
	require.NotNil(t, cp)

	assert.Nil(t, cp.CompletedAt)
	assert.Contains(t, cp.Error, "trailer")

	// A second run picks up the failed checkpoint without error
	newDecompressor(t, src, dst, "--checkpoint-file", cpFile)
}

func TestRunCancelled(t *testing.T) {
	src := gzipFile(t, payload, "")
	dst := filepath.Join(t.TempDir(), "out")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := newDecompressor(t, src, dst).Run(ctx)
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.Canceled))

	_, err = os.Stat(dst)
	assert.True(t, os.IsNotExist(err))
}

func TestRunShowHeader(t *testing.T) {
	hook := test.NewGlobal()
	defer hook.Reset()

	src := gzipFile(t, payload, "fox.txt")
	dst := filepath.Join(t.TempDir(), "out")

	_, err := newDecompressor(t, src, dst, "--show-header").Run(context.Background())
	require.NoError(t, err)

	var lines []string
	for _, e := range hook.AllEntries() {
		if e.Level == logrus.InfoLevel && e.Data["method"] == "displayHeader" {
			lines = append(lines, e.Message)
		}
	}

	joined := strings.Join(lines, "\n")
	assert.Contains(t, joined, "original file name: fox.txt")
	assert.Contains(t, joined, "comment           : (not set)")
	assert.Contains(t, joined, "header CRC        : (not set)")
	assert.Contains(t, joined, "magic number      : 0x1f 0x8b")
	assert.Contains(t, joined, "compression method: 0x08")
	assert.Contains(t, joined, "flags             : 0x08")
}

func TestNewValidatesConfig(t *testing.T) {
	_, err := New(nil)
	assert.Error(t, err)
}
