package checkpoint

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSaveLoad(t *testing.T) {
	file := filepath.Join(t.TempDir(), "cp.json")

	cp := New("in.gz", "out")
	cp.CompressedOffset = 1234
	cp.UncompressedOffset = 5678
	cp.Member = 2
	cp.Blocks = 7
	cp.LastUpdated = cp.StartedAt.Add(time.Second)

	require.NoError(t, cp.Save(file))

	got, err := Load(file)
	require.NoError(t, err)
	require.NotNil(t, got)

	assert.Equal(t, "in.gz", got.SourceFile)
	assert.Equal(t, "out", got.DestinationFile)
	assert.Equal(t, int64(1234), got.CompressedOffset)
	assert.Equal(t, int64(5678), got.UncompressedOffset)
	assert.Equal(t, 2, got.Member)
	assert.Equal(t, 7, got.Blocks)
	assert.Nil(t, got.CompletedAt)

	// No temp files are left behind
	entries, err := os.ReadDir(filepath.Dir(file))
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestLoadMissing(t *testing.T) {
	cp, err := Load(filepath.Join(t.TempDir(), "nope.json"))
	assert.NoError(t, err)
	assert.Nil(t, cp)
}

func TestLoadInvalid(t *testing.T) {
	dir := t.TempDir()

	garbage := filepath.Join(dir, "garbage.json")
	require.NoError(t, os.WriteFile(garbage, []byte("{"), 0644))

	_, err := Load(garbage)
	assert.Error(t, err)

	negative := filepath.Join(dir, "negative.json")
	require.NoError(t, os.WriteFile(negative, []byte(`{
  "source_file": "in.gz",
  "compressed_offset": -1,
  "started_at": "2024-01-01T00:00:00Z",
  "last_updated": "2024-01-01T00:00:00Z"
}`), 0644))

	_, err = Load(negative)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid checkpoint file")
}
