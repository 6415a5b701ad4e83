package region

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpenErrors(t *testing.T) {
	t.Run("missing file", func(t *testing.T) {
		_, err := Open(filepath.Join(t.TempDir(), "missing.mca"))
		assert.Error(t, err)
	})

	t.Run("truncated header", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "short.mca")
		require.NoError(t, os.WriteFile(path, make([]byte, 100), 0o644))

		_, err := Open(path)
		assert.ErrorIs(t, err, ErrTruncatedHeader)
	})
}

func TestChunkCount(t *testing.T) {
	r := openFixture(t, []recordSpec{
		{index: 0, sector: 2, count: 1, tag: CompressionRaw, payload: chunkPayload(0, 0)},
		{index: 7, sector: 3, count: 1, tag: CompressionRaw, payload: chunkPayload(7, 0)},
	})
	assert.Equal(t, 2, r.ChunkCount())
}

func TestPath(t *testing.T) {
	path := writeRegionFile(t, nil, nil)
	r, err := Open(path)
	require.NoError(t, err)
	defer r.Close()
	assert.Equal(t, path, r.Path())
}

func TestScanEmptyFile(t *testing.T) {
	r, err := Open(writeRegionFile(t, nil, nil))
	require.NoError(t, err)
	defer r.Close()

	stats, err := r.Scan(ScanOptions{Fix: true})
	require.NoError(t, err)
	assert.Equal(t, ScanStatistics{}, stats)
	assert.Equal(t, 0, r.ChunkCount())
}
