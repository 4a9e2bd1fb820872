package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dreamware/keva/internal/binlog"
	"github.com/dreamware/keva/internal/store"
)

func TestParse(t *testing.T) {
	t.Run("full config", func(t *testing.T) {
		c, err := Parse([]byte(`
dir: /var/lib/keva
cache_size: 128
block_size: 16
write_buffer_size: 32
max_open_files: 500
compression: "no"
binlog: false
binlog_capacity: 1000
`))
		require.NoError(t, err)

		opts := c.StoreOptions()
		assert.Equal(t, 128, opts.CacheSize)
		assert.Equal(t, 16, opts.BlockSize)
		assert.Equal(t, 32, opts.WriteBufferSize)
		assert.Equal(t, 500, opts.MaxOpenFiles)
		assert.Equal(t, "no", opts.Compression)
		assert.False(t, opts.Binlog)
		assert.Equal(t, uint64(1000), opts.BinlogCapacity)
	})

	t.Run("unset fields take defaults", func(t *testing.T) {
		c, err := Parse([]byte("dir: /tmp/keva\n"))
		require.NoError(t, err)

		opts := c.StoreOptions()
		def := store.DefaultOptions()
		assert.Equal(t, def.CacheSize, opts.CacheSize)
		assert.Equal(t, def.Compression, opts.Compression)
		assert.True(t, opts.Binlog)
		assert.Equal(t, uint64(binlog.DefaultCapacity), opts.BinlogCapacity)
	})

	t.Run("explicit zero is not unset", func(t *testing.T) {
		_, err := Parse([]byte("dir: /tmp/keva\ncache_size: 0\n"))
		assert.Error(t, err)
	})

	t.Run("dir is required", func(t *testing.T) {
		_, err := Parse([]byte("cache_size: 8\n"))
		assert.Error(t, err)
	})

	t.Run("bad compression", func(t *testing.T) {
		_, err := Parse([]byte("dir: /tmp/keva\ncompression: zstd\n"))
		assert.ErrorContains(t, err, "compression")
	})

	t.Run("unknown field rejected", func(t *testing.T) {
		_, err := Parse([]byte("dir: /tmp/keva\ncache_sise: 8\n"))
		assert.Error(t, err)
	})
}

func TestLoad(t *testing.T) {
	t.Run("reads a file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "keva.yml")
		require.NoError(t, os.WriteFile(path, []byte("dir: /data/keva\nbinlog: true\n"), 0o644))

		c, err := Load(path)
		require.NoError(t, err)
		assert.Equal(t, "/data/keva", c.Dir)
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := Load(filepath.Join(t.TempDir(), "absent.yml"))
		assert.Error(t, err)
	})
}
