package store

import (
	"go.uber.org/zap"

	"github.com/dreamware/keva/internal/binlog"
)

// Options configure the engine and the binlog queue at Open time. The zero
// value is not useful; start from DefaultOptions and override.
type Options struct {
	// Logger receives structured engine and binlog diagnostics.
	// Nil means no logging.
	Logger *zap.Logger

	// Compression selects the SST block compression: "yes" enables snappy,
	// anything else stores blocks raw.
	Compression string

	// CacheSize is the LRU block cache size in MiB.
	CacheSize int

	// BlockSize is the SST block size in KiB.
	BlockSize int

	// WriteBufferSize is the memtable size in MiB.
	WriteBufferSize int

	// MaxOpenFiles caps the engine's file-handle cache.
	MaxOpenFiles int

	// BinlogCapacity is the retention target for the replication log.
	// Zero selects binlog.DefaultCapacity.
	BinlogCapacity uint64

	// Binlog enables replication logging. With it off, writes still batch
	// and commit atomically but no records are produced.
	Binlog bool
}

// DefaultOptions returns the tuning a standalone server starts from.
func DefaultOptions() Options {
	return Options{
		CacheSize:       32,
		BlockSize:       32,
		WriteBufferSize: 64,
		MaxOpenFiles:    1000,
		Compression:     "yes",
		Binlog:          true,
		BinlogCapacity:  binlog.DefaultCapacity,
	}
}
