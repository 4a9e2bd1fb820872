// Package store implements the typed data-structure core over an embedded
// ordered key-value engine. See doc.go for complete package documentation.
package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/filter"
	"github.com/syndtr/goleveldb/leveldb/opt"
	"github.com/syndtr/goleveldb/leveldb/util"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/dreamware/keva/internal/binlog"
	"github.com/dreamware/keva/internal/codec"
)

// ErrNotFound is returned when a requested key, field, member or queue item
// does not exist. Callers use errors.Is to distinguish missing data from
// storage failures.
var ErrNotFound = errors.New("store: not found")

// ErrEmptyName is returned when an operation is given an empty key or
// collection name.
var ErrEmptyName = errors.New("store: empty key or name")

// flushChunk bounds how many keys one FlushDB pass deletes before writing
// the batch out.
const flushChunk = 10000

// targetTableSize is the compaction target for one SST file.
const targetTableSize = 32 * opt.MiB

// readNoCache is used by iterators and maintenance reads so that scans do
// not evict the hot block-cache working set.
var readNoCache = &opt.ReadOptions{DontFillCache: true}

// Store owns the engine handle and the binlog queue. It is safe for
// concurrent use: the binlog queue serializes writers, readers never block
// writers, and the background trimmer is joined on Close.
type Store struct {
	db      *leveldb.DB
	binlogs *binlog.Queue
	logger  *zap.Logger
	cancel  context.CancelFunc
	bg      *errgroup.Group
	dir     string
}

// Open opens (creating if missing) the engine directory and constructs the
// binlog queue over it, then starts the queue's retention trimmer. The
// engine is tuned from opts: LRU block cache, 10-bits-per-key bloom filter,
// configurable block and write-buffer sizes, optional snappy compression.
// Compaction parallelism and engine-log rotation are managed by the engine
// itself.
func Open(dir string, opts Options) (*Store, error) {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	compression := opt.NoCompression
	if opts.Compression == "yes" {
		compression = opt.SnappyCompression
	}
	o := &opt.Options{
		OpenFilesCacheCapacity: opts.MaxOpenFiles,
		BlockCacheCapacity:     opts.CacheSize * opt.MiB,
		BlockSize:              opts.BlockSize * opt.KiB,
		WriteBuffer:            opts.WriteBufferSize * opt.MiB,
		CompactionTableSize:    targetTableSize,
		Filter:                 filter.NewBloomFilter(10),
		Compression:            compression,
	}

	db, err := leveldb.OpenFile(dir, o)
	if err != nil {
		logger.Error("open engine failed", zap.String("dir", dir), zap.Error(err))
		return nil, fmt.Errorf("store: open %s: %w", dir, err)
	}

	binlogs, err := binlog.NewQueue(db, logger, opts.Binlog, opts.BinlogCapacity)
	if err != nil {
		db.Close()
		return nil, err
	}

	ctx, cancel := context.WithCancel(context.Background())
	bg, bgCtx := errgroup.WithContext(ctx)
	s := &Store{
		dir:     dir,
		db:      db,
		binlogs: binlogs,
		logger:  logger,
		cancel:  cancel,
		bg:      bg,
	}
	bg.Go(func() error { return binlogs.Run(bgCtx) })

	logger.Info("store opened", zap.String("dir", dir))
	return s, nil
}

// Close stops the trimmer, waits for it to exit, and closes the engine.
func (s *Store) Close() error {
	s.cancel()
	if err := s.bg.Wait(); err != nil {
		s.logger.Warn("background task exited with error", zap.Error(err))
	}
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("store: close: %w", err)
	}
	s.logger.Info("store closed", zap.String("dir", s.dir))
	return nil
}

// Binlogs exposes the replication log for the external replicator's
// Get/FindNext/FindLast tailing interface.
func (s *Store) Binlogs() *binlog.Queue {
	return s.binlogs
}

// RawGet reads an engine key verbatim, bypassing the typed layer. Escape
// hatch for maintenance code.
func (s *Store) RawGet(key []byte) ([]byte, error) {
	v, err := s.db.Get(key, readNoCache)
	if errors.Is(err, leveldb.ErrNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("store: raw get: %w", err)
	}
	return v, nil
}

// RawPut writes an engine key verbatim, bypassing both the typed layer and
// the binlog.
func (s *Store) RawPut(key, value []byte) error {
	if err := s.db.Put(key, value, nil); err != nil {
		s.logger.Error("raw put failed", zap.Error(err))
		return fmt.Errorf("store: raw put: %w", err)
	}
	return nil
}

// RawDel deletes an engine key verbatim, bypassing both the typed layer and
// the binlog.
func (s *Store) RawDel(key []byte) error {
	if err := s.db.Delete(key, nil); err != nil {
		s.logger.Error("raw del failed", zap.Error(err))
		return fmt.Errorf("store: raw del: %w", err)
	}
	return nil
}

// FlushDB deletes every key in the store in bounded passes, then deletes
// every retained binlog record, all while holding the writer lock so no
// writer interleaves with the wipe. The seq counter is not reset: the next
// write continues from the last assigned seq.
//
// Bulk deletion does not emit per-key binlog entries: this is an
// administrative operation, and followers must run it out-of-band.
func (s *Store) FlushDB() error {
	tx := binlog.Begin(s.binlogs)
	defer tx.Close()

	for {
		it := s.db.NewIterator(nil, readNoCache)
		batch := new(leveldb.Batch)
		n := 0
		for n < flushChunk && it.Next() {
			batch.Delete(it.Key())
			n++
		}
		err := it.Error()
		it.Release()
		if err != nil {
			return fmt.Errorf("store: flushdb scan: %w", err)
		}
		if n == 0 {
			break
		}
		if err := s.db.Write(batch, nil); err != nil {
			s.logger.Error("flushdb delete failed", zap.Error(err))
			return fmt.Errorf("store: flushdb: %w", err)
		}
		if n < flushChunk {
			break
		}
	}
	return tx.FlushLogs()
}

// Size returns the engine's approximate on-disk size of the application
// keyspace.
func (s *Store) Size() (uint64, error) {
	sizes, err := s.db.SizeOf([]util.Range{{Start: []byte("A"), Limit: []byte("{")}})
	if err != nil {
		return 0, fmt.Errorf("store: size: %w", err)
	}
	return uint64(sizes.Sum()), nil
}

// Info surfaces engine statistics as flat [name, value, name, value, …]
// pairs, mirroring the wire shape the server's info command expects.
func (s *Store) Info() []string {
	props := []string{
		"leveldb.stats",
		"leveldb.iostats",
	}
	var info []string
	for _, p := range props {
		v, err := s.db.GetProperty(p)
		if err != nil {
			continue
		}
		info = append(info, p, v)
	}
	return info
}

// Compact requests a full-range compaction from the engine.
func (s *Store) Compact() error {
	if err := s.db.CompactRange(util.Range{}); err != nil {
		return fmt.Errorf("store: compact: %w", err)
	}
	return nil
}

// KeyRange probes the smallest and largest collection name present for each
// user-visible type and returns them as
// [kstart, kend, hstart, hend, zstart, zend, qstart, qend]. A slot is empty
// when the corresponding type holds no data.
func (s *Store) KeyRange() ([]string, error) {
	probes := []struct {
		encode func([]byte) []byte
		decode func([]byte) ([]byte, error)
		tag    byte
	}{
		{codec.EncodeKVKey, codec.DecodeKVKey, codec.TagKV},
		{codec.EncodeHSizeKey, codec.DecodeHSizeKey, codec.TagHSize},
		{codec.EncodeZSizeKey, codec.DecodeZSizeKey, codec.TagZSize},
		{codec.EncodeQSizeKey, codec.DecodeQSizeKey, codec.TagQSize},
	}

	out := make([]string, 0, 8)
	for _, p := range probes {
		first, err := s.probeOne(s.Iterator(p.encode(nil), nil, 1), p.tag, p.decode)
		if err != nil {
			return nil, err
		}
		last, err := s.probeOne(s.RevIterator(p.encode([]byte("\xff")), nil, 1), p.tag, p.decode)
		if err != nil {
			return nil, err
		}
		out = append(out, first, last)
	}
	return out, nil
}

func (s *Store) probeOne(it *Iterator, tag byte, decode func([]byte) ([]byte, error)) (string, error) {
	defer it.Release()
	if !it.Next() {
		return "", nil
	}
	k := it.Key()
	if len(k) == 0 || k[0] != tag {
		return "", nil
	}
	name, err := decode(k)
	if err != nil {
		return "", err
	}
	return string(name), nil
}
