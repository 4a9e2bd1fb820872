package binlog

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/util"
	"go.uber.org/zap"

	"github.com/dreamware/keva/internal/codec"
)

const (
	// DefaultCapacity is the release-build retention target for the queue.
	DefaultCapacity = 20 * 1000 * 1000

	// trimChunk bounds how many records one trim batch may delete, so the
	// trimmer yields the writer mutex at a steady cadence.
	trimChunk = 10000

	// trimTick is how often the trimmer compares queue length against
	// capacity.
	trimTick = 2 * time.Second

	// trimBackoff is how long the trimmer sits out after an engine failure.
	trimBackoff = 10 * time.Second
)

// ErrNotFound is returned by record lookups when no record exists at or
// after the requested seq.
var ErrNotFound = errors.New("binlog: record not found")

// Queue is the circular replication log. It owns the pending write batch
// and the writer mutex; the typed layer composes transactions through it so
// that user mutations and their log entries commit atomically.
//
// Concurrency:
//   - Exactly one writer proceeds at a time, enforced by mu. Writers enter
//     through Begin.
//   - Get, FindNext, FindLast and Stats never take mu; they read committed
//     engine state and the atomic seq counters.
//   - The trimmer takes mu per delete chunk, never for the whole sweep.
type Queue struct {
	db     *leveldb.DB
	logger *zap.Logger

	mu    sync.Mutex
	batch leveldb.Batch

	// tranSeq is the seq assigned to the first record of the currently open
	// transaction, or 0 when none is open. Guarded by mu.
	tranSeq uint64

	// minSeq and lastSeq bound the retained record interval. They are
	// atomics so that readers and the trimmer can snapshot them without the
	// writer mutex.
	minSeq  atomic.Uint64
	lastSeq atomic.Uint64

	capacity uint64
	enabled  bool
}

// NewQueue constructs the queue over an open engine handle and recovers the
// retained seq interval from the 'B' keyspace: lastSeq is the highest
// binlog key present, minSeq the lowest. An empty keyspace leaves both at
// zero and the first assigned seq is 1.
//
// The trimmer does not start here; the owning store drives it through Run
// so teardown joins deterministically.
func NewQueue(db *leveldb.DB, logger *zap.Logger, enabled bool, capacity uint64) (*Queue, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if capacity == 0 {
		capacity = DefaultCapacity
	}
	q := &Queue{
		db:       db,
		logger:   logger,
		capacity: capacity,
		enabled:  enabled,
	}
	if err := q.loadSeqBounds(); err != nil {
		return nil, err
	}
	logger.Info("binlog queue opened",
		zap.Bool("enabled", enabled),
		zap.Uint64("capacity", capacity),
		zap.Uint64("min_seq", q.minSeq.Load()),
		zap.Uint64("last_seq", q.lastSeq.Load()),
	)
	return q, nil
}

func (q *Queue) loadSeqBounds() error {
	it := q.db.NewIterator(util.BytesPrefix([]byte{codec.TagBinlog}), nil)
	defer it.Release()

	if it.First() {
		seq, err := codec.DecodeBinlogKey(it.Key())
		if err != nil {
			return fmt.Errorf("binlog: recovering min seq: %w", err)
		}
		q.minSeq.Store(seq)
	}
	if it.Last() {
		seq, err := codec.DecodeBinlogKey(it.Key())
		if err != nil {
			return fmt.Errorf("binlog: recovering last seq: %w", err)
		}
		q.lastSeq.Store(seq)
	}
	return it.Error()
}

// MinSeq returns the lowest seq still retained.
func (q *Queue) MinSeq() uint64 { return q.minSeq.Load() }

// LastSeq returns the highest seq assigned so far. While a transaction is
// open this includes the seqs it has staged; they are given back if the
// transaction does not commit.
func (q *Queue) LastSeq() uint64 { return q.lastSeq.Load() }

// begin resets the pending batch for a new transaction. Callers hold mu.
func (q *Queue) begin() {
	q.tranSeq = 0
	q.batch.Reset()
}

// rollback discards the pending batch and returns the seq counter to its
// pre-transaction value. Safe to call after a successful commit because
// commit clears tranSeq. Callers hold mu.
func (q *Queue) rollback() {
	if q.tranSeq != 0 {
		q.lastSeq.Store(q.tranSeq - 1)
		q.tranSeq = 0
	}
	q.batch.Reset()
}

// commit writes the staged batch atomically. On engine failure the seq
// counter rolls back so the next writer reuses the same seq space, and the
// failure is reported upward. Callers hold mu.
func (q *Queue) commit() error {
	if err := q.db.Write(&q.batch, nil); err != nil {
		if q.tranSeq != 0 {
			q.lastSeq.Store(q.tranSeq - 1)
			q.tranSeq = 0
		}
		q.batch.Reset()
		return fmt.Errorf("binlog: commit: %w", err)
	}
	// The first record ever committed establishes the retained interval's
	// lower bound; from then on only the trimmer and flush move it.
	if q.tranSeq != 0 {
		q.minSeq.CompareAndSwap(0, q.tranSeq)
	}
	q.tranSeq = 0
	q.batch.Reset()
	return nil
}

// put stages a user put into the pending batch. It does not touch the
// engine. Callers hold mu.
func (q *Queue) put(key, value []byte) {
	q.batch.Put(key, value)
}

// delete stages a user delete into the pending batch. Callers hold mu.
func (q *Queue) delete(key []byte) {
	q.batch.Delete(key)
}

// addLog allocates the next seq and stages the record alongside the user
// mutation it describes. With the queue disabled this is a no-op: writes
// still batch, nothing is logged. Callers hold mu.
func (q *Queue) addLog(t Type, c Cmd, key []byte) {
	if !q.enabled {
		return
	}
	seq := q.lastSeq.Load() + 1
	if q.tranSeq == 0 {
		q.tranSeq = seq
	}
	q.lastSeq.Store(seq)
	if q.tranSeq > seq {
		panic(fmt.Sprintf("binlog: tran_seq %d ahead of last_seq %d", q.tranSeq, seq))
	}
	rec := NewRecord(seq, t, c, key)
	q.batch.Put(codec.EncodeBinlogKey(seq), rec.Bytes())
}

// Get reads the record at exactly seq. A missing record is ErrNotFound;
// anything else is an engine failure.
func (q *Queue) Get(seq uint64) (Record, error) {
	v, err := q.db.Get(codec.EncodeBinlogKey(seq), nil)
	if errors.Is(err, leveldb.ErrNotFound) {
		return Record{}, ErrNotFound
	}
	if err != nil {
		return Record{}, fmt.Errorf("binlog: get %d: %w", seq, err)
	}
	return ParseRecord(v)
}

// FindNext returns the record with the smallest seq greater than or equal
// to seq, which is the replicator's tail entrypoint: repeatedly calling
// FindNext(last+1) surfaces every committed record in strictly increasing
// seq order.
func (q *Queue) FindNext(seq uint64) (Record, error) {
	rng := util.BytesPrefix([]byte{codec.TagBinlog})
	rng.Start = codec.EncodeBinlogKey(seq)
	it := q.db.NewIterator(rng, nil)
	defer it.Release()

	if !it.First() {
		if err := it.Error(); err != nil {
			return Record{}, fmt.Errorf("binlog: find next %d: %w", seq, err)
		}
		return Record{}, ErrNotFound
	}
	// The iterator's buffers die with Release.
	return ParseRecord(append([]byte(nil), it.Value()...))
}

// FindLast returns the most recently committed record, used by the
// replication handshake.
func (q *Queue) FindLast() (Record, error) {
	it := q.db.NewIterator(util.BytesPrefix([]byte{codec.TagBinlog}), nil)
	defer it.Release()

	if !it.Last() {
		if err := it.Error(); err != nil {
			return Record{}, fmt.Errorf("binlog: find last: %w", err)
		}
		return Record{}, ErrNotFound
	}
	return ParseRecord(append([]byte(nil), it.Value()...))
}

// Update rewrites the record at seq in place, bypassing the transaction
// discipline. Maintenance tooling only.
func (q *Queue) Update(seq uint64, t Type, c Cmd, key []byte) error {
	rec := NewRecord(seq, t, c, key)
	if err := q.db.Put(codec.EncodeBinlogKey(seq), rec.Bytes(), nil); err != nil {
		return fmt.Errorf("binlog: update %d: %w", seq, err)
	}
	return nil
}

// Len returns the number of records currently retained.
func (q *Queue) Len() uint64 {
	minSeq, lastSeq := q.minSeq.Load(), q.lastSeq.Load()
	if minSeq == 0 || minSeq > lastSeq {
		return 0
	}
	return lastSeq - minSeq + 1
}

// Stats returns a human-readable summary of the queue for diagnostics.
func (q *Queue) Stats() string {
	minSeq, lastSeq := q.minSeq.Load(), q.lastSeq.Load()
	return fmt.Sprintf("capacity: %d\nmin_seq: %d\nlast_seq: %d\nlen: %d",
		q.capacity, minSeq, lastSeq, q.Len())
}

// Run drives the trimmer until ctx is cancelled. Each tick snapshots the
// retained interval, and when it exceeds capacity deletes the oldest excess
// records in bounded chunks, taking the writer mutex per chunk only.
// Engine failures are logged and backed off; they never crash the process
// and never surface to writers.
//
// The owning store runs exactly one Run goroutine and joins it on close.
func (q *Queue) Run(ctx context.Context) error {
	ticker := time.NewTicker(trimTick)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
		if err := q.trimOnce(); err != nil {
			q.logger.Warn("binlog trim failed, backing off", zap.Error(err))
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(trimBackoff):
			}
		}
	}
}

func (q *Queue) trimOnce() error {
	minSeq, lastSeq := q.minSeq.Load(), q.lastSeq.Load()
	if minSeq == 0 || minSeq > lastSeq {
		return nil
	}
	total := lastSeq - minSeq + 1
	if total <= q.capacity {
		return nil
	}
	excess := total - q.capacity
	q.logger.Debug("trimming binlog",
		zap.Uint64("min_seq", minSeq),
		zap.Uint64("last_seq", lastSeq),
		zap.Uint64("excess", excess),
	)
	return q.delRange(minSeq, minSeq+excess-1)
}

// delRange deletes records in the inclusive seq interval [start, end] in
// chunks of at most trimChunk, advancing minSeq after each chunk lands.
// The writer mutex is held per chunk and released between chunks.
func (q *Queue) delRange(start, end uint64) error {
	for start <= end {
		chunkEnd := start + trimChunk - 1
		if chunkEnd > end {
			chunkEnd = end
		}
		if err := q.delChunk(start, chunkEnd); err != nil {
			return err
		}
		start = chunkEnd + 1
	}
	return nil
}

func (q *Queue) delChunk(start, end uint64) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	batch := new(leveldb.Batch)
	for seq := start; seq <= end; seq++ {
		batch.Delete(codec.EncodeBinlogKey(seq))
	}
	if err := q.db.Write(batch, nil); err != nil {
		return fmt.Errorf("binlog: deleting seqs [%d, %d]: %w", start, end, err)
	}
	// minSeq only moves forward: a concurrent flush may already have
	// advanced it past this chunk.
	if cur := q.minSeq.Load(); end+1 > cur {
		q.minSeq.Store(end + 1)
	}
	return nil
}

// flushLocked deletes every retained record. Callers hold mu, which in
// practice means the call happens inside an open Transaction; see
// Transaction.FlushLogs.
func (q *Queue) flushLocked() error {
	minSeq, lastSeq := q.minSeq.Load(), q.lastSeq.Load()
	if minSeq == 0 || minSeq > lastSeq {
		return nil
	}
	for start := minSeq; start <= lastSeq; {
		end := start + trimChunk - 1
		if end > lastSeq {
			end = lastSeq
		}
		batch := new(leveldb.Batch)
		for seq := start; seq <= end; seq++ {
			batch.Delete(codec.EncodeBinlogKey(seq))
		}
		if err := q.db.Write(batch, nil); err != nil {
			return fmt.Errorf("binlog: flush: %w", err)
		}
		q.minSeq.Store(end + 1)
		start = end + 1
	}
	return nil
}
