package store

import (
	"errors"
	"fmt"
	"math"

	"github.com/syndtr/goleveldb/leveldb/util"

	"github.com/dreamware/keva/internal/binlog"
	"github.com/dreamware/keva/internal/codec"
)

// qseqInit is where the first item of a fresh queue lands: the midpoint of
// the seq space, so the interval can grow in both directions for a very
// long time before hitting an edge.
const qseqInit = uint64(1) << 63

// ErrQueueRange is returned when a push would step past the edge of the
// item seq space.
var ErrQueueRange = errors.New("store: queue seq space exhausted")

// qEdge reads the item at one end of the queue called name. back selects
// the highest seq, otherwise the lowest.
func (s *Store) qEdge(name []byte, back bool) (seq uint64, value []byte, found bool, err error) {
	prefix, err := codec.QueuePrefix(name)
	if err != nil {
		return 0, nil, false, err
	}
	it := s.db.NewIterator(util.BytesPrefix(prefix), readNoCache)
	defer it.Release()

	var ok bool
	if back {
		ok = it.Last()
	} else {
		ok = it.First()
	}
	if !ok {
		if err := it.Error(); err != nil {
			return 0, nil, false, fmt.Errorf("store: queue edge: %w", err)
		}
		return 0, nil, false, nil
	}
	_, seq, err = codec.DecodeQueueKey(it.Key())
	if err != nil {
		return 0, nil, false, err
	}
	return seq, append([]byte(nil), it.Value()...), true, nil
}

func (s *Store) qpush(name, value []byte, back bool) (uint64, error) {
	if len(name) == 0 {
		return 0, ErrEmptyName
	}
	tx := binlog.Begin(s.binlogs)
	defer tx.Close()

	size, err := s.sizeGet(codec.EncodeQSizeKey(name))
	if err != nil {
		return 0, err
	}
	seq := qseqInit
	if size > 0 {
		edge, _, found, err := s.qEdge(name, back)
		if err != nil {
			return 0, err
		}
		if !found {
			return 0, fmt.Errorf("store: queue %q: size %d but no items", name, size)
		}
		if back {
			if edge == math.MaxUint64 {
				return 0, ErrQueueRange
			}
			seq = edge + 1
		} else {
			if edge == 0 {
				return 0, ErrQueueRange
			}
			seq = edge - 1
		}
	}

	qk, err := codec.EncodeQueueKey(name, seq)
	if err != nil {
		return 0, err
	}
	tx.Put(qk, value)
	cmd := binlog.CmdQPushBack
	if !back {
		cmd = binlog.CmdQPushFront
	}
	tx.AddLog(binlog.TypeSync, cmd, qk)
	tx.Put(codec.EncodeQSizeKey(name), sizeValue(size+1))

	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return size + 1, nil
}

func (s *Store) qpop(name []byte, back bool) ([]byte, error) {
	if len(name) == 0 {
		return nil, ErrEmptyName
	}
	tx := binlog.Begin(s.binlogs)
	defer tx.Close()

	size, err := s.sizeGet(codec.EncodeQSizeKey(name))
	if err != nil {
		return nil, err
	}
	if size == 0 {
		return nil, ErrNotFound
	}
	seq, value, found, err := s.qEdge(name, back)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, fmt.Errorf("store: queue %q: size %d but no items", name, size)
	}

	qk, err := codec.EncodeQueueKey(name, seq)
	if err != nil {
		return nil, err
	}
	tx.Delete(qk)
	cmd := binlog.CmdQPopBack
	if !back {
		cmd = binlog.CmdQPopFront
	}
	tx.AddLog(binlog.TypeSync, cmd, qk)
	if size <= 1 {
		tx.Delete(codec.EncodeQSizeKey(name))
	} else {
		tx.Put(codec.EncodeQSizeKey(name), sizeValue(size-1))
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return value, nil
}

// QPushBack appends value to the back of the queue called name and returns
// the queue's new length.
func (s *Store) QPushBack(name, value []byte) (uint64, error) {
	return s.qpush(name, value, true)
}

// QPushFront prepends value to the front of the queue called name and
// returns the queue's new length.
func (s *Store) QPushFront(name, value []byte) (uint64, error) {
	return s.qpush(name, value, false)
}

// QPopBack removes and returns the back item. An empty queue is
// ErrNotFound.
func (s *Store) QPopBack(name []byte) ([]byte, error) {
	return s.qpop(name, true)
}

// QPopFront removes and returns the front item. An empty queue is
// ErrNotFound.
func (s *Store) QPopFront(name []byte) ([]byte, error) {
	return s.qpop(name, false)
}

// QFront returns the front item without removing it. An empty queue is
// ErrNotFound.
func (s *Store) QFront(name []byte) ([]byte, error) {
	_, v, found, err := s.qEdge(name, false)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, ErrNotFound
	}
	return v, nil
}

// QBack returns the back item without removing it. An empty queue is
// ErrNotFound.
func (s *Store) QBack(name []byte) ([]byte, error) {
	_, v, found, err := s.qEdge(name, true)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, ErrNotFound
	}
	return v, nil
}

// QSize returns the number of items in the queue called name; zero for a
// queue that does not exist.
func (s *Store) QSize(name []byte) (uint64, error) {
	return s.sizeGet(codec.EncodeQSizeKey(name))
}

// qseqAt resolves an index to an item seq: 0 is the front, -1 the back,
// following the usual list addressing. The boolean is false when the index
// falls outside the queue.
func (s *Store) qseqAt(name []byte, index int64) (uint64, bool, error) {
	size, err := s.sizeGet(codec.EncodeQSizeKey(name))
	if err != nil {
		return 0, false, err
	}
	if size == 0 {
		return 0, false, nil
	}
	if index < 0 {
		index += int64(size)
	}
	if index < 0 || uint64(index) >= size {
		return 0, false, nil
	}
	front, _, found, err := s.qEdge(name, false)
	if err != nil {
		return 0, false, err
	}
	if !found {
		return 0, false, fmt.Errorf("store: queue %q: size %d but no items", name, size)
	}
	return front + uint64(index), true, nil
}

// QGet returns the item at index: 0 is the front, negative counts from the
// back. Out-of-range indexes are ErrNotFound.
func (s *Store) QGet(name []byte, index int64) ([]byte, error) {
	seq, ok, err := s.qseqAt(name, index)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrNotFound
	}
	qk, err := codec.EncodeQueueKey(name, seq)
	if err != nil {
		return nil, err
	}
	v, err := s.RawGet(qk)
	if err != nil {
		return nil, err
	}
	return v, nil
}

// QSet overwrites the item at index, addressing as in QGet, and records the
// mutation in the binlog. Out-of-range indexes are ErrNotFound.
func (s *Store) QSet(name []byte, index int64, value []byte) error {
	if len(name) == 0 {
		return ErrEmptyName
	}
	tx := binlog.Begin(s.binlogs)
	defer tx.Close()

	seq, ok, err := s.qseqAt(name, index)
	if err != nil {
		return err
	}
	if !ok {
		return ErrNotFound
	}
	qk, err := codec.EncodeQueueKey(name, seq)
	if err != nil {
		return err
	}
	tx.Put(qk, value)
	tx.AddLog(binlog.TypeSync, binlog.CmdQSet, qk)
	return tx.Commit()
}

// QList returns the names of queues in (start, end) order, start exclusive,
// end exclusive, empty end unbounded.
func (s *Store) QList(start, end []byte, limit uint64) ([][]byte, error) {
	var bound []byte
	if len(end) > 0 {
		bound = codec.EncodeQSizeKey(end)
	} else {
		bound = []byte{codec.TagQSize + 1}
	}
	it := s.Iterator(codec.EncodeQSizeKey(start), bound, limit)
	defer it.Release()

	var out [][]byte
	for it.Next() {
		name, err := codec.DecodeQSizeKey(it.Key())
		if err != nil {
			break
		}
		out = append(out, append([]byte(nil), name...))
	}
	return out, nil
}
