package store

import (
	"bytes"

	"github.com/syndtr/goleveldb/leveldb/iterator"
)

// Iterator walks a bounded slice of the engine keyspace. Forward iterators
// start strictly after their start key (an exact match is skipped) and stop
// before the first key that equals or crosses end; reverse iterators mirror
// that, starting strictly below start. A limit caps the number of entries
// either way.
//
// An Iterator owns an independent engine iterator handle: it observes a
// stable view of committed state, never sees another writer's staged batch,
// and must not be shared across goroutines. Always Release it.
//
// Usage:
//
//	it := store.Iterator(start, end, 100)
//	defer it.Release()
//	for it.Next() {
//	    process(it.Key(), it.Value())
//	}
type Iterator struct {
	it      iterator.Iterator
	end     []byte
	key     []byte
	value   []byte
	limit   uint64
	desc    bool
	started bool
}

// Iterator returns a forward iterator positioned after start. An empty end
// leaves the upper bound open; limit caps the walk.
func (s *Store) Iterator(start, end []byte, limit uint64) *Iterator {
	it := s.db.NewIterator(nil, readNoCache)
	if it.Seek(start) && bytes.Equal(it.Key(), start) {
		it.Next()
	}
	return &Iterator{it: it, end: append([]byte(nil), end...), limit: limit}
}

// RevIterator returns a reverse iterator positioned on the largest key
// strictly below start. A start past the end of the keyspace seeks to the
// last key; an empty end leaves the lower bound open.
func (s *Store) RevIterator(start, end []byte, limit uint64) *Iterator {
	it := s.db.NewIterator(nil, readNoCache)
	if it.Seek(start) {
		it.Prev()
	} else {
		it.Last()
	}
	return &Iterator{it: it, end: append([]byte(nil), end...), limit: limit, desc: true}
}

// Next advances to the next entry, returning false once the bound, the
// limit, or the end of the keyspace is reached. After false the iterator
// stays exhausted.
func (i *Iterator) Next() bool {
	if i.limit == 0 {
		return false
	}
	if i.started {
		if i.desc {
			i.it.Prev()
		} else {
			i.it.Next()
		}
	}
	i.started = true

	if !i.it.Valid() {
		i.limit = 0
		return false
	}
	k := i.it.Key()
	if len(i.end) > 0 {
		if !i.desc && bytes.Compare(k, i.end) >= 0 {
			i.limit = 0
			return false
		}
		if i.desc && bytes.Compare(k, i.end) <= 0 {
			i.limit = 0
			return false
		}
	}

	// The engine's buffers are only valid until the next move; keep copies.
	i.key = append(i.key[:0], k...)
	i.value = append(i.value[:0], i.it.Value()...)
	i.limit--
	return true
}

// Key returns the current entry's key. Valid until the next call to Next.
func (i *Iterator) Key() []byte {
	return i.key
}

// Value returns the current entry's value. Valid until the next call to
// Next.
func (i *Iterator) Value() []byte {
	return i.value
}

// Release frees the underlying engine iterator. Safe to call more than
// once.
func (i *Iterator) Release() {
	i.it.Release()
}
