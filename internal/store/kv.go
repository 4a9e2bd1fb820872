package store

import (
	"errors"
	"fmt"

	"github.com/syndtr/goleveldb/leveldb"

	"github.com/dreamware/keva/internal/binlog"
	"github.com/dreamware/keva/internal/codec"
)

// Entry is one key/value pair returned by scans. For hash scans Key holds
// the field name.
type Entry struct {
	Key   []byte
	Value []byte
}

// Set stores a plain key-value pair and records the mutation in the binlog,
// both in one atomic batch.
func (s *Store) Set(key, value []byte) error {
	if len(key) == 0 {
		return ErrEmptyName
	}
	tx := binlog.Begin(s.binlogs)
	defer tx.Close()

	ek := codec.EncodeKVKey(key)
	tx.Put(ek, value)
	tx.AddLog(binlog.TypeSync, binlog.CmdSet, ek)
	return tx.Commit()
}

// Get reads a plain key. Absent keys are ErrNotFound.
func (s *Store) Get(key []byte) ([]byte, error) {
	v, err := s.db.Get(codec.EncodeKVKey(key), nil)
	if errors.Is(err, leveldb.ErrNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("store: get: %w", err)
	}
	return v, nil
}

// Del removes a plain key and records the mutation in the binlog. Deleting
// an absent key still commits, so followers converge.
func (s *Store) Del(key []byte) error {
	if len(key) == 0 {
		return ErrEmptyName
	}
	tx := binlog.Begin(s.binlogs)
	defer tx.Close()

	ek := codec.EncodeKVKey(key)
	tx.Delete(ek)
	tx.AddLog(binlog.TypeSync, binlog.CmdDel, ek)
	return tx.Commit()
}

// MultiSet stores several pairs in one transaction: one commit, one binlog
// record per key, all-or-nothing.
func (s *Store) MultiSet(pairs []Entry) error {
	for _, p := range pairs {
		if len(p.Key) == 0 {
			return ErrEmptyName
		}
	}
	tx := binlog.Begin(s.binlogs)
	defer tx.Close()

	for _, p := range pairs {
		ek := codec.EncodeKVKey(p.Key)
		tx.Put(ek, p.Value)
		tx.AddLog(binlog.TypeSync, binlog.CmdSet, ek)
	}
	return tx.Commit()
}

// MultiDel removes several keys in one transaction.
func (s *Store) MultiDel(keys [][]byte) error {
	for _, k := range keys {
		if len(k) == 0 {
			return ErrEmptyName
		}
	}
	tx := binlog.Begin(s.binlogs)
	defer tx.Close()

	for _, k := range keys {
		ek := codec.EncodeKVKey(k)
		tx.Delete(ek)
		tx.AddLog(binlog.TypeSync, binlog.CmdDel, ek)
	}
	return tx.Commit()
}

// Scan walks plain keys in (start, end) order, start exclusive, end
// exclusive, empty end unbounded. At most limit entries are returned.
func (s *Store) Scan(start, end []byte, limit uint64) ([]Entry, error) {
	it := s.Iterator(codec.EncodeKVKey(start), kvScanBound(end), limit)
	defer it.Release()
	return collectKV(it)
}

// RScan walks plain keys in reverse, start exclusive, end exclusive, empty
// end unbounded.
func (s *Store) RScan(start, end []byte, limit uint64) ([]Entry, error) {
	from := codec.EncodeKVKey(start)
	if len(start) == 0 {
		from = codec.EncodeKVKey([]byte("\xff"))
	}
	var bound []byte
	if len(end) > 0 {
		bound = codec.EncodeKVKey(end)
	} else {
		bound = []byte{codec.TagKV - 1}
	}
	it := s.RevIterator(from, bound, limit)
	defer it.Release()
	return collectKV(it)
}

func kvScanBound(end []byte) []byte {
	if len(end) > 0 {
		return codec.EncodeKVKey(end)
	}
	return []byte{codec.TagKV + 1}
}

func collectKV(it *Iterator) ([]Entry, error) {
	var out []Entry
	for it.Next() {
		key, err := codec.DecodeKVKey(it.Key())
		if err != nil {
			// Ran off the KV range.
			break
		}
		out = append(out, Entry{
			Key:   append([]byte(nil), key...),
			Value: append([]byte(nil), it.Value()...),
		})
	}
	return out, nil
}
