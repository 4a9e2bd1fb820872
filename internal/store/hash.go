package store

import (
	"errors"
	"fmt"

	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/util"

	"github.com/dreamware/keva/internal/binlog"
	"github.com/dreamware/keva/internal/codec"
)

// hashClearChunk bounds how many fields one HClear transaction removes, so
// clearing a large hash never holds the writer lock for unbounded work.
const hashClearChunk = 1000

func sizeValue(n uint64) []byte {
	return codec.PutU64BE(make([]byte, 0, 8), n)
}

func (s *Store) sizeGet(key []byte) (uint64, error) {
	v, err := s.db.Get(key, nil)
	if errors.Is(err, leveldb.ErrNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("store: size key: %w", err)
	}
	n, err := codec.GetU64BE(v)
	if err != nil {
		return 0, fmt.Errorf("store: corrupt size value: %w", err)
	}
	return n, nil
}

// HSet stores one field of the hash called name and reconciles the hash's
// cardinality in the same transaction. It returns 1 when the field was
// created, 0 when an existing field was overwritten.
func (s *Store) HSet(name, field, value []byte) (int, error) {
	if len(name) == 0 {
		return 0, ErrEmptyName
	}
	ek, err := codec.EncodeHashKey(name, field)
	if err != nil {
		return 0, err
	}

	tx := binlog.Begin(s.binlogs)
	defer tx.Close()

	exists, err := s.hasKey(ek)
	if err != nil {
		return 0, err
	}
	tx.Put(ek, value)
	tx.AddLog(binlog.TypeSync, binlog.CmdHSet, ek)
	created := 0
	if !exists {
		size, err := s.sizeGet(codec.EncodeHSizeKey(name))
		if err != nil {
			return 0, err
		}
		tx.Put(codec.EncodeHSizeKey(name), sizeValue(size+1))
		created = 1
	}
	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return created, nil
}

// HGet reads one field of the hash called name. Absent fields are
// ErrNotFound.
func (s *Store) HGet(name, field []byte) ([]byte, error) {
	ek, err := codec.EncodeHashKey(name, field)
	if err != nil {
		return nil, err
	}
	v, err := s.db.Get(ek, nil)
	if errors.Is(err, leveldb.ErrNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("store: hget: %w", err)
	}
	return v, nil
}

// HDel removes one field of the hash called name, reconciling the
// cardinality and deleting the size entry when the hash becomes empty. It
// returns 1 when a field was removed, 0 when it was already absent (in
// which case nothing is written and no binlog entry is produced).
func (s *Store) HDel(name, field []byte) (int, error) {
	if len(name) == 0 {
		return 0, ErrEmptyName
	}
	ek, err := codec.EncodeHashKey(name, field)
	if err != nil {
		return 0, err
	}

	tx := binlog.Begin(s.binlogs)
	defer tx.Close()

	exists, err := s.hasKey(ek)
	if err != nil {
		return 0, err
	}
	if !exists {
		return 0, nil
	}
	tx.Delete(ek)
	tx.AddLog(binlog.TypeSync, binlog.CmdHDel, ek)

	size, err := s.sizeGet(codec.EncodeHSizeKey(name))
	if err != nil {
		return 0, err
	}
	if size <= 1 {
		tx.Delete(codec.EncodeHSizeKey(name))
	} else {
		tx.Put(codec.EncodeHSizeKey(name), sizeValue(size-1))
	}
	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return 1, nil
}

// HSize returns the number of fields in the hash called name; zero for a
// hash that does not exist.
func (s *Store) HSize(name []byte) (uint64, error) {
	return s.sizeGet(codec.EncodeHSizeKey(name))
}

// HScan walks the fields of the hash called name in field order, returning
// at most limit entries with Entry.Key holding the field.
func (s *Store) HScan(name []byte, limit uint64) ([]Entry, error) {
	prefix, err := codec.HashPrefix(name)
	if err != nil {
		return nil, err
	}
	it := s.db.NewIterator(util.BytesPrefix(prefix), readNoCache)
	defer it.Release()

	var out []Entry
	for uint64(len(out)) < limit && it.Next() {
		_, field, err := codec.DecodeHashKey(it.Key())
		if err != nil {
			return nil, err
		}
		out = append(out, Entry{
			Key:   append([]byte(nil), field...),
			Value: append([]byte(nil), it.Value()...),
		})
	}
	if err := it.Error(); err != nil {
		return nil, fmt.Errorf("store: hscan: %w", err)
	}
	return out, nil
}

// HList returns the names of hashes in (start, end) order, start exclusive,
// end exclusive, empty end unbounded.
func (s *Store) HList(start, end []byte, limit uint64) ([][]byte, error) {
	var bound []byte
	if len(end) > 0 {
		bound = codec.EncodeHSizeKey(end)
	} else {
		bound = []byte{codec.TagHSize + 1}
	}
	it := s.Iterator(codec.EncodeHSizeKey(start), bound, limit)
	defer it.Release()

	var out [][]byte
	for it.Next() {
		name, err := codec.DecodeHSizeKey(it.Key())
		if err != nil {
			break
		}
		out = append(out, append([]byte(nil), name...))
	}
	return out, nil
}

// HClear removes every field of the hash called name along with its size
// entry, emitting one binlog HDEL per field. Large hashes are cleared in
// bounded chunks, one transaction each, so writers interleave. Returns the
// number of fields removed.
func (s *Store) HClear(name []byte) (uint64, error) {
	if len(name) == 0 {
		return 0, ErrEmptyName
	}
	prefix, err := codec.HashPrefix(name)
	if err != nil {
		return 0, err
	}

	var removed uint64
	for {
		fields, err := s.hashChunk(prefix)
		if err != nil {
			return removed, err
		}
		if len(fields) == 0 {
			return removed, nil
		}

		tx := binlog.Begin(s.binlogs)
		size, err := s.sizeGet(codec.EncodeHSizeKey(name))
		if err != nil {
			tx.Close()
			return removed, err
		}
		for _, fk := range fields {
			tx.Delete(fk)
			tx.AddLog(binlog.TypeSync, binlog.CmdHDel, fk)
		}
		if size <= uint64(len(fields)) {
			tx.Delete(codec.EncodeHSizeKey(name))
		} else {
			tx.Put(codec.EncodeHSizeKey(name), sizeValue(size-uint64(len(fields))))
		}
		err = tx.Commit()
		tx.Close()
		if err != nil {
			return removed, err
		}
		removed += uint64(len(fields))
		if len(fields) < hashClearChunk {
			return removed, nil
		}
	}
}

func (s *Store) hashChunk(prefix []byte) ([][]byte, error) {
	it := s.db.NewIterator(util.BytesPrefix(prefix), readNoCache)
	defer it.Release()

	var keys [][]byte
	for len(keys) < hashClearChunk && it.Next() {
		keys = append(keys, append([]byte(nil), it.Key()...))
	}
	if err := it.Error(); err != nil {
		return nil, fmt.Errorf("store: hash scan: %w", err)
	}
	return keys, nil
}

func (s *Store) hasKey(key []byte) (bool, error) {
	_, err := s.db.Get(key, nil)
	if errors.Is(err, leveldb.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("store: exists: %w", err)
	}
	return true, nil
}
