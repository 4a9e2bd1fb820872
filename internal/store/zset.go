package store

import (
	"errors"
	"fmt"

	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/util"

	"github.com/dreamware/keva/internal/binlog"
	"github.com/dreamware/keva/internal/codec"
)

// ZEntry is one sorted-set member with its score.
type ZEntry struct {
	Member []byte
	Score  int64
}

func scoreValue(score int64) []byte {
	return codec.PutU64BE(make([]byte, 0, 8), codec.SortableScore(score))
}

// zscoreGet reads a member's score from the by-name index.
func (s *Store) zscoreGet(name, member []byte) (int64, bool, error) {
	zk, err := codec.EncodeZSetKey(name, member)
	if err != nil {
		return 0, false, err
	}
	v, err := s.db.Get(zk, nil)
	if errors.Is(err, leveldb.ErrNotFound) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("store: zscore: %w", err)
	}
	u, err := codec.GetU64BE(v)
	if err != nil {
		return 0, false, fmt.Errorf("store: corrupt score value: %w", err)
	}
	return codec.ScoreValue(u), true, nil
}

// ZSet stores member with score in the sorted set called name, maintaining
// both the by-name entry and the score index in one transaction. A score
// update deletes the member's previous score-index entry first, so each
// member appears in the index exactly once. Returns 1 when the member was
// added, 0 when an existing member's score was updated or unchanged.
func (s *Store) ZSet(name, member []byte, score int64) (int, error) {
	if len(name) == 0 {
		return 0, ErrEmptyName
	}
	zk, err := codec.EncodeZSetKey(name, member)
	if err != nil {
		return 0, err
	}
	sk, err := codec.EncodeZScoreKey(name, score, member)
	if err != nil {
		return 0, err
	}

	tx := binlog.Begin(s.binlogs)
	defer tx.Close()

	oldScore, exists, err := s.zscoreGet(name, member)
	if err != nil {
		return 0, err
	}
	if exists && oldScore == score {
		return 0, nil
	}
	if exists {
		oldSK, err := codec.EncodeZScoreKey(name, oldScore, member)
		if err != nil {
			return 0, err
		}
		tx.Delete(oldSK)
	}
	tx.Put(zk, scoreValue(score))
	tx.Put(sk, nil)
	tx.AddLog(binlog.TypeSync, binlog.CmdZSet, zk)

	added := 0
	if !exists {
		size, err := s.sizeGet(codec.EncodeZSizeKey(name))
		if err != nil {
			return 0, err
		}
		tx.Put(codec.EncodeZSizeKey(name), sizeValue(size+1))
		added = 1
	}
	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return added, nil
}

// ZGet returns member's score in the sorted set called name. Absent
// members are ErrNotFound.
func (s *Store) ZGet(name, member []byte) (int64, error) {
	score, exists, err := s.zscoreGet(name, member)
	if err != nil {
		return 0, err
	}
	if !exists {
		return 0, ErrNotFound
	}
	return score, nil
}

// ZDel removes member from the sorted set called name, deleting both index
// entries and reconciling the cardinality. Returns 1 when a member was
// removed, 0 when it was already absent.
func (s *Store) ZDel(name, member []byte) (int, error) {
	if len(name) == 0 {
		return 0, ErrEmptyName
	}
	zk, err := codec.EncodeZSetKey(name, member)
	if err != nil {
		return 0, err
	}

	tx := binlog.Begin(s.binlogs)
	defer tx.Close()

	oldScore, exists, err := s.zscoreGet(name, member)
	if err != nil {
		return 0, err
	}
	if !exists {
		return 0, nil
	}
	oldSK, err := codec.EncodeZScoreKey(name, oldScore, member)
	if err != nil {
		return 0, err
	}
	tx.Delete(zk)
	tx.Delete(oldSK)
	tx.AddLog(binlog.TypeSync, binlog.CmdZDel, zk)

	size, err := s.sizeGet(codec.EncodeZSizeKey(name))
	if err != nil {
		return 0, err
	}
	if size <= 1 {
		tx.Delete(codec.EncodeZSizeKey(name))
	} else {
		tx.Put(codec.EncodeZSizeKey(name), sizeValue(size-1))
	}
	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return 1, nil
}

// ZSize returns the number of members in the sorted set called name; zero
// for a set that does not exist.
func (s *Store) ZSize(name []byte) (uint64, error) {
	return s.sizeGet(codec.EncodeZSizeKey(name))
}

// ZRangeByScore walks the score index of the sorted set called name and
// returns members whose score lies in [min, max], in ascending score order
// with ties broken by member bytes, at most limit entries.
func (s *Store) ZRangeByScore(name []byte, min, max int64, limit uint64) ([]ZEntry, error) {
	if min > max {
		return nil, nil
	}
	prefix, err := codec.ZScorePrefix(name)
	if err != nil {
		return nil, err
	}
	start, err := codec.EncodeZScoreKey(name, min, nil)
	if err != nil {
		return nil, err
	}
	rng := util.BytesPrefix(prefix)
	rng.Start = start

	it := s.db.NewIterator(rng, readNoCache)
	defer it.Release()

	var out []ZEntry
	for uint64(len(out)) < limit && it.Next() {
		_, score, member, err := codec.DecodeZScoreKey(it.Key())
		if err != nil {
			return nil, err
		}
		if score > max {
			break
		}
		out = append(out, ZEntry{
			Member: append([]byte(nil), member...),
			Score:  score,
		})
	}
	if err := it.Error(); err != nil {
		return nil, fmt.Errorf("store: zrange: %w", err)
	}
	return out, nil
}

// ZScan walks the by-name index of the sorted set called name in member
// order, returning at most limit entries.
func (s *Store) ZScan(name []byte, limit uint64) ([]ZEntry, error) {
	prefix, err := codec.ZSetPrefix(name)
	if err != nil {
		return nil, err
	}
	it := s.db.NewIterator(util.BytesPrefix(prefix), readNoCache)
	defer it.Release()

	var out []ZEntry
	for uint64(len(out)) < limit && it.Next() {
		_, member, err := codec.DecodeZSetKey(it.Key())
		if err != nil {
			return nil, err
		}
		u, err := codec.GetU64BE(it.Value())
		if err != nil {
			return nil, fmt.Errorf("store: corrupt score value: %w", err)
		}
		out = append(out, ZEntry{
			Member: append([]byte(nil), member...),
			Score:  codec.ScoreValue(u),
		})
	}
	if err := it.Error(); err != nil {
		return nil, fmt.Errorf("store: zscan: %w", err)
	}
	return out, nil
}
