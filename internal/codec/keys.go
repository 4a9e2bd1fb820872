package codec

import (
	"errors"
	"fmt"
)

// Data-type tags. The first byte of every key stored in the engine is one of
// these; the set and ordering are part of the on-disk contract and must not
// change between releases.
const (
	TagKV     byte = 'k' // plain key-value entry
	TagHSize  byte = 'H' // hash cardinality
	TagHash   byte = 'h' // hash field entry
	TagZSize  byte = 'Z' // sorted-set cardinality
	TagZSet   byte = 'z' // sorted-set member → score
	TagZScore byte = 's' // sorted-set score index → empty
	TagQSize  byte = 'Q' // queue cardinality
	TagQueue  byte = 'q' // queue item
	TagBinlog byte = 'B' // binlog record
	TagMeta   byte = 'M' // reserved
)

// ErrBadKey is returned when a decoder is handed a key that does not start
// with the expected tag or whose internal framing is inconsistent. Callers
// use errors.Is to distinguish malformed keys from engine failures.
var ErrBadKey = errors.New("codec: malformed typed key")

func badKey(tag byte, reason string) error {
	return fmt.Errorf("%w: tag %q: %s", ErrBadKey, tag, reason)
}

func checkTag(b []byte, tag byte) ([]byte, error) {
	if len(b) < 1 {
		return nil, badKey(tag, "empty key")
	}
	if b[0] != tag {
		return nil, badKey(tag, fmt.Sprintf("got tag %q", b[0]))
	}
	return b[1:], nil
}

// EncodeKVKey encodes a plain KV key. An empty key yields the bare tag,
// which is the lower bound of the KV range.
func EncodeKVKey(key []byte) []byte {
	buf := make([]byte, 0, 1+len(key))
	buf = append(buf, TagKV)
	return append(buf, key...)
}

// DecodeKVKey returns the user key embedded in an encoded KV key.
func DecodeKVKey(b []byte) ([]byte, error) {
	return checkTag(b, TagKV)
}

// EncodeHSizeKey encodes the cardinality key for the hash called name.
func EncodeHSizeKey(name []byte) []byte {
	buf := make([]byte, 0, 1+len(name))
	buf = append(buf, TagHSize)
	return append(buf, name...)
}

// DecodeHSizeKey returns the hash name embedded in an encoded HSIZE key.
func DecodeHSizeKey(b []byte) ([]byte, error) {
	return checkTag(b, TagHSize)
}

// EncodeHashKey encodes the entry key for one field of the hash called name.
func EncodeHashKey(name, field []byte) ([]byte, error) {
	buf := make([]byte, 0, 2+len(name)+len(field))
	buf = append(buf, TagHash)
	buf, err := PutVarlen(buf, name)
	if err != nil {
		return nil, err
	}
	return append(buf, field...), nil
}

// DecodeHashKey splits an encoded HASH key into hash name and field. The
// declared name length must be consumed exactly; the field is whatever
// follows it.
func DecodeHashKey(b []byte) (name, field []byte, err error) {
	rest, err := checkTag(b, TagHash)
	if err != nil {
		return nil, nil, err
	}
	name, field, err = GetVarlen(rest)
	if err != nil {
		return nil, nil, badKey(TagHash, "inconsistent name framing")
	}
	return name, field, nil
}

// HashPrefix returns the common prefix of every HASH entry of name, suitable
// for prefix iteration over the hash's fields.
func HashPrefix(name []byte) ([]byte, error) {
	buf := make([]byte, 0, 2+len(name))
	buf = append(buf, TagHash)
	return PutVarlen(buf, name)
}

// EncodeZSizeKey encodes the cardinality key for the sorted set called name.
func EncodeZSizeKey(name []byte) []byte {
	buf := make([]byte, 0, 1+len(name))
	buf = append(buf, TagZSize)
	return append(buf, name...)
}

// DecodeZSizeKey returns the zset name embedded in an encoded ZSIZE key.
func DecodeZSizeKey(b []byte) ([]byte, error) {
	return checkTag(b, TagZSize)
}

// EncodeZSetKey encodes the by-name entry for one member of the sorted set
// called name. The entry's value holds the member's score.
func EncodeZSetKey(name, member []byte) ([]byte, error) {
	buf := make([]byte, 0, 2+len(name)+len(member))
	buf = append(buf, TagZSet)
	buf, err := PutVarlen(buf, name)
	if err != nil {
		return nil, err
	}
	return append(buf, member...), nil
}

// DecodeZSetKey splits an encoded ZSET-by-name key into set name and member.
func DecodeZSetKey(b []byte) (name, member []byte, err error) {
	rest, err := checkTag(b, TagZSet)
	if err != nil {
		return nil, nil, err
	}
	name, member, err = GetVarlen(rest)
	if err != nil {
		return nil, nil, badKey(TagZSet, "inconsistent name framing")
	}
	return name, member, nil
}

// ZSetPrefix returns the common prefix of every by-name entry of the sorted
// set called name.
func ZSetPrefix(name []byte) ([]byte, error) {
	buf := make([]byte, 0, 2+len(name))
	buf = append(buf, TagZSet)
	return PutVarlen(buf, name)
}

// EncodeZScoreKey encodes the score-index entry for one member of the sorted
// set called name. The score is stored through the order-preserving
// transform so that iterating the index visits members in score order, ties
// broken by member bytes.
func EncodeZScoreKey(name []byte, score int64, member []byte) ([]byte, error) {
	buf := make([]byte, 0, 10+len(name)+len(member))
	buf = append(buf, TagZScore)
	buf, err := PutVarlen(buf, name)
	if err != nil {
		return nil, err
	}
	buf = PutU64BE(buf, SortableScore(score))
	return append(buf, member...), nil
}

// DecodeZScoreKey splits an encoded ZSET-by-score key into set name, score
// and member.
func DecodeZScoreKey(b []byte) (name []byte, score int64, member []byte, err error) {
	rest, err := checkTag(b, TagZScore)
	if err != nil {
		return nil, 0, nil, err
	}
	name, rest, err = GetVarlen(rest)
	if err != nil {
		return nil, 0, nil, badKey(TagZScore, "inconsistent name framing")
	}
	u, err := GetU64BE(rest)
	if err != nil {
		return nil, 0, nil, badKey(TagZScore, "truncated score")
	}
	return name, ScoreValue(u), rest[8:], nil
}

// ZScorePrefix returns the common prefix of every score-index entry of the
// sorted set called name.
func ZScorePrefix(name []byte) ([]byte, error) {
	buf := make([]byte, 0, 2+len(name))
	buf = append(buf, TagZScore)
	return PutVarlen(buf, name)
}

// EncodeQSizeKey encodes the cardinality key for the queue called name.
func EncodeQSizeKey(name []byte) []byte {
	buf := make([]byte, 0, 1+len(name))
	buf = append(buf, TagQSize)
	return append(buf, name...)
}

// DecodeQSizeKey returns the queue name embedded in an encoded QSIZE key.
func DecodeQSizeKey(b []byte) ([]byte, error) {
	return checkTag(b, TagQSize)
}

// EncodeQueueKey encodes the item key at seq within the queue called name.
// Item seqs are big-endian so that the engine's key order equals queue
// order.
func EncodeQueueKey(name []byte, seq uint64) ([]byte, error) {
	buf := make([]byte, 0, 10+len(name))
	buf = append(buf, TagQueue)
	buf, err := PutVarlen(buf, name)
	if err != nil {
		return nil, err
	}
	return PutU64BE(buf, seq), nil
}

// DecodeQueueKey splits an encoded QUEUE-item key into queue name and item
// seq. Trailing bytes after the fixed-width seq are rejected.
func DecodeQueueKey(b []byte) (name []byte, seq uint64, err error) {
	rest, err := checkTag(b, TagQueue)
	if err != nil {
		return nil, 0, err
	}
	name, rest, err = GetVarlen(rest)
	if err != nil {
		return nil, 0, badKey(TagQueue, "inconsistent name framing")
	}
	if len(rest) != 8 {
		return nil, 0, badKey(TagQueue, "item seq must be exactly 8 bytes")
	}
	seq, _ = GetU64BE(rest)
	return name, seq, nil
}

// QueuePrefix returns the common prefix of every item of the queue called
// name.
func QueuePrefix(name []byte) ([]byte, error) {
	buf := make([]byte, 0, 2+len(name))
	buf = append(buf, TagQueue)
	return PutVarlen(buf, name)
}

// EncodeBinlogKey encodes the engine key for the binlog record at seq.
// Big-endian seqs make the binlog keyspace sort numerically, which is what
// recovery and FindNext rely on.
func EncodeBinlogKey(seq uint64) []byte {
	buf := make([]byte, 0, 9)
	buf = append(buf, TagBinlog)
	return PutU64BE(buf, seq)
}

// DecodeBinlogKey returns the seq embedded in an encoded binlog key. The
// key has a fixed shape; any other length is rejected.
func DecodeBinlogKey(b []byte) (uint64, error) {
	rest, err := checkTag(b, TagBinlog)
	if err != nil {
		return 0, err
	}
	if len(rest) != 8 {
		return 0, badKey(TagBinlog, "seq must be exactly 8 bytes")
	}
	seq, _ := GetU64BE(rest)
	return seq, nil
}
