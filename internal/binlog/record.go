// Package binlog implements the replication log queue and its records.
// See doc.go for complete package documentation.
package binlog

import (
	"errors"
	"fmt"

	"github.com/dreamware/keva/internal/codec"
)

// Type classifies how a record reached this store, which tells a follower
// whether to apply or forward it.
type Type byte

// Replication types. The values are part of the wire format.
const (
	TypeNoop   Type = 0
	TypeMirror Type = 1
	TypeCopy   Type = 2
	TypeSync   Type = 4
)

// String returns the lowercase name used in diagnostic dumps.
func (t Type) String() string {
	switch t {
	case TypeNoop:
		return "noop"
	case TypeMirror:
		return "mirror"
	case TypeCopy:
		return "copy"
	case TypeSync:
		return "sync"
	}
	return fmt.Sprintf("type(%d)", byte(t))
}

// Cmd identifies the logical mutation a record describes.
type Cmd byte

// Commands. The numeric values are stable identifiers shared with followers
// and must not be reordered.
const (
	CmdNone Cmd = iota
	CmdSet
	CmdDel
	CmdHSet
	CmdHDel
	CmdZSet
	CmdZDel
	CmdQSet
	CmdQPushBack
	CmdQPushFront
	CmdQPopBack
	CmdQPopFront
)

// String returns the lowercase name used in diagnostic dumps.
func (c Cmd) String() string {
	switch c {
	case CmdNone:
		return "none"
	case CmdSet:
		return "set"
	case CmdDel:
		return "del"
	case CmdHSet:
		return "hset"
	case CmdHDel:
		return "hdel"
	case CmdZSet:
		return "zset"
	case CmdZDel:
		return "zdel"
	case CmdQSet:
		return "qset"
	case CmdQPushBack:
		return "qpush_back"
	case CmdQPushFront:
		return "qpush_front"
	case CmdQPopBack:
		return "qpop_back"
	case CmdQPopFront:
		return "qpop_front"
	}
	return fmt.Sprintf("cmd(%d)", byte(c))
}

// Record wire layout: 8-byte little-endian seq, one type byte, one cmd byte,
// then the raw encoded key. The key carries no length prefix because the
// enclosing engine value is self-delimited.
const headerLen = 10

// ErrBadRecord is returned when record bytes are too short to contain the
// fixed header.
var ErrBadRecord = errors.New("binlog: malformed record")

// Record is one replication log entry. The zero value is an empty record;
// records handed out by the queue are always well-formed.
//
// A Record is a thin view over its wire bytes: replicators transmit
// Bytes() verbatim, and accessors decode on demand.
type Record struct {
	buf []byte
}

// NewRecord builds a record from its four fields.
func NewRecord(seq uint64, t Type, c Cmd, key []byte) Record {
	buf := make([]byte, 0, headerLen+len(key))
	buf = codec.PutU64LE(buf, seq)
	buf = append(buf, byte(t), byte(c))
	buf = append(buf, key...)
	return Record{buf: buf}
}

// ParseRecord validates b as a record and wraps it. It fails with
// ErrBadRecord when b is shorter than the fixed header. The record aliases
// b; callers that retain it across engine reads must copy first.
func ParseRecord(b []byte) (Record, error) {
	if len(b) < headerLen {
		return Record{}, fmt.Errorf("%w: %d bytes, want at least %d", ErrBadRecord, len(b), headerLen)
	}
	return Record{buf: b}, nil
}

// Seq returns the record's sequence number.
func (r Record) Seq() uint64 {
	if len(r.buf) < 8 {
		return 0
	}
	seq, _ := codec.GetU64LE(r.buf)
	return seq
}

// Type returns the replication type byte.
func (r Record) Type() Type {
	if len(r.buf) < 9 {
		return TypeNoop
	}
	return Type(r.buf[8])
}

// Cmd returns the command byte.
func (r Record) Cmd() Cmd {
	if len(r.buf) < headerLen {
		return CmdNone
	}
	return Cmd(r.buf[9])
}

// Key returns the raw encoded key of the mutated entry, borrowed from the
// record's backing bytes.
func (r Record) Key() []byte {
	if len(r.buf) <= headerLen {
		return nil
	}
	return r.buf[headerLen:]
}

// Bytes returns the record's wire form. Followers transmit these bytes
// byte for byte.
func (r Record) Bytes() []byte {
	return r.buf
}

// Empty reports whether the record holds no data. Lookups that fail,
// including with ErrNotFound, return such an empty record.
func (r Record) Empty() bool {
	return len(r.buf) == 0
}

// String produces the one-line human form "seq type cmd hex(key)" used in
// diagnostics and log output.
func (r Record) String() string {
	return fmt.Sprintf("%d %s %s %s", r.Seq(), r.Type(), r.Cmd(), codec.HexDump(r.Key()))
}
