// Package codec implements byte encoding helpers and the typed key codec.
// See doc.go for complete package documentation.
package codec

import (
	"encoding/binary"
	"errors"
	"fmt"
	"strings"
)

// ErrShortBuffer is returned when a decoder runs out of input before the
// declared length has been consumed.
var ErrShortBuffer = errors.New("codec: short buffer")

// ErrNameTooLong is returned when a name exceeds the 255-byte limit imposed
// by the one-byte varlen prefix.
var ErrNameTooLong = errors.New("codec: name longer than 255 bytes")

// PutVarlen appends b to dst as a one-byte length prefix followed by the
// bytes themselves and returns the extended slice.
//
// The length prefix limits b to 255 bytes; longer input returns
// ErrNameTooLong and leaves dst unchanged.
func PutVarlen(dst, b []byte) ([]byte, error) {
	if len(b) > 255 {
		return dst, ErrNameTooLong
	}
	dst = append(dst, byte(len(b)))
	return append(dst, b...), nil
}

// GetVarlen reads a length-prefixed slice from src and returns the slice and
// the remaining input.
//
// It fails with ErrShortBuffer when src is empty or when the declared length
// exceeds the remaining buffer. The returned slice aliases src; callers that
// retain it must copy.
func GetVarlen(src []byte) (val, rest []byte, err error) {
	if len(src) < 1 {
		return nil, nil, ErrShortBuffer
	}
	n := int(src[0])
	if len(src)-1 < n {
		return nil, nil, ErrShortBuffer
	}
	return src[1 : 1+n], src[1+n:], nil
}

// PutU64BE appends v to dst in big-endian byte order. Big-endian keys sort
// numerically under the engine's lexicographic ordering, which is what the
// binlog and queue-item keyspaces rely on.
func PutU64BE(dst []byte, v uint64) []byte {
	return binary.BigEndian.AppendUint64(dst, v)
}

// GetU64BE reads a big-endian uint64 from the front of src.
func GetU64BE(src []byte) (uint64, error) {
	if len(src) < 8 {
		return 0, ErrShortBuffer
	}
	return binary.BigEndian.Uint64(src), nil
}

// PutU64LE appends v to dst in little-endian byte order. The binlog record
// body stores its seq little-endian on the wire.
func PutU64LE(dst []byte, v uint64) []byte {
	return binary.LittleEndian.AppendUint64(dst, v)
}

// GetU64LE reads a little-endian uint64 from the front of src.
func GetU64LE(src []byte) (uint64, error) {
	if len(src) < 8 {
		return 0, ErrShortBuffer
	}
	return binary.LittleEndian.Uint64(src), nil
}

// SortableScore transforms a signed 64-bit score into an unsigned value
// whose big-endian byte representation sorts in the same order as the
// numeric values: flipping the sign bit maps the int64 range
// [MinInt64, MaxInt64] onto [0, MaxUint64] monotonically.
func SortableScore(score int64) uint64 {
	return uint64(score) ^ (1 << 63)
}

// ScoreValue is the inverse of SortableScore.
func ScoreValue(u uint64) int64 {
	return int64(u ^ (1 << 63))
}

// HexDump renders b as a compact hex string for diagnostics, with printable
// ASCII shown verbatim so typed keys stay readable in logs.
func HexDump(b []byte) string {
	var sb strings.Builder
	for _, c := range b {
		if c >= 0x20 && c < 0x7f {
			sb.WriteByte(c)
		} else {
			fmt.Fprintf(&sb, `\x%02x`, c)
		}
	}
	return sb.String()
}
