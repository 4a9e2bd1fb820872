// Package codec implements the byte-level encoding contracts shared by every
// layer of the keva store: length-prefixed slices, big-endian and
// little-endian integers, the order-preserving score transform, and the
// typed-key layout that partitions the flat engine keyspace by data type.
//
// # Typed key layout
//
// Every user key stored in the engine begins with a one-byte data-type tag.
// Because the engine keeps keys in lexicographic order, the tag partitions
// the keyspace so that a seek-to-prefix scan stays within one logical
// datatype:
//
//	tag  type           payload
//	'k'  KV             user key bytes
//	'H'  HSIZE          hash name
//	'h'  HASH           varlen(name) ∥ field
//	'Z'  ZSIZE          zset name
//	'z'  ZSET-by-name   varlen(name) ∥ member        → score
//	's'  ZSET-by-score  varlen(name) ∥ score ∥ member → empty
//	'Q'  QSIZE          queue name
//	'q'  QUEUE-item     varlen(name) ∥ seq(8B, big-endian)
//	'B'  BINLOG         seq(8B, big-endian)
//	'M'  META           reserved
//
// varlen(x) is a single length byte followed by up to 255 bytes. Scores are
// signed 64-bit integers stored through an order-preserving transform so
// that byte order equals numeric order.
//
// # Range conventions
//
// Encoding an empty name yields the bare tag byte, which is the lower bound
// of that type's range. Encoding "\xff" conventionally serves as the upper
// bound used by reverse scans.
//
// # Error handling
//
// All routines are total functions over byte slices. Failure is signalled by
// an error return, never by panic. Decoders reject input that does not start
// with the expected tag, input whose varlen framing is inconsistent, and
// trailing bytes on fixed-shape keys.
package codec
