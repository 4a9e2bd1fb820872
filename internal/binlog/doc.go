// Package binlog implements the transactional replication log at the heart
// of the keva store: a bounded circular queue of mutation records kept
// inside the same engine as the user data, so that every logical write and
// its log entry persist in one atomic batch.
//
// # Records
//
// Each committed mutation is described by a Record: a strictly increasing
// 64-bit seq, a one-byte replication type, a one-byte command, and the raw
// encoded key that was mutated. Records are stored under the reserved 'B'
// key prefix with big-endian seqs, so the engine's key order equals seq
// order and followers can tail the log with a single seek.
//
// # Writer discipline
//
// The Queue enforces a single-writer discipline through one mutex. A write
// is composed inside a Transaction: Begin acquires the mutex and resets the
// pending batch, the typed layer stages engine puts/deletes plus one log
// entry per logical mutation, and Commit writes the whole batch atomically.
// Closing the Transaction without a commit rolls everything back, including
// the seq counter, so a failed or abandoned write leaves no trace.
//
// Readers (Get, FindNext, FindLast) never take the writer mutex; they
// observe committed state only.
//
// # Retention
//
// The queue targets a configured capacity. A background trimmer compares
// the retained interval [minSeq, lastSeq] against that capacity and deletes
// the oldest records in bounded chunks, yielding the writer mutex between
// chunks so online writers are never starved. Trimming may lag; it never
// fails a caller.
package binlog
