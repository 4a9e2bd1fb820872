// Package store is the keva data-structure core: Redis-style typed
// collections (plain keys, hashes, sorted sets, queues) layered on an
// embedded ordered key-value engine, with every logical mutation recorded
// in the replication binlog inside the same atomic batch.
//
// # Architecture
//
//	┌─────────────────────────────────────────┐
//	│        Typed operations                 │
//	│   Set/Get/Del  HSet/…  ZSet/…  QPush/…  │
//	└─────────────────────────────────────────┘
//	                  │ one Transaction per write
//	                  ▼
//	┌─────────────────────────────────────────┐
//	│        binlog.Queue                     │
//	│   writer mutex · pending batch · seqs   │
//	└─────────────────────────────────────────┘
//	                  │ one atomic batch
//	                  ▼
//	┌─────────────────────────────────────────┐
//	│        goleveldb engine                 │
//	│   LSM · snapshots · prefix iteration    │
//	└─────────────────────────────────────────┘
//
// A write command enters a Transaction on the binlog queue, stages its
// engine puts and deletes plus one log record per logical mutation, and
// commits the whole batch atomically. Read commands bypass the writer lock
// entirely and go straight to the engine, so readers run in parallel with
// one writer and with each other.
//
// # Keyspace
//
// All application state lives under the typed prefixes defined by
// internal/codec; range scans over one type never bleed into another
// because the one-byte tag partitions the flat sorted keyspace. The binlog
// occupies the 'B' prefix inside the same engine directory.
//
// # Errors
//
// Absent keys surface as ErrNotFound, comparable with errors.Is. Engine
// failures are wrapped and returned up; they are never silently swallowed,
// and a failed commit aborts the active transaction with the seq counter
// restored.
package store
