package binlog

// Transaction is a scoped acquisition of the queue's writer lock and
// pending batch. Begin takes the lock and resets the batch; Close rolls
// back whatever was not committed and releases the lock. Commit stays
// explicit so that every implicit exit path — early return, propagated
// error — is a rollback.
//
// The canonical shape:
//
//	tx := binlog.Begin(queue)
//	defer tx.Close()
//	tx.Put(key, value)
//	tx.AddLog(binlog.TypeSync, binlog.CmdSet, key)
//	return tx.Commit()
//
// Close after a successful Commit is safe: commit clears the transaction
// seq, so the rollback finds nothing to undo. Close must be called exactly
// once, which the defer idiom guarantees. Nested transactions are not
// supported; a second Begin blocks until the first scope closes.
type Transaction struct {
	q *Queue
}

// Begin opens a write transaction, blocking until the writer lock is
// available.
func Begin(q *Queue) *Transaction {
	q.mu.Lock()
	q.begin()
	return &Transaction{q: q}
}

// Put stages a user put into the transaction's batch. Nothing reaches the
// engine until Commit.
func (t *Transaction) Put(key, value []byte) {
	t.q.put(key, value)
}

// Delete stages a user delete into the transaction's batch.
func (t *Transaction) Delete(key []byte) {
	t.q.delete(key)
}

// AddLog allocates the next binlog seq and stages the record describing the
// mutation of key. One call per logical mutation keeps seq order equal to
// mutation order within the transaction.
func (t *Transaction) AddLog(typ Type, cmd Cmd, key []byte) {
	t.q.addLog(typ, cmd, key)
}

// Commit writes the staged batch — user mutations and their log records —
// to the engine in one atomic write. On failure the staged state and the
// seq counter are rolled back and the engine's error is returned.
func (t *Transaction) Commit() error {
	return t.q.commit()
}

// FlushLogs deletes every retained binlog record, in chunks, while the
// transaction holds the writer lock. Used by administrative bulk wipes;
// regular writers never call this.
func (t *Transaction) FlushLogs() error {
	return t.q.flushLocked()
}

// Close rolls back any uncommitted staged state and releases the writer
// lock. Always call it, deferred, exactly once per Begin.
func (t *Transaction) Close() {
	t.q.rollback()
	t.q.mu.Unlock()
}
