package binlog

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/syndtr/goleveldb/leveldb"

	"github.com/dreamware/keva/internal/codec"
)

func newTestDB(t *testing.T) *leveldb.DB {
	t.Helper()
	db, err := leveldb.OpenFile(t.TempDir(), nil)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func newTestQueue(t *testing.T, db *leveldb.DB, capacity uint64) *Queue {
	t.Helper()
	q, err := NewQueue(db, nil, true, capacity)
	require.NoError(t, err)
	return q
}

// commitSet commits one SET through the transaction discipline, the way the
// typed layer does.
func commitSet(t *testing.T, q *Queue, key, value string) {
	t.Helper()
	tx := Begin(q)
	defer tx.Close()

	ek := codec.EncodeKVKey([]byte(key))
	tx.Put(ek, []byte(value))
	tx.AddLog(TypeSync, CmdSet, ek)
	require.NoError(t, tx.Commit())
}

func TestQueueSeqAllocation(t *testing.T) {
	db := newTestDB(t)
	q := newTestQueue(t, db, 0)

	t.Run("empty queue starts at zero", func(t *testing.T) {
		assert.Zero(t, q.LastSeq())
		assert.Zero(t, q.MinSeq())
		_, err := q.FindLast()
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("first commit assigns seq 1", func(t *testing.T) {
		commitSet(t, q, "foo", "bar")
		assert.Equal(t, uint64(1), q.LastSeq())

		rec, err := q.FindLast()
		require.NoError(t, err)
		assert.Equal(t, uint64(1), rec.Seq())
		assert.Equal(t, CmdSet, rec.Cmd())
		assert.Equal(t, codec.EncodeKVKey([]byte("foo")), rec.Key())
	})

	t.Run("seqs are dense across commits", func(t *testing.T) {
		commitSet(t, q, "a", "1")
		commitSet(t, q, "b", "2")
		assert.Equal(t, uint64(3), q.LastSeq())

		for seq := uint64(1); seq <= 3; seq++ {
			rec, err := q.Get(seq)
			require.NoError(t, err)
			assert.Equal(t, seq, rec.Seq())
		}
	})

	t.Run("multiple logs in one transaction stay ordered", func(t *testing.T) {
		tx := Begin(q)
		for _, k := range []string{"x", "y", "z"} {
			ek := codec.EncodeKVKey([]byte(k))
			tx.Put(ek, []byte("v"))
			tx.AddLog(TypeSync, CmdSet, ek)
		}
		require.NoError(t, tx.Commit())
		tx.Close()

		assert.Equal(t, uint64(6), q.LastSeq())
		for seq := uint64(4); seq <= 6; seq++ {
			rec, err := q.Get(seq)
			require.NoError(t, err)
			assert.Equal(t, seq, rec.Seq())
		}
	})
}

func TestQueueAtomicCoupling(t *testing.T) {
	db := newTestDB(t)
	q := newTestQueue(t, db, 0)

	commitSet(t, q, "foo", "bar")

	// Both the user key and the binlog record landed in one batch.
	v, err := db.Get(codec.EncodeKVKey([]byte("foo")), nil)
	require.NoError(t, err)
	assert.Equal(t, []byte("bar"), v)

	rec, err := q.Get(1)
	require.NoError(t, err)
	assert.Equal(t, CmdSet, rec.Cmd())
}

func TestQueueRollback(t *testing.T) {
	db := newTestDB(t)
	q := newTestQueue(t, db, 0)
	commitSet(t, q, "foo", "bar")

	t.Run("close without commit discards everything", func(t *testing.T) {
		tx := Begin(q)
		ek := codec.EncodeKVKey([]byte("foo"))
		tx.Delete(ek)
		tx.AddLog(TypeSync, CmdDel, ek)
		assert.Equal(t, uint64(2), q.LastSeq())
		tx.Close()

		// The staged delete never reached the engine and the seq counter
		// snapped back.
		assert.Equal(t, uint64(1), q.LastSeq())
		v, err := db.Get(ek, nil)
		require.NoError(t, err)
		assert.Equal(t, []byte("bar"), v)
		_, err = q.Get(2)
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("seq space is reused after rollback", func(t *testing.T) {
		commitSet(t, q, "baz", "qux")
		assert.Equal(t, uint64(2), q.LastSeq())
	})

	t.Run("close after commit is a no-op", func(t *testing.T) {
		tx := Begin(q)
		ek := codec.EncodeKVKey([]byte("k"))
		tx.Put(ek, []byte("v"))
		tx.AddLog(TypeSync, CmdSet, ek)
		require.NoError(t, tx.Commit())
		tx.Close()

		assert.Equal(t, uint64(3), q.LastSeq())
		_, err := q.Get(3)
		assert.NoError(t, err)
	})
}

func TestQueueDisabled(t *testing.T) {
	db := newTestDB(t)
	q, err := NewQueue(db, nil, false, 0)
	require.NoError(t, err)

	tx := Begin(q)
	ek := codec.EncodeKVKey([]byte("foo"))
	tx.Put(ek, []byte("bar"))
	tx.AddLog(TypeSync, CmdSet, ek)
	require.NoError(t, tx.Commit())
	tx.Close()

	// The write still committed, but nothing was logged and the seq
	// counter never moved.
	assert.Zero(t, q.LastSeq())
	_, err = db.Get(ek, nil)
	assert.NoError(t, err)
	_, err = q.FindLast()
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestQueueLookup(t *testing.T) {
	db := newTestDB(t)
	q := newTestQueue(t, db, 0)
	for i := 0; i < 5; i++ {
		commitSet(t, q, "k", "v")
	}

	t.Run("get by exact seq", func(t *testing.T) {
		rec, err := q.Get(3)
		require.NoError(t, err)
		assert.Equal(t, uint64(3), rec.Seq())

		_, err = q.Get(99)
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("find next returns smallest at or above", func(t *testing.T) {
		rec, err := q.FindNext(1)
		require.NoError(t, err)
		assert.Equal(t, uint64(1), rec.Seq())

		rec, err = q.FindNext(4)
		require.NoError(t, err)
		assert.Equal(t, uint64(4), rec.Seq())

		_, err = q.FindNext(6)
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("tailing surfaces every record in order", func(t *testing.T) {
		var got []uint64
		seq := uint64(1)
		for {
			rec, err := q.FindNext(seq)
			if err != nil {
				assert.ErrorIs(t, err, ErrNotFound)
				break
			}
			got = append(got, rec.Seq())
			seq = rec.Seq() + 1
		}
		assert.Equal(t, []uint64{1, 2, 3, 4, 5}, got)
	})
}

func TestQueueRecovery(t *testing.T) {
	dir := t.TempDir()

	db, err := leveldb.OpenFile(dir, nil)
	require.NoError(t, err)
	q, err := NewQueue(db, nil, true, 0)
	require.NoError(t, err)
	for i := 0; i < 7; i++ {
		commitSet(t, q, "k", "v")
	}
	require.NoError(t, db.Close())

	db, err = leveldb.OpenFile(dir, nil)
	require.NoError(t, err)
	defer db.Close()

	q2, err := NewQueue(db, nil, true, 0)
	require.NoError(t, err)
	assert.Equal(t, uint64(7), q2.LastSeq())
	assert.Equal(t, uint64(1), q2.MinSeq())

	// Seq allocation continues where it left off.
	commitSet(t, q2, "k", "v")
	assert.Equal(t, uint64(8), q2.LastSeq())
}

func TestQueueTrim(t *testing.T) {
	db := newTestDB(t)
	q := newTestQueue(t, db, 10)
	for i := 0; i < 25; i++ {
		commitSet(t, q, "k", "v")
	}

	t.Run("trim deletes the oldest excess", func(t *testing.T) {
		require.NoError(t, q.trimOnce())

		assert.Equal(t, uint64(25), q.LastSeq())
		assert.Equal(t, uint64(16), q.MinSeq())
		assert.Equal(t, uint64(10), q.Len())

		_, err := q.Get(15)
		assert.ErrorIs(t, err, ErrNotFound)
		rec, err := q.FindNext(1)
		require.NoError(t, err)
		assert.Equal(t, uint64(16), rec.Seq())
	})

	t.Run("steady state is idempotent", func(t *testing.T) {
		require.NoError(t, q.trimOnce())
		assert.Equal(t, uint64(16), q.MinSeq())
	})

	t.Run("run exits on cancel", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		done := make(chan error, 1)
		go func() { done <- q.Run(ctx) }()
		cancel()

		select {
		case err := <-done:
			assert.NoError(t, err)
		case <-time.After(5 * time.Second):
			t.Fatal("trimmer did not exit on cancel")
		}
	})
}

func TestQueueFlush(t *testing.T) {
	db := newTestDB(t)
	q := newTestQueue(t, db, 0)
	for i := 0; i < 5; i++ {
		commitSet(t, q, "k", "v")
	}

	tx := Begin(q)
	require.NoError(t, tx.FlushLogs())
	tx.Close()

	assert.Zero(t, q.Len())
	_, err := q.FindNext(1)
	assert.ErrorIs(t, err, ErrNotFound)

	// Seq allocation stays monotonic past the flush.
	commitSet(t, q, "k", "v")
	assert.Equal(t, uint64(6), q.LastSeq())
}

func TestQueueUpdate(t *testing.T) {
	db := newTestDB(t)
	q := newTestQueue(t, db, 0)
	commitSet(t, q, "foo", "bar")

	require.NoError(t, q.Update(1, TypeMirror, CmdDel, codec.EncodeKVKey([]byte("foo"))))

	rec, err := q.Get(1)
	require.NoError(t, err)
	assert.Equal(t, TypeMirror, rec.Type())
	assert.Equal(t, CmdDel, rec.Cmd())
}

func TestQueueStats(t *testing.T) {
	db := newTestDB(t)
	q := newTestQueue(t, db, 10)
	commitSet(t, q, "k", "v")

	stats := q.Stats()
	assert.Contains(t, stats, "capacity: 10")
	assert.Contains(t, stats, "min_seq: 1")
	assert.Contains(t, stats, "last_seq: 1")
	assert.Contains(t, stats, "len: 1")
}
