package store

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dreamware/keva/internal/binlog"
	"github.com/dreamware/keva/internal/codec"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(t.TempDir(), DefaultOptions())
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestOpenClose(t *testing.T) {
	t.Run("open creates the directory", func(t *testing.T) {
		dir := t.TempDir() + "/db"
		s, err := Open(dir, DefaultOptions())
		require.NoError(t, err)
		require.NoError(t, s.Close())
	})

	t.Run("data survives reopen", func(t *testing.T) {
		dir := t.TempDir()
		s, err := Open(dir, DefaultOptions())
		require.NoError(t, err)
		require.NoError(t, s.Set([]byte("foo"), []byte("bar")))
		require.NoError(t, s.Close())

		s, err = Open(dir, DefaultOptions())
		require.NoError(t, err)
		defer s.Close()

		v, err := s.Get([]byte("foo"))
		require.NoError(t, err)
		assert.Equal(t, []byte("bar"), v)
		assert.Equal(t, uint64(1), s.Binlogs().LastSeq())
	})

	t.Run("compression off", func(t *testing.T) {
		opts := DefaultOptions()
		opts.Compression = "no"
		s, err := Open(t.TempDir(), opts)
		require.NoError(t, err)
		require.NoError(t, s.Set([]byte("k"), []byte("v")))
		require.NoError(t, s.Close())
	})
}

func TestRawOps(t *testing.T) {
	s := newTestStore(t)

	require.NoError(t, s.RawPut([]byte("Mmeta"), []byte("x")))

	v, err := s.RawGet([]byte("Mmeta"))
	require.NoError(t, err)
	assert.Equal(t, []byte("x"), v)

	// Raw writes bypass the binlog entirely.
	assert.Zero(t, s.Binlogs().LastSeq())

	require.NoError(t, s.RawDel([]byte("Mmeta")))
	_, err = s.RawGet([]byte("Mmeta"))
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestFlushDB(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.Set([]byte("k1"), []byte("v1")))
	_, err := s.HSet([]byte("h"), []byte("f"), []byte("v"))
	require.NoError(t, err)
	_, err = s.QPushBack([]byte("q"), []byte("job"))
	require.NoError(t, err)

	require.NoError(t, s.FlushDB())

	_, err = s.Get([]byte("k1"))
	assert.ErrorIs(t, err, ErrNotFound)
	n, err := s.HSize([]byte("h"))
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Zero(t, s.Binlogs().Len())

	// The store stays usable and seq allocation stays monotonic: the wipe
	// emitted no binlog entries of its own.
	require.NoError(t, s.Set([]byte("k2"), []byte("v2")))
	rec, err := s.Binlogs().FindLast()
	require.NoError(t, err)
	assert.Equal(t, uint64(4), rec.Seq())
}

func TestIteratorBounds(t *testing.T) {
	s := newTestStore(t)
	for _, k := range []string{"a", "b", "c", "d"} {
		require.NoError(t, s.RawPut([]byte(k), []byte("v")))
	}

	t.Run("forward skips an exact start match", func(t *testing.T) {
		it := s.Iterator([]byte("b"), nil, 10)
		defer it.Release()

		var got []string
		for it.Next() {
			got = append(got, string(it.Key()))
		}
		assert.Equal(t, []string{"c", "d"}, got)
	})

	t.Run("forward stops before end", func(t *testing.T) {
		it := s.Iterator([]byte("a"), []byte("d"), 10)
		defer it.Release()

		var got []string
		for it.Next() {
			got = append(got, string(it.Key()))
		}
		assert.Equal(t, []string{"b", "c"}, got)
	})

	t.Run("limit caps the walk", func(t *testing.T) {
		it := s.Iterator(nil, nil, 2)
		defer it.Release()

		n := 0
		for it.Next() {
			n++
		}
		assert.Equal(t, 2, n)
	})

	t.Run("reverse from past the end seeks to the last key", func(t *testing.T) {
		it := s.RevIterator([]byte("zzz"), nil, 10)
		defer it.Release()

		require.True(t, it.Next())
		assert.Equal(t, []byte("d"), it.Key())
	})

	t.Run("reverse skips an exact start match", func(t *testing.T) {
		it := s.RevIterator([]byte("c"), nil, 10)
		defer it.Release()

		var got []string
		for it.Next() {
			got = append(got, string(it.Key()))
		}
		assert.Equal(t, []string{"b", "a"}, got)
	})

	t.Run("reverse stops at end bound", func(t *testing.T) {
		it := s.RevIterator([]byte("d"), []byte("a"), 10)
		defer it.Release()

		var got []string
		for it.Next() {
			got = append(got, string(it.Key()))
		}
		assert.Equal(t, []string{"c", "b"}, got)
	})
}

func TestKeyRange(t *testing.T) {
	s := newTestStore(t)

	t.Run("empty store yields empty slots", func(t *testing.T) {
		kr, err := s.KeyRange()
		require.NoError(t, err)
		assert.Equal(t, []string{"", "", "", "", "", "", "", ""}, kr)
	})

	t.Run("populated store lists extremes per type", func(t *testing.T) {
		require.NoError(t, s.Set([]byte("alpha"), []byte("1")))
		require.NoError(t, s.Set([]byte("omega"), []byte("2")))
		_, err := s.HSet([]byte("h-first"), []byte("f"), []byte("v"))
		require.NoError(t, err)
		_, err = s.HSet([]byte("h-last"), []byte("f"), []byte("v"))
		require.NoError(t, err)
		_, err = s.ZSet([]byte("zed"), []byte("m"), 1)
		require.NoError(t, err)
		_, err = s.QPushBack([]byte("jobs"), []byte("x"))
		require.NoError(t, err)

		kr, err := s.KeyRange()
		require.NoError(t, err)
		assert.Equal(t, []string{
			"alpha", "omega",
			"h-first", "h-last",
			"zed", "zed",
			"jobs", "jobs",
		}, kr)
	})
}

func TestSizeInfoCompact(t *testing.T) {
	s := newTestStore(t)
	for i := 0; i < 100; i++ {
		require.NoError(t, s.Set([]byte(fmt.Sprintf("key-%03d", i)), []byte("value")))
	}

	_, err := s.Size()
	assert.NoError(t, err)

	info := s.Info()
	require.NotEmpty(t, info)
	assert.Equal(t, 0, len(info)%2, "info must be name/value pairs")
	assert.Equal(t, "leveldb.stats", info[0])

	assert.NoError(t, s.Compact())
}

// A reader running alongside a writer's open transaction must only ever
// observe committed state.
func TestReaderIsolation(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.Set([]byte("k"), []byte("old")))

	tx := binlog.Begin(s.Binlogs())
	ek := codec.EncodeKVKey([]byte("k"))
	tx.Put(ek, []byte("new"))
	tx.AddLog(binlog.TypeSync, binlog.CmdSet, ek)

	// The staged put is invisible while the transaction is open.
	v, err := s.Get([]byte("k"))
	require.NoError(t, err)
	assert.Equal(t, []byte("old"), v)

	require.NoError(t, tx.Commit())
	tx.Close()

	v, err = s.Get([]byte("k"))
	require.NoError(t, err)
	assert.Equal(t, []byte("new"), v)
}

func TestConcurrentReadersAndWriter(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.Set([]byte("shared"), []byte("v0")))

	var wg sync.WaitGroup
	stop := make(chan struct{})

	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; ; i++ {
			select {
			case <-stop:
				return
			default:
			}
			if err := s.Set([]byte("shared"), []byte(fmt.Sprintf("v%d", i))); err != nil {
				t.Errorf("writer: %v", err)
				return
			}
		}
	}()

	for r := 0; r < 4; r++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 200; i++ {
				v, err := s.Get([]byte("shared"))
				if err != nil {
					t.Errorf("reader: %v", err)
					return
				}
				if len(v) < 2 || v[0] != 'v' {
					t.Errorf("reader observed torn value %q", v)
					return
				}
			}
		}()
	}

	time.Sleep(50 * time.Millisecond)
	close(stop)
	wg.Wait()
}

// Capacity 10, 25 commits: the trimmer must eventually bring the retained
// interval back to the target, and tailing from 1 resumes at the new
// minimum.
func TestBinlogTrimEndToEnd(t *testing.T) {
	opts := DefaultOptions()
	opts.BinlogCapacity = 10
	s, err := Open(t.TempDir(), opts)
	require.NoError(t, err)
	defer s.Close()

	for i := 0; i < 25; i++ {
		require.NoError(t, s.Set([]byte("k"), []byte("v")))
	}
	assert.Equal(t, uint64(25), s.Binlogs().LastSeq())

	require.Eventually(t, func() bool {
		return s.Binlogs().MinSeq() >= 16
	}, 15*time.Second, 100*time.Millisecond, "trimmer never caught up")

	rec, err := s.Binlogs().FindNext(1)
	require.NoError(t, err)
	assert.Equal(t, s.Binlogs().MinSeq(), rec.Seq())
}
