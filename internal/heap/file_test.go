package heap

import (
	"bytes"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ductrann/heapstore/internal/bufferpool"
	"github.com/ductrann/heapstore/internal/storage"
)

// newTestFile creates a heap file bound to a temp directory and returns
// it along with the StorageManager and FileSet for reopen tests.
func newTestFile(t *testing.T, base string) (*File, *storage.StorageManager, storage.LocalFileSet) {
	t.Helper()

	dir := t.TempDir()

	sm := storage.NewStorageManager()
	fs := storage.LocalFileSet{
		Dir:  dir,
		Base: base,
	}
	bp := bufferpool.NewPool(sm, fs, bufferpool.DefaultCapacity)

	// New file with pageCount=0, Insert will lazily create pages.
	return NewFile(base, sm, fs, bp, 0), sm, fs
}

func TestFile_InsertAndScan_Persisted(t *testing.T) {
	f, sm, fs := newTestFile(t, "events")

	const numRecords = 10
	expected := make(map[string]bool)
	for i := 1; i <= numRecords; i++ {
		rec := fmt.Sprintf("event-%d", i)
		_, err := f.Insert([]byte(rec))
		require.NoError(t, err)
		expected[rec] = true
	}

	// Flush all dirty pages to disk via the buffer pool.
	require.NoError(t, f.Flush())

	// Reopen: new buffer pool, page count from storage.
	bp2 := bufferpool.NewPool(sm, fs, bufferpool.DefaultCapacity)
	f2, err := Open("events", sm, fs, bp2)
	require.NoError(t, err)
	require.Greater(t, f2.PageCount, int32(0))

	got := make(map[string]bool)
	err = f2.Scan(func(rid storage.RecordID, rec []byte) error {
		got[string(rec)] = true
		return nil
	})
	require.NoError(t, err)
	require.Equal(t, expected, got)

	n, err := f2.NumRecords()
	require.NoError(t, err)
	require.Equal(t, numRecords, n)
}

func TestFile_GrowsChainAcrossPages(t *testing.T) {
	f, _, _ := newTestFile(t, "bulk")

	// ~1KB records: a handful per 8KB page, so this spans several pages.
	rec := bytes.Repeat([]byte{'x'}, 1000)
	var rids []storage.RecordID
	for i := 0; i < 30; i++ {
		rid, err := f.Insert(rec)
		require.NoError(t, err)
		rids = append(rids, rid)
	}
	require.Greater(t, f.PageCount, int32(1))

	// Pages are threaded through their links in allocation order.
	for id := storage.PageID(0); int32(id) < f.PageCount; id++ {
		p, err := f.BP.GetPage(id)
		require.NoError(t, err)

		if id == 0 {
			assert.Equal(t, storage.InvalidPageID, p.PrevPage())
		} else {
			assert.Equal(t, id-1, p.PrevPage())
		}
		if int32(id) == f.PageCount-1 {
			assert.Equal(t, storage.InvalidPageID, p.NextPage())
		} else {
			assert.Equal(t, id+1, p.NextPage())
		}

		require.NoError(t, f.BP.Unpin(p, false))
	}

	// Scan sees each record exactly once.
	n := 0
	err := f.Scan(func(rid storage.RecordID, got []byte) error {
		require.Equal(t, rec, got)
		n++
		return nil
	})
	require.NoError(t, err)
	require.Equal(t, len(rids), n)
}

func TestFile_DeleteAndGet(t *testing.T) {
	f, _, _ := newTestFile(t, "crud")

	var rids []storage.RecordID
	for i := 0; i < 5; i++ {
		rid, err := f.Insert([]byte(fmt.Sprintf("rec-%d", i)))
		require.NoError(t, err)
		rids = append(rids, rid)
	}

	require.NoError(t, f.Delete(rids[2]))

	// Stale id: invalid, not fatal.
	err := f.Delete(rids[2])
	require.ErrorIs(t, err, storage.ErrBadSlot)
	_, err = f.Get(rids[2])
	require.ErrorIs(t, err, storage.ErrBadSlot)

	// Other ids are untouched.
	for _, i := range []int{0, 1, 3, 4} {
		rec, err := f.Get(rids[i])
		require.NoError(t, err)
		assert.Equal(t, fmt.Sprintf("rec-%d", i), string(rec))
	}

	n, err := f.NumRecords()
	require.NoError(t, err)
	assert.Equal(t, 4, n)
}

func TestFile_RecordTooLarge(t *testing.T) {
	f, _, _ := newTestFile(t, "big")

	_, err := f.Insert(make([]byte, MaxRecordSize+1))
	require.ErrorIs(t, err, ErrRecordTooLarge)

	// The boundary case still fits on one page.
	rid, err := f.Insert(make([]byte, MaxRecordSize))
	require.NoError(t, err)
	rec, err := f.Get(rid)
	require.NoError(t, err)
	require.Len(t, rec, MaxRecordSize)
}

func TestFile_CompactPage(t *testing.T) {
	f, _, _ := newTestFile(t, "compact")

	var rids []storage.RecordID
	for i := 0; i < 6; i++ {
		rid, err := f.Insert([]byte(fmt.Sprintf("rec-%d", i)))
		require.NoError(t, err)
		rids = append(rids, rid)
	}
	for _, i := range []int{1, 4, 5} {
		require.NoError(t, f.Delete(rids[i]))
	}

	require.NoError(t, f.Compact(0))

	// Compaction on an unknown page is rejected.
	require.Error(t, f.Compact(7))

	// Live records survive under possibly renumbered ids.
	got := make(map[string]bool)
	err := f.Scan(func(rid storage.RecordID, rec []byte) error {
		got[string(rec)] = true
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, map[string]bool{"rec-0": true, "rec-2": true, "rec-3": true}, got)
}

func TestFile_EmptyScan(t *testing.T) {
	f, _, _ := newTestFile(t, "empty")

	err := f.Scan(func(storage.RecordID, []byte) error {
		t.Fatal("scan of an empty file must not call fn")
		return nil
	})
	require.NoError(t, err)

	n, err := f.NumRecords()
	require.NoError(t, err)
	require.Equal(t, 0, n)
}
