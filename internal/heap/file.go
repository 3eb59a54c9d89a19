package heap

import (
	"errors"
	"log/slog"

	"github.com/ductrann/heapstore/internal/bufferpool"
	"github.com/ductrann/heapstore/internal/storage"
)

var ErrRecordTooLarge = errors.New("heap: record does not fit in an empty page")

// MaxRecordSize is the largest record an empty page can hold: one
// payload plus its slot descriptor. Records never span pages.
const MaxRecordSize = storage.PageSize - storage.HeaderSize - storage.SlotSize

// File is an unordered record store: a chain of slotted pages threaded
// through their next/prev links, page 0 at the head. The file owns the
// chain; pages never touch their own links.
type File struct {
	Name      string
	SM        *storage.StorageManager
	FS        storage.FileSet
	BP        bufferpool.Manager
	PageCount int32
}

func NewFile(
	name string,
	sm *storage.StorageManager,
	fs storage.FileSet,
	bp bufferpool.Manager,
	pageCount int32,
) *File {
	return &File{
		Name:      name,
		SM:        sm,
		FS:        fs,
		BP:        bp,
		PageCount: pageCount,
	}
}

// Open binds a File to whatever is already on disk, counting pages as
// the single source of truth.
func Open(
	name string,
	sm *storage.StorageManager,
	fs storage.FileSet,
	bp bufferpool.Manager,
) (*File, error) {
	pageCount, err := sm.CountPages(fs)
	if err != nil {
		return nil, err
	}
	return NewFile(name, sm, fs, bp, pageCount), nil
}

// Insert places rec on the tail page, appending and linking a fresh
// page when the tail is full.
func (f *File) Insert(rec []byte) (storage.RecordID, error) {
	if len(rec) > MaxRecordSize {
		return storage.RecordID{}, ErrRecordTooLarge
	}

	var id storage.PageID
	if f.PageCount == 0 {
		id = 0
		f.PageCount = 1 // first page is created lazily on load
	} else {
		id = storage.PageID(f.PageCount - 1)
	}

	for {
		p, err := f.BP.GetPage(id)
		if err != nil {
			return storage.RecordID{}, err
		}

		rid, err := p.Insert(rec)
		if err == nil {
			if uerr := f.BP.Unpin(p, true); uerr != nil {
				return storage.RecordID{}, uerr
			}
			return rid, nil
		}
		if !errors.Is(err, storage.ErrNoSpace) {
			_ = f.BP.Unpin(p, false)
			return storage.RecordID{}, err
		}

		// Tail page is full: allocate the next one and thread it into
		// the chain before retrying there.
		next := storage.PageID(f.PageCount)
		np, gerr := f.BP.GetPage(next)
		if gerr != nil {
			_ = f.BP.Unpin(p, false)
			return storage.RecordID{}, gerr
		}
		np.SetPrevPage(id)
		p.SetNextPage(next)
		_ = f.BP.Unpin(p, true)
		_ = f.BP.Unpin(np, true)

		f.PageCount++
		slog.Debug("heap: appended page", "file", f.Name, "page", next)
		id = next
	}
}

// Get reads a single record by id, returning a copy.
func (f *File) Get(rid storage.RecordID) ([]byte, error) {
	p, err := f.BP.GetPage(rid.PageID)
	if err != nil {
		return nil, err
	}

	rec, err := p.GetRecord(rid)

	// Read-only: dirty = false
	_ = f.BP.Unpin(p, false)

	if err != nil {
		return nil, err
	}
	return rec, nil
}

// Delete removes a single record by id. The slot is tombstoned, so
// every other record on the page keeps its id.
func (f *File) Delete(rid storage.RecordID) error {
	p, err := f.BP.GetPage(rid.PageID)
	if err != nil {
		return err
	}

	err = p.Delete(rid)
	_ = f.BP.Unpin(p, err == nil)
	return err
}

// Compact trims tombstoned slot entries out of one page's directory.
// Record ids on that page may be renumbered; callers re-resolve by
// scanning.
func (f *File) Compact(id storage.PageID) error {
	if id < 0 || int32(id) >= f.PageCount {
		return storage.ErrPageMismatch
	}
	p, err := f.BP.GetPage(id)
	if err != nil {
		return err
	}
	p.CompactSlotDir()
	return f.BP.Unpin(p, true)
}

// Scan visits every live record once, in page-chain order then
// slot-index order, calling fn with the record id and a copy of the
// bytes. Returning an error from fn stops the scan.
func (f *File) Scan(fn func(rid storage.RecordID, rec []byte) error) error {
	if f.PageCount == 0 {
		return nil
	}

	for id := storage.PageID(0); id != storage.InvalidPageID; {
		p, err := f.BP.GetPage(id)
		if err != nil {
			return err
		}

		rid, rerr := p.FirstRecord()
		for rerr == nil {
			rec, gerr := p.GetRecord(rid)
			if gerr != nil {
				_ = f.BP.Unpin(p, false)
				return gerr
			}
			if err := fn(rid, rec); err != nil {
				_ = f.BP.Unpin(p, false)
				return err
			}
			rid, rerr = p.NextRecord(rid)
		}
		if !errors.Is(rerr, storage.ErrNoMoreRecords) {
			_ = f.BP.Unpin(p, false)
			return rerr
		}

		next := p.NextPage()
		_ = f.BP.Unpin(p, false)
		id = next
	}
	return nil
}

// NumRecords counts live records across the whole file.
func (f *File) NumRecords() (int, error) {
	n := 0
	err := f.Scan(func(storage.RecordID, []byte) error {
		n++
		return nil
	})
	return n, err
}

func (f *File) Flush() error {
	return f.BP.FlushAll()
}
