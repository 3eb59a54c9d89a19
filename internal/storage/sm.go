package storage

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
)

type FileSet interface {
	OpenSegment(segNo int32) (*os.File, error)
}

var _ FileSet = (*LocalFileSet)(nil)

// LocalFileSet represents a local directory + base file name.
// Segments are stored as: Base, Base.1, Base.2, ...
type LocalFileSet struct {
	Dir  string
	Base string
}

func (lfs LocalFileSet) OpenSegment(segNo int32) (*os.File, error) {
	name := SegFileName(lfs.Base, segNo)
	path := filepath.Join(lfs.Dir, name)
	if err := os.MkdirAll(lfs.Dir, FileMode0755); err != nil {
		return nil, err
	}
	// RDWR | CREATE (no truncate)
	return os.OpenFile(path, os.O_RDWR|os.O_CREATE, FileMode0644)
}

// StorageManager maps a logical pageID -> (segment, offset).
type StorageManager struct{}

func NewStorageManager() *StorageManager {
	return &StorageManager{}
}

func (sm *StorageManager) locate(id PageID) (segNo int32, offset int64) {
	segNo = int32(id) / MaxPagePerSegment
	pageInSeg := int64(id) % MaxPagePerSegment
	offset = pageInSeg * PageSize
	return segNo, offset
}

// ReadPage reads exactly one page (PageSize bytes) into dst.
// If the underlying file is smaller than the requested offset+PageSize,
// the remainder is zero-filled. This allows "sparse" pages that are
// lazily initialized by higher layers.
func (sm *StorageManager) ReadPage(fs FileSet, id PageID, dst []byte) error {
	if len(dst) != PageSize {
		return fmt.Errorf("dst must be exactly %d bytes", PageSize)
	}
	segNo, off := sm.locate(id)
	f, err := fs.OpenSegment(segNo)
	if err != nil {
		return err
	}
	defer func() { _ = f.Close() }()

	n, err := f.ReadAt(dst, off)
	if err != nil && err != io.EOF {
		return err
	}
	// Zero-fill the rest of the page on EOF or a short read.
	for i := n; i < PageSize; i++ {
		dst[i] = 0
	}
	return nil
}

// WritePage writes exactly one page (PageSize bytes) from src to disk
// at the location computed from id.
func (sm *StorageManager) WritePage(fs FileSet, id PageID, src []byte) error {
	if len(src) != PageSize {
		return fmt.Errorf("src must be exactly %d bytes", PageSize)
	}
	segNo, off := sm.locate(id)
	f, err := fs.OpenSegment(segNo)
	if err != nil {
		return err
	}
	defer func() { _ = f.Close() }()

	n, err := f.WriteAt(src, off)
	if err != nil {
		return err
	}
	if n != PageSize {
		return io.ErrShortWrite
	}
	return nil
}

// LoadPage reads a page into memory and returns a Page wrapper.
// If the on-disk bytes are all zero, the page has never been written
// and is formatted with the given id.
func (sm *StorageManager) LoadPage(fs FileSet, id PageID) (*Page, error) {
	buf := make([]byte, PageSize)
	if err := sm.ReadPage(fs, id, buf); err != nil {
		return nil, err
	}
	p, err := NewPage(buf)
	if err != nil {
		return nil, err
	}
	if p.IsUninitialized() {
		p.Init(id)
	}
	return p, nil
}

// SavePage writes the in-memory Page back to disk.
func (sm *StorageManager) SavePage(fs FileSet, id PageID, p *Page) error {
	return sm.WritePage(fs, id, p.Buf)
}

// CountPages computes total pages for a given FileSet by scanning all segments.
func (sm *StorageManager) CountPages(fs FileSet) (int32, error) {
	var total int32

	for segNo := int32(0); ; segNo++ {
		f, err := fs.OpenSegment(segNo)
		if err != nil {
			// Stop when the segment file does not exist
			if os.IsNotExist(err) {
				break
			}
			return 0, err
		}

		info, statErr := f.Stat()
		_ = f.Close()
		if statErr != nil {
			return 0, statErr
		}

		size := info.Size()
		if size <= 0 {
			// Empty segment - no pages here
			break
		}

		total += int32(size / int64(PageSize))
		if size < SegmentSize {
			// Last (partial) segment
			break
		}
	}

	return total, nil
}
