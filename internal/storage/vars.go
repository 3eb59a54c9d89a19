package storage

import "errors"

const (
	OneB  = 1 << 0  // 1
	OneKB = 1 << 10 // 1,024
	OneMB = 1 << 20 // 1,048,576
	OneGB = 1 << 30 // 1,073,741,824

	SegmentSize       = 1 << 30                // 1 GiB per segment file
	PageSize          = 1 << 13                // 8,192 (8 KiB), like PostgreSQL
	MaxPagePerSegment = SegmentSize / PageSize // 131,072 pages/segment

	// Fixed page header: pageId, nextPageId, prevPageId, slotCount,
	// fillPointer, freeSpace, pageType - all int32, little-endian.
	HeaderSize = 28
	SlotSize   = 8 // {offset:int32, length:int32}

	// Smallest buffer a Page will accept: header plus one slot.
	MinPageCapacity = HeaderSize + SlotSize
)

const (
	FileMode0644 = 0o644
	FileMode0755 = 0o755
)

// PageID is a logical page number within one file set.
// InvalidPageID marks the absent end of a heap-file chain.
type PageID int32

const InvalidPageID PageID = -1

// Tombstone marks a deleted slot's offset. The directory entry stays so
// record ids of later slots keep their meaning.
const Tombstone int32 = -1

// PageType tags what a page is used for. The page itself never
// interprets it; it exists for the layers above.
type PageType int32

const (
	Slotted PageType = iota + 1
	Directory
	Overflow
)

var (
	ErrWrongSize     = errors.New("page: buffer smaller than minimum page capacity")
	ErrNoSpace       = errors.New("page: not enough free space")
	ErrNoMoreRecords = errors.New("page: no more records")
	ErrPageMismatch  = errors.New("page: record id belongs to a different page")
	ErrBadSlot       = errors.New("page: slot out of range or deleted")
	ErrCorruption    = errors.New("page: corrupt slot or record bounds")
)
