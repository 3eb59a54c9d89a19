package storage

import (
	"fmt"

	"github.com/ductrann/heapstore/internal/bx"
)

// Header field offsets
const (
	offPageID    = 0
	offNextPage  = 4
	offPrevPage  = 8
	offSlotCount = 12
	offFillPtr   = 16
	offFreeSpace = 20
	offPageType  = 24
)

// RecordID is the logical handle for one record: the page it lives on
// and its slot number. It stays valid until that exact slot is deleted;
// CompactSlotDir may renumber slots and so invalidates held ids.
type RecordID struct {
	PageID PageID
	SlotNo int32
}

func (r RecordID) String() string {
	return fmt.Sprintf("%d.%d", r.PageID, r.SlotNo)
}

// Slot is one directory entry. Offset == Tombstone means deleted.
type Slot struct {
	Offset int32
	Length int32
}

// +------------------+ 0
// | header (28B)     |
// | slot directory   |  grows forward
// +------------------+ <-- HeaderSize + slotCount*SlotSize
// |                  |
// |   free space     |
// |                  |
// +------------------+ <-- capacity - fillPointer
// |  record data     |  grows backward, always contiguous
// +------------------+ capacity
//
// Page stores variable-length records inside a fixed-size buffer. It
// performs no locking and no I/O; the owner of the buffer (typically a
// pinned buffer-pool frame) must serialize access.
type Page struct {
	Buf []byte
}

// NewPage wraps buf without touching its contents. Call Init to format
// a fresh page; a page read back from disk is used as-is.
func NewPage(buf []byte) (*Page, error) {
	if len(buf) < MinPageCapacity {
		return nil, ErrWrongSize
	}
	return &Page{Buf: buf}, nil
}

func (p *Page) Capacity() int { return len(p.Buf) }

// ---- header getters/setters ----

func (p *Page) PageID() PageID      { return PageID(bx.I32At(p.Buf, offPageID)) }
func (p *Page) setPageID(id PageID) { bx.PutI32At(p.Buf, offPageID, int32(id)) }

func (p *Page) NextPage() PageID         { return PageID(bx.I32At(p.Buf, offNextPage)) }
func (p *Page) SetNextPage(id PageID)    { bx.PutI32At(p.Buf, offNextPage, int32(id)) }
func (p *Page) PrevPage() PageID         { return PageID(bx.I32At(p.Buf, offPrevPage)) }
func (p *Page) SetPrevPage(id PageID)    { bx.PutI32At(p.Buf, offPrevPage, int32(id)) }
func (p *Page) PageType() PageType       { return PageType(bx.I32At(p.Buf, offPageType)) }
func (p *Page) SetPageType(typ PageType) { bx.PutI32At(p.Buf, offPageType, int32(typ)) }

// SlotCount is the number of directory entries, tombstones included.
func (p *Page) SlotCount() int     { return int(bx.I32At(p.Buf, offSlotCount)) }
func (p *Page) setSlotCount(n int) { bx.PutI32At(p.Buf, offSlotCount, int32(n)) }

func (p *Page) fillPointer() int     { return int(bx.I32At(p.Buf, offFillPtr)) }
func (p *Page) setFillPointer(n int) { bx.PutI32At(p.Buf, offFillPtr, int32(n)) }

// AvailableSpace is the byte budget left for record payloads plus their
// slot descriptors. An insert of n bytes consumes n + SlotSize of it.
func (p *Page) AvailableSpace() int { return int(bx.I32At(p.Buf, offFreeSpace)) }
func (p *Page) setFreeSpace(n int)  { bx.PutI32At(p.Buf, offFreeSpace, int32(n)) }

// Init formats the page: identity set, chain links cleared, directory
// empty. Record bytes are left alone; nothing references them yet.
func (p *Page) Init(id PageID) {
	p.setPageID(id)
	p.SetNextPage(InvalidPageID)
	p.SetPrevPage(InvalidPageID)
	p.setSlotCount(0)
	p.setFillPointer(0)
	p.setFreeSpace(len(p.Buf) - HeaderSize)
	p.SetPageType(Slotted)
}

// IsUninitialized reports whether the buffer still holds the all-zero
// image a fresh segment page reads back as. Init leaves freeSpace > 0,
// so a formatted page can never look like this.
func (p *Page) IsUninitialized() bool {
	return p.SlotCount() == 0 && p.fillPointer() == 0 && p.AvailableSpace() == 0
}

// ---- slot directory ----

func (p *Page) slotOff(i int) int { return HeaderSize + i*SlotSize }

func (p *Page) getSlot(i int) Slot {
	o := p.slotOff(i)
	return Slot{
		Offset: bx.I32At(p.Buf, o),
		Length: bx.I32At(p.Buf, o+4),
	}
}

func (p *Page) putSlot(i int, s Slot) {
	o := p.slotOff(i)
	bx.PutI32At(p.Buf, o, s.Offset)
	bx.PutI32At(p.Buf, o+4, s.Length)
}

// checkRecord validates rid for record access and returns its slot.
func (p *Page) checkRecord(rid RecordID) (Slot, error) {
	if rid.PageID != p.PageID() {
		return Slot{}, ErrPageMismatch
	}
	if rid.SlotNo < 0 || int(rid.SlotNo) >= p.SlotCount() {
		return Slot{}, ErrBadSlot
	}
	s := p.getSlot(int(rid.SlotNo))
	if s.Offset == Tombstone {
		return Slot{}, ErrBadSlot
	}
	if s.Offset < 0 || s.Length < 0 || int(s.Offset)+int(s.Length) > len(p.Buf) {
		return Slot{}, ErrCorruption
	}
	return s, nil
}

// ---- records ----

// Insert appends rec to the data region and allocates a new slot for
// it. A live slot index is never reused: the returned id stays valid
// until that exact record is deleted. Zero-length records are legal.
func (p *Page) Insert(rec []byte) (RecordID, error) {
	length := len(rec)
	// The new slot descriptor must fit too, or the directory would
	// grow into record bytes.
	if length+SlotSize > p.AvailableSpace() {
		return RecordID{}, ErrNoSpace
	}

	fill := p.fillPointer() + length
	off := len(p.Buf) - fill
	copy(p.Buf[off:off+length], rec)

	n := p.SlotCount()
	p.putSlot(n, Slot{Offset: int32(off), Length: int32(length)})
	p.setSlotCount(n + 1)
	p.setFillPointer(fill)
	p.setFreeSpace(p.AvailableSpace() - length - SlotSize)

	return RecordID{PageID: p.PageID(), SlotNo: int32(n)}, nil
}

// Delete tombstones rid's slot and slides every record stored below the
// victim up by its length, so the data region stays contiguous from the
// high end and the reclaimed bytes are immediately insertable. Other
// records keep their ids; only their offsets move.
func (p *Page) Delete(rid RecordID) error {
	s, err := p.checkRecord(rid)
	if err != nil {
		return err
	}
	vOff, vLen := int(s.Offset), int(s.Length)

	p.putSlot(int(rid.SlotNo), Slot{Offset: Tombstone, Length: s.Length})

	// Records "past" the victim are exactly the bytes between the data
	// region's low edge and the victim's start. Compare by offset, not
	// slot index: after a CompactSlotDir the index order no longer
	// tracks the byte order.
	dataStart := len(p.Buf) - p.fillPointer()
	copy(p.Buf[dataStart+vLen:vOff+vLen], p.Buf[dataStart:vOff])
	for i := 0; i < p.SlotCount(); i++ {
		si := p.getSlot(i)
		if si.Offset == Tombstone || int(si.Offset) >= vOff {
			continue
		}
		si.Offset += int32(vLen)
		p.putSlot(i, si)
	}

	p.setFillPointer(p.fillPointer() - vLen)
	p.setFreeSpace(p.AvailableSpace() + vLen)
	return nil
}

// CompactSlotDir trims tombstoned entries out of the slot directory by
// moving live slots from the high end into tombstoned gaps at the low
// end, then shrinking slotCount to the live prefix. Record ids of any
// moved slot change; callers re-resolve via FirstRecord/NextRecord.
func (p *Page) CompactSlotDir() {
	n := p.SlotCount()
	start, end := 0, n-1
	for start <= end {
		if p.getSlot(start).Offset != Tombstone {
			start++
			continue
		}
		if p.getSlot(end).Offset == Tombstone {
			end--
			continue
		}
		p.putSlot(start, p.getSlot(end))
		start++
		end--
	}
	live := end + 1
	p.setFreeSpace(p.AvailableSpace() + (n-live)*SlotSize)
	p.setSlotCount(live)
}

// ---- iteration ----

// FirstRecord returns the id of the lowest-numbered live slot.
func (p *Page) FirstRecord() (RecordID, error) {
	return p.nextLive(0)
}

// NextRecord returns the first live slot after cur. ErrPageMismatch if
// cur belongs to another page, ErrNoMoreRecords when the scan is done.
func (p *Page) NextRecord(cur RecordID) (RecordID, error) {
	if cur.PageID != p.PageID() {
		return RecordID{}, ErrPageMismatch
	}
	return p.nextLive(int(cur.SlotNo) + 1)
}

func (p *Page) nextLive(from int) (RecordID, error) {
	if from < 0 {
		from = 0
	}
	for i := from; i < p.SlotCount(); i++ {
		if p.getSlot(i).Offset != Tombstone {
			return RecordID{PageID: p.PageID(), SlotNo: int32(i)}, nil
		}
	}
	return RecordID{}, ErrNoMoreRecords
}

// ---- retrieval ----

// GetRecord copies the record bytes out. The copy is safe to keep
// across later mutations of the page.
func (p *Page) GetRecord(rid RecordID) ([]byte, error) {
	view, err := p.ReturnRecord(rid)
	if err != nil {
		return nil, err
	}
	out := make([]byte, len(view))
	copy(out, view)
	return out, nil
}

// ReturnRecord yields a view straight into the page buffer. It is only
// valid until the next mutating call on this page.
func (p *Page) ReturnRecord(rid RecordID) ([]byte, error) {
	s, err := p.checkRecord(rid)
	if err != nil {
		return nil, err
	}
	return p.Buf[s.Offset : int(s.Offset)+int(s.Length)], nil
}

// ---- introspection ----

// IsEmpty reports whether no live record remains. A page full of
// tombstones is empty even though its slotCount is not zero.
func (p *Page) IsEmpty() bool {
	for i := 0; i < p.SlotCount(); i++ {
		if p.getSlot(i).Offset != Tombstone {
			return false
		}
	}
	return true
}

// NumRecords counts live slots.
func (p *Page) NumRecords() int {
	n := 0
	for i := 0; i < p.SlotCount(); i++ {
		if p.getSlot(i).Offset != Tombstone {
			n++
		}
	}
	return n
}
