package storage

import (
	"bytes"
	"encoding/hex"
	"fmt"
	"io"
	"unicode"
	"unicode/utf8"
)

type errWriter struct {
	w   io.Writer
	err error
}

func (e *errWriter) Fprintf(format string, a ...any) {
	if e.err != nil {
		return
	}
	_, e.err = fmt.Fprintf(e.w, format, a...)
}

func (e *errWriter) Fprintln(a ...any) {
	if e.err != nil {
		return
	}
	_, e.err = fmt.Fprintln(e.w, a...)
}

func utf8Preview(b []byte) string {
	if !utf8.Valid(b) {
		return ""
	}
	var buf bytes.Buffer
	for _, r := range string(b) { // iterate by rune
		if unicode.IsPrint(r) && r != '\n' && r != '\r' && r != '\t' {
			buf.WriteRune(r)
		} else {
			buf.WriteByte('.')
		}
	}
	return buf.String()
}

// ASCII preview: printable -> itself, else '.'
func asciiPreview(b []byte) string {
	var buf bytes.Buffer
	for _, c := range b {
		r := rune(c)
		if unicode.IsPrint(r) && r != '\n' && r != '\r' && r != '\t' {
			buf.WriteRune(r)
		} else {
			buf.WriteByte('.')
		}
	}
	return buf.String()
}

// Debug prints the header, slot directory, and record previews to w.
func (p *Page) Debug(w io.Writer) error {
	ew := &errWriter{w: w}

	ew.Fprintf("=== Page Debug ===\n")
	ew.Fprintf("pageID=%d next=%d prev=%d type=%d\n",
		p.PageID(), p.NextPage(), p.PrevPage(), p.PageType())
	ew.Fprintf("capacity=%d freeSpace=%d fillPointer=%d slots=%d live=%d\n",
		p.Capacity(), p.AvailableSpace(), p.fillPointer(), p.SlotCount(), p.NumRecords())

	// slot directory
	ew.Fprintln("\n-- Slots --")
	if p.SlotCount() == 0 {
		ew.Fprintln("(none)")
	}
	for i := 0; i < p.SlotCount(); i++ {
		if ew.err != nil {
			break
		}
		s := p.getSlot(i)
		if s.Offset == Tombstone {
			ew.Fprintf("[%d] TOMBSTONE len=%d\n", i, s.Length)
			continue
		}
		ew.Fprintf("[%d] LIVE off=%d len=%d\n", i, s.Offset, s.Length)
	}

	// record previews
	ew.Fprintln("\n-- Records (preview) --")
	const maxPreview = 32
	if p.NumRecords() == 0 {
		ew.Fprintln("(none)")
	}
	for i := 0; i < p.SlotCount(); i++ {
		if ew.err != nil {
			break
		}
		rid := RecordID{PageID: p.PageID(), SlotNo: int32(i)}
		data, err := p.ReturnRecord(rid)
		if err != nil {
			continue // tombstoned
		}
		preview := data
		if len(preview) > maxPreview {
			preview = preview[:maxPreview]
		}
		ew.Fprintf("[%d] len=%d preview(hex)=%s\n", i, len(data), hex.EncodeToString(preview))

		if s := utf8Preview(preview); s != "" {
			ew.Fprintf("    preview(utf8)=\"%s\"\n", s)
		} else {
			ew.Fprintf("    preview(ascii)=\"%s\"\n", asciiPreview(preview))
		}
	}

	// free space window
	ew.Fprintf("\n-- FreeSpace --\nrange: [%d .. %d) size=%d bytes\n",
		HeaderSize+p.SlotCount()*SlotSize, p.Capacity()-p.fillPointer(), p.AvailableSpace())

	ew.Fprintln("=== End Page Debug ===")
	return ew.err
}

func (p *Page) DebugString() string {
	var b bytes.Buffer
	if err := p.Debug(&b); err != nil {
		// best-effort: surface the error in the output so callers see it
		_, _ = b.WriteString("\n<debug write error: " + err.Error() + ">\n")
	}
	return b.String()
}
