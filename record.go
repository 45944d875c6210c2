// ABOUTME: Lazy top-level record iterator over the HPROF record stream
// ABOUTME: Produces a forward-only, finite sequence of length-prefixed records

package hprof

import "io"

// TopTag identifies a top-level record's variant.
type TopTag uint8

// Top-level tag -> variant, per the HPROF wire format.
const (
	TagUtf8            TopTag = 0x01
	TagLoadClass       TopTag = 0x02
	TagUnloadClass     TopTag = 0x03
	TagStackFrame      TopTag = 0x04
	TagStackTrace      TopTag = 0x05
	TagAllocSites      TopTag = 0x06
	TagHeapSummary     TopTag = 0x07
	TagStartThread     TopTag = 0x0A
	TagEndThread       TopTag = 0x0B
	TagHeapDump        TopTag = 0x0C
	TagCpuSamples      TopTag = 0x0D
	TagControlSettings TopTag = 0x0E
	TagHeapDumpSegment TopTag = 0x1C
	TagHeapDumpEnd     TopTag = 0x2C
)

// knownTopTag reports whether tag is one of the variants enumerated above.
func knownTopTag(tag uint8) bool {
	switch TopTag(tag) {
	case TagUtf8, TagLoadClass, TagUnloadClass, TagStackFrame, TagStackTrace,
		TagAllocSites, TagHeapSummary, TagStartThread, TagEndThread,
		TagHeapDump, TagCpuSamples, TagControlSettings,
		TagHeapDumpSegment, TagHeapDumpEnd:
		return true
	default:
		return false
	}
}

// TopRecord is a single top-level record: a tag, a timestamp delta, and a
// borrowed body slice. Fixed-shape variants (Utf8, LoadClass, ...) are
// decoded on demand via the AsXxx accessors; HeapDump/HeapDumpSegment
// expose their body as a further sub-record iterator via Segment.
type TopRecord struct {
	// Tag is the raw tag byte. Use Known to check it against TopTag.
	Tag uint8
	// TimeDeltaUs is microseconds since the dump's start time.
	TimeDeltaUs uint32
	// Body is the record's borrowed payload, exactly the declared body
	// length in bytes.
	Body []byte

	idWidth IDWidth
}

// Known reports whether Tag is a recognized TopTag. An unrecognized tag is
// not an error at the top level: its body is still available via Body, it
// simply has no structured accessor.
func (r TopRecord) Known() bool { return knownTopTag(r.Tag) }

// Segment returns a sub-record iterator over this record's body. Only
// valid for TagHeapDump and TagHeapDumpSegment records; callers should
// check Tag first.
func (r TopRecord) Segment() *SegmentIter {
	return newSegmentIter(r.Body, r.idWidth)
}

// RecordScanner is a bufio.Scanner-style forward-only iterator over the
// top-level record stream: call Scan in a loop, read Record after each
// true return, and check Err once Scan returns false.
type RecordScanner struct {
	c   *cursor
	rec TopRecord
	err error
	done bool
}

func newRecordScanner(buf []byte, bodyOffset int, w IDWidth) *RecordScanner {
	c := newCursor(buf, w)
	c.off = bodyOffset
	return &RecordScanner{c: c}
}

// Scan advances to the next record and reports whether one was produced.
// It returns false at clean end of input or after the first error; Err
// distinguishes the two.
func (s *RecordScanner) Scan() bool {
	if s.done {
		return false
	}
	if s.c.len() == 0 {
		s.done = true
		return false
	}

	tag, err := s.c.u8()
	if err != nil {
		s.done = true
		s.err = err
		return false
	}
	delta, err := s.c.u32()
	if err != nil {
		s.done = true
		s.err = err
		return false
	}
	bodyLen, err := s.c.u32()
	if err != nil {
		s.done = true
		s.err = err
		return false
	}
	body, err := s.c.take(int(bodyLen))
	if err != nil {
		s.done = true
		s.err = err
		return false
	}

	s.rec = TopRecord{Tag: tag, TimeDeltaUs: delta, Body: body, idWidth: s.c.w}
	return true
}

// Record returns the record produced by the most recent successful Scan.
func (s *RecordScanner) Record() TopRecord { return s.rec }

// Err returns the first error encountered, if any. io.EOF is never
// returned: clean end of input simply makes Scan return false with a nil
// Err.
func (s *RecordScanner) Err() error {
	if s.err == io.EOF {
		return nil
	}
	return s.err
}
