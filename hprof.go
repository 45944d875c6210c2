// ABOUTME: Root hprof package providing version information and package documentation
// ABOUTME: Top-level entry point for opening a memory-mapped HPROF dump

// Package hprof is a lazy, zero-copy decoder for JVM heap-dump files in the
// HPROF binary format. It parses the top-level record stream, the nested
// heap-dump-segment sub-record stream, and the instance field blob without
// copying the underlying dump into a second buffer, so dumps much larger
// than resident memory can be traversed.
package hprof

import "github.com/prateek/hprof/mmapfile"

// Version is the semantic version of this module.
const Version = "0.1.0-dev"

// Dump is the result of opening an HPROF file: the parsed header plus the
// mapped file, from which Records builds fresh top-level record iterators
// positioned at the first record.
//
// Dump does not own any additional memory beyond the mmapfile.File it was
// built from; callers must keep that file open for as long as any Dump,
// Record, or derived view is in use.
type Dump struct {
	Header Header
	file   *mmapfile.File
}

// Open memory-maps path and parses its HPROF header. The returned Dump's
// file must be closed by the caller via Dump.Close when no further records,
// segments, or field projections derived from it are needed.
func Open(path string) (*Dump, error) {
	f, err := mmapfile.Open(path)
	if err != nil {
		return nil, err
	}
	h, err := ParseHeader(f.Bytes())
	if err != nil {
		f.Close()
		return nil, err
	}
	return &Dump{Header: h, file: f}, nil
}

// Close releases the underlying memory mapping. After Close, every Record,
// segment sub-record, or field value derived from this Dump is invalid.
func (d *Dump) Close() error {
	return d.file.Close()
}

// Records returns a fresh top-level record scanner starting at the first
// record after the header. Independent calls to Records yield independent,
// forward-only scanners over the same underlying bytes.
func (d *Dump) Records() *RecordScanner {
	return newRecordScanner(d.file.Bytes(), d.Header.BodyOffset, d.Header.IDWidth)
}

// Segments walks the top-level record stream once and returns the byte
// range of every HeapDump/HeapDumpSegment body, suitable for handing to a
// caller-managed parallel decoder. See SegmentOffsets.
func (d *Dump) Segments() ([]SegmentRange, error) {
	return SegmentOffsets(d.file.Bytes(), d.Header.BodyOffset)
}

// Bytes exposes the raw mapped file, for callers that want to build their
// own views (e.g. to re-decode a segment range returned by Segments).
func (d *Dump) Bytes() []byte {
	return d.file.Bytes()
}
