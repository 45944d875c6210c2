// ABOUTME: Parallel segment splitter: enumerates heap-dump segment byte ranges up front
// ABOUTME: Lets a caller-managed worker pool decode each segment independently

package hprof

import "golang.org/x/sync/errgroup"

// SegmentRange is the byte range of one HeapDump or HeapDumpSegment body
// within the mapped file, relative to the start of that file (not the
// start of the body itself).
type SegmentRange struct {
	Offset int
	Length int
}

// SegmentOffsets walks the top-level record stream once, reading only each
// record's 9-byte header (tag + time delta + body length) and skipping
// over the body without materializing any sub-views, and returns the byte
// range of every HeapDump/HeapDumpSegment body it finds.
//
// HPROF segments tile the heap and sub-records never straddle a segment
// boundary, so these ranges are safe split points: each one can be handed
// to SegmentIter independently, in any order, by any number of goroutines,
// all sharing the same underlying mapped bytes.
func SegmentOffsets(buf []byte, bodyOffset int) ([]SegmentRange, error) {
	var ranges []SegmentRange

	c := newCursor(buf, IDWidth8) // width irrelevant: we never decode ids here
	c.off = bodyOffset

	for c.len() > 0 {
		tag, err := c.u8()
		if err != nil {
			return ranges, err
		}
		if _, err := c.u32(); err != nil { // time delta, unused
			return ranges, err
		}
		bodyLen, err := c.u32()
		if err != nil {
			return ranges, err
		}
		start := c.off
		if _, err := c.take(int(bodyLen)); err != nil {
			return ranges, err
		}
		if TopTag(tag) == TagHeapDump || TopTag(tag) == TagHeapDumpSegment {
			ranges = append(ranges, SegmentRange{Offset: start, Length: int(bodyLen)})
		}
	}

	return ranges, nil
}

// DecodeSegmentsParallel is a convenience caller-side orchestrator: it
// hands each segment range to fn on its own goroutine via an errgroup,
// waits for every goroutine to finish, and returns the first error any of
// them returned. Goroutines still running when another fails are not
// cancelled. The core splitter above deliberately owns
// no thread pool itself (spec.md §9 "parallelism is external"); this is
// one example of the kind of pool a caller might build on top of it.
func DecodeSegmentsParallel(buf []byte, w IDWidth, segments []SegmentRange, fn func(SegmentRange, *SegmentIter) error) error {
	var g errgroup.Group
	for _, seg := range segments {
		seg := seg
		g.Go(func() error {
			body := buf[seg.Offset : seg.Offset+seg.Length]
			return fn(seg, newSegmentIter(body, w))
		})
	}
	return g.Wait()
}
