// ABOUTME: Structured views over fixed-shape top-level record bodies
// ABOUTME: One decoder per tag in spec.md's record body table

package hprof

// Utf8Record pairs a symbol id with its borrowed, unvalidated UTF-8 bytes.
type Utf8Record struct {
	NameId Id
	Bytes  []byte
}

// AsUtf8 decodes a Utf8 record body: an id followed by the remaining bytes
// verbatim (length implied by the enclosing record length minus the id
// width).
func (r TopRecord) AsUtf8() (Utf8Record, error) {
	c := newCursor(r.Body, r.idWidth)
	id, err := c.id()
	if err != nil {
		return Utf8Record{}, err
	}
	return Utf8Record{NameId: id, Bytes: c.remaining()}, nil
}

// LoadClass records a class being loaded.
type LoadClass struct {
	ClassSerial  uint32
	ClassObjId   Id
	StackSerial  uint32
	ClassNameId  Id
}

// AsLoadClass decodes a LoadClass record body.
func (r TopRecord) AsLoadClass() (LoadClass, error) {
	c := newCursor(r.Body, r.idWidth)
	var lc LoadClass
	var err error
	if lc.ClassSerial, err = c.u32(); err != nil {
		return LoadClass{}, err
	}
	if lc.ClassObjId, err = c.id(); err != nil {
		return LoadClass{}, err
	}
	if lc.StackSerial, err = c.u32(); err != nil {
		return LoadClass{}, err
	}
	if lc.ClassNameId, err = c.id(); err != nil {
		return LoadClass{}, err
	}
	return lc, nil
}

// UnloadClass records a class being unloaded, identified by serial.
type UnloadClass struct {
	ClassSerial uint32
}

// AsUnloadClass decodes an UnloadClass record body.
func (r TopRecord) AsUnloadClass() (UnloadClass, error) {
	c := newCursor(r.Body, r.idWidth)
	serial, err := c.u32()
	if err != nil {
		return UnloadClass{}, err
	}
	return UnloadClass{ClassSerial: serial}, nil
}

// Sentinel values for StackFrame.LineNo.
const (
	LineNoUnknown  int32 = -1
	LineNoCompiled int32 = -2
	LineNoNative   int32 = -3
)

// StackFrame is one frame in a stack trace.
type StackFrame struct {
	FrameId      Id
	MethodNameId Id
	MethodSigId  Id
	SourceFileId Id
	ClassSerial  uint32
	LineNo       int32
}

// AsStackFrame decodes a StackFrame record body.
func (r TopRecord) AsStackFrame() (StackFrame, error) {
	c := newCursor(r.Body, r.idWidth)
	var sf StackFrame
	var err error
	if sf.FrameId, err = c.id(); err != nil {
		return StackFrame{}, err
	}
	if sf.MethodNameId, err = c.id(); err != nil {
		return StackFrame{}, err
	}
	if sf.MethodSigId, err = c.id(); err != nil {
		return StackFrame{}, err
	}
	if sf.SourceFileId, err = c.id(); err != nil {
		return StackFrame{}, err
	}
	if sf.ClassSerial, err = c.u32(); err != nil {
		return StackFrame{}, err
	}
	if sf.LineNo, err = c.i32(); err != nil {
		return StackFrame{}, err
	}
	return sf, nil
}

// StackTrace is a thread's stack trace: a sequence of stack-frame ids.
type StackTrace struct {
	StackSerial  uint32
	ThreadSerial uint32
	FrameIds     []Id
}

// AsStackTrace decodes a StackTrace record body. The frame id count is a
// declared u32; if the tail doesn't contain exactly count*W bytes this
// fails with InconsistentLengthError ("malformed stack trace").
func (r TopRecord) AsStackTrace() (StackTrace, error) {
	c := newCursor(r.Body, r.idWidth)
	var st StackTrace
	var err error
	if st.StackSerial, err = c.u32(); err != nil {
		return StackTrace{}, err
	}
	if st.ThreadSerial, err = c.u32(); err != nil {
		return StackTrace{}, err
	}
	count, err := c.u32()
	if err != nil {
		return StackTrace{}, err
	}

	want := int(count) * r.idWidth.Size()
	if c.len() != want {
		return StackTrace{}, &InconsistentLengthError{
			What:      "stack trace frame_ids",
			Declared:  want,
			Available: c.len(),
		}
	}

	st.FrameIds = make([]Id, count)
	for i := range st.FrameIds {
		id, err := c.id()
		if err != nil {
			return StackTrace{}, err
		}
		st.FrameIds[i] = id
	}
	return st, nil
}

// StartThread records a thread starting.
type StartThread struct {
	ThreadSerial            uint32
	ThreadObjId             Id
	StackSerial             uint32
	ThreadNameId            Id
	ThreadGroupNameId       Id
	ThreadParentGroupNameId Id
}

// AsStartThread decodes a StartThread record body.
func (r TopRecord) AsStartThread() (StartThread, error) {
	c := newCursor(r.Body, r.idWidth)
	var st StartThread
	var err error
	if st.ThreadSerial, err = c.u32(); err != nil {
		return StartThread{}, err
	}
	if st.ThreadObjId, err = c.id(); err != nil {
		return StartThread{}, err
	}
	if st.StackSerial, err = c.u32(); err != nil {
		return StartThread{}, err
	}
	if st.ThreadNameId, err = c.id(); err != nil {
		return StartThread{}, err
	}
	if st.ThreadGroupNameId, err = c.id(); err != nil {
		return StartThread{}, err
	}
	if st.ThreadParentGroupNameId, err = c.id(); err != nil {
		return StartThread{}, err
	}
	return st, nil
}

// EndThread records a thread ending, identified by serial.
type EndThread struct {
	ThreadSerial uint32
}

// AsEndThread decodes an EndThread record body.
func (r TopRecord) AsEndThread() (EndThread, error) {
	c := newCursor(r.Body, r.idWidth)
	serial, err := c.u32()
	if err != nil {
		return EndThread{}, err
	}
	return EndThread{ThreadSerial: serial}, nil
}

// HeapSummary carries aggregate heap statistics.
type HeapSummary struct {
	TotalLiveBytes        uint32
	TotalLiveInstances     uint32
	TotalBytesAllocated    uint64
	TotalInstancesAllocated uint64
}

// AsHeapSummary decodes a HeapSummary record body.
func (r TopRecord) AsHeapSummary() (HeapSummary, error) {
	c := newCursor(r.Body, r.idWidth)
	var hs HeapSummary
	var err error
	if hs.TotalLiveBytes, err = c.u32(); err != nil {
		return HeapSummary{}, err
	}
	if hs.TotalLiveInstances, err = c.u32(); err != nil {
		return HeapSummary{}, err
	}
	if hs.TotalBytesAllocated, err = c.u64(); err != nil {
		return HeapSummary{}, err
	}
	if hs.TotalInstancesAllocated, err = c.u64(); err != nil {
		return HeapSummary{}, err
	}
	return hs, nil
}

// ControlSettings records debugger-configured dump settings.
type ControlSettings struct {
	BitmaskFlags    uint32
	StackTraceDepth uint16
}

// AsControlSettings decodes a ControlSettings record body.
func (r TopRecord) AsControlSettings() (ControlSettings, error) {
	c := newCursor(r.Body, r.idWidth)
	var cs ControlSettings
	var err error
	if cs.BitmaskFlags, err = c.u32(); err != nil {
		return ControlSettings{}, err
	}
	if cs.StackTraceDepth, err = c.u16(); err != nil {
		return ControlSettings{}, err
	}
	return cs, nil
}

// AllocSiteEntry is one bucket in an AllocSites record.
type AllocSiteEntry struct {
	IsArray              uint8
	ClassSerial          uint32
	StackSerial          uint32
	NumLiveBytes         uint32
	NumLiveInstances     uint32
	NumBytesAllocated    uint32
	NumInstancesAllocated uint32
}

const allocSiteEntrySize = 1 + 4 + 4 + 4 + 4 + 4 + 4

// AllocSites is the ALLOC_SITES record: header fields plus a variable
// number of fixed-size buckets, accessed by index without eagerly
// materializing the slice.
type AllocSites struct {
	BitmaskFlags           uint16
	CutoffRatio            float32
	TotalLiveBytes         uint32
	TotalLiveInstances     uint32
	TotalBytesAllocated    uint64
	TotalInstancesAllocated uint64

	body     []byte // borrowed, starts at the first entry
	numSites uint32
}

// AsAllocSites decodes an AllocSites record's fixed header. Call NumSites
// and Site to access the bucket array.
func (r TopRecord) AsAllocSites() (AllocSites, error) {
	c := newCursor(r.Body, r.idWidth)
	var as AllocSites
	var err error
	if as.BitmaskFlags, err = c.u16(); err != nil {
		return AllocSites{}, err
	}
	if as.CutoffRatio, err = c.f32(); err != nil {
		return AllocSites{}, err
	}
	if as.TotalLiveBytes, err = c.u32(); err != nil {
		return AllocSites{}, err
	}
	if as.TotalLiveInstances, err = c.u32(); err != nil {
		return AllocSites{}, err
	}
	if as.TotalBytesAllocated, err = c.u64(); err != nil {
		return AllocSites{}, err
	}
	if as.TotalInstancesAllocated, err = c.u64(); err != nil {
		return AllocSites{}, err
	}
	if as.numSites, err = c.u32(); err != nil {
		return AllocSites{}, err
	}
	as.body = c.remaining()
	return as, nil
}

// NumSites returns the declared number of allocation-site buckets.
func (as AllocSites) NumSites() int { return int(as.numSites) }

// Site decodes the i-th allocation-site bucket, validating against the
// record's actual body length.
func (as AllocSites) Site(i int) (AllocSiteEntry, error) {
	if i < 0 || i >= as.NumSites() {
		return AllocSiteEntry{}, &InconsistentLengthError{
			What: "alloc site index", Declared: as.NumSites(), Available: i + 1,
		}
	}
	off := i * allocSiteEntrySize
	if off+allocSiteEntrySize > len(as.body) {
		return AllocSiteEntry{}, &InconsistentLengthError{
			What: "alloc site entry", Declared: off + allocSiteEntrySize, Available: len(as.body),
		}
	}
	c := newCursor(as.body[off:off+allocSiteEntrySize], IDWidth8)
	var e AllocSiteEntry
	var err error
	if e.IsArray, err = c.u8(); err != nil {
		return AllocSiteEntry{}, err
	}
	if e.ClassSerial, err = c.u32(); err != nil {
		return AllocSiteEntry{}, err
	}
	if e.StackSerial, err = c.u32(); err != nil {
		return AllocSiteEntry{}, err
	}
	if e.NumLiveBytes, err = c.u32(); err != nil {
		return AllocSiteEntry{}, err
	}
	if e.NumLiveInstances, err = c.u32(); err != nil {
		return AllocSiteEntry{}, err
	}
	if e.NumBytesAllocated, err = c.u32(); err != nil {
		return AllocSiteEntry{}, err
	}
	if e.NumInstancesAllocated, err = c.u32(); err != nil {
		return AllocSiteEntry{}, err
	}
	return e, nil
}

// CpuSampleEntry is one bucket in a CpuSamples record.
type CpuSampleEntry struct {
	NumSamples       uint32
	StackTraceSerial uint32
}

const cpuSampleEntrySize = 4 + 4

// CpuSamples is the CPU_SAMPLES record: a total sample count plus a
// variable number of (numSamples, stackTraceSerial) buckets.
type CpuSamples struct {
	TotalSamples uint32

	body      []byte
	numTraces uint32
}

// AsCpuSamples decodes a CpuSamples record's fixed header.
func (r TopRecord) AsCpuSamples() (CpuSamples, error) {
	c := newCursor(r.Body, r.idWidth)
	var cs CpuSamples
	var err error
	if cs.TotalSamples, err = c.u32(); err != nil {
		return CpuSamples{}, err
	}
	if cs.numTraces, err = c.u32(); err != nil {
		return CpuSamples{}, err
	}
	cs.body = c.remaining()
	return cs, nil
}

// NumTraces returns the declared number of sample buckets.
func (cs CpuSamples) NumTraces() int { return int(cs.numTraces) }

// Trace decodes the i-th sample bucket, validating against the record's
// actual body length.
func (cs CpuSamples) Trace(i int) (CpuSampleEntry, error) {
	if i < 0 || i >= cs.NumTraces() {
		return CpuSampleEntry{}, &InconsistentLengthError{
			What: "cpu sample trace index", Declared: cs.NumTraces(), Available: i + 1,
		}
	}
	off := i * cpuSampleEntrySize
	if off+cpuSampleEntrySize > len(cs.body) {
		return CpuSampleEntry{}, &InconsistentLengthError{
			What: "cpu sample entry", Declared: off + cpuSampleEntrySize, Available: len(cs.body),
		}
	}
	c := newCursor(cs.body[off:off+cpuSampleEntrySize], IDWidth8)
	var e CpuSampleEntry
	var err error
	if e.NumSamples, err = c.u32(); err != nil {
		return CpuSampleEntry{}, err
	}
	if e.StackTraceSerial, err = c.u32(); err != nil {
		return CpuSampleEntry{}, err
	}
	return e, nil
}
