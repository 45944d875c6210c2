// ABOUTME: Heap-dump segment sub-record iterator
// ABOUTME: Decodes the nested GC-root/class/instance/array stream inside a HeapDump(Segment) body

package hprof

// SubTag identifies a heap-dump sub-record's variant.
type SubTag uint8

// Heap-dump sub-tag -> variant, per the HPROF wire format.
const (
	SubTagRootUnknown     SubTag = 0xFF
	SubTagRootJNIGlobal    SubTag = 0x01
	SubTagRootJNILocal     SubTag = 0x02
	SubTagRootJavaFrame    SubTag = 0x03
	SubTagRootNativeStack  SubTag = 0x04
	SubTagRootStickyClass  SubTag = 0x05
	SubTagRootThreadBlock  SubTag = 0x06
	SubTagRootMonitorUsed  SubTag = 0x07
	SubTagRootThreadObj    SubTag = 0x08
	SubTagGcClassDump      SubTag = 0x20
	SubTagGcInstanceDump   SubTag = 0x21
	SubTagGcObjArrayDump   SubTag = 0x22
	SubTagGcPrimArrayDump  SubTag = 0x23
)

// FieldType is a basic-type tag shared by instance fields, constant-pool
// entries, static fields, and primitive arrays.
type FieldType uint8

// Basic-type tag -> (type, byte size with id-width W), per the HPROF wire
// format.
const (
	FieldTypeObject  FieldType = 0x02
	FieldTypeBoolean FieldType = 0x04
	FieldTypeChar    FieldType = 0x05
	FieldTypeFloat   FieldType = 0x06
	FieldTypeDouble  FieldType = 0x07
	FieldTypeByte    FieldType = 0x08
	FieldTypeShort   FieldType = 0x09
	FieldTypeInt     FieldType = 0x0A
	FieldTypeLong    FieldType = 0x0B
)

// Size returns the on-wire byte size of a value of this type, given the
// dump's identifier width (only Object depends on it).
func (t FieldType) Size(w IDWidth) (int, error) {
	switch t {
	case FieldTypeObject:
		return w.Size(), nil
	case FieldTypeBoolean, FieldTypeByte:
		return 1, nil
	case FieldTypeChar, FieldTypeShort:
		return 2, nil
	case FieldTypeFloat, FieldTypeInt:
		return 4, nil
	case FieldTypeDouble, FieldTypeLong:
		return 8, nil
	default:
		return 0, ErrBadSubTag
	}
}

// FieldValue is a decoded field value: Object carries a reference id,
// every other variant carries its Go-native primitive equivalent. Exactly
// one field is meaningful, selected by the FieldType it was decoded with.
type FieldValue struct {
	Type    FieldType
	Object  Id
	Bool    bool
	Char    uint16
	Float   float32
	Double  float64
	Byte    int8
	Short   int16
	Int     int32
	Long    int64
}

func decodeFieldValue(c *cursor, t FieldType) (FieldValue, error) {
	switch t {
	case FieldTypeObject:
		v, err := c.id()
		return FieldValue{Type: t, Object: v}, err
	case FieldTypeBoolean:
		v, err := c.u8()
		return FieldValue{Type: t, Bool: v != 0}, err
	case FieldTypeChar:
		v, err := c.u16()
		return FieldValue{Type: t, Char: v}, err
	case FieldTypeFloat:
		v, err := c.f32()
		return FieldValue{Type: t, Float: v}, err
	case FieldTypeDouble:
		v, err := c.f64()
		return FieldValue{Type: t, Double: v}, err
	case FieldTypeByte:
		v, err := c.u8()
		return FieldValue{Type: t, Byte: int8(v)}, err
	case FieldTypeShort:
		v, err := c.u16()
		return FieldValue{Type: t, Short: int16(v)}, err
	case FieldTypeInt:
		v, err := c.u32()
		return FieldValue{Type: t, Int: int32(v)}, err
	case FieldTypeLong:
		v, err := c.u64()
		return FieldValue{Type: t, Long: int64(v)}, err
	default:
		return FieldValue{}, ErrBadSubTag
	}
}

// RootRecord covers every GC-root sub-record variant. Which fields are
// meaningful depends on Tag; fields irrelevant to a given tag are zero.
type RootRecord struct {
	Tag SubTag

	ObjId Id

	// RootUnknown's trailing bytes when the tag itself is unrecognized;
	// see SubTagRootUnknown.
	Unknown []byte

	JniRef       Id // RootJNIGlobal
	ThreadSerial uint32
	FrameNum     uint32 // RootJNILocal, RootJavaFrame (0xFFFFFFFF if unknown)
	StackSerial  uint32 // RootThreadObj
}

// ConstPoolEntry is one constant-pool slot in a ClassDump.
type ConstPoolEntry struct {
	Index uint16
	Value FieldValue
}

// StaticField is one static field slot in a ClassDump.
type StaticField struct {
	NameId Id
	Value  FieldValue
}

// InstanceFieldDesc describes (without a value) one instance field slot
// declared by a class.
type InstanceFieldDesc struct {
	NameId    Id
	FieldType FieldType
}

// ClassDump is the GC_CLASS_DUMP sub-record.
type ClassDump struct {
	ClassObjId            Id
	StackSerial            uint32
	SuperClassObjId        Id
	ClassLoaderObjId       Id
	SignerObjId            Id
	ProtectionDomainObjId  Id
	InstanceSizeBytes      uint32
	ConstPool              []ConstPoolEntry
	StaticFields           []StaticField
	InstanceFields         []InstanceFieldDesc
}

// InstanceDump is the GC_INSTANCE_DUMP sub-record. FieldBytes is the
// instance's opaque field-value blob; decode it via InstanceFields, which
// needs the class chain.
type InstanceDump struct {
	ObjId       Id
	StackSerial uint32
	ClassObjId  Id
	FieldBytes  []byte
}

// ObjArrayDump is the GC_OBJ_ARRAY_DUMP sub-record: Elements is
// ElementCount*W borrowed bytes, one element id each.
type ObjArrayDump struct {
	ObjId           Id
	StackSerial     uint32
	ElementCount    uint32
	ElementClassObj Id
	Elements        []byte
}

// Element decodes the i-th id in an object array.
func (a ObjArrayDump) Element(i int, w IDWidth) (Id, error) {
	sz := w.Size()
	off := i * sz
	if i < 0 || i >= int(a.ElementCount) || off+sz > len(a.Elements) {
		return 0, &InconsistentLengthError{What: "object array element index", Declared: int(a.ElementCount), Available: i + 1}
	}
	c := newCursor(a.Elements[off:off+sz], w)
	return c.id()
}

// PrimArrayDump is the GC_PRIM_ARRAY_DUMP sub-record: Elements is
// ElementCount*sizeof(ElementType) borrowed bytes.
type PrimArrayDump struct {
	ObjId        Id
	StackSerial  uint32
	ElementCount uint32
	ElementType  FieldType
	Elements     []byte
}

// Element decodes the i-th primitive value in a primitive array.
func (a PrimArrayDump) Element(i int) (FieldValue, error) {
	sz, err := a.ElementType.Size(IDWidth8) // Object-typed prim arrays don't exist; width unused
	if err != nil {
		return FieldValue{}, err
	}
	off := i * sz
	if i < 0 || i >= int(a.ElementCount) || off+sz > len(a.Elements) {
		return FieldValue{}, &InconsistentLengthError{What: "primitive array element index", Declared: int(a.ElementCount), Available: i + 1}
	}
	c := newCursor(a.Elements[off:off+sz], IDWidth8)
	return decodeFieldValue(c, a.ElementType)
}

// SubRecord is one decoded entry from a heap-dump segment body. Exactly one
// of the pointer fields is non-nil, selected by Tag.
type SubRecord struct {
	Tag      SubTag
	Root     *RootRecord
	Class    *ClassDump
	Instance *InstanceDump
	ObjArray *ObjArrayDump
	PrimArray *PrimArrayDump
}

// SegmentIter is a forward-only iterator over the sub-records inside a
// HeapDump or HeapDumpSegment body.
type SegmentIter struct {
	c    *cursor
	rec  SubRecord
	err  error
	done bool
}

func newSegmentIter(body []byte, w IDWidth) *SegmentIter {
	return &SegmentIter{c: newCursor(body, w)}
}

// Scan advances to the next sub-record. It returns false at a clean
// boundary (the body is exactly exhausted), after an error, or after
// surfacing an unrecognized sub-tag as RootUnknown (per spec.md §4.5, an
// unrecognized sub-tag is fatal: sub-record length is not self-describing
// so the iterator cannot skip past it).
func (s *SegmentIter) Scan() bool {
	if s.done {
		return false
	}
	if s.c.len() == 0 {
		s.done = true
		return false
	}
	// The smallest possible sub-record is a 1-byte tag plus a single id
	// (a sticky-class or monitor-used root).
	if s.c.len() < 1+s.c.w.Size() {
		s.done = true
		s.err = ErrTrailingGarbage
		return false
	}

	tagByte, err := s.c.u8()
	if err != nil {
		s.done, s.err = true, err
		return false
	}
	tag := SubTag(tagByte)

	var rec SubRecord
	rec.Tag = tag
	switch tag {
	case SubTagRootJNIGlobal:
		r := &RootRecord{Tag: tag}
		if r.ObjId, err = s.c.id(); err == nil {
			r.JniRef, err = s.c.id()
		}
		rec.Root = r
	case SubTagRootJNILocal:
		r := &RootRecord{Tag: tag}
		if r.ObjId, err = s.c.id(); err == nil {
			if r.ThreadSerial, err = s.c.u32(); err == nil {
				r.FrameNum, err = s.c.u32()
			}
		}
		rec.Root = r
	case SubTagRootJavaFrame:
		r := &RootRecord{Tag: tag}
		if r.ObjId, err = s.c.id(); err == nil {
			if r.ThreadSerial, err = s.c.u32(); err == nil {
				r.FrameNum, err = s.c.u32()
			}
		}
		rec.Root = r
	case SubTagRootNativeStack:
		r := &RootRecord{Tag: tag}
		if r.ObjId, err = s.c.id(); err == nil {
			r.ThreadSerial, err = s.c.u32()
		}
		rec.Root = r
	case SubTagRootStickyClass:
		r := &RootRecord{Tag: tag}
		r.ObjId, err = s.c.id()
		rec.Root = r
	case SubTagRootThreadBlock:
		r := &RootRecord{Tag: tag}
		if r.ObjId, err = s.c.id(); err == nil {
			r.ThreadSerial, err = s.c.u32()
		}
		rec.Root = r
	case SubTagRootMonitorUsed:
		r := &RootRecord{Tag: tag}
		r.ObjId, err = s.c.id()
		rec.Root = r
	case SubTagRootThreadObj:
		r := &RootRecord{Tag: tag}
		if r.ObjId, err = s.c.id(); err == nil {
			if r.ThreadSerial, err = s.c.u32(); err == nil {
				r.StackSerial, err = s.c.u32()
			}
		}
		rec.Root = r
	case SubTagGcClassDump:
		rec.Class, err = s.scanClassDump()
	case SubTagGcInstanceDump:
		rec.Instance, err = s.scanInstanceDump()
	case SubTagGcObjArrayDump:
		rec.ObjArray, err = s.scanObjArrayDump()
	case SubTagGcPrimArrayDump:
		rec.PrimArray, err = s.scanPrimArrayDump()
	default:
		// Unrecognized sub-tag: surface it as RootUnknown without
		// attempting to advance further, and stop.
		rec.Tag = SubTagRootUnknown
		rec.Root = &RootRecord{Tag: SubTagRootUnknown, Unknown: s.c.remaining()}
		s.rec = rec
		s.done = true
		s.err = ErrBadSubTag
		return true
	}

	if err != nil {
		s.done, s.err = true, err
		return false
	}
	s.rec = rec
	return true
}

// Record returns the sub-record produced by the most recent successful
// Scan.
func (s *SegmentIter) Record() SubRecord { return s.rec }

// Err returns the first error encountered, if any.
func (s *SegmentIter) Err() error { return s.err }

func (s *SegmentIter) scanClassDump() (*ClassDump, error) {
	cd := &ClassDump{}
	var err error
	if cd.ClassObjId, err = s.c.id(); err != nil {
		return nil, err
	}
	if cd.StackSerial, err = s.c.u32(); err != nil {
		return nil, err
	}
	if cd.SuperClassObjId, err = s.c.id(); err != nil {
		return nil, err
	}
	if cd.ClassLoaderObjId, err = s.c.id(); err != nil {
		return nil, err
	}
	if cd.SignerObjId, err = s.c.id(); err != nil {
		return nil, err
	}
	if cd.ProtectionDomainObjId, err = s.c.id(); err != nil {
		return nil, err
	}
	// Two reserved ids.
	if _, err = s.c.id(); err != nil {
		return nil, err
	}
	if _, err = s.c.id(); err != nil {
		return nil, err
	}
	if cd.InstanceSizeBytes, err = s.c.u32(); err != nil {
		return nil, err
	}

	cpCount, err := s.c.u16()
	if err != nil {
		return nil, err
	}
	cd.ConstPool = make([]ConstPoolEntry, cpCount)
	for i := range cd.ConstPool {
		idx, err := s.c.u16()
		if err != nil {
			return nil, err
		}
		ft, err := s.c.u8()
		if err != nil {
			return nil, err
		}
		v, err := decodeFieldValue(s.c, FieldType(ft))
		if err != nil {
			return nil, err
		}
		cd.ConstPool[i] = ConstPoolEntry{Index: idx, Value: v}
	}

	staticCount, err := s.c.u16()
	if err != nil {
		return nil, err
	}
	cd.StaticFields = make([]StaticField, staticCount)
	for i := range cd.StaticFields {
		name, err := s.c.id()
		if err != nil {
			return nil, err
		}
		ft, err := s.c.u8()
		if err != nil {
			return nil, err
		}
		v, err := decodeFieldValue(s.c, FieldType(ft))
		if err != nil {
			return nil, err
		}
		cd.StaticFields[i] = StaticField{NameId: name, Value: v}
	}

	instCount, err := s.c.u16()
	if err != nil {
		return nil, err
	}
	cd.InstanceFields = make([]InstanceFieldDesc, instCount)
	for i := range cd.InstanceFields {
		name, err := s.c.id()
		if err != nil {
			return nil, err
		}
		ft, err := s.c.u8()
		if err != nil {
			return nil, err
		}
		cd.InstanceFields[i] = InstanceFieldDesc{NameId: name, FieldType: FieldType(ft)}
	}

	return cd, nil
}

func (s *SegmentIter) scanInstanceDump() (*InstanceDump, error) {
	id := &InstanceDump{}
	var err error
	if id.ObjId, err = s.c.id(); err != nil {
		return nil, err
	}
	if id.StackSerial, err = s.c.u32(); err != nil {
		return nil, err
	}
	if id.ClassObjId, err = s.c.id(); err != nil {
		return nil, err
	}
	byteCount, err := s.c.u32()
	if err != nil {
		return nil, err
	}
	id.FieldBytes, err = s.c.take(int(byteCount))
	if err != nil {
		return nil, err
	}
	return id, nil
}

func (s *SegmentIter) scanObjArrayDump() (*ObjArrayDump, error) {
	a := &ObjArrayDump{}
	var err error
	if a.ObjId, err = s.c.id(); err != nil {
		return nil, err
	}
	if a.StackSerial, err = s.c.u32(); err != nil {
		return nil, err
	}
	if a.ElementCount, err = s.c.u32(); err != nil {
		return nil, err
	}
	if a.ElementClassObj, err = s.c.id(); err != nil {
		return nil, err
	}
	a.Elements, err = s.c.take(int(a.ElementCount) * s.c.w.Size())
	if err != nil {
		return nil, err
	}
	return a, nil
}

func (s *SegmentIter) scanPrimArrayDump() (*PrimArrayDump, error) {
	a := &PrimArrayDump{}
	var err error
	if a.ObjId, err = s.c.id(); err != nil {
		return nil, err
	}
	if a.StackSerial, err = s.c.u32(); err != nil {
		return nil, err
	}
	if a.ElementCount, err = s.c.u32(); err != nil {
		return nil, err
	}
	elemTypeByte, err := s.c.u8()
	if err != nil {
		return nil, err
	}
	a.ElementType = FieldType(elemTypeByte)
	elemSize, err := a.ElementType.Size(s.c.w)
	if err != nil {
		return nil, err
	}
	a.Elements, err = s.c.take(int(a.ElementCount) * elemSize)
	if err != nil {
		return nil, err
	}
	return a, nil
}
