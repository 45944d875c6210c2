// ABOUTME: Shared fixture-building helpers for constructing raw HPROF byte buffers
// ABOUTME: Big-endian fixed-width writers, mirroring how the format itself is laid out

package hprof

import (
	"bytes"
	"encoding/binary"
	"math"
)

func writeU8(buf *bytes.Buffer, v uint8)   { buf.WriteByte(v) }
func writeU16(buf *bytes.Buffer, v uint16) { _ = binary.Write(buf, binary.BigEndian, v) }
func writeU32(buf *bytes.Buffer, v uint32) { _ = binary.Write(buf, binary.BigEndian, v) }
func writeU64(buf *bytes.Buffer, v uint64) { _ = binary.Write(buf, binary.BigEndian, v) }
func writeI32(buf *bytes.Buffer, v int32)  { writeU32(buf, uint32(v)) }
func writeF32(buf *bytes.Buffer, v float32) { writeU32(buf, math.Float32bits(v)) }
func writeF64(buf *bytes.Buffer, v float64) { writeU64(buf, math.Float64bits(v)) }

// writeID writes an identifier at the given width.
func writeID(buf *bytes.Buffer, w IDWidth, v uint64) {
	switch w {
	case IDWidth4:
		writeU32(buf, uint32(v))
	case IDWidth8:
		writeU64(buf, v)
	default:
		panic("writeID: bad width")
	}
}

func writeCString(buf *bytes.Buffer, s string) {
	buf.WriteString(s)
	buf.WriteByte(0)
}

// writeHeader writes a complete HPROF preamble.
func writeHeader(buf *bytes.Buffer, tag string, w IDWidth, timestampMs uint64) {
	writeCString(buf, tag)
	writeU32(buf, uint32(w))
	writeU64(buf, timestampMs)
}

// writeTopRecord writes a complete top-level record: tag, time delta, body
// length, and body.
func writeTopRecord(buf *bytes.Buffer, tag uint8, timeDeltaUs uint32, body []byte) {
	writeU8(buf, tag)
	writeU32(buf, timeDeltaUs)
	writeU32(buf, uint32(len(body)))
	buf.Write(body)
}

// buildUtf8Body builds a Utf8 record body: an id followed by raw bytes.
func buildUtf8Body(w IDWidth, nameID uint64, s string) []byte {
	var b bytes.Buffer
	writeID(&b, w, nameID)
	b.WriteString(s)
	return b.Bytes()
}

// buildLoadClassBody builds a LoadClass record body.
func buildLoadClassBody(w IDWidth, classSerial uint32, classObjID uint64, stackSerial uint32, classNameID uint64) []byte {
	var b bytes.Buffer
	writeU32(&b, classSerial)
	writeID(&b, w, classObjID)
	writeU32(&b, stackSerial)
	writeID(&b, w, classNameID)
	return b.Bytes()
}

// classDumpFixture describes the shape of a GcClassDump sub-record;
// writeClassDump encodes it to wire bytes, so tests can cross-check the
// decoded shape against the one they wrote.
type classDumpFixture struct {
	classObjID, superClassObjID uint64
	instanceFields              []InstanceFieldDesc
}

func writeClassDump(buf *bytes.Buffer, w IDWidth, f classDumpFixture) {
	writeU8(buf, uint8(SubTagGcClassDump))
	writeID(buf, w, f.classObjID)
	writeU32(buf, 0) // stack serial
	writeID(buf, w, f.superClassObjID)
	writeID(buf, w, 0) // class loader
	writeID(buf, w, 0) // signer
	writeID(buf, w, 0) // protection domain
	writeID(buf, w, 0) // reserved
	writeID(buf, w, 0) // reserved
	writeU32(buf, 0)   // instance size bytes
	writeU16(buf, 0)   // const pool count
	writeU16(buf, 0)   // static field count
	writeU16(buf, uint16(len(f.instanceFields)))
	for _, fd := range f.instanceFields {
		writeID(buf, w, uint64(fd.NameId))
		writeU8(buf, uint8(fd.FieldType))
	}
}

func writeInstanceDump(buf *bytes.Buffer, w IDWidth, objID uint64, classObjID uint64, fieldBytes []byte) {
	writeU8(buf, uint8(SubTagGcInstanceDump))
	writeID(buf, w, objID)
	writeU32(buf, 0) // stack serial
	writeID(buf, w, classObjID)
	writeU32(buf, uint32(len(fieldBytes)))
	buf.Write(fieldBytes)
}

func writePrimArrayDump(buf *bytes.Buffer, w IDWidth, objID uint64, elemType FieldType, elements []byte, count int) {
	writeU8(buf, uint8(SubTagGcPrimArrayDump))
	writeID(buf, w, objID)
	writeU32(buf, 0) // stack serial
	writeU32(buf, uint32(count))
	writeU8(buf, uint8(elemType))
	buf.Write(elements)
}
