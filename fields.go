// ABOUTME: Instance field projection over an instance dump's field-value blob
// ABOUTME: Walks the superclass chain, consuming field_bytes per class's declared field shape

package hprof

import (
	"errors"
	"fmt"
)

// ErrClassNotFound is returned by InstanceFields when the supplied
// classOf lookup cannot resolve a class id encountered while walking the
// superclass chain. The library deliberately builds no such index itself
// (spec.md §9): resolving ids to ClassDumps is the caller's job.
var ErrClassNotFound = errors.New("hprof: class lookup failed while walking superclass chain")

// FieldEntry is one projected instance field: which class declared it,
// its name id, and its decoded value.
type FieldEntry struct {
	ClassObjId Id
	NameId     Id
	Value      FieldValue
}

// ClassLookup resolves a class object id to its ClassDump, as previously
// decoded from a GC_CLASS_DUMP sub-record. Callers build this themselves
// (e.g. a map keyed by ClassObjId accumulated while scanning segments);
// this package holds no such index.
type ClassLookup func(Id) (ClassDump, bool)

// InstanceFields walks inst's class and superclass chain, emitting each
// declared instance field in turn: immediate-class fields first, then its
// direct super, then its super, matching HPROF emission order.
//
// It fails with ErrFieldBlobMismatch (wrapped with detail) if the blob
// runs out before the chain completes or has bytes left over once it does,
// with ErrClassNotFound if classOf cannot resolve a class id in the chain,
// and with ErrSuperclassCycle if a class is revisited during the walk.
func InstanceFields(inst InstanceDump, w IDWidth, classOf ClassLookup) ([]FieldEntry, error) {
	c := newCursor(inst.FieldBytes, w)
	seen := make(map[Id]bool)

	var out []FieldEntry
	classID := inst.ClassObjId
	for classID != NullId {
		if seen[classID] {
			return nil, ErrSuperclassCycle
		}
		seen[classID] = true

		cls, ok := classOf(classID)
		if !ok {
			return nil, fmt.Errorf("%w: class %#x", ErrClassNotFound, uint64(classID))
		}

		for _, fd := range cls.InstanceFields {
			sz, err := fd.FieldType.Size(w)
			if err != nil {
				return nil, err
			}
			if c.len() < sz {
				return nil, &fieldBlobError{have: len(inst.FieldBytes), consumed: c.off, short: sz - c.len()}
			}
			v, err := decodeFieldValue(c, fd.FieldType)
			if err != nil {
				return nil, err
			}
			out = append(out, FieldEntry{ClassObjId: classID, NameId: fd.NameId, Value: v})
		}

		classID = cls.SuperClassObjId
	}

	if c.len() != 0 {
		return out, &fieldBlobError{have: len(inst.FieldBytes), consumed: c.off, trailing: c.len()}
	}
	return out, nil
}

// fieldBlobError reports exactly how an instance's field_bytes blob failed
// to exactly cover the fields declared by its class chain.
type fieldBlobError struct {
	have     int
	consumed int
	short    int // > 0 if the blob ran out early
	trailing int // > 0 if bytes remained after the chain completed
}

func (e *fieldBlobError) Error() string {
	if e.short > 0 {
		return fmt.Sprintf("hprof: field bytes exhausted: consumed %d of %d, needed %d more", e.consumed, e.have, e.short)
	}
	return fmt.Sprintf("hprof: trailing field bytes: %d left over after consuming %d of %d", e.trailing, e.consumed, e.have)
}

func (e *fieldBlobError) Unwrap() error { return ErrFieldBlobMismatch }
