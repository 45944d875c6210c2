// ABOUTME: Tests for instance field projection
// ABOUTME: Covers field-blob closure, superclass walk ordering, and cycle detection

package hprof

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"
)

func buildClassChain(w IDWidth) (map[Id]ClassDump, Id, Id) {
	// base <- mid <- leaf, each declaring one Int field.
	base := ClassDump{ClassObjId: 1, SuperClassObjId: NullId, InstanceFields: []InstanceFieldDesc{{NameId: 100, FieldType: FieldTypeInt}}}
	mid := ClassDump{ClassObjId: 2, SuperClassObjId: 1, InstanceFields: []InstanceFieldDesc{{NameId: 200, FieldType: FieldTypeInt}}}
	leaf := ClassDump{ClassObjId: 3, SuperClassObjId: 2, InstanceFields: []InstanceFieldDesc{{NameId: 300, FieldType: FieldTypeInt}}}
	return map[Id]ClassDump{1: base, 2: mid, 3: leaf}, leaf.ClassObjId, base.ClassObjId
}

func TestInstanceFieldsOrderingAndClosure(t *testing.T) {
	const w = IDWidth8
	classes, leafID, _ := buildClassChain(w)

	var blob bytes.Buffer
	writeU32(&blob, 30) // leaf's field
	writeU32(&blob, 20) // mid's field
	writeU32(&blob, 10) // base's field

	inst := InstanceDump{ObjId: 10, ClassObjId: leafID, FieldBytes: blob.Bytes()}
	fields, err := InstanceFields(inst, w, func(id Id) (ClassDump, bool) {
		c, ok := classes[id]
		return c, ok
	})
	require.NoError(t, err)
	require.Len(t, fields, 3)

	// immediate class first, then direct super, then its super.
	require.Equal(t, Id(300), fields[0].NameId)
	require.EqualValues(t, 30, fields[0].Value.Int)
	require.Equal(t, Id(200), fields[1].NameId)
	require.EqualValues(t, 20, fields[1].Value.Int)
	require.Equal(t, Id(100), fields[2].NameId)
	require.EqualValues(t, 10, fields[2].Value.Int)
}

func TestInstanceFieldsShortBlobFails(t *testing.T) {
	const w = IDWidth8
	classes, leafID, _ := buildClassChain(w)

	inst := InstanceDump{ObjId: 10, ClassObjId: leafID, FieldBytes: []byte{0, 0, 0, 1}} // only one Int's worth
	_, err := InstanceFields(inst, w, func(id Id) (ClassDump, bool) {
		c, ok := classes[id]
		return c, ok
	})
	require.ErrorIs(t, err, ErrFieldBlobMismatch)
}

func TestInstanceFieldsLongBlobFails(t *testing.T) {
	const w = IDWidth8
	classes, leafID, _ := buildClassChain(w)

	var blob bytes.Buffer
	writeU32(&blob, 1)
	writeU32(&blob, 2)
	writeU32(&blob, 3)
	writeU32(&blob, 999) // extra trailing bytes

	inst := InstanceDump{ObjId: 10, ClassObjId: leafID, FieldBytes: blob.Bytes()}
	_, err := InstanceFields(inst, w, func(id Id) (ClassDump, bool) {
		c, ok := classes[id]
		return c, ok
	})
	require.ErrorIs(t, err, ErrFieldBlobMismatch)
}

func TestInstanceFieldsCycleDetected(t *testing.T) {
	const w = IDWidth8
	// a <-> b superclass cycle.
	a := ClassDump{ClassObjId: 1, SuperClassObjId: 2}
	b := ClassDump{ClassObjId: 2, SuperClassObjId: 1}
	classes := map[Id]ClassDump{1: a, 2: b}

	inst := InstanceDump{ObjId: 10, ClassObjId: 1}
	_, err := InstanceFields(inst, w, func(id Id) (ClassDump, bool) {
		c, ok := classes[id]
		return c, ok
	})
	require.ErrorIs(t, err, ErrSuperclassCycle)
}

func TestInstanceFieldsTerminatesAtNullId(t *testing.T) {
	const w = IDWidth8
	solo := ClassDump{ClassObjId: 1, SuperClassObjId: NullId}
	classes := map[Id]ClassDump{1: solo}

	inst := InstanceDump{ObjId: 10, ClassObjId: 1}
	fields, err := InstanceFields(inst, w, func(id Id) (ClassDump, bool) {
		c, ok := classes[id]
		return c, ok
	})
	require.NoError(t, err)
	require.Empty(t, fields)
}

func TestInstanceFieldsUnresolvableClass(t *testing.T) {
	const w = IDWidth8
	inst := InstanceDump{ObjId: 10, ClassObjId: 42}
	_, err := InstanceFields(inst, w, func(Id) (ClassDump, bool) { return ClassDump{}, false })
	require.ErrorIs(t, err, ErrClassNotFound)
}

func TestInstanceFieldsIdWidthDeterminism(t *testing.T) {
	// spec.md §8 property 3: decoded values (other than raw id widths)
	// match across id_width=4 and id_width=8 fixtures of identical content.
	for _, w := range []IDWidth{IDWidth4, IDWidth8} {
		cls := ClassDump{ClassObjId: 1, SuperClassObjId: NullId, InstanceFields: []InstanceFieldDesc{{NameId: 1, FieldType: FieldTypeInt}}}
		var blob bytes.Buffer
		writeU32(&blob, 42)
		inst := InstanceDump{ObjId: 1, ClassObjId: 1, FieldBytes: blob.Bytes()}

		fields, err := InstanceFields(inst, w, func(id Id) (ClassDump, bool) {
			if id == 1 {
				return cls, true
			}
			return ClassDump{}, false
		})
		require.NoError(t, err)
		require.Len(t, fields, 1)
		require.EqualValues(t, 42, fields[0].Value.Int)
	}
}
