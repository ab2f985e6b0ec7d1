package dexfile

import (
	"errors"
	"testing"
)

// encodedImage builds a container whose single class points its static
// values at the given encoded_array_item blob.
func encodedImage(t *testing.T, blob []byte) *DexFile {
	t.Helper()
	b := newDexBuilder()
	sFoo := b.addString("LFoo;")
	tFoo := b.addType(sFoo)
	b.addClass(testClass{classIdx: tFoo, superclassIdx: NoIndex16, sourceFileIdx: NoIndex})
	b.sealPools()
	b.classes[0].staticValuesOff = b.addData(blob)
	d, err := Open(b.build(), "encoded.dex")
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	return d
}

func staticValues(t *testing.T, d *DexFile) []EncodedValue {
	t.Helper()
	def, err := d.ClassDef(0)
	if err != nil {
		t.Fatalf("class def: %v", err)
	}
	it, err := d.StaticValuesIterator(def)
	if err != nil {
		t.Fatalf("iterator: %v", err)
	}
	var out []EncodedValue
	for it.HasNext() {
		if err := it.Next(); err != nil {
			t.Fatalf("next: %v", err)
		}
		out = append(out, it.Value())
	}
	return out
}

func TestEncodedArrayScalars(t *testing.T) {
	blob := []byte{
		0x08,       // 8 elements
		0x04, 0x2a, // INT 42
		0x04, 0xd6, // INT -42 (one byte, sign-extended)
		0x06, 0xff, // LONG -1
		0x00, 0xfb, // BYTE -5
		0x02, 0xfe, // SHORT -2
		0x03, 0x41, // CHAR 'A'
		0x3f, // BOOLEAN true
		0x1e, // NULL
	}
	vals := staticValues(t, encodedImage(t, blob))
	if len(vals) != 8 {
		t.Fatalf("decoded %d values", len(vals))
	}
	want := []struct {
		kind EncodedValueKind
		i    int64
	}{
		{EncodedInt, 42},
		{EncodedInt, -42},
		{EncodedLong, -1},
		{EncodedByte, -5},
		{EncodedShort, -2},
		{EncodedChar, 65},
	}
	for i, w := range want {
		if vals[i].Kind != w.kind || vals[i].Int != w.i {
			t.Fatalf("value %d = %+v, want kind %#x int %d", i, vals[i], byte(w.kind), w.i)
		}
	}
	if vals[6].Kind != EncodedBoolean || !vals[6].Bool {
		t.Fatalf("value 6 = %+v, want true", vals[6])
	}
	if vals[7].Kind != EncodedNull {
		t.Fatalf("value 7 = %+v, want null", vals[7])
	}
}

func TestEncodedArrayFloats(t *testing.T) {
	blob := []byte{
		0x02,
		0x30, 0x80, 0x3f, // FLOAT 1.0 in two payload bytes, right-padded
		0x11, 0x40, // DOUBLE 2.0 in one payload byte
	}
	vals := staticValues(t, encodedImage(t, blob))
	if len(vals) != 2 {
		t.Fatalf("decoded %d values", len(vals))
	}
	if vals[0].Kind != EncodedFloat || vals[0].Float != 1.0 {
		t.Fatalf("value 0 = %+v, want float 1.0", vals[0])
	}
	if vals[1].Kind != EncodedDouble || vals[1].Double != 2.0 {
		t.Fatalf("value 1 = %+v, want double 2.0", vals[1])
	}
}

func TestEncodedArrayIndices(t *testing.T) {
	blob := []byte{
		0x03,
		0x17, 0x00, // STRING index 0
		0x18, 0x00, // TYPE index 0
		0x3a, 0x34, 0x12, // METHOD index 0x1234 in two bytes
	}
	vals := staticValues(t, encodedImage(t, blob))
	if vals[0].Kind != EncodedString || vals[0].Index != 0 {
		t.Fatalf("value 0 = %+v", vals[0])
	}
	if vals[1].Kind != EncodedType || vals[1].Index != 0 {
		t.Fatalf("value 1 = %+v", vals[1])
	}
	if vals[2].Kind != EncodedMethod || vals[2].Index != 0x1234 {
		t.Fatalf("value 2 = %+v", vals[2])
	}
}

func TestEncodedNestedArray(t *testing.T) {
	blob := []byte{
		0x01,
		0x1c,       // ARRAY
		0x02,       // 2 elements
		0x1f,       // BOOLEAN false
		0x04, 0x07, // INT 7
	}
	vals := staticValues(t, encodedImage(t, blob))
	if len(vals) != 1 || vals[0].Kind != EncodedArray {
		t.Fatalf("values = %+v", vals)
	}
	elems := vals[0].Elements
	if len(elems) != 2 {
		t.Fatalf("elements = %+v", elems)
	}
	if elems[0].Kind != EncodedBoolean || elems[0].Bool {
		t.Fatalf("element 0 = %+v, want false", elems[0])
	}
	if elems[1].Kind != EncodedInt || elems[1].Int != 7 {
		t.Fatalf("element 1 = %+v, want 7", elems[1])
	}
}

func TestEncodedAnnotation(t *testing.T) {
	blob := []byte{
		0x01,
		0x1d,       // ANNOTATION
		0x05,       // type index 5
		0x01,       // one element
		0x02,       // name index 2
		0x04, 0x09, // INT 9
	}
	vals := staticValues(t, encodedImage(t, blob))
	if len(vals) != 1 || vals[0].Kind != EncodedAnnotation {
		t.Fatalf("values = %+v", vals)
	}
	ann := vals[0].Annotation
	if ann == nil || ann.TypeIndex != 5 || len(ann.Elements) != 1 {
		t.Fatalf("annotation = %+v", ann)
	}
	el := ann.Elements[0]
	if el.NameIndex != 2 || el.Value.Kind != EncodedInt || el.Value.Int != 9 {
		t.Fatalf("element = %+v", el)
	}
}

func TestEncodedArrayOverrunsRegion(t *testing.T) {
	// Declares two elements but carries only one.
	d := encodedImage(t, []byte{0x02, 0x1e})
	def, err := d.ClassDef(0)
	if err != nil {
		t.Fatalf("class def: %v", err)
	}
	it, err := d.StaticValuesIterator(def)
	if err != nil {
		t.Fatalf("iterator: %v", err)
	}
	if err := it.Next(); err != nil {
		t.Fatalf("first value: %v", err)
	}
	if err := it.Next(); err == nil {
		t.Fatal("expected error for overrunning value")
	}
}

func TestEncodedValueBadWidth(t *testing.T) {
	// A BYTE with value_arg 1 claims two payload bytes.
	d := encodedImage(t, []byte{0x01, 0x20, 0x00, 0x00})
	def, err := d.ClassDef(0)
	if err != nil {
		t.Fatalf("class def: %v", err)
	}
	it, err := d.StaticValuesIterator(def)
	if err != nil {
		t.Fatalf("iterator: %v", err)
	}
	if err := it.Next(); !errors.Is(err, KindMalformedStructure) {
		t.Fatalf("err = %v, want malformed structure", err)
	}
}

func TestStaticValuesAbsent(t *testing.T) {
	d := openTestImage(t)
	def, err := d.ClassDef(0)
	if err != nil {
		t.Fatalf("class def: %v", err)
	}
	it, err := d.StaticValuesIterator(def)
	if err != nil || it != nil {
		t.Fatalf("iterator = (%v, %v), want (nil, nil)", it, err)
	}
}
