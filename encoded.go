package dexfile

import "math"

// Encoded values are the tagged, variable-width constants used for
// static field initializers and annotations. Each value starts with a
// (value_arg << 5 | value_type) byte; numeric payloads occupy
// value_arg+1 little-endian bytes, sign-extended for the signed kinds
// and right-zero-padded for the floating kinds. Index kinds carry a raw
// pool index; resolving it to a runtime object is the caller's concern.

// EncodedValueKind discriminates the encoded value union.
type EncodedValueKind byte

const (
	EncodedByte       EncodedValueKind = 0x00
	EncodedShort      EncodedValueKind = 0x02
	EncodedChar       EncodedValueKind = 0x03
	EncodedInt        EncodedValueKind = 0x04
	EncodedLong       EncodedValueKind = 0x06
	EncodedFloat      EncodedValueKind = 0x10
	EncodedDouble     EncodedValueKind = 0x11
	EncodedString     EncodedValueKind = 0x17
	EncodedType       EncodedValueKind = 0x18
	EncodedField      EncodedValueKind = 0x19
	EncodedMethod     EncodedValueKind = 0x1a
	EncodedEnum       EncodedValueKind = 0x1b
	EncodedArray      EncodedValueKind = 0x1c
	EncodedAnnotation EncodedValueKind = 0x1d
	EncodedNull       EncodedValueKind = 0x1e
	EncodedBoolean    EncodedValueKind = 0x1f
)

const (
	encodedValueKindMask = 0x1f
	encodedValueArgShift = 5
)

// EncodedValue is one decoded value. Which payload field is meaningful
// depends on Kind: Int for the integral kinds (Char zero-extended, the
// rest sign-extended), Float/Double for the floating kinds, Index for
// string/type/field/method/enum, Elements for arrays, Annotation for
// annotations, Bool for booleans.
type EncodedValue struct {
	Kind       EncodedValueKind
	Bool       bool
	Int        int64
	Float      float32
	Double     float64
	Index      uint32
	Elements   []EncodedValue
	Annotation *EncodedAnnotationValue
}

// EncodedAnnotationValue is the payload of an annotation value: a type and
// named element values.
type EncodedAnnotationValue struct {
	TypeIndex uint32
	Elements  []AnnotationElement
}

// AnnotationElement pairs an element name with its value.
type AnnotationElement struct {
	NameIndex uint32
	Value     EncodedValue
}

// decodeEncodedValue decodes one encoded_value at an absolute offset
// and returns the offset just past it.
func (d *DexFile) decodeEncodedValue(off uint32) (EncodedValue, uint32, error) {
	if uint64(off) >= uint64(len(d.data)) {
		return EncodedValue{}, 0, d.errorf(KindMalformedStructure, "encoded value offset %#x outside region", off)
	}
	head := d.data[off]
	kind := EncodedValueKind(head & encodedValueKindMask)
	arg := uint32(head >> encodedValueArgShift)
	off++

	v := EncodedValue{Kind: kind}
	switch kind {
	case EncodedNull:
		return v, off, nil

	case EncodedBoolean:
		v.Bool = arg != 0
		return v, off, nil

	case EncodedArray:
		size, n := uleb128At(d.data, off)
		if n <= 0 {
			return EncodedValue{}, 0, d.errorf(KindMalformedLEB128, "in encoded array at offset %#x", off)
		}
		off += uint32(n)
		v.Elements = make([]EncodedValue, 0, size)
		for i := uint32(0); i < size; i++ {
			elem, next, err := d.decodeEncodedValue(off)
			if err != nil {
				return EncodedValue{}, 0, err
			}
			v.Elements = append(v.Elements, elem)
			off = next
		}
		return v, off, nil

	case EncodedAnnotation:
		ann := &EncodedAnnotationValue{}
		typeIdx, n := uleb128At(d.data, off)
		if n <= 0 {
			return EncodedValue{}, 0, d.errorf(KindMalformedLEB128, "in encoded annotation at offset %#x", off)
		}
		off += uint32(n)
		ann.TypeIndex = typeIdx
		size, n := uleb128At(d.data, off)
		if n <= 0 {
			return EncodedValue{}, 0, d.errorf(KindMalformedLEB128, "in encoded annotation at offset %#x", off)
		}
		off += uint32(n)
		ann.Elements = make([]AnnotationElement, 0, size)
		for i := uint32(0); i < size; i++ {
			nameIdx, n := uleb128At(d.data, off)
			if n <= 0 {
				return EncodedValue{}, 0, d.errorf(KindMalformedLEB128, "in encoded annotation at offset %#x", off)
			}
			off += uint32(n)
			elem, next, err := d.decodeEncodedValue(off)
			if err != nil {
				return EncodedValue{}, 0, err
			}
			ann.Elements = append(ann.Elements, AnnotationElement{NameIndex: nameIdx, Value: elem})
			off = next
		}
		v.Annotation = ann
		return v, off, nil
	}

	// The remaining kinds carry arg+1 little-endian payload bytes.
	width := arg + 1
	if kind == EncodedByte && width > 1 ||
		(kind == EncodedShort || kind == EncodedChar) && width > 2 ||
		(kind == EncodedInt || kind == EncodedFloat) && width > 4 ||
		width > 8 {
		return EncodedValue{}, 0, d.errorf(KindMalformedStructure, "encoded value of kind %#x with %d payload bytes at %#x", byte(kind), width, off-1)
	}
	if uint64(off)+uint64(width) > uint64(len(d.data)) {
		return EncodedValue{}, 0, d.errorf(KindMalformedStructure, "encoded value payload at %#x overruns region", off)
	}
	var raw uint64
	for i := uint32(0); i < width; i++ {
		raw |= uint64(d.data[off+i]) << (8 * i)
	}
	off += width

	switch kind {
	case EncodedByte:
		v.Int = int64(int8(raw))
	case EncodedShort:
		v.Int = int64(int16(signExtend(raw, width)))
	case EncodedChar:
		v.Int = int64(uint16(raw))
	case EncodedInt:
		v.Int = int64(int32(signExtend(raw, width)))
	case EncodedLong:
		v.Int = signExtend(raw, width)
	case EncodedFloat:
		// Zero-extended to the right: the payload holds the high bytes.
		v.Float = math.Float32frombits(uint32(raw << (32 - 8*width)))
	case EncodedDouble:
		v.Double = math.Float64frombits(raw << (64 - 8*width))
	case EncodedString, EncodedType, EncodedField, EncodedMethod, EncodedEnum:
		v.Index = uint32(raw)
	default:
		return EncodedValue{}, 0, d.errorf(KindMalformedStructure, "unknown encoded value kind %#x at %#x", byte(kind), off-width-1)
	}
	return v, off, nil
}

func signExtend(raw uint64, width uint32) int64 {
	shift := 64 - 8*width
	return int64(raw<<shift) >> shift
}

// EncodedArrayIterator walks an encoded_array_item: a LEB128 count
// followed by that many encoded values. The iterator is single-owner.
type EncodedArrayIterator struct {
	d     *DexFile
	off   uint32
	size  uint32
	pos   uint32
	value EncodedValue
}

// StaticValuesIterator returns an iterator over the class's encoded
// static field initializers, or nil when the class declares none.
func (d *DexFile) StaticValuesIterator(c ClassDef) (*EncodedArrayIterator, error) {
	if c.StaticValuesOff == 0 {
		return nil, nil
	}
	return d.EncodedArrayAt(c.StaticValuesOff)
}

// EncodedArrayAt returns an iterator over the encoded array at an
// absolute region offset.
func (d *DexFile) EncodedArrayAt(off uint32) (*EncodedArrayIterator, error) {
	size, n := uleb128At(d.data, off)
	if n <= 0 {
		return nil, d.errorf(KindMalformedLEB128, "in encoded array at offset %#x", off)
	}
	return &EncodedArrayIterator{d: d, off: off + uint32(n), size: size}, nil
}

// Size returns the declared element count.
func (it *EncodedArrayIterator) Size() uint32 { return it.size }

// HasNext reports whether another element remains.
func (it *EncodedArrayIterator) HasNext() bool { return it.pos < it.size }

// Next decodes the next element, retrievable through Value.
func (it *EncodedArrayIterator) Next() error {
	if !it.HasNext() {
		return it.d.errorf(KindIndexOutOfRange, "encoded array element %d, array holds %d", it.pos, it.size)
	}
	v, next, err := it.d.decodeEncodedValue(it.off)
	if err != nil {
		return err
	}
	it.value = v
	it.off = next
	it.pos++
	return nil
}

// Value returns the element decoded by the last Next call.
func (it *EncodedArrayIterator) Value() EncodedValue { return it.value }
