package dexfile

// ClassDataIterator streams a class_data_item: four LEB128 counts
// followed by four delta-encoded member arrays (static fields, instance
// fields, direct methods, virtual methods). The iterator is positioned
// on the first entry after construction; call Next after consuming the
// current entry. Iterators are single-owner and not safe for concurrent
// stepping.
type ClassDataIterator struct {
	d   *DexFile
	off uint32 // byte cursor, absolute region offset

	pos     uint32 // entry position across all four arrays
	lastIdx uint32 // running member index within the current array

	numStaticFields   uint32
	numInstanceFields uint32
	numDirectMethods  uint32
	numVirtualMethods uint32

	field  classDataField
	method classDataMethod
}

type classDataField struct {
	idxDelta    uint32
	accessFlags uint32
}

type classDataMethod struct {
	idxDelta    uint32
	accessFlags uint32
	codeOff     uint32
}

// ClassDataIterator returns an iterator over the class's member tables,
// or nil for a class without class data (no fields or methods).
func (d *DexFile) ClassDataIterator(c ClassDef) (*ClassDataIterator, error) {
	if c.ClassDataOff == 0 {
		return nil, nil
	}
	if uint64(c.ClassDataOff) >= uint64(len(d.data)) {
		return nil, d.errorf(KindMalformedStructure, "class data offset %#x outside region", c.ClassDataOff)
	}
	it := &ClassDataIterator{d: d, off: c.ClassDataOff}
	for _, dst := range []*uint32{
		&it.numStaticFields, &it.numInstanceFields,
		&it.numDirectMethods, &it.numVirtualMethods,
	} {
		v, err := it.uleb128()
		if err != nil {
			return nil, err
		}
		*dst = v
	}
	// Prime the first entry.
	if it.endOfInstanceFields() > 0 {
		if err := it.readField(); err != nil {
			return nil, err
		}
	} else if it.endOfVirtualMethods() > 0 {
		if err := it.readMethod(); err != nil {
			return nil, err
		}
	}
	return it, nil
}

func (it *ClassDataIterator) uleb128() (uint32, error) {
	v, n := uleb128At(it.d.data, it.off)
	if n <= 0 {
		return 0, it.d.errorf(KindMalformedLEB128, "in class data at offset %#x", it.off)
	}
	it.off += uint32(n)
	return v, nil
}

func (it *ClassDataIterator) readField() error {
	var err error
	if it.field.idxDelta, err = it.uleb128(); err != nil {
		return err
	}
	it.field.accessFlags, err = it.uleb128()
	return err
}

func (it *ClassDataIterator) readMethod() error {
	var err error
	if it.method.idxDelta, err = it.uleb128(); err != nil {
		return err
	}
	if it.method.accessFlags, err = it.uleb128(); err != nil {
		return err
	}
	it.method.codeOff, err = it.uleb128()
	return err
}

func (it *ClassDataIterator) endOfStaticFields() uint32 { return it.numStaticFields }
func (it *ClassDataIterator) endOfInstanceFields() uint32 {
	return it.endOfStaticFields() + it.numInstanceFields
}
func (it *ClassDataIterator) endOfDirectMethods() uint32 {
	return it.endOfInstanceFields() + it.numDirectMethods
}
func (it *ClassDataIterator) endOfVirtualMethods() uint32 {
	return it.endOfDirectMethods() + it.numVirtualMethods
}

// Declared member counts.

func (it *ClassDataIterator) NumStaticFields() uint32   { return it.numStaticFields }
func (it *ClassDataIterator) NumInstanceFields() uint32 { return it.numInstanceFields }
func (it *ClassDataIterator) NumDirectMethods() uint32  { return it.numDirectMethods }
func (it *ClassDataIterator) NumVirtualMethods() uint32 { return it.numVirtualMethods }

// Sub-array membership of the current position.

func (it *ClassDataIterator) HasNextStaticField() bool {
	return it.pos < it.endOfStaticFields()
}

func (it *ClassDataIterator) HasNextInstanceField() bool {
	return it.pos >= it.endOfStaticFields() && it.pos < it.endOfInstanceFields()
}

func (it *ClassDataIterator) HasNextDirectMethod() bool {
	return it.pos >= it.endOfInstanceFields() && it.pos < it.endOfDirectMethods()
}

func (it *ClassDataIterator) HasNextVirtualMethod() bool {
	return it.pos >= it.endOfDirectMethods() && it.pos < it.endOfVirtualMethods()
}

// HasNext reports whether the current position holds an entry.
func (it *ClassDataIterator) HasNext() bool {
	return it.pos < it.endOfVirtualMethods()
}

// Next advances one entry, resetting the running member index at each
// sub-array boundary.
func (it *ClassDataIterator) Next() error {
	it.pos++
	switch {
	case it.pos < it.endOfStaticFields():
		it.lastIdx = it.MemberIndex()
		return it.readField()
	case it.pos == it.endOfStaticFields() && it.numInstanceFields > 0:
		it.lastIdx = 0
		return it.readField()
	case it.pos < it.endOfInstanceFields():
		it.lastIdx = it.MemberIndex()
		return it.readField()
	case it.pos == it.endOfInstanceFields() && it.numDirectMethods > 0:
		it.lastIdx = 0
		return it.readMethod()
	case it.pos < it.endOfDirectMethods():
		it.lastIdx = it.MemberIndex()
		return it.readMethod()
	case it.pos == it.endOfDirectMethods() && it.numVirtualMethods > 0:
		it.lastIdx = 0
		return it.readMethod()
	case it.pos < it.endOfVirtualMethods():
		it.lastIdx = it.MemberIndex()
		return it.readMethod()
	default:
		return nil
	}
}

// MemberIndex returns the absolute field or method index of the current
// entry: the running prefix sum of deltas within the current sub-array.
func (it *ClassDataIterator) MemberIndex() uint32 {
	if it.pos < it.endOfInstanceFields() {
		return it.lastIdx + it.field.idxDelta
	}
	return it.lastIdx + it.method.idxDelta
}

// MemberAccessFlags returns the current entry's access flags.
func (it *ClassDataIterator) MemberAccessFlags() uint32 {
	if it.pos < it.endOfInstanceFields() {
		return it.field.accessFlags
	}
	return it.method.accessFlags
}

// MethodCodeOffset returns the current method's code_item offset, zero
// for abstract or native methods. Only meaningful while positioned in
// one of the two method arrays.
func (it *ClassDataIterator) MethodCodeOffset() uint32 {
	return it.method.codeOff
}

// MethodCodeItem returns the CodeItem view for the current method, or
// nil for abstract or native methods.
func (it *ClassDataIterator) MethodCodeItem() (*CodeItem, error) {
	return it.d.CodeItemAt(it.method.codeOff)
}

// endOffset is the byte just past everything consumed so far; when the
// iterator is exhausted it delimits the class_data_item.
func (it *ClassDataIterator) endOffset() uint32 { return it.off }
