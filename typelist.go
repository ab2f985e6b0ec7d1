package dexfile

import "encoding/binary"

// TypeList is a view over a type_list item: a 32-bit count followed by
// that many 16-bit type indices, 4-byte aligned.
type TypeList struct {
	d    *DexFile
	off  uint32
	size uint32
}

// typeListAt materializes the TypeList at an absolute offset. An offset
// of zero means "no list" and yields nil.
func (d *DexFile) typeListAt(off uint32) (*TypeList, error) {
	if off == 0 {
		return nil, nil
	}
	if off%4 != 0 {
		return nil, d.errorf(KindMalformedStructure, "type list at %#x is not 4-byte aligned", off)
	}
	if uint64(off)+4 > uint64(len(d.data)) {
		return nil, d.errorf(KindMalformedStructure, "type list offset %#x outside region", off)
	}
	size := binary.LittleEndian.Uint32(d.data[off:])
	if uint64(off)+4+uint64(size)*2 > uint64(len(d.data)) {
		return nil, d.errorf(KindMalformedStructure, "type list at %#x with %d entries overruns region", off, size)
	}
	return &TypeList{d: d, off: off, size: size}, nil
}

// Size returns the number of entries.
func (tl *TypeList) Size() uint32 { return tl.size }

// TypeIndex returns the type index of entry i.
func (tl *TypeList) TypeIndex(i uint32) (uint16, error) {
	if i >= tl.size {
		return 0, tl.d.errorf(KindIndexOutOfRange, "type list entry %d, list holds %d", i, tl.size)
	}
	return binary.LittleEndian.Uint16(tl.d.data[tl.off+4+i*2:]), nil
}

// Descriptor returns the resolved descriptor bytes of entry i.
func (tl *TypeList) Descriptor(i uint32) ([]byte, error) {
	idx, err := tl.TypeIndex(i)
	if err != nil {
		return nil, err
	}
	return tl.d.TypeDescriptorByIndex(uint32(idx))
}

// ParameterIterator walks a prototype's parameter list in order,
// pairing each type index with its resolved descriptor. A proto without
// parameters yields an iterator that is immediately exhausted.
type ParameterIterator struct {
	d    *DexFile
	list *TypeList
	size uint32
	pos  uint32
}

// Parameters returns an iterator over the proto's parameter types.
func (d *DexFile) Parameters(p ProtoID) (*ParameterIterator, error) {
	list, err := d.ProtoParameters(p)
	if err != nil {
		return nil, err
	}
	it := &ParameterIterator{d: d, list: list}
	if list != nil {
		it.size = list.Size()
	}
	return it, nil
}

// HasNext reports whether the current position holds an entry.
func (it *ParameterIterator) HasNext() bool { return it.pos < it.size }

// Next advances to the next entry.
func (it *ParameterIterator) Next() { it.pos++ }

// TypeIndex returns the current entry's type index.
func (it *ParameterIterator) TypeIndex() (uint16, error) {
	return it.list.TypeIndex(it.pos)
}

// Descriptor returns the current entry's resolved descriptor bytes.
func (it *ParameterIterator) Descriptor() ([]byte, error) {
	return it.list.Descriptor(it.pos)
}
