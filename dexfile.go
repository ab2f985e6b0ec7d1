// Package dexfile reads the Android DEX container format from a single
// read-only byte region. The container exposes typed, zero-copy views
// over the identifier pools and class definitions, iterators for the
// LEB128-encoded class data, encoded static values and exception
// tables, and a decoder for the compressed debug-information stream.
//
// Views borrow the underlying region and must not outlive it. All
// read-only accessors are safe for concurrent use; iterators are
// single-owner.
package dexfile

import (
	"bytes"
	"encoding/binary"
	"sync"

	"github.com/orizon-lang/dexfile/internal/mutf8"
	"github.com/orizon-lang/dexfile/region"
)

// Sentinel index values used where a slot may name no entry.
const (
	NoIndex   = 0xFFFFFFFF // 32-bit contexts (source_file_idx, debug name slots)
	NoIndex16 = 0xFFFF     // 16-bit contexts (superclass_idx, catch-all handlers)
)

// Fixed-size identifier record strides.
const (
	stringIDItemSize = 4
	typeIDItemSize   = 4
	protoIDItemSize  = 12
	fieldIDItemSize  = 8
	methodIDItemSize = 8
	classDefItemSize = 32
)

// DexFile is an opened DEX container. All accessors are views into the
// single region passed at open time; the DexFile owns no copy of the
// image. Close the container only when no view is still in use.
type DexFile struct {
	reg      *region.Region
	data     []byte
	location string
	header   Header

	indexOnce  sync.Once
	classIndex map[string]uint32
	indexErr   error
}

// Open parses a DEX image held in memory. The location label is used in
// diagnostics only.
func Open(data []byte, location string) (*DexFile, error) {
	return OpenRegion(region.New(data, location))
}

// OpenRegion parses a DEX image from an existing byte region. On any
// structural failure no container is returned; a partially parsed
// container never escapes.
func OpenRegion(reg *region.Region) (*DexFile, error) {
	d := &DexFile{
		reg:      reg,
		data:     reg.Bytes(),
		location: reg.Location(),
	}
	if len(d.data) >= HeaderSize {
		d.header = decodeHeader(d.data)
	}
	if err := d.validateHeader(); err != nil {
		return nil, err
	}
	logger.WithField("location", d.location).
		WithField("version", d.Version()).
		WithField("strings", d.NumStringIDs()).
		WithField("types", d.NumTypeIDs()).
		WithField("classes", d.NumClassDefs()).
		Debug("opened dex container")
	return d, nil
}

// Close releases the backing region. The caller must ensure no view of
// this container is still in use.
func (d *DexFile) Close() error {
	d.data = nil
	return d.reg.Close()
}

// Location returns the container's diagnostic label.
func (d *DexFile) Location() string { return d.location }

// Region exposes the backing region, e.g. to toggle page protections on
// a mapped container.
func (d *DexFile) Region() *region.Region { return d.reg }

// Header returns the decoded header_item.
func (d *DexFile) Header() Header { return d.header }

// Version returns the container format version decoded from the magic,
// e.g. 35 for "035".
func (d *DexFile) Version() uint32 { return version(d.header.Magic[:]) }

// Pool sizes.

func (d *DexFile) NumStringIDs() uint32 { return d.header.StringIDsSize }
func (d *DexFile) NumTypeIDs() uint32   { return d.header.TypeIDsSize }
func (d *DexFile) NumProtoIDs() uint32  { return d.header.ProtoIDsSize }
func (d *DexFile) NumFieldIDs() uint32  { return d.header.FieldIDsSize }
func (d *DexFile) NumMethodIDs() uint32 { return d.header.MethodIDsSize }
func (d *DexFile) NumClassDefs() uint32 { return d.header.ClassDefsSize }

// StringID is a string_id_item. Index is the entry's position in the
// string pool, the inverse of the original pointer-subtraction lookup.
type StringID struct {
	Index   uint32
	DataOff uint32
}

// TypeID is a type_id_item.
type TypeID struct {
	Index           uint32
	DescriptorIndex uint32
}

// ProtoID is a proto_id_item.
type ProtoID struct {
	Index           uint32
	ShortyIndex     uint32
	ReturnTypeIndex uint16
	ParametersOff   uint32
}

// FieldID is a field_id_item.
type FieldID struct {
	Index      uint32
	ClassIndex uint16
	TypeIndex  uint16
	NameIndex  uint32
}

// MethodID is a method_id_item.
type MethodID struct {
	Index      uint32
	ClassIndex uint16
	ProtoIndex uint16
	NameIndex  uint32
}

// ClassDef is a class_def_item.
type ClassDef struct {
	Index           uint32
	ClassIndex      uint16
	AccessFlags     uint32
	SuperclassIndex uint16 // NoIndex16 when the class has no superclass
	InterfacesOff   uint32
	SourceFileIndex uint32 // NoIndex when no source file is recorded
	AnnotationsOff  uint32
	ClassDataOff    uint32
	StaticValuesOff uint32
}

// StringID returns the string_id_item at idx.
func (d *DexFile) StringID(idx uint32) (StringID, error) {
	if idx >= d.header.StringIDsSize {
		return StringID{}, d.errorf(KindIndexOutOfRange, "string index %d, pool holds %d", idx, d.header.StringIDsSize)
	}
	off := d.header.StringIDsOff + idx*stringIDItemSize
	return StringID{
		Index:   idx,
		DataOff: binary.LittleEndian.Uint32(d.data[off:]),
	}, nil
}

// TypeID returns the type_id_item at idx.
func (d *DexFile) TypeID(idx uint32) (TypeID, error) {
	if idx >= d.header.TypeIDsSize {
		return TypeID{}, d.errorf(KindIndexOutOfRange, "type index %d, pool holds %d", idx, d.header.TypeIDsSize)
	}
	off := d.header.TypeIDsOff + idx*typeIDItemSize
	return TypeID{
		Index:           idx,
		DescriptorIndex: binary.LittleEndian.Uint32(d.data[off:]),
	}, nil
}

// ProtoID returns the proto_id_item at idx.
func (d *DexFile) ProtoID(idx uint32) (ProtoID, error) {
	if idx >= d.header.ProtoIDsSize {
		return ProtoID{}, d.errorf(KindIndexOutOfRange, "proto index %d, pool holds %d", idx, d.header.ProtoIDsSize)
	}
	off := d.header.ProtoIDsOff + idx*protoIDItemSize
	return ProtoID{
		Index:           idx,
		ShortyIndex:     binary.LittleEndian.Uint32(d.data[off:]),
		ReturnTypeIndex: binary.LittleEndian.Uint16(d.data[off+4:]),
		ParametersOff:   binary.LittleEndian.Uint32(d.data[off+8:]),
	}, nil
}

// FieldID returns the field_id_item at idx.
func (d *DexFile) FieldID(idx uint32) (FieldID, error) {
	if idx >= d.header.FieldIDsSize {
		return FieldID{}, d.errorf(KindIndexOutOfRange, "field index %d, pool holds %d", idx, d.header.FieldIDsSize)
	}
	off := d.header.FieldIDsOff + idx*fieldIDItemSize
	return FieldID{
		Index:      idx,
		ClassIndex: binary.LittleEndian.Uint16(d.data[off:]),
		TypeIndex:  binary.LittleEndian.Uint16(d.data[off+2:]),
		NameIndex:  binary.LittleEndian.Uint32(d.data[off+4:]),
	}, nil
}

// MethodID returns the method_id_item at idx.
func (d *DexFile) MethodID(idx uint32) (MethodID, error) {
	if idx >= d.header.MethodIDsSize {
		return MethodID{}, d.errorf(KindIndexOutOfRange, "method index %d, pool holds %d", idx, d.header.MethodIDsSize)
	}
	off := d.header.MethodIDsOff + idx*methodIDItemSize
	return MethodID{
		Index:      idx,
		ClassIndex: binary.LittleEndian.Uint16(d.data[off:]),
		ProtoIndex: binary.LittleEndian.Uint16(d.data[off+2:]),
		NameIndex:  binary.LittleEndian.Uint32(d.data[off+4:]),
	}, nil
}

// ClassDef returns the class_def_item at idx.
func (d *DexFile) ClassDef(idx uint32) (ClassDef, error) {
	if idx >= d.header.ClassDefsSize {
		return ClassDef{}, d.errorf(KindIndexOutOfRange, "class def index %d, pool holds %d", idx, d.header.ClassDefsSize)
	}
	off := d.header.ClassDefsOff + idx*classDefItemSize
	return ClassDef{
		Index:           idx,
		ClassIndex:      binary.LittleEndian.Uint16(d.data[off:]),
		AccessFlags:     binary.LittleEndian.Uint32(d.data[off+4:]),
		SuperclassIndex: binary.LittleEndian.Uint16(d.data[off+8:]),
		InterfacesOff:   binary.LittleEndian.Uint32(d.data[off+12:]),
		SourceFileIndex: binary.LittleEndian.Uint32(d.data[off+16:]),
		AnnotationsOff:  binary.LittleEndian.Uint32(d.data[off+20:]),
		ClassDataOff:    binary.LittleEndian.Uint32(d.data[off+24:]),
		StaticValuesOff: binary.LittleEndian.Uint32(d.data[off+28:]),
	}, nil
}

// StringData returns the MUTF-8 bytes behind a string_id_item together
// with the declared UTF-16 length. The slice aliases the region and
// excludes the trailing NUL.
func (d *DexFile) StringData(id StringID) ([]byte, uint32, error) {
	if uint64(id.DataOff) >= uint64(len(d.data)) {
		return nil, 0, d.errorf(KindMalformedStructure, "string data offset %#x outside region", id.DataOff)
	}
	utf16Len, n, err := d.uleb128(id.DataOff)
	if err != nil {
		return nil, 0, err
	}
	start := id.DataOff + uint32(n)
	nul := bytes.IndexByte(d.data[start:], 0)
	if nul < 0 {
		return nil, 0, d.errorf(KindMalformedStructure, "unterminated string data at %#x", id.DataOff)
	}
	return d.data[start : start+uint32(nul)], utf16Len, nil
}

// StringDataByIndex returns the MUTF-8 bytes of the string at idx, or
// nil when idx is the NoIndex sentinel.
func (d *DexFile) StringDataByIndex(idx uint32) ([]byte, error) {
	if idx == NoIndex {
		return nil, nil
	}
	id, err := d.StringID(idx)
	if err != nil {
		return nil, err
	}
	data, _, err := d.StringData(id)
	return data, err
}

// StringByIndex decodes the MUTF-8 string at idx into a Go string.
// Returns "" for the NoIndex sentinel.
func (d *DexFile) StringByIndex(idx uint32) (string, error) {
	data, err := d.StringDataByIndex(idx)
	if err != nil || data == nil {
		return "", err
	}
	s, err := mutf8.Decode(data)
	if err != nil {
		return "", d.errorf(KindMalformedStructure, "string %d: %v", idx, err)
	}
	return s, nil
}

// TypeDescriptor returns the descriptor bytes behind a type_id_item.
func (d *DexFile) TypeDescriptor(id TypeID) ([]byte, error) {
	return d.StringDataByIndex(id.DescriptorIndex)
}

// TypeDescriptorByIndex returns the descriptor bytes of the type at idx.
func (d *DexFile) TypeDescriptorByIndex(idx uint32) ([]byte, error) {
	id, err := d.TypeID(idx)
	if err != nil {
		return nil, err
	}
	return d.TypeDescriptor(id)
}

// Field accessors.

// FieldDeclaringClassDescriptor returns the descriptor of the class
// declaring the field.
func (d *DexFile) FieldDeclaringClassDescriptor(f FieldID) ([]byte, error) {
	return d.TypeDescriptorByIndex(uint32(f.ClassIndex))
}

// FieldTypeDescriptor returns the descriptor of the field's type.
func (d *DexFile) FieldTypeDescriptor(f FieldID) ([]byte, error) {
	return d.TypeDescriptorByIndex(uint32(f.TypeIndex))
}

// FieldName returns the field's name bytes.
func (d *DexFile) FieldName(f FieldID) ([]byte, error) {
	return d.StringDataByIndex(f.NameIndex)
}

// Method accessors.

// MethodDeclaringClassDescriptor returns the descriptor of the class
// declaring the method.
func (d *DexFile) MethodDeclaringClassDescriptor(m MethodID) ([]byte, error) {
	return d.TypeDescriptorByIndex(uint32(m.ClassIndex))
}

// MethodName returns the method's name bytes.
func (d *DexFile) MethodName(m MethodID) ([]byte, error) {
	return d.StringDataByIndex(m.NameIndex)
}

// MethodPrototype returns the method's proto_id_item.
func (d *DexFile) MethodPrototype(m MethodID) (ProtoID, error) {
	return d.ProtoID(uint32(m.ProtoIndex))
}

// MethodShorty returns the method's shorty descriptor bytes.
func (d *DexFile) MethodShorty(m MethodID) ([]byte, error) {
	p, err := d.MethodPrototype(m)
	if err != nil {
		return nil, err
	}
	return d.StringDataByIndex(p.ShortyIndex)
}

// Proto accessors.

// Shorty returns the shorty descriptor bytes of the proto at idx.
func (d *DexFile) Shorty(protoIdx uint32) ([]byte, error) {
	p, err := d.ProtoID(protoIdx)
	if err != nil {
		return nil, err
	}
	return d.StringDataByIndex(p.ShortyIndex)
}

// ReturnTypeDescriptor returns the descriptor of the proto's return
// type.
func (d *DexFile) ReturnTypeDescriptor(p ProtoID) ([]byte, error) {
	return d.TypeDescriptorByIndex(uint32(p.ReturnTypeIndex))
}

// ProtoParameters returns the proto's parameter TypeList, or nil when
// the proto has none.
func (d *DexFile) ProtoParameters(p ProtoID) (*TypeList, error) {
	return d.typeListAt(p.ParametersOff)
}

// ClassDef accessors.

// ClassDescriptor returns the descriptor bytes of the defined class.
func (d *DexFile) ClassDescriptor(c ClassDef) ([]byte, error) {
	return d.TypeDescriptorByIndex(uint32(c.ClassIndex))
}

// SourceFile returns the class's source file name bytes, or nil when
// none is recorded.
func (d *DexFile) SourceFile(c ClassDef) ([]byte, error) {
	if c.SourceFileIndex == NoIndex {
		return nil, nil
	}
	return d.StringDataByIndex(c.SourceFileIndex)
}

// Interfaces returns the class's interface TypeList, or nil when the
// class implements none.
func (d *DexFile) Interfaces(c ClassDef) (*TypeList, error) {
	return d.typeListAt(c.InterfacesOff)
}

// ClassData returns the raw class_data_item bytes for the class, or nil
// for a class without one. The slice runs to the end of the region; the
// class-data iterator knows where the stream actually ends.
func (d *DexFile) ClassData(c ClassDef) ([]byte, error) {
	if c.ClassDataOff == 0 {
		return nil, nil
	}
	if uint64(c.ClassDataOff) >= uint64(len(d.data)) {
		return nil, d.errorf(KindMalformedStructure, "class data offset %#x outside region", c.ClassDataOff)
	}
	return d.data[c.ClassDataOff:], nil
}

// StaticValues returns the raw encoded_array_item bytes holding the
// class's static field initializers, or nil when it has none.
func (d *DexFile) StaticValues(c ClassDef) ([]byte, error) {
	if c.StaticValuesOff == 0 {
		return nil, nil
	}
	if uint64(c.StaticValuesOff) >= uint64(len(d.data)) {
		return nil, d.errorf(KindMalformedStructure, "static values offset %#x outside region", c.StaticValuesOff)
	}
	return d.data[c.StaticValuesOff:], nil
}

// uleb128 decodes an unsigned LEB128 value at an absolute region offset.
func (d *DexFile) uleb128(off uint32) (uint32, int, error) {
	v, n := uleb128At(d.data, off)
	if n <= 0 {
		return 0, 0, d.errorf(KindMalformedLEB128, "at offset %#x", off)
	}
	return v, n, nil
}
