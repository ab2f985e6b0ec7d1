package dexfile

import (
	"bytes"
	"encoding/binary"
)

// HeaderSize is the fixed size of the header_item at the start of every
// DEX image.
const HeaderSize = 112

const endianTag = 0x12345678

var magicPrefix = []byte{'d', 'e', 'x', '\n'}

// Header is the decoded header_item. The link, map and data fields are
// decoded but not cross-checked; this reader derives every section from
// the six (size, offset) pairs.
type Header struct {
	Magic         [8]byte
	Checksum      uint32
	Signature     [20]byte
	FileSize      uint32
	HeaderSize    uint32
	EndianTag     uint32
	LinkSize      uint32
	LinkOff       uint32
	MapOff        uint32
	StringIDsSize uint32
	StringIDsOff  uint32
	TypeIDsSize   uint32
	TypeIDsOff    uint32
	ProtoIDsSize  uint32
	ProtoIDsOff   uint32
	FieldIDsSize  uint32
	FieldIDsOff   uint32
	MethodIDsSize uint32
	MethodIDsOff  uint32
	ClassDefsSize uint32
	ClassDefsOff  uint32
	DataSize      uint32
	DataOff       uint32
}

func decodeHeader(b []byte) Header {
	var h Header
	copy(h.Magic[:], b[0:8])
	h.Checksum = binary.LittleEndian.Uint32(b[8:])
	copy(h.Signature[:], b[12:32])
	h.FileSize = binary.LittleEndian.Uint32(b[32:])
	h.HeaderSize = binary.LittleEndian.Uint32(b[36:])
	h.EndianTag = binary.LittleEndian.Uint32(b[40:])
	h.LinkSize = binary.LittleEndian.Uint32(b[44:])
	h.LinkOff = binary.LittleEndian.Uint32(b[48:])
	h.MapOff = binary.LittleEndian.Uint32(b[52:])
	h.StringIDsSize = binary.LittleEndian.Uint32(b[56:])
	h.StringIDsOff = binary.LittleEndian.Uint32(b[60:])
	h.TypeIDsSize = binary.LittleEndian.Uint32(b[64:])
	h.TypeIDsOff = binary.LittleEndian.Uint32(b[68:])
	h.ProtoIDsSize = binary.LittleEndian.Uint32(b[72:])
	h.ProtoIDsOff = binary.LittleEndian.Uint32(b[76:])
	h.FieldIDsSize = binary.LittleEndian.Uint32(b[80:])
	h.FieldIDsOff = binary.LittleEndian.Uint32(b[84:])
	h.MethodIDsSize = binary.LittleEndian.Uint32(b[88:])
	h.MethodIDsOff = binary.LittleEndian.Uint32(b[92:])
	h.ClassDefsSize = binary.LittleEndian.Uint32(b[96:])
	h.ClassDefsOff = binary.LittleEndian.Uint32(b[100:])
	h.DataSize = binary.LittleEndian.Uint32(b[104:])
	h.DataOff = binary.LittleEndian.Uint32(b[108:])
	return h
}

// validMagic reports whether the 8 magic bytes carry the "dex\n" prefix,
// three ASCII digits, and a trailing NUL.
func validMagic(magic []byte) bool {
	if !bytes.Equal(magic[0:4], magicPrefix) {
		return false
	}
	for _, c := range magic[4:7] {
		if c < '0' || c > '9' {
			return false
		}
	}
	return magic[7] == 0
}

// version decodes the three ASCII digits of an already-validated magic.
func version(magic []byte) uint32 {
	var v uint32
	for _, c := range magic[4:7] {
		v = v*10 + uint32(c-'0')
	}
	return v
}

func (d *DexFile) validateHeader() error {
	n := uint64(len(d.data))
	if n < HeaderSize {
		return d.errorf(KindMalformedHeader, "region of %d bytes is smaller than the %d byte header", n, HeaderSize)
	}
	h := &d.header
	if !validMagic(h.Magic[:]) {
		return d.errorf(KindMalformedHeader, "bad magic %q", h.Magic[:])
	}
	if h.EndianTag != endianTag {
		return d.errorf(KindMalformedHeader, "unexpected endian tag %#x", h.EndianTag)
	}
	if uint64(h.FileSize) > n {
		return d.errorf(KindMalformedHeader, "declared file size %d exceeds region of %d bytes", h.FileSize, n)
	}
	if h.HeaderSize < HeaderSize {
		return d.errorf(KindMalformedHeader, "declared header size %d is too small", h.HeaderSize)
	}
	if h.TypeIDsSize > NoIndex16 {
		return d.errorf(KindMalformedHeader, "type_ids_size %d exceeds the 16-bit index space", h.TypeIDsSize)
	}
	if h.ProtoIDsSize > NoIndex16 {
		return d.errorf(KindMalformedHeader, "proto_ids_size %d exceeds the 16-bit index space", h.ProtoIDsSize)
	}
	sections := []struct {
		name   string
		size   uint32
		off    uint32
		stride uint32
	}{
		{"string_ids", h.StringIDsSize, h.StringIDsOff, stringIDItemSize},
		{"type_ids", h.TypeIDsSize, h.TypeIDsOff, typeIDItemSize},
		{"proto_ids", h.ProtoIDsSize, h.ProtoIDsOff, protoIDItemSize},
		{"field_ids", h.FieldIDsSize, h.FieldIDsOff, fieldIDItemSize},
		{"method_ids", h.MethodIDsSize, h.MethodIDsOff, methodIDItemSize},
		{"class_defs", h.ClassDefsSize, h.ClassDefsOff, classDefItemSize},
	}
	for _, s := range sections {
		if s.size == 0 {
			continue
		}
		end := uint64(s.off) + uint64(s.size)*uint64(s.stride)
		if uint64(s.off) < HeaderSize || end > n {
			return d.errorf(KindMalformedHeader, "%s section (%d entries at %#x) lies outside the region", s.name, s.size, s.off)
		}
	}
	return nil
}
