package dexfile

// Test-only builder assembling minimal but structurally valid DEX
// images in memory. Pool entries must be registered in the format's
// sorted order before sealPools; data blobs are appended afterwards and
// referenced by the absolute offsets the builder hands out.

import (
	"encoding/binary"

	"github.com/orizon-lang/dexfile/internal/mutf8"
)

type testProto struct {
	shortyIdx  uint32
	returnType uint16
	params     []uint16
	paramsOff  uint32 // filled by sealPools when params is non-empty
}

type testField struct {
	class, typ uint16
	name       uint32
}

type testMethod struct {
	class, proto uint16
	name         uint32
}

type testClass struct {
	classIdx        uint16
	accessFlags     uint32
	superclassIdx   uint16
	interfacesOff   uint32
	sourceFileIdx   uint32
	annotationsOff  uint32
	classDataOff    uint32
	staticValuesOff uint32
}

type dexBuilder struct {
	strings []string // must be in MUTF-8 byte order
	types   []uint32 // descriptor string indices, ascending
	protos  []testProto
	fields  []testField
	methods []testMethod
	classes []testClass

	sealed         bool
	dataBase       uint32
	data           []byte
	stringDataOffs []uint32
}

func newDexBuilder() *dexBuilder { return &dexBuilder{} }

func (b *dexBuilder) addString(s string) uint32 {
	b.strings = append(b.strings, s)
	return uint32(len(b.strings) - 1)
}

func (b *dexBuilder) addType(stringIdx uint32) uint16 {
	b.types = append(b.types, stringIdx)
	return uint16(len(b.types) - 1)
}

func (b *dexBuilder) addProto(shortyIdx uint32, returnType uint16, params ...uint16) uint16 {
	b.protos = append(b.protos, testProto{shortyIdx: shortyIdx, returnType: returnType, params: params})
	return uint16(len(b.protos) - 1)
}

func (b *dexBuilder) addField(class uint16, typ uint16, name uint32) uint32 {
	b.fields = append(b.fields, testField{class: class, typ: typ, name: name})
	return uint32(len(b.fields) - 1)
}

func (b *dexBuilder) addMethod(class uint16, proto uint16, name uint32) uint32 {
	b.methods = append(b.methods, testMethod{class: class, proto: proto, name: name})
	return uint32(len(b.methods) - 1)
}

func (b *dexBuilder) addClass(c testClass) *testClass {
	b.classes = append(b.classes, c)
	return &b.classes[len(b.classes)-1]
}

// sealPools freezes the pool counts, lays out the fixed sections, and
// emits the string data (and proto parameter lists) at the front of the
// data section. Afterwards addData hands out stable absolute offsets.
func (b *dexBuilder) sealPools() {
	if b.sealed {
		panic("sealPools called twice")
	}
	b.sealed = true
	b.dataBase = uint32(HeaderSize +
		len(b.strings)*stringIDItemSize +
		len(b.types)*typeIDItemSize +
		len(b.protos)*protoIDItemSize +
		len(b.fields)*fieldIDItemSize +
		len(b.methods)*methodIDItemSize +
		len(b.classes)*classDefItemSize)

	b.stringDataOffs = make([]uint32, len(b.strings))
	for i, s := range b.strings {
		enc, utf16Len := mutf8.Encode(s)
		b.stringDataOffs[i] = b.nextDataOff()
		b.data = append(b.data, uleb(uint32(utf16Len))...)
		b.data = append(b.data, enc...)
		b.data = append(b.data, 0)
	}
	for i := range b.protos {
		p := &b.protos[i]
		if len(p.params) == 0 {
			continue
		}
		b.align4()
		p.paramsOff = b.nextDataOff()
		var tl []byte
		tl = binary.LittleEndian.AppendUint32(tl, uint32(len(p.params)))
		for _, t := range p.params {
			tl = binary.LittleEndian.AppendUint16(tl, t)
		}
		b.data = append(b.data, tl...)
	}
}

func (b *dexBuilder) nextDataOff() uint32 {
	return b.dataBase + uint32(len(b.data))
}

func (b *dexBuilder) align4() {
	for b.nextDataOff()%4 != 0 {
		b.data = append(b.data, 0)
	}
}

// addData appends a blob to the data section and returns its absolute
// offset in the image.
func (b *dexBuilder) addData(blob []byte) uint32 {
	if !b.sealed {
		panic("addData before sealPools")
	}
	off := b.nextDataOff()
	b.data = append(b.data, blob...)
	return off
}

func (b *dexBuilder) build() []byte {
	if !b.sealed {
		b.sealPools()
	}
	total := b.dataBase + uint32(len(b.data))
	img := make([]byte, 0, total)

	// Section offsets, in layout order.
	stringIDsOff := uint32(HeaderSize)
	typeIDsOff := stringIDsOff + uint32(len(b.strings)*stringIDItemSize)
	protoIDsOff := typeIDsOff + uint32(len(b.types)*typeIDItemSize)
	fieldIDsOff := protoIDsOff + uint32(len(b.protos)*protoIDItemSize)
	methodIDsOff := fieldIDsOff + uint32(len(b.fields)*fieldIDItemSize)
	classDefsOff := methodIDsOff + uint32(len(b.methods)*methodIDItemSize)

	sectionOff := func(n int, off uint32) uint32 {
		if n == 0 {
			return 0
		}
		return off
	}

	img = append(img, 'd', 'e', 'x', '\n', '0', '3', '5', 0)
	img = binary.LittleEndian.AppendUint32(img, 0) // checksum
	img = append(img, make([]byte, 20)...)         // signature
	img = binary.LittleEndian.AppendUint32(img, total)
	img = binary.LittleEndian.AppendUint32(img, HeaderSize)
	img = binary.LittleEndian.AppendUint32(img, endianTag)
	img = binary.LittleEndian.AppendUint32(img, 0) // link_size
	img = binary.LittleEndian.AppendUint32(img, 0) // link_off
	img = binary.LittleEndian.AppendUint32(img, 0) // map_off
	img = binary.LittleEndian.AppendUint32(img, uint32(len(b.strings)))
	img = binary.LittleEndian.AppendUint32(img, sectionOff(len(b.strings), stringIDsOff))
	img = binary.LittleEndian.AppendUint32(img, uint32(len(b.types)))
	img = binary.LittleEndian.AppendUint32(img, sectionOff(len(b.types), typeIDsOff))
	img = binary.LittleEndian.AppendUint32(img, uint32(len(b.protos)))
	img = binary.LittleEndian.AppendUint32(img, sectionOff(len(b.protos), protoIDsOff))
	img = binary.LittleEndian.AppendUint32(img, uint32(len(b.fields)))
	img = binary.LittleEndian.AppendUint32(img, sectionOff(len(b.fields), fieldIDsOff))
	img = binary.LittleEndian.AppendUint32(img, uint32(len(b.methods)))
	img = binary.LittleEndian.AppendUint32(img, sectionOff(len(b.methods), methodIDsOff))
	img = binary.LittleEndian.AppendUint32(img, uint32(len(b.classes)))
	img = binary.LittleEndian.AppendUint32(img, sectionOff(len(b.classes), classDefsOff))
	img = binary.LittleEndian.AppendUint32(img, uint32(len(b.data))) // data_size
	img = binary.LittleEndian.AppendUint32(img, b.dataBase)          // data_off

	for _, off := range b.stringDataOffs {
		img = binary.LittleEndian.AppendUint32(img, off)
	}
	for _, descIdx := range b.types {
		img = binary.LittleEndian.AppendUint32(img, descIdx)
	}
	for _, p := range b.protos {
		img = binary.LittleEndian.AppendUint32(img, p.shortyIdx)
		img = binary.LittleEndian.AppendUint16(img, p.returnType)
		img = binary.LittleEndian.AppendUint16(img, 0)
		img = binary.LittleEndian.AppendUint32(img, p.paramsOff)
	}
	for _, f := range b.fields {
		img = binary.LittleEndian.AppendUint16(img, f.class)
		img = binary.LittleEndian.AppendUint16(img, f.typ)
		img = binary.LittleEndian.AppendUint32(img, f.name)
	}
	for _, m := range b.methods {
		img = binary.LittleEndian.AppendUint16(img, m.class)
		img = binary.LittleEndian.AppendUint16(img, m.proto)
		img = binary.LittleEndian.AppendUint32(img, m.name)
	}
	for _, c := range b.classes {
		img = binary.LittleEndian.AppendUint16(img, c.classIdx)
		img = binary.LittleEndian.AppendUint16(img, 0)
		img = binary.LittleEndian.AppendUint32(img, c.accessFlags)
		img = binary.LittleEndian.AppendUint16(img, c.superclassIdx)
		img = binary.LittleEndian.AppendUint16(img, 0)
		img = binary.LittleEndian.AppendUint32(img, c.interfacesOff)
		img = binary.LittleEndian.AppendUint32(img, c.sourceFileIdx)
		img = binary.LittleEndian.AppendUint32(img, c.annotationsOff)
		img = binary.LittleEndian.AppendUint32(img, c.classDataOff)
		img = binary.LittleEndian.AppendUint32(img, c.staticValuesOff)
	}
	img = append(img, b.data...)
	return img
}

// uleb encodes one unsigned LEB128 value.
func uleb(v uint32) []byte {
	var out []byte
	for {
		c := byte(v & 0x7f)
		v >>= 7
		if v != 0 {
			out = append(out, c|0x80)
		} else {
			return append(out, c)
		}
	}
}

// ulebs concatenates the encodings of several unsigned values.
func ulebs(vs ...uint32) []byte {
	var out []byte
	for _, v := range vs {
		out = append(out, uleb(v)...)
	}
	return out
}

// sleb encodes one signed LEB128 value.
func sleb(v int32) []byte {
	var out []byte
	for {
		c := byte(v & 0x7f)
		v >>= 7
		if (v == 0 && c&0x40 == 0) || (v == -1 && c&0x40 != 0) {
			return append(out, c)
		}
		out = append(out, c|0x80)
	}
}

// codeItem assembles a code_item blob. insns is in code units; tries
// and handlers follow with the format's alignment. The caller aligns
// the blob itself to 4 bytes via align4 before addData.
func codeItem(registers, ins, outs uint16, debugOff uint32, insns []uint16, tries []TryItem, handlers []byte) []byte {
	var out []byte
	out = binary.LittleEndian.AppendUint16(out, registers)
	out = binary.LittleEndian.AppendUint16(out, ins)
	out = binary.LittleEndian.AppendUint16(out, outs)
	out = binary.LittleEndian.AppendUint16(out, uint16(len(tries)))
	out = binary.LittleEndian.AppendUint32(out, debugOff)
	out = binary.LittleEndian.AppendUint32(out, uint32(len(insns)))
	for _, u := range insns {
		out = binary.LittleEndian.AppendUint16(out, u)
	}
	if len(tries) > 0 {
		for len(out)%4 != 0 {
			out = append(out, 0)
		}
		for _, t := range tries {
			out = binary.LittleEndian.AppendUint32(out, t.StartAddr)
			out = binary.LittleEndian.AppendUint16(out, t.InsnCount)
			out = binary.LittleEndian.AppendUint16(out, t.HandlerOff)
		}
		out = append(out, handlers...)
	}
	return out
}
