package dexfile

import "encoding/binary"

const codeItemHeaderSize = 16

// CodeItem is a view over a code_item: the register frame shape, the
// bounded instruction array, and the optional try/catch tables that
// follow it.
type CodeItem struct {
	d   *DexFile
	off uint32

	RegistersSize uint16
	InsSize       uint16
	OutsSize      uint16
	TriesSize     uint16
	DebugInfoOff  uint32
	InsnsSize     uint32 // in 16-bit code units
}

// CodeItemAt returns the CodeItem view at an absolute offset. An offset
// of zero (abstract or native method) yields nil.
func (d *DexFile) CodeItemAt(off uint32) (*CodeItem, error) {
	if off == 0 {
		return nil, nil
	}
	if uint64(off)+codeItemHeaderSize > uint64(len(d.data)) {
		return nil, d.errorf(KindMalformedStructure, "code item offset %#x outside region", off)
	}
	ci := &CodeItem{
		d:             d,
		off:           off,
		RegistersSize: binary.LittleEndian.Uint16(d.data[off:]),
		InsSize:       binary.LittleEndian.Uint16(d.data[off+2:]),
		OutsSize:      binary.LittleEndian.Uint16(d.data[off+4:]),
		TriesSize:     binary.LittleEndian.Uint16(d.data[off+6:]),
		DebugInfoOff:  binary.LittleEndian.Uint32(d.data[off+8:]),
		InsnsSize:     binary.LittleEndian.Uint32(d.data[off+12:]),
	}
	if uint64(off)+codeItemHeaderSize+2*uint64(ci.InsnsSize) > uint64(len(d.data)) {
		return nil, d.errorf(KindMalformedStructure, "code item at %#x: %d code units overrun region", off, ci.InsnsSize)
	}
	if ci.TriesSize > 0 {
		end := uint64(ci.triesOff()) + uint64(ci.TriesSize)*tryItemSize
		if end > uint64(len(d.data)) {
			return nil, d.errorf(KindMalformedStructure, "code item at %#x: %d try items overrun region", off, ci.TriesSize)
		}
	}
	return ci, nil
}

// Insns returns the raw instruction array: InsnsSize 16-bit code units
// as bytes. The slice aliases the region.
func (ci *CodeItem) Insns() []byte {
	start := ci.off + codeItemHeaderSize
	return ci.d.data[start:ci.insnsEnd()]
}

func (ci *CodeItem) insnsEnd() uint32 {
	return ci.off + codeItemHeaderSize + 2*ci.InsnsSize
}

// triesOff is the 4-byte aligned start of the try_item array.
func (ci *CodeItem) triesOff() uint32 {
	return (ci.insnsEnd() + 3) &^ 3
}

// handlersOff is the start of the catch-handler data block, immediately
// after the try_item array.
func (ci *CodeItem) handlersOff() uint32 {
	return ci.triesOff() + uint32(ci.TriesSize)*tryItemSize
}

const tryItemSize = 8

// TryItem is a try_item: a range of code units with an offset into the
// catch-handler data block.
type TryItem struct {
	StartAddr  uint32
	InsnCount  uint16
	HandlerOff uint16
}

// TryItem returns the try_item at index i.
func (ci *CodeItem) TryItem(i uint32) (TryItem, error) {
	if i >= uint32(ci.TriesSize) {
		return TryItem{}, ci.d.errorf(KindIndexOutOfRange, "try item %d, code item holds %d", i, ci.TriesSize)
	}
	off := ci.triesOff() + i*tryItemSize
	return TryItem{
		StartAddr:  binary.LittleEndian.Uint32(ci.d.data[off:]),
		InsnCount:  binary.LittleEndian.Uint16(ci.d.data[off+4:]),
		HandlerOff: binary.LittleEndian.Uint16(ci.d.data[off+6:]),
	}, nil
}

// FindCatchHandlerOffset scans the try_item array for the entry whose
// range contains address and returns its handler offset, or -1 when no
// try range covers the address.
func (ci *CodeItem) FindCatchHandlerOffset(address uint32) (int32, error) {
	for i := uint32(0); i < uint32(ci.TriesSize); i++ {
		ti, err := ci.TryItem(i)
		if err != nil {
			return -1, err
		}
		if address >= ti.StartAddr && address < ti.StartAddr+uint32(ti.InsnCount) {
			return int32(ti.HandlerOff), nil
		}
	}
	return -1, nil
}

// CatchHandlerIterator walks one encoded_catch_handler set: a signed
// LEB128 size whose sign says whether a catch-all follows the typed
// handlers, then that many (type_idx, address) pairs. The iterator is
// positioned on the first handler after construction; HasNext reports
// whether the current record is valid.
type CatchHandlerIterator struct {
	d   *DexFile
	off uint32 // byte cursor, absolute region offset

	typeIdx   uint16
	address   uint32
	remaining int32
	catchAll  bool
}

// CatchHandlersForAddress returns an iterator over the handlers guarding
// the given code-unit address. When no try range covers the address the
// iterator is immediately exhausted.
func (d *DexFile) CatchHandlersForAddress(ci *CodeItem, address uint32) (*CatchHandlerIterator, error) {
	off, err := ci.FindCatchHandlerOffset(address)
	if err != nil {
		return nil, err
	}
	if off < 0 {
		return &CatchHandlerIterator{d: d, remaining: -1}, nil
	}
	return d.CatchHandlersAt(ci.handlersOff() + uint32(off))
}

// CatchHandlersAt returns an iterator over the encoded_catch_handler
// set at an absolute region offset.
func (d *DexFile) CatchHandlersAt(off uint32) (*CatchHandlerIterator, error) {
	it := &CatchHandlerIterator{d: d, off: off}
	size, n := sleb128At(d.data, off)
	if n <= 0 {
		return nil, d.errorf(KindMalformedLEB128, "in catch handler set at offset %#x", off)
	}
	it.off += uint32(n)
	if size <= 0 {
		it.catchAll = true
		it.remaining = -size
	} else {
		it.remaining = size
	}
	if err := it.Next(); err != nil {
		return nil, err
	}
	return it, nil
}

// HasNext reports whether the current handler record is valid.
func (it *CatchHandlerIterator) HasNext() bool {
	return it.remaining != -1 || it.catchAll
}

// Next loads the next typed handler, or the catch-all once the typed
// handlers are exhausted.
func (it *CatchHandlerIterator) Next() error {
	if it.remaining > 0 {
		if err := it.readHandler(false); err != nil {
			return err
		}
		it.remaining--
		return nil
	}
	if it.catchAll {
		if err := it.readHandler(true); err != nil {
			return err
		}
		it.catchAll = false
		return nil
	}
	// No more handlers in this set.
	it.remaining = -1
	return nil
}

func (it *CatchHandlerIterator) readHandler(catchAll bool) error {
	if catchAll {
		it.typeIdx = NoIndex16
	} else {
		v, n := uleb128At(it.d.data, it.off)
		if n <= 0 {
			return it.d.errorf(KindMalformedLEB128, "in catch handler at offset %#x", it.off)
		}
		it.off += uint32(n)
		it.typeIdx = uint16(v)
	}
	v, n := uleb128At(it.d.data, it.off)
	if n <= 0 {
		return it.d.errorf(KindMalformedLEB128, "in catch handler at offset %#x", it.off)
	}
	it.off += uint32(n)
	it.address = v
	return nil
}

// HandlerTypeIndex returns the caught exception's type index, or
// NoIndex16 for the catch-all handler.
func (it *CatchHandlerIterator) HandlerTypeIndex() uint16 { return it.typeIdx }

// HandlerAddress returns the handler's code-unit address.
func (it *CatchHandlerIterator) HandlerAddress() uint32 { return it.address }

// EndOffset returns the byte just past this handler set, locating the
// next set. Only meaningful once HasNext is false.
func (it *CatchHandlerIterator) EndOffset() uint32 { return it.off }
