package dexfile

// Debug-info stream decoder. The stream drives a (address, line) state
// machine over a method's instructions and records the liveness of
// register-resident locals. Decoding emits through caller-supplied
// callbacks; the position callback may stop the decode early by
// returning true.

// Debug stream opcodes.
const (
	dbgEndSequence      = 0x00
	dbgAdvancePC        = 0x01
	dbgAdvanceLine      = 0x02
	dbgStartLocal       = 0x03
	dbgStartLocalExt    = 0x04
	dbgEndLocal         = 0x05
	dbgRestartLocal     = 0x06
	dbgSetPrologueEnd   = 0x07
	dbgSetEpilogueBegin = 0x08
	dbgSetFile          = 0x09
	dbgFirstSpecial     = 0x0a
	dbgLineBase         = -4
	dbgLineRange        = 15
)

// PositionCallback receives each emitted (address, line) position.
// Returning true stops the decode before the next opcode is read.
type PositionCallback func(address, line uint32) bool

// LocalCallback receives the lifetime of one register-resident local.
// signature is nil unless the local carried an extended signature.
type LocalCallback func(reg uint16, startAddress, endAddress uint32, name, descriptor, signature []byte)

type localInfo struct {
	name         []byte
	descriptor   []byte
	signature    []byte
	startAddress uint32
	live         bool
}

type debugState struct {
	d       *DexFile
	ci      *CodeItem
	off     uint32
	localCb LocalCallback
	locals  []localInfo
}

func (s *debugState) uleb128() (uint32, error) {
	v, n := uleb128At(s.d.data, s.off)
	if n <= 0 {
		return 0, s.d.errorf(KindMalformedLEB128, "in debug info at offset %#x", s.off)
	}
	s.off += uint32(n)
	return v, nil
}

func (s *debugState) sleb128() (int32, error) {
	v, n := sleb128At(s.d.data, s.off)
	if n <= 0 {
		return 0, s.d.errorf(KindMalformedLEB128, "in debug info at offset %#x", s.off)
	}
	s.off += uint32(n)
	return v, nil
}

// uleb128p1 reads a string or type slot that may hold the "no entry"
// sentinel, returning the index or NoIndex.
func (s *debugState) uleb128p1() (uint32, error) {
	v, n := uleb128p1At(s.d.data, s.off)
	if n <= 0 {
		return 0, s.d.errorf(KindMalformedLEB128, "in debug info at offset %#x", s.off)
	}
	s.off += uint32(n)
	if v < 0 {
		return NoIndex, nil
	}
	return uint32(v), nil
}

func (s *debugState) opcode() (byte, error) {
	if uint64(s.off) >= uint64(len(s.d.data)) {
		return 0, s.d.errorf(KindMalformedStructure, "debug info stream runs past region at %#x", s.off)
	}
	op := s.d.data[s.off]
	s.off++
	return op, nil
}

func (s *debugState) checkReg(reg uint32, what string) error {
	if reg >= uint32(s.ci.RegistersSize) {
		return s.d.errorf(KindMalformedStructure, "%s names register %d, frame holds %d", what, reg, s.ci.RegistersSize)
	}
	return nil
}

// emitLocalIfLive reports the end of the local living in reg, if any.
func (s *debugState) emitLocalIfLive(reg uint32, endAddress uint32) {
	l := &s.locals[reg]
	if s.localCb != nil && l.live {
		s.localCb(uint16(reg), l.startAddress, endAddress, l.name, l.descriptor, l.signature)
	}
}

// DecodeDebugInfo decodes the debug-info stream attached to ci, feeding
// positions to posCb and local lifetimes to localCb; either callback
// may be nil. methodIdx names the method owning ci and is used to
// resolve the receiver and parameter descriptors. A nil ci or a code
// item without debug info decodes to nothing.
func (d *DexFile) DecodeDebugInfo(ci *CodeItem, isStatic bool, methodIdx uint32, posCb PositionCallback, localCb LocalCallback) error {
	if ci == nil || ci.DebugInfoOff == 0 {
		return nil
	}
	if uint64(ci.DebugInfoOff) >= uint64(len(d.data)) {
		return d.errorf(KindMalformedStructure, "debug info offset %#x outside region", ci.DebugInfoOff)
	}
	s := &debugState{
		d:       d,
		ci:      ci,
		off:     ci.DebugInfoOff,
		localCb: localCb,
		locals:  make([]localInfo, ci.RegistersSize),
	}

	lineStart, err := s.uleb128()
	if err != nil {
		return err
	}
	parametersSize, err := s.uleb128()
	if err != nil {
		return err
	}

	method, err := d.MethodID(methodIdx)
	if err != nil {
		return err
	}

	// Parameter slots precede the opcode stream. Register 0 holds the
	// receiver of a non-static method; wide types take two registers.
	argReg := uint32(0)
	if !isStatic {
		if err := s.checkReg(argReg, "receiver"); err != nil {
			return err
		}
		descriptor, err := d.MethodDeclaringClassDescriptor(method)
		if err != nil {
			return err
		}
		s.locals[argReg] = localInfo{
			name:       []byte("this"),
			descriptor: descriptor,
			live:       localCb != nil,
		}
		argReg++
	}

	proto, err := d.MethodPrototype(method)
	if err != nil {
		return err
	}
	params, err := d.Parameters(proto)
	if err != nil {
		return err
	}
	for i := uint32(0); i < parametersSize; i++ {
		if !params.HasNext() {
			return d.errorf(KindMalformedStructure, "debug info declares %d parameters, prototype has fewer", parametersSize)
		}
		descriptor, err := params.Descriptor()
		if err != nil {
			return err
		}
		params.Next()
		nameIdx, err := s.uleb128p1()
		if err != nil {
			return err
		}
		if err := s.checkReg(argReg, "parameter"); err != nil {
			return err
		}
		if nameIdx != NoIndex {
			name, err := d.StringDataByIndex(nameIdx)
			if err != nil {
				return err
			}
			s.locals[argReg] = localInfo{
				name:       name,
				descriptor: descriptor,
				live:       localCb != nil,
			}
		}
		argReg++
		if len(descriptor) == 1 && (descriptor[0] == 'J' || descriptor[0] == 'D') {
			argReg++
		}
	}

	address := uint32(0)
	line := lineStart
	for {
		op, err := s.opcode()
		if err != nil {
			return err
		}
		switch {
		case op == dbgEndSequence:
			for reg := range s.locals {
				s.emitLocalIfLive(uint32(reg), ci.InsnsSize)
			}
			return nil

		case op == dbgAdvancePC:
			diff, err := s.uleb128()
			if err != nil {
				return err
			}
			address += diff

		case op == dbgAdvanceLine:
			diff, err := s.sleb128()
			if err != nil {
				return err
			}
			line += uint32(diff)

		case op == dbgStartLocal || op == dbgStartLocalExt:
			reg, err := s.uleb128()
			if err != nil {
				return err
			}
			if err := s.checkReg(reg, "start local"); err != nil {
				return err
			}
			nameIdx, err := s.uleb128p1()
			if err != nil {
				return err
			}
			descIdx, err := s.uleb128p1()
			if err != nil {
				return err
			}
			var signature []byte
			if op == dbgStartLocalExt {
				sigIdx, err := s.uleb128p1()
				if err != nil {
					return err
				}
				if signature, err = d.StringDataByIndex(sigIdx); err != nil {
					return err
				}
			}
			// A local already live in this register ends here.
			s.emitLocalIfLive(reg, address)
			name, err := d.StringDataByIndex(nameIdx)
			if err != nil {
				return err
			}
			descriptor, err := d.StringDataByIndex(descIdx)
			if err != nil {
				return err
			}
			s.locals[reg] = localInfo{
				name:         name,
				descriptor:   descriptor,
				signature:    signature,
				startAddress: address,
				live:         true,
			}

		case op == dbgEndLocal:
			reg, err := s.uleb128()
			if err != nil {
				return err
			}
			if err := s.checkReg(reg, "end local"); err != nil {
				return err
			}
			s.emitLocalIfLive(reg, address)
			s.locals[reg].live = false

		case op == dbgRestartLocal:
			reg, err := s.uleb128()
			if err != nil {
				return err
			}
			if err := s.checkReg(reg, "restart local"); err != nil {
				return err
			}
			if !s.locals[reg].live {
				s.locals[reg].startAddress = address
				s.locals[reg].live = true
			}

		case op == dbgSetPrologueEnd || op == dbgSetEpilogueBegin:
			// Informational flags on the next position; nothing to track
			// for the callback surface.

		case op == dbgSetFile:
			if _, err := s.uleb128p1(); err != nil {
				return err
			}

		default:
			// Special opcode: advance both address and line, emit.
			adj := uint32(op) - dbgFirstSpecial
			line += uint32(dbgLineBase + int32(adj%dbgLineRange))
			address += adj / dbgLineRange
			if posCb != nil && posCb(address, line) {
				return nil
			}
		}
	}
}

// LineNumberForPC returns the source line active at pc, a code-unit
// offset from the start of the method: the line of the greatest emitted
// position with address <= pc. Returns -1 when the stream emits no such
// position (e.g. compiled without debug info) and -2 for a nil code
// item (native method).
func (d *DexFile) LineNumberForPC(ci *CodeItem, isStatic bool, methodIdx uint32, pc uint32) (int32, error) {
	if ci == nil {
		return -2, nil
	}
	line := int32(-1)
	err := d.DecodeDebugInfo(ci, isStatic, methodIdx, func(address, ln uint32) bool {
		if address > pc {
			return true
		}
		line = int32(ln)
		return false
	}, nil)
	if err != nil {
		return -1, err
	}
	return line, nil
}
