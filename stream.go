package dexfile

import "github.com/orizon-lang/dexfile/internal/leb128"

// Offset-based wrappers around the LEB128 decoders. Each returns the
// decoded value and the byte count consumed; a non-positive count means
// the value was truncated or overlong.

func uleb128At(data []byte, off uint32) (uint32, int) {
	if uint64(off) >= uint64(len(data)) {
		return 0, 0
	}
	return leb128.Uint32(data[off:])
}

func sleb128At(data []byte, off uint32) (int32, int) {
	if uint64(off) >= uint64(len(data)) {
		return 0, 0
	}
	return leb128.Int32(data[off:])
}

func uleb128p1At(data []byte, off uint32) (int32, int) {
	if uint64(off) >= uint64(len(data)) {
		return 0, 0
	}
	return leb128.Uint32P1(data[off:])
}
