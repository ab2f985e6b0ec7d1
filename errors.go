package dexfile

import "fmt"

// Kind classifies structural failures while parsing a container. Kinds
// are themselves errors so callers can match with errors.Is without
// caring about the wrapping Error value.
type Kind string

const (
	// KindMalformedHeader covers magic, endianness, and header size
	// inconsistencies detected while opening a container.
	KindMalformedHeader Kind = "malformed header"

	// KindIndexOutOfRange covers pool indices, and recovered inverse
	// indices, that exceed their pool.
	KindIndexOutOfRange Kind = "index out of range"

	// KindMalformedLEB128 covers LEB128 values that overrun five bytes
	// or run past the end of the region.
	KindMalformedLEB128 Kind = "malformed leb128"

	// KindMalformedStructure covers offsets outside the region,
	// alignment violations, and inconsistent variable-length streams.
	KindMalformedStructure Kind = "malformed structure"
)

func (k Kind) Error() string { return string(k) }

// Error is a structural parse failure. Every instance carries the
// container's location label for diagnostics. Semantic lookup misses are
// never reported as an Error; those return absent results.
type Error struct {
	Kind     Kind
	Location string
	Message  string
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s: %s", e.Location, e.Kind, e.Message)
}

// Unwrap exposes the kind for errors.Is matching.
func (e *Error) Unwrap() error { return e.Kind }

func (d *DexFile) errorf(kind Kind, format string, args ...interface{}) error {
	return &Error{Kind: kind, Location: d.location, Message: fmt.Sprintf(format, args...)}
}
