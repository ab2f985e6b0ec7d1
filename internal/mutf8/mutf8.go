// Package mutf8 handles the modified UTF-8 encoding used for DEX string
// data: U+0000 is encoded as the two-byte sequence 0xC0 0x80, and
// supplementary-plane characters appear as a surrogate pair with each
// half in its own three-byte sequence.
package mutf8

import (
	"errors"
	"unicode/utf16"
)

var errMalformed = errors.New("mutf8: malformed byte sequence")

// Decode converts a MUTF-8 byte sequence (without the trailing NUL) into
// a Go string. Unpaired surrogates are kept as replacement characters so
// that a lossy but total conversion is always available.
func Decode(b []byte) (string, error) {
	units, err := decodeUnits(b)
	if err != nil {
		return "", err
	}
	return string(utf16.Decode(units)), nil
}

// Utf16Len returns the number of UTF-16 code units the sequence decodes
// to. This is the quantity the string_data_item length prefix declares.
func Utf16Len(b []byte) (int, error) {
	units, err := decodeUnits(b)
	if err != nil {
		return 0, err
	}
	return len(units), nil
}

// Valid reports whether b is a well-formed MUTF-8 sequence.
func Valid(b []byte) bool {
	_, err := decodeUnits(b)
	return err == nil
}

func decodeUnits(b []byte) ([]uint16, error) {
	units := make([]uint16, 0, len(b))
	for i := 0; i < len(b); {
		c := b[i]
		switch {
		case c == 0x00:
			// Plain NUL bytes never appear; U+0000 uses the two-byte form.
			return nil, errMalformed
		case c < 0x80:
			units = append(units, uint16(c))
			i++
		case c&0xe0 == 0xc0:
			if i+1 >= len(b) || b[i+1]&0xc0 != 0x80 {
				return nil, errMalformed
			}
			units = append(units, uint16(c&0x1f)<<6|uint16(b[i+1]&0x3f))
			i += 2
		case c&0xf0 == 0xe0:
			if i+2 >= len(b) || b[i+1]&0xc0 != 0x80 || b[i+2]&0xc0 != 0x80 {
				return nil, errMalformed
			}
			units = append(units, uint16(c&0x0f)<<12|uint16(b[i+1]&0x3f)<<6|uint16(b[i+2]&0x3f))
			i += 3
		default:
			// Four-byte UTF-8 sequences are not part of the encoding.
			return nil, errMalformed
		}
	}
	return units, nil
}

// Encode converts a Go string to its MUTF-8 representation, without the
// trailing NUL. The second result is the UTF-16 code-unit length that
// belongs in the string_data_item prefix.
func Encode(s string) ([]byte, int) {
	var out []byte
	n := 0
	for _, r := range s {
		switch {
		case r == 0:
			out = append(out, 0xc0, 0x80)
			n++
		case r < 0x80:
			out = append(out, byte(r))
			n++
		case r < 0x800:
			out = append(out, 0xc0|byte(r>>6), 0x80|byte(r&0x3f))
			n++
		case r < 0x10000:
			out = append(out, 0xe0|byte(r>>12), 0x80|byte(r>>6&0x3f), 0x80|byte(r&0x3f))
			n++
		default:
			hi, lo := utf16.EncodeRune(r)
			for _, u := range [2]rune{hi, lo} {
				out = append(out, 0xe0|byte(u>>12), 0x80|byte(u>>6&0x3f), 0x80|byte(u&0x3f))
			}
			n += 2
		}
	}
	return out, n
}
