package protocol

import (
	"unicode/utf8"
)

// OutputDecoder converts a stream of shell output chunks to UTF-8 strings.
// An incomplete sequence at the end of a chunk is held back and completed by
// the next one; bytes that can never form a valid sequence become U+FFFD.
//
// A decoder belongs to one output stream and is not safe for concurrent use.
type OutputDecoder struct {
	carry []byte
}

// Decode returns the decodable text in chunk, prefixed by any bytes held back
// from the previous call.
func (d *OutputDecoder) Decode(chunk []byte) string {
	buf := chunk
	if len(d.carry) > 0 {
		buf = append(d.carry, chunk...)
		d.carry = nil
	}

	cut := incompleteTail(buf)
	if cut < len(buf) {
		d.carry = append([]byte(nil), buf[cut:]...)
		buf = buf[:cut]
	}
	return toValidUTF8(buf)
}

// Flush returns any held-back bytes, replaced with U+FFFD.
func (d *OutputDecoder) Flush() string {
	if len(d.carry) == 0 {
		return ""
	}
	s := toValidUTF8(d.carry)
	d.carry = nil
	return s
}

// incompleteTail returns the offset of a trailing sequence that is a valid
// prefix of a longer rune, or len(b) when the input ends on a boundary.
func incompleteTail(b []byte) int {
	// a rune is at most 4 bytes, so only the last 3 can start a partial one
	for i := len(b) - 1; i >= 0 && i >= len(b)-(utf8.UTFMax-1); i-- {
		c := b[i]
		if c < utf8.RuneSelf {
			return len(b)
		}
		if !utf8.RuneStart(c) {
			continue
		}
		need := sequenceLength(c)
		if need == 0 || len(b)-i >= need {
			return len(b)
		}
		if utf8.FullRune(b[i:]) {
			// the available bytes already prove the sequence invalid
			return len(b)
		}
		return i
	}
	return len(b)
}

func sequenceLength(lead byte) int {
	switch {
	case lead&0xE0 == 0xC0:
		return 2
	case lead&0xF0 == 0xE0:
		return 3
	case lead&0xF8 == 0xF0:
		return 4
	default:
		return 0
	}
}

func toValidUTF8(b []byte) string {
	if utf8.Valid(b) {
		return string(b)
	}
	out := make([]rune, 0, len(b))
	for len(b) > 0 {
		r, size := utf8.DecodeRune(b)
		out = append(out, r)
		b = b[size:]
	}
	return string(out)
}
