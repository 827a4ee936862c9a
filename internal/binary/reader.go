package binary

import (
	"encoding/binary"
	"math"
	"unicode/utf8"

	"github.com/wippyai/wasm-ir/errors"
)

// Reader decodes wire-format primitives from a byte slice with absolute
// position tracking. Sub-readers created by Sub keep reporting offsets
// relative to the original input, so errors surfaced from deep inside a
// section still carry the real byte offset.
type Reader struct {
	data []byte
	pos  int
	base int
}

// NewReader creates a Reader over data, with offsets starting at zero.
func NewReader(data []byte) *Reader {
	return &Reader{data: data}
}

// NewReaderAt creates a Reader over data whose reported offsets start at
// base. Used when re-reading a region extracted from a larger input.
func NewReaderAt(data []byte, base int) *Reader {
	return &Reader{data: data, base: base}
}

// Position returns the number of bytes consumed from this reader.
func (r *Reader) Position() int {
	return r.pos
}

// Offset returns the absolute byte offset into the original input.
func (r *Reader) Offset() int {
	return r.base + r.pos
}

// Len returns the total byte length of this reader's data.
func (r *Reader) Len() int {
	return len(r.data)
}

// Remaining returns the number of unread bytes.
func (r *Reader) Remaining() int {
	return len(r.data) - r.pos
}

// Sub consumes the next n bytes and returns a Reader over them whose
// offsets remain absolute. Used to frame length-prefixed sections.
func (r *Reader) Sub(n int) (*Reader, error) {
	if n < 0 || n > r.Remaining() {
		return nil, errors.UnexpectedEOF(r.Offset(), "length-prefixed region")
	}
	sub := &Reader{
		data: r.data[r.pos : r.pos+n],
		base: r.base + r.pos,
	}
	r.pos += n
	return sub, nil
}

// ReadByte reads a single byte and advances the position.
func (r *Reader) ReadByte() (byte, error) {
	if r.pos >= len(r.data) {
		return 0, errors.UnexpectedEOF(r.Offset(), "byte")
	}
	b := r.data[r.pos]
	r.pos++
	return b, nil
}

// ReadBytes reads exactly n bytes.
func (r *Reader) ReadBytes(n int) ([]byte, error) {
	if n < 0 || n > r.Remaining() {
		return nil, errors.UnexpectedEOF(r.Offset(), "byte sequence")
	}
	buf := r.data[r.pos : r.pos+n : r.pos+n]
	r.pos += n
	return buf, nil
}

// ReadU32 reads an unsigned LEB128 encoded uint32. Encodings may be
// non-minimal but never longer than 5 bytes, and unused bits in the
// final byte must be clear.
func (r *Reader) ReadU32() (uint32, error) {
	start := r.Offset()
	var result uint32
	var shift uint
	for {
		b, err := r.ReadByte()
		if err != nil {
			return 0, errors.UnexpectedEOF(r.Offset(), "varuint32")
		}
		if shift == 28 && b&0x70 != 0 {
			return 0, errors.MalformedVarint(start, "varuint32 exceeds 32 bits")
		}
		result |= uint32(b&0x7f) << shift
		if b&0x80 == 0 {
			return result, nil
		}
		shift += 7
		if shift >= 35 {
			return 0, errors.MalformedVarint(start, "varuint32 continuation past byte 5")
		}
	}
}

// ReadU64 reads an unsigned LEB128 encoded uint64.
func (r *Reader) ReadU64() (uint64, error) {
	start := r.Offset()
	var result uint64
	var shift uint
	for {
		b, err := r.ReadByte()
		if err != nil {
			return 0, errors.UnexpectedEOF(r.Offset(), "varuint64")
		}
		if shift == 63 && b&0x7e != 0 {
			return 0, errors.MalformedVarint(start, "varuint64 exceeds 64 bits")
		}
		result |= uint64(b&0x7f) << shift
		if b&0x80 == 0 {
			return result, nil
		}
		shift += 7
		if shift >= 70 {
			return 0, errors.MalformedVarint(start, "varuint64 continuation past byte 10")
		}
	}
}

// ReadS32 reads a signed LEB128 encoded int32.
func (r *Reader) ReadS32() (int32, error) {
	start := r.Offset()
	var result int32
	var shift uint
	var b byte
	for {
		var err error
		b, err = r.ReadByte()
		if err != nil {
			return 0, errors.UnexpectedEOF(r.Offset(), "varint32")
		}
		if shift == 28 {
			// Bits 4-6 of the final byte must match the sign bit.
			if sign := b & 0x08; (sign == 0 && b&0x70 != 0) || (sign != 0 && b&0x70 != 0x70) {
				return 0, errors.MalformedVarint(start, "varint32 exceeds 32 bits")
			}
		}
		result |= int32(b&0x7f) << shift
		shift += 7
		if b&0x80 == 0 {
			break
		}
		if shift >= 35 {
			return 0, errors.MalformedVarint(start, "varint32 continuation past byte 5")
		}
	}
	if shift < 32 && b&0x40 != 0 {
		result |= ^int32(0) << shift
	}
	return result, nil
}

// ReadS33 reads a signed LEB128 encoded 33-bit integer, used by block
// type immediates where -64..-1 are shorthand forms and non-negative
// values are type indices.
func (r *Reader) ReadS33() (int64, error) {
	start := r.Offset()
	var result int64
	var shift uint
	var b byte
	for {
		var err error
		b, err = r.ReadByte()
		if err != nil {
			return 0, errors.UnexpectedEOF(r.Offset(), "varint33")
		}
		if shift == 28 {
			if sign := b & 0x10; (sign == 0 && b&0x60 != 0) || (sign != 0 && b&0x60 != 0x60) {
				return 0, errors.MalformedVarint(start, "varint33 exceeds 33 bits")
			}
		}
		result |= int64(b&0x7f) << shift
		shift += 7
		if b&0x80 == 0 {
			break
		}
		if shift >= 35 {
			return 0, errors.MalformedVarint(start, "varint33 continuation past byte 5")
		}
	}
	if shift < 64 && b&0x40 != 0 {
		result |= ^int64(0) << shift
	}
	return result, nil
}

// ReadS64 reads a signed LEB128 encoded int64.
func (r *Reader) ReadS64() (int64, error) {
	start := r.Offset()
	var result int64
	var shift uint
	var b byte
	for {
		var err error
		b, err = r.ReadByte()
		if err != nil {
			return 0, errors.UnexpectedEOF(r.Offset(), "varint64")
		}
		if shift == 63 {
			if sign := b & 0x01; (sign == 0 && b&0x7e != 0) || (sign != 0 && b&0x7e != 0x7e) {
				return 0, errors.MalformedVarint(start, "varint64 exceeds 64 bits")
			}
		}
		result |= int64(b&0x7f) << shift
		shift += 7
		if b&0x80 == 0 {
			break
		}
		if shift >= 70 {
			return 0, errors.MalformedVarint(start, "varint64 continuation past byte 10")
		}
	}
	if shift < 64 && b&0x40 != 0 {
		result |= ^int64(0) << shift
	}
	return result, nil
}

// ReadF32 reads a little-endian IEEE-754 single.
func (r *Reader) ReadF32() (float32, error) {
	buf, err := r.ReadBytes(4)
	if err != nil {
		return 0, err
	}
	return math.Float32frombits(binary.LittleEndian.Uint32(buf)), nil
}

// ReadF64 reads a little-endian IEEE-754 double.
func (r *Reader) ReadF64() (float64, error) {
	buf, err := r.ReadBytes(8)
	if err != nil {
		return 0, err
	}
	return math.Float64frombits(binary.LittleEndian.Uint64(buf)), nil
}

// ReadName reads a UTF-8 encoded name (length-prefixed byte sequence).
func (r *Reader) ReadName() (string, error) {
	length, err := r.ReadU32()
	if err != nil {
		return "", err
	}
	start := r.Offset()
	data, err := r.ReadBytes(int(length))
	if err != nil {
		return "", err
	}
	if !utf8.Valid(data) {
		return "", errors.InvalidUTF8(start, data)
	}
	return string(data), nil
}

// ReadU32LE reads a little-endian uint32 (fixed 4 bytes).
func (r *Reader) ReadU32LE() (uint32, error) {
	buf, err := r.ReadBytes(4)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(buf), nil
}

// ReadRemaining reads all remaining bytes.
func (r *Reader) ReadRemaining() []byte {
	buf := r.data[r.pos:len(r.data):len(r.data)]
	r.pos = len(r.data)
	return buf
}
