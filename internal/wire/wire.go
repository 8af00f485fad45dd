// Package wire holds the byte-level helpers shared by the frame codec:
// big-endian integer packing and the padding scheme used by DATA,
// HEADERS and PUSH_PROMISE frames.
package wire

import (
	"errors"
	"reflect"
	"unsafe"

	"github.com/valyala/fastrand"
)

var (
	ErrMissingBytes  = errors.New("wire: not enough bytes to decode value")
	ErrPayloadExceeds = errors.New("wire: padding exceeds payload length")
)

func Uint24ToBytes(b []byte, n uint32) {
	_ = b[2]
	b[0] = byte(n >> 16)
	b[1] = byte(n >> 8)
	b[2] = byte(n)
}

func BytesToUint24(b []byte) uint32 {
	_ = b[2]
	return uint32(b[0])<<16 | uint32(b[1])<<8 | uint32(b[2])
}

func Uint32ToBytes(b []byte, n uint32) {
	_ = b[3]
	b[0] = byte(n >> 24)
	b[1] = byte(n >> 16)
	b[2] = byte(n >> 8)
	b[3] = byte(n)
}

func BytesToUint32(b []byte) uint32 {
	_ = b[3]
	return uint32(b[0])<<24 | uint32(b[1])<<16 | uint32(b[2])<<8 | uint32(b[3])
}

func AppendUint32Bytes(dst []byte, n uint32) []byte {
	return append(dst, byte(n>>24), byte(n>>16), byte(n>>8), byte(n))
}

func AppendUint24Bytes(dst []byte, n uint32) []byte {
	return append(dst, byte(n>>16), byte(n>>8), byte(n))
}

// Resize grows b (reusing its backing array when possible) to exactly
// neededLen bytes.
func Resize(b []byte, neededLen int) []byte {
	b = b[:cap(b)]
	if n := neededLen - len(b); n > 0 {
		b = append(b, make([]byte, n)...)
	}
	return b[:neededLen]
}

// CutPadding strips the 1-byte pad length prefix and trailing padding
// bytes a PADDED frame carries, returning the remaining payload.
func CutPadding(payload []byte, length int) ([]byte, error) {
	if len(payload) == 0 {
		return nil, ErrMissingBytes
	}
	pad := int(payload[0])
	if len(payload) < length-pad-1 || pad >= length {
		return nil, ErrPayloadExceeds
	}
	return payload[1 : length-pad], nil
}

// AddPadding prefixes b with a random pad length byte and appends that
// many zero bytes, mirroring the PADDED frame layout from RFC 7540 §6.1.
func AddPadding(b []byte) []byte {
	n := int(fastrand.Uint32n(256-9)) + 9
	orig := len(b)

	b = Resize(b, orig+n+1)
	copy(b[1:], b[:orig])
	b[0] = byte(n)
	for i := orig + 1; i < len(b); i++ {
		b[i] = 0
	}

	return b
}

// FastBytesToString avoids an allocation when a byte slice only needs
// to be read as a string for the lifetime of the caller.
func FastBytesToString(b []byte) string {
	return *(*string)(unsafe.Pointer(&b))
}

func FastStringToBytes(s string) []byte {
	sh := (*reflect.StringHeader)(unsafe.Pointer(&s))
	bh := reflect.SliceHeader{Data: sh.Data, Len: sh.Len, Cap: sh.Len}
	return *(*[]byte)(unsafe.Pointer(&bh))
}
