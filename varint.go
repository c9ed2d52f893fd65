// SPDX-License-Identifier: GPL-3.0-or-later

package slp

import (
	"errors"
	"io"
)

const (
	// varIntDataBits masks the seven payload bits of a VarInt byte.
	varIntDataBits = 0x7F

	// varIntContinueBit is set on every VarInt byte except the last one.
	varIntContinueBit = 0x80

	// MaxVarIntLen is the maximum number of bytes of an encoded 32-bit VarInt.
	MaxVarIntLen = 5
)

// AppendVarInt appends the VarInt encoding of value to dst and returns
// the extended buffer.
//
// Groups of seven bits are emitted least significant first; every byte
// but the last one has the continuation bit set. The result is 1 to
// [MaxVarIntLen] bytes long.
func AppendVarInt(dst []byte, value uint32) []byte {
	for value&^varIntDataBits != 0 {
		dst = append(dst, byte(value&varIntDataBits)|varIntContinueBit)
		value >>= 7
	}
	return append(dst, byte(value))
}

// EncodeVarInt returns the VarInt encoding of value.
//
// Signed protocol fields (e.g., the protocol version) are encoded by
// converting them to uint32 first, so -1 becomes a 5-byte VarInt.
func EncodeVarInt(value uint32) []byte {
	return AppendVarInt(make([]byte, 0, MaxVarIntLen), value)
}

// DecodeVarInt reads a VarInt from r one byte at a time.
//
// It returns [ErrMalformedVarInt] when [MaxVarIntLen] bytes have been consumed
// and the continuation bit is still set, and [ErrEOF] when r ends before the
// terminating byte. Any other error returned by r is returned unchanged.
func DecodeVarInt(r io.ByteReader) (uint32, error) {
	var value uint32
	for i := 0; i < MaxVarIntLen; i++ {
		b, err := r.ReadByte()
		if err != nil {
			return 0, eofToProtocol(err)
		}
		value |= uint32(b&varIntDataBits) << (7 * i)
		if b&varIntContinueBit == 0 {
			return value, nil
		}
	}
	return 0, ErrMalformedVarInt
}

// eofToProtocol maps a premature end of the byte source to [ErrEOF].
func eofToProtocol(err error) error {
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return ErrEOF
	}
	return err
}
