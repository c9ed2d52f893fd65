//
// SPDX-License-Identifier: GPL-3.0-or-later
//
// Wire format: https://minecraft.wiki/w/Java_Edition_protocol/Server_List_Ping
//

package slp

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

const (
	// handshakePacketID is the packet ID of both the handshake and the status packets.
	handshakePacketID = 0x00

	// nextStateStatus asks the server to switch to the status state.
	nextStateStatus = 1

	// MaxStatusLength bounds the declared length of the status JSON.
	//
	// Larger declarations fail with [ErrInvalidLength] rather than
	// causing a large allocation on behalf of a remote peer.
	MaxStatusLength = 8 * 1024 * 1024
)

var (
	// ErrMalformedVarInt indicates a VarInt longer than [MaxVarIntLen] bytes.
	ErrMalformedVarInt = errors.New("slp: malformed varint")

	// ErrUnexpectedPacketID indicates a status response whose packet ID is not 0x00.
	ErrUnexpectedPacketID = errors.New("slp: unexpected packet id")

	// ErrInvalidLength indicates a non-positive or oversized declared JSON length.
	ErrInvalidLength = errors.New("slp: invalid length")

	// ErrEOF indicates that the stream ended before a complete message was read.
	ErrEOF = errors.New("slp: unexpected end of stream")
)

// IsProtocolError returns whether err is a wire-format violation
// reported by this package's codec.
//
// A premature end of stream ([ErrEOF]) is not a protocol violation.
func IsProtocolError(err error) bool {
	return errors.Is(err, ErrMalformedVarInt) ||
		errors.Is(err, ErrUnexpectedPacketID) ||
		errors.Is(err, ErrInvalidLength)
}

// EncodeString returns the protocol encoding of s: the VarInt byte
// length followed by the UTF-8 bytes.
func EncodeString(s string) []byte {
	out := make([]byte, 0, MaxVarIntLen+len(s))
	out = AppendVarInt(out, uint32(len(s)))
	return append(out, s...)
}

// BuildHandshakePacket returns the handshake packet announcing the
// given address, port, and protocol version with next state = status.
//
// The packet is length-prefixed: the leading VarInt equals the number
// of bytes that follow it.
func BuildHandshakePacket(address string, port uint16, protocolVersion int32) []byte {
	payload := make([]byte, 0, 3*MaxVarIntLen+len(address)+2+1)
	payload = AppendVarInt(payload, handshakePacketID)
	payload = AppendVarInt(payload, uint32(protocolVersion))
	payload = append(payload, EncodeString(address)...)
	payload = binary.BigEndian.AppendUint16(payload, port)
	payload = AppendVarInt(payload, nextStateStatus)

	packet := make([]byte, 0, MaxVarIntLen+len(payload))
	packet = AppendVarInt(packet, uint32(len(payload)))
	return append(packet, payload...)
}

// StatusRequestPacket returns the status request packet (length=1, id=0x00).
func StatusRequestPacket() []byte {
	return []byte{0x01, 0x00}
}

// ReadStatusHeader reads the status response framing and returns the
// declared byte length of the JSON payload that follows.
//
// The outer packet length is read and discarded. The packet ID must be
// 0x00 or [ErrUnexpectedPacketID] is returned. The JSON length, read as a
// signed 32-bit value, must be positive and at most [MaxStatusLength] or
// [ErrInvalidLength] is returned.
func ReadStatusHeader(r io.ByteReader) (int, error) {
	if _, err := DecodeVarInt(r); err != nil {
		return 0, err
	}

	packetID, err := DecodeVarInt(r)
	if err != nil {
		return 0, err
	}
	if packetID != handshakePacketID {
		return 0, fmt.Errorf("%w: 0x%02x", ErrUnexpectedPacketID, packetID)
	}

	rawLength, err := DecodeVarInt(r)
	if err != nil {
		return 0, err
	}
	length := int32(rawLength)
	if length <= 0 || length > MaxStatusLength {
		return 0, fmt.Errorf("%w: %d", ErrInvalidLength, length)
	}
	return int(length), nil
}

// ReadStatusBody reads exactly length bytes of JSON from r.
//
// Short reads are retried until the whole payload is available; a stream
// ending earlier yields [ErrEOF]. The payload is returned as received.
func ReadStatusBody(r io.Reader, length int) (string, error) {
	buf := make([]byte, length)
	if _, err := io.ReadFull(r, buf); err != nil {
		return "", eofToProtocol(err)
	}
	return string(buf), nil
}

// ReadStatusResponse reads a complete status response from r and returns
// its JSON payload without validating it.
func ReadStatusResponse(r io.Reader) (string, error) {
	br := asByteReader(r)
	length, err := ReadStatusHeader(br)
	if err != nil {
		return "", err
	}
	return ReadStatusBody(br, length)
}

// byteReader is an [io.Reader] that can also be read one byte at a time.
type byteReader interface {
	io.Reader
	io.ByteReader
}

func asByteReader(r io.Reader) byteReader {
	if br, ok := r.(byteReader); ok {
		return br
	}
	return bufio.NewReader(r)
}
