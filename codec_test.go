// SPDX-License-Identifier: GPL-3.0-or-later

package slp

import (
	"bytes"
	"strings"
	"testing"
	"testing/iotest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// EncodeString prefixes the UTF-8 bytes with their byte length.
func TestEncodeString(t *testing.T) {
	assert.Equal(t, []byte{0x00}, EncodeString(""))
	assert.Equal(t, append([]byte{0x09}, "localhost"...), EncodeString("localhost"))

	// byte length, not rune count
	assert.Equal(t, append([]byte{0x02}, "é"...), EncodeString("é"))

	long := strings.Repeat("a", 300)
	assert.Equal(t, append([]byte{0xac, 0x02}, long...), EncodeString(long))
}

// BuildHandshakePacket produces the expected bytes for the default query.
func TestBuildHandshakePacket(t *testing.T) {
	got := BuildHandshakePacket("localhost", 25565, DefaultProtocolVersion)

	want := []byte{
		0x13,                         // length of what follows
		0x00,                         // packet id
		0xff, 0xff, 0xff, 0xff, 0x0f, // protocol version -1
		0x09, 'l', 'o', 'c', 'a', 'l', 'h', 'o', 's', 't',
		0x63, 0xdd, // port, big endian
		0x01, // next state = status
	}
	assert.Equal(t, want, got)
}

// The handshake length prefix equals the number of bytes after it.
func TestBuildHandshakePacketLengthPrefix(t *testing.T) {
	tests := []struct {
		// address is the announced address.
		address string

		// port is the announced port.
		port uint16

		// version is the announced protocol version.
		version int32
	}{
		{"localhost", 25565, -1},
		{"", 1, 0},
		{"2001:db8::1", 65535, 767},
		{strings.Repeat("x", 200), 25565, 47},
	}

	for _, tt := range tests {
		packet := BuildHandshakePacket(tt.address, tt.port, tt.version)
		reader := bytes.NewReader(packet)
		length, err := DecodeVarInt(reader)
		require.NoError(t, err)
		assert.Equal(t, int(length), reader.Len())

		// deterministic
		assert.Equal(t, packet, BuildHandshakePacket(tt.address, tt.port, tt.version))
	}
}

// StatusRequestPacket is the two-byte status request.
func TestStatusRequestPacket(t *testing.T) {
	assert.Equal(t, []byte{0x01, 0x00}, StatusRequestPacket())
}

// ReadStatusResponse returns the payload exactly as sent.
func TestReadStatusResponse(t *testing.T) {
	payloads := []string{
		`{"version":{"name":"1.20.4","protocol":765}}`,
		"not json at all",
		strings.Repeat("z", 70000),
	}
	for _, payload := range payloads {
		got, err := ReadStatusResponse(bytes.NewReader(encodeStatusResponse(payload)))
		require.NoError(t, err)
		assert.Equal(t, payload, got)
	}
}

// ReadStatusResponse retries short reads.
func TestReadStatusResponseShortReads(t *testing.T) {
	payload := `{"description":"hello"}`
	reader := iotest.OneByteReader(bytes.NewReader(encodeStatusResponse(payload)))
	got, err := ReadStatusResponse(reader)
	require.NoError(t, err)
	assert.Equal(t, payload, got)
}

// ReadStatusResponse rejects malformed frames.
func TestReadStatusResponseErrors(t *testing.T) {
	tests := []struct {
		// name describes what this test case verifies.
		name string

		// input is the wire data.
		input []byte

		// wantErr is the expected error.
		wantErr error

		// wantProtocol tells whether the error is a protocol violation.
		wantProtocol bool
	}{
		{
			name:         "unexpected packet id",
			input:        []byte{0x03, 0x01, 0x01, 'x'},
			wantErr:      ErrUnexpectedPacketID,
			wantProtocol: true,
		},
		{
			name:         "zero length",
			input:        []byte{0x02, 0x00, 0x00},
			wantErr:      ErrInvalidLength,
			wantProtocol: true,
		},
		{
			name:         "negative length",
			input:        []byte{0x06, 0x00, 0xff, 0xff, 0xff, 0xff, 0x0f},
			wantErr:      ErrInvalidLength,
			wantProtocol: true,
		},
		{
			name:         "oversized length",
			input:        append([]byte{0x06, 0x00}, EncodeVarInt(MaxStatusLength+1)...),
			wantErr:      ErrInvalidLength,
			wantProtocol: true,
		},
		{
			name:         "malformed packet length",
			input:        []byte{0xff, 0xff, 0xff, 0xff, 0xff},
			wantErr:      ErrMalformedVarInt,
			wantProtocol: true,
		},
		{
			name:    "empty stream",
			input:   nil,
			wantErr: ErrEOF,
		},
		{
			name:    "truncated body",
			input:   []byte{0x07, 0x00, 0x05, '{', '"', 'a'},
			wantErr: ErrEOF,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ReadStatusResponse(bytes.NewReader(tt.input))
			require.ErrorIs(t, err, tt.wantErr)
			assert.Equal(t, tt.wantProtocol, IsProtocolError(err))
		})
	}
}

// The unexpected packet id error names the id.
func TestReadStatusHeaderUnexpectedPacketIDMessage(t *testing.T) {
	_, err := ReadStatusHeader(bytes.NewReader([]byte{0x03, 0x01, 0x01, 'x'}))
	require.Error(t, err)
	assert.Equal(t, "slp: unexpected packet id: 0x01", err.Error())
}
