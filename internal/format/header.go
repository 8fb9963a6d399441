// Package format provides the shared binary header prefixed to every
// persisted chunk BLOB.
package format

import "errors"

// Header layout (4 bytes):
//
//	signature (1 byte, 'e' = 0x65)
//	type (1 byte, identifies the payload)
//	version (1 byte)
//	flags (1 byte, bit 0 = compressed)
//
// Type codes:
//
//	'c' = environment chunk (TickDataChunk)
const (
	Signature  = 'e'
	HeaderSize = 4

	TypeEnvironmentChunk = 'c'

	FlagCompressed = 0x01
)

var (
	ErrHeaderTooSmall    = errors.New("header too small")
	ErrSignatureMismatch = errors.New("signature mismatch")
	ErrTypeMismatch      = errors.New("type mismatch")
	ErrVersionMismatch   = errors.New("version mismatch")
)

// Header represents the common 4-byte header prefixed to a chunk BLOB.
type Header struct {
	Type    byte
	Version byte
	Flags   byte
}

// Encode writes the header to a 4-byte array.
func (h Header) Encode() [HeaderSize]byte {
	return [HeaderSize]byte{Signature, h.Type, h.Version, h.Flags}
}

// EncodeInto writes the header into the given buffer at offset 0.
// Returns the number of bytes written (always HeaderSize).
func (h Header) EncodeInto(buf []byte) int {
	buf[0] = Signature
	buf[1] = h.Type
	buf[2] = h.Version
	buf[3] = h.Flags
	return HeaderSize
}

// Decode reads a header from the given buffer.
// Returns ErrHeaderTooSmall if buf is less than HeaderSize bytes.
// Returns ErrSignatureMismatch if the signature byte doesn't match.
func Decode(buf []byte) (Header, error) {
	if len(buf) < HeaderSize {
		return Header{}, ErrHeaderTooSmall
	}
	if buf[0] != Signature {
		return Header{}, ErrSignatureMismatch
	}
	return Header{
		Type:    buf[1],
		Version: buf[2],
		Flags:   buf[3],
	}, nil
}

// DecodeAndValidate reads a header and validates the type and version.
// Returns ErrTypeMismatch if the type doesn't match expectedType.
// Returns ErrVersionMismatch if the version doesn't match expectedVersion.
func DecodeAndValidate(buf []byte, expectedType, expectedVersion byte) (Header, error) {
	h, err := Decode(buf)
	if err != nil {
		return Header{}, err
	}
	if h.Type != expectedType {
		return Header{}, ErrTypeMismatch
	}
	if h.Version != expectedVersion {
		return Header{}, ErrVersionMismatch
	}
	return h, nil
}
