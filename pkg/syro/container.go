package syro

import (
	"encoding/binary"
	"fmt"
)

// Container layout. All multi-byte fields are big-endian.
//
//	header:     magic[4] version[1] operation_count[2] total_payload_size[4]
//	sub-header: kind[1] slot[1] payload_length[4]
const (
	Magic         = "SYRO"
	FormatVersion = 1

	HeaderSize    = 11
	SubHeaderSize = 6
)

// Header is the container header that opens every stream.
type Header struct {
	Version          uint8
	OperationCount   uint16
	TotalPayloadSize uint32
}

// Append appends the encoded header to b.
func (h Header) Append(b []byte) []byte {
	b = append(b, Magic...)
	b = append(b, h.Version)
	b = binary.BigEndian.AppendUint16(b, h.OperationCount)
	return binary.BigEndian.AppendUint32(b, h.TotalPayloadSize)
}

// MarshalBinary returns the 11 header bytes.
func (h Header) MarshalBinary() ([]byte, error) {
	return h.Append(make([]byte, 0, HeaderSize)), nil
}

// ParseHeader decodes the first HeaderSize bytes of data.
func ParseHeader(data []byte) (Header, error) {
	if len(data) < HeaderSize {
		return Header{}, fmt.Errorf("%w: header needs %d bytes, got %d", ErrMalformedStream, HeaderSize, len(data))
	}
	if string(data[0:4]) != Magic {
		return Header{}, fmt.Errorf("%w: bad magic %q", ErrMalformedStream, data[0:4])
	}
	h := Header{
		Version:          data[4],
		OperationCount:   binary.BigEndian.Uint16(data[5:7]),
		TotalPayloadSize: binary.BigEndian.Uint32(data[7:11]),
	}
	if h.Version != FormatVersion {
		return Header{}, fmt.Errorf("%w: unsupported version %d", ErrMalformedStream, h.Version)
	}
	return h, nil
}

// SubHeader precedes each operation's payload.
type SubHeader struct {
	Kind          Kind
	Slot          uint8
	PayloadLength uint32
}

// Append appends the encoded sub-header to b.
func (s SubHeader) Append(b []byte) []byte {
	b = append(b, byte(s.Kind), s.Slot)
	return binary.BigEndian.AppendUint32(b, s.PayloadLength)
}

// ParseSubHeader decodes the first SubHeaderSize bytes of data.
func ParseSubHeader(data []byte) (SubHeader, error) {
	if len(data) < SubHeaderSize {
		return SubHeader{}, fmt.Errorf("%w: sub-header needs %d bytes, got %d", ErrMalformedStream, SubHeaderSize, len(data))
	}
	s := SubHeader{
		Kind:          Kind(data[0]),
		Slot:          data[1],
		PayloadLength: binary.BigEndian.Uint32(data[2:6]),
	}
	if !s.Kind.Valid() {
		return SubHeader{}, fmt.Errorf("%w: unknown operation kind %d", ErrMalformedStream, data[0])
	}
	return s, nil
}
