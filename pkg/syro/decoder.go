package syro

import (
	"errors"
	"fmt"
	"io"
)

// Operation is one sub-header and its payload read back from a stream.
type Operation struct {
	SubHeader
	Payload []byte
}

// Decoder reads a SYRO stream back into operations. It is used to inspect
// streams and to check encoder output; it does not undo the codec.
type Decoder struct {
	r         io.Reader
	header    Header
	read      int
	remaining uint32
	skip      bool
}

// NewDecoder reads and validates the container header from r.
func NewDecoder(r io.Reader) (*Decoder, error) {
	buf := make([]byte, HeaderSize)
	if _, err := io.ReadFull(r, buf); err != nil {
		return nil, fmt.Errorf("%w: reading header: %w", ErrMalformedStream, err)
	}
	h, err := ParseHeader(buf)
	if err != nil {
		return nil, err
	}
	return &Decoder{r: r, header: h, remaining: h.TotalPayloadSize}, nil
}

// Header returns the container header.
func (d *Decoder) Header() Header { return d.header }

// Next returns the next operation, or io.EOF after the last one announced
// by the header.
func (d *Decoder) Next() (Operation, error) {
	if d.read >= int(d.header.OperationCount) {
		if d.remaining != 0 {
			return Operation{}, fmt.Errorf("%w: %d payload bytes announced but not present", ErrMalformedStream, d.remaining)
		}
		return Operation{}, io.EOF
	}

	var buf [SubHeaderSize]byte
	if _, err := io.ReadFull(d.r, buf[:]); err != nil {
		return Operation{}, fmt.Errorf("%w: reading operation %d: %w", ErrMalformedStream, d.read, unexpected(err))
	}
	sub, err := ParseSubHeader(buf[:])
	if err != nil {
		return Operation{}, fmt.Errorf("operation %d: %w", d.read, err)
	}
	if sub.PayloadLength > d.remaining {
		return Operation{}, fmt.Errorf("%w: operation %d payload of %d bytes exceeds the %d bytes left",
			ErrMalformedStream, d.read, sub.PayloadLength, d.remaining)
	}

	op := Operation{SubHeader: sub}
	if d.skip {
		_, err = io.CopyN(io.Discard, d.r, int64(sub.PayloadLength))
	} else {
		op.Payload = make([]byte, sub.PayloadLength)
		_, err = io.ReadFull(d.r, op.Payload)
	}
	if err != nil {
		return Operation{}, fmt.Errorf("%w: reading operation %d payload: %w", ErrMalformedStream, d.read, unexpected(err))
	}

	d.remaining -= sub.PayloadLength
	d.read++
	return op, nil
}

func unexpected(err error) error {
	if errors.Is(err, io.EOF) {
		return io.ErrUnexpectedEOF
	}
	return err
}

// Summary describes a stream without its payloads.
type Summary struct {
	Header     Header
	Operations []SubHeader
	TotalBytes int64
}

// Inspect walks a whole stream, discarding payloads.
func Inspect(r io.Reader) (*Summary, error) {
	d, err := NewDecoder(r)
	if err != nil {
		return nil, err
	}
	d.skip = true

	s := &Summary{Header: d.Header(), TotalBytes: HeaderSize}
	for {
		op, err := d.Next()
		if err == io.EOF {
			return s, nil
		}
		if err != nil {
			return nil, err
		}
		s.Operations = append(s.Operations, op.SubHeader)
		s.TotalBytes += SubHeaderSize + int64(op.PayloadLength)
	}
}
