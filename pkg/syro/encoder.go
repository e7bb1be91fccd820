package syro

import (
	"fmt"
	"io"
	"iter"
	"log/slog"
	"math"
)

// State is the encoder's position in the stream.
type State int

const (
	StateIdle       State = iota // nothing emitted yet
	StateEncoding                // header emitted
	StateDescriptor              // emitting descriptor Position()
	StateDone                    // stream complete, Next returns io.EOF
	StateFailed                  // codec failure, Next returns the same error
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateEncoding:
		return "encoding"
	case StateDescriptor:
		return "descriptor"
	case StateDone:
		return "done"
	case StateFailed:
		return "failed"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Frame is one chunk of the output stream. Only the concatenation of all
// frames, in order, is a valid transfer payload.
type Frame struct {
	Index     int    // position of the frame in the stream
	Operation int    // descriptor index, -1 for the container header
	Data      []byte
}

// EncoderOption configures an Encoder.
type EncoderOption func(*Encoder)

// WithFrameSize splits each operation's bytes into frames of at most n bytes.
// n <= 0 emits one frame per operation.
func WithFrameSize(n int) EncoderOption {
	return func(e *Encoder) {
		e.frameSize = n
	}
}

// WithLogger sets the logger used for debug output.
func WithLogger(l *slog.Logger) EncoderOption {
	return func(e *Encoder) {
		if l != nil {
			e.logger = l
		}
	}
}

// Encoder produces the SYRO stream for one batch, one frame per Next call.
// It is a passive, single-use generator: nothing is encoded until the
// consumer asks for it, and peak memory is about one operation's payload.
// An Encoder is not safe for concurrent use; separate encoders over the same
// batch are.
type Encoder struct {
	codec       Codec
	descriptors []Descriptor
	sizes       []int
	header      Header
	frameSize   int
	logger      *slog.Logger

	state   State
	next    int
	current int
	pending []byte
	frames  int
	err     error
	readBuf []byte
}

// NewEncoder snapshots b and computes the container header. A nil codec
// means RawCodec.
func NewEncoder(b *Batch, c Codec, opts ...EncoderOption) (*Encoder, error) {
	if b == nil || b.IsEmpty() {
		return nil, ErrEmptyBatch
	}
	if c == nil {
		c = RawCodec{}
	}
	if b.Len() > math.MaxUint16 {
		return nil, fmt.Errorf("%w: %d operations do not fit the header", ErrTooManyOperations, b.Len())
	}

	e := &Encoder{
		codec:       c,
		descriptors: b.Descriptors(),
		logger:      slog.New(slog.DiscardHandler),
		current:     -1,
	}
	for _, opt := range opts {
		opt(e)
	}

	e.sizes = make([]int, len(e.descriptors))
	var total int64
	for i, d := range e.descriptors {
		n, err := c.EncodedSize(d)
		if err != nil {
			return nil, &CodecError{Index: i, Kind: d.kind, Slot: d.slot, Err: err}
		}
		if n < 0 {
			return nil, &CodecError{Index: i, Kind: d.kind, Slot: d.slot, Err: fmt.Errorf("negative encoded size %d", n)}
		}
		e.sizes[i] = n
		total += int64(n)
	}
	if total > math.MaxUint32 {
		return nil, fmt.Errorf("%w: encoded payload of %d bytes does not fit the header", ErrMemoryBudgetExceeded, total)
	}

	e.header = Header{
		Version:          FormatVersion,
		OperationCount:   uint16(len(e.descriptors)),
		TotalPayloadSize: uint32(total),
	}
	return e, nil
}

// Header returns the container header the stream starts with.
func (e *Encoder) Header() Header { return e.header }

// TotalSize is the exact length of the complete stream in bytes.
func (e *Encoder) TotalSize() int64 {
	return HeaderSize + int64(len(e.descriptors))*SubHeaderSize + int64(e.header.TotalPayloadSize)
}

// State returns the current state.
func (e *Encoder) State() State { return e.state }

// Position returns the index of the descriptor being emitted, -1 before the
// first one.
func (e *Encoder) Position() int { return e.current }

// Err returns the terminal codec error, if any.
func (e *Encoder) Err() error { return e.err }

// Next returns the next frame, io.EOF once the stream is complete, or a
// *CodecError. After an error every call returns that error again; bytes
// produced before it are an incomplete, unusable stream.
func (e *Encoder) Next() (Frame, error) {
	switch e.state {
	case StateFailed:
		return Frame{}, e.err
	case StateDone:
		return Frame{}, io.EOF
	case StateIdle:
		e.state = StateEncoding
		e.logger.Debug("syro stream started",
			"operations", e.header.OperationCount,
			"payload_bytes", e.header.TotalPayloadSize)
		return e.emit(-1, e.header.Append(make([]byte, 0, HeaderSize))), nil
	}

	if len(e.pending) > 0 {
		return e.emitPending(), nil
	}

	if e.next >= len(e.descriptors) {
		e.state = StateDone
		e.logger.Debug("syro stream complete", "frames", e.frames)
		return Frame{}, io.EOF
	}

	i := e.next
	d := e.descriptors[i]
	payload, err := e.codec.Encode(d)
	if err != nil {
		return Frame{}, e.fail(&CodecError{Index: i, Kind: d.kind, Slot: d.slot, Err: err})
	}
	if len(payload) != e.sizes[i] {
		return Frame{}, e.fail(&CodecError{Index: i, Kind: d.kind, Slot: d.slot,
			Err: fmt.Errorf("encoded %d bytes, predicted %d", len(payload), e.sizes[i])})
	}

	sub := SubHeader{Kind: d.kind, Slot: uint8(d.slot), PayloadLength: uint32(len(payload))}
	buf := sub.Append(make([]byte, 0, SubHeaderSize+len(payload)))
	buf = append(buf, payload...)

	e.next++
	e.current = i
	e.state = StateDescriptor
	e.pending = buf
	e.logger.Debug("syro operation encoded", "index", i, "operation", d.String(), "bytes", len(payload))
	return e.emitPending(), nil
}

func (e *Encoder) emitPending() Frame {
	n := len(e.pending)
	if e.frameSize > 0 && n > e.frameSize {
		n = e.frameSize
	}
	chunk := e.pending[:n:n]
	e.pending = e.pending[n:]
	return e.emit(e.current, chunk)
}

func (e *Encoder) emit(op int, data []byte) Frame {
	f := Frame{Index: e.frames, Operation: op, Data: data}
	e.frames++
	return f
}

func (e *Encoder) fail(err *CodecError) error {
	e.state = StateFailed
	e.err = err
	e.pending = nil
	e.logger.Debug("syro stream failed", "index", err.Index, "err", err.Err)
	return err
}

// Frames returns the remaining stream as an iterator. Iteration stops after
// the first error is yielded.
func (e *Encoder) Frames() iter.Seq2[Frame, error] {
	return func(yield func(Frame, error) bool) {
		for {
			f, err := e.Next()
			if err == io.EOF {
				return
			}
			if !yield(f, err) || err != nil {
				return
			}
		}
	}
}

// Read implements io.Reader over the remaining stream.
func (e *Encoder) Read(p []byte) (int, error) {
	for len(e.readBuf) == 0 {
		f, err := e.Next()
		if err != nil {
			return 0, err
		}
		e.readBuf = f.Data
	}
	n := copy(p, e.readBuf)
	e.readBuf = e.readBuf[n:]
	return n, nil
}

// WriteTo implements io.WriterTo, writing the remaining stream to w.
func (e *Encoder) WriteTo(w io.Writer) (int64, error) {
	var written int64
	if len(e.readBuf) > 0 {
		n, err := w.Write(e.readBuf)
		written += int64(n)
		e.readBuf = nil
		if err != nil {
			return written, err
		}
	}
	for {
		f, err := e.Next()
		if err == io.EOF {
			return written, nil
		}
		if err != nil {
			return written, err
		}
		n, err := w.Write(f.Data)
		written += int64(n)
		if err != nil {
			return written, err
		}
	}
}

// Encode runs a complete encoding of b and returns the stream in memory.
// Use an Encoder directly when the output should not be buffered.
func Encode(b *Batch, c Codec) ([]byte, error) {
	e, err := NewEncoder(b, c)
	if err != nil {
		return nil, err
	}
	out := make([]byte, 0, e.TotalSize())
	for f, err := range e.Frames() {
		if err != nil {
			return nil, err
		}
		out = append(out, f.Data...)
	}
	return out, nil
}
