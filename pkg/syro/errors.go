package syro

import (
	"errors"
	"fmt"
)

// Payload and descriptor construction errors. Values that fail these checks
// are never constructed, so they cannot reach a batch.
var (
	ErrInvalidAudioFormat  = errors.New("invalid audio format")
	ErrFrameLengthMismatch = errors.New("frame length mismatch")
	ErrSlotOutOfRange      = errors.New("slot out of range")
	ErrInvalidPattern      = errors.New("invalid pattern")
)

// Batch append errors. A failed append leaves the batch unchanged.
var (
	ErrTooManyOperations    = errors.New("too many operations")
	ErrMemoryBudgetExceeded = errors.New("memory budget exceeded")
	ErrSlotConflict         = errors.New("slot already targeted in batch")
	ErrInvalidLimits        = errors.New("invalid limits")
)

// Encoding and stream errors.
var (
	ErrEmptyBatch      = errors.New("empty batch, provide at least one sample, erase or pattern")
	ErrCodec           = errors.New("codec error")
	ErrMalformedStream = errors.New("malformed stream")
)

// OutOfBoundsError reports a ranged parameter that fell outside [Lo, Hi].
// It unwraps to the sentinel of the family the parameter belongs to, so
// errors.Is(err, ErrSlotOutOfRange) holds for a bad slot index.
type OutOfBoundsError struct {
	Name  string
	Value int
	Lo    int
	Hi    int
	Err   error
}

func (e *OutOfBoundsError) Error() string {
	return fmt.Sprintf("%v: invalid value %d for '%s', expected at least %d and at most %d",
		e.Err, e.Value, e.Name, e.Lo, e.Hi)
}

func (e *OutOfBoundsError) Unwrap() error {
	return e.Err
}

func checkRange(family error, name string, value, lo, hi int) error {
	if value < lo || value > hi {
		return &OutOfBoundsError{Name: name, Value: value, Lo: lo, Hi: hi, Err: family}
	}
	return nil
}

// CodecError is returned by the encoder when the codec rejects a descriptor.
// Index is the descriptor's position in the batch.
type CodecError struct {
	Index int
	Kind  Kind
	Slot  int
	Err   error
}

func (e *CodecError) Error() string {
	return fmt.Sprintf("codec error at operation %d (%s slot %d): %v", e.Index, e.Kind, e.Slot, e.Err)
}

// Unwrap exposes both ErrCodec and the codec's own error.
func (e *CodecError) Unwrap() []error {
	return []error{ErrCodec, e.Err}
}
