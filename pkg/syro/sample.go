package syro

import (
	"fmt"
	"time"
)

// SamplePayload is immutable PCM audio destined for one sample slot.
// Data is interleaved: frame i of channel c is data[i*Channels+c].
type SamplePayload struct {
	format Format
	frames int
	data   []int32
}

// NewSamplePayload validates the format and frame layout and copies data.
func NewSamplePayload(format Format, frames int, data []int32) (*SamplePayload, error) {
	if err := format.Validate(); err != nil {
		return nil, err
	}
	if frames < 0 {
		return nil, fmt.Errorf("%w: negative frame count %d", ErrInvalidAudioFormat, frames)
	}
	if want := frames * format.Channels; len(data) != want {
		return nil, fmt.Errorf("%w: got %d samples, want %d (%d frames x %d channels)",
			ErrFrameLengthMismatch, len(data), want, frames, format.Channels)
	}

	owned := make([]int32, len(data))
	copy(owned, data)
	return &SamplePayload{format: format, frames: frames, data: owned}, nil
}

// Format returns the payload's PCM format.
func (p *SamplePayload) Format() Format { return p.format }

// Frames returns the frame count.
func (p *SamplePayload) Frames() int { return p.frames }

// Len returns the number of individual samples (frames x channels).
func (p *SamplePayload) Len() int { return len(p.data) }

// Data returns a copy of the interleaved samples.
func (p *SamplePayload) Data() []int32 {
	out := make([]int32, len(p.data))
	copy(out, p.data)
	return out
}

// At returns sample i of the interleaved data.
func (p *SamplePayload) At(i int) int32 { return p.data[i] }

// MemoryFootprint is frames x channels x ceil(bitDepth/8) bytes.
func (p *SamplePayload) MemoryFootprint() int64 {
	return int64(p.frames) * int64(p.format.Channels) * int64(p.format.BytesPerSample())
}

// Duration is used for diagnostics only.
func (p *SamplePayload) Duration() time.Duration {
	return time.Duration(p.frames) * time.Second / time.Duration(p.format.SampleRate)
}

func (p *SamplePayload) String() string {
	return fmt.Sprintf("%s, %d frames (%s)", p.format, p.frames, p.Duration())
}
