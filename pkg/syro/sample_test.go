package syro

import (
	"errors"
	"fmt"
	"testing"
	"time"
)

// newMono16 returns a mono 16-bit 44.1kHz payload with a simple ramp.
func newMono16(t *testing.T, frames int) *SamplePayload {
	t.Helper()
	data := make([]int32, frames)
	for i := range data {
		data[i] = int32(i%256) - 128
	}
	p, err := NewSamplePayload(Format{Channels: 1, BitDepth: 16, SampleRate: 44100}, frames, data)
	if err != nil {
		t.Fatalf("NewSamplePayload() error = %v", err)
	}
	return p
}

func TestNewSamplePayloadLengthProperty(t *testing.T) {
	for _, ch := range SupportedChannels {
		for _, bd := range SupportedBitDepths {
			for _, rate := range SupportedSampleRates {
				for _, frames := range []int{0, 1, 7, 100} {
					want := frames * ch
					for _, n := range []int{want - 1, want, want + 1} {
						if n < 0 {
							continue
						}
						name := fmt.Sprintf("%dch_%dbit_%dHz_%dframes_%dsamples", ch, bd, rate, frames, n)
						t.Run(name, func(t *testing.T) {
							f := Format{Channels: ch, BitDepth: bd, SampleRate: rate}
							_, err := NewSamplePayload(f, frames, make([]int32, n))
							if n == want && err != nil {
								t.Errorf("NewSamplePayload() error = %v, want nil", err)
							}
							if n != want && !errors.Is(err, ErrFrameLengthMismatch) {
								t.Errorf("NewSamplePayload() error = %v, want %v", err, ErrFrameLengthMismatch)
							}
						})
					}
				}
			}
		}
	}
}

func TestNewSamplePayloadInvalidFormat(t *testing.T) {
	tests := []struct {
		name   string
		format Format
		frames int
	}{
		{"zero channels", Format{Channels: 0, BitDepth: 16, SampleRate: 44100}, 1},
		{"three channels", Format{Channels: 3, BitDepth: 16, SampleRate: 44100}, 1},
		{"12 bit", Format{Channels: 1, BitDepth: 12, SampleRate: 44100}, 1},
		{"32 bit", Format{Channels: 1, BitDepth: 32, SampleRate: 44100}, 1},
		{"odd rate", Format{Channels: 1, BitDepth: 16, SampleRate: 44101}, 1},
		{"zero rate", Format{Channels: 1, BitDepth: 16, SampleRate: 0}, 1},
		{"negative frames", Format{Channels: 1, BitDepth: 16, SampleRate: 44100}, -1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			n := max(tt.frames*max(tt.format.Channels, 0), 0)
			_, err := NewSamplePayload(tt.format, tt.frames, make([]int32, n))
			if !errors.Is(err, ErrInvalidAudioFormat) {
				t.Errorf("NewSamplePayload() error = %v, want %v", err, ErrInvalidAudioFormat)
			}
		})
	}
}

func TestSamplePayloadMemoryFootprint(t *testing.T) {
	tests := []struct {
		format Format
		frames int
		want   int64
	}{
		{Format{Channels: 1, BitDepth: 8, SampleRate: 31250}, 10, 10},
		{Format{Channels: 1, BitDepth: 16, SampleRate: 44100}, 100, 200},
		{Format{Channels: 2, BitDepth: 16, SampleRate: 48000}, 100, 400},
		{Format{Channels: 2, BitDepth: 24, SampleRate: 22050}, 10, 60},
		{Format{Channels: 2, BitDepth: 24, SampleRate: 22050}, 0, 0},
	}

	for _, tt := range tests {
		t.Run(tt.format.String(), func(t *testing.T) {
			p, err := NewSamplePayload(tt.format, tt.frames, make([]int32, tt.frames*tt.format.Channels))
			if err != nil {
				t.Fatalf("NewSamplePayload() error = %v", err)
			}
			if got := p.MemoryFootprint(); got != tt.want {
				t.Errorf("MemoryFootprint() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestSamplePayloadIsImmutable(t *testing.T) {
	data := []int32{1, 2, 3, 4}
	p, err := NewSamplePayload(Format{Channels: 2, BitDepth: 16, SampleRate: 44100}, 2, data)
	if err != nil {
		t.Fatalf("NewSamplePayload() error = %v", err)
	}

	data[0] = 99
	if p.At(0) != 1 {
		t.Errorf("At(0) = %d after caller mutation, want 1", p.At(0))
	}

	out := p.Data()
	out[1] = 99
	if p.At(1) != 2 {
		t.Errorf("At(1) = %d after mutating Data(), want 2", p.At(1))
	}
}

func TestSamplePayloadDuration(t *testing.T) {
	p, err := NewSamplePayload(Format{Channels: 1, BitDepth: 16, SampleRate: 32000}, 16000, make([]int32, 16000))
	if err != nil {
		t.Fatalf("NewSamplePayload() error = %v", err)
	}
	if got := p.Duration(); got != 500*time.Millisecond {
		t.Errorf("Duration() = %v, want %v", got, 500*time.Millisecond)
	}
	if p.Frames() != 16000 || p.Len() != 16000 {
		t.Errorf("Frames() = %d, Len() = %d, want 16000, 16000", p.Frames(), p.Len())
	}
}
