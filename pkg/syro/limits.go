// Package syro models the volca sample data model and encodes transfer
// sessions into the SYRO container bitstream.
//
// A session is built bottom-up: SamplePayload values are wrapped in
// Descriptors, appended to a Batch that enforces the device limits, and the
// Batch is handed to an Encoder that produces the stream one Frame at a time.
package syro

import (
	"fmt"
	"slices"
	"strings"
)

// Device data model constants for the volca sample.
const (
	NumSampleSlots  = 100 // sample slots 0-99
	NumPatternSlots = 10  // sequencer pattern slots 0-9

	DefaultMaxOperations = NumSampleSlots + NumPatternSlots
	DefaultMemoryBudget  = 4 << 20 // bytes

	MinQuality = 8 // compressed sample bit depth range
	MaxQuality = 16
)

// Supported input enumerations.
var (
	SupportedChannels    = []int{1, 2}
	SupportedBitDepths   = []int{8, 16, 24}
	SupportedSampleRates = []int{22050, 31250, 32000, 44100, 48000}
)

// Format describes PCM sample layout.
type Format struct {
	Channels   int
	BitDepth   int
	SampleRate int
}

// BytesPerSample returns ceil(BitDepth/8).
func (f Format) BytesPerSample() int {
	return (f.BitDepth + 7) / 8
}

// Validate checks the format against the supported enumerations.
func (f Format) Validate() error {
	if !slices.Contains(SupportedChannels, f.Channels) {
		return fmt.Errorf("%w: unsupported channel count %d", ErrInvalidAudioFormat, f.Channels)
	}
	if !slices.Contains(SupportedBitDepths, f.BitDepth) {
		return fmt.Errorf("%w: unsupported bit depth %d", ErrInvalidAudioFormat, f.BitDepth)
	}
	if !slices.Contains(SupportedSampleRates, f.SampleRate) {
		return fmt.Errorf("%w: unsupported sample rate %d", ErrInvalidAudioFormat, f.SampleRate)
	}
	return nil
}

func (f Format) String() string {
	return fmt.Sprintf("%dch/%dbit/%dHz", f.Channels, f.BitDepth, f.SampleRate)
}

// SlotPolicy decides what Append does when a descriptor targets a slot that
// an earlier descriptor in the same batch already targets.
type SlotPolicy int

const (
	// SlotPolicyReject fails the append with ErrSlotConflict.
	SlotPolicyReject SlotPolicy = iota
	// SlotPolicyLastWriteWins drops the earlier descriptor and appends the new one.
	SlotPolicyLastWriteWins
	// SlotPolicyAllowOverwrite keeps both; the device applies them in order.
	SlotPolicyAllowOverwrite
)

func (p SlotPolicy) String() string {
	switch p {
	case SlotPolicyReject:
		return "reject"
	case SlotPolicyLastWriteWins:
		return "last-write-wins"
	case SlotPolicyAllowOverwrite:
		return "allow-overwrite"
	default:
		return fmt.Sprintf("SlotPolicy(%d)", int(p))
	}
}

// ParseSlotPolicy accepts the String form of a policy.
func ParseSlotPolicy(s string) (SlotPolicy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "reject":
		return SlotPolicyReject, nil
	case "last-write-wins", "lww":
		return SlotPolicyLastWriteWins, nil
	case "allow-overwrite", "allow":
		return SlotPolicyAllowOverwrite, nil
	default:
		return SlotPolicyReject, fmt.Errorf("unknown slot policy %q", s)
	}
}

// Limits are the per-device constraints a Batch enforces.
type Limits struct {
	MaxOperations int
	MemoryBudget  int64
	SampleSlots   int
	PatternSlots  int
	SlotPolicy    SlotPolicy
}

// DefaultLimits returns the volca sample limits.
func DefaultLimits() Limits {
	return Limits{
		MaxOperations: DefaultMaxOperations,
		MemoryBudget:  DefaultMemoryBudget,
		SampleSlots:   NumSampleSlots,
		PatternSlots:  NumPatternSlots,
		SlotPolicy:    SlotPolicyReject,
	}
}

// Validate rejects limits that could never admit a descriptor or that exceed
// what the device data model can address.
func (l Limits) Validate() error {
	if l.MaxOperations <= 0 || l.MaxOperations > 0xFFFF {
		return fmt.Errorf("%w: max operations must be in 1..65535, got %d", ErrInvalidLimits, l.MaxOperations)
	}
	if l.MemoryBudget < 0 {
		return fmt.Errorf("%w: memory budget must not be negative, got %d", ErrInvalidLimits, l.MemoryBudget)
	}
	if l.SampleSlots < 0 || l.SampleSlots > NumSampleSlots {
		return fmt.Errorf("%w: sample slots must be in 0..%d, got %d", ErrInvalidLimits, NumSampleSlots, l.SampleSlots)
	}
	if l.PatternSlots < 0 || l.PatternSlots > NumPatternSlots {
		return fmt.Errorf("%w: pattern slots must be in 0..%d, got %d", ErrInvalidLimits, NumPatternSlots, l.PatternSlots)
	}
	return nil
}
