package syro

import (
	"fmt"
)

// Kind is the operation type; its value is the wire tag.
type Kind uint8

const (
	KindWriteSample  Kind = 0
	KindErase        Kind = 1
	KindWritePattern Kind = 2
	KindRestoreAll   Kind = 3
)

func (k Kind) String() string {
	switch k {
	case KindWriteSample:
		return "write-sample"
	case KindErase:
		return "erase"
	case KindWritePattern:
		return "write-pattern"
	case KindRestoreAll:
		return "restore-all"
	default:
		return fmt.Sprintf("Kind(%d)", uint8(k))
	}
}

// Valid reports whether k is a known wire tag.
func (k Kind) Valid() bool {
	return k <= KindRestoreAll
}

// Descriptor is one operation destined for the device. It is a value object:
// all fields are set by the constructors below and never change afterwards.
type Descriptor struct {
	kind    Kind
	slot    int
	sample  *SamplePayload
	pattern *Pattern
	restore []byte
	quality int
}

// WriteSample stores p uncompressed in sample slot 0-99.
func WriteSample(slot int, p *SamplePayload) (Descriptor, error) {
	return WriteSampleCompressed(slot, p, 0)
}

// WriteSampleCompressed stores p in slot, reduced to quality bits (8-16).
// A quality of 0 means uncompressed.
func WriteSampleCompressed(slot int, p *SamplePayload, quality int) (Descriptor, error) {
	if err := checkRange(ErrSlotOutOfRange, "sample_index", slot, 0, NumSampleSlots-1); err != nil {
		return Descriptor{}, err
	}
	if p == nil {
		return Descriptor{}, fmt.Errorf("%w: nil sample payload", ErrInvalidAudioFormat)
	}
	if quality != 0 {
		if err := checkRange(ErrInvalidAudioFormat, "bit_depth", quality, MinQuality, MaxQuality); err != nil {
			return Descriptor{}, err
		}
	}
	return Descriptor{kind: KindWriteSample, slot: slot, sample: p, quality: quality}, nil
}

// Erase clears sample slot 0-99.
func Erase(slot int) (Descriptor, error) {
	if err := checkRange(ErrSlotOutOfRange, "sample_index", slot, 0, NumSampleSlots-1); err != nil {
		return Descriptor{}, err
	}
	return Descriptor{kind: KindErase, slot: slot}, nil
}

// WritePattern stores a copy of p in pattern slot 0-9.
func WritePattern(slot int, p *Pattern) (Descriptor, error) {
	if err := checkRange(ErrSlotOutOfRange, "pattern_index", slot, 0, NumPatternSlots-1); err != nil {
		return Descriptor{}, err
	}
	if p == nil {
		return Descriptor{}, fmt.Errorf("%w: nil pattern", ErrInvalidPattern)
	}
	if err := p.Validate(); err != nil {
		return Descriptor{}, err
	}
	return Descriptor{kind: KindWritePattern, slot: slot, pattern: p.Clone()}, nil
}

// WritePatternBytes parses raw device pattern data and stores it in slot.
func WritePatternBytes(slot int, raw []byte) (Descriptor, error) {
	var p Pattern
	if err := p.UnmarshalBinary(raw); err != nil {
		return Descriptor{}, err
	}
	return WritePattern(slot, &p)
}

// RestoreAll replaces the whole sample memory with an .alldata image.
func RestoreAll(data []byte) (Descriptor, error) {
	return RestoreAllCompressed(data, 0)
}

// RestoreAllCompressed replaces the whole sample memory with an .alldata
// image whose 16-bit little-endian samples are sent reduced to quality bits
// (8-16). A quality of 0 means uncompressed. A compressed image must hold a
// whole number of samples.
func RestoreAllCompressed(data []byte, quality int) (Descriptor, error) {
	if len(data) == 0 {
		return Descriptor{}, fmt.Errorf("%w: empty restore image", ErrInvalidAudioFormat)
	}
	if quality != 0 {
		if err := checkRange(ErrInvalidAudioFormat, "bit_depth", quality, MinQuality, MaxQuality); err != nil {
			return Descriptor{}, err
		}
		if len(data)%2 != 0 {
			return Descriptor{}, fmt.Errorf("%w: restore image of %d bytes is not whole 16-bit samples", ErrInvalidAudioFormat, len(data))
		}
	}
	owned := make([]byte, len(data))
	copy(owned, data)
	return Descriptor{kind: KindRestoreAll, restore: owned, quality: quality}, nil
}

// Kind returns the operation kind.
func (d Descriptor) Kind() Kind { return d.kind }

// Slot returns the target slot; sample or pattern slot depending on Kind.
func (d Descriptor) Slot() int { return d.slot }

// Sample returns the payload of a WriteSample descriptor, nil otherwise.
func (d Descriptor) Sample() *SamplePayload { return d.sample }

// Pattern returns a copy of the pattern of a WritePattern descriptor.
func (d Descriptor) Pattern() *Pattern {
	if d.pattern == nil {
		return nil
	}
	return d.pattern.Clone()
}

// Quality returns the compression bit depth, 0 when uncompressed.
func (d Descriptor) Quality() int { return d.quality }

// RestoreData returns a copy of the restore image.
func (d Descriptor) RestoreData() []byte {
	if d.restore == nil {
		return nil
	}
	out := make([]byte, len(d.restore))
	copy(out, d.restore)
	return out
}

// Footprint is the device memory this operation consumes. Only sample
// writes count against the budget.
func (d Descriptor) Footprint() int64 {
	if d.kind == KindWriteSample && d.sample != nil {
		return d.sample.MemoryFootprint()
	}
	return 0
}

func (d Descriptor) String() string {
	switch d.kind {
	case KindWriteSample:
		if d.quality != 0 {
			return fmt.Sprintf("%s slot %d [%s, %d-bit compressed]", d.kind, d.slot, d.sample, d.quality)
		}
		return fmt.Sprintf("%s slot %d [%s]", d.kind, d.slot, d.sample)
	case KindRestoreAll:
		if d.quality != 0 {
			return fmt.Sprintf("%s [%d bytes, %d-bit compressed]", d.kind, len(d.restore), d.quality)
		}
		return fmt.Sprintf("%s [%d bytes]", d.kind, len(d.restore))
	default:
		return fmt.Sprintf("%s slot %d", d.kind, d.slot)
	}
}

// target identifies what a descriptor overwrites on the device. Erase shares
// the sample space. A restore has a space of its own, so a session may
// restore an image and then patch single slots on top of it.
type target struct {
	space Kind
	slot  int
}

func (d Descriptor) target() target {
	space := d.kind
	if space == KindErase {
		space = KindWriteSample
	}
	return target{space: space, slot: d.slot}
}
