package syro

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math/bits"
)

// Sequencer layout constants.
const (
	NumParts       = 10
	NumSteps       = 16
	NumMotionLanes = 14

	PatternSize = patternHeaderSize + NumParts*partSize + patternTrailerSize // 2624 bytes

	PatternHeaderMarker = 0x54535450 // "PTST" little-endian
	PatternFooterMarker = 0x44455450 // "PTED" little-endian
	PatternDeviceCode   = 0x33B8
	patternHeaderSize   = 32
	patternTrailerSize  = 32 // 28 bytes padding + footer
	partSize            = 256
	partParamBytes      = 11
	partMotionOffset    = 32
	patternFooterOffset = PatternSize - 4
	allActiveSteps      = 0xFFFF
	funcMemoryValidMask = FuncMotion | FuncLoop | FuncReverb | FuncReverse | FuncMute
)

// Part function memory bits.
const (
	FuncMotion uint8 = 1 << iota
	FuncLoop
	FuncReverb
	FuncReverse
	FuncMute
)

// Step numbers one through sixteen, as printed on the device.
type Step int

const (
	Step1 Step = iota + 1
	Step2
	Step3
	Step4
	Step5
	Step6
	Step7
	Step8
	Step9
	Step10
	Step11
	Step12
	Step13
	Step14
	Step15
	Step16
)

// Steps is a 16-bit step-on mask; bit 0 is Step1.
type Steps uint16

// StepsOf builds a mask from step numbers 1-16.
func StepsOf(steps ...Step) (Steps, error) {
	var s Steps
	for _, st := range steps {
		if err := checkRange(ErrInvalidPattern, "step", int(st), int(Step1), int(Step16)); err != nil {
			return 0, err
		}
		s |= 1 << (st - 1)
	}
	return s, nil
}

// Has reports whether step st is on.
func (s Steps) Has(st Step) bool {
	if st < Step1 || st > Step16 {
		return false
	}
	return s&(1<<(st-1)) != 0
}

// Count returns the number of steps that are on.
func (s Steps) Count() int {
	return bits.OnesCount16(uint16(s))
}

// Part is one of the ten sequencer parts of a pattern.
type Part struct {
	SampleNum     uint16
	StepOn        Steps
	Accent        Steps
	Level         uint8
	Pan           uint8
	Speed         uint8
	AmpEGAttack   uint8
	AmpEGDecay    uint8
	PitchEGInt    uint8
	PitchEGAttack uint8
	PitchEGDecay  uint8
	StartPoint    uint8
	Length        uint8
	HiCut         uint8
	FuncMemory    uint8
	Motion        [NumMotionLanes][NumSteps]uint8
}

// DefaultPart returns the part the device initialises for the given sample.
func DefaultPart(sampleNum uint16) Part {
	return Part{
		SampleNum:     sampleNum,
		Level:         127,
		Pan:           64,
		Speed:         64,
		AmpEGAttack:   0,
		AmpEGDecay:    127,
		PitchEGInt:    64,
		PitchEGAttack: 0,
		PitchEGDecay:  127,
		StartPoint:    0,
		Length:        127,
		HiCut:         127,
	}
}

// SetFunc turns a function memory bit on or off.
func (p *Part) SetFunc(bit uint8, on bool) {
	if on {
		p.FuncMemory |= bit
	} else {
		p.FuncMemory &^= bit
	}
}

// Validate checks every parameter against its device range.
func (p *Part) Validate() error {
	var errs []error
	add := func(name string, v, lo, hi int) {
		if err := checkRange(ErrInvalidPattern, name, v, lo, hi); err != nil {
			errs = append(errs, err)
		}
	}

	add("sample_num", int(p.SampleNum), 0, NumSampleSlots-1)
	add("level", int(p.Level), 0, 127)
	add("pan", int(p.Pan), 1, 127)
	// speed is either semitone steps (40-88) or continuous (129-255)
	if p.Speed < 129 {
		add("speed", int(p.Speed), 40, 88)
	}
	add("amp_eg_attack", int(p.AmpEGAttack), 0, 127)
	add("amp_eg_decay", int(p.AmpEGDecay), 0, 127)
	add("pitch_eg_int", int(p.PitchEGInt), 1, 127)
	add("pitch_eg_attack", int(p.PitchEGAttack), 0, 127)
	add("pitch_eg_decay", int(p.PitchEGDecay), 0, 127)
	add("starting_point", int(p.StartPoint), 0, 127)
	add("length", int(p.Length), 0, 127)
	add("hi_cut", int(p.HiCut), 0, 127)
	if p.FuncMemory&^funcMemoryValidMask != 0 {
		errs = append(errs, fmt.Errorf("%w: unknown function bits 0x%02X", ErrInvalidPattern, p.FuncMemory&^funcMemoryValidMask))
	}
	return errors.Join(errs...)
}

// Pattern is a sequencer pattern for one pattern slot.
type Pattern struct {
	ActiveSteps Steps
	Parts       [NumParts]Part
}

// NewPattern returns a pattern with all sixteen steps active and part i
// playing sample i.
func NewPattern() *Pattern {
	p := &Pattern{ActiveSteps: allActiveSteps}
	for i := range p.Parts {
		p.Parts[i] = DefaultPart(uint16(i))
	}
	return p
}

// SetPart replaces part index 0-9.
func (p *Pattern) SetPart(index int, part Part) error {
	if err := checkRange(ErrInvalidPattern, "part_index", index, 0, NumParts-1); err != nil {
		return err
	}
	if err := part.Validate(); err != nil {
		return fmt.Errorf("part %d: %w", index, err)
	}
	p.Parts[index] = part
	return nil
}

// Clone returns a deep copy.
func (p *Pattern) Clone() *Pattern {
	c := *p
	return &c
}

// Validate checks the step count and all parts.
func (p *Pattern) Validate() error {
	var errs []error
	if p.ActiveSteps.Count() == 0 {
		errs = append(errs, fmt.Errorf("%w: pattern has no active steps", ErrInvalidPattern))
	}
	for i := range p.Parts {
		if err := p.Parts[i].Validate(); err != nil {
			errs = append(errs, fmt.Errorf("part %d: %w", i, err))
		}
	}
	return errors.Join(errs...)
}

// MarshalBinary encodes the pattern in the device's little-endian layout.
func (p *Pattern) MarshalBinary() ([]byte, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}

	buf := make([]byte, PatternSize)
	binary.LittleEndian.PutUint32(buf[0:4], PatternHeaderMarker)
	binary.LittleEndian.PutUint16(buf[4:6], PatternDeviceCode)
	binary.LittleEndian.PutUint16(buf[8:10], uint16(p.ActiveSteps))

	for i := range p.Parts {
		putPart(buf[patternHeaderSize+i*partSize:], &p.Parts[i])
	}

	binary.LittleEndian.PutUint32(buf[patternFooterOffset:], PatternFooterMarker)
	return buf, nil
}

func putPart(b []byte, part *Part) {
	binary.LittleEndian.PutUint16(b[0:2], part.SampleNum)
	binary.LittleEndian.PutUint16(b[2:4], uint16(part.StepOn))
	binary.LittleEndian.PutUint16(b[4:6], uint16(part.Accent))
	// b[6:8] reserved
	b[8] = part.Level
	params := b[9 : 9+partParamBytes]
	params[0] = part.Pan
	params[1] = part.Speed
	params[2] = part.AmpEGAttack
	params[3] = part.AmpEGDecay
	params[4] = part.PitchEGInt
	params[5] = part.PitchEGAttack
	params[6] = part.PitchEGDecay
	params[7] = part.StartPoint
	params[8] = part.Length
	params[9] = part.HiCut
	b[9+partParamBytes] = part.FuncMemory
	for lane := range part.Motion {
		copy(b[partMotionOffset+lane*NumSteps:], part.Motion[lane][:])
	}
}

// UnmarshalBinary decodes and validates the device layout.
func (p *Pattern) UnmarshalBinary(data []byte) error {
	if len(data) != PatternSize {
		return fmt.Errorf("%w: pattern data is %d bytes, want %d", ErrInvalidPattern, len(data), PatternSize)
	}
	if got := binary.LittleEndian.Uint32(data[0:4]); got != PatternHeaderMarker {
		return fmt.Errorf("%w: bad header marker 0x%08X", ErrInvalidPattern, got)
	}
	if got := binary.LittleEndian.Uint16(data[4:6]); got != PatternDeviceCode {
		return fmt.Errorf("%w: bad device code 0x%04X", ErrInvalidPattern, got)
	}
	if got := binary.LittleEndian.Uint32(data[patternFooterOffset:]); got != PatternFooterMarker {
		return fmt.Errorf("%w: bad footer marker 0x%08X", ErrInvalidPattern, got)
	}

	var out Pattern
	out.ActiveSteps = Steps(binary.LittleEndian.Uint16(data[8:10]))
	for i := range out.Parts {
		getPart(data[patternHeaderSize+i*partSize:], &out.Parts[i])
	}
	if err := out.Validate(); err != nil {
		return err
	}
	*p = out
	return nil
}

func getPart(b []byte, part *Part) {
	part.SampleNum = binary.LittleEndian.Uint16(b[0:2])
	part.StepOn = Steps(binary.LittleEndian.Uint16(b[2:4]))
	part.Accent = Steps(binary.LittleEndian.Uint16(b[4:6]))
	part.Level = b[8]
	params := b[9 : 9+partParamBytes]
	part.Pan = params[0]
	part.Speed = params[1]
	part.AmpEGAttack = params[2]
	part.AmpEGDecay = params[3]
	part.PitchEGInt = params[4]
	part.PitchEGAttack = params[5]
	part.PitchEGDecay = params[6]
	part.StartPoint = params[7]
	part.Length = params[8]
	part.HiCut = params[9]
	part.FuncMemory = b[9+partParamBytes]
	for lane := range part.Motion {
		copy(part.Motion[lane][:], b[partMotionOffset+lane*NumSteps:])
	}
}
