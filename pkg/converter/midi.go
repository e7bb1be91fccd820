package converter

import (
	"bytes"
	"errors"
	"fmt"
	"os"

	"github.com/james-see/volcasyro/pkg/syro"
	"gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/smf"
)

// DrumBaseNote is the MIDI note that triggers part 1; parts 2-10 follow
// chromatically (GM kick, 36, upwards).
const DrumBaseNote = 36

// DrumChannel is the zero-based MIDI channel used for generated files (GM
// channel 10).
const DrumChannel = 9

// accentVelocity is the lowest velocity read as an accented step.
const accentVelocity = 100

// ErrNoDrumNotes is returned when a MIDI file has no notes in the part range.
var ErrNoDrumNotes = errors.New("no notes in the drum part range")

// MIDIConverter maps a one-bar 16-step MIDI drum pattern onto a volca
// sample pattern and back.
type MIDIConverter struct {
	ticksPerQuarter uint16
	tempo           float64
}

// NewMIDIConverter creates a new MIDI converter
func NewMIDIConverter() *MIDIConverter {
	return &MIDIConverter{
		ticksPerQuarter: 480,
		tempo:           120.0,
	}
}

// Tempo returns the tempo found by the last ParseMIDI, or the default.
func (m *MIDIConverter) Tempo() float64 {
	return m.tempo
}

// ParseMIDIFile reads a MIDI file and extracts pattern data
func (m *MIDIConverter) ParseMIDIFile(filename string) (*syro.Pattern, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read MIDI file: %w", err)
	}
	return m.ParseMIDI(data)
}

// ParseMIDI parses an SMF file into a pattern. Notes DrumBaseNote to
// DrumBaseNote+9 on any channel set steps of parts 1-10; velocities above
// 100 set the accent. Notes past the first bar wrap around.
func (m *MIDIConverter) ParseMIDI(data []byte) (*syro.Pattern, error) {
	s, err := smf.ReadFrom(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to parse MIDI: %w", err)
	}

	if mt, ok := s.TimeFormat.(smf.MetricTicks); ok {
		m.ticksPerQuarter = mt.Resolution()
	}
	ticksPerStep := int64(m.ticksPerQuarter) / 4
	if ticksPerStep == 0 {
		ticksPerStep = 1
	}

	pattern := syro.NewPattern()
	for i := range pattern.Parts {
		pattern.Parts[i].StepOn = 0
		pattern.Parts[i].Accent = 0
	}

	var notes int
	for _, track := range s.Tracks {
		var tick int64
		for _, ev := range track {
			tick += int64(ev.Delta)
			msg := ev.Message

			// Tempo meta message (FF 51 03 tt tt tt)
			if len(msg) >= 6 && msg[0] == 0xFF && msg[1] == 0x51 && msg[2] == 0x03 {
				usPerBeat := uint32(msg[3])<<16 | uint32(msg[4])<<8 | uint32(msg[5])
				if usPerBeat > 0 {
					m.tempo = 60000000.0 / float64(usPerBeat)
				}
				continue
			}

			// Note On 0x9n with non-zero velocity
			if len(msg) < 3 || msg[0]&0xF0 != 0x90 || msg[2] == 0 {
				continue
			}
			part := int(msg[1]) - DrumBaseNote
			if part < 0 || part >= syro.NumParts {
				continue
			}

			step := syro.Step(int(tick/ticksPerStep)%syro.NumSteps + 1)
			on, _ := syro.StepsOf(step)
			pattern.Parts[part].StepOn |= on
			if msg[2] > accentVelocity {
				pattern.Parts[part].Accent |= on
			}
			notes++
		}
	}

	if notes == 0 {
		return nil, ErrNoDrumNotes
	}
	return pattern, nil
}

// GenerateMIDI renders a pattern as a one-bar SMF drum track on channel 10.
// Inactive steps stay silent.
func (m *MIDIConverter) GenerateMIDI(pattern *syro.Pattern) ([]byte, error) {
	if pattern == nil {
		return nil, errors.New("nil pattern")
	}
	if err := pattern.Validate(); err != nil {
		return nil, err
	}

	tempo := m.tempo
	if tempo <= 0 {
		tempo = 120.0
	}

	s := smf.New()
	s.TimeFormat = smf.MetricTicks(m.ticksPerQuarter)

	var track smf.Track

	usPerBeat := uint32(60000000.0 / tempo)
	track.Add(0, smf.Message([]byte{
		0xFF, 0x51, 0x03,
		byte(usPerBeat >> 16),
		byte(usPerBeat >> 8),
		byte(usPerBeat),
	}))
	// 4/4
	track.Add(0, smf.Message([]byte{0xFF, 0x58, 0x04, 0x04, 0x02, 0x18, 0x08}))

	ticksPerStep := uint32(m.ticksPerQuarter) / 4
	if ticksPerStep == 0 {
		ticksPerStep = 1
	}
	noteLength := (ticksPerStep * 3) / 4
	if noteLength == 0 {
		noteLength = 1
	}

	var currentTick uint32
	for i := range syro.NumSteps {
		step := syro.Step(i + 1)
		if !pattern.ActiveSteps.Has(step) {
			continue
		}

		var keys []uint8
		stepTick := uint32(i) * ticksPerStep
		for p, part := range pattern.Parts {
			if !part.StepOn.Has(step) || part.Level == 0 {
				continue
			}
			velocity := uint8(100)
			if part.Accent.Has(step) {
				velocity = 127
			}
			key := uint8(DrumBaseNote + p)
			track.Add(stepTick-currentTick, midi.NoteOn(DrumChannel, key, velocity))
			currentTick = stepTick
			keys = append(keys, key)
		}

		for j, key := range keys {
			var delta uint32
			if j == 0 {
				delta = noteLength
			}
			track.Add(delta, midi.NoteOff(DrumChannel, key))
		}
		if len(keys) > 0 {
			currentTick += noteLength
		}
	}

	// Pad to exactly one bar
	total := uint32(syro.NumSteps) * ticksPerStep
	if currentTick < total {
		track.Add(total-currentTick, smf.Message([]byte{0xFF, 0x06, 0x00}))
	}
	track.Close(0)

	if err := s.Add(track); err != nil {
		return nil, fmt.Errorf("failed to add track: %w", err)
	}

	var buf bytes.Buffer
	if _, err := s.WriteTo(&buf); err != nil {
		return nil, fmt.Errorf("failed to write MIDI: %w", err)
	}
	return buf.Bytes(), nil
}

// WriteMIDIFile writes a pattern as a MIDI file
func (m *MIDIConverter) WriteMIDIFile(pattern *syro.Pattern, filename string) error {
	data, err := m.GenerateMIDI(pattern)
	if err != nil {
		return err
	}
	return os.WriteFile(filename, data, 0644)
}
