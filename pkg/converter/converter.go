package converter

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/james-see/volcasyro/pkg/syro"
)

// Format represents a file format
type Format string

const (
	FormatWAV      Format = "wav"
	FormatMIDI     Format = "midi"
	FormatPattern  Format = "pattern"
	FormatAllData  Format = "alldata"
	FormatSyro     Format = "syro"
	FormatManifest Format = "manifest"
	FormatUnknown  Format = "unknown"
)

// DetectFormat detects the format of a file based on extension
func DetectFormat(filename string) Format {
	ext := strings.ToLower(filepath.Ext(filename))
	switch ext {
	case ".wav", ".wave":
		return FormatWAV
	case ".mid", ".midi":
		return FormatMIDI
	case ".vspattern", ".pattern":
		return FormatPattern
	case ".alldata":
		return FormatAllData
	case ".syro":
		return FormatSyro
	case ".yaml", ".yml":
		return FormatManifest
	default:
		return FormatUnknown
	}
}

// DetectFormatFromContent detects format from file content
func DetectFormatFromContent(data []byte) Format {
	if len(data) < 4 {
		return FormatUnknown
	}
	switch {
	case isWAV(data):
		return FormatWAV
	case string(data[:4]) == "MThd":
		return FormatMIDI
	case string(data[:4]) == "PTST":
		return FormatPattern
	case string(data[:4]) == syro.Magic:
		return FormatSyro
	default:
		return FormatUnknown
	}
}

func detect(name string, data []byte) Format {
	if f := DetectFormat(name); f != FormatUnknown {
		return f
	}
	return DetectFormatFromContent(data)
}

// ReadFunc returns the contents of a file named in a manifest.
type ReadFunc func(name string) ([]byte, error)

// DirReader reads manifest files relative to dir.
func DirReader(dir string) ReadFunc {
	return func(name string) ([]byte, error) {
		if !filepath.IsAbs(name) {
			name = filepath.Join(dir, name)
		}
		return os.ReadFile(name)
	}
}

// LoadSample decodes WAV data, resampling to the device's preferred rate
// when needed.
func (c *Converter) LoadSample(data []byte) (*syro.SamplePayload, error) {
	if !isWAV(data) {
		return nil, fmt.Errorf("%w: %w", syro.ErrInvalidAudioFormat, ErrNotWAV)
	}
	return ParseWAV(data, c.device.PreferredRate())
}

// LoadPattern reads a pattern from a MIDI file or a raw device pattern.
func (c *Converter) LoadPattern(name string, data []byte) (*syro.Pattern, error) {
	switch detect(name, data) {
	case FormatMIDI:
		return NewMIDIConverter().ParseMIDI(data)
	case FormatPattern:
		p := &syro.Pattern{}
		if err := p.UnmarshalBinary(data); err != nil {
			return nil, err
		}
		return p, nil
	default:
		return nil, fmt.Errorf("%w: %s is neither MIDI nor a device pattern", syro.ErrInvalidPattern, name)
	}
}

// NewBatch returns an empty batch bound by the device limits. Limits the
// encoder could never honour are rejected.
func (c *Converter) NewBatch(policy syro.SlotPolicy) (*syro.Batch, error) {
	limits := c.device.Limits()
	if err := limits.Validate(); err != nil {
		return nil, fmt.Errorf("device %s: %w", c.device.ID(), err)
	}
	return syro.NewBatch(syro.WithLimits(limits), syro.WithSlotPolicy(policy)), nil
}

// BuildBatch turns a validated manifest into a batch, loading every
// referenced file through read.
func (c *Converter) BuildBatch(m *Manifest, read ReadFunc) (*syro.Batch, error) {
	policy, err := syro.ParseSlotPolicy(m.SlotPolicy)
	if err != nil {
		return nil, err
	}
	b, err := c.NewBatch(policy)
	if err != nil {
		return nil, err
	}

	for i, op := range m.Operations {
		d, err := c.descriptor(op, read)
		if err != nil {
			return nil, fmt.Errorf("operation %d (%s slot %d): %w", i, op.Op, op.Slot, err)
		}
		if err := b.Append(d); err != nil {
			return nil, fmt.Errorf("operation %d (%s slot %d): %w", i, op.Op, op.Slot, err)
		}
		c.logger.Debug("operation added", "index", i, "operation", d.String())
	}
	return b, nil
}

func (c *Converter) descriptor(op OperationSpec, read ReadFunc) (syro.Descriptor, error) {
	kind, err := ParseKind(op.Op)
	if err != nil {
		return syro.Descriptor{}, err
	}
	if kind == syro.KindErase {
		return syro.Erase(op.Slot)
	}

	data, err := read(op.File)
	if err != nil {
		return syro.Descriptor{}, fmt.Errorf("failed to read %s: %w", op.File, err)
	}

	switch kind {
	case syro.KindWriteSample:
		p, err := c.LoadSample(data)
		if err != nil {
			return syro.Descriptor{}, fmt.Errorf("%s: %w", op.File, err)
		}
		return syro.WriteSampleCompressed(op.Slot, p, op.Quality)
	case syro.KindWritePattern:
		p, err := c.LoadPattern(op.File, data)
		if err != nil {
			return syro.Descriptor{}, fmt.Errorf("%s: %w", op.File, err)
		}
		return syro.WritePattern(op.Slot, p)
	default:
		return syro.RestoreAllCompressed(data, op.Quality)
	}
}

// EncodeManifest builds the session in manifestPath and writes the stream
// to outputPath, in the format its extension implies.
func (c *Converter) EncodeManifest(ctx context.Context, manifestPath, outputPath string) (int64, error) {
	m, err := LoadManifest(manifestPath)
	if err != nil {
		return 0, err
	}
	b, err := c.BuildBatch(m, DirReader(filepath.Dir(manifestPath)))
	if err != nil {
		return 0, err
	}
	return c.EncodeToFile(ctx, b, outputPath)
}

// ConvertFile encodes a single input file as a one-operation session:
// WAV to sample slot, MIDI or device pattern to pattern slot, .alldata to a
// restore. The output format follows the output extension.
func (c *Converter) ConvertFile(ctx context.Context, inputPath, outputPath string, slot int) (int64, error) {
	data, err := os.ReadFile(inputPath)
	if err != nil {
		return 0, fmt.Errorf("failed to read input file: %w", err)
	}

	var d syro.Descriptor
	switch detect(inputPath, data) {
	case FormatWAV:
		var p *syro.SamplePayload
		if p, err = c.LoadSample(data); err == nil {
			d, err = syro.WriteSample(slot, p)
		}
	case FormatMIDI, FormatPattern:
		var p *syro.Pattern
		if p, err = c.LoadPattern(inputPath, data); err == nil {
			d, err = syro.WritePattern(slot, p)
		}
	case FormatAllData:
		d, err = syro.RestoreAll(data)
	default:
		return 0, errors.New("cannot determine input format from filename or content")
	}
	if err != nil {
		return 0, fmt.Errorf("conversion failed: %w", err)
	}

	b, err := c.NewBatch(syro.SlotPolicyReject)
	if err != nil {
		return 0, err
	}
	if err := b.Append(d); err != nil {
		return 0, err
	}
	return c.EncodeToFile(ctx, b, outputPath)
}

// Erase builds a session clearing the given sample slots.
func (c *Converter) Erase(slots []int) (*syro.Batch, error) {
	b, err := c.NewBatch(syro.SlotPolicyReject)
	if err != nil {
		return nil, err
	}
	for _, slot := range slots {
		d, err := syro.Erase(slot)
		if err != nil {
			return nil, err
		}
		if err := b.Append(d); err != nil {
			return nil, err
		}
	}
	return b, nil
}

// EncodeToFile encodes b into path. A partially written file is removed.
func (c *Converter) EncodeToFile(ctx context.Context, b *syro.Batch, path string) (int64, error) {
	e, err := syro.NewEncoder(b, nil, syro.WithLogger(c.logger))
	if err != nil {
		return 0, err
	}

	f, err := os.Create(path)
	if err != nil {
		return 0, fmt.Errorf("failed to create output file: %w", err)
	}
	n, err := WriteStream(ctx, e, f, OutputFormatFor(path))
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		_ = os.Remove(path)
		return n, fmt.Errorf("failed to write %s: %w", path, err)
	}

	c.logger.Info("session encoded",
		"output", path,
		"operations", b.Len(),
		"bytes", n)
	return n, nil
}

// ExportPattern writes a device pattern as MIDI, for previewing.
func (c *Converter) ExportPattern(p *syro.Pattern) ([]byte, error) {
	return NewMIDIConverter().GenerateMIDI(p)
}
