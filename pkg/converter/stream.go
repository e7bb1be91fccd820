package converter

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/james-see/volcasyro/pkg/syro"
	"github.com/youpy/go-wav"
)

// OutputFormat selects how an encoded stream is written.
type OutputFormat string

const (
	// OutputRaw writes the SYRO container bytes unchanged.
	OutputRaw OutputFormat = "syro"
	// OutputWAV wraps the container bytes as the data chunk of a 16-bit
	// stereo PCM WAV, zero padded to a whole frame, for playback into the
	// device's sync input.
	OutputWAV OutputFormat = "wav"
)

// Carrier WAV parameters.
const (
	CarrierSampleRate = 44100
	CarrierChannels   = 2
	CarrierBitDepth   = 16

	carrierBlockAlign = CarrierChannels * CarrierBitDepth / 8
	wavHeaderSize     = 44
)

// ParseOutputFormat accepts "syro" (or "raw") and "wav".
func ParseOutputFormat(s string) (OutputFormat, error) {
	switch strings.ToLower(s) {
	case "", "syro", "raw":
		return OutputRaw, nil
	case "wav":
		return OutputWAV, nil
	default:
		return "", fmt.Errorf("unknown output format %q; valid values: syro, wav", s)
	}
}

// OutputFormatFor picks the output format from a file name.
func OutputFormatFor(filename string) OutputFormat {
	if strings.EqualFold(filepath.Ext(filename), ".wav") {
		return OutputWAV
	}
	return OutputRaw
}

// ContentType is the MIME type of the output format.
func (f OutputFormat) ContentType() string {
	if f == OutputWAV {
		return "audio/wav"
	}
	return "application/octet-stream"
}

// Ext is the file extension of the output format.
func (f OutputFormat) Ext() string {
	if f == OutputWAV {
		return ".wav"
	}
	return ".syro"
}

// StreamSize is the exact number of bytes WriteStream writes for e.
func StreamSize(e *syro.Encoder, out OutputFormat) int64 {
	if out == OutputWAV {
		return wavHeaderSize + carrierFrames(e.TotalSize())*carrierBlockAlign
	}
	return e.TotalSize()
}

func carrierFrames(n int64) int64 {
	return (n + carrierBlockAlign - 1) / carrierBlockAlign
}

// WriteStream drains e into w frame by frame. It stops with ctx.Err() when
// ctx is cancelled between frames.
func WriteStream(ctx context.Context, e *syro.Encoder, w io.Writer, out OutputFormat) (int64, error) {
	cw := &countingWriter{w: w}

	var dst io.Writer = cw
	if out == OutputWAV {
		frames := carrierFrames(e.TotalSize())
		dst = wav.NewWriter(cw, uint32(frames), CarrierChannels, CarrierSampleRate, CarrierBitDepth)
		if cw.err != nil {
			return cw.n, fmt.Errorf("failed to write WAV header: %w", cw.err)
		}
	}

	for {
		if err := ctx.Err(); err != nil {
			return cw.n, err
		}
		f, err := e.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return cw.n, err
		}
		if _, err := dst.Write(f.Data); err != nil {
			return cw.n, err
		}
	}

	if out == OutputWAV {
		if pad := carrierFrames(e.TotalSize())*carrierBlockAlign - e.TotalSize(); pad > 0 {
			if _, err := dst.Write(make([]byte, pad)); err != nil {
				return cw.n, err
			}
		}
	}
	return cw.n, nil
}

type countingWriter struct {
	w   io.Writer
	n   int64
	err error
}

func (c *countingWriter) Write(p []byte) (int, error) {
	n, err := c.w.Write(p)
	c.n += int64(n)
	if err != nil && c.err == nil {
		c.err = err
	}
	return n, err
}
