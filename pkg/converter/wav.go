package converter

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"slices"

	"github.com/go-audio/wav"
	"github.com/james-see/volcasyro/pkg/syro"
	"github.com/oov/audio/resampler"
)

// resampleQuality is the oov resampler quality level (0-10).
const resampleQuality = 10

const wavFormatPCM = 1

// ReadWAVFile decodes a WAV file into a sample payload
func ReadWAVFile(filename string, preferredRate int) (*syro.SamplePayload, error) {
	f, err := os.Open(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to open WAV file: %w", err)
	}
	defer f.Close()
	return DecodeWAV(f, preferredRate)
}

// ParseWAV decodes WAV data held in memory
func ParseWAV(data []byte, preferredRate int) (*syro.SamplePayload, error) {
	return DecodeWAV(bytes.NewReader(data), preferredRate)
}

// DecodeWAV reads a PCM WAV stream into a sample payload. 32-bit audio is
// reduced to 24 bits. A sample rate the device does not accept is resampled
// to preferredRate.
func DecodeWAV(r io.ReadSeeker, preferredRate int) (*syro.SamplePayload, error) {
	decoder := wav.NewDecoder(r)
	if !decoder.IsValidFile() {
		if err := decoder.Err(); err != nil {
			return nil, fmt.Errorf("%w: not a WAV file: %w", syro.ErrInvalidAudioFormat, err)
		}
		return nil, fmt.Errorf("%w: not a WAV file", syro.ErrInvalidAudioFormat)
	}
	if decoder.WavAudioFormat != wavFormatPCM {
		return nil, fmt.Errorf("%w: WAV encoding %d, only PCM is supported", syro.ErrInvalidAudioFormat, decoder.WavAudioFormat)
	}

	buf, err := decoder.FullPCMBuffer()
	if err != nil {
		return nil, fmt.Errorf("failed to read PCM data: %w", err)
	}

	channels := int(decoder.NumChans)
	bitDepth := int(decoder.BitDepth)
	rate := int(decoder.SampleRate)
	if channels == 0 {
		return nil, fmt.Errorf("%w: WAV has no channels", syro.ErrInvalidAudioFormat)
	}

	data := make([]int32, len(buf.Data)-len(buf.Data)%channels)
	for i := range data {
		data[i] = int32(buf.Data[i])
	}

	switch bitDepth {
	case 8:
		// WAV stores 8-bit audio unsigned
		for i := range data {
			data[i] -= 128
		}
	case 32:
		for i := range data {
			data[i] >>= 8
		}
		bitDepth = 24
	}

	if !slices.Contains(syro.SupportedSampleRates, rate) {
		if preferredRate <= 0 {
			return nil, fmt.Errorf("%w: %d Hz is not supported and no target rate is set", syro.ErrInvalidAudioFormat, rate)
		}
		data = resample(data, channels, bitDepth, rate, preferredRate)
		rate = preferredRate
	}

	format := syro.Format{Channels: channels, BitDepth: bitDepth, SampleRate: rate}
	return syro.NewSamplePayload(format, len(data)/channels, data)
}

// resample converts interleaved samples between rates one channel at a time.
func resample(data []int32, channels, bitDepth, srcRate, dstRate int) []int32 {
	frames := len(data) / channels
	scale := float32(int32(1) << (bitDepth - 1))
	capacity := frames*dstRate/srcRate + 64

	r := resampler.New(channels, srcRate, dstRate, resampleQuality)
	planes := make([][]float32, channels)
	written := capacity
	for ch := range channels {
		in := make([]float32, frames)
		for i := range frames {
			in[i] = float32(data[i*channels+ch]) / scale
		}
		out := make([]float32, capacity)
		_, n := r.ProcessFloat32(ch, in, out)
		planes[ch] = out
		written = min(written, n)
	}

	lo, hi := -scale, scale-1
	out := make([]int32, written*channels)
	for i := range written {
		for ch := range channels {
			v := planes[ch][i] * scale
			out[i*channels+ch] = int32(max(lo, min(hi, v)))
		}
	}
	return out
}

// ErrNotWAV is returned when content sniffing finds no RIFF/WAVE header.
var ErrNotWAV = errors.New("not a RIFF/WAVE file")

func isWAV(data []byte) bool {
	return len(data) >= 12 && string(data[0:4]) == "RIFF" && string(data[8:12]) == "WAVE"
}
