package syro

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// Codec turns a descriptor's payload into its encoded byte run.
//
// Implementations must be deterministic and side-effect free: EncodedSize
// must return exactly len(Encode(d)) without encoding, because the container
// header carries the total payload size before any payload is produced.
// Encode gets read access to the descriptor and returns freshly allocated
// bytes the caller owns.
type Codec interface {
	EncodedSize(d Descriptor) (int, error)
	Encode(d Descriptor) ([]byte, error)
}

// RawCodec is the reference codec. Linear samples are written little-endian
// at their own byte width, compressed samples are bit-packed MSB-first at the
// requested quality, patterns use the device pattern layout and restore
// images are passed through, or packed like 16-bit samples when compressed.
type RawCodec struct{}

// EncodedSize implements Codec.
func (RawCodec) EncodedSize(d Descriptor) (int, error) {
	switch d.kind {
	case KindWriteSample:
		if d.sample == nil {
			return 0, errors.New("write-sample without payload")
		}
		if d.quality != 0 {
			return (d.sample.Len()*d.quality + 7) / 8, nil
		}
		return d.sample.Len() * d.sample.format.BytesPerSample(), nil
	case KindErase:
		return 0, nil
	case KindWritePattern:
		return PatternSize, nil
	case KindRestoreAll:
		if d.quality != 0 {
			return (len(d.restore)/2*d.quality + 7) / 8, nil
		}
		return len(d.restore), nil
	default:
		return 0, fmt.Errorf("unknown operation kind %d", uint8(d.kind))
	}
}

// Encode implements Codec.
func (RawCodec) Encode(d Descriptor) ([]byte, error) {
	switch d.kind {
	case KindWriteSample:
		if d.sample == nil {
			return nil, errors.New("write-sample without payload")
		}
		if d.quality != 0 {
			return packCompressed(d.sample, d.quality)
		}
		return packLinear(d.sample)
	case KindErase:
		return []byte{}, nil
	case KindWritePattern:
		if d.pattern == nil {
			return nil, errors.New("write-pattern without pattern")
		}
		return d.pattern.MarshalBinary()
	case KindRestoreAll:
		if d.quality != 0 {
			return packRestore(d.restore, d.quality)
		}
		return d.RestoreData(), nil
	default:
		return nil, fmt.Errorf("unknown operation kind %d", uint8(d.kind))
	}
}

func sampleRange(bitDepth int) (lo, hi int32) {
	hi = int32(1)<<(bitDepth-1) - 1
	return -hi - 1, hi
}

func packLinear(p *SamplePayload) ([]byte, error) {
	width := p.format.BytesPerSample()
	lo, hi := sampleRange(p.format.BitDepth)
	out := make([]byte, len(p.data)*width)

	var tmp [4]byte
	for i, v := range p.data {
		if v < lo || v > hi {
			return nil, fmt.Errorf("sample %d value %d does not fit %d bits", i, v, p.format.BitDepth)
		}
		binary.LittleEndian.PutUint32(tmp[:], uint32(v))
		copy(out[i*width:], tmp[:width])
	}
	return out, nil
}

func packCompressed(p *SamplePayload, quality int) ([]byte, error) {
	return packBits(p.data, p.format.BitDepth, quality)
}

// packRestore reads a restore image as 16-bit little-endian samples and
// packs them at quality bits.
func packRestore(image []byte, quality int) ([]byte, error) {
	if len(image)%2 != 0 {
		return nil, fmt.Errorf("restore image of %d bytes is not whole 16-bit samples", len(image))
	}
	words := make([]int32, len(image)/2)
	for i := range words {
		words[i] = int32(int16(binary.LittleEndian.Uint16(image[2*i:])))
	}
	return packBits(words, 16, quality)
}

// packBits scales each bitDepth value to quality bits and packs them MSB-first.
func packBits(data []int32, bitDepth, quality int) ([]byte, error) {
	lo, hi := sampleRange(bitDepth)
	out := make([]byte, (len(data)*quality+7)/8)
	mask := uint32(1)<<quality - 1

	var acc uint64
	var nbits, pos int
	for i, v := range data {
		if v < lo || v > hi {
			return nil, fmt.Errorf("sample %d value %d does not fit %d bits", i, v, bitDepth)
		}
		if bitDepth >= quality {
			v >>= bitDepth - quality
		} else {
			v <<= quality - bitDepth
		}
		acc = acc<<quality | uint64(uint32(v)&mask)
		nbits += quality
		for nbits >= 8 {
			nbits -= 8
			out[pos] = byte(acc >> nbits)
			pos++
		}
	}
	if nbits > 0 {
		out[pos] = byte(acc << (8 - nbits))
	}
	return out, nil
}
