package syro

import (
	"bytes"
	"testing"
)

func TestRawCodecLinear(t *testing.T) {
	tests := []struct {
		name     string
		bitDepth int
		data     []int32
		want     []byte
	}{
		{"8 bit", 8, []int32{0, 1, -1, 127, -128}, []byte{0x00, 0x01, 0xFF, 0x7F, 0x80}},
		{"16 bit", 16, []int32{0x1234, -2, 32767, -32768}, []byte{0x34, 0x12, 0xFE, 0xFF, 0xFF, 0x7F, 0x00, 0x80}},
		{"24 bit", 24, []int32{0x123456, -2}, []byte{0x56, 0x34, 0x12, 0xFE, 0xFF, 0xFF}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := Format{Channels: 1, BitDepth: tt.bitDepth, SampleRate: 44100}
			p, err := NewSamplePayload(f, len(tt.data), tt.data)
			if err != nil {
				t.Fatalf("NewSamplePayload() error = %v", err)
			}
			d, err := WriteSample(0, p)
			if err != nil {
				t.Fatalf("WriteSample() error = %v", err)
			}

			got, err := RawCodec{}.Encode(d)
			if err != nil {
				t.Fatalf("Encode() error = %v", err)
			}
			if !bytes.Equal(got, tt.want) {
				t.Errorf("Encode() = % X, want % X", got, tt.want)
			}
			n, err := RawCodec{}.EncodedSize(d)
			if err != nil || n != len(got) {
				t.Errorf("EncodedSize() = %d, %v, want %d", n, err, len(got))
			}
		})
	}
}

func TestRawCodecCompressed(t *testing.T) {
	p, err := NewSamplePayload(Format{Channels: 1, BitDepth: 16, SampleRate: 31250}, 2, []int32{0x7FFF, -32768})
	if err != nil {
		t.Fatalf("NewSamplePayload() error = %v", err)
	}

	tests := []struct {
		quality int
		want    []byte
	}{
		{8, []byte{0x7F, 0x80}},
		{12, []byte{0x7F, 0xF8, 0x00}},
		{16, []byte{0x7F, 0xFF, 0x80, 0x00}},
	}

	for _, tt := range tests {
		d, err := WriteSampleCompressed(0, p, tt.quality)
		if err != nil {
			t.Fatalf("WriteSampleCompressed() error = %v", err)
		}
		got, err := RawCodec{}.Encode(d)
		if err != nil {
			t.Fatalf("Encode(q=%d) error = %v", tt.quality, err)
		}
		if !bytes.Equal(got, tt.want) {
			t.Errorf("Encode(q=%d) = % X, want % X", tt.quality, got, tt.want)
		}
		if n, _ := (RawCodec{}).EncodedSize(d); n != len(tt.want) {
			t.Errorf("EncodedSize(q=%d) = %d, want %d", tt.quality, n, len(tt.want))
		}
	}
}

func TestRawCodecCompressedRestore(t *testing.T) {
	// 0x7FFF and -32768 as 16-bit little-endian words
	image := []byte{0xFF, 0x7F, 0x00, 0x80}

	tests := []struct {
		quality int
		want    []byte
	}{
		{0, image},
		{8, []byte{0x7F, 0x80}},
		{12, []byte{0x7F, 0xF8, 0x00}},
		{16, []byte{0x7F, 0xFF, 0x80, 0x00}},
	}

	for _, tt := range tests {
		d, err := RestoreAllCompressed(image, tt.quality)
		if err != nil {
			t.Fatalf("RestoreAllCompressed(q=%d) error = %v", tt.quality, err)
		}
		got, err := RawCodec{}.Encode(d)
		if err != nil {
			t.Fatalf("Encode(q=%d) error = %v", tt.quality, err)
		}
		if !bytes.Equal(got, tt.want) {
			t.Errorf("Encode(q=%d) = % X, want % X", tt.quality, got, tt.want)
		}
		if n, _ := (RawCodec{}).EncodedSize(d); n != len(tt.want) {
			t.Errorf("EncodedSize(q=%d) = %d, want %d", tt.quality, n, len(tt.want))
		}
	}
}

func TestRawCodecWidensLowDepth(t *testing.T) {
	p, err := NewSamplePayload(Format{Channels: 1, BitDepth: 8, SampleRate: 31250}, 1, []int32{-1})
	if err != nil {
		t.Fatalf("NewSamplePayload() error = %v", err)
	}
	d, _ := WriteSampleCompressed(0, p, 12)
	got, err := RawCodec{}.Encode(d)
	if err != nil {
		t.Fatalf("Encode() error = %v", err)
	}
	// -1 at 8 bits is 0xFF0 at 12 bits
	if want := []byte{0xFF, 0x00}; !bytes.Equal(got, want) {
		t.Errorf("Encode() = % X, want % X", got, want)
	}
}

func TestRawCodecRejectsOutOfRange(t *testing.T) {
	p, err := NewSamplePayload(Format{Channels: 1, BitDepth: 8, SampleRate: 31250}, 1, []int32{200})
	if err != nil {
		t.Fatalf("NewSamplePayload() error = %v", err)
	}
	d, _ := WriteSample(0, p)
	if _, err := (RawCodec{}).Encode(d); err == nil {
		t.Error("Encode() expected error for a value outside 8 bits")
	}
}

func TestRawCodecOtherKinds(t *testing.T) {
	e, _ := Erase(4)
	if got, err := (RawCodec{}).Encode(e); err != nil || len(got) != 0 {
		t.Errorf("Encode(erase) = % X, %v, want empty", got, err)
	}

	p, _ := WritePattern(1, NewPattern())
	got, err := RawCodec{}.Encode(p)
	if err != nil || len(got) != PatternSize {
		t.Errorf("Encode(pattern) length = %d, %v, want %d", len(got), err, PatternSize)
	}

	r, _ := RestoreAll([]byte{0xDE, 0xAD})
	got, err = RawCodec{}.Encode(r)
	if err != nil || !bytes.Equal(got, []byte{0xDE, 0xAD}) {
		t.Errorf("Encode(restore) = % X, %v, want DE AD", got, err)
	}

	if _, err := (RawCodec{}).EncodedSize(Descriptor{kind: Kind(7)}); err == nil {
		t.Error("EncodedSize() expected error for unknown kind")
	}
}
