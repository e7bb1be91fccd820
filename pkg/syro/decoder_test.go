package syro

import (
	"bytes"
	"errors"
	"io"
	"testing"
)

func TestDecoderRoundTrip(t *testing.T) {
	b := mixedBatch(t)
	stream, err := Encode(b, nil)
	if err != nil {
		t.Fatalf("Encode() error = %v", err)
	}

	d, err := NewDecoder(bytes.NewReader(stream))
	if err != nil {
		t.Fatalf("NewDecoder() error = %v", err)
	}
	if int(d.Header().OperationCount) != b.Len() {
		t.Errorf("OperationCount = %d, want %d", d.Header().OperationCount, b.Len())
	}

	for i := 0; ; i++ {
		op, err := d.Next()
		if err == io.EOF {
			if i != b.Len() {
				t.Errorf("decoded %d operations, want %d", i, b.Len())
			}
			break
		}
		if err != nil {
			t.Fatalf("Next() error = %v", err)
		}

		want := b.At(i)
		if op.Kind != want.Kind() || int(op.Slot) != want.Slot() {
			t.Errorf("operation %d = %s slot %d, want %s slot %d", i, op.Kind, op.Slot, want.Kind(), want.Slot())
		}
		payload, _ := RawCodec{}.Encode(want)
		if !bytes.Equal(op.Payload, payload) {
			t.Errorf("operation %d payload differs", i)
		}
	}
}

func TestDecoderPatternPayload(t *testing.T) {
	p := NewPattern()
	p.Parts[1].Level = 10
	d, _ := WritePattern(4, p)
	b := NewBatch()
	if err := b.Append(d); err != nil {
		t.Fatalf("Append() error = %v", err)
	}
	stream, err := Encode(b, nil)
	if err != nil {
		t.Fatalf("Encode() error = %v", err)
	}

	dec, err := NewDecoder(bytes.NewReader(stream))
	if err != nil {
		t.Fatalf("NewDecoder() error = %v", err)
	}
	op, err := dec.Next()
	if err != nil {
		t.Fatalf("Next() error = %v", err)
	}
	var back Pattern
	if err := back.UnmarshalBinary(op.Payload); err != nil {
		t.Fatalf("UnmarshalBinary() error = %v", err)
	}
	if back != *p {
		t.Error("decoded pattern differs from the one written")
	}
}

func TestDecoderMalformed(t *testing.T) {
	stream, err := Encode(singleSampleBatch(t), nil)
	if err != nil {
		t.Fatalf("Encode() error = %v", err)
	}

	badMagic := append([]byte(nil), stream...)
	badMagic[0] = 'X'
	badVersion := append([]byte(nil), stream...)
	badVersion[4] = 9
	badKind := append([]byte(nil), stream...)
	badKind[HeaderSize] = 7
	overlong := append([]byte(nil), stream...)
	overlong[HeaderSize+5] = 0xFF

	tests := []struct {
		name string
		data []byte
	}{
		{"empty", nil},
		{"short header", stream[:5]},
		{"bad magic", badMagic},
		{"bad version", badVersion},
		{"bad kind", badKind},
		{"payload longer than header total", overlong},
		{"truncated sub-header", stream[:HeaderSize+3]},
		{"truncated payload", stream[:len(stream)-1]},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Inspect(bytes.NewReader(tt.data))
			if !errors.Is(err, ErrMalformedStream) {
				t.Errorf("Inspect() error = %v, want %v", err, ErrMalformedStream)
			}
		})
	}

	_, err = Inspect(bytes.NewReader(stream[:len(stream)-1]))
	if !errors.Is(err, io.ErrUnexpectedEOF) {
		t.Errorf("Inspect(truncated) error = %v, want %v", err, io.ErrUnexpectedEOF)
	}
}

func TestInspect(t *testing.T) {
	b := mixedBatch(t)
	stream, err := Encode(b, nil)
	if err != nil {
		t.Fatalf("Encode() error = %v", err)
	}

	s, err := Inspect(bytes.NewReader(stream))
	if err != nil {
		t.Fatalf("Inspect() error = %v", err)
	}
	if s.TotalBytes != int64(len(stream)) {
		t.Errorf("TotalBytes = %d, want %d", s.TotalBytes, len(stream))
	}
	if len(s.Operations) != b.Len() {
		t.Fatalf("len(Operations) = %d, want %d", len(s.Operations), b.Len())
	}

	// 50 frames at 16 bits, 33 samples packed at 12 bits, erase, pattern
	wantLens := []uint32{100, 50, 0, PatternSize}
	for i, want := range wantLens {
		if s.Operations[i].PayloadLength != want {
			t.Errorf("operation %d PayloadLength = %d, want %d", i, s.Operations[i].PayloadLength, want)
		}
	}
}
