package syro

import (
	"errors"
	"reflect"
	"testing"
)

func TestBatchOperationLimit(t *testing.T) {
	b := NewBatch(WithSlotPolicy(SlotPolicyAllowOverwrite))
	for i := range DefaultMaxOperations {
		d, err := Erase(i % NumSampleSlots)
		if err != nil {
			t.Fatalf("Erase() error = %v", err)
		}
		if err := b.Append(d); err != nil {
			t.Fatalf("Append() #%d error = %v", i+1, err)
		}
	}

	d, _ := Erase(0)
	if err := b.Append(d); !errors.Is(err, ErrTooManyOperations) {
		t.Errorf("Append() #111 error = %v, want %v", err, ErrTooManyOperations)
	}
	if b.Len() != DefaultMaxOperations {
		t.Errorf("Len() = %d, want %d", b.Len(), DefaultMaxOperations)
	}
}

func TestBatchFullBeforeConflict(t *testing.T) {
	b := NewBatch()
	for i := range NumSampleSlots {
		d, _ := Erase(i)
		if err := b.Append(d); err != nil {
			t.Fatalf("Append(erase %d) error = %v", i, err)
		}
	}
	for i := range NumPatternSlots {
		d, _ := WritePattern(i, NewPattern())
		if err := b.Append(d); err != nil {
			t.Fatalf("Append(pattern %d) error = %v", i, err)
		}
	}

	// slot 0 is taken too, but the batch is full first
	d, _ := Erase(0)
	if err := b.Append(d); !errors.Is(err, ErrTooManyOperations) {
		t.Errorf("Append() #111 error = %v, want %v", err, ErrTooManyOperations)
	}
	p, _ := WritePattern(0, NewPattern())
	if err := b.Append(p); !errors.Is(err, ErrTooManyOperations) {
		t.Errorf("Append(pattern) #111 error = %v, want %v", err, ErrTooManyOperations)
	}
	if b.Len() != DefaultMaxOperations {
		t.Errorf("Len() = %d, want %d", b.Len(), DefaultMaxOperations)
	}
}

func TestBatchFullLastWriteWinsReplaces(t *testing.T) {
	b := NewBatch(WithSlotPolicy(SlotPolicyLastWriteWins))
	for i := range NumSampleSlots {
		d, _ := Erase(i)
		if err := b.Append(d); err != nil {
			t.Fatalf("Append(erase %d) error = %v", i, err)
		}
	}
	for i := range NumPatternSlots {
		d, _ := WritePattern(i, NewPattern())
		if err := b.Append(d); err != nil {
			t.Fatalf("Append(pattern %d) error = %v", i, err)
		}
	}

	d, _ := Erase(5)
	if err := b.Append(d); err != nil {
		t.Fatalf("Append(erase 5) on a full batch error = %v", err)
	}
	if b.Len() != DefaultMaxOperations {
		t.Errorf("Len() = %d, want %d", b.Len(), DefaultMaxOperations)
	}
	if got := b.At(b.Len() - 1); got.Kind() != KindErase || got.Slot() != 5 {
		t.Errorf("last descriptor = %s, want erase slot 5", got)
	}

	r, _ := RestoreAll([]byte{0, 0})
	if err := b.Append(r); !errors.Is(err, ErrTooManyOperations) {
		t.Errorf("Append(restore) error = %v, want %v", err, ErrTooManyOperations)
	}
}

func TestBatchRestoreThenPatch(t *testing.T) {
	b := NewBatch()
	r, _ := RestoreAll([]byte{0, 0})
	w, _ := WriteSample(0, newMono16(t, 4))
	e, _ := Erase(1)
	for _, d := range []Descriptor{r, w, e} {
		if err := b.Append(d); err != nil {
			t.Fatalf("Append(%s) error = %v", d, err)
		}
	}

	again, _ := RestoreAll([]byte{1, 1})
	if err := b.Append(again); !errors.Is(err, ErrSlotConflict) {
		t.Errorf("Append(second restore) error = %v, want %v", err, ErrSlotConflict)
	}
	if b.Len() != 3 {
		t.Errorf("Len() = %d, want 3", b.Len())
	}
}

func TestBatchMemoryBudget(t *testing.T) {
	limits := DefaultLimits()
	limits.MemoryBudget = 1000
	b := NewBatch(WithLimits(limits))

	sample := newMono16(t, 100)
	for i := range 5 {
		d, _ := WriteSample(i, sample)
		if err := b.Append(d); err != nil {
			t.Fatalf("Append() #%d error = %v", i+1, err)
		}
	}
	if b.Footprint() != 1000 {
		t.Fatalf("Footprint() = %d, want 1000", b.Footprint())
	}

	before := b.Descriptors()
	d, _ := WriteSample(5, sample)
	if err := b.Append(d); !errors.Is(err, ErrMemoryBudgetExceeded) {
		t.Fatalf("Append() #6 error = %v, want %v", err, ErrMemoryBudgetExceeded)
	}
	if !reflect.DeepEqual(b.Descriptors(), before) {
		t.Error("failed Append() changed the batch")
	}
	if b.Footprint() != 1000 {
		t.Errorf("Footprint() = %d after failed Append(), want 1000", b.Footprint())
	}

	// erasing costs nothing
	e, _ := Erase(0)
	if err := b.Append(e); !errors.Is(err, ErrSlotConflict) {
		t.Errorf("Append(erase 0) error = %v, want %v", err, ErrSlotConflict)
	}
	e, _ = Erase(50)
	if err := b.Append(e); err != nil {
		t.Errorf("Append(erase 50) error = %v", err)
	}
}

func TestBatchSlotPolicy(t *testing.T) {
	small := newMono16(t, 10)
	large := newMono16(t, 100)

	tests := []struct {
		name          string
		policy        SlotPolicy
		wantErr       error
		wantLen       int
		wantFootprint int64
	}{
		{"reject", SlotPolicyReject, ErrSlotConflict, 2, 220},
		{"last write wins", SlotPolicyLastWriteWins, nil, 2, 220},
		{"allow overwrite", SlotPolicyAllowOverwrite, nil, 3, 240},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := NewBatch(WithSlotPolicy(tt.policy))
			first, _ := WriteSample(7, small)
			other, _ := WriteSample(8, large)
			second, _ := WriteSample(7, small)
			if err := b.Append(first); err != nil {
				t.Fatalf("Append(first) error = %v", err)
			}
			if err := b.Append(other); err != nil {
				t.Fatalf("Append(other) error = %v", err)
			}

			err := b.Append(second)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Errorf("Append(second) error = %v, want %v", err, tt.wantErr)
				}
			} else if err != nil {
				t.Errorf("Append(second) error = %v", err)
			}

			if b.Len() != tt.wantLen {
				t.Errorf("Len() = %d, want %d", b.Len(), tt.wantLen)
			}
			if b.Footprint() != tt.wantFootprint {
				t.Errorf("Footprint() = %d, want %d", b.Footprint(), tt.wantFootprint)
			}
		})
	}
}

func TestBatchLastWriteWinsMovesToEnd(t *testing.T) {
	b := NewBatch(WithSlotPolicy(SlotPolicyLastWriteWins))
	w, _ := WriteSample(3, newMono16(t, 10))
	p, _ := WritePattern(3, NewPattern())
	e, _ := Erase(3)

	for _, d := range []Descriptor{w, p, e} {
		if err := b.Append(d); err != nil {
			t.Fatalf("Append(%s) error = %v", d, err)
		}
	}

	// sample slot 3 and pattern slot 3 are separate targets
	want := []Kind{KindWritePattern, KindErase}
	if b.Len() != len(want) {
		t.Fatalf("Len() = %d, want %d", b.Len(), len(want))
	}
	for i, k := range want {
		if b.At(i).Kind() != k {
			t.Errorf("At(%d).Kind() = %s, want %s", i, b.At(i).Kind(), k)
		}
	}
	if b.Footprint() != 0 {
		t.Errorf("Footprint() = %d, want 0", b.Footprint())
	}
}

func TestBatchDeviceSlots(t *testing.T) {
	limits := DefaultLimits()
	limits.SampleSlots = 10
	limits.PatternSlots = 4
	b := NewBatch(WithLimits(limits))

	d, _ := Erase(10)
	if err := b.Append(d); !errors.Is(err, ErrSlotOutOfRange) {
		t.Errorf("Append(erase 10) error = %v, want %v", err, ErrSlotOutOfRange)
	}
	p, _ := WritePattern(4, NewPattern())
	if err := b.Append(p); !errors.Is(err, ErrSlotOutOfRange) {
		t.Errorf("Append(pattern 4) error = %v, want %v", err, ErrSlotOutOfRange)
	}
	if !b.IsEmpty() {
		t.Errorf("Len() = %d, want 0", b.Len())
	}
}

func TestBatchRejectsZeroDescriptor(t *testing.T) {
	b := NewBatch()
	if err := b.Append(Descriptor{}); err == nil {
		t.Error("Append(Descriptor{}) expected error")
	}
	if !b.IsEmpty() {
		t.Errorf("Len() = %d, want 0", b.Len())
	}
}

func TestBatchDescriptorsIsCopy(t *testing.T) {
	b := NewBatch()
	d, _ := Erase(1)
	if err := b.Append(d); err != nil {
		t.Fatalf("Append() error = %v", err)
	}
	out := b.Descriptors()
	out[0], _ = Erase(2)
	if b.At(0).Slot() != 1 {
		t.Errorf("At(0).Slot() = %d, want 1", b.At(0).Slot())
	}
}
