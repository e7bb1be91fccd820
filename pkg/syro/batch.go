package syro

import (
	"fmt"
	"slices"
)

// Batch is an ordered, bounded set of descriptors forming one transfer
// session. Insertion order is transfer order.
//
// Every Append re-validates the limits, so a Batch is valid by construction.
// A Batch must not be appended to while an Encoder created from it is
// running on another goroutine; the Encoder itself only reads a snapshot.
type Batch struct {
	limits      Limits
	descriptors []Descriptor
	footprint   int64
}

// BatchOption configures a Batch.
type BatchOption func(*Batch)

// WithLimits replaces the device limits.
func WithLimits(l Limits) BatchOption {
	return func(b *Batch) {
		b.limits = l
	}
}

// WithSlotPolicy overrides only the same-slot policy.
func WithSlotPolicy(p SlotPolicy) BatchOption {
	return func(b *Batch) {
		b.limits.SlotPolicy = p
	}
}

// NewBatch creates an empty batch using DefaultLimits unless overridden.
func NewBatch(opts ...BatchOption) *Batch {
	b := &Batch{limits: DefaultLimits()}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Append adds d at the end of the batch. On error the batch is unchanged.
func (b *Batch) Append(d Descriptor) error {
	if err := b.checkSlot(d); err != nil {
		return err
	}

	n := len(b.descriptors) + 1
	footprint := b.footprint + d.Footprint()

	// a full batch only accepts a last-write-wins replacement
	i := b.indexOf(d.target())
	replaces := i >= 0 && b.limits.SlotPolicy == SlotPolicyLastWriteWins
	if !replaces && n > b.limits.MaxOperations {
		return fmt.Errorf("%w: %d operations exceeds the limit of %d", ErrTooManyOperations, n, b.limits.MaxOperations)
	}

	replace := -1
	if i >= 0 {
		switch b.limits.SlotPolicy {
		case SlotPolicyReject:
			return fmt.Errorf("%w: %s conflicts with operation %d (%s)", ErrSlotConflict, d, i, b.descriptors[i])
		case SlotPolicyLastWriteWins:
			replace = i
			footprint -= b.descriptors[i].Footprint()
		case SlotPolicyAllowOverwrite:
		}
	}

	if footprint > b.limits.MemoryBudget {
		return fmt.Errorf("%w: %d bytes exceeds the budget of %d bytes", ErrMemoryBudgetExceeded, footprint, b.limits.MemoryBudget)
	}

	if replace >= 0 {
		b.descriptors = slices.Delete(b.descriptors, replace, replace+1)
	}
	b.descriptors = append(b.descriptors, d)
	b.footprint = footprint
	return nil
}

func (b *Batch) checkSlot(d Descriptor) error {
	switch d.kind {
	case KindWriteSample:
		if d.sample == nil {
			return fmt.Errorf("%w: write-sample descriptor has no payload", ErrInvalidAudioFormat)
		}
		return checkRange(ErrSlotOutOfRange, "sample_index", d.slot, 0, b.limits.SampleSlots-1)
	case KindErase:
		return checkRange(ErrSlotOutOfRange, "sample_index", d.slot, 0, b.limits.SampleSlots-1)
	case KindWritePattern:
		if d.pattern == nil {
			return fmt.Errorf("%w: write-pattern descriptor has no pattern", ErrInvalidPattern)
		}
		return checkRange(ErrSlotOutOfRange, "pattern_index", d.slot, 0, b.limits.PatternSlots-1)
	case KindRestoreAll:
		if len(d.restore) == 0 {
			return fmt.Errorf("%w: restore descriptor has no data", ErrInvalidAudioFormat)
		}
		return nil
	default:
		return fmt.Errorf("unknown operation kind %d", uint8(d.kind))
	}
}

// indexOf returns the last descriptor overwriting t, or -1.
func (b *Batch) indexOf(t target) int {
	for i := len(b.descriptors) - 1; i >= 0; i-- {
		if b.descriptors[i].target() == t {
			return i
		}
	}
	return -1
}

// Len returns the number of descriptors.
func (b *Batch) Len() int { return len(b.descriptors) }

// IsEmpty reports whether the batch has no descriptors.
func (b *Batch) IsEmpty() bool { return len(b.descriptors) == 0 }

// Footprint returns the cached aggregate memory footprint in bytes.
func (b *Batch) Footprint() int64 { return b.footprint }

// Limits returns the limits the batch enforces.
func (b *Batch) Limits() Limits { return b.limits }

// At returns descriptor i.
func (b *Batch) At(i int) Descriptor { return b.descriptors[i] }

// Descriptors returns a copy of the descriptors in transfer order.
func (b *Batch) Descriptors() []Descriptor {
	return slices.Clone(b.descriptors)
}
