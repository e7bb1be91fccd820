// Package devices provides the sampler profiles a session can target
package devices

import (
	"fmt"
	"slices"
	"strings"

	"github.com/james-see/volcasyro/pkg/converter"
	"github.com/james-see/volcasyro/pkg/syro"
)

// Device IDs
const (
	VolcaSampleID     = "volca-sample"
	VolcaSampleLiteID = "volca-sample-lite"
	DefaultID         = VolcaSampleID
)

// NativeRate is the volca sample's playback rate.
const NativeRate = 31250

// Profile implements converter.Device with fixed limits
type Profile struct {
	id          string
	name        string
	description string
	limits      syro.Limits
	rate        int
}

var _ converter.Device = (*Profile)(nil)

// NewVolcaSample returns the full volca sample profile: 100 sample slots,
// 10 patterns, 110 operations per session and 4 MB of sample memory.
func NewVolcaSample() *Profile {
	return &Profile{
		id:          VolcaSampleID,
		name:        "KORG volca sample",
		description: "100 samples, 10 patterns, 4 MB sample memory",
		limits:      syro.DefaultLimits(),
		rate:        NativeRate,
	}
}

// NewVolcaSampleLite returns a profile that leaves the upper half of the
// sample slots and memory alone, so factory samples there survive.
func NewVolcaSampleLite() *Profile {
	l := syro.DefaultLimits()
	l.SampleSlots = syro.NumSampleSlots / 2
	l.MemoryBudget = syro.DefaultMemoryBudget / 2
	l.MaxOperations = l.SampleSlots + l.PatternSlots
	return &Profile{
		id:          VolcaSampleLiteID,
		name:        "KORG volca sample (lower half)",
		description: "slots 0-49 and 2 MB only, factory content above is kept",
		limits:      l,
		rate:        NativeRate,
	}
}

// Name returns the device name
func (p *Profile) Name() string { return p.name }

// ID returns the device ID
func (p *Profile) ID() string { return p.id }

// Description returns a one-line summary of the limits
func (p *Profile) Description() string { return p.description }

// Limits returns the session limits
func (p *Profile) Limits() syro.Limits { return p.limits }

// PreferredRate is the rate unsupported sources are resampled to
func (p *Profile) PreferredRate() int { return p.rate }

func (p *Profile) String() string {
	return fmt.Sprintf("%s (%s)", p.name, p.id)
}

// All returns every known profile, default first.
func All() []converter.Device {
	return []converter.Device{NewVolcaSample(), NewVolcaSampleLite()}
}

// IDs returns the IDs of all known profiles.
func IDs() []string {
	var ids []string
	for _, d := range All() {
		ids = append(ids, d.ID())
	}
	return ids
}

// Lookup returns the profile with the given ID. An empty ID means the
// default profile.
func Lookup(id string) (converter.Device, error) {
	id = strings.ToLower(strings.TrimSpace(id))
	if id == "" {
		id = DefaultID
	}
	i := slices.IndexFunc(All(), func(d converter.Device) bool { return d.ID() == id })
	if i < 0 {
		return nil, fmt.Errorf("unknown device %q; valid values: %s", id, strings.Join(IDs(), ", "))
	}
	return All()[i], nil
}
