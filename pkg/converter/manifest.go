package converter

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/james-see/volcasyro/pkg/syro"
	"gopkg.in/yaml.v3"
)

// Manifest is a transfer session described in YAML. Operations are sent in
// the order listed.
//
//	name: kit-01
//	device: volca-sample
//	slot_policy: reject
//	operations:
//	  - op: write-sample
//	    slot: 0
//	    file: kick.wav
//	  - op: write-sample
//	    slot: 1
//	    file: snare.wav
//	    quality: 12
//	  - op: erase
//	    slot: 2
//	  - op: write-pattern
//	    slot: 0
//	    file: groove.mid
type Manifest struct {
	Name       string          `yaml:"name"`
	Device     string          `yaml:"device"`
	SlotPolicy string          `yaml:"slot_policy"`
	Operations []OperationSpec `yaml:"operations"`
}

// OperationSpec is one manifest entry. File paths are relative to the
// manifest.
type OperationSpec struct {
	Op      string `yaml:"op"`
	Slot    int    `yaml:"slot"`
	File    string `yaml:"file"`
	Quality int    `yaml:"quality"`
}

// LoadManifest reads and validates the manifest at path.
func LoadManifest(path string) (*Manifest, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("manifest: open %q: %w", path, err)
	}
	defer f.Close()

	m, err := LoadManifestFromReader(f)
	if err != nil {
		return nil, fmt.Errorf("manifest: parse %q: %w", path, err)
	}
	return m, nil
}

// LoadManifestFromReader decodes a YAML manifest from r and validates it.
// Unknown keys are rejected.
func LoadManifestFromReader(r io.Reader) (*Manifest, error) {
	m := &Manifest{}
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(m); err != nil {
		return nil, fmt.Errorf("manifest: decode yaml: %w", err)
	}
	if err := m.Validate(); err != nil {
		return nil, err
	}
	return m, nil
}

// Validate checks the manifest for problems the batch would not catch with
// a useful message. It returns all failures joined.
func (m *Manifest) Validate() error {
	var errs []error

	if _, err := syro.ParseSlotPolicy(m.SlotPolicy); err != nil {
		errs = append(errs, fmt.Errorf("slot_policy: %w", err))
	}
	if len(m.Operations) == 0 {
		errs = append(errs, fmt.Errorf("operations: %w", syro.ErrEmptyBatch))
	}

	for i, op := range m.Operations {
		kind, err := ParseKind(op.Op)
		if err != nil {
			errs = append(errs, fmt.Errorf("operations[%d].op: %w", i, err))
			continue
		}
		switch kind {
		case syro.KindWriteSample, syro.KindWritePattern, syro.KindRestoreAll:
			if op.File == "" {
				errs = append(errs, fmt.Errorf("operations[%d]: %s needs a file", i, kind))
			}
		case syro.KindErase:
			if op.File != "" {
				errs = append(errs, fmt.Errorf("operations[%d]: erase takes no file", i))
			}
		}
		if op.Quality != 0 {
			if kind != syro.KindWriteSample && kind != syro.KindRestoreAll {
				errs = append(errs, fmt.Errorf("operations[%d]: quality only applies to write-sample and restore-all", i))
			} else if op.Quality < syro.MinQuality || op.Quality > syro.MaxQuality {
				errs = append(errs, fmt.Errorf("operations[%d].quality %d is invalid; valid values: 0 or %d-%d",
					i, op.Quality, syro.MinQuality, syro.MaxQuality))
			}
		}
		if op.Slot < 0 {
			errs = append(errs, fmt.Errorf("operations[%d].slot %d is negative", i, op.Slot))
		}
	}

	return errors.Join(errs...)
}

// ParseKind accepts the String form of an operation kind.
func ParseKind(s string) (syro.Kind, error) {
	for _, k := range []syro.Kind{syro.KindWriteSample, syro.KindErase, syro.KindWritePattern, syro.KindRestoreAll} {
		if s == k.String() {
			return k, nil
		}
	}
	return 0, fmt.Errorf("unknown operation %q; valid values: write-sample, erase, write-pattern, restore-all", s)
}
