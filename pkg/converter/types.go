// Package converter turns WAV, MIDI and session manifest files into SYRO
// batches and streams for KORG volca sample devices.
package converter

import (
	"log/slog"

	"github.com/james-see/volcasyro/pkg/syro"
)

// Device describes a target sampler: its limits and the audio format
// samples are converted to when a source rate is not accepted.
type Device interface {
	Name() string
	ID() string
	Description() string
	Limits() syro.Limits
	PreferredRate() int
}

// Converter handles file conversion for one device
type Converter struct {
	device Device
	logger *slog.Logger
}

// New creates a new Converter with the specified device
func New(device Device) *Converter {
	return &Converter{device: device, logger: slog.Default()}
}

// GetDevice returns the current device
func (c *Converter) GetDevice() Device {
	return c.device
}

// SetDevice sets the device for conversion
func (c *Converter) SetDevice(device Device) {
	c.device = device
}

// SetLogger replaces the logger, slog.Default() unless set.
func (c *Converter) SetLogger(l *slog.Logger) {
	if l != nil {
		c.logger = l
	}
}
