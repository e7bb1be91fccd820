// Package config loads volcasyro settings from defaults, an optional config
// file, VOLCASYRO_* environment variables and command line flags, in
// increasing order of precedence.
package config

import (
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/james-see/volcasyro/internal/logging"
	"github.com/james-see/volcasyro/pkg/converter"
	"github.com/james-see/volcasyro/pkg/converter/devices"
	"github.com/james-see/volcasyro/pkg/syro"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes environment overrides, e.g. VOLCASYRO_LOGLEVEL.
const EnvPrefix = "VOLCASYRO"

// Config is the resolved configuration.
type Config struct {
	LogLevel     string `mapstructure:"loglevel"`
	LogFile      string `mapstructure:"logfile"`
	Device       string `mapstructure:"device"`
	SlotPolicy   string `mapstructure:"slot_policy"`
	OutputFormat string `mapstructure:"output_format"`
	FrameSize    int    `mapstructure:"frame_size"`
	Port         int    `mapstructure:"port"`
	Metrics      bool   `mapstructure:"metrics"`
	MaxUpload    int64  `mapstructure:"max_upload"`
}

// flagKeys maps command line flag names onto config keys.
var flagKeys = map[string]string{
	"loglevel":    "loglevel",
	"logfile":     "logfile",
	"device":      "device",
	"slot-policy": "slot_policy",
	"format":      "output_format",
	"frame-size":  "frame_size",
	"port":        "port",
	"metrics":     "metrics",
	"max-upload":  "max_upload",
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("loglevel", "info")
	v.SetDefault("logfile", "")
	v.SetDefault("device", "volca-sample")
	v.SetDefault("slot_policy", "reject")
	v.SetDefault("output_format", "syro")
	v.SetDefault("frame_size", 32<<10)
	v.SetDefault("port", 8080)
	v.SetDefault("metrics", false)
	v.SetDefault("max_upload", 64<<20)
}

// Load resolves the configuration. With an empty path, volcasyro.yaml is
// looked up in the working directory and ~/.config/volcasyro and may be
// absent; an explicit path must exist. Flags in flags that were set on the
// command line override everything else.
func Load(path string, flags *pflag.FlagSet) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.AutomaticEnv()

	if flags != nil {
		for name, key := range flagKeys {
			if f := flags.Lookup(name); f != nil {
				if err := v.BindPFlag(key, f); err != nil {
					return nil, err
				}
			}
		}
	}

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("volcasyro")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.config/volcasyro")
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("config: %w", err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate returns every invalid setting joined.
func (c *Config) Validate() error {
	var errs []error
	if !slices.Contains(logging.Levels, c.LogLevel) {
		errs = append(errs, fmt.Errorf("loglevel %q is invalid; valid values: %s", c.LogLevel, strings.Join(logging.Levels, ", ")))
	}
	if _, err := devices.Lookup(c.Device); err != nil {
		errs = append(errs, fmt.Errorf("device: %w", err))
	}
	if _, err := syro.ParseSlotPolicy(c.SlotPolicy); err != nil {
		errs = append(errs, fmt.Errorf("slot_policy: %w", err))
	}
	if _, err := converter.ParseOutputFormat(c.OutputFormat); err != nil {
		errs = append(errs, fmt.Errorf("output_format: %w", err))
	}
	if c.FrameSize <= 0 {
		errs = append(errs, fmt.Errorf("frame_size %d must be positive", c.FrameSize))
	}
	if c.Port <= 0 || c.Port > 65535 {
		errs = append(errs, fmt.Errorf("port %d is out of range", c.Port))
	}
	if c.MaxUpload <= 0 {
		errs = append(errs, fmt.Errorf("max_upload %d must be positive", c.MaxUpload))
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	return nil
}
