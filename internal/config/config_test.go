package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/pflag"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "volcasyro.yaml")
	if err := os.WriteFile(path, []byte(body), 0644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
	return path
}

func TestLoadDefaults(t *testing.T) {
	t.Chdir(t.TempDir())

	cfg, err := Load("", nil)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	want := Config{
		LogLevel:     "info",
		Device:       "volca-sample",
		SlotPolicy:   "reject",
		OutputFormat: "syro",
		FrameSize:    32 << 10,
		Port:         8080,
		MaxUpload:    64 << 20,
	}
	if *cfg != want {
		t.Errorf("Load() = %+v, want %+v", *cfg, want)
	}
}

func TestLoadPrecedence(t *testing.T) {
	path := writeConfig(t, `loglevel: debug
device: volca-sample-lite
slot_policy: last-write-wins
port: 9000
`)
	t.Setenv("VOLCASYRO_PORT", "9100")
	t.Setenv("VOLCASYRO_FRAME_SIZE", "512")

	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	flags.String("loglevel", "info", "")
	flags.String("slot-policy", "reject", "")
	if err := flags.Parse([]string{"--slot-policy", "allow-overwrite"}); err != nil {
		t.Fatalf("Parse() error = %v", err)
	}

	cfg, err := Load(path, flags)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	tests := []struct {
		name string
		got  any
		want any
	}{
		{"file over default", cfg.LogLevel, "debug"},
		{"file device", cfg.Device, "volca-sample-lite"},
		{"env over file", cfg.Port, 9100},
		{"env over default", cfg.FrameSize, 512},
		{"flag over file", cfg.SlotPolicy, "allow-overwrite"},
		{"default", cfg.OutputFormat, "syro"},
	}
	for _, tt := range tests {
		if tt.got != tt.want {
			t.Errorf("%s: got %v, want %v", tt.name, tt.got, tt.want)
		}
	}
}

func TestLoadMissingExplicitFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml"), nil); err == nil {
		t.Error("Load() with a missing explicit file should fail")
	}
}

func TestLoadInvalid(t *testing.T) {
	path := writeConfig(t, `loglevel: loud
device: volca-keys
slot_policy: sometimes
output_format: mp3
frame_size: 0
port: 70000
`)
	_, err := Load(path, nil)
	if err == nil {
		t.Fatal("Load() should reject the config")
	}
	for _, want := range []string{"loglevel", "device", "slot_policy", "output_format", "frame_size", "port"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("error %q does not mention %s", err, want)
		}
	}
}
