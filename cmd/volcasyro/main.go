// Package main is the entry point for the volcasyro CLI
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"syscall"

	"github.com/james-see/volcasyro/internal/config"
	"github.com/james-see/volcasyro/internal/logging"
	"github.com/james-see/volcasyro/pkg/api"
	"github.com/james-see/volcasyro/pkg/converter"
	"github.com/james-see/volcasyro/pkg/converter/devices"
	"github.com/james-see/volcasyro/pkg/observe"
	"github.com/james-see/volcasyro/pkg/syro"
	"github.com/james-see/volcasyro/pkg/tui"
	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel"
	"golang.org/x/sync/errgroup"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

var (
	configPath string
	outputFile string
	outputDir  string
	slot       int

	cfg     *config.Config
	logFile *os.File
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "volcasyro",
	Short: "Build KORG volca sample transfer sessions",
	Long: `volcasyro encodes samples, sequence patterns, erase requests and
full data restores into SYRO streams for the KORG volca sample.

Sessions are described by YAML manifests or built one file at a time. The
output is raw .syro data or a .wav file to play into the device's sync in.

Examples:
  volcasyro encode kit.yaml -o kit.wav
  volcasyro encode kits/*.yaml --out-dir build --format wav
  volcasyro convert kick.wav --slot 12 -o kick.syro
  volcasyro erase 3 4 5 -o clear.wav
  volcasyro inspect kit.syro
  volcasyro tui
  volcasyro serve --port 8080`,
	Version:           fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, date),
	SilenceUsage:      true,
	PersistentPreRunE: setup,
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logFile != nil {
			_ = logFile.Close()
		}
	},
}

var encodeCmd = &cobra.Command{
	Use:   "encode <manifest.yaml>...",
	Short: "Encode session manifests",
	Long: `Encodes each manifest into its own stream. Manifests are encoded
concurrently; the first failure cancels the rest.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runEncode,
}

var convertCmd = &cobra.Command{
	Use:   "convert <input>",
	Short: "Encode a single WAV, MIDI, pattern or .alldata file",
	Args:  cobra.ExactArgs(1),
	RunE:  runConvert,
}

var eraseCmd = &cobra.Command{
	Use:   "erase <slot>...",
	Short: "Encode a session clearing sample slots",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runErase,
}

var inspectCmd = &cobra.Command{
	Use:   "inspect <stream.syro>",
	Short: "Print the header and operations of a raw SYRO stream",
	Args:  cobra.ExactArgs(1),
	RunE:  runInspect,
}

var devicesCmd = &cobra.Command{
	Use:   "devices",
	Short: "List device profiles and their limits",
	Args:  cobra.NoArgs,
	RunE:  runDevices,
}

var exportMIDICmd = &cobra.Command{
	Use:   "export-midi <pattern>",
	Short: "Render a device pattern as a one bar MIDI drum file",
	Args:  cobra.ExactArgs(1),
	RunE:  runExportMIDI,
}

var tuiCmd = &cobra.Command{
	Use:   "tui",
	Short: "Launch interactive terminal UI",
	Args:  cobra.NoArgs,
	RunE:  runTUI,
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the API server",
	Args:  cobra.NoArgs,
	RunE:  runServe,
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&configPath, "config", "", "Config file (default: ./volcasyro.yaml or ~/.config/volcasyro/volcasyro.yaml)")
	pf.String("loglevel", "info", "Log level: "+strings.Join(logging.Levels, ", "))
	pf.String("logfile", "", "Write JSON logs to this file instead of stderr")
	pf.StringP("device", "d", devices.DefaultID, "Target device: "+strings.Join(devices.IDs(), ", "))
	pf.String("slot-policy", "reject", "Repeated slot handling when a manifest sets none: reject, last-write-wins, allow-overwrite")

	encodeCmd.Flags().StringVarP(&outputFile, "output", "o", "", "Output file (single manifest only)")
	encodeCmd.Flags().StringVar(&outputDir, "out-dir", "", "Directory for outputs (default: next to each manifest)")
	encodeCmd.Flags().String("format", "syro", "Output format when no output file is given: syro, wav")

	convertCmd.Flags().StringVarP(&outputFile, "output", "o", "", "Output file; .wav selects audio output")
	convertCmd.Flags().IntVar(&slot, "slot", 0, "Target sample or pattern slot")
	convertCmd.Flags().String("format", "syro", "Output format when no output file is given: syro, wav")

	eraseCmd.Flags().StringVarP(&outputFile, "output", "o", "erase.syro", "Output file; .wav selects audio output")

	exportMIDICmd.Flags().StringVarP(&outputFile, "output", "o", "", "Output .mid file")

	serveCmd.Flags().IntP("port", "p", 8080, "Server port")
	serveCmd.Flags().Bool("metrics", false, "Record metrics and serve them on /metrics")
	serveCmd.Flags().Int("frame-size", 32<<10, "Encoder frame size in bytes")
	serveCmd.Flags().Int64("max-upload", api.DefaultMaxUpload, "Maximum request body in bytes")

	rootCmd.AddCommand(encodeCmd)
	rootCmd.AddCommand(convertCmd)
	rootCmd.AddCommand(eraseCmd)
	rootCmd.AddCommand(inspectCmd)
	rootCmd.AddCommand(devicesCmd)
	rootCmd.AddCommand(exportMIDICmd)
	rootCmd.AddCommand(tuiCmd)
	rootCmd.AddCommand(serveCmd)
}

func setup(cmd *cobra.Command, args []string) error {
	var err error
	if cfg, err = config.Load(configPath, cmd.Flags()); err != nil {
		return err
	}
	if logFile, err = logging.Configure(cfg.LogLevel, cfg.LogFile); err != nil {
		return err
	}
	slog.Debug("config loaded", "config", *cfg)
	return nil
}

func newConverter(deviceID string) (*converter.Converter, error) {
	device, err := devices.Lookup(deviceID)
	if err != nil {
		return nil, err
	}
	return converter.New(device), nil
}

// outputPath derives an output name from input when -o is not given.
func outputPath(input string) (string, error) {
	if outputFile != "" {
		return outputFile, nil
	}
	format, err := converter.ParseOutputFormat(cfg.OutputFormat)
	if err != nil {
		return "", err
	}
	dir := filepath.Dir(input)
	if outputDir != "" {
		dir = outputDir
	}
	base := strings.TrimSuffix(filepath.Base(input), filepath.Ext(input))
	return filepath.Join(dir, base+format.Ext()), nil
}

func runEncode(cmd *cobra.Command, args []string) error {
	if outputFile != "" && len(args) > 1 {
		return errors.New("--output needs a single manifest; use --out-dir for several")
	}
	if outputDir != "" {
		if err := os.MkdirAll(outputDir, 0755); err != nil {
			return err
		}
	}

	g, ctx := errgroup.WithContext(cmd.Context())
	g.SetLimit(runtime.NumCPU())
	for _, path := range args {
		g.Go(func() error {
			return encodeManifest(ctx, cmd, path)
		})
	}
	return g.Wait()
}

func encodeManifest(ctx context.Context, cmd *cobra.Command, path string) error {
	m, err := converter.LoadManifest(path)
	if err != nil {
		return err
	}

	deviceID := cfg.Device
	if !cmd.Flags().Changed("device") && m.Device != "" {
		deviceID = m.Device
	}
	conv, err := newConverter(deviceID)
	if err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}
	conv.SetLogger(slog.Default().With("manifest", path))
	if m.SlotPolicy == "" {
		m.SlotPolicy = cfg.SlotPolicy
	}

	b, err := conv.BuildBatch(m, converter.DirReader(filepath.Dir(path)))
	if err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}
	out, err := outputPath(path)
	if err != nil {
		return err
	}
	n, err := conv.EncodeToFile(ctx, b, out)
	if err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Encoded %s -> %s (%d operations, %d bytes)\n", path, out, b.Len(), n)
	return nil
}

func runConvert(cmd *cobra.Command, args []string) error {
	input := args[0]
	conv, err := newConverter(cfg.Device)
	if err != nil {
		return err
	}
	out, err := outputPath(input)
	if err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Converting %s -> %s\n", input, out)
	n, err := conv.ConvertFile(cmd.Context(), input, out, slot)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Conversion complete! (%d bytes)\n", n)
	return nil
}

func runErase(cmd *cobra.Command, args []string) error {
	slots := make([]int, 0, len(args))
	for _, arg := range args {
		n, err := strconv.Atoi(arg)
		if err != nil {
			return fmt.Errorf("invalid slot %q", arg)
		}
		slots = append(slots, n)
	}

	conv, err := newConverter(cfg.Device)
	if err != nil {
		return err
	}
	b, err := conv.Erase(slots)
	if err != nil {
		return err
	}
	n, err := conv.EncodeToFile(cmd.Context(), b, outputFile)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s (%d slots, %d bytes)\n", outputFile, len(slots), n)
	return nil
}

func runInspect(cmd *cobra.Command, args []string) error {
	f, err := os.Open(args[0])
	if err != nil {
		return err
	}
	defer f.Close()

	s, err := syro.Inspect(f)
	if err != nil {
		return fmt.Errorf("%s: %w", args[0], err)
	}

	w := cmd.OutOrStdout()
	fmt.Fprintf(w, "version:       %d\n", s.Header.Version)
	fmt.Fprintf(w, "operations:    %d\n", s.Header.OperationCount)
	fmt.Fprintf(w, "payload bytes: %d\n", s.Header.TotalPayloadSize)
	fmt.Fprintf(w, "stream bytes:  %d\n", s.TotalBytes)
	for i, op := range s.Operations {
		fmt.Fprintf(w, "%4d  %-14s slot %-3d %d bytes\n", i, op.Kind, op.Slot, op.PayloadLength)
	}
	return nil
}

func runDevices(cmd *cobra.Command, args []string) error {
	w := cmd.OutOrStdout()
	for _, d := range devices.All() {
		l := d.Limits()
		fmt.Fprintf(w, "%s\t%s\n", d.ID(), d.Description())
		fmt.Fprintf(w, "  samples 0-%d, patterns 0-%d, %d operations, %d KiB, %d Hz, slot policy %s\n",
			l.SampleSlots-1, l.PatternSlots-1, l.MaxOperations, l.MemoryBudget>>10, d.PreferredRate(), l.SlotPolicy)
	}
	return nil
}

func runExportMIDI(cmd *cobra.Command, args []string) error {
	input := args[0]
	data, err := os.ReadFile(input)
	if err != nil {
		return err
	}
	conv, err := newConverter(cfg.Device)
	if err != nil {
		return err
	}
	p, err := conv.LoadPattern(input, data)
	if err != nil {
		return err
	}
	result, err := conv.ExportPattern(p)
	if err != nil {
		return err
	}

	out := outputFile
	if out == "" {
		out = strings.TrimSuffix(input, filepath.Ext(input)) + ".mid"
	}
	if err := os.WriteFile(out, result, 0644); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Exported %s -> %s\n", input, out)
	return nil
}

func runTUI(cmd *cobra.Command, args []string) error {
	// stderr belongs to the terminal UI
	if cfg.LogFile == "" {
		slog.SetDefault(slog.New(slog.DiscardHandler))
	}
	device, err := devices.Lookup(cfg.Device)
	if err != nil {
		return err
	}
	return tui.Run(device)
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	opts := []api.Option{
		api.WithLogger(slog.Default()),
		api.WithFrameSize(cfg.FrameSize),
		api.WithMaxUpload(cfg.MaxUpload),
	}

	if cfg.Metrics {
		shutdown, err := observe.InitProvider(ctx, observe.ProviderConfig{ServiceVersion: version})
		if err != nil {
			return fmt.Errorf("metrics: %w", err)
		}
		defer func() { _ = shutdown(context.Background()) }()

		m, err := observe.NewMetrics(otel.GetMeterProvider())
		if err != nil {
			return fmt.Errorf("metrics: %w", err)
		}
		opts = append(opts, api.WithMetrics(m), api.WithPrometheus())
	}

	slog.Info("starting API server", "port", cfg.Port, "metrics", cfg.Metrics)
	fmt.Printf("Swagger docs available at http://localhost:%d/swagger/index.html\n", cfg.Port)
	return api.NewServer(opts...).Run(ctx, fmt.Sprintf(":%d", cfg.Port))
}
