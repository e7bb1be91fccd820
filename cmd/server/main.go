// Package main is the entry point for the volcasyro API server
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/james-see/volcasyro/internal/logging"
	"github.com/james-see/volcasyro/pkg/api"
	"github.com/james-see/volcasyro/pkg/observe"
	"go.opentelemetry.io/otel"
)

func main() {
	port := flag.Int("port", 8080, "Server port")
	level := flag.String("loglevel", "info", "Log level: none, error, warn, info, debug")
	logfile := flag.String("logfile", "", "Write JSON logs to this file instead of stderr")
	metrics := flag.Bool("metrics", false, "Record metrics and serve them on /metrics")
	flag.Parse()

	f, err := logging.Configure(*level, *logfile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Logging error: %v\n", err)
		os.Exit(1)
	}
	if f != nil {
		defer f.Close()
	}

	if err := run(*port, *metrics); err != nil {
		slog.Error("server stopped", "err", err)
		fmt.Fprintf(os.Stderr, "Server error: %v\n", err)
		os.Exit(1)
	}
}

func run(port int, withMetrics bool) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	opts := []api.Option{api.WithLogger(slog.Default())}
	if withMetrics {
		shutdown, err := observe.InitProvider(ctx, observe.ProviderConfig{})
		if err != nil {
			return err
		}
		defer func() { _ = shutdown(context.Background()) }()

		m, err := observe.NewMetrics(otel.GetMeterProvider())
		if err != nil {
			return err
		}
		opts = append(opts, api.WithMetrics(m), api.WithPrometheus())
	}

	fmt.Printf("Starting volcasyro API server on port %d...\n", port)
	fmt.Printf("Swagger docs available at http://localhost:%d/swagger/index.html\n", port)
	return api.NewServer(opts...).Run(ctx, fmt.Sprintf(":%d", port))
}
