// Package observe provides the OpenTelemetry metrics recorded for encoding
// sessions.
package observe

import (
	"context"
	"errors"
	"time"

	"github.com/james-see/volcasyro/pkg/syro"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const meterName = "github.com/james-see/volcasyro"

// Metrics holds the session instruments.
type Metrics struct {
	// Sessions counts finished sessions by output format and status.
	Sessions metric.Int64Counter

	// Operations counts encoded operations by kind.
	Operations metric.Int64Counter

	// StreamBytes counts bytes written to consumers.
	StreamBytes metric.Int64Counter

	// EncodeDuration records the wall time of a complete session.
	EncodeDuration metric.Float64Histogram

	// Failures counts failed sessions by reason.
	Failures metric.Int64Counter
}

// NewMetrics creates the instruments on mp.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	met := &Metrics{}
	var err error

	if met.Sessions, err = m.Int64Counter("volcasyro.sessions",
		metric.WithDescription("Encoding sessions by output format and status."),
	); err != nil {
		return nil, err
	}
	if met.Operations, err = m.Int64Counter("volcasyro.operations",
		metric.WithDescription("Encoded operations by kind."),
	); err != nil {
		return nil, err
	}
	if met.StreamBytes, err = m.Int64Counter("volcasyro.stream.bytes",
		metric.WithDescription("Stream bytes written to consumers."),
		metric.WithUnit("By"),
	); err != nil {
		return nil, err
	}
	if met.EncodeDuration, err = m.Float64Histogram("volcasyro.encode.duration",
		metric.WithDescription("Wall time of a complete encoding session."),
		metric.WithUnit("s"),
	); err != nil {
		return nil, err
	}
	if met.Failures, err = m.Int64Counter("volcasyro.encode.failures",
		metric.WithDescription("Failed sessions by reason."),
	); err != nil {
		return nil, err
	}
	return met, nil
}

// RecordSession records one finished session over b. n is the number of
// bytes that reached the consumer and err the session's outcome.
func (m *Metrics) RecordSession(ctx context.Context, b *syro.Batch, format string, n int64, elapsed time.Duration, err error) {
	status := "ok"
	if err != nil {
		status = "failed"
		m.Failures.Add(ctx, 1, metric.WithAttributes(attribute.String("reason", Reason(err))))
	}
	m.Sessions.Add(ctx, 1, metric.WithAttributes(
		attribute.String("format", format),
		attribute.String("status", status),
	))
	m.StreamBytes.Add(ctx, n, metric.WithAttributes(attribute.String("format", format)))
	m.EncodeDuration.Record(ctx, elapsed.Seconds(), metric.WithAttributes(attribute.String("status", status)))

	if err != nil || b == nil {
		return
	}
	counts := make(map[syro.Kind]int64)
	for _, d := range b.Descriptors() {
		counts[d.Kind()]++
	}
	for kind, c := range counts {
		m.Operations.Add(ctx, c, metric.WithAttributes(attribute.String("kind", kind.String())))
	}
}

// Reason classifies a session error for the failures counter.
func Reason(err error) string {
	switch {
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "cancelled"
	case errors.Is(err, syro.ErrCodec):
		return "codec"
	case errors.Is(err, syro.ErrEmptyBatch):
		return "empty"
	case errors.Is(err, syro.ErrTooManyOperations), errors.Is(err, syro.ErrMemoryBudgetExceeded),
		errors.Is(err, syro.ErrSlotConflict), errors.Is(err, syro.ErrSlotOutOfRange):
		return "limits"
	case errors.Is(err, syro.ErrInvalidAudioFormat), errors.Is(err, syro.ErrFrameLengthMismatch),
		errors.Is(err, syro.ErrInvalidPattern):
		return "input"
	default:
		return "io"
	}
}
