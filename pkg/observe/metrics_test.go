package observe

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/james-see/volcasyro/pkg/syro"
	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

// newTestMetrics returns a Metrics instance backed by a ManualReader.
func newTestMetrics(t *testing.T) (*Metrics, *sdkmetric.ManualReader) {
	t.Helper()
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() { _ = mp.Shutdown(context.Background()) })

	m, err := NewMetrics(mp)
	if err != nil {
		t.Fatalf("NewMetrics: %v", err)
	}
	return m, reader
}

func collect(t *testing.T, reader *sdkmetric.ManualReader) metricdata.ResourceMetrics {
	t.Helper()
	var rm metricdata.ResourceMetrics
	if err := reader.Collect(context.Background(), &rm); err != nil {
		t.Fatalf("Collect: %v", err)
	}
	return rm
}

func findMetric(rm metricdata.ResourceMetrics, name string) *metricdata.Metrics {
	for _, sm := range rm.ScopeMetrics {
		for i := range sm.Metrics {
			if sm.Metrics[i].Name == name {
				return &sm.Metrics[i]
			}
		}
	}
	return nil
}

// sumByAttr returns the counter value for the data point carrying key=value.
func sumByAttr(t *testing.T, m *metricdata.Metrics, key, value string) int64 {
	t.Helper()
	sum, ok := m.Data.(metricdata.Sum[int64])
	if !ok {
		t.Fatalf("%s: data is %T, want Sum[int64]", m.Name, m.Data)
	}
	for _, dp := range sum.DataPoints {
		if v, ok := dp.Attributes.Value(attribute.Key(key)); ok && v.AsString() == value {
			return dp.Value
		}
	}
	return 0
}

func testBatch(t *testing.T) *syro.Batch {
	t.Helper()
	p, err := syro.NewSamplePayload(syro.Format{Channels: 1, BitDepth: 16, SampleRate: 31250}, 4, make([]int32, 4))
	if err != nil {
		t.Fatalf("NewSamplePayload: %v", err)
	}
	b := syro.NewBatch()
	ws, _ := syro.WriteSample(0, p)
	e1, _ := syro.Erase(1)
	e2, _ := syro.Erase(2)
	for _, d := range []syro.Descriptor{ws, e1, e2} {
		if err := b.Append(d); err != nil {
			t.Fatalf("Append: %v", err)
		}
	}
	return b
}

func TestRecordSession(t *testing.T) {
	m, reader := newTestMetrics(t)
	ctx := context.Background()

	m.RecordSession(ctx, testBatch(t), "syro", 48, 20*time.Millisecond, nil)
	m.RecordSession(ctx, testBatch(t), "wav", 10, time.Millisecond, context.Canceled)

	rm := collect(t, reader)

	ops := findMetric(rm, "volcasyro.operations")
	if ops == nil {
		t.Fatal("volcasyro.operations not found")
	}
	if got := sumByAttr(t, ops, "kind", "erase"); got != 2 {
		t.Errorf("erase operations = %d, want 2", got)
	}
	if got := sumByAttr(t, ops, "kind", "write-sample"); got != 1 {
		t.Errorf("write-sample operations = %d, want 1", got)
	}

	sessions := findMetric(rm, "volcasyro.sessions")
	if sessions == nil {
		t.Fatal("volcasyro.sessions not found")
	}
	if got := sumByAttr(t, sessions, "status", "failed"); got != 1 {
		t.Errorf("failed sessions = %d, want 1", got)
	}

	bytes := findMetric(rm, "volcasyro.stream.bytes")
	if bytes == nil {
		t.Fatal("volcasyro.stream.bytes not found")
	}
	if got := sumByAttr(t, bytes, "format", "syro"); got != 48 {
		t.Errorf("syro bytes = %d, want 48", got)
	}

	failures := findMetric(rm, "volcasyro.encode.failures")
	if failures == nil {
		t.Fatal("volcasyro.encode.failures not found")
	}
	if got := sumByAttr(t, failures, "reason", "cancelled"); got != 1 {
		t.Errorf("cancelled failures = %d, want 1", got)
	}

	dur := findMetric(rm, "volcasyro.encode.duration")
	if dur == nil {
		t.Fatal("volcasyro.encode.duration not found")
	}
	hist, ok := dur.Data.(metricdata.Histogram[float64])
	if !ok {
		t.Fatalf("duration data is %T, want Histogram[float64]", dur.Data)
	}
	var count uint64
	for _, dp := range hist.DataPoints {
		count += dp.Count
	}
	if count != 2 {
		t.Errorf("duration observations = %d, want 2", count)
	}
}

func TestReason(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{context.Canceled, "cancelled"},
		{fmt.Errorf("write: %w", context.DeadlineExceeded), "cancelled"},
		{&syro.CodecError{Err: errors.New("boom")}, "codec"},
		{syro.ErrEmptyBatch, "empty"},
		{syro.ErrMemoryBudgetExceeded, "limits"},
		{syro.ErrSlotConflict, "limits"},
		{syro.ErrInvalidPattern, "input"},
		{errors.New("broken pipe"), "io"},
	}
	for _, tt := range tests {
		if got := Reason(tt.err); got != tt.want {
			t.Errorf("Reason(%v) = %q, want %q", tt.err, got, tt.want)
		}
	}
}
