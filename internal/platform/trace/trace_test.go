package trace

import (
	"context"
	"testing"

	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	semconv "go.opentelemetry.io/otel/semconv/v1.37.0"
)

func TestNewProviderResourceAndSampling(t *testing.T) {
	tests := []struct {
		name    string
		ratio   float64
		sampled bool
	}{
		{"default samples everything", 0, true},
		{"ratio one samples everything", 1, true},
		{"tiny ratio", 1e-12, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sr := tracetest.NewSpanRecorder()
			tp := NewProvider(sdktrace.WithSpanProcessor(sr), Options{ServiceName: "linkpulse", ServiceVersion: "test", SampleRatio: tt.ratio})
			t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })

			_, span := tp.Tracer("test").Start(context.Background(), "op")
			span.End()

			ended := sr.Ended()
			if tt.sampled != (len(ended) == 1) {
				t.Fatalf("ended spans = %d, sampled want %v", len(ended), tt.sampled)
			}
			if !tt.sampled {
				return
			}
			var gotName string
			for _, kv := range ended[0].Resource().Attributes() {
				if kv.Key == semconv.ServiceNameKey {
					gotName = kv.Value.AsString()
				}
			}
			if gotName != "linkpulse" {
				t.Errorf("service.name = %q", gotName)
			}
		})
	}
}
