package trace

import (
	"context"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	"go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.37.0"
)

type Options struct {
	Endpoint       string
	ServiceName    string
	ServiceVersion string
	SampleRatio    float64 // <=0 或 >=1 表示全采样
}

// InitTrace 安装全局 TracerProvider，失败时返回 nil（业务照常运行，只是没有 trace）。
func InitTrace(opts Options) (shutdown func(context.Context) error) {
	ctx, stop := context.WithTimeout(context.Background(), 5*time.Second)
	defer stop()

	exporter, err := otlptracegrpc.New(ctx, otlptracegrpc.WithEndpoint(opts.Endpoint), otlptracegrpc.WithInsecure())
	if err != nil {
		slog.Error("otlp trace exporter init failed", "err", err, "endpoint", opts.Endpoint)
		return nil
	}
	tp := NewProvider(trace.WithBatcher(exporter), opts)
	otel.SetTracerProvider(tp)
	// 跨服务透传 traceparent
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(propagation.TraceContext{}, propagation.Baggage{}))
	return tp.Shutdown
}

// NewProvider 组装带 resource 和采样器的 TracerProvider；测试里可以传 tracetest 的 SpanRecorder。
func NewProvider(processor trace.TracerProviderOption, opts Options) *trace.TracerProvider {
	sampler := trace.AlwaysSample()
	if opts.SampleRatio > 0 && opts.SampleRatio < 1 {
		sampler = trace.ParentBased(trace.TraceIDRatioBased(opts.SampleRatio))
	}
	return trace.NewTracerProvider(
		processor,
		trace.WithSampler(sampler),
		trace.WithResource(resource.NewWithAttributes(semconv.SchemaURL,
			semconv.ServiceName(opts.ServiceName),
			semconv.ServiceVersion(opts.ServiceVersion),
		)),
	)
}
