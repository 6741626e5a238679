// Package observability wires an in-process OpenTelemetry TracerProvider:
// turn and step spans are recorded and forwarded to the structured logger
// as they finish, giving turn-level tracing without a network dependency
// or collector.
package observability

import (
	"context"
	"log/slog"

	"go.opentelemetry.io/otel"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

// InstallTracing sets the global TracerProvider to an in-process provider
// whose only span processor logs each finished span through logger. It
// returns a shutdown func that flushes the provider; callers should defer
// it.
func InstallTracing(logger *slog.Logger) func(context.Context) error {
	provider := sdktrace.NewTracerProvider(
		sdktrace.WithSampler(sdktrace.AlwaysSample()),
		sdktrace.WithSpanProcessor(&logSpanProcessor{logger: logger.With("component", "tracing")}),
	)
	otel.SetTracerProvider(provider)
	return provider.Shutdown
}

// logSpanProcessor is a sdktrace.SpanProcessor that logs each span when it
// ends; it does no batching or export, so spans never leave the process.
type logSpanProcessor struct {
	logger *slog.Logger
}

var _ sdktrace.SpanProcessor = (*logSpanProcessor)(nil)

func (p *logSpanProcessor) OnStart(context.Context, sdktrace.ReadWriteSpan) {}

func (p *logSpanProcessor) OnEnd(s sdktrace.ReadOnlySpan) {
	attrs := make([]any, 0, len(s.Attributes())*2+2)
	for _, kv := range s.Attributes() {
		attrs = append(attrs, string(kv.Key), kv.Value.AsInterface())
	}
	attrs = append(attrs, "duration_ms", s.EndTime().Sub(s.StartTime()).Milliseconds())
	p.logger.Debug(s.Name(), attrs...)
}

func (p *logSpanProcessor) Shutdown(context.Context) error   { return nil }
func (p *logSpanProcessor) ForceFlush(context.Context) error { return nil }
