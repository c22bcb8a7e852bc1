package tracing

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
)

// Options configures the process tracer provider
type Options struct {
	ServiceName string
	Version     string
	// SampleRatio is the fraction of root traces kept; zero or less keeps all
	SampleRatio float64
}

var (
	tpOnce sync.Once
	tpMu   sync.RWMutex
	tp     *sdktrace.TracerProvider
	tpErr  error
)

// Init installs the global tracer provider. Later calls return the first
// result and ignore their options.
func Init(opts Options) error {
	tpOnce.Do(func() {
		attrs := []attribute.KeyValue{semconv.ServiceName(opts.ServiceName)}
		if opts.Version != "" {
			attrs = append(attrs, semconv.ServiceVersion(opts.Version))
		}
		res, err := resource.New(context.Background(), resource.WithAttributes(attrs...))
		if err != nil {
			tpErr = err
			return
		}

		ratio := opts.SampleRatio
		if ratio <= 0 || ratio > 1 {
			ratio = 1
		}
		provider := sdktrace.NewTracerProvider(
			sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.TraceIDRatioBased(ratio))),
			sdktrace.WithResource(res),
		)

		tpMu.Lock()
		tp = provider
		tpMu.Unlock()
		otel.SetTracerProvider(provider)
	})
	return tpErr
}

// Shutdown flushes pending spans. It is a no-op when Init never ran.
func Shutdown(ctx context.Context) error {
	tpMu.RLock()
	provider := tp
	tpMu.RUnlock()
	if provider == nil {
		return nil
	}
	return provider.Shutdown(ctx)
}

// StartSpan starts a span tagged with the session and run ids found in ctx.
// When ctx has no trace id yet, the span's own trace id is stored so log
// lines and spans share it.
func StartSpan(ctx context.Context, tracerName, spanName string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	if ctx == nil {
		ctx = context.Background()
	}
	if id := GetSessionID(ctx); id != "" {
		attrs = append(attrs, attribute.String("codelet.session_id", id))
	}
	if id := GetRunID(ctx); id != "" {
		attrs = append(attrs, attribute.String("codelet.run_id", id))
	}

	ctx, span := otel.Tracer(tracerName).Start(ctx, spanName, trace.WithAttributes(attrs...))
	if GetTraceID(ctx) == "" {
		if sc := span.SpanContext(); sc.IsValid() {
			ctx = WithTraceID(ctx, sc.TraceID().String())
		}
	}
	return ctx, span
}

// RecordError marks span failed with err. A nil err leaves it untouched.
func RecordError(span trace.Span, err error) {
	if err == nil {
		return
	}
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}
