package storage

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// tracerName is the OpenTelemetry instrumentation scope name for this package.
const tracerName = "github.com/StricklySoft/stricklysoft-plugins/pkg/storage"

// Option configures a persistent backend.
type Option func(*options)

type options struct {
	tracerProvider trace.TracerProvider
	timeout        time.Duration
}

// WithTracerProvider sets the provider spans are created from. The default
// is the global provider.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(o *options) { o.tracerProvider = tp }
}

// WithTimeout bounds every operation. Zero, the default, leaves the
// caller's deadline alone.
func WithTimeout(d time.Duration) Option {
	return func(o *options) { o.timeout = d }
}

// instrument carries the tracing and timeout settings shared by the
// persistent backends.
type instrument struct {
	tracer  trace.Tracer
	system  string
	name    string
	timeout time.Duration
}

func newInstrument(system, name string, opts []Option) instrument {
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	tp := o.tracerProvider
	if tp == nil {
		tp = otel.GetTracerProvider()
	}
	return instrument{
		tracer:  tp.Tracer(tracerName),
		system:  system,
		name:    name,
		timeout: o.timeout,
	}
}

// start opens a client span and applies the operation timeout. The
// returned function ends the span with err's status and releases the
// timeout.
func (in instrument) start(ctx context.Context, operation, statement string) (context.Context, func(err error)) {
	cancel := context.CancelFunc(func() {})
	if in.timeout > 0 {
		ctx, cancel = context.WithTimeout(ctx, in.timeout)
	}
	ctx, span := in.tracer.Start(ctx, in.system+"."+operation,
		trace.WithSpanKind(trace.SpanKindClient),
	)
	span.SetAttributes(
		attribute.String("db.system", in.system),
		attribute.String("db.name", in.name),
		attribute.String("db.statement", truncateStatement(statement)),
	)
	return ctx, func(err error) {
		finishSpan(span, err)
		cancel()
	}
}

// finishSpan records an error on the span (if any) and ends it.
func finishSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else {
		span.SetStatus(codes.Ok, "")
	}
	span.End()
}
