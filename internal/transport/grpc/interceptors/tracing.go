package interceptors

import (
	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
	"google.golang.org/grpc/stats"
)

// TracingOptions customises the server tracing handler.
type TracingOptions struct {
	TracerProvider trace.TracerProvider
	Propagators    propagation.TextMapPropagator
	// SkipHealth keeps health probes out of the trace backend.
	SkipHealth bool
}

// NewTracingHandler returns an OpenTelemetry stats handler for grpc.StatsHandler.
func NewTracingHandler(opts TracingOptions) stats.Handler {
	options := make([]otelgrpc.Option, 0, 3)
	if opts.TracerProvider != nil {
		options = append(options, otelgrpc.WithTracerProvider(opts.TracerProvider))
	}
	if opts.Propagators != nil {
		options = append(options, otelgrpc.WithPropagators(opts.Propagators))
	}
	if opts.SkipHealth {
		options = append(options, otelgrpc.WithFilter(func(info *stats.RPCTagInfo) bool {
			return info.FullMethodName != "/grpc.health.v1.Health/Check" &&
				info.FullMethodName != "/grpc.health.v1.Health/Watch"
		}))
	}
	return otelgrpc.NewServerHandler(options...)
}
