package transportgrpc

import (
	"context"
	"net"
	"time"

	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"

	grpcinterceptors "github.com/arklim/otp-auth-service/internal/transport/grpc/interceptors"
)

const defaultHealthInterval = 5 * time.Second

// ReadinessFunc reports per-dependency results and overall readiness.
type ReadinessFunc func(ctx context.Context) (map[string]string, bool)

// ServerDependencies encapsulates what the gRPC server layer needs.
type ServerDependencies struct {
	Logger           *zap.Logger
	Metrics          *grpcinterceptors.GRPCMetrics
	TracerProvider   trace.TracerProvider
	Readiness        ReadinessFunc
	EnableReflection bool
}

// Server serves grpc.health.v1 with statuses derived from dependency readiness.
// The empty service name carries the overall status, each dependency gets its own entry.
type Server struct {
	grpc      *grpc.Server
	health    *health.Server
	readiness ReadinessFunc
	logger    *zap.Logger
}

// NewServer wires the health service with logging, metrics and tracing.
func NewServer(deps ServerDependencies) *Server {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	server := grpc.NewServer(
		grpc.StatsHandler(grpcinterceptors.NewTracingHandler(grpcinterceptors.TracingOptions{
			TracerProvider: deps.TracerProvider,
			SkipHealth:     true,
		})),
		grpc.ChainUnaryInterceptor(
			grpcinterceptors.Logging(logger),
			deps.Metrics.UnaryServerInterceptor(),
		),
	)

	healthServer := health.NewServer()
	healthpb.RegisterHealthServer(server, healthServer)

	if deps.EnableReflection {
		reflection.Register(server)
	}

	s := &Server{
		grpc:      server,
		health:    healthServer,
		readiness: deps.Readiness,
		logger:    logger,
	}
	// Until the first probe runs the server reports NOT_SERVING.
	healthServer.SetServingStatus("", healthpb.HealthCheckResponse_NOT_SERVING)
	return s
}

// GRPC exposes the underlying server.
func (s *Server) GRPC() *grpc.Server {
	return s.grpc
}

// Serve accepts connections until Stop or GracefulStop is called.
func (s *Server) Serve(lis net.Listener) error {
	return s.grpc.Serve(lis)
}

// SyncHealth runs the readiness probes once and publishes the results.
// Without a readiness function the server is always SERVING.
func (s *Server) SyncHealth(ctx context.Context) {
	if s.readiness == nil {
		s.health.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
		return
	}

	results, ready := s.readiness(ctx)
	for name, result := range results {
		s.health.SetServingStatus(name, servingStatus(result == "ok"))
	}
	s.health.SetServingStatus("", servingStatus(ready))
}

// WatchHealth refreshes statuses every interval until ctx is done.
func (s *Server) WatchHealth(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = defaultHealthInterval
	}

	s.SyncHealth(ctx)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.SyncHealth(ctx)
		}
	}
}

// GracefulStop flips every status to NOT_SERVING and drains in-flight calls.
// When ctx expires first the server is stopped forcibly.
func (s *Server) GracefulStop(ctx context.Context) {
	s.health.Shutdown()

	done := make(chan struct{})
	go func() {
		s.grpc.GracefulStop()
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		s.logger.Warn("gRPC graceful stop timed out, forcing stop")
		s.grpc.Stop()
		<-done
	}
}

func servingStatus(ok bool) healthpb.HealthCheckResponse_ServingStatus {
	if ok {
		return healthpb.HealthCheckResponse_SERVING
	}
	return healthpb.HealthCheckResponse_NOT_SERVING
}
