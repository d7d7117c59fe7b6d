package api

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"time"

	grpc_prometheus "github.com/grpc-ecosystem/go-grpc-prometheus"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"
	"google.golang.org/grpc/status"

	"github.com/miradorstack/mirador-eeg/internal/config"
)

const defaultGracefulTimeout = 10 * time.Second

// Server hosts the PhaseAnalysis service together with health and reflection.
type Server struct {
	logger          *slog.Logger
	grpc            *grpc.Server
	health          *health.Server
	lis             net.Listener
	gracefulTimeout time.Duration
}

// NewServer binds cfg.Address and registers service. Extra options are
// appended after the prometheus and logging interceptors.
func NewServer(cfg config.ServerConfig, logger *slog.Logger, service PhaseAnalysisServer, opts ...grpc.ServerOption) (*Server, error) {
	if logger == nil {
		logger = slog.Default()
	}
	lis, err := net.Listen("tcp", cfg.Address)
	if err != nil {
		return nil, fmt.Errorf("listen on %s: %w", cfg.Address, err)
	}

	grpc_prometheus.EnableHandlingTimeHistogram()
	gs := grpc.NewServer(append([]grpc.ServerOption{
		grpc.ChainUnaryInterceptor(grpc_prometheus.UnaryServerInterceptor, logCalls(logger)),
		grpc.ChainStreamInterceptor(grpc_prometheus.StreamServerInterceptor),
	}, opts...)...)
	RegisterPhaseAnalysisServer(gs, service)
	grpc_prometheus.Register(gs)

	hs := health.NewServer()
	hs.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
	hs.SetServingStatus(ServiceName, healthpb.HealthCheckResponse_SERVING)
	healthpb.RegisterHealthServer(gs, hs)
	reflection.Register(gs)

	timeout := cfg.GracefulTimeout
	if timeout <= 0 {
		timeout = defaultGracefulTimeout
	}
	return &Server{logger: logger, grpc: gs, health: hs, lis: lis, gracefulTimeout: timeout}, nil
}

// Address is the bound listener address, with the real port when :0 was configured.
func (s *Server) Address() string {
	return s.lis.Addr().String()
}

// Run serves until ctx is done, then marks the service NOT_SERVING and drains
// in-flight calls. Calls still running after the graceful timeout are cut off.
func (s *Server) Run(ctx context.Context) error {
	served := make(chan error, 1)
	go func() { served <- s.grpc.Serve(s.lis) }()
	s.logger.Info("gRPC server listening", slog.String("address", s.Address()))

	select {
	case err := <-served:
		return fmt.Errorf("serve %s: %w", s.Address(), err)
	case <-ctx.Done():
	}

	s.health.Shutdown()
	drained := make(chan struct{})
	go func() {
		s.grpc.GracefulStop()
		close(drained)
	}()
	timer := time.NewTimer(s.gracefulTimeout)
	defer timer.Stop()
	select {
	case <-drained:
	case <-timer.C:
		s.logger.Warn("graceful stop timed out", slog.Duration("timeout", s.gracefulTimeout))
		s.grpc.Stop()
	}
	<-served
	return nil
}

func logCalls(logger *slog.Logger) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		start := time.Now()
		resp, err := handler(ctx, req)
		logger.Debug("rpc",
			slog.String("method", info.FullMethod),
			slog.String("code", status.Code(err).String()),
			slog.Duration("took", time.Since(start)))
		return resp, err
	}
}
