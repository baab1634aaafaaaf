package grpc

import (
	"context"
	"fmt"
	"net"
	"time"

	"github.com/example/dinein/pkg/config"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"
	"google.golang.org/grpc/status"
)

// Pinger is anything whose reachability decides the serving status.
type Pinger interface {
	Ping(ctx context.Context) error
}

// HealthServer exposes the standard gRPC health service. The status of
// the overall server and of the named service follows the result of
// periodic store pings.
type HealthServer struct {
	config *config.Config
	store  Pinger
	health *health.Server
	srv    *grpc.Server
	logger *zap.Logger
}

func NewHealthServer(cfg *config.Config, store Pinger, logger *zap.Logger) *HealthServer {
	logger = logger.Named("grpc")
	hs := health.NewServer()
	srv := grpc.NewServer(grpc.UnaryInterceptor(loggingInterceptor(logger)))
	healthpb.RegisterHealthServer(srv, hs)
	reflection.Register(srv)

	return &HealthServer{
		config: cfg,
		store:  store,
		health: hs,
		srv:    srv,
		logger: logger,
	}
}

// Start serves until Stop is called.
func (s *HealthServer) Start() error {
	addr := s.config.GRPC.Addr()
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen: %w", err)
	}

	s.logger.Info("Health service started", zap.String("address", addr))
	return s.srv.Serve(lis)
}

// Probe pings the store every interval and updates the serving status
// until ctx ends.
func (s *HealthServer) Probe(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	s.check(ctx)
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			s.check(ctx)
		}
	}
}

func (s *HealthServer) check(ctx context.Context) {
	pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	st := healthpb.HealthCheckResponse_SERVING
	if err := s.store.Ping(pingCtx); err != nil {
		if ctx.Err() != nil {
			return
		}
		s.logger.Warn("Store ping failed", zap.Error(err))
		st = healthpb.HealthCheckResponse_NOT_SERVING
	}
	s.health.SetServingStatus("", st)
	s.health.SetServingStatus(s.config.Server.Name, st)
}

func (s *HealthServer) Stop() {
	s.health.Shutdown()
	s.srv.GracefulStop()
}

func loggingInterceptor(logger *zap.Logger) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
		start := time.Now()
		resp, err := handler(ctx, req)
		logger.Debug("gRPC request",
			zap.String("method", info.FullMethod),
			zap.String("code", status.Code(err).String()),
			zap.Duration("latency", time.Since(start)))
		return resp, err
	}
}
