package server

import (
	"context"
	"net"
	"time"

	"github.com/rs/zerolog"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"

	"github.com/windfall/poplingo_service/internal/config"
)

// Checker reports whether a dependency is reachable.
type Checker interface {
	Ping(ctx context.Context) error
}

// GRPCServer serves the standard health service. Each registered
// dependency is also exposed as its own health service name.
type GRPCServer struct {
	server *grpc.Server
	health *health.Server
	checks map[string]Checker
	addr   string
	log    zerolog.Logger
}

// NewGRPCServer creates a new gRPC server.
func NewGRPCServer(cfg *config.Config, log zerolog.Logger) *GRPCServer {
	server := grpc.NewServer(
		grpc.ChainUnaryInterceptor(
			UnaryRecoveryInterceptor(log),
			UnaryLoggingInterceptor(log),
			UnaryErrorInterceptor(),
		),
		grpc.ChainStreamInterceptor(
			StreamRecoveryInterceptor(log),
			StreamLoggingInterceptor(log),
		),
	)

	hs := health.NewServer()
	healthpb.RegisterHealthServer(server, hs)

	// Enable reflection for development
	if cfg.IsDevelopment() {
		reflection.Register(server)
	}

	return &GRPCServer{
		server: server,
		health: hs,
		checks: make(map[string]Checker),
		addr:   cfg.GRPCAddress(),
		log:    log,
	}
}

// WithCheck registers a dependency whose status MonitorDependencies keeps
// current under the service name "poplingo.<name>".
func (s *GRPCServer) WithCheck(name string, c Checker) *GRPCServer {
	s.checks[name] = c
	return s
}

// MonitorDependencies pings every registered dependency each interval and
// updates the health service until ctx is done. The overall status ("")
// stays SERVING; a down dependency only affects its own entry.
func (s *GRPCServer) MonitorDependencies(ctx context.Context, interval time.Duration) {
	s.probe(ctx)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.probe(ctx)
		}
	}
}

func (s *GRPCServer) probe(ctx context.Context) {
	for name, c := range s.checks {
		pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
		err := c.Ping(pingCtx)
		cancel()

		status := healthpb.HealthCheckResponse_SERVING
		if err != nil {
			status = healthpb.HealthCheckResponse_NOT_SERVING
			s.log.Warn().Err(err).Str("dependency", name).Msg("Dependency health check failed")
		}
		s.health.SetServingStatus("poplingo."+name, status)
	}
}

// Start starts the gRPC server.
func (s *GRPCServer) Start() error {
	lis, err := net.Listen("tcp", s.addr)
	if err != nil {
		return err
	}

	s.log.Info().Str("addr", s.addr).Msg("Starting gRPC server")
	return s.Serve(lis)
}

// Serve accepts connections on lis.
func (s *GRPCServer) Serve(lis net.Listener) error {
	return s.server.Serve(lis)
}

// GracefulStop marks every service NOT_SERVING and stops the server.
func (s *GRPCServer) GracefulStop() {
	s.log.Info().Msg("Shutting down gRPC server")
	s.health.Shutdown()
	s.server.GracefulStop()
}
