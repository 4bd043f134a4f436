// Package server exposes frontier's liveness over the standard gRPC health
// protocol (grpc.health.v1.Health), for orchestrators that probe over gRPC.
package server

import (
	"errors"
	"log/slog"
	"net"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	"google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"
)

// ServiceName is the health service name reported alongside the server-wide "".
const ServiceName = "frontier.Poller"

// HealthServer serves grpc.health.v1. It reports SERVING from creation until
// SetServing(false) or Stop.
type HealthServer struct {
	addr   string
	grpc   *grpc.Server
	health *health.Server
	logger *slog.Logger
}

// NewHealthServer creates a HealthServer for addr.
func NewHealthServer(addr string, logger *slog.Logger) *HealthServer {
	if logger == nil {
		logger = slog.Default()
	}

	grpcServer := grpc.NewServer()
	healthServer := health.NewServer()
	grpc_health_v1.RegisterHealthServer(grpcServer, healthServer)
	reflection.Register(grpcServer)

	s := &HealthServer{
		addr:   addr,
		grpc:   grpcServer,
		health: healthServer,
		logger: logger,
	}
	s.SetServing(true)
	return s
}

// Start listens on the configured address and serves until Stop.
func (s *HealthServer) Start() error {
	lis, err := net.Listen("tcp", s.addr)
	if err != nil {
		return err
	}
	return s.Serve(lis)
}

// Serve serves on lis until Stop. It returns nil after a graceful stop.
func (s *HealthServer) Serve(lis net.Listener) error {
	s.logger.Info("grpc health server listening", "address", lis.Addr().String())
	if err := s.grpc.Serve(lis); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
		return err
	}
	return nil
}

// SetServing flips the reported status for both "" and ServiceName.
func (s *HealthServer) SetServing(serving bool) {
	status := grpc_health_v1.HealthCheckResponse_NOT_SERVING
	if serving {
		status = grpc_health_v1.HealthCheckResponse_SERVING
	}
	s.health.SetServingStatus("", status)
	s.health.SetServingStatus(ServiceName, status)
}

// Stop reports NOT_SERVING and then stops the server gracefully.
func (s *HealthServer) Stop() {
	s.logger.Info("shutting down grpc health server")
	s.health.Shutdown()
	s.grpc.GracefulStop()
}
