// Copyright (c) 2025 Seedfast
// Licensed under the MIT License. See LICENSE file in the project root for details.

// Package health exposes the standard gRPC health service for a running
// worker. The "sqlworker" service reports SERVING while the consume loop runs.
package health

import (
	"context"
	"fmt"
	"log/slog"
	"net"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"sqlworker/internal/logging"
)

// Service is the name reported to health checks.
const Service = "sqlworker"

// Server is a gRPC server carrying only the health service.
type Server struct {
	server   *grpc.Server
	health   *health.Server
	listener net.Listener
	logger   *slog.Logger
}

// Listen binds addr. The service starts as NOT_SERVING.
func Listen(addr string, logger *slog.Logger) (*Server, error) {
	if logger == nil {
		logger = logging.Discard()
	}
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("failed to listen on %s: %w", addr, err)
	}

	hs := health.NewServer()
	hs.SetServingStatus(Service, healthpb.HealthCheckResponse_NOT_SERVING)
	gs := grpc.NewServer()
	healthpb.RegisterHealthServer(gs, hs)

	return &Server{server: gs, health: hs, listener: lis, logger: logger}, nil
}

// Addr is the bound address.
func (s *Server) Addr() string {
	return s.listener.Addr().String()
}

// Serve blocks until Shutdown.
func (s *Server) Serve() error {
	s.logger.Info("health endpoint listening", "addr", s.Addr())
	return s.server.Serve(s.listener)
}

// SetServing flips the reported status of the worker service.
func (s *Server) SetServing(serving bool) {
	status := healthpb.HealthCheckResponse_NOT_SERVING
	if serving {
		status = healthpb.HealthCheckResponse_SERVING
	}
	s.health.SetServingStatus(Service, status)
}

// Shutdown reports NOT_SERVING and stops the server, forcing it closed if
// ctx ends before in-flight checks finish.
func (s *Server) Shutdown(ctx context.Context) {
	s.health.Shutdown()

	done := make(chan struct{})
	go func() {
		s.server.GracefulStop()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		s.server.Stop()
	}
}
