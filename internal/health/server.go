// Package health serves the gRPC health protocol for the service and its
// dependencies.
package health

import (
	"context"
	"log"
	"net"
	"sort"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"matchroom-service/internal/observability"
)

// ServiceName is the health service name reported for the match room service.
const ServiceName = "matchroom.MatchRoom"

// Checker reports whether a dependency is reachable.
type Checker interface {
	Ping(ctx context.Context) error
}

// CheckFunc adapts a function to Checker.
type CheckFunc func(ctx context.Context) error

func (f CheckFunc) Ping(ctx context.Context) error { return f(ctx) }

// Server is a gRPC server exposing grpc.health.v1.Health.
type Server struct {
	grpc     *grpc.Server
	health   *health.Server
	checks   map[string]Checker
	interval time.Duration
}

// NewServer builds a health server probing checks every interval.
func NewServer(interval time.Duration, checks map[string]Checker) *Server {
	srv := grpc.NewServer(
		grpc.StatsHandler(otelgrpc.NewServerHandler()),
		grpc.UnaryInterceptor(observability.GRPCServerMetricsUnaryInterceptor()),
	)
	hs := health.NewServer()
	healthpb.RegisterHealthServer(srv, hs)
	return &Server{grpc: srv, health: hs, checks: checks, interval: interval}
}

// Serve accepts connections on lis until Stop is called.
func (s *Server) Serve(lis net.Listener) error {
	return s.grpc.Serve(lis)
}

// Run probes dependencies until ctx is done.
func (s *Server) Run(ctx context.Context) {
	s.Probe(ctx)
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Probe(ctx)
		}
	}
}

// Probe checks every dependency once and updates the serving status.
func (s *Server) Probe(ctx context.Context) {
	names := make([]string, 0, len(s.checks))
	for name := range s.checks {
		names = append(names, name)
	}
	sort.Strings(names)

	status := healthpb.HealthCheckResponse_SERVING
	for _, name := range names {
		pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
		err := s.checks[name].Ping(pingCtx)
		cancel()
		if err != nil {
			log.Printf("health: %s unreachable: %v", name, err)
			status = healthpb.HealthCheckResponse_NOT_SERVING
		}
	}
	s.health.SetServingStatus("", status)
	s.health.SetServingStatus(ServiceName, status)
}

// Stop marks the service as not serving and drains in-flight RPCs.
func (s *Server) Stop() {
	s.health.Shutdown()
	s.grpc.GracefulStop()
}
