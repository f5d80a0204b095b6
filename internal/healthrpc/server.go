// Package healthrpc exposes the standard gRPC health service.
package healthrpc

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// ChatService is the health service name reported for the chat assistant.
const ChatService = "sonarhub.chat"

// Pinger checks a dependency, typically the database.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Server wraps a gRPC server carrying only the health service.
type Server struct {
	grpc   *grpc.Server
	health *health.Server
	db     Pinger
}

// New creates a health server. The overall status follows db; the chat
// service is SERVING only when chatEnabled.
func New(db Pinger, chatEnabled bool) *Server {
	hs := health.NewServer()
	gs := grpc.NewServer()
	healthpb.RegisterHealthServer(gs, hs)

	chatStatus := healthpb.HealthCheckResponse_NOT_SERVING
	if chatEnabled {
		chatStatus = healthpb.HealthCheckResponse_SERVING
	}
	hs.SetServingStatus(ChatService, chatStatus)
	hs.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)

	return &Server{grpc: gs, health: hs, db: db}
}

// Serve accepts connections on lis until ctx is canceled, refreshing the
// overall status from the database every interval.
func (s *Server) Serve(ctx context.Context, lis net.Listener, interval time.Duration) error {
	if interval <= 0 {
		interval = 30 * time.Second
	}

	go s.watch(ctx, interval)
	go func() {
		<-ctx.Done()
		s.health.Shutdown()
		s.grpc.GracefulStop()
	}()

	slog.Info("gRPC health server listening", "addr", lis.Addr().String())
	if err := s.grpc.Serve(lis); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
		return fmt.Errorf("serve grpc: %w", err)
	}
	return nil
}

// Refresh updates the overall status from a single database ping.
func (s *Server) Refresh(ctx context.Context) {
	if s.db == nil {
		return
	}
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	status := healthpb.HealthCheckResponse_SERVING
	if err := s.db.Ping(pingCtx); err != nil {
		slog.Warn("gRPC health: database unreachable", "error", err)
		status = healthpb.HealthCheckResponse_NOT_SERVING
	}
	s.health.SetServingStatus("", status)
}

func (s *Server) watch(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Refresh(ctx)
		}
	}
}
