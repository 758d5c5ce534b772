package httpapi

import (
	"context"
	"time"

	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"gigshield.org/internal/obs"
)

// HealthServer publishes readiness over the standard gRPC health protocol,
// both for the empty service name and for serviceName.
type HealthServer struct {
	srv       *health.Server
	readiness readinessChecker
	clock     clockwork.Clock
}

// NewHealthServer creates the wrapper. The initial status is NOT_SERVING
// until the first Refresh.
func NewHealthServer(r readinessChecker, clock clockwork.Clock) *HealthServer {
	if r == nil {
		r = ReadyProbe{}
	}
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	h := &HealthServer{srv: health.NewServer(), readiness: r, clock: clock}
	h.set(healthpb.HealthCheckResponse_NOT_SERVING)
	return h
}

// Register attaches the health service to a gRPC server.
func (h *HealthServer) Register(s *grpc.Server) {
	healthpb.RegisterHealthServer(s, h.srv)
}

// Refresh evaluates readiness once and reports whether the service is ready.
func (h *HealthServer) Refresh(ctx context.Context) bool {
	if err := h.readiness.Check(ctx); err != nil {
		obs.Logger().Warn("readiness check failed", zap.Error(err))
		obs.SetReady(false)
		h.set(healthpb.HealthCheckResponse_NOT_SERVING)
		return false
	}
	obs.SetReady(true)
	h.set(healthpb.HealthCheckResponse_SERVING)
	return true
}

// Watch refreshes on every tick until ctx is done.
func (h *HealthServer) Watch(ctx context.Context, every time.Duration) {
	if every <= 0 {
		every = 10 * time.Second
	}
	h.Refresh(ctx)
	ticker := h.clock.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.Chan():
			h.Refresh(ctx)
		}
	}
}

// Shutdown marks every service NOT_SERVING and ignores later updates.
func (h *HealthServer) Shutdown() { h.srv.Shutdown() }

func (h *HealthServer) set(status healthpb.HealthCheckResponse_ServingStatus) {
	h.srv.SetServingStatus("", status)
	h.srv.SetServingStatus(serviceName, status)
}
