package httpapi

import (
	"context"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"accountd.io/internal/obs"
)

// HealthServer exposes readiness over the standard grpc.health.v1 protocol
// for both the overall server ("") and the named service.
type HealthServer struct {
	srv       *health.Server
	readiness readinessChecker
}

// NewHealthServer wraps the readiness check. A nil check always reports
// SERVING.
func NewHealthServer(r readinessChecker) *HealthServer {
	if r == nil {
		r = ReadyCheck{}
	}
	return &HealthServer{srv: health.NewServer(), readiness: r}
}

// Register attaches the health service to s.
func (h *HealthServer) Register(s *grpc.Server) {
	healthpb.RegisterHealthServer(s, h.srv)
}

// Refresh runs the readiness check once and publishes the result.
func (h *HealthServer) Refresh(ctx context.Context) healthpb.HealthCheckResponse_ServingStatus {
	status := healthpb.HealthCheckResponse_SERVING
	if err := h.readiness.Check(ctx); err != nil {
		status = healthpb.HealthCheckResponse_NOT_SERVING
		obs.Logger().WarnContext(ctx, "readiness check failed", "error", err)
	}
	obs.SetReady(status == healthpb.HealthCheckResponse_SERVING)
	h.srv.SetServingStatus("", status)
	h.srv.SetServingStatus(serviceName, status)
	return status
}

// Watch refreshes the status every interval until ctx is done.
func (h *HealthServer) Watch(ctx context.Context, interval time.Duration) {
	h.Refresh(ctx)
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			h.Refresh(ctx)
		}
	}
}

// Shutdown marks every service NOT_SERVING so watchers drain first.
func (h *HealthServer) Shutdown() {
	h.srv.Shutdown()
}
