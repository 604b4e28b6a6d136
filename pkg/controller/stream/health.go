package stream

import (
	"net"

	"github.com/pingcap-incubator/tinykv/log"
	"github.com/pkg/errors"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// HealthServiceName is the gRPC health service tracking the stream state.
const HealthServiceName = "livecounter.Stream"

// HealthServer publishes the controller state over the standard gRPC
// health protocol. The stream service is SERVING only while Streaming.
type HealthServer struct {
	health     *health.Server
	grpcServer *grpc.Server
}

func NewHealthServer(controller *Controller) *HealthServer {
	hs := &HealthServer{
		health:     health.NewServer(),
		grpcServer: grpc.NewServer(),
	}
	healthpb.RegisterHealthServer(hs.grpcServer, hs.health)
	hs.health.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
	hs.observe(controller.State())
	controller.OnStateChange(hs.observe)
	return hs
}

func (hs *HealthServer) observe(s State) {
	status := healthpb.HealthCheckResponse_NOT_SERVING
	if s == StateStreaming {
		status = healthpb.HealthCheckResponse_SERVING
	}
	hs.health.SetServingStatus(HealthServiceName, status)
}

// Serve blocks serving gRPC on addr.
func (hs *HealthServer) Serve(addr string) error {
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return errors.Wrapf(err, "failed to listen on %s", addr)
	}
	log.Infof("gRPC health server listening on %s", addr)
	return hs.grpcServer.Serve(lis)
}

// Stop marks everything NOT_SERVING and stops the gRPC server.
func (hs *HealthServer) Stop() {
	hs.health.Shutdown()
	hs.grpcServer.GracefulStop()
}

// Checker exposes the underlying health server, mostly for tests.
func (hs *HealthServer) Checker() healthpb.HealthServer {
	return hs.health
}
