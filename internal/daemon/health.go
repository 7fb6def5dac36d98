package daemon

import (
	"github.com/matheus3301/followtrack/internal/bus"
	"github.com/matheus3301/followtrack/internal/status"
	"google.golang.org/grpc/health"
	healthgrpc "google.golang.org/grpc/health/grpc_health_v1"
)

// ServiceName is the health service name probed by followctl.
const ServiceName = "followtrack.Daemon"

// Health mirrors the status machine onto the gRPC health service: the
// daemon is SERVING whenever it has data to show.
type Health struct {
	srv     *health.Server
	machine *status.Machine
	events  <-chan bus.Event
	unsub   func()
	done    chan struct{}
	stopped chan struct{}
}

// NewHealth starts tracking m. Call Close to stop.
func NewHealth(m *status.Machine, b *bus.Bus) *Health {
	h := &Health{
		srv:     health.NewServer(),
		machine: m,
		done:    make(chan struct{}),
		stopped: make(chan struct{}),
	}
	h.events, h.unsub = b.Subscribe(bus.StatusChanged, 16)
	h.set(m.Serving())
	go h.run()
	return h
}

// Server returns the gRPC health implementation.
func (h *Health) Server() *health.Server {
	return h.srv
}

// Close stops tracking and reports NOT_SERVING from then on.
func (h *Health) Close() {
	h.unsub()
	close(h.done)
	<-h.stopped
	h.srv.Shutdown()
}

func (h *Health) run() {
	defer close(h.stopped)
	for {
		select {
		case <-h.done:
			return
		case <-h.events:
			// Read the machine rather than the payload so a dropped event
			// cannot leave a stale status behind.
			h.set(h.machine.Serving())
		}
	}
}

func (h *Health) set(serving bool) {
	st := healthgrpc.HealthCheckResponse_NOT_SERVING
	if serving {
		st = healthgrpc.HealthCheckResponse_SERVING
	}
	h.srv.SetServingStatus(ServiceName, st)
	h.srv.SetServingStatus("", st)
}
