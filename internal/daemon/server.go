package daemon

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"time"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	healthgrpc "google.golang.org/grpc/health/grpc_health_v1"
)

// Server serves the HTTP API on the profile's Unix domain socket and the
// gRPC health service on a second socket.
type Server struct {
	httpServer *http.Server
	grpcServer *grpc.Server
	listener   net.Listener
	healthLn   net.Listener
	socketPath string
	healthPath string
	logger     *zap.Logger
}

// NewServer binds both sockets. Stale socket files are removed first and
// the new ones are restricted to the owner.
func NewServer(p Params, logger *zap.Logger, handler http.Handler, health *Health) (*Server, error) {
	socketPath, healthPath := p.socketPaths()

	listener, err := listenUnix(socketPath)
	if err != nil {
		return nil, err
	}
	healthLn, err := listenUnix(healthPath)
	if err != nil {
		_ = listener.Close()
		return nil, err
	}

	srv := grpc.NewServer()
	healthgrpc.RegisterHealthServer(srv, health.Server())

	return &Server{
		httpServer: &http.Server{
			Handler:           handler,
			ReadHeaderTimeout: 5 * time.Second,
		},
		grpcServer: srv,
		listener:   listener,
		healthLn:   healthLn,
		socketPath: socketPath,
		healthPath: healthPath,
		logger:     logger,
	}, nil
}

func listenUnix(path string) (net.Listener, error) {
	if _, err := os.Stat(path); err == nil {
		_ = os.Remove(path)
	}
	ln, err := net.Listen("unix", path)
	if err != nil {
		return nil, fmt.Errorf("listen unix socket: %w", err)
	}
	if err := os.Chmod(path, 0600); err != nil {
		_ = ln.Close()
		return nil, fmt.Errorf("chmod socket: %w", err)
	}
	return ln, nil
}

// Start serves both sockets. It blocks until the HTTP server stops.
func (s *Server) Start() error {
	go func() {
		if err := s.grpcServer.Serve(s.healthLn); err != nil {
			s.logger.Error("health server error", zap.Error(err))
		}
	}()
	s.logger.Info("api server starting", zap.String("socket", s.socketPath), zap.String("health", s.healthPath))
	if err := s.httpServer.Serve(s.listener); !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Stop shuts both servers down gracefully and removes the socket files.
func (s *Server) Stop(ctx context.Context) {
	s.logger.Info("api server stopping")
	if err := s.httpServer.Shutdown(ctx); err != nil {
		s.logger.Warn("api server shutdown", zap.Error(err))
	}
	s.grpcServer.GracefulStop()
	// Already closed when serving; not when Start never ran.
	_ = s.listener.Close()
	_ = s.healthLn.Close()
	_ = os.Remove(s.socketPath)
	_ = os.Remove(s.healthPath)
}
