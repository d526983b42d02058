package admin

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"
)

// Server runs the admin router on its own listener. It satisfies server.Service.
type Server struct {
	addr   string
	http   *http.Server
	logger *zap.Logger
}

// NewServer serves handler on addr.
//
// Precondition: addr is a "host:port" address; handler and logger must be non-nil.
func NewServer(addr string, handler http.Handler, logger *zap.Logger) *Server {
	return &Server{
		addr: addr,
		http: &http.Server{
			Handler:           otelhttp.NewHandler(handler, "admin"),
			ReadHeaderTimeout: 5 * time.Second,
		},
		logger: logger,
	}
}

// Start listens on the configured address and serves until Stop.
func (s *Server) Start() error {
	lis, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", s.addr, err)
	}
	return s.Serve(lis)
}

// Serve serves on lis until Stop.
func (s *Server) Serve(lis net.Listener) error {
	s.logger.Info("admin listening", zap.String("addr", lis.Addr().String()))
	if err := s.http.Serve(lis); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Stop shuts the listener down, letting in-flight requests finish.
func (s *Server) Stop() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.http.Shutdown(ctx); err != nil {
		s.logger.Warn("admin shutdown", zap.Error(err))
	}
}
