package bridge

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/cory-johannsen/simplehome/internal/command"
	"github.com/cory-johannsen/simplehome/internal/home"
	"github.com/cory-johannsen/simplehome/internal/observability"
)

// RequestIDHeader is the metadata key a host may use to supply its own request id.
const RequestIDHeader = "x-request-id"

// Executor runs a player command.
type Executor interface {
	Execute(ctx context.Context, inv command.Invocation, line string) (command.Result, error)
}

// Checkpointer persists pending home changes.
type Checkpointer interface {
	Checkpoint(ctx context.Context) error
}

// HomeService implements HomeServiceServer on top of the command handler.
type HomeService struct {
	exec   Executor
	saver  Checkpointer
	logger *zap.Logger
}

// NewHomeService creates a HomeService.
//
// Precondition: exec, saver and logger must be non-nil.
func NewHomeService(exec Executor, saver Checkpointer, logger *zap.Logger) *HomeService {
	return &HomeService{exec: exec, saver: saver, logger: logger}
}

// Execute runs one player command.
//
// Postcondition: Returns the rendered message and, for a successful home
// command, a teleport target. Malformed requests yield InvalidArgument and
// unknown commands yield NotFound.
func (s *HomeService) Execute(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	req, err := executeRequestFromStruct(in)
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}
	if req.RequestID == "" {
		req.RequestID = requestID(ctx)
	}

	res, err := s.exec.Execute(ctx, command.Invocation{
		RequestID: req.RequestID,
		PlayerID:  req.Player,
		World:     req.World,
		Position:  home.Position{X: req.X, Y: req.Y, Z: req.Z},
	}, req.Line)
	switch {
	case errors.Is(err, command.ErrUnknownCommand):
		return nil, status.Error(codes.NotFound, err.Error())
	case errors.Is(err, command.ErrInvalidInvocation):
		return nil, status.Error(codes.InvalidArgument, err.Error())
	case err != nil:
		s.logger.Error("executing command",
			append(observability.PlayerFields(req.RequestID, req.Player), zap.Error(err))...)
		return nil, status.Error(codes.Internal, "command failed")
	}

	resp := ExecuteResponse{
		RequestID: req.RequestID,
		Kind:      res.Kind.String(),
		Message:   res.Message,
	}
	if h := res.Teleport; h != nil {
		resp.Teleport = &Teleport{
			Name:  h.Name,
			World: h.World,
			X:     h.Position.X,
			Y:     h.Position.Y,
			Z:     h.Position.Z,
		}
	}
	out, err := resp.toStruct()
	if err != nil {
		return nil, status.Errorf(codes.Internal, "encoding response: %v", err)
	}
	return out, nil
}

// Save writes every player modified since the last save.
func (s *HomeService) Save(ctx context.Context, _ *structpb.Struct) (*structpb.Struct, error) {
	id := requestID(ctx)
	if err := s.saver.Checkpoint(ctx); err != nil {
		s.logger.Error("checkpoint requested by host failed",
			zap.String("request_id", id),
			zap.Error(err),
		)
		return nil, status.Error(codes.Internal, "saving homes failed")
	}
	return structpb.NewStruct(map[string]interface{}{fieldRequestID: id})
}

func requestID(ctx context.Context) string {
	if md, ok := metadata.FromIncomingContext(ctx); ok {
		if v := md.Get(RequestIDHeader); len(v) > 0 && v[0] != "" {
			return v[0]
		}
	}
	return uuid.NewString()
}

// Server runs HomeService and the standard health service on a TCP listener.
// It satisfies server.Service.
type Server struct {
	addr   string
	grpc   *grpc.Server
	health *health.Server
	logger *zap.Logger
}

// NewServer creates a Server for svc listening on addr.
//
// Precondition: addr is a "host:port" address; svc and logger must be non-nil.
func NewServer(addr string, svc HomeServiceServer, logger *zap.Logger) *Server {
	gs := grpc.NewServer(
		grpc.StatsHandler(otelgrpc.NewServerHandler()),
		grpc.ChainUnaryInterceptor(loggingInterceptor(logger)),
	)
	RegisterHomeServiceServer(gs, svc)

	hs := health.NewServer()
	healthpb.RegisterHealthServer(gs, hs)

	return &Server{addr: addr, grpc: gs, health: hs, logger: logger}
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
	s.logger.Info("gRPC server listening", zap.String("addr", lis.Addr().String()))
	s.health.SetServingStatus(ServiceName, healthpb.HealthCheckResponse_SERVING)
	if err := s.grpc.Serve(lis); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
		return err
	}
	return nil
}

// Stop marks the service as not serving and drains in-flight calls.
func (s *Server) Stop() {
	s.health.Shutdown()
	s.grpc.GracefulStop()
}

func loggingInterceptor(logger *zap.Logger) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
		start := time.Now()
		resp, err := handler(ctx, req)
		fields := []zap.Field{
			zap.String("method", info.FullMethod),
			zap.String("code", status.Code(err).String()),
			zap.Duration("elapsed", time.Since(start)),
		}
		fields = append(fields, observability.TraceFields(ctx)...)
		if err != nil {
			logger.Warn("rpc failed", append(fields, zap.Error(err))...)
		} else {
			logger.Debug("rpc", fields...)
		}
		return resp, err
	}
}
