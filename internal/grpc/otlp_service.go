// Package grpc serves the OTLP/gRPC trace collector endpoint.
package grpc

import (
	"context"
	"net"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"
	coltracepb "go.opentelemetry.io/proto/otlp/collector/trace/v1"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	"github.com/agenttrace/spanengine/internal/middleware"
	apperrors "github.com/agenttrace/spanengine/internal/pkg/errors"
	"github.com/agenttrace/spanengine/internal/service"
)

// OTLPTraceService implements the OTLP gRPC trace collector service
type OTLPTraceService struct {
	coltracepb.UnimplementedTraceServiceServer
	receiver *service.OTLPReceiver
	logger   *zap.Logger
}

// NewOTLPTraceService creates a new OTLP trace service
func NewOTLPTraceService(receiver *service.OTLPReceiver, logger *zap.Logger) *OTLPTraceService {
	return &OTLPTraceService{
		receiver: receiver,
		logger:   logger.Named("otlp_grpc"),
	}
}

// Export implements the OTLP TraceService Export RPC
func (s *OTLPTraceService) Export(ctx context.Context, req *coltracepb.ExportTraceServiceRequest) (*coltracepb.ExportTraceServiceResponse, error) {
	if req == nil {
		return nil, status.Error(codes.InvalidArgument, "request is nil")
	}

	projectID, err := projectFromMetadata(ctx)
	if err != nil {
		return nil, err
	}

	resp, err := s.receiver.Export(ctx, projectID, req)
	if err != nil {
		if apperrors.IsRetryable(err) {
			return nil, status.Error(codes.Unavailable, "span ingestion unavailable")
		}
		s.logger.Error("export failed", zap.Error(err))
		return nil, status.Error(codes.Internal, "failed to ingest spans")
	}
	return resp, nil
}

// projectFromMetadata reads the project id sent under the same key the
// HTTP receiver uses as a header.
func projectFromMetadata(ctx context.Context) (uuid.UUID, error) {
	md, ok := metadata.FromIncomingContext(ctx)
	if !ok {
		return uuid.Nil, status.Error(codes.Unauthenticated, "missing request metadata")
	}

	values := md.Get(strings.ToLower(middleware.ProjectIDHeader))
	if len(values) == 0 || values[0] == "" {
		return uuid.Nil, status.Error(codes.Unauthenticated, "missing "+strings.ToLower(middleware.ProjectIDHeader)+" metadata")
	}

	projectID, err := uuid.Parse(values[0])
	if err != nil {
		return uuid.Nil, status.Error(codes.InvalidArgument, "invalid project ID")
	}
	return projectID, nil
}

// Server wraps a grpc.Server exposing the trace service
type Server struct {
	server *grpc.Server
	logger *zap.Logger
}

// NewServer registers svc on a new gRPC server. maxRecvBytes bounds a
// single export request.
func NewServer(svc *OTLPTraceService, maxRecvBytes int, logger *zap.Logger) *Server {
	opts := []grpc.ServerOption{}
	if maxRecvBytes > 0 {
		opts = append(opts, grpc.MaxRecvMsgSize(maxRecvBytes))
	}

	server := grpc.NewServer(opts...)
	coltracepb.RegisterTraceServiceServer(server, svc)

	return &Server{server: server, logger: logger.Named("grpc")}
}

// Serve accepts connections on lis until Stop is called
func (s *Server) Serve(lis net.Listener) error {
	s.logger.Info("starting OTLP gRPC receiver", zap.String("addr", lis.Addr().String()))
	return s.server.Serve(lis)
}

// Stop drains in-flight exports before closing
func (s *Server) Stop() {
	s.server.GracefulStop()
}
