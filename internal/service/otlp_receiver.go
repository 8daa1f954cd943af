package service

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"
	coltracepb "go.opentelemetry.io/proto/otlp/collector/trace/v1"
	tracepb "go.opentelemetry.io/proto/otlp/trace/v1"

	"github.com/agenttrace/spanengine/internal/domain"
	apperrors "github.com/agenttrace/spanengine/internal/pkg/errors"
	"github.com/agenttrace/spanengine/internal/pkg/metrics"
)

// SpanSink accepts decoded telemetry. The worker producer enqueues it and
// SpanIngestionService stores it in the calling goroutine.
type SpanSink interface {
	SubmitSpan(ctx context.Context, projectID uuid.UUID, span *tracepb.Span) error
	SubmitRun(ctx context.Context, projectID uuid.UUID, run *domain.RunTrace) error
}

// SubmitSpan implements SpanSink
func (s *SpanIngestionService) SubmitSpan(ctx context.Context, projectID uuid.UUID, span *tracepb.Span) error {
	_, err := s.IngestOTelSpan(ctx, projectID, span)
	return err
}

// SubmitRun implements SpanSink
func (s *SpanIngestionService) SubmitRun(ctx context.Context, projectID uuid.UUID, run *domain.RunTrace) error {
	_, err := s.IngestRun(ctx, projectID, run)
	return err
}

// OTLPReceiver hands every span of an OTLP export request to a SpanSink
type OTLPReceiver struct {
	sink   SpanSink
	logger *zap.Logger
}

// NewOTLPReceiver creates a receiver
func NewOTLPReceiver(sink SpanSink, logger *zap.Logger) *OTLPReceiver {
	return &OTLPReceiver{sink: sink, logger: logger.Named("otlp")}
}

// Export submits the spans of req. Spans the sink rejects as unprocessable
// are reported through PartialSuccess; any other failure aborts the export
// so the client retries it.
func (r *OTLPReceiver) Export(ctx context.Context, projectID uuid.UUID, req *coltracepb.ExportTraceServiceRequest) (*coltracepb.ExportTraceServiceResponse, error) {
	var accepted, rejected int64
	var lastRejection error

	for _, rs := range req.GetResourceSpans() {
		for _, ss := range rs.GetScopeSpans() {
			for _, span := range ss.GetSpans() {
				if span == nil {
					continue
				}
				err := r.sink.SubmitSpan(ctx, projectID, span)
				switch {
				case err == nil:
					accepted++
				case apperrors.IsRetryable(err):
					r.logger.Error("export aborted",
						zap.String("project_id", projectID.String()),
						zap.Int64("accepted", accepted),
						zap.Error(err),
					)
					return nil, apperrors.Unavailable("span ingestion unavailable").WithError(err)
				default:
					rejected++
					lastRejection = err
					metrics.RecordSpanRejected("unprocessable")
				}
			}
		}
	}

	r.logger.Debug("export received",
		zap.String("project_id", projectID.String()),
		zap.Int64("accepted", accepted),
		zap.Int64("rejected", rejected),
	)

	resp := &coltracepb.ExportTraceServiceResponse{}
	if rejected > 0 {
		resp.PartialSuccess = &coltracepb.ExportTracePartialSuccess{
			RejectedSpans: rejected,
			ErrorMessage:  fmt.Sprintf("%d spans rejected: %v", rejected, lastRejection),
		}
	}
	return resp, nil
}
