package service

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"
	tracepb "go.opentelemetry.io/proto/otlp/trace/v1"

	"github.com/agenttrace/spanengine/internal/domain"
	"github.com/agenttrace/spanengine/internal/pkg/logger"
	"github.com/agenttrace/spanengine/internal/pkg/metrics"
)

// SpanRepository defines the interface for span persistence operations.
// Implementations must be safe for concurrent use and must treat the span id
// as the identity of a row, so that re-delivered spans collapse.
type SpanRepository interface {
	// Create persists one span.
	Create(ctx context.Context, projectID uuid.UUID, span *domain.Span) error
	// CreateBatch persists spans in a single operation.
	CreateBatch(ctx context.Context, projectID uuid.UUID, spans []*domain.Span) error
}

// SpanIngestionService is the consumer side of span ingestion.
//
// Both telemetry sources end here:
//   - OTLP spans from instrumentation SDKs, one at a time, via IngestOTelSpan
//   - completed workflow runs, as a whole hierarchy, via IngestRun
//
// Every span is finalized the same way before it is stored: its name is
// appended to its path and LLM spans get token usage and cost attributes.
// The service holds no per-call state and is safe for concurrent use.
type SpanIngestionService struct {
	normalizer *SpanNormalizer
	costs      *CostService
	repo       SpanRepository
	logger     *zap.Logger
}

// NewSpanIngestionService creates a new SpanIngestionService.
//
// Parameters:
//   - normalizer: converts OTLP spans (required)
//   - costs: prices LLM spans (optional, usage is not written if nil)
//   - repo: span storage (required)
//   - logger: structured logger (required)
func NewSpanIngestionService(
	normalizer *SpanNormalizer,
	costs *CostService,
	repo SpanRepository,
	logger *zap.Logger,
) *SpanIngestionService {
	return &SpanIngestionService{
		normalizer: normalizer,
		costs:      costs,
		repo:       repo,
		logger:     logger.Named("ingestion"),
	}
}

// IngestOTelSpan normalizes, finalizes and stores one OTLP span.
//
// Decode defects in the span never fail the call; only storage errors are
// returned. Span ids derive from the OTLP ids, so retrying after an error
// stores the same span again rather than a duplicate.
func (s *SpanIngestionService) IngestOTelSpan(ctx context.Context, projectID uuid.UUID, otelSpan *tracepb.Span) (*domain.Span, error) {
	span := s.normalizer.FromOTelSpan(ctx, projectID, otelSpan)
	s.finalize(ctx, projectID, span)

	if err := s.repo.Create(ctx, projectID, span); err != nil {
		return nil, fmt.Errorf("failed to store span: %w", err)
	}

	metrics.RecordSpanPersisted(string(span.SpanType))
	return span, nil
}

// IngestRun turns a completed workflow run into a PIPELINE span plus one
// child span per LLM or SemanticSearch node and stores them in one batch.
//
// The returned slice starts with the PIPELINE span; children follow in node
// start order.
func (s *SpanIngestionService) IngestRun(ctx context.Context, projectID uuid.UUID, run *domain.RunTrace) ([]*domain.Span, error) {
	traceType := run.TraceType
	if !traceType.IsValid() {
		traceType = domain.TraceTypeDefault
	}

	messages := run.MessagesByID()
	parent := CreateParentSpanInRunTrace(run.Current, run.Stats, run.Name, messages, traceType)
	parentPath, _ := parent.GetAttributes().Path()

	spans := append(
		[]*domain.Span{parent},
		SpansFromMessages(messages, parent.TraceID, parent.SpanID, parentPath, s.logger)...,
	)
	for _, span := range spans {
		s.finalize(ctx, projectID, span)
	}

	if err := s.repo.CreateBatch(ctx, projectID, spans); err != nil {
		return nil, fmt.Errorf("failed to store run spans: %w", err)
	}

	for _, span := range spans {
		metrics.RecordSpanPersisted(string(span.SpanType))
	}
	metrics.RecordRunAssembled()

	s.logger.Debug("assembled run",
		append(logger.SpanFields(projectID.String(), parent.TraceID.String(), parent.SpanID.String()),
			zap.String("run", run.Name),
			zap.Int("spans", len(spans)),
		)...,
	)
	return spans, nil
}

// finalize appends the span name to its path and prices LLM spans. Both
// steps are idempotent, so finalizing a retried span twice is harmless.
func (s *SpanIngestionService) finalize(ctx context.Context, projectID uuid.UUID, span *domain.Span) {
	attrs := span.GetAttributes()
	attrs.ExtendSpanPath(span.Name)

	if span.SpanType == domain.SpanTypeLLM && s.costs != nil {
		attrs.SetUsage(s.costs.UsageForSpan(ctx, projectID, attrs))
	}

	span.SetAttributes(attrs)
}
