package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"go.uber.org/zap"
	tracepb "go.opentelemetry.io/proto/otlp/trace/v1"
	"google.golang.org/protobuf/proto"

	"github.com/agenttrace/spanengine/internal/domain"
	apperrors "github.com/agenttrace/spanengine/internal/pkg/errors"
	"github.com/agenttrace/spanengine/internal/pkg/metrics"
)

const (
	// TypeSpanIngest is the task type for one OTLP span
	TypeSpanIngest = "spans:ingest"

	// TypeRunIngest is the task type for a completed workflow run
	TypeRunIngest = "spans:run"
)

// SpanIngestPayload carries one OTLP span in its protobuf encoding
type SpanIngestPayload struct {
	ProjectID uuid.UUID `json:"project_id"`
	Span      []byte    `json:"span"`
}

// RunIngestPayload carries a workflow run
type RunIngestPayload struct {
	ProjectID uuid.UUID        `json:"project_id"`
	Run       *domain.RunTrace `json:"run"`
}

// NewSpanIngestTask creates a span ingestion task
func NewSpanIngestTask(projectID uuid.UUID, span *tracepb.Span) (*asynq.Task, error) {
	raw, err := proto.Marshal(span)
	if err != nil {
		return nil, fmt.Errorf("failed to encode span: %w", err)
	}
	data, err := json.Marshal(SpanIngestPayload{ProjectID: projectID, Span: raw})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal span ingest payload: %w", err)
	}
	return asynq.NewTask(TypeSpanIngest, data, asynq.Timeout(30*time.Second)), nil
}

// NewRunIngestTask creates a run ingestion task
func NewRunIngestTask(projectID uuid.UUID, run *domain.RunTrace) (*asynq.Task, error) {
	data, err := json.Marshal(RunIngestPayload{ProjectID: projectID, Run: run})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal run ingest payload: %w", err)
	}
	return asynq.NewTask(TypeRunIngest, data, asynq.Timeout(60*time.Second)), nil
}

// Ingester stores spans. Implemented by service.SpanIngestionService.
type Ingester interface {
	IngestOTelSpan(ctx context.Context, projectID uuid.UUID, span *tracepb.Span) (*domain.Span, error)
	IngestRun(ctx context.Context, projectID uuid.UUID, run *domain.RunTrace) ([]*domain.Span, error)
}

// SpanWorker handles span ingestion tasks
type SpanWorker struct {
	logger   *zap.Logger
	ingester Ingester
}

// NewSpanWorker creates a new span worker
func NewSpanWorker(logger *zap.Logger, ingester Ingester) *SpanWorker {
	return &SpanWorker{
		logger:   logger.Named("span_worker"),
		ingester: ingester,
	}
}

// ProcessSpanTask processes a span ingestion task
func (w *SpanWorker) ProcessSpanTask(ctx context.Context, t *asynq.Task) error {
	var payload SpanIngestPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		metrics.RecordSpanRejected("payload")
		return fmt.Errorf("failed to unmarshal span ingest payload: %v: %w", err, asynq.SkipRetry)
	}

	var span tracepb.Span
	if err := proto.Unmarshal(payload.Span, &span); err != nil {
		metrics.RecordSpanRejected("payload")
		return fmt.Errorf("failed to decode span: %v: %w", err, asynq.SkipRetry)
	}

	stored, err := w.ingester.IngestOTelSpan(ctx, payload.ProjectID, &span)
	if err != nil {
		return w.failure(err, "failed to ingest span")
	}

	w.logger.Debug("span ingested",
		zap.String("project_id", payload.ProjectID.String()),
		zap.String("span_id", stored.SpanID.String()),
	)
	return nil
}

// ProcessRunTask processes a run ingestion task
func (w *SpanWorker) ProcessRunTask(ctx context.Context, t *asynq.Task) error {
	var payload RunIngestPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil || payload.Run == nil {
		metrics.RecordSpanRejected("payload")
		return fmt.Errorf("failed to unmarshal run ingest payload: %v: %w", err, asynq.SkipRetry)
	}

	spans, err := w.ingester.IngestRun(ctx, payload.ProjectID, payload.Run)
	if err != nil {
		return w.failure(err, "failed to ingest run")
	}

	w.logger.Info("run ingested",
		zap.String("project_id", payload.ProjectID.String()),
		zap.String("run", payload.Run.Name),
		zap.Int("spans", len(spans)),
	)
	return nil
}

// failure marks errors caused by the input itself as not retryable
func (w *SpanWorker) failure(err error, msg string) error {
	if apperrors.IsRetryable(err) {
		w.logger.Warn(msg+", will retry", zap.Error(err))
		return fmt.Errorf("%s: %w", msg, err)
	}
	metrics.RecordSpanRejected("unprocessable")
	w.logger.Error(msg, zap.Error(err))
	return fmt.Errorf("%s: %v: %w", msg, err, asynq.SkipRetry)
}

// TaskEnqueuer is the subset of asynq.Client used by Producer
type TaskEnqueuer interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

// Producer enqueues ingestion tasks. Spans go to the default queue and
// runs, which may carry many nodes, to the critical queue.
type Producer struct {
	client   TaskEnqueuer
	spanOpts []asynq.Option
	runOpts  []asynq.Option
}

// NewProducer creates a producer for the configured queues
func NewProducer(client TaskEnqueuer, queueDefault, queueCritical string, maxRetry int) *Producer {
	return &Producer{
		client:   client,
		spanOpts: []asynq.Option{asynq.Queue(queueDefault), asynq.MaxRetry(maxRetry)},
		runOpts:  []asynq.Option{asynq.Queue(queueCritical), asynq.MaxRetry(maxRetry)},
	}
}

// SubmitSpan enqueues one OTLP span
func (p *Producer) SubmitSpan(ctx context.Context, projectID uuid.UUID, span *tracepb.Span) error {
	task, err := NewSpanIngestTask(projectID, span)
	if err != nil {
		return err
	}
	if _, err := p.client.EnqueueContext(ctx, task, p.spanOpts...); err != nil {
		return fmt.Errorf("failed to enqueue span: %w", err)
	}
	return nil
}

// SubmitRun enqueues a workflow run
func (p *Producer) SubmitRun(ctx context.Context, projectID uuid.UUID, run *domain.RunTrace) error {
	task, err := NewRunIngestTask(projectID, run)
	if err != nil {
		return err
	}
	if _, err := p.client.EnqueueContext(ctx, task, p.runOpts...); err != nil {
		return fmt.Errorf("failed to enqueue run: %w", err)
	}
	return nil
}

func isSkipRetry(err error) bool {
	return errors.Is(err, asynq.SkipRetry)
}
