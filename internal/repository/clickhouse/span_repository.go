package clickhouse

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/agenttrace/spanengine/internal/domain"
	"github.com/agenttrace/spanengine/internal/pkg/database"
	apperrors "github.com/agenttrace/spanengine/internal/pkg/errors"
)

// SpansTableDDL creates the spans table. ReplacingMergeTree keyed on the span
// id makes re-delivered spans collapse into one row.
const SpansTableDDL = `
	CREATE TABLE IF NOT EXISTS spans (
		project_id     UUID,
		span_id        UUID,
		trace_id       UUID,
		parent_span_id Nullable(UUID),
		version        LowCardinality(String),
		name           String,
		span_type      LowCardinality(String),
		path           String,
		session_id     String,
		user_id        String,
		attributes     String,
		input          String,
		output         String,
		input_tokens   Int64,
		output_tokens  Int64,
		total_cost     Float64,
		start_time     DateTime64(9, 'UTC'),
		end_time       DateTime64(9, 'UTC'),
		inserted_at    DateTime64(3, 'UTC') DEFAULT now64(3)
	)
	ENGINE = ReplacingMergeTree(inserted_at)
	PARTITION BY toYYYYMM(start_time)
	ORDER BY (project_id, trace_id, span_id)
`

const insertSpanQuery = `
	INSERT INTO spans (
		project_id, span_id, trace_id, parent_span_id, version, name,
		span_type, path, session_id, user_id, attributes, input, output,
		input_tokens, output_tokens, total_cost, start_time, end_time
	)
`

const selectSpanColumns = `
	SELECT
		span_id, trace_id, parent_span_id, version, name, span_type,
		attributes, input, output, start_time, end_time
	FROM spans FINAL
`

// SpanRepository stores canonical spans in ClickHouse
type SpanRepository struct {
	db     *database.ClickHouseDB
	logger *zap.Logger
}

// NewSpanRepository creates a new span repository
func NewSpanRepository(db *database.ClickHouseDB, logger *zap.Logger) *SpanRepository {
	return &SpanRepository{db: db, logger: logger.Named("span_repository")}
}

// EnsureSchema creates the spans table if needed
func (r *SpanRepository) EnsureSchema(ctx context.Context) error {
	return r.db.Exec(ctx, "create_table", SpansTableDDL)
}

// Create inserts one span
func (r *SpanRepository) Create(ctx context.Context, projectID uuid.UUID, span *domain.Span) error {
	return r.CreateBatch(ctx, projectID, []*domain.Span{span})
}

// CreateBatch inserts spans in one block
func (r *SpanRepository) CreateBatch(ctx context.Context, projectID uuid.UUID, spans []*domain.Span) error {
	if len(spans) == 0 {
		return nil
	}

	rows := make([]spanRow, 0, len(spans))
	for _, span := range spans {
		row, err := newSpanRow(projectID, span)
		if err != nil {
			return err
		}
		rows = append(rows, row)
	}

	batch, err := r.db.PrepareBatch(ctx, insertSpanQuery)
	if err != nil {
		return fmt.Errorf("failed to prepare batch: %w", err)
	}

	for _, row := range rows {
		if err := batch.Append(row.values()...); err != nil {
			return fmt.Errorf("failed to append to batch: %w", err)
		}
	}

	if err := r.db.SendBatch("insert_spans", batch); err != nil {
		return fmt.Errorf("failed to insert spans: %w", err)
	}
	return nil
}

// GetByID retrieves a span by ID
func (r *SpanRepository) GetByID(ctx context.Context, projectID, spanID uuid.UUID) (*domain.Span, error) {
	var rows []storedSpan
	query := selectSpanColumns + `WHERE project_id = ? AND span_id = ? LIMIT 1`
	if err := r.db.Select(ctx, "get_span", &rows, query, projectID, spanID); err != nil {
		return nil, fmt.Errorf("failed to get span: %w", err)
	}
	if len(rows) == 0 {
		return nil, apperrors.NotFound("span")
	}
	return rows[0].toDomain()
}

// GetByTraceID retrieves all spans of a trace ordered by start time. Rows
// whose stored attributes cannot be decoded are skipped.
func (r *SpanRepository) GetByTraceID(ctx context.Context, projectID, traceID uuid.UUID) ([]*domain.Span, error) {
	var rows []storedSpan
	query := selectSpanColumns + `WHERE project_id = ? AND trace_id = ? ORDER BY start_time ASC`
	if err := r.db.Select(ctx, "get_trace_spans", &rows, query, projectID, traceID); err != nil {
		return nil, fmt.Errorf("failed to get trace spans: %w", err)
	}

	spans := make([]*domain.Span, 0, len(rows))
	for i := range rows {
		span, err := rows[i].toDomain()
		if err != nil {
			r.logger.Warn("skipping undecodable span",
				zap.String("span_id", rows[i].SpanID.String()),
				zap.Error(err),
			)
			continue
		}
		spans = append(spans, span)
	}
	return spans, nil
}

// spanRow is the insert shape of a span
type spanRow struct {
	projectID    uuid.UUID
	span         *domain.Span
	path         string
	sessionID    string
	userID       string
	attributes   string
	input        string
	output       string
	inputTokens  int64
	outputTokens int64
	totalCost    float64
}

func newSpanRow(projectID uuid.UUID, span *domain.Span) (spanRow, error) {
	attributes, err := span.AttributesJSON()
	if err != nil {
		return spanRow{}, apperrors.Unprocessable("span attributes are not encodable").WithError(err)
	}
	input, err := encodePayload(span.Input)
	if err != nil {
		return spanRow{}, apperrors.Unprocessable("span input is not encodable").WithError(err)
	}
	output, err := encodePayload(span.Output)
	if err != nil {
		return spanRow{}, apperrors.Unprocessable("span output is not encodable").WithError(err)
	}

	// Reads only: token migration already happened when the span was finalized.
	attrs := span.GetAttributes()
	row := spanRow{
		projectID:    projectID,
		span:         span,
		attributes:   attributes,
		input:        input,
		output:       output,
		inputTokens:  attrs.InputTokens(),
		outputTokens: attrs.CompletionTokens(),
	}
	row.path, _ = attrs.Path()
	row.sessionID, _ = attrs.SessionID()
	row.userID, _ = attrs.UserID()
	row.totalCost = attrs.TotalCost()
	return row, nil
}

func (r spanRow) values() []any {
	return []any{
		r.projectID,
		r.span.SpanID,
		r.span.TraceID,
		r.span.ParentSpanID,
		r.span.Version,
		r.span.Name,
		string(r.span.SpanType),
		r.path,
		r.sessionID,
		r.userID,
		r.attributes,
		r.input,
		r.output,
		r.inputTokens,
		r.outputTokens,
		r.totalCost,
		r.span.StartTime,
		r.span.EndTime,
	}
}

// storedSpan is the select shape of a span
type storedSpan struct {
	SpanID       uuid.UUID  `ch:"span_id"`
	TraceID      uuid.UUID  `ch:"trace_id"`
	ParentSpanID *uuid.UUID `ch:"parent_span_id"`
	Version      string     `ch:"version"`
	Name         string     `ch:"name"`
	SpanType     string     `ch:"span_type"`
	Attributes   string     `ch:"attributes"`
	Input        string     `ch:"input"`
	Output       string     `ch:"output"`
	StartTime    time.Time  `ch:"start_time"`
	EndTime      time.Time  `ch:"end_time"`
}

func (s *storedSpan) toDomain() (*domain.Span, error) {
	attrs, err := domain.DecodeAttributes(s.Attributes)
	if err != nil {
		return nil, err
	}

	spanType, ok := domain.ParseSpanType(s.SpanType)
	if !ok {
		spanType = domain.SpanTypeDefault
	}

	span := &domain.Span{
		Version:      s.Version,
		SpanID:       s.SpanID,
		TraceID:      s.TraceID,
		ParentSpanID: s.ParentSpanID,
		Name:         s.Name,
		Input:        decodePayload(s.Input),
		Output:       decodePayload(s.Output),
		SpanType:     spanType,
		StartTime:    s.StartTime.UTC(),
		EndTime:      s.EndTime.UTC(),
	}
	span.SetAttributes(attrs)
	return span, nil
}

// encodePayload stores nil as an empty string so absent and JSON null stay distinct
func encodePayload(v any) (string, error) {
	if v == nil {
		return "", nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func decodePayload(s string) any {
	if s == "" {
		return nil
	}
	var v any
	if err := json.Unmarshal([]byte(s), &v); err != nil {
		return s
	}
	return v
}
