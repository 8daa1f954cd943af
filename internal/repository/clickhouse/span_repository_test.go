package clickhouse

import (
	"context"
	"math"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/agenttrace/spanengine/internal/config"
	"github.com/agenttrace/spanengine/internal/domain"
	"github.com/agenttrace/spanengine/internal/pkg/database"
	apperrors "github.com/agenttrace/spanengine/internal/pkg/errors"
)

// getTestDB returns a test database connection, skipping when none is configured
func getTestDB(t *testing.T) *database.ClickHouseDB {
	if os.Getenv("CLICKHOUSE_TEST_HOST") == "" {
		t.Skip("Skipping integration test: CLICKHOUSE_TEST_HOST not set")
		return nil
	}

	cfg := config.ClickHouseConfig{
		Host:     os.Getenv("CLICKHOUSE_TEST_HOST"),
		Port:     9000,
		Database: os.Getenv("CLICKHOUSE_TEST_DB"),
		User:     os.Getenv("CLICKHOUSE_TEST_USER"),
		Password: os.Getenv("CLICKHOUSE_TEST_PASS"),
	}
	if cfg.Database == "" {
		cfg.Database = "default"
	}

	db, err := database.NewClickHouse(context.Background(), cfg)
	if err != nil {
		t.Skipf("Skipping integration test: failed to connect to ClickHouse: %v", err)
		return nil
	}
	return db
}

func createTestSpan(traceID uuid.UUID, parentID *uuid.UUID, name string, start time.Time) *domain.Span {
	return &domain.Span{
		Version:      domain.DefaultVersion,
		SpanID:       uuid.New(),
		TraceID:      traceID,
		ParentSpanID: parentID,
		Name:         name,
		Attributes: map[string]any{
			domain.AttrSpanPath:          "pipeline." + name,
			domain.AttrSessionID:         "session-1",
			domain.AttrGenAIInputTokens:  int64(12),
			domain.AttrGenAIOutputTokens: int64(3),
			domain.AttrGenAITotalCost:    0.25,
		},
		Input:     map[string]any{"question": "hi"},
		Output:    "hello",
		SpanType:  domain.SpanTypeLLM,
		StartTime: start,
		EndTime:   start.Add(time.Second),
	}
}

func TestNewSpanRow(t *testing.T) {
	projectID := uuid.New()

	t.Run("denormalizes facade fields", func(t *testing.T) {
		span := createTestSpan(uuid.New(), nil, "llm", time.Now().UTC())

		row, err := newSpanRow(projectID, span)
		require.NoError(t, err)

		assert.Equal(t, "pipeline.llm", row.path)
		assert.Equal(t, "session-1", row.sessionID)
		assert.Empty(t, row.userID)
		assert.Equal(t, int64(12), row.inputTokens)
		assert.Equal(t, int64(3), row.outputTokens)
		assert.Equal(t, 0.25, row.totalCost)
		assert.JSONEq(t, `{"question":"hi"}`, row.input)
		assert.Equal(t, `"hello"`, row.output)
		assert.Len(t, row.values(), 18)
	})

	t.Run("integer cost is stored", func(t *testing.T) {
		span := createTestSpan(uuid.New(), nil, "llm", time.Now().UTC())
		span.Attributes[domain.AttrGenAITotalCost] = int64(2)

		row, err := newSpanRow(projectID, span)
		require.NoError(t, err)
		assert.Equal(t, 2.0, row.totalCost)
	})

	t.Run("nil payloads are stored empty", func(t *testing.T) {
		span := createTestSpan(uuid.New(), nil, "llm", time.Now().UTC())
		span.Input, span.Output = nil, nil

		row, err := newSpanRow(projectID, span)
		require.NoError(t, err)
		assert.Empty(t, row.input)
		assert.Empty(t, row.output)
	})

	t.Run("unencodable payload is unprocessable", func(t *testing.T) {
		span := createTestSpan(uuid.New(), nil, "llm", time.Now().UTC())
		span.Output = math.Inf(1)

		_, err := newSpanRow(projectID, span)
		assert.True(t, apperrors.IsUnprocessable(err))
	})
}

func TestStoredSpan_ToDomain(t *testing.T) {
	t.Run("decodes payloads", func(t *testing.T) {
		stored := storedSpan{
			SpanID:     uuid.New(),
			TraceID:    uuid.New(),
			Version:    domain.DefaultVersion,
			Name:       "search",
			SpanType:   "PIPELINE",
			Attributes: `{"lmnr.span.path":"run"}`,
			Input:      `{"a":1}`,
			Output:     "",
		}

		span, err := stored.toDomain()
		require.NoError(t, err)

		assert.Equal(t, domain.SpanTypePipeline, span.SpanType)
		assert.Equal(t, map[string]any{"a": float64(1)}, span.Input)
		assert.Nil(t, span.Output)
		assert.Equal(t, "run", span.Attributes[domain.AttrSpanPath])
	})

	t.Run("unknown span type decodes as default", func(t *testing.T) {
		stored := storedSpan{SpanType: "TOOL", Attributes: "{}"}
		span, err := stored.toDomain()
		require.NoError(t, err)
		assert.Equal(t, domain.SpanTypeDefault, span.SpanType)
	})

	t.Run("non-object attributes fail the row", func(t *testing.T) {
		stored := storedSpan{SpanType: "LLM", Attributes: `[1,2]`}
		_, err := stored.toDomain()
		assert.True(t, apperrors.IsUnprocessable(err))
	})
}

func TestSpanRepository_CreateAndRead(t *testing.T) {
	db := getTestDB(t)
	if db == nil {
		return
	}
	defer db.Close()

	repo := NewSpanRepository(db, zap.NewNop())
	ctx := context.Background()
	require.NoError(t, repo.EnsureSchema(ctx))

	projectID := uuid.New()
	traceID := uuid.New()
	start := time.Now().UTC().Truncate(time.Millisecond)

	root := createTestSpan(traceID, nil, "root", start)
	child := createTestSpan(traceID, &root.SpanID, "child", start.Add(time.Millisecond))

	require.NoError(t, repo.CreateBatch(ctx, projectID, []*domain.Span{child, root}))

	fetched, err := repo.GetByID(ctx, projectID, child.SpanID)
	require.NoError(t, err)
	assert.Equal(t, child.Name, fetched.Name)
	require.NotNil(t, fetched.ParentSpanID)
	assert.Equal(t, root.SpanID, *fetched.ParentSpanID)

	spans, err := repo.GetByTraceID(ctx, projectID, traceID)
	require.NoError(t, err)
	require.Len(t, spans, 2)
	assert.Equal(t, root.SpanID, spans[0].SpanID)

	_, err = repo.GetByID(ctx, projectID, uuid.New())
	assert.True(t, apperrors.IsNotFound(err))
}

func TestSpanRepository_CreateBatchEmpty(t *testing.T) {
	repo := NewSpanRepository(&database.ClickHouseDB{}, zap.NewNop())
	assert.NoError(t, repo.CreateBatch(context.Background(), uuid.New(), nil))
}
