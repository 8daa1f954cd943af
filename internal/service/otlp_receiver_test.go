package service

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	coltracepb "go.opentelemetry.io/proto/otlp/collector/trace/v1"
	tracepb "go.opentelemetry.io/proto/otlp/trace/v1"

	"github.com/agenttrace/spanengine/internal/domain"
	apperrors "github.com/agenttrace/spanengine/internal/pkg/errors"
	"github.com/agenttrace/spanengine/internal/testutil"
)

type mockSpanSink struct {
	mock.Mock
}

func (m *mockSpanSink) SubmitSpan(ctx context.Context, projectID uuid.UUID, span *tracepb.Span) error {
	return m.Called(ctx, projectID, span).Error(0)
}

func (m *mockSpanSink) SubmitRun(ctx context.Context, projectID uuid.UUID, run *domain.RunTrace) error {
	return m.Called(ctx, projectID, run).Error(0)
}

func named(name string) any {
	return mock.MatchedBy(func(s *tracepb.Span) bool { return s.GetName() == name })
}

func TestOTLPReceiver_Export(t *testing.T) {
	ctx := context.Background()
	projectID := uuid.New()
	req := &coltracepb.ExportTraceServiceRequest{
		ResourceSpans: testutil.NewExportRequest(
			testutil.NewOTelSpan("a"),
			testutil.NewOTelSpan("b"),
			testutil.NewOTelSpan("c"),
		),
	}

	t.Run("all accepted", func(t *testing.T) {
		sink := new(mockSpanSink)
		sink.On("SubmitSpan", ctx, projectID, mock.Anything).Return(nil).Times(3)

		resp, err := NewOTLPReceiver(sink, zap.NewNop()).Export(ctx, projectID, req)

		require.NoError(t, err)
		assert.Nil(t, resp.PartialSuccess)
		sink.AssertExpectations(t)
	})

	t.Run("unprocessable spans are partial success", func(t *testing.T) {
		sink := new(mockSpanSink)
		sink.On("SubmitSpan", ctx, projectID, named("b")).Return(apperrors.Unprocessable("bad span"))
		sink.On("SubmitSpan", ctx, projectID, mock.Anything).Return(nil)

		resp, err := NewOTLPReceiver(sink, zap.NewNop()).Export(ctx, projectID, req)

		require.NoError(t, err)
		require.NotNil(t, resp.PartialSuccess)
		assert.Equal(t, int64(1), resp.PartialSuccess.RejectedSpans)
		assert.Contains(t, resp.PartialSuccess.ErrorMessage, "bad span")
	})

	t.Run("outage aborts the export", func(t *testing.T) {
		sink := new(mockSpanSink)
		sink.On("SubmitSpan", ctx, projectID, named("a")).Return(errors.New("redis down"))

		_, err := NewOTLPReceiver(sink, zap.NewNop()).Export(ctx, projectID, req)

		require.Error(t, err)
		assert.Equal(t, 503, apperrors.GetStatusCode(err))
		sink.AssertNumberOfCalls(t, "SubmitSpan", 1)
	})

	t.Run("empty request", func(t *testing.T) {
		resp, err := NewOTLPReceiver(new(mockSpanSink), zap.NewNop()).Export(ctx, projectID, &coltracepb.ExportTraceServiceRequest{})
		require.NoError(t, err)
		assert.Nil(t, resp.PartialSuccess)
	})
}
