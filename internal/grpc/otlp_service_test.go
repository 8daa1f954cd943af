package grpc

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
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	apperrors "github.com/agenttrace/spanengine/internal/pkg/errors"
	"github.com/agenttrace/spanengine/internal/service"
	"github.com/agenttrace/spanengine/internal/testutil"
)

var projectID = uuid.MustParse("11111111-2222-3333-4444-555555555555")

func newTestService(sink *testutil.MockSpanSink) *OTLPTraceService {
	logger := zap.NewNop()
	return NewOTLPTraceService(service.NewOTLPReceiver(sink, logger), logger)
}

func withProject(value string) context.Context {
	return metadata.NewIncomingContext(context.Background(), metadata.Pairs("x-project-id", value))
}

func testRequest() *coltracepb.ExportTraceServiceRequest {
	return &coltracepb.ExportTraceServiceRequest{
		ResourceSpans: testutil.NewExportRequest(testutil.NewOTelSpan("step")),
	}
}

func TestOTLPTraceService_Export(t *testing.T) {
	t.Run("accepted", func(t *testing.T) {
		sink := new(testutil.MockSpanSink)
		sink.On("SubmitSpan", mock.Anything, projectID, mock.Anything).Return(nil)

		resp, err := newTestService(sink).Export(withProject(projectID.String()), testRequest())

		require.NoError(t, err)
		assert.Nil(t, resp.PartialSuccess)
		sink.AssertExpectations(t)
	})

	t.Run("rejected span reported as partial success", func(t *testing.T) {
		sink := new(testutil.MockSpanSink)
		sink.On("SubmitSpan", mock.Anything, projectID, mock.Anything).Return(apperrors.Unprocessable("bad"))

		resp, err := newTestService(sink).Export(withProject(projectID.String()), testRequest())

		require.NoError(t, err)
		require.NotNil(t, resp.PartialSuccess)
		assert.Equal(t, int64(1), resp.PartialSuccess.RejectedSpans)
	})

	t.Run("storage outage maps to unavailable", func(t *testing.T) {
		sink := new(testutil.MockSpanSink)
		sink.On("SubmitSpan", mock.Anything, projectID, mock.Anything).Return(errors.New("dial tcp: refused"))

		_, err := newTestService(sink).Export(withProject(projectID.String()), testRequest())

		assert.Equal(t, codes.Unavailable, status.Code(err))
	})

	tests := []struct {
		name string
		ctx  context.Context
		code codes.Code
	}{
		{"no metadata", context.Background(), codes.Unauthenticated},
		{"no project key", metadata.NewIncomingContext(context.Background(), metadata.Pairs("other", "x")), codes.Unauthenticated},
		{"malformed project", withProject("not-a-uuid"), codes.InvalidArgument},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sink := new(testutil.MockSpanSink)

			_, err := newTestService(sink).Export(tt.ctx, testRequest())

			assert.Equal(t, tt.code, status.Code(err))
			sink.AssertNotCalled(t, "SubmitSpan", mock.Anything, mock.Anything, mock.Anything)
		})
	}

	t.Run("nil request", func(t *testing.T) {
		_, err := newTestService(new(testutil.MockSpanSink)).Export(withProject(projectID.String()), nil)
		assert.Equal(t, codes.InvalidArgument, status.Code(err))
	})
}
