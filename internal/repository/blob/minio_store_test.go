package blob

import (
	"context"
	"errors"
	"io"
	"testing"

	"github.com/google/uuid"
	"github.com/minio/minio-go/v7"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	apperrors "github.com/agenttrace/spanengine/internal/pkg/errors"
)

type mockObjectClient struct {
	mock.Mock
}

func (m *mockObjectClient) PutObject(ctx context.Context, bucketName, objectName string, reader io.Reader, objectSize int64, opts minio.PutObjectOptions) (minio.UploadInfo, error) {
	body, _ := io.ReadAll(reader)
	args := m.Called(bucketName, objectName, body, objectSize, opts.ContentType)
	return minio.UploadInfo{}, args.Error(0)
}

func (m *mockObjectClient) GetObject(ctx context.Context, bucketName, objectName string, opts minio.GetObjectOptions) (*minio.Object, error) {
	args := m.Called(bucketName, objectName)
	obj, _ := args.Get(0).(*minio.Object)
	return obj, args.Error(1)
}

func (m *mockObjectClient) StatObject(ctx context.Context, bucketName, objectName string, opts minio.StatObjectOptions) (minio.ObjectInfo, error) {
	args := m.Called(bucketName, objectName)
	info, _ := args.Get(0).(minio.ObjectInfo)
	return info, args.Error(1)
}

func TestStore_Store(t *testing.T) {
	projectID := uuid.MustParse("3f1c2a9e-6b7d-4e8f-9a0b-1c2d3e4f5a6b")
	data := []byte{0x89, 'P', 'N', 'G'}

	t.Run("uploads under project prefix", func(t *testing.T) {
		client := new(mockObjectClient)
		client.On("PutObject", "span-content", projectID.String()+"/abc.png", data, int64(4), "image/png").Return(nil)

		store := NewStore(client, "span-content", zap.NewNop())
		err := store.Store(context.Background(), projectID, "abc.png", data, "image/png")

		require.NoError(t, err)
		client.AssertExpectations(t)
	})

	t.Run("defaults content type", func(t *testing.T) {
		client := new(mockObjectClient)
		client.On("PutObject", "b", mock.Anything, data, int64(4), "application/octet-stream").Return(nil)

		store := NewStore(client, "b", zap.NewNop())
		require.NoError(t, store.Store(context.Background(), projectID, "k", data, ""))
	})

	t.Run("wraps upload errors", func(t *testing.T) {
		client := new(mockObjectClient)
		client.On("PutObject", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).
			Return(errors.New("connection reset"))

		store := NewStore(client, "b", zap.NewNop())
		err := store.Store(context.Background(), projectID, "k", data, "image/png")

		assert.ErrorContains(t, err, "connection reset")
	})
}

func TestStore_Fetch(t *testing.T) {
	projectID := uuid.New()

	t.Run("missing object is not found", func(t *testing.T) {
		client := new(mockObjectClient)
		client.On("StatObject", "b", ObjectName(projectID, "k")).
			Return(minio.ObjectInfo{}, minio.ErrorResponse{Code: "NoSuchKey"})

		store := NewStore(client, "b", zap.NewNop())
		_, _, err := store.Fetch(context.Background(), projectID, "k")

		assert.True(t, apperrors.IsNotFound(err))
		client.AssertNotCalled(t, "GetObject", mock.Anything, mock.Anything)
	})

	t.Run("other stat errors are wrapped", func(t *testing.T) {
		client := new(mockObjectClient)
		client.On("StatObject", "b", mock.Anything).Return(minio.ObjectInfo{}, errors.New("timeout"))

		store := NewStore(client, "b", zap.NewNop())
		_, _, err := store.Fetch(context.Background(), projectID, "k")

		assert.ErrorContains(t, err, "timeout")
		assert.False(t, apperrors.IsNotFound(err))
	})
}

func TestObjectName(t *testing.T) {
	projectID := uuid.MustParse("3f1c2a9e-6b7d-4e8f-9a0b-1c2d3e4f5a6b")
	assert.Equal(t, "3f1c2a9e-6b7d-4e8f-9a0b-1c2d3e4f5a6b/abc.png", ObjectName(projectID, "abc.png"))
}
