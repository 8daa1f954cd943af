package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/agenttrace/spanengine/internal/domain"
	"github.com/agenttrace/spanengine/internal/pkg/circuitbreaker"
)

type mockBlobStore struct {
	mock.Mock
}

func (m *mockBlobStore) Store(ctx context.Context, projectID uuid.UUID, key string, data []byte, mediaType string) error {
	args := m.Called(ctx, projectID, key, data, mediaType)
	return args.Error(0)
}

type mapCache struct {
	mu sync.Mutex
	m  map[string]string
}

func newMapCache() *mapCache {
	return &mapCache{m: make(map[string]string)}
}

func (c *mapCache) Get(_ context.Context, key string) (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.m[key]
	return v, ok
}

func (c *mapCache) Set(_ context.Context, key, value string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.m[key] = value
	return nil
}

func imagePart(url string) domain.InstrumentationContentPart {
	return domain.InstrumentationContentPart{
		Type:     domain.ContentPartTypeImageURL,
		ImageURL: &domain.InstrumentationImageURL{URL: url},
	}
}

// "hello" base64-encoded
const helloPNG = "data:image/png;base64,aGVsbG8="

func helloKey() string {
	sum := sha256.Sum256([]byte("hello"))
	return hex.EncodeToString(sum[:]) + ".png"
}

func TestBlobContentResolver_Resolve(t *testing.T) {
	ctx := context.Background()
	projectID := uuid.New()

	t.Run("text passes through", func(t *testing.T) {
		r := NewBlobContentResolver(nil, nil, nil, zap.NewNop())
		text := "hi"

		part, err := r.Resolve(ctx, projectID, domain.InstrumentationContentPart{Type: domain.ContentPartTypeText, Text: &text})

		require.NoError(t, err)
		assert.Equal(t, domain.TextPart("hi"), part)
	})

	t.Run("remote url passes through", func(t *testing.T) {
		store := new(mockBlobStore)
		r := NewBlobContentResolver(store, nil, nil, zap.NewNop())
		detail := "high"
		in := imagePart("https://example.com/cat.png")
		in.ImageURL.Detail = &detail

		part, err := r.Resolve(ctx, projectID, in)

		require.NoError(t, err)
		assert.Equal(t, domain.ImageURLPart("https://example.com/cat.png", &detail), part)
		store.AssertNotCalled(t, "Store")
	})

	t.Run("data url is stored and referenced", func(t *testing.T) {
		store := new(mockBlobStore)
		cache := newMapCache()
		store.On("Store", mock.Anything, projectID, helloKey(), []byte("hello"), "image/png").Return(nil).Once()
		r := NewBlobContentResolver(store, cache, nil, zap.NewNop())

		part, err := r.Resolve(ctx, projectID, imagePart(helloPNG))
		require.NoError(t, err)
		assert.Equal(t, domain.ImageURLPart(ContentURLPrefix+helloKey(), nil), part)

		again, err := r.Resolve(ctx, projectID, imagePart(helloPNG))
		require.NoError(t, err)
		assert.Equal(t, part, again)

		store.AssertExpectations(t)
	})

	t.Run("no store keeps image inline", func(t *testing.T) {
		r := NewBlobContentResolver(nil, nil, nil, zap.NewNop())

		part, err := r.Resolve(ctx, projectID, imagePart(helloPNG))

		require.NoError(t, err)
		assert.Equal(t, domain.ContentPart{
			Type:      domain.ContentPartTypeImage,
			MediaType: "image/png",
			Data:      "aGVsbG8=",
		}, part)
	})

	t.Run("invalid base64", func(t *testing.T) {
		r := NewBlobContentResolver(new(mockBlobStore), nil, nil, zap.NewNop())
		_, err := r.Resolve(ctx, projectID, imagePart("data:image/png;base64,!!!"))
		assert.Error(t, err)
	})

	t.Run("data url that is not base64", func(t *testing.T) {
		r := NewBlobContentResolver(new(mockBlobStore), nil, nil, zap.NewNop())
		_, err := r.Resolve(ctx, projectID, imagePart("data:text/plain,hello"))
		assert.ErrorIs(t, err, ErrUnsupportedContent)
	})

	t.Run("unknown fragment type", func(t *testing.T) {
		r := NewBlobContentResolver(nil, nil, nil, zap.NewNop())
		_, err := r.Resolve(ctx, projectID, domain.InstrumentationContentPart{Type: "audio"})
		assert.ErrorIs(t, err, ErrUnsupportedContent)
	})

	t.Run("store failure opens the breaker", func(t *testing.T) {
		store := new(mockBlobStore)
		store.On("Store", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).
			Return(errors.New("bucket unavailable"))
		breaker := circuitbreaker.New(circuitbreaker.Config{Name: "test", MaxFailures: 2})
		r := NewBlobContentResolver(store, nil, breaker, zap.NewNop())

		for i := 0; i < 2; i++ {
			_, err := r.Resolve(ctx, projectID, imagePart(helloPNG))
			require.Error(t, err)
		}

		_, err := r.Resolve(ctx, projectID, imagePart(helloPNG))
		assert.ErrorIs(t, err, circuitbreaker.ErrCircuitOpen)
		store.AssertNumberOfCalls(t, "Store", 2)
	})

	t.Run("cancelled context", func(t *testing.T) {
		cctx, cancel := context.WithCancel(ctx)
		cancel()
		r := NewBlobContentResolver(nil, nil, nil, zap.NewNop())

		_, err := r.Resolve(cctx, projectID, imagePart("https://example.com/a.png"))
		assert.ErrorIs(t, err, context.Canceled)
	})
}

func TestExtensionFor(t *testing.T) {
	tests := map[string]string{
		"image/png":                ".png",
		"image/jpeg":               ".jpg",
		"image/svg+xml":            ".svg",
		"application/octet-stream": "",
		"garbage":                  "",
	}
	for mediaType, ext := range tests {
		t.Run(mediaType, func(t *testing.T) {
			assert.Equal(t, ext, extensionFor(mediaType))
		})
	}
}
