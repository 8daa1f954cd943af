package service

import (
	"context"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/agenttrace/spanengine/internal/domain"
	"github.com/agenttrace/spanengine/internal/pkg/circuitbreaker"
)

// ContentURLPrefix is the route stored content is served from
const ContentURLPrefix = "/v1/content/"

// ErrUnsupportedContent is returned for fragments the resolver cannot interpret
var ErrUnsupportedContent = errors.New("unsupported content fragment")

// ContentResolver turns an instrumentation content fragment into a stored content part
type ContentResolver interface {
	Resolve(ctx context.Context, projectID uuid.UUID, part domain.InstrumentationContentPart) (domain.ContentPart, error)
}

// BlobStore persists binary content by key
type BlobStore interface {
	Store(ctx context.Context, projectID uuid.UUID, key string, data []byte, mediaType string) error
}

// ReferenceCache remembers which content hashes are already stored
type ReferenceCache interface {
	Get(ctx context.Context, key string) (string, bool)
	Set(ctx context.Context, key, value string) error
}

// BlobContentResolver moves inline (data URL) images into blob storage and
// replaces them with references. Remote URLs and text pass through.
type BlobContentResolver struct {
	store   BlobStore
	cache   ReferenceCache
	breaker *circuitbreaker.CircuitBreaker
	logger  *zap.Logger
}

// NewBlobContentResolver creates a resolver. store and cache may be nil:
// without a store inline images are kept inline as image parts.
func NewBlobContentResolver(store BlobStore, cache ReferenceCache, breaker *circuitbreaker.CircuitBreaker, logger *zap.Logger) *BlobContentResolver {
	if breaker == nil {
		breaker = circuitbreaker.New(circuitbreaker.DefaultConfig("blob-store"))
	}
	return &BlobContentResolver{
		store:   store,
		cache:   cache,
		breaker: breaker,
		logger:  logger.Named("content"),
	}
}

// Resolve implements ContentResolver
func (r *BlobContentResolver) Resolve(ctx context.Context, projectID uuid.UUID, part domain.InstrumentationContentPart) (domain.ContentPart, error) {
	if err := ctx.Err(); err != nil {
		return domain.ContentPart{}, err
	}

	switch part.Type {
	case domain.ContentPartTypeText:
		if part.Text == nil {
			return domain.ContentPart{}, ErrUnsupportedContent
		}
		return domain.TextPart(*part.Text), nil
	case domain.ContentPartTypeImageURL:
		if part.ImageURL == nil {
			return domain.ContentPart{}, ErrUnsupportedContent
		}
		if !strings.HasPrefix(part.ImageURL.URL, "data:") {
			return domain.ImageURLPart(part.ImageURL.URL, part.ImageURL.Detail), nil
		}
		return r.resolveDataURL(ctx, projectID, part.ImageURL)
	default:
		return domain.ContentPart{}, fmt.Errorf("%w: type %q", ErrUnsupportedContent, part.Type)
	}
}

func (r *BlobContentResolver) resolveDataURL(ctx context.Context, projectID uuid.UUID, img *domain.InstrumentationImageURL) (domain.ContentPart, error) {
	mediaType, payload, err := parseDataURL(img.URL)
	if err != nil {
		return domain.ContentPart{}, err
	}

	if r.store == nil {
		return domain.ContentPart{
			Type:      domain.ContentPartTypeImage,
			MediaType: mediaType,
			Data:      payload,
		}, nil
	}

	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return domain.ContentPart{}, fmt.Errorf("invalid base64 image payload: %w", err)
	}

	sum := sha256.Sum256(data)
	key := hex.EncodeToString(sum[:]) + extensionFor(mediaType)
	cacheKey := projectID.String() + ":" + key

	if r.cache != nil {
		if ref, ok := r.cache.Get(ctx, cacheKey); ok {
			return domain.ImageURLPart(ref, img.Detail), nil
		}
	}

	err = r.breaker.Execute(ctx, func() error {
		return r.store.Store(ctx, projectID, key, data, mediaType)
	})
	if err != nil {
		return domain.ContentPart{}, fmt.Errorf("failed to store image content: %w", err)
	}

	ref := ContentURLPrefix + key
	if r.cache != nil {
		if err := r.cache.Set(ctx, cacheKey, ref); err != nil {
			r.logger.Debug("failed to cache content reference", zap.String("key", key), zap.Error(err))
		}
	}
	return domain.ImageURLPart(ref, img.Detail), nil
}

// parseDataURL splits data:<media type>;base64,<payload>
func parseDataURL(url string) (mediaType, payload string, err error) {
	header, payload, ok := strings.Cut(strings.TrimPrefix(url, "data:"), ",")
	if !ok {
		return "", "", fmt.Errorf("%w: malformed data url", ErrUnsupportedContent)
	}

	mediaType, encoding, _ := strings.Cut(header, ";")
	if encoding != "base64" {
		return "", "", fmt.Errorf("%w: data url is not base64", ErrUnsupportedContent)
	}
	if mediaType == "" {
		mediaType = "application/octet-stream"
	}
	return mediaType, payload, nil
}

func extensionFor(mediaType string) string {
	_, sub, ok := strings.Cut(mediaType, "/")
	if !ok || sub == "" {
		return ""
	}
	switch sub {
	case "jpeg":
		return ".jpg"
	case "svg+xml":
		return ".svg"
	case "octet-stream":
		return ""
	}
	return "." + sub
}
