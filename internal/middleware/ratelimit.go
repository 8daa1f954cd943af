package middleware

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// ProjectRateLimit limits requests per project with a Redis sliding window.
// It must run after RequireProject. When Redis is unreachable requests are
// allowed through.
type ProjectRateLimit struct {
	redis  redis.Cmdable
	max    int
	window time.Duration
	now    func() time.Time
}

// NewProjectRateLimit creates a limiter allowing max requests per window
func NewProjectRateLimit(client redis.Cmdable, max int, window time.Duration) *ProjectRateLimit {
	return &ProjectRateLimit{redis: client, max: max, window: window, now: time.Now}
}

// Handler returns the rate limit handler. A non-positive max disables limiting.
func (m *ProjectRateLimit) Handler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		projectID, ok := GetProjectID(c)
		if m.max <= 0 || !ok {
			return c.Next()
		}

		count, err := m.hit(c.UserContext(), projectID, GetRequestID(c))
		if err != nil {
			return c.Next()
		}

		c.Set("X-RateLimit-Limit", strconv.Itoa(m.max))
		if count > int64(m.max) {
			c.Set("X-RateLimit-Remaining", "0")
			c.Set("Retry-After", strconv.Itoa(int(m.window.Seconds())))
			return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
				"error":   "Too Many Requests",
				"message": "Project rate limit exceeded",
			})
		}

		c.Set("X-RateLimit-Remaining", strconv.FormatInt(int64(m.max)-count, 10))
		return c.Next()
	}
}

// hit records one request and returns the count in the current window
func (m *ProjectRateLimit) hit(ctx context.Context, projectID uuid.UUID, requestID string) (int64, error) {
	key := fmt.Sprintf("ratelimit:project:%s", projectID)
	now := m.now()
	windowStart := now.Add(-m.window).UnixNano()

	pipe := m.redis.TxPipeline()
	pipe.ZRemRangeByScore(ctx, key, "-inf", strconv.FormatInt(windowStart, 10))
	pipe.ZAdd(ctx, key, redis.Z{
		Score:  float64(now.UnixNano()),
		Member: fmt.Sprintf("%d:%s", now.UnixNano(), requestID),
	})
	card := pipe.ZCard(ctx, key)
	pipe.Expire(ctx, key, 2*m.window)

	if _, err := pipe.Exec(ctx); err != nil {
		return 0, err
	}
	return card.Val(), nil
}
