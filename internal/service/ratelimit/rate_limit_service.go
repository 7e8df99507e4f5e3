package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/sirupsen/logrus"
)

// RateLimitService limits how many requests one caller may make per window.
type RateLimitService interface {
	// Allow counts the request against the key and reports whether it is
	// within the limit. Counting and checking happen in one round trip so
	// concurrent requests cannot all slip under the limit together.
	Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
}

// rateLimitService implements RateLimitService with Redis counters.
type rateLimitService struct {
	redisClient *redis.Client
	logger      *logrus.Logger
}

// Config configures the rate limiter.
type Config struct {
	Enabled  bool
	RedisURL string
	Timeout  time.Duration
}

// NewRateLimitService creates a rate limiter, or a no-op one when disabled.
func NewRateLimitService(cfg Config, logger *logrus.Logger) (RateLimitService, error) {
	if !cfg.Enabled {
		logger.Info("Rate limiting disabled")
		return &noopRateLimitService{}, nil
	}

	opt, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}

	redisClient := redis.NewClient(opt)

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Timeout)
	defer cancel()

	if err := redisClient.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	logger.Info("Rate limiting service initialized")

	return &rateLimitService{
		redisClient: redisClient,
		logger:      logger,
	}, nil
}

// NewWithClient wraps an existing Redis client; used by tests.
func NewWithClient(client *redis.Client, logger *logrus.Logger) RateLimitService {
	return &rateLimitService{redisClient: client, logger: logger}
}

// Allow increments the key's counter and checks the post-increment count
// against the limit. INCR returns the new count atomically, so two
// concurrent requests racing on the same key see distinct counts.
func (s *rateLimitService) Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	pipeline := s.redisClient.Pipeline()
	incr := pipeline.Incr(ctx, key)
	pipeline.Expire(ctx, key, window)

	if _, err := pipeline.Exec(ctx); err != nil {
		s.logger.WithError(err).Error("Failed to count rate limit request")
		return false, fmt.Errorf("failed to check rate limit: %w", err)
	}

	count := incr.Val()
	allowed := count <= int64(limit)

	s.logger.WithFields(logrus.Fields{
		"key":     key,
		"count":   count,
		"limit":   limit,
		"allowed": allowed,
	}).Debug("Rate limit check")

	return allowed, nil
}

// noopRateLimitService is used when rate limiting is disabled.
type noopRateLimitService struct{}

func (n *noopRateLimitService) Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	return true, nil
}
