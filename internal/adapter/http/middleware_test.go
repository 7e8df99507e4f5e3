package http

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stocktrail/stocktrail/internal/service/token"
)

func TestActorMiddlewareFromBearerToken(t *testing.T) {
	tokens := token.NewService("test-secret", time.Hour)
	signed, err := tokens.Issue("alice")
	require.NoError(t, err)

	var seen string
	handler := actorMiddleware(tokens)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = actorFrom(r)
	}))

	req := httptest.NewRequest("POST", "/api/v1/entities", nil)
	req.Header.Set("Authorization", "Bearer "+signed)
	handler.ServeHTTP(httptest.NewRecorder(), req)

	assert.Equal(t, "alice", seen)
}

func TestActorMiddlewareFallsBackToHeader(t *testing.T) {
	tokens := token.NewService("test-secret", time.Hour)

	var seen string
	handler := actorMiddleware(tokens)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = actorFrom(r)
	}))

	req := httptest.NewRequest("POST", "/api/v1/entities", nil)
	req.Header.Set("X-User-ID", "bob")
	handler.ServeHTTP(httptest.NewRecorder(), req)

	assert.Equal(t, "bob", seen)
}

func TestActorMiddlewareIgnoresInvalidToken(t *testing.T) {
	tokens := token.NewService("test-secret", time.Hour)

	var seen string
	handler := actorMiddleware(tokens)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = actorFrom(r)
	}))

	req := httptest.NewRequest("POST", "/api/v1/entities", nil)
	req.Header.Set("Authorization", "Bearer garbage")
	handler.ServeHTTP(httptest.NewRecorder(), req)

	assert.Empty(t, seen)
}

// stubLimiter implements ratelimit.RateLimitService for middleware tests.
type stubLimiter struct {
	allow bool
	keys  []string
}

func (s *stubLimiter) Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	s.keys = append(s.keys, key)
	return s.allow, nil
}

func TestRateLimitMiddlewareBlocksMutations(t *testing.T) {
	limiter := &stubLimiter{allow: false}
	handler := rateLimitMiddleware(limiter, 10, time.Minute)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest("POST", "/api/v1/entities", nil)
	req = req.WithContext(context.WithValue(req.Context(), actorKey, "alice"))

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, []string{"ratelimit:alice"}, limiter.keys)
}

func TestRateLimitMiddlewareSkipsReads(t *testing.T) {
	limiter := &stubLimiter{allow: false}
	handler := rateLimitMiddleware(limiter, 10, time.Minute)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest("GET", "/api/v1/entities", nil)
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, limiter.keys)
}

func TestRecoveryMiddleware(t *testing.T) {
	log := logrus.New()
	log.SetOutput(io.Discard)

	handler := recoveryMiddleware(log)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	}))

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest("GET", "/health", nil))

	assert.Equal(t, http.StatusInternalServerError, w.Code)
}
