package http

import (
	"context"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/stocktrail/stocktrail/internal/service/ratelimit"
	"github.com/stocktrail/stocktrail/internal/service/token"
	"github.com/stocktrail/stocktrail/pkg/response"
)

type contextKey string

const actorKey contextKey = "actor"

// actorFrom returns the acting principal's id set by actorMiddleware.
func actorFrom(r *http.Request) string {
	actor, _ := r.Context().Value(actorKey).(string)
	return actor
}

// actorMiddleware resolves the actor id from a bearer token, falling back
// to the X-User-ID header for unauthenticated development use. Handlers
// that mutate state reject requests with no actor.
func actorMiddleware(tokens *token.Service) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			actor := ""

			if auth := r.Header.Get("Authorization"); strings.HasPrefix(auth, "Bearer ") {
				if id, err := tokens.Validate(strings.TrimPrefix(auth, "Bearer ")); err == nil {
					actor = id
				}
			}
			if actor == "" {
				actor = r.Header.Get("X-User-ID")
			}

			ctx := context.WithValue(r.Context(), actorKey, actor)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func loggingMiddleware(logger *logrus.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			recorder := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(recorder, r)

			logger.WithFields(logrus.Fields{
				"method":   r.Method,
				"path":     r.URL.Path,
				"remote":   r.RemoteAddr,
				"status":   recorder.status,
				"duration": time.Since(start).String(),
			}).Info("Request handled")
		})
	}
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PATCH, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-User-ID")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func recoveryMiddleware(logger *logrus.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if err := recover(); err != nil {
					logger.WithField("panic", err).Error("Panic recovered")
					http.Error(w, "Internal Server Error", http.StatusInternalServerError)
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}

// rateLimitMiddleware limits mutating requests per actor (or per client IP
// when no actor is present).
func rateLimitMiddleware(limiter ratelimit.RateLimitService, limit int, window time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method == http.MethodGet || r.Method == http.MethodOptions {
				next.ServeHTTP(w, r)
				return
			}

			key := actorFrom(r)
			if key == "" {
				if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
					key = host
				} else {
					key = r.RemoteAddr
				}
			}
			key = "ratelimit:" + key

			allowed, err := limiter.Allow(r.Context(), key, limit, window)
			if err == nil && !allowed {
				response.TooManyRequests(w, "Too many requests")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
