package http

import (
	"context"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"

	"github.com/stocktrail/stocktrail/internal/service/ratelimit"
	"github.com/stocktrail/stocktrail/internal/service/token"
)

// Server represents the HTTP server
type Server struct {
	addr   string
	logger *logrus.Logger
	server *http.Server
}

// ServerConfig represents server configuration
type ServerConfig struct {
	Port              string
	ReadTimeout       time.Duration
	WriteTimeout      time.Duration
	IdleTimeout       time.Duration
	RateLimitEnabled  bool
	RateLimitRequests int
	RateLimitWindow   time.Duration
}

// NewServer creates a new HTTP server
func NewServer(
	config ServerConfig,
	logger *logrus.Logger,
	ledgerService LedgerService,
	tokens *token.Service,
	limiter ratelimit.RateLimitService,
) *Server {
	entityHandler := NewEntityHandler(ledgerService)
	shipmentHandler := NewShipmentHandler(ledgerService)
	labelHandler := NewLabelHandler(ledgerService)
	authHandler := NewAuthHandler(tokens)

	router := mux.NewRouter()

	entityHandler.RegisterRoutes(router)
	shipmentHandler.RegisterRoutes(router)
	labelHandler.RegisterRoutes(router)
	authHandler.RegisterRoutes(router)

	router.Use(loggingMiddleware(logger))
	router.Use(corsMiddleware)
	router.Use(recoveryMiddleware(logger))
	router.Use(actorMiddleware(tokens))
	if config.RateLimitEnabled {
		router.Use(rateLimitMiddleware(limiter, config.RateLimitRequests, config.RateLimitWindow))
	}

	router.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"ok"}`))
	}).Methods("GET")

	return &Server{
		addr:   ":" + config.Port,
		logger: logger,
		server: &http.Server{
			Addr:         ":" + config.Port,
			Handler:      router,
			ReadTimeout:  config.ReadTimeout,
			WriteTimeout: config.WriteTimeout,
			IdleTimeout:  config.IdleTimeout,
		},
	}
}

// Start starts the HTTP server
func (s *Server) Start() error {
	s.logger.WithField("addr", s.addr).Info("Starting HTTP server")
	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the HTTP server
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("Shutting down HTTP server")
	return s.server.Shutdown(ctx)
}
