//go:generate mockgen -source ./server.go -destination=./mocks/server.go -package=mock_server
package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"gitlab.ozon.dev/pupkingeorgij/buyer-orders/internal/orders"
	"gitlab.ozon.dev/pupkingeorgij/buyer-orders/internal/respcache"
)

// OrderSource returns one buyer's orders as a raw JSON array. token is the
// caller's bearer token without the scheme; sources that do not need it
// ignore it.
type OrderSource interface {
	FetchBuyerOrders(ctx context.Context, token, buyerID string) (json.RawMessage, error)
}

type Config struct {
	// MemoryTTL overrides the memory tier TTL for order lookups when positive.
	MemoryTTL      time.Duration
	RateLimitRPS   float64
	RateLimitBurst int
}

type Server struct {
	source     OrderSource
	cache      *respcache.Layered
	classifier *orders.Classifier
	limiter    *RateLimiter
	accessLog  *AccessLog
	logger     *zap.Logger
	memoryTTL  time.Duration
	server     *http.Server
}

func New(source OrderSource, cache *respcache.Layered, classifier *orders.Classifier, cfg Config, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	if classifier == nil {
		classifier = orders.NewClassifier(orders.WithLogger(logger))
	}
	if cache == nil {
		cache = respcache.NewLayered(respcache.NewMemoryTier(respcache.DefaultMemoryTTL), nil, logger)
	}
	rps, burst := cfg.RateLimitRPS, cfg.RateLimitBurst
	if rps <= 0 {
		rps = 20
	}
	if burst <= 0 {
		burst = 40
	}
	return &Server{
		source:     source,
		cache:      cache,
		classifier: classifier,
		limiter:    NewRateLimiter(rps, burst, logger),
		accessLog:  NewAccessLog(2, 20, 500*time.Millisecond, logger.Named("access")),
		logger:     logger,
		memoryTTL:  cfg.MemoryTTL,
	}
}

func (s *Server) Run(ctx context.Context, port string) error {
	s.server = &http.Server{
		Addr:         ":" + port,
		Handler:      s.Router(),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	s.accessLog.Start(ctx)

	s.logger.Info("http server starting", zap.String("port", port))
	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down http server")

	if s.server != nil {
		if err := s.server.Shutdown(ctx); err != nil {
			return err
		}
	}

	s.accessLog.Shutdown(ctx)
	s.logger.Info("http server stopped")
	return nil
}

func (s *Server) Router() http.Handler {
	router := mux.NewRouter()
	router.Use(s.requestIDMiddleware, s.accessLogMiddleware)

	router.HandleFunc("/healthz", s.handleHealth).Methods(http.MethodGet)
	router.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)

	buyers := router.PathPrefix("/buyers").Subrouter()
	buyers.Use(s.limiter.Middleware)
	buyers.HandleFunc("/{buyerID}/orders", s.handleBuyerOrders).Methods(http.MethodGet)
	buyers.HandleFunc("/{buyerID}/orders/counts", s.handleOrderCounts).Methods(http.MethodGet)

	return router
}
