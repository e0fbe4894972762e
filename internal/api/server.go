// Package api exposes the engine over HTTP. Handlers translate JSON
// requests into engine calls and engine errors into status codes; all
// bookkeeping rules live in the engine, not here.
package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"wheel-tracker-go/internal/config"
	"wheel-tracker-go/internal/engine"
)

// Server is the HTTP front of the engine.
type Server struct {
	router *chi.Mux
	server *http.Server
	logger *zap.Logger
	engine *engine.Engine
}

// NewServer builds the router, middleware stack and http.Server.
func NewServer(cfg *config.Config, log *zap.Logger, eng *engine.Engine) *Server {
	s := &Server{
		router: chi.NewRouter(),
		logger: log,
		engine: eng,
	}

	s.setupMiddleware(cfg)
	s.setupRoutes()

	s.server = &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return s
}

func (s *Server) setupMiddleware(cfg *config.Config) {
	s.router.Use(middleware.Recoverer)
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(s.loggingMiddleware)
	s.router.Use(middleware.Timeout(60 * time.Second))

	origins := cfg.API.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	s.router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	if cfg.API.RateLimit > 0 {
		s.router.Use(rateLimitMiddleware(cfg.API.RateLimit, cfg.API.RateLimitBurst))
	}
}

func (s *Server) setupRoutes() {
	s.router.Get("/health", s.handleHealth)

	s.router.Route("/api", func(r chi.Router) {
		r.Route("/accounts", func(r chi.Router) {
			r.Get("/", s.handleListAccounts)
			r.Post("/", s.handleCreateAccount)
			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", s.handleGetAccount)
				r.Delete("/", s.handleDeleteAccount)
				r.Get("/deposits", s.handleListDeposits)
				r.Post("/deposits", s.handleAddDeposit)
				r.Get("/withdrawals", s.handleListWithdrawals)
				r.Post("/withdrawals", s.handleAddWithdrawal)
			})
		})

		r.Route("/trades", func(r chi.Router) {
			r.Get("/", s.handleListTrades)
			r.Post("/", s.handleOpenTrade)
			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", s.handleGetTrade)
				r.Patch("/", s.handleEditTrade)
				r.Delete("/", s.handleDeleteTrade)
				r.Post("/close", s.handleCloseTrade)
				r.Get("/chain", s.handleGetTradeChain)
			})
		})

		r.Route("/stock-positions", func(r chi.Router) {
			r.Get("/", s.handleListStockPositions)
			r.Post("/", s.handleCreateStockPosition)
			r.Get("/available", s.handleAvailableStockPositions)
			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", s.handleGetStockPosition)
				r.Patch("/", s.handleUpdateStockPosition)
				r.Delete("/", s.handleDeleteStockPosition)
			})
		})
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// Start blocks serving HTTP until Shutdown or a listener error.
func (s *Server) Start() error {
	s.logger.Info("Starting HTTP server", zap.String("address", s.server.Addr))
	return s.server.ListenAndServe()
}

// Shutdown gracefully drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("Shutting down HTTP server")
	return s.server.Shutdown(ctx)
}

func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		s.logger.Info("HTTP request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Int("bytes", ww.BytesWritten()),
			zap.Duration("duration", time.Since(start)),
			zap.String("request_id", middleware.GetReqID(r.Context())),
		)
	})
}
