// internal/api/server.go
package api

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/rovshanmuradov/launchpad/internal/metrics"
	"github.com/rovshanmuradov/launchpad/internal/protocol"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// NewRouter wires every route. collector may be nil, in which case neither
// /metrics nor request instrumentation is mounted.
func NewRouter(proto *protocol.Protocol, collector *metrics.Collector, logger *zap.Logger) chi.Router {
	handlers := NewHandlers(proto, logger)

	r := chi.NewMux()
	r.Use(requestID, middleware.Recoverer)
	if collector != nil {
		r.Use(collector.Middleware)
		r.Method(http.MethodGet, "/metrics", collector.Handler())
	}

	r.Get("/health", handlers.Health)

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/config", handlers.Config)

		r.Route("/tokens", func(r chi.Router) {
			r.With(handlers.requireSignature).Post("/", handlers.CreateToken)

			r.Route("/{index}", func(r chi.Router) {
				r.Get("/", handlers.GetToken)
				r.Get("/price", handlers.Price)
				r.Get("/quote", handlers.Quote)

				r.Group(func(r chi.Router) {
					r.Use(handlers.requireSignature)
					r.Post("/buy", handlers.Buy)
					r.Post("/sell", handlers.Sell)
					r.Post("/migrate", handlers.Migrate)
					r.Post("/pause", handlers.Pause)
					r.Post("/unpause", handlers.Unpause)
				})
			})
		})

		r.Route("/accounts/{address}", func(r chi.Router) {
			r.Get("/", handlers.Balance)
			r.Get("/tokens/{index}", handlers.TokenBalance)
		})

		r.Route("/admin", func(r chi.Router) {
			r.Use(handlers.requireSignature)
			r.Post("/pool", handlers.SetPool)
			r.Post("/tax", handlers.SetTax)
			r.Post("/fees", handlers.SetFees)
			r.Post("/transfer", handlers.TransferAdmin)
			r.Post("/deposit", handlers.Deposit)
		})
	})

	return r
}

// requestID tags each request with a UUID, reusing an incoming X-Request-ID.
func requestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(middleware.RequestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set(middleware.RequestIDHeader, id)
		ctx := context.WithValue(r.Context(), middleware.RequestIDKey, id)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// Server runs the API until its context is cancelled.
type Server struct {
	addr    string
	handler http.Handler
	logger  *zap.Logger
}

// NewServer creates an API server listening on addr.
func NewServer(addr string, handler http.Handler, logger *zap.Logger) *Server {
	return &Server{addr: addr, handler: handler, logger: logger.Named("http")}
}

// Serve blocks until ctx is cancelled, then shuts down gracefully.
func (s *Server) Serve(ctx context.Context) error {
	eg, egctx := errgroup.WithContext(ctx)

	srv := &http.Server{
		Addr:    s.addr,
		Handler: s.handler,
		BaseContext: func(_ net.Listener) context.Context {
			return egctx
		},
		ReadHeaderTimeout: 10 * time.Second,
	}

	eg.Go(func() error {
		s.logger.Info("HTTP server listening", zap.String("addr", s.addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})

	eg.Go(func() error {
		<-egctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		s.logger.Info("Shutting down HTTP server")
		return srv.Shutdown(shutdownCtx)
	})

	return eg.Wait()
}
