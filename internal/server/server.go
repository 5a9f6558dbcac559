package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// Server hosts the gateway endpoints.
type Server struct {
	Router *chi.Mux
	Port   int
	logger *slog.Logger
	httpd  *http.Server
}

// New builds the router with the standard middleware stack and mounts the
// gateway routes. The request timeout must exceed the dispatch timeout so
// streams are not cut off mid-relay.
func New(port int, requestTimeout time.Duration, gw *Gateway, logger *slog.Logger) *Server {
	r := chi.NewRouter()

	r.Use(RequestIDMiddleware)
	r.Use(LoggingMiddleware(logger))
	r.Use(TimeoutMiddleware(requestTimeout))
	r.Use(middleware.Recoverer)
	r.Use(func(next http.Handler) http.Handler {
		return otelhttp.NewHandler(next, "helmgate")
	})

	// Both framings share one handler; detection picks the codec.
	r.Post("/v1/chat/completions", gw.HandleCompletion)
	r.Post("/chat/completions", gw.HandleCompletion)
	r.Post("/v1/completions", gw.HandleCompletion)
	r.Post("/v1/messages", gw.HandleCompletion)

	r.Get("/v1/models", gw.HandleModels)
	r.Get("/metrics", gw.HandleMetrics)
	r.Get("/healthz", gw.HandleHealth)

	return &Server{
		Router: r,
		Port:   port,
		logger: logger,
	}
}

// Start blocks serving HTTP until Shutdown or a listener error.
func (s *Server) Start() error {
	s.httpd = &http.Server{
		Addr:    fmt.Sprintf(":%d", s.Port),
		Handler: s.Router,
	}
	s.logger.Info("starting server", slog.Int("port", s.Port))
	return s.httpd.ListenAndServe()
}

// Shutdown drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpd == nil {
		return nil
	}
	return s.httpd.Shutdown(ctx)
}
