package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"mqas/internal/api"
	"mqas/internal/config"
	"mqas/internal/logging"
)

// Server exposes a JobService over HTTP.
type Server struct {
	bind   string
	token  string
	logger *slog.Logger
	svc    *api.JobService

	router   chi.Router
	listener net.Listener
	server   *http.Server
}

// Option configures a Server.
type Option func(*Server)

// WithToken requires a bearer token on every /v1 route.
func WithToken(token string) Option {
	return func(s *Server) { s.token = token }
}

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) { s.logger = logger }
}

// New builds a Server for svc that listens on bind once started.
func New(bind string, svc *api.JobService, opts ...Option) (*Server, error) {
	if svc == nil {
		return nil, errors.New("job service is required")
	}
	s := &Server{bind: bind, svc: svc}
	for _, opt := range opts {
		opt(s)
	}
	if err := config.CheckAPIBind(bind, s.token); err != nil {
		return nil, err
	}
	s.logger = logging.NewComponentLogger(s.logger, "api-server")
	s.router = s.routes()
	s.server = &http.Server{
		Handler:           s.router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return s, nil
}

// Handler returns the router, for tests and embedding.
func (s *Server) Handler() http.Handler { return s.router }

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(s.requestLogger)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Route("/v1", func(r chi.Router) {
		r.Use(bearerAuth(s.token))
		r.With(middleware.AllowContentType("application/json")).Post("/jobs", s.handleEnqueue)
		r.Get("/jobs", s.handleList)
		r.Get("/jobs/{id}", s.handleDescribe)
		r.Post("/jobs/{id}/release", s.handleRelease)
		r.Get("/stats", s.handleStats)
	})
	return r
}

// Start listens on the bind address and serves until ctx is done.
func (s *Server) Start(ctx context.Context) error {
	listener, err := net.Listen("tcp", s.bind)
	if err != nil {
		return fmt.Errorf("api listen: %w", err)
	}
	s.listener = listener

	go func() {
		if err := s.server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logging.ErrorWithContext(s.logger, "api server error", "api_server_failed", logging.Error(err))
		}
	}()
	go func() {
		<-ctx.Done()
		s.Shutdown()
	}()

	s.logger.Info("api server listening",
		logging.String(logging.FieldEventType, "api_listening"),
		logging.String("address", listener.Addr().String()),
	)
	return nil
}

// Addr returns the bound address after Start.
func (s *Server) Addr() string {
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// Shutdown stops accepting requests and drains in-flight ones.
func (s *Server) Shutdown() {
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = s.server.Shutdown(shutdownCtx)
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ctx := logging.WithRequestID(r.Context(), middleware.GetReqID(r.Context()))
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r.WithContext(ctx))

		level := slog.LevelDebug
		if ww.Status() >= http.StatusInternalServerError {
			level = slog.LevelWarn
		}
		logging.WithContext(ctx, s.logger).Log(ctx, level, "api request",
			logging.String("method", r.Method),
			logging.String("path", r.URL.Path),
			logging.Int("status", ww.Status()),
			logging.Duration("elapsed", time.Since(start)),
		)
	})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload == nil {
		return
	}
	_ = json.NewEncoder(w).Encode(payload)
}

func errorBody(message string) api.ErrorResponse {
	return api.ErrorResponse{Error: message}
}
