// Package server exposes agents, teams, run history, memories and the
// shopping list over a small JSON HTTP API.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/Yaaesthetic/agno/agent"
	"github.com/Yaaesthetic/agno/logging"
	"github.com/Yaaesthetic/agno/memory"
	"github.com/Yaaesthetic/agno/metrics"
	"github.com/Yaaesthetic/agno/runner"
	"github.com/Yaaesthetic/agno/state"
	"github.com/Yaaesthetic/agno/storage"
	"github.com/Yaaesthetic/agno/tool/shopping"
)

// Options wires the server to its backends. Runner is required; the other
// backends disable their routes when nil.
type Options struct {
	Runner   *runner.Runner
	Storage  storage.Store
	Memory   memory.DB
	Shopping *state.Store[shopping.Product]
	Metrics  *metrics.Metrics
	Logger   logging.Logger

	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
}

// Server is the HTTP API.
type Server struct {
	opts   Options
	router chi.Router
	logger logging.Logger
}

// New builds the router.
func New(opts Options) *Server {
	if opts.Logger == nil {
		opts.Logger = logging.NoOpLogger{}
	}

	if opts.ShutdownTimeout == 0 {
		opts.ShutdownTimeout = 10 * time.Second
	}

	s := &Server{opts: opts, logger: opts.Logger}
	s.router = s.routes()

	return s
}

// Handler returns the root handler.
func (s *Server) Handler() http.Handler { return s.router }

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(s.observe)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Get("/metrics", s.opts.Metrics.Handler().ServeHTTP)

	r.Route("/v1", func(r chi.Router) {
		r.Get("/runnables", s.handleRunnables)
		r.Post("/runs/{name}", s.handleRun)

		r.Route("/sessions/{session_id}", func(r chi.Router) {
			r.Get("/runs", s.handleSessionRuns)
			r.Delete("/runs", s.handleCancel)
			r.Delete("/", s.handleDeleteSession)
		})

		r.Route("/users/{user_id}", func(r chi.Router) {
			r.Get("/sessions", s.handleUserSessions)
			r.Get("/memories", s.handleMemories)
			r.Delete("/memories", s.handleClearMemories)
			r.Get("/sessions/{session_id}/summary", s.handleSummary)
		})

		r.Route("/shopping/{user_id}", func(r chi.Router) {
			r.Get("/", s.handleShoppingUser)
			r.Post("/{session_id}", s.handleShoppingInit)
			r.Get("/{session_id}", s.handleShoppingList)
		})
	})

	return r
}

// ListenAndServe serves on addr until ctx is cancelled, then shuts down
// gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       s.opts.ReadTimeout,
		WriteTimeout:      s.opts.WriteTimeout,
	}

	errCh := make(chan error, 1)

	go func() {
		s.logger.Info("server.listen", "address", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}

		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.opts.ShutdownTimeout)
	defer cancel()

	s.logger.Info("server.shutdown")

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}

	return nil
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

// Flush keeps SSE streaming working through the wrapper.
func (w *statusWriter) Flush() {
	if f, ok := w.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

// observe logs and counts every request by its route pattern.
func (s *Server) observe(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(sw, r)

		route := r.URL.Path
		if rc := chi.RouteContext(r.Context()); rc != nil && rc.RoutePattern() != "" {
			route = rc.RoutePattern()
		}

		d := time.Since(start)
		s.opts.Metrics.ObserveHTTPRequest(r.Method, route, sw.status, d)
		s.logger.Debug("server.request",
			"method", r.Method,
			"route", route,
			"status", sw.status,
			"duration_ms", d.Milliseconds(),
			"request_id", middleware.GetReqID(r.Context()))
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func queryInt(r *http.Request, key string, def int) (int, error) {
	v := r.URL.Query().Get(key)
	if v == "" {
		return def, nil
	}

	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q", key, v)
	}

	return n, nil
}

// statusFor maps run errors to HTTP statuses.
func statusFor(err error) int {
	var ove *agent.OutputValidationError

	switch {
	case errors.Is(err, runner.ErrUnknown):
		return http.StatusNotFound
	case errors.Is(err, agent.ErrEmptyMessage):
		return http.StatusBadRequest
	case errors.As(err, &ove):
		return http.StatusUnprocessableEntity
	case errors.Is(err, context.Canceled):
		return http.StatusConflict
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}
