package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/pbaille/seen/internal/seen"
)

// Options tunes the HTTP API
type Options struct {
	DefaultPageSize int
	MaxPageSize     int
	ShutdownTimeout time.Duration
}

// Server handles HTTP requests for the seen registry API
type Server struct {
	registry *seen.Registry
	log      zerolog.Logger
	opts     Options
}

// New creates a new API server
func New(reg *seen.Registry, log zerolog.Logger, opts Options) *Server {
	if opts.DefaultPageSize < 1 {
		opts.DefaultPageSize = 50
	}
	if opts.ShutdownTimeout <= 0 {
		opts.ShutdownTimeout = 10 * time.Second
	}
	return &Server{registry: reg, log: log, opts: opts}
}

// Handler builds the router with all API routes
func (s *Server) Handler() http.Handler {
	router := mux.NewRouter()
	router.Use(requestContext(s.log), instrument, recovery)
	// unmatched requests bypass router middleware
	router.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, r, http.StatusNotFound, http.StatusText(http.StatusNotFound))
	})
	router.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, r, http.StatusMethodNotAllowed, http.StatusText(http.StatusMethodNotAllowed))
	})

	api := router.PathPrefix("/api").Subrouter()

	// Seen entries
	for _, p := range []string{"/seen", "/seen/"} {
		api.HandleFunc(p, s.searchSeen).Methods(http.MethodGet)
		api.HandleFunc(p, s.createSeen).Methods(http.MethodPost)
		api.HandleFunc(p, s.deleteSeen).Methods(http.MethodDelete)
	}
	api.HandleFunc("/seen/{id:[0-9]+}", s.getSeenEntry).Methods(http.MethodGet)
	api.HandleFunc("/seen/{id:[0-9]+}", s.deleteSeenEntry).Methods(http.MethodDelete)

	// Health check
	api.HandleFunc("/health", s.health).Methods(http.MethodGet)

	router.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)

	return withCORS(router)
}

// Run serves the API on addr until ctx is cancelled, then shuts down gracefully
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.Info().Str("addr", addr).Msg("starting server")
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

	s.log.Info().Msg("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.opts.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	return nil
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	n, err := s.registry.Health(r.Context())
	if err != nil {
		zerolog.Ctx(r.Context()).Error().Err(err).Msg("health check failed")
		writeError(w, r, http.StatusServiceUnavailable, "store unavailable")
		return
	}
	writeJSON(w, r, http.StatusOK, map[string]interface{}{"status": "ok", "entries": n})
}
