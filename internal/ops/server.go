package ops

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"skirmish/server/internal/arena"
	"skirmish/server/internal/logging"
)

// Server exposes the operational HTTP surface: health, metrics, and the
// WebSocket gateway into the arena.
type Server struct {
	log     *logging.Logger
	stats   func() arena.Stats
	started time.Time
	http    *http.Server
}

// healthResponse is the payload served by /healthz.
type healthResponse struct {
	Status   string `json:"status"`
	UptimeMS int64  `json:"uptime_ms"`
}

// metricsResponse is the payload served by /metrics.
type metricsResponse struct {
	arena.Stats
	UptimeMS int64 `json:"uptime_ms"`
}

// NewServer builds the ops HTTP server. The stats callback is polled on every
// /metrics request; the optional ws handler is mounted at /ws.
func NewServer(addr string, log *logging.Logger, stats func() arena.Stats, ws http.Handler) *Server {
	s := &Server{
		log:     log,
		stats:   stats,
		started: time.Now(),
	}

	router := chi.NewRouter()
	router.Use(middleware.Recoverer)
	router.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodGet, http.MethodOptions},
	}))
	router.Use(logging.HTTPTraceMiddleware(log))

	router.Get("/healthz", s.handleHealth)
	router.Get("/metrics", s.handleMetrics)
	if ws != nil {
		router.Handle("/ws", ws)
	}

	s.http = &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}
	return s
}

// Run serves until the context is cancelled, then drains in-flight requests.
func (s *Server) Run(ctx context.Context) error {
	errs := make(chan error, 1)
	go func() {
		if err := s.http.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errs <- err
		}
		close(errs)
	}()
	s.log.Info("ops listening", logging.String("addr", s.http.Addr))

	select {
	case err := <-errs:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.http.Shutdown(shutdownCtx); err != nil {
		return err
	}
	return <-errs
}

// Handler exposes the router for tests.
func (s *Server) Handler() http.Handler {
	return s.http.Handler
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, healthResponse{
		Status:   "ok",
		UptimeMS: time.Since(s.started).Milliseconds(),
	})
}

func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	var stats arena.Stats
	if s.stats != nil {
		stats = s.stats()
	}
	writeJSON(w, http.StatusOK, metricsResponse{
		Stats:    stats,
		UptimeMS: time.Since(s.started).Milliseconds(),
	})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
