// Package server provides the HTTP server for tala.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/ayusman/tala/internal/app"
	"github.com/ayusman/tala/internal/logger"
	"github.com/ayusman/tala/internal/server/api"
	"github.com/ayusman/tala/internal/store"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

const shutdownTimeout = 5 * time.Second

// Config holds the server configuration. Every field is optional; routes
// whose backing component is missing are not registered.
type Config struct {
	StaticDir string
	App       *app.App
	Store     *store.Store
	Registry  *prometheus.Registry
	Logger    *zap.Logger
}

// Server represents the HTTP server for the tala application.
type Server struct {
	config Config
	mux    *http.ServeMux
	hub    *PoseHub
	log    *zap.Logger
	start  time.Time
}

// New creates a new Server with the given configuration.
func New(config Config) *Server {
	s := &Server{
		config: config,
		mux:    http.NewServeMux(),
		log:    config.Logger,
		start:  time.Now(),
	}
	if s.log == nil {
		s.log = logger.Log()
	}
	s.hub = NewPoseHub(s.log)
	s.setupRoutes()
	return s
}

// setupRoutes configures all HTTP routes for the server.
func (s *Server) setupRoutes() {
	s.mux.HandleFunc("/api/health", s.handleHealth)

	var stats api.StatsSource
	if s.config.App != nil {
		stats = s.config.App
		s.mux.Handle("/api/settings", api.NewSettingsHandler(s.config.App))
		s.config.App.OnResult(s.hub.Publish)
		s.mux.Handle("/api/pose", s.hub)
	}

	claps := api.NewClapHandler(s.config.Store, stats)
	s.mux.HandleFunc("/api/claps", claps.List)
	s.mux.HandleFunc("/api/stats", claps.Stats)

	if reg := s.config.Registry; reg != nil {
		s.mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))
	}

	// Serve static files if StaticDir is configured
	if s.config.StaticDir != "" {
		fs := http.FileServer(http.Dir(s.config.StaticDir))
		s.mux.Handle("/", fs)
	}
}

// Hub returns the pose broadcast hub.
func (s *Server) Hub() *PoseHub {
	return s.hub
}

// ServeHTTP implements the http.Handler interface.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

// handleHealth handles GET requests to /api/health.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	response := map[string]any{
		"status":  "ok",
		"uptime":  time.Since(s.start).String(),
		"clients": s.hub.Clients(),
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(response); err != nil {
		http.Error(w, "Failed to encode response", http.StatusInternalServerError)
		return
	}
}

// Serve listens on addr until ctx is cancelled, then shuts down gracefully.
func (s *Server) Serve(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.Info("http server listening", zap.String("addr", addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
