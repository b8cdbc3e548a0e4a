// Package server exposes the privacy scanner, dispatch planner and
// confidence gate over HTTP.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"reflect"
	"sync/atomic"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/raaihank/secureclaw/internal/config"
	"github.com/raaihank/secureclaw/internal/dispatch"
	"github.com/raaihank/secureclaw/internal/logger"
	"github.com/raaihank/secureclaw/internal/metrics"
	"github.com/raaihank/secureclaw/internal/privacy"
	"github.com/raaihank/secureclaw/internal/router"
	"github.com/raaihank/secureclaw/internal/web"
	"github.com/raaihank/secureclaw/internal/websocket"
)

// Version is reported by /info.
var Version = "0.1.0"

// state is everything a request reads. Reloads replace it whole.
type state struct {
	cfg      *config.Config
	detector *privacy.Detector
	planner  *dispatch.Planner
}

// Server represents the routing gateway
type Server struct {
	base    *logger.Logger
	logger  *logger.Logger
	mux     *mux.Router
	server  *http.Server
	wsHub   *websocket.Hub
	ips     *websocket.IPResolver
	limiter *RateLimiter
	current atomic.Pointer[state]
	started time.Time
	cancel  context.CancelFunc
}

// New creates a new gateway around a built router
func New(cfg *config.Config, log *logger.Logger, r *router.Router) (*Server, error) {
	if r == nil {
		return nil, errors.New("router is required")
	}

	st, err := newState(cfg, r, log)
	if err != nil {
		return nil, err
	}
	proxies, err := cfg.Server.TrustedProxyNets()
	if err != nil {
		return nil, err
	}

	s := &Server{
		base:    log,
		logger:  log.WithComponent("server"),
		mux:     mux.NewRouter(),
		wsHub:   websocket.NewHub(cfg.WebSocket, log.Logger),
		ips:     websocket.NewIPResolver(proxies),
		limiter: NewRateLimiter(cfg.RateLimit),
		started: time.Now(),
	}
	s.wsHub.SetIPResolver(s.ips)
	s.current.Store(st)
	if err := s.setupRoutes(cfg); err != nil {
		return nil, err
	}

	s.server = &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      s.mux,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	return s, nil
}

func newState(cfg *config.Config, r *router.Router, log *logger.Logger) (*state, error) {
	detector, err := privacy.NewDetector(cfg.Privacy, log.WithComponent("privacy").Logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create privacy detector: %w", err)
	}
	return &state{
		cfg:      cfg,
		detector: detector,
		planner:  dispatch.NewPlanner(detector, r, log.WithComponent("dispatch").Logger),
	}, nil
}

// setupRoutes configures all HTTP routes
func (s *Server) setupRoutes(cfg *config.Config) error {
	s.mux.Use(s.requestIDMiddleware)
	s.mux.Use(s.instrumentMiddleware)

	s.mux.HandleFunc("/info", s.handleInfo).Methods(http.MethodGet)
	s.mux.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)
	if cfg.WebSocket.Enabled {
		dashboard, err := web.NewDashboard(web.DashboardData{Version: Version, WSPath: cfg.WebSocket.Path})
		if err != nil {
			return fmt.Errorf("failed to render dashboard: %w", err)
		}
		s.mux.HandleFunc(cfg.WebSocket.Path, s.wsHub.HandleWebSocket).Methods(http.MethodGet)
		s.mux.Handle("/dashboard", dashboard).Methods(http.MethodGet)
	}

	api := s.mux.PathPrefix("/api").Subrouter()
	api.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)

	scoped := api.NewRoute().Subrouter()
	scoped.Use(s.rateLimitMiddleware)
	scoped.Use(s.bodyLimitMiddleware)
	scoped.HandleFunc("/privacy", s.handlePrivacy).Methods(http.MethodPost)
	scoped.HandleFunc("/route", s.handleRoute).Methods(http.MethodPost)
	scoped.HandleFunc("/validate", s.handleValidate).Methods(http.MethodPost)
	return nil
}

// Handler returns the HTTP handler serving every route
func (s *Server) Handler() http.Handler {
	return s.mux
}

// Hub returns the WebSocket hub for broadcasting events
func (s *Server) Hub() *websocket.Hub {
	return s.wsHub
}

// Start runs the background workers and serves until Stop is called
func (s *Server) Start() error {
	st := s.current.Load()
	s.logger.Info("Starting SecureClaw gateway",
		zap.Int("port", st.cfg.Server.Port),
		zap.String("embedder", st.planner.Router().EmbedderName()),
		zap.Int("seeds", st.planner.Router().SeedCount()),
		zap.Bool("privacy_enabled", st.detector.Enabled()),
	)

	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	s.startWorkers(ctx)

	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// startWorkers runs the hub and the limiter cleanup until ctx is done. The
// cleanup runs even while limiting is off, since a reload may turn it on.
func (s *Server) startWorkers(ctx context.Context) {
	go s.wsHub.Run(ctx)
	s.limiter.StartCleanupRoutine(ctx)
}

// Stop gracefully stops the HTTP server
func (s *Server) Stop(ctx context.Context) error {
	s.logger.Info("Stopping SecureClaw gateway")
	if s.cancel != nil {
		s.cancel()
	}
	return s.server.Shutdown(ctx)
}

// Reload swaps in a new configuration. Router weights, privacy detectors and
// rate limits take effect immediately; listener and WebSocket settings need a
// restart. The live state is never mutated.
func (s *Server) Reload(cfg *config.Config) error {
	old := s.current.Load()

	err := s.reload(old, cfg)
	if err != nil {
		metrics.ConfigReloads.WithLabelValues("rejected").Inc()
		s.logger.Error("Configuration reload rejected", zap.Error(err))
		s.wsHub.Publish(websocket.EventTypeConfigReload, "", websocket.ConfigReloadEvent{Error: err.Error()})
		return err
	}

	metrics.ConfigReloads.WithLabelValues("applied").Inc()
	s.logger.Info("Configuration reload applied",
		zap.Float64("cloud_threshold", cfg.Router.CloudThreshold),
		zap.Strings("detectors", cfg.Privacy.Detectors),
	)
	if !reflect.DeepEqual(cfg.Server, old.cfg.Server) {
		s.logger.Warn("Server settings changed, restart to apply them")
	}
	s.wsHub.Publish(websocket.EventTypeConfigReload, "", websocket.ConfigReloadEvent{Applied: true})
	return nil
}

func (s *Server) reload(old *state, cfg *config.Config) error {
	r, err := old.planner.Router().WithConfig(cfg.Router)
	if err != nil {
		return err
	}

	st, err := newState(cfg, r, s.base)
	if err != nil {
		return err
	}

	s.limiter.Update(cfg.RateLimit)
	s.current.Store(st)
	return nil
}
