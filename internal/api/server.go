package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/roomwall/roomwall-core/internal/hardware"
	"github.com/roomwall/roomwall-core/internal/health"
	"github.com/roomwall/roomwall-core/internal/infrastructure/config"
	"github.com/roomwall/roomwall-core/internal/infrastructure/logging"
)

// gracefulShutdownTimeout is the maximum time to wait for in-flight
// requests during shutdown.
const gracefulShutdownTimeout = 10 * time.Second

// Navigator is the navigation callback supplied by the shell outside
// this core. May be nil, in which case navigation routes answer 503.
type Navigator interface {
	Navigate(url string) bool
	CurrentURL() string
}

// Deps holds the dependencies required by the API server.
type Deps struct {
	Config  config.APIConfig
	WS      config.WebSocketConfig
	Media   config.MediaConfig
	Logger  *logging.Logger
	Manager *hardware.Manager
	Health  *health.Service
	Nav     Navigator
	Version string
}

// Server is the HTTP API server for the room core.
type Server struct {
	cfg     config.APIConfig
	wsCfg   config.WebSocketConfig
	media   config.MediaConfig
	logger  *logging.Logger
	manager *hardware.Manager
	healthS *health.Service
	nav     Navigator
	version string

	server   *http.Server
	hub      *Hub
	cancel   context.CancelFunc
	detachWS func()
}

// New creates a new API server with the given dependencies.
// The server does not listen until Start is called.
func New(deps Deps) (*Server, error) {
	if deps.Logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	if deps.Manager == nil {
		return nil, fmt.Errorf("hardware manager is required")
	}
	if deps.Health == nil {
		return nil, fmt.Errorf("health service is required")
	}

	return &Server{
		cfg:     deps.Config,
		wsCfg:   deps.WS,
		media:   deps.Media,
		logger:  deps.Logger,
		manager: deps.Manager,
		healthS: deps.Health,
		nav:     deps.Nav,
		version: deps.Version,
	}, nil
}

// Start binds the listener and begins serving.
//
// If configured, any stale process still holding the port is evicted
// first. The WebSocket hub starts and attaches to the health service
// so view changes and events stream to connected clients.
func (s *Server) Start(ctx context.Context) error {
	var srvCtx context.Context
	srvCtx, s.cancel = context.WithCancel(ctx)

	if s.cfg.EvictStalePort {
		if err := evictStalePort(s.cfg.Port, s.logger); err != nil {
			s.logger.Warn("stale port eviction failed, binding may fail",
				"port", s.cfg.Port,
				"error", err,
			)
		}
	}

	s.hub = NewHub(s.wsCfg, s.logger)
	go s.hub.Run(srvCtx)
	s.detachWS = s.attachHealthStream()

	router := s.buildRouter()

	s.server = &http.Server{
		Addr:              fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port),
		Handler:           router,
		ReadTimeout:       time.Duration(s.cfg.Timeouts.Read) * time.Second,
		ReadHeaderTimeout: time.Duration(s.cfg.Timeouts.Read) * time.Second,
		WriteTimeout:      time.Duration(s.cfg.Timeouts.Write) * time.Second,
		IdleTimeout:       time.Duration(s.cfg.Timeouts.Idle) * time.Second,
	}

	go func() {
		err := s.server.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("API server error", "error", err)
		}
	}()

	s.logger.Info("API server listening", "address", s.server.Addr)
	return nil
}

// attachHealthStream forwards aggregator notifications to the hub.
func (s *Server) attachHealthStream() func() {
	unsubChanged := s.healthS.SubscribeModuleChanged(func(name string) {
		if view, ok := s.healthS.ModuleView(name); ok {
			s.hub.BroadcastModuleHealth(view)
		}
	})
	unsubEvents := s.healthS.SubscribeEvents(func(ev health.Event) {
		s.hub.BroadcastHealthEvent(ev)
	})
	return func() {
		unsubChanged()
		unsubEvents()
	}
}

// Close gracefully shuts down the server, waiting for in-flight
// requests up to the shutdown timeout.
func (s *Server) Close() error {
	if s.server == nil {
		return nil
	}

	if s.detachWS != nil {
		s.detachWS()
	}
	if s.cancel != nil {
		s.cancel()
	}

	ctx, cancel := context.WithTimeout(context.Background(), gracefulShutdownTimeout)
	defer cancel()

	s.logger.Info("API server shutting down")
	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutting down API server: %w", err)
	}
	return nil
}

// HealthCheck verifies the API server is running.
func (s *Server) HealthCheck(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return fmt.Errorf("api health check: %w", ctx.Err())
	default:
	}

	if s.server == nil {
		return fmt.Errorf("api server not started")
	}

	return nil
}
