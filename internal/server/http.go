package server

import (
	"time"

	"skillwizard/internal/config"
	"skillwizard/internal/dispatch"
	apperrors "skillwizard/internal/errors"
	"skillwizard/internal/observability"
	"skillwizard/internal/render"
	"skillwizard/internal/session"
)

// ErrorResponse represents an error response of the JSON endpoints
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

// BackendStatus is the view of the assessment backend used by /health and /stats
type BackendStatus interface {
	Stats() map[string]any
	Healthy() bool
}

// Server holds configuration for the HTTP server
type Server struct {
	Host    string
	Port    string
	Version string

	// Full application configuration
	AppConfig *config.Config

	// TLS Configuration
	TLSConfig config.TLSConfig

	// Timeout configurations
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration

	// Request size limit
	MaxRequestSize int64

	// Rate limiting
	RateLimit   *config.RateLimitConfig
	RateLimiter *RateLimiter

	Wizard        *dispatch.Dispatcher
	Renderer      *render.Renderer
	Backend       BackendStatus
	Store         session.Store
	Observability *observability.ObservabilityManager
	Metrics       *observability.Metrics

	pageOptions render.PageOptions

	// Logger
	Logger *apperrors.Logger
}

// ServerConfig holds configuration for creating a Server instance
type ServerConfig struct {
	Host           string
	Port           string
	Version        string
	TLSConfig      config.TLSConfig
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	IdleTimeout    time.Duration
	MaxRequestSize int64
	RateLimit      *config.RateLimitConfig
}

// Dependencies are the collaborators the handlers drive
type Dependencies struct {
	Wizard        *dispatch.Dispatcher
	Renderer      *render.Renderer
	Backend       BackendStatus
	Store         session.Store
	Observability *observability.ObservabilityManager
}

// NewServerConfig derives the server settings from the application configuration
func NewServerConfig(appCfg *config.Config, version string) ServerConfig {
	rateLimit := appCfg.Server.RateLimit
	return ServerConfig{
		Host:           appCfg.Server.Host,
		Port:           appCfg.Server.Port,
		Version:        version,
		TLSConfig:      appCfg.Server.TLS,
		ReadTimeout:    appCfg.Server.ReadTimeout,
		WriteTimeout:   appCfg.Server.WriteTimeout,
		IdleTimeout:    appCfg.Server.IdleTimeout,
		MaxRequestSize: appCfg.App.MaxRequestSize,
		RateLimit:      &rateLimit,
	}
}

// NewServer creates a new Server instance from a ServerConfig struct
func NewServer(appCfg *config.Config, cfg ServerConfig, deps Dependencies, logger *apperrors.Logger) *Server {
	var rateLimiter *RateLimiter
	if cfg.RateLimit != nil && cfg.RateLimit.Enabled {
		rateLimiter = NewRateLimiter(
			cfg.RateLimit.RequestsPerMin,
			cfg.RateLimit.BurstCapacity,
			cfg.RateLimit.Window,
			logger,
		)
	}

	metrics := &observability.Metrics{}
	if deps.Observability != nil {
		metrics = deps.Observability.GetMetrics()
	}

	return &Server{
		Host:           cfg.Host,
		Port:           cfg.Port,
		Version:        cfg.Version,
		AppConfig:      appCfg,
		TLSConfig:      cfg.TLSConfig,
		ReadTimeout:    cfg.ReadTimeout,
		WriteTimeout:   cfg.WriteTimeout,
		IdleTimeout:    cfg.IdleTimeout,
		MaxRequestSize: cfg.MaxRequestSize,
		RateLimit:      cfg.RateLimit,
		RateLimiter:    rateLimiter,
		Wizard:         deps.Wizard,
		Renderer:       deps.Renderer,
		Backend:        deps.Backend,
		Store:          deps.Store,
		Observability:  deps.Observability,
		Metrics:        metrics,
		pageOptions: render.PageOptions{
			MaxQuestions:   appCfg.UI.MaxQuestions,
			NoticeDuration: appCfg.UI.NoticeDuration,
		},
		Logger: logger,
	}
}
