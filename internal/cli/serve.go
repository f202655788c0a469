package cli

import (
	"context"
	"fmt"
	"time"

	"skillwizard/internal/backend"
	"skillwizard/internal/config"
	"skillwizard/internal/dispatch"
	"skillwizard/internal/errors"
	"skillwizard/internal/observability"
	"skillwizard/internal/render"
	"skillwizard/internal/server"
	"skillwizard/internal/session"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the wizard web server",
	Long: `Start the HTTP server that renders the skill wizard and relays its
actions to the assessment backend.

Pages:
- GET /: Start a wizard session
- POST /wizard/next, /wizard/back, /resume: Resume intake
- POST /test/setup, /test/generate, /test/submit, /test/retry: Skill test
- POST /jobs: Job recommendations
- GET /health: Health check endpoint
- GET /stats: Server statistics and rate limiting info

TLS Configuration:
- Use --tls-mode to set TLS mode: disabled, server
- Use --cert-file and --key-file for TLS certificates`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringP("port", "p", "", "Port to listen on (default from config)")
	serveCmd.Flags().String("host", "", "Host to bind to (default from config)")
	serveCmd.Flags().String("tls-mode", "", "TLS mode: disabled, server (overrides config)")
	serveCmd.Flags().String("cert-file", "", "Server certificate file (PEM, overrides config)")
	serveCmd.Flags().String("key-file", "", "Server private key file (PEM, overrides config)")
	serveCmd.Flags().String("backend-url", "", "Assessment backend base URL (overrides config)")
	serveCmd.Flags().String("templates-dir", "", "Directory with template overrides (overrides config)")
	serveCmd.Flags().Bool("watch-templates", false, "Reload template overrides when they change")
}

// applyFlagOverrides copies explicitly set flags over the loaded configuration
func applyFlagOverrides(flags *pflag.FlagSet, cfg *config.Config) {
	overrides := map[string]*string{
		"port":          &cfg.Server.Port,
		"host":          &cfg.Server.Host,
		"tls-mode":      &cfg.Server.TLS.Mode,
		"cert-file":     &cfg.Server.TLS.CertFile,
		"key-file":      &cfg.Server.TLS.KeyFile,
		"backend-url":   &cfg.Backend.BaseURL,
		"templates-dir": &cfg.UI.TemplatesDir,
	}
	for name, target := range overrides {
		if flags.Changed(name) {
			if v, err := flags.GetString(name); err == nil {
				*target = v
			}
		}
	}
	if flags.Changed("watch-templates") {
		if v, err := flags.GetBool("watch-templates"); err == nil {
			cfg.UI.WatchTemplates = v
		}
	}
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	cfg := getConfigFromContext(ctx)
	logger := getLoggerFromContext(ctx)

	applyFlagOverrides(cmd.Flags(), cfg)

	// Validate TLS configuration after applying overrides
	if err := cfg.ValidateTLSConfig(); err != nil {
		return fmt.Errorf("invalid TLS configuration: %w", err)
	}

	om, err := observability.NewObservabilityManager(observability.GetObservabilityConfig(cfg, Version), cfg)
	if err != nil {
		return fmt.Errorf("failed to initialize observability: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := om.Shutdown(shutdownCtx); err != nil {
			logger.LogError(err, "Failed to shutdown observability")
		}
	}()

	store, err := newSessionStore(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := store.Close(); err != nil {
			logger.LogError(err, "Failed to close session store")
		}
	}()

	renderer, err := render.New(render.Options{TemplatesDir: cfg.UI.TemplatesDir, Logger: logger})
	if err != nil {
		return fmt.Errorf("failed to load templates: %w", err)
	}

	client := backend.NewClient(cfg.Backend, logger)
	wiz := dispatch.New(client, store, logger, dispatch.Options{
		Defaults: session.Defaults{
			QuestionKind:  cfg.DefaultQuestionKind(),
			QuestionCount: cfg.UI.DefaultQuestionCount,
		},
		MaxQuestions:   cfg.UI.MaxQuestions,
		Metrics:        om.GetMetrics(),
		PendingTimeout: 2 * cfg.Backend.Timeout,
	})

	srv := server.NewServer(cfg, server.NewServerConfig(cfg, Version), server.Dependencies{
		Wizard:        wiz,
		Renderer:      renderer,
		Backend:       client,
		Store:         store,
		Observability: om,
	}, logger)
	return srv.Start(ctx)
}

// newSessionStore builds the configured session store
func newSessionStore(ctx context.Context, cfg *config.Config, logger *errors.Logger) (session.Store, error) {
	switch cfg.Session.Store {
	case "redis":
		store, err := session.NewRedisStore(ctx, session.RedisOptions{
			Addr:      cfg.Session.Redis.Addr,
			Password:  cfg.Session.Redis.Password,
			DB:        cfg.Session.Redis.DB,
			KeyPrefix: cfg.Session.Redis.KeyPrefix,
			TTL:       cfg.Session.TTL,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to connect session store: %w", err)
		}
		logger.Info("Using Redis session store", "addr", cfg.Session.Redis.Addr)
		return store, nil
	default:
		logger.Info("Using in-memory session store", "ttl", cfg.Session.TTL)
		return session.NewMemoryStore(cfg.Session.TTL, cfg.Session.CleanupInterval, logger), nil
	}
}
