package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"skillwizard/internal/render"

	"golang.org/x/sync/errgroup"
)

// Start serves until ctx is cancelled or the process receives SIGINT/SIGTERM
func (s *Server) Start(ctx context.Context) error {
	httpServer := s.setupHTTPServer()

	if err := s.configureTLS(httpServer); err != nil {
		return err
	}

	watcher, err := s.startTemplateWatcher()
	if err != nil {
		return err
	}
	if watcher != nil {
		defer func() {
			if err := watcher.Stop(); err != nil {
				s.Logger.LogError(err, "Failed to stop template watcher")
			}
		}()
	}

	s.displayServerInfo()

	return s.startWithGracefulShutdown(ctx, httpServer)
}

// setupHTTPServer creates and configures the HTTP server
func (s *Server) setupHTTPServer() *http.Server {
	return &http.Server{
		Addr:         fmt.Sprintf("%s:%s", s.Host, s.Port),
		Handler:      s.handler(),
		ReadTimeout:  s.ReadTimeout,
		WriteTimeout: s.WriteTimeout,
		IdleTimeout:  s.IdleTimeout,
	}
}

// startTemplateWatcher hot reloads overridden templates when enabled
func (s *Server) startTemplateWatcher() (*render.TemplateWatcher, error) {
	if s.AppConfig == nil || !s.AppConfig.UI.WatchTemplates || s.AppConfig.UI.TemplatesDir == "" {
		return nil, nil
	}

	watcher := render.NewTemplateWatcher(s.AppConfig.UI.TemplatesDir, s.AppConfig.UI.WatchDebounce, s.Renderer.Reload, s.Logger)
	if err := watcher.Start(); err != nil {
		return nil, fmt.Errorf("failed to start template watcher: %w", err)
	}
	return watcher, nil
}

// startWithGracefulShutdown runs the HTTP server and shuts it down when a
// signal arrives or the server fails
func (s *Server) startWithGracefulShutdown(ctx context.Context, server *http.Server) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		s.Logger.Info("Starting HTTP server",
			"address", server.Addr,
			"tls_enabled", server.TLSConfig != nil)

		var err error
		if server.TLSConfig != nil {
			// Certificates are already loaded into TLSConfig
			err = server.ListenAndServeTLS("", "")
		} else {
			err = server.ListenAndServe()
		}
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server failed to start: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		s.Logger.Info("Starting graceful shutdown")
		return s.performGracefulShutdown(server)
	})

	return g.Wait()
}

// performGracefulShutdown handles the graceful shutdown process
func (s *Server) performGracefulShutdown(server *http.Server) error {
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	s.cleanupRateLimiter()

	s.Logger.Info("Shutting down HTTP server...")
	if err := server.Shutdown(shutdownCtx); err != nil {
		s.Logger.LogError(err, "Failed to shutdown server gracefully, forcing close")
		return server.Close()
	}

	s.Logger.Info("Server shutdown completed successfully")
	return nil
}

// cleanupRateLimiter cleans up the rate limiter resources
func (s *Server) cleanupRateLimiter() {
	if s.RateLimiter != nil {
		s.RateLimiter.Close()
		s.Logger.Info("Rate limiter cleaned up")
	}
}
