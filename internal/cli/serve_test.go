package cli

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"skillwizard/internal/config"
	"skillwizard/internal/errors"
	"skillwizard/internal/session"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestApplyFlagOverrides(t *testing.T) {
	flags := pflag.NewFlagSet("serve", pflag.ContinueOnError)
	flags.AddFlagSet(serveCmd.Flags())
	require.NoError(t, flags.Parse([]string{"--port", "9090", "--backend-url", "http://backend:8000", "--watch-templates"}))

	cfg := &config.Config{}
	cfg.Server.Host = "localhost"
	cfg.Server.Port = "8080"

	applyFlagOverrides(flags, cfg)

	assert.Equal(t, "9090", cfg.Server.Port)
	assert.Equal(t, "localhost", cfg.Server.Host)
	assert.Equal(t, "http://backend:8000", cfg.Backend.BaseURL)
	assert.True(t, cfg.UI.WatchTemplates)
	assert.Empty(t, cfg.Server.TLS.Mode)
}

func TestNewSessionStoreDefaultsToMemory(t *testing.T) {
	cfg := &config.Config{}
	cfg.Session.Store = "memory"
	cfg.Session.TTL = time.Minute

	logger := errors.NewWithHandler(slog.NewTextHandler(io.Discard, nil))
	store, err := newSessionStore(context.Background(), cfg, logger)
	require.NoError(t, err)
	defer func() { assert.NoError(t, store.Close()) }()

	_, ok := store.(*session.MemoryStore)
	assert.True(t, ok)
}

func TestVersionCommand(t *testing.T) {
	var out bytes.Buffer
	versionCmd.SetOut(&out)
	versionCmd.Run(versionCmd, nil)
	assert.Contains(t, out.String(), "skillwizard version "+Version)
}
