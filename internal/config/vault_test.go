package config

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"skillwizard/internal/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMockLogger() *errors.Logger {
	logger, _ := errors.New("debug")
	return logger
}

type fakeSecretReader struct {
	secrets map[string]*VaultSecret
}

func (f *fakeSecretReader) GetSecretV2(path string) (*VaultSecret, error) {
	s, ok := f.secrets[path]
	if !ok {
		return nil, fmt.Errorf("secret not found at path: %s", path)
	}
	return s, nil
}

func (f *fakeSecretReader) GetStringSecret(path, key string) (string, error) {
	s, err := f.GetSecretV2(path)
	if err != nil {
		return "", err
	}
	return stringField(s, path, key)
}

func TestParseVersionValue(t *testing.T) {
	tests := []struct {
		name        string
		input       any
		expected    int64
		expectError bool
	}{
		{name: "int64 value", input: int64(42), expected: 42},
		{name: "float64 value", input: float64(42.0), expected: 42},
		{name: "string value", input: "42", expected: 42},
		{name: "invalid string value", input: "not-a-number", expectError: true},
		{name: "unsupported type", input: []string{"42"}, expectError: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := parseVersionValue(tt.input, "test/path")

			if tt.expectError {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
				assert.Equal(t, tt.expected, result)
			}
		})
	}
}

func TestParseKVv2(t *testing.T) {
	secret, err := parseKVv2(map[string]any{
		"data":     map[string]any{"api_key": "abc"},
		"metadata": map[string]any{"version": "3"},
	}, "secret/data/backend")
	require.NoError(t, err)
	assert.Equal(t, int64(3), secret.Version)
	assert.Equal(t, "abc", secret.Data["api_key"])

	_, err = parseKVv2(map[string]any{"api_key": "abc"}, "secret/backend")
	assert.ErrorContains(t, err, "not in KVv2 format")
}

func TestApplySecrets(t *testing.T) {
	reader := &fakeSecretReader{secrets: map[string]*VaultSecret{
		"secret/data/backend": {Data: map[string]any{"api_key": "backend-key-123456"}, Version: 1},
		"secret/data/redis":   {Data: map[string]any{"password": "hunter2"}, Version: 1},
		"secret/data/tls":     {Data: map[string]any{"cert": "CERT", "key": "KEY"}, Version: 4},
	}}

	cfg := &Config{}
	cfg.Vault.Secrets = VaultSecrets{
		BackendKey: "secret/data/backend",
		Redis:      "secret/data/redis",
		TLSCerts:   "secret/data/tls",
	}
	cfg.Server.TLS.CertFile = "/old/cert.pem"

	require.NoError(t, applySecrets(reader, cfg, newMockLogger()))

	assert.Equal(t, "backend-key-123456", cfg.Backend.APIKey)
	assert.Equal(t, "hunter2", cfg.Session.Redis.Password)
	assert.Equal(t, "CERT", cfg.Server.TLS.CertContent)
	assert.Equal(t, "KEY", cfg.Server.TLS.KeyContent)
	assert.Empty(t, cfg.Server.TLS.CertFile)
}

func TestApplySecretsMissingField(t *testing.T) {
	reader := &fakeSecretReader{secrets: map[string]*VaultSecret{
		"secret/data/tls": {Data: map[string]any{"cert": "CERT"}},
	}}

	cfg := &Config{}
	cfg.Vault.Secrets.TLSCerts = "secret/data/tls"

	err := applySecrets(reader, cfg, nil)
	assert.ErrorContains(t, err, "key 'key' not found")
}

func TestMaskSecret(t *testing.T) {
	assert.Equal(t, "abcd****6789", maskSecret("abcdef0123456789"))
	assert.Equal(t, "****", maskSecret("short"))
	assert.Equal(t, "", maskSecret(""))
}

func TestResolveVaultToken(t *testing.T) {
	logger := newMockLogger()

	t.Run("token from config", func(t *testing.T) {
		token, err := resolveVaultToken(VaultConfig{Token: "direct-token"}, logger)
		assert.NoError(t, err)
		assert.Equal(t, "direct-token", token)
	})

	t.Run("token from file", func(t *testing.T) {
		tokenFile := filepath.Join(t.TempDir(), "vault-token")
		require.NoError(t, os.WriteFile(tokenFile, []byte("  file-token  \n"), 0600))

		token, err := resolveVaultToken(VaultConfig{TokenFile: tokenFile}, logger)
		assert.NoError(t, err)
		assert.Equal(t, "file-token", token)
	})

	t.Run("missing token file", func(t *testing.T) {
		_, err := resolveVaultToken(VaultConfig{TokenFile: "/nonexistent/token/file"}, logger)
		assert.ErrorContains(t, err, "failed to read vault token file")
	})

	t.Run("no token provided", func(t *testing.T) {
		_, err := resolveVaultToken(VaultConfig{}, logger)
		assert.ErrorContains(t, err, "vault token is required")
	})
}

func TestApplyVaultSecretsDisabled(t *testing.T) {
	cfg := &Config{}
	assert.NoError(t, ApplyVaultSecrets(cfg, newMockLogger()))
}
