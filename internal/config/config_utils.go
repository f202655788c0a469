package config

import (
	"fmt"
	"log"
	"os"
	"strings"
)

// applyFallbacks applies environment variable fallbacks and derived defaults
func (c *Config) applyFallbacks() {
	c.applyBackendFallbacks()
	c.applyTLSDefaults()
	c.applyObservabilityDefaults()
}

// applyBackendFallbacks accepts the unprefixed variables used by the backend's own deployment
func (c *Config) applyBackendFallbacks() {
	if c.Backend.APIKey == "" {
		c.Backend.APIKey = os.Getenv("BACKEND_API_KEY")
	}
	if envURL := os.Getenv("BACKEND_URL"); envURL != "" && os.Getenv("SKILLWIZARD_BACKEND_BASEURL") == "" {
		c.Backend.BaseURL = envURL
	}
	c.Backend.BaseURL = strings.TrimRight(c.Backend.BaseURL, "/")
}

// applyTLSDefaults applies default TLS configuration values
func (c *Config) applyTLSDefaults() {
	if c.Server.TLS.MinVersion == "" && c.Server.TLS.Mode != "disabled" {
		c.Server.TLS.MinVersion = "1.2"
	}
}

// applyObservabilityDefaults applies default observability configuration values
func (c *Config) applyObservabilityDefaults() {
	if c.Observability.ServiceInstance == "" {
		c.Observability.ServiceInstance = generateServiceInstanceID(c.Observability.ServiceName)
	}
}

// generateServiceInstanceID generates a unique service instance ID
func generateServiceInstanceID(serviceName string) string {
	if hostname, err := os.Hostname(); err == nil {
		return fmt.Sprintf("%s-%s", serviceName, hostname)
	}
	return fmt.Sprintf("%s-1", serviceName)
}

// logConfigurationSources logs a summary of configuration sources being used
func (c *Config) logConfigurationSources(configFileUsed string) {
	log.Println("[CONFIG] === Configuration Sources Summary ===")

	if configFileUsed != "" {
		log.Printf("[CONFIG] Config file: %s", configFileUsed)
	} else {
		log.Println("[CONFIG] Config file: None (using defaults)")
	}

	envVars := []string{
		"SKILLWIZARD_BACKEND_BASEURL",
		"SKILLWIZARD_BACKEND_APIKEY",
		"SKILLWIZARD_SERVER_PORT",
		"SKILLWIZARD_SERVER_HOST",
		"SKILLWIZARD_SESSION_STORE",
		"SKILLWIZARD_APP_LOGLEVEL",
		"SKILLWIZARD_VAULT_ENABLED",
		"BACKEND_URL",
		"BACKEND_API_KEY",
	}

	log.Println("[CONFIG] Environment variables:")
	hasEnvVars := false
	for _, envVar := range envVars {
		if value := os.Getenv(envVar); value != "" {
			if strings.Contains(strings.ToLower(envVar), "key") {
				log.Printf("[CONFIG]   %s=***MASKED***", envVar)
			} else {
				log.Printf("[CONFIG]   %s=%s", envVar, value)
			}
			hasEnvVars = true
		}
	}
	if !hasEnvVars {
		log.Println("[CONFIG]   None set")
	}

	log.Println("[CONFIG] === Key Configuration Values ===")
	log.Printf("[CONFIG] Backend URL: %s", c.Backend.BaseURL)
	if c.Backend.APIKey != "" {
		log.Println("[CONFIG] Backend API Key: ***CONFIGURED***")
	} else {
		log.Println("[CONFIG] Backend API Key: ***NOT SET***")
	}
	log.Printf("[CONFIG] Server Host: %s", c.Server.Host)
	log.Printf("[CONFIG] Server Port: %s", c.Server.Port)
	log.Printf("[CONFIG] Session Store: %s (ttl %s)", c.Session.Store, c.Session.TTL)
	log.Printf("[CONFIG] Log Level: %s", c.App.LogLevel)
	log.Printf("[CONFIG] TLS Mode: %s", c.Server.TLS.Mode)
	log.Printf("[CONFIG] Vault Enabled: %t", c.Vault.Enabled)
	log.Printf("[CONFIG] Observability Enabled: %t", c.Observability.Enabled)
	log.Println("[CONFIG] =====================================")
}
