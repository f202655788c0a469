package config

import (
	"fmt"
	"log"
	"net/url"
	"strings"
	"time"

	"skillwizard/internal/types"

	"github.com/spf13/viper"
)

// Config holds all application configuration
// Secret precedence order:
// 1. Vault (if configured) - Highest priority
// 2. Config File values
// 3. Environment Variables (SKILLWIZARD_BACKEND_APIKEY, etc.)
// 4. Default values - Lowest priority
type Config struct {
	Server        ServerConfig        `mapstructure:"server"`
	Backend       BackendConfig       `mapstructure:"backend"`
	Session       SessionConfig       `mapstructure:"session"`
	UI            UIConfig            `mapstructure:"ui"`
	App           AppConfig           `mapstructure:"app"`
	Vault         VaultConfig         `mapstructure:"vault"`
	Observability ObservabilityConfig `mapstructure:"observability"`
}

// BackendConfig describes the assessment service the wizard calls
type BackendConfig struct {
	BaseURL        string               `mapstructure:"baseURL"`
	Timeout        time.Duration        `mapstructure:"timeout"`
	APIKey         string               `mapstructure:"apiKey"`
	APIKeyHeader   string               `mapstructure:"apiKeyHeader"`
	MaxBodySize    int64                `mapstructure:"maxBodySize"`
	Endpoints      EndpointsConfig      `mapstructure:"endpoints"`
	CircuitBreaker CircuitBreakerConfig `mapstructure:"circuitBreaker"`
}

// EndpointsConfig holds the path of each backend operation
type EndpointsConfig struct {
	SubmitResume  string `mapstructure:"submitResume"`
	GenerateTest  string `mapstructure:"generateTest"`
	EvaluateTest  string `mapstructure:"evaluateTest"`
	RecommendJobs string `mapstructure:"recommendJobs"`
}

// CircuitBreakerConfig represents circuit breaker configuration
type CircuitBreakerConfig struct {
	Enabled          bool          `mapstructure:"enabled"`          // Whether circuit breaker is enabled
	MaxRequests      uint32        `mapstructure:"maxRequests"`      // Max requests allowed when half-open
	Interval         time.Duration `mapstructure:"interval"`         // Interval to clear counts
	Timeout          time.Duration `mapstructure:"timeout"`          // Timeout for half-open to open
	MinRequests      uint32        `mapstructure:"minRequests"`      // Minimum requests before tripping
	FailureThreshold float64       `mapstructure:"failureThreshold"` // Failure ratio threshold (0.0-1.0)
}

// SessionConfig controls where wizard sessions live and for how long
type SessionConfig struct {
	Store           string        `mapstructure:"store"` // memory, redis
	TTL             time.Duration `mapstructure:"ttl"`
	CleanupInterval time.Duration `mapstructure:"cleanupInterval"`
	Redis           RedisConfig   `mapstructure:"redis"`
}

// RedisConfig holds the Redis session store connection
type RedisConfig struct {
	Addr      string `mapstructure:"addr"`
	Password  string `mapstructure:"password"`
	DB        int    `mapstructure:"db"`
	KeyPrefix string `mapstructure:"keyPrefix"`
}

// UIConfig controls the rendered wizard
type UIConfig struct {
	TemplatesDir         string        `mapstructure:"templatesDir"`
	WatchTemplates       bool          `mapstructure:"watchTemplates"`
	WatchDebounce        time.Duration `mapstructure:"watchDebounce"`
	DefaultQuestionKind  string        `mapstructure:"defaultQuestionKind"`
	DefaultQuestionCount int           `mapstructure:"defaultQuestionCount"`
	MaxQuestions         int           `mapstructure:"maxQuestions"`
	NoticeDuration       time.Duration `mapstructure:"noticeDuration"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host         string        `mapstructure:"host"`
	Port         string        `mapstructure:"port"`
	ReadTimeout  time.Duration `mapstructure:"readTimeout"`
	WriteTimeout time.Duration `mapstructure:"writeTimeout"`
	IdleTimeout  time.Duration `mapstructure:"idleTimeout"`

	TLS TLSConfig `mapstructure:"tls"`

	RateLimit RateLimitConfig `mapstructure:"rateLimit"`
}

// TLSConfig holds TLS configuration for the wizard server
type TLSConfig struct {
	Mode     string `mapstructure:"mode"`     // TLS mode: "disabled", "server"
	CertFile string `mapstructure:"certFile"` // Server certificate file (PEM)
	KeyFile  string `mapstructure:"keyFile"`  // Server private key file (PEM)

	CertContent string `mapstructure:"certContent"` // Server certificate content (PEM)
	KeyContent  string `mapstructure:"keyContent"`  // Server private key content (PEM)

	MinVersion string `mapstructure:"minVersion"` // Minimum TLS version: "1.2", "1.3"
}

// RateLimitConfig holds rate limiting configuration for form submissions
type RateLimitConfig struct {
	Enabled        bool          `mapstructure:"enabled"`
	RequestsPerMin int           `mapstructure:"requestsPerMin"`
	BurstCapacity  int           `mapstructure:"burstCapacity"`
	Window         time.Duration `mapstructure:"window"`
	TrustProxy     bool          `mapstructure:"trustProxy"` // Honour X-Forwarded-For / X-Real-IP
}

// AppConfig holds general application settings
type AppConfig struct {
	LogLevel       string `mapstructure:"logLevel"`
	MaxRequestSize int64  `mapstructure:"maxRequestSize"`
}

// ObservabilityConfig holds OpenTelemetry and Prometheus configuration
type ObservabilityConfig struct {
	Enabled         bool                `mapstructure:"enabled"`
	ServiceName     string              `mapstructure:"serviceName"`
	ServiceVersion  string              `mapstructure:"serviceVersion"`
	ServiceInstance string              `mapstructure:"serviceInstance"`
	ConsoleOutput   bool                `mapstructure:"consoleOutput"`
	SampleRate      float64             `mapstructure:"sampleRate"`
	Metrics         MetricsConfig       `mapstructure:"metrics"`
	CustomMetrics   CustomMetricsConfig `mapstructure:"customMetrics"`
	Console         ConsoleConfig       `mapstructure:"console"`
	Prometheus      PrometheusConfig    `mapstructure:"prometheus"`
	OTLP            OTLPConfig          `mapstructure:"otlp"`
}

type MetricsConfig struct {
	CollectionInterval time.Duration `mapstructure:"collectionInterval"`
}

type ConsoleConfig struct {
	PrettyPrint bool `mapstructure:"prettyPrint"`
}

type CustomMetricsConfig struct {
	Actions        ActionMetricsConfig         `mapstructure:"actions"`
	Wizard         WizardMetricsConfig         `mapstructure:"wizard"`
	Infrastructure InfrastructureMetricsConfig `mapstructure:"infrastructure"`
}

type ActionMetricsConfig struct {
	Enabled       bool `mapstructure:"enabled"`
	TrackDuration bool `mapstructure:"trackDuration"`
}

type WizardMetricsConfig struct {
	Enabled bool `mapstructure:"enabled"`
}

type InfrastructureMetricsConfig struct {
	Enabled         bool `mapstructure:"enabled"`
	TrackRateLimits bool `mapstructure:"trackRateLimits"`
}

type PrometheusConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Endpoint string `mapstructure:"endpoint"`
	Port     string `mapstructure:"port"`
}

type OTLPConfig struct {
	Enabled  bool              `mapstructure:"enabled"`
	Endpoint string            `mapstructure:"endpoint"`
	Insecure bool              `mapstructure:"insecure"`
	Headers  map[string]string `mapstructure:"headers"`
}

// LoadConfig loads configuration from file, environment variables, and defaults
func LoadConfig() (*Config, error) {
	return load(viper.New())
}

func load(v *viper.Viper) (*Config, error) {
	log.Println("[CONFIG] Starting configuration loading process")

	setDefaults(v)

	v.SetEnvPrefix("SKILLWIZARD")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	log.Println("[CONFIG] Configured environment variable handling with prefix 'SKILLWIZARD'")

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath("/etc/skillwizard/")
	v.AddConfigPath("$HOME/.skillwizard")
	v.AddConfigPath(".")

	configFileUsed := ""
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		log.Println("[CONFIG] No config file found, using defaults and environment variables")
	} else {
		configFileUsed = v.ConfigFileUsed()
		log.Printf("[CONFIG] Successfully loaded config file: %s", configFileUsed)
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	config.applyFallbacks()
	config.logConfigurationSources(configFileUsed)

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	log.Println("[CONFIG] Configuration loading completed successfully")
	return &config, nil
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Server.Port == "" {
		return fmt.Errorf("server port is required")
	}

	if rl := c.Server.RateLimit; rl.Enabled && (rl.RequestsPerMin <= 0 || rl.BurstCapacity <= 0) {
		return fmt.Errorf("rateLimit requestsPerMin and burstCapacity must be positive when enabled")
	}

	if err := c.validateBackend(); err != nil {
		return err
	}

	if err := c.validateSession(); err != nil {
		return err
	}

	if err := c.validateUI(); err != nil {
		return err
	}

	if err := c.ValidateTLSConfig(); err != nil {
		return fmt.Errorf("TLS configuration error: %w", err)
	}

	return nil
}

func (c *Config) validateBackend() error {
	u, err := url.Parse(c.Backend.BaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("backend baseURL must be an absolute URL, got %q", c.Backend.BaseURL)
	}
	if c.Backend.Timeout <= 0 {
		return fmt.Errorf("backend timeout must be positive")
	}
	endpoints := map[string]string{
		"submitResume":  c.Backend.Endpoints.SubmitResume,
		"generateTest":  c.Backend.Endpoints.GenerateTest,
		"evaluateTest":  c.Backend.Endpoints.EvaluateTest,
		"recommendJobs": c.Backend.Endpoints.RecommendJobs,
	}
	for name, path := range endpoints {
		if !strings.HasPrefix(path, "/") {
			return fmt.Errorf("backend endpoint %s must start with '/', got %q", name, path)
		}
	}
	cb := c.Backend.CircuitBreaker
	if cb.Enabled && (cb.FailureThreshold <= 0 || cb.FailureThreshold > 1) {
		return fmt.Errorf("circuit breaker failureThreshold must be in (0, 1], got %v", cb.FailureThreshold)
	}
	return nil
}

func (c *Config) validateSession() error {
	switch c.Session.Store {
	case "memory":
	case "redis":
		if c.Session.Redis.Addr == "" {
			return fmt.Errorf("session redis addr is required when store is 'redis'")
		}
	default:
		return fmt.Errorf("invalid session store: %s (must be 'memory' or 'redis')", c.Session.Store)
	}
	if c.Session.TTL <= 0 {
		return fmt.Errorf("session ttl must be positive")
	}
	return nil
}

func (c *Config) validateUI() error {
	if _, err := types.ParseQuestionKind(c.UI.DefaultQuestionKind); err != nil {
		return fmt.Errorf("invalid ui defaultQuestionKind: %w", err)
	}
	if c.UI.MaxQuestions <= 0 {
		return fmt.Errorf("ui maxQuestions must be positive")
	}
	if c.UI.DefaultQuestionCount <= 0 || c.UI.DefaultQuestionCount > c.UI.MaxQuestions {
		return fmt.Errorf("ui defaultQuestionCount must be between 1 and %d", c.UI.MaxQuestions)
	}
	return nil
}

// DefaultQuestionKind returns the parsed default kind; Validate guarantees it parses
func (c *Config) DefaultQuestionKind() types.QuestionKind {
	kind, err := types.ParseQuestionKind(c.UI.DefaultQuestionKind)
	if err != nil {
		return types.KindMultipleChoice
	}
	return kind
}
