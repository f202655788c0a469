package config

import (
	"time"

	"github.com/spf13/viper"
)

// setDefaults sets the default configuration values
func setDefaults(v *viper.Viper) {
	// Server Configuration
	v.SetDefault("server.host", "localhost")
	v.SetDefault("server.port", "8080")
	v.SetDefault("server.readTimeout", 30*time.Second)
	v.SetDefault("server.writeTimeout", 120*time.Second) // Covers a slow backend evaluation
	v.SetDefault("server.idleTimeout", 120*time.Second)
	v.SetDefault("server.tls.mode", "disabled") // disabled, server
	v.SetDefault("server.tls.certFile", "")
	v.SetDefault("server.tls.keyFile", "")
	v.SetDefault("server.tls.minVersion", "1.2")
	v.SetDefault("server.rateLimit.enabled", true)
	v.SetDefault("server.rateLimit.requestsPerMin", 60)
	v.SetDefault("server.rateLimit.burstCapacity", 10)
	v.SetDefault("server.rateLimit.window", time.Minute)
	v.SetDefault("server.rateLimit.trustProxy", false)

	// Backend Configuration
	v.SetDefault("backend.baseURL", "http://localhost:8000")
	v.SetDefault("backend.timeout", 90*time.Second) // Test generation and evaluation are slow
	v.SetDefault("backend.apiKey", "")
	v.SetDefault("backend.apiKeyHeader", "X-API-Key")
	v.SetDefault("backend.maxBodySize", 4*1024*1024)
	v.SetDefault("backend.endpoints.submitResume", "/submit-resume-details")
	v.SetDefault("backend.endpoints.generateTest", "/generate-test")
	v.SetDefault("backend.endpoints.evaluateTest", "/evaluate-test")
	v.SetDefault("backend.endpoints.recommendJobs", "/recommend-jobs")
	v.SetDefault("backend.circuitBreaker.enabled", true)
	v.SetDefault("backend.circuitBreaker.maxRequests", 3)
	v.SetDefault("backend.circuitBreaker.interval", 60*time.Second)
	v.SetDefault("backend.circuitBreaker.timeout", 30*time.Second)
	v.SetDefault("backend.circuitBreaker.minRequests", 3)
	v.SetDefault("backend.circuitBreaker.failureThreshold", 0.6)

	// Session Configuration
	v.SetDefault("session.store", "memory") // memory, redis
	v.SetDefault("session.ttl", 2*time.Hour)
	v.SetDefault("session.cleanupInterval", 5*time.Minute)
	v.SetDefault("session.redis.addr", "")
	v.SetDefault("session.redis.password", "")
	v.SetDefault("session.redis.db", 0)
	v.SetDefault("session.redis.keyPrefix", "skillwizard:session:")

	// UI Configuration
	v.SetDefault("ui.templatesDir", "") // Embedded templates when empty
	v.SetDefault("ui.watchTemplates", false)
	v.SetDefault("ui.watchDebounce", 250*time.Millisecond)
	v.SetDefault("ui.defaultQuestionKind", "mcq")
	v.SetDefault("ui.defaultQuestionCount", 5)
	v.SetDefault("ui.maxQuestions", 20)
	v.SetDefault("ui.noticeDuration", 5*time.Second)

	// App Configuration
	v.SetDefault("app.logLevel", "info")
	v.SetDefault("app.maxRequestSize", 1024*1024) // 1MB

	// Vault Configuration
	v.SetDefault("vault.enabled", false)
	v.SetDefault("vault.address", "")
	v.SetDefault("vault.token", "")
	v.SetDefault("vault.tokenFile", "")
	v.SetDefault("vault.namespace", "")
	v.SetDefault("vault.secrets.backendKey", "")
	v.SetDefault("vault.secrets.redis", "")
	v.SetDefault("vault.secrets.tlsCerts", "")

	// Observability Configuration
	v.SetDefault("observability.enabled", true)
	v.SetDefault("observability.serviceName", "skillwizard")
	v.SetDefault("observability.serviceVersion", "")  // Will use app version if empty
	v.SetDefault("observability.serviceInstance", "") // Will be auto-generated if empty
	v.SetDefault("observability.consoleOutput", false)
	v.SetDefault("observability.sampleRate", 1.0)
	v.SetDefault("observability.metrics.collectionInterval", 15*time.Second)
	v.SetDefault("observability.customMetrics.actions.enabled", true)
	v.SetDefault("observability.customMetrics.actions.trackDuration", true)
	v.SetDefault("observability.customMetrics.wizard.enabled", true)
	v.SetDefault("observability.customMetrics.infrastructure.enabled", true)
	v.SetDefault("observability.customMetrics.infrastructure.trackRateLimits", true)
	v.SetDefault("observability.console.prettyPrint", true)
	v.SetDefault("observability.prometheus.enabled", true)
	v.SetDefault("observability.prometheus.endpoint", "/metrics")
	v.SetDefault("observability.prometheus.port", "9090")
	v.SetDefault("observability.otlp.enabled", false)
	v.SetDefault("observability.otlp.endpoint", "http://localhost:4318")
	v.SetDefault("observability.otlp.insecure", true)
	v.SetDefault("observability.otlp.headers", map[string]string{})
}
