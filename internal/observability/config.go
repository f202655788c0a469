package observability

import (
	"skillwizard/internal/config"
)

const defaultServiceName = "skillwizard"

// GetObservabilityConfig derives the telemetry settings of the wizard server.
// A nil cfg yields console tracing with every sample kept.
func GetObservabilityConfig(cfg *config.Config, version string) ObservabilityConfig {
	obs := ObservabilityConfig{
		ServiceName:    defaultServiceName,
		ServiceVersion: version,
		Enabled:        true,
		ConsoleOutput:  true,
		PrettyPrint:    true,
		SampleRate:     1.0,
		Prometheus:     GetPrometheusConfig(cfg),
	}
	if cfg == nil {
		return obs
	}

	o := cfg.Observability
	if o.ServiceName != "" {
		obs.ServiceName = o.ServiceName
	}
	if o.ServiceVersion != "" {
		obs.ServiceVersion = o.ServiceVersion
	}
	obs.Enabled = o.Enabled
	obs.ConsoleOutput = o.ConsoleOutput
	obs.PrettyPrint = o.Console.PrettyPrint
	obs.SampleRate = o.SampleRate
	return obs
}
