package observability

import (
	"time"

	"resumewizard/internal/config"
)

// Settings is the resolved observability setup for one process
type Settings struct {
	ServiceName        string
	ServiceVersion     string
	ServiceInstance    string
	Enabled            bool
	ConsoleOutput      bool
	PrettyPrint        bool
	SampleRate         float64
	CollectionInterval time.Duration
	Prometheus         PrometheusSettings
	OTLP               config.OTLPConfig
	CustomMetrics      config.CustomMetricsConfig
}

// SettingsFromConfig resolves settings, using the build version when none
// is configured
func SettingsFromConfig(cfg config.ObservabilityConfig, version string) Settings {
	serviceVersion := cfg.ServiceVersion
	if serviceVersion == "" {
		serviceVersion = version
	}
	serviceName := cfg.ServiceName
	if serviceName == "" {
		serviceName = "resumewizard"
	}
	instance := cfg.ServiceInstance
	if instance == "" {
		instance = serviceName + "-1"
	}
	interval := cfg.Metrics.CollectionInterval
	if interval <= 0 {
		interval = 15 * time.Second
	}

	return Settings{
		ServiceName:        serviceName,
		ServiceVersion:     serviceVersion,
		ServiceInstance:    instance,
		Enabled:            cfg.Enabled,
		ConsoleOutput:      cfg.ConsoleOutput,
		PrettyPrint:        cfg.Console.PrettyPrint,
		SampleRate:         cfg.SampleRate,
		CollectionInterval: interval,
		Prometheus: PrometheusSettings{
			Enabled:  cfg.Prometheus.Enabled,
			Endpoint: cfg.Prometheus.Endpoint,
			Port:     cfg.Prometheus.Port,
		},
		OTLP:          cfg.OTLP,
		CustomMetrics: cfg.CustomMetrics,
	}
}
