// Package models - Service configuration and operational settings.
// This file defines configuration structures for all service components.
package models

import (
	"errors"
	"fmt"
	"time"
)

// Config is the root configuration structure containing all service settings.
type Config struct {
	Server        ServerConfig        `yaml:"server" json:"server"`
	Engine        EngineConfig        `yaml:"engine" json:"engine"`
	Logging       LoggingConfig       `yaml:"logging" json:"logging"`
	Metrics       MetricsConfig       `yaml:"metrics" json:"metrics"`
	Observability ObservabilityConfig `yaml:"observability" json:"observability"`
}

type ServerConfig struct {
	Port         int           `yaml:"port" json:"port"`
	Host         string        `yaml:"host" json:"host"`
	ReadTimeout  time.Duration `yaml:"read_timeout" json:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout" json:"write_timeout"`
	IdleTimeout  time.Duration `yaml:"idle_timeout" json:"idle_timeout"`
	CORS         CORSConfig    `yaml:"cors" json:"cors"`
}

type CORSConfig struct {
	Enabled        bool     `yaml:"enabled" json:"enabled"`
	AllowedOrigins []string `yaml:"allowed_origins" json:"allowed_origins"`
	AllowedMethods []string `yaml:"allowed_methods" json:"allowed_methods"`
	AllowedHeaders []string `yaml:"allowed_headers" json:"allowed_headers"`
	MaxAge         int      `yaml:"max_age" json:"max_age"`
}

// EngineConfig holds the Load Manager's global defaults (spec.md §4.2/§4.3).
type EngineConfig struct {
	MaxGlobalConcurrent int           `yaml:"max_global_concurrent" json:"max_global_concurrent"`
	MaxTenantQueueSize  int           `yaml:"max_tenant_queue_size" json:"max_tenant_queue_size"`
	DispatcherWorkers   int           `yaml:"dispatcher_workers" json:"dispatcher_workers"`
	ShutdownTimeout     time.Duration `yaml:"shutdown_timeout" json:"shutdown_timeout"`
}

type LoggingConfig struct {
	Level    string `yaml:"level" json:"level"`
	Format   string `yaml:"format" json:"format"`
	Output   string `yaml:"output" json:"output"`
	FilePath string `yaml:"file_path,omitempty" json:"file_path,omitempty"`
}

type MetricsConfig struct {
	Enabled bool   `yaml:"enabled" json:"enabled"`
	Path    string `yaml:"path" json:"path"`
	Port    int    `yaml:"port" json:"port"`
}

// ObservabilityConfig controls OpenTelemetry tracing setup.
type ObservabilityConfig struct {
	ServiceName string         `yaml:"service_name" json:"service_name"`
	Tracing     TracingConfig  `yaml:"tracing" json:"tracing"`
}

type TracingConfig struct {
	Enabled      bool    `yaml:"enabled" json:"enabled"`
	Exporter     string  `yaml:"exporter" json:"exporter"` // stdout, otlp
	OTLPEndpoint string  `yaml:"otlp_endpoint" json:"otlp_endpoint"`
	SampleRate   float64 `yaml:"sample_rate" json:"sample_rate"`
}

// NewDefaultConfig creates a configuration with production-ready defaults.
func NewDefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Port:         8080,
			Host:         "0.0.0.0",
			ReadTimeout:  30 * time.Second,
			WriteTimeout: 30 * time.Second,
			IdleTimeout:  60 * time.Second,
			CORS: CORSConfig{
				Enabled:        true,
				AllowedOrigins: []string{"*"},
				AllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
				AllowedHeaders: []string{"*"},
				MaxAge:         86400,
			},
		},
		Engine: EngineConfig{
			MaxGlobalConcurrent: 100,
			MaxTenantQueueSize:  50,
			DispatcherWorkers:   4,
			ShutdownTimeout:     30 * time.Second,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
		Metrics: MetricsConfig{
			Enabled: true,
			Path:    "/metrics",
			Port:    9090,
		},
		Observability: ObservabilityConfig{
			ServiceName: "ratelimiter",
			Tracing: TracingConfig{
				Enabled:    false,
				Exporter:   "stdout",
				SampleRate: 1.0,
			},
		},
	}
}

func (c *Config) Validate() error {
	if err := c.Server.Validate(); err != nil {
		return fmt.Errorf("invalid server config: %w", err)
	}
	if err := c.Engine.Validate(); err != nil {
		return fmt.Errorf("invalid engine config: %w", err)
	}
	if err := c.Logging.Validate(); err != nil {
		return fmt.Errorf("invalid logging config: %w", err)
	}
	if err := c.Metrics.Validate(); err != nil {
		return fmt.Errorf("invalid metrics config: %w", err)
	}
	return nil
}

func (sc *ServerConfig) Validate() error {
	if sc.Port <= 0 || sc.Port > 65535 {
		return errors.New("port must be between 1 and 65535")
	}
	if sc.Host == "" {
		return errors.New("host cannot be empty")
	}
	if sc.ReadTimeout < 0 {
		return errors.New("read timeout cannot be negative")
	}
	if sc.WriteTimeout < 0 {
		return errors.New("write timeout cannot be negative")
	}
	if sc.IdleTimeout < 0 {
		return errors.New("idle timeout cannot be negative")
	}
	return nil
}

func (ec *EngineConfig) Validate() error {
	if ec.MaxGlobalConcurrent <= 0 {
		return errors.New("max_global_concurrent must be positive")
	}
	if ec.MaxTenantQueueSize <= 0 {
		return errors.New("max_tenant_queue_size must be positive")
	}
	if ec.DispatcherWorkers <= 0 {
		return errors.New("dispatcher_workers must be positive")
	}
	if ec.ShutdownTimeout < 0 {
		return errors.New("shutdown_timeout cannot be negative")
	}
	return nil
}

func (lc *LoggingConfig) Validate() error {
	validLevels := []string{"debug", "info", "warn", "error"}
	found := false
	for _, level := range validLevels {
		if lc.Level == level {
			found = true
			break
		}
	}
	if !found {
		return fmt.Errorf("invalid log level: %s", lc.Level)
	}

	validFormats := []string{"json", "text"}
	found = false
	for _, format := range validFormats {
		if lc.Format == format {
			found = true
			break
		}
	}
	if !found {
		return fmt.Errorf("invalid log format: %s", lc.Format)
	}

	validOutputs := []string{"stdout", "stderr", "file"}
	found = false
	for _, output := range validOutputs {
		if lc.Output == output {
			found = true
			break
		}
	}
	if !found {
		return fmt.Errorf("invalid log output: %s", lc.Output)
	}

	return nil
}

func (mc *MetricsConfig) Validate() error {
	if mc.Enabled && (mc.Port <= 0 || mc.Port > 65535) {
		return errors.New("metrics port must be between 1 and 65535")
	}
	return nil
}
