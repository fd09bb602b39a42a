package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"ratelimiter/internal/models"

	"gopkg.in/yaml.v3"
)

// Load loads configuration from file and environment variables.
func Load(configPath string) (*models.Config, error) {
	config := models.NewDefaultConfig()

	if configPath != "" {
		if err := loadFromFile(config, configPath); err != nil {
			return nil, fmt.Errorf("failed to load config from file: %w", err)
		}
	}

	loadFromEnvironment(config)

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return config, nil
}

func loadFromFile(config *models.Config, filePath string) error {
	if _, err := os.Stat(filePath); os.IsNotExist(err) {
		return fmt.Errorf("config file not found: %s", filePath)
	}
	data, err := os.ReadFile(filePath)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, config); err != nil {
		return fmt.Errorf("failed to parse YAML config: %w", err)
	}
	return nil
}

// loadFromEnvironment overrides configuration from RATELIMITER_* environment variables.
func loadFromEnvironment(config *models.Config) {
	if port := os.Getenv("RATELIMITER_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			config.Server.Port = p
		}
	}
	if host := os.Getenv("RATELIMITER_HOST"); host != "" {
		config.Server.Host = host
	}
	if timeout := os.Getenv("RATELIMITER_READ_TIMEOUT"); timeout != "" {
		if d, err := time.ParseDuration(timeout); err == nil {
			config.Server.ReadTimeout = d
		}
	}
	if timeout := os.Getenv("RATELIMITER_WRITE_TIMEOUT"); timeout != "" {
		if d, err := time.ParseDuration(timeout); err == nil {
			config.Server.WriteTimeout = d
		}
	}
	if timeout := os.Getenv("RATELIMITER_IDLE_TIMEOUT"); timeout != "" {
		if d, err := time.ParseDuration(timeout); err == nil {
			config.Server.IdleTimeout = d
		}
	}
	if cors := os.Getenv("RATELIMITER_CORS_ENABLED"); cors != "" {
		config.Server.CORS.Enabled = strings.ToLower(cors) == "true"
	}

	if maxConc := os.Getenv("RATELIMITER_MAX_GLOBAL_CONCURRENT"); maxConc != "" {
		if v, err := strconv.Atoi(maxConc); err == nil {
			config.Engine.MaxGlobalConcurrent = v
		}
	}
	if maxQueue := os.Getenv("RATELIMITER_MAX_TENANT_QUEUE_SIZE"); maxQueue != "" {
		if v, err := strconv.Atoi(maxQueue); err == nil {
			config.Engine.MaxTenantQueueSize = v
		}
	}
	if workers := os.Getenv("RATELIMITER_DISPATCHER_WORKERS"); workers != "" {
		if v, err := strconv.Atoi(workers); err == nil {
			config.Engine.DispatcherWorkers = v
		}
	}
	if shutdown := os.Getenv("RATELIMITER_SHUTDOWN_TIMEOUT"); shutdown != "" {
		if d, err := time.ParseDuration(shutdown); err == nil {
			config.Engine.ShutdownTimeout = d
		}
	}

	if level := os.Getenv("RATELIMITER_LOG_LEVEL"); level != "" {
		config.Logging.Level = level
	}
	if format := os.Getenv("RATELIMITER_LOG_FORMAT"); format != "" {
		config.Logging.Format = format
	}
	if output := os.Getenv("RATELIMITER_LOG_OUTPUT"); output != "" {
		config.Logging.Output = output
	}

	if metrics := os.Getenv("RATELIMITER_METRICS_ENABLED"); metrics != "" {
		config.Metrics.Enabled = strings.ToLower(metrics) == "true"
	}
	if path := os.Getenv("RATELIMITER_METRICS_PATH"); path != "" {
		config.Metrics.Path = path
	}
	if port := os.Getenv("RATELIMITER_METRICS_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			config.Metrics.Port = p
		}
	}

	if svc := os.Getenv("RATELIMITER_SERVICE_NAME"); svc != "" {
		config.Observability.ServiceName = svc
	}
	if tracing := os.Getenv("RATELIMITER_TRACING_ENABLED"); tracing != "" {
		config.Observability.Tracing.Enabled = strings.ToLower(tracing) == "true"
	}
	if exporter := os.Getenv("RATELIMITER_TRACING_EXPORTER"); exporter != "" {
		config.Observability.Tracing.Exporter = exporter
	}
	if endpoint := os.Getenv("RATELIMITER_OTLP_ENDPOINT"); endpoint != "" {
		config.Observability.Tracing.OTLPEndpoint = endpoint
	}
	if rate := os.Getenv("RATELIMITER_TRACING_SAMPLE_RATE"); rate != "" {
		if f, err := strconv.ParseFloat(rate, 64); err == nil {
			config.Observability.Tracing.SampleRate = f
		}
	}
}

// SaveExample writes an example configuration file with production-ready defaults.
func SaveExample(filePath string) error {
	if err := os.MkdirAll(filepath.Dir(filePath), 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	config := models.NewDefaultConfig()
	config.Observability.Tracing.Enabled = true
	config.Observability.Tracing.Exporter = "otlp"
	config.Observability.Tracing.OTLPEndpoint = "localhost:4317"

	data, err := yaml.Marshal(config)
	if err != nil {
		return fmt.Errorf("failed to marshal config to YAML: %w", err)
	}

	if err := os.WriteFile(filePath, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}
