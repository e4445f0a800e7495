package config

import (
	"fmt"
	"os"
	"reflect"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for the service
type Config struct {
	Environment string `mapstructure:"environment"`
	LogLevel    string `mapstructure:"logLevel"`
	Server      struct {
		Port int `mapstructure:"port"`
	} `mapstructure:"server"`
	Webhook struct {
		Secret string `mapstructure:"secret"` // shared secret required in X-Webhook-Secret; empty disables auth
	} `mapstructure:"webhook"`
	Database struct {
		PostgresDSN         string `mapstructure:"postgresDSN"`
		PostgresAutoMigrate bool   `mapstructure:"postgresAutoMigrate"`
	} `mapstructure:"database"`
	Summarizer SummarizerConfig `mapstructure:"summarizer"`
	NATS       struct {
		Enabled bool   `mapstructure:"enabled"`
		URL     string `mapstructure:"url"`
		Stream  string `mapstructure:"stream"`  // stream holding call notifications
		Subject string `mapstructure:"subject"` // base subject for call updates (e.g. v1.calls.updated)
	} `mapstructure:"nats"`
	Owner struct {
		Default string `mapstructure:"default"` // owner applied to records created from webhook events
	} `mapstructure:"owner"`
	Metrics struct {
		Enabled bool `mapstructure:"enabled"`
	} `mapstructure:"metrics"`
	WorkerPools struct {
		PostCall PostCallWorkerPoolConfig `mapstructure:"postCall"`
	} `mapstructure:"workerPools"`
}

// SummarizerConfig holds configuration for the summarization collaborator
type SummarizerConfig struct {
	BaseURL string        `mapstructure:"baseURL"`
	APIKey  string        `mapstructure:"apiKey"`
	Model   string        `mapstructure:"model"`
	Timeout time.Duration `mapstructure:"timeout"`
}

// PostCallWorkerPoolConfig holds configuration for the post-call worker pool
type PostCallWorkerPoolConfig struct {
	PoolSize   int           `mapstructure:"poolSize"`   // Number of workers
	QueueSize  int           `mapstructure:"queueSize"`  // Task queue buffer size
	MaxBlock   time.Duration `mapstructure:"maxBlock"`   // Max time to block when submitting if queue full
	ExpiryTime time.Duration `mapstructure:"expiryTime"` // Idle worker expiry time
}

// LoadConfig reads configuration from file or environment variables
func LoadConfig(path string) (*Config, error) {
	v := viper.New()

	// Set defaults
	v.SetDefault("environment", "development")
	v.SetDefault("logLevel", "info")
	v.SetDefault("server.port", 8080)
	v.SetDefault("metrics.enabled", true)
	v.SetDefault("database.postgresAutoMigrate", true)

	// Summarizer defaults
	v.SetDefault("summarizer.baseURL", "https://ai.gateway.lovable.dev/v1")
	v.SetDefault("summarizer.model", "google/gemini-2.5-flash")
	v.SetDefault("summarizer.timeout", 30*time.Second)

	// NATS defaults
	v.SetDefault("nats.enabled", false)
	v.SetDefault("nats.stream", "voice_calls")
	v.SetDefault("nats.subject", "v1.calls.updated")

	// WorkerPools defaults
	v.SetDefault("workerPools.postCall.poolSize", 10)
	v.SetDefault("workerPools.postCall.queueSize", 1000)
	v.SetDefault("workerPools.postCall.maxBlock", time.Second)
	v.SetDefault("workerPools.postCall.expiryTime", time.Minute)

	// Config file settings
	v.SetConfigName("default")
	v.SetConfigType("yaml")

	// Add lookup paths
	if path != "" {
		v.AddConfigPath(path)
	}
	v.AddConfigPath(".")
	v.AddConfigPath("./internal/config")
	v.AddConfigPath("/etc/voice-events-processor")

	// Try to read from config file
	if err := v.ReadInConfig(); err != nil {
		// It's ok if config file is not found, we'll use env vars
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	// Override with environment variables
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Map environment variables to config fields
	bindEnvs(v, Config{})

	// Read directly from ENV for critical values
	if dsn := os.Getenv("POSTGRES_DSN"); dsn != "" {
		v.Set("database.postgresDSN", dsn)
	}
	if lgLevel := os.Getenv("LOG_LEVEL"); lgLevel != "" {
		v.Set("logLevel", lgLevel)
	}
	if url := os.Getenv("NATS_URL"); url != "" {
		v.Set("nats.url", url)
	}
	if secret := os.Getenv("WEBHOOK_SECRET"); secret != "" {
		v.Set("webhook.secret", secret)
	}
	if key := os.Getenv("SUMMARIZER_API_KEY"); key != "" {
		v.Set("summarizer.apiKey", key)
	}
	if owner := os.Getenv("OWNER_ID"); owner != "" {
		v.Set("owner.default", owner)
	}

	// Unmarshal config
	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("unable to decode config into struct: %w", err)
	}

	return &config, nil
}

// bindEnvs recursively binds environment variables to config struct fields
func bindEnvs(v *viper.Viper, cfg interface{}, parts ...string) {
	ifv := reflect.ValueOf(cfg)
	ift := reflect.TypeOf(cfg)
	for i := 0; i < ift.NumField(); i++ {
		fieldVal := ifv.Field(i)
		fieldType := ift.Field(i)

		tag := fieldType.Tag.Get("mapstructure")
		if tag == "" || tag == "-" {
			continue
		}

		path := append(parts, tag)
		key := strings.Join(path, ".")

		if fieldType.Type.Kind() == reflect.Struct {
			bindEnvs(v, fieldVal.Interface(), path...)
			continue
		}

		_ = v.BindEnv(key)
	}
}
