package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"spacebook/internal/models"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	App           AppConfig          `yaml:"app"`
	Database      DatabaseConfig     `yaml:"database"`
	Redis         RedisConfig        `yaml:"redis"`
	Backup        BackupConfig       `yaml:"backup"`
	Monitoring    MonitoringConfig   `yaml:"monitoring"`
	Logging       LoggingConfig      `yaml:"logging"`
	API           APIConfig          `yaml:"api"`
	Scheduling    SchedulingConfig   `yaml:"scheduling"`
	Notifications NotificationConfig `yaml:"notifications"`
	Exports       ExportConfig       `yaml:"exports"`
}

type APIConfig struct {
	HTTP      APIHTTPConfig      `yaml:"http"`
	Auth      APIAuthConfig      `yaml:"auth"`
	RateLimit APIRateLimitConfig `yaml:"rate_limit"`
}

type APIHTTPConfig struct {
	Port         int    `yaml:"port"`
	ReadTimeout  string `yaml:"read_timeout"`
	WriteTimeout string `yaml:"write_timeout"`
}

type APIAuthConfig struct {
	Enabled      bool           `yaml:"enabled"`
	HeaderAPIKey string         `yaml:"header_api_key"`
	HeaderExtra  string         `yaml:"header_extra"`
	HeaderActor  string         `yaml:"header_actor"`
	APIKeys      []APIClientKey `yaml:"api_keys"`
}

type APIClientKey struct {
	Key         string   `yaml:"key"`
	Extra       string   `yaml:"extra"`
	Name        string   `yaml:"name"`
	Permissions []string `yaml:"permissions"`
}

type APIRateLimitConfig struct {
	RPS   float64 `yaml:"rps"`
	Burst int     `yaml:"burst"`
}

type ExportConfig struct {
	Path      string `yaml:"path"`
	SheetName string `yaml:"sheet_name"`
}

type AppConfig struct {
	Name        string `yaml:"name"`
	Environment string `yaml:"environment"`
	Version     string `yaml:"version"`
	Timezone    string `yaml:"timezone"`
}

type DatabaseConfig struct {
	Path string `yaml:"path"`
}

type RedisConfig struct {
	Address  string `yaml:"address"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	PoolSize int    `yaml:"pool_size"`
}

type BackupConfig struct {
	Enabled       bool   `yaml:"enabled"`
	Interval      string `yaml:"interval"`
	RetentionDays int    `yaml:"retention_days"`
	StoragePath   string `yaml:"storage_path"`
}

type MonitoringConfig struct {
	PrometheusEnabled bool `yaml:"prometheus_enabled"`
	PrometheusPort    int  `yaml:"prometheus_port"`
}

type LoggingConfig struct {
	Level    string `yaml:"level"`
	Format   string `yaml:"format"`
	Output   string `yaml:"output"`
	FilePath string `yaml:"file_path"`
}

// SchedulingConfig tunes the reservation engine.
type SchedulingConfig struct {
	CascadeRetries int `yaml:"cascade_retries"`
	LockTTLSeconds int `yaml:"lock_ttl_seconds"`
	LockWaitSecs   int `yaml:"lock_wait_seconds"`
}

func (s SchedulingConfig) LockTTL() time.Duration {
	return time.Duration(s.LockTTLSeconds) * time.Second
}

func (s SchedulingConfig) LockWait() time.Duration {
	return time.Duration(s.LockWaitSecs) * time.Second
}

type NotificationConfig struct {
	SMTP   SMTPConfig   `yaml:"smtp"`
	Worker WorkerConfig `yaml:"worker"`
}

type SMTPConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	From     string `yaml:"from"`
	FromName string `yaml:"from_name"`
	TLS      bool   `yaml:"tls"`
}

type WorkerConfig struct {
	MaxRetries   int    `yaml:"max_retries"`
	InitialDelay string `yaml:"initial_delay"`
	MaxDelay     string `yaml:"max_delay"`
	PollInterval string `yaml:"poll_interval"`
}

func Load(configPath string) (*Config, error) {
	// Загружаем .env файл если существует
	if err := godotenv.Load(".env"); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, err
	}

	// Предварительная замена переменных окружения в YAML
	expandedData := []byte(os.ExpandEnv(string(data)))

	var config Config
	if err := yaml.Unmarshal(expandedData, &config); err != nil {
		return nil, err
	}

	config.applyDefaults()

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &config, nil
}

func (c *Config) Validate() error {
	if c.Database.Path == "" {
		return errors.New("database path is required")
	}

	if c.Scheduling.CascadeRetries < 1 {
		return errors.New("scheduling.cascade_retries must be at least 1")
	}

	if c.Notifications.SMTP.Enabled {
		if c.Notifications.SMTP.Host == "" {
			return errors.New("notifications.smtp.host is required when smtp is enabled")
		}
		if c.Notifications.SMTP.From == "" {
			return errors.New("notifications.smtp.from is required when smtp is enabled")
		}
	}

	for _, d := range []struct{ name, value string }{
		{"backup.interval", c.Backup.Interval},
		{"api.http.read_timeout", c.API.HTTP.ReadTimeout},
		{"api.http.write_timeout", c.API.HTTP.WriteTimeout},
		{"notifications.worker.initial_delay", c.Notifications.Worker.InitialDelay},
		{"notifications.worker.max_delay", c.Notifications.Worker.MaxDelay},
		{"notifications.worker.poll_interval", c.Notifications.Worker.PollInterval},
	} {
		if d.value == "" {
			continue
		}
		if _, err := time.ParseDuration(d.value); err != nil {
			return fmt.Errorf("%s: %w", d.name, err)
		}
	}

	return ValidateAPIKeys(c.API.Auth)
}

func ValidateAPIKeys(auth APIAuthConfig) error {
	if !auth.Enabled {
		return nil
	}
	if len(auth.APIKeys) == 0 {
		return errors.New("api.auth.api_keys must not be empty when auth is enabled")
	}
	seen := make(map[string]bool)
	for _, k := range auth.APIKeys {
		if k.Key == "" {
			return fmt.Errorf("api key '%s' has empty key", k.Name)
		}
		if seen[k.Key] {
			return fmt.Errorf("duplicate api key for client '%s'", k.Name)
		}
		seen[k.Key] = true
	}
	return nil
}

func (c *Config) applyDefaults() {
	if c.App.Name == "" {
		c.App.Name = "spacebook"
	}
	if c.API.HTTP.Port == 0 {
		c.API.HTTP.Port = 8080
	}
	if c.Monitoring.PrometheusEnabled && c.Monitoring.PrometheusPort == 0 {
		c.Monitoring.PrometheusPort = 9090
	}
	if c.API.Auth.HeaderAPIKey == "" {
		c.API.Auth.HeaderAPIKey = "x-api-key"
	}
	if c.API.Auth.HeaderExtra == "" {
		c.API.Auth.HeaderExtra = "x-api-extra"
	}
	if c.API.Auth.HeaderActor == "" {
		c.API.Auth.HeaderActor = "x-actor-id"
	}

	if c.Scheduling.CascadeRetries == 0 {
		c.Scheduling.CascadeRetries = models.DefaultCascadeRetries
	}
	if c.Scheduling.LockTTLSeconds == 0 {
		c.Scheduling.LockTTLSeconds = models.DefaultLockTTL
	}
	if c.Scheduling.LockWaitSecs == 0 {
		c.Scheduling.LockWaitSecs = models.DefaultLockWait
	}

	if c.Notifications.SMTP.Port == 0 {
		c.Notifications.SMTP.Port = 587
	}
	if c.Notifications.Worker.MaxRetries == 0 {
		c.Notifications.Worker.MaxRetries = 5
	}
	if c.Notifications.Worker.InitialDelay == "" {
		c.Notifications.Worker.InitialDelay = "2s"
	}
	if c.Notifications.Worker.MaxDelay == "" {
		c.Notifications.Worker.MaxDelay = "1m"
	}
	if c.Notifications.Worker.PollInterval == "" {
		c.Notifications.Worker.PollInterval = "30s"
	}

	if c.Exports.SheetName == "" {
		c.Exports.SheetName = "Reservations"
	}
}
