package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"staybook/internal/models"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	App          AppConfig          `yaml:"app"`
	Database     DatabaseConfig     `yaml:"database"`
	Redis        RedisConfig        `yaml:"redis"`
	Backup       BackupConfig       `yaml:"backup"`
	Monitoring   MonitoringConfig   `yaml:"monitoring"`
	Logging      LoggingConfig      `yaml:"logging"`
	API          APIConfig          `yaml:"api"`
	Google       GoogleConfig       `yaml:"google"`
	CalendarSync CalendarSyncConfig `yaml:"calendar_sync"`
	Telegram     TelegramConfig     `yaml:"telegram"`
	RabbitMQ     RabbitMQConfig     `yaml:"rabbitmq"`
	Idempotency  IdempotencyConfig  `yaml:"idempotency"`
	Catalog      CatalogConfig      `yaml:"catalog"`
}

type APIConfig struct {
	Enabled   bool               `yaml:"enabled"`
	HTTP      APIHTTPConfig      `yaml:"http"`
	GRPC      APIGRPCConfig      `yaml:"grpc"`
	Auth      APIAuthConfig      `yaml:"auth"`
	RateLimit APIRateLimitConfig `yaml:"rate_limit"`
}

type APIHTTPConfig struct {
	Enabled bool `yaml:"enabled"`
	Port    int  `yaml:"port"`
}

type APIGRPCConfig struct {
	Enabled    bool         `yaml:"enabled"`
	Port       int          `yaml:"port"`
	Reflection bool         `yaml:"reflection"`
	TLS        APITLSConfig `yaml:"tls"`
}

type APITLSConfig struct {
	Enabled           bool   `yaml:"enabled"`
	CertFile          string `yaml:"cert_file"`
	KeyFile           string `yaml:"key_file"`
	ClientCAFile      string `yaml:"client_ca_file"`
	RequireClientCert bool   `yaml:"require_client_cert"`
}

type APIAuthConfig struct {
	Enabled      bool           `yaml:"enabled"`
	HeaderAPIKey string         `yaml:"header_api_key"`
	HeaderExtra  string         `yaml:"header_extra"`
	APIKeys      []APIClientKey `yaml:"api_keys"`
}

// APIClientKey is one configured API consumer. Permissions use the
// "read:bookings" / "write:bookings" / "admin:bookings" / "read:catalog" scheme.
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

type AppConfig struct {
	Name        string `yaml:"name"`
	Environment string `yaml:"environment"`
	Version     string `yaml:"version"`
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
	Enabled       bool          `yaml:"enabled"`
	Interval      time.Duration `yaml:"interval"`
	RetentionDays int           `yaml:"retention_days"`
	StoragePath   string        `yaml:"storage_path"`
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

type GoogleConfig struct {
	CredentialsFile string `yaml:"credentials_file"`
}

// CalendarSyncConfig controls the best-effort push of confirmed bookings to
// external calendars.
type CalendarSyncConfig struct {
	Enabled       bool          `yaml:"enabled"`
	Timeout       time.Duration `yaml:"timeout"`
	QueueKey      string        `yaml:"queue_key"`
	DeadLetterKey string        `yaml:"dead_letter_key"`
	PollInterval  time.Duration `yaml:"poll_interval"`
}

type TelegramConfig struct {
	BotToken string  `yaml:"bot_token"`
	ChatIDs  []int64 `yaml:"chat_ids"`
	Debug    bool    `yaml:"debug"`
	// Commands enables the operator bot for ChatIDs.
	Commands bool    `yaml:"commands"`
}

type RabbitMQConfig struct {
	URL      string `yaml:"url"`
	Exchange string `yaml:"exchange"`
}

type IdempotencyConfig struct {
	TTL time.Duration `yaml:"ttl"`
}

// CatalogConfig seeds the property and customer tables on start-up.
type CatalogConfig struct {
	Properties []models.Property `yaml:"properties"`
	Customers  []models.Customer `yaml:"customers"`
}

func Load(configPath string) (*Config, error) {
	if err := godotenv.Load(".env"); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, err
	}

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

	if c.CalendarSync.Enabled && c.CalendarSync.Timeout <= 0 {
		return errors.New("calendar_sync.timeout must be positive")
	}

	if c.RabbitMQ.URL != "" && c.RabbitMQ.Exchange == "" {
		return errors.New("rabbitmq.exchange is required when rabbitmq.url is set")
	}

	return ValidateCatalog(c.Catalog)
}

// ValidateCatalog rejects empty and duplicate property or customer ids.
func ValidateCatalog(catalog CatalogConfig) error {
	propertyIDs := make(map[string]bool)
	for _, p := range catalog.Properties {
		if p.ID == "" {
			return fmt.Errorf("property '%s' has empty ID", p.Name)
		}
		if propertyIDs[p.ID] {
			return fmt.Errorf("duplicate property ID found: %s", p.ID)
		}
		propertyIDs[p.ID] = true
	}

	customerIDs := make(map[string]bool)
	for _, cu := range catalog.Customers {
		if cu.ID == "" {
			return fmt.Errorf("customer '%s' has empty ID", cu.Name)
		}
		if customerIDs[cu.ID] {
			return fmt.Errorf("duplicate customer ID found: %s", cu.ID)
		}
		customerIDs[cu.ID] = true
	}
	return nil
}

func (c *Config) applyDefaults() {
	if c.App.Name == "" {
		c.App.Name = "staybook"
	}
	if c.API.GRPC.Port == 0 {
		c.API.GRPC.Port = 8081
	}
	if c.API.HTTP.Port == 0 {
		c.API.HTTP.Port = 8080
	}
	if c.Monitoring.PrometheusEnabled && c.Monitoring.PrometheusPort == 0 {
		c.Monitoring.PrometheusPort = 9090
	}
	if !c.API.HTTP.Enabled && c.API.Enabled {
		c.API.HTTP.Enabled = true
	}
	if c.API.Auth.HeaderAPIKey == "" {
		c.API.Auth.HeaderAPIKey = "x-api-key"
	}
	if c.API.Auth.HeaderExtra == "" {
		c.API.Auth.HeaderExtra = "x-api-extra"
	}

	if c.CalendarSync.Timeout == 0 {
		c.CalendarSync.Timeout = models.DefaultSyncTimeout * time.Second
	}
	if c.CalendarSync.QueueKey == "" {
		c.CalendarSync.QueueKey = "staybook:calendar_sync"
	}
	if c.CalendarSync.DeadLetterKey == "" {
		c.CalendarSync.DeadLetterKey = "staybook:calendar_sync:dead"
	}
	if c.CalendarSync.PollInterval == 0 {
		c.CalendarSync.PollInterval = 30 * time.Second
	}

	if c.Idempotency.TTL == 0 {
		c.Idempotency.TTL = models.DefaultIdempotencyTTL * time.Second
	}
	if c.Backup.Interval == 0 {
		c.Backup.Interval = 24 * time.Hour
	}
	if c.Backup.StoragePath == "" {
		c.Backup.StoragePath = "backups"
	}
}
