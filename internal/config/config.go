package config

import (
	"strings"

	"github.com/spf13/viper"
)

// Config holds all configuration for the application
type Config struct {
	Server         ServerConfig         `mapstructure:"server"`
	Database       DatabaseConfig       `mapstructure:"database"`
	Redis          RedisConfig          `mapstructure:"redis"`
	Logging        LoggingConfig        `mapstructure:"logging"`
	Auth           AuthConfig           `mapstructure:"auth"`
	Provider       ProviderConfig       `mapstructure:"provider"`
	CORS           CORSConfig           `mapstructure:"cors"`
	Usage          UsageConfig          `mapstructure:"usage"`
	Reconciliation ReconciliationConfig `mapstructure:"reconciliation"`
	Idempotency    IdempotencyConfig    `mapstructure:"idempotency"`
}

// ServerConfig holds server configuration
type ServerConfig struct {
	Port         string `mapstructure:"port"`
	Host         string `mapstructure:"host"`
	ReadTimeout  int    `mapstructure:"read_timeout"`
	WriteTimeout int    `mapstructure:"write_timeout"`
	IdleTimeout  int    `mapstructure:"idle_timeout"`
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	DBName   string `mapstructure:"dbname"`
	SSLMode  string `mapstructure:"sslmode"`

	MaxOpenConns    int `mapstructure:"max_open_conns"`
	MaxIdleConns    int `mapstructure:"max_idle_conns"`
	ConnMaxLifetime int `mapstructure:"conn_max_lifetime"`
	ConnMaxIdleTime int `mapstructure:"conn_max_idle_time"`
}

// RedisConfig holds Redis configuration. Timeouts are in milliseconds so
// idempotency claims fail fast instead of holding a document action.
type RedisConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`

	PoolSize     int `mapstructure:"pool_size"`
	MinIdleConns int `mapstructure:"min_idle_conns"`
	DialTimeout  int `mapstructure:"dial_timeout_ms"`
	ReadTimeout  int `mapstructure:"read_timeout_ms"`
	WriteTimeout int `mapstructure:"write_timeout_ms"`
	PoolTimeout  int `mapstructure:"pool_timeout_ms"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// AuthConfig holds bearer token verification settings. Tokens are issued by
// the identity provider and signed with a shared HMAC secret.
type AuthConfig struct {
	JWTSecret string `mapstructure:"jwt_secret"`
	Issuer    string `mapstructure:"issuer"`
	TokenTTL  int    `mapstructure:"token_ttl"`
}

// ProviderConfig holds the signing provider connection settings
type ProviderConfig struct {
	BaseURL        string `mapstructure:"base_url"`
	APIKey         string `mapstructure:"api_key"`
	OrganizationID string `mapstructure:"organization_id"`
	Timeout        int    `mapstructure:"timeout"`
	MaxFileBytes   int    `mapstructure:"max_file_bytes"`
}

// CORSConfig holds the origin allow-list for browser callers
type CORSConfig struct {
	AllowedOrigins []string `mapstructure:"allowed_origins"`
	AllowedMethods []string `mapstructure:"allowed_methods"`
	AllowedHeaders []string `mapstructure:"allowed_headers"`
	MaxAge         int      `mapstructure:"max_age"`
}

// UsageConfig holds plan usage evaluation settings
type UsageConfig struct {
	Timezone string `mapstructure:"timezone"`
}

// ReconciliationConfig holds the cache reconciliation sweep settings
type ReconciliationConfig struct {
	Enabled     bool `mapstructure:"enabled"`
	Workers     int  `mapstructure:"workers"`
	Interval    int  `mapstructure:"interval"`
	MaxAttempts int  `mapstructure:"max_attempts"`
}

// IdempotencyConfig holds settings for replay protection on document creation.
// ClaimTTL bounds how long an unfinished request holds its key.
type IdempotencyConfig struct {
	Enabled  bool `mapstructure:"enabled"`
	TTL      int  `mapstructure:"ttl"`
	ClaimTTL int  `mapstructure:"claim_ttl"`
}

// LoadConfig loads configuration from environment and config files
func LoadConfig() (*Config, error) {
	v := viper.New()

	v.SetDefault("server.port", "8080")
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.read_timeout", 30)
	v.SetDefault("server.write_timeout", 60)
	v.SetDefault("server.idle_timeout", 120)
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "")
	v.SetDefault("database.password", "")
	v.SetDefault("database.dbname", "easy_doc_signer")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.max_open_conns", 25)
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.conn_max_lifetime", 300)
	v.SetDefault("database.conn_max_idle_time", 60)
	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.pool_size", 20)
	v.SetDefault("redis.min_idle_conns", 4)
	v.SetDefault("redis.dial_timeout_ms", 2000)
	v.SetDefault("redis.read_timeout_ms", 500)
	v.SetDefault("redis.write_timeout_ms", 500)
	v.SetDefault("redis.pool_timeout_ms", 1000)
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("auth.jwt_secret", "")
	v.SetDefault("auth.issuer", "easy-doc-signer")
	v.SetDefault("auth.token_ttl", 3600)
	v.SetDefault("provider.base_url", "https://api.signer.lacunasoftware.com/api")
	v.SetDefault("provider.api_key", "")
	v.SetDefault("provider.organization_id", "")
	v.SetDefault("provider.timeout", 30)
	v.SetDefault("provider.max_file_bytes", 20*1024*1024)
	v.SetDefault("cors.allowed_origins", []string{"http://localhost:5173"})
	v.SetDefault("cors.allowed_methods", []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"})
	v.SetDefault("cors.allowed_headers", []string{"Authorization", "Content-Type", "Idempotency-Key", "X-Client-Info", "Apikey"})
	v.SetDefault("cors.max_age", 86400)
	v.SetDefault("usage.timezone", "America/Sao_Paulo")
	v.SetDefault("reconciliation.enabled", true)
	v.SetDefault("reconciliation.workers", 2)
	v.SetDefault("reconciliation.interval", 60)
	v.SetDefault("reconciliation.max_attempts", 5)
	v.SetDefault("idempotency.enabled", true)
	v.SetDefault("idempotency.ttl", 86400)
	v.SetDefault("idempotency.claim_ttl", 120)

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, err
	}

	return &config, nil
}

// IsOriginAllowed reports whether origin is on the CORS allow-list
func (c CORSConfig) IsOriginAllowed(origin string) bool {
	if origin == "" {
		return false
	}
	for _, allowed := range c.AllowedOrigins {
		if allowed == origin {
			return true
		}
	}
	return false
}
