// Package config loads the settlement layer configuration from the environment,
// an optional .env file and an optional YAML overlay.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joeshaw/envdecode"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/R3E-Network/rental_settlement/pkg/logger"
)

// FileEnv names the environment variable pointing at the YAML overlay.
const FileEnv = "SETTLEMENT_CONFIG_FILE"

// Config is the root configuration passed into constructors at startup.
type Config struct {
	Server    ServerConfig         `yaml:"server"`
	Database  DatabaseConfig       `yaml:"database"`
	Logging   logger.LoggingConfig `yaml:"logging"`
	Ledger    LedgerConfig         `yaml:"ledger"`
	Directory DirectoryConfig      `yaml:"directory"`
	Redis     RedisConfig          `yaml:"redis"`
	Events    EventsConfig         `yaml:"events"`
	Auth      AuthConfig           `yaml:"auth"`
	RateLimit RateLimitConfig      `yaml:"rate_limit"`
	Audit     AuditConfig          `yaml:"audit"`
}

type ServerConfig struct {
	Host string `env:"SERVER_HOST,default=0.0.0.0" yaml:"host"`
	Port int    `env:"SERVER_PORT,default=8080" yaml:"port"`
}

// DatabaseConfig selects the record store. An empty DSN selects the in-memory store.
type DatabaseConfig struct {
	Driver          string `env:"DATABASE_DRIVER,default=postgres" yaml:"driver"`
	DSN             string `env:"DATABASE_URL" yaml:"dsn"`
	MaxOpenConns    int    `env:"DATABASE_MAX_OPEN_CONNS,default=20" yaml:"max_open_conns"`
	MaxIdleConns    int    `env:"DATABASE_MAX_IDLE_CONNS,default=5" yaml:"max_idle_conns"`
	ConnMaxLifetime int    `env:"DATABASE_CONN_MAX_LIFETIME,default=300" yaml:"conn_max_lifetime"`
	Migrate         bool   `env:"DATABASE_MIGRATE,default=true" yaml:"migrate"`
}

// LedgerConfig configures the ledger gateway transport.
type LedgerConfig struct {
	Transport       string        `env:"LEDGER_TRANSPORT,default=http" yaml:"transport"`
	BaseURL         string        `env:"LEDGER_BASE_URL" yaml:"base_url"`
	RPCURL          string        `env:"LEDGER_RPC_URL" yaml:"rpc_url"`
	ContractHash    string        `env:"LEDGER_CONTRACT_HASH" yaml:"contract_hash"`
	Timeout         time.Duration `env:"LEDGER_TIMEOUT,default=30s" yaml:"timeout"`
	PaymentFunction string        `env:"LEDGER_PAYMENT_FUNCTION,default=payRent" yaml:"payment_function"`
	// WaitForExecution makes the rpc transport poll the application log
	// of the broadcast transaction before reporting a receipt.
	WaitForExecution bool `env:"LEDGER_RPC_WAIT,default=true" yaml:"wait_for_execution"`
}

type DirectoryConfig struct {
	BaseURL  string        `env:"DIRECTORY_BASE_URL" yaml:"base_url"`
	Timeout  time.Duration `env:"DIRECTORY_TIMEOUT,default=2s" yaml:"timeout"`
	CacheTTL time.Duration `env:"DIRECTORY_CACHE_TTL,default=5m" yaml:"cache_ttl"`
}

type RedisConfig struct {
	Addr     string `env:"REDIS_ADDR" yaml:"addr"`
	Password string `env:"REDIS_PASSWORD" yaml:"password"`
	DB       int    `env:"REDIS_DB,default=0" yaml:"db"`
}

// EventsConfig configures notification event transport. NameServers are
// semicolon separated in the environment.
type EventsConfig struct {
	Transport     string   `env:"EVENTS_TRANSPORT,default=memory" yaml:"transport"`
	NameServers   []string `env:"ROCKETMQ_NAME_SERVERS" yaml:"name_servers"`
	Namespace     string   `env:"ROCKETMQ_NAMESPACE" yaml:"namespace"`
	TopicPrefix   string   `env:"ROCKETMQ_TOPIC_PREFIX,default=realestate" yaml:"topic_prefix"`
	AccessKey     string   `env:"ROCKETMQ_ACCESS_KEY" yaml:"access_key"`
	SecretKey     string   `env:"ROCKETMQ_SECRET_KEY" yaml:"secret_key"`
	ConsumerGroup string   `env:"ROCKETMQ_CONSUMER_GROUP,default=notification-service" yaml:"consumer_group"`
	QueueSize     int      `env:"EVENTS_QUEUE_SIZE,default=256" yaml:"queue_size"`
	Consume       bool     `env:"EVENTS_CONSUME,default=true" yaml:"consume"`
}

// AuthConfig enables bearer-token auth when JWTSecret is set.
type AuthConfig struct {
	JWTSecret string   `env:"JWT_SECRET" yaml:"jwt_secret"`
	SkipPaths []string `env:"AUTH_SKIP_PATHS,default=/health;/metrics" yaml:"skip_paths"`
}

type RateLimitConfig struct {
	RequestsPerSecond int `env:"RATE_LIMIT_RPS,default=50" yaml:"requests_per_second"`
	Burst             int `env:"RATE_LIMIT_BURST,default=100" yaml:"burst"`
}

type AuditConfig struct {
	Schedule   string        `env:"AUDIT_SCHEDULE,default=@every 1m" yaml:"schedule"`
	PendingAge time.Duration `env:"AUDIT_PENDING_AGE,default=5m" yaml:"pending_age"`
}

// Load reads .env (if present), the environment and the YAML overlay named by
// SETTLEMENT_CONFIG_FILE, then validates the result.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	var cfg Config
	if err := envdecode.Decode(&cfg); err != nil && !errors.Is(err, envdecode.ErrNoTargetFieldsAreSet) {
		return nil, fmt.Errorf("decode environment: %w", err)
	}

	if path := strings.TrimSpace(os.Getenv(FileEnv)); path != "" {
		if err := cfg.mergeFile(path); err != nil {
			return nil, err
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// mergeFile overlays values present in the YAML file on top of cfg.
func (c *Config) mergeFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}
	return nil
}

// Validate checks cross-field constraints.
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server port %d out of range", c.Server.Port)
	}
	switch strings.ToLower(c.Ledger.Transport) {
	case "http", "":
	case "rpc":
		if c.Ledger.RPCURL == "" || c.Ledger.ContractHash == "" {
			return fmt.Errorf("ledger rpc transport requires LEDGER_RPC_URL and LEDGER_CONTRACT_HASH")
		}
	default:
		return fmt.Errorf("unknown ledger transport %q", c.Ledger.Transport)
	}
	switch c.Ledger.PaymentFunction {
	case "payRent", "processPayment", "":
	default:
		return fmt.Errorf("ledger payment function must be payRent or processPayment, got %q", c.Ledger.PaymentFunction)
	}
	switch strings.ToLower(c.Events.Transport) {
	case "memory", "":
	case "rocketmq":
		if len(c.Events.NameServers) == 0 {
			return fmt.Errorf("rocketmq transport requires ROCKETMQ_NAME_SERVERS")
		}
	default:
		return fmt.Errorf("unknown events transport %q", c.Events.Transport)
	}
	if c.Directory.Timeout <= 0 {
		c.Directory.Timeout = 2 * time.Second
	}
	if c.Ledger.Timeout <= 0 {
		c.Ledger.Timeout = 30 * time.Second
	}
	return nil
}

// Addr returns host:port for the HTTP listener.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}
