package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config top-level struct
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Postgres  PostgresConfig  `yaml:"postgres"`
	Redis     RedisConfig     `yaml:"redis"`
	Kafka     KafkaConfig     `yaml:"kafka"`
	RateLimit RateLimitConfig `yaml:"ratelimit"`
	Ledger    LedgerConfig    `yaml:"ledger"`
	Paystack  PaystackConfig  `yaml:"paystack"`
	Auth      AuthConfig      `yaml:"auth"`
	Log       LogConfig       `yaml:"log"`
}

type ServerConfig struct {
	Port            int           `yaml:"port"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

type PostgresConfig struct {
	DSN string `yaml:"dsn"`
	// TxTimeout bounds every atomic unit; exceeding it aborts with a retryable error.
	TxTimeout time.Duration `yaml:"tx_timeout"`
}

type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

type KafkaConfig struct {
	Brokers      []string      `yaml:"brokers"`
	Topic        string        `yaml:"topic"`
	PollInterval time.Duration `yaml:"poll_interval"`
	BatchSize    int           `yaml:"batch_size"`
}

type RateLimitConfig struct {
	RPS   int `yaml:"rps"`
	Burst int `yaml:"burst"`
}

// LedgerConfig holds amounts in kobo.
type LedgerConfig struct {
	MinTransferAmount int64 `yaml:"min_transfer_amount"`
	MinDepositAmount  int64 `yaml:"min_deposit_amount"`
}

type PaystackConfig struct {
	BaseURL        string        `yaml:"base_url"`
	SecretKey      string        `yaml:"secret_key"`
	CallbackURL    string        `yaml:"callback_url"`
	Timeout        time.Duration `yaml:"timeout"`
	StatusCacheTTL time.Duration `yaml:"status_cache_ttl"`
}

type AuthConfig struct {
	JWTSecret     string        `yaml:"jwt_secret"`
	SessionTTL    time.Duration `yaml:"session_ttl"`
	MaxActiveKeys int           `yaml:"max_active_keys"`
}

type LogConfig struct {
	Level string `yaml:"level"`
}

// Default returns the configuration used for every key the file leaves unset.
func Default() Config {
	return Config{
		Server:    ServerConfig{Port: 8080, ShutdownTimeout: 10 * time.Second},
		Postgres:  PostgresConfig{TxTimeout: 5 * time.Second},
		Redis:     RedisConfig{Addr: "localhost:6379"},
		Kafka:     KafkaConfig{Topic: "wallet-events", PollInterval: time.Second, BatchSize: 100},
		RateLimit: RateLimitConfig{RPS: 20, Burst: 40},
		Ledger:    LedgerConfig{MinTransferAmount: 100, MinDepositAmount: 100},
		Paystack: PaystackConfig{
			BaseURL:        "https://api.paystack.co",
			Timeout:        10 * time.Second,
			StatusCacheTTL: 15 * time.Second,
		},
		Auth: AuthConfig{SessionTTL: time.Hour, MaxActiveKeys: 5},
		Log:  LogConfig{Level: "info"},
	}
}

// Load reads yaml file on top of Default, then applies env overrides.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Parse(data)
}

// Parse is Load without the file read.
func Parse(data []byte) (*Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	// override DSN password from env if present
	if pw := os.Getenv("POSTGRES_PASSWORD"); pw != "" {
		cfg.Postgres.DSN = cfg.Postgres.DSN + " password=" + pw
	}
	if sk := os.Getenv("PAYSTACK_SECRET_KEY"); sk != "" {
		cfg.Paystack.SecretKey = sk
	}
	if js := os.Getenv("JWT_SECRET"); js != "" {
		cfg.Auth.JWTSecret = js
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Path returns the config file location, honouring WALLET_CONFIG.
func Path() string {
	if p := os.Getenv("WALLET_CONFIG"); p != "" {
		return p
	}
	return "internal/config/config.yaml"
}

// Validate rejects configurations the ledger cannot run with.
func (c *Config) Validate() error {
	var errs []error
	if c.Postgres.DSN == "" {
		errs = append(errs, errors.New("postgres.dsn is required"))
	}
	if c.Postgres.TxTimeout <= 0 {
		errs = append(errs, errors.New("postgres.tx_timeout must be positive"))
	}
	if c.Ledger.MinTransferAmount <= 0 {
		errs = append(errs, errors.New("ledger.min_transfer_amount must be positive"))
	}
	if c.Ledger.MinDepositAmount <= 0 {
		errs = append(errs, errors.New("ledger.min_deposit_amount must be positive"))
	}
	if c.Paystack.SecretKey == "" {
		errs = append(errs, errors.New("paystack.secret_key is required"))
	}
	if c.Auth.MaxActiveKeys <= 0 {
		errs = append(errs, errors.New("auth.max_active_keys must be positive"))
	}
	return errors.Join(errs...)
}
