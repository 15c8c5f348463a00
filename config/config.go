package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	StorageMemory   = "memory"
	StoragePostgres = "postgres"

	AuthJWT    = "jwt"
	AuthHeader = "header"
)

type GRPC struct {
	Addr    string `yaml:"addr"`
	Timeout string `yaml:"timeout"` // дедлайн по умолчанию для unary, "10s"
}

type HTTP struct {
	Addr           string `yaml:"addr"`
	RequestTimeout string `yaml:"requestTimeout"`
	ReadTimeout    string `yaml:"readTimeout"`
	IdleTimeout    string `yaml:"idleTimeout"`
}

type Logging struct {
	Env       string `yaml:"env"`       // dev|stage|prod
	Service   string `yaml:"service"`   // chat-service
	Version   string `yaml:"version"`   // v0.1.0
	Backend   string `yaml:"backend"`   // std|zap
	Level     string `yaml:"level"`     // debug|info|warn|error
	AddSource bool   `yaml:"addSource"` // false|true
	Debug     bool   `yaml:"debug"`     // false|true
}

type Storage struct {
	Driver  string `yaml:"driver"` // postgres|memory
	Migrate bool   `yaml:"migrate"`
}

type Postgres struct {
	DSN             string `yaml:"dsn"`
	MaxConns        int32  `yaml:"maxConns"`
	MinConns        int32  `yaml:"minConns"`
	MaxConnLifetime string `yaml:"maxConnLifetime"`
	MaxConnIdleTime string `yaml:"maxConnIdleTime"`
	ConnectAttempts int    `yaml:"connectAttempts"`
}

type Auth struct {
	Mode          string `yaml:"mode"` // jwt|header
	PublicKeyPath string `yaml:"publicKeyPath"`
	Issuer        string `yaml:"issuer"`
	Audience      string `yaml:"audience"`
	ClockSkew     string `yaml:"clockSkew"`
}

type WS struct {
	PingEvery      string   `yaml:"pingEvery"`
	SendQueue      int      `yaml:"sendQueue"`
	ReadLimit      int64    `yaml:"readLimit"`
	AutoJoinRooms  bool     `yaml:"autoJoinRooms"`
	AllowedOrigins []string `yaml:"allowedOrigins"`
}

type CORS struct {
	AllowedOrigins []string `yaml:"allowedOrigins"`
	MaxAge         int      `yaml:"maxAge"`
}

type Config struct {
	HTTP     HTTP     `yaml:"http"`
	GRPC     GRPC     `yaml:"grpc"`
	Logging  Logging  `yaml:"logging"`
	Storage  Storage  `yaml:"storage"`
	Postgres Postgres `yaml:"postgres"`
	Auth     Auth     `yaml:"auth"`
	WS       WS       `yaml:"ws"`
	CORS     CORS     `yaml:"cors"`
}

// LoadConfig читает .env (если есть), затем YAML из CONFIG_PATH и переменные окружения поверх.
func LoadConfig() (*Config, error) {
	_ = godotenv.Load()

	path := os.Getenv("CONFIG_PATH")
	if path == "" {
		path = "./config/config.yaml"
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Parse(data)
}

// Parse разбирает YAML, применяет окружение и дефолты.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	cfg.applyEnv()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyEnv() {
	overrides := map[string]*string{
		"HTTP_ADDR":           &c.HTTP.Addr,
		"GRPC_ADDR":           &c.GRPC.Addr,
		"POSTGRES_DSN":        &c.Postgres.DSN,
		"STORAGE_DRIVER":      &c.Storage.Driver,
		"AUTH_MODE":           &c.Auth.Mode,
		"JWT_PUBLIC_KEY_PATH": &c.Auth.PublicKeyPath,
		"LOG_LEVEL":           &c.Logging.Level,
		"APP_ENV":             &c.Logging.Env,
	}
	for key, dst := range overrides {
		if v := strings.TrimSpace(os.Getenv(key)); v != "" {
			*dst = v
		}
	}
}

func (c *Config) validate() error {
	if c.HTTP.Addr == "" {
		return errors.New("http.addr is required")
	}
	if c.GRPC.Addr == "" {
		return errors.New("grpc.addr is required")
	}

	// установка дефолтов, если значения не указаны
	if c.Storage.Driver == "" {
		c.Storage.Driver = StoragePostgres
	}
	switch c.Storage.Driver {
	case StoragePostgres:
		if c.Postgres.DSN == "" {
			return errors.New("postgres.dsn is required")
		}
	case StorageMemory:
	default:
		return fmt.Errorf("storage.driver: unknown driver %q", c.Storage.Driver)
	}

	if c.Auth.Mode == "" {
		c.Auth.Mode = AuthJWT
	}
	switch c.Auth.Mode {
	case AuthJWT:
		if c.Auth.PublicKeyPath == "" {
			return errors.New("auth.publicKeyPath is required in jwt mode")
		}
	case AuthHeader:
	default:
		return fmt.Errorf("auth.mode: unknown mode %q", c.Auth.Mode)
	}

	if c.Logging.Service == "" {
		c.Logging.Service = "chat-service"
	}
	if c.Logging.Env == "" {
		c.Logging.Env = "dev"
	}
	if c.Logging.Version == "" {
		c.Logging.Version = "v0.1.0"
	}
	if c.Logging.Backend == "" {
		c.Logging.Backend = "std"
	}
	return nil
}

func (c HTTP) RequestTimeoutOr(def time.Duration) time.Duration {
	return parseDurationOr(def, c.RequestTimeout)
}

func (c HTTP) ReadTimeoutOr(def time.Duration) time.Duration {
	return parseDurationOr(def, c.ReadTimeout)
}

func (c HTTP) IdleTimeoutOr(def time.Duration) time.Duration {
	return parseDurationOr(def, c.IdleTimeout)
}

func (c GRPC) TimeoutOr(def time.Duration) time.Duration {
	return parseDurationOr(def, c.Timeout)
}

func (c Auth) ClockSkewOr(def time.Duration) time.Duration {
	return parseDurationOr(def, c.ClockSkew)
}

func (c WS) PingEveryOr(def time.Duration) time.Duration {
	return parseDurationOr(def, c.PingEvery)
}

func (c Postgres) MaxConnLifetimeOr(def time.Duration) time.Duration {
	return parseDurationOr(def, c.MaxConnLifetime)
}

func (c Postgres) MaxConnIdleTimeOr(def time.Duration) time.Duration {
	return parseDurationOr(def, c.MaxConnIdleTime)
}

// helper для парсинга timeout-ов
func parseDurationOr(def time.Duration, s string) time.Duration {
	if d, err := time.ParseDuration(s); err == nil && d > 0 {
		return d
	}
	return def
}
