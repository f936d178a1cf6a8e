// Package config loads the gateway's YAML configuration file and applies
// environment variable overrides on top of it.
package config

import (
	"fmt"
	"os"
	"strconv"
	"sync"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v2"
)

// =============================================================================
// Frame Ingestion Gateway - Configuration with Environment Overrides
// =============================================================================

type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Database  DatabaseConfig  `yaml:"database"`
	Auth      AuthConfig      `yaml:"auth"`
	Inference InferenceConfig `yaml:"inference"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// ServerConfig holds the bind host shared by REST, the connection-oriented
// frame transport, and UDP, plus the timeouts. Each of the three binds its
// own port (Port, WSPort, UDPPort); they do not share one port.
type ServerConfig struct {
	Host               string `yaml:"host"`
	Port               string `yaml:"port"`
	WSPort             string `yaml:"ws_port"`
	UDPPort            string `yaml:"udp_port"`
	Env                string `yaml:"env"`
	WSPath             string `yaml:"ws_path"`
	IdleTimeoutSec     int    `yaml:"idle_timeout_sec"`
	ShutdownTimeoutSec int    `yaml:"shutdown_timeout_sec"`
}

// DatabaseConfig points at the embedded SQLite file.
type DatabaseConfig struct {
	Path string `yaml:"path"`
}

// AuthConfig carries the bearer-token signing secret and token lifetime.
type AuthConfig struct {
	Secret         string `yaml:"secret"`
	TokenTTLHours  int    `yaml:"token_ttl_hours"`
	BcryptCost     int    `yaml:"bcrypt_cost"`
}

// InferenceConfig addresses the downstream AI inference service and the
// pool of RPC clients kept open against it.
type InferenceConfig struct {
	Host          string `yaml:"host"`
	Port          string `yaml:"port"`
	PoolSize      int    `yaml:"pool_size"`
	AllowDegraded bool   `yaml:"allow_degraded"`
}

// LoggingConfig selects the log sink directory and slog handler shape.
type LoggingConfig struct {
	Dir    string `yaml:"dir"`
	Format string `yaml:"format"` // "json" or "text"
}

// =============================================================================
// Singleton pattern with environment overrides
// =============================================================================

var (
	instance *Config
	once     sync.Once
)

// Get returns the process-wide singleton config instance.
func Get() *Config {
	once.Do(func() {
		_ = godotenv.Load()
		cfg, err := LoadConfig(getEnv("CONFIG_PATH", "config.yaml"))
		if err != nil {
			cfg = &Config{}
		}
		cfg.applyEnvOverrides()
		instance = cfg
	})
	return instance
}

// LoadConfig loads config from a YAML file.
func LoadConfig(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open config: %w", err)
	}
	defer f.Close()

	var cfg Config
	if err := yaml.NewDecoder(f).Decode(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	return &cfg, nil
}

// applyEnvOverrides applies environment variable overrides, then fills in
// defaults for anything still zero-valued.
func (c *Config) applyEnvOverrides() {
	c.Server.Host = getEnv("GATEWAY_HOST", c.Server.Host)
	c.Server.Port = getEnv("GATEWAY_PORT", c.Server.Port)
	c.Server.WSPort = getEnv("GATEWAY_WS_PORT", c.Server.WSPort)
	c.Server.UDPPort = getEnv("GATEWAY_UDP_PORT", c.Server.UDPPort)
	c.Server.Env = getEnv("GATEWAY_ENV", c.Server.Env)
	c.Server.WSPath = getEnv("GATEWAY_WS_PATH", c.Server.WSPath)
	if v := getEnvInt("GATEWAY_IDLE_TIMEOUT_SEC", 0); v > 0 {
		c.Server.IdleTimeoutSec = v
	}
	if v := getEnvInt("GATEWAY_SHUTDOWN_TIMEOUT_SEC", 0); v > 0 {
		c.Server.ShutdownTimeoutSec = v
	}

	c.Database.Path = getEnv("GATEWAY_DB_PATH", c.Database.Path)

	c.Auth.Secret = getEnv("GATEWAY_AUTH_SECRET", c.Auth.Secret)
	if v := getEnvInt("GATEWAY_TOKEN_TTL_HOURS", 0); v > 0 {
		c.Auth.TokenTTLHours = v
	}
	if v := getEnvInt("GATEWAY_BCRYPT_COST", 0); v > 0 {
		c.Auth.BcryptCost = v
	}

	c.Inference.Host = getEnv("GATEWAY_INFERENCE_HOST", c.Inference.Host)
	c.Inference.Port = getEnv("GATEWAY_INFERENCE_PORT", c.Inference.Port)
	if v := getEnvInt("GATEWAY_INFERENCE_POOL_SIZE", 0); v > 0 {
		c.Inference.PoolSize = v
	}
	c.Inference.AllowDegraded = getEnvBool("GATEWAY_INFERENCE_ALLOW_DEGRADED", c.Inference.AllowDegraded)

	c.Logging.Dir = getEnv("GATEWAY_LOG_DIR", c.Logging.Dir)
	c.Logging.Format = getEnv("GATEWAY_LOG_FORMAT", c.Logging.Format)

	c.applyDefaults()
}

func (c *Config) applyDefaults() {
	if c.Server.Host == "" {
		c.Server.Host = "0.0.0.0"
	}
	if c.Server.Port == "" {
		c.Server.Port = "8080"
	}
	if c.Server.WSPort == "" {
		c.Server.WSPort = "8081"
	}
	if c.Server.UDPPort == "" {
		c.Server.UDPPort = "8082"
	}
	if c.Server.Env == "" {
		c.Server.Env = "development"
	}
	if c.Server.WSPath == "" {
		c.Server.WSPath = "/ws"
	}
	if c.Server.IdleTimeoutSec == 0 {
		c.Server.IdleTimeoutSec = 30
	}
	if c.Server.ShutdownTimeoutSec == 0 {
		c.Server.ShutdownTimeoutSec = 30
	}
	if c.Database.Path == "" {
		c.Database.Path = "gateway.db"
	}
	if c.Auth.TokenTTLHours == 0 {
		c.Auth.TokenTTLHours = 24
	}
	if c.Auth.BcryptCost == 0 {
		c.Auth.BcryptCost = 10
	}
	if c.Inference.PoolSize == 0 {
		c.Inference.PoolSize = 3
	}
	if c.Inference.Port == "" {
		c.Inference.Port = "50051"
	}
	if c.Logging.Dir == "" {
		c.Logging.Dir = "logs"
	}
	if c.Logging.Format == "" {
		c.Logging.Format = "text"
	}
}

// =============================================================================
// Helper functions
// =============================================================================

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvBool(key string, defaultVal bool) bool {
	if val := os.Getenv(key); val != "" {
		return val == "true" || val == "1"
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			return i
		}
	}
	return defaultVal
}

// =============================================================================
// Convenience methods
// =============================================================================

func (c *Config) IsProduction() bool {
	return c.Server.Env == "production"
}

func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%s", c.Server.Host, c.Server.Port)
}

func (c *Config) InferenceAddr() string {
	return fmt.Sprintf("%s:%s", c.Inference.Host, c.Inference.Port)
}

// WSAddr is the bind address for the websocket frame transport.
func (c *Config) WSAddr() string {
	return fmt.Sprintf("%s:%s", c.Server.Host, c.Server.WSPort)
}

// UDPAddr is the bind address for the UDP frame transport.
func (c *Config) UDPAddr() string {
	return fmt.Sprintf("%s:%s", c.Server.Host, c.Server.UDPPort)
}
