package config

import (
	"encoding/json"
	"fmt"
	"os"
)

// Backend names selectable in configuration. The choice is made once at
// startup; business logic never inspects the environment.
const (
	StorageMemory   = "memory"
	StoragePostgres = "postgres"

	CacheMemory = "memory"
	CacheRedis  = "redis"
)

// Config represents the application configuration
type Config struct {
	Server  ServerConfig  `json:"server"`
	Storage StorageConfig `json:"storage"`
	Cache   CacheConfig   `json:"cache"`
}

// ServerConfig represents HTTP server configuration
type ServerConfig struct {
	Port int `json:"port"`

	// Debug exposes the /debug table dump. Not meant for production.
	Debug bool `json:"debug"`
}

// StorageConfig selects and configures the storage backend
type StorageConfig struct {
	Backend  string         `json:"backend"`
	Postgres PostgresConfig `json:"postgres"`
}

// PostgresConfig represents PostgreSQL configuration. ReplicaHost is optional;
// when set, reads are served from the replica (the mirrored deployment).
type PostgresConfig struct {
	Host        string `json:"host"`
	Port        int    `json:"port"`
	User        string `json:"user"`
	Password    string `json:"password"`
	Database    string `json:"database"`
	SSLMode     string `json:"ssl_mode"`
	ReplicaHost string `json:"replica_host,omitempty"`
	ReplicaPort int    `json:"replica_port,omitempty"`
}

// CacheConfig selects and configures the read cache
type CacheConfig struct {
	Backend string      `json:"backend"`
	Redis   RedisConfig `json:"redis"`
}

// RedisConfig represents Redis configuration
type RedisConfig struct {
	Host     string `json:"host"`
	Port     int    `json:"port"`
	Password string `json:"password"`
	Database int    `json:"database"`

	// TTLSeconds bounds staleness if an invalidation is ever lost.
	TTLSeconds int `json:"ttl_seconds"`
}

// Load loads configuration from file
func Load() (*Config, error) {
	configFile := "configs/config.json"
	if envFile := os.Getenv("CONFIG_FILE"); envFile != "" {
		configFile = envFile
	}

	data, err := os.ReadFile(configFile)
	if err != nil {
		return nil, err
	}

	var config Config
	if err := json.Unmarshal(data, &config); err != nil {
		return nil, err
	}

	if config.Server.Port == 0 {
		config.Server.Port = 7000
	}
	if config.Storage.Backend == "" {
		config.Storage.Backend = StorageMemory
	}
	if config.Cache.Backend == "" {
		config.Cache.Backend = CacheMemory
	}
	if config.Cache.Redis.TTLSeconds == 0 {
		config.Cache.Redis.TTLSeconds = 120
	}

	if err := config.validate(); err != nil {
		return nil, err
	}

	return &config, nil
}

func (c *Config) validate() error {
	switch c.Storage.Backend {
	case StorageMemory, StoragePostgres:
	default:
		return fmt.Errorf("unknown storage backend %q", c.Storage.Backend)
	}

	switch c.Cache.Backend {
	case CacheMemory, CacheRedis:
	default:
		return fmt.Errorf("unknown cache backend %q", c.Cache.Backend)
	}

	return nil
}
