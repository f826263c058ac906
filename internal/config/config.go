package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server      ServerConfig      `mapstructure:"server"`
	API         APIConfig         `mapstructure:"api"`
	Redis       RedisConfig       `mapstructure:"redis"`
	MySQL       MySQLConfig       `mapstructure:"mysql"`
	Cache       CacheConfig       `mapstructure:"cache"`
	Limiter     LimiterConfig     `mapstructure:"limiter"`
	Admission   AdmissionConfig   `mapstructure:"admission"`
	Persistence PersistenceConfig `mapstructure:"persistence"`
	Auction     AuctionConfig     `mapstructure:"auction"`
}

// ServerConfig is the WebSocket listener.
type ServerConfig struct {
	Port int    `mapstructure:"port"`
	Host string `mapstructure:"host"`
}

// APIConfig is the REST/admin listener.
type APIConfig struct {
	Port int `mapstructure:"port"`
}

type RedisConfig struct {
	Address  string `mapstructure:"address"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type MySQLConfig struct {
	DSN             string        `mapstructure:"dsn"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
}

// CacheConfig selects the cache driver: "redis" for production, "memory" for
// local single-instance runs.
type CacheConfig struct {
	Driver string `mapstructure:"driver"`
}

type LimiterConfig struct {
	Window time.Duration `mapstructure:"window"`
}

type AdmissionConfig struct {
	RetryBudget int `mapstructure:"retry_budget"`
}

type PersistenceConfig struct {
	QueueSize    int           `mapstructure:"queue_size"`
	MaxRetries   int           `mapstructure:"max_retries"`
	RetryBackoff time.Duration `mapstructure:"retry_backoff"`
}

type AuctionConfig struct {
	SnapshotTTL time.Duration `mapstructure:"snapshot_ttl"`
}

func Load() (*Config, error) {
	// Set default values
	viper.SetDefault("server.port", 8080)
	viper.SetDefault("server.host", "0.0.0.0")
	viper.SetDefault("api.port", 8081)
	viper.SetDefault("redis.address", "localhost:6379")
	viper.SetDefault("redis.password", "")
	viper.SetDefault("redis.db", 0)
	viper.SetDefault("mysql.dsn", "auction_user:auction_pass@tcp(localhost:3306)/auction_db?parseTime=true")
	viper.SetDefault("mysql.max_open_conns", 25)
	viper.SetDefault("mysql.max_idle_conns", 10)
	viper.SetDefault("mysql.conn_max_lifetime", 5*time.Minute)
	viper.SetDefault("cache.driver", "redis")
	viper.SetDefault("limiter.window", time.Second)
	viper.SetDefault("admission.retry_budget", 5)
	viper.SetDefault("persistence.queue_size", 1024)
	viper.SetDefault("persistence.max_retries", 3)
	viper.SetDefault("persistence.retry_backoff", 100*time.Millisecond)
	viper.SetDefault("auction.snapshot_ttl", 5*time.Minute)

	// Configuration file settings
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./config")
	viper.AddConfigPath("/etc/auction-engine/")

	// Environment variable support
	viper.AutomaticEnv()

	// Environment variable mappings
	viper.BindEnv("server.port", "SERVER_PORT")
	viper.BindEnv("server.host", "SERVER_HOST")
	viper.BindEnv("api.port", "API_PORT")
	viper.BindEnv("redis.address", "REDIS_ADDRESS")
	viper.BindEnv("redis.password", "REDIS_PASSWORD")
	viper.BindEnv("redis.db", "REDIS_DB")
	viper.BindEnv("mysql.dsn", "MYSQL_DSN")
	viper.BindEnv("mysql.max_open_conns", "MYSQL_MAX_OPEN_CONNS")
	viper.BindEnv("mysql.max_idle_conns", "MYSQL_MAX_IDLE_CONNS")
	viper.BindEnv("mysql.conn_max_lifetime", "MYSQL_CONN_MAX_LIFETIME")
	viper.BindEnv("cache.driver", "CACHE_DRIVER")
	viper.BindEnv("limiter.window", "LIMITER_WINDOW")
	viper.BindEnv("admission.retry_budget", "ADMISSION_RETRY_BUDGET")
	viper.BindEnv("persistence.queue_size", "PERSISTENCE_QUEUE_SIZE")
	viper.BindEnv("persistence.max_retries", "PERSISTENCE_MAX_RETRIES")
	viper.BindEnv("persistence.retry_backoff", "PERSISTENCE_RETRY_BACKOFF")
	viper.BindEnv("auction.snapshot_ttl", "AUCTION_SNAPSHOT_TTL")

	// Read configuration file (optional - will use defaults/env vars if not found)
	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
		// Config file not found, continue with defaults and environment variables
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, err
	}

	return &config, nil
}

// LoadFromFile loads configuration from a specific file path
func LoadFromFile(configPath string) (*Config, error) {
	viper.SetConfigFile(configPath)

	if err := viper.ReadInConfig(); err != nil {
		return nil, err
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, err
	}

	return &config, nil
}

// GetConfigString returns a formatted string representation of the config
func (c *Config) GetConfigString() string {
	return fmt.Sprintf(
		"Server: %s:%d, API: :%d, Redis: %s, MySQL: %s, Cache: %s",
		c.Server.Host,
		c.Server.Port,
		c.API.Port,
		c.Redis.Address,
		c.MySQL.DSN,
		c.Cache.Driver,
	)
}
