package config

import (
	"fmt"
	"time"

	env "github.com/caarlos0/env/v11"
)

type CommonConfig struct {
	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`
}

type HTTPConfig struct {
	Addr            string        `env:"HTTP_ADDR" envDefault:":8080"`
	ShutdownTimeout time.Duration `env:"HTTP_SHUTDOWN_TIMEOUT" envDefault:"5s"`
}

type GRPCConfig struct {
	Addr string `env:"GRPC_ADDR" envDefault:":50051"`
}

type DatabaseConfig struct {
	Driver string `env:"DB_DRIVER" envDefault:"sqlite"`
	DSN    string `env:"DB_DSN" envDefault:"stockflow.db"`
}

type RedisConfig struct {
	// Addr empty keeps stock, carts and sessions in process
	Addr     string `env:"REDIS_ADDR"`
	Password string `env:"REDIS_PASSWORD"`
	DB       int    `env:"REDIS_DB" envDefault:"0"`
	PoolSize int    `env:"REDIS_POOL_SIZE" envDefault:"100"`
}

type RabbitConfig struct {
	// URL empty logs events instead of publishing them
	URL string `env:"RABBIT_URL"`
}

type WorkerConfig struct {
	Count     int `env:"WORKER_COUNT" envDefault:"10"`
	QueueSize int `env:"QUEUE_SIZE" envDefault:"10000"`
}

type AuthConfig struct {
	SessionTTL      time.Duration `env:"SESSION_TTL" envDefault:"12h"`
	SeedDemoCatalog bool          `env:"SEED_DEMO_CATALOG" envDefault:"true"`
}

type Config struct {
	Common   CommonConfig
	HTTP     HTTPConfig
	GRPC     GRPCConfig
	Database DatabaseConfig
	Redis    RedisConfig
	Rabbit   RabbitConfig
	Workers  WorkerConfig
	Auth     AuthConfig
}

func Load() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, err
	}
	if cfg.Database.DSN == "" {
		return Config{}, fmt.Errorf("database dsn is empty: set DB_DSN")
	}
	if cfg.Workers.Count <= 0 {
		return Config{}, fmt.Errorf("WORKER_COUNT must be positive, got %d", cfg.Workers.Count)
	}
	if cfg.Workers.QueueSize <= 0 {
		return Config{}, fmt.Errorf("QUEUE_SIZE must be positive, got %d", cfg.Workers.QueueSize)
	}
	if cfg.Auth.SessionTTL <= 0 {
		return Config{}, fmt.Errorf("SESSION_TTL must be positive")
	}
	return cfg, nil
}
