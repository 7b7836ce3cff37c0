// internal/config/config.go
package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config is the process configuration, read from the environment (a .env
// file is loaded by the godotenv autoload import in main).
type Config struct {
	Port string `env:"PORT" envDefault:"8080"`

	RedisAddr string `env:"REDIS_ADDR" envDefault:"localhost:6379"`
	RedisDB   int    `env:"REDIS_DB" envDefault:"0"`

	// DatabaseURL enables the match-history sink when set.
	DatabaseURL string `env:"DATABASE_URL"`

	TurnTimeout   time.Duration `env:"TURN_TIMEOUT" envDefault:"30s"`
	IdleTimeout   time.Duration `env:"IDLE_TIMEOUT" envDefault:"30m"`
	ReplicaTTL    time.Duration `env:"REPLICA_TTL" envDefault:"24h"`
	BotDelay      time.Duration `env:"BOT_DELAY" envDefault:"1s"`
	PostGameGrace time.Duration `env:"POST_GAME_GRACE" envDefault:"1m"`
}

// Load parses the environment into a Config.
func Load() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse environment: %w", err)
	}
	return cfg, nil
}
