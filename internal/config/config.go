package config

import (
	"errors"
	"fmt"
	"io/fs"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

type Config struct {
	DiscordToken      string  `env:"DISCORD_TOKEN,required,notEmpty"`
	StoragePath       string  `env:"STORAGE_PATH" envDefault:"groovebox.db"`
	LogLevel          string  `env:"LOG_LEVEL" envDefault:"info"`
	MetricsAddr       string  `env:"METRICS_ADDR"`
	RegistryShards    int     `env:"REGISTRY_SHARDS" envDefault:"32"`
	DispatchWorkers   int     `env:"DISPATCH_WORKERS" envDefault:"8"`
	ResolveAttempts   int     `env:"RESOLVE_ATTEMPTS" envDefault:"3"`
	ResolveRPS        float64 `env:"RESOLVE_RPS" envDefault:"5"`
	YouTubeProxy      string  `env:"YOUTUBE_PROXY"`
	InitSlashCommands bool    `env:"INIT_SLASH_COMMANDS" envDefault:"true"`
}

// Load reads envFile into the process environment, if it exists, and parses
// the environment. Variables already set win over the file.
func Load(envFile string) (*Config, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("load %s: %w", envFile, err)
		}
	}
	return Parse()
}

// Parse reads the configuration from the environment only.
func Parse() (*Config, error) {
	cfg, err := env.ParseAs[Config]()
	if err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c Config) validate() error {
	if c.RegistryShards < 1 {
		return fmt.Errorf("REGISTRY_SHARDS must be positive, got %d", c.RegistryShards)
	}
	if c.DispatchWorkers < 1 {
		return fmt.Errorf("DISPATCH_WORKERS must be positive, got %d", c.DispatchWorkers)
	}
	if c.ResolveAttempts < 1 {
		return fmt.Errorf("RESOLVE_ATTEMPTS must be positive, got %d", c.ResolveAttempts)
	}
	if c.ResolveRPS <= 0 {
		return fmt.Errorf("RESOLVE_RPS must be positive, got %v", c.ResolveRPS)
	}
	return nil
}
