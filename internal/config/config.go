package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type ProviderConfig struct {
	Key         string `yaml:"key"`
	Secret      string `yaml:"secret"`
	CallbackURL string `yaml:"callback_url"`
}

func (p ProviderConfig) Enabled() bool {
	return p.Key != "" && p.Secret != ""
}

type OAuthConfig struct {
	SessionSecret string         `yaml:"session_secret"`
	Discord       ProviderConfig `yaml:"discord"`
	Google        ProviderConfig `yaml:"google"`
}

type Config struct {
	Port            int           `yaml:"port"`
	DBDriver        string        `yaml:"db_driver"`
	DatabaseURL     string        `yaml:"database_url"`
	LogLevel        string        `yaml:"log_level"`
	SessionLifetime time.Duration `yaml:"session_lifetime"`
	AllowedOrigins  []string      `yaml:"allowed_origins"`

	// Mutating API calls allowed per second per caller, with a burst.
	MutationRate  float64 `yaml:"mutation_rate"`
	MutationBurst int     `yaml:"mutation_burst"`

	OAuth OAuthConfig `yaml:"oauth"`
}

func defaults() *Config {
	return &Config{
		Port:            8080,
		DBDriver:        "sqlite3",
		DatabaseURL:     "sportal.db?_journal_mode=WAL&_foreign_keys=on",
		LogLevel:        "info",
		SessionLifetime: 24 * time.Hour,
		MutationRate:    5,
		MutationBurst:   10,
	}
}

// Load builds the configuration from defaults, an optional YAML file named
// by CONFIG_FILE and the environment, in that order. A .env file is loaded
// into the environment first when present.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		slog.Debug("no .env file found, using environment variables")
	}

	cfg := defaults()
	if path := os.Getenv("CONFIG_FILE"); path != "" {
		if err := cfg.loadFile(path); err != nil {
			return nil, err
		}
	}
	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}
	return nil
}

func (c *Config) applyEnv() error {
	setString := func(key string, dst *string) {
		if v, ok := os.LookupEnv(key); ok {
			*dst = v
		}
	}

	setString("DB_DRIVER", &c.DBDriver)
	setString("DATABASE_URL", &c.DatabaseURL)
	setString("LOG_LEVEL", &c.LogLevel)
	setString("SESSION_SECRET", &c.OAuth.SessionSecret)
	setString("DISCORD_KEY", &c.OAuth.Discord.Key)
	setString("DISCORD_SECRET", &c.OAuth.Discord.Secret)
	setString("DISCORD_CALLBACK_URL", &c.OAuth.Discord.CallbackURL)
	setString("GOOGLE_KEY", &c.OAuth.Google.Key)
	setString("GOOGLE_SECRET", &c.OAuth.Google.Secret)
	setString("GOOGLE_CALLBACK_URL", &c.OAuth.Google.CallbackURL)

	if v, ok := os.LookupEnv("PORT"); ok {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid PORT: %w", err)
		}
		c.Port = port
	}
	if v, ok := os.LookupEnv("SESSION_LIFETIME"); ok {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("invalid SESSION_LIFETIME: %w", err)
		}
		c.SessionLifetime = d
	}
	if v, ok := os.LookupEnv("ALLOWED_ORIGINS"); ok {
		c.AllowedOrigins = nil
		for _, origin := range strings.Split(v, ",") {
			if origin = strings.TrimSpace(origin); origin != "" {
				c.AllowedOrigins = append(c.AllowedOrigins, origin)
			}
		}
	}
	if v, ok := os.LookupEnv("MUTATION_RATE"); ok {
		r, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("invalid MUTATION_RATE: %w", err)
		}
		c.MutationRate = r
	}
	if v, ok := os.LookupEnv("MUTATION_BURST"); ok {
		b, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid MUTATION_BURST: %w", err)
		}
		c.MutationBurst = b
	}
	return nil
}

func (c *Config) Validate() error {
	var errs []error
	if c.Port <= 0 || c.Port > 65535 {
		errs = append(errs, fmt.Errorf("port must be between 1 and 65535, got %d", c.Port))
	}
	if c.DBDriver != "sqlite3" && c.DBDriver != "postgres" {
		errs = append(errs, fmt.Errorf("db_driver must be sqlite3 or postgres, got %q", c.DBDriver))
	}
	if c.DatabaseURL == "" {
		errs = append(errs, errors.New("database_url is required"))
	}
	if _, err := c.SlogLevel(); err != nil {
		errs = append(errs, err)
	}
	if c.SessionLifetime <= 0 {
		errs = append(errs, errors.New("session_lifetime must be positive"))
	}
	if c.MutationRate <= 0 || c.MutationBurst <= 0 {
		errs = append(errs, errors.New("mutation_rate and mutation_burst must be positive"))
	}
	return errors.Join(errs...)
}

func (c *Config) SlogLevel() (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return slog.LevelInfo, fmt.Errorf("invalid log_level %q", c.LogLevel)
	}
	return level, nil
}

func (c *Config) Addr() string {
	return fmt.Sprintf(":%d", c.Port)
}
