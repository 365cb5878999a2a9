package slangdict

import (
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type LoggingConfig struct {
	// debug, info, warn or error
	Level string `yaml:"level"`
	// json or console
	Format string `yaml:"format"`
}

type Config struct {
	Addr            string        `yaml:"addr"`
	DBPath          string        `yaml:"db_path"`
	DBPoolSize      int           `yaml:"db_pool_size"`
	SecretKey       string        `yaml:"secret_key"`
	InsecureCookies bool          `yaml:"insecure_cookies"`
	StaticDir       string        `yaml:"static_dir"`
	VocabularyTTL   time.Duration `yaml:"vocabulary_ttl"`
	PageSize        int           `yaml:"page_size"`
	Logging         LoggingConfig `yaml:"logging"`
}

func DefaultConfig() *Config {
	return &Config{
		Addr:          ":7777",
		DBPath:        "slangdict.db",
		DBPoolSize:    10,
		StaticDir:     "./static",
		VocabularyTTL: 5 * time.Minute,
		PageSize:      20,
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// LoadConfig reads the YAML file at path on top of the defaults, then applies
// overrides from a .env file and SLANGDICT_* environment variables. A missing
// file (or an empty path) just means defaults.
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil && !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
		if err == nil {
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("failed to parse config: %w", err)
			}
		}
	}

	// Variables already in the environment win over .env
	_ = godotenv.Load()
	if err := cfg.applyEnvOverrides(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func envOrDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func (c *Config) applyEnvOverrides() error {
	c.Addr = envOrDefault("SLANGDICT_ADDR", c.Addr)
	c.DBPath = envOrDefault("SLANGDICT_DB_PATH", c.DBPath)
	c.SecretKey = envOrDefault("SLANGDICT_SECRET_KEY", c.SecretKey)
	c.StaticDir = envOrDefault("SLANGDICT_STATIC_DIR", c.StaticDir)
	c.Logging.Level = envOrDefault("SLANGDICT_LOG_LEVEL", c.Logging.Level)
	c.Logging.Format = envOrDefault("SLANGDICT_LOG_FORMAT", c.Logging.Format)

	if v := os.Getenv("SLANGDICT_DB_POOL_SIZE"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("SLANGDICT_DB_POOL_SIZE: %w", err)
		}
		c.DBPoolSize = n
	}
	if v := os.Getenv("SLANGDICT_INSECURE_COOKIES"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("SLANGDICT_INSECURE_COOKIES: %w", err)
		}
		c.InsecureCookies = b
	}
	if v := os.Getenv("SLANGDICT_VOCABULARY_TTL"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("SLANGDICT_VOCABULARY_TTL: %w", err)
		}
		c.VocabularyTTL = d
	}
	return nil
}

// SecretKeyBytes decodes the hex secret key used to sign CSRF tokens.
func (c *Config) SecretKeyBytes() ([]byte, error) {
	if c.SecretKey == "" {
		return nil, errors.New("secret key is required (set secret_key or SLANGDICT_SECRET_KEY)")
	}
	key, err := hex.DecodeString(c.SecretKey)
	if err != nil {
		return nil, errors.New("secret key must be hex-encoded")
	}
	if len(key) != 32 {
		return nil, fmt.Errorf("secret key must be 32 bytes, got %d", len(key))
	}
	return key, nil
}

// Validate checks everything the server needs before it starts.
func (c *Config) Validate() error {
	if _, err := c.SecretKeyBytes(); err != nil {
		return err
	}
	// Handlers hold a connection while the linker fetches its vocabulary on
	// another one.
	if c.DBPoolSize < 2 {
		return fmt.Errorf("db_pool_size must be at least 2, got %d", c.DBPoolSize)
	}
	if c.PageSize < 1 {
		return fmt.Errorf("page_size must be at least 1, got %d", c.PageSize)
	}
	if c.VocabularyTTL <= 0 {
		return fmt.Errorf("vocabulary_ttl must be positive, got %s", c.VocabularyTTL)
	}
	switch c.Logging.Format {
	case "json", "console":
	default:
		return fmt.Errorf("invalid logging format: %s (valid: json, console)", c.Logging.Format)
	}
	return nil
}
